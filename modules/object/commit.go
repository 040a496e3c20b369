package object

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gitcore/gitcore/modules/plumbing"
)

// Signature is an author/committer identity line: "Name <email> ts tz".
type Signature struct {
	Name     string
	Email    string
	When     int64  // unix seconds
	TZOffset string // "+HHMM" / "-HHMM"
}

func (s Signature) String() string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.When, s.TZOffset)
}

// ParseSignature parses a "Name <email> ts tz" identity line, the format
// used both inside commit/tag headers and in reflog records.
func ParseSignature(line string) (Signature, error) {
	lt := strings.LastIndexByte(line, '<')
	gt := strings.LastIndexByte(line, '>')
	if lt < 0 || gt < lt {
		return Signature{}, fmt.Errorf("object: malformed signature %q", line)
	}
	name := strings.TrimSpace(line[:lt])
	email := line[lt+1 : gt]
	rest := strings.TrimSpace(line[gt+1:])
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return Signature{}, fmt.Errorf("object: malformed signature timestamp %q", line)
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("object: malformed signature timestamp %q: %w", line, err)
	}
	return Signature{Name: name, Email: email, When: ts, TZOffset: fields[1]}, nil
}

// Commit is a snapshot of the repository at a point in history.
type Commit struct {
	TreeHash  plumbing.Hash
	Parents   []plumbing.Hash
	Author    Signature
	Committer Signature
	// GPGSig, if non-empty, is the signature text exactly as it should
	// appear after "gpgsig ", with internal newlines but no continuation
	// prefixes; Encode re-applies the one-space continuation prefix git
	// uses for every following line.
	GPGSig  string
	Message string

	raw []byte
}

func (c *Commit) Type() Type { return CommitType }

func (c *Commit) Encode(w io.Writer) (int64, error) {
	if c.raw == nil {
		c.raw = encodeCommit(c)
	}
	n, err := w.Write(c.raw)
	return int64(n), err
}

func encodeCommit(c *Commit) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.TreeHash)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	fmt.Fprintf(&buf, "committer %s\n", c.Committer)
	if c.GPGSig != "" {
		lines := strings.Split(c.GPGSig, "\n")
		fmt.Fprintf(&buf, "gpgsig %s\n", lines[0])
		for _, l := range lines[1:] {
			fmt.Fprintf(&buf, " %s\n", l)
		}
	}
	buf.WriteByte('\n')
	msg := c.Message
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	buf.WriteString(msg)
	return buf.Bytes()
}

// DecodeCommit parses raw commit content, retaining the exact input bytes
// on the returned Commit so that re-encoding an unmodified commit always
// reproduces the original hash regardless of any normalization Encode
// would otherwise apply (e.g. the forced trailing newline on Message).
func DecodeCommit(raw []byte) (*Commit, error) {
	c := &Commit{raw: raw}
	lines := strings.Split(string(raw), "\n")
	msgStart := len(lines)
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case line == "":
			msgStart = i + 1
			i = len(lines)
		case strings.HasPrefix(line, "tree "):
			c.TreeHash = plumbing.NewHash(strings.TrimPrefix(line, "tree "))
		case strings.HasPrefix(line, "parent "):
			c.Parents = append(c.Parents, plumbing.NewHash(strings.TrimPrefix(line, "parent ")))
		case strings.HasPrefix(line, "author "):
			sig, err := ParseSignature(strings.TrimPrefix(line, "author "))
			if err != nil {
				return nil, err
			}
			c.Author = sig
		case strings.HasPrefix(line, "committer "):
			sig, err := ParseSignature(strings.TrimPrefix(line, "committer "))
			if err != nil {
				return nil, err
			}
			c.Committer = sig
		case strings.HasPrefix(line, "gpgsig "):
			sigLines := []string{strings.TrimPrefix(line, "gpgsig ")}
			i++
			for i < len(lines) && strings.HasPrefix(lines[i], " ") {
				sigLines = append(sigLines, lines[i][1:])
				i++
			}
			c.GPGSig = strings.Join(sigLines, "\n")
			i--
		default:
			return nil, fmt.Errorf("object: unknown commit header %q", line)
		}
	}
	message := strings.Join(lines[msgStart:], "\n")
	c.Message = strings.TrimSuffix(message, "\n")
	return c, nil
}
