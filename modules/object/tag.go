package object

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gitcore/gitcore/modules/plumbing"
)

const pgpSignatureBegin = "-----BEGIN PGP SIGNATURE-----"

// Tag is an annotated tag object.
type Tag struct {
	Object     plumbing.Hash
	ObjectType Type
	Name       string
	Tagger     Signature
	Message    string
	// Signature, if non-empty, is the raw PGP armor block (including the
	// BEGIN/END markers) appended verbatim after the message. It is never
	// parsed or verified, only preserved byte-for-byte.
	Signature string

	raw []byte
}

func (t *Tag) Type() Type { return TagType }

func (t *Tag) Encode(w io.Writer) (int64, error) {
	if t.raw == nil {
		t.raw = encodeTag(t)
	}
	n, err := w.Write(t.raw)
	return int64(n), err
}

func encodeTag(t *Tag) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", t.Object)
	fmt.Fprintf(&buf, "type %s\n", t.ObjectType)
	fmt.Fprintf(&buf, "tag %s\n", t.Name)
	fmt.Fprintf(&buf, "tagger %s\n", t.Tagger)
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	if t.Signature != "" {
		buf.WriteByte('\n')
		buf.WriteString(t.Signature)
	}
	return buf.Bytes()
}

// DecodeTag parses raw tag content, splitting the trailing PGP signature
// block (if any) off of the message and retaining the exact input bytes
// for round-trip fidelity.
func DecodeTag(raw []byte) (*Tag, error) {
	t := &Tag{raw: raw}
	text := string(raw)
	lines := strings.Split(text, "\n")
	msgStart := len(lines)
	for i, line := range lines {
		switch {
		case line == "":
			msgStart = i + 1
		case strings.HasPrefix(line, "object "):
			t.Object = plumbing.NewHash(strings.TrimPrefix(line, "object "))
			continue
		case strings.HasPrefix(line, "type "):
			t.ObjectType = TypeFromString(strings.TrimPrefix(line, "type "))
			continue
		case strings.HasPrefix(line, "tag "):
			t.Name = strings.TrimPrefix(line, "tag ")
			continue
		case strings.HasPrefix(line, "tagger "):
			sig, err := ParseSignature(strings.TrimPrefix(line, "tagger "))
			if err != nil {
				return nil, err
			}
			t.Tagger = sig
			continue
		default:
			continue
		}
		break
	}
	rest := strings.Join(lines[msgStart:], "\n")
	if idx := strings.Index(rest, pgpSignatureBegin); idx >= 0 {
		t.Message = strings.TrimSuffix(rest[:idx], "\n")
		t.Signature = rest[idx:]
	} else {
		t.Message = rest
	}
	return t, nil
}
