package revparse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
)

type opKind int

const (
	opFirstParentN opKind = iota // ~n: walk n first-parents
	opSelectParent               // ^n: the n-th parent (0 means "peel only")
	opPeel                       // ^{}: peel tags down to the first non-tag object
)

type suffixOp struct {
	kind opKind
	n    int
}

// parseSuffixes tokenizes a `~`/`^` suffix chain, applied left to right
// onto whatever base revision precedes it. `~` and `^` each take an
// optional decimal count defaulting to 1; `^{}` is the one non-numeric
// form, meaning "peel until the object isn't a tag".
func parseSuffixes(s string) ([]suffixOp, error) {
	var ops []suffixOp
	i := 0
	for i < len(s) {
		switch s[i] {
		case '~':
			i++
			n, next, err := readCount(s, i)
			if err != nil {
				return nil, err
			}
			i = next
			ops = append(ops, suffixOp{opFirstParentN, n})
		case '^':
			i++
			if i < len(s) && s[i] == '{' {
				end := strings.IndexByte(s[i:], '}')
				if end < 0 {
					return nil, fmt.Errorf("revparse: unterminated %q in %q", "^{", s)
				}
				body := s[i+1 : i+end]
				i += end + 1
				if body != "" {
					return nil, fmt.Errorf("revparse: unsupported peel suffix %q", "^{"+body+"}")
				}
				ops = append(ops, suffixOp{opPeel, 0})
				continue
			}
			n, next, err := readCount(s, i)
			if err != nil {
				return nil, err
			}
			i = next
			ops = append(ops, suffixOp{opSelectParent, n})
		default:
			return nil, fmt.Errorf("revparse: unexpected character %q in suffix %q", s[i], s)
		}
	}
	return ops, nil
}

// readCount reads an optional run of decimal digits starting at i,
// defaulting to 1 when none are present (bare `~` and `^`).
func readCount(s string, i int) (n, next int, err error) {
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return 1, i, nil
	}
	v, err := strconv.Atoi(s[start:i])
	if err != nil {
		return 0, i, fmt.Errorf("revparse: bad count in %q: %w", s, err)
	}
	return v, i, nil
}

func applyOps(db ObjectLoader, base plumbing.Hash, ops []suffixOp) (plumbing.Hash, error) {
	cur := base
	for _, op := range ops {
		switch op.kind {
		case opPeel:
			h, err := peelToNonTag(db, cur)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			cur = h

		case opFirstParentN:
			for i := 0; i < op.n; i++ {
				h, c, err := peelToCommit(db, cur)
				if err != nil {
					return plumbing.ZeroHash, err
				}
				if len(c.Parents) == 0 {
					return plumbing.ZeroHash, plumbing.NewErrRevNotFound("%s has no parent", h)
				}
				cur = c.Parents[0]
			}

		case opSelectParent:
			h, c, err := peelToCommit(db, cur)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			if op.n == 0 {
				cur = h
				continue
			}
			if op.n > len(c.Parents) {
				return plumbing.ZeroHash, plumbing.NewErrRevNotFound("%s has no %d%s parent", h, op.n, ordinalSuffix(op.n))
			}
			cur = c.Parents[op.n-1]
		}
	}
	return cur, nil
}

func ordinalSuffix(n int) string {
	switch {
	case n%100 >= 11 && n%100 <= 13:
		return "th"
	case n%10 == 1:
		return "st"
	case n%10 == 2:
		return "nd"
	case n%10 == 3:
		return "rd"
	default:
		return "th"
	}
}

// peelToNonTag follows Tag.Object links until it reaches an object that
// isn't itself a tag, returning that object's hash.
func peelToNonTag(db ObjectLoader, start plumbing.Hash) (plumbing.Hash, error) {
	h := start
	for {
		typ, raw, err := db.GetRaw(h)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if typ != object.TagType {
			return h, nil
		}
		tag, err := object.DecodeTag(raw)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		h = tag.Object
	}
}

// peelToCommit follows Tag.Object links until it reaches a commit,
// returning both the commit's hash and its decoded form. Any non-tag,
// non-commit object along the way is an error: `~`/`^` only operate on
// commit-ish revisions.
func peelToCommit(db ObjectLoader, start plumbing.Hash) (plumbing.Hash, *object.Commit, error) {
	h := start
	for {
		typ, raw, err := db.GetRaw(h)
		if err != nil {
			return plumbing.ZeroHash, nil, err
		}
		switch typ {
		case object.TagType:
			tag, err := object.DecodeTag(raw)
			if err != nil {
				return plumbing.ZeroHash, nil, err
			}
			h = tag.Object
		case object.CommitType:
			c, err := object.DecodeCommit(raw)
			if err != nil {
				return plumbing.ZeroHash, nil, err
			}
			return h, c, nil
		default:
			return plumbing.ZeroHash, nil, plumbing.NewErrRevNotFound("%s is not a commit-ish object", start)
		}
	}
}
