package object

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gitcore/gitcore/modules/plumbing"
)

// Mode is a tree entry's file mode, kept as the literal token that appears
// in the object's bytes (git does not normalize its width), so round-tripped
// trees always re-encode identically.
type Mode string

const (
	ModeFile       Mode = "100644"
	ModeExecutable Mode = "100755"
	ModeSymlink    Mode = "120000"
	ModeDir        Mode = "040000"
	ModeGitlink    Mode = "160000"
)

// IsDir reports whether m is a subtree entry, per git's sort convention:
// any mode starting with "04" sorts as if the name had a trailing slash.
func (m Mode) IsDir() bool {
	return strings.HasPrefix(string(m), "04")
}

// TreeEntry is one line of a tree object: a mode, a name, and the hash of
// the object it names.
type TreeEntry struct {
	Mode Mode
	Name string
	Hash plumbing.Hash
}

// Tree is an ordered list of entries. A Tree produced by Decode retains the
// exact bytes it was parsed from, so re-encoding an unmodified Tree always
// reproduces its original hash even if its entries are not in canonical
// sort order (see the round-trip note in DESIGN.md). A Tree built fresh via
// NewTree sorts its entries on first Encode the way git does when writing a
// tree: as if every subtree's name carried a trailing "/".
type Tree struct {
	Entries []TreeEntry

	raw []byte // exact bytes, set by Decode or cached after the first Encode of a fresh tree
}

func (t *Tree) Type() Type { return TreeType }

// NewTree builds a Tree from entries in any order; they are sorted
// canonically the first time Encode is called.
func NewTree(entries []TreeEntry) *Tree {
	return &Tree{Entries: entries}
}

// sortKey returns the byte sequence git sorts tree entries by: the name,
// with an appended "/" for subtrees, so e.g. "lib" (blob) sorts before
// "lib.go" (blob) which sorts before "lib/" (tree) -- "lib.go" < "lib/" but
// "lib" < "lib.go" as well, matching git's tree_entry_cmp.
func sortKey(e TreeEntry) string {
	if e.Mode.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

func sortEntries(entries []TreeEntry) []TreeEntry {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sortKey(sorted[i]) < sortKey(sorted[j])
	})
	return sorted
}

// Encode writes the tree's canonical bytes to w. If the Tree was produced
// by Decode (or a prior Encode), the cached raw bytes are written verbatim;
// otherwise entries are sorted and serialized, and the result is cached.
func (t *Tree) Encode(w io.Writer) (int64, error) {
	if t.raw == nil {
		t.raw = encodeTreeEntries(sortEntries(t.Entries))
	}
	n, err := w.Write(t.raw)
	return int64(n), err
}

func encodeTreeEntries(entries []TreeEntry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&buf, "%s %s\x00", e.Mode, e.Name)
		buf.Write(e.Hash[:])
	}
	return buf.Bytes()
}

// DecodeTree parses the tree content in raw, preserving the input
// bytes verbatim on the returned Tree for round-trip fidelity.
func DecodeTree(raw []byte) (*Tree, error) {
	t := &Tree{raw: raw}
	i := 0
	for i < len(raw) {
		nul := bytes.IndexByte(raw[i:], 0)
		if nul < 0 {
			return nil, fmt.Errorf("object: truncated tree entry header at offset %d", i)
		}
		nul += i
		header := raw[i:nul]
		sp := bytes.IndexByte(header, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("object: malformed tree entry header %q", header)
		}
		mode := Mode(header[:sp])
		name := string(header[sp+1:])
		if nul+1+plumbing.HASH_DIGEST_SIZE > len(raw) {
			return nil, fmt.Errorf("object: truncated tree entry hash for %q", name)
		}
		var h plumbing.Hash
		copy(h[:], raw[nul+1:nul+1+plumbing.HASH_DIGEST_SIZE])
		t.Entries = append(t.Entries, TreeEntry{Mode: mode, Name: name, Hash: h})
		i = nul + 1 + plumbing.HASH_DIGEST_SIZE
	}
	return t, nil
}

// Find returns the entry with the given name, if present.
func (t *Tree) Find(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}
