// Package worktree materializes the three-way relationship between a
// commit's tree, the staging index, and the working directory: building a
// tree object from the index, and checking a tree back out onto disk.
package worktree

import (
	"fmt"
	"path"
	"strings"

	"github.com/emirpasic/gods/v2/trees/redblacktree"
	"github.com/gitcore/gitcore/modules/index"
	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
)

// ObjectStore is the subset of modules/odb.Database the tree builder and
// checkout need: existence checks plus the ability to read and write
// content-addressed objects.
type ObjectStore interface {
	Exists(oid plumbing.Hash) bool
	GetRaw(oid plumbing.Hash) (object.Type, []byte, error)
	Put(t object.Type, content []byte) (plumbing.Hash, error)
}

const rootPath = ""

// pendingTree collects the entries destined for one directory, in a
// red-black tree ordered by plain name. That order is not always the
// canonical one (subtree names compare as if they ended in "/"), so
// object.NewTree's encoding sorts the entries again.
type pendingTree struct {
	children *redblacktree.Tree[string, *pendingEntry]
}

type pendingEntry struct {
	mode object.Mode
	hash plumbing.Hash
	size int64
	sub  *pendingTree // non-nil for directories, still being assembled
}

func newPendingTree() *pendingTree {
	return &pendingTree{children: redblacktree.New[string, *pendingEntry]()}
}

// BuildTree builds the tree object graph described by idx and returns the
// root tree's hash. Paths are grouped by directory and subtrees are
// emitted bottom-up once every child of a directory is known, so the
// resulting root hash depends only on the index's content, never on
// insertion order.
func BuildTree(store ObjectStore, idx *index.Index) (plumbing.Hash, error) {
	root := newPendingTree()
	for _, e := range idx.Entries {
		if err := insertEntry(root, e); err != nil {
			return plumbing.ZeroHash, err
		}
	}
	return root.flush(store)
}

func insertEntry(root *pendingTree, e *index.Entry) error {
	parts := strings.Split(e.Path, "/")
	cur := root
	for i, part := range parts {
		last := i == len(parts)-1
		existing, ok := cur.children.Get(part)
		if !last {
			if !ok {
				existing = &pendingEntry{mode: object.ModeDir, sub: newPendingTree()}
				cur.children.Put(part, existing)
			} else if existing.sub == nil {
				return fmt.Errorf("worktree: %q is both a file and a directory in the index", path.Join(parts[:i+1]...))
			}
			cur = existing.sub
			continue
		}
		if ok {
			return fmt.Errorf("worktree: duplicate index path %q", e.Path)
		}
		cur.children.Put(part, &pendingEntry{mode: e.Mode, hash: e.Hash, size: int64(e.Size)})
	}
	return nil
}

// flush recursively writes every subtree, deepest first, and returns the
// hash of the tree rooted here.
func (pt *pendingTree) flush(store ObjectStore) (plumbing.Hash, error) {
	var entries []object.TreeEntry
	for _, name := range pt.children.Keys() {
		child, _ := pt.children.Get(name)
		if child.sub != nil {
			h, err := child.sub.flush(store)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			child.hash = h
		}
		entries = append(entries, object.TreeEntry{Mode: child.mode, Name: name, Hash: child.hash})
	}
	t := object.NewTree(entries)
	var buf strings.Builder
	if _, err := t.Encode(&buf); err != nil {
		return plumbing.ZeroHash, err
	}
	raw := []byte(buf.String())

	oid := hashObject(object.TreeType, raw)
	if store.Exists(oid) {
		return oid, nil
	}
	return store.Put(object.TreeType, raw)
}

// hashObject computes the content address of an object without writing
// it, letting the caller skip a redundant store.Put for a tree that's
// already present (the common case when only a few paths in a large
// index changed).
func hashObject(t object.Type, content []byte) plumbing.Hash {
	hasher := plumbing.NewHasher()
	hasher.Write([]byte(object.Header(t, int64(len(content)))))
	hasher.Write(content)
	return hasher.Sum()
}
