package gc

import (
	"bytes"
	"testing"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
)

// fakeStore is a minimal in-memory gc.Store fixture: every object is
// already present (as if partly loose, partly packed - Repack doesn't
// care which), and WritePack/RemoveLoose just record what they were
// asked to do instead of touching a filesystem.
type fakeStore struct {
	objs    map[plumbing.Hash]rawObject
	packed  []plumbing.Hash
	removed map[plumbing.Hash]bool
}

type rawObject struct {
	typ  object.Type
	data []byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objs: make(map[plumbing.Hash]rawObject), removed: make(map[plumbing.Hash]bool)}
}

func (s *fakeStore) GetRaw(oid plumbing.Hash) (object.Type, []byte, error) {
	o, ok := s.objs[oid]
	if !ok {
		return object.InvalidType, nil, plumbing.NoSuchObject(oid)
	}
	return o.typ, o.data, nil
}

func (s *fakeStore) WritePack(objectIDs []plumbing.Hash) (plumbing.Hash, error) {
	s.packed = append(s.packed, objectIDs...)
	return hashObject(object.BlobType, []byte("pack")), nil
}

func (s *fakeStore) RemoveLoose(oid plumbing.Hash) error {
	s.removed[oid] = true
	return nil
}

func (s *fakeStore) put(t object.Type, content []byte) plumbing.Hash {
	oid := hashObject(t, content)
	s.objs[oid] = rawObject{typ: t, data: content}
	return oid
}

func (s *fakeStore) putBlob(content string) plumbing.Hash {
	return s.put(object.BlobType, []byte(content))
}

func (s *fakeStore) putTree(entries []object.TreeEntry) plumbing.Hash {
	t := object.NewTree(entries)
	var buf bytes.Buffer
	t.Encode(&buf)
	return s.put(object.TreeType, buf.Bytes())
}

func (s *fakeStore) putCommit(tree plumbing.Hash, parents ...plumbing.Hash) plumbing.Hash {
	c := &object.Commit{
		TreeHash:  tree,
		Parents:   parents,
		Author:    sig(),
		Committer: sig(),
		Message:   "m",
	}
	var buf bytes.Buffer
	c.Encode(&buf)
	return s.put(object.CommitType, buf.Bytes())
}

func (s *fakeStore) putTag(target plumbing.Hash, targetType object.Type, name string) plumbing.Hash {
	t := &object.Tag{
		Object:     target,
		ObjectType: targetType,
		Name:       name,
		Tagger:     sig(),
		Message:    "tag message\n",
	}
	var buf bytes.Buffer
	t.Encode(&buf)
	return s.put(object.TagType, buf.Bytes())
}

func sig() object.Signature {
	return object.Signature{Name: "a", Email: "a@example.com", When: 1700000000, TZOffset: "+0000"}
}

func hashObject(t object.Type, content []byte) plumbing.Hash {
	hasher := plumbing.NewHasher()
	hasher.Write([]byte(object.Header(t, int64(len(content)))))
	hasher.Write(content)
	return hasher.Sum()
}

// fakeRefStore is a minimal in-memory gc.RefStore fixture.
type fakeRefStore struct {
	refs []*plumbing.Reference
}

func (s *fakeRefStore) All() ([]*plumbing.Reference, error) {
	return s.refs, nil
}

func branchRef(name string, h plumbing.Hash) *plumbing.Reference {
	return plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), h)
}

func tagRef(name string, h plumbing.Hash) *plumbing.Reference {
	return plumbing.NewHashReference(plumbing.NewTagReferenceName(name), h)
}

func contains(hashes []plumbing.Hash, want plumbing.Hash) bool {
	for _, h := range hashes {
		if h == want {
			return true
		}
	}
	return false
}
