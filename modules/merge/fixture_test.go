package merge

import (
	"bytes"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
)

// memStore is a minimal in-memory worktree.ObjectStore for tests.
type memStore struct {
	objs map[plumbing.Hash]rawObject
}

type rawObject struct {
	typ  object.Type
	data []byte
}

func newMemStore() *memStore {
	return &memStore{objs: make(map[plumbing.Hash]rawObject)}
}

func (s *memStore) Exists(oid plumbing.Hash) bool {
	_, ok := s.objs[oid]
	return ok
}

func (s *memStore) GetRaw(oid plumbing.Hash) (object.Type, []byte, error) {
	o, ok := s.objs[oid]
	if !ok {
		return object.InvalidType, nil, plumbing.NoSuchObject(oid)
	}
	return o.typ, o.data, nil
}

func (s *memStore) Put(t object.Type, content []byte) (plumbing.Hash, error) {
	oid := hashObject(t, content)
	if _, ok := s.objs[oid]; !ok {
		s.objs[oid] = rawObject{typ: t, data: content}
	}
	return oid, nil
}

func (s *memStore) putBlob(content string) plumbing.Hash {
	oid, _ := s.Put(object.BlobType, []byte(content))
	return oid
}

// putTree stores a flat single-level tree from path -> blob content,
// returning its hash. Good enough for the file-level merge tests in this
// package, which don't need nested directories.
func (s *memStore) putTree(files map[string]string) plumbing.Hash {
	var entries []object.TreeEntry
	for name, content := range files {
		entries = append(entries, object.TreeEntry{
			Mode: object.ModeFile,
			Name: name,
			Hash: s.putBlob(content),
		})
	}
	t := object.NewTree(entries)
	var buf bytes.Buffer
	t.Encode(&buf)
	oid, _ := s.Put(object.TreeType, buf.Bytes())
	return oid
}

func (s *memStore) putCommit(c *object.Commit) plumbing.Hash {
	var buf bytes.Buffer
	c.Encode(&buf)
	oid, _ := s.Put(object.CommitType, buf.Bytes())
	return oid
}

func sig(name string) object.Signature {
	return object.Signature{Name: name, Email: name + "@example.com", When: 1700000000, TZOffset: "+0000"}
}

func hashObject(t object.Type, content []byte) plumbing.Hash {
	hasher := plumbing.NewHasher()
	hasher.Write([]byte(object.Header(t, int64(len(content)))))
	hasher.Write(content)
	return hasher.Sum()
}
