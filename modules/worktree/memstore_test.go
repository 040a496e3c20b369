package worktree

import (
	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
)

// memStore is a minimal in-memory ObjectStore for tests.
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
