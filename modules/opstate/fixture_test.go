package opstate

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
	"github.com/gitcore/gitcore/modules/refs"
)

func checkFile(t *testing.T, dir, path, want string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, path))
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if string(data) != want {
		t.Fatalf("%s: got %q, want %q", path, data, want)
	}
}

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

func (s *memStore) commit(tree plumbing.Hash, message string, parents ...plumbing.Hash) plumbing.Hash {
	c := &object.Commit{
		TreeHash:  tree,
		Parents:   parents,
		Author:    sig("a"),
		Committer: sig("a"),
		Message:   message,
	}
	return s.putCommit(c)
}

func newCommitFunc(s *memStore) CommitFunc {
	return func(tree plumbing.Hash, parents []plumbing.Hash, message string) (plumbing.Hash, error) {
		c := &object.Commit{
			TreeHash:  tree,
			Parents:   parents,
			Author:    sig("committer"),
			Committer: sig("committer"),
			Message:   message,
		}
		return s.putCommit(c), nil
	}
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

// fakeRefStore is a minimal in-memory RefStore for tests.
type fakeRefStore struct {
	refs map[plumbing.ReferenceName]*plumbing.Reference
}

func newFakeRefStore() *fakeRefStore {
	return &fakeRefStore{refs: make(map[plumbing.ReferenceName]*plumbing.Reference)}
}

func (s *fakeRefStore) HEAD() (*plumbing.Reference, error) {
	return s.Reference(plumbing.HEAD)
}

func (s *fakeRefStore) Reference(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	r, ok := s.refs[name]
	if !ok {
		return nil, plumbing.ErrReferenceNotFound
	}
	if r.Type() == plumbing.SymbolicReference {
		return s.Reference(r.Target())
	}
	return r, nil
}

func (s *fakeRefStore) Update(r, old *plumbing.Reference) error {
	if old != nil {
		cur, ok := s.refs[old.Name()]
		if !ok || cur.Hash() != old.Hash() {
			return plumbing.ErrReferenceNotFound
		}
	}
	s.refs[r.Name()] = r
	return nil
}

func (s *fakeRefStore) Remove(name plumbing.ReferenceName) error {
	delete(s.refs, name)
	return nil
}

func (s *fakeRefStore) SetSymbolicHEAD(branch plumbing.ReferenceName) error {
	s.refs[plumbing.HEAD] = plumbing.NewSymbolicReference(plumbing.HEAD, branch)
	return nil
}

func (s *fakeRefStore) SetDetachedHEAD(h plumbing.Hash) error {
	s.refs[plumbing.HEAD] = plumbing.NewHashReference(plumbing.HEAD, h)
	return nil
}

// fakeReflogStore is a minimal in-memory ReflogStore for tests. Since
// refs.Reflog doesn't expose the ref name it belongs to, each Read's
// result pointer is tracked in pending so the matching Write knows where
// to store it; every real caller in this package reads, mutates in place
// (Push/Drop), then writes the same pointer straight back.
type fakeReflogStore struct {
	logs    map[plumbing.ReferenceName][]*refs.ReflogEntry
	pending map[*refs.Reflog]plumbing.ReferenceName
}

func newFakeReflogStore() *fakeReflogStore {
	return &fakeReflogStore{
		logs:    make(map[plumbing.ReferenceName][]*refs.ReflogEntry),
		pending: make(map[*refs.Reflog]plumbing.ReferenceName),
	}
}

func (s *fakeReflogStore) Read(name plumbing.ReferenceName) (*refs.Reflog, error) {
	l := &refs.Reflog{}
	if entries, ok := s.logs[name]; ok {
		l.Entries = append([]*refs.ReflogEntry(nil), entries...)
	}
	s.pending[l] = name
	return l, nil
}

func (s *fakeReflogStore) Write(l *refs.Reflog) error {
	name, ok := s.pending[l]
	if !ok {
		return plumbing.ErrReferenceNotFound
	}
	s.logs[name] = l.Entries
	return nil
}

func newRepo(store *memStore, rs *fakeRefStore, rl *fakeReflogStore, root, workDir string) *Repo {
	return &Repo{Root: root, WorkDir: workDir, Store: store, Refs: rs, Reflogs: rl}
}
