// Package odb implements the object database: loose object storage, the
// pack-backed storage layer (modules/pack), and a unified store composing
// both with ambiguity-safe prefix resolution.
package odb

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
	"github.com/klauspost/compress/zlib"
)

// LooseStorage stores objects one-per-file under a two-level fanout
// directory (<aa>/<bb...>), zlib-compressed, written atomically via a
// temp-file-plus-rename so a reader never observes a partially written
// object.
type LooseStorage struct {
	root string
}

func NewLooseStorage(root string) *LooseStorage {
	return &LooseStorage{root: root}
}

func (s *LooseStorage) path(oid plumbing.Hash) string {
	hex := oid.String()
	return filepath.Join(s.root, hex[:2], hex[2:])
}

// Exists reports whether oid is present without reading its content.
func (s *LooseStorage) Exists(oid plumbing.Hash) bool {
	_, err := os.Stat(s.path(oid))
	return err == nil
}

// Open returns a decompressing reader over oid's raw content: the header
// ("<type> <size>\x00") followed by the object's bytes.
func (s *LooseStorage) Open(oid plumbing.Hash) (io.ReadCloser, error) {
	f, err := os.Open(s.path(oid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, plumbing.NoSuchObject(oid)
		}
		return nil, err
	}
	zr, err := zlib.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("odb: corrupt loose object %s: %w", oid, err)
	}
	return &looseReadCloser{zr: zr, f: f}, nil
}

type looseReadCloser struct {
	zr io.ReadCloser
	f  *os.File
}

func (r *looseReadCloser) Read(p []byte) (int, error) { return r.zr.Read(p) }

func (r *looseReadCloser) Close() error {
	zErr := r.zr.Close()
	fErr := r.f.Close()
	if zErr != nil {
		return zErr
	}
	return fErr
}

// Put writes content under the canonical header for t, returning its
// object name. Writing is idempotent: if the object already exists, Put
// returns its hash without touching the file again.
func (s *LooseStorage) Put(t object.Type, content []byte) (plumbing.Hash, error) {
	hasher := plumbing.NewHasher()
	hasher.Write([]byte(object.Header(t, int64(len(content)))))
	hasher.Write(content)
	oid := hasher.Sum()

	if s.Exists(oid) {
		return oid, nil
	}

	dir := filepath.Join(s.root, oid.String()[:2])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return plumbing.ZeroHash, err
	}

	tmp, err := os.CreateTemp(dir, "tmp-obj-")
	if err != nil {
		return plumbing.ZeroHash, err
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	zw := zlib.NewWriter(tmp)
	if _, err := zw.Write([]byte(object.Header(t, int64(len(content))))); err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := zw.Write(content); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := zw.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := tmp.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	success = true

	if err := os.Rename(tmpName, s.path(oid)); err != nil {
		return plumbing.ZeroHash, err
	}
	return oid, nil
}

// ReadRaw loads and fully decompresses oid, splitting the canonical header
// from its content.
func (s *LooseStorage) ReadRaw(oid plumbing.Hash) (object.Type, []byte, error) {
	r, err := s.Open(oid)
	if err != nil {
		return object.InvalidType, nil, err
	}
	defer r.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return object.InvalidType, nil, err
	}
	return splitHeader(buf.Bytes())
}

func splitHeader(raw []byte) (object.Type, []byte, error) {
	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return object.InvalidType, nil, fmt.Errorf("odb: object missing header terminator")
	}
	var typStr string
	var size int64
	if _, err := fmt.Sscanf(string(raw[:nul]), "%s %d", &typStr, &size); err != nil {
		return object.InvalidType, nil, fmt.Errorf("odb: malformed object header %q: %w", raw[:nul], err)
	}
	content := raw[nul+1:]
	if int64(len(content)) != size {
		return object.InvalidType, nil, fmt.Errorf("odb: object size mismatch: header says %d, got %d", size, len(content))
	}
	return object.TypeFromString(typStr), content, nil
}

// IterateAll walks the fanout directories and calls fn once per loose
// object found, in no particular order.
func (s *LooseStorage) IterateAll(fn func(plumbing.Hash) error) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, dirEnt := range entries {
		if !dirEnt.IsDir() || !plumbing.IsLooseDir(dirEnt.Name()) {
			continue
		}
		sub, err := os.ReadDir(filepath.Join(s.root, dirEnt.Name()))
		if err != nil {
			return err
		}
		for _, f := range sub {
			if f.IsDir() {
				continue
			}
			oid, err := plumbing.NewHashEx(dirEnt.Name() + f.Name())
			if err != nil {
				continue
			}
			if err := fn(oid); err != nil {
				return err
			}
		}
	}
	return nil
}

// Remove deletes oid's loose copy. Used by a gc repack once oid's bytes
// are safely duplicated into a new pack; a missing file is not an error,
// since two repacks racing over the same loose object is harmless.
func (s *LooseStorage) Remove(oid plumbing.Hash) error {
	if err := os.Remove(s.path(oid)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
