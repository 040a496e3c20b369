package pack

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
)

// Set is a collection of packs discovered under a pack directory
// (conventionally <repo>/.git/objects/pack), each opened once and kept for
// the lifetime of the Set.
type Set struct {
	dir   string
	packs []*openPack
}

type openPack struct {
	name string
	pack *Pack
	file *os.File
}

// NewSet scans dir for "*.pack" files with a matching "*.idx" sidecar and
// opens every pair found. Directories that don't exist yet yield an empty,
// usable Set (a freshly initialized repository has no packs).
func NewSet(dir string) (*Set, error) {
	s := &Set{dir: dir}
	if err := s.Rescan(); err != nil {
		return nil, err
	}
	return s, nil
}

// Rescan re-reads the pack directory, opening any pack not already held
// and closing any that disappeared. Existing open packs are left alone so
// in-flight memoized delta resolutions survive a rescan.
func (s *Set) Rescan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	have := make(map[string]bool, len(s.packs))
	for _, p := range s.packs {
		have[p.name] = true
	}

	var kept []*openPack
	seen := make(map[string]bool)
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".pack") {
			continue
		}
		base := strings.TrimSuffix(ent.Name(), ".pack")
		seen[base] = true
		if have[base] {
			for _, p := range s.packs {
				if p.name == base {
					kept = append(kept, p)
					break
				}
			}
			continue
		}
		op, err := openPackFiles(s.dir, base)
		if err != nil {
			return err
		}
		kept = append(kept, op)
	}
	for _, p := range s.packs {
		if !seen[p.name] {
			p.file.Close()
		}
	}
	s.packs = kept
	return nil
}

func openPackFiles(dir, base string) (*openPack, error) {
	packPath := filepath.Join(dir, base+".pack")
	idxPath := filepath.Join(dir, base+".idx")

	pf, err := os.Open(packPath)
	if err != nil {
		return nil, fmt.Errorf("pack: opening %s: %w", packPath, err)
	}
	if _, err := ReadHeader(pf); err != nil {
		pf.Close()
		return nil, err
	}

	idxFile, err := os.Open(idxPath)
	if err != nil {
		pf.Close()
		return nil, fmt.Errorf("pack: opening %s: %w", idxPath, err)
	}
	defer idxFile.Close()
	idxFi, err := idxFile.Stat()
	if err != nil {
		pf.Close()
		return nil, err
	}
	idx, err := DecodeIndex(idxFile, idxFi.Size())
	if err != nil {
		pf.Close()
		return nil, err
	}

	return &openPack{name: base, pack: Open(pf, idx), file: pf}, nil
}

// Exists reports whether oid is present in any pack in the set.
func (s *Set) Exists(oid plumbing.Hash) bool {
	for _, p := range s.packs {
		if p.pack.Exists(oid) {
			return true
		}
	}
	return false
}

// GetRaw resolves oid against every pack in the set, following delta
// chains (via resolver for cross-pack REF_DELTA bases).
func (s *Set) GetRaw(oid plumbing.Hash, resolver BaseResolver) (object.Type, []byte, error) {
	for _, p := range s.packs {
		if typ, content, err := p.pack.GetRaw(oid, resolver); err == nil {
			return typ, content, nil
		} else if !plumbing.IsNoSuchObject(err) {
			return object.InvalidType, nil, err
		}
	}
	return object.InvalidType, nil, plumbing.NoSuchObject(oid)
}

// ResolvePrefix collects every object name across all packs starting with
// prefix.
func (s *Set) ResolvePrefix(prefix []byte) ([]plumbing.Hash, error) {
	var matches []plumbing.Hash
	for _, p := range s.packs {
		var err error
		matches, err = p.pack.idx.ResolvePrefix(prefix, matches)
		if err != nil {
			return nil, err
		}
	}
	return matches, nil
}

func (s *Set) Close() error {
	var firstErr error
	for _, p := range s.packs {
		if err := p.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Names returns the base name (without extension) of every open pack.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.packs))
	for _, p := range s.packs {
		names = append(names, p.name)
	}
	return names
}
