// Package refs implements reference storage: HEAD (symbolic or detached),
// loose refs under refs/, the packed-refs fallback, and compare-and-swap
// updates mediated by sibling ".lock" files.
package refs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gitcore/gitcore/modules/plumbing"
)

const (
	packedRefsName      = "packed-refs"
	tmpPackedRefsPrefix = "._packed-refs"
)

// Store is a filesystem-backed reference store rooted at a repository's
// control directory (the ".<vcs>" directory, e.g. ".git").
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

// HEAD reads the HEAD pseudo-ref: either a symbolic reference to a branch,
// or a detached hash reference.
func (s *Store) HEAD() (*plumbing.Reference, error) {
	return s.readReferenceFile(string(plumbing.HEAD))
}

// Reference resolves name, preferring the loose file over packed-refs if
// both exist (the loose value always wins).
func (s *Store) Reference(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	if ref, err := s.readReferenceFile(string(name)); err == nil {
		return ref, nil
	}
	return s.packedRef(name)
}

func (s *Store) readReferenceFile(name string) (*plumbing.Reference, error) {
	p := filepath.Join(s.root, filepath.FromSlash(name))
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, plumbing.ErrReferenceNotFound
		}
		return nil, err
	}
	line := strings.TrimSpace(string(data))
	return plumbing.NewReferenceFromStrings(name, line), nil
}

func (s *Store) packedRef(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	fd, err := os.Open(filepath.Join(s.root, packedRefsName))
	if os.IsNotExist(err) {
		return nil, plumbing.ErrReferenceNotFound
	}
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	sc := bufio.NewScanner(fd)
	for sc.Scan() {
		ref, err := matchPackedRefLine(sc.Text(), string(name))
		if err != nil {
			return nil, err
		}
		if ref != nil {
			return ref, nil
		}
	}
	return nil, plumbing.ErrReferenceNotFound
}

func processPackedRefLine(line string) (*plumbing.Reference, error) {
	if len(line) == 0 {
		return nil, nil
	}
	switch line[0] {
	case '#', '^':
		return nil, nil
	default:
		target, name, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("refs: malformed packed-refs line %q", line)
		}
		return plumbing.NewReferenceFromStrings(name, target), nil
	}
}

func matchPackedRefLine(line, want string) (*plumbing.Reference, error) {
	ref, err := processPackedRefLine(line)
	if err != nil || ref == nil {
		return nil, err
	}
	if ref.Name().String() != want {
		return nil, nil
	}
	return ref, nil
}

func openLock(name string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_RDWR|os.O_TRUNC, 0o644)
}

// checkReference verifies, for a CAS update, that the current value of
// old.Name() is old itself; a nil old skips the check (unconditional
// update).
func (s *Store) checkReference(old *plumbing.Reference) error {
	if old == nil {
		return nil
	}
	cur, err := s.Reference(old.Name())
	if err != nil {
		return err
	}
	if cur.Hash() != old.Hash() {
		return fmt.Errorf("refs: %s has changed concurrently", old.Name())
	}
	return nil
}

// validateReferenceName rejects names git itself would refuse to create:
// branches and tags additionally forbid a leading "-" (ValidateBranchName/
// ValidateTagName), everything else (HEAD, remote-tracking refs, and any
// other refs/ namespace) goes through the general reference-name grammar.
func validateReferenceName(n plumbing.ReferenceName) error {
	var ok bool
	switch {
	case n.IsBranch():
		ok = plumbing.ValidateBranchName([]byte(n.BranchName()))
	case n.IsTag():
		ok = plumbing.ValidateTagName([]byte(n.TagName()))
	default:
		ok = plumbing.ValidateReferenceName([]byte(n))
	}
	if !ok {
		return &plumbing.ErrBadReferenceName{Name: n.String()}
	}
	return nil
}

// Update writes r atomically via a sibling ".lock" file. If old is
// non-nil, the write is a compare-and-swap: it fails unless the ref's
// current value equals old.
func (s *Store) Update(r, old *plumbing.Reference) error {
	if err := validateReferenceName(r.Name()); err != nil {
		return err
	}

	var content string
	switch r.Type() {
	case plumbing.SymbolicReference:
		content = fmt.Sprintf("ref: %s\n", r.Target())
	case plumbing.HashReference:
		content = r.Hash().String() + "\n"
	default:
		return fmt.Errorf("refs: cannot write reference of type %s", r.Type())
	}

	fileName := filepath.Join(s.root, filepath.FromSlash(r.Name().String()))
	lockName := fileName + ".lock"
	fd, err := openLock(lockName)
	if err != nil {
		if os.IsExist(err) {
			return plumbing.NewErrResourceLocked("reference", r.Name())
		}
		return err
	}
	defer os.Remove(lockName)

	if err := s.checkReference(old); err != nil {
		fd.Close()
		return err
	}
	if _, err := fd.WriteString(content); err != nil {
		fd.Close()
		return err
	}
	if err := fd.Close(); err != nil {
		return err
	}
	return os.Rename(lockName, fileName)
}

// SetSymbolicHEAD points HEAD at branch without touching the branch
// itself.
func (s *Store) SetSymbolicHEAD(branch plumbing.ReferenceName) error {
	return s.Update(plumbing.NewSymbolicReference(plumbing.HEAD, branch), nil)
}

// SetDetachedHEAD points HEAD directly at a commit hash.
func (s *Store) SetDetachedHEAD(h plumbing.Hash) error {
	return s.Update(plumbing.NewHashReference(plumbing.HEAD, h), nil)
}

// Remove deletes name, both its loose file (if any) and its packed-refs
// entry (if any).
func (s *Store) Remove(name plumbing.ReferenceName) error {
	fileName := filepath.Join(s.root, filepath.FromSlash(name.String()))
	lockName := fileName + ".lock"
	fd, err := openLock(lockName)
	if err != nil {
		if os.IsExist(err) {
			return plumbing.NewErrResourceLocked("reference", name)
		}
		return err
	}
	fd.Close()
	defer func() {
		os.Remove(lockName)
		_ = s.prune()
	}()

	if err := os.Remove(fileName); err != nil && !os.IsNotExist(err) {
		return err
	}
	return s.lockPackedRefs(func() error {
		return s.rewritePackedRefsWithout(name)
	})
}

func (s *Store) lockPackedRefs(fn func() error) error {
	lockName := filepath.Join(s.root, packedRefsName+".lock")
	fd, err := openLock(lockName)
	if err != nil {
		if os.IsExist(err) {
			return plumbing.NewErrResourceLocked("reference", "packed-refs")
		}
		return err
	}
	err = fn()
	fd.Close()
	os.Remove(lockName)
	return err
}

func (s *Store) rewritePackedRefsWithout(name plumbing.ReferenceName) error {
	packedRefs := filepath.Join(s.root, packedRefsName)
	fd, err := os.Open(packedRefs)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer fd.Close()

	tmp, err := os.CreateTemp(s.root, tmpPackedRefsPrefix)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	tmp.Chmod(0o644)

	sc := bufio.NewScanner(fd)
	found := false
	for sc.Scan() {
		line := sc.Text()
		ref, err := processPackedRefLine(line)
		if err != nil {
			tmp.Close()
			return err
		}
		if ref != nil && ref.Name() == name {
			found = true
			continue
		}
		if _, err := fmt.Fprintln(tmp, line); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := sc.Err(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if !found {
		return nil
	}
	return os.Rename(tmpName, packedRefs)
}

// All lists every reference, loose refs taking precedence over any
// packed-refs entry of the same name.
func (s *Store) All() ([]*plumbing.Reference, error) {
	cache := make(map[plumbing.ReferenceName]*plumbing.Reference)
	var ordered []*plumbing.Reference

	var walk func(prefix string) error
	walk = func(prefix string) error {
		entries, err := os.ReadDir(filepath.Join(s.root, filepath.FromSlash(prefix)))
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		for _, ent := range entries {
			next := prefix + "/" + ent.Name()
			if ent.IsDir() {
				if err := walk(next); err != nil {
					return err
				}
				continue
			}
			ref, err := s.readReferenceFile(next)
			if err != nil {
				continue
			}
			if _, ok := cache[ref.Name()]; !ok {
				cache[ref.Name()] = ref
				ordered = append(ordered, ref)
			}
		}
		return nil
	}
	if err := walk("refs"); err != nil {
		return nil, err
	}

	fd, err := os.Open(filepath.Join(s.root, packedRefsName))
	if err == nil {
		defer fd.Close()
		sc := bufio.NewScanner(fd)
		for sc.Scan() {
			ref, err := processPackedRefLine(sc.Text())
			if err != nil {
				return nil, err
			}
			if ref == nil {
				continue
			}
			if _, ok := cache[ref.Name()]; !ok {
				cache[ref.Name()] = ref
				ordered = append(ordered, ref)
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	sort.Sort(plumbing.ReferenceSlice(ordered))
	return ordered, nil
}

var pruneKeeps = map[string]bool{"heads": true, "tags": true, "remotes": true}

func (s *Store) prune() error {
	refsPath := filepath.Join(s.root, "refs")
	entries, err := os.ReadDir(refsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := pruneEmptyDirs(filepath.Join(refsPath, e.Name()), pruneKeeps[e.Name()]); err != nil {
			return err
		}
	}
	return nil
}

func pruneEmptyDirs(dir string, keep bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	empty := true
	for _, e := range entries {
		if !e.IsDir() {
			empty = false
			continue
		}
		if err := pruneEmptyDirs(filepath.Join(dir, e.Name()), false); err != nil {
			return err
		}
	}
	if !empty || keep {
		return nil
	}
	return os.Remove(dir)
}
