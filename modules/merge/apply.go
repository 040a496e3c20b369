package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gitcore/gitcore/modules/index"
	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
	"github.com/gitcore/gitcore/modules/worktree"
)

// Result reports the outcome of applying a three-way merge across every
// path two trees and their base disagree on.
type Result struct {
	Updated         []string
	Deleted         []string
	Conflicts       []string
	BinaryConflicts []string
}

// Clean reports whether the merge produced no conflicts of either kind.
func (r *Result) Clean() bool {
	return len(r.Conflicts) == 0 && len(r.BinaryConflicts) == 0
}

// Apply runs the three-way merge classifier over every path present in
// any of baseTree, oursTree, theirsTree (any of which may be
// plumbing.ZeroHash for "absent everywhere"), writing the outcome to dir
// and returning the index that matches it. Clean paths are written
// outright; text conflicts get marker blocks; binary conflicts keep
// ours' bytes (or theirs' if ours is absent) with no markers, per the
// binary-conflict rule in IsBinary's caller below.
func Apply(dir string, store worktree.ObjectStore, baseTree, oursTree, theirsTree plumbing.Hash, oursLabel, theirsLabel string) (*index.Index, *Result, error) {
	baseFiles, err := filesOrEmpty(store, baseTree)
	if err != nil {
		return nil, nil, err
	}
	oursFiles, err := filesOrEmpty(store, oursTree)
	if err != nil {
		return nil, nil, err
	}
	theirsFiles, err := filesOrEmpty(store, theirsTree)
	if err != nil {
		return nil, nil, err
	}

	paths := unionKeys(baseFiles, oursFiles, theirsFiles)
	sort.Strings(paths)

	idx := &index.Index{}
	result := &Result{}

	for _, p := range paths {
		baseSide, err := readSide(store, baseFiles, p)
		if err != nil {
			return nil, nil, err
		}
		oursSide, err := readSide(store, oursFiles, p)
		if err != nil {
			return nil, nil, err
		}
		theirsSide, err := readSide(store, theirsFiles, p)
		if err != nil {
			return nil, nil, err
		}

		c := classify(baseSide, oursSide, theirsSide)
		full := filepath.Join(dir, filepath.FromSlash(p))

		if !c.conflict {
			if !c.result.present {
				if err := removeMergedPath(dir, full); err != nil {
					return nil, nil, err
				}
				result.Deleted = append(result.Deleted, p)
				continue
			}
			mode := object.ModeFile
			switch {
			case oursSide.present:
				mode = oursFiles[p].Mode
			case theirsSide.present:
				mode = theirsFiles[p].Mode
			}
			e, err := writeMergedFile(store, full, p, mode, c.result.content)
			if err != nil {
				return nil, nil, err
			}
			idx.Add(e)
			result.Updated = append(result.Updated, p)
			continue
		}

		oursBin := oursSide.present && IsBinary(oursSide.content)
		theirsBin := theirsSide.present && IsBinary(theirsSide.content)
		if oursBin || theirsBin {
			content := oursSide.content
			mode := oursFiles[p].Mode
			if !oursSide.present {
				content = theirsSide.content
				mode = theirsFiles[p].Mode
			}
			if mode == "" {
				mode = object.ModeFile
			}
			e, err := writeMergedFile(store, full, p, mode, content)
			if err != nil {
				return nil, nil, err
			}
			idx.Add(e)
			result.BinaryConflicts = append(result.BinaryConflicts, p)
			continue
		}

		marker := ConflictMarkers(oursLabel, oursSide.content, theirsLabel, theirsSide.content)
		mode := oursFiles[p].Mode
		if mode == "" {
			mode = theirsFiles[p].Mode
		}
		if mode == "" {
			mode = object.ModeFile
		}
		e, err := writeMergedFile(store, full, p, mode, marker)
		if err != nil {
			return nil, nil, err
		}
		idx.Add(e)
		result.Conflicts = append(result.Conflicts, p)
	}

	return idx, result, nil
}

func filesOrEmpty(store worktree.ObjectStore, tree plumbing.Hash) (map[string]worktree.FileInfo, error) {
	if tree.IsZero() {
		return map[string]worktree.FileInfo{}, nil
	}
	return worktree.CollectFiles(store, tree)
}

func unionKeys(maps ...map[string]worktree.FileInfo) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range maps {
		for p := range m {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

func readSide(store worktree.ObjectStore, files map[string]worktree.FileInfo, p string) (side, error) {
	fi, ok := files[p]
	if !ok {
		return absent(), nil
	}
	if fi.Mode == object.ModeGitlink {
		return present(append([]byte(nil), fi.Hash[:]...)), nil
	}
	typ, raw, err := store.GetRaw(fi.Hash)
	if err != nil {
		return side{}, err
	}
	if typ != object.BlobType {
		return side{}, fmt.Errorf("merge: %s (%s) is not a blob object", p, fi.Hash)
	}
	return present(raw), nil
}

func writeMergedFile(store worktree.ObjectStore, full, p string, mode object.Mode, content []byte) (*index.Entry, error) {
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}

	var hash plumbing.Hash
	if mode == object.ModeGitlink {
		copy(hash[:], content)
	} else {
		h, err := store.Put(object.BlobType, content)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	switch mode {
	case object.ModeSymlink:
		_ = os.Remove(full)
		if err := os.Symlink(string(content), full); err != nil {
			return nil, err
		}
	case object.ModeGitlink:
		// Submodule pointer: nothing to materialize on disk.
	default:
		perm := os.FileMode(0o644)
		if mode == object.ModeExecutable {
			perm = 0o755
		}
		if err := os.WriteFile(full, content, perm); err != nil {
			return nil, err
		}
	}
	if mode == object.ModeGitlink {
		return &index.Entry{Path: p, Hash: hash, Mode: mode}, nil
	}
	size, mtimeNs, ctimeNs, err := index.StatEntry(full)
	if err != nil {
		return nil, err
	}
	return &index.Entry{
		Path:    p,
		Hash:    hash,
		Mode:    mode,
		Size:    size,
		MTimeNs: mtimeNs,
		CTimeNs: ctimeNs,
	}, nil
}

func removeMergedPath(root, full string) error {
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	dir := filepath.Dir(full)
	for {
		if dir == root || len(dir) <= len(root) {
			return nil
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return nil
		}
		if os.Remove(dir) != nil {
			return nil
		}
		dir = filepath.Dir(dir)
	}
}
