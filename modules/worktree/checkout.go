package worktree

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gitcore/gitcore/modules/index"
	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
	"golang.org/x/sync/errgroup"
)

// DefaultCheckoutWorkers bounds how many files Checkout materializes
// concurrently; filesystem writes are the bottleneck, not CPU, so a small
// fixed pool is enough to hide syscall latency without saturating disk.
const DefaultCheckoutWorkers = 8

// FileInfo pairs a slash-separated repository path with the tree entry
// that names its content.
type FileInfo struct {
	Path string
	Mode object.Mode
	Hash plumbing.Hash
}

// Checkout replaces the working tree under dir with the contents of
// targetTree: files only present under prevTree are removed (pruning
// parent directories left empty), files in targetTree are written, and a
// fresh index reflecting the checked-out state is returned. prevTree may
// be plumbing.ZeroHash for an initial checkout into an empty directory.
func Checkout(dir string, store ObjectStore, prevTree, targetTree plumbing.Hash) (*index.Index, error) {
	var prev, target map[string]FileInfo
	var err error
	if !prevTree.IsZero() {
		if prev, err = CollectFiles(store, prevTree); err != nil {
			return nil, err
		}
	}
	if target, err = CollectFiles(store, targetTree); err != nil {
		return nil, err
	}

	if err := removeStale(dir, prev, target); err != nil {
		return nil, err
	}

	idx, err := materialize(dir, store, target)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// CollectFiles walks a tree recursively and returns every blob, symlink and
// gitlink entry keyed by its full slash-separated repository path. Subtree
// (directory) entries themselves are not included.
func CollectFiles(store ObjectStore, treeHash plumbing.Hash) (map[string]FileInfo, error) {
	out := make(map[string]FileInfo)
	if err := walkTree(store, treeHash, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkTree(store ObjectStore, treeHash plumbing.Hash, parent string, out map[string]FileInfo) error {
	typ, raw, err := store.GetRaw(treeHash)
	if err != nil {
		return err
	}
	if typ != object.TreeType {
		return fmt.Errorf("worktree: %s is not a tree object", treeHash)
	}
	t, err := object.DecodeTree(raw)
	if err != nil {
		return err
	}
	for _, e := range t.Entries {
		name := path.Join(parent, e.Name)
		if e.Mode.IsDir() {
			if err := walkTree(store, e.Hash, name, out); err != nil {
				return err
			}
			continue
		}
		out[name] = FileInfo{Path: name, Mode: e.Mode, Hash: e.Hash}
	}
	return nil
}

// removeStale deletes every path tracked by prev but absent from target,
// then prunes any parent directory left empty by those removals, up to
// (but not including) dir itself.
func removeStale(dir string, prev, target map[string]FileInfo) error {
	var prunedDirs []string
	for p := range prev {
		if _, ok := target[p]; ok {
			continue
		}
		full := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return err
		}
		prunedDirs = append(prunedDirs, filepath.Dir(full))
	}
	// Longest paths first, so children are pruned before their parents are
	// even considered.
	sort.Slice(prunedDirs, func(i, j int) bool { return len(prunedDirs[i]) > len(prunedDirs[j]) })
	pruned := make(map[string]bool)
	for _, d := range prunedDirs {
		pruneEmptyDirs(dir, d, pruned)
	}
	return nil
}

func pruneEmptyDirs(root, dir string, pruned map[string]bool) {
	for {
		if dir == root || len(dir) <= len(root) || pruned[dir] {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if os.Remove(dir) != nil {
			return
		}
		pruned[dir] = true
		dir = filepath.Dir(dir)
	}
}

// materialize writes every file in target to disk, bounded to
// DefaultCheckoutWorkers concurrent writers, and builds the index entries
// describing the result.
func materialize(dir string, store ObjectStore, target map[string]FileInfo) (*index.Index, error) {
	idx := &index.Index{}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(DefaultCheckoutWorkers)
	for _, fe := range target {
		fe := fe
		g.Go(func() error {
			e, err := writeFile(dir, store, fe)
			if err != nil {
				return err
			}
			mu.Lock()
			idx.Add(e)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return idx, nil
}

func writeFile(dir string, store ObjectStore, fe FileInfo) (*index.Entry, error) {
	full := filepath.Join(dir, filepath.FromSlash(fe.Path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}

	if fe.Mode == object.ModeGitlink {
		// Submodule pointer: fe.Hash names a commit in another
		// repository, never an object this store holds. Nothing is
		// materialized on disk for it.
		return &index.Entry{Path: fe.Path, Hash: fe.Hash, Mode: fe.Mode}, nil
	}

	typ, raw, err := store.GetRaw(fe.Hash)
	if err != nil {
		return nil, err
	}
	if typ != object.BlobType {
		return nil, fmt.Errorf("worktree: %s (%s) is not a blob object", fe.Path, fe.Hash)
	}

	switch fe.Mode {
	case object.ModeSymlink:
		_ = os.Remove(full)
		if err := os.Symlink(string(raw), full); err != nil {
			return nil, err
		}
	default:
		perm := os.FileMode(0o644)
		if fe.Mode == object.ModeExecutable {
			perm = 0o755
		}
		if err := os.WriteFile(full, raw, perm); err != nil {
			return nil, err
		}
	}

	size, mtimeNs, ctimeNs, err := index.StatEntry(full)
	if err != nil {
		return nil, err
	}
	return &index.Entry{
		Path:    fe.Path,
		Hash:    fe.Hash,
		Mode:    fe.Mode,
		Size:    size,
		MTimeNs: mtimeNs,
		CTimeNs: ctimeNs,
	}, nil
}
