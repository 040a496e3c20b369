package graph

import (
	"errors"
	"io"

	"github.com/gitcore/gitcore/modules/plumbing"
)

// Walker is a restartable, finite DFS iterator over a commit's history.
// Each commit is visited at most once; a seen-set of hashes and an
// explicit stack of pending hashes (not a recursive call stack) are all
// the state it carries between calls to Next, so a walk can be paused and
// resumed freely.
type Walker struct {
	loader          CommitLoader
	firstParentOnly bool
	seen            map[plumbing.Hash]bool
	stack           []plumbing.Hash
}

func newWalker(loader CommitLoader, tip plumbing.Hash, firstParentOnly bool) *Walker {
	return &Walker{
		loader:          loader,
		firstParentOnly: firstParentOnly,
		seen:            make(map[plumbing.Hash]bool),
		stack:           []plumbing.Hash{tip},
	}
}

// FirstParentWalk follows only the first parent at each step, the history
// a linear `log` would show.
func FirstParentWalk(loader CommitLoader, tip plumbing.Hash) *Walker {
	return newWalker(loader, tip, true)
}

// FullWalk follows every parent, visiting the full reachable history of
// tip exactly once each.
func FullWalk(loader CommitLoader, tip plumbing.Hash) *Walker {
	return newWalker(loader, tip, false)
}

// Next returns the next commit hash in DFS pre-order, or io.EOF once the
// walk is exhausted. Parents are pushed onto the stack in reverse order so
// that the leftmost (first) parent is the next one popped, giving the
// deterministic left-to-right tie-breaking the walk promises.
func (w *Walker) Next() (plumbing.Hash, error) {
	for len(w.stack) > 0 {
		h := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]
		if w.seen[h] {
			continue
		}
		w.seen[h] = true

		parents, err := Parents(w.loader, h)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if w.firstParentOnly && len(parents) > 1 {
			parents = parents[:1]
		}
		for i := len(parents) - 1; i >= 0; i-- {
			if !w.seen[parents[i]] {
				w.stack = append(w.stack, parents[i])
			}
		}
		return h, nil
	}
	return plumbing.ZeroHash, io.EOF
}

// ForEach drains the walk, calling cb for every hash in order. A cb error
// of plumbing.ErrStop ends the walk without being reported to the caller;
// any other error aborts the walk and is returned as-is.
func (w *Walker) ForEach(cb func(plumbing.Hash) error) error {
	for {
		h, err := w.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := cb(h); err != nil {
			if errors.Is(err, plumbing.ErrStop) {
				return nil
			}
			return err
		}
	}
}

// Collect drains the walk into a slice, in visit order.
func (w *Walker) Collect() ([]plumbing.Hash, error) {
	var out []plumbing.Hash
	err := w.ForEach(func(h plumbing.Hash) error {
		out = append(out, h)
		return nil
	})
	return out, err
}
