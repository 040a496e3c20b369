package graph

import "github.com/gitcore/gitcore/modules/plumbing"

// MergeBase returns a common ancestor of a and b: the first commit found
// by a breadth-first search from b that already lies in a's ancestor
// closure.
//
// This is not guaranteed to be *the* lowest common ancestor in a
// criss-cross merge history — two commits can have several co-equal best
// common ancestors, and which one this returns then depends on BFS visit
// order from b. It is always correct (and unique) for the linear and
// simple-branch histories this engine is exercised against. A full LCA
// algorithm (computing the whole set of best common ancestors and
// resolving ties deterministically) was deliberately not implemented:
// the BFS-from-b shortcut is what the reference implementation does, and
// nothing in this engine's scope depends on picking a specific LCA among
// several co-equal ones.
func MergeBase(loader CommitLoader, a, b plumbing.Hash) (plumbing.Hash, error) {
	ancestorsOfA, err := ancestorClosure(loader, a)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	seen := make(map[plumbing.Hash]bool)
	queue := []plumbing.Hash{b}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if seen[h] {
			continue
		}
		seen[h] = true
		if ancestorsOfA[h] {
			return h, nil
		}
		parents, err := Parents(loader, h)
		if err != nil {
			if plumbing.IsNoSuchObject(err) {
				continue
			}
			return plumbing.ZeroHash, err
		}
		for _, p := range parents {
			if !seen[p] {
				queue = append(queue, p)
			}
		}
	}
	return plumbing.ZeroHash, plumbing.NewErrRevNotFound("no common ancestor between %s and %s", a, b)
}
