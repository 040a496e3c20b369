package graph

import "github.com/gitcore/gitcore/modules/plumbing"

// IsAncestor reports whether anc is reachable from desc by following
// parent links — a breadth-first search rooted at desc, matching the
// source's traversal order exactly (this has no bearing on the result,
// since reachability doesn't depend on visit order, but keeps the two
// implementations easy to compare).
func IsAncestor(loader CommitLoader, anc, desc plumbing.Hash) (bool, error) {
	if anc == desc {
		return true, nil
	}
	visited := make(map[plumbing.Hash]bool)
	queue := []plumbing.Hash{desc}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if visited[h] {
			continue
		}
		visited[h] = true
		if h == anc {
			return true, nil
		}
		parents, err := Parents(loader, h)
		if err != nil {
			if plumbing.IsNoSuchObject(err) {
				continue
			}
			return false, err
		}
		for _, p := range parents {
			if !visited[p] {
				queue = append(queue, p)
			}
		}
	}
	return false, nil
}

// ancestorClosure collects every commit reachable from start, including
// start itself.
func ancestorClosure(loader CommitLoader, start plumbing.Hash) (map[plumbing.Hash]bool, error) {
	result := make(map[plumbing.Hash]bool)
	queue := []plumbing.Hash{start}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if result[h] {
			continue
		}
		result[h] = true
		parents, err := Parents(loader, h)
		if err != nil {
			if plumbing.IsNoSuchObject(err) {
				continue
			}
			return nil, err
		}
		for _, p := range parents {
			if !result[p] {
				queue = append(queue, p)
			}
		}
	}
	return result, nil
}
