package merge

import (
	"errors"
	"fmt"

	"github.com/gitcore/gitcore/modules/graph"
	"github.com/gitcore/gitcore/modules/index"
	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
	"github.com/gitcore/gitcore/modules/worktree"
)

// ErrDirtyWorktree is returned when Run is asked to merge with local
// changes present and Options.Force is false.
var ErrDirtyWorktree = errors.New("merge: working tree has uncommitted changes")

// ErrNotFastForward is returned when Options.FFOnly is set but the merge
// would require a merge commit.
var ErrNotFastForward = errors.New("merge: update is not a fast-forward")

// CommitNewFunc synthesizes a new commit object from a tree and parent
// list and returns its hash. The caller supplies this so modules/merge
// never needs to know about author identity, clocks, or the commit
// message conventions of whatever porcelain is driving it.
type CommitNewFunc func(tree plumbing.Hash, parents []plumbing.Hash, message string) (plumbing.Hash, error)

// Options controls how Run resolves a merge that isn't a trivial no-op.
type Options struct {
	FFOnly  bool
	NoFF    bool
	Force   bool
	Message string
}

// Outcome describes what Run did.
type Outcome struct {
	// FastForward is true when the branch tip (or HEAD) simply advanced
	// without synthesizing a new commit.
	FastForward bool
	// Head is the commit the caller should now point the branch ref (and
	// HEAD) at. When Result is non-nil and not Clean, Head is unchanged
	// from the merge's starting point: the caller must leave the merge
	// in progress rather than advance anything.
	Head plumbing.Hash
	// Result is nil for a fast-forward merge (no per-path classification
	// ran) and non-nil otherwise.
	Result *Result
}

type commitLoader struct{ store worktree.ObjectStore }

func (l commitLoader) Commit(h plumbing.Hash) (*object.Commit, error) {
	typ, raw, err := l.store.GetRaw(h)
	if err != nil {
		return nil, err
	}
	if typ != object.CommitType {
		return nil, fmt.Errorf("merge: %s is not a commit object", h)
	}
	return object.DecodeCommit(raw)
}

// Run merges theirsTip into head. If head is zero (there is no commit
// yet), theirsTip is checked out as a fast-forward regardless of
// opts.NoFF. If head is an ancestor of theirsTip, the result is a
// fast-forward unless opts.NoFF forces a merge commit. Otherwise a
// three-way merge runs against their common ancestor; on a clean result a
// merge commit with parents [head, theirsTip] is synthesized via
// newCommit. dirty reports whether the working tree has uncommitted
// changes, checked by the caller (status/diff logic lives outside this
// package); Run refuses to proceed when dirty is true unless opts.Force.
func Run(dir string, store worktree.ObjectStore, head, theirsTip plumbing.Hash, dirty bool, opts Options, newCommit CommitNewFunc) (*Outcome, *index.Index, error) {
	if dirty && !opts.Force {
		return nil, nil, ErrDirtyWorktree
	}

	loader := commitLoader{store: store}

	if head.IsZero() {
		return fastForward(store, dir, plumbing.ZeroHash, theirsTip)
	}

	ancestor, err := graph.IsAncestor(loader, head, theirsTip)
	if err != nil {
		return nil, nil, err
	}
	if ancestor && !opts.NoFF {
		return fastForward(store, dir, head, theirsTip)
	}
	if opts.FFOnly {
		return nil, nil, ErrNotFastForward
	}

	baseTree := plumbing.ZeroHash
	if base, err := graph.MergeBase(loader, head, theirsTip); err != nil {
		if !plumbing.IsErrRevNotFound(err) {
			return nil, nil, err
		}
	} else {
		bc, err := loader.Commit(base)
		if err != nil {
			return nil, nil, err
		}
		baseTree = bc.TreeHash
	}

	headCommit, err := loader.Commit(head)
	if err != nil {
		return nil, nil, err
	}
	theirsCommit, err := loader.Commit(theirsTip)
	if err != nil {
		return nil, nil, err
	}

	idx, result, err := Apply(dir, store, baseTree, headCommit.TreeHash, theirsCommit.TreeHash, "HEAD", "theirs")
	if err != nil {
		return nil, nil, err
	}
	if !result.Clean() {
		return &Outcome{Head: head, Result: result}, idx, nil
	}

	rootTree, err := worktree.BuildTree(store, idx)
	if err != nil {
		return nil, nil, err
	}
	newHash, err := newCommit(rootTree, []plumbing.Hash{head, theirsTip}, opts.Message)
	if err != nil {
		return nil, nil, err
	}
	return &Outcome{Head: newHash, Result: result}, idx, nil
}

func fastForward(store worktree.ObjectStore, dir string, prevHead, newHead plumbing.Hash) (*Outcome, *index.Index, error) {
	loader := commitLoader{store: store}

	prevTree := plumbing.ZeroHash
	if !prevHead.IsZero() {
		c, err := loader.Commit(prevHead)
		if err != nil {
			return nil, nil, err
		}
		prevTree = c.TreeHash
	}
	c, err := loader.Commit(newHead)
	if err != nil {
		return nil, nil, err
	}
	idx, err := worktree.Checkout(dir, store, prevTree, c.TreeHash)
	if err != nil {
		return nil, nil, err
	}
	return &Outcome{FastForward: true, Head: newHead}, idx, nil
}
