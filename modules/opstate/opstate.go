// Package opstate implements the multi-step porcelain operations that span
// more than one commit and need on-disk continuation state between steps:
// cherry-pick, rebase, and stash. Each keeps its progress in small text
// files under the repository's state directory so `--continue`/`--abort`
// work even across separate process invocations.
package opstate

import (
	"fmt"
	"strings"

	"github.com/gitcore/gitcore/modules/graph"
	"github.com/gitcore/gitcore/modules/index"
	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
	"github.com/gitcore/gitcore/modules/refs"
	"github.com/gitcore/gitcore/modules/worktree"
)

// stateDirName is the on-disk directory (relative to the repository's
// control directory) holding ephemeral cherry-pick/rebase state files.
const stateDirName = "pygit"

// ObjectStore is the subset of modules/odb.Database every operation here
// needs: existence checks plus reading and writing content-addressed
// objects.
type ObjectStore interface {
	Exists(oid plumbing.Hash) bool
	GetRaw(oid plumbing.Hash) (object.Type, []byte, error)
	Put(t object.Type, content []byte) (plumbing.Hash, error)
}

// RefStore is the subset of modules/refs.Store these operations drive:
// reading and CAS-updating HEAD and branch refs.
type RefStore interface {
	HEAD() (*plumbing.Reference, error)
	Reference(name plumbing.ReferenceName) (*plumbing.Reference, error)
	Update(r, old *plumbing.Reference) error
	Remove(name plumbing.ReferenceName) error
	SetSymbolicHEAD(branch plumbing.ReferenceName) error
	SetDetachedHEAD(h plumbing.Hash) error
}

// ReflogStore is the subset of modules/refs.ReflogStore these operations
// drive: reading and rewriting a ref's append-only history.
type ReflogStore interface {
	Read(name plumbing.ReferenceName) (*refs.Reflog, error)
	Write(l *refs.Reflog) error
}

// CommitFunc synthesizes a new commit object from a tree and parent list
// and returns its hash. Every operation in this package takes one rather
// than deciding author identity, clock source, or signing itself.
type CommitFunc func(tree plumbing.Hash, parents []plumbing.Hash, message string) (plumbing.Hash, error)

// Repo bundles everything cherry-pick/rebase/stash need to read objects,
// move refs, and touch the working tree, rooted at one repository.
type Repo struct {
	// Root is the repository's control directory (the ".git"-equivalent),
	// under which the pygit/ state directory and logs/ reflogs live.
	Root string
	// WorkDir is the checked-out working tree.
	WorkDir string
	Store   ObjectStore
	Refs    RefStore
	Reflogs ReflogStore
}

type commitLoader struct{ store ObjectStore }

func (l commitLoader) Commit(h plumbing.Hash) (*object.Commit, error) {
	typ, raw, err := l.store.GetRaw(h)
	if err != nil {
		return nil, err
	}
	if typ != object.CommitType {
		return nil, fmt.Errorf("opstate: %s is not a commit object", h)
	}
	return object.DecodeCommit(raw)
}

func (r *Repo) loader() commitLoader { return commitLoader{store: r.Store} }

// treeHashForCommit resolves a commit hash to the tree it records, the
// recurring first step of every operation below that needs to diff or
// merge against a point in history.
func (r *Repo) treeHashForCommit(h plumbing.Hash) (plumbing.Hash, error) {
	if h.IsZero() {
		return plumbing.ZeroHash, nil
	}
	c, err := r.loader().Commit(h)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return c.TreeHash, nil
}

// ResetHard replaces the index and working tree with target's tree,
// relative to whatever currentTree was last checked out (plumbing.ZeroHash
// for "nothing yet"), and returns the resulting index. It does not touch
// any ref; callers that mean "reset --hard <rev>" also advance HEAD/the
// branch ref themselves.
func (r *Repo) ResetHard(currentTree, target plumbing.Hash) (*index.Index, error) {
	targetTree, err := r.treeHashForCommit(target)
	if err != nil {
		return nil, err
	}
	return worktree.Checkout(r.WorkDir, r.Store, currentTree, targetTree)
}

// advanceHead moves HEAD (and, if branch is non-empty, the branch ref it
// tracks) from oldHead to newHead, appending message to both reflogs. A
// detached HEAD (branch == "") only advances HEAD itself.
func (r *Repo) advanceHead(oldHead, newHead plumbing.Hash, branch plumbing.ReferenceName, who object.Signature, message string) error {
	if branch != "" {
		var old *plumbing.Reference
		if !oldHead.IsZero() {
			old = plumbing.NewHashReference(branch, oldHead)
		}
		if err := r.Refs.Update(plumbing.NewHashReference(branch, newHead), old); err != nil {
			return err
		}
		if err := r.appendReflog(branch, newHead, who, message); err != nil {
			return err
		}
	} else {
		if err := r.Refs.SetDetachedHEAD(newHead); err != nil {
			return err
		}
	}
	return r.appendReflog(plumbing.HEAD, newHead, who, message)
}

func (r *Repo) appendReflog(name plumbing.ReferenceName, newHash plumbing.Hash, who object.Signature, message string) error {
	l, err := r.Reflogs.Read(name)
	if err != nil {
		return err
	}
	l.Push(newHash, who, message)
	return r.Reflogs.Write(l)
}

// subject returns the first line of a commit message, the conventional
// one-line summary used in reflog entries and error output.
func subject(message string) string {
	line, _, _ := strings.Cut(message, "\n")
	return strings.TrimSpace(line)
}

// isAncestor and mergeBase compose modules/graph over this package's
// ObjectStore without graph needing to know about it.
func (r *Repo) isAncestor(anc, desc plumbing.Hash) (bool, error) {
	return graph.IsAncestor(r.loader(), anc, desc)
}

func (r *Repo) mergeBase(a, b plumbing.Hash) (plumbing.Hash, error) {
	return graph.MergeBase(r.loader(), a, b)
}
