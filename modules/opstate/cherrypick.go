package opstate

import (
	"errors"
	"sort"
	"strings"

	"github.com/gitcore/gitcore/modules/index"
	"github.com/gitcore/gitcore/modules/merge"
	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
	"github.com/gitcore/gitcore/modules/worktree"
)

const (
	cherryPickHeadFile     = "CHERRY_PICK_HEAD"
	cherryPickOrigHeadFile = "CHERRY_PICK_ORIG_HEAD"
	cherryPickMsgFile      = "CHERRY_PICK_MSG"
	cherryPickConflictFile = "CHERRY_PICK_CONFLICTS"
)

// ErrCherryPickInProgress is returned when a cherry-pick is started while
// one is already in progress.
var ErrCherryPickInProgress = errors.New("opstate: a cherry-pick is already in progress")

// ErrDirtyWorktree is returned when an operation that requires a clean
// working tree is attempted with local changes present.
var ErrDirtyWorktree = errors.New("opstate: working tree has uncommitted changes")

// ErrNoCherryPickInProgress is returned by --continue/--abort when there
// is no cherry-pick state to act on.
var ErrNoCherryPickInProgress = errors.New("opstate: no cherry-pick in progress")

// ErrCherryPickConflict is returned when a cherry-pick stops with
// unresolved conflicts; the caller inspects the returned *Outcome for
// details and is expected to fix the paths before --continue.
var ErrCherryPickConflict = errors.New("opstate: cherry-pick conflict")

// CherryPickState is the on-disk continuation state for an in-progress
// cherry-pick.
type CherryPickState struct {
	PickHash  plumbing.Hash
	OrigHead  plumbing.Hash
	Message   string
	Conflicts []string
}

// Outcome reports what a cherry-pick/rebase step did.
type Outcome struct {
	Head   plumbing.Hash
	Result *merge.Result
}

// CherryPickInProgress reports whether cherry-pick state exists.
func (r *Repo) CherryPickInProgress() bool {
	return r.stateFileExists(cherryPickHeadFile)
}

func (r *Repo) readCherryPickState() (*CherryPickState, error) {
	headHex, ok, err := r.readStateFile(cherryPickHeadFile)
	if err != nil || !ok {
		return nil, err
	}
	origHex, _, err := r.readStateFile(cherryPickOrigHeadFile)
	if err != nil {
		return nil, err
	}
	message, _, err := r.readStateFile(cherryPickMsgFile)
	if err != nil {
		return nil, err
	}
	conflictsRaw, _, err := r.readStateFile(cherryPickConflictFile)
	if err != nil {
		return nil, err
	}
	var conflicts []string
	if conflictsRaw != "" {
		conflicts = strings.Split(conflictsRaw, "\n")
	}
	return &CherryPickState{
		PickHash:  plumbing.NewHash(headHex),
		OrigHead:  plumbing.NewHash(origHex),
		Message:   message,
		Conflicts: conflicts,
	}, nil
}

func (r *Repo) writeCherryPickState(st *CherryPickState) error {
	if err := r.writeStateFile(cherryPickHeadFile, st.PickHash.String()+"\n"); err != nil {
		return err
	}
	if err := r.writeStateFile(cherryPickOrigHeadFile, st.OrigHead.String()+"\n"); err != nil {
		return err
	}
	msg := st.Message
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	if err := r.writeStateFile(cherryPickMsgFile, msg); err != nil {
		return err
	}
	if len(st.Conflicts) > 0 {
		return r.writeStateFile(cherryPickConflictFile, strings.Join(st.Conflicts, "\n")+"\n")
	}
	return r.removeStateFile(cherryPickConflictFile)
}

func (r *Repo) clearCherryPickState() error {
	for _, name := range []string{cherryPickHeadFile, cherryPickOrigHeadFile, cherryPickMsgFile, cherryPickConflictFile} {
		if err := r.removeStateFile(name); err != nil {
			return err
		}
	}
	return nil
}

// CherryPick applies pick's changes onto head (tree(parent(pick)) as base,
// tree(head) as ours, tree(pick) as theirs) and, on a clean result,
// synthesizes a commit carrying pick's message with head as sole parent.
// branch is the current branch ref to advance, or "" for a detached HEAD.
// On conflict, state is left on disk for CherryPickContinue/CherryPickAbort
// and ErrCherryPickConflict is returned alongside the partial *Outcome.
func (r *Repo) CherryPick(head plumbing.Hash, branch plumbing.ReferenceName, dirty bool, pick plumbing.Hash, labelTheirs string, who object.Signature, newCommit CommitFunc) (*Outcome, error) {
	if r.CherryPickInProgress() {
		return nil, ErrCherryPickInProgress
	}
	if dirty {
		return nil, ErrDirtyWorktree
	}

	pickCommit, err := r.loader().Commit(pick)
	if err != nil {
		return nil, err
	}
	var parent plumbing.Hash
	if len(pickCommit.Parents) > 0 {
		parent = pickCommit.Parents[0]
	}

	oursTree, err := r.treeHashForCommit(head)
	if err != nil {
		return nil, err
	}
	baseTree, err := r.treeHashForCommit(parent)
	if err != nil {
		return nil, err
	}
	theirsTree := pickCommit.TreeHash

	message := pickCommit.Message
	if err := r.writeCherryPickState(&CherryPickState{PickHash: pick, OrigHead: head, Message: message}); err != nil {
		return nil, err
	}

	idx, result, err := merge.Apply(r.WorkDir, r.Store, baseTree, oursTree, theirsTree, "HEAD", labelTheirs)
	if err != nil {
		return nil, err
	}

	if !result.Clean() {
		conflicts := append(append([]string{}, result.Conflicts...), result.BinaryConflicts...)
		sort.Strings(conflicts)
		if err := r.writeCherryPickState(&CherryPickState{PickHash: pick, OrigHead: head, Message: message, Conflicts: conflicts}); err != nil {
			return nil, err
		}
		return &Outcome{Head: head, Result: result}, ErrCherryPickConflict
	}

	newHead, err := r.commitFromIndex(idx, head, message, newCommit)
	if err != nil {
		return nil, err
	}
	if err := r.advanceHead(head, newHead, branch, who, "cherry-pick: "+subject(message)); err != nil {
		return nil, err
	}
	if err := r.clearCherryPickState(); err != nil {
		return nil, err
	}
	return &Outcome{Head: newHead, Result: result}, nil
}

// CherryPickContinue finishes an in-progress cherry-pick from the index's
// current (presumably conflict-resolved) state, using the saved message.
func (r *Repo) CherryPickContinue(branch plumbing.ReferenceName, idx *index.Index, who object.Signature, newCommit CommitFunc) (*Outcome, error) {
	st, err := r.readCherryPickState()
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrNoCherryPickInProgress
	}
	if len(idx.Entries) == 0 {
		return nil, errors.New("opstate: nothing to commit, working tree clean")
	}

	newHead, err := r.commitFromIndex(idx, st.OrigHead, st.Message, newCommit)
	if err != nil {
		return nil, err
	}
	if err := r.advanceHead(st.OrigHead, newHead, branch, who, "cherry-pick: "+subject(st.Message)); err != nil {
		return nil, err
	}
	if err := r.clearCherryPickState(); err != nil {
		return nil, err
	}
	return &Outcome{Head: newHead}, nil
}

// CherryPickAbort restores HEAD (and, if branch is non-empty, the branch
// ref) to the state recorded before the cherry-pick began and clears its
// state. currentHead is HEAD's value right now, used only for the reflog
// entry's "old" side.
func (r *Repo) CherryPickAbort(currentHead plumbing.Hash, branch plumbing.ReferenceName, who object.Signature) error {
	st, err := r.readCherryPickState()
	if err != nil {
		return err
	}
	if st == nil {
		return ErrNoCherryPickInProgress
	}
	if st.OrigHead.IsZero() {
		return errors.New("opstate: cannot abort: original HEAD is missing")
	}
	if _, err := r.ResetHard(r.currentCheckoutTree(currentHead), st.OrigHead); err != nil {
		return err
	}
	if branch != "" {
		old := plumbing.NewHashReference(branch, currentHead)
		if err := r.Refs.Update(plumbing.NewHashReference(branch, st.OrigHead), old); err != nil {
			return err
		}
	} else {
		if err := r.Refs.SetDetachedHEAD(st.OrigHead); err != nil {
			return err
		}
	}
	if err := r.appendReflog(plumbing.HEAD, st.OrigHead, who, "cherry-pick: abort"); err != nil {
		return err
	}
	return r.clearCherryPickState()
}

// currentCheckoutTree resolves the tree currently materialized on disk,
// i.e. the tree of whatever HEAD points to right now, best-effort: a
// failure to resolve it (e.g. a root commit under a zero HEAD) degrades
// to treating the working tree as empty, which only widens the set of
// paths Checkout considers "new" rather than losing any data.
func (r *Repo) currentCheckoutTree(head plumbing.Hash) plumbing.Hash {
	t, err := r.treeHashForCommit(head)
	if err != nil {
		return plumbing.ZeroHash
	}
	return t
}

// commitFromIndex builds the tree for idx and synthesizes a commit with a
// single parent (or none, for the first commit in a repository).
func (r *Repo) commitFromIndex(idx *index.Index, parent plumbing.Hash, message string, newCommit CommitFunc) (plumbing.Hash, error) {
	tree, err := worktree.BuildTree(r.Store, idx)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	var parents []plumbing.Hash
	if !parent.IsZero() {
		parents = []plumbing.Hash{parent}
	}
	return newCommit(tree, parents, message)
}
