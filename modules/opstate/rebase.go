package opstate

import (
	"errors"
	"strings"

	"github.com/gitcore/gitcore/modules/index"
	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
)

const (
	rebaseOrigHeadFile = "REBASE_ORIG_HEAD"
	rebaseUpstreamFile = "REBASE_UPSTREAM"
	rebaseBranchFile   = "REBASE_BRANCH"
	rebaseTodoFile     = "REBASE_TODO"
)

// ErrRebaseInProgress is returned when a rebase is started while one is
// already in progress.
var ErrRebaseInProgress = errors.New("opstate: a rebase is already in progress")

// ErrNoRebaseInProgress is returned by --continue/--abort when there is no
// rebase state to act on.
var ErrNoRebaseInProgress = errors.New("opstate: no rebase in progress")

// ErrRebaseDetachedHead is returned when Rebase is attempted with no
// current branch.
var ErrRebaseDetachedHead = errors.New("opstate: cannot rebase a detached HEAD")

// ErrRebaseNoCommonAncestor is returned when head and upstream share no
// common ancestor.
var ErrRebaseNoCommonAncestor = errors.New("opstate: no common ancestor")

// RebaseState is the on-disk continuation state for an in-progress rebase.
type RebaseState struct {
	OrigHead plumbing.Hash
	Upstream plumbing.Hash
	Branch   string
	Todo     []plumbing.Hash
}

// RebaseInProgress reports whether rebase state exists.
func (r *Repo) RebaseInProgress() bool {
	return r.stateFileExists(rebaseOrigHeadFile)
}

func (r *Repo) readRebaseState() (*RebaseState, error) {
	origHex, ok, err := r.readStateFile(rebaseOrigHeadFile)
	if err != nil || !ok {
		return nil, err
	}
	upHex, _, err := r.readStateFile(rebaseUpstreamFile)
	if err != nil {
		return nil, err
	}
	branch, _, err := r.readStateFile(rebaseBranchFile)
	if err != nil {
		return nil, err
	}
	todoRaw, _, err := r.readStateFile(rebaseTodoFile)
	if err != nil {
		return nil, err
	}
	var todo []plumbing.Hash
	for _, line := range strings.Split(todoRaw, "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 40 {
			todo = append(todo, plumbing.NewHash(line))
		}
	}
	return &RebaseState{
		OrigHead: plumbing.NewHash(origHex),
		Upstream: plumbing.NewHash(upHex),
		Branch:   branch,
		Todo:     todo,
	}, nil
}

func (r *Repo) writeRebaseState(st *RebaseState) error {
	if err := r.writeStateFile(rebaseOrigHeadFile, st.OrigHead.String()+"\n"); err != nil {
		return err
	}
	if err := r.writeStateFile(rebaseUpstreamFile, st.Upstream.String()+"\n"); err != nil {
		return err
	}
	if err := r.writeStateFile(rebaseBranchFile, st.Branch+"\n"); err != nil {
		return err
	}
	var lines []string
	for _, h := range st.Todo {
		lines = append(lines, h.String())
	}
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	return r.writeStateFile(rebaseTodoFile, content)
}

func (r *Repo) clearRebaseState() error {
	for _, name := range []string{rebaseOrigHeadFile, rebaseUpstreamFile, rebaseBranchFile, rebaseTodoFile} {
		if err := r.removeStateFile(name); err != nil {
			return err
		}
	}
	return nil
}

// commitsToReplay returns the first-parent chain from head back to (but
// excluding) the point where it becomes an ancestor of upstream, oldest
// first: exactly the commits a rebase needs to cherry-pick onto upstream.
func (r *Repo) commitsToReplay(head, upstream plumbing.Hash) ([]plumbing.Hash, error) {
	if head == upstream {
		return nil, nil
	}
	ancestor, err := r.isAncestor(head, upstream)
	if err != nil {
		return nil, err
	}
	if ancestor {
		return nil, nil
	}

	var collected []plumbing.Hash
	h := head
	for !h.IsZero() && h != upstream {
		ancestor, err := r.isAncestor(h, upstream)
		if err != nil {
			return nil, err
		}
		if ancestor {
			break
		}
		collected = append(collected, h)
		c, err := r.loader().Commit(h)
		if err != nil {
			return nil, err
		}
		if len(c.Parents) == 0 {
			break
		}
		h = c.Parents[0]
	}
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected, nil
}

// Rebase replays branch's commits (from head down to their merge-base
// with upstream) onto upstream, one cherry-pick at a time. On success it
// fast-sets branch to the new tip and re-attaches HEAD. On conflict, the
// remaining TODO is persisted and ErrCherryPickConflict is returned; the
// caller resolves conflicts and calls RebaseContinue.
func (r *Repo) Rebase(head, upstream plumbing.Hash, branch string, dirty bool, who object.Signature, newCommit CommitFunc) (*Outcome, error) {
	if r.RebaseInProgress() {
		return nil, ErrRebaseInProgress
	}
	if dirty {
		return nil, ErrDirtyWorktree
	}
	if branch == "" {
		return nil, ErrRebaseDetachedHead
	}
	if head.IsZero() {
		return nil, errors.New("opstate: cannot rebase: no HEAD commit")
	}

	if _, err := r.mergeBase(head, upstream); err != nil {
		if plumbing.IsErrRevNotFound(err) {
			return nil, ErrRebaseNoCommonAncestor
		}
		return nil, err
	}

	todo, err := r.commitsToReplay(head, upstream)
	if err != nil {
		return nil, err
	}
	if len(todo) == 0 {
		return &Outcome{Head: head}, nil
	}

	branchRef := plumbing.NewBranchReferenceName(branch)
	if err := r.appendReflog(plumbing.HEAD, upstream, who, "rebase: start onto "+upstream.String()[:7]); err != nil {
		return nil, err
	}
	if _, err := r.ResetHard(r.currentCheckoutTree(head), upstream); err != nil {
		return nil, err
	}
	if err := r.Refs.SetDetachedHEAD(upstream); err != nil {
		return nil, err
	}
	if err := r.writeRebaseState(&RebaseState{OrigHead: head, Upstream: upstream, Branch: branch, Todo: todo}); err != nil {
		return nil, err
	}

	cur := upstream
	for i, pick := range todo {
		out, err := r.CherryPick(cur, "", false, pick, pick.String()[:7], who, newCommit)
		if err != nil {
			_ = r.writeRebaseState(&RebaseState{OrigHead: head, Upstream: upstream, Branch: branch, Todo: todo[i+1:]})
			return out, err
		}
		cur = out.Head
	}

	return r.finishRebase(head, branch, branchRef, cur, who, "rebase: complete")
}

// RebaseContinue finishes the in-progress cherry-pick (using idx, the
// caller's conflict-resolved index) then replays whatever TODO entries
// remain.
func (r *Repo) RebaseContinue(idx *index.Index, who object.Signature, newCommit CommitFunc) (*Outcome, error) {
	st, err := r.readRebaseState()
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrNoRebaseInProgress
	}

	branchRef := plumbing.NewBranchReferenceName(st.Branch)
	out, err := r.CherryPickContinue("", idx, who, newCommit)
	if err != nil {
		return nil, err
	}
	cur := out.Head

	remaining := st.Todo
	for len(remaining) > 0 {
		pick := remaining[0]
		remaining = remaining[1:]
		if err := r.writeRebaseState(&RebaseState{OrigHead: st.OrigHead, Upstream: st.Upstream, Branch: st.Branch, Todo: remaining}); err != nil {
			return nil, err
		}
		out, err = r.CherryPick(cur, "", false, pick, pick.String()[:7], who, newCommit)
		if err != nil {
			return out, err
		}
		cur = out.Head
	}

	return r.finishRebase(st.OrigHead, st.Branch, branchRef, cur, who, "rebase: complete")
}

func (r *Repo) finishRebase(origHead plumbing.Hash, branch string, branchRef plumbing.ReferenceName, newHead plumbing.Hash, who object.Signature, message string) (*Outcome, error) {
	old := plumbing.NewHashReference(branchRef, origHead)
	if err := r.Refs.Update(plumbing.NewHashReference(branchRef, newHead), old); err != nil {
		return nil, err
	}
	if err := r.Refs.SetSymbolicHEAD(branchRef); err != nil {
		return nil, err
	}
	if err := r.appendReflog(plumbing.HEAD, newHead, who, message); err != nil {
		return nil, err
	}
	if err := r.appendReflog(branchRef, newHead, who, message); err != nil {
		return nil, err
	}
	if err := r.clearRebaseState(); err != nil {
		return nil, err
	}
	_ = branch
	return &Outcome{Head: newHead}, nil
}

// RebaseAbort resets HEAD and branch back to REBASE_ORIG_HEAD and clears
// both rebase and any in-progress cherry-pick state.
func (r *Repo) RebaseAbort(currentHead plumbing.Hash, who object.Signature) error {
	st, err := r.readRebaseState()
	if err != nil {
		return err
	}
	if st == nil {
		return ErrNoRebaseInProgress
	}
	if st.OrigHead.IsZero() {
		return errors.New("opstate: cannot abort: original HEAD is missing")
	}
	_ = r.clearCherryPickState()

	if _, err := r.ResetHard(r.currentCheckoutTree(currentHead), st.OrigHead); err != nil {
		return err
	}
	if st.Branch != "" {
		branchRef := plumbing.NewBranchReferenceName(st.Branch)
		if err := r.Refs.Update(plumbing.NewHashReference(branchRef, st.OrigHead), nil); err != nil {
			return err
		}
		if err := r.Refs.SetSymbolicHEAD(branchRef); err != nil {
			return err
		}
	} else if err := r.Refs.SetDetachedHEAD(st.OrigHead); err != nil {
		return err
	}
	if err := r.appendReflog(plumbing.HEAD, st.OrigHead, who, "rebase: abort"); err != nil {
		return err
	}
	return r.clearRebaseState()
}
