package opstate

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
	"github.com/gitcore/gitcore/modules/worktree"
)

// StashRef is the reference stash entries accumulate under, most recent
// first via its reflog.
const StashRef plumbing.ReferenceName = "refs/stash"

// ErrNoStash is returned by apply/pop/drop when the requested stash entry
// (or refs/stash itself) doesn't exist.
var ErrNoStash = errors.New("opstate: stash entry not found")

// ErrNothingToStash is returned by StashSave when there is no HEAD commit
// to stash relative to.
var ErrNothingToStash = errors.New("opstate: nothing to stash (no HEAD commit)")

// StashSave snapshots the given index and working tree against head: an
// index_commit (tree = indexTree, parent = head) and a stash_commit (tree
// = worktreeTree, parents = [head, index_commit]). refs/stash is updated
// to the new stash_commit and the previous HEAD is restored via
// ResetHard, discarding the local changes that got stashed.
func (r *Repo) StashSave(head plumbing.Hash, indexTree, worktreeTree plumbing.Hash, message string, who object.Signature, newCommit CommitFunc) (plumbing.Hash, error) {
	if head.IsZero() {
		return plumbing.ZeroHash, ErrNothingToStash
	}
	indexCommit, err := newCommit(indexTree, []plumbing.Hash{head}, "index on stash: "+head.String()[:7])
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if message == "" {
		message = "WIP on " + head.String()[:7]
	}
	stashCommit, err := newCommit(worktreeTree, []plumbing.Hash{head, indexCommit}, message)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	old, err := r.Refs.Reference(StashRef)
	var oldHash plumbing.Hash
	if err == nil {
		oldHash = old.Hash()
	} else if err != plumbing.ErrReferenceNotFound {
		return plumbing.ZeroHash, err
	}

	var casOld *plumbing.Reference
	if !oldHash.IsZero() {
		casOld = plumbing.NewHashReference(StashRef, oldHash)
	}
	if err := r.Refs.Update(plumbing.NewHashReference(StashRef, stashCommit), casOld); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := r.appendReflog(StashRef, stashCommit, who, message); err != nil {
		return plumbing.ZeroHash, err
	}

	if _, err := r.ResetHard(worktreeTree, head); err != nil {
		return plumbing.ZeroHash, err
	}
	return stashCommit, nil
}

// StashEntry is one line of `stash list` output.
type StashEntry struct {
	Ref     string // "stash@{n}"
	Message string
}

// StashList returns refs/stash's reflog, most-recent first, as
// "stash@{n}" entries.
func (r *Repo) StashList() ([]StashEntry, error) {
	l, err := r.Reflogs.Read(StashRef)
	if err != nil {
		return nil, err
	}
	out := make([]StashEntry, 0, len(l.Entries))
	for i, e := range l.Entries {
		out = append(out, StashEntry{Ref: "stash@{" + strconv.Itoa(i) + "}", Message: strings.TrimSpace(e.Message)})
	}
	return out, nil
}

// resolveStashEntry resolves "stash", "stash@{}" or "stash@{n}" to the
// commit hash recorded as that entry's New, and the entry's index within
// the reflog (most-recent-first, so 0 is the top of the stack).
func (r *Repo) resolveStashEntry(ref string) (plumbing.Hash, int, error) {
	l, err := r.Reflogs.Read(StashRef)
	if err != nil {
		return plumbing.ZeroHash, 0, err
	}
	if len(l.Entries) == 0 {
		return plumbing.ZeroHash, 0, ErrNoStash
	}
	n := 0
	if ref != "" && ref != "stash" && ref != "stash@{}" {
		if !strings.HasPrefix(ref, "stash@{") || !strings.HasSuffix(ref, "}") {
			return plumbing.ZeroHash, 0, ErrNoStash
		}
		v, err := strconv.Atoi(ref[len("stash@{") : len(ref)-1])
		if err != nil {
			return plumbing.ZeroHash, 0, ErrNoStash
		}
		n = v
	}
	if n < 0 || n >= len(l.Entries) {
		return plumbing.ZeroHash, 0, ErrNoStash
	}
	return l.Entries[n].New, n, nil
}

// StashApply restores the index and working tree from ref (default
// "stash@{0}"), leaving the stash entry in place.
func (r *Repo) StashApply(ref string, currentTree plumbing.Hash) (indexTree, worktreeTree plumbing.Hash, err error) {
	stashHash, _, err := r.resolveStashEntry(ref)
	if err != nil {
		return plumbing.ZeroHash, plumbing.ZeroHash, err
	}
	return r.restoreStash(stashHash, currentTree)
}

// StashPop applies ref (default "stash@{0}") and then drops it from
// refs/stash and its reflog.
func (r *Repo) StashPop(ref string, currentTree plumbing.Hash) (indexTree, worktreeTree plumbing.Hash, err error) {
	stashHash, n, err := r.resolveStashEntry(ref)
	if err != nil {
		return plumbing.ZeroHash, plumbing.ZeroHash, err
	}
	indexTree, worktreeTree, err = r.restoreStash(stashHash, currentTree)
	if err != nil {
		return plumbing.ZeroHash, plumbing.ZeroHash, err
	}
	if err := r.dropStashEntry(n); err != nil {
		return plumbing.ZeroHash, plumbing.ZeroHash, err
	}
	return indexTree, worktreeTree, nil
}

func (r *Repo) restoreStash(stashHash, currentTree plumbing.Hash) (indexTree, worktreeTree plumbing.Hash, err error) {
	stashCommit, err := r.loader().Commit(stashHash)
	if err != nil {
		return plumbing.ZeroHash, plumbing.ZeroHash, err
	}
	if len(stashCommit.Parents) < 2 {
		return plumbing.ZeroHash, plumbing.ZeroHash, errors.New("opstate: invalid stash entry (expected 2 parents)")
	}
	indexCommit, err := r.loader().Commit(stashCommit.Parents[1])
	if err != nil {
		return plumbing.ZeroHash, plumbing.ZeroHash, err
	}
	worktreeTree = stashCommit.TreeHash
	indexTree = indexCommit.TreeHash
	// stash_commit's own tree *is* the working tree snapshot, so this
	// restores directly against it rather than going through a commit.
	if _, err := worktree.Checkout(r.WorkDir, r.Store, currentTree, worktreeTree); err != nil {
		return plumbing.ZeroHash, plumbing.ZeroHash, err
	}
	return indexTree, worktreeTree, nil
}

// dropStashEntry removes entry n (0 = most recent) from refs/stash's
// reflog. Only dropping the top entry (stash pop) is exercised today, but
// the reflog rewrite itself is general.
func (r *Repo) dropStashEntry(n int) error {
	l, err := r.Reflogs.Read(StashRef)
	if err != nil {
		return err
	}
	if n < 0 || n >= len(l.Entries) {
		return ErrNoStash
	}
	old := plumbing.NewHashReference(StashRef, l.Entries[0].New)
	if err := l.Drop(n); err != nil {
		return err
	}
	if len(l.Entries) == 0 {
		if err := r.Refs.Remove(StashRef); err != nil {
			return err
		}
		return r.Reflogs.Write(l)
	}
	if n == 0 {
		newTip := l.Entries[0].New
		if err := r.Refs.Update(plumbing.NewHashReference(StashRef, newTip), old); err != nil {
			return err
		}
	}
	return r.Reflogs.Write(l)
}
