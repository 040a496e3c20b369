package opstate

import (
	"testing"

	"github.com/gitcore/gitcore/modules/plumbing"
)

func TestCommitsToReplayStopsAtMergeBase(t *testing.T) {
	r, s, _ := newTestRepo(t)

	base := s.commit(s.putTree(map[string]string{"a.txt": "base"}), "base")
	up1 := s.commit(s.putTree(map[string]string{"a.txt": "up1"}), "upstream 1", base)
	up2 := s.commit(s.putTree(map[string]string{"a.txt": "up2"}), "upstream 2", up1)
	f1 := s.commit(s.putTree(map[string]string{"a.txt": "base", "f.txt": "1"}), "feature 1", base)
	f2 := s.commit(s.putTree(map[string]string{"a.txt": "base", "f.txt": "2"}), "feature 2", f1)

	todo, err := r.commitsToReplay(f2, up2)
	if err != nil {
		t.Fatal(err)
	}
	if len(todo) != 2 || todo[0] != f1 || todo[1] != f2 {
		t.Fatalf("expected [f1 f2] oldest-first, got %v", todo)
	}
}

func TestRebaseReplaysCleanlyOntoUpstream(t *testing.T) {
	r, s, rs := newTestRepo(t)

	base := s.commit(s.putTree(map[string]string{"a.txt": "base"}), "base")
	up := s.commit(s.putTree(map[string]string{"a.txt": "base", "u.txt": "upstream"}), "upstream", base)
	feat := s.commit(s.putTree(map[string]string{"a.txt": "base", "f.txt": "feature"}), "feature", base)

	branch := plumbing.NewBranchReferenceName("topic")
	if err := rs.Update(plumbing.NewHashReference(branch, feat), nil); err != nil {
		t.Fatal(err)
	}
	if err := rs.SetSymbolicHEAD(branch); err != nil {
		t.Fatal(err)
	}

	out, err := r.Rebase(feat, up, "topic", false, sig("me"), newCommitFunc(s))
	if err != nil {
		t.Fatalf("Rebase: %v", err)
	}
	if r.RebaseInProgress() {
		t.Fatal("expected rebase state cleared on success")
	}
	newFeat, err := r.loader().Commit(out.Head)
	if err != nil {
		t.Fatal(err)
	}
	if len(newFeat.Parents) != 1 || newFeat.Parents[0] != up {
		t.Fatalf("expected rebased commit's parent to be upstream %s, got %v", up, newFeat.Parents)
	}

	ref, err := rs.Reference(branch)
	if err != nil || ref.Hash() != out.Head {
		t.Fatalf("expected branch fast-set to %s, got %+v (%v)", out.Head, ref, err)
	}
}

func TestRebaseNoOpWhenAlreadyUpToDate(t *testing.T) {
	r, s, rs := newTestRepo(t)
	base := s.commit(s.putTree(map[string]string{"a.txt": "base"}), "base")

	branch := plumbing.NewBranchReferenceName("topic")
	if err := rs.Update(plumbing.NewHashReference(branch, base), nil); err != nil {
		t.Fatal(err)
	}

	out, err := r.Rebase(base, base, "topic", false, sig("me"), newCommitFunc(s))
	if err != nil {
		t.Fatalf("Rebase: %v", err)
	}
	if out.Head != base {
		t.Fatalf("expected no-op rebase to report HEAD unchanged, got %s", out.Head)
	}
}

func TestRebaseStopsOnConflictAndPersistsRemainingTodo(t *testing.T) {
	r, s, rs := newTestRepo(t)

	base := s.commit(s.putTree(map[string]string{"a.txt": "base"}), "base")
	up := s.commit(s.putTree(map[string]string{"a.txt": "upstream-change"}), "upstream", base)
	f1 := s.commit(s.putTree(map[string]string{"a.txt": "feature-change"}), "feature 1", base)
	f2 := s.commit(s.putTree(map[string]string{"a.txt": "feature-change", "g.txt": "2"}), "feature 2", f1)

	branch := plumbing.NewBranchReferenceName("topic")
	if err := rs.Update(plumbing.NewHashReference(branch, f2), nil); err != nil {
		t.Fatal(err)
	}
	if err := rs.SetSymbolicHEAD(branch); err != nil {
		t.Fatal(err)
	}

	_, err := r.Rebase(f2, up, "topic", false, sig("me"), newCommitFunc(s))
	if err != ErrCherryPickConflict {
		t.Fatalf("expected the first pick to conflict, got %v", err)
	}
	if !r.RebaseInProgress() {
		t.Fatal("expected rebase state to persist across the conflict")
	}
	st, err := r.readRebaseState()
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Todo) != 1 || st.Todo[0] != f2 {
		t.Fatalf("expected f2 still queued, got %v", st.Todo)
	}
}

func TestRebaseAbortRestoresOrigHeadAndBranch(t *testing.T) {
	r, s, rs := newTestRepo(t)

	base := s.commit(s.putTree(map[string]string{"a.txt": "base"}), "base")
	up := s.commit(s.putTree(map[string]string{"a.txt": "upstream-change"}), "upstream", base)
	feat := s.commit(s.putTree(map[string]string{"a.txt": "feature-change"}), "feature", base)

	branch := plumbing.NewBranchReferenceName("topic")
	if err := rs.Update(plumbing.NewHashReference(branch, feat), nil); err != nil {
		t.Fatal(err)
	}
	if err := rs.SetSymbolicHEAD(branch); err != nil {
		t.Fatal(err)
	}

	_, err := r.Rebase(feat, up, "topic", false, sig("me"), newCommitFunc(s))
	if err != ErrCherryPickConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	if err := r.RebaseAbort(up, sig("me")); err != nil {
		t.Fatalf("RebaseAbort: %v", err)
	}
	if r.RebaseInProgress() || r.CherryPickInProgress() {
		t.Fatal("expected all opstate state cleared after abort")
	}
	ref, err := rs.Reference(branch)
	if err != nil || ref.Hash() != feat {
		t.Fatalf("expected branch restored to %s, got %+v (%v)", feat, ref, err)
	}
}
