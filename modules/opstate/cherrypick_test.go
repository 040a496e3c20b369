package opstate

import (
	"testing"

	"github.com/gitcore/gitcore/modules/plumbing"
)

func newTestRepo(t *testing.T) (*Repo, *memStore, *fakeRefStore) {
	t.Helper()
	store := newMemStore()
	rs := newFakeRefStore()
	rl := newFakeReflogStore()
	root := t.TempDir()
	workDir := t.TempDir()
	return newRepo(store, rs, rl, root, workDir), store, rs
}

func TestCherryPickCleanAppliesAndAdvancesHead(t *testing.T) {
	r, s, _ := newTestRepo(t)

	baseTree := s.putTree(map[string]string{"a.txt": "base", "b.txt": "unrelated"})
	base := s.commit(baseTree, "base")

	pickTree := s.putTree(map[string]string{"a.txt": "picked", "b.txt": "unrelated"})
	pick := s.commit(pickTree, "add feature", base)

	headTree := s.putTree(map[string]string{"a.txt": "base", "b.txt": "unrelated", "c.txt": "mine"})
	head := s.commit(headTree, "my commit", base)

	out, err := r.CherryPick(head, "", false, pick, "pick", sig("me"), newCommitFunc(s))
	if err != nil {
		t.Fatalf("CherryPick: %v", err)
	}
	if out.Head == head {
		t.Fatal("expected a new commit")
	}
	if !out.Result.Clean() {
		t.Fatalf("expected a clean pick, got %+v", out.Result)
	}
	if r.CherryPickInProgress() {
		t.Fatal("expected cherry-pick state to be cleared")
	}

	newHead, err := r.loader().Commit(out.Head)
	if err != nil {
		t.Fatal(err)
	}
	if len(newHead.Parents) != 1 || newHead.Parents[0] != head {
		t.Fatalf("expected sole parent %s, got %v", head, newHead.Parents)
	}
	if newHead.Message != "add feature" {
		t.Fatalf("expected picked commit's message, got %q", newHead.Message)
	}
}

func TestCherryPickConflictLeavesStateAndHeadUnchanged(t *testing.T) {
	r, s, _ := newTestRepo(t)

	baseTree := s.putTree(map[string]string{"a.txt": "base"})
	base := s.commit(baseTree, "base")

	pickTree := s.putTree(map[string]string{"a.txt": "theirs"})
	pick := s.commit(pickTree, "change a", base)

	headTree := s.putTree(map[string]string{"a.txt": "ours"})
	head := s.commit(headTree, "also change a", base)

	out, err := r.CherryPick(head, "", false, pick, "pick", sig("me"), newCommitFunc(s))
	if err != ErrCherryPickConflict {
		t.Fatalf("expected ErrCherryPickConflict, got %v", err)
	}
	if out.Head != head {
		t.Fatalf("expected HEAD to stay at %s, got %s", head, out.Head)
	}
	if !r.CherryPickInProgress() {
		t.Fatal("expected cherry-pick state to be left on disk")
	}

	st, err := r.readCherryPickState()
	if err != nil {
		t.Fatal(err)
	}
	if st.OrigHead != head || st.PickHash != pick {
		t.Fatalf("unexpected state: %+v", st)
	}
	if len(st.Conflicts) != 1 || st.Conflicts[0] != "a.txt" {
		t.Fatalf("expected a.txt listed as conflicted, got %v", st.Conflicts)
	}
}

func TestCherryPickRefusesWhileAlreadyInProgress(t *testing.T) {
	r, s, _ := newTestRepo(t)
	baseTree := s.putTree(map[string]string{"a.txt": "base"})
	base := s.commit(baseTree, "base")
	pick := s.commit(s.putTree(map[string]string{"a.txt": "v2"}), "pick", base)

	if err := r.writeCherryPickState(&CherryPickState{PickHash: pick, OrigHead: base}); err != nil {
		t.Fatal(err)
	}
	_, err := r.CherryPick(base, "", false, pick, "pick", sig("me"), newCommitFunc(s))
	if err != ErrCherryPickInProgress {
		t.Fatalf("expected ErrCherryPickInProgress, got %v", err)
	}
}

func TestCherryPickAbortRestoresOrigHead(t *testing.T) {
	r, s, rs := newTestRepo(t)

	baseTree := s.putTree(map[string]string{"a.txt": "base"})
	base := s.commit(baseTree, "base")
	pick := s.commit(s.putTree(map[string]string{"a.txt": "theirs"}), "change a", base)
	head := s.commit(s.putTree(map[string]string{"a.txt": "ours"}), "also change a", base)

	branch := plumbing.NewBranchReferenceName("main")
	if err := rs.Update(plumbing.NewHashReference(branch, head), nil); err != nil {
		t.Fatal(err)
	}

	out, err := r.CherryPick(head, branch, false, pick, "pick", sig("me"), newCommitFunc(s))
	if err != ErrCherryPickConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	_ = out

	if err := r.CherryPickAbort(head, branch, sig("me")); err != nil {
		t.Fatalf("CherryPickAbort: %v", err)
	}
	if r.CherryPickInProgress() {
		t.Fatal("expected cherry-pick state cleared after abort")
	}
	ref, err := rs.Reference(branch)
	if err != nil || ref.Hash() != head {
		t.Fatalf("expected branch restored to %s, got %+v (%v)", head, ref, err)
	}
}
