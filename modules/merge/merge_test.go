package merge

import (
	"os"
	"testing"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
)

func (s *memStore) commit(tree plumbing.Hash, parents ...plumbing.Hash) plumbing.Hash {
	c := &object.Commit{
		TreeHash:  tree,
		Parents:   parents,
		Author:    sig("a"),
		Committer: sig("a"),
		Message:   "msg",
	}
	return s.putCommit(c)
}

func newCommitFunc(s *memStore) CommitNewFunc {
	return func(tree plumbing.Hash, parents []plumbing.Hash, message string) (plumbing.Hash, error) {
		c := &object.Commit{
			TreeHash:  tree,
			Parents:   parents,
			Author:    sig("merger"),
			Committer: sig("merger"),
			Message:   message,
		}
		return s.putCommit(c), nil
	}
}

func TestRunFastForwardsWhenHeadIsAncestor(t *testing.T) {
	s := newMemStore()
	t1 := s.putTree(map[string]string{"a.txt": "v1"})
	t2 := s.putTree(map[string]string{"a.txt": "v2"})
	c1 := s.commit(t1)
	c2 := s.commit(t2, c1)

	dir := t.TempDir()
	out, idx, err := Run(dir, s, c1, c2, false, Options{}, newCommitFunc(s))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.FastForward || out.Head != c2 {
		t.Fatalf("expected a fast-forward to %s, got %+v", c2, out)
	}
	checkFile(t, dir, "a.txt", "v2")
	if len(idx.Entries) != 1 {
		t.Fatalf("expected 1 index entry, got %d", len(idx.Entries))
	}
}

func TestRunNoFFForcesMergeCommitOnFastForwardableHistory(t *testing.T) {
	s := newMemStore()
	t1 := s.putTree(map[string]string{"a.txt": "v1"})
	t2 := s.putTree(map[string]string{"a.txt": "v2"})
	c1 := s.commit(t1)
	c2 := s.commit(t2, c1)

	dir := t.TempDir()
	out, _, err := Run(dir, s, c1, c2, false, Options{NoFF: true, Message: "merge"}, newCommitFunc(s))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.FastForward {
		t.Fatal("expected --no-ff to force a merge commit, not a fast-forward")
	}
	typ, raw, err := s.GetRaw(out.Head)
	if err != nil || typ != object.CommitType {
		t.Fatalf("expected a synthesized commit at %s: %v", out.Head, err)
	}
	mc, err := object.DecodeCommit(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(mc.Parents) != 2 || mc.Parents[0] != c1 || mc.Parents[1] != c2 {
		t.Fatalf("expected parents [%s %s], got %v", c1, c2, mc.Parents)
	}
}

func TestRunFFOnlyRefusesDivergentHistory(t *testing.T) {
	s := newMemStore()
	base := s.putTree(map[string]string{"a.txt": "base"})
	ourTree := s.putTree(map[string]string{"a.txt": "ours"})
	theirTree := s.putTree(map[string]string{"a.txt": "theirs"})
	baseC := s.commit(base)
	ourC := s.commit(ourTree, baseC)
	theirC := s.commit(theirTree, baseC)

	dir := t.TempDir()
	_, _, err := Run(dir, s, ourC, theirC, false, Options{FFOnly: true}, newCommitFunc(s))
	if err != ErrNotFastForward {
		t.Fatalf("expected ErrNotFastForward, got %v", err)
	}
}

func TestRunRefusesDirtyWorktreeWithoutForce(t *testing.T) {
	s := newMemStore()
	t1 := s.putTree(map[string]string{"a.txt": "v1"})
	t2 := s.putTree(map[string]string{"a.txt": "v2"})
	c1 := s.commit(t1)
	c2 := s.commit(t2, c1)

	dir := t.TempDir()
	_, _, err := Run(dir, s, c1, c2, true, Options{}, newCommitFunc(s))
	if err != ErrDirtyWorktree {
		t.Fatalf("expected ErrDirtyWorktree, got %v", err)
	}
}

func TestRunDivergentHistoryProducesMergeCommitOnCleanMerge(t *testing.T) {
	s := newMemStore()
	base := s.putTree(map[string]string{"a.txt": "base", "b.txt": "base-b"})
	ourTree := s.putTree(map[string]string{"a.txt": "ours", "b.txt": "base-b"})
	theirTree := s.putTree(map[string]string{"a.txt": "base", "b.txt": "theirs-b"})
	baseC := s.commit(base)
	ourC := s.commit(ourTree, baseC)
	theirC := s.commit(theirTree, baseC)

	dir := t.TempDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	out, idx, err := Run(dir, s, ourC, theirC, false, Options{Message: "merge theirs"}, newCommitFunc(s))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.FastForward {
		t.Fatal("expected a real merge, not a fast-forward")
	}
	if !out.Result.Clean() {
		t.Fatalf("expected a clean merge, got %+v", out.Result)
	}
	if len(idx.Entries) != 2 {
		t.Fatalf("expected 2 index entries, got %d", len(idx.Entries))
	}
	checkFile(t, dir, "a.txt", "ours")
	checkFile(t, dir, "b.txt", "theirs-b")

	_, raw, err := s.GetRaw(out.Head)
	if err != nil {
		t.Fatal(err)
	}
	mc, err := object.DecodeCommit(raw)
	if err != nil {
		t.Fatal(err)
	}
	if mc.Parents[0] != ourC || mc.Parents[1] != theirC {
		t.Fatalf("unexpected merge parents: %v", mc.Parents)
	}
}

func TestRunDivergentHistoryLeavesConflictUncommitted(t *testing.T) {
	s := newMemStore()
	base := s.putTree(map[string]string{"a.txt": "base"})
	ourTree := s.putTree(map[string]string{"a.txt": "ours"})
	theirTree := s.putTree(map[string]string{"a.txt": "theirs"})
	baseC := s.commit(base)
	ourC := s.commit(ourTree, baseC)
	theirC := s.commit(theirTree, baseC)

	dir := t.TempDir()
	out, _, err := Run(dir, s, ourC, theirC, false, Options{}, newCommitFunc(s))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.FastForward {
		t.Fatal("expected a conflicted merge attempt, not a fast-forward")
	}
	if out.Result.Clean() {
		t.Fatal("expected a conflict")
	}
	if out.Head != ourC {
		t.Fatalf("expected HEAD to stay at %s pending conflict resolution, got %s", ourC, out.Head)
	}
	checkFile(t, dir, "a.txt", "<<<<<<< HEAD\nours=======\ntheirs>>>>>>> theirs\n")
}

func TestRunInitialCheckoutFromZeroHead(t *testing.T) {
	s := newMemStore()
	tree := s.putTree(map[string]string{"README": "hello"})
	c := s.commit(tree)

	dir := t.TempDir()
	out, idx, err := Run(dir, s, plumbing.ZeroHash, c, false, Options{}, newCommitFunc(s))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.FastForward || out.Head != c {
		t.Fatalf("expected a fast-forward checkout onto %s, got %+v", c, out)
	}
	if len(idx.Entries) != 1 {
		t.Fatalf("expected 1 index entry, got %d", len(idx.Entries))
	}
	checkFile(t, dir, "README", "hello")
}
