package gc

import (
	"context"
	"testing"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
)

func TestRepackCollectsCommitsTreesAndBlobs(t *testing.T) {
	s := newFakeStore()
	blob := s.putBlob("hello")
	tree := s.putTree([]object.TreeEntry{{Mode: object.ModeFile, Name: "a.txt", Hash: blob}})
	base := s.putCommit(tree)
	tree2 := s.putTree([]object.TreeEntry{{Mode: object.ModeFile, Name: "b.txt", Hash: blob}})
	head := s.putCommit(tree2, base)

	refs := &fakeRefStore{refs: []*plumbing.Reference{branchRef("main", head)}}

	packSHA, err := Repack(context.Background(), s, refs, false)
	if err != nil {
		t.Fatalf("Repack: %v", err)
	}
	if packSHA == plumbing.ZeroHash {
		t.Fatalf("expected a non-zero pack hash")
	}

	for _, want := range []plumbing.Hash{blob, tree, tree2, base, head} {
		if !contains(s.packed, want) {
			t.Fatalf("expected %s among packed objects, got %v", want, s.packed)
		}
	}
	if len(s.packed) != 5 {
		t.Fatalf("expected exactly 5 reachable objects, got %d: %v", len(s.packed), s.packed)
	}
}

func TestRepackPeelsAnnotatedTagToCommit(t *testing.T) {
	s := newFakeStore()
	blob := s.putBlob("hello")
	tree := s.putTree([]object.TreeEntry{{Mode: object.ModeFile, Name: "a.txt", Hash: blob}})
	commit := s.putCommit(tree)
	tag := s.putTag(commit, object.CommitType, "v1")

	refs := &fakeRefStore{refs: []*plumbing.Reference{tagRef("v1", tag)}}

	if _, err := Repack(context.Background(), s, refs, false); err != nil {
		t.Fatalf("Repack: %v", err)
	}

	for _, want := range []plumbing.Hash{tag, commit, tree, blob} {
		if !contains(s.packed, want) {
			t.Fatalf("expected %s reachable through the tag, got %v", want, s.packed)
		}
	}
}

func TestRepackSkipsGitlinkEntries(t *testing.T) {
	s := newFakeStore()
	blob := s.putBlob("hello")
	submoduleCommit := plumbing.NewHash("deadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	tree := s.putTree([]object.TreeEntry{
		{Mode: object.ModeFile, Name: "a.txt", Hash: blob},
		{Mode: object.ModeGitlink, Name: "sub", Hash: submoduleCommit},
	})
	head := s.putCommit(tree)

	refs := &fakeRefStore{refs: []*plumbing.Reference{branchRef("main", head)}}

	if _, err := Repack(context.Background(), s, refs, false); err != nil {
		t.Fatalf("Repack: %v", err)
	}
	if contains(s.packed, submoduleCommit) {
		t.Fatalf("expected gitlink target to be skipped, got %v", s.packed)
	}
}

func TestRepackPrunesLooseWhenRequested(t *testing.T) {
	s := newFakeStore()
	blob := s.putBlob("hello")
	tree := s.putTree([]object.TreeEntry{{Mode: object.ModeFile, Name: "a.txt", Hash: blob}})
	head := s.putCommit(tree)

	refs := &fakeRefStore{refs: []*plumbing.Reference{branchRef("main", head)}}

	if _, err := Repack(context.Background(), s, refs, true); err != nil {
		t.Fatalf("Repack: %v", err)
	}
	for _, want := range []plumbing.Hash{blob, tree, head} {
		if !s.removed[want] {
			t.Fatalf("expected %s to be pruned from loose storage", want)
		}
	}
}

func TestRepackReturnsZeroHashWhenNothingReachable(t *testing.T) {
	s := newFakeStore()
	refs := &fakeRefStore{}

	packSHA, err := Repack(context.Background(), s, refs, false)
	if err != nil {
		t.Fatalf("Repack: %v", err)
	}
	if packSHA != plumbing.ZeroHash {
		t.Fatalf("expected zero hash when nothing is reachable, got %s", packSHA)
	}
	if len(s.packed) != 0 {
		t.Fatalf("expected WritePack not to be called, got %v", s.packed)
	}
}

func TestRepackIgnoresNonBranchNonTagRefs(t *testing.T) {
	s := newFakeStore()
	blob := s.putBlob("hello")
	tree := s.putTree([]object.TreeEntry{{Mode: object.ModeFile, Name: "a.txt", Hash: blob}})
	head := s.putCommit(tree)

	remote := plumbing.NewHashReference(plumbing.NewRemoteReferenceName("origin", "main"), head)
	refs := &fakeRefStore{refs: []*plumbing.Reference{remote}}

	packSHA, err := Repack(context.Background(), s, refs, false)
	if err != nil {
		t.Fatalf("Repack: %v", err)
	}
	if packSHA != plumbing.ZeroHash {
		t.Fatalf("expected remote-tracking refs alone not to be a repack root, got %s", packSHA)
	}
}
