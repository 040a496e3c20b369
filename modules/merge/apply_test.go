package merge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gitcore/gitcore/modules/plumbing"
)

func TestApplyCleanMergeWritesNonConflictingChanges(t *testing.T) {
	s := newMemStore()
	base := s.putTree(map[string]string{"a.txt": "base-a", "b.txt": "base-b"})
	ours := s.putTree(map[string]string{"a.txt": "ours-a", "b.txt": "base-b"})
	theirs := s.putTree(map[string]string{"a.txt": "base-a", "b.txt": "theirs-b"})

	dir := t.TempDir()
	idx, result, err := Apply(dir, s, base, ours, theirs, "HEAD", "theirs")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !result.Clean() {
		t.Fatalf("expected a clean merge, got conflicts %v / %v", result.Conflicts, result.BinaryConflicts)
	}
	if len(idx.Entries) != 2 {
		t.Fatalf("expected 2 index entries, got %d", len(idx.Entries))
	}

	checkFile(t, dir, "a.txt", "ours-a")
	checkFile(t, dir, "b.txt", "theirs-b")
}

func TestApplyTextConflictWritesMarkers(t *testing.T) {
	s := newMemStore()
	base := s.putTree(map[string]string{"a.txt": "base"})
	ours := s.putTree(map[string]string{"a.txt": "ours-version"})
	theirs := s.putTree(map[string]string{"a.txt": "theirs-version"})

	dir := t.TempDir()
	idx, result, err := Apply(dir, s, base, ours, theirs, "HEAD", "feature")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Clean() {
		t.Fatal("expected a conflict")
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0] != "a.txt" {
		t.Fatalf("expected a.txt to conflict, got %v", result.Conflicts)
	}
	checkFile(t, dir, "a.txt", "<<<<<<< HEAD\nours-version=======\ntheirs-version>>>>>>> feature\n")
	if len(idx.Entries) != 1 {
		t.Fatalf("expected the conflicted path to still be indexed, got %d entries", len(idx.Entries))
	}
}

func TestApplyBinaryConflictKeepsOursWithNoMarkers(t *testing.T) {
	s := newMemStore()
	binary := string([]byte{0x00, 0x01, 0x02, 'o', 'u', 'r', 's'})
	base := s.putTree(map[string]string{"img.bin": "base"})
	ours := s.putTree(map[string]string{"img.bin": binary})
	theirs := s.putTree(map[string]string{"img.bin": "theirs-version"})

	dir := t.TempDir()
	_, result, err := Apply(dir, s, base, ours, theirs, "HEAD", "theirs")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(result.BinaryConflicts) != 1 || result.BinaryConflicts[0] != "img.bin" {
		t.Fatalf("expected img.bin to be a binary conflict, got %v / %v", result.Conflicts, result.BinaryConflicts)
	}
	checkFile(t, dir, "img.bin", binary)
}

func TestApplyAgreementOnDeletionRemovesFileAndEmptyParent(t *testing.T) {
	s := newMemStore()
	base := s.putTree(map[string]string{"sub/a.txt": "base"})
	ours := s.putTree(map[string]string{})
	theirs := s.putTree(map[string]string{})

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "a.txt"), []byte("base"), 0o644); err != nil {
		t.Fatal(err)
	}

	idx, result, err := Apply(dir, s, base, ours, theirs, "HEAD", "theirs")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(result.Deleted) != 1 || result.Deleted[0] != "sub/a.txt" {
		t.Fatalf("expected sub/a.txt deleted, got %v", result.Deleted)
	}
	if len(idx.Entries) != 0 {
		t.Fatalf("expected an empty index, got %d entries", len(idx.Entries))
	}
	if _, err := os.Stat(filepath.Join(dir, "sub")); !os.IsNotExist(err) {
		t.Fatal("expected the now-empty sub directory to be pruned")
	}
}

func TestApplyHandlesZeroHashTreeAsEmpty(t *testing.T) {
	s := newMemStore()
	ours := s.putTree(map[string]string{"new.txt": "content"})

	dir := t.TempDir()
	idx, result, err := Apply(dir, s, plumbing.ZeroHash, ours, plumbing.ZeroHash, "HEAD", "theirs")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !result.Clean() {
		t.Fatalf("expected a clean merge against an empty base/theirs, got %+v", result)
	}
	if len(idx.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(idx.Entries))
	}
	checkFile(t, dir, "new.txt", "content")
}

func checkFile(t *testing.T, dir, path, want string) {
	t.Helper()
	got, err := os.ReadFile(filepath.Join(dir, path))
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if string(got) != want {
		t.Fatalf("%s: got %q, want %q", path, got, want)
	}
}
