package refs

import (
	"testing"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSignature(name string) object.Signature {
	return object.Signature{
		Name:     name,
		Email:    "dev@example.com",
		When:     1700000000,
		TZOffset: "+0000",
	}
}

func TestReflogPushSetsOldFromPreviousNew(t *testing.T) {
	l := &Reflog{name: plumbing.NewBranchReferenceName("main")}

	h1 := plumbing.NewHash("1111111111111111111111111111111111111111")
	h2 := plumbing.NewHash("2222222222222222222222222222222222222222")

	l.Push(h1, testSignature("Ada Lovelace"), "commit: first")
	require.Len(t, l.Entries, 1)
	assert.Equal(t, plumbing.ZeroHash, l.Entries[0].Old)
	assert.Equal(t, h1, l.Entries[0].New)

	l.Push(h2, testSignature("Ada Lovelace"), "commit: second")
	require.Len(t, l.Entries, 2)
	assert.Equal(t, h1, l.Entries[0].Old, "new entry's Old must chain from the previous New")
	assert.Equal(t, h2, l.Entries[0].New)
	assert.Equal(t, plumbing.ZeroHash, l.Entries[1].Old)
	assert.Equal(t, h1, l.Entries[1].New)
}

func TestReflogWriteReadRoundTripPreservesOrderAndSpacesInName(t *testing.T) {
	root := t.TempDir()
	store := NewReflogStore(root)
	name := plumbing.NewBranchReferenceName("main")

	l := &Reflog{name: name}
	h1 := plumbing.NewHash("3333333333333333333333333333333333333333")
	h2 := plumbing.NewHash("4444444444444444444444444444444444444444")
	l.Push(h1, testSignature("Grace Hopper"), "commit (initial): first commit")
	l.Push(h2, testSignature("Grace Murray Hopper"), "checkout: moving from main to main")

	require.NoError(t, store.Write(l))
	assert.True(t, store.Exists(name))

	got, err := store.Read(name)
	require.NoError(t, err)
	require.Len(t, got.Entries, 2)

	assert.Equal(t, h2, got.Entries[0].New)
	assert.Equal(t, h1, got.Entries[0].Old)
	assert.Equal(t, "Grace Murray Hopper", got.Entries[0].Who.Name)
	assert.Equal(t, "checkout: moving from main to main", got.Entries[0].Message)

	assert.Equal(t, h1, got.Entries[1].New)
	assert.Equal(t, plumbing.ZeroHash, got.Entries[1].Old)
	assert.Equal(t, "Grace Hopper", got.Entries[1].Who.Name)
}

func TestReflogReadMissingReturnsEmptyNotError(t *testing.T) {
	root := t.TempDir()
	store := NewReflogStore(root)

	l, err := store.Read(plumbing.NewBranchReferenceName("missing"))
	require.NoError(t, err)
	assert.True(t, l.Empty())
}

func TestReflogDropRemovesEntryAtIndex(t *testing.T) {
	l := &Reflog{name: plumbing.NewBranchReferenceName("main")}
	l.Push(plumbing.NewHash("5555555555555555555555555555555555555555"), testSignature("A"), "one")
	l.Push(plumbing.NewHash("6666666666666666666666666666666666666666"), testSignature("A"), "two")

	require.NoError(t, l.Drop(0))
	require.Len(t, l.Entries, 1)
	assert.Equal(t, "one", l.Entries[0].Message)

	assert.Error(t, l.Drop(5))
}

func TestParseReflogLineHandlesEmbeddedSpacesInName(t *testing.T) {
	line := "0000000000000000000000000000000000000000 7777777777777777777777777777777777777777 " +
		"Grace Murray Hopper <grace@example.com> 1700000000 +0000\tcommit: initial"
	e, err := parseReflogLine(line)
	require.NoError(t, err)
	assert.Equal(t, "Grace Murray Hopper", e.Who.Name)
	assert.Equal(t, "grace@example.com", e.Who.Email)
	assert.Equal(t, "commit: initial", e.Message)
	assert.Equal(t, plumbing.NewHash("7777777777777777777777777777777777777777"), e.New)
}

func TestParseReflogLineWithoutMessage(t *testing.T) {
	line := "0000000000000000000000000000000000000000 8888888888888888888888888888888888888888 " +
		"A U Thor <a@example.com> 1700000000 +0000"
	e, err := parseReflogLine(line)
	require.NoError(t, err)
	assert.Equal(t, "", e.Message)
}
