package pack

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memObjects map[plumbing.Hash]rawObject

type rawObject struct {
	typ     object.Type
	content []byte
}

func (m memObjects) getRaw(oid plumbing.Hash) (object.Type, []byte, error) {
	o, ok := m[oid]
	if !ok {
		return object.InvalidType, nil, plumbing.NoSuchObject(oid)
	}
	return o.typ, o.content, nil
}

func hashOf(t object.Type, content []byte) plumbing.Hash {
	h := plumbing.NewHasher()
	h.Write([]byte(object.Header(t, int64(len(content)))))
	h.Write(content)
	return h.Sum()
}

// buildPack writes objs into a pack+idx pair held entirely in memory and
// returns an opened Pack ready for reads.
func buildPack(t *testing.T, objs memObjects) (*Pack, *bytes.Reader) {
	t.Helper()

	oids := make([]plumbing.Hash, 0, len(objs))
	for oid := range objs {
		oids = append(oids, oid)
	}

	var packBuf bytes.Buffer
	entries, trailer, err := WritePack(&packBuf, oids, objs.getRaw)
	require.NoError(t, err)
	require.NotEqual(t, plumbing.ZeroHash, trailer)

	var idxBuf bytes.Buffer
	_, err = WriteIndex(&idxBuf, trailer, entries)
	require.NoError(t, err)

	packReader := bytes.NewReader(packBuf.Bytes())
	idx, err := DecodeIndex(bytes.NewReader(idxBuf.Bytes()), int64(idxBuf.Len()))
	require.NoError(t, err)
	assert.Equal(t, int64(len(objs)), idx.Count())
	assert.Equal(t, trailer, idx.PackSHA())

	return Open(packReader, idx), packReader
}

func TestWritePackAndReadBackBlobs(t *testing.T) {
	blobA := []byte("hello, world\n")
	blobB := []byte("")
	objs := memObjects{
		hashOf(object.BlobType, blobA): {typ: object.BlobType, content: blobA},
		hashOf(object.BlobType, blobB): {typ: object.BlobType, content: blobB},
	}

	pack, _ := buildPack(t, objs)

	for oid, want := range objs {
		typ, content, err := pack.GetRaw(oid, nil)
		require.NoError(t, err)
		assert.Equal(t, want.typ, typ)
		assert.Equal(t, want.content, content)
	}
}

func TestPackGetRawMissingObject(t *testing.T) {
	pack, _ := buildPack(t, memObjects{})

	_, _, err := pack.GetRaw(plumbing.ZeroHash, nil)
	assert.True(t, plumbing.IsNoSuchObject(err))
}

func TestApplyDeltaCopyAndInsert(t *testing.T) {
	base := []byte("the quick brown fox jumps over the lazy dog")

	var delta bytes.Buffer
	delta.Write(encodeDeltaSize(int64(len(base))))
	target := []byte("the quick brown fox leaps over the lazy dog")
	delta.Write(encodeDeltaSize(int64(len(target))))

	// copy "the quick brown fox " (offset 0, size 20)
	delta.WriteByte(0x80 | 0x01 | 0x10) // offset byte0 present, size byte0 present
	delta.WriteByte(0x00)               // offset = 0
	delta.WriteByte(20)                 // size = 20
	// insert "leaps"
	delta.WriteByte(5)
	delta.WriteString("leaps")
	// copy " over the lazy dog" (offset 25, size 18)
	delta.WriteByte(0x80 | 0x01 | 0x10)
	delta.WriteByte(25)
	delta.WriteByte(18)

	got, err := applyDelta(base, delta.Bytes())
	require.NoError(t, err)
	assert.Equal(t, string(target), string(got))
}

func TestResolvePrefixUniqueAndAmbiguous(t *testing.T) {
	blobA := []byte("alpha")
	blobB := []byte("beta")
	oidA := hashOf(object.BlobType, blobA)
	oidB := hashOf(object.BlobType, blobB)
	objs := memObjects{
		oidA: {typ: object.BlobType, content: blobA},
		oidB: {typ: object.BlobType, content: blobB},
	}

	pack, _ := buildPack(t, objs)

	full := []byte{oidA[0], oidA[1]}
	matches, err := pack.idx.ResolvePrefix(full, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 2)

	single, err := pack.idx.ResolvePrefix(oidA[:], nil)
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, oidA, single[0])
}

func TestOfsDistanceRoundTrip(t *testing.T) {
	for _, dist := range []int64{1, 127, 128, 16383, 16384, 1 << 20} {
		encoded := encodeOfsDistance(dist)
		got, err := decodeOfsDistance(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, dist, got, "round trip of distance %d", dist)
	}
}

func TestTypeSizeRoundTrip(t *testing.T) {
	for _, size := range []int64{0, 1, 127, 128, 16383, 16384, 1 << 30} {
		encoded := encodeTypeSize(typeNum[object.CommitType], size)
		br := bufio.NewReader(bytes.NewReader(encoded))
		gotType, gotSize, err := decodeTypeSize(br)
		require.NoError(t, err)
		assert.Equal(t, typeNum[object.CommitType], gotType)
		assert.Equal(t, size, gotSize)
	}
}
