package pack

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/gitcore/gitcore/modules/plumbing"
)

var idxMagic = [4]byte{0xff, 0x74, 0x4f, 0x63} // "\xfftOc"

const idxVersion = 2

// Index is a parsed pack-index v2 file: a 256-entry fanout table over a
// sorted table of object names, each paired with a CRC32 (tolerated as
// zero-filled) and a pack offset (4 bytes, indirecting through an 8-byte
// large-offset table when the high bit is set).
type Index struct {
	r      io.ReaderAt
	fanout [256]uint32
	count  int64

	namesOff      int64
	crcOff        int64
	smallOffOff   int64
	largeOffOff   int64
	packSHA       plumbing.Hash
	idxSHA        plumbing.Hash
}

const indexHeaderWidth = 4 + 4 // magic + version

// DecodeIndex parses an idx v2 file from r, given its total byte length.
func DecodeIndex(r io.ReaderAt, size int64) (*Index, error) {
	var hdr [indexHeaderWidth]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, fmt.Errorf("pack: reading idx header: %w", err)
	}
	if !bytes.Equal(hdr[:4], idxMagic[:]) {
		return nil, plumbing.NewIdxError("bad magic")
	}
	version := binary.BigEndian.Uint32(hdr[4:8])
	if version != idxVersion {
		return nil, plumbing.NewIdxError("unsupported idx version %d", version)
	}

	idx := &Index{r: r}
	var fanoutBuf [256 * 4]byte
	if _, err := r.ReadAt(fanoutBuf[:], indexHeaderWidth); err != nil {
		return nil, fmt.Errorf("pack: reading idx fanout: %w", err)
	}
	for i := 0; i < 256; i++ {
		idx.fanout[i] = binary.BigEndian.Uint32(fanoutBuf[i*4 : i*4+4])
	}
	idx.count = int64(idx.fanout[255])

	idx.namesOff = indexHeaderWidth + 256*4
	idx.crcOff = idx.namesOff + idx.count*plumbing.HASH_DIGEST_SIZE
	idx.smallOffOff = idx.crcOff + idx.count*4
	idx.largeOffOff = idx.smallOffOff + idx.count*4

	// The large-offset table's size isn't known up front (it only contains
	// entries that need it), so the trailer is located from the end of the
	// file instead of computed forward.
	if size < 40 {
		return nil, plumbing.NewIdxError("file too short for trailer")
	}
	var trailer [40]byte
	if _, err := r.ReadAt(trailer[:], size-40); err != nil {
		return nil, fmt.Errorf("pack: reading idx trailer: %w", err)
	}
	copy(idx.packSHA[:], trailer[:20])
	copy(idx.idxSHA[:], trailer[20:])

	return idx, nil
}

func (idx *Index) Count() int64 { return idx.count }

func (idx *Index) PackSHA() plumbing.Hash { return idx.packSHA }

func (idx *Index) nameAt(pos int64) (plumbing.Hash, error) {
	var h plumbing.Hash
	if _, err := idx.r.ReadAt(h[:], idx.namesOff+pos*plumbing.HASH_DIGEST_SIZE); err != nil {
		return h, err
	}
	return h, nil
}

func (idx *Index) offsetAt(pos int64) (uint64, error) {
	var small [4]byte
	if _, err := idx.r.ReadAt(small[:], idx.smallOffOff+pos*4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(small[:])
	if v&0x80000000 == 0 {
		return uint64(v), nil
	}
	var large [8]byte
	largeIdx := int64(v &^ 0x80000000)
	if _, err := idx.r.ReadAt(large[:], idx.largeOffOff+largeIdx*8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(large[:]), nil
}

// bounds returns the [left, right) search range for the given first byte,
// per the fanout table.
func (idx *Index) bounds(first byte) (int64, int64) {
	var left int64
	if first > 0 {
		left = int64(idx.fanout[first-1])
	}
	right := int64(idx.fanout[first])
	return left, right
}

// Find returns the pack offset of oid, or a NoSuchObject error.
func (idx *Index) Find(oid plumbing.Hash) (uint64, error) {
	left, right := idx.bounds(oid[0])
	for left < right {
		mid := left + (right-left)/2
		name, err := idx.nameAt(mid)
		if err != nil {
			return 0, err
		}
		cmp := bytes.Compare(oid[:], name[:])
		switch {
		case cmp == 0:
			return idx.offsetAt(mid)
		case cmp < 0:
			right = mid
		default:
			left = mid + 1
		}
	}
	return 0, plumbing.NoSuchObject(oid)
}

// ResolvePrefix appends every object name whose leading bytes equal prefix
// to matches and returns the possibly-extended slice. Ambiguity
// and not-found are left for the caller (the unified store) to decide once
// every pack and the loose store have been consulted.
func (idx *Index) ResolvePrefix(prefix []byte, matches []plumbing.Hash) ([]plumbing.Hash, error) {
	var first byte
	if len(prefix) > 0 {
		first = prefix[0]
	}
	left, right := idx.bounds(first)
	// Binary search for the first name >= prefix, then scan forward while
	// the prefix still matches.
	lo, hi := left, right
	for lo < hi {
		mid := lo + (hi-lo)/2
		name, err := idx.nameAt(mid)
		if err != nil {
			return matches, err
		}
		if bytes.Compare(name[:], prefix) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	for pos := lo; pos < right; pos++ {
		name, err := idx.nameAt(pos)
		if err != nil {
			return matches, err
		}
		if !bytes.HasPrefix(name[:], prefix) {
			break
		}
		matches = append(matches, name)
	}
	return matches, nil
}

// IterShas calls fn once per object name stored in the index, in sorted
// order.
func (idx *Index) IterShas(fn func(plumbing.Hash) error) error {
	for i := int64(0); i < idx.count; i++ {
		name, err := idx.nameAt(i)
		if err != nil {
			return err
		}
		if err := fn(name); err != nil {
			return err
		}
	}
	return nil
}

// IndexObjectEntry is one entry written to a new idx file.
type IndexObjectEntry struct {
	Hash   plumbing.Hash
	Offset uint64
	CRC32  uint32
}

// WriteIndex serializes entries (which need not be pre-sorted) into the
// pack-index v2 format and writes them to w, returning the idx file's own
// trailing SHA-1.
func WriteIndex(w io.Writer, packSHA plumbing.Hash, entries []IndexObjectEntry) (plumbing.Hash, error) {
	sorted := make([]IndexObjectEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Hash[:], sorted[j].Hash[:]) < 0
	})

	h := sha1.New()
	mw := io.MultiWriter(w, h)

	if _, err := mw.Write(idxMagic[:]); err != nil {
		return plumbing.ZeroHash, err
	}
	var verBuf [4]byte
	binary.BigEndian.PutUint32(verBuf[:], idxVersion)
	if _, err := mw.Write(verBuf[:]); err != nil {
		return plumbing.ZeroHash, err
	}

	var fanout [256]uint32
	for _, e := range sorted {
		for b := int(e.Hash[0]); b < 256; b++ {
			fanout[b]++
		}
	}
	var fanoutBuf [256 * 4]byte
	for i := 0; i < 256; i++ {
		binary.BigEndian.PutUint32(fanoutBuf[i*4:i*4+4], fanout[i])
	}
	if _, err := mw.Write(fanoutBuf[:]); err != nil {
		return plumbing.ZeroHash, err
	}

	for _, e := range sorted {
		if _, err := mw.Write(e.Hash[:]); err != nil {
			return plumbing.ZeroHash, err
		}
	}
	for _, e := range sorted {
		var crc [4]byte
		binary.BigEndian.PutUint32(crc[:], e.CRC32)
		if _, err := mw.Write(crc[:]); err != nil {
			return plumbing.ZeroHash, err
		}
	}

	var largeOffsets []uint64
	for _, e := range sorted {
		var small [4]byte
		if e.Offset <= 0x7fffffff {
			binary.BigEndian.PutUint32(small[:], uint32(e.Offset))
		} else {
			binary.BigEndian.PutUint32(small[:], 0x80000000|uint32(len(largeOffsets)))
			largeOffsets = append(largeOffsets, e.Offset)
		}
		if _, err := mw.Write(small[:]); err != nil {
			return plumbing.ZeroHash, err
		}
	}
	for _, off := range largeOffsets {
		var large [8]byte
		binary.BigEndian.PutUint64(large[:], off)
		if _, err := mw.Write(large[:]); err != nil {
			return plumbing.ZeroHash, err
		}
	}

	if _, err := mw.Write(packSHA[:]); err != nil {
		return plumbing.ZeroHash, err
	}

	var idxSHA plumbing.Hash
	copy(idxSHA[:], h.Sum(nil))
	if _, err := w.Write(idxSHA[:]); err != nil {
		return plumbing.ZeroHash, err
	}
	return idxSHA, nil
}
