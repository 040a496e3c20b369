// Package pack implements the git pack v2 wire format (packfile + idx):
// reading packed objects including REF_DELTA/OFS_DELTA resolution, and
// writing new packs (always as full objects, ascending hash order, no
// delta compression -- matching the reference writer this is grounded on).
package pack

import (
	"bufio"
	"io"

	"github.com/gitcore/gitcore/modules/object"
)

const (
	typeRefDelta = 7
	typeOfsDelta = 6
)

var typeNum = map[object.Type]byte{
	object.CommitType: 1,
	object.TreeType:   2,
	object.BlobType:   3,
	object.TagType:    4,
}

var numType = map[byte]object.Type{
	1: object.CommitType,
	2: object.TreeType,
	3: object.BlobType,
	4: object.TagType,
}

// encodeTypeSize builds a pack entry header: the low 4 bits of the first
// byte hold the low bits of size, the next 3 bits hold the type, and the
// high bit marks continuation; subsequent bytes contribute 7 size bits
// each, MSB-continued.
func encodeTypeSize(typeNum byte, size int64) []byte {
	first := byte(size&0x0f) | (typeNum << 4)
	size >>= 4
	out := []byte{}
	for size > 0 {
		out = append(out, first|0x80)
		first = byte(size & 0x7f)
		size >>= 7
	}
	out = append(out, first)
	return out
}

// decodeTypeSize reads a pack entry header from r, returning the raw type
// number (1-4 object types, 6 OFS_DELTA, 7 REF_DELTA) and the size it
// encodes (content size for base objects, size of the delta instruction stream for deltas).
func decodeTypeSize(r *bufio.Reader) (typ byte, size int64, err error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	typ = (b >> 4) & 0x07
	size = int64(b & 0x0f)
	shift := uint(4)
	for b&0x80 != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		size |= int64(b&0x7f) << shift
		shift += 7
	}
	return typ, size, nil
}

// decodeDeltaSize reads a plain continuation-encoded varint, as used for
// the base/result size fields inside a delta instruction stream.
func decodeDeltaSize(r io.ByteReader) (int64, error) {
	var size int64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		size |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	return size, nil
}

func encodeDeltaSize(size int64) []byte {
	var out []byte
	for {
		b := byte(size & 0x7f)
		size >>= 7
		if size > 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

// encodeOfsDistance encodes an OFS_DELTA base distance using git's
// big-endian, base-128-with-offset varint (distinct from the little-endian
// size varints above).
func encodeOfsDistance(dist int64) []byte {
	var buf [10]byte
	i := len(buf) - 1
	buf[i] = byte(dist & 0x7f)
	dist >>= 7
	for dist > 0 {
		dist--
		i--
		buf[i] = 0x80 | byte(dist&0x7f)
		dist >>= 7
	}
	return buf[i:]
}

func decodeOfsDistance(r io.ByteReader) (int64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	dist := int64(b & 0x7f)
	for b&0x80 != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
		dist++
		dist = (dist << 7) | int64(b&0x7f)
	}
	return dist, nil
}

func objectTypeFromNum(n byte) (object.Type, bool) {
	t, ok := numType[n]
	return t, ok
}
