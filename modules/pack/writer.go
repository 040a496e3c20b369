package pack

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"sort"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
	"github.com/klauspost/compress/zlib"
)

// GetRawFunc loads an object's type and content by hash, for writing into
// a pack.
type GetRawFunc func(plumbing.Hash) (object.Type, []byte, error)

// WritePack writes objects (which need not be pre-sorted) to w as a pack
// v2 stream: a 12-byte header, then one full (non-deltified) zlib entry per
// object in ascending hash order, then the trailing SHA-1 of everything
// written so far. It returns the per-object (offset, CRC32) pairs needed to
// build the matching idx file, and the pack's own trailing hash.
func WritePack(w io.Writer, objects []plumbing.Hash, getRaw GetRawFunc) ([]IndexObjectEntry, plumbing.Hash, error) {
	sorted := make([]plumbing.Hash, len(objects))
	copy(sorted, objects)
	sort.Sort(plumbing.HashSlice(sorted))

	h := sha1.New()
	cw := &countingWriter{w: io.MultiWriter(w, h)}

	var hdr [packHeaderWidth]byte
	copy(hdr[:4], packMagic[:])
	binary.BigEndian.PutUint32(hdr[4:8], 2)
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(sorted)))
	if _, err := cw.Write(hdr[:]); err != nil {
		return nil, plumbing.ZeroHash, err
	}

	entries := make([]IndexObjectEntry, 0, len(sorted))
	for _, oid := range sorted {
		typ, content, err := getRaw(oid)
		if err != nil {
			return nil, plumbing.ZeroHash, fmt.Errorf("pack: loading %s: %w", oid, err)
		}
		tn, ok := typeNum[typ]
		if !ok {
			return nil, plumbing.ZeroHash, fmt.Errorf("pack: cannot store object of type %s in a pack", typ)
		}

		entryOffset := cw.n
		crc := crc32.NewIEEE()
		mw := io.MultiWriter(cw, crc)

		if _, err := mw.Write(encodeTypeSize(tn, int64(len(content)))); err != nil {
			return nil, plumbing.ZeroHash, err
		}
		zw := zlib.NewWriter(mw)
		if _, err := zw.Write(content); err != nil {
			return nil, plumbing.ZeroHash, err
		}
		if err := zw.Close(); err != nil {
			return nil, plumbing.ZeroHash, err
		}

		entries = append(entries, IndexObjectEntry{
			Hash:   oid,
			Offset: uint64(entryOffset),
			CRC32:  crc.Sum32(),
		})
	}

	var trailer plumbing.Hash
	copy(trailer[:], h.Sum(nil))
	if _, err := w.Write(trailer[:]); err != nil {
		return nil, plumbing.ZeroHash, err
	}
	return entries, trailer, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
