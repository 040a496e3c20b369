package pack

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
	"github.com/klauspost/compress/zlib"
)

var packMagic = [4]byte{'P', 'A', 'C', 'K'}

const packHeaderWidth = 12 // magic(4) + version(4) + count(4)

// BaseResolver looks up an object by hash outside of the pack currently
// being read, for REF_DELTA bases that live elsewhere (a different pack,
// or the loose store). The unified object store implements this.
type BaseResolver interface {
	GetRaw(oid plumbing.Hash) (object.Type, []byte, error)
}

// Pack is an open packfile paired with its index, resolving REF_DELTA and
// OFS_DELTA chains on demand. Resolved entries are memoized by their
// entry-start offset within this pack, so a fan-out of deltas against the
// same base only pays the reconstruction cost once per process.
type Pack struct {
	r   io.ReaderAt
	idx *Index

	mu       sync.Mutex
	resolved map[int64]resolvedEntry
}

type resolvedEntry struct {
	typ     object.Type
	content []byte
}

func Open(r io.ReaderAt, idx *Index) *Pack {
	return &Pack{r: r, idx: idx, resolved: make(map[int64]resolvedEntry)}
}

func (p *Pack) Index() *Index { return p.idx }

// Exists reports whether oid is present in this pack.
func (p *Pack) Exists(oid plumbing.Hash) bool {
	_, err := p.idx.Find(oid)
	return err == nil
}

// GetRaw resolves oid to its type and full content, following any delta
// chain. resolver is consulted for REF_DELTA bases not present in this
// pack; it may be nil if the caller knows this pack is self-contained.
func (p *Pack) GetRaw(oid plumbing.Hash, resolver BaseResolver) (object.Type, []byte, error) {
	offset, err := p.idx.Find(oid)
	if err != nil {
		return object.InvalidType, nil, err
	}
	return p.resolveAt(int64(offset), resolver, nil)
}

// resolveAt reconstructs the object stored at entry-start offset, using
// chain to detect OFS_DELTA cycles (a sequence of offsets currently being
// resolved in this call stack).
func (p *Pack) resolveAt(offset int64, resolver BaseResolver, chain map[int64]bool) (object.Type, []byte, error) {
	p.mu.Lock()
	if cached, ok := p.resolved[offset]; ok {
		p.mu.Unlock()
		return cached.typ, cached.content, nil
	}
	p.mu.Unlock()

	if chain == nil {
		chain = make(map[int64]bool)
	}
	if chain[offset] {
		return object.InvalidType, nil, plumbing.NewPackError("cyclic delta chain at offset %d", offset)
	}
	chain[offset] = true

	sr := io.NewSectionReader(p.r, offset, 1<<62)
	br := bufio.NewReader(sr)
	typeNum, size, err := decodeTypeSize(br)
	if err != nil {
		return object.InvalidType, nil, fmt.Errorf("pack: reading entry header at %d: %w", offset, err)
	}

	switch typeNum {
	case typeRefDelta:
		var baseHash plumbing.Hash
		if _, err := io.ReadFull(br, baseHash[:]); err != nil {
			return object.InvalidType, nil, fmt.Errorf("pack: reading REF_DELTA base at %d: %w", offset, err)
		}
		deltaBody, err := inflateN(br, size)
		if err != nil {
			return object.InvalidType, nil, err
		}
		baseType, baseContent, err := p.resolveBase(baseHash, offset, resolver, chain)
		if err != nil {
			return object.InvalidType, nil, err
		}
		content, err := applyDelta(baseContent, deltaBody)
		if err != nil {
			return object.InvalidType, nil, err
		}
		p.cache(offset, baseType, content)
		return baseType, content, nil

	case typeOfsDelta:
		dist, err := decodeOfsDistance(br)
		if err != nil {
			return object.InvalidType, nil, fmt.Errorf("pack: reading OFS_DELTA distance at %d: %w", offset, err)
		}
		baseOffset := offset - dist
		if baseOffset < 0 {
			return object.InvalidType, nil, plumbing.NewPackError("OFS_DELTA base offset out of range at %d", offset)
		}
		deltaBody, err := inflateN(br, size)
		if err != nil {
			return object.InvalidType, nil, err
		}
		baseType, baseContent, err := p.resolveAt(baseOffset, resolver, chain)
		if err != nil {
			return object.InvalidType, nil, err
		}
		content, err := applyDelta(baseContent, deltaBody)
		if err != nil {
			return object.InvalidType, nil, err
		}
		p.cache(offset, baseType, content)
		return baseType, content, nil

	default:
		typ, ok := objectTypeFromNum(typeNum)
		if !ok {
			return object.InvalidType, nil, plumbing.NewPackError("unknown pack entry type %d at offset %d", typeNum, offset)
		}
		content, err := inflateN(br, size)
		if err != nil {
			return object.InvalidType, nil, err
		}
		p.cache(offset, typ, content)
		return typ, content, nil
	}
}

func (p *Pack) resolveBase(baseHash plumbing.Hash, entryOffset int64, resolver BaseResolver, chain map[int64]bool) (object.Type, []byte, error) {
	if baseOffset, err := p.idx.Find(baseHash); err == nil {
		return p.resolveAt(int64(baseOffset), resolver, chain)
	}
	if resolver != nil {
		return resolver.GetRaw(baseHash)
	}
	return object.InvalidType, nil, plumbing.NoSuchObject(baseHash)
}

func (p *Pack) cache(offset int64, typ object.Type, content []byte) {
	p.mu.Lock()
	p.resolved[offset] = resolvedEntry{typ: typ, content: content}
	p.mu.Unlock()
}

// inflateN decompresses exactly one zlib stream from br and checks its
// uncompressed length against size.
func inflateN(br *bufio.Reader, size int64) ([]byte, error) {
	zr, err := zlib.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("pack: corrupt zlib stream: %w", err)
	}
	defer zr.Close()
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, zr, size); err != nil && err != io.EOF {
		return nil, fmt.Errorf("pack: inflating entry: %w", err)
	}
	if int64(buf.Len()) != size {
		return nil, plumbing.NewPackError("entry size mismatch: header says %d, inflated %d", size, buf.Len())
	}
	return buf.Bytes(), nil
}

// ReadHeader reads and validates a pack file's 12-byte header, returning
// the object count.
func ReadHeader(r io.ReaderAt) (count uint32, err error) {
	var hdr [packHeaderWidth]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return 0, fmt.Errorf("pack: reading header: %w", err)
	}
	if !bytes.Equal(hdr[:4], packMagic[:]) {
		return 0, plumbing.NewPackError("bad pack magic")
	}
	version := binary.BigEndian.Uint32(hdr[4:8])
	if version != 2 && version != 3 {
		return 0, plumbing.NewPackError("unsupported pack version %d", version)
	}
	return binary.BigEndian.Uint32(hdr[8:12]), nil
}
