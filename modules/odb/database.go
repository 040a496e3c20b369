package odb

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/pack"
	"github.com/gitcore/gitcore/modules/plumbing"
	"github.com/sirupsen/logrus"
)

// Database is the unified object store: a loose object directory composed
// with zero or more packs, with ambiguity-safe abbreviated-name resolution
// across both. It satisfies pack.BaseResolver so REF_DELTA bases that live
// outside the pack currently being read (in another pack, or loose) can be
// found.
type Database struct {
	root   string
	loose  *LooseStorage
	packs  *pack.Set
	log    *logrus.Entry
	cache  *ristretto.Cache[string, []byte]
	closed uint32
	mu     sync.RWMutex
}

// Option configures a Database at construction time.
type Option func(*Database)

// WithLogger attaches a structured logger; omitted, logging is a no-op.
func WithLogger(log *logrus.Entry) Option {
	return func(d *Database) { d.log = log }
}

// WithObjectCache enables an in-process LRU cache of decompressed loose
// object content in front of the union store, sized in bytes.
func WithObjectCache(maxBytes int64) Option {
	return func(d *Database) {
		c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
			NumCounters: maxBytes / 100,
			MaxCost:     maxBytes,
			BufferItems: 64,
		})
		if err == nil {
			d.cache = c
		}
	}
}

// NewDatabase opens (creating if necessary) a loose object store rooted at
// root and a pack set under root/pack (mirroring a repository's
// .git/objects directory, whose loose fanout dirs and pack/ subdirectory
// sit side by side).
func NewDatabase(root string, opts ...Option) (*Database, error) {
	discard := logrus.New()
	discard.SetOutput(discardWriter{})
	d := &Database{
		root: root,
		log:  logrus.NewEntry(discard),
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := os.MkdirAll(filepath.Join(root, "pack"), 0o755); err != nil {
		return nil, err
	}
	d.loose = NewLooseStorage(root)
	packs, err := pack.NewSet(filepath.Join(root, "pack"))
	if err != nil {
		return nil, err
	}
	d.packs = packs
	return d, nil
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Reload rescans the pack directory, picking up packs written by a
// concurrent process (e.g. a `gc` repack) since the Database was opened.
func (d *Database) Reload() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.packs.Rescan()
}

func (d *Database) Close() error {
	if !atomic.CompareAndSwapUint32(&d.closed, 0, 1) {
		return nil
	}
	return d.packs.Close()
}

// Exists reports whether oid is present in the loose store or any pack.
func (d *Database) Exists(oid plumbing.Hash) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loose.Exists(oid) || d.packs.Exists(oid)
}

// GetRaw implements pack.BaseResolver and is the primitive every typed
// accessor below is built on.
func (d *Database) GetRaw(oid plumbing.Hash) (object.Type, []byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.cache != nil {
		if v, ok := d.cache.Get(oid.String()); ok {
			return splitHeader(v)
		}
	}
	if d.loose.Exists(oid) {
		typ, content, err := d.loose.ReadRaw(oid)
		if err == nil && d.cache != nil {
			header := []byte(object.Header(typ, int64(len(content))))
			d.cache.Set(oid.String(), append(header, content...), int64(len(content)))
		}
		return typ, content, err
	}
	typ, content, err := d.packs.GetRaw(oid, d)
	if err != nil {
		d.log.WithField("oid", oid).Debug("object not found")
	}
	return typ, content, err
}

// Put stores content (the object's own payload, not including the canonical
// header) and returns its hash.
func (d *Database) Put(t object.Type, content []byte) (plumbing.Hash, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loose.Put(t, content)
}

// ResolvePrefix resolves an abbreviated hex object name (at least
// plumbing.MIN_PREFIX_LEN characters) to a single unambiguous Hash.
func (d *Database) ResolvePrefix(prefixHex string) (plumbing.Hash, error) {
	if len(prefixHex) == plumbing.HASH_HEX_SIZE {
		h, err := plumbing.NewHashEx(prefixHex)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if !d.Exists(h) {
			return plumbing.ZeroHash, plumbing.NoSuchObject(h)
		}
		return h, nil
	}
	if !plumbing.ValidateHashPrefixHex(prefixHex) {
		return plumbing.ZeroHash, fmt.Errorf("odb: %q is not a valid object name prefix", prefixHex)
	}

	prefixBytes, err := hexPrefixBytes(prefixHex)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	matches := make(map[plumbing.Hash]bool)
	if err := d.loose.IterateAll(func(h plumbing.Hash) error {
		if hexHasPrefix(h, prefixHex) {
			matches[h] = true
		}
		return nil
	}); err != nil {
		return plumbing.ZeroHash, err
	}
	packMatches, err := d.packs.ResolvePrefix(prefixBytes)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	for _, h := range packMatches {
		if hexHasPrefix(h, prefixHex) {
			matches[h] = true
		}
	}

	switch len(matches) {
	case 0:
		return plumbing.ZeroHash, fmt.Errorf("odb: no object matches prefix %q: %w", prefixHex, plumbing.NoSuchObject(plumbing.ZeroHash))
	case 1:
		for h := range matches {
			return h, nil
		}
	}
	return plumbing.ZeroHash, plumbing.NewAmbiguousRef(prefixHex)
}

func hexHasPrefix(h plumbing.Hash, prefixHex string) bool {
	return len(h.String()) >= len(prefixHex) && h.String()[:len(prefixHex)] == prefixHex
}

// hexPrefixBytes packs an odd- or even-length hex prefix into bytes
// suitable for byte-wise comparison against index entries; an odd trailing
// nibble is dropped, and callers must still re-check the full hex string
// prefix (hexHasPrefix) since the shorter byte prefix over-matches.
func hexPrefixBytes(prefixHex string) ([]byte, error) {
	padded := prefixHex
	if len(padded)%2 == 1 {
		padded = padded[:len(padded)-1]
	}
	out := make([]byte, len(padded)/2)
	for i := 0; i < len(out); i++ {
		hi := nibble(padded[i*2])
		lo := nibble(padded[i*2+1])
		if hi < 0 || lo < 0 {
			return nil, fmt.Errorf("odb: invalid hex prefix %q", prefixHex)
		}
		out[i] = byte(hi<<4 | lo)
	}
	return out, nil
}

func nibble(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10
	default:
		return -1
	}
}

// WritePack folds objectIDs (which may already live loose, in another
// pack, or both) into one new pack plus idx file under this database's
// pack directory, written atomically (temp file, then rename) the same
// way every other full-file replace in this engine is, then rescans so
// the new pack is immediately visible to lookups. Returns the new pack's
// trailing SHA-1, used to name it "pack-<sha>.pack"/".idx".
func (d *Database) WritePack(objectIDs []plumbing.Hash) (plumbing.Hash, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	packDir := filepath.Join(d.root, "pack")
	packTmp, err := os.CreateTemp(packDir, "temp-pack-")
	if err != nil {
		return plumbing.ZeroHash, err
	}
	packTmpName := packTmp.Name()
	entries, packSHA, err := pack.WritePack(packTmp, objectIDs, d.getRawLocked)
	if err != nil {
		packTmp.Close()
		os.Remove(packTmpName)
		return plumbing.ZeroHash, err
	}
	if err := packTmp.Close(); err != nil {
		os.Remove(packTmpName)
		return plumbing.ZeroHash, err
	}

	idxTmp, err := os.CreateTemp(packDir, "temp-idx-")
	if err != nil {
		os.Remove(packTmpName)
		return plumbing.ZeroHash, err
	}
	idxTmpName := idxTmp.Name()
	if _, err := pack.WriteIndex(idxTmp, packSHA, entries); err != nil {
		idxTmp.Close()
		os.Remove(packTmpName)
		os.Remove(idxTmpName)
		return plumbing.ZeroHash, err
	}
	if err := idxTmp.Close(); err != nil {
		os.Remove(packTmpName)
		os.Remove(idxTmpName)
		return plumbing.ZeroHash, err
	}

	packName := filepath.Join(packDir, fmt.Sprintf("pack-%s.pack", packSHA))
	idxName := filepath.Join(packDir, fmt.Sprintf("pack-%s.idx", packSHA))
	if err := os.Rename(packTmpName, packName); err != nil {
		os.Remove(packTmpName)
		os.Remove(idxTmpName)
		return plumbing.ZeroHash, err
	}
	if err := os.Rename(idxTmpName, idxName); err != nil {
		os.Remove(idxTmpName)
		return plumbing.ZeroHash, err
	}

	if err := d.packs.Rescan(); err != nil {
		return packSHA, err
	}
	return packSHA, nil
}

// getRawLocked loads an object's raw content for the pack writer, assuming
// d.mu is already held (WritePack's caller), so it bypasses GetRaw's own
// locking — including for REF_DELTA bases resolved outside the pack
// currently being read, via lockFreeResolver rather than d itself (d.GetRaw
// would re-acquire d.mu and deadlock against the write lock already held).
func (d *Database) getRawLocked(oid plumbing.Hash) (object.Type, []byte, error) {
	if d.loose.Exists(oid) {
		return d.loose.ReadRaw(oid)
	}
	return d.packs.GetRaw(oid, lockFreeResolver{d})
}

// lockFreeResolver adapts Database to pack.BaseResolver without taking
// d.mu, for use while a caller (WritePack) already holds it.
type lockFreeResolver struct{ d *Database }

func (r lockFreeResolver) GetRaw(oid plumbing.Hash) (object.Type, []byte, error) {
	return r.d.getRawLocked(oid)
}

// RemoveLoose deletes oid's loose copy, used by a gc repack once oid is
// safely duplicated into a new pack.
func (d *Database) RemoveLoose(oid plumbing.Hash) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loose.Remove(oid)
}
