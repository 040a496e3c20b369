package index

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/gitcore/gitcore/modules/plumbing"
)

var dircMagic = [4]byte{'D', 'I', 'R', 'C'}

const (
	dircVersion      = 2
	dircHeaderWidth  = 4 + 4 + 4 // signature + version + entry count
	checksumWidth    = plumbing.HASH_DIGEST_SIZE
	entryFixedWidth  = 8 + 8 + 8 + 4 + 4 + 4 + 4 + checksumWidth + 2 // ctime+mtime+dev/ino+mode+uid+gid+size+sha1+flags
	nameLenFlagsMask = 0x0fff
	maxNameInFlags   = 0x0fff
)

// Index is the in-memory staging area: a strictly path-sorted entry list.
type Index struct {
	Entries []*Entry
}

// New returns an empty index.
func New() *Index { return &Index{} }

// Add inserts or replaces the entry for e.Path, keeping Entries sorted.
func (idx *Index) Add(e *Entry) {
	lo, hi := 0, len(idx.Entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if idx.Entries[mid].Path < e.Path {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(idx.Entries) && idx.Entries[lo].Path == e.Path {
		idx.Entries[lo] = e
		return
	}
	idx.Entries = append(idx.Entries, nil)
	copy(idx.Entries[lo+1:], idx.Entries[lo:])
	idx.Entries[lo] = e
}

// Remove deletes the entry for path, if present, and reports whether it
// was found.
func (idx *Index) Remove(path string) bool {
	for i, e := range idx.Entries {
		if e.Path == path {
			idx.Entries = append(idx.Entries[:i], idx.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the entry for path, or nil.
func (idx *Index) Get(path string) *Entry {
	for _, e := range idx.Entries {
		if e.Path == path {
			return e
		}
	}
	return nil
}

// Decode parses a DIRC v2 file. The magic, version, and trailing checksum
// are all validated; a checksum mismatch or an out-of-order entry list is
// reported as a fatal corruption error rather than tolerated.
func Decode(data []byte) (*Index, error) {
	if len(data) < dircHeaderWidth+checksumWidth {
		return nil, plumbing.NewIndexCorrupt("file shorter than header plus checksum")
	}
	body := data[:len(data)-checksumWidth]
	trailer := data[len(data)-checksumWidth:]

	sum := sha1.Sum(body)
	var want plumbing.Hash
	copy(want[:], trailer)
	var got plumbing.Hash
	copy(got[:], sum[:])
	if got != want {
		return nil, plumbing.NewIndexChecksumError(got, want)
	}

	if !bytes.Equal(body[:4], dircMagic[:]) {
		return nil, plumbing.NewIndexCorrupt("bad signature %q", body[:4])
	}
	version := binary.BigEndian.Uint32(body[4:8])
	if version != dircVersion {
		return nil, plumbing.NewIndexCorrupt("unsupported index version %d", version)
	}
	count := binary.BigEndian.Uint32(body[8:12])

	idx := &Index{Entries: make([]*Entry, 0, count)}
	pos := dircHeaderWidth
	for i := uint32(0); i < count; i++ {
		e, next, err := decodeEntry(body, pos)
		if err != nil {
			return nil, err
		}
		idx.Entries = append(idx.Entries, e)
		pos = next
	}
	if pos != len(body) {
		return nil, plumbing.NewIndexCorrupt("trailing garbage after last entry")
	}
	if !entriesSorted(idx.Entries) {
		return nil, plumbing.NewIndexCorrupt("entries not sorted by path")
	}
	return idx, nil
}

func decodeEntry(body []byte, start int) (*Entry, int, error) {
	pos := start
	if pos+entryFixedWidth > len(body) {
		return nil, 0, plumbing.NewIndexCorrupt("index truncated mid-entry")
	}
	u32 := func() uint32 {
		v := binary.BigEndian.Uint32(body[pos : pos+4])
		pos += 4
		return v
	}

	ctimeSec := u32()
	ctimeNsec := u32()
	mtimeSec := u32()
	mtimeNsec := u32()
	dev := u32()
	ino := u32()
	mode := u32()
	uid := u32()
	gid := u32()
	size := u32()

	var h plumbing.Hash
	copy(h[:], body[pos:pos+checksumWidth])
	pos += checksumWidth

	flags := binary.BigEndian.Uint16(body[pos : pos+2])
	pos += 2
	nameLen := int(flags & nameLenFlagsMask)

	var name []byte
	if nameLen == maxNameInFlags {
		nul := bytes.IndexByte(body[pos:], 0)
		if nul < 0 {
			return nil, 0, plumbing.NewIndexCorrupt("unterminated path name")
		}
		name = body[pos : pos+nul]
		pos += nul + 1
	} else {
		if pos+nameLen+1 > len(body) {
			return nil, 0, plumbing.NewIndexCorrupt("index truncated mid-path")
		}
		name = body[pos : pos+nameLen]
		pos += nameLen
		if body[pos] != 0 {
			return nil, 0, plumbing.NewIndexCorrupt("path not NUL-terminated")
		}
		pos++
	}

	consumed := pos - start
	pos = start + ((consumed + 7) / 8 * 8)
	if pos > len(body) {
		return nil, 0, plumbing.NewIndexCorrupt("entry padding overruns file")
	}

	m, err := modeFromUint32(mode)
	if err != nil {
		return nil, 0, err
	}
	e := &Entry{
		Path:    string(name),
		Hash:    h,
		Mode:    m,
		Size:    size,
		MTimeNs: int64(mtimeSec)*1e9 + int64(mtimeNsec),
		CTimeNs: int64(ctimeSec)*1e9 + int64(ctimeNsec),
		Dev:     dev,
		Ino:     ino,
		UID:     uid,
		GID:     gid,
	}
	return e, pos, nil
}

// Encode serializes idx as a DIRC v2 file, appending the trailing SHA-1
// checksum. Entries must already be in sorted order; callers that built an
// Index via Add get this for free.
func Encode(idx *Index) ([]byte, error) {
	if !entriesSorted(idx.Entries) {
		return nil, plumbing.NewIndexCorrupt("refusing to write unsorted index")
	}
	var buf bytes.Buffer
	buf.Write(dircMagic[:])
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[:4], dircVersion)
	binary.BigEndian.PutUint32(hdr[4:], uint32(len(idx.Entries)))
	buf.Write(hdr[:])

	for _, e := range idx.Entries {
		if err := encodeEntry(&buf, e); err != nil {
			return nil, err
		}
	}
	sum := sha1.Sum(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes(), nil
}

func encodeEntry(buf *bytes.Buffer, e *Entry) error {
	mode, err := modeToUint32(e.Mode)
	if err != nil {
		return err
	}
	start := buf.Len()

	var fixed [entryFixedWidth - checksumWidth - 2]byte
	binary.BigEndian.PutUint32(fixed[0:4], uint32(e.CTimeNs/1e9))
	binary.BigEndian.PutUint32(fixed[4:8], uint32(e.CTimeNs%1e9))
	binary.BigEndian.PutUint32(fixed[8:12], uint32(e.MTimeNs/1e9))
	binary.BigEndian.PutUint32(fixed[12:16], uint32(e.MTimeNs%1e9))
	binary.BigEndian.PutUint32(fixed[16:20], 0) // dev
	binary.BigEndian.PutUint32(fixed[20:24], 0) // ino
	binary.BigEndian.PutUint32(fixed[24:28], mode)
	binary.BigEndian.PutUint32(fixed[28:32], 0) // uid
	binary.BigEndian.PutUint32(fixed[32:36], 0) // gid
	binary.BigEndian.PutUint32(fixed[36:40], e.Size)
	buf.Write(fixed[:])
	buf.Write(e.Hash[:])

	nameLen := len(e.Path)
	flags := uint16(nameLen)
	if nameLen > maxNameInFlags {
		flags = maxNameInFlags
	}
	var flagsBuf [2]byte
	binary.BigEndian.PutUint16(flagsBuf[:], flags)
	buf.Write(flagsBuf[:])
	buf.WriteString(e.Path)
	buf.WriteByte(0)

	consumed := buf.Len() - start
	for consumed%8 != 0 {
		buf.WriteByte(0)
		consumed++
	}
	return nil
}

// Decoder reads a DIRC v2 stream. It buffers the whole stream before
// parsing, since the trailing checksum must be validated against every
// preceding byte before any entry is trusted.
type Decoder struct {
	r io.Reader
}

func NewDecoder(r io.Reader) *Decoder { return &Decoder{r: r} }

// Decode reads the full stream and populates idx in place.
func (d *Decoder) Decode(idx *Index) error {
	data, err := io.ReadAll(d.r)
	if err != nil {
		return err
	}
	parsed, err := Decode(data)
	if err != nil {
		return err
	}
	idx.Entries = parsed.Entries
	return nil
}

// Encoder writes a DIRC v2 stream.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder { return &Encoder{w: w} }

// Encode serializes idx and writes it to the underlying writer in one call.
func (e *Encoder) Encode(idx *Index) error {
	data, err := Encode(idx)
	if err != nil {
		return err
	}
	_, err = e.w.Write(data)
	return err
}

// Read loads and decodes the index file at path. A missing file is not an
// error: it returns an empty Index, matching a freshly initialized
// repository that has never staged anything.
func Read(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, err
	}
	return Decode(data)
}

// Write serializes idx and replaces path atomically via a temp-file-and-
// rename, so a crash mid-write never leaves a partially written index.
func Write(path string, idx *Index) error {
	data, err := Encode(idx)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "temp-index-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
