// Package index implements the staging area: a DIRC v2 binary file mapping
// paths to blob entries, with a trailing SHA-1 checksum, a strict sort
// invariant, and a stat-cache shortcut for skipping unchanged files.
package index

import (
	"strings"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
)

// modeBits are the on-disk 32-bit mode encodings DIRC uses: a 4-bit object
// type in bits 15-12 plus, for regular files, a 9-bit unix permission in
// bits 8-0. Directories never appear in the index (only blobs do); gitlinks
// (submodules) are represented but out of scope for this implementation.
const (
	modeTypeRegular = 0o100000
	modeTypeSymlink = 0o120000
	modeTypeGitlink = 0o160000

	permNonExec = 0o644
	permExec    = 0o755
)

// Entry is one staged path: its blob hash, mode, size, and the mtime/ctime
// pair the stat-cache shortcut compares against the working tree. Dev, Ino,
// UID and GID are always written as zero; this implementation does not
// track them.
type Entry struct {
	Path     string
	Hash     plumbing.Hash
	Mode     object.Mode
	Size     uint32
	MTimeNs  int64
	CTimeNs  int64
	Dev      uint32
	Ino      uint32
	UID      uint32
	GID      uint32
}

// modeToUint32 converts a tree entry mode token to its DIRC 32-bit encoding.
func modeToUint32(m object.Mode) (uint32, error) {
	switch m {
	case object.ModeFile:
		return modeTypeRegular | permNonExec, nil
	case object.ModeExecutable:
		return modeTypeRegular | permExec, nil
	case object.ModeSymlink:
		return modeTypeSymlink, nil
	case object.ModeGitlink:
		return modeTypeGitlink, nil
	default:
		return 0, plumbing.NewIndexCorrupt("unsupported index entry mode %q", m)
	}
}

// modeFromUint32 is the inverse of modeToUint32, tolerating any unix
// permission bits a foreign writer may have set for a regular file.
func modeFromUint32(m uint32) (object.Mode, error) {
	switch m &^ 0o777 {
	case modeTypeRegular:
		if m&0o111 != 0 {
			return object.ModeExecutable, nil
		}
		return object.ModeFile, nil
	case modeTypeSymlink:
		return object.ModeSymlink, nil
	case modeTypeGitlink:
		return object.ModeGitlink, nil
	default:
		return "", plumbing.NewIndexCorrupt("unrecognized index entry mode 0%o", m)
	}
}

// sortKey is the byte sequence entries are ordered and compared by: the
// literal path, with no trailing-slash folding (unlike tree entries, index
// paths already carry the full "/"-separated path and are never directory
// entries themselves).
func (e *Entry) sortKey() string { return e.Path }

// entriesSorted reports whether entries is already in strict ascending
// path order, with no duplicate paths.
func entriesSorted(entries []*Entry) bool {
	for i := 1; i < len(entries); i++ {
		if strings.Compare(entries[i-1].sortKey(), entries[i].sortKey()) >= 0 {
			return false
		}
	}
	return true
}
