package index

import "os"

// paranoidEnv forces Unchanged to always rehash, for integrity testing of
// the stat-cache shortcut itself.
const paranoidEnv = "GITCORE_PARANOID_REHASH"

// Unchanged reports whether the file at fsPath still matches e's cached
// size and mtime, letting callers skip rehashing it. Any stat failure, or
// the paranoid-rehash environment switch, forces a "changed" answer so the
// caller falls back to reading and hashing the file.
func Unchanged(fsPath string, e *Entry) bool {
	if os.Getenv(paranoidEnv) != "" {
		return false
	}
	fi, err := os.Lstat(fsPath)
	if err != nil {
		return false
	}
	if fi.IsDir() || uint32(fi.Size()) != e.Size {
		return false
	}
	return fi.ModTime().UnixNano() == e.MTimeNs
}

// StatEntry builds an Entry's stat-derived fields (size, mtime, ctime) from
// an on-disk file, leaving Path, Hash and Mode for the caller to fill in.
// Ctime comes from the platform-specific fillCtime, which falls back to
// mtime on platforms with no distinct inode-change timestamp.
func StatEntry(fsPath string) (size uint32, mtimeNs, ctimeNs int64, err error) {
	fi, err := os.Lstat(fsPath)
	if err != nil {
		return 0, 0, 0, err
	}
	mtimeNs = fi.ModTime().UnixNano()
	ctimeNs = fillCtime(fi)
	return uint32(fi.Size()), mtimeNs, ctimeNs, nil
}
