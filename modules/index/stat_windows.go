//go:build windows

package index

import "os"

// fillCtime has no inode-change timestamp on Windows; mtime stands in for
// it, matching how the working-tree layer already treats the two
// interchangeably there.
func fillCtime(fi os.FileInfo) int64 {
	return fi.ModTime().UnixNano()
}
