//go:build linux || dragonfly || solaris

package index

import "syscall"

func ctimeFromStat(st *syscall.Stat_t) int64 {
	return st.Ctim.Sec*1e9 + st.Ctim.Nsec
}
