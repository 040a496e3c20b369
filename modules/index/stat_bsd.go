//go:build darwin || freebsd || openbsd || netbsd

package index

import "syscall"

func ctimeFromStat(st *syscall.Stat_t) int64 {
	return st.Ctimespec.Sec*1e9 + st.Ctimespec.Nsec
}
