//go:build aix || darwin || dragonfly || freebsd || illumos || linux || netbsd || openbsd || solaris

package fsutil

import (
	"time"

	"golang.org/x/sys/unix"
)

// linkCounts reports whether statFile observes hard link counts.
const linkCounts = true

func statFile(path string) (FileInfo, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		ID:      FileID{Dev: uint64(st.Dev), Ino: uint64(st.Ino)},
		Nlink:   uint64(st.Nlink),
		ModTime: time.Unix(int64(st.Mtim.Sec), int64(st.Mtim.Nsec)),
	}, nil
}
