//go:build aix || illumos || solaris

package audit

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// fcntl locks belong to the process, so appenders within it are
// serialised by fcntlMu.
var fcntlMu sync.Mutex

func lockFile(f *os.File) error {
	fcntlMu.Lock()
	lk := unix.Flock_t{Type: unix.F_WRLCK, Whence: 0}
	if err := unix.FcntlFlock(f.Fd(), unix.F_SETLKW, &lk); err != nil {
		fcntlMu.Unlock()
		return err
	}
	return nil
}

func unlockFile(f *os.File) error {
	defer fcntlMu.Unlock()
	lk := unix.Flock_t{Type: unix.F_UNLCK, Whence: 0}
	return unix.FcntlFlock(f.Fd(), unix.F_SETLK, &lk)
}
