//go:build !(aix || darwin || dragonfly || freebsd || illumos || linux || netbsd || openbsd || solaris || windows)

package audit

import (
	"os"
	"sync"
)

// Without file locks only appenders in this process are serialised.
var appendMu sync.Mutex

func lockFile(*os.File) error {
	appendMu.Lock()
	return nil
}

func unlockFile(*os.File) error {
	appendMu.Unlock()
	return nil
}
