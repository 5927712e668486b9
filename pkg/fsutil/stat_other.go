//go:build !(aix || darwin || dragonfly || freebsd || illumos || linux || netbsd || openbsd || solaris || windows)

package fsutil

const linkCounts = false

func statFile(path string) (FileInfo, error) {
	return FileInfo{}, errNoLinkCount
}
