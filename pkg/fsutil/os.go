package fsutil

import (
	"errors"
	"os"
	"time"
)

var errNoLinkCount = errors.New("link counts are not observable on this platform")

// OS implements FS on the local (or network-mounted) filesystem.
type OS struct {
	log Logger
}

var _ FS = (*OS)(nil)

// NewOS returns an FS backed by the operating system. log may be nil.
func NewOS(log Logger) *OS {
	return &OS{log: log}
}

func (o *OS) failed(op Op, path string, err error) bool {
	if o.log != nil {
		o.log.Debug("filesystem operation had no effect", map[string]any{
			"op":    string(op),
			"path":  path,
			"error": err.Error(),
		})
	}
	return false
}

func (o *OS) WriteFile(path string, data []byte) bool {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return o.failed(OpWrite, path, err)
	}
	return true
}

func (o *OS) ReadFile(path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, o.failed(OpRead, path, err)
	}
	return data, true
}

func (o *OS) SetModTime(path string, t time.Time) bool {
	if err := os.Chtimes(path, t, t); err != nil {
		return o.failed(OpSetModTime, path, err)
	}
	return true
}

// Link refuses to create links where statFile cannot count them.
func (o *OS) Link(oldname, newname string) bool {
	if !linkCounts {
		return o.failed(OpLink, newname, errNoLinkCount)
	}
	if err := os.Link(oldname, newname); err != nil {
		return o.failed(OpLink, newname, err)
	}
	return true
}

func (o *OS) Remove(path string) bool {
	if err := os.Remove(path); err != nil {
		return o.failed(OpRemove, path, err)
	}
	return true
}

func (o *OS) Stat(path string) (FileInfo, bool) {
	fi, err := statFile(path)
	if err != nil {
		return FileInfo{}, o.failed(OpStat, path, err)
	}
	return fi, true
}
