// Package fsutil provides the filesystem primitives the lock protocol is
// built on.
package fsutil

import "time"

// FileID identifies a filesystem object independently of its name.
type FileID struct {
	Dev uint64
	Ino uint64
}

// FileInfo is the subset of stat results the lock protocol depends on.
type FileInfo struct {
	ID      FileID
	Nlink   uint64
	ModTime time.Time
}

// FS is the set of primitives the lock protocol is built from.
//
// None of the methods return errors. Shared filesystems fail transiently
// and the protocol treats every failure as "the operation had no effect";
// implementations report that through the boolean result and log the cause.
type FS interface {
	// WriteFile creates or truncates path and writes data to it. An
	// existing file keeps its identity.
	WriteFile(path string, data []byte) bool
	// ReadFile returns the contents of path.
	ReadFile(path string) ([]byte, bool)
	// SetModTime sets the access and modification times of path.
	SetModTime(path string, t time.Time) bool
	// Link creates newname as a hard link to oldname. It fails if newname
	// already exists.
	Link(oldname, newname string) bool
	// Remove unlinks path.
	Remove(path string) bool
	// Stat returns identity, link count and modification time of path.
	Stat(path string) (FileInfo, bool)
}

// Logger receives adapter failures. *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, fields ...map[string]any)
}

// Op names an FS primitive.
type Op string

const (
	OpWrite      Op = "write"
	OpRead       Op = "read"
	OpSetModTime Op = "set_mtime"
	OpLink       Op = "link"
	OpRemove     Op = "remove"
	OpStat       Op = "stat"
)
