package fsutil

import (
	"sort"
	"sync"
	"time"
)

type memInode struct {
	ino   uint64
	data  []byte
	nlink uint64
	mtime time.Time
}

// MemFS is an in-memory FS for simulating a shared filesystem: its clock
// can run ahead of or behind the caller's, and individual primitives can
// be made to fail.
type MemFS struct {
	mu      sync.Mutex
	now     func() time.Time
	offset  time.Duration
	files   map[string]*memInode
	nextIno uint64
	fail    map[Op]int
	calls   map[Op]int
}

var _ FS = (*MemFS)(nil)

// NewMemFS returns an empty MemFS whose server clock is now. A nil now
// uses time.Now.
func NewMemFS(now func() time.Time) *MemFS {
	if now == nil {
		now = time.Now
	}
	return &MemFS{
		now:   now,
		files: make(map[string]*memInode),
		fail:  make(map[Op]int),
		calls: make(map[Op]int),
	}
}

// SetClockOffset makes the server clock run d ahead of now (behind if
// negative).
func (m *MemFS) SetClockOffset(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offset = d
}

// FailNext makes the next n calls of op have no effect.
func (m *MemFS) FailNext(op Op, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op] += n
}

// Calls returns how many times op has been invoked.
func (m *MemFS) Calls(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Paths returns every name currently present, sorted.
func (m *MemFS) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (m *MemFS) serverNow() time.Time {
	return m.now().Add(m.offset)
}

// enter records a call and reports whether it should fail. Callers hold mu.
func (m *MemFS) enter(op Op) bool {
	m.calls[op]++
	if m.fail[op] > 0 {
		m.fail[op]--
		return false
	}
	return true
}

func (m *MemFS) WriteFile(path string, data []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enter(OpWrite) {
		return false
	}
	buf := append([]byte(nil), data...)
	if n, ok := m.files[path]; ok {
		n.data = buf
		n.mtime = m.serverNow()
		return true
	}
	m.nextIno++
	m.files[path] = &memInode{ino: m.nextIno, data: buf, nlink: 1, mtime: m.serverNow()}
	return true
}

func (m *MemFS) ReadFile(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enter(OpRead) {
		return nil, false
	}
	n, ok := m.files[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), n.data...), true
}

func (m *MemFS) SetModTime(path string, t time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enter(OpSetModTime) {
		return false
	}
	n, ok := m.files[path]
	if !ok {
		return false
	}
	n.mtime = t
	return true
}

func (m *MemFS) Link(oldname, newname string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enter(OpLink) {
		return false
	}
	n, ok := m.files[oldname]
	if !ok {
		return false
	}
	if _, exists := m.files[newname]; exists {
		return false
	}
	n.nlink++
	m.files[newname] = n
	return true
}

func (m *MemFS) Remove(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enter(OpRemove) {
		return false
	}
	n, ok := m.files[path]
	if !ok {
		return false
	}
	n.nlink--
	delete(m.files, path)
	return true
}

func (m *MemFS) Stat(path string) (FileInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enter(OpStat) {
		return FileInfo{}, false
	}
	n, ok := m.files[path]
	if !ok {
		return FileInfo{}, false
	}
	return FileInfo{ID: FileID{Dev: 1, Ino: n.ino}, Nlink: n.nlink, ModTime: n.mtime}, true
}
