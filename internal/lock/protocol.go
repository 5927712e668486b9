package lock

import (
	"context"
	"time"

	"github.com/jvs-project/dotlock/pkg/fsutil"
	"github.com/jvs-project/dotlock/pkg/model"
)

// skewTolerance absorbs mtime granularity; smaller measurements count as
// no skew at all.
const skewTolerance = time.Second

// trylock runs one round of the link protocol. The temporary file is
// removed on every path.
func (l *Lock) trylock() bool {
	now := l.clock.Now()
	data := l.ident.record(now)

	l.fs.WriteFile(l.tempPath, []byte(data))
	defer l.fs.Remove(l.tempPath)

	// Only the link count decides; the link result is unreliable over NFS.
	l.fs.Link(l.tempPath, l.lockPath)
	info, ok := l.fs.Stat(l.tempPath)
	if !ok {
		return false
	}
	if info.Nlink == 2 {
		l.held = &heldLock{id: info.ID, data: data}
	}
	l.updateSkew(now, info.ModTime)
	return l.held != nil
}

func (l *Lock) updateSkew(now, mtime time.Time) {
	skew := now.Sub(mtime)
	if skew.Abs() <= skewTolerance {
		skew = 0
	}
	if prev := time.Duration(l.skew.Swap(int64(skew))); prev != skew {
		l.log.Debug("clock skew changed", l.fields(map[string]any{"skew": skew.String()}))
	}
	l.recorder.ObserveSkew(skew)
}

// age is how long ago the file was last written or refreshed, in local
// clock terms.
func (l *Lock) age(info fsutil.FileInfo) time.Duration {
	return l.clock.Now().Sub(info.ModTime) - l.Skew()
}

func (l *Lock) isStale() bool {
	info, ok := l.fs.Stat(l.lockPath)
	if !ok {
		return false
	}
	age := l.age(info)
	if age < l.policy.StaleAfter() {
		return false
	}
	if l.checkLock() {
		l.log.Debug("old lock confirmed valid", l.fields(map[string]any{"age": age.String()}))
		return false
	}
	return true
}

// checkLock runs the predicate with l.mu released so that it may call
// back into the engine. The caller holds l.mu.
func (l *Lock) checkLock() bool {
	if l.check == nil {
		return false
	}
	l.mu.Unlock()
	defer l.mu.Lock()
	return l.check(l)
}

// hijack overwrites a stale lock in place and keeps it if the overwrite
// survives the hijack delay. The stale file is never unlinked.
func (l *Lock) hijack(ctx context.Context) (bool, error) {
	data := l.ident.record(l.clock.Now())
	l.log.Warn("hijacking stale lock", l.fields())
	if !l.fs.WriteFile(l.lockPath, []byte(data)) {
		return false, nil
	}

	if err := l.clock.Sleep(ctx, l.policy.HijackDelay); err != nil {
		l.abandonHijack(data)
		return false, err
	}

	got, ok := l.fs.ReadFile(l.lockPath)
	if ok && string(got) == data {
		if info, ok := l.fs.Stat(l.lockPath); ok {
			l.held = &heldLock{id: info.ID, data: data}
			return true, nil
		}
	}
	l.log.Info("hijack lost to another waiter", l.fields())
	l.recorder.RecordEvent(model.EventHijackLost)
	return false, nil
}

// abandonHijack removes our overwritten record when an acquire is
// cancelled mid-hijack, so the lock does not look freshly held by nobody.
func (l *Lock) abandonHijack(data string) {
	if got, ok := l.fs.ReadFile(l.lockPath); ok && string(got) == data {
		l.fs.Remove(l.lockPath)
		l.log.Debug("abandoned hijack", l.fields())
	}
}

func (l *Lock) isLocked() bool {
	if l.held == nil {
		return false
	}
	if info, ok := l.fs.Stat(l.lockPath); ok && info.ID == l.held.id {
		if got, ok := l.fs.ReadFile(l.lockPath); ok && string(got) == l.held.data {
			return true
		}
	}
	l.log.Warn("lock was hijacked", l.fields())
	l.held = nil
	l.recorder.RecordEvent(model.EventLost)
	return false
}
