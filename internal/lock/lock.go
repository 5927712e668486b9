// Package lock implements dot-locking: advisory mutual exclusion over a
// resource path that works on shared filesystems (NFS included) where
// native locks cannot be trusted.
//
// Exclusion comes from a single atomic primitive. A record is written to a
// uniquely named temporary file, which is then hard-linked to
// "<path>.lock". The link fails if the lock file exists, and a link count
// of two on the temporary file proves this engine created it.
//
// A holder that stops refreshing its lock for longer than the policy's
// stale age loses it: waiters overwrite the lock file with their own
// record, sleep for the hijack delay and keep the lock if their record
// survived. Two hijackers whose sleeps interleave exactly can both believe
// they won. That window is accepted; holders must refresh in time.
package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jvs-project/dotlock/pkg/errclass"
	"github.com/jvs-project/dotlock/pkg/fsutil"
	"github.com/jvs-project/dotlock/pkg/logging"
	"github.com/jvs-project/dotlock/pkg/model"
	"github.com/jvs-project/dotlock/pkg/pathutil"
)

// lockSuffix is appended to the resource path to name the lock file.
const lockSuffix = ".lock"

// heldLock is the proof of ownership: the identity of the lock file and
// the exact record this engine wrote into it.
type heldLock struct {
	id   fsutil.FileID
	data string
}

// Lock is a dot-lock on one resource path. A Lock serves one caller;
// its methods are serialized and Acquire blocks other calls while it
// waits.
type Lock struct {
	path     string
	lockPath string
	tempPath string

	policy   model.LockPolicy
	check    CheckFunc
	fs       fsutil.FS
	clock    Clock
	log      Logger
	recorder Recorder
	ident    Identity
	watch    bool

	skew atomic.Int64 // time.Duration, local clock minus filesystem clock

	mu   sync.Mutex
	held *heldLock
}

// New creates a lock for path. Nothing touches the filesystem until
// Acquire is called.
func New(path string, opts ...Option) (*Lock, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	resource, err := pathutil.NormalizeResourcePath(path)
	if err != nil {
		return nil, err
	}
	if err := o.policy.Validate(); err != nil {
		return nil, err
	}

	ident := NewIdentity()
	if o.ident != nil {
		ident = Identity{Host: sanitize(o.ident.Host), PID: o.ident.PID, Task: sanitize(o.ident.Task)}
	}
	if o.log == nil {
		o.log = logging.Discard()
	}
	if o.recorder == nil {
		o.recorder = nopRecorder{}
	}
	if o.fs == nil {
		o.fs = fsutil.NewOS(o.log)
	}

	lockPath := resource + lockSuffix
	return &Lock{
		path:     resource,
		lockPath: lockPath,
		tempPath: lockPath + ident.tempSuffix(),
		policy:   o.policy,
		check:    o.check,
		fs:       o.fs,
		clock:    o.clock,
		log:      o.log,
		recorder: o.recorder,
		ident:    ident,
		watch:    o.watch,
	}, nil
}

// Path returns the normalized resource path.
func (l *Lock) Path() string { return l.path }

// LockPath returns the lock file path.
func (l *Lock) LockPath() string { return l.lockPath }

// Policy returns the lock timings.
func (l *Lock) Policy() model.LockPolicy { return l.policy }

// Skew returns the current estimate of local clock minus filesystem clock.
func (l *Lock) Skew() time.Duration { return time.Duration(l.skew.Load()) }

// Acquire blocks until the lock is held or ctx is done.
func (l *Lock) Acquire(ctx context.Context) error {
	_, err := l.AcquireN(ctx, 0)
	return err
}

// AcquireN makes up to maxAttempts attempts to take the lock, sleeping the
// poll interval between them. maxAttempts <= 0 retries forever. It returns
// false when the attempts are exhausted; the only error is ctx's, observed
// while sleeping.
//
// Nothing orders competing waiters. Under heavy contention a caller can
// starve, so long-lived callers should bound their attempts.
func (l *Lock) AcquireN(ctx context.Context, maxAttempts int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.isLocked() {
		l.log.Debug("lock already held", l.fields())
		return true, nil
	}

	start := l.clock.Now()
	for attempt := 1; ; attempt++ {
		if l.trylock() {
			l.acquired(model.EventAcquired, start, attempt)
			return true, nil
		}
		if l.isStale() {
			ok, err := l.hijack(ctx)
			if err != nil {
				return false, err
			}
			if ok {
				l.acquired(model.EventHijacked, start, attempt)
				return true, nil
			}
		}
		l.recorder.RecordEvent(model.EventContended)

		if maxAttempts > 0 && attempt >= maxAttempts {
			l.log.Debug("lock attempts exhausted", l.fields(map[string]any{"attempts": attempt}))
			l.recorder.RecordEvent(model.EventExhausted)
			return false, nil
		}
		if err := l.pause(ctx, l.policy.PollInterval); err != nil {
			return false, err
		}
	}
}

func (l *Lock) acquired(ev model.Event, start time.Time, attempt int) {
	wait := l.clock.Now().Sub(start)
	msg := "lock acquired"
	if ev == model.EventHijacked {
		msg = "lock acquired by hijacking"
	}
	l.log.Info(msg, l.fields(map[string]any{"attempt": attempt, "wait": wait.String()}))
	l.recorder.RecordEvent(ev)
	l.recorder.ObserveWait(wait)
}

// Release removes the lock file if this engine still holds it. It is a
// no-op when the lock was never acquired or has been hijacked, and it
// never fails.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.release()
}

func (l *Lock) release() {
	if l.held == nil {
		l.log.Debug("no lock to release", l.fields())
		return
	}
	if !l.isLocked() {
		return
	}
	l.fs.Remove(l.lockPath)
	l.held = nil
	l.log.Info("lock released", l.fields())
	l.recorder.RecordEvent(model.EventReleased)
}

// Refresh touches the lock file so waiters do not consider it stale. Call
// it well within the valid lock age while holding the lock. It returns
// errclass.ErrNotLocked if ownership can no longer be verified.
func (l *Lock) Refresh() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.isLocked() {
		return errclass.ErrNotLocked.WithMessagef("cannot refresh %s", l.lockPath)
	}
	l.fs.SetModTime(l.lockPath, l.clock.Now().Add(-l.Skew()))
	l.log.Debug("lock refreshed", l.fields())
	l.recorder.RecordEvent(model.EventRefreshed)
	return nil
}

// IsLocked verifies that the lock file still has the identity and content
// this engine wrote. A mismatch means the lock was hijacked and forgets it.
func (l *Lock) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isLocked()
}

// IsStale reports whether the current lock file may be hijacked.
func (l *Lock) IsStale() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isStale()
}

// CheckLock runs the validity predicate. It is false without one.
func (l *Lock) CheckLock() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkLock()
}

// Status reports the lock state as seen from this engine. It may run the
// validity predicate but never modifies the lock file.
func (l *Lock) Status() model.Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := model.Status{
		Path:       l.path,
		LockPath:   l.lockPath,
		State:      model.LockStateFree,
		Skew:       l.Skew(),
		StaleAfter: l.policy.StaleAfter(),
	}

	if l.isLocked() {
		st.State = model.LockStateHeld
	}
	info, ok := l.fs.Stat(l.lockPath)
	if !ok {
		return st
	}
	st.Age = l.age(info)
	if data, ok := l.fs.ReadFile(l.lockPath); ok {
		st.Record = string(data)
		if rec, err := model.ParseLockRecord(st.Record); err == nil {
			st.Holder = &rec
		}
	}
	if st.State == model.LockStateHeld {
		return st
	}
	st.State = model.LockStateLocked
	if l.isStale() {
		st.State = model.LockStateStale
	}
	return st
}

// Close releases the lock if it is still held. A Lock must be closed (or
// released) on every exit path of the code that acquired it.
func (l *Lock) Close() error {
	l.Release()
	return nil
}

func (l *Lock) fields(extra ...map[string]any) map[string]any {
	f := map[string]any{"lock": l.lockPath}
	for _, e := range extra {
		for k, v := range e {
			f[k] = v
		}
	}
	return f
}
