package lock

import (
	"time"

	"github.com/jvs-project/dotlock/pkg/fsutil"
	"github.com/jvs-project/dotlock/pkg/logging"
	"github.com/jvs-project/dotlock/pkg/model"
)

// CheckFunc reports whether a lock that looks stale is nevertheless still
// valid, e.g. because the holder is known to be alive. It runs outside the
// engine's mutex and may call its methods, except Status, IsStale and
// CheckLock, which would run the predicate again.
type CheckFunc func(l *Lock) bool

// Logger receives protocol diagnostics. *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, fields ...map[string]any)
	Info(msg string, fields ...map[string]any)
	Warn(msg string, fields ...map[string]any)
}

// Recorder receives protocol events. *metrics.Registry satisfies it.
type Recorder interface {
	RecordEvent(ev model.Event)
	ObserveWait(d time.Duration)
	ObserveSkew(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordEvent(model.Event)   {}
func (nopRecorder) ObserveWait(time.Duration) {}
func (nopRecorder) ObserveSkew(time.Duration) {}

type options struct {
	policy   model.LockPolicy
	check    CheckFunc
	fs       fsutil.FS
	clock    Clock
	log      Logger
	recorder Recorder
	ident    *Identity
	watch    bool
}

// Option configures a Lock.
type Option func(*options)

// WithPolicy overrides the default timings.
func WithPolicy(p model.LockPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithCheck installs a validity predicate consulted before hijacking.
func WithCheck(fn CheckFunc) Option {
	return func(o *options) { o.check = fn }
}

// WithFS replaces the filesystem adapter.
func WithFS(fs fsutil.FS) Option {
	return func(o *options) { o.fs = fs }
}

// WithClock replaces the clock used for timestamps and sleeps.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the diagnostics logger. The default discards.
func WithLogger(l Logger) Option {
	return func(o *options) { o.log = l }
}

// WithRecorder sets the event recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithIdentity overrides the host, pid and task written into lock records.
func WithIdentity(id Identity) Option {
	return func(o *options) { o.ident = &id }
}

// WithWatch makes acquire wake up early when the lock file is removed
// locally. Removals by other NFS clients are not observed, so the poll
// interval stays the upper bound on the wait.
func WithWatch(enabled bool) Option {
	return func(o *options) { o.watch = enabled }
}

func defaultOptions() options {
	return options{
		policy:   model.DefaultLockPolicy(),
		clock:    realClock{},
		log:      logging.Discard(),
		recorder: nopRecorder{},
	}
}
