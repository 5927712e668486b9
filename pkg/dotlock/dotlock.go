package dotlock

import (
	"context"
	"fmt"

	"github.com/jvs-project/dotlock/internal/lock"
	"github.com/jvs-project/dotlock/pkg/config"
	"github.com/jvs-project/dotlock/pkg/errclass"
	"github.com/jvs-project/dotlock/pkg/model"
)

type (
	// Lock is a dot-lock on one resource path.
	Lock = lock.Lock
	// Option configures a Lock.
	Option = lock.Option
	// CheckFunc decides whether an old lock is still valid.
	CheckFunc = lock.CheckFunc
	// Identity is written into lock records.
	Identity = lock.Identity
	// Policy holds the lock timings.
	Policy = model.LockPolicy
	// Status is a diagnostic snapshot of a lock.
	Status = model.Status
)

var (
	WithPolicy   = lock.WithPolicy
	WithCheck    = lock.WithCheck
	WithFS       = lock.WithFS
	WithClock    = lock.WithClock
	WithLogger   = lock.WithLogger
	WithRecorder = lock.WithRecorder
	WithIdentity = lock.WithIdentity
	WithWatch    = lock.WithWatch
)

var (
	// ErrNotLocked is returned by Refresh when the lock is no longer held.
	ErrNotLocked = errclass.ErrNotLocked
	// ErrExhausted is returned by TryWith when every attempt found the
	// lock held.
	ErrExhausted = errclass.ErrExhausted
)

// DefaultPolicy returns the stock timings.
func DefaultPolicy() Policy { return model.DefaultLockPolicy() }

// New creates a lock on path without acquiring it.
func New(path string, opts ...Option) (*Lock, error) {
	return lock.New(path, opts...)
}

// FromConfig returns the options described by a loaded configuration.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithPolicy(cfg.Policy()),
		WithWatch(cfg.Lock.Watch),
	}
}

// With acquires the lock on path, waiting as long as ctx allows, runs fn
// and releases the lock however fn returns.
func With(ctx context.Context, path string, fn func(*Lock) error, opts ...Option) error {
	return TryWith(ctx, path, 0, fn, opts...)
}

// TryWith is With bounded to maxAttempts acquisition attempts. It returns
// ErrExhausted without calling fn if the lock could not be taken.
func TryWith(ctx context.Context, path string, maxAttempts int, fn func(*Lock) error, opts ...Option) error {
	l, err := New(path, opts...)
	if err != nil {
		return err
	}
	defer l.Close()

	ok, err := l.AcquireN(ctx, maxAttempts)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", l.LockPath(), err)
	}
	if !ok {
		return ErrExhausted.WithMessagef("%s after %d attempts", l.LockPath(), maxAttempts)
	}
	return fn(l)
}
