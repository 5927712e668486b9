package dotlock_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/dotlock/pkg/config"
	"github.com/jvs-project/dotlock/pkg/dotlock"
)

var testPolicy = dotlock.Policy{
	ValidLockAge: 2 * time.Second,
	PollInterval: 5 * time.Millisecond,
	HijackDelay:  10 * time.Millisecond,
}

func TestWith_HoldsLockDuringCallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")

	err := dotlock.With(context.Background(), path, func(l *dotlock.Lock) error {
		assert.True(t, l.IsLocked())
		_, err := os.Stat(path + ".lock")
		return err
	}, dotlock.WithPolicy(testPolicy))
	require.NoError(t, err)

	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err), "lock released after callback")
}

func TestWith_ReleasesOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	boom := errors.New("boom")

	err := dotlock.With(context.Background(), path, func(*dotlock.Lock) error {
		return boom
	}, dotlock.WithPolicy(testPolicy))
	require.ErrorIs(t, err, boom)

	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err))
}

func TestTryWith_Exhausted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	holder, err := dotlock.New(path, dotlock.WithPolicy(testPolicy))
	require.NoError(t, err)
	require.NoError(t, holder.Acquire(context.Background()))
	defer holder.Close()

	called := false
	err = dotlock.TryWith(context.Background(), path, 2, func(*dotlock.Lock) error {
		called = true
		return nil
	}, dotlock.WithPolicy(testPolicy))
	require.ErrorIs(t, err, dotlock.ErrExhausted)
	assert.False(t, called)
	assert.True(t, holder.IsLocked())
}

func TestWith_ContextCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	holder, err := dotlock.New(path, dotlock.WithPolicy(testPolicy))
	require.NoError(t, err)
	require.NoError(t, holder.Acquire(context.Background()))
	defer holder.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err = dotlock.With(ctx, path, func(*dotlock.Lock) error { return nil }, dotlock.WithPolicy(testPolicy))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Set("lock.valid_lock_age", "90s"))

	l, err := dotlock.New(filepath.Join(t.TempDir(), "x"), dotlock.FromConfig(cfg)...)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, l.Policy().ValidLockAge)
	assert.Equal(t, dotlock.DefaultPolicy().HijackDelay, l.Policy().HijackDelay)
}
