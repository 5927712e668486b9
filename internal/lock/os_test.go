package lock_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/dotlock/internal/lock"
	"github.com/jvs-project/dotlock/pkg/model"
)

var fastPolicy = model.LockPolicy{
	ValidLockAge: 2 * time.Second,
	PollInterval: 5 * time.Millisecond,
	HijackDelay:  20 * time.Millisecond,
}

func newOSLock(t *testing.T, path string, opts ...lock.Option) *lock.Lock {
	t.Helper()
	l, err := lock.New(path, append([]lock.Option{lock.WithPolicy(fastPolicy)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestOS_MutualExclusion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	a := newOSLock(t, path)
	b := newOSLock(t, path)

	require.NoError(t, a.Acquire(context.Background()))
	_, err := os.Stat(path + ".lock")
	require.NoError(t, err)

	ok, err := b.AcquireN(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, ok)

	a.Release()
	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err))

	ok, err = b.AcquireN(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".locktmp-")
	}
}

func TestOS_StaleTakeover(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	a := newOSLock(t, path)
	b := newOSLock(t, path)
	require.NoError(t, a.Acquire(context.Background()))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path+".lock", old, old))
	ok, err := b.AcquireN(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, a.IsLocked())
	assert.True(t, b.IsLocked())
}

func TestOS_Refresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	l := newOSLock(t, path)
	require.NoError(t, l.Acquire(context.Background()))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path+".lock", old, old))
	require.NoError(t, l.Refresh())
	fi, err := os.Stat(path + ".lock")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), fi.ModTime(), 5*time.Second)
}

func TestOS_CounterUnderContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter")
	require.NoError(t, os.WriteFile(path, []byte("0"), 0644))

	const workers, rounds = 4, 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := lock.New(path, lock.WithPolicy(fastPolicy))
			if !assert.NoError(t, err) {
				return
			}
			defer l.Close()
			for r := 0; r < rounds; r++ {
				if !assert.NoError(t, l.Acquire(context.Background())) {
					return
				}
				data, err := os.ReadFile(path)
				assert.NoError(t, err)
				n, err := strconv.Atoi(strings.TrimSpace(string(data)))
				assert.NoError(t, err)
				assert.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(n+1)), 0644))
				l.Release()
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(workers*rounds), string(data))
}

func TestOS_WatchWakesOnRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	a := newOSLock(t, path)
	policy := fastPolicy
	policy.PollInterval = 500 * time.Millisecond
	b, err := lock.New(path, lock.WithPolicy(policy), lock.WithWatch(true))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Acquire(context.Background()))
	go func() {
		time.Sleep(50 * time.Millisecond)
		a.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, b.Acquire(ctx))
	assert.True(t, b.IsLocked())
}
