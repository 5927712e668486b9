package lock_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jvs-project/dotlock/internal/lock"
	"github.com/jvs-project/dotlock/pkg/fsutil"
	"github.com/jvs-project/dotlock/pkg/model"
)

const resource = "/shared/data.db"

// fakeClock is shared by every engine in a test and by the MemFS, so
// sleeping in one engine ages the lock files seen by all of them.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(d time.Duration)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	hook := c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type countingRecorder struct {
	mu     sync.Mutex
	events map[model.Event]int
	waits  []time.Duration
	skews  []time.Duration
}

func newRecorder() *countingRecorder {
	return &countingRecorder{events: make(map[model.Event]int)}
}

func (r *countingRecorder) RecordEvent(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[ev]++
}

func (r *countingRecorder) ObserveWait(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
}

func (r *countingRecorder) ObserveSkew(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skews = append(r.skews, d)
}

func (r *countingRecorder) Count(ev model.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[ev]
}

type sim struct {
	clock *fakeClock
	fs    *fsutil.MemFS
}

func newSim() *sim {
	clk := newFakeClock()
	return &sim{clock: clk, fs: fsutil.NewMemFS(clk.Now)}
}

// engine creates a lock on the shared resource for a distinct host.
func (s *sim) engine(t *testing.T, host string, opts ...lock.Option) *lock.Lock {
	t.Helper()
	base := []lock.Option{
		lock.WithFS(s.fs),
		lock.WithClock(s.clock),
		lock.WithIdentity(lock.Identity{Host: host, PID: 100, Task: "t1"}),
	}
	l, err := lock.New(resource, append(base, opts...)...)
	require.NoError(t, err)
	return l
}

func (s *sim) content(t *testing.T) string {
	t.Helper()
	data, ok := s.fs.ReadFile(resource + ".lock")
	require.True(t, ok, "lock file should exist")
	return string(data)
}

func (s *sim) tempFiles() []string {
	var out []string
	for _, p := range s.fs.Paths() {
		if strings.Contains(p, ".locktmp-") {
			out = append(out, p)
		}
	}
	return out
}
