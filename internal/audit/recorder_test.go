package audit_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/dotlock/internal/audit"
	"github.com/jvs-project/dotlock/internal/lock"
	"github.com/jvs-project/dotlock/pkg/model"
)

type eventLog struct {
	mu     sync.Mutex
	events []model.Event
	waits  int
}

func (e *eventLog) RecordEvent(ev model.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *eventLog) ObserveWait(time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.waits++
}

func (e *eventLog) ObserveSkew(time.Duration) {}

func TestRecorder_JournalsLockLifecycle(t *testing.T) {
	dir := t.TempDir()
	journal := filepath.Join(dir, "events.jsonl")
	resource := filepath.Join(dir, "data.db")
	next := &eventLog{}

	rec := audit.NewRecorder(audit.NewFileAppender(journal), resource, next, nil)
	l, err := lock.New(resource, lock.WithRecorder(rec), lock.WithPolicy(model.LockPolicy{
		ValidLockAge: 2 * time.Second,
		PollInterval: 5 * time.Millisecond,
		HijackDelay:  20 * time.Millisecond,
	}))
	require.NoError(t, err)

	ok, err := l.AcquireN(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, l.Refresh())
	l.Release()

	sum, err := audit.Verify(journal)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Records)
	assert.Equal(t, 1, sum.Events[model.EventAcquired])
	assert.Equal(t, 1, sum.Events[model.EventRefreshed])
	assert.Equal(t, 1, sum.Events[model.EventReleased])

	assert.Equal(t, []model.Event{model.EventAcquired, model.EventRefreshed, model.EventReleased}, next.events)
	assert.Equal(t, 1, next.waits)

	records := readRecords(t, journal)
	assert.Equal(t, resource, records[0].Resource)
}

func TestRecorder_SkipsPollNoise(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "events.jsonl")
	next := &eventLog{}
	rec := audit.NewRecorder(audit.NewFileAppender(journal), "/r", next, nil)

	rec.RecordEvent(model.EventContended)
	rec.RecordEvent(model.EventExhausted)
	rec.RecordEvent(model.EventHijacked)

	sum, err := audit.Verify(journal)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Records)
	assert.Equal(t, 1, sum.Events[model.EventHijacked])
	assert.Len(t, next.events, 3)
}

func TestRecorder_NilNext(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "events.jsonl")
	rec := audit.NewRecorder(audit.NewFileAppender(journal), "/r", nil, nil)
	rec.ObserveWait(time.Second)
	rec.ObserveSkew(time.Second)
	rec.RecordEvent(model.EventLost)

	sum, err := audit.Verify(journal)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Records)
}

func TestRecorder_AppendFailureIsLoggedNotFatal(t *testing.T) {
	dir := t.TempDir()
	// The journal path is a directory, so every append fails.
	rec := audit.NewRecorder(audit.NewFileAppender(dir), "/r", nil, nil)
	assert.NotPanics(t, func() { rec.RecordEvent(model.EventAcquired) })
}
