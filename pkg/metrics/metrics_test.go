package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/dotlock/pkg/metrics"
	"github.com/jvs-project/dotlock/pkg/model"
)

func TestRegistry_RecordEvent(t *testing.T) {
	r := metrics.NewRegistry()
	r.RecordEvent(model.EventAcquired)
	r.RecordEvent(model.EventAcquired)
	r.RecordEvent(model.EventHijacked)

	n, err := testutil.GatherAndCount(r.Gatherer(), "dotlock_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per event kind")
}

func TestRegistry_Handler(t *testing.T) {
	r := metrics.NewRegistry()
	r.RecordEvent(model.EventReleased)
	r.ObserveWait(1500 * time.Millisecond)
	r.ObserveSkew(-2 * time.Second)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Contains(t, string(body), `dotlock_events_total{event="released"} 1`)
	assert.Contains(t, string(body), "dotlock_acquire_wait_seconds_count 1")
	assert.Contains(t, string(body), "dotlock_clock_skew_seconds -2")
}

func TestRegistry_ServeStopsOnCancel(t *testing.T) {
	r := metrics.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
