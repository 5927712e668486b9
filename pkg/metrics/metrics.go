// Package metrics exports lock protocol events as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jvs-project/dotlock/pkg/model"
)

// Registry holds all dotlock metrics. It implements the lock engine's
// event recorder.
type Registry struct {
	reg    *prometheus.Registry
	events *prometheus.CounterVec
	wait   prometheus.Histogram
	skew   prometheus.Gauge
}

// NewRegistry creates a registry with the dotlock collectors plus the
// standard process and Go runtime collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dotlock_events_total",
			Help: "Lock protocol events by kind.",
		}, []string{"event"}),
		wait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dotlock_acquire_wait_seconds",
			Help:    "Time spent in acquire before the lock was obtained.",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 5, 15, 30, 60, 120, 300},
		}),
		skew: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dotlock_clock_skew_seconds",
			Help: "Last measured offset between the local clock and the filesystem clock.",
		}),
	}
	r.reg.MustRegister(
		r.events,
		r.wait,
		r.skew,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return r
}

// RecordEvent counts a protocol event.
func (r *Registry) RecordEvent(ev model.Event) {
	r.events.WithLabelValues(string(ev)).Inc()
}

// ObserveWait records how long a successful acquire waited.
func (r *Registry) ObserveWait(d time.Duration) {
	r.wait.Observe(d.Seconds())
}

// ObserveSkew records the latest clock skew estimate.
func (r *Registry) ObserveSkew(d time.Duration) {
	r.skew.Set(d.Seconds())
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
