//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package metrics holds the Prometheus instrumentation of the authorization
// engine. Collectors live in a private registry so several engines, or tests,
// can coexist in one process.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/manetu/archiveauth/internal/logging"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var logger = logging.GetLogger("archiveauth.metrics")

const namespace = "aauth"

// Cache lookup results.
const (
	Hit  = "hit"
	Miss = "miss"
)

// Metrics records authorization decisions and collaborator cache use.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	decisions          *prometheus.CounterVec
	decisionDuration   prometheus.Histogram
	cacheLookups       *prometheus.CounterVec
	collaboratorErrors *prometheus.CounterVec
	resyncDirectories  *prometheus.CounterVec
}

// New registers the engine collectors in a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decisions_total",
		Help:      "Authorization decisions by visibility and deciding rule",
	}, []string{"visibility", "rule"})

	decisionDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "decision_duration_seconds",
		Help:      "Time spent deciding the visibility of one file",
		Buckets:   prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Collaborator cache lookups by cache and result",
	}, []string{"cache", "result"})

	collaboratorErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "collaborator_errors_total",
		Help:      "Failed schedule and override store calls",
	}, []string{"call"})

	resyncDirectories := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resync_directories_total",
		Help:      "Override access directories processed by resync",
	}, []string{"result"})

	registry.MustRegister(decisions, decisionDuration, cacheLookups, collaboratorErrors, resyncDirectories)

	return &Metrics{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		decisions:          decisions,
		decisionDuration:   decisionDuration,
		cacheLookups:       cacheLookups,
		collaboratorErrors: collaboratorErrors,
		resyncDirectories:  resyncDirectories,
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveDecision counts one decision and its latency.
func (m *Metrics) ObserveDecision(visibility, rule string, d time.Duration) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(visibility, rule).Inc()
	m.decisionDuration.Observe(d.Seconds())
}

// ObserveCache counts a lookup in the named cache.
func (m *Metrics) ObserveCache(cache string, hit bool) {
	if m == nil {
		return
	}
	result := Miss
	if hit {
		result = Hit
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// CollaboratorError counts a failed collaborator call.
func (m *Metrics) CollaboratorError(call string) {
	if m == nil {
		return
	}
	m.collaboratorErrors.WithLabelValues(call).Inc()
}

// ObserveResync counts a directory handled by resync; ok is false when its
// override files failed to parse or store.
func (m *Metrics) ObserveResync(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.resyncDirectories.WithLabelValues(result).Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.SysInfof("serving metrics on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "metrics server on %s", addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
