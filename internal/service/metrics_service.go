package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/applytrack-api/internal/models"
)

// Run outcome labels for applytrack_automation_runs_total.
const (
	RunOutcomeCompleted = "completed"
	RunOutcomePartial   = "partial"
	RunOutcomeSkipped   = "skipped"
	RunOutcomeFailed    = "failed"
	RunOutcomeCancelled = "cancelled"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP, cache and automation runs.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Observer
	proposedTotal   *prometheus.CounterVec
	persistedTotal  *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "applytrack_automation_runs_total",
		Help: "Automation runs by trigger and outcome",
	}, []string{"trigger", "outcome"})

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "applytrack_automation_run_duration_seconds",
		Help:    "Wall time of a single tenant automation run",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	})

	proposedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "applytrack_automation_proposed_updates_total",
		Help: "Status transitions proposed by the rule engine",
	}, []string{"rule"})

	persistedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "applytrack_automation_persisted_updates_total",
		Help: "Status transitions written to storage",
	}, []string{"rule"})

	persistFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "applytrack_automation_persist_failures_total",
		Help: "Status transitions that failed to persist",
	}, []string{"rule"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		runsTotal, runDuration, proposedTotal, persistedTotal, persistFailures, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		runsTotal:       runsTotal,
		runDuration:     runDuration,
		proposedTotal:   proposedTotal,
		persistedTotal:  persistedTotal,
		persistFailures: persistFailures,
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveAutomationRun records a finished (or skipped) tenant run.
func (m *MetricsService) ObserveAutomationRun(trigger models.RunTrigger, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(string(trigger), outcome).Inc()
	if outcome != RunOutcomeSkipped {
		m.runDuration.Observe(duration.Seconds())
	}
}

// RecordProposedUpdate counts one engine proposal.
func (m *MetricsService) RecordProposedUpdate(rule models.RuleName) {
	if m == nil {
		return
	}
	m.proposedTotal.WithLabelValues(string(rule)).Inc()
}

// RecordPersistResult counts a persisted or failed transition.
func (m *MetricsService) RecordPersistResult(rule models.RuleName, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.persistFailures.WithLabelValues(string(rule)).Inc()
		return
	}
	m.persistedTotal.WithLabelValues(string(rule)).Inc()
}
