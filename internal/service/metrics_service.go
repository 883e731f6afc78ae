package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/hris-api/internal/models"
)

const metricsNamespace = "hris"

// Email job results reported to ObserveEmailJob.
const (
	EmailResultSent    = "sent"
	EmailResultDropped = "dropped"
)

// MetricsService owns the Prometheus registry and keeps running totals for
// the JSON snapshot served to HR operators.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	outboxEvents    *prometheus.CounterVec
	outboxBacklog   *prometheus.GaugeVec
	emailJobs       *prometheus.CounterVec

	requestCount         atomic.Uint64
	requestDurationTotal atomic.Uint64
	cacheHitCount        atomic.Uint64
	cacheMissCount       atomic.Uint64
	emailSent            atomic.Uint64
	emailDropped         atomic.Uint64

	mu              sync.Mutex
	transitionCount map[string]uint64
	backlog         models.OutboxStats
}

func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cache_read_seconds",
			Help:      "Latency of cache lookups",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cache_write_seconds",
			Help:      "Latency of cache writes",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by outcome",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "workflow_transitions_total",
			Help:      "Committed workflow transitions",
		}, []string{"entity", "action"}),
		outboxEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "outbox_events_total",
			Help:      "Outbox events handled by the dispatcher",
		}, []string{"result"}),
		outboxBacklog: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "outbox_backlog",
			Help:      "Outbox events waiting or parked",
		}, []string{"state"}),
		emailJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "email_jobs_total",
			Help:      "Notification emails by final result",
		}, []string{"result"}),
		transitionCount: make(map[string]uint64),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "goroutines",
		Help:      "Number of live goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite,
		m.cacheLookups, m.transitions, m.outboxEvents, m.outboxBacklog, m.emailJobs, goroutines)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// ObserveHTTPRequest records one served request. route is the gin route
// template so ids do not explode label cardinality.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, route, code).Inc()
	m.requestCount.Add(1)
	m.requestDurationTotal.Add(uint64(duration.Nanoseconds()))
}

func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		m.cacheHitCount.Add(1)
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
	m.cacheMissCount.Add(1)
}

func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveTransition counts a committed workflow transition.
func (m *MetricsService) ObserveTransition(entity, action string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, action).Inc()
	m.mu.Lock()
	m.transitionCount[entity+"."+action]++
	m.mu.Unlock()
}

// ObserveOutboxEvent counts a dispatched event by result (processed, skipped, failed, parked).
func (m *MetricsService) ObserveOutboxEvent(result string) {
	if m == nil {
		return
	}
	m.outboxEvents.WithLabelValues(result).Inc()
}

// SetOutboxBacklog publishes the pending and parked event counts.
func (m *MetricsService) SetOutboxBacklog(stats models.OutboxStats) {
	if m == nil {
		return
	}
	m.outboxBacklog.WithLabelValues("pending").Set(float64(stats.Pending))
	m.outboxBacklog.WithLabelValues("failed").Set(float64(stats.Failed))
	m.mu.Lock()
	m.backlog = stats
	m.mu.Unlock()
}

// ObserveEmailJob counts a notification email that was delivered or gave up
// after its retries.
func (m *MetricsService) ObserveEmailJob(result string) {
	if m == nil {
		return
	}
	m.emailJobs.WithLabelValues(result).Inc()
	switch result {
	case EmailResultSent:
		m.emailSent.Add(1)
	case EmailResultDropped:
		m.emailDropped.Add(1)
	}
}

// Snapshot returns aggregated metrics for the system status endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := m.cacheHitCount.Load()
	misses := m.cacheMissCount.Load()
	requests := m.requestCount.Load()

	snap := models.SystemMetrics{
		RequestsTotal: requests,
		CacheHits:     hits,
		CacheMisses:   misses,
		EmailsSent:    m.emailSent.Load(),
		EmailsDropped: m.emailDropped.Load(),
		Goroutines:    runtime.NumGoroutine(),
		GeneratedAt:   time.Now().UTC(),
	}
	if hits+misses > 0 {
		snap.CacheHitRatio = float64(hits) / float64(hits+misses)
	}
	if requests > 0 {
		snap.AverageRequestDurationMs = float64(m.requestDurationTotal.Load()) / float64(requests) / float64(time.Millisecond)
	}

	m.mu.Lock()
	snap.Transitions = make(map[string]uint64, len(m.transitionCount))
	for k, v := range m.transitionCount {
		snap.Transitions[k] = v
	}
	snap.Outbox = m.backlog
	m.mu.Unlock()

	return snap
}
