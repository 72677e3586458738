package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/siakad-krs/internal/models"
)

// MetricsSnapshot is a lightweight summary of the collected metrics for the health endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	PolicyViolations         uint64    `json:"policy_violations"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService owns a private Prometheus registry for HTTP, cache and enrollment decision metrics.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	cacheLatency     *prometheus.HistogramVec
	policyViolations *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	riskScores       prometheus.Histogram
	riskLevels       *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	cacheHitCount        uint64
	cacheMissCount       uint64
	violationCount       uint64
}

// NewMetricsService registers the collectors.
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

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "krs_cache_lookups_total",
		Help: "Cache lookups by cache name and result",
	}, []string{"cache", "result"})

	cacheLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "krs_cache_operation_seconds",
		Help:    "Latency of cache operations",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
	}, []string{"cache", "op"})

	policyViolations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "krs_policy_violations_total",
		Help: "Enrollment policy rejections by failed check",
	}, []string{"check"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "krs_registration_transitions_total",
		Help: "Registration lifecycle transitions",
	}, []string{"from", "to"})

	riskScores := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "krs_risk_score",
		Help:    "Distribution of computed risk scores",
		Buckets: []float64{10, 25, 35, 45, 55, 65, 80, 100},
	})

	riskLevels := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "krs_risk_profiles_total",
		Help: "Computed risk profiles by level",
	}, []string{"level"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLookups, cacheLatency, policyViolations, transitions, riskScores, riskLevels, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheLookups:     cacheLookups,
		cacheLatency:     cacheLatency,
		policyViolations: policyViolations,
		transitions:      transitions,
		riskScores:       riskScores,
		riskLevels:       riskLevels,
	}
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

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(cache string, hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
	m.cacheLatency.WithLabelValues(cache, "get").Observe(duration.Seconds())
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(cache string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues(cache, "set").Observe(duration.Seconds())
}

// RecordPolicyViolation counts an enrollment rejection by the check that failed.
func (m *MetricsService) RecordPolicyViolation(check string) {
	if m == nil {
		return
	}
	m.policyViolations.WithLabelValues(check).Inc()
	atomic.AddUint64(&m.violationCount, 1)
}

// RecordTransition counts a registration status change.
func (m *MetricsService) RecordTransition(from, to models.RegistrationStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// ObserveRiskProfile records a computed risk profile.
func (m *MetricsService) ObserveRiskProfile(profile models.RiskProfile) {
	if m == nil {
		return
	}
	m.riskScores.Observe(float64(profile.Score))
	m.riskLevels.WithLabelValues(string(profile.Level)).Inc()
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{Goroutines: runtime.NumGoroutine(), GeneratedAt: time.Now().UTC()}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	var avgMs float64
	if requests > 0 {
		avgMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            ratio,
		PolicyViolations:         atomic.LoadUint64(&m.violationCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
