// Package metrics defines the Prometheus metric collectors used by the skill
// search service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	PipelineRequests     *prometheus.CounterVec
	PipelineLatency      *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CacheStaleTotal      prometheus.Counter
	CacheWriteFailures   prometheus.Counter
	AuditWriteFailures   prometheus.Counter
	SharedComputations   prometheus.Counter
	UpstreamFetchLatency *prometheus.HistogramVec
	DocumentsFetched     prometheus.Histogram
	SkillsPerResult      prometheus.Histogram
	RateLimitedTotal     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Passing nil
// registers with the process-wide default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		PipelineRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skill_pipeline_requests_total",
				Help: "Skill search requests by outcome (hit, miss, invalid, upstream_error, computation_error).",
			},
			[]string{"outcome"},
		),
		PipelineLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skill_pipeline_latency_seconds",
				Help:    "End-to-end skill search latency in seconds.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"cache_status"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "skill_cache_hits_total",
				Help: "Total number of fresh cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "skill_cache_misses_total",
				Help: "Total number of cache misses, including stale entries.",
			},
		),
		CacheStaleTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "skill_cache_stale_total",
				Help: "Total number of entries found stale on read.",
			},
		),
		CacheWriteFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "skill_cache_write_failures_total",
				Help: "Computed results that could not be cached.",
			},
		),
		AuditWriteFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "skill_audit_write_failures_total",
				Help: "Served requests whose audit record could not be written.",
			},
		),
		SharedComputations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "skill_shared_computations_total",
				Help: "Requests that reused an in-flight computation for the same query.",
			},
		),
		UpstreamFetchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skill_upstream_fetch_seconds",
				Help:    "Job provider fetch latency in seconds by status.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		DocumentsFetched: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "skill_documents_fetched",
				Help:    "Number of postings fetched per computation.",
				Buckets: []float64{0, 5, 10, 20, 30, 40, 60},
			},
		),
		SkillsPerResult: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "skill_table_size",
				Help:    "Number of distinct skills per computed table.",
				Buckets: []float64{0, 10, 50, 100, 250, 500, 1000},
			},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limited_requests_total",
				Help: "Requests rejected by admission control.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PipelineRequests,
		m.PipelineLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheStaleTotal,
		m.CacheWriteFailures,
		m.AuditWriteFailures,
		m.SharedComputations,
		m.UpstreamFetchLatency,
		m.DocumentsFetched,
		m.SkillsPerResult,
		m.RateLimitedTotal,
		m.CircuitBreakerState,
	)

	return m
}

// HandlerFor returns the scrape handler for g, or for the default registry
// when g is nil.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
