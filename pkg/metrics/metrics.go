// Package metrics defines the Prometheus collectors used by the gateway and
// exposes an HTTP handler for scraping. All recording helpers are safe to call
// on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the gateway.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CacheInvalidations   *prometheus.CounterVec
	DocsIndexedTotal     prometheus.Counter
	PagesFetchedTotal    *prometheus.CounterVec
	IngestionRunsTotal   *prometheus.CounterVec
	DuplicateRequests    prometheus.Counter
	ErrorResponsesTotal  *prometheus.CounterVec
	gatherer             prometheus.Gatherer
}

// New creates all collectors and registers them with reg. A nil reg uses a
// fresh private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
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
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, miss, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_cache_hits_total",
				Help: "Total number of search cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_cache_misses_total",
				Help: "Total number of search cache misses.",
			},
		),
		CacheInvalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_cache_invalidations_total",
				Help: "Cache namespace invalidations by status.",
			},
			[]string{"status"},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents written to the document store.",
			},
		),
		PagesFetchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "source_pages_fetched_total",
				Help: "Upstream catalog pages fetched by outcome.",
			},
			[]string{"status"},
		),
		IngestionRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestion_runs_total",
				Help: "Ingestion runs by final status.",
			},
			[]string{"status"},
		),
		DuplicateRequests: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "idempotency_duplicates_total",
				Help: "Requests rejected as duplicates by the idempotency guard.",
			},
		),
		ErrorResponsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "error_responses_total",
				Help: "Error envelopes written by error code.",
			},
			[]string{"code"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheInvalidations,
		m.DocsIndexedTotal,
		m.PagesFetchedTotal,
		m.IngestionRunsTotal,
		m.DuplicateRequests,
		m.ErrorResponsesTotal,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHitsTotal.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMissesTotal.Inc()
	}
}

// CacheInvalidated records one namespace invalidation; ok=false marks a
// failed attempt.
func (m *Metrics) CacheInvalidated(ok bool) {
	if m != nil {
		m.CacheInvalidations.WithLabelValues(outcome(ok)).Inc()
	}
}

func (m *Metrics) SearchServed(resultType, cacheStatus string, seconds float64) {
	if m != nil {
		m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
		m.SearchLatency.WithLabelValues(cacheStatus).Observe(seconds)
	}
}

func (m *Metrics) DocIndexed() {
	if m != nil {
		m.DocsIndexedTotal.Inc()
	}
}

func (m *Metrics) PageFetched(ok bool) {
	if m != nil {
		m.PagesFetchedTotal.WithLabelValues(outcome(ok)).Inc()
	}
}

func (m *Metrics) IngestionFinished(status string) {
	if m != nil {
		m.IngestionRunsTotal.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) DuplicateRejected() {
	if m != nil {
		m.DuplicateRequests.Inc()
	}
}

func (m *Metrics) ErrorResponse(code string) {
	if m != nil {
		m.ErrorResponsesTotal.WithLabelValues(code).Inc()
	}
}

// Handler returns the scrape handler for the registry this Metrics was
// registered with.
func (m *Metrics) Handler() http.Handler {
	if m != nil && m.gatherer != nil {
		return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
