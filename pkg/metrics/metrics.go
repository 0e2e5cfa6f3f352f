// Package metrics defines the Prometheus metric collectors used by the
// search engine and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine and service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	QueryCacheHits       prometheus.Counter
	QueryCacheMisses     prometheus.Counter
	TierCacheHits        *prometheus.CounterVec
	TierCacheMisses      prometheus.Counter
	TierCacheEvictions   *prometheus.CounterVec
	DocsIndexedTotal     prometheus.Counter
	IndexRebuildDuration prometheus.Histogram
	FeedbackEventsTotal  *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
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
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
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
				Help: "Total search queries by result type (hit, zero_result, fuzzy_fallback, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		QueryCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "query_cache_hits_total",
				Help: "Total query cache hits.",
			},
		),
		QueryCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "query_cache_misses_total",
				Help: "Total query cache misses.",
			},
		),
		TierCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tiered_cache_hits_total",
				Help: "Total tiered cache hits by tier (memory, durable).",
			},
			[]string{"tier"},
		),
		TierCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tiered_cache_misses_total",
				Help: "Total tiered cache misses.",
			},
		),
		TierCacheEvictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tiered_cache_evictions_total",
				Help: "Total tiered cache evictions by reason (lru, expired, quota).",
			},
			[]string{"reason"},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "articles_indexed_total",
				Help: "Total articles indexed across rebuilds.",
			},
		),
		IndexRebuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_rebuild_duration_seconds",
				Help:    "Full index rebuild duration in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
		),
		FeedbackEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedback_events_total",
				Help: "Total feedback events by outcome (applied, dropped, invalid).",
			},
			[]string{"outcome"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.QueryCacheHits,
		m.QueryCacheMisses,
		m.TierCacheHits,
		m.TierCacheMisses,
		m.TierCacheEvictions,
		m.DocsIndexedTotal,
		m.IndexRebuildDuration,
		m.FeedbackEventsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
