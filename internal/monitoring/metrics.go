// Package monitoring exposes the Prometheus instrumentation for the
// scrape pipeline.
package monitoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var initOnce sync.Once

var (
	PagesFetchedTotal   *prometheus.CounterVec
	FetchRetriesTotal   prometheus.Counter
	ListingsTotal       *prometheus.CounterVec
	ParseFailuresTotal  *prometheus.CounterVec
	CycleDuration       prometheus.Histogram
	CyclesTotal         *prometheus.CounterVec
	ActiveListingsGauge prometheus.Gauge
	CandidatePoolGauge  prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
)

// Init registers the collectors on the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(register)
}

func register() {
	PagesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_pages_fetched_total",
			Help: "Total number of page fetch attempts.",
		},
		[]string{"outcome"}, // success, failure
	)

	FetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_fetch_retries_total",
			Help: "Total number of fetch retries.",
		},
	)

	ListingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_listings_total",
			Help: "Listings written per cycle outcome.",
		},
		[]string{"outcome"}, // inserted, updated, deactivated, reactivated
	)

	ParseFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_parse_failures_total",
			Help: "Pages that could not be parsed into a listing.",
		},
		[]string{"error_type"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_cycle_duration_seconds",
			Help:    "Duration of full scrape cycles.",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 3600},
		},
	)

	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_cycles_total",
			Help: "Total number of scrape cycles.",
		},
		[]string{"status"}, // success, failure
	)

	ActiveListingsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_active_listings",
			Help: "Active listings in the store after the last cycle.",
		},
	)

	CandidatePoolGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_candidate_pool_size",
			Help: "Candidates discovered from sitemaps in the last cycle.",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
}
