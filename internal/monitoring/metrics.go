package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the worker.
type Metrics struct {
	registry *prometheus.Registry

	ListingsFound      *prometheus.CounterVec
	DuplicatesFiltered *prometheus.CounterVec
	ListingsPublished  *prometheus.CounterVec
	ErrorsTotal        *prometheus.CounterVec
	RetriesTotal       prometheus.Counter
	CrawlDuration      prometheus.Histogram
}

// NewMetrics creates the metric set on its own registry so repeated
// construction (tests) does not collide with the default registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ListingsFound: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "landworker_listings_found_total",
			Help: "The total number of listings extracted, per source",
		}, []string{"source"}),
		DuplicatesFiltered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "landworker_duplicates_filtered_total",
			Help: "The total number of listings dropped by the duplicate checker",
		}, []string{"source"}),
		ListingsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "landworker_listings_published_total",
			Help: "The total number of new listings published downstream",
		}, []string{"source"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "landworker_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}),
		RetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "landworker_retries_total",
			Help: "The total number of retry attempts across all operations",
		}),
		CrawlDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "landworker_crawl_duration_seconds",
			Help:    "Duration of one full crawl sweep",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

// Handler returns the HTTP handler serving this metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
