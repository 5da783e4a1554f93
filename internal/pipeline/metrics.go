package pipeline

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects counters for one run. A fresh registry per run keeps
// repeated runs in one process (and tests) independent.
type Metrics struct {
	Registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	Pages           prometheus.Counter
	Items           *prometheus.CounterVec
	Rows            *prometheus.CounterVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	Errors          *prometheus.CounterVec
	CategoryEntries *prometheus.GaugeVec
	LastSuccess     prometheus.Gauge
}

// NewMetrics creates and registers the run metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iwacpipe_requests_total",
			Help: "API page requests by HTTP status code",
		}, []string{"status"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "iwacpipe_request_duration_seconds",
			Help:    "API page request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		Pages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iwacpipe_pages_total",
			Help: "Non-empty pages fetched, cache hits included",
		}),
		Items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iwacpipe_items_total",
			Help: "Items fetched by kind (observation, category)",
		}, []string{"kind"}),
		Rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iwacpipe_rows_total",
			Help: "Observation rows emitted by country",
		}, []string{"country"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iwacpipe_cache_hits_total",
			Help: "Pages served from the response cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iwacpipe_cache_misses_total",
			Help: "Pages not found in the response cache",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iwacpipe_fetch_errors_total",
			Help: "Failed page fetches by error class",
		}, []string{"class"}),
		CategoryEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "iwacpipe_category_entries",
			Help: "Identifiers loaded per category table",
		}, []string{"category"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "iwacpipe_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
	}

	m.Registry.MustRegister(
		m.Requests,
		m.RequestDuration,
		m.Pages,
		m.Items,
		m.Rows,
		m.CacheHits,
		m.CacheMisses,
		m.Errors,
		m.CategoryEntries,
		m.LastSuccess,
	)

	return m
}

// WriteTextfile writes the registry in Prometheus text format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
