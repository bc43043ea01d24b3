package scraper

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a scraper run.
type Metrics struct {
	Registry              *prometheus.Registry
	RequestsTotal         *prometheus.CounterVec
	RequestDuration       *prometheus.HistogramVec
	RecordsExtractedTotal prometheus.Counter
	EntitiesSkippedTotal  prometheus.Counter
	RecordsWrittenTotal   prometheus.Counter
	ErrorsTotal           *prometheus.CounterVec
	LastRunTimestamp      prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "HTTP requests issued by the scraper by target and outcome.",
		},
		[]string{"target", "outcome"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target"},
	)
	extracted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_records_extracted_total",
			Help: "Books extracted from the listing page.",
		},
	)
	skipped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_entities_skipped_total",
			Help: "Listing entries skipped because extraction failed.",
		},
	)
	written := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_records_written_total",
			Help: "Rows written to the output file.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	lastRun := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		},
	)

	registry.MustRegister(requests, requestDuration, extracted, skipped, written, errorsTotal, lastRun)

	return &Metrics{
		Registry:              registry,
		RequestsTotal:         requests,
		RequestDuration:       requestDuration,
		RecordsExtractedTotal: extracted,
		EntitiesSkippedTotal:  skipped,
		RecordsWrittenTotal:   written,
		ErrorsTotal:           errorsTotal,
		LastRunTimestamp:      lastRun,
	}
}

// ObserveRequest counts one request and records its latency.
func (m *Metrics) ObserveRequest(target, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(target, outcome).Inc()
	m.RequestDuration.WithLabelValues(target).Observe(d.Seconds())
}

// AddExtracted records the books and skipped entities of one page.
func (m *Metrics) AddExtracted(books, skipped int) {
	if m == nil {
		return
	}
	m.RecordsExtractedTotal.Add(float64(books))
	m.EntitiesSkippedTotal.Add(float64(skipped))
}

// AddWritten records rows written to the output.
func (m *Metrics) AddWritten(rows int) {
	if m == nil {
		return
	}
	m.RecordsWrittenTotal.Add(float64(rows))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// MarkFinished stamps the end of a run.
func (m *Metrics) MarkFinished(t time.Time) {
	if m == nil {
		return
	}
	m.LastRunTimestamp.Set(float64(t.Unix()))
}

// WriteFile dumps the registry in the Prometheus text format, suitable for
// the node exporter textfile collector.
func (m *Metrics) WriteFile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}
