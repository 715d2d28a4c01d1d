// ABOUTME: Prometheus instrumentation for ingestion runs.
// ABOUTME: Collectors are registered on a caller-supplied registerer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingest holds the collectors updated by the ingestion pipeline.
type Ingest struct {
	ElementsRead   prometheus.Counter
	RowsNormalized *prometheus.CounterVec
	BatchesLoaded  *prometheus.CounterVec
	RowsLoaded     *prometheus.CounterVec
	LoadFailures   *prometheus.CounterVec
	LoadDuration   *prometheus.HistogramVec
}

// NewIngest registers the ingestion collectors on reg.
// A nil reg creates unregistered collectors, which is what tests want.
func NewIngest(reg prometheus.Registerer) *Ingest {
	f := promauto.With(reg)
	return &Ingest{
		ElementsRead: f.NewCounter(prometheus.CounterOpts{
			Name: "healthx_ingest_elements_read_total",
			Help: "Total number of XML elements read from the source document",
		}),
		RowsNormalized: f.NewCounterVec(prometheus.CounterOpts{
			Name: "healthx_ingest_rows_normalized_total",
			Help: "Total number of rows produced by the normalizer",
		}, []string{"table"}),
		BatchesLoaded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "healthx_ingest_batches_loaded_total",
			Help: "Total number of batches appended to the destination",
		}, []string{"table", "backend"}),
		RowsLoaded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "healthx_ingest_rows_loaded_total",
			Help: "Total number of rows appended to the destination",
		}, []string{"table", "backend"}),
		LoadFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "healthx_ingest_load_failures_total",
			Help: "Total number of failed batch loads",
		}, []string{"table", "backend"}),
		LoadDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthx_ingest_batch_load_seconds",
			Help:    "Time taken to append one batch",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"table", "backend"}),
	}
}

// ObserveLoad records the outcome of one batch load.
func (m *Ingest) ObserveLoad(table, backend string, rows int, took time.Duration, err error) {
	if err != nil {
		m.LoadFailures.WithLabelValues(table, backend).Inc()
		return
	}
	m.BatchesLoaded.WithLabelValues(table, backend).Inc()
	m.RowsLoaded.WithLabelValues(table, backend).Add(float64(rows))
	m.LoadDuration.WithLabelValues(table, backend).Observe(took.Seconds())
}
