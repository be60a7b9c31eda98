package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Blob layer metrics
	BlobBytesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jqlakehouse_blob_bytes_written_total",
			Help: "Total bytes written to blob storage by backend",
		},
		[]string{"backend"},
	)

	BlobBytesRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jqlakehouse_blob_bytes_read_total",
			Help: "Total bytes read from blob storage by backend",
		},
		[]string{"backend"},
	)

	BlobOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jqlakehouse_blob_operations_total",
			Help: "Total blob operations by backend, operation, and status",
		},
		[]string{"backend", "operation", "status"},
	)

	BlobOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jqlakehouse_blob_operation_duration_seconds",
			Help:    "Blob operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// Bronze metrics
	BronzePartitionsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jqlakehouse_bronze_partitions_written_total",
			Help: "Total Bronze partitions written by endpoint",
		},
		[]string{"endpoint"},
	)

	// Silver metrics
	SilverPartitionsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jqlakehouse_silver_partitions_processed_total",
			Help: "Total Silver partitions normalized by table",
		},
		[]string{"table"},
	)

	SilverValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jqlakehouse_silver_validation_failures_total",
			Help: "Total Silver validation failures by table",
		},
		[]string{"table"},
	)

	// Gold metrics
	GoldStocksUpdated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jqlakehouse_gold_stocks_updated_total",
			Help: "Total Gold stock files updated per transform run",
		},
		[]string{"table"},
	)

	GoldMergeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jqlakehouse_gold_merge_duration_seconds",
			Help:    "Time taken to merge one stock's Gold file in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	GoldTransformDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jqlakehouse_gold_transform_duration_seconds",
			Help:    "Time taken for a full Gold transform run in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	// Ingest metrics
	IngestRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jqlakehouse_ingest_requests_total",
			Help: "Total ingest fetch calls by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	IngestRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jqlakehouse_ingest_retries_total",
			Help: "Total ingest fetch retries by endpoint",
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(BlobBytesWritten)
	prometheus.MustRegister(BlobBytesRead)
	prometheus.MustRegister(BlobOperationsTotal)
	prometheus.MustRegister(BlobOperationDuration)

	prometheus.MustRegister(BronzePartitionsWritten)

	prometheus.MustRegister(SilverPartitionsProcessed)
	prometheus.MustRegister(SilverValidationFailures)

	prometheus.MustRegister(GoldStocksUpdated)
	prometheus.MustRegister(GoldMergeDuration)
	prometheus.MustRegister(GoldTransformDuration)

	prometheus.MustRegister(IngestRequestsTotal)
	prometheus.MustRegister(IngestRetries)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
