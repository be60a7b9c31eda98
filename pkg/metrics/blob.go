package metrics

import "time"

// BlobStorageMetrics implements blob.StorageMetrics against this
// package's registered counters/histograms.
type BlobStorageMetrics struct{}

// ObserveOperation records one blob backend call's outcome and latency.
func (BlobStorageMetrics) ObserveOperation(backend, operation, status string, duration time.Duration) {
	BlobOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	BlobOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// AddBytesWritten records bytes written through a Put call.
func (BlobStorageMetrics) AddBytesWritten(backend string, n int) {
	BlobBytesWritten.WithLabelValues(backend).Add(float64(n))
}

// AddBytesRead records bytes read through a Get call.
func (BlobStorageMetrics) AddBytesRead(backend string, n int) {
	BlobBytesRead.WithLabelValues(backend).Add(float64(n))
}
