package blob

import (
	"bytes"
	"io"
	"time"
)

// StorageMetrics is the subset of pkg/metrics' counters/histograms
// Storage reports to. Declared as an interface here rather than
// importing pkg/metrics directly, so pkg/blob does not depend on the
// Prometheus client; cmd/jqlakehouse wires the concrete implementation
// at startup.
type StorageMetrics interface {
	ObserveOperation(backend, operation, status string, duration time.Duration)
	AddBytesWritten(backend string, n int)
	AddBytesRead(backend string, n int)
}

// Storage is the ergonomic facade higher layers use instead of a raw
// Backend: byte-slice convenience wrappers and an iteration helper over
// List's marker pagination.
type Storage struct {
	Backend     Backend
	BackendName string
	Metrics     StorageMetrics
}

// NewStorage wraps backend in the facade.
func NewStorage(backend Backend) *Storage {
	return &Storage{Backend: backend, BackendName: "unnamed"}
}

// WithMetrics attaches a metrics sink and the backend name to report
// under.
func (s *Storage) WithMetrics(name string, m StorageMetrics) *Storage {
	s.BackendName = name
	s.Metrics = m
	return s
}

func (s *Storage) observe(operation string, start time.Time, err error) {
	if s.Metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.Metrics.ObserveOperation(s.BackendName, operation, status, time.Since(start))
}

// Put stores data under key.
func (s *Storage) Put(key string, data []byte, contentType string) (string, error) {
	start := time.Now()
	etag, err := s.Backend.Put(key, bytes.NewReader(data), contentType, nil)
	s.observe("put", start, err)
	if err == nil && s.Metrics != nil {
		s.Metrics.AddBytesWritten(s.BackendName, len(data))
	}
	return etag, err
}

// PutWithMetadata stores data under key with custom user metadata.
func (s *Storage) PutWithMetadata(key string, data []byte, contentType string, metadata map[string]string) (string, error) {
	start := time.Now()
	etag, err := s.Backend.Put(key, bytes.NewReader(data), contentType, metadata)
	s.observe("put", start, err)
	if err == nil && s.Metrics != nil {
		s.Metrics.AddBytesWritten(s.BackendName, len(data))
	}
	return etag, err
}

// Get returns the full contents of key.
func (s *Storage) Get(key string) ([]byte, error) {
	start := time.Now()
	data, err := s.Backend.Get(key)
	s.observe("get", start, err)
	if err == nil && s.Metrics != nil {
		s.Metrics.AddBytesRead(s.BackendName, len(data))
	}
	return data, err
}

// Exists reports whether key is present.
func (s *Storage) Exists(key string) (bool, error) {
	return s.Backend.Exists(key)
}

// Delete removes key.
func (s *Storage) Delete(key string) error {
	return s.Backend.Delete(key)
}

// GetSize returns the byte size of key.
func (s *Storage) GetSize(key string) (uint64, error) {
	return s.Backend.GetSize(key)
}

// List returns every blob under prefix, transparently following
// next_marker continuation tokens until the listing is exhausted.
func (s *Storage) List(prefix string) ([]Metadata, error) {
	var all []Metadata
	marker := ""
	for {
		result, err := s.Backend.List(ListOptions{Prefix: prefix, Marker: marker})
		if err != nil {
			return nil, err
		}
		all = append(all, result.Blobs...)
		if !result.IsTruncated || result.NextMarker == "" {
			break
		}
		marker = result.NextMarker
	}
	return all, nil
}

// ListPrefixes returns the distinct top-level prefixes under parent,
// delimited by "/".
func (s *Storage) ListPrefixes(parent string) ([]string, error) {
	result, err := s.Backend.List(ListOptions{Prefix: parent, Delimiter: "/"})
	if err != nil {
		return nil, err
	}
	return result.Prefixes, nil
}

// DownloadToWriter streams key's contents into w without buffering the
// whole blob in memory twice.
func (s *Storage) DownloadToWriter(key string, w io.Writer) error {
	rc, err := s.Backend.GetStream(key)
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(w, rc)
	return err
}

// GeneratePresignedURL returns a time-limited URL for key.
func (s *Storage) GeneratePresignedURL(key string, ttl time.Duration) (string, error) {
	return s.Backend.GeneratePresignedURL(key, ttl, "GET")
}
