/*
Package metrics provides Prometheus metrics collection and exposition for
jqlakehouse.

The metrics package defines and registers every jqlakehouse metric using the
Prometheus client library: blob I/O volume and latency, per-tier partition
and stock counts, validation failures, and ingest request/retry counts.
Metrics are exposed via an HTTP endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Blob: bytes written/read, op count/duration│          │
	│  │  Bronze: partitions written                 │          │
	│  │  Silver: partitions processed, failures     │          │
	│  │  Gold: stocks updated, merge/transform time │          │
	│  │  Ingest: requests, retries                  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint               │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

jqlakehouse_blob_bytes_written_total{backend}, jqlakehouse_blob_bytes_read_total{backend}:
  - Type: Counter
  - Bytes moved through a Backend's Put/Get calls.

jqlakehouse_blob_operations_total{backend,operation,status}:
  - Type: Counter
  - Every Put, PutWithMetadata and Get made through blob.Storage, tagged
    with its outcome ("ok"/"error"). Other Backend calls are not counted.

jqlakehouse_blob_operation_duration_seconds{backend,operation}:
  - Type: Histogram

jqlakehouse_bronze_partitions_written_total{endpoint}:
  - Type: Counter
  - Incremented once per successful StoreRawResponse.

jqlakehouse_silver_partitions_processed_total{table}:
  - Type: Counter
  - Incremented once per successful NormalizeDailyQuotes write (not on the
    idempotent no-op path).

jqlakehouse_silver_validation_failures_total{table}:
  - Type: Counter
  - Incremented when NormalizeDailyQuotes returns a DataQualityError.

jqlakehouse_gold_stocks_updated_total{table}:
  - Type: Counter
  - Incremented once per stock merged during a TransformDailyPrices run.

jqlakehouse_gold_merge_duration_seconds, jqlakehouse_gold_transform_duration_seconds:
  - Type: Histogram

jqlakehouse_ingest_requests_total{endpoint,status}, jqlakehouse_ingest_retries_total{endpoint}:
  - Type: Counter

# Usage

	timer := metrics.NewTimer()
	data, err := bronze.StoreRawResponse(endpoint, rows, date, meta)
	timer.ObserveDuration(metrics.GoldMergeDuration)

	metrics.BronzePartitionsWritten.WithLabelValues(endpoint).Inc()
	metrics.BlobOperationsTotal.WithLabelValues("filesystem", "put", "ok").Inc()

Exposing the endpoint from a program that runs an HTTP server
(cmd/jqlakehouse does not serve /metrics):

	http.Handle("/metrics", metrics.Handler())
	http.ListenAndServe(":9090", nil)

# Integration Points

This package integrates with:

  - pkg/blob: instruments Put/PutWithMetadata/Get through blob.Storage.
  - pkg/lakehouse: instruments bronze/silver/gold operations.
  - pkg/ingest: instruments fetch requests and retries.
  - Prometheus: scrapes /metrics.

# Design Patterns

Package Init Registration:
  - All metrics registered in init(); MustRegister panics on duplicate
    registration, so metrics are available before main() runs.

Label Discipline:
  - Labels are bounded (endpoint/table/stock-code set, backend name,
    operation name, status). No unbounded labels such as timestamps or
    per-row identifiers.

Timer Pattern:
  - Create a Timer at an operation's start, call ObserveDuration or
    ObserveDurationVec at its end.
*/
package metrics
