package lakehouse

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jqsys/jqlakehouse/pkg/blob"
	"github.com/jqsys/jqlakehouse/pkg/log"
	"github.com/jqsys/jqlakehouse/pkg/metrics"
)

// ValueError marks caller misuse: mutually exclusive arguments supplied
// together, an unrecognized enum value, or a malformed identifier.
type ValueError struct {
	Msg string
}

func (e *ValueError) Error() string { return "value error: " + e.Msg }

// bronzeStoredRow is the on-disk Bronze record: the raw API row,
// JSON-encoded, alongside the ingestion metadata columns.
type bronzeStoredRow struct {
	Endpoint      string `parquet:"_endpoint"`
	PartitionDate string `parquet:"_partition_date"`
	IngestedAt    string `parquet:"_ingested_at"`
	Metadata      string `parquet:"_metadata,optional"`
	Data          string `parquet:"data"`
}

// EndpointStats summarizes Bronze storage for a single endpoint.
type EndpointStats struct {
	Dates  int
	Files  int
	SizeMB float64
}

// BronzeStorage owns partitioned raw-response persistence: one Parquet
// file per (endpoint, date). Storing a partition that already exists
// overwrites it.
type BronzeStorage struct {
	storage *blob.Storage
}

// NewBronzeStorage wraps backend in a BronzeStorage.
func NewBronzeStorage(backend blob.Backend) *BronzeStorage {
	return &BronzeStorage{storage: blob.NewStorage(backend)}
}

// WithMetrics instruments the underlying blob.Storage so every Put/Get
// reports to m under backendName.
func (b *BronzeStorage) WithMetrics(backendName string, m blob.StorageMetrics) *BronzeStorage {
	b.storage.WithMetrics(backendName, m)
	return b
}

func bronzeKey(endpoint string, date time.Time) string {
	return fmt.Sprintf("%s/%s/data.parquet", endpoint, date.Format(DateLayout))
}

// StoreRawResponse materializes rows as a columnar Parquet file and
// writes it to the endpoint/date partition. An empty input still writes
// an empty file. metadata, if non-nil, is serialized into the
// _metadata column on every row.
func (b *BronzeStorage) StoreRawResponse(endpoint string, rows []RawRow, date time.Time, metadata map[string]any) (string, error) {
	logger := log.WithEndpoint(endpoint)
	key := bronzeKey(endpoint, date)

	var metaJSON string
	if metadata != nil {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("lakehouse: marshal bronze metadata: %w", err)
		}
		metaJSON = string(encoded)
	}

	ingestedAt := time.Now().UTC().Format(time.RFC3339)
	stored := make([]bronzeStoredRow, len(rows))
	for i, row := range rows {
		encoded, err := json.Marshal(row)
		if err != nil {
			return "", fmt.Errorf("lakehouse: marshal bronze row: %w", err)
		}
		stored[i] = bronzeStoredRow{
			Endpoint:      endpoint,
			PartitionDate: date.Format(DateLayout),
			IngestedAt:    ingestedAt,
			Metadata:      metaJSON,
			Data:          string(encoded),
		}
	}
	if len(rows) == 0 {
		logger.Warn().Str("date", date.Format(DateLayout)).Msg("storing empty bronze partition")
	}

	data, err := WriteParquet(stored)
	if err != nil {
		return "", err
	}
	if _, err := b.storage.Put(key, data, "application/parquet"); err != nil {
		return "", err
	}

	metrics.BronzePartitionsWritten.WithLabelValues(endpoint).Inc()
	logger.Info().Str("date", date.Format(DateLayout)).Int("rows", len(rows)).Msg("stored bronze partition")
	return key, nil
}

// ReadRawDataOptions selects exactly one of Date or (RangeStart,RangeEnd).
type ReadRawDataOptions struct {
	Date       *time.Time
	RangeStart *time.Time
	RangeEnd   *time.Time
}

// ReadRawData reads one partition (Date) or concatenates every partition
// in [RangeStart,RangeEnd] for endpoint. Supplying both or neither is a
// ValueError.
func (b *BronzeStorage) ReadRawData(endpoint string, opts ReadRawDataOptions) ([]RawRow, error) {
	hasDate := opts.Date != nil
	hasRange := opts.RangeStart != nil || opts.RangeEnd != nil
	if hasDate == hasRange {
		return nil, &ValueError{Msg: "exactly one of date or date_range must be provided"}
	}

	var keys []string
	if hasDate {
		keys = []string{bronzeKey(endpoint, *opts.Date)}
	} else {
		dates, err := b.ListAvailableDates(endpoint)
		if err != nil {
			return nil, err
		}
		for _, d := range dates {
			if !d.Before(*opts.RangeStart) && !d.After(*opts.RangeEnd) {
				keys = append(keys, bronzeKey(endpoint, d))
			}
		}
	}

	var result []RawRow
	for _, key := range keys {
		exists, err := b.storage.Exists(key)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}
		data, err := b.storage.Get(key)
		if err != nil {
			return nil, err
		}
		rows, err := ReadParquet[bronzeStoredRow](data)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			var decoded RawRow
			if err := json.Unmarshal([]byte(r.Data), &decoded); err != nil {
				return nil, fmt.Errorf("lakehouse: unmarshal bronze row: %w", err)
			}
			result = append(result, decoded)
		}
	}
	return result, nil
}

// ListAvailableDates returns every date with a stored partition under
// endpoint, sorted ascending.
func (b *BronzeStorage) ListAvailableDates(endpoint string) ([]time.Time, error) {
	blobs, err := b.storage.List(endpoint + "/")
	if err != nil {
		return nil, err
	}

	var dates []time.Time
	for _, m := range blobs {
		if !strings.HasSuffix(m.Key, "/data.parquet") {
			continue
		}
		parts := strings.Split(m.Key, "/")
		if len(parts) != 3 {
			continue
		}
		d, err := time.Parse(DateLayout, parts[1])
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dedupeDates(dates), nil
}

func dedupeDates(dates []time.Time) []time.Time {
	if len(dates) == 0 {
		return dates
	}
	out := dates[:1]
	for _, d := range dates[1:] {
		if !d.Equal(out[len(out)-1]) {
			out = append(out, d)
		}
	}
	return out
}

// GetStorageStats aggregates per-endpoint {dates, files, size_mb}. It
// returns no cross-endpoint totals. Malformed keys are skipped silently.
func (b *BronzeStorage) GetStorageStats() (map[string]EndpointStats, error) {
	blobs, err := b.storage.List("")
	if err != nil {
		return nil, err
	}

	stats := make(map[string]EndpointStats)
	for _, m := range blobs {
		if !strings.HasSuffix(m.Key, "/data.parquet") {
			continue
		}
		parts := strings.Split(m.Key, "/")
		if len(parts) != 3 {
			continue
		}
		endpoint := parts[0]
		s := stats[endpoint]
		s.Dates++
		s.Files++
		s.SizeMB += float64(m.Size) / (1024 * 1024)
		stats[endpoint] = s
	}
	for endpoint, s := range stats {
		s.SizeMB = round2(s.SizeMB)
		stats[endpoint] = s
	}
	return stats, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
