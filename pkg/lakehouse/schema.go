// Package lakehouse implements the Bronze/Silver/Gold medallion tiers:
// partitioned raw ingestion, schema-projected and validated normalization,
// and per-stock merged timeseries with atomic replace semantics.
package lakehouse

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// DateLayout is the calendar-date format used for every partition key and
// every Date-typed row column: ISO-8601, no time component, UTC implied.
const DateLayout = "2006-01-02"

// RawRow is a single record of an arbitrary Bronze-tier API response,
// keyed by the upstream field names exactly as returned.
type RawRow = map[string]any

// BronzeMetaColumns lists the metadata columns that
// BronzeStorage.StoreRawResponse writes with every row. StoreRawResponse
// does not use this type; it writes the same four columns through
// bronzeStoredRow.
type BronzeMetaColumns struct {
	Endpoint      string `parquet:"_endpoint"`
	PartitionDate string `parquet:"_partition_date"`
	IngestedAt    string `parquet:"_ingested_at"`
	Metadata      string `parquet:"_metadata,optional"`
}

// DailyPriceRow is the strictly typed Silver/Gold daily_prices schema:
// code, date, OHLCV, and adjustment columns.
type DailyPriceRow struct {
	Code             string   `parquet:"code"`
	Date             string   `parquet:"date"`
	Open             float64  `parquet:"open"`
	High             float64  `parquet:"high"`
	Low              float64  `parquet:"low"`
	Close            float64  `parquet:"close"`
	Volume           int64    `parquet:"volume"`
	TurnoverValue    *float64 `parquet:"turnover_value,optional"`
	AdjustmentFactor *float64 `parquet:"adjustment_factor,optional"`
	AdjClose         float64  `parquet:"adj_close"`
	ProcessedAt      string   `parquet:"processed_at"`
}

// WriteParquet serializes rows with snappy compression.
func WriteParquet[T any](rows []T) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := parquet.Write(buf, rows, parquet.Compression(&parquet.Snappy)); err != nil {
		return nil, fmt.Errorf("lakehouse: parquet write: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadParquet deserializes data into a slice of T.
func ReadParquet[T any](data []byte) ([]T, error) {
	if len(data) == 0 {
		return nil, nil
	}
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("lakehouse: parquet read: %w", err)
	}
	return rows, nil
}

// RowCount returns the number of rows stored in a Parquet file's footer
// without decoding any row data, used by stats collection to avoid a
// full read.
func RowCount(data []byte) (int64, error) {
	if len(data) == 0 {
		return 0, nil
	}
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("lakehouse: parquet open: %w", err)
	}
	return file.NumRows(), nil
}
