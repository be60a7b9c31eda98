package lakehouse

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jqsys/jqlakehouse/pkg/blob"
	"github.com/jqsys/jqlakehouse/pkg/log"
	"github.com/jqsys/jqlakehouse/pkg/metrics"
)

// DataQualityError marks a Silver validation failure: the
// normalization for that one date aborts and no partition is written,
// but the caller's batch loop continues with the next date.
type DataQualityError struct {
	Msg string
}

func (e *DataQualityError) Error() string { return "data quality: " + e.Msg }

// SilverStorage owns Bronze→Silver normalization: schema projection,
// validation, and per-date idempotent writes.
type SilverStorage struct {
	storage *blob.Storage
	bronze  *BronzeStorage
}

// NewSilverStorage wraps backend and bronze in a SilverStorage.
func NewSilverStorage(backend blob.Backend, bronze *BronzeStorage) *SilverStorage {
	return &SilverStorage{storage: blob.NewStorage(backend), bronze: bronze}
}

// WithMetrics instruments the underlying blob.Storage so every Put/Get
// reports to m under backendName.
func (s *SilverStorage) WithMetrics(backendName string, m blob.StorageMetrics) *SilverStorage {
	s.storage.WithMetrics(backendName, m)
	return s
}

func silverKey(table string, date time.Time) string {
	return fmt.Sprintf("%s/%s/data.parquet", table, date.Format(DateLayout))
}

// NormalizeDailyQuotes transforms the daily_quotes Bronze partition for
// date into the daily_prices Silver partition. With force=false and the
// target already present, this is a no-op returning the existing key
// without re-reading Bronze. Returns ("", nil) when Bronze had no
// data for date.
func (s *SilverStorage) NormalizeDailyQuotes(date time.Time, force bool) (string, error) {
	logger := log.WithComponent("silver").With().Str("date", date.Format(DateLayout)).Logger()
	key := silverKey("daily_prices", date)

	if !force {
		exists, err := s.storage.Exists(key)
		if err != nil {
			return "", err
		}
		if exists {
			logger.Info().Msg("daily quotes already normalized")
			return key, nil
		}
	}

	rawRows, err := s.bronze.ReadRawData("daily_quotes", ReadRawDataOptions{Date: &date})
	if err != nil {
		return "", err
	}
	if len(rawRows) == 0 {
		logger.Warn().Msg("no raw daily quotes data")
		return "", nil
	}

	rows, err := normalizeDailyQuotesSchema(rawRows)
	if err != nil {
		return "", err
	}

	if err := validateDailyQuotes(rows); err != nil {
		metrics.SilverValidationFailures.WithLabelValues("daily_prices").Inc()
		return "", err
	}

	data, err := WriteParquet(rows)
	if err != nil {
		return "", err
	}
	if _, err := s.storage.Put(key, data, "application/parquet"); err != nil {
		return "", err
	}

	metrics.SilverPartitionsProcessed.WithLabelValues("daily_prices").Inc()
	logger.Info().Int("rows", len(rows)).Msg("normalized daily quotes")
	return key, nil
}

// normalizeDailyQuotesSchema projects raw J-Quants daily_quotes rows
// into the Silver daily_prices schema, dropping rows with a null core
// field and filling adj_close when absent.
func normalizeDailyQuotesSchema(rawRows []RawRow) ([]DailyPriceRow, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	rows := make([]DailyPriceRow, 0, len(rawRows))

	for _, raw := range rawRows {
		code := stringField(raw, "Code")
		dateStr := stringField(raw, "Date")
		if code == "" || dateStr == "" {
			continue
		}
		parsedDate, err := time.Parse(DateLayout, dateStr)
		if err != nil {
			continue
		}

		closeVal, ok := floatField(raw, "Close")
		if !ok {
			continue
		}

		row := DailyPriceRow{
			Code:        code,
			Date:        parsedDate.Format(DateLayout),
			Close:       closeVal,
			ProcessedAt: now,
		}
		if v, ok := floatField(raw, "Open"); ok {
			row.Open = v
		}
		if v, ok := floatField(raw, "High"); ok {
			row.High = v
		}
		if v, ok := floatField(raw, "Low"); ok {
			row.Low = v
		}
		if v, ok := intField(raw, "Volume"); ok {
			row.Volume = v
		}
		if v, ok := floatField(raw, "TurnoverValue"); ok {
			row.TurnoverValue = &v
		}

		var factor *float64
		if v, ok := floatField(raw, "AdjustmentFactor"); ok {
			factor = &v
			row.AdjustmentFactor = &v
		}
		if v, ok := floatField(raw, "AdjustmentClose"); ok {
			row.AdjClose = v
		} else {
			f := 1.0
			if factor != nil {
				f = *factor
			}
			row.AdjClose = row.Close * f
		}

		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Code != rows[j].Code {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Date < rows[j].Date
	})
	return rows, nil
}

// validateDailyQuotes enforces the value-level validation taxonomy: required
// columns are implicit in DailyPriceRow's type, so only the value-level
// checks remain.
func validateDailyQuotes(rows []DailyPriceRow) error {
	if len(rows) == 0 {
		return nil
	}

	minClose := rows[0].Close
	maxClose := rows[0].Close
	invalidOHLC := 0

	for _, r := range rows {
		if r.Code == "" {
			return &DataQualityError{Msg: "found null code"}
		}
		if r.Close < minClose {
			minClose = r.Close
		}
		if r.Close > maxClose {
			maxClose = r.Close
		}
		if r.High < r.Low || r.High < r.Open || r.High < r.Close ||
			r.Low > r.Open || r.Low > r.Close {
			invalidOHLC++
		}
	}

	if minClose <= 0 {
		return &DataQualityError{Msg: fmt.Sprintf("found non-positive close prices: min=%v", minClose)}
	}
	if maxClose > 1_000_000 {
		log.WithComponent("silver").Warn().Float64("max_close", maxClose).Msg("found very high close price")
	}
	if invalidOHLC > 0 {
		return &DataQualityError{Msg: fmt.Sprintf("found %d records with invalid OHLC relationships", invalidOHLC)}
	}

	log.WithComponent("silver").Info().Int("rows", len(rows)).Msg("data quality validation passed")
	return nil
}

// ReadDailyPrices reads normalized daily prices in [start,end], optionally
// filtered to codes, sorted by (date, code) ascending.
func (s *SilverStorage) ReadDailyPrices(start, end time.Time, codes []string) ([]DailyPriceRow, error) {
	var rows []DailyPriceRow
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := silverKey("daily_prices", d)
		exists, err := s.storage.Exists(key)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}
		data, err := s.storage.Get(key)
		if err != nil {
			return nil, err
		}
		parsed, err := ReadParquet[DailyPriceRow](data)
		if err != nil {
			return nil, err
		}
		rows = append(rows, parsed...)
	}

	var codeSet map[string]bool
	if len(codes) > 0 {
		codeSet = make(map[string]bool, len(codes))
		for _, c := range codes {
			codeSet[c] = true
		}
	}

	filtered := rows[:0]
	startStr, endStr := start.Format(DateLayout), end.Format(DateLayout)
	for _, r := range rows {
		if r.Date < startStr || r.Date > endStr {
			continue
		}
		if codeSet != nil && !codeSet[r.Code] {
			continue
		}
		filtered = append(filtered, r)
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Date != filtered[j].Date {
			return filtered[i].Date < filtered[j].Date
		}
		return filtered[i].Code < filtered[j].Code
	})
	return filtered, nil
}

// ListAvailableDates returns every date with a normalized partition for
// table, sorted ascending.
func (s *SilverStorage) ListAvailableDates(table string) ([]time.Time, error) {
	blobs, err := s.storage.List(table + "/")
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

// TableStats summarizes Silver storage for a single table.
type TableStats struct {
	Dates  int
	Files  int
	SizeMB float64
}

// GetStorageStats aggregates per-table stats, optionally restricted to
// one table.
func (s *SilverStorage) GetStorageStats(table string) (map[string]TableStats, error) {
	prefix := ""
	if table != "" {
		prefix = table + "/"
	}
	blobs, err := s.storage.List(prefix)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]TableStats)
	for _, m := range blobs {
		if !strings.HasSuffix(m.Key, "/data.parquet") {
			continue
		}
		parts := strings.Split(m.Key, "/")
		if len(parts) != 3 {
			continue
		}
		tableName := parts[0]
		st := stats[tableName]
		st.Dates++
		st.Files++
		st.SizeMB += float64(m.Size) / (1024 * 1024)
		stats[tableName] = st
	}
	for name, st := range stats {
		st.SizeMB = round2(st.SizeMB)
		stats[name] = st
	}
	return stats, nil
}

func stringField(row RawRow, key string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func floatField(row RawRow, key string) (float64, bool) {
	v, ok := row[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func intField(row RawRow, key string) (int64, bool) {
	v, ok := row[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case string:
		i, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
