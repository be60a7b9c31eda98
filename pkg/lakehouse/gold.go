package lakehouse

import (
	"sort"
	"strings"
	"time"

	"github.com/jqsys/jqlakehouse/pkg/blob"
	"github.com/jqsys/jqlakehouse/pkg/log"
	"github.com/jqsys/jqlakehouse/pkg/metrics"
)

// GoldStorage owns the stock-partitioned, merge-deduplicated Gold tier:
// one Parquet file per stock code holding its entire price history.
type GoldStorage struct {
	storage *blob.Storage
	silver  *SilverStorage
	stats   *StatsCache
}

// NewGoldStorage wraps backend and silver in a GoldStorage.
func NewGoldStorage(backend blob.Backend, silver *SilverStorage) *GoldStorage {
	return &GoldStorage{storage: blob.NewStorage(backend), silver: silver}
}

// WithStatsCache attaches a row-count cache so GetStorageStats avoids
// re-decoding Parquet footers for files it has already seen.
func (g *GoldStorage) WithStatsCache(cache *StatsCache) *GoldStorage {
	g.stats = cache
	return g
}

// WithMetrics instruments the underlying blob.Storage so every Put/Get
// reports to m under backendName.
func (g *GoldStorage) WithMetrics(backendName string, m blob.StorageMetrics) *GoldStorage {
	g.storage.WithMetrics(backendName, m)
	return g
}

func goldKey(code string) string {
	return "daily_prices/" + code + "/data.parquet"
}

// TransformResult summarizes one TransformDailyPrices call.
type TransformResult struct {
	DatesProcessed int
	StocksUpdated  int
	RecordsWritten int
}

// TransformDailyPrices merges Silver daily_prices rows in [start,end]
// (or every available date when both are nil) into per-stock Gold
// files, deduplicating on (code,date). With force, a Silver row replaces
// the existing Gold row for its date; without force, dates already in a
// Gold file are kept and only new dates are added. StocksUpdated and
// RecordsWritten count only the stock files that were rewritten.
func (g *GoldStorage) TransformDailyPrices(start, end *time.Time, force bool) (TransformResult, error) {
	logger := log.WithComponent("gold")
	transformTimer := metrics.NewTimer()
	defer transformTimer.ObserveDuration(metrics.GoldTransformDuration)
	var result TransformResult

	rangeStart, rangeEnd, err := g.resolveRange(start, end)
	if err != nil {
		return result, err
	}

	rows, err := g.silver.ReadDailyPrices(rangeStart, rangeEnd, nil)
	if err != nil {
		return result, err
	}

	byStock := make(map[string][]DailyPriceRow)
	dateSeen := make(map[string]bool)
	for _, r := range rows {
		byStock[r.Code] = append(byStock[r.Code], r)
		dateSeen[r.Date] = true
	}
	result.DatesProcessed = len(dateSeen)

	codes := make([]string, 0, len(byStock))
	for code := range byStock {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		mergeTimer := metrics.NewTimer()
		written, err := g.mergeStock(code, byStock[code], force)
		mergeTimer.ObserveDuration(metrics.GoldMergeDuration)
		if err != nil {
			logger.Error().Err(err).Str("stock_code", code).Msg("gold merge failed, continuing")
			continue
		}
		if written == 0 {
			continue
		}
		metrics.GoldStocksUpdated.WithLabelValues("daily_prices").Inc()
		result.StocksUpdated++
		result.RecordsWritten += written
	}

	logger.Info().
		Int("dates_processed", result.DatesProcessed).
		Int("stocks_updated", result.StocksUpdated).
		Int("records_written", result.RecordsWritten).
		Msg("transform complete")
	return result, nil
}

func (g *GoldStorage) resolveRange(start, end *time.Time) (time.Time, time.Time, error) {
	if start != nil && end != nil {
		return *start, *end, nil
	}
	dates, err := g.silver.ListAvailableDates("daily_prices")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if len(dates) == 0 {
		return time.Time{}, time.Time{}, nil
	}
	return dates[0], dates[len(dates)-1], nil
}

// mergeStock merges newRows into the existing Gold file for code (if
// any) and writes the result atomically via a .tmp staging key. With
// force=false, a date already present in the existing file is left
// untouched (existing wins); with force=true, newRows wins on overlap.
// When force=false and every newRows date is already present, nothing
// changes and no write occurs. It returns the number of rows written,
// 0 when no write occurs.
func (g *GoldStorage) mergeStock(code string, newRows []DailyPriceRow, force bool) (int, error) {
	key := goldKey(code)
	tmpKey := key + ".tmp"

	existing, err := g.readStockFile(key)
	if err != nil {
		return 0, err
	}

	merged, wrote := mergeDeduped(existing, newRows, force)
	if !wrote {
		return 0, nil
	}

	data, err := WriteParquet(merged)
	if err != nil {
		return 0, err
	}

	if _, err := g.storage.Put(tmpKey, data, "application/parquet"); err != nil {
		return 0, err
	}
	staged, err := g.storage.Get(tmpKey)
	if err != nil {
		return 0, err
	}
	if _, err := g.storage.Put(key, staged, "application/parquet"); err != nil {
		return 0, err
	}
	if err := g.storage.Delete(tmpKey); err != nil {
		log.WithComponent("gold").Warn().Err(err).Str("stock_code", code).Msg("failed to clean up tmp staging key")
	}

	return len(merged), nil
}

func (g *GoldStorage) readStockFile(key string) ([]DailyPriceRow, error) {
	exists, err := g.storage.Exists(key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	data, err := g.storage.Get(key)
	if err != nil {
		return nil, err
	}
	return ReadParquet[DailyPriceRow](data)
}

// mergeDeduped unions existing and fresh rows, deduplicating by date.
// With force=true, fresh wins on a matching date (it is the logical
// last write). With force=false, existing wins on a matching date and
// only genuinely new dates from fresh are appended; if fresh has no
// new dates, wrote is false and the caller should skip writing.
// The merged slice is sorted by date ascending.
func mergeDeduped(existing, fresh []DailyPriceRow, force bool) (merged []DailyPriceRow, wrote bool) {
	byDate := make(map[string]DailyPriceRow, len(existing)+len(fresh))
	for _, r := range existing {
		byDate[r.Date] = r
	}

	if !force {
		added := false
		for _, r := range fresh {
			if _, ok := byDate[r.Date]; ok {
				continue
			}
			byDate[r.Date] = r
			added = true
		}
		if len(existing) > 0 && !added {
			return nil, false
		}
	} else {
		for _, r := range fresh {
			byDate[r.Date] = r
		}
	}

	out := make([]DailyPriceRow, 0, len(byDate))
	for _, r := range byDate {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, true
}

// ReadStockPrices reads a single stock's Gold history, optionally
// bounded by [start,end] and sorted by date ascending. Column
// projection and price adjustment are applied by the caller (see
// pkg/stock's Stock.GetPriceHistory), which reads the full row set
// here before deriving and projecting its own view.
func (g *GoldStorage) ReadStockPrices(code string, start, end *time.Time) ([]DailyPriceRow, error) {
	rows, err := g.readStockFile(goldKey(code))
	if err != nil {
		return nil, err
	}
	if start == nil && end == nil {
		return rows, nil
	}

	startStr, endStr := "", ""
	if start != nil {
		startStr = start.Format(DateLayout)
	}
	if end != nil {
		endStr = end.Format(DateLayout)
	}

	filtered := rows[:0]
	for _, r := range rows {
		if startStr != "" && r.Date < startStr {
			continue
		}
		if endStr != "" && r.Date > endStr {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered, nil
}

// ListAvailableStocks returns every stock code with a Gold file, sorted.
func (g *GoldStorage) ListAvailableStocks() ([]string, error) {
	blobs, err := g.storage.List("daily_prices/")
	if err != nil {
		return nil, err
	}
	var codes []string
	for _, m := range blobs {
		if !strings.HasSuffix(m.Key, "/data.parquet") {
			continue
		}
		parts := strings.Split(m.Key, "/")
		if len(parts) != 3 {
			continue
		}
		codes = append(codes, parts[1])
	}
	sort.Strings(codes)
	return codes, nil
}

// StockStats summarizes Gold storage for a single stock.
type StockStats struct {
	Records int64
	SizeMB  float64
}

// rowCountFor resolves a Gold file's row count, consulting the stats
// cache first when one is attached and the listing supplied an ETag.
// Without an ETag (the filesystem backend) the file is always re-read.
func (g *GoldStorage) rowCountFor(key, etag string) (int64, error) {
	if g.stats != nil && etag != "" {
		if cached, ok := g.stats.Get(key, etag); ok {
			return cached, nil
		}
	}
	data, err := g.storage.Get(key)
	if err != nil {
		return 0, err
	}
	rows, err := RowCount(data)
	if err != nil {
		return 0, err
	}
	if g.stats != nil && etag != "" {
		if err := g.stats.Put(key, etag, rows); err != nil {
			return 0, err
		}
	}
	return rows, nil
}

// GetStorageStats reports row counts (via Parquet footer metadata, not a
// full decode) and file size for code, or for every stock when code is
// empty.
func (g *GoldStorage) GetStorageStats(code string) (map[string]StockStats, error) {
	prefix := "daily_prices/"
	if code != "" {
		prefix = "daily_prices/" + code + "/"
	}
	blobs, err := g.storage.List(prefix)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]StockStats)
	for _, m := range blobs {
		if !strings.HasSuffix(m.Key, "/data.parquet") {
			continue
		}
		parts := strings.Split(m.Key, "/")
		if len(parts) != 3 {
			continue
		}
		stockCode := parts[1]
		rowCount, err := g.rowCountFor(m.Key, m.ETag)
		if err != nil {
			return nil, err
		}
		stats[stockCode] = StockStats{
			Records: rowCount,
			SizeMB:  round2(float64(m.Size) / (1024 * 1024)),
		}
	}
	return stats, nil
}
