package lakehouse

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jqsys/jqlakehouse/pkg/blob"
)

func newTestGold(t *testing.T) (*GoldStorage, *SilverStorage, *BronzeStorage) {
	t.Helper()
	bronzeBackend, _ := blob.NewFilesystemBackend(t.TempDir())
	silverBackend, _ := blob.NewFilesystemBackend(t.TempDir())
	goldBackend, _ := blob.NewFilesystemBackend(t.TempDir())
	bronze := NewBronzeStorage(bronzeBackend)
	silver := NewSilverStorage(silverBackend, bronze)
	gold := NewGoldStorage(goldBackend, silver)
	return gold, silver, bronze
}

func ingestAndNormalize(t *testing.T, bronze *BronzeStorage, silver *SilverStorage, date time.Time, rows []RawRow) {
	t.Helper()
	if _, err := bronze.StoreRawResponse("daily_quotes", rows, date, nil); err != nil {
		t.Fatalf("StoreRawResponse() error = %v", err)
	}
	if _, err := silver.NormalizeDailyQuotes(date, false); err != nil {
		t.Fatalf("NormalizeDailyQuotes() error = %v", err)
	}
}

func TestGoldStorage_TransformMergesAcrossDates(t *testing.T) {
	gold, silver, bronze := newTestGold(t)
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	ingestAndNormalize(t, bronze, silver, day1, []RawRow{
		{"Code": "1", "Date": "2024-01-01", "Open": 1, "High": 100, "Low": 1, "Close": 100},
	})
	ingestAndNormalize(t, bronze, silver, day2, []RawRow{
		{"Code": "1", "Date": "2024-01-02", "Open": 1, "High": 110, "Low": 1, "Close": 110},
	})

	result, err := gold.TransformDailyPrices(&day1, &day2, false)
	if err != nil {
		t.Fatalf("TransformDailyPrices() error = %v", err)
	}
	if result.StocksUpdated != 1 || result.RecordsWritten != 2 {
		t.Errorf("result = %+v, want 1 stock / 2 records", result)
	}

	rows, err := gold.ReadStockPrices("1", nil, nil)
	if err != nil {
		t.Fatalf("ReadStockPrices() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ReadStockPrices() returned %d rows, want 2", len(rows))
	}
}

func TestGoldStorage_MergeDedupeKeepsLastWrite(t *testing.T) {
	gold, silver, bronze := newTestGold(t)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	ingestAndNormalize(t, bronze, silver, date, []RawRow{
		{"Code": "1", "Date": "2024-01-01", "Open": 1, "High": 100, "Low": 1, "Close": 100},
	})
	if _, err := gold.TransformDailyPrices(&date, &date, false); err != nil {
		t.Fatalf("TransformDailyPrices() error = %v", err)
	}

	if _, err := bronze.StoreRawResponse("daily_quotes", []RawRow{
		{"Code": "1", "Date": "2024-01-01", "Open": 1, "High": 200, "Low": 1, "Close": 200},
	}, date, nil); err != nil {
		t.Fatalf("StoreRawResponse() error = %v", err)
	}
	if _, err := silver.NormalizeDailyQuotes(date, true); err != nil {
		t.Fatalf("NormalizeDailyQuotes() (force) error = %v", err)
	}
	if _, err := gold.TransformDailyPrices(&date, &date, true); err != nil {
		t.Fatalf("TransformDailyPrices() (second run) error = %v", err)
	}

	rows, err := gold.ReadStockPrices("1", nil, nil)
	if err != nil {
		t.Fatalf("ReadStockPrices() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("ReadStockPrices() returned %d rows, want 1 (deduped on date)", len(rows))
	}
	if rows[0].Close != 200 {
		t.Errorf("Close = %v, want 200 (freshest write should win)", rows[0].Close)
	}
}

func TestGoldStorage_TransformForceFalsePreservesExistingDate(t *testing.T) {
	gold, silver, bronze := newTestGold(t)
	day1 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

	ingestAndNormalize(t, bronze, silver, day1, []RawRow{
		{"Code": "1301", "Date": "2024-01-15", "Open": 1, "High": 300, "Low": 1, "Close": 300},
	})
	if _, err := gold.TransformDailyPrices(&day1, &day1, false); err != nil {
		t.Fatalf("TransformDailyPrices() error = %v", err)
	}

	if _, err := bronze.StoreRawResponse("daily_quotes", []RawRow{
		{"Code": "1301", "Date": "2024-01-15", "Open": 1, "High": 315, "Low": 1, "Close": 315},
	}, day1, nil); err != nil {
		t.Fatalf("StoreRawResponse() error = %v", err)
	}
	if _, err := silver.NormalizeDailyQuotes(day1, true); err != nil {
		t.Fatalf("NormalizeDailyQuotes() (force) error = %v", err)
	}
	ingestAndNormalize(t, bronze, silver, day2, []RawRow{
		{"Code": "1301", "Date": "2024-01-16", "Open": 1, "High": 115, "Low": 1, "Close": 115},
	})
	if _, err := gold.TransformDailyPrices(&day1, &day2, false); err != nil {
		t.Fatalf("TransformDailyPrices() (second run) error = %v", err)
	}

	rows, err := gold.ReadStockPrices("1301", nil, nil)
	if err != nil {
		t.Fatalf("ReadStockPrices() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ReadStockPrices() returned %d rows, want 2", len(rows))
	}
	if rows[0].Date != "2024-01-15" || rows[0].Close != 300 {
		t.Errorf("rows[0] = %+v, want (2024-01-15, 300) unchanged from the first transform", rows[0])
	}
	if rows[1].Date != "2024-01-16" || rows[1].Close != 115 {
		t.Errorf("rows[1] = %+v, want (2024-01-16, 115)", rows[1])
	}
}

func TestGoldStorage_MergeStockCleansUpTmpKey(t *testing.T) {
	gold, silver, bronze := newTestGold(t)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ingestAndNormalize(t, bronze, silver, date, []RawRow{
		{"Code": "1", "Date": "2024-01-01", "Open": 1, "High": 100, "Low": 1, "Close": 100},
	})
	if _, err := gold.TransformDailyPrices(&date, &date, false); err != nil {
		t.Fatalf("TransformDailyPrices() error = %v", err)
	}

	tmpExists, err := gold.storage.Exists(filepath.ToSlash(goldKey("1")) + ".tmp")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if tmpExists {
		t.Error("expected the .tmp staging key to be cleaned up after a successful merge")
	}
}

func TestGoldStorage_ListAvailableStocksSorted(t *testing.T) {
	gold, silver, bronze := newTestGold(t)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ingestAndNormalize(t, bronze, silver, date, []RawRow{
		{"Code": "9999", "Date": "2024-01-01", "Open": 1, "High": 1, "Low": 1, "Close": 1},
		{"Code": "1111", "Date": "2024-01-01", "Open": 1, "High": 1, "Low": 1, "Close": 1},
	})
	if _, err := gold.TransformDailyPrices(&date, &date, false); err != nil {
		t.Fatalf("TransformDailyPrices() error = %v", err)
	}

	codes, err := gold.ListAvailableStocks()
	if err != nil {
		t.Fatalf("ListAvailableStocks() error = %v", err)
	}
	if len(codes) != 2 || codes[0] != "1111" || codes[1] != "9999" {
		t.Errorf("ListAvailableStocks() = %v, want sorted [1111, 9999]", codes)
	}
}

// TestMergeDeduped_ForceTrueOverwritesExisting mirrors the force=true
// half of the merge-dedup scenario: on a matching date, fresh wins.
func TestMergeDeduped_ForceTrueOverwritesExisting(t *testing.T) {
	existing := []DailyPriceRow{{Code: "1301", Date: "2024-01-15", Close: 300}}
	fresh := []DailyPriceRow{
		{Code: "1301", Date: "2024-01-15", Close: 315},
		{Code: "1301", Date: "2024-01-16", Close: 115},
	}

	merged, wrote := mergeDeduped(existing, fresh, true)
	if !wrote {
		t.Fatalf("mergeDeduped() wrote = false, want true")
	}
	if len(merged) != 2 {
		t.Fatalf("mergeDeduped() returned %d rows, want 2", len(merged))
	}
	if merged[0].Date != "2024-01-15" || merged[0].Close != 315 {
		t.Errorf("merged[0] = %+v, want (2024-01-15, 315)", merged[0])
	}
	if merged[1].Date != "2024-01-16" || merged[1].Close != 115 {
		t.Errorf("merged[1] = %+v, want (2024-01-16, 115)", merged[1])
	}
}

// TestMergeDeduped_ForceFalsePreservesExisting mirrors the force=false
// half of the same scenario: the overlapping date keeps the existing
// value, and only the genuinely new date is appended.
func TestMergeDeduped_ForceFalsePreservesExisting(t *testing.T) {
	existing := []DailyPriceRow{{Code: "1301", Date: "2024-01-15", Close: 300}}
	fresh := []DailyPriceRow{
		{Code: "1301", Date: "2024-01-15", Close: 315},
		{Code: "1301", Date: "2024-01-16", Close: 115},
	}

	merged, wrote := mergeDeduped(existing, fresh, false)
	if !wrote {
		t.Fatalf("mergeDeduped() wrote = false, want true (one new date was added)")
	}
	if len(merged) != 2 {
		t.Fatalf("mergeDeduped() returned %d rows, want 2", len(merged))
	}
	if merged[0].Date != "2024-01-15" || merged[0].Close != 300 {
		t.Errorf("merged[0] = %+v, want (2024-01-15, 300) (existing date preserved)", merged[0])
	}
	if merged[1].Date != "2024-01-16" || merged[1].Close != 115 {
		t.Errorf("merged[1] = %+v, want (2024-01-16, 115)", merged[1])
	}
}

// TestMergeDeduped_ForceFalseNoNewDatesSkipsWrite covers the case where
// every fresh date already exists: with force=false this is a no-op.
func TestMergeDeduped_ForceFalseNoNewDatesSkipsWrite(t *testing.T) {
	existing := []DailyPriceRow{{Code: "1301", Date: "2024-01-15", Close: 300}}
	fresh := []DailyPriceRow{{Code: "1301", Date: "2024-01-15", Close: 315}}

	merged, wrote := mergeDeduped(existing, fresh, false)
	if wrote {
		t.Errorf("mergeDeduped() wrote = true, want false (no new dates)")
	}
	if merged != nil {
		t.Errorf("mergeDeduped() merged = %+v, want nil when wrote is false", merged)
	}
}

func TestStatsCache_GetPutRoundTrip(t *testing.T) {
	cache, err := OpenStatsCache(filepath.Join(t.TempDir(), "stats.db"))
	if err != nil {
		t.Fatalf("OpenStatsCache() error = %v", err)
	}
	defer cache.Close()

	if _, ok := cache.Get("key", "etag1"); ok {
		t.Error("Get() on an empty cache returned a hit")
	}

	if err := cache.Put("key", "etag1", 42); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	rows, ok := cache.Get("key", "etag1")
	if !ok || rows != 42 {
		t.Fatalf("Get() = %v, %v, want 42, true", rows, ok)
	}

	if _, ok := cache.Get("key", "etag2"); ok {
		t.Error("Get() with a stale etag returned a hit, want a miss")
	}
}
