package stock

import (
	"math"
	"testing"
	"time"

	"github.com/jqsys/jqlakehouse/pkg/blob"
	"github.com/jqsys/jqlakehouse/pkg/lakehouse"
)

func newTestFixtures(t *testing.T) (*lakehouse.BronzeStorage, *lakehouse.SilverStorage, *lakehouse.GoldStorage) {
	t.Helper()
	bronzeBackend, _ := blob.NewFilesystemBackend(t.TempDir())
	silverBackend, _ := blob.NewFilesystemBackend(t.TempDir())
	goldBackend, _ := blob.NewFilesystemBackend(t.TempDir())
	bronze := lakehouse.NewBronzeStorage(bronzeBackend)
	silver := lakehouse.NewSilverStorage(silverBackend, bronze)
	gold := lakehouse.NewGoldStorage(goldBackend, silver)
	return bronze, silver, gold
}

func TestResolveCode_FiveDigitPassesThrough(t *testing.T) {
	bronze, _, gold := newTestFixtures(t)
	stk, err := New("72030", bronze, gold)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if stk.Code != "72030" {
		t.Errorf("Code = %q, want %q", stk.Code, "72030")
	}
}

func TestResolveCode_FourDigitPrefixMatchInListedInfo(t *testing.T) {
	bronze, _, gold := newTestFixtures(t)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bronze.StoreRawResponse("listed_info", []lakehouse.RawRow{
		{"Code": "72030", "CompanyName": "Toyota"},
	}, date, nil)

	stk, err := New("7203", bronze, gold)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if stk.Code != "72030" {
		t.Errorf("Code = %q, want %q (prefix-matched against listed info)", stk.Code, "72030")
	}
}

func TestResolveCode_FourDigitPrefersZeroSuffix(t *testing.T) {
	bronze, _, gold := newTestFixtures(t)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bronze.StoreRawResponse("listed_info", []lakehouse.RawRow{
		{"Code": "72035", "CompanyName": "Toyota Pref"},
		{"Code": "72030", "CompanyName": "Toyota"},
	}, date, nil)

	stk, err := New("7203", bronze, gold)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if stk.Code != "72030" {
		t.Errorf("Code = %q, want %q (0-suffixed candidate preferred)", stk.Code, "72030")
	}
}

func TestResolveCode_FallsBackToGoldCodes(t *testing.T) {
	bronze, silver, gold := newTestFixtures(t)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bronze.StoreRawResponse("daily_quotes", []lakehouse.RawRow{
		{"Code": "86970", "Date": "2024-01-01", "Open": 1, "High": 1, "Low": 1, "Close": 1},
	}, date, nil)
	silver.NormalizeDailyQuotes(date, false)
	gold.TransformDailyPrices(&date, &date, false)

	stk, err := New("8697", bronze, gold)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if stk.Code != "86970" {
		t.Errorf("Code = %q, want %q (fallback to gold codes)", stk.Code, "86970")
	}
}

func TestResolveCode_FallsBackToTrailingZero(t *testing.T) {
	bronze, _, gold := newTestFixtures(t)
	stk, err := New("1234", bronze, gold)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if stk.Code != "12340" {
		t.Errorf("Code = %q, want %q (no candidates anywhere)", stk.Code, "12340")
	}
}

func TestResolveCode_RejectsNonNumeric(t *testing.T) {
	bronze, _, gold := newTestFixtures(t)
	if _, err := New("abcd", bronze, gold); err == nil {
		t.Error("New() with a non-numeric code returned nil error")
	}
}

func TestSearch_ExactMatch(t *testing.T) {
	bronze, _, gold := newTestFixtures(t)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bronze.StoreRawResponse("listed_info", []lakehouse.RawRow{
		{"Code": "72030", "CompanyName": "Toyota Motor"},
		{"Code": "86970", "CompanyName": "Nomura"},
	}, date, nil)

	matches, err := Search("CompanyName", "Toyota Motor", MatchExact, bronze, gold)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Code != "72030" {
		t.Errorf("Search() = %v, want a single match for code 72030", matches)
	}
}

func TestSearch_ContainsMatchIsCaseInsensitive(t *testing.T) {
	bronze, _, gold := newTestFixtures(t)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bronze.StoreRawResponse("listed_info", []lakehouse.RawRow{
		{"Code": "72030", "CompanyName": "Toyota Motor Corporation"},
	}, date, nil)

	matches, err := Search("CompanyName", "toyota", MatchContains, bronze, gold)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Search() returned %d matches, want 1", len(matches))
	}
}

func TestStock_GetLatestPrice_NoHistory(t *testing.T) {
	bronze, _, gold := newTestFixtures(t)
	stk, err := New("99990", bronze, gold)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, found, err := stk.GetLatestPrice()
	if err != nil {
		t.Fatalf("GetLatestPrice() error = %v", err)
	}
	if found {
		t.Error("GetLatestPrice() found = true, want false for a stock with no gold history")
	}
}

func setupAdjustmentFixture(t *testing.T) *Stock {
	t.Helper()
	bronze, silver, gold := newTestFixtures(t)
	day1 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

	bronze.StoreRawResponse("daily_quotes", []lakehouse.RawRow{
		{"Code": "13010", "Date": "2024-01-15", "Open": 300, "High": 300, "Low": 300, "Close": 300, "Volume": 900, "AdjustmentFactor": 1.0},
	}, day1, nil)
	if _, err := silver.NormalizeDailyQuotes(day1, false); err != nil {
		t.Fatalf("NormalizeDailyQuotes() error = %v", err)
	}
	bronze.StoreRawResponse("daily_quotes", []lakehouse.RawRow{
		{"Code": "13010", "Date": "2024-01-16", "Open": 110, "High": 110, "Low": 110, "Close": 110, "Volume": 2700, "AdjustmentFactor": 1.0 / 3.0},
	}, day2, nil)
	if _, err := silver.NormalizeDailyQuotes(day2, false); err != nil {
		t.Fatalf("NormalizeDailyQuotes() error = %v", err)
	}
	if _, err := gold.TransformDailyPrices(&day1, &day2, false); err != nil {
		t.Fatalf("TransformDailyPrices() error = %v", err)
	}

	stk, err := New("13010", bronze, gold)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return stk
}

func TestGetPriceHistory_AdjustAddAppendsColumns(t *testing.T) {
	stk := setupAdjustmentFixture(t)

	rows, err := stk.GetPriceHistory(nil, nil, PriceHistoryOptions{Adjust: AdjustAdd, AdjustVolume: true})
	if err != nil {
		t.Fatalf("GetPriceHistory() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("GetPriceHistory() returned %d rows, want 2", len(rows))
	}

	if rows[0]["close"] != 300.0 {
		t.Errorf("rows[0][close] = %v, want 300 unchanged", rows[0]["close"])
	}
	if got := rows[0]["adj_close"]; got != 300.0 {
		t.Errorf("rows[0][adj_close] = %v, want 300", got)
	}
	if got := rows[0]["volume"]; got != 900.0 {
		t.Errorf("rows[0][volume] = %v, want 900 unchanged", got)
	}

	gotAdjClose, ok := rows[1]["adj_close"].(float64)
	if !ok || math.Abs(gotAdjClose-(110.0/3.0)) > 0.01 {
		t.Errorf("rows[1][adj_close] = %v, want ~36.67", rows[1]["adj_close"])
	}
	if rows[1]["close"] != 110.0 {
		t.Errorf("rows[1][close] = %v, want 110 unchanged under adjust=add", rows[1]["close"])
	}
	gotAdjVolume, ok := rows[1]["volume"].(float64)
	if !ok || math.Abs(gotAdjVolume-8100.0) > 0.01 {
		t.Errorf("rows[1][volume] = %v, want 8100", rows[1]["volume"])
	}
}

func TestGetPriceHistory_AdjustReplaceOverwritesInPlace(t *testing.T) {
	stk := setupAdjustmentFixture(t)

	rows, err := stk.GetPriceHistory(nil, nil, PriceHistoryOptions{Adjust: AdjustReplace, AdjustVolume: true})
	if err != nil {
		t.Fatalf("GetPriceHistory() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("GetPriceHistory() returned %d rows, want 2", len(rows))
	}

	if _, present := rows[0]["adj_close"]; present {
		t.Error("adjust=replace should not add an adj_close column")
	}
	if rows[0]["close"] != 300.0 {
		t.Errorf("rows[0][close] = %v, want 300", rows[0]["close"])
	}
	gotClose, ok := rows[1]["close"].(float64)
	if !ok || math.Abs(gotClose-(110.0/3.0)) > 0.01 {
		t.Errorf("rows[1][close] = %v, want ~36.67", rows[1]["close"])
	}
	gotVolume, ok := rows[1]["volume"].(float64)
	if !ok || math.Abs(gotVolume-8100.0) > 0.01 {
		t.Errorf("rows[1][volume] = %v, want 8100", rows[1]["volume"])
	}
}

func TestGetPriceHistory_AdjustNoneLeavesRowsUnchanged(t *testing.T) {
	stk := setupAdjustmentFixture(t)

	rows, err := stk.GetPriceHistory(nil, nil, DefaultPriceHistoryOptions())
	if err != nil {
		t.Fatalf("GetPriceHistory() error = %v", err)
	}
	for _, r := range rows {
		if _, present := r["adj_close"]; present {
			t.Error("adjust=none should not add an adj_close column")
		}
	}
	if rows[1]["volume"] != int64(2700) {
		t.Errorf("rows[1][volume] = %v, want 2700 unchanged", rows[1]["volume"])
	}
}

func TestGetPriceHistory_ColumnsProjectionAlwaysKeepsDateAndCode(t *testing.T) {
	stk := setupAdjustmentFixture(t)

	rows, err := stk.GetPriceHistory(nil, nil, PriceHistoryOptions{Columns: []string{"close"}})
	if err != nil {
		t.Fatalf("GetPriceHistory() error = %v", err)
	}
	for _, r := range rows {
		if len(r) != 3 {
			t.Fatalf("row = %v, want exactly date, code, close", r)
		}
		if _, ok := r["date"]; !ok {
			t.Error("projected row missing date")
		}
		if _, ok := r["code"]; !ok {
			t.Error("projected row missing code")
		}
		if _, ok := r["close"]; !ok {
			t.Error("projected row missing requested column close")
		}
	}
}

func TestGetPriceHistory_UnknownColumnIsError(t *testing.T) {
	stk := setupAdjustmentFixture(t)

	if _, err := stk.GetPriceHistory(nil, nil, PriceHistoryOptions{Columns: []string{"nonexistent"}}); err == nil {
		t.Error("GetPriceHistory() with an unknown column returned nil error")
	}
}

func TestAdjustmentEvents_FiltersByTolerance(t *testing.T) {
	stk := setupAdjustmentFixture(t)

	events, err := stk.AdjustmentEvents(nil, nil, 1e-9)
	if err != nil {
		t.Fatalf("AdjustmentEvents() error = %v", err)
	}
	if len(events) != 1 || events[0].Date != "2024-01-16" {
		t.Errorf("AdjustmentEvents() = %v, want a single event on 2024-01-16", events)
	}
}

func TestStock_GetLatestPrice_ReturnsMostRecent(t *testing.T) {
	bronze, silver, gold := newTestFixtures(t)
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	bronze.StoreRawResponse("daily_quotes", []lakehouse.RawRow{
		{"Code": "72030", "Date": "2024-01-01", "Open": 1, "High": 100, "Low": 1, "Close": 100},
	}, day1, nil)
	silver.NormalizeDailyQuotes(day1, false)
	bronze.StoreRawResponse("daily_quotes", []lakehouse.RawRow{
		{"Code": "72030", "Date": "2024-01-02", "Open": 1, "High": 110, "Low": 1, "Close": 110},
	}, day2, nil)
	silver.NormalizeDailyQuotes(day2, false)
	gold.TransformDailyPrices(&day1, &day2, false)

	stk, err := New("72030", bronze, gold)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	latest, found, err := stk.GetLatestPrice()
	if err != nil {
		t.Fatalf("GetLatestPrice() error = %v", err)
	}
	if !found || latest.Close != 110 {
		t.Errorf("GetLatestPrice() = %+v, %v, want close=110, true", latest, found)
	}
}
