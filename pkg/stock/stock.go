// Package stock provides a per-security facade over the Bronze listed_info
// snapshot and the Gold price history.
package stock

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jqsys/jqlakehouse/pkg/lakehouse"
	"github.com/jqsys/jqlakehouse/pkg/log"
)

const listedInfoEndpoint = "listed_info"

// MatchMode selects how Search compares a field's value.
type MatchMode int

const (
	MatchExact MatchMode = iota
	MatchContains
)

// listedInfoSnapshot caches one bronze listed_info read, keyed by the
// partition date it was read from.
type listedInfoSnapshot struct {
	date time.Time
	rows []lakehouse.RawRow
}

// Stock represents a single security, backed by Bronze listed_info
// master data and Gold price history.
type Stock struct {
	Code string

	bronze     *lakehouse.BronzeStorage
	gold       *lakehouse.GoldStorage
	listedInfo lakehouse.RawRow

	// snapshot caches the latest listed_info read so repeated lookups
	// against the same BronzeStorage don't re-scan the partition list.
	// Scoped to the Stock (and shared with whatever Stock constructed
	// it, e.g. via Search) rather than kept in a package-level map, so
	// it is collected along with its owning Stock.
	snapshot *listedInfoSnapshot
}

// New resolves code against bronze/gold and returns a Stock. A 5-digit
// code is used as-is; a 4-digit code is resolved per resolveCode.
func New(code string, bronze *lakehouse.BronzeStorage, gold *lakehouse.GoldStorage) (*Stock, error) {
	resolved, err := resolveCode(code, bronze, gold, nil)
	if err != nil {
		return nil, err
	}
	return &Stock{Code: resolved, bronze: bronze, gold: gold}, nil
}

// newWithListedInfo builds a Stock whose listed info is already known
// (used by Search, which has the row in hand from the snapshot scan).
func newWithListedInfo(code string, bronze *lakehouse.BronzeStorage, gold *lakehouse.GoldStorage, row lakehouse.RawRow, snap *listedInfoSnapshot) *Stock {
	return &Stock{Code: code, bronze: bronze, gold: gold, listedInfo: row, snapshot: snap}
}

// Search scans the latest listed_info snapshot for rows where field
// matches value under mode, returning one Stock per match.
func Search(field, value string, mode MatchMode, bronze *lakehouse.BronzeStorage, gold *lakehouse.GoldStorage) ([]*Stock, error) {
	snap, err := loadLatestListedInfo(bronze, nil)
	if err != nil {
		return nil, err
	}
	if len(snap.rows) == 0 {
		return nil, nil
	}
	if _, ok := snap.rows[0][field]; !ok {
		return nil, fmt.Errorf("stock: field %q not found in listed info columns", field)
	}

	var results []*Stock
	lowerValue := strings.ToLower(value)
	for _, row := range snap.rows {
		raw, ok := row[field]
		if !ok {
			continue
		}
		str := fmt.Sprintf("%v", raw)

		var match bool
		switch mode {
		case MatchExact:
			match = str == value
		case MatchContains:
			match = strings.Contains(strings.ToLower(str), lowerValue)
		}
		if !match {
			continue
		}

		codeValue, _ := row["Code"].(string)
		if codeValue == "" {
			continue
		}
		results = append(results, newWithListedInfo(codeValue, bronze, gold, row, snap))
	}
	return results, nil
}

// loadLatestListedInfo returns the cached snapshot when it's already
// current, otherwise reads the latest listed_info partition from bronze.
func loadLatestListedInfo(bronze *lakehouse.BronzeStorage, cached *listedInfoSnapshot) (*listedInfoSnapshot, error) {
	dates, err := bronze.ListAvailableDates(listedInfoEndpoint)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return &listedInfoSnapshot{}, nil
	}
	latest := dates[len(dates)-1]

	if cached != nil && cached.date.Equal(latest) {
		return cached, nil
	}

	rows, err := bronze.ReadRawData(listedInfoEndpoint, lakehouse.ReadRawDataOptions{Date: &latest})
	if err != nil {
		return nil, err
	}
	return &listedInfoSnapshot{date: latest, rows: rows}, nil
}

// BaseCode returns the 4-digit base code, without any market suffix.
func (s *Stock) BaseCode() string {
	if len(s.Code) < 4 {
		return s.Code
	}
	return s.Code[:4]
}

// GetListedInfo returns master data for the security from the latest
// Bronze listed_info snapshot, caching it on the Stock after first read.
func (s *Stock) GetListedInfo() (lakehouse.RawRow, error) {
	if s.listedInfo != nil {
		return s.listedInfo, nil
	}

	snap, err := loadLatestListedInfo(s.bronze, s.snapshot)
	if err != nil {
		return nil, err
	}
	s.snapshot = snap
	if len(snap.rows) == 0 {
		return nil, fmt.Errorf("stock: no listed info data available in bronze storage")
	}

	for _, row := range snap.rows {
		if code, _ := row["Code"].(string); code == s.Code {
			s.listedInfo = row
			return row, nil
		}
	}
	return nil, fmt.Errorf("stock: no listed info found for code %s", s.Code)
}

func (s *Stock) listedInfoField(field string) string {
	info, err := s.GetListedInfo()
	if err != nil {
		return ""
	}
	v, ok := info[field]
	if !ok || v == nil {
		return ""
	}
	str, _ := v.(string)
	return str
}

// CompanyName returns the listed_info CompanyName, or "" if unavailable.
func (s *Stock) CompanyName() string { return s.listedInfoField("CompanyName") }

// CompanyNameEnglish returns the listed_info CompanyNameEnglish.
func (s *Stock) CompanyNameEnglish() string { return s.listedInfoField("CompanyNameEnglish") }

// Sector17Code returns the listed_info Sector17Code.
func (s *Stock) Sector17Code() string { return s.listedInfoField("Sector17Code") }

// Sector33Code returns the listed_info Sector33Code.
func (s *Stock) Sector33Code() string { return s.listedInfoField("Sector33Code") }

// MarketCode returns the listed_info MarketCode.
func (s *Stock) MarketCode() string { return s.listedInfoField("MarketCode") }

// AdjustMode selects how GetPriceHistory applies adjustment_factor to
// the open/high/low/close columns.
type AdjustMode string

const (
	// AdjustNone leaves open/high/low/close/volume/turnover_value untouched.
	AdjustNone AdjustMode = "none"
	// AdjustAdd adds adj_open/adj_high/adj_low/adj_close columns alongside
	// the originals.
	AdjustAdd AdjustMode = "add"
	// AdjustReplace overwrites open/high/low/close in place.
	AdjustReplace AdjustMode = "replace"
)

// adjustableColumns are the OHLC columns adjustment_factor applies to.
var adjustableColumns = []string{"open", "high", "low", "close"}

// PriceHistoryOptions configures GetPriceHistory's adjustment and
// column-projection behavior. The zero value is not valid; use
// DefaultPriceHistoryOptions.
type PriceHistoryOptions struct {
	// Columns restricts the returned rows to this set, always including
	// date and code regardless of whether they're listed. Requesting an
	// unknown column is an error. Nil means every column.
	Columns []string
	// Adjust selects whether and how adjustment_factor is applied to
	// open/high/low/close.
	Adjust AdjustMode
	// AdjustVolume divides volume by adjustment_factor when Adjust != AdjustNone.
	AdjustVolume bool
	// AdjustTurnover multiplies turnover_value by adjustment_factor when
	// Adjust != AdjustNone.
	AdjustTurnover bool
}

// DefaultPriceHistoryOptions returns the options GetPriceHistory uses
// when called with no adjustment: no adjustment applied, every column
// returned.
func DefaultPriceHistoryOptions() PriceHistoryOptions {
	return PriceHistoryOptions{Adjust: AdjustNone, AdjustVolume: true}
}

// PriceRow is one row of adjusted/projected price history: a flat
// column map rather than lakehouse.DailyPriceRow's fixed struct, since
// AdjustAdd appends columns and Columns can drop them.
type PriceRow map[string]any

// GetPriceHistory fetches price history for the stock from the gold
// layer, optionally bounded by [start,end], applying opts.Adjust's
// price adjustment and finally opts.Columns's projection.
func (s *Stock) GetPriceHistory(start, end *time.Time, opts PriceHistoryOptions) ([]PriceRow, error) {
	rows, err := s.gold.ReadStockPrices(s.Code, start, end)
	if err != nil {
		return nil, err
	}

	out := make([]PriceRow, len(rows))
	for i, r := range rows {
		row := PriceRow{
			"date":   r.Date,
			"code":   r.Code,
			"open":   r.Open,
			"high":   r.High,
			"low":    r.Low,
			"close":  r.Close,
			"volume": r.Volume,
		}
		if r.TurnoverValue != nil {
			row["turnover_value"] = *r.TurnoverValue
		}
		if r.AdjustmentFactor != nil {
			row["adjustment_factor"] = *r.AdjustmentFactor
		}
		applyAdjustment(row, opts)
		out[i] = row
	}

	if opts.Columns != nil {
		return projectColumns(out, opts.Columns)
	}
	return out, nil
}

// applyAdjustment multiplies open/high/low/close by adjustment_factor
// in place, per opts.Adjust, and scales volume/turnover_value
// alongside them. It is a no-op when adjustment_factor is absent from
// row or opts.Adjust is AdjustNone.
func applyAdjustment(row PriceRow, opts PriceHistoryOptions) {
	if opts.Adjust == AdjustNone {
		return
	}
	rawFactor, ok := row["adjustment_factor"]
	if !ok {
		return
	}
	factor := rawFactor.(float64)

	for _, col := range adjustableColumns {
		v, ok := row[col].(float64)
		if !ok {
			continue
		}
		adjusted := v * factor
		if opts.Adjust == AdjustAdd {
			row["adj_"+col] = adjusted
		} else {
			row[col] = adjusted
		}
	}

	if opts.AdjustVolume {
		volumeFactor := factor
		if volumeFactor == 0 {
			volumeFactor = 1
		}
		switch v := row["volume"].(type) {
		case int64:
			row["volume"] = float64(v) / volumeFactor
		case float64:
			row["volume"] = v / volumeFactor
		}
	}

	if opts.AdjustTurnover {
		if v, ok := row["turnover_value"].(float64); ok {
			row["turnover_value"] = v * factor
		}
	}
}

// projectColumns restricts every row to columns, always keeping date
// and code. Requesting a column absent from the row set is an error.
func projectColumns(rows []PriceRow, columns []string) ([]PriceRow, error) {
	wanted := make([]string, 0, len(columns)+2)
	seen := make(map[string]bool, len(columns)+2)
	for _, must := range [...]string{"date", "code"} {
		wanted = append(wanted, must)
		seen[must] = true
	}
	available := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			available[k] = true
		}
	}
	for _, c := range columns {
		if seen[c] {
			continue
		}
		if len(rows) > 0 && !available[c] {
			return nil, fmt.Errorf("stock: unknown column %q requested", c)
		}
		wanted = append(wanted, c)
		seen[c] = true
	}

	out := make([]PriceRow, len(rows))
	for i, row := range rows {
		projected := make(PriceRow, len(wanted))
		for _, c := range wanted {
			if v, ok := row[c]; ok {
				projected[c] = v
			}
		}
		out[i] = projected
	}
	return out, nil
}

// AdjustmentEvents returns the Gold rows for this stock whose
// adjustment_factor departs from 1.0 by more than tolerance: the
// dates a split, consolidation, or dividend actually changed the
// factor, as opposed to every date simply carrying one forward.
func (s *Stock) AdjustmentEvents(start, end *time.Time, tolerance float64) ([]lakehouse.DailyPriceRow, error) {
	rows, err := s.gold.ReadStockPrices(s.Code, start, end)
	if err != nil {
		return nil, err
	}
	events := rows[:0]
	for _, r := range rows {
		if r.AdjustmentFactor == nil {
			continue
		}
		if math.Abs(*r.AdjustmentFactor-1.0) > tolerance {
			events = append(events, r)
		}
	}
	return events, nil
}

// PriceRecord is a single row returned from GetLatestPrice.
type PriceRecord = lakehouse.DailyPriceRow

// GetLatestPrice returns the most recent unadjusted price record by
// date, or found=false if no price history exists for this stock.
func (s *Stock) GetLatestPrice() (*PriceRecord, bool, error) {
	history, err := s.gold.ReadStockPrices(s.Code, nil, nil)
	if err != nil {
		return nil, false, err
	}
	if len(history) == 0 {
		return nil, false, nil
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Date < history[j].Date })
	last := history[len(history)-1]
	return &last, true, nil
}

func (s *Stock) String() string {
	name := s.CompanyName()
	market := s.MarketCode()
	var info []string
	if name != "" {
		info = append(info, name)
	}
	if market != "" {
		info = append(info, market)
	}
	if len(info) == 0 {
		return fmt.Sprintf("Stock(code=%q)", s.Code)
	}
	return fmt.Sprintf("Stock(code=%q (%s))", s.Code, strings.Join(info, ", "))
}

// resolveCode implements the 4-digit-to-5-digit code resolution
// algorithm: a 5-digit code passes through; a 4-digit code is matched
// exactly against the listed_info snapshot, then by prefix against it,
// then by prefix against the set of Gold stock codes, finally falling
// back to code+"0" when nothing matches. Among multiple prefix
// candidates, one ending in "0" is preferred; otherwise the
// lexicographically smallest wins.
func resolveCode(code string, bronze *lakehouse.BronzeStorage, gold *lakehouse.GoldStorage, cached *listedInfoSnapshot) (string, error) {
	cleaned := strings.TrimSpace(code)
	if !isDigits(cleaned) {
		return "", fmt.Errorf("stock: code must be numeric: %q", code)
	}
	if len(cleaned) == 5 {
		return cleaned, nil
	}
	if len(cleaned) != 4 {
		return "", fmt.Errorf("stock: code must be 4 or 5 digits")
	}

	var candidates []string

	snap, err := loadLatestListedInfo(bronze, cached)
	if err == nil && len(snap.rows) > 0 {
		for _, row := range snap.rows {
			rowCode, _ := row["Code"].(string)
			if rowCode == cleaned {
				return cleaned, nil
			}
			if strings.HasPrefix(rowCode, cleaned) {
				candidates = append(candidates, rowCode)
			}
		}
	} else {
		log.WithComponent("stock").Warn().Str("code", cleaned).Msg("listed info unavailable during code resolution")
	}

	if len(candidates) == 0 {
		stocks, err := gold.ListAvailableStocks()
		if err == nil {
			for _, c := range stocks {
				if strings.HasPrefix(c, cleaned) {
					candidates = append(candidates, c)
				}
			}
		}
	}

	if len(candidates) == 0 {
		return cleaned + "0", nil
	}

	unique := dedupeSorted(candidates)
	for _, c := range unique {
		if strings.HasSuffix(c, "0") {
			return c, nil
		}
	}
	return unique[0], nil
}

func dedupeSorted(values []string) []string {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.Atoi(s)
	return err == nil
}
