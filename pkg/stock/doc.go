/*
Package stock provides a per-security facade over Bronze listed_info
master data and Gold price history.

A Stock is constructed from a 4- or 5-digit code; 4-digit codes are
resolved to their 5-digit market-suffixed form using the latest
listed_info snapshot, falling back to the set of Gold stock codes, and
finally to appending a trailing "0" when nothing else matches.

	stk, err := stock.New("1301", bronze, gold)
	history, err := stk.GetPriceHistory(nil, nil, stock.DefaultPriceHistoryOptions())
	latest, found, err := stk.GetLatestPrice()

Adjusted prices and a column projection are available through
PriceHistoryOptions:

	adjusted, err := stk.GetPriceHistory(nil, nil, stock.PriceHistoryOptions{
		Adjust:       stock.AdjustReplace,
		AdjustVolume: true,
		Columns:      []string{"date", "close", "volume"},
	})

Search scans the listed_info snapshot by an arbitrary column:

	matches, err := stock.Search("CompanyName", "Toyota", stock.MatchContains, bronze, gold)
*/
package stock
