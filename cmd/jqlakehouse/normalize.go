package main

import (
	"fmt"

	"github.com/jqsys/jqlakehouse/pkg/log"
	"github.com/spf13/cobra"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize Bronze partitions into Silver for a date range",
	Long: `Drive Silver normalization over [--from,--to]. A date already
normalized is skipped unless --force is set.`,
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().String("table", "daily_prices", "Silver table to normalize (only daily_prices is implemented)")
	normalizeCmd.Flags().String("from", "", "Start date, YYYYMMDD (required)")
	normalizeCmd.Flags().String("to", "", "End date, YYYYMMDD (required)")
	normalizeCmd.Flags().Bool("force", false, "Re-normalize dates already present in Silver")

	for _, name := range []string{"from", "to"} {
		normalizeCmd.MarkFlagRequired(name)
	}
}

func runNormalize(cmd *cobra.Command, args []string) error {
	t, err := buildTiers(cmd)
	if err != nil {
		return err
	}
	defer t.Close()

	table, _ := cmd.Flags().GetString("table")
	force, _ := cmd.Flags().GetBool("force")
	fromStr, toStr, err := parseDateFlags(cmd)
	if err != nil {
		return err
	}
	from, to, err := parseDateRange(fromStr, toStr)
	if err != nil {
		return err
	}
	if table != "daily_prices" {
		return fmt.Errorf("unsupported --table %q: only daily_prices is implemented", table)
	}

	logger := log.WithComponent("cmd")
	var normalized, skipped, failed int
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		key, err := t.silver.NormalizeDailyQuotes(d, force)
		if err != nil {
			logger.Error().Err(err).Str("date", d.Format("2006-01-02")).Msg("normalize failed, continuing")
			failed++
			continue
		}
		if key == "" {
			skipped++
			continue
		}
		normalized++
	}

	fmt.Printf("normalized=%d skipped=%d failed=%d\n", normalized, skipped, failed)
	return nil
}
