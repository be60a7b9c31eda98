package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Merge Silver rows into per-stock Gold files for a date range",
	Long: `Drive Gold transformation over [--from,--to] (or every available
Silver date when both are omitted), deduping on (code,date), written
atomically via a .tmp staging key. Without --force, dates already in a
Gold file are kept and only new dates are added; with --force, Silver
rows replace existing rows for the same date.`,
	RunE: runTransform,
}

func init() {
	transformCmd.Flags().String("from", "", "Start date, YYYYMMDD (defaults to earliest available Silver date)")
	transformCmd.Flags().String("to", "", "End date, YYYYMMDD (defaults to latest available Silver date)")
	transformCmd.Flags().Bool("force", false, "Rewrite Gold files even when merge would not add rows")
}

func runTransform(cmd *cobra.Command, args []string) error {
	t, err := buildTiers(cmd)
	if err != nil {
		return err
	}
	defer t.Close()

	force, _ := cmd.Flags().GetBool("force")
	fromStr, toStr, err := parseDateFlags(cmd)
	if err != nil {
		return err
	}

	var from, to *time.Time
	if fromStr != "" && toStr != "" {
		f, tt, err := parseDateRange(fromStr, toStr)
		if err != nil {
			return err
		}
		from, to = &f, &tt
	} else if fromStr != "" || toStr != "" {
		return fmt.Errorf("--from and --to must be given together, or both omitted")
	}

	result, err := t.gold.TransformDailyPrices(from, to, force)
	if err != nil {
		return err
	}

	fmt.Printf("dates_processed=%d stocks_updated=%d records_written=%d\n",
		result.DatesProcessed, result.StocksUpdated, result.RecordsWritten)
	return nil
}
