package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jqsys/jqlakehouse/pkg/ingest"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest Bronze partitions for a date range",
	Long: `Drive pkg/ingest for one endpoint over [--from,--to], skipping dates
already present in Bronze unless --force is set.

This build ships no concrete J-Quants HTTP client (see pkg/ingest's
package doc): --fetcher-url points at a generic paginated JSON endpoint
whose pages hold the row array under --data-key and, while more pages
remain, a "pagination_key" string echoed back as the next request's
query parameter — the J-Quants API's own pagination contract, without
binding to its auth flow or response schema.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("endpoint", "", "Bronze endpoint name (required)")
	ingestCmd.Flags().String("path", "", "Upstream API path to fetch (required)")
	ingestCmd.Flags().String("data-key", "", "JSON key holding the row array in each page (required)")
	ingestCmd.Flags().String("from", "", "Start date, YYYYMMDD (required)")
	ingestCmd.Flags().String("to", "", "End date, YYYYMMDD (required)")
	ingestCmd.Flags().Bool("force", false, "Re-ingest dates already present in Bronze")
	ingestCmd.Flags().String("fetcher-url", "", "Base URL of a paginated JSON API implementing ingest.Paginator (required)")
	ingestCmd.Flags().String("fetcher-token", "", "Bearer token sent with each fetch request")
	ingestCmd.Flags().Int("max-retries", 3, "Retry attempts for a failed date fetch")
	ingestCmd.Flags().Duration("retry-delay", 2*time.Second, "Delay between retry attempts")

	for _, name := range []string{"endpoint", "path", "data-key", "from", "to", "fetcher-url"} {
		ingestCmd.MarkFlagRequired(name)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	t, err := buildTiers(cmd)
	if err != nil {
		return err
	}
	defer t.Close()

	endpoint, _ := cmd.Flags().GetString("endpoint")
	path, _ := cmd.Flags().GetString("path")
	dataKey, _ := cmd.Flags().GetString("data-key")
	force, _ := cmd.Flags().GetBool("force")
	fetcherURL, _ := cmd.Flags().GetString("fetcher-url")
	fetcherToken, _ := cmd.Flags().GetString("fetcher-token")
	maxRetries, _ := cmd.Flags().GetInt("max-retries")
	retryDelay, _ := cmd.Flags().GetDuration("retry-delay")

	fromStr, toStr, err := parseDateFlags(cmd)
	if err != nil {
		return err
	}
	from, to, err := parseDateRange(fromStr, toStr)
	if err != nil {
		return err
	}

	orch := &ingest.Orchestrator{
		Bronze:     t.bronze,
		Fetcher:    newJSONPaginator(fetcherURL, fetcherToken),
		Endpoint:   endpoint,
		Path:       path,
		DataKey:    dataKey,
		Force:      force,
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
	}

	result, err := orch.IngestRange(context.Background(), from, to)
	if err != nil {
		return err
	}

	fmt.Printf("requested=%d ingested=%d skipped=%d failed=%d\n",
		result.DatesRequested, result.DatesIngested, result.DatesSkipped, result.DatesFailed)
	return nil
}

func parseDateRange(fromStr, toStr string) (from, to time.Time, err error) {
	from, err = time.Parse("20060102", fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --from %q: %w", fromStr, err)
	}
	to, err = time.Parse("20060102", toStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --to %q: %w", toStr, err)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", toStr, fromStr)
	}
	return from, to, nil
}
