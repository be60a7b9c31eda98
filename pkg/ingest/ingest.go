// Package ingest drives Bronze ingestion from a paginated HTTP API
// capability, without depending on any concrete HTTP client.
package ingest

import (
	"context"
	"time"

	"github.com/jqsys/jqlakehouse/pkg/lakehouse"
	"github.com/jqsys/jqlakehouse/pkg/log"
	"github.com/jqsys/jqlakehouse/pkg/metrics"
)

// Params are the query parameters passed to one paginated fetch call.
type Params map[string]string

// Paginator fetches every row across all pages of one API call,
// internally round-tripping whatever opaque pagination key the upstream
// API returns. Concrete implementations live outside this package.
type Paginator interface {
	GetPaginated(ctx context.Context, path, dataKey string, params Params) ([]lakehouse.RawRow, error)
}

// Orchestrator drives endpoint ingestion into Bronze storage for a
// sequence of dates, skipping dates already present unless Force is set.
type Orchestrator struct {
	Bronze   *lakehouse.BronzeStorage
	Fetcher  Paginator
	Endpoint string
	Path     string
	DataKey  string
	Force    bool

	// MaxRetries bounds retry attempts for a single date's fetch on
	// transient failure. Zero means no retries.
	MaxRetries int
	RetryDelay time.Duration
}

// Result summarizes one IngestRange call.
type Result struct {
	DatesRequested int
	DatesSkipped   int
	DatesIngested  int
	DatesFailed    int
}

// IngestRange drives ingestion for every date in [start,end] inclusive.
// A date already present in Bronze is skipped unless Force is set. A
// date whose fetch or store fails is logged and does not halt the rest
// of the batch.
func (o *Orchestrator) IngestRange(ctx context.Context, start, end time.Time) (Result, error) {
	logger := log.WithEndpoint(o.Endpoint)
	var result Result

	available := make(map[string]bool)
	if !o.Force {
		dates, err := o.Bronze.ListAvailableDates(o.Endpoint)
		if err != nil {
			return result, err
		}
		for _, d := range dates {
			available[d.Format(lakehouse.DateLayout)] = true
		}
	}

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		result.DatesRequested++
		dateStr := d.Format(lakehouse.DateLayout)
		dateLogger := logger.With().Str("date", dateStr).Logger()

		if !o.Force && available[dateStr] {
			dateLogger.Debug().Msg("bronze partition already present, skipping")
			result.DatesSkipped++
			continue
		}

		if err := o.ingestOne(ctx, d); err != nil {
			dateLogger.Error().Err(err).Msg("ingest failed for date, continuing")
			result.DatesFailed++
			continue
		}
		result.DatesIngested++
	}

	logger.Info().
		Int("requested", result.DatesRequested).
		Int("skipped", result.DatesSkipped).
		Int("ingested", result.DatesIngested).
		Int("failed", result.DatesFailed).
		Msg("ingest range complete")
	return result, nil
}

func (o *Orchestrator) ingestOne(ctx context.Context, date time.Time) error {
	dateParam := date.Format("20060102")
	logger := log.WithEndpoint(o.Endpoint).With().Str("date", date.Format(lakehouse.DateLayout)).Logger()

	var rows []lakehouse.RawRow
	var err error
	for attempt := 0; ; attempt++ {
		rows, err = o.Fetcher.GetPaginated(ctx, o.Path, o.DataKey, Params{"date": dateParam})
		if err == nil {
			break
		}
		if attempt >= o.MaxRetries {
			metrics.IngestRequestsTotal.WithLabelValues(o.Endpoint, "error").Inc()
			return err
		}
		metrics.IngestRetries.WithLabelValues(o.Endpoint).Inc()
		logger.Warn().Err(err).Int("attempt", attempt+1).Msg("retrying fetch")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.RetryDelay):
		}
	}
	metrics.IngestRequestsTotal.WithLabelValues(o.Endpoint, "ok").Inc()
	if len(rows) == 0 {
		logger.Info().Msg("empty response, skipping store")
		return nil
	}

	metadata := map[string]any{
		"api_call":     o.Path,
		"date_param":   dateParam,
		"record_count": len(rows),
	}
	_, err = o.Bronze.StoreRawResponse(o.Endpoint, rows, date, metadata)
	return err
}
