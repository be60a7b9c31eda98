package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jqsys/jqlakehouse/pkg/ingest"
	"github.com/jqsys/jqlakehouse/pkg/lakehouse"
)

// jsonPaginator implements ingest.Paginator against a generic paginated
// JSON endpoint: each page is a JSON object with the row array under
// dataKey and, while more pages remain, a "pagination_key" string that
// must be echoed back as a query parameter on the next request. This
// mirrors the J-Quants API's own pagination contract without binding to
// any endpoint-specific schema or auth flow.
type jsonPaginator struct {
	baseURL string
	token   string
	client  *http.Client
}

func newJSONPaginator(baseURL, token string) *jsonPaginator {
	return &jsonPaginator{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *jsonPaginator) GetPaginated(ctx context.Context, path, dataKey string, params ingest.Params) ([]lakehouse.RawRow, error) {
	query := make(url.Values, len(params))
	for k, v := range params {
		query.Set(k, v)
	}

	var rows []lakehouse.RawRow
	for {
		payload, err := p.getPage(ctx, path, query)
		if err != nil {
			return nil, err
		}

		if raw, ok := payload[dataKey]; ok {
			decoded, err := decodeRows(raw)
			if err != nil {
				return nil, fmt.Errorf("jsonPaginator: decoding %q: %w", dataKey, err)
			}
			rows = append(rows, decoded...)
		}

		next, ok := payload["pagination_key"].(string)
		if !ok || next == "" {
			return rows, nil
		}
		query.Set("pagination_key", next)
	}
}

func (p *jsonPaginator) getPage(ctx context.Context, path string, query url.Values) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = query.Encode()
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("jsonPaginator: %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("jsonPaginator: decoding response: %w", err)
	}
	return payload, nil
}

func decodeRows(raw any) ([]lakehouse.RawRow, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array, got %T", raw)
	}
	rows := make([]lakehouse.RawRow, 0, len(items))
	for _, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected an object row, got %T", item)
		}
		rows = append(rows, lakehouse.RawRow(row))
	}
	return rows, nil
}
