/*
Package ingest drives Bronze ingestion from an upstream paginated HTTP
API. The package defines only the Paginator capability interface; no
concrete J-Quants client lives here, so a real implementation can be
substituted without this package changing.

Orchestrator.IngestRange walks a date range, skipping dates already
present in Bronze unless Force is set, and logs-and-continues past a
failed date rather than aborting the whole batch.
*/
package ingest
