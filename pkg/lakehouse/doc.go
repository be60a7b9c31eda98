/*
Package lakehouse implements the three-tier medallion storage for
Japanese equity market data: Bronze (raw API responses), Silver
(normalized and validated prices), and Gold (per-stock merged history).

# Architecture

	┌───────────────────────── MEDALLION PIPELINE ─────────────────────────┐
	│                                                                        │
	│  ┌──────────────┐   normalize    ┌──────────────┐   transform         │
	│  │   BRONZE     │ ─────────────▶ │   SILVER     │ ─────────────▶      │
	│  │ raw JSON rows│                │ validated,   │   ┌──────────────┐  │
	│  │ partitioned  │                │ typed rows   │   │    GOLD      │  │
	│  │ endpoint/    │                │ partitioned  │──▶│ per-stock,   │  │
	│  │  date/       │                │ table/date/  │   │ merged,      │  │
	│  │   data.parquet│                │  data.parquet│   │ deduplicated │  │
	│  └──────────────┘                └──────────────┘   └──────────────┘  │
	│                                                                        │
	│  Each tier sits on a pkg/blob.Storage, which may be backed by a       │
	│  local FilesystemBackend or an S3/MinIO ObjectBackend, resolved       │
	│  through pkg/registry.                                                │
	└────────────────────────────────────────────────────────────────────────┘

# Bronze

BronzeStorage.StoreRawResponse writes one Parquet file per (endpoint,
date) partition. Rows are dynamically shaped, so each row's non-meta
fields are JSON-encoded into a single "data" column alongside
_endpoint/_partition_date/_ingested_at/_metadata columns. Writes are
idempotent by key: writing the same partition twice overwrites it.

# Silver

SilverStorage.NormalizeDailyQuotes reads a Bronze partition, projects it
onto the fixed DailyPriceRow schema, drops rows missing a required
field, fills adj_close when the upstream omitted it, and validates the
result (positive close, consistent OHLC) before writing. With force
false and the target partition already present, normalization is
skipped entirely — Bronze is never re-read.

# Gold

GoldStorage.TransformDailyPrices merges Silver rows into per-stock Gold
files. Each merge reads the existing file (if any), concatenates it
with the new rows, keeps one row per date (the existing row, or the new
row when force is set), and writes the result
through a .tmp staging key so readers never observe a partially written
file.
*/
package lakehouse
