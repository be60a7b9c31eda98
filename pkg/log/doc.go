/*
Package log provides structured logging for jqlakehouse using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Context Loggers                     │          │
	│  │  - WithComponent("bronze"|"silver"|"gold")  │          │
	│  │  - WithEndpoint("daily_quotes")              │          │
	│  │  - WithDate("2024-01-15")                    │          │
	│  │  - WithStockCode("13010")                    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │  {"level":"info","component":"gold",        │          │
	│  │   "stock_code":"13010","time":"...",        │          │
	│  │   "message":"merged stock file"}            │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────────┘

# Usage

Initializing the logger:

	import "github.com/jqsys/jqlakehouse/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("bronze ingest complete")
	log.Warn("silver partition had no rows")
	log.Error("gold transform failed")

Component and domain-scoped loggers compose freely:

	goldLog := log.WithComponent("gold")
	goldLog.Info().Str("stock_code", "13010").Msg("merged stock file")

	dateLog := log.WithDate("2024-01-15").With().Str("component", "silver").Logger()
	dateLog.Info().Int("rows", 412).Msg("normalized daily quotes")

# Log Levels

  - Debug: per-row detail during development, never in production runs.
  - Info: per-partition/per-stock progress (default CLI level).
  - Warn: recoverable anomalies — empty Bronze partition, validation
    warning that doesn't abort (e.g. unusually high close price).
  - Error: an operation failed for one date or one stock but the batch
    continues.
  - Fatal: configuration or registry errors at startup only; exits.

# Integration points

  - pkg/lakehouse: logs bronze/silver/gold operation start, row counts,
    per-date and per-stock failures that are caught and continued.
  - pkg/ingest: logs per-date fetch attempts, skips, and retries.
  - cmd/jqlakehouse: initializes the global logger from CLI flags.
*/
package log
