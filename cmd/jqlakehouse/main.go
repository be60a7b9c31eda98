// Command jqlakehouse drives Bronze ingestion, Silver normalization, and
// Gold transformation over a configured blob backend registry. It is a
// one-shot CLI: each invocation runs one operation and exits; scheduling
// repeated runs is left to an external scheduler (cron, Airflow, ...).
package main

import (
	"fmt"
	"os"

	"github.com/jqsys/jqlakehouse/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "jqlakehouse",
	Short: "Medallion-architecture lakehouse for Japanese equity market data",
	Long: `jqlakehouse ingests raw J-Quants API responses into a Bronze tier,
normalizes and validates them into a Silver tier, and merges per-stock
history into a Gold tier, all over a pluggable blob backend registry.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "jqlakehouse.yaml", "Path to backend registry configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("bronze-backend", "bronze", "Registry backend name for the Bronze tier")
	rootCmd.PersistentFlags().String("silver-backend", "silver", "Registry backend name for the Silver tier")
	rootCmd.PersistentFlags().String("gold-backend", "gold", "Registry backend name for the Gold tier")
	rootCmd.PersistentFlags().String("stats-db", "", "Optional bbolt file caching Gold row counts across runs")
	rootCmd.PersistentFlags().String("health-addr", "", "Optional address (e.g. :8081) to serve /healthz, /readyz, /livez on while the command runs")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(statsCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
