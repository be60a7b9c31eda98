package main

import (
	"fmt"
	"sort"

	"github.com/jqsys/jqlakehouse/pkg/lakehouse"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print storage statistics for one or all tiers",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().String("layer", "", "Restrict to one tier: bronze, silver, or gold (default: all)")
}

func runStats(cmd *cobra.Command, args []string) error {
	t, err := buildTiers(cmd)
	if err != nil {
		return err
	}
	defer t.Close()

	layer, _ := cmd.Flags().GetString("layer")
	if layer != "" && layer != "bronze" && layer != "silver" && layer != "gold" {
		return fmt.Errorf("unknown --layer %q: must be bronze, silver, or gold", layer)
	}

	if layer == "" || layer == "bronze" {
		stats, err := t.bronze.GetStorageStats()
		if err != nil {
			return fmt.Errorf("bronze stats: %w", err)
		}
		printBronzeStats(stats)
	}

	if layer == "" || layer == "silver" {
		stats, err := t.silver.GetStorageStats("")
		if err != nil {
			return fmt.Errorf("silver stats: %w", err)
		}
		printSilverStats(stats)
	}

	if layer == "" || layer == "gold" {
		stats, err := t.gold.GetStorageStats("")
		if err != nil {
			return fmt.Errorf("gold stats: %w", err)
		}
		printGoldStats(stats)
	}

	return nil
}

func printBronzeStats(stats map[string]lakehouse.EndpointStats) {
	fmt.Println("Bronze:")
	for _, name := range sortedKeys(stats) {
		s := stats[name]
		fmt.Printf("  %-20s dates=%-6d files=%-6d size_mb=%.2f\n", name, s.Dates, s.Files, s.SizeMB)
	}
}

func printSilverStats(stats map[string]lakehouse.TableStats) {
	fmt.Println("Silver:")
	for _, name := range sortedKeys(stats) {
		s := stats[name]
		fmt.Printf("  %-20s dates=%-6d files=%-6d size_mb=%.2f\n", name, s.Dates, s.Files, s.SizeMB)
	}
}

func printGoldStats(stats map[string]lakehouse.StockStats) {
	fmt.Println("Gold:")
	for _, code := range sortedKeys(stats) {
		s := stats[code]
		fmt.Printf("  %-20s records=%-8d size_mb=%.2f\n", code, s.Records, s.SizeMB)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
