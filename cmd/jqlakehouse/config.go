package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jqsys/jqlakehouse/pkg/lakehouse"
	"github.com/jqsys/jqlakehouse/pkg/log"
	"github.com/jqsys/jqlakehouse/pkg/metrics"
	"github.com/jqsys/jqlakehouse/pkg/registry"
	"github.com/spf13/cobra"
)

// tiers is the set of medallion storages a subcommand needs, wired from
// one registry configuration file.
type tiers struct {
	bronze *lakehouse.BronzeStorage
	silver *lakehouse.SilverStorage
	gold   *lakehouse.GoldStorage
	stats  *lakehouse.StatsCache

	healthServer *http.Server
}

func (t *tiers) Close() error {
	if t.healthServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.healthServer.Shutdown(ctx); err != nil {
			log.WithComponent("health").Warn().Err(err).Msg("health server shutdown")
		}
	}
	if t.stats != nil {
		return t.stats.Close()
	}
	return nil
}

// startHealthServer serves /healthz, /readyz, and /livez on addr for the
// lifetime of the run, reflecting the component health RegisterComponent
// calls in buildTiers recorded. A long-running job wrapper (Kubernetes
// probes, an external scheduler) can poll these while one invocation of
// this one-shot CLI is in flight. Returns nil when addr is empty.
func startHealthServer(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", metrics.HealthHandler())
	mux.HandleFunc("/readyz", metrics.ReadyHandler())
	mux.HandleFunc("/livez", metrics.LivenessHandler())

	srv := &http.Server{Addr: addr, Handler: mux}
	logger := log.WithComponent("health")
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Str("addr", addr).Msg("health server stopped")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving health endpoints")
	return srv
}

// buildTiers loads the registry config named by --config and constructs
// the Bronze/Silver/Gold storages named by --bronze-backend,
// --silver-backend, and --gold-backend, instrumenting each backend with
// metrics.BlobStorageMetrics.
func buildTiers(cmd *cobra.Command) (*tiers, error) {
	configPath, _ := cmd.Flags().GetString("config")
	bronzeName, _ := cmd.Flags().GetString("bronze-backend")
	silverName, _ := cmd.Flags().GetString("silver-backend")
	goldName, _ := cmd.Flags().GetString("gold-backend")
	statsDBPath, _ := cmd.Flags().GetString("stats-db")

	raw, err := registry.LoadConfigFile(configPath)
	if err != nil {
		metrics.RegisterComponent("registry", false, err.Error())
		return nil, err
	}
	reg, err := registry.New(raw)
	if err != nil {
		metrics.RegisterComponent("registry", false, err.Error())
		return nil, err
	}
	metrics.RegisterComponent("registry", true, "")

	bronzeBackend, err := reg.GetBackend(bronzeName)
	if err != nil {
		metrics.RegisterComponent("blob_backend", false, fmt.Sprintf("bronze backend %q: %v", bronzeName, err))
		return nil, err
	}
	silverBackend, err := reg.GetBackend(silverName)
	if err != nil {
		metrics.RegisterComponent("blob_backend", false, fmt.Sprintf("silver backend %q: %v", silverName, err))
		return nil, err
	}
	goldBackend, err := reg.GetBackend(goldName)
	if err != nil {
		metrics.RegisterComponent("blob_backend", false, fmt.Sprintf("gold backend %q: %v", goldName, err))
		return nil, err
	}
	metrics.RegisterComponent("blob_backend", true, "")

	blobMetrics := metrics.BlobStorageMetrics{}
	bronze := lakehouse.NewBronzeStorage(bronzeBackend).WithMetrics(bronzeName, blobMetrics)
	silver := lakehouse.NewSilverStorage(silverBackend, bronze).WithMetrics(silverName, blobMetrics)
	gold := lakehouse.NewGoldStorage(goldBackend, silver).WithMetrics(goldName, blobMetrics)

	t := &tiers{bronze: bronze, silver: silver, gold: gold}

	if healthAddr, _ := cmd.Flags().GetString("health-addr"); healthAddr != "" {
		t.healthServer = startHealthServer(healthAddr)
	}

	if statsDBPath != "" {
		cache, err := lakehouse.OpenStatsCache(statsDBPath)
		if err != nil {
			return nil, err
		}
		t.stats = cache
		gold.WithStatsCache(cache)
	}

	return t, nil
}

func parseDateFlags(cmd *cobra.Command) (from, to string, err error) {
	from, err = cmd.Flags().GetString("from")
	if err != nil {
		return "", "", err
	}
	to, err = cmd.Flags().GetString("to")
	if err != nil {
		return "", "", err
	}
	return from, to, nil
}
