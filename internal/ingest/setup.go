package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linelogic/linelogic/internal/provider"
	"github.com/linelogic/linelogic/internal/provider/balldontlie"
	"github.com/linelogic/linelogic/internal/provider/oddsapi"

	"github.com/linelogic/linelogic/internal/pkg/config"
	"github.com/linelogic/linelogic/internal/pkg/rawstore"
	"github.com/linelogic/linelogic/internal/pkg/registry"
	"github.com/linelogic/linelogic/internal/pkg/snapshotstore"
)

// Build wires a complete pipeline from config: Postgres-backed stores when a
// DSN is configured, in-memory otherwise; the latest-quote cache only when a
// Redis address is set. The returned cleanup closes every store.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Orchestrator, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("Failed to close store", "error", err)
			}
		}
	}

	var regStore registry.Store
	var snapStore snapshotstore.Store
	if cfg.Postgres.DSN != "" {
		pgReg, err := registry.NewPostgresStore(&cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open registry store: %w", err)
		}
		closers = append(closers, pgReg.Close)

		pgSnap, err := snapshotstore.NewPostgresStore(&cfg.Postgres)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to open snapshot store: %w", err)
		}
		closers = append(closers, pgSnap.Close)
		regStore, snapStore = pgReg, pgSnap
	} else {
		logger.Warn("No Postgres DSN configured, using in-memory stores")
		regStore = registry.NewMemoryStore()
		snapStore = snapshotstore.NewMemoryStore()
	}

	reg := registry.New(regStore, cfg.Registry, logger)
	if cfg.Registry.OverridesPath != "" {
		if err := reg.ReloadOverrides(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to load overrides: %w", err)
		}
	}

	var cache *snapshotstore.LatestCache
	if cfg.Redis.Addr != "" {
		var err error
		cache, err = snapshotstore.NewLatestCache(&cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to open latest-quote cache: %w", err)
		}
		closers = append(closers, cache.Close)
	}

	scheduleCfg, ok := cfg.Providers[balldontlie.ProviderName]
	if !ok {
		cleanup()
		return nil, nil, fmt.Errorf("missing provider config for %q", balldontlie.ProviderName)
	}
	oddsCfg, ok := cfg.Providers[oddsapi.ProviderName]
	if !ok {
		cleanup()
		return nil, nil, fmt.Errorf("missing provider config for %q", oddsapi.ProviderName)
	}

	orch := NewOrchestrator(
		cfg,
		logger,
		reg,
		rawstore.New(cfg.Ingest.DataDir, cfg.Ingest.League),
		snapStore,
		cache,
		NewFileCheckpointStore(cfg.Ingest.DataDir),
		balldontlie.New(scheduleCfg, logger),
		[]provider.OddsSource{oddsapi.New(oddsCfg, logger)},
	)
	return orch, cleanup, nil
}
