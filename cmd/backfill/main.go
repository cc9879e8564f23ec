package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linelogic/linelogic/internal/ingest"

	pkgconfig "github.com/linelogic/linelogic/internal/pkg/config"
	"github.com/linelogic/linelogic/internal/pkg/logging"
)

const defaultConfigPath = "configs/production.yaml"

type cliConfig struct {
	configPath string
	from       string
	to         string
}

func main() {
	if err := run(); err != nil {
		slog.Error("Backfill failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := parseFlags()
	if cfg.from == "" || cfg.to == "" {
		return fmt.Errorf("both -from and -to are required as YYYY-MM-DD")
	}
	from, err := time.Parse("2006-01-02", cfg.from)
	if err != nil {
		return fmt.Errorf("invalid -from %q: %w", cfg.from, err)
	}
	to, err := time.Parse("2006-01-02", cfg.to)
	if err != nil {
		return fmt.Errorf("invalid -to %q: %w", cfg.to, err)
	}

	slog.Info("Loading config", "path", cfg.configPath)
	appConfig, err := pkgconfig.Load(cfg.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.SetupLogger(&appConfig.Logging, "backfill")
	logger.Info("Logging initialized",
		"service", "backfill", "league", appConfig.Ingest.League,
		"from", cfg.from, "to", cfg.to)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	orch, cleanup, err := ingest.Build(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	summaries, err := orch.Backfill(ctx, from, to)

	var partial int
	for _, s := range summaries {
		if s.Partial {
			partial++
		}
	}
	logger.Info("Backfill finished",
		"dates", len(summaries), "partial_dates", partial)

	if err != nil {
		return err
	}
	if partial > 0 {
		return fmt.Errorf("backfill finished with %d partial dates, re-run to resume", partial)
	}
	return nil
}

func parseFlags() cliConfig {
	var cfg cliConfig
	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = defaultConfigPath
	}
	flag.StringVar(&cfg.configPath, "config", defaultConfig, "Path to config file")
	flag.StringVar(&cfg.from, "from", "", "First date to backfill (YYYY-MM-DD)")
	flag.StringVar(&cfg.to, "to", "", "Last date to backfill (YYYY-MM-DD)")
	flag.Parse()
	return cfg
}

func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received shutdown signal", "signal", sig)
		cancel()
	}()
}
