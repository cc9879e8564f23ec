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
	date       string // YYYY-MM-DD, empty = today
}

func main() {
	if err := run(); err != nil {
		slog.Error("Ingest failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := parseFlags()

	slog.Info("Loading config", "path", cfg.configPath)
	appConfig, err := pkgconfig.Load(cfg.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.SetupLogger(&appConfig.Logging, "ingest")
	logger.Info("Logging initialized", "service", "ingest", "league", appConfig.Ingest.League)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	orch, cleanup, err := ingest.Build(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var summary *ingest.RunSummary
	if cfg.date == "" {
		summary, err = orch.Daily(ctx)
	} else {
		var date time.Time
		date, err = time.Parse("2006-01-02", cfg.date)
		if err != nil {
			return fmt.Errorf("invalid -date %q: %w", cfg.date, err)
		}
		summary, err = orch.RunDate(ctx, date)
	}
	if err != nil {
		return err
	}
	if summary.Partial {
		return fmt.Errorf("run %s finished partial: %d of %d units failed",
			summary.RunID, summary.UnitsFailed, summary.UnitsPlanned)
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
	flag.StringVar(&cfg.date, "date", "", "Date to ingest as YYYY-MM-DD (default: today, UTC)")
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
