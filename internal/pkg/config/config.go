package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Ingest    IngestConfig              `yaml:"ingest"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Registry  RegistryConfig            `yaml:"registry"`
	Postgres  PostgresConfig            `yaml:"postgres"`
	Redis     RedisConfig               `yaml:"redis"`
	Logging   LoggingConfig             `yaml:"logging"`
}

type IngestConfig struct {
	DataDir string `yaml:"data_dir"` // root for bronze/runs/checkpoints
	League  string `yaml:"league"`   // e.g. "basketball_nba"
	Workers int    `yaml:"workers"`  // per-provider worker pool size

	// Snapshot offsets relative to each event's commence time. Negative
	// offsets are before tip-off; the resulting plan is sorted and
	// deterministic.
	SnapshotOffsets []time.Duration `yaml:"snapshot_offsets"`
}

type ProviderConfig struct {
	BaseURL   string            `yaml:"base_url"`
	APIKey    string            `yaml:"api_key"`
	UserAgent string            `yaml:"user_agent"`
	Headers   map[string]string `yaml:"headers"`
	Timeout   time.Duration     `yaml:"timeout"`

	// Token bucket: sustained rate plus burst headroom.
	RatePerMinute int `yaml:"rate_per_minute"`
	Burst         int `yaml:"burst"`

	// Retry/backoff for 429s and 5xx-class failures.
	MaxAttempts    int           `yaml:"max_attempts"`
	BackoffInitial time.Duration `yaml:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max"`

	// Circuit breaker: trip after N consecutive counted failures, fail fast
	// for the cooldown, then probe with a single call.
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`

	// Odds provider knobs.
	Markets    []string `yaml:"markets"`
	Regions    string   `yaml:"regions"`
	OddsFormat string   `yaml:"odds_format"`
}

type RegistryConfig struct {
	// StartTimeTolerance is how far a provider's start time may drift from a
	// known event's and still structurally match (providers revise tip-off
	// by minutes).
	StartTimeTolerance time.Duration `yaml:"start_time_tolerance"`
	FuzzyThreshold     float64       `yaml:"fuzzy_threshold"`
	TrustedThreshold   float64       `yaml:"trusted_threshold"`
	AmbiguityMargin    float64       `yaml:"ambiguity_margin"`
	OverridesPath      string        `yaml:"overrides_path"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// API keys and DSNs come from the environment, not the file.
	expanded := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expanded, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.ApplyDefaults()

	return &config, nil
}

// ApplyDefaults fills every zero-valued policy knob. Thresholds and tolerance
// windows are deliberately plain configuration, not derived values.
func (c *Config) ApplyDefaults() {
	if c.Ingest.DataDir == "" {
		c.Ingest.DataDir = "data"
	}
	if c.Ingest.League == "" {
		c.Ingest.League = "basketball_nba"
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 4
	}
	if len(c.Ingest.SnapshotOffsets) == 0 {
		c.Ingest.SnapshotOffsets = []time.Duration{
			-24 * time.Hour,
			-6 * time.Hour,
			-1 * time.Hour,
			-5 * time.Minute,
		}
	}
	for name, p := range c.Providers {
		if p.Timeout <= 0 {
			p.Timeout = 10 * time.Second
		}
		if p.RatePerMinute <= 0 {
			p.RatePerMinute = 60
		}
		if p.Burst <= 0 {
			p.Burst = 1
		}
		if p.MaxAttempts <= 0 {
			p.MaxAttempts = 4
		}
		if p.BackoffInitial <= 0 {
			p.BackoffInitial = 500 * time.Millisecond
		}
		if p.BackoffMax <= 0 {
			p.BackoffMax = 30 * time.Second
		}
		if p.BreakerThreshold <= 0 {
			p.BreakerThreshold = 10
		}
		if p.BreakerCooldown <= 0 {
			p.BreakerCooldown = time.Minute
		}
		if len(p.Markets) == 0 {
			p.Markets = []string{"h2h"}
		}
		if p.Regions == "" {
			p.Regions = "us"
		}
		if p.OddsFormat == "" {
			p.OddsFormat = "decimal"
		}
		c.Providers[name] = p
	}
	if c.Registry.StartTimeTolerance <= 0 {
		c.Registry.StartTimeTolerance = 15 * time.Minute
	}
	if c.Registry.FuzzyThreshold <= 0 {
		c.Registry.FuzzyThreshold = 0.80
	}
	if c.Registry.TrustedThreshold <= 0 {
		c.Registry.TrustedThreshold = 0.90
	}
	if c.Registry.AmbiguityMargin <= 0 {
		c.Registry.AmbiguityMargin = 0.05
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
