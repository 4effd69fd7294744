package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// DatabaseURL enables the optional run ledger when set.
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`

	InputPath            string `envconfig:"RADAR_INPUT" default:"data/latest-24h.json"`
	ArchivePath          string `envconfig:"RADAR_ARCHIVE" default:"data/archive.json"`
	WatchlistConfigPath  string `envconfig:"RADAR_WATCHLISTS" default:"config/watchlists.json"`
	OutputSpecialPath    string `envconfig:"RADAR_OUTPUT_SPECIAL" default:"data/special-focus.json"`
	OutputCompetitorPath string `envconfig:"RADAR_OUTPUT_COMPETITOR" default:"data/competitor-monitor.json"`

	SpecialWindowDays    int `envconfig:"RADAR_SPECIAL_WINDOW_DAYS" default:"3"`
	CompetitorWindowDays int `envconfig:"RADAR_COMPETITOR_WINDOW_DAYS" default:"7"`

	FetchTimeout time.Duration `envconfig:"RADAR_FETCH_TIMEOUT" default:"20s"`
	FetchWorkers int           `envconfig:"RADAR_FETCH_WORKERS" default:"4"`

	DetectLanguage bool `envconfig:"RADAR_DETECT_LANGUAGE" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.ArchivePath) == "" {
		return fmt.Errorf("RADAR_ARCHIVE is required")
	}
	if strings.TrimSpace(c.WatchlistConfigPath) == "" {
		return fmt.Errorf("RADAR_WATCHLISTS is required")
	}
	if c.SpecialWindowDays < 1 {
		return fmt.Errorf("RADAR_SPECIAL_WINDOW_DAYS must be >= 1")
	}
	if c.CompetitorWindowDays < 1 {
		return fmt.Errorf("RADAR_COMPETITOR_WINDOW_DAYS must be >= 1")
	}
	if c.FetchTimeout < time.Second {
		return fmt.Errorf("RADAR_FETCH_TIMEOUT must be >= 1s")
	}
	if c.FetchWorkers < 1 {
		return fmt.Errorf("RADAR_FETCH_WORKERS must be >= 1")
	}
	return nil
}

// LedgerEnabled reports whether run history should be written to Postgres.
func (c *Config) LedgerEnabled() bool {
	return c != nil && strings.TrimSpace(c.DatabaseURL) != ""
}
