// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Price source identifiers
const (
	PriceSourceChart  = "chart"
	PriceSourceNative = "native"
)

// Config holds application configuration
type Config struct {
	DataDir        string `env:"BEAM_DATA_DIR" envDefault:"./data"` // Always absolute after Load
	Port           int    `env:"BEAM_PORT" envDefault:"8001"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	DevMode        bool   `env:"DEV_MODE" envDefault:"false"`
	TargetCurrency string `env:"BEAM_TARGET_CURRENCY" envDefault:"EUR"`
	PriceSource    string `env:"BEAM_PRICE_SOURCE" envDefault:"chart"`
	FXFallback     bool   `env:"BEAM_FX_FALLBACK" envDefault:"true"` // exchangerate-api.com for pairs Yahoo lacks
	FetchWorkers   int    `env:"BEAM_FETCH_WORKERS" envDefault:"5"`
	PortfolioURL   string `env:"BEAM_PORTFOLIO_URL" envDefault:""`
	PortfolioFile  string `env:"BEAM_PORTFOLIO_FILE" envDefault:""`

	Schedules Schedules
	Backup    BackupConfig
}

// Schedules holds cron expressions for background jobs. Empty disables a job.
type Schedules struct {
	Cleanup     string `env:"BEAM_CLEANUP_SCHEDULE" envDefault:"0 3 * * *"`
	Refresh     string `env:"BEAM_REFRESH_SCHEDULE" envDefault:"30 18 * * 1-5"`
	Backup      string `env:"BEAM_BACKUP_SCHEDULE" envDefault:""`
	Maintenance string `env:"BEAM_MAINTENANCE_SCHEDULE" envDefault:"0 4 * * 0"`
	WALCheck    string `env:"BEAM_WAL_CHECK_SCHEDULE" envDefault:"@hourly"`
}

// BackupConfig holds S3-compatible storage settings for database backups
type BackupConfig struct {
	Bucket        string `env:"BEAM_S3_BUCKET" envDefault:""`
	Endpoint      string `env:"BEAM_S3_ENDPOINT" envDefault:""`
	Region        string `env:"BEAM_S3_REGION" envDefault:"auto"`
	AccessKey     string `env:"BEAM_S3_ACCESS_KEY" envDefault:""`
	SecretKey     string `env:"BEAM_S3_SECRET_KEY" envDefault:""`
	Prefix        string `env:"BEAM_S3_PREFIX" envDefault:"beam-backups/"`
	RetentionDays int    `env:"BEAM_S3_RETENTION_DAYS" envDefault:"30"` // 0 keeps every backup
}

// Enabled reports whether enough settings are present to upload backups.
func (b BackupConfig) Enabled() bool {
	return b.Bucket != "" && b.AccessKey != "" && b.SecretKey != ""
}

// Load reads configuration from the environment (and a .env file if present)
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg.DataDir = absDataDir

	cfg.TargetCurrency = strings.ToUpper(strings.TrimSpace(cfg.TargetCurrency))
	cfg.PriceSource = strings.ToLower(strings.TrimSpace(cfg.PriceSource))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present and sane
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("BEAM_DATA_DIR must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("BEAM_PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.FetchWorkers <= 0 {
		return fmt.Errorf("BEAM_FETCH_WORKERS must be positive, got %d", c.FetchWorkers)
	}
	if len(c.TargetCurrency) != 3 {
		return fmt.Errorf("BEAM_TARGET_CURRENCY must be a 3-letter code, got %q", c.TargetCurrency)
	}
	switch c.PriceSource {
	case PriceSourceChart, PriceSourceNative:
	default:
		return fmt.Errorf("BEAM_PRICE_SOURCE must be %q or %q, got %q", PriceSourceChart, PriceSourceNative, c.PriceSource)
	}
	if c.Schedules.Backup != "" && !c.Backup.Enabled() {
		return fmt.Errorf("BEAM_BACKUP_SCHEDULE is set but S3 bucket or credentials are missing")
	}
	return nil
}
