// Package config provides process configuration for granulesync, loaded from
// environment variables once per run and passed down explicitly.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the complete application configuration loaded from environment variables.
type Config struct {
	Catalog CatalogConfig `envPrefix:"CATALOG_"`
	Retry   RetryConfig   `envPrefix:"RETRY_"`
	Fetch   FetchConfig   `envPrefix:"FETCH_"`
	Logging LoggingConfig `envPrefix:"LOG_"`
}

// CatalogConfig contains catalog API client configuration.
type CatalogConfig struct {
	BaseURL    string        `env:"BASE_URL" envDefault:"https://api.eumetsat.int/data/search-products"`
	Collection string        `env:"COLLECTION" envDefault:"EO:EUM:DAT:MSG:HRSEVIRI"`
	Token      string        `env:"TOKEN"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"30s"`
	PageSize   int           `env:"PAGE_SIZE" envDefault:"500"`
	// RatePerSecond caps page requests against the catalog; zero disables
	// client-side rate limiting.
	RatePerSecond float64 `env:"RATE_PER_SECOND" envDefault:"2"`
}

// RetryConfig contains bounded-backoff retry configuration for transient
// catalog and download failures.
type RetryConfig struct {
	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	InitialBackoff time.Duration `env:"INITIAL_BACKOFF" envDefault:"1s"`
	MaxBackoff     time.Duration `env:"MAX_BACKOFF" envDefault:"60s"`
	Multiplier     float64       `env:"MULTIPLIER" envDefault:"2.0"`
	JitterFraction float64       `env:"JITTER_FRACTION" envDefault:"0.1"`
}

// FetchConfig contains download/transform configuration.
type FetchConfig struct {
	SourceBaseURL string        `env:"SOURCE_BASE_URL" envDefault:"https://api.eumetsat.int/data/download"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"5m"`
	// Workers is the default worker count when a task does not specify one.
	Workers int `env:"WORKERS" envDefault:"4"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// Load parses configuration from environment variables.
// It returns an error if required fields are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog base URL is required")
	}

	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog timeout must be positive, got %s", c.Catalog.Timeout)
	}

	if c.Catalog.PageSize < 1 {
		return fmt.Errorf("catalog page size must be at least 1, got %d", c.Catalog.PageSize)
	}

	if c.Catalog.RatePerSecond < 0 {
		return fmt.Errorf("catalog rate must be non-negative, got %f", c.Catalog.RatePerSecond)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}

	if c.Retry.InitialBackoff <= 0 {
		return fmt.Errorf("retry initial backoff must be positive, got %s", c.Retry.InitialBackoff)
	}

	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		return fmt.Errorf("retry max backoff (%s) must be >= initial backoff (%s)",
			c.Retry.MaxBackoff, c.Retry.InitialBackoff)
	}

	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be >= 1, got %f", c.Retry.Multiplier)
	}

	if c.Retry.JitterFraction < 0 || c.Retry.JitterFraction > 1 {
		return fmt.Errorf("retry jitter fraction must be in [0, 1], got %f", c.Retry.JitterFraction)
	}

	if c.Fetch.SourceBaseURL == "" {
		return fmt.Errorf("fetch source base URL is required")
	}

	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", c.Fetch.Timeout)
	}

	if c.Fetch.Workers < 1 {
		return fmt.Errorf("fetch workers must be at least 1, got %d", c.Fetch.Workers)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, text", c.Logging.Format)
	}

	return nil
}
