// Package config loads and validates downloader configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vfrank66/lucas-download/internal/diario"
)

// Config captures all downloader configuration knobs loaded via Viper.
type Config struct {
	Download  DownloadConfig  `mapstructure:"download"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Status    StatusConfig    `mapstructure:"status"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DownloadConfig selects the date range, layout, and concurrency of a run.
type DownloadConfig struct {
	Dir         string `mapstructure:"dir"`
	Granularity string `mapstructure:"granularity"`
	YearsBack   int    `mapstructure:"years_back"`
	StartDate   string `mapstructure:"start_date"`
	EndDate     string `mapstructure:"end_date"`
	Concurrency int    `mapstructure:"concurrency"`
}

// FetchConfig governs per-edition retrieval behavior.
type FetchConfig struct {
	UserAgent        string `mapstructure:"user_agent"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	RetryAttempts    int    `mapstructure:"retry_attempts"`
	RetryDelayMs     int    `mapstructure:"retry_delay_ms"`
	NotFoundStatuses []int  `mapstructure:"not_found_statuses"`
	RecordNotFound   bool   `mapstructure:"record_not_found"`
}

// LedgerConfig selects the progress ledger backend and location.
type LedgerConfig struct {
	// Backend is "file" (JSON progress file) or "sqlite".
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	// FlushEvery batches that many ledger updates per rewrite (file backend).
	FlushEvery int `mapstructure:"flush_every"`
}

// RateLimitConfig bounds the request rate against the archive hosts.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// DiscoveryConfig points the calendar scraper at the archive.
type DiscoveryConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// StatusConfig controls the optional status HTTP server. An empty Addr
// leaves the server off.
type StatusConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features and the durable log file.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// Load builds a Config from disk/environment. Flags bound to v beforehand
// override both.
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix("LUCAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("lucas-download")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("download.dir", "downloads")
	v.SetDefault("download.granularity", string(diario.GranularityMonth))
	v.SetDefault("download.years_back", 2)
	v.SetDefault("download.concurrency", 40)
	v.SetDefault("fetch.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.retry_attempts", 3)
	v.SetDefault("fetch.retry_delay_ms", 1000)
	v.SetDefault("fetch.not_found_statuses", []int{404, 410})
	v.SetDefault("fetch.record_not_found", true)
	v.SetDefault("ledger.backend", "file")
	v.SetDefault("ledger.path", "download_progress.json")
	v.SetDefault("ledger.flush_every", 1)
	v.SetDefault("rate_limit.rps", 50.0)
	v.SetDefault("rate_limit.burst", 1)
	v.SetDefault("discovery.base_url", diario.BaseURL)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file", "lucas-download.log")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Download.Dir == "" {
		return fmt.Errorf("download.dir must be set")
	}
	if c.Download.Concurrency <= 0 {
		return fmt.Errorf("download.concurrency must be > 0")
	}
	if _, err := diario.ParseGranularity(c.Download.Granularity); err != nil {
		return fmt.Errorf("download.granularity: %w", err)
	}
	if c.Download.YearsBack < 0 {
		return fmt.Errorf("download.years_back must be >= 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.RetryAttempts <= 0 {
		return fmt.Errorf("fetch.retry_attempts must be > 0")
	}
	switch c.Ledger.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("ledger.backend must be file or sqlite, got %q", c.Ledger.Backend)
	}
	if _, err := c.Range(time.Now()); err != nil {
		return err
	}
	return nil
}

// Range resolves the configured date boundaries. Explicit start/end dates
// win; otherwise years_back maps to [Jan 1 of (currentYear-N), today].
func (c Config) Range(now time.Time) (diario.Range, error) {
	if c.Download.StartDate == "" && c.Download.EndDate == "" {
		return diario.YearsBack(c.Download.YearsBack, now), nil
	}

	start := time.Date(now.Year()-c.Download.YearsBack, time.January, 1, 0, 0, 0, 0, time.UTC)
	if c.Download.StartDate != "" {
		var err error
		start, err = parseDate(c.Download.StartDate)
		if err != nil {
			return diario.Range{}, fmt.Errorf("download.start_date: %w", err)
		}
	}
	end := now
	if c.Download.EndDate != "" {
		parsed, err := parseDate(c.Download.EndDate)
		if err != nil {
			return diario.Range{}, fmt.Errorf("download.end_date: %w", err)
		}
		end = parsed
	}
	rng, err := diario.NewRange(start, end)
	if err != nil {
		return diario.Range{}, fmt.Errorf("download range: %w", err)
	}
	return rng, nil
}

// Granularity returns the validated layout granularity.
func (c Config) Granularity() diario.Granularity {
	g, err := diario.ParseGranularity(c.Download.Granularity)
	if err != nil {
		return diario.GranularityMonth
	}
	return g
}

// FetchTimeout returns the per-attempt timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// RetryDelay returns the base inter-attempt delay as a duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Fetch.RetryDelayMs) * time.Millisecond
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t.UTC(), nil
}
