// Package config manages subfeed's application configuration and the
// user-editable filter settings.
//
// Application configuration is layered, lowest priority first:
//
//  1. Built-in defaults
//  2. <dir>/config.toml
//  3. <dir>/.env (never overrides variables already set in the environment)
//  4. SUBFEED_* environment variables
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	// DefaultMaxDurationSeconds is the fixed ceiling on video length.
	DefaultMaxDurationSeconds = 4 * 3600

	envPrefix = "SUBFEED_"
)

// Config holds application tuning that is not part of the user's settings.
type Config struct {
	Dir                string
	LogLevel           string
	LogFormat          string
	FetchTimeout       time.Duration
	FetchAttempts      int
	FetchWorkers       int
	FeedBaseURL        string
	APIBaseURL         string
	Player             string
	MaxDurationSeconds int
}

// fileConfig mirrors config.toml. Durations are strings such as "10s".
type fileConfig struct {
	LogLevel           *string `toml:"log_level"`
	LogFormat          *string `toml:"log_format"`
	FetchTimeout       *string `toml:"fetch_timeout"`
	FetchAttempts      *int    `toml:"fetch_attempts"`
	FetchWorkers       *int    `toml:"fetch_workers"`
	FeedBaseURL        *string `toml:"feed_base_url"`
	APIBaseURL         *string `toml:"api_base_url"`
	Player             *string `toml:"player"`
	MaxDurationSeconds *int    `toml:"max_duration_seconds"`
}

// Default returns the configuration used when nothing is overridden.
func Default(dir string) *Config {
	return &Config{
		Dir:                dir,
		LogLevel:           "warn",
		LogFormat:          "console",
		FetchTimeout:       10 * time.Second,
		FetchAttempts:      2,
		FetchWorkers:       8,
		FeedBaseURL:        "https://www.youtube.com",
		APIBaseURL:         "https://www.googleapis.com",
		MaxDurationSeconds: DefaultMaxDurationSeconds,
	}
}

// DefaultDir returns SUBFEED_CONFIG_DIR, or ~/.config/subfeed.
func DefaultDir() string {
	if dir := os.Getenv(envPrefix + "CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "subfeed")
}

// Load builds the configuration for dir (DefaultDir when empty).
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	cfg := Default(dir)

	if err := cfg.loadFile(filepath.Join(dir, "config.toml")); err != nil {
		return nil, err
	}

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	if fc.LogFormat != nil {
		c.LogFormat = *fc.LogFormat
	}
	if fc.FetchTimeout != nil {
		d, err := time.ParseDuration(*fc.FetchTimeout)
		if err != nil {
			return fmt.Errorf("%s: fetch_timeout: %w", path, err)
		}
		c.FetchTimeout = d
	}
	if fc.FetchAttempts != nil {
		c.FetchAttempts = *fc.FetchAttempts
	}
	if fc.FetchWorkers != nil {
		c.FetchWorkers = *fc.FetchWorkers
	}
	if fc.FeedBaseURL != nil {
		c.FeedBaseURL = *fc.FeedBaseURL
	}
	if fc.APIBaseURL != nil {
		c.APIBaseURL = *fc.APIBaseURL
	}
	if fc.Player != nil {
		c.Player = *fc.Player
	}
	if fc.MaxDurationSeconds != nil {
		c.MaxDurationSeconds = *fc.MaxDurationSeconds
	}
	return nil
}

func (c *Config) loadEnv() error {
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(envPrefix + "LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv(envPrefix + "FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sFETCH_TIMEOUT: %w", envPrefix, err)
		}
		c.FetchTimeout = d
	}
	if err := envInt("FETCH_ATTEMPTS", &c.FetchAttempts); err != nil {
		return err
	}
	if err := envInt("FETCH_WORKERS", &c.FetchWorkers); err != nil {
		return err
	}
	if err := envInt("MAX_DURATION_SECONDS", &c.MaxDurationSeconds); err != nil {
		return err
	}
	if v := os.Getenv(envPrefix + "FEED_URL"); v != "" {
		c.FeedBaseURL = v
	}
	if v := os.Getenv(envPrefix + "API_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv(envPrefix + "PLAYER"); v != "" {
		c.Player = v
	}
	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(envPrefix + name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, name, err)
	}
	*dst = n
	return nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive")
	}
	if c.FetchAttempts < 1 {
		return fmt.Errorf("fetch_attempts must be at least 1")
	}
	if c.FetchWorkers < 1 {
		return fmt.Errorf("fetch_workers must be at least 1")
	}
	if c.MaxDurationSeconds <= 0 {
		return fmt.Errorf("max_duration_seconds must be positive")
	}
	return nil
}

func (c *Config) SettingsPath() string      { return filepath.Join(c.Dir, "settings.json") }
func (c *Config) CachePath() string         { return filepath.Join(c.Dir, "cache.json") }
func (c *Config) SubscriptionsPath() string { return filepath.Join(c.Dir, "subscriptions.txt") }
func (c *Config) HistoryPath() string       { return filepath.Join(c.Dir, "watched.json") }
func (c *Config) ChannelNamesPath() string  { return filepath.Join(c.Dir, "channel_names.json") }
