// Package config loads and validates the crawler configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures everything required to run the ingestion pipeline and its
// HTTP surface.
type Config struct {
	DB      SQLConfig     `yaml:"db"`
	Source  SourceConfig  `yaml:"source"`
	Media   MediaConfig   `yaml:"media"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// SQLConfig describes the relational database holding ingested events.
type SQLConfig struct {
	Driver          string   `yaml:"driver"`
	DSN             string   `yaml:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	CreateIfMissing bool     `yaml:"create_if_missing"`
	AutoMigrate     bool     `yaml:"auto_migrate"`
}

// SourceConfig points at the ticketing site and tunes outbound fetching.
type SourceConfig struct {
	ListingURL     string    `yaml:"listing_url"`
	BaseURL        string    `yaml:"base_url"`
	DefaultCity    string    `yaml:"default_city"`
	Category       string    `yaml:"category"`
	UserAgent      string    `yaml:"user_agent"`
	RequestTimeout Duration  `yaml:"request_timeout"`
	MaxBodyBytes   int64     `yaml:"max_body_bytes"`
	PerHostDelay   Duration  `yaml:"per_host_delay"`
	RateLimit      RateLimit `yaml:"rate_limit"`
}

// RateLimit applies a token bucket to outbound requests per host.
type RateLimit struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// MediaConfig controls where fetched images land.
type MediaConfig struct {
	Directory    string `yaml:"directory"`
	MaxSizeBytes int64  `yaml:"max_size_bytes"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string   `yaml:"addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// Default returns a Config populated with sensible defaults for the
// honarticket source.
func Default() Config {
	return Config{
		DB: SQLConfig{
			Driver:      "postgres",
			AutoMigrate: true,
		},
		Source: SourceConfig{
			ListingURL:     "https://www.honarticket.com/",
			BaseURL:        "https://www.honarticket.com",
			DefaultCity:    "تهران",
			Category:       "Concert",
			UserAgent:      "concert-crawler/1.0",
			RequestTimeout: DurationFrom(10 * time.Second),
			MaxBodyBytes:   6 * 1024 * 1024,
		},
		Media: MediaConfig{
			Directory:    "data/images",
			MaxSizeBytes: 5 * 1024 * 1024,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: DurationFrom(15 * time.Second),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces required invariants for the pipeline configuration.
func (c Config) Validate() error {
	if c.Source.ListingURL == "" {
		return errors.New("source.listing_url must be set")
	}
	if c.Source.BaseURL == "" {
		return errors.New("source.base_url must be set")
	}
	if c.Source.DefaultCity == "" {
		return errors.New("source.default_city must be set")
	}
	if c.Source.UserAgent == "" {
		return errors.New("source.user_agent must be set")
	}
	if c.Source.MaxBodyBytes <= 0 {
		return fmt.Errorf("source.max_body_bytes must be > 0 (got %d)", c.Source.MaxBodyBytes)
	}
	if rl := c.Source.RateLimit; rl.Requests < 0 {
		return fmt.Errorf("source.rate_limit.requests must be >= 0 (got %d)", rl.Requests)
	}
	if c.Media.Directory == "" {
		return errors.New("media.directory must be set")
	}
	if c.Media.MaxSizeBytes <= 0 {
		return fmt.Errorf("media.max_size_bytes must be > 0 (got %d)", c.Media.MaxSizeBytes)
	}
	return nil
}

func (c *Config) normalise() {
	c.Source.ListingURL = strings.TrimSpace(c.Source.ListingURL)
	c.Source.BaseURL = strings.TrimRight(strings.TrimSpace(c.Source.BaseURL), "/")
	c.Source.DefaultCity = strings.TrimSpace(c.Source.DefaultCity)
	c.Source.Category = strings.TrimSpace(c.Source.Category)
	c.Source.UserAgent = strings.TrimSpace(c.Source.UserAgent)
	c.Media.Directory = strings.TrimSpace(c.Media.Directory)
}

// BuildLogger constructs a slog.Logger according to the logging section.
func BuildLogger(cfg LoggingConfig) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Structured {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler), nil
}
