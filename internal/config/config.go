// Package config loads and validates the blockvold configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// Log configures logging output.
	Log LogConfig `yaml:"log"`

	// Cache configures the local DuckDB store.
	Cache CacheConfig `yaml:"cache"`

	// Upstream configures the remote block API.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Archive configures Parquet archiving of fallback results.
	Archive ArchiveConfig `yaml:"archive"`

	// Stats configures volume summaries.
	Stats StatsConfig `yaml:"stats"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is the log level: debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON selects JSON output instead of text.
	JSON bool `yaml:"json"`
}

// CacheConfig configures the local DuckDB store.
type CacheConfig struct {
	// Path is the DuckDB database file. Empty opens an in-memory store.
	Path string `yaml:"path"`
}

// UpstreamConfig configures the remote block API.
type UpstreamConfig struct {
	// BaseURL is the API root, e.g. "https://blocks.example.com/api".
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each upstream request.
	Timeout Duration `yaml:"timeout"`
}

// Duration is a time.Duration that can be unmarshaled from YAML.
// Accepts "10s"-style strings or plain integer seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		var i int
		if err := unmarshal(&i); err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ArchiveConfig configures Parquet archiving of fallback results.
type ArchiveConfig struct {
	// Enabled turns archiving on.
	Enabled bool `yaml:"enabled"`

	// Dir is the directory archive files are written to.
	Dir string `yaml:"dir"`

	// Compression is the Parquet compression: snappy, zstd, lz4, gzip, none.
	Compression string `yaml:"compression"`
}

// StatsConfig configures volume summaries.
type StatsConfig struct {
	// Accuracy is the DDSketch relative accuracy (0.01 = 1% error).
	Accuracy float64 `yaml:"accuracy"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen: "0.0.0.0:8080",
		Log: LogConfig{
			Level: "info",
		},
		Cache: CacheConfig{
			Path: "blockvol.db",
		},
		Upstream: UpstreamConfig{
			BaseURL: "http://localhost:3000",
			Timeout: Duration(10 * time.Second),
		},
		Archive: ArchiveConfig{
			Enabled:     false,
			Dir:         "archive",
			Compression: "zstd",
		},
		Stats: StatsConfig{
			Accuracy: 0.01,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream base_url is required")
	}
	if c.Upstream.Timeout < 0 {
		return fmt.Errorf("upstream timeout must not be negative")
	}
	if c.Archive.Enabled && c.Archive.Dir == "" {
		return fmt.Errorf("archive dir is required when archiving is enabled")
	}
	if c.Stats.Accuracy <= 0 || c.Stats.Accuracy >= 1 {
		return fmt.Errorf("stats accuracy must be in (0, 1)")
	}
	return nil
}
