package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
listen: "127.0.0.1:9090"
log:
  level: debug
  json: true
cache:
  path: /var/lib/blockvol/blocks.db
upstream:
  base_url: "https://blocks.example.com/api"
  timeout: 5s
archive:
  enabled: true
  dir: /var/lib/blockvol/archive
  compression: snappy
stats:
  accuracy: 0.02
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen != "127.0.0.1:9090" {
		t.Errorf("Listen = %s", cfg.Listen)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.JSON {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Upstream.Timeout.Duration() != 5*time.Second {
		t.Errorf("Timeout = %v", cfg.Upstream.Timeout)
	}
	if !cfg.Archive.Enabled || cfg.Archive.Compression != "snappy" {
		t.Errorf("Archive = %+v", cfg.Archive)
	}
	if cfg.Stats.Accuracy != 0.02 {
		t.Errorf("Accuracy = %v", cfg.Stats.Accuracy)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: \":8888\"\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen != ":8888" {
		t.Errorf("Listen = %s", cfg.Listen)
	}
	if cfg.Upstream.Timeout.Duration() != 10*time.Second {
		t.Errorf("Timeout default lost: %v", cfg.Upstream.Timeout)
	}
	if cfg.Stats.Accuracy != 0.01 {
		t.Errorf("Accuracy default lost: %v", cfg.Stats.Accuracy)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"empty base_url", func(c *Config) { c.Upstream.BaseURL = "" }},
		{"negative timeout", func(c *Config) { c.Upstream.Timeout = Duration(-time.Second) }},
		{"archive without dir", func(c *Config) { c.Archive.Enabled = true; c.Archive.Dir = "" }},
		{"zero accuracy", func(c *Config) { c.Stats.Accuracy = 0 }},
		{"accuracy too high", func(c *Config) { c.Stats.Accuracy = 1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
