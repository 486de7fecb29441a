// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Ingest.BatchSize != 100 || cfg.Ingest.FlushInterval != 5*time.Second {
		t.Errorf("ingest defaults = %+v", cfg.Ingest)
	}
	if cfg.Ingest.TypeThresholds["click"] != 5 {
		t.Errorf("click threshold = %d", cfg.Ingest.TypeThresholds["click"])
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("cache ttl = %v", cfg.Cache.TTL)
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"bad store backend", func(c *Config) { c.Store.Backend = "mongo" }, "STORE_BACKEND"},
		{"zero batch", func(c *Config) { c.Ingest.BatchSize = 0 }, "INGEST_BATCH_SIZE"},
		{"sample rate", func(c *Config) { c.Ingest.SampleRate = 1.5 }, "INGEST_SAMPLE_RATE"},
		{"unknown threshold type", func(c *Config) { c.Ingest.TypeThresholds["wink"] = 3 }, "unknown behavior type"},
		{"diversity", func(c *Config) { c.Recommend.DiversityFactor = 2 }, "DIVERSITY"},
		{"limits", func(c *Config) { c.Recommend.MaxLimit = 1 }, "limits"},
		{"redis without addr", func(c *Config) { c.Cache.Backend = "redis"; c.Cache.RedisAddr = "" }, "REDIS_ADDR"},
		{"nats url", func(c *Config) { c.Events.Backend = "nats"; c.Events.NATSURL = "http://x" }, "NATS_URL"},
		{"empty schedule", func(c *Config) { c.Maintenance.PurgeSchedule = "" }, "PURGE_SCHEDULE"},
		{"log level", func(c *Config) { c.Logging.Level = "chatty" }, "LOG_LEVEL"},
		{"dead letter path", func(c *Config) { c.Ingest.DeadLetter.Enabled = true; c.Ingest.DeadLetter.Path = "" }, "DEAD_LETTER_PATH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"HTTP_PORT":              "server.port",
		"INGEST_BATCH_SIZE":      "ingest.batch_size",
		"REDIS_ADDR":             "cache.redis_addr",
		"INGEST_TYPE_THRESHOLDS": thresholdEnvKey,
		"PATH":                   "",
		"HOME":                   "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

// LoadWithKoanf reads process environment, so these tests are not parallel.
func TestLoadWithKoanfLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
store:
  backend: memory
recommend:
  default_limit: 12
ingest:
  flush_interval: 2s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("INGEST_BATCH_SIZE", "40")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("INGEST_TYPE_THRESHOLDS", "click:7,hover:30")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf: %v", err)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("file value lost: backend %q", cfg.Store.Backend)
	}
	if cfg.Recommend.DefaultLimit != 12 || cfg.Ingest.FlushInterval != 2*time.Second {
		t.Errorf("file values = %d %v", cfg.Recommend.DefaultLimit, cfg.Ingest.FlushInterval)
	}
	if cfg.Ingest.BatchSize != 40 {
		t.Errorf("env override lost: batch size %d", cfg.Ingest.BatchSize)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Ingest.TypeThresholds["click"] != 7 || cfg.Ingest.TypeThresholds["hover"] != 30 {
		t.Errorf("type thresholds = %v", cfg.Ingest.TypeThresholds)
	}
	if cfg.Maintenance.Retention != 30*24*time.Hour {
		t.Errorf("default lost: retention %v", cfg.Maintenance.Retention)
	}
}

func TestLoadWithKoanfInvalidEnv(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("INGEST_TYPE_THRESHOLDS", "click")

	if _, err := LoadWithKoanf(); err == nil {
		t.Fatal("expected error for malformed INGEST_TYPE_THRESHOLDS")
	}
}
