// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/shelfwise/config.yaml",
}

// ConfigPathEnvVar names the variable that points at the YAML file.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			Timeout:          30 * time.Second,
			RateLimitPerMin:  100,
			ShutdownDeadline: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Backend:        "duckdb",
			Path:           "data/shelfwise.duckdb",
			MaxMemory:      "1GB",
			SeedAlgorithms: true,
		},
		Ingest: IngestConfig{
			FlushInterval:      5 * time.Second,
			BatchSize:          100,
			SampleRate:         0.1,
			LearnIntensity:     3.0,
			AnomalyInterval:    60 * time.Second,
			AnomalyWindow:      60 * time.Minute,
			FrequencyThreshold: 10,
			TypeThresholds:     map[string]int{"click": 5},
			DeadLetter: DeadLetterConfig{
				Path:            "data/deadletter",
				MaxAttempts:     5,
				BaseBackoff:     10 * time.Second,
				ReplayPerSecond: 2,
			},
		},
		Recommend: RecommendConfig{
			DefaultLimit:       10,
			MaxLimit:           50,
			ColdStartThreshold: 0.1,
			MinScore:           0.05,
			DiversityFactor:    0.3,
			RequestTimeout:     2 * time.Second,
			DiversityStrategy:  "greedy",
			HistoryWindow:      30 * 24 * time.Hour,
			InteractionLimit:   5000,
			CandidatePool:      200,
			Neighbors:          20,
			TrendingDays:       7,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			TTL:        5 * time.Minute,
			MaxEntries: 10000,
			RedisAddr:  "localhost:6379",
			KeyPrefix:  "shelfwise:",
		},
		Events: EventsConfig{
			Backend: "memory",
			Buffer:  256,
			NATSURL: "nats://127.0.0.1:4222",
		},
		Maintenance: MaintenanceConfig{
			Enabled:         true,
			PurgeSchedule:   "@daily",
			Retention:       30 * 24 * time.Hour,
			RetrainSchedule: "@hourly",
			RetrainAfter:    24 * time.Hour,
			RefreshSchedule: "@every 6h",
			StaleAfter:      7 * 24 * time.Hour,
			DecayHalfLife:   30 * 24 * time.Hour,
			JobTimeout:      5 * time.Minute,
			ModelsKeep:      3,
		},
	}
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config {
	return defaultConfig()
}

// LoadWithKoanf loads defaults, then the YAML file (CONFIG_PATH or one of
// DefaultConfigPaths), then mapped environment variables, and validates
// the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}
	if err := processThresholdField(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma separated env values into slices.
// Slices that came from YAML are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := splitCSV(s)
		if len(parts) == 0 {
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// thresholdEnvKey carries INGEST_TYPE_THRESHOLDS ("click:5,hover:30")
// until it is expanded into ingest.type_thresholds.<type> keys.
const thresholdEnvKey = "ingest.type_thresholds_env"

func processThresholdField(k *koanf.Koanf) error {
	raw, ok := k.Get(thresholdEnvKey).(string)
	if !ok || raw == "" {
		return nil
	}
	for _, pair := range splitCSV(raw) {
		name, value, found := strings.Cut(pair, ":")
		if !found {
			return fmt.Errorf("INGEST_TYPE_THRESHOLDS entry %q must be type:count", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("INGEST_TYPE_THRESHOLDS entry %q: %w", pair, err)
		}
		if err := k.Set("ingest.type_thresholds."+strings.TrimSpace(name), n); err != nil {
			return fmt.Errorf("failed to set type threshold %s: %w", name, err)
		}
	}
	k.Delete(thresholdEnvKey)
	return nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envTransformFunc maps the supported environment variables onto config
// keys. Unmapped variables are dropped so unrelated environment does not
// leak into the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"http_host":           "server.host",
		"http_port":           "server.port",
		"http_timeout":        "server.timeout",
		"rate_limit_requests": "server.rate_limit",
		"cors_origins":        "server.cors_origins",
		"shutdown_deadline":   "server.shutdown_deadline",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		"store_backend":         "store.backend",
		"duckdb_path":           "store.path",
		"duckdb_max_memory":     "store.max_memory",
		"duckdb_threads":        "store.threads",
		"store_seed_algorithms": "store.seed_algorithms",

		"ingest_flush_interval":       "ingest.flush_interval",
		"ingest_batch_size":           "ingest.batch_size",
		"ingest_sample_rate":          "ingest.sample_rate",
		"ingest_learn_intensity":      "ingest.learn_intensity",
		"anomaly_interval":            "ingest.anomaly_interval",
		"anomaly_window":              "ingest.anomaly_window",
		"anomaly_frequency_threshold": "ingest.frequency_threshold",
		"ingest_type_thresholds":      thresholdEnvKey,

		"dead_letter_enabled":           "ingest.dead_letter.enabled",
		"dead_letter_path":              "ingest.dead_letter.path",
		"dead_letter_max_attempts":      "ingest.dead_letter.max_attempts",
		"dead_letter_base_backoff":      "ingest.dead_letter.base_backoff",
		"dead_letter_replay_per_second": "ingest.dead_letter.replay_per_second",

		"recommend_default_limit":        "recommend.default_limit",
		"recommend_max_limit":            "recommend.max_limit",
		"recommend_cold_start_threshold": "recommend.cold_start_threshold",
		"recommend_min_score":            "recommend.min_score",
		"recommend_diversity_factor":     "recommend.diversity_factor",
		"recommend_request_timeout":      "recommend.request_timeout",
		"recommend_diversity_strategy":   "recommend.diversity_strategy",
		"recommend_history_window":       "recommend.history_window",
		"recommend_interaction_limit":    "recommend.interaction_limit",
		"recommend_candidate_pool":       "recommend.candidate_pool",
		"recommend_neighbors":            "recommend.neighbors",
		"recommend_trending_days":        "recommend.trending_days",
		"recommend_ab_testing":           "recommend.ab_testing",
		"recommend_seed":                 "recommend.seed",

		"cache_backend":     "cache.backend",
		"cache_ttl":         "cache.ttl",
		"cache_max_entries": "cache.max_entries",
		"redis_addr":        "cache.redis_addr",
		"redis_password":    "cache.redis_password",
		"redis_db":          "cache.redis_db",
		"cache_key_prefix":  "cache.key_prefix",

		"events_backend": "events.backend",
		"events_buffer":  "events.buffer",
		"nats_url":       "events.nats_url",

		"maintenance_enabled":          "maintenance.enabled",
		"maintenance_purge_schedule":   "maintenance.purge_schedule",
		"recommendation_retention":     "maintenance.retention",
		"maintenance_retrain_schedule": "maintenance.retrain_schedule",
		"retrain_after":                "maintenance.retrain_after",
		"maintenance_refresh_schedule": "maintenance.refresh_schedule",
		"preference_stale_after":       "maintenance.stale_after",
		"preference_decay_half_life":   "maintenance.decay_half_life",
		"maintenance_job_timeout":      "maintenance.job_timeout",
		"models_path":                  "maintenance.models_path",
		"models_keep":                  "maintenance.models_keep",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
