// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package config

import "time"

// Config is the full process configuration. Values are layered by
// LoadWithKoanf: built-in defaults, then a YAML file, then environment.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Store       StoreConfig       `koanf:"store"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Recommend   RecommendConfig   `koanf:"recommend"`
	Cache       CacheConfig       `koanf:"cache"`
	Events      EventsConfig      `koanf:"events"`
	Maintenance MaintenanceConfig `koanf:"maintenance"`
}

// ServerConfig holds HTTP listener settings.
//
// Environment Variables:
//   - HTTP_HOST, HTTP_PORT, HTTP_TIMEOUT
//   - RATE_LIMIT_REQUESTS: requests per minute per client IP (0 disables)
//   - CORS_ORIGINS: comma separated list
type ServerConfig struct {
	Host             string        `koanf:"host"`
	Port             int           `koanf:"port"`
	Timeout          time.Duration `koanf:"timeout"`
	RateLimitPerMin  int           `koanf:"rate_limit"`
	CORSOrigins      []string      `koanf:"cors_origins"`
	ShutdownDeadline time.Duration `koanf:"shutdown_deadline"`
}

// LoggingConfig mirrors logging.Config for file/env loading.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig selects and tunes the persistent store.
type StoreConfig struct {
	// Backend is duckdb or memory. memory loses everything on restart.
	Backend string `koanf:"backend"`

	// Path is the DuckDB file. ":memory:" keeps DuckDB in-process only.
	Path string `koanf:"path"`

	// MaxMemory is passed to DuckDB as max_memory (e.g. "1GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is DuckDB's thread count; 0 uses runtime.NumCPU().
	Threads int `koanf:"threads"`

	// SeedAlgorithms writes the default algorithm catalog when none exist.
	SeedAlgorithms bool `koanf:"seed_algorithms"`
}

// IngestConfig tunes the behavior ingestion pipeline.
type IngestConfig struct {
	// FlushInterval is the periodic queue drain. Default: 5s
	FlushInterval time.Duration `koanf:"flush_interval"`

	// BatchSize is the queue length that triggers an immediate drain. Default: 100
	BatchSize int `koanf:"batch_size"`

	// SampleRate is the fraction of low-signal events that still update
	// preferences. Default: 0.1
	SampleRate float64 `koanf:"sample_rate"`

	// LearnIntensity is the intensity at or above which any event updates
	// preferences. Default: 3.0
	LearnIntensity float64 `koanf:"learn_intensity"`

	// AnomalyInterval is how often all recent events are scanned. Default: 60s
	AnomalyInterval time.Duration `koanf:"anomaly_interval"`

	// AnomalyWindow is the look-back of each scan. Default: 60m
	AnomalyWindow time.Duration `koanf:"anomaly_window"`

	// FrequencyThreshold is the per-actor event count per window. Default: 10
	FrequencyThreshold int `koanf:"frequency_threshold"`

	// TypeThresholds are per behavior type counts per window. Default: click=5
	TypeThresholds map[string]int `koanf:"type_thresholds"`

	DeadLetter DeadLetterConfig `koanf:"dead_letter"`
}

// DeadLetterConfig controls the durable retry path for failed flushes.
// Disabled, a failed batch is logged and dropped.
type DeadLetterConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Path            string        `koanf:"path"`
	InMemory        bool          `koanf:"in_memory"`
	MaxAttempts     int           `koanf:"max_attempts"`
	BaseBackoff     time.Duration `koanf:"base_backoff"`
	ReplayPerSecond float64       `koanf:"replay_per_second"`
}

// RecommendConfig tunes the recommendation engine.
type RecommendConfig struct {
	DefaultLimit       int           `koanf:"default_limit"`
	MaxLimit           int           `koanf:"max_limit"`
	ColdStartThreshold float64       `koanf:"cold_start_threshold"`
	MinScore           float64       `koanf:"min_score"`
	DiversityFactor    float64       `koanf:"diversity_factor"`
	RequestTimeout     time.Duration `koanf:"request_timeout"`

	// DiversityStrategy is greedy (category/author novelty per slot) or
	// mmr (maximal marginal relevance over item attributes).
	DiversityStrategy string `koanf:"diversity_strategy"`

	// HistoryWindow bounds the interactions loaded for collaborative and
	// popularity algorithms. Default: 720h (30 days)
	HistoryWindow time.Duration `koanf:"history_window"`

	// InteractionLimit caps rows loaded per request for the interaction matrix.
	InteractionLimit int `koanf:"interaction_limit"`

	// CandidatePool caps the catalog snapshot scored per request.
	CandidatePool int `koanf:"candidate_pool"`

	Neighbors    int `koanf:"neighbors"`
	TrendingDays int `koanf:"trending_days"`

	// ABTesting switches the assigner from first-candidate to a stable
	// hash split across the scenario's enabled algorithms.
	ABTesting bool `koanf:"ab_testing"`

	// Seed fixes the diversification RNG. 0 seeds from the clock.
	Seed int64 `koanf:"seed"`
}

// CacheConfig selects the serving cache.
type CacheConfig struct {
	// Backend is memory or redis.
	Backend       string        `koanf:"backend"`
	TTL           time.Duration `koanf:"ttl"`
	MaxEntries    int           `koanf:"max_entries"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	KeyPrefix     string        `koanf:"key_prefix"`
}

// EventsConfig selects the behavior notification bus.
type EventsConfig struct {
	// Backend is memory (watermill gochannel) or nats (requires -tags nats).
	Backend string `koanf:"backend"`
	Buffer  int    `koanf:"buffer"`
	NATSURL string `koanf:"nats_url"`
}

// MaintenanceConfig schedules the orchestration jobs. Schedules use
// robfig/cron syntax, including descriptors such as "@daily" and "@every 6h".
type MaintenanceConfig struct {
	Enabled         bool          `koanf:"enabled"`
	PurgeSchedule   string        `koanf:"purge_schedule"`
	Retention       time.Duration `koanf:"retention"`
	RetrainSchedule string        `koanf:"retrain_schedule"`
	RetrainAfter    time.Duration `koanf:"retrain_after"`
	RefreshSchedule string        `koanf:"refresh_schedule"`
	StaleAfter      time.Duration `koanf:"stale_after"`
	DecayHalfLife   time.Duration `koanf:"decay_half_life"`
	JobTimeout      time.Duration `koanf:"job_timeout"`

	// ModelsPath is where trained embedding snapshots are published.
	// Empty disables snapshot loading; retraining only logs.
	ModelsPath string `koanf:"models_path"`

	// ModelsKeep is how many snapshot versions survive a prune. Default: 3
	ModelsKeep int `koanf:"models_keep"`
}
