// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/models"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateRecommend(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateMaintenance(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.Server.RateLimitPerMin < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must not be negative")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "duckdb":
		if c.Store.Path == "" {
			return fmt.Errorf("DUCKDB_PATH is required when STORE_BACKEND=duckdb")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_BACKEND must be duckdb or memory, got %q", c.Store.Backend)
	}
	return nil
}

func (c *Config) validateIngest() error {
	in := &c.Ingest
	if in.FlushInterval <= 0 {
		return fmt.Errorf("INGEST_FLUSH_INTERVAL must be positive")
	}
	if in.BatchSize < 1 {
		return fmt.Errorf("INGEST_BATCH_SIZE must be at least 1, got %d", in.BatchSize)
	}
	if in.SampleRate < 0 || in.SampleRate > 1 {
		return fmt.Errorf("INGEST_SAMPLE_RATE must be within [0,1], got %v", in.SampleRate)
	}
	if in.AnomalyInterval <= 0 || in.AnomalyWindow <= 0 {
		return fmt.Errorf("ANOMALY_INTERVAL and ANOMALY_WINDOW must be positive")
	}
	if in.FrequencyThreshold < 1 {
		return fmt.Errorf("ANOMALY_FREQUENCY_THRESHOLD must be at least 1")
	}
	for name, n := range in.TypeThresholds {
		if !models.BehaviorType(name).Valid() {
			return fmt.Errorf("ingest.type_thresholds: unknown behavior type %q", name)
		}
		if n < 1 {
			return fmt.Errorf("ingest.type_thresholds.%s must be at least 1", name)
		}
	}
	if in.DeadLetter.Enabled {
		if in.DeadLetter.Path == "" && !in.DeadLetter.InMemory {
			return fmt.Errorf("DEAD_LETTER_PATH is required when DEAD_LETTER_ENABLED=true")
		}
		if in.DeadLetter.MaxAttempts < 1 {
			return fmt.Errorf("DEAD_LETTER_MAX_ATTEMPTS must be at least 1")
		}
		if in.DeadLetter.ReplayPerSecond <= 0 {
			return fmt.Errorf("DEAD_LETTER_REPLAY_PER_SECOND must be positive")
		}
	}
	return nil
}

func (c *Config) validateRecommend() error {
	r := &c.Recommend
	if r.DefaultLimit < 1 || r.MaxLimit < r.DefaultLimit {
		return fmt.Errorf("recommend limits invalid: default %d, max %d", r.DefaultLimit, r.MaxLimit)
	}
	if r.ColdStartThreshold < 0 || r.ColdStartThreshold > 1 {
		return fmt.Errorf("RECOMMEND_COLD_START_THRESHOLD must be within [0,1]")
	}
	if r.MinScore < 0 {
		return fmt.Errorf("RECOMMEND_MIN_SCORE must not be negative")
	}
	if r.DiversityFactor < 0 || r.DiversityFactor > 1 {
		return fmt.Errorf("RECOMMEND_DIVERSITY_FACTOR must be within [0,1]")
	}
	if r.RequestTimeout <= 0 {
		return fmt.Errorf("RECOMMEND_REQUEST_TIMEOUT must be positive")
	}
	switch r.DiversityStrategy {
	case "", "greedy", "mmr":
	default:
		return fmt.Errorf("RECOMMEND_DIVERSITY_STRATEGY must be greedy or mmr, got %q", r.DiversityStrategy)
	}
	if r.Neighbors < 1 || r.TrendingDays < 1 {
		return fmt.Errorf("RECOMMEND_NEIGHBORS and RECOMMEND_TRENDING_DAYS must be at least 1")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "memory":
		if c.Cache.MaxEntries < 1 {
			return fmt.Errorf("CACHE_MAX_ENTRIES must be at least 1")
		}
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	return nil
}

func (c *Config) validateEvents() error {
	switch c.Events.Backend {
	case "memory":
	case "nats":
		u, err := url.Parse(c.Events.NATSURL)
		if err != nil || u.Host == "" || (u.Scheme != "nats" && u.Scheme != "tls") {
			return fmt.Errorf("NATS_URL must be a nats:// or tls:// URL, got %q", c.Events.NATSURL)
		}
	default:
		return fmt.Errorf("EVENTS_BACKEND must be memory or nats, got %q", c.Events.Backend)
	}
	if c.Events.Buffer < 1 {
		return fmt.Errorf("EVENTS_BUFFER must be at least 1")
	}
	return nil
}

func (c *Config) validateMaintenance() error {
	m := &c.Maintenance
	if !m.Enabled {
		return nil
	}
	for name, spec := range map[string]string{
		"MAINTENANCE_PURGE_SCHEDULE":   m.PurgeSchedule,
		"MAINTENANCE_RETRAIN_SCHEDULE": m.RetrainSchedule,
		"MAINTENANCE_REFRESH_SCHEDULE": m.RefreshSchedule,
	} {
		if strings.TrimSpace(spec) == "" {
			return fmt.Errorf("%s is required when maintenance is enabled", name)
		}
	}
	if m.Retention <= 0 || m.StaleAfter <= 0 || m.DecayHalfLife <= 0 {
		return fmt.Errorf("maintenance retention, stale_after and decay_half_life must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a recognised level", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// LoggingOptions converts the loaded settings to logging.Config.
func (c *Config) LoggingOptions() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.Logging.Level
	lc.Format = c.Logging.Format
	lc.Caller = c.Logging.Caller
	return lc
}

// Addr returns the HTTP listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
