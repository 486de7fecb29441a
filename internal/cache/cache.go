// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package cache stores serialized recommendation results.
//
// Two backends implement Cache: an in-process LRU with per-entry TTL, and
// Redis for deployments that share results across restarts. Callers treat
// the cache as race-tolerant: concurrent writers overwrite each other and
// readers may see a stale or missing entry.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/shelfwise/internal/config"
)

// Cache is a byte-valued cache with TTL and prefix invalidation.
type Cache interface {
	// Get returns the value and true on a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for ttl; ttl <= 0 uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// DeletePrefix removes every key starting with prefix and reports how many went.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// Backend names the implementation for metrics.
	Backend() string

	Close() error
}

// RecommendationKey is the cache key for one recommendation request shape.
func RecommendationKey(userID, scenario, algorithm string, limit int) string {
	return fmt.Sprintf("rec:%s:%s:%s:%d", userID, scenario, algorithm, limit)
}

// UserPrefix matches every recommendation key for userID.
func UserPrefix(userID string) string {
	return "rec:" + userID + ":"
}

// New builds the backend selected by cfg.
func New(cfg *config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewLRU(cfg.MaxEntries, cfg.TTL), nil
	case "redis":
		return NewRedis(RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
			TTL:       cfg.TTL,
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
