// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"github.com/tomtom215/shelfwise/internal/breaker"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix namespaces every key so several deployments can share a server.
	KeyPrefix string

	// TTL applies when Set is called without one.
	TTL time.Duration
}

// Redis is a Cache backed by a Redis server. Calls run through a circuit
// breaker so an unreachable server fails fast instead of stalling requests.
type Redis struct {
	client *redis.Client
	cb     *breaker.Breaker
	prefix string
	ttl    time.Duration
}

// scanBatch is the COUNT hint for SCAN during prefix deletes.
const scanBatch = 200

// NewRedis connects to the configured server. The connection is verified
// with a PING so misconfiguration surfaces at startup.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,

		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}
	return newRedisWithClient(client, cfg), nil
}

func newRedisWithClient(client *redis.Client, cfg RedisConfig) *Redis {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	bcfg := breaker.DefaultConfig("cache-redis")
	bcfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, redis.Nil)
	}
	return &Redis{
		client: client,
		cb:     breaker.New(bcfg),
		prefix: cfg.KeyPrefix,
		ttl:    ttl,
	}
}

// Get returns the value stored under key. A missing or expired key is a
// miss, not an error.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := breaker.Do(r.cb, func() error {
		var err error
		value, err = r.client.Get(ctx, r.prefix+key).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

// Set stores value under key with ttl, or the configured default TTL when
// ttl <= 0.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	err := breaker.Do(r.cb, func() error {
		return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// DeletePrefix scans for keys starting with prefix and deletes them in
// batches. Glob characters in prefix match literally. It returns how many
// keys were removed, including those removed before a failure.
func (r *Redis) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	pattern := escapeGlob(r.prefix+prefix) + "*"
	removed := 0
	err := breaker.Do(r.cb, func() error {
		var cursor uint64
		for {
			keys, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				n, err := r.client.Del(ctx, keys...).Result()
				if err != nil {
					return err
				}
				removed += int(n)
			}
			if next == 0 {
				return nil
			}
			cursor = next
		}
	})
	if err != nil {
		return removed, fmt.Errorf("redis delete prefix: %w", err)
	}
	return removed, nil
}

// Backend implements Cache.
func (r *Redis) Backend() string { return "redis" }

// Close releases the client connections.
func (r *Redis) Close() error { return r.client.Close() }

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
