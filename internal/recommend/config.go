// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package recommend

import (
	"fmt"
	"time"

	"github.com/tomtom215/shelfwise/internal/config"
)

// EngineConfig contains the tunables of the recommendation engine.
type EngineConfig struct {
	// DefaultLimit applies when a request has no limit.
	DefaultLimit int `json:"default_limit"`

	// MaxLimit caps request limits.
	MaxLimit int `json:"max_limit"`

	// ColdStartThreshold is the preference confidence below which the
	// scenario's cold-start algorithm is used.
	ColdStartThreshold float64 `json:"cold_start_threshold"`

	// MinScore drops weaker candidates before ranking.
	MinScore float64 `json:"min_score"`

	// NeutralScore is the score personalization regresses toward when
	// personalization strength is low.
	NeutralScore float64 `json:"neutral_score"`

	// RequestTimeout bounds each generator call.
	RequestTimeout time.Duration `json:"request_timeout"`

	// HistoryWindow bounds the interactions loaded per request.
	HistoryWindow time.Duration `json:"history_window"`

	// InteractionLimit caps population interactions loaded per request.
	InteractionLimit int `json:"interaction_limit"`

	// CandidatePool caps the catalog snapshot loaded per request.
	CandidatePool int `json:"candidate_pool"`
}

// DefaultEngineConfig returns the production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit:       10,
		MaxLimit:           50,
		ColdStartThreshold: 0.1,
		MinScore:           0.05,
		NeutralScore:       0.5,
		RequestTimeout:     2 * time.Second,
		HistoryWindow:      30 * 24 * time.Hour,
		InteractionLimit:   5000,
		CandidatePool:      200,
	}
}

// EngineConfigFromSettings maps the process configuration onto the engine.
// Zero values keep the defaults.
func EngineConfigFromSettings(rc *config.RecommendConfig) EngineConfig {
	cfg := DefaultEngineConfig()
	if rc == nil {
		return cfg
	}
	if rc.DefaultLimit > 0 {
		cfg.DefaultLimit = rc.DefaultLimit
	}
	if rc.MaxLimit > 0 {
		cfg.MaxLimit = rc.MaxLimit
	}
	cfg.ColdStartThreshold = rc.ColdStartThreshold
	cfg.MinScore = rc.MinScore
	if rc.RequestTimeout > 0 {
		cfg.RequestTimeout = rc.RequestTimeout
	}
	if rc.HistoryWindow > 0 {
		cfg.HistoryWindow = rc.HistoryWindow
	}
	if rc.InteractionLimit > 0 {
		cfg.InteractionLimit = rc.InteractionLimit
	}
	if rc.CandidatePool > 0 {
		cfg.CandidatePool = rc.CandidatePool
	}
	return cfg
}

// Validate checks the configuration for consistency.
func (c *EngineConfig) Validate() error {
	if c.DefaultLimit < 1 {
		return fmt.Errorf("default_limit must be positive, got %d", c.DefaultLimit)
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("max_limit must be >= default_limit, got %d < %d", c.MaxLimit, c.DefaultLimit)
	}
	if c.ColdStartThreshold < 0 || c.ColdStartThreshold > 1 {
		return fmt.Errorf("cold_start_threshold must be in [0, 1], got %f", c.ColdStartThreshold)
	}
	if c.MinScore < 0 {
		return fmt.Errorf("min_score must be non-negative, got %f", c.MinScore)
	}
	if c.NeutralScore < 0 || c.NeutralScore > 1 {
		return fmt.Errorf("neutral_score must be in [0, 1], got %f", c.NeutralScore)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", c.RequestTimeout)
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("history_window must be positive, got %v", c.HistoryWindow)
	}
	if c.InteractionLimit < 1 || c.CandidatePool < 1 {
		return fmt.Errorf("interaction_limit and candidate_pool must be positive, got %d and %d",
			c.InteractionLimit, c.CandidatePool)
	}
	return nil
}
