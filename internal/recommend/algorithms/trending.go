// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package algorithms

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

// TrendingConfig contains configuration for the trending generator.
type TrendingConfig struct {
	// Days is the length of the recent and prior windows.
	Days float64

	// NewActivityScore is the growth assigned to items with recent
	// activity and none in the prior window.
	NewActivityScore float64
}

// DefaultTrendingConfig returns default trending configuration.
func DefaultTrendingConfig() TrendingConfig {
	return TrendingConfig{
		Days:             7,
		NewActivityScore: 2.0,
	}
}

// Trending ranks items by growth between the last N days and the N days
// before that:
//
//	growth(i) = (recent(i) - prior(i)) / prior(i)
//
// Items with no prior activity get NewActivityScore. Shrinking or flat
// items are dropped.
type Trending struct {
	config TrendingConfig
}

// NewTrending creates a new trending generator.
func NewTrending(cfg TrendingConfig) *Trending {
	def := DefaultTrendingConfig()
	if cfg.Days <= 0 {
		cfg.Days = def.Days
	}
	if cfg.NewActivityScore <= 0 {
		cfg.NewActivityScore = def.NewActivityScore
	}
	return &Trending{config: cfg}
}

// Type implements recommend.CandidateGenerator.
func (t *Trending) Type() models.AlgorithmType {
	return models.AlgorithmTrending
}

// Generate implements recommend.CandidateGenerator.
func (t *Trending) Generate(ctx context.Context, in *recommend.Input) ([]recommend.Candidate, error) {
	days := in.Param("days", t.config.Days)
	if d, ok := in.ContextNumber("days"); ok && d > 0 {
		days = d
	}
	if days <= 0 {
		days = t.config.Days
	}
	window := time.Duration(days * float64(24*time.Hour))
	recentStart := in.Now.Add(-window)
	priorStart := recentStart.Add(-window)

	seen := in.Seen()
	recent := make(map[string]float64)
	prior := make(map[string]float64)
	for i := range in.Interactions {
		it := &in.Interactions[i]
		if it.Intensity < 0 || it.At.After(in.Now) {
			continue
		}
		if _, ok := seen[it.ItemID]; ok {
			continue
		}
		switch {
		case !it.At.Before(recentStart):
			recent[it.ItemID]++
		case !it.At.Before(priorStart):
			prior[it.ItemID]++
		}
	}

	if ContextCancelled(ctx) {
		return nil, ctx.Err()
	}

	scores := make(map[string]float64, len(recent))
	reasons := make(map[string]string, len(recent))
	for id, r := range recent {
		p := prior[id]
		var growth float64
		if p == 0 {
			growth = t.config.NewActivityScore
		} else {
			growth = (r - p) / p
		}
		if growth <= 0 {
			continue
		}
		scores[id] = growth
		reasons[id] = fmt.Sprintf("Trending: %d interactions in the last %d days", int(r), int(days))
	}

	if len(scores) == 0 {
		return nil, fmt.Errorf("trending: no growing items in the last %d days: %w", int(days), models.ErrInsufficientData)
	}
	return toCandidates(scores, reasons, models.AlgorithmTrending, poolSize(in)), nil
}
