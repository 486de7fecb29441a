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

// maxRating is the top of the catalog rating scale.
const maxRating = 5.0

// PopularityConfig contains configuration for the popularity generator.
type PopularityConfig struct {
	// Days restricts counting to the last N days of the interaction
	// window. Zero counts the whole window. The "days" hyperparameter
	// overrides it.
	Days float64
}

// Popularity implements a popularity-based recommendation algorithm.
// It ranks items by recent interaction volume and reach, providing the
// baseline for cold-start users and the fallback when other families fail:
//
//	score(item) = interactions(item) + unique_readers(item)
//
// Scores are scaled so the most popular item scores 1. Without any
// interactions the catalog rating is used instead.
type Popularity struct {
	config PopularityConfig
}

// NewPopularity creates a new popularity generator.
func NewPopularity(cfg PopularityConfig) *Popularity {
	if cfg.Days < 0 {
		cfg.Days = 0
	}
	return &Popularity{config: cfg}
}

// Type implements recommend.CandidateGenerator.
func (p *Popularity) Type() models.AlgorithmType {
	return models.AlgorithmPopularity
}

// Generate implements recommend.CandidateGenerator.
func (p *Popularity) Generate(ctx context.Context, in *recommend.Input) ([]recommend.Candidate, error) {
	var since time.Time
	if days := in.Param("days", p.config.Days); days > 0 {
		since = in.Now.Add(-time.Duration(days * float64(24*time.Hour)))
	}

	seen := in.Seen()
	counts := make(map[string]float64)
	readers := make(map[string]map[string]struct{})

	for i := range in.Interactions {
		it := &in.Interactions[i]
		if it.Intensity < 0 {
			continue
		}
		if !since.IsZero() && it.At.Before(since) {
			continue
		}
		if _, ok := seen[it.ItemID]; ok {
			continue
		}
		counts[it.ItemID]++
		if readers[it.ItemID] == nil {
			readers[it.ItemID] = make(map[string]struct{})
		}
		readers[it.ItemID][it.UserID] = struct{}{}
	}

	if ContextCancelled(ctx) {
		return nil, ctx.Err()
	}

	if len(counts) == 0 {
		return p.byRating(in, seen)
	}

	scores := make(map[string]float64, len(counts))
	for id, n := range counts {
		scores[id] = n + float64(len(readers[id]))
	}
	return toCandidates(normalizeScores(scores), nil, models.AlgorithmPopularity, poolSize(in)), nil
}

// byRating ranks the catalog snapshot by rating.
func (p *Popularity) byRating(in *recommend.Input, seen map[string]struct{}) ([]recommend.Candidate, error) {
	scores := make(map[string]float64)
	reasons := make(map[string]string)
	for id, item := range in.Items {
		if _, ok := seen[id]; ok || id == in.SeedItemID {
			continue
		}
		if item.Rating > 0 {
			scores[id] = item.Rating / maxRating
			reasons[id] = fmt.Sprintf("Rated %.1f by readers", item.Rating)
		}
	}
	return toCandidates(scores, reasons, models.AlgorithmPopularity, poolSize(in)), nil
}
