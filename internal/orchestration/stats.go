// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package orchestration

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/shelfwise/internal/metrics"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/store"
)

// GetStatistics aggregates serving, feedback and behavior activity in
// [since, until). A zero until means now.
func (s *Service) GetStatistics(ctx context.Context, since, until time.Time) (*models.RecommendationStats, error) {
	if until.IsZero() {
		until = s.clock().UTC()
	}
	if !since.Before(until) {
		return nil, fmt.Errorf("%w: since must be before until", models.ErrInvalidRequest)
	}

	var (
		recs     []models.Recommendation
		feedback []models.RecommendationFeedback
		behavior []models.BehaviorEvent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recs, err = s.store.FindRecommendations(gctx, store.RecommendationFilter{
			CreatedAfter:  since,
			CreatedBefore: until,
		})
		if err != nil {
			return fmt.Errorf("load recommendations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		feedback, err = s.store.FindFeedback(gctx, store.FeedbackFilter{Since: since, Until: until})
		if err != nil {
			return fmt.Errorf("load feedback: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		behavior, err = s.store.FindEvents(gctx, store.EventFilter{Since: since, Until: until})
		if err != nil {
			return fmt.Errorf("load behavior events: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := aggregate(recs, feedback, behavior)
	stats.Since = since
	stats.Until = until
	stats.DegradedServed = int(metrics.DegradedCount())
	return stats, nil
}

// aggregate computes the statistics. Click-through and conversion are
// relative to recommendations that were displayed or acted on.
func aggregate(recs []models.Recommendation, feedback []models.RecommendationFeedback, behavior []models.BehaviorEvent) *models.RecommendationStats {
	stats := &models.RecommendationStats{
		Total:          len(recs),
		ByStatus:       make(map[string]int),
		ByAlgorithm:    make(map[string]models.AlgorithmStats),
		BehaviorCounts: make(map[string]int),
	}

	batches := make(map[string]struct{})
	var shown, clicked, borrowed int
	for i := range recs {
		r := &recs[i]
		stats.ByStatus[string(r.Status)]++
		batches[r.BatchID] = struct{}{}

		wasClicked := r.ClickCount > 0 || r.Status == models.StatusClicked
		if r.Status != models.StatusGenerated || r.DisplayCount > 0 {
			shown++
		}
		if wasClicked {
			clicked++
		}
		if r.Status == models.StatusBorrowed {
			borrowed++
		}

		as := stats.ByAlgorithm[r.Algorithm]
		as.Served++
		if wasClicked {
			as.Clicked++
		}
		stats.ByAlgorithm[r.Algorithm] = as
	}
	for name, as := range stats.ByAlgorithm {
		as.CTR = ratio(as.Clicked, as.Served)
		stats.ByAlgorithm[name] = as
	}
	stats.Batches = len(batches)
	stats.ClickThrough = ratio(clicked, shown)
	stats.Conversion = ratio(borrowed, shown)

	stats.FeedbackCount = len(feedback)
	if len(feedback) > 0 {
		sum := 0.0
		for i := range feedback {
			sum += feedback[i].FeedbackValue
		}
		stats.AverageFeedback = sum / float64(len(feedback))
	}

	for i := range behavior {
		stats.BehaviorCounts[string(behavior[i].BehaviorType)]++
	}
	return stats
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
