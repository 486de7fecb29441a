// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package algorithms

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

// SequentialConfig contains configuration for the sequential generator.
type SequentialConfig struct {
	// SessionWindow is the maximum gap between two interactions for them
	// to count as a transition.
	// Default: 6 hours.
	SessionWindow time.Duration

	// MinTransitionCount is the minimum number of times a transition must
	// occur to be proposed.
	// Default: 1.
	MinTransitionCount int
}

// DefaultSequentialConfig returns default sequential configuration.
func DefaultSequentialConfig() SequentialConfig {
	return SequentialConfig{
		SessionWindow:      6 * time.Hour,
		MinTransitionCount: 1,
	}
}

// Sequential implements a first-order Markov chain over reading sessions.
// It answers "given that a reader just picked up X, what do readers pick
// up next?":
//
//	P(next | last) = count(last -> next) / count(last -> any)
//
// The anchor is the seed item when given, else the user's most recent
// item. Transitions are counted across the population per request.
type Sequential struct {
	config SequentialConfig
}

// NewSequential creates a new sequential generator.
func NewSequential(cfg SequentialConfig) *Sequential {
	def := DefaultSequentialConfig()
	if cfg.SessionWindow <= 0 {
		cfg.SessionWindow = def.SessionWindow
	}
	if cfg.MinTransitionCount <= 0 {
		cfg.MinTransitionCount = def.MinTransitionCount
	}
	return &Sequential{config: cfg}
}

// Type implements recommend.CandidateGenerator.
func (s *Sequential) Type() models.AlgorithmType {
	return models.AlgorithmSequential
}

// Generate implements recommend.CandidateGenerator.
func (s *Sequential) Generate(ctx context.Context, in *recommend.Input) ([]recommend.Candidate, error) {
	anchor := in.SeedItemID
	if anchor == "" && len(in.History) > 0 {
		anchor = in.History[0].ItemID
	}
	if anchor == "" {
		return nil, fmt.Errorf("sequential: no anchor item: %w", models.ErrInsufficientData)
	}

	next := s.transitionsFrom(anchor, in.Interactions)
	if ContextCancelled(ctx) {
		return nil, ctx.Err()
	}

	var total int
	for _, n := range next {
		total += n
	}

	seen := in.Seen()
	scores := make(map[string]float64, len(next))
	reasons := make(map[string]string, len(next))
	reason := ""
	if title := itemTitle(in, anchor); title != "" {
		reason = "Readers often pick this up after " + title
	}
	for id, n := range next {
		if n < s.config.MinTransitionCount {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		scores[id] = float64(n) / float64(total)
		reasons[id] = reason
	}

	if len(scores) == 0 {
		return nil, fmt.Errorf("sequential: no transitions from %s: %w", anchor, models.ErrInsufficientData)
	}
	return toCandidates(scores, reasons, models.AlgorithmSequential, poolSize(in)), nil
}

// transitionsFrom counts next items after anchor within each reader's
// sessions.
func (s *Sequential) transitionsFrom(anchor string, interactions []recommend.Interaction) map[string]int {
	byUser := make(map[string][]*recommend.Interaction)
	for i := range interactions {
		it := &interactions[i]
		if it.Intensity < 0 {
			continue
		}
		byUser[it.UserID] = append(byUser[it.UserID], it)
	}

	next := make(map[string]int)
	for _, seq := range byUser {
		sort.SliceStable(seq, func(i, j int) bool {
			return seq[i].At.Before(seq[j].At)
		})
		for i := 0; i+1 < len(seq); i++ {
			from, to := seq[i], seq[i+1]
			if from.ItemID != anchor || to.ItemID == anchor {
				continue
			}
			if to.At.Sub(from.At) > s.config.SessionWindow {
				continue
			}
			next[to.ItemID]++
		}
	}
	return next
}
