// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package algorithms

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

// Component is one weighted member of a hybrid.
type Component struct {
	Generator recommend.CandidateGenerator
	Weight    float64
}

// Hybrid blends several generators run concurrently:
//
//	score(i) = sum_c weight(c) * score_c(i)
//
// The union of all component candidates is returned. A failing component
// is skipped; Generate only fails when every component fails.
type Hybrid struct {
	components []Component
}

// NewHybrid creates a hybrid from explicit components. Components with a
// nil generator or non-positive weight are ignored.
func NewHybrid(components ...Component) *Hybrid {
	h := &Hybrid{}
	for _, c := range components {
		if c.Generator != nil && c.Weight > 0 {
			h.components = append(h.components, c)
		}
	}
	return h
}

// NewDefaultHybrid blends user-based CF (0.5), content (0.3) and
// popularity (0.2).
func NewDefaultHybrid(userCF *UserCF, content *Content, popularity *Popularity) *Hybrid {
	return NewHybrid(
		Component{Generator: userCF, Weight: 0.5},
		Component{Generator: content, Weight: 0.3},
		Component{Generator: popularity, Weight: 0.2},
	)
}

// Type implements recommend.CandidateGenerator.
func (h *Hybrid) Type() models.AlgorithmType {
	return models.AlgorithmHybrid
}

// Generate implements recommend.CandidateGenerator.
func (h *Hybrid) Generate(ctx context.Context, in *recommend.Input) ([]recommend.Candidate, error) {
	if len(h.components) == 0 {
		return nil, errors.New("hybrid: no components")
	}

	results := make([][]recommend.Candidate, len(h.components))
	errs := make([]error, len(h.components))

	// Component errors are collected, not returned, so one failure does not
	// cancel its siblings.
	g, gctx := errgroup.WithContext(ctx)
	for i := range h.components {
		g.Go(func() error {
			results[i], errs[i] = h.components[i].Generator.Generate(gctx, in)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores := make(map[string]float64)
	best := make(map[string]float64)
	reasons := make(map[string]string)
	var failed []error
	for i, c := range h.components {
		if errs[i] != nil {
			failed = append(failed, errs[i])
			continue
		}
		for _, cand := range results[i] {
			contribution := c.Weight * cand.Score
			scores[cand.ItemID] += contribution
			if contribution > best[cand.ItemID] && cand.Reason != "" {
				best[cand.ItemID] = contribution
				reasons[cand.ItemID] = cand.Reason
			}
		}
	}

	if len(failed) == len(h.components) {
		return nil, fmt.Errorf("hybrid: all components failed: %w", errors.Join(failed...))
	}
	return toCandidates(scores, reasons, models.AlgorithmHybrid, poolSize(in)), nil
}
