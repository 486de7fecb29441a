// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package algorithms

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

// hoursPerBand splits the day into four bands.
const hoursPerBand = 6

// Contextual ranks items by popularity among interactions that happened
// in the same hour-of-day band, and on the same device when the request
// names one. The hour comes from the request context "hour" key, else
// from the request time (UTC).
type Contextual struct{}

// NewContextual creates a new contextual generator.
func NewContextual() *Contextual {
	return &Contextual{}
}

// Type implements recommend.CandidateGenerator.
func (c *Contextual) Type() models.AlgorithmType {
	return models.AlgorithmContextual
}

// Generate implements recommend.CandidateGenerator.
func (c *Contextual) Generate(ctx context.Context, in *recommend.Input) ([]recommend.Candidate, error) {
	band := requestHour(in) / hoursPerBand
	device := in.ContextString("device")

	seen := in.Seen()
	scores := make(map[string]float64)
	for i := range in.Interactions {
		it := &in.Interactions[i]
		if it.Intensity < 0 {
			continue
		}
		if it.At.UTC().Hour()/hoursPerBand != band {
			continue
		}
		if device != "" && !strings.EqualFold(interactionDevice(it), device) {
			continue
		}
		if _, ok := seen[it.ItemID]; ok {
			continue
		}
		scores[it.ItemID]++
	}

	if ContextCancelled(ctx) {
		return nil, ctx.Err()
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("contextual: no interactions in hour band %d: %w", band, models.ErrInsufficientData)
	}
	return toCandidates(normalizeScores(scores), nil, models.AlgorithmContextual, poolSize(in)), nil
}

// requestHour reads the hour from the request context. JSON numbers
// arrive as float64.
func requestHour(in *recommend.Input) int {
	v, ok := in.ContextNumber("hour")
	if !ok {
		return in.Now.UTC().Hour()
	}
	h := int(v)
	if h < 0 || h > 23 {
		return in.Now.UTC().Hour()
	}
	return h
}

func interactionDevice(it *recommend.Interaction) string {
	if s, ok := it.Context["device"].(string); ok {
		return s
	}
	return ""
}
