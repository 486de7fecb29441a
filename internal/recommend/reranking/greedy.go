// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package reranking

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/shelfwise/internal/recommend"
)

// Greedy builds the output list slot by slot. The first slot is always
// the top candidate. For every later slot, with probability factor, the
// next candidate whose category or author has not appeared yet is taken;
// otherwise the next highest-ranked candidate is.
type Greedy struct {
	factor float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGreedy creates a greedy diversifier. factor is clamped to [0, 1]. A
// zero seed seeds from the clock.
func NewGreedy(factor float64, seed int64) *Greedy {
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	//nolint:gosec // G404: diversification does not need a cryptographic source
	return &Greedy{factor: factor, rng: rand.New(rand.NewSource(seed))}
}

// Name returns the reranker identifier.
func (g *Greedy) Name() string {
	return "greedy"
}

// Diversify implements recommend.Diversifier.
func (g *Greedy) Diversify(ctx context.Context, items []recommend.ScoredItem, limit int) []recommend.ScoredItem {
	if len(items) == 0 || limit <= 0 {
		return nil
	}
	if limit > maxRerankSize {
		limit = maxRerankSize
	}

	remaining := dedupe(items)
	out := make([]recommend.ScoredItem, 0, min(limit, len(remaining)))
	categories := make(map[string]struct{})
	authors := make(map[string]struct{})

	take := func(i int) {
		it := remaining[i]
		out = append(out, it)
		categories[strings.ToLower(it.Item.Category)] = struct{}{}
		authors[strings.ToLower(it.Item.Author)] = struct{}{}
		remaining = append(remaining[:i], remaining[i+1:]...)
	}

	take(0)
	for len(out) < limit && len(remaining) > 0 {
		if ctx.Err() != nil {
			break
		}
		idx := 0
		if g.roll() {
			for i := range remaining {
				_, seenCat := categories[strings.ToLower(remaining[i].Item.Category)]
				_, seenAuthor := authors[strings.ToLower(remaining[i].Item.Author)]
				if !seenCat || !seenAuthor {
					idx = i
					break
				}
			}
		}
		take(idx)
	}
	return out
}

// roll reports whether this slot should prefer novelty.
func (g *Greedy) roll() bool {
	if g.factor <= 0 {
		return false
	}
	if g.factor >= 1 {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64() < g.factor
}

// dedupe copies items keeping the first occurrence of each item ID.
func dedupe(items []recommend.ScoredItem) []recommend.ScoredItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]recommend.ScoredItem, 0, len(items))
	for i := range items {
		if items[i].Item == nil {
			continue
		}
		if _, ok := seen[items[i].Item.ID]; ok {
			continue
		}
		seen[items[i].Item.ID] = struct{}{}
		out = append(out, items[i])
	}
	return out
}

// Ensure Greedy implements the interface.
var _ recommend.Diversifier = (*Greedy)(nil)
