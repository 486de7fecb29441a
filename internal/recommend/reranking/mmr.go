// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package reranking

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/shelfwise/internal/recommend"
)

// maxRerankSize limits slice allocations to prevent excessive memory usage.
// This is a defense-in-depth measure; k is also bounded by len(items).
const maxRerankSize = 10000

// Strategy names accepted by New.
const (
	StrategyGreedy = "greedy"
	StrategyMMR    = "mmr"
)

// New builds the diversifier for a configured strategy. diversityFactor is
// the greedy novelty probability, or 1-lambda for MMR.
func New(strategy string, diversityFactor float64, seed int64) (recommend.Diversifier, error) {
	switch strategy {
	case "", StrategyGreedy:
		return NewGreedy(diversityFactor, seed), nil
	case StrategyMMR:
		return NewMMR(1 - diversityFactor), nil
	default:
		return nil, fmt.Errorf("unknown diversity strategy %q", strategy)
	}
}

// MMR implements Maximal Marginal Relevance reranking.
// It balances relevance and diversity by iteratively selecting items
// that are both relevant and dissimilar to already selected items.
//
// The MMR formula is:
//
//	MMR = argmax[lambda * score(i) - (1-lambda) * max(sim(i, s)) for s in selected]
//
// Where:
//   - lambda: balance parameter (1.0 = pure relevance, 0.0 = pure diversity)
//   - score(i): ranked score for item i
//   - sim(i, s): Jaccard similarity of category, author and tags
//
// Reference:
// Carbonell, J., & Goldstein, J. (1998). "The Use of MMR, Diversity-Based
// Reranking for Reordering Documents and Producing Summaries." SIGIR 1998.
type MMR struct {
	// Lambda balances relevance vs. diversity (0.0 to 1.0)
	lambda float64
}

// NewMMR creates a new MMR reranker.
func NewMMR(lambda float64) *MMR {
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	return &MMR{lambda: lambda}
}

// Name returns the reranker identifier.
func (m *MMR) Name() string {
	return "mmr"
}

// Diversify implements recommend.Diversifier.
func (m *MMR) Diversify(ctx context.Context, items []recommend.ScoredItem, k int) []recommend.ScoredItem {
	items = dedupe(items)
	if len(items) == 0 || k <= 0 {
		return nil
	}

	// Bound k to prevent excessive memory allocation
	if k > maxRerankSize {
		k = maxRerankSize
	}
	if k > len(items) {
		k = len(items)
	}

	// Early return if lambda is 1.0 (pure relevance)
	if m.lambda >= 1.0 {
		return items[:k]
	}

	similarities := m.buildSimilarityMatrix(items)

	// Greedy MMR selection
	selected := make([]recommend.ScoredItem, 0, k)
	selectedIndices := make(map[int]struct{})

	for len(selected) < k {
		if ctx.Err() != nil {
			break
		}
		bestIdx := -1
		bestMMR := 0.0

		for i := range items {
			if _, ok := selectedIndices[i]; ok {
				continue // Already selected
			}

			maxSim := 0.0
			for j := range selectedIndices {
				if sim := similarities[i][j]; sim > maxSim {
					maxSim = sim
				}
			}

			mmrScore := m.lambda*items[i].Score - (1-m.lambda)*maxSim
			if bestIdx < 0 || mmrScore > bestMMR {
				bestMMR = mmrScore
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			break
		}

		selected = append(selected, items[bestIdx])
		selectedIndices[bestIdx] = struct{}{}
	}

	return selected
}

// buildSimilarityMatrix computes pairwise attribute similarity.
func (m *MMR) buildSimilarityMatrix(items []recommend.ScoredItem) [][]float64 {
	n := len(items)
	attrs := make([]map[string]struct{}, n)
	for i := range items {
		attrs[i] = attributes(items[i])
	}

	similarities := make([][]float64, n)
	for i := range similarities {
		similarities[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim := jaccard(attrs[i], attrs[j])
			similarities[i][j] = sim
			similarities[j][i] = sim
		}
	}

	return similarities
}

// attributes returns the lowercased category, author and tags of an item
// as one namespaced set.
func attributes(it recommend.ScoredItem) map[string]struct{} {
	set := make(map[string]struct{}, len(it.Item.Tags)+2)
	if it.Item.Category != "" {
		set["c:"+strings.ToLower(it.Item.Category)] = struct{}{}
	}
	if it.Item.Author != "" {
		set["a:"+strings.ToLower(it.Item.Author)] = struct{}{}
	}
	for _, tag := range it.Item.Tags {
		set["t:"+strings.ToLower(tag)] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Ensure MMR implements the interface.
var _ recommend.Diversifier = (*MMR)(nil)
