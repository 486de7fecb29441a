// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package algorithms

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

// minPoolSize is the smallest candidate list a generator returns. The
// engine filters after generation, so generators over-fetch.
const minPoolSize = 50

// poolSize returns how many candidates to return for a request.
func poolSize(in *recommend.Input) int {
	n := in.Limit * 5
	if n < minPoolSize {
		return minPoolSize
	}
	return n
}

// normalizeScores scales scores by the maximum so the best item scores 1
// and every positive score stays positive.
func normalizeScores(scores map[string]float64) map[string]float64 {
	if len(scores) == 0 {
		return scores
	}

	var maxScore float64
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore <= 0 {
		return scores
	}

	for id, s := range scores {
		scores[id] = s / maxScore
	}
	return scores
}

// toCandidates turns a score map into a sorted candidate list. Ties are
// broken by item ID so output is deterministic.
func toCandidates(scores map[string]float64, reasons map[string]string, source models.AlgorithmType, limit int) []recommend.Candidate {
	out := make([]recommend.Candidate, 0, len(scores))
	for id, s := range scores {
		if s <= 0 {
			continue
		}
		out = append(out, recommend.Candidate{
			ItemID: id,
			Score:  s,
			Reason: reasons[id],
			Source: source,
		})
	}
	sortCandidates(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortCandidates(c []recommend.Candidate) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		return c[i].ItemID < c[j].ItemID
	})
}

// vectors groups positive intensities by key, keeping the strongest
// signal per (key, value) pair.
type vectors map[string]map[string]float64

func (v vectors) add(key, id string, intensity float64) {
	if intensity <= 0 {
		return
	}
	vec := v[key]
	if vec == nil {
		vec = make(map[string]float64)
		v[key] = vec
	}
	if intensity > vec[id] {
		vec[id] = intensity
	}
}

// userVectors builds user -> item -> intensity.
func userVectors(interactions []recommend.Interaction) vectors {
	v := make(vectors)
	for i := range interactions {
		v.add(interactions[i].UserID, interactions[i].ItemID, interactions[i].Intensity)
	}
	return v
}

// itemVectors builds item -> user -> intensity.
func itemVectors(interactions []recommend.Interaction) vectors {
	v := make(vectors)
	for i := range interactions {
		v.add(interactions[i].ItemID, interactions[i].UserID, interactions[i].Intensity)
	}
	return v
}

// cosineSimilarity computes cosine similarity between two sparse vectors.
func cosineSimilarity(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}

	var dot float64
	for k, va := range a {
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	if dot == 0 {
		return 0
	}

	return dot / (norm(a) * norm(b))
}

func norm(v map[string]float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// denseCosine computes cosine similarity between two dense vectors.
func denseCosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// jaccardSimilarity computes case-insensitive Jaccard similarity between
// two string sets.
func jaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, s := range b {
		setB[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	intersection := 0
	for s := range setA {
		if _, ok := setB[s]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// itemTitle returns the catalog title of id, or "".
func itemTitle(in *recommend.Input, id string) string {
	if item := in.Items[id]; item != nil {
		return item.Title
	}
	return ""
}

// Ensure all generators implement the interface.
var (
	_ recommend.CandidateGenerator = (*UserCF)(nil)
	_ recommend.CandidateGenerator = (*ItemCF)(nil)
	_ recommend.CandidateGenerator = (*Content)(nil)
	_ recommend.CandidateGenerator = (*Popularity)(nil)
	_ recommend.CandidateGenerator = (*Trending)(nil)
	_ recommend.CandidateGenerator = (*Hybrid)(nil)
	_ recommend.CandidateGenerator = (*Embedding)(nil)
	_ recommend.CandidateGenerator = (*Sequential)(nil)
	_ recommend.CandidateGenerator = (*Contextual)(nil)
)

// ContextCancelled checks if the context has been canceled.
func ContextCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
