// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package algorithms

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ix(user, item string, intensity float64, at time.Time) recommend.Interaction {
	return recommend.Interaction{
		UserID:    user,
		ItemID:    item,
		Type:      models.BehaviorRead,
		Intensity: intensity,
		At:        at,
	}
}

func catalog(items ...models.Item) map[string]*models.Item {
	out := make(map[string]*models.Item, len(items))
	for i := range items {
		out[items[i].ID] = &items[i]
	}
	return out
}

func scoreOf(cands []recommend.Candidate, id string) (float64, bool) {
	for _, c := range cands {
		if c.ItemID == id {
			return c.Score, true
		}
	}
	return 0, false
}

func idsOf(cands []recommend.Candidate) []string {
	ids := make([]string, len(cands))
	for i := range cands {
		ids[i] = cands[i].ItemID
	}
	return ids
}

// stubGen is a fixed-output generator for blending tests.
type stubGen struct {
	typ   models.AlgorithmType
	cands []recommend.Candidate
	err   error
}

func (s *stubGen) Type() models.AlgorithmType { return s.typ }

func (s *stubGen) Generate(_ context.Context, _ *recommend.Input) ([]recommend.Candidate, error) {
	return s.cands, s.err
}

func TestNormalizeScores(t *testing.T) {
	scores := normalizeScores(map[string]float64{"a": 4, "b": 2, "c": 1})
	if scores["a"] != 1 || scores["b"] != 0.5 || scores["c"] != 0.25 {
		t.Errorf("normalizeScores = %v", scores)
	}
	if len(normalizeScores(map[string]float64{})) != 0 {
		t.Error("empty map should stay empty")
	}
}

func TestToCandidates(t *testing.T) {
	got := toCandidates(map[string]float64{"b": 0.5, "a": 0.5, "c": 0.9, "z": 0}, nil, models.AlgorithmPopularity, 2)
	if len(got) != 2 || got[0].ItemID != "c" || got[1].ItemID != "a" {
		t.Errorf("toCandidates = %v", idsOf(got))
	}
	if got[0].Source != models.AlgorithmPopularity {
		t.Errorf("Source = %s", got[0].Source)
	}
}

func TestSimilarityHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"cosine identical", cosineSimilarity(map[string]float64{"a": 1}, map[string]float64{"a": 3}), 1},
		{"cosine disjoint", cosineSimilarity(map[string]float64{"a": 1}, map[string]float64{"b": 1}), 0},
		{"dense cosine orthogonal", denseCosine([]float64{1, 0}, []float64{0, 1}), 0},
		{"dense cosine length mismatch", denseCosine([]float64{1}, []float64{1, 0}), 0},
		{"jaccard case-insensitive", jaccardSimilarity([]string{"Epic", "desert"}, []string{"epic"}), 0.5},
		{"jaccard trims whitespace", jaccardSimilarity([]string{" Dragons "}, []string{"dragons"}), 1},
		{"jaccard empty", jaccardSimilarity(nil, []string{"a"}), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := tt.got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("got %f, want %f", tt.got, tt.want)
			}
		})
	}
}

func TestPoolSize(t *testing.T) {
	if got := poolSize(&recommend.Input{Limit: 5}); got != minPoolSize {
		t.Errorf("poolSize(5) = %d", got)
	}
	if got := poolSize(&recommend.Input{Limit: 40}); got != 200 {
		t.Errorf("poolSize(40) = %d", got)
	}
}
