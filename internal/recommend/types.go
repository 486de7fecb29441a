// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package recommend

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/tomtom215/shelfwise/internal/models"
)

// Interaction is one user-item signal derived from a behavior event.
type Interaction struct {
	// UserID is the actor.
	UserID string `json:"user_id"`

	// ItemID is the catalog item the behavior referenced.
	ItemID string `json:"item_id"`

	// Type is the behavior that produced the signal.
	Type models.BehaviorType `json:"type"`

	// Intensity is the event intensity (0-5, negative for dismissals).
	Intensity float64 `json:"intensity"`

	// Context is the event context (device, session quality, ...).
	Context map[string]interface{} `json:"context,omitempty"`

	// At is when the behavior happened.
	At time.Time `json:"at"`
}

// InteractionFromEvent converts a behavior event. ok is false for events
// without an item reference.
func InteractionFromEvent(e *models.BehaviorEvent) (Interaction, bool) {
	if !e.HasItem() {
		return Interaction{}, false
	}
	return Interaction{
		UserID:    e.UserID,
		ItemID:    e.ItemID,
		Type:      e.BehaviorType,
		Intensity: e.Intensity,
		Context:   e.Context,
		At:        e.CreatedAt,
	}, true
}

// Input is everything a candidate generator may read. The engine builds it
// once per request; generators must treat it as read-only.
type Input struct {
	// UserID is the target user. Empty for anonymous item-to-item requests.
	UserID string

	// History holds the target user's own interactions, newest first.
	History []Interaction

	// Interactions holds population interactions within the history
	// window, newest first. Events flagged anomalous are excluded.
	Interactions []Interaction

	// Items is the catalog snapshot keyed by item ID.
	Items map[string]*models.Item

	// Preference is the user's preference, nil for unknown users.
	Preference *models.UserPreference

	// Context is the request context (device, hour, ...).
	Context map[string]interface{}

	// SeedItemID anchors "similar to this" requests.
	SeedItemID string

	// Limit is the number of items the caller will display.
	Limit int

	// Now is the request time.
	Now time.Time

	// Hyperparameters are the selected algorithm's hyperparameters.
	Hyperparameters map[string]float64
}

// Param returns a hyperparameter or def when unset.
func (in *Input) Param(name string, def float64) float64 {
	if v, ok := in.Hyperparameters[name]; ok {
		return v
	}
	return def
}

// Seen returns the set of items the user has interacted with.
func (in *Input) Seen() map[string]struct{} {
	seen := make(map[string]struct{}, len(in.History))
	for i := range in.History {
		seen[in.History[i].ItemID] = struct{}{}
	}
	return seen
}

// ContextString returns a string value from the request context.
func (in *Input) ContextString(key string) string {
	if s, ok := in.Context[key].(string); ok {
		return s
	}
	return ""
}

// ContextNumber returns a numeric value from the request context. JSON
// decoding yields float64; callers in-process may pass ints.
func (in *Input) ContextNumber(key string) (float64, bool) {
	switch v := in.Context[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Candidate is one scored item proposed by a generator.
type Candidate struct {
	ItemID string               `json:"item_id"`
	Score  float64              `json:"score"`
	Reason string               `json:"reason,omitempty"`
	Source models.AlgorithmType `json:"source"`
}

// CandidateGenerator is one algorithm family.
type CandidateGenerator interface {
	// Type is the algorithm family this generator serves.
	Type() models.AlgorithmType

	// Generate proposes scored candidates. ErrInsufficientData (wrapped)
	// means the family cannot run for this user yet.
	Generate(ctx context.Context, in *Input) ([]Candidate, error)
}

// ScoredItem is a filtered candidate joined with its catalog record.
type ScoredItem struct {
	Item *models.Item

	// RawScore is the generator score; Score is the ranked score.
	RawScore float64
	Score    float64

	Reason string
	Source models.AlgorithmType
}

// Diversifier reorders a ranked list and truncates it to limit.
type Diversifier interface {
	Name() string
	Diversify(ctx context.Context, items []ScoredItem, limit int) []ScoredItem
}

// Request is one engine invocation.
type Request struct {
	UserID   string          `json:"user_id"`
	Scenario models.Scenario `json:"scenario"`

	// Algorithm optionally requests an algorithm by name, ID or type.
	Algorithm string `json:"algorithm,omitempty"`

	Limit int `json:"limit,omitempty"`

	// Exclude lists item IDs never to return.
	Exclude []string `json:"exclude,omitempty"`

	SeedItemID string `json:"seed_item_id,omitempty"`

	// CreatedAfter restricts results to items added after this time.
	CreatedAfter time.Time `json:"created_after,omitempty"`

	Context map[string]interface{} `json:"context,omitempty"`
}

// Result is the engine output. Items are persisted with status generated.
type Result struct {
	UserID    string                  `json:"user_id"`
	Scenario  models.Scenario         `json:"scenario"`
	Algorithm string                  `json:"algorithm"`
	Type      models.AlgorithmType    `json:"algorithm_type"`
	BatchID   string                  `json:"batch_id"`
	Items     []models.Recommendation `json:"items"`
	Degraded  bool                    `json:"degraded"`
	CacheHit  bool                    `json:"cache_hit"`
	Metadata  ResultMetadata          `json:"metadata"`
}

// ResultMetadata carries diagnostics. Engine errors never fail a request;
// they are reported here.
type ResultMetadata struct {
	RequestedAlgorithm string    `json:"requested_algorithm,omitempty"`
	SelectionReason    string    `json:"selection_reason"`
	Fallback           string    `json:"fallback,omitempty"`
	Errors             []string  `json:"errors,omitempty"`
	Candidates         int       `json:"candidates"`
	Filtered           int       `json:"filtered"`
	Persisted          bool      `json:"persisted"`
	LatencyMS          int64     `json:"latency_ms"`
	GeneratedAt        time.Time `json:"generated_at"`
}

func (m *ResultMetadata) addError(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err.Error())
	}
}

// Assigner chooses among the enabled algorithms for a scenario, ordered by
// priority. candidates is never empty.
type Assigner interface {
	Assign(userID string, scenario models.Scenario, candidates []models.AlgorithmConfig) models.AlgorithmConfig
}

// FirstAssigner always picks the highest-priority algorithm.
type FirstAssigner struct{}

// Assign implements Assigner.
func (FirstAssigner) Assign(_ string, _ models.Scenario, candidates []models.AlgorithmConfig) models.AlgorithmConfig {
	return candidates[0]
}

// HashAssigner splits users across the candidates by a stable hash of the
// user and scenario, so a user sees the same variant on every request.
type HashAssigner struct{}

// Assign implements Assigner.
func (HashAssigner) Assign(userID string, scenario models.Scenario, candidates []models.AlgorithmConfig) models.AlgorithmConfig {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(scenario))
	return candidates[h.Sum32()%uint32(len(candidates))]
}
