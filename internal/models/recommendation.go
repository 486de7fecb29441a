// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package models

import (
	"fmt"
	"time"
)

// Scenario is the surface a recommendation request is served for.
type Scenario string

const (
	ScenarioHomepage    Scenario = "homepage"
	ScenarioItemDetail  Scenario = "item_detail"
	ScenarioSearch      Scenario = "search"
	ScenarioCategory    Scenario = "category"
	ScenarioTrending    Scenario = "trending"
	ScenarioNewArrivals Scenario = "new_arrivals"
	ScenarioEmail       Scenario = "email"
)

// Valid reports whether s is a known scenario.
func (s Scenario) Valid() bool {
	switch s {
	case ScenarioHomepage, ScenarioItemDetail, ScenarioSearch, ScenarioCategory,
		ScenarioTrending, ScenarioNewArrivals, ScenarioEmail:
		return true
	}
	return false
}

// RecommendationStatus is the lifecycle stage of a served recommendation.
type RecommendationStatus string

const (
	StatusGenerated RecommendationStatus = "generated"
	StatusDisplayed RecommendationStatus = "displayed"
	StatusClicked   RecommendationStatus = "clicked"
	StatusDismissed RecommendationStatus = "dismissed"
	StatusBorrowed  RecommendationStatus = "borrowed"
)

var statusTransitions = map[RecommendationStatus][]RecommendationStatus{
	StatusGenerated: {StatusDisplayed, StatusClicked, StatusDismissed},
	StatusDisplayed: {StatusClicked, StatusDismissed, StatusBorrowed},
	StatusClicked:   {StatusBorrowed},
}

// IsTerminal reports whether no further transition is possible.
func (s RecommendationStatus) IsTerminal() bool {
	return s == StatusBorrowed || s == StatusDismissed
}

// CanTransition reports whether moving from s to next is a forward step.
func (s RecommendationStatus) CanTransition(next RecommendationStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Recommendation is one item surfaced to a user by one engine invocation.
type Recommendation struct {
	ID              string               `json:"id"`
	UserID          string               `json:"user_id"`
	ItemID          string               `json:"item_id"`
	Algorithm       string               `json:"algorithm"`
	ModelID         string               `json:"model_id,omitempty"`
	Score           float64              `json:"score"`
	Rank            int                  `json:"rank"`
	Scenario        Scenario             `json:"scenario"`
	Status          RecommendationStatus `json:"status"`
	Explanation     string               `json:"explanation"`
	BatchID         string               `json:"batch_id"`
	DisplayCount    int                  `json:"display_count"`
	ClickCount      int                  `json:"click_count"`
	FeedbackScore   *float64             `json:"feedback_score,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	LastDisplayedAt *time.Time           `json:"last_displayed_at,omitempty"`
	LastClickedAt   *time.Time           `json:"last_clicked_at,omitempty"`
}

// Transition moves the recommendation to next, or returns ErrInvalidTransition.
func (r *Recommendation) Transition(next RecommendationStatus) error {
	if !r.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next)
	}
	r.Status = next
	return nil
}

// MarkDisplayed records a display. The status only advances from generated.
func (r *Recommendation) MarkDisplayed(now time.Time) {
	if r.Status == StatusGenerated {
		r.Status = StatusDisplayed
	}
	r.DisplayCount++
	r.LastDisplayedAt = &now
}

// MarkClicked records a click. Terminal recommendations keep their status.
func (r *Recommendation) MarkClicked(now time.Time) {
	if r.Status.CanTransition(StatusClicked) {
		r.Status = StatusClicked
	}
	r.ClickCount++
	r.LastClickedAt = &now
}

// FeedbackType distinguishes deliberate ratings from inferred signals.
type FeedbackType string

const (
	FeedbackExplicit FeedbackType = "explicit"
	FeedbackImplicit FeedbackType = "implicit"
)

// FeedbackDimensions are optional per-aspect ratings in [-1,1].
type FeedbackDimensions struct {
	Relevance    *float64 `json:"relevance,omitempty"`
	Satisfaction *float64 `json:"satisfaction,omitempty"`
	Interest     *float64 `json:"interest,omitempty"`
	Quality      *float64 `json:"quality,omitempty"`
}

// RecommendationFeedback is consumed exactly once by the learning step.
type RecommendationFeedback struct {
	ID               string                 `json:"id"`
	UserID           string                 `json:"user_id"`
	RecommendationID string                 `json:"recommendation_id"`
	ItemID           string                 `json:"item_id"`
	FeedbackType     FeedbackType           `json:"feedback_type"`
	FeedbackValue    float64                `json:"feedback_value"`
	Dimensions       FeedbackDimensions     `json:"dimensions"`
	Context          map[string]interface{} `json:"context,omitempty"`
	Comment          string                 `json:"comment,omitempty"`
	Processed        bool                   `json:"processed"`
	CreatedAt        time.Time              `json:"created_at"`
}

// RecommendationStats summarises serving and feedback over a time range.
type RecommendationStats struct {
	Since           time.Time                 `json:"since"`
	Until           time.Time                 `json:"until"`
	Total           int                       `json:"total"`
	ByStatus        map[string]int            `json:"by_status"`
	ByAlgorithm     map[string]AlgorithmStats `json:"by_algorithm"`
	ClickThrough    float64                   `json:"click_through_rate"`
	Conversion      float64                   `json:"conversion_rate"`
	FeedbackCount   int                       `json:"feedback_count"`
	AverageFeedback float64                   `json:"average_feedback"`
	BehaviorCounts  map[string]int            `json:"behavior_counts"`
	Batches         int                       `json:"batches"`

	// DegradedServed counts fallback responses since process start.
	DegradedServed int `json:"degraded_served"`
}

// AlgorithmStats is the per-algorithm slice of RecommendationStats.
type AlgorithmStats struct {
	Served  int     `json:"served"`
	Clicked int     `json:"clicked"`
	CTR     float64 `json:"ctr"`
}
