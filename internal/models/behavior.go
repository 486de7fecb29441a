// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package models

import "time"

// BehaviorType classifies a user interaction.
type BehaviorType string

const (
	BehaviorView                  BehaviorType = "view"
	BehaviorClick                 BehaviorType = "click"
	BehaviorHover                 BehaviorType = "hover"
	BehaviorScroll                BehaviorType = "scroll"
	BehaviorSearch                BehaviorType = "search"
	BehaviorBorrow                BehaviorType = "borrow"
	BehaviorReturn                BehaviorType = "return"
	BehaviorRate                  BehaviorType = "rate"
	BehaviorReview                BehaviorType = "review"
	BehaviorBookmark              BehaviorType = "bookmark"
	BehaviorShare                 BehaviorType = "share"
	BehaviorDownload              BehaviorType = "download"
	BehaviorRead                  BehaviorType = "read"
	BehaviorRecommendationClick   BehaviorType = "recommendation_click"
	BehaviorRecommendationDismiss BehaviorType = "recommendation_dismiss"
)

// AllBehaviorTypes lists every known behavior type.
var AllBehaviorTypes = []BehaviorType{
	BehaviorView, BehaviorClick, BehaviorHover, BehaviorScroll, BehaviorSearch,
	BehaviorBorrow, BehaviorReturn, BehaviorRate, BehaviorReview, BehaviorBookmark,
	BehaviorShare, BehaviorDownload, BehaviorRead,
	BehaviorRecommendationClick, BehaviorRecommendationDismiss,
}

// Valid reports whether t is a known behavior type.
func (t BehaviorType) Valid() bool {
	for _, known := range AllBehaviorTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsImplicit reports whether t is inferred from passive interaction.
func (t BehaviorType) IsImplicit() bool {
	switch t {
	case BehaviorView, BehaviorClick, BehaviorHover, BehaviorScroll, BehaviorSearch:
		return true
	}
	return false
}

// IsHighPriority reports whether t bypasses the ingestion queue.
func (t BehaviorType) IsHighPriority() bool {
	switch t {
	case BehaviorBorrow, BehaviorRate, BehaviorReview, BehaviorShare:
		return true
	}
	return false
}

// BehaviorEvent is a single recorded interaction, optionally with an item.
type BehaviorEvent struct {
	ID               string                 `json:"id"`
	UserID           string                 `json:"user_id"`
	ItemID           string                 `json:"item_id,omitempty"`
	BehaviorType     BehaviorType           `json:"behavior_type"`
	Intensity        float64                `json:"intensity"`
	DurationSeconds  int                    `json:"duration_seconds,omitempty"`
	Context          map[string]interface{} `json:"context,omitempty"`
	SessionID        string                 `json:"session_id,omitempty"`
	RecommendationID string                 `json:"recommendation_id,omitempty"`
	ConfidenceScore  float64                `json:"confidence_score"`
	IsImplicit       bool                   `json:"is_implicit"`
	IsAnomaly        bool                   `json:"is_anomaly"`
	Processed        bool                   `json:"processed"`
	CreatedAt        time.Time              `json:"created_at"`
}

// HasItem reports whether the event references a catalog item.
func (e *BehaviorEvent) HasItem() bool {
	return e.ItemID != ""
}

// ContextString returns a string value from the event context.
func (e *BehaviorEvent) ContextString(key string) string {
	if e.Context == nil {
		return ""
	}
	if s, ok := e.Context[key].(string); ok {
		return s
	}
	return ""
}

// Anomaly kinds.
const (
	AnomalyHighFrequency = "high_frequency"
	AnomalyTypeBurst     = "type_burst"
)

// Anomaly reports suspicious activity for one actor within a window.
// ID is derived from the actor, kind, behavior type and window bucket, so
// re-scanning the same window reports the same record.
type Anomaly struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Kind         string       `json:"kind"`
	BehaviorType BehaviorType `json:"behavior_type,omitempty"`
	EventCount   int          `json:"event_count"`
	Threshold    int          `json:"threshold"`
	WindowStart  time.Time    `json:"window_start"`
	WindowEnd    time.Time    `json:"window_end"`
	EventIDs     []string     `json:"event_ids,omitempty"`
	DetectedAt   time.Time    `json:"detected_at"`
}
