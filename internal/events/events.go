// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package events

import (
	"time"

	"github.com/tomtom215/shelfwise/internal/models"
)

// Topics carried by the bus.
const (
	TopicBehaviorTracked = "behavior.tracked"
	TopicHighPriority    = "behavior.high_priority"
)

// BehaviorTracked is published once an event has been persisted.
type BehaviorTracked struct {
	EventID          string              `json:"event_id"`
	UserID           string              `json:"user_id"`
	ItemID           string              `json:"item_id,omitempty"`
	BehaviorType     models.BehaviorType `json:"behavior_type"`
	Intensity        float64             `json:"intensity"`
	RecommendationID string              `json:"recommendation_id,omitempty"`
	OccurredAt       time.Time           `json:"occurred_at"`
}

// HighPriorityBehavior is published for borrow, rate, review and share
// events. Consumers drop cached recommendations for the user.
type HighPriorityBehavior struct {
	EventID      string              `json:"event_id"`
	UserID       string              `json:"user_id"`
	ItemID       string              `json:"item_id,omitempty"`
	BehaviorType models.BehaviorType `json:"behavior_type"`
	OccurredAt   time.Time           `json:"occurred_at"`
}

// NewBehaviorTracked builds the notification for a stored event.
func NewBehaviorTracked(e *models.BehaviorEvent) BehaviorTracked {
	return BehaviorTracked{
		EventID:          e.ID,
		UserID:           e.UserID,
		ItemID:           e.ItemID,
		BehaviorType:     e.BehaviorType,
		Intensity:        e.Intensity,
		RecommendationID: e.RecommendationID,
		OccurredAt:       e.CreatedAt,
	}
}

// NewHighPriorityBehavior builds the invalidation notification for e.
func NewHighPriorityBehavior(e *models.BehaviorEvent) HighPriorityBehavior {
	return HighPriorityBehavior{
		EventID:      e.ID,
		UserID:       e.UserID,
		ItemID:       e.ItemID,
		BehaviorType: e.BehaviorType,
		OccurredAt:   e.CreatedAt,
	}
}
