// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package api

import (
	"time"

	"github.com/tomtom215/shelfwise/internal/ingest"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/orchestration"
)

// Request bodies and query structs, validated with go-playground/validator
// before they reach the services. Domain rules that the services already
// enforce (behavior type, feedback range) are checked again here so the
// client gets a field-level VALIDATION_ERROR.

// TrackEventRequest is the body of POST /events.
type TrackEventRequest struct {
	UserID           string                 `json:"user_id" validate:"required,max=128"`
	ItemID           string                 `json:"item_id" validate:"max=128"`
	BehaviorType     string                 `json:"behavior_type" validate:"required,behavior_type"`
	Intensity        float64                `json:"intensity"`
	DurationSeconds  int                    `json:"duration_seconds" validate:"gte=0"`
	SessionID        string                 `json:"session_id" validate:"max=128"`
	RecommendationID string                 `json:"recommendation_id" validate:"max=128"`
	Context          map[string]interface{} `json:"context"`
}

func (r *TrackEventRequest) toEvent() *models.BehaviorEvent {
	return &models.BehaviorEvent{
		UserID:           r.UserID,
		ItemID:           r.ItemID,
		BehaviorType:     models.BehaviorType(r.BehaviorType),
		Intensity:        r.Intensity,
		DurationSeconds:  r.DurationSeconds,
		SessionID:        r.SessionID,
		RecommendationID: r.RecommendationID,
		Context:          r.Context,
	}
}

// TrackBatchRequest is the body of POST /events/batch. Individual events
// are validated by the pipeline so one bad event does not reject the batch.
type TrackBatchRequest struct {
	Events []TrackEventRequest `json:"events" validate:"required,min=1,max=500"`
}

// TrackSearchRequest is the body of POST /events/search.
type TrackSearchRequest struct {
	UserID      string                 `json:"user_id" validate:"required,max=128"`
	Query       string                 `json:"query" validate:"required,max=512"`
	ResultCount int                    `json:"result_count" validate:"gte=0"`
	Context     map[string]interface{} `json:"context"`
}

// ReadingSessionRequest is the body of POST /events/reading-sessions.
type ReadingSessionRequest struct {
	UserID             string                 `json:"user_id" validate:"required,max=128"`
	ItemID             string                 `json:"item_id" validate:"required,max=128"`
	StartTime          time.Time              `json:"start_time" validate:"required"`
	EndTime            time.Time              `json:"end_time" validate:"required"`
	PagesRead          int                    `json:"pages_read" validate:"gte=0"`
	ProgressPercentage float64                `json:"progress_percentage" validate:"gte=0,lte=100"`
	Interruptions      int                    `json:"interruptions" validate:"gte=0"`
	Context            map[string]interface{} `json:"context"`
}

func (r *ReadingSessionRequest) session() ingest.ReadingSession {
	return ingest.ReadingSession{
		StartTime:          r.StartTime,
		EndTime:            r.EndTime,
		PagesRead:          r.PagesRead,
		ProgressPercentage: r.ProgressPercentage,
		Interruptions:      r.Interruptions,
	}
}

// AnomalyScanRequest is the body of POST /anomalies/scan. An empty user
// scans every actor.
type AnomalyScanRequest struct {
	UserID string `json:"user_id" validate:"max=128"`
	Window string `json:"window" validate:"omitempty,max=16"`
}

// RecommendationsQuery holds the query parameters of
// GET /users/{userID}/recommendations.
type RecommendationsQuery struct {
	Scenario  string   `json:"scenario" validate:"omitempty,scenario"`
	Algorithm string   `json:"algorithm" validate:"max=64"`
	Limit     int      `json:"limit" validate:"gte=0,lte=1000"`
	Refresh   bool     `json:"refresh"`
	Exclude   []string `json:"exclude" validate:"max=500"`
}

func (q *RecommendationsQuery) options() orchestration.Options {
	return orchestration.Options{
		Scenario:     models.Scenario(q.Scenario),
		Algorithm:    q.Algorithm,
		Limit:        q.Limit,
		ForceRefresh: q.Refresh,
		Exclude:      q.Exclude,
	}
}

// ListQuery holds limit and window parameters shared by the similar,
// trending and new-arrivals endpoints.
type ListQuery struct {
	UserID string `json:"user_id" validate:"max=128"`
	Limit  int    `json:"limit" validate:"gte=0,lte=1000"`
	Days   int    `json:"days" validate:"gte=0,lte=3650"`
}

// ClickRequest is the optional body of POST /recommendations/{id}/click.
type ClickRequest struct {
	Context map[string]interface{} `json:"context"`
}

// FeedbackDimensionsRequest mirrors models.FeedbackDimensions.
type FeedbackDimensionsRequest struct {
	Relevance    *float64 `json:"relevance" validate:"omitempty,signed_unit"`
	Satisfaction *float64 `json:"satisfaction" validate:"omitempty,signed_unit"`
	Interest     *float64 `json:"interest" validate:"omitempty,signed_unit"`
	Quality      *float64 `json:"quality" validate:"omitempty,signed_unit"`
}

// FeedbackRequest is the body of POST /recommendations/{id}/feedback.
type FeedbackRequest struct {
	FeedbackType  string                    `json:"feedback_type" validate:"omitempty,oneof=explicit implicit"`
	FeedbackValue *float64                  `json:"feedback_value" validate:"required,signed_unit"`
	Dimensions    FeedbackDimensionsRequest `json:"dimensions"`
	Comment       string                    `json:"comment" validate:"max=2000"`
	Context       map[string]interface{}    `json:"context"`
}

func (r *FeedbackRequest) input() orchestration.FeedbackInput {
	return orchestration.FeedbackInput{
		Type:  models.FeedbackType(r.FeedbackType),
		Value: *r.FeedbackValue,
		Dimensions: models.FeedbackDimensions{
			Relevance:    r.Dimensions.Relevance,
			Satisfaction: r.Dimensions.Satisfaction,
			Interest:     r.Dimensions.Interest,
			Quality:      r.Dimensions.Quality,
		},
		Comment: r.Comment,
		Context: r.Context,
	}
}
