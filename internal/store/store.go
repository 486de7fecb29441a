// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package store defines the persistence boundary of the recommendation core.
//
// Store covers the entities the core owns (behavior events, preferences,
// recommendations, feedback, algorithm configs, anomalies); Catalog is the
// read side of the book registry. Both are plain create/update/query
// contracts with filter structs. The DuckDB implementation lives in
// internal/database; Memory in this package backs tests and the
// "memory" store backend.
//
// Get methods return models.ErrNotFound (wrapped) when nothing matches.
package store

import (
	"context"
	"time"

	"github.com/tomtom215/shelfwise/internal/models"
)

// EventFilter selects behavior events. Zero values do not filter.
type EventFilter struct {
	UserID    string
	ItemID    string
	Types     []models.BehaviorType
	Since     time.Time
	Until     time.Time
	Processed *bool
	Anomalous *bool
	Limit     int
}

// RecommendationFilter selects recommendations. Zero values do not filter.
type RecommendationFilter struct {
	UserID        string
	ItemID        string
	BatchID       string
	Algorithm     string
	Statuses      []models.RecommendationStatus
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Limit         int
}

// FeedbackFilter selects feedback rows.
type FeedbackFilter struct {
	UserID           string
	RecommendationID string
	Processed        *bool
	Since            time.Time
	Until            time.Time
	Limit            int
}

// PreferenceFilter selects preferences.
type PreferenceFilter struct {
	UpdatedBefore time.Time
	Limit         int
}

// ItemFilter selects catalog items. TitleContains is a case-insensitive substring match.
type ItemFilter struct {
	IDs           []string
	Category      string
	Author        string
	TitleContains string
	CreatedAfter  time.Time
	Limit         int
}

// AnomalyFilter selects anomaly records.
type AnomalyFilter struct {
	UserID string
	Kind   string
	Since  time.Time
	Limit  int
}

// Store is the persistent store for everything the core writes.
type Store interface {
	CreateEvent(ctx context.Context, event *models.BehaviorEvent) error
	CreateEvents(ctx context.Context, events []models.BehaviorEvent) error
	FindEvents(ctx context.Context, filter EventFilter) ([]models.BehaviorEvent, error)
	CountEvents(ctx context.Context, filter EventFilter) (int, error)
	MarkEventsProcessed(ctx context.Context, ids []string) error
	MarkEventsAnomalous(ctx context.Context, ids []string) error

	GetPreference(ctx context.Context, userID string) (*models.UserPreference, error)
	SavePreference(ctx context.Context, pref *models.UserPreference) error
	FindPreferences(ctx context.Context, filter PreferenceFilter) ([]models.UserPreference, error)

	CreateRecommendations(ctx context.Context, recs []models.Recommendation) error
	GetRecommendation(ctx context.Context, id string) (*models.Recommendation, error)
	UpdateRecommendation(ctx context.Context, rec *models.Recommendation) error
	FindRecommendations(ctx context.Context, filter RecommendationFilter) ([]models.Recommendation, error)
	CountRecommendations(ctx context.Context, filter RecommendationFilter) (int, error)
	DeleteRecommendations(ctx context.Context, filter RecommendationFilter) (int, error)

	CreateFeedback(ctx context.Context, fb *models.RecommendationFeedback) error
	MarkFeedbackProcessed(ctx context.Context, id string) error
	FindFeedback(ctx context.Context, filter FeedbackFilter) ([]models.RecommendationFeedback, error)

	ListAlgorithms(ctx context.Context) ([]models.AlgorithmConfig, error)
	SaveAlgorithm(ctx context.Context, cfg *models.AlgorithmConfig) error

	// SaveAnomalies inserts anomaly records, ignoring IDs that already exist.
	SaveAnomalies(ctx context.Context, anomalies []models.Anomaly) (int, error)
	FindAnomalies(ctx context.Context, filter AnomalyFilter) ([]models.Anomaly, error)
}

// Catalog is the read side of the item registry.
type Catalog interface {
	GetItem(ctx context.Context, id string) (*models.Item, error)
	QueryItems(ctx context.Context, filter ItemFilter) ([]models.Item, error)
}

// CatalogWriter is implemented by catalogs that accept item upserts.
type CatalogWriter interface {
	Catalog
	UpsertItems(ctx context.Context, items []models.Item) error
}

// Bool returns a pointer to b, for filter fields.
func Bool(b bool) *bool {
	return &b
}
