// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/shelfwise/internal/ingest"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/orchestration"
	"github.com/tomtom215/shelfwise/internal/recommend"
	"github.com/tomtom215/shelfwise/internal/store"
)

// UserIDHeader carries the authenticated user. Authentication happens in
// front of the service; handlers trust this header.
const UserIDHeader = "X-User-ID"

// Ingestor is the behavior pipeline surface used by the HTTP layer.
type Ingestor interface {
	Track(ctx context.Context, event *models.BehaviorEvent) (ingest.TrackResult, error)
	TrackBatch(ctx context.Context, batch []*models.BehaviorEvent) ingest.BatchResult
	TrackSearch(ctx context.Context, userID, query string, resultCount int, extra map[string]interface{}) (ingest.TrackResult, error)
	TrackReadingSession(ctx context.Context, userID, itemID string, s ingest.ReadingSession, extra map[string]interface{}) (ingest.TrackResult, error)
	DetectAnomalies(ctx context.Context, userID string, window time.Duration) ([]models.Anomaly, error)
	QueueLen() int
}

// Recommender is the orchestration surface used by the HTTP layer.
type Recommender interface {
	GetUserRecommendations(ctx context.Context, userID string, opts orchestration.Options) (*recommend.Result, error)
	GetSimilarItems(ctx context.Context, itemID, userID string, limit int) (*recommend.Result, error)
	GetTrendingRecommendations(ctx context.Context, userID string, limit, days int) (*recommend.Result, error)
	GetNewItemsRecommendations(ctx context.Context, userID string, limit, days int) (*recommend.Result, error)
	InvalidateUser(ctx context.Context, userID string) (int, error)
	TrackClick(ctx context.Context, userID, recommendationID string, extra map[string]interface{}) (*models.Recommendation, error)
	RecordFeedback(ctx context.Context, userID, recommendationID string, in orchestration.FeedbackInput) (*models.RecommendationFeedback, error)
	GetStatistics(ctx context.Context, since, until time.Time) (*models.RecommendationStats, error)
}

// Jobs exposes the maintenance jobs for on-demand runs.
type Jobs interface {
	PurgeExpired(ctx context.Context) (int, error)
	CheckRetraining(ctx context.Context) (int, error)
	RefreshStalePreferences(ctx context.Context) (int, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps bundles what the handlers need. Jobs and Checks are optional.
type Deps struct {
	Ingest  Ingestor
	Recs    Recommender
	Store   store.Store
	Jobs    Jobs
	Checks  map[string]HealthCheck
	Version string
}

// Handler serves the HTTP API.
type Handler struct {
	ingest    Ingestor
	recs      Recommender
	store     store.Store
	jobs      Jobs
	checks    map[string]HealthCheck
	version   string
	startTime time.Time
}

// NewHandler creates the handler set.
func NewHandler(deps Deps) (*Handler, error) {
	if deps.Ingest == nil {
		return nil, errors.New("api: ingestor is required")
	}
	if deps.Recs == nil {
		return nil, errors.New("api: recommender is required")
	}
	if deps.Store == nil {
		return nil, errors.New("api: store is required")
	}
	checks := deps.Checks
	if checks == nil {
		checks = map[string]HealthCheck{}
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		ingest:    deps.Ingest,
		recs:      deps.Recs,
		store:     deps.Store,
		jobs:      deps.Jobs,
		checks:    checks,
		version:   version,
		startTime: time.Now(),
	}, nil
}

// requireUser reads the caller identity from UserIDHeader, writing a 400
// when it is absent.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if userID == "" {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, UserIDHeader+" header is required", nil)
		return "", false
	}
	return userID, true
}

// intParam parses an optional integer query parameter. Absent means def.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return v, nil
}

// timeParam parses an optional RFC3339 query parameter.
func timeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New(name + " must be an RFC3339 timestamp")
	}
	return t, nil
}

// listParam splits a comma-separated query parameter, dropping blanks.
func listParam(r *http.Request, name string) []string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// listQuery reads user_id, limit and days shared by the list endpoints.
func listQuery(w http.ResponseWriter, r *http.Request) (ListQuery, bool) {
	q := ListQuery{UserID: strings.TrimSpace(r.URL.Query().Get("user_id"))}
	if q.UserID == "" {
		q.UserID = strings.TrimSpace(r.Header.Get(UserIDHeader))
	}
	var err error
	if q.Limit, err = intParam(r, "limit", 0); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return q, false
	}
	if q.Days, err = intParam(r, "days", 0); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return q, false
	}
	return q, validateQuery(w, &q)
}
