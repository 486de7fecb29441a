// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/shelfwise/internal/recommend"
)

// respondResult writes an engine result, flagging cache hits in the envelope.
func respondResult(w http.ResponseWriter, r *http.Request, start time.Time, res *recommend.Result) {
	respondSuccess(w, r, start, res, res.CacheHit)
}

// GetUserRecommendations handles GET /api/v1/users/{userID}/recommendations.
//
// Query: scenario, algorithm, limit, refresh, exclude (comma separated).
func (h *Handler) GetUserRecommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID := chi.URLParam(r, "userID")

	q := RecommendationsQuery{
		Scenario:  r.URL.Query().Get("scenario"),
		Algorithm: r.URL.Query().Get("algorithm"),
		Exclude:   listParam(r, "exclude"),
	}
	var err error
	if q.Limit, err = intParam(r, "limit", 0); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	if raw := r.URL.Query().Get("refresh"); raw != "" {
		if q.Refresh, err = strconv.ParseBool(raw); err != nil {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "refresh must be a boolean", nil)
			return
		}
	}
	if !validateQuery(w, &q) {
		return
	}

	res, err := h.recs.GetUserRecommendations(r.Context(), userID, q.options())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondResult(w, r, start, res)
}

// InvalidateUserCache handles DELETE /api/v1/users/{userID}/recommendations/cache.
func (h *Handler) InvalidateUserCache(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID := chi.URLParam(r, "userID")

	n, err := h.recs.InvalidateUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, start, map[string]interface{}{"user_id": userID, "invalidated": n}, false)
}

// GetUserPreferences handles GET /api/v1/users/{userID}/preferences.
func (h *Handler) GetUserPreferences(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	pref, err := h.store.GetPreference(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, start, pref, false)
}

// GetSimilarItems handles GET /api/v1/items/{itemID}/similar. The user is
// optional; anonymous requests are served but not recorded.
func (h *Handler) GetSimilarItems(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q, ok := listQuery(w, r)
	if !ok {
		return
	}

	res, err := h.recs.GetSimilarItems(r.Context(), chi.URLParam(r, "itemID"), q.UserID, q.Limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondResult(w, r, start, res)
}

// GetTrending handles GET /api/v1/recommendations/trending.
func (h *Handler) GetTrending(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q, ok := listQuery(w, r)
	if !ok {
		return
	}

	res, err := h.recs.GetTrendingRecommendations(r.Context(), q.UserID, q.Limit, q.Days)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondResult(w, r, start, res)
}

// GetNewArrivals handles GET /api/v1/recommendations/new.
func (h *Handler) GetNewArrivals(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q, ok := listQuery(w, r)
	if !ok {
		return
	}

	res, err := h.recs.GetNewItemsRecommendations(r.Context(), q.UserID, q.Limit, q.Days)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondResult(w, r, start, res)
}

// TrackClick handles POST /api/v1/recommendations/{recID}/click. The body
// is optional.
func (h *Handler) TrackClick(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ClickRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body", err)
		return
	}

	rec, err := h.recs.TrackClick(r.Context(), userID, chi.URLParam(r, "recID"), req.Context)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, start, rec, false)
}

// RecordFeedback handles POST /api/v1/recommendations/{recID}/feedback.
func (h *Handler) RecordFeedback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req FeedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fb, err := h.recs.RecordFeedback(r.Context(), userID, chi.URLParam(r, "recID"), req.input())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondStatus(w, r, http.StatusCreated, start, fb, false)
}

// GetStatistics handles GET /api/v1/recommendations/stats. since and until
// are RFC3339; the default window is the last 30 days.
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	since, err := timeParam(r, "since")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	until, err := timeParam(r, "until")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	if until.IsZero() {
		until = time.Now().UTC()
	}
	if since.IsZero() {
		since = until.AddDate(0, 0, -30)
	}
	if until.Before(since) {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "until must not be before since", nil)
		return
	}

	stats, err := h.recs.GetStatistics(r.Context(), since, until)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, start, stats, false)
}

// ListAlgorithms handles GET /api/v1/algorithms.
func (h *Handler) ListAlgorithms(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	algs, err := h.store.ListAlgorithms(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, start, algs, false)
}

// RunMaintenanceJob handles POST /api/v1/maintenance/{job}. Jobs: purge,
// retrain, refresh-preferences.
func (h *Handler) RunMaintenanceJob(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.jobs == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Maintenance is not configured", nil)
		return
	}

	job := chi.URLParam(r, "job")
	var run func(context.Context) (int, error)
	switch job {
	case "purge":
		run = h.jobs.PurgeExpired
	case "retrain":
		run = h.jobs.CheckRetraining
	case "refresh-preferences":
		run = h.jobs.RefreshStalePreferences
	default:
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Unknown maintenance job: "+job, nil)
		return
	}

	n, err := run(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, start, map[string]interface{}{"job": job, "affected": n}, false)
}
