// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/shelfwise/internal/ingest"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/store"
)

// trackStatus is 201 for events written immediately and 202 for queued ones.
func trackStatus(res ingest.TrackResult) int {
	if res.Queued {
		return http.StatusAccepted
	}
	return http.StatusCreated
}

// TrackEvent handles POST /api/v1/events.
func (h *Handler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req TrackEventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.ingest.Track(r.Context(), req.toEvent())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondStatus(w, r, trackStatus(res), start, res, false)
}

// TrackBatch handles POST /api/v1/events/batch. The response is 200 even
// when some events fail; per-event outcomes are in the body.
func (h *Handler) TrackBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req TrackBatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	batch := make([]*models.BehaviorEvent, len(req.Events))
	for i := range req.Events {
		batch[i] = req.Events[i].toEvent()
	}
	respondSuccess(w, r, start, h.ingest.TrackBatch(r.Context(), batch), false)
}

// TrackSearch handles POST /api/v1/events/search.
func (h *Handler) TrackSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req TrackSearchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.ingest.TrackSearch(r.Context(), req.UserID, req.Query, req.ResultCount, req.Context)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondStatus(w, r, trackStatus(res), start, res, false)
}

// TrackReadingSession handles POST /api/v1/events/reading-sessions.
func (h *Handler) TrackReadingSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req ReadingSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.ingest.TrackReadingSession(r.Context(), req.UserID, req.ItemID, req.session(), req.Context)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondStatus(w, r, trackStatus(res), start, res, false)
}

// ScanAnomalies handles POST /api/v1/anomalies/scan and returns every
// anomaly the scan found, including bursts already recorded by an earlier
// scan. Records are stored once per burst.
func (h *Handler) ScanAnomalies(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req AnomalyScanRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var window time.Duration
	if req.Window != "" {
		d, err := time.ParseDuration(req.Window)
		if err != nil || d <= 0 {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "window must be a positive duration such as 1h", nil)
			return
		}
		window = d
	}

	found, err := h.ingest.DetectAnomalies(r.Context(), req.UserID, window)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if found == nil {
		found = []models.Anomaly{}
	}
	respondSuccess(w, r, start, found, false)
}

// ListAnomalies handles GET /api/v1/anomalies.
func (h *Handler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	since, err := timeParam(r, "since")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	limit, err := intParam(r, "limit", 100)
	if err != nil || limit < 0 {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a non-negative integer", nil)
		return
	}

	found, err := h.store.FindAnomalies(r.Context(), store.AnomalyFilter{
		UserID: r.URL.Query().Get("user_id"),
		Kind:   r.URL.Query().Get("kind"),
		Since:  since,
		Limit:  limit,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if found == nil {
		found = []models.Anomaly{}
	}
	respondSuccess(w, r, start, found, false)
}
