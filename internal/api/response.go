// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/validation"
)

// Error codes for API responses.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeValidation         = validation.Code
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodePersistence        = "PERSISTENCE_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// maxBodyBytes bounds request bodies. Batches of a few hundred events fit.
const maxBodyBytes = 1 << 20

// sanitizeLogValue escapes control characters so client input cannot
// forge log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// respondJSON writes response with the given status.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess writes a 200 envelope around data.
func respondSuccess(w http.ResponseWriter, r *http.Request, start time.Time, data interface{}, cached bool) {
	respondStatus(w, r, http.StatusOK, start, data, cached)
}

func respondStatus(w http.ResponseWriter, _ *http.Request, status int, start time.Time, data interface{}, cached bool) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
			Cached:      cached,
		},
	})
}

// respondError writes an error envelope. err, when set, is logged but not
// sent to the client.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		event := logging.Ctx(r.Context()).Warn()
		if status >= http.StatusInternalServerError {
			event = logging.Ctx(r.Context()).Error()
		}
		event.Str("code", code).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: code, Message: message},
	})
}

// respondAPIError writes a prepared error body, typically from validation.
func respondAPIError(w http.ResponseWriter, status int, apiErr *models.APIError) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    apiErr,
	})
}

// respondServiceError maps the domain error taxonomy onto HTTP:
// not found 404, invalid transition 409, invalid input 400, everything
// else 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *models.InvalidEventError
	switch {
	case errors.Is(err, models.ErrNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error(), nil)
	case errors.Is(err, models.ErrInvalidTransition):
		respondError(w, r, http.StatusConflict, ErrCodeConflict, err.Error(), nil)
	case errors.As(err, &invalid):
		respondAPIError(w, http.StatusBadRequest, &models.APIError{
			Code:    ErrCodeValidation,
			Message: invalid.Error(),
			Details: map[string]interface{}{"field": invalid.Field},
		})
	case errors.Is(err, models.ErrInvalidEvent),
		errors.Is(err, models.ErrInvalidFeedback),
		errors.Is(err, models.ErrInvalidRequest):
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
	case errors.Is(err, models.ErrPersistence):
		respondError(w, r, http.StatusInternalServerError, ErrCodePersistence, "Failed to persist the change", err)
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Internal server error", err)
	}
}

// decodeBody decodes a JSON body into v and validates it. It writes the
// error response itself and reports whether the handler may continue.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body", err)
		return false
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		respondAPIError(w, http.StatusBadRequest, verr.ToAPIError())
		return false
	}
	return true
}

// validateQuery validates a struct built from query parameters.
func validateQuery(w http.ResponseWriter, v interface{}) bool {
	if verr := validation.ValidateStruct(v); verr != nil {
		respondAPIError(w, http.StatusBadRequest, verr.ToAPIError())
		return false
	}
	return true
}
