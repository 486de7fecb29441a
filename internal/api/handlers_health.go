// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package api

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// healthCheckTimeout bounds each readiness check.
const healthCheckTimeout = 2 * time.Second

// HealthStatus is the body of the health endpoints.
type HealthStatus struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Uptime     float64           `json:"uptime_seconds"`
	QueueDepth int               `json:"queue_depth"`
	Checks     map[string]string `json:"checks,omitempty"`
}

// HealthLive handles GET /api/v1/health/live. It never touches dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondSuccess(w, r, start, HealthStatus{
		Status:     "ok",
		Version:    h.version,
		Uptime:     time.Since(h.startTime).Seconds(),
		QueueDepth: h.ingest.QueueLen(),
	}, false)
}

// HealthReady handles GET /api/v1/health/ready. Any failing check turns
// the response into a 503.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := HealthStatus{
		Status:     "ok",
		Version:    h.version,
		Uptime:     time.Since(h.startTime).Seconds(),
		QueueDepth: h.ingest.QueueLen(),
		Checks:     make(map[string]string, len(names)),
	}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := h.checks[name](ctx)
		cancel()
		if err != nil {
			status.Status = "degraded"
			status.Checks[name] = err.Error()
			continue
		}
		status.Checks[name] = "ok"
	}

	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	respondStatus(w, r, code, start, status, false)
}
