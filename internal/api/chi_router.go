// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/shelfwise/internal/middleware"
)

// Router binds handlers to routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil middleware config uses the defaults.
func NewRouter(handler *Handler, cfg *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(cfg),
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // must be global to answer OPTIONS preflight
	r.Use(chimiddleware.Compress(5, "application/json"))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed", nil)
	})

	// ========================
	// Health and Metrics
	// ========================
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})
	r.With(router.chiMiddleware.RateLimitHealth()).Handle("/metrics", promhttp.Handler())

	// ========================
	// Behavior Ingestion
	// ========================
	// Tracking calls arrive in bursts from reader apps.
	r.Route("/api/v1/events", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitIngest())
		r.Use(middleware.PrometheusMetrics)

		r.Post("/", router.handler.TrackEvent)
		r.Post("/batch", router.handler.TrackBatch)
		r.Post("/search", router.handler.TrackSearch)
		r.Post("/reading-sessions", router.handler.TrackReadingSession)
	})

	// ========================
	// Recommendations and Admin
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.PrometheusMetrics)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/recommendations", router.handler.GetUserRecommendations)
			r.Delete("/recommendations/cache", router.handler.InvalidateUserCache)
			r.Get("/preferences", router.handler.GetUserPreferences)
		})

		r.Get("/items/{itemID}/similar", router.handler.GetSimilarItems)

		r.Route("/recommendations", func(r chi.Router) {
			r.Get("/trending", router.handler.GetTrending)
			r.Get("/new", router.handler.GetNewArrivals)
			r.Get("/stats", router.handler.GetStatistics)
			r.Post("/{recID}/click", router.handler.TrackClick)
			r.Post("/{recID}/feedback", router.handler.RecordFeedback)
		})

		r.Get("/anomalies", router.handler.ListAnomalies)
		r.Post("/anomalies/scan", router.handler.ScanAnomalies)
		r.Get("/algorithms", router.handler.ListAlgorithms)
		r.Post("/maintenance/{job}", router.handler.RunMaintenanceJob)
	})

	return r
}
