// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var (
	// Store Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfwise_db_query_duration_seconds",
			Help:    "Duration of store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_db_query_errors_total",
			Help: "Total number of store query errors",
		},
		[]string{"operation", "table"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfwise_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelfwise_api_active_requests",
			Help: "Number of in-flight API requests",
		},
	)

	// Ingestion Metrics
	EventsTracked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_events_tracked_total",
			Help: "Accepted behavior events by type and path",
		},
		[]string{"behavior_type", "path"}, // path: "immediate", "queued"
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_events_rejected_total",
			Help: "Behavior events rejected at validation",
		},
		[]string{"field"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfwise_events_dropped_total",
			Help: "Queued events lost to a failed flush with no dead-letter store",
		},
	)

	IngestQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelfwise_ingest_queue_depth",
			Help: "Events waiting for the next flush",
		},
	)

	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shelfwise_flush_duration_seconds",
			Help:    "Time spent persisting one queue batch",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	FlushedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfwise_flushed_events_total",
			Help: "Events persisted by queue flushes",
		},
	)

	FlushFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfwise_flush_failures_total",
			Help: "Queue flushes whose batch write failed",
		},
	)

	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_anomalies_detected_total",
			Help: "New anomaly records by kind",
		},
		[]string{"kind"},
	)

	PreferenceUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_preference_updates_total",
			Help: "Preference learning updates by source",
		},
		[]string{"source"}, // "behavior", "feedback", "decay"
	)

	// Dead-letter Metrics
	DeadLetterEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelfwise_dead_letter_entries",
			Help: "Failed batches waiting for replay",
		},
	)

	DeadLetterReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_dead_letter_replays_total",
			Help: "Dead-letter replay attempts by result",
		},
		[]string{"result"}, // "success", "failure", "discarded"
	)

	// Recommendation Metrics
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_recommendation_requests_total",
			Help: "Engine invocations by scenario and serving algorithm",
		},
		[]string{"scenario", "algorithm"},
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfwise_recommendation_duration_seconds",
			Help:    "Engine latency by scenario",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"scenario"},
	)

	RecommendationDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfwise_recommendation_degraded_total",
			Help: "Requests served by the popularity fallback",
		},
	)

	GeneratorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_generator_errors_total",
			Help: "Candidate generator failures by algorithm type",
		},
		[]string{"algorithm"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_cache_hits_total",
			Help: "Recommendation cache hits",
		},
		[]string{"backend"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_cache_misses_total",
			Help: "Recommendation cache misses",
		},
		[]string{"backend"},
	)

	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfwise_cache_invalidations_total",
			Help: "Per-user cache invalidations",
		},
	)

	// Event Bus Metrics
	BusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_bus_published_total",
			Help: "Messages published by topic",
		},
		[]string{"topic"},
	)

	BusConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_bus_consumed_total",
			Help: "Messages consumed by topic",
		},
		[]string{"topic"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shelfwise_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Maintenance Metrics
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_maintenance_runs_total",
			Help: "Maintenance job runs by job and result",
		},
		[]string{"job", "result"},
	)

	MaintenanceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfwise_maintenance_duration_seconds",
			Help:    "Maintenance job duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)

// RecordDBQuery records a store query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordFlush records the outcome of one queue drain.
func RecordFlush(count int, duration time.Duration, err error) {
	FlushDuration.Observe(duration.Seconds())
	if err != nil {
		FlushFailures.Inc()
		return
	}
	FlushedEvents.Add(float64(count))
}

// RecordRecommendation records one engine invocation.
func RecordRecommendation(scenario, algorithm string, degraded bool, duration time.Duration) {
	RecommendationRequests.WithLabelValues(scenario, algorithm).Inc()
	RecommendationDuration.WithLabelValues(scenario).Observe(duration.Seconds())
	if degraded {
		RecommendationDegraded.Inc()
	}
}

// RecordMaintenance records one maintenance job run.
func RecordMaintenance(job string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	MaintenanceRuns.WithLabelValues(job, result).Inc()
	MaintenanceDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordCacheLookup records a cache hit or miss for a backend.
func RecordCacheLookup(backend string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(backend).Inc()
	} else {
		CacheMisses.WithLabelValues(backend).Inc()
	}
}

// DegradedCount reads the running total of fallback-served requests.
func DegradedCount() float64 {
	return counterValue(RecommendationDegraded)
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
