// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

/*
Package metrics provides Prometheus collectors for the service.

Collectors are registered on the default registry through promauto and
exported by the HTTP server at /metrics:

	curl http://localhost:8080/metrics

# Available Metrics

Ingestion:
  - shelfwise_events_tracked_total: accepted events (behavior_type, path)
  - shelfwise_events_rejected_total: validation rejections (field)
  - shelfwise_ingest_queue_depth: events waiting for a flush
  - shelfwise_flush_duration_seconds, shelfwise_flushed_events_total,
    shelfwise_flush_failures_total, shelfwise_events_dropped_total
  - shelfwise_anomalies_detected_total (kind)
  - shelfwise_dead_letter_entries, shelfwise_dead_letter_replays_total (result)

Recommendation:
  - shelfwise_recommendation_requests_total (scenario, algorithm)
  - shelfwise_recommendation_duration_seconds (scenario)
  - shelfwise_recommendation_degraded_total
  - shelfwise_generator_errors_total (algorithm)
  - shelfwise_cache_hits_total, shelfwise_cache_misses_total (backend)

Infrastructure:
  - shelfwise_api_requests_total, shelfwise_api_request_duration_seconds
  - shelfwise_db_query_duration_seconds, shelfwise_db_query_errors_total
  - shelfwise_circuit_breaker_* (name)
  - shelfwise_bus_published_total, shelfwise_bus_consumed_total (topic)
  - shelfwise_maintenance_runs_total, shelfwise_maintenance_duration_seconds (job)
*/
package metrics
