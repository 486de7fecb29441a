// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

/*
Package middleware provides the HTTP middleware shared by every route.

  - RequestID: X-Request-ID propagation, correlation ID and a
    request-scoped zerolog logger on the context
  - AccessLog: one log line per request
  - PrometheusMetrics: request count, latency and in-flight gauge,
    labelled by chi route pattern

All middleware uses the func(http.Handler) http.Handler shape so it plugs
into chi's r.Use directly.
*/
package middleware
