// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

/*
Package api provides the HTTP surface of Shelfwise using the Chi router.

# Routes

	GET    /api/v1/health/live
	GET    /api/v1/health/ready
	GET    /metrics

	POST   /api/v1/events
	POST   /api/v1/events/batch
	POST   /api/v1/events/search
	POST   /api/v1/events/reading-sessions

	GET    /api/v1/users/{userID}/recommendations
	DELETE /api/v1/users/{userID}/recommendations/cache
	GET    /api/v1/users/{userID}/preferences
	GET    /api/v1/items/{itemID}/similar
	GET    /api/v1/recommendations/trending
	GET    /api/v1/recommendations/new
	GET    /api/v1/recommendations/stats
	POST   /api/v1/recommendations/{recID}/click
	POST   /api/v1/recommendations/{recID}/feedback

	GET    /api/v1/anomalies
	POST   /api/v1/anomalies/scan
	GET    /api/v1/algorithms
	POST   /api/v1/maintenance/{job}

# Identity

Authentication is handled upstream. Click and feedback calls identify the
caller through the X-User-ID header; a recommendation owned by another
user is reported as not found.

# Responses

Every response uses the models.APIResponse envelope. Errors carry a code:

	BAD_REQUEST         malformed JSON or query parameters (400)
	VALIDATION_ERROR    field validation failed (400)
	NOT_FOUND           unknown user, item or recommendation (404)
	CONFLICT            invalid recommendation status transition (409)
	TOO_MANY_REQUESTS   rate limit exceeded (429)
	PERSISTENCE_ERROR   a write to the store failed (500)
	INTERNAL_ERROR      anything else (500)

Tracking returns 201 when the event was written before the response and
202 when it was queued for the next flush.

# Middleware

Request IDs, real IP extraction, access logging, panic recovery, CORS and
gzip apply to every route. Prometheus request metrics use the chi route
pattern as the endpoint label. Rate limits are per client IP: ingestion
routes allow ten times the base limit, health and metrics use a fixed
permissive limit.
*/
package api
