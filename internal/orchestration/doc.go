// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

/*
Package orchestration is the application layer between the HTTP API and
the recommendation engine.

It owns the request-level concerns the engine does not: result caching,
display and click bookkeeping, explicit feedback, statistics, cache
invalidation from the event bus, and the periodic maintenance jobs.

# Request Flow

	GetUserRecommendations
	  -> cache lookup (skipped for ForceRefresh or Exclude)
	  -> Engine.Recommend
	  -> mark persisted recommendations displayed
	  -> cache the result unless degraded or empty

Specialised entry points build engine requests for item detail pages
(GetSimilarItems), trending lists and new arrivals.

# Feedback

TrackClick and RecordFeedback verify the recommendation belongs to the
caller, advance its status, feed the preference learner, and drop the
user's cached lists. Click events are also forwarded to the ingestion
pipeline so they count as behavior.

# Maintenance

Maintenance exposes three jobs:

  - PurgeExpired: delete old recommendations, keeping clicked ones
  - CheckRetraining: retrain stale or failed models through a Trainer
  - RefreshStalePreferences: decay preferences nobody has touched

Scheduler runs them on cron specs via robfig/cron. SnapshotTrainer loads
published embedding snapshots into the live embedding source.

# Thread Safety

Service, Maintenance and Scheduler are safe for concurrent use.
*/
package orchestration
