// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

/*
Package services provides suture.Service wrappers for Shelfwise components.

Each wrapper translates a component's lifecycle into suture's
context-aware Serve:

  - HTTPServerService: ListenAndServe and Shutdown
  - SchedulerService: Start and Stop (maintenance cron jobs)
  - LoopService: a blocking Run(ctx) loop (ingest flush, anomaly scans,
    cache invalidation)

All wrappers implement fmt.Stringer so suture logs name the service.
*/
package services
