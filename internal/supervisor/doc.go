// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

/*
Package supervisor provides process supervision for Shelfwise using suture v4.

Every long-running loop in the service runs under a hierarchical supervisor
tree with automatic restart, failure isolation, and graceful shutdown.

# Overview

	RootSupervisor ("shelfwise")
	├── IngestSupervisor ("ingest-layer")
	│   ├── IngestFlushService (batch flush, dead-letter replay)
	│   └── AnomalyScanService
	├── MessagingSupervisor ("messaging-layer")
	│   └── CacheInvalidationService
	├── MaintenanceSupervisor ("maintenance-layer")
	│   └── SchedulerService (purge, retraining, preference refresh)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crash in the ingest or messaging layer does not stop the API from
serving recommendations.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddIngestService(services.NewLoopService("ingest-flush", pipeline.Run, logging.Logger()))
	tree.AddMessagingService(services.NewLoopService("cache-invalidation", svc.RunInvalidation, logging.Logger()))
	tree.AddMaintenanceService(services.NewSchedulerService(scheduler))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)

# Failure Handling

Each failure increments a counter that decays over FailureDecay seconds.
Past FailureThreshold the supervisor waits FailureBackoff before the next
restart.

Return behavior for services:
  - nil: stopped cleanly, not restarted
  - error: crashed, restarted
  - ctx.Err(): shutdown requested

# What Is NOT Supervised

DuckDB and Badger are embedded libraries opened and closed by main.
Redis and NATS clients reconnect on their own.

# Debugging Shutdown Issues

UnstoppedServiceReport lists services that ignored the shutdown timeout.
*/
package supervisor
