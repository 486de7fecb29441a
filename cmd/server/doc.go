// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

/*
Package main is the entry point for the Shelfwise server.

Shelfwise records how patrons interact with a library catalog (views,
searches, reading sessions, borrows, ratings), learns a preference
profile per patron from that behavior, and serves personalised,
similar-item, trending and new-arrival recommendations over HTTP.

# Application Architecture

	RootSupervisor ("shelfwise")
	├── IngestSupervisor ("ingest-layer")
	│   ├── ingest-flush (batched event persistence, dead-letter replay)
	│   └── anomaly-scan
	├── MessagingSupervisor ("messaging-layer")
	│   └── cache-invalidation (high-priority behavior and borrow attribution)
	├── MaintenanceSupervisor ("maintenance-layer")
	│   └── maintenance-scheduler (purge, retraining, preference refresh)
	└── APISupervisor ("api-layer")
	    └── http-server

Component initialization order:

 1. Configuration: Koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog with JSON or console output
 3. Store: DuckDB, or the in-memory store for development
 4. Event bus: Watermill over Go channels, or NATS with -tags nats
 5. Cache: in-process LRU or Redis
 6. Ingestion pipeline with optional Badger dead-letter store
 7. Recommendation engine, orchestration service and maintenance jobs
 8. Supervisor tree and HTTP server

# Build Tags

	go build ./cmd/server              # in-process event bus only
	go build -tags nats ./cmd/server   # EVENTS_BACKEND=nats available

# Example Usage

Development with everything in memory:

	export STORE_BACKEND=memory
	export CACHE_BACKEND=memory
	export LOG_FORMAT=console
	./shelfwise

Production with DuckDB, Redis and scheduled maintenance:

	export DUCKDB_PATH=/data/shelfwise.duckdb
	export CACHE_BACKEND=redis
	export REDIS_ADDR=redis:6379
	export DEAD_LETTER_ENABLED=true
	export DEAD_LETTER_PATH=/data/deadletter
	export MAINTENANCE_ENABLED=true
	export MODELS_PATH=/data/models
	./shelfwise

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains for
SHUTDOWN_DEADLINE, the ingest loop flushes its queue one last time, and
the store, cache and bus are closed.
*/
package main
