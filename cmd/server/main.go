// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/shelfwise/internal/api"
	"github.com/tomtom215/shelfwise/internal/cache"
	"github.com/tomtom215/shelfwise/internal/config"
	"github.com/tomtom215/shelfwise/internal/ingest"
	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/orchestration"
	"github.com/tomtom215/shelfwise/internal/preference"
	"github.com/tomtom215/shelfwise/internal/recommend/algorithms"
	"github.com/tomtom215/shelfwise/internal/supervisor"
	"github.com/tomtom215/shelfwise/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.LoggingOptions())
	logging.Info().Str("version", version).Msg("Starting Shelfwise with supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === STORE ===
	sh, err := openStore(ctx, &cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("Failed to open store")
	}
	if sh.closer != nil {
		defer func() {
			if err := sh.closer.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing store")
			}
		}()
	}
	logging.Info().Str("backend", cfg.Store.Backend).Str("path", cfg.Store.Path).Msg("Store initialized")

	// === EVENT BUS ===
	bus, err := openBus(&cfg.Events)
	if err != nil {
		logging.Fatal().Err(err).Str("backend", cfg.Events.Backend).Msg("Failed to create event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	// === CACHE ===
	recCache, err := cache.New(&cfg.Cache)
	if err != nil {
		logging.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("Failed to create recommendation cache")
	}
	defer func() {
		if err := recCache.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing cache")
		}
	}()
	logging.Info().Str("backend", recCache.Backend()).Dur("ttl", cfg.Cache.TTL).Msg("Recommendation cache ready")

	learner := preference.NewLearner(sh.store, time.Now)

	// === INGESTION ===
	var deadLetter *ingest.DeadLetter
	if cfg.Ingest.DeadLetter.Enabled {
		deadLetter, err = ingest.OpenDeadLetter(cfg.Ingest.DeadLetter, time.Now)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Ingest.DeadLetter.Path).Msg("Failed to open dead-letter store")
		}
		defer func() {
			if err := deadLetter.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing dead-letter store")
			}
		}()
	}

	pipeline, err := ingest.NewPipeline(ingest.ConfigFromSettings(&cfg.Ingest), ingest.Deps{
		Store:      sh.store,
		Catalog:    sh.catalog,
		Learner:    learner,
		Bus:        bus,
		DeadLetter: deadLetter,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create ingestion pipeline")
	}

	// === RECOMMENDATION ENGINE ===
	embeddings := algorithms.NewStaticEmbeddings()
	engine, err := buildEngine(&cfg.Recommend, sh.store, sh.catalog, embeddings, logging.WithComponent("recommend"))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create recommendation engine")
	}

	svc, err := orchestration.NewService(orchestration.Config{CacheTTL: cfg.Cache.TTL}, orchestration.Deps{
		Engine:  engine,
		Store:   sh.store,
		Catalog: sh.catalog,
		Cache:   recCache,
		Tracker: pipeline,
		Learner: learner,
		Bus:     bus,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create orchestration service")
	}

	maintenance, err := buildMaintenance(&cfg.Maintenance, sh.store, learner, embeddings, logging.WithComponent("maintenance"))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create maintenance jobs")
	}

	// === HTTP ===
	handler, err := api.NewHandler(api.Deps{
		Ingest: pipeline,
		Recs:   svc,
		Store:  sh.store,
		Jobs:   maintenance,
		Checks: map[string]api.HealthCheck{
			"store": sh.ping,
		},
		Version: version,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create API handler")
	}
	router := api.NewRouter(handler, api.ChiMiddlewareConfigFromSettings(&cfg.Server))

	if cfg.Server.RateLimitPerMin <= 0 {
		logging.Warn().Msg("Rate limiting is DISABLED (RATE_LIMIT_REQUESTS=0)")
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	// === SUPERVISOR TREE ===
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Ingest layer
	tree.AddIngestService(services.NewLoopService("ingest-flush", pipeline.Run, logging.Logger()))
	tree.AddIngestService(services.NewLoopService("anomaly-scan", pipeline.RunAnomalyDetection, logging.Logger()))

	// Messaging layer
	tree.AddMessagingService(services.NewLoopService("cache-invalidation", svc.RunInvalidation, logging.Logger()))

	// Maintenance layer
	if cfg.Maintenance.Enabled {
		scheduler, err := orchestration.NewScheduler(maintenance, orchestration.Schedules{
			Purge:   cfg.Maintenance.PurgeSchedule,
			Retrain: cfg.Maintenance.RetrainSchedule,
			Refresh: cfg.Maintenance.RefreshSchedule,
		}, logging.Logger())
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create maintenance scheduler")
		}
		tree.AddMaintenanceService(services.NewSchedulerService(scheduler))
	} else {
		logging.Info().Msg("Scheduled maintenance disabled (MAINTENANCE_ENABLED=false)")
	}

	// API layer
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownDeadline))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for the tree to stop, either from a signal or on its own.
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		err = <-errCh
	case err = <-errCh:
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
