// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/shelfwise/internal/api"
	"github.com/tomtom215/shelfwise/internal/config"
	"github.com/tomtom215/shelfwise/internal/database"
	"github.com/tomtom215/shelfwise/internal/events"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/orchestration"
	"github.com/tomtom215/shelfwise/internal/preference"
	"github.com/tomtom215/shelfwise/internal/recommend"
	"github.com/tomtom215/shelfwise/internal/recommend/algorithms"
	"github.com/tomtom215/shelfwise/internal/recommend/reranking"
	"github.com/tomtom215/shelfwise/internal/recommend/storage"
	"github.com/tomtom215/shelfwise/internal/store"
)

// storeHandle bundles the store, its catalog side and the readiness check.
type storeHandle struct {
	store   store.Store
	catalog store.CatalogWriter
	ping    api.HealthCheck
	closer  io.Closer
}

// openStore opens the configured backend and seeds the default algorithm
// catalog when none is present.
func openStore(ctx context.Context, cfg *config.StoreConfig) (*storeHandle, error) {
	var h *storeHandle
	switch cfg.Backend {
	case "memory":
		mem := store.NewMemory()
		h = &storeHandle{
			store:   mem,
			catalog: mem,
			ping:    func(context.Context) error { return nil },
		}
	default:
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		h = &storeHandle{store: db, catalog: db, ping: db.Ping, closer: db}
	}

	if cfg.SeedAlgorithms {
		if err := seedAlgorithms(ctx, h.store); err != nil {
			if h.closer != nil {
				_ = h.closer.Close()
			}
			return nil, err
		}
	}
	return h, nil
}

// seedAlgorithms writes models.DefaultAlgorithms when the store has none.
func seedAlgorithms(ctx context.Context, st store.Store) error {
	existing, err := st.ListAlgorithms(ctx)
	if err != nil {
		return fmt.Errorf("failed to list algorithms: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for _, alg := range models.DefaultAlgorithms() {
		a := alg
		if err := st.SaveAlgorithm(ctx, &a); err != nil {
			return fmt.Errorf("failed to seed algorithm %s: %w", a.Name, err)
		}
	}
	return nil
}

// openBus creates the in-process bus or, in nats builds, the NATS bus.
func openBus(cfg *config.EventsConfig) (*events.Bus, error) {
	if cfg.Backend == "nats" {
		return events.NewNATSBus(cfg.NATSURL)
	}
	return events.NewBus(cfg.Buffer), nil
}

// buildEngine creates the engine with the default generator set, the
// configured diversifier and, when enabled, hash-based A/B assignment.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func buildEngine(cfg *config.RecommendConfig, st store.Store, catalog store.Catalog, embeddings *algorithms.StaticEmbeddings, logger zerolog.Logger) (*recommend.Engine, error) {
	engine, err := recommend.NewEngine(recommend.EngineConfigFromSettings(cfg), st, catalog, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	for _, g := range algorithms.NewDefaultSet(algorithms.SetConfig{
		Neighbors:    cfg.Neighbors,
		TrendingDays: float64(cfg.TrendingDays),
		Embeddings:   embeddings,
	}) {
		engine.RegisterGenerator(g)
	}

	div, err := reranking.New(cfg.DiversityStrategy, cfg.DiversityFactor, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to create diversifier: %w", err)
	}
	engine.SetDiversifier(div)

	if cfg.ABTesting {
		engine.SetAssigner(recommend.HashAssigner{})
	}
	return engine, nil
}

// maintenanceConfig maps settings onto the job configuration. Zero values
// keep the defaults.
func maintenanceConfig(mc *config.MaintenanceConfig) orchestration.MaintenanceConfig {
	out := orchestration.DefaultMaintenanceConfig()
	if mc.Retention > 0 {
		out.Retention = mc.Retention
	}
	if mc.RetrainAfter > 0 {
		out.RetrainAfter = mc.RetrainAfter
	}
	if mc.StaleAfter > 0 {
		out.StaleAfter = mc.StaleAfter
	}
	if mc.DecayHalfLife > 0 {
		out.DecayHalfLife = mc.DecayHalfLife
	}
	if mc.JobTimeout > 0 {
		out.JobTimeout = mc.JobTimeout
	}
	return out
}

// buildMaintenance creates the jobs. Retraining loads published embedding
// snapshots when a models path is configured and only logs otherwise.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func buildMaintenance(mc *config.MaintenanceConfig, st store.Store, learner *preference.Learner, embeddings *algorithms.StaticEmbeddings, logger zerolog.Logger) (*orchestration.Maintenance, error) {
	var trainer orchestration.Trainer = orchestration.NewLogTrainer(logger)
	if mc.ModelsPath != "" {
		snapshots, err := storage.NewStore(mc.ModelsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open model snapshots: %w", err)
		}
		trainer = orchestration.NewSnapshotTrainer(snapshots, embeddings, mc.ModelsKeep, logger)
	}
	return orchestration.NewMaintenance(maintenanceConfig(mc), st, learner, trainer, time.Now)
}
