// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/shelfwise/internal/config"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/orchestration"
	"github.com/tomtom215/shelfwise/internal/preference"
	"github.com/tomtom215/shelfwise/internal/recommend/algorithms"
)

func TestOpenStore_MemorySeedsAlgorithms(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sh, err := openStore(ctx, &config.StoreConfig{Backend: "memory", SeedAlgorithms: true})
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	if sh.closer != nil {
		t.Error("memory store should not need closing")
	}
	if err := sh.ping(ctx); err != nil {
		t.Errorf("ping() error = %v", err)
	}

	algs, err := sh.store.ListAlgorithms(ctx)
	if err != nil {
		t.Fatalf("ListAlgorithms() error = %v", err)
	}
	if len(algs) != len(models.DefaultAlgorithms()) {
		t.Errorf("seeded %d algorithms, want %d", len(algs), len(models.DefaultAlgorithms()))
	}

	// Seeding is skipped when algorithms already exist.
	if err := seedAlgorithms(ctx, sh.store); err != nil {
		t.Fatalf("seedAlgorithms() error = %v", err)
	}
	again, _ := sh.store.ListAlgorithms(ctx)
	if len(again) != len(algs) {
		t.Errorf("second seed changed the catalog: %d -> %d", len(algs), len(again))
	}
}

func TestOpenStore_NoSeed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sh, err := openStore(ctx, &config.StoreConfig{Backend: "memory"})
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	algs, _ := sh.store.ListAlgorithms(ctx)
	if len(algs) != 0 {
		t.Errorf("algorithms = %d, want 0", len(algs))
	}
}

func TestMaintenanceConfig(t *testing.T) {
	t.Parallel()

	def := orchestration.DefaultMaintenanceConfig()

	got := maintenanceConfig(&config.MaintenanceConfig{})
	if got != def {
		t.Errorf("zero settings = %+v, want defaults %+v", got, def)
	}

	got = maintenanceConfig(&config.MaintenanceConfig{
		Retention:  48 * time.Hour,
		JobTimeout: time.Minute,
	})
	if got.Retention != 48*time.Hour || got.JobTimeout != time.Minute {
		t.Errorf("overrides not applied: %+v", got)
	}
	if got.StaleAfter != def.StaleAfter {
		t.Errorf("StaleAfter = %v, want default %v", got.StaleAfter, def.StaleAfter)
	}
}

func TestBuildEngine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sh, err := openStore(ctx, &config.StoreConfig{Backend: "memory", SeedAlgorithms: true})
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}

	cfg := config.Default().Recommend
	engine, err := buildEngine(&cfg, sh.store, sh.catalog, algorithms.NewStaticEmbeddings(), zerolog.Nop())
	if err != nil {
		t.Fatalf("buildEngine() error = %v", err)
	}
	for _, typ := range []models.AlgorithmType{models.AlgorithmHybrid, models.AlgorithmPopularity, models.AlgorithmItemCF} {
		if _, ok := engine.Generator(typ); !ok {
			t.Errorf("generator %s not registered", typ)
		}
	}

	cfg.DiversityStrategy = "shuffle-everything"
	if _, err := buildEngine(&cfg, sh.store, sh.catalog, algorithms.NewStaticEmbeddings(), zerolog.Nop()); err == nil {
		t.Error("buildEngine() should reject an unknown diversity strategy")
	}
}

func TestBuildMaintenance_LogTrainerWithoutModelsPath(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sh, err := openStore(ctx, &config.StoreConfig{Backend: "memory", SeedAlgorithms: true})
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}

	m, err := buildMaintenance(&config.MaintenanceConfig{}, sh.store, preference.NewLearner(sh.store, time.Now), algorithms.NewStaticEmbeddings(), zerolog.Nop())
	if err != nil {
		t.Fatalf("buildMaintenance() error = %v", err)
	}
	if _, err := m.PurgeExpired(ctx); err != nil {
		t.Errorf("PurgeExpired() error = %v", err)
	}
}

func TestOpenBus_Memory(t *testing.T) {
	t.Parallel()

	bus, err := openBus(&config.EventsConfig{Backend: "memory", Buffer: 16})
	if err != nil {
		t.Fatalf("openBus() error = %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
