// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package orchestration

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/preference"
	"github.com/tomtom215/shelfwise/internal/recommend/algorithms"
	"github.com/tomtom215/shelfwise/internal/recommend/storage"
	"github.com/tomtom215/shelfwise/internal/store"
)

const day = 24 * time.Hour

// fakeTrainer records trained algorithm names and fails for names in fail.
type fakeTrainer struct {
	mu      sync.Mutex
	trained []string
	fail    map[string]bool
}

func (f *fakeTrainer) Train(_ context.Context, alg models.AlgorithmConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[alg.Name] {
		return errors.New("trainer unavailable")
	}
	f.trained = append(f.trained, alg.Name)
	return nil
}

func newMaintenance(t *testing.T, mem *store.Memory, trainer Trainer) *Maintenance {
	t.Helper()
	m, err := NewMaintenance(MaintenanceConfig{
		Retention:     30 * day,
		RetrainAfter:  24 * time.Hour,
		StaleAfter:    7 * day,
		DecayHalfLife: 10 * day,
	}, mem, preference.NewLearner(mem, clock), trainer, clock)
	if err != nil {
		t.Fatalf("NewMaintenance: %v", err)
	}
	return m
}

func TestNewMaintenance_Defaults(t *testing.T) {
	if _, err := NewMaintenance(MaintenanceConfig{}, nil, nil, nil, nil); err == nil {
		t.Error("missing store should fail")
	}
	mem := store.NewMemory()
	m, err := NewMaintenance(MaintenanceConfig{}, mem, preference.NewLearner(mem, nil), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.cfg != DefaultMaintenanceConfig() {
		t.Errorf("cfg = %+v, want defaults", m.cfg)
	}
	if _, ok := m.trainer.(*LogTrainer); !ok {
		t.Errorf("default trainer = %T, want *LogTrainer", m.trainer)
	}
}

func TestPurgeExpired(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	old := testNow.Add(-40 * day)

	recs := []models.Recommendation{
		{ID: "old-generated", UserID: "u1", Status: models.StatusGenerated, CreatedAt: old},
		{ID: "old-borrowed", UserID: "u1", Status: models.StatusBorrowed, CreatedAt: old},
		{ID: "old-clicked", UserID: "u1", Status: models.StatusClicked, CreatedAt: old},
		{ID: "fresh", UserID: "u1", Status: models.StatusGenerated, CreatedAt: testNow.Add(-day)},
	}
	if err := mem.CreateRecommendations(ctx, recs); err != nil {
		t.Fatal(err)
	}

	n, err := newMaintenance(t, mem, nil).PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 2 {
		t.Errorf("purged %d, want 2", n)
	}
	for _, id := range []string{"old-clicked", "fresh"} {
		if _, err := mem.GetRecommendation(ctx, id); err != nil {
			t.Errorf("%s should survive: %v", id, err)
		}
	}

	mem.SetFailWrites(errors.New("locked"))
	if _, err := newMaintenance(t, mem, nil).PurgeExpired(ctx); !errors.Is(err, models.ErrPersistence) {
		t.Errorf("failure err = %v, want ErrPersistence", err)
	}
}

func TestCheckRetraining(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	recent := testNow.Add(-time.Hour)
	stale := testNow.Add(-48 * time.Hour)
	justStarted := testNow.Add(-time.Minute)
	abandoned := testNow.Add(-2 * time.Hour)

	algs := []models.AlgorithmConfig{
		{ID: "a1", Name: "embedding", Type: models.AlgorithmDeepLearning, TrainingStatus: models.TrainingUntrained},
		{ID: "a2", Name: "mf-fresh", Type: models.AlgorithmMatrixFactorization, TrainingStatus: models.TrainingTrained, LastTrainedAt: &recent},
		{ID: "a3", Name: "mf-old", Type: models.AlgorithmMatrixFactorization, TrainingStatus: models.TrainingTrained, LastTrainedAt: &stale},
		{ID: "a4", Name: "busy", Type: models.AlgorithmDeepLearning, TrainingStatus: models.TrainingRunning, TrainingStartedAt: &justStarted},
		{ID: "a6", Name: "crashed", Type: models.AlgorithmMatrixFactorization, TrainingStatus: models.TrainingRunning, TrainingStartedAt: &abandoned},
		{ID: "a7", Name: "crashed-unstamped", Type: models.AlgorithmDeepLearning, TrainingStatus: models.TrainingRunning},
		{ID: "a5", Name: "popularity", Type: models.AlgorithmPopularity},
	}
	for i := range algs {
		if err := mem.SaveAlgorithm(ctx, &algs[i]); err != nil {
			t.Fatal(err)
		}
	}

	trainer := &fakeTrainer{}
	n, err := newMaintenance(t, mem, trainer).CheckRetraining(ctx)
	if err != nil {
		t.Fatalf("CheckRetraining: %v", err)
	}
	sort.Strings(trainer.trained)
	want := []string{"crashed", "crashed-unstamped", "embedding", "mf-old"}
	if n != len(want) || len(trainer.trained) != len(want) {
		t.Fatalf("trained %d %v, want %v", n, trainer.trained, want)
	}
	for i := range want {
		if trainer.trained[i] != want[i] {
			t.Fatalf("trained %v, want %v", trainer.trained, want)
		}
	}

	stored := algorithmsByName(t, mem)
	for _, name := range want {
		a := stored[name]
		if a.TrainingStatus != models.TrainingTrained || a.LastTrainedAt == nil || !a.LastTrainedAt.Equal(testNow) {
			t.Errorf("%s status=%s trained_at=%v", name, a.TrainingStatus, a.LastTrainedAt)
		}
		if a.TrainingStartedAt != nil {
			t.Errorf("%s still carries a training start time", name)
		}
	}
	if stored["busy"].TrainingStatus != models.TrainingRunning {
		t.Error("in-progress training must not be restarted")
	}
}

func TestCheckRetraining_FailureMarksFailed(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	alg := models.AlgorithmConfig{ID: "a1", Name: "embedding", Type: models.AlgorithmDeepLearning, TrainingStatus: models.TrainingStale}
	if err := mem.SaveAlgorithm(ctx, &alg); err != nil {
		t.Fatal(err)
	}

	trainer := &fakeTrainer{fail: map[string]bool{"embedding": true}}
	n, err := newMaintenance(t, mem, trainer).CheckRetraining(ctx)
	if err == nil || n != 0 {
		t.Fatalf("n=%d err=%v, want a failure", n, err)
	}
	if got := algorithmsByName(t, mem)["embedding"].TrainingStatus; got != models.TrainingFailed {
		t.Errorf("status = %s, want failed", got)
	}
}

func algorithmsByName(t *testing.T, mem *store.Memory) map[string]models.AlgorithmConfig {
	t.Helper()
	algs, err := mem.ListAlgorithms(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string]models.AlgorithmConfig, len(algs))
	for _, a := range algs {
		out[a.Name] = a
	}
	return out
}

func TestRefreshStalePreferences(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	stalePref := models.NewUserPreference("u-stale", testNow.Add(-10*day))
	stalePref.CategoryWeights["scifi"] = 0.8
	stalePref.ConfidenceScore = 0.6
	freshPref := models.NewUserPreference("u-fresh", testNow.Add(-day))
	freshPref.CategoryWeights["scifi"] = 0.8
	for _, p := range []*models.UserPreference{stalePref, freshPref} {
		if err := mem.SavePreference(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	n, err := newMaintenance(t, mem, nil).RefreshStalePreferences(ctx)
	if err != nil {
		t.Fatalf("RefreshStalePreferences: %v", err)
	}
	if n != 1 {
		t.Errorf("refreshed %d, want 1", n)
	}

	got, _ := mem.GetPreference(ctx, "u-stale")
	// Ten days at a ten-day half-life halves the weight.
	if w := got.CategoryWeights["scifi"]; w < 0.399 || w > 0.401 {
		t.Errorf("decayed weight = %f, want 0.4", w)
	}
	if !got.LastUpdated.Equal(testNow) {
		t.Errorf("last updated = %v", got.LastUpdated)
	}

	untouched, _ := mem.GetPreference(ctx, "u-fresh")
	if untouched.CategoryWeights["scifi"] != 0.8 {
		t.Error("fresh preference must not decay")
	}
}

func TestSnapshotTrainer(t *testing.T) {
	ctx := context.Background()
	snapshots, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	target := algorithms.NewStaticEmbeddings()
	trainer := NewSnapshotTrainer(snapshots, target, 2, zerolog.Nop())
	alg := models.AlgorithmConfig{Name: "embedding", Type: models.AlgorithmDeepLearning}

	if err := trainer.Train(ctx, alg); !errors.Is(err, storage.ErrNoModel) {
		t.Fatalf("Train without snapshot err = %v, want ErrNoModel", err)
	}

	for i := 1; i <= 4; i++ {
		snap := &storage.EmbeddingSnapshot{
			Dimensions: 2,
			Users:      map[string][]float64{"u1": {float64(i), 1}},
			Items:      map[string][]float64{"b1": {1, 0}},
		}
		if _, err := snapshots.Save(ctx, "embedding", snap, storage.ModelMetadata{TrainedAt: testNow}); err != nil {
			t.Fatal(err)
		}
	}

	if err := trainer.Train(ctx, alg); err != nil {
		t.Fatalf("Train: %v", err)
	}
	vec, err := target.UserEmbedding(ctx, "u1")
	if err != nil {
		t.Fatalf("UserEmbedding: %v", err)
	}
	if vec[0] != 4 {
		t.Errorf("loaded vector %v, want the latest snapshot", vec)
	}
	if _, _, err := snapshots.Load(ctx, "embedding", 2); err == nil {
		t.Error("versions beyond keep should be pruned")
	}
	if _, _, err := snapshots.Load(ctx, "embedding", 3); err != nil {
		t.Errorf("kept version missing: %v", err)
	}
}

func TestScheduler(t *testing.T) {
	mem := store.NewMemory()
	m := newMaintenance(t, mem, nil)

	if _, err := NewScheduler(nil, Schedules{}, zerolog.Nop()); err == nil {
		t.Error("nil maintenance should fail")
	}
	if _, err := NewScheduler(m, Schedules{Purge: "not a schedule"}, zerolog.Nop()); err == nil {
		t.Error("invalid spec should fail")
	}

	s, err := NewScheduler(m, Schedules{Purge: "@daily", Retrain: "@every 1h", Refresh: ""}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(s.engine.Entries()) != 2 {
		t.Errorf("registered %d jobs, want 2", len(s.engine.Entries()))
	}
	if err := s.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
