// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/shelfwise/internal/config"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/store"
)

// testDBSemaphore serializes DuckDB usage across tests; concurrent CGO
// connections from many parallel tests are slow and flaky in CI.
var testDBSemaphore = make(chan struct{}, 1)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := New(&config.StoreConfig{Path: ":memory:", MaxMemory: "512MB", Threads: 2})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return db
}

func checkNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEvents_CreateFindCount(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	events := []models.BehaviorEvent{
		{ID: "e1", UserID: "u1", ItemID: "b1", BehaviorType: models.BehaviorView, Intensity: 1,
			ConfidenceScore: 0.5, IsImplicit: true, CreatedAt: baseTime},
		{ID: "e2", UserID: "u1", ItemID: "b2", BehaviorType: models.BehaviorBorrow, Intensity: 4,
			ConfidenceScore: 0.9, Context: map[string]interface{}{"device": "kiosk"}, CreatedAt: baseTime.Add(time.Minute)},
		{ID: "e3", UserID: "u2", BehaviorType: models.BehaviorSearch, Intensity: 1,
			Context: map[string]interface{}{"query": "dune"}, CreatedAt: baseTime.Add(2 * time.Minute)},
	}
	checkNoError(t, db.CreateEvents(ctx, events[:2]))
	checkNoError(t, db.CreateEvent(ctx, &events[2]))

	got, err := db.FindEvents(ctx, store.EventFilter{UserID: "u1"})
	checkNoError(t, err)
	if len(got) != 2 {
		t.Fatalf("expected 2 events for u1, got %d", len(got))
	}
	if got[0].ID != "e2" {
		t.Errorf("expected newest first, got %s", got[0].ID)
	}
	if got[0].ContextString("device") != "kiosk" {
		t.Errorf("context not round-tripped: %v", got[0].Context)
	}
	if !got[0].CreatedAt.Equal(baseTime.Add(time.Minute)) {
		t.Errorf("created_at = %v", got[0].CreatedAt)
	}

	n, err := db.CountEvents(ctx, store.EventFilter{
		Types: []models.BehaviorType{models.BehaviorView, models.BehaviorSearch},
	})
	checkNoError(t, err)
	if n != 2 {
		t.Errorf("expected 2 view/search events, got %d", n)
	}

	// Until is exclusive.
	n, err = db.CountEvents(ctx, store.EventFilter{Since: baseTime, Until: baseTime.Add(2 * time.Minute)})
	checkNoError(t, err)
	if n != 2 {
		t.Errorf("expected 2 events in window, got %d", n)
	}
}

func TestEvents_MarkFlags(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	checkNoError(t, db.CreateEvents(ctx, []models.BehaviorEvent{
		{ID: "e1", UserID: "u1", BehaviorType: models.BehaviorClick, Intensity: 1, CreatedAt: baseTime},
		{ID: "e2", UserID: "u1", BehaviorType: models.BehaviorClick, Intensity: 1, CreatedAt: baseTime},
	}))
	checkNoError(t, db.MarkEventsProcessed(ctx, []string{"e1"}))
	checkNoError(t, db.MarkEventsAnomalous(ctx, []string{"e1", "e2"}))
	checkNoError(t, db.MarkEventsProcessed(ctx, nil))

	unprocessed, err := db.FindEvents(ctx, store.EventFilter{Processed: store.Bool(false)})
	checkNoError(t, err)
	if len(unprocessed) != 1 || unprocessed[0].ID != "e2" {
		t.Errorf("unexpected unprocessed events: %+v", unprocessed)
	}
	n, err := db.CountEvents(ctx, store.EventFilter{Anomalous: store.Bool(true)})
	checkNoError(t, err)
	if n != 2 {
		t.Errorf("expected 2 anomalous events, got %d", n)
	}
}

func TestPreferences_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetPreference(ctx, "missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	older := models.NewUserPreference("u1", baseTime)
	older.CategoryWeights["fiction"] = 0.4
	older.Negative.DislikedAuthors = []string{"Anon"}
	older.ConfidenceScore = 0.2
	older.InteractionCount = 3
	checkNoError(t, db.SavePreference(ctx, older))

	newer := models.NewUserPreference("u2", baseTime.Add(time.Hour))
	checkNoError(t, db.SavePreference(ctx, newer))

	got, err := db.GetPreference(ctx, "u1")
	checkNoError(t, err)
	if got.CategoryWeights["fiction"] != 0.4 || got.InteractionCount != 3 {
		t.Errorf("unexpected preference: %+v", got)
	}
	if !got.Negative.DislikesAuthor("anon") {
		t.Error("negative preferences not round-tripped")
	}
	if got.TagWeights == nil {
		t.Error("expected non-nil tag weights")
	}

	older.CategoryWeights["fiction"] = 0.6
	checkNoError(t, db.SavePreference(ctx, older))
	got, err = db.GetPreference(ctx, "u1")
	checkNoError(t, err)
	if got.CategoryWeights["fiction"] != 0.6 {
		t.Errorf("upsert did not replace weights: %v", got.CategoryWeights)
	}

	stale, err := db.FindPreferences(ctx, store.PreferenceFilter{UpdatedBefore: baseTime.Add(30 * time.Minute)})
	checkNoError(t, err)
	if len(stale) != 1 || stale[0].UserID != "u1" {
		t.Errorf("unexpected stale preferences: %+v", stale)
	}
	all, err := db.FindPreferences(ctx, store.PreferenceFilter{})
	checkNoError(t, err)
	if len(all) != 2 || all[0].UserID != "u1" {
		t.Errorf("expected oldest first, got %+v", all)
	}
}

func TestRecommendations_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	recs := []models.Recommendation{
		{ID: "r1", UserID: "u1", ItemID: "b1", Algorithm: "hybrid", Score: 0.9, Rank: 1,
			Scenario: models.ScenarioHomepage, Status: models.StatusGenerated, BatchID: "batch-1", CreatedAt: baseTime},
		{ID: "r2", UserID: "u1", ItemID: "b2", Algorithm: "hybrid", Score: 0.8, Rank: 2,
			Scenario: models.ScenarioHomepage, Status: models.StatusGenerated, BatchID: "batch-1", CreatedAt: baseTime},
	}
	checkNoError(t, db.CreateRecommendations(ctx, recs))

	rec, err := db.GetRecommendation(ctx, "r1")
	checkNoError(t, err)
	rec.MarkDisplayed(baseTime.Add(time.Minute))
	rec.MarkClicked(baseTime.Add(2 * time.Minute))
	score := 0.5
	rec.FeedbackScore = &score
	checkNoError(t, db.UpdateRecommendation(ctx, rec))

	rec, err = db.GetRecommendation(ctx, "r1")
	checkNoError(t, err)
	if rec.Status != models.StatusClicked || rec.ClickCount != 1 || rec.DisplayCount != 1 {
		t.Errorf("unexpected recommendation after update: %+v", rec)
	}
	if rec.LastClickedAt == nil || rec.FeedbackScore == nil || *rec.FeedbackScore != 0.5 {
		t.Errorf("nullable columns not round-tripped: %+v", rec)
	}

	err = db.UpdateRecommendation(ctx, &models.Recommendation{ID: "nope", Status: models.StatusClicked})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound updating missing row, got %v", err)
	}

	batch, err := db.FindRecommendations(ctx, store.RecommendationFilter{BatchID: "batch-1"})
	checkNoError(t, err)
	if len(batch) != 2 || batch[0].Rank != 1 {
		t.Errorf("expected batch ordered by rank, got %+v", batch)
	}

	n, err := db.CountRecommendations(ctx, store.RecommendationFilter{
		Statuses: []models.RecommendationStatus{models.StatusClicked},
	})
	checkNoError(t, err)
	if n != 1 {
		t.Errorf("expected 1 clicked, got %d", n)
	}

	deleted, err := db.DeleteRecommendations(ctx, store.RecommendationFilter{
		Statuses:      []models.RecommendationStatus{models.StatusGenerated},
		CreatedBefore: baseTime.Add(time.Hour),
	})
	checkNoError(t, err)
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}
}

func TestFeedback_CreateAndProcess(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rel := 0.8
	fb := &models.RecommendationFeedback{
		ID: "f1", UserID: "u1", RecommendationID: "r1", ItemID: "b1",
		FeedbackType: models.FeedbackExplicit, FeedbackValue: 0.6,
		Dimensions: models.FeedbackDimensions{Relevance: &rel},
		Comment:    "great pick", CreatedAt: baseTime,
	}
	checkNoError(t, db.CreateFeedback(ctx, fb))
	checkNoError(t, db.MarkFeedbackProcessed(ctx, "f1"))

	if err := db.MarkFeedbackProcessed(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	got, err := db.FindFeedback(ctx, store.FeedbackFilter{UserID: "u1", Processed: store.Bool(true)})
	checkNoError(t, err)
	if len(got) != 1 {
		t.Fatalf("expected 1 feedback row, got %d", len(got))
	}
	if got[0].Dimensions.Relevance == nil || *got[0].Dimensions.Relevance != 0.8 {
		t.Errorf("dimensions not round-tripped: %+v", got[0].Dimensions)
	}
	if got[0].Comment != "great pick" {
		t.Errorf("comment = %q", got[0].Comment)
	}
}

func TestAlgorithms_SaveList(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, alg := range models.DefaultAlgorithms() {
		alg := alg
		checkNoError(t, db.SaveAlgorithm(ctx, &alg))
	}
	algs, err := db.ListAlgorithms(ctx)
	checkNoError(t, err)
	if len(algs) != len(models.DefaultAlgorithms()) {
		t.Fatalf("expected %d algorithms, got %d", len(models.DefaultAlgorithms()), len(algs))
	}
	if algs[0].ID != "alg-hybrid" {
		t.Errorf("expected highest priority first, got %s", algs[0].ID)
	}
	for _, a := range algs {
		if a.ID == "alg-user-cf" && a.Param("neighbors", 0) != 20 {
			t.Errorf("hyperparameters not round-tripped: %v", a.Hyperparameters)
		}
		if a.ID == "alg-popularity" && !a.AppliesTo(models.ScenarioSearch) {
			t.Error("popularity should apply to every scenario")
		}
	}
}

func TestAlgorithms_TrainingTimestamps(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	started := baseTime.Add(-10 * time.Minute)
	alg := models.AlgorithmConfig{
		ID: "alg-embedding", Name: "embedding", Type: models.AlgorithmDeepLearning,
		Enabled: true, TrainingStatus: models.TrainingRunning, TrainingStartedAt: &started,
	}
	checkNoError(t, db.SaveAlgorithm(ctx, &alg))

	algs, err := db.ListAlgorithms(ctx)
	checkNoError(t, err)
	if len(algs) != 1 || algs[0].TrainingStartedAt == nil || !algs[0].TrainingStartedAt.Equal(started) {
		t.Fatalf("training start not round-tripped: %+v", algs)
	}

	trained := baseTime
	alg.TrainingStatus = models.TrainingTrained
	alg.LastTrainedAt = &trained
	alg.TrainingStartedAt = nil
	checkNoError(t, db.SaveAlgorithm(ctx, &alg))
	algs, err = db.ListAlgorithms(ctx)
	checkNoError(t, err)
	if algs[0].TrainingStartedAt != nil || algs[0].LastTrainedAt == nil || !algs[0].LastTrainedAt.Equal(trained) {
		t.Errorf("timestamps after training = started %v trained %v", algs[0].TrainingStartedAt, algs[0].LastTrainedAt)
	}
}

func TestAnomalies_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := models.Anomaly{
		ID: "anom-1", UserID: "u1", Kind: models.AnomalyHighFrequency, EventCount: 120, Threshold: 100,
		WindowStart: baseTime, WindowEnd: baseTime.Add(time.Hour), EventIDs: []string{"e1", "e2"},
		DetectedAt: baseTime.Add(time.Hour),
	}
	n, err := db.SaveAnomalies(ctx, []models.Anomaly{a})
	checkNoError(t, err)
	if n != 1 {
		t.Errorf("expected 1 inserted, got %d", n)
	}
	n, err = db.SaveAnomalies(ctx, []models.Anomaly{a})
	checkNoError(t, err)
	if n != 0 {
		t.Errorf("expected duplicate to be skipped, got %d", n)
	}

	got, err := db.FindAnomalies(ctx, store.AnomalyFilter{UserID: "u1"})
	checkNoError(t, err)
	if len(got) != 1 || len(got[0].EventIDs) != 2 {
		t.Errorf("unexpected anomalies: %+v", got)
	}
}

func TestCatalog_QueryItems(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	checkNoError(t, db.UpsertItems(ctx, []models.Item{
		{ID: "b1", Title: "Dune", Category: "SciFi", Author: "Herbert", Tags: []string{"space"}, Rating: 4.5, CreatedAt: baseTime},
		{ID: "b2", Title: "Dune Messiah", Category: "scifi", Author: "Herbert", Rating: 4.0, CreatedAt: baseTime.Add(time.Hour)},
		{ID: "b3", Title: "Emma", Category: "classic", Author: "Austen", Rating: 4.1, CreatedAt: baseTime.Add(2 * time.Hour)},
	}))

	item, err := db.GetItem(ctx, "b1")
	checkNoError(t, err)
	if len(item.Tags) != 1 || item.Tags[0] != "space" {
		t.Errorf("tags not round-tripped: %v", item.Tags)
	}
	if _, err := db.GetItem(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	tests := []struct {
		name   string
		filter store.ItemFilter
		want   []string
	}{
		{"category case-insensitive", store.ItemFilter{Category: "SCIFI"}, []string{"b2", "b1"}},
		{"title substring", store.ItemFilter{TitleContains: "messiah"}, []string{"b2"}},
		{"ids", store.ItemFilter{IDs: []string{"b1", "b3"}}, []string{"b3", "b1"}},
		{"created after", store.ItemFilter{CreatedAfter: baseTime.Add(time.Hour)}, []string{"b3", "b2"}},
		{"limit", store.ItemFilter{Limit: 1}, []string{"b3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := db.QueryItems(ctx, tt.filter)
			checkNoError(t, err)
			if len(items) != len(tt.want) {
				t.Fatalf("got %d items, want %d", len(items), len(tt.want))
			}
			for i, id := range tt.want {
				if items[i].ID != id {
					t.Errorf("items[%d] = %s, want %s", i, items[i].ID, id)
				}
			}
		})
	}
}
