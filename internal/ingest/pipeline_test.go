// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package ingest

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/shelfwise/internal/events"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/preference"
	"github.com/tomtom215/shelfwise/internal/store"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	p     *Pipeline
	mem   *store.Memory
	clock *testClock
}

// newFixture builds a pipeline over an in-memory store whose catalog holds
// books b1 (fantasy) and b2 (mystery). Random never samples unless overridden.
func newFixture(t *testing.T, cfg Config, mutate func(*Deps)) *fixture {
	t.Helper()
	mem := store.NewMemory()
	clock := newTestClock()
	err := mem.UpsertItems(context.Background(), []models.Item{
		{ID: "b1", Title: "The Hobbit", Category: "fantasy", Author: "Tolkien", Tags: []string{"Dragons"}},
		{ID: "b2", Title: "Gone Girl", Category: "mystery", Author: "Flynn"},
	})
	if err != nil {
		t.Fatalf("UpsertItems: %v", err)
	}
	deps := Deps{
		Store:   mem,
		Catalog: mem,
		Learner: preference.NewLearner(mem, clock.Now),
		Clock:   clock.Now,
		Random:  func() float64 { return 0.99 },
	}
	if mutate != nil {
		mutate(&deps)
	}
	p, err := NewPipeline(cfg, deps)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return &fixture{p: p, mem: mem, clock: clock}
}

func (f *fixture) storedEvents(t *testing.T) []models.BehaviorEvent {
	t.Helper()
	evts, err := f.mem.FindEvents(context.Background(), store.EventFilter{})
	if err != nil {
		t.Fatalf("FindEvents: %v", err)
	}
	return evts
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewPipelineRequiresStore(t *testing.T) {
	if _, err := NewPipeline(DefaultConfig(), Deps{}); err == nil {
		t.Error("expected error without store")
	}
}

func TestTrackRejectsInvalidEvents(t *testing.T) {
	tests := []struct {
		name  string
		event *models.BehaviorEvent
		field string
	}{
		{"nil event", nil, "event"},
		{"missing user", &models.BehaviorEvent{BehaviorType: models.BehaviorView}, "userId"},
		{"blank user", &models.BehaviorEvent{UserID: "  ", BehaviorType: models.BehaviorView}, "userId"},
		{"missing type", &models.BehaviorEvent{UserID: "u1"}, "behaviorType"},
		{"unknown type", &models.BehaviorEvent{UserID: "u1", BehaviorType: "teleport"}, "behaviorType"},
		{"NaN intensity", &models.BehaviorEvent{UserID: "u1", ItemID: "b1", BehaviorType: models.BehaviorBorrow, Intensity: math.NaN()}, "intensity"},
		{"+Inf intensity", &models.BehaviorEvent{UserID: "u1", ItemID: "b1", BehaviorType: models.BehaviorBorrow, Intensity: math.Inf(1)}, "intensity"},
		{"-Inf intensity", &models.BehaviorEvent{UserID: "u1", ItemID: "b1", BehaviorType: models.BehaviorView, Intensity: math.Inf(-1)}, "intensity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, DefaultConfig(), nil)
			res, err := f.p.Track(context.Background(), tt.event)
			if !errors.Is(err, models.ErrInvalidEvent) {
				t.Fatalf("expected ErrInvalidEvent, got %v", err)
			}
			var invalid *models.InvalidEventError
			if !errors.As(err, &invalid) || invalid.Field != tt.field {
				t.Errorf("field = %v, want %s", invalid, tt.field)
			}
			if res.Accepted || res.Error == "" {
				t.Errorf("unexpected result %+v", res)
			}
			if f.p.QueueLen() != 0 || len(f.storedEvents(t)) != 0 {
				t.Error("rejected event left state behind")
			}
			if _, err := f.mem.GetPreference(context.Background(), "u1"); !errors.Is(err, models.ErrNotFound) {
				t.Errorf("rejected event touched the preference: %v", err)
			}
		})
	}
}

func TestTrackQueuesLowPriorityWithDefaults(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	in := &models.BehaviorEvent{UserID: "u1", ItemID: "b1", BehaviorType: models.BehaviorView}

	res, err := f.p.Track(context.Background(), in)
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if !res.Accepted || !res.Queued || res.EventID == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if in.ID != "" {
		t.Error("Track mutated the caller's event")
	}
	if f.p.QueueLen() != 1 {
		t.Fatalf("QueueLen = %d, want 1", f.p.QueueLen())
	}
	if len(f.storedEvents(t)) != 0 {
		t.Error("queued event persisted before flush")
	}

	if n, err := f.p.Flush(context.Background()); err != nil || n != 1 {
		t.Fatalf("Flush = %d, %v", n, err)
	}
	stored := f.storedEvents(t)[0]
	if stored.ID != res.EventID || stored.Intensity != 1.0 || !stored.IsImplicit {
		t.Errorf("unexpected stored event %+v", stored)
	}
	if !stored.CreatedAt.Equal(f.clock.Now()) {
		t.Errorf("CreatedAt = %v", stored.CreatedAt)
	}
	// view: 0.3 * min(1, 1/5) * 1
	if !approx(stored.ConfidenceScore, 0.06) {
		t.Errorf("ConfidenceScore = %v, want 0.06", stored.ConfidenceScore)
	}
	if stored.Processed {
		t.Error("low-intensity unsampled event should not be marked processed")
	}
}

func TestTrackHighPriorityPersistsAndLearns(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	ctx := context.Background()

	res, err := f.p.Track(ctx, &models.BehaviorEvent{UserID: "u1", ItemID: "b1", BehaviorType: models.BehaviorBorrow})
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if !res.Accepted || res.Queued {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.p.QueueLen() != 0 {
		t.Error("high-priority event was queued")
	}

	stored := f.storedEvents(t)
	if len(stored) != 1 || !stored[0].Processed {
		t.Fatalf("expected one processed event, got %+v", stored)
	}
	if !approx(stored[0].ConfidenceScore, 0.18) {
		t.Errorf("ConfidenceScore = %v, want 0.18", stored[0].ConfidenceScore)
	}

	pref, err := f.mem.GetPreference(ctx, "u1")
	if err != nil {
		t.Fatalf("GetPreference: %v", err)
	}
	// target 0.2, lr 0.3 * (1/3) * 2 = 0.2
	if !approx(pref.CategoryWeights["fantasy"], 0.04) {
		t.Errorf("fantasy weight = %v, want 0.04", pref.CategoryWeights["fantasy"])
	}
	if pref.TagWeights["dragons"] <= 0 {
		t.Errorf("tag weight not learned: %v", pref.TagWeights)
	}
}

func TestTrackHighPriorityPersistenceFailure(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	f.mem.SetFailWrites(errors.New("disk full"))

	res, err := f.p.Track(context.Background(), &models.BehaviorEvent{UserID: "u1", ItemID: "b1", BehaviorType: models.BehaviorRate, Intensity: 4})
	if !errors.Is(err, models.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if res.Accepted || res.EventID == "" {
		t.Errorf("unexpected result %+v", res)
	}
	f.mem.SetFailWrites(nil)
	if _, err := f.mem.GetPreference(context.Background(), "u1"); !errors.Is(err, models.ErrNotFound) {
		t.Error("preference learned from an event that was not persisted")
	}
}

func TestTrackLearningRules(t *testing.T) {
	tests := []struct {
		name   string
		event  models.BehaviorEvent
		random float64
		learns bool
	}{
		{"bookmark always learns", models.BehaviorEvent{UserID: "u1", ItemID: "b1", BehaviorType: models.BehaviorBookmark}, 0.99, true},
		{"intense click learns", models.BehaviorEvent{UserID: "u1", ItemID: "b1", BehaviorType: models.BehaviorClick, Intensity: 3}, 0.99, true},
		{"strong dismiss learns", models.BehaviorEvent{UserID: "u1", ItemID: "b1", BehaviorType: models.BehaviorRecommendationDismiss, Intensity: -4}, 0.99, true},
		{"weak click unsampled", models.BehaviorEvent{UserID: "u1", ItemID: "b1", BehaviorType: models.BehaviorClick}, 0.99, false},
		{"weak click sampled", models.BehaviorEvent{UserID: "u1", ItemID: "b1", BehaviorType: models.BehaviorClick}, 0.01, true},
		{"no item", models.BehaviorEvent{UserID: "u1", BehaviorType: models.BehaviorBookmark}, 0.01, false},
		{"unknown item", models.BehaviorEvent{UserID: "u1", ItemID: "nope", BehaviorType: models.BehaviorBookmark}, 0.01, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			random := tt.random
			f := newFixture(t, DefaultConfig(), func(d *Deps) { d.Random = func() float64 { return random } })
			ctx := context.Background()

			event := tt.event
			if _, err := f.p.Track(ctx, &event); err != nil {
				t.Fatalf("Track: %v", err)
			}
			if _, err := f.p.Flush(ctx); err != nil {
				t.Fatalf("Flush: %v", err)
			}

			_, err := f.mem.GetPreference(ctx, "u1")
			learned := err == nil
			if learned != tt.learns {
				t.Errorf("learned = %v, want %v", learned, tt.learns)
			}
			if stored := f.storedEvents(t); stored[0].Processed != tt.learns {
				t.Errorf("Processed = %v, want %v", stored[0].Processed, tt.learns)
			}
		})
	}
}

func TestDismissLowersWeight(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	ctx := context.Background()

	_, err := f.p.Track(ctx, &models.BehaviorEvent{UserID: "u1", ItemID: "b2", BehaviorType: models.BehaviorRecommendationDismiss, Intensity: -5})
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	pref, err := f.mem.GetPreference(ctx, "u1")
	if err != nil {
		t.Fatalf("GetPreference: %v", err)
	}
	if pref.CategoryWeights["mystery"] >= 0 {
		t.Errorf("mystery weight = %v, want negative", pref.CategoryWeights["mystery"])
	}
}

func TestFlushEmptyQueue(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	n, err := f.p.Flush(context.Background())
	if err != nil || n != 0 {
		t.Errorf("Flush = %d, %v, want 0, nil", n, err)
	}
}

func TestFlushFailureDropsBatch(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.p.Track(ctx, &models.BehaviorEvent{UserID: "u1", BehaviorType: models.BehaviorScroll}); err != nil {
			t.Fatalf("Track: %v", err)
		}
	}
	f.mem.SetFailWrites(errors.New("connection reset"))

	n, err := f.p.Flush(ctx)
	if !errors.Is(err, models.ErrPersistence) || n != 0 {
		t.Fatalf("Flush = %d, %v", n, err)
	}
	if f.p.QueueLen() != 0 {
		t.Error("failed batch should leave the queue")
	}

	f.mem.SetFailWrites(nil)
	if n, _ := f.p.Flush(ctx); n != 0 {
		t.Errorf("dropped batch was flushed again: %d", n)
	}
	if len(f.storedEvents(t)) != 0 {
		t.Error("dropped batch reached the store")
	}
}

func TestFlushFailureRecordsDeadLetter(t *testing.T) {
	clock := newTestClock()
	dl := openTestDeadLetter(t, clock)
	f := newFixture(t, DefaultConfig(), func(d *Deps) {
		d.DeadLetter = dl
		d.Clock = clock.Now
	})
	ctx := context.Background()

	if _, err := f.p.Track(ctx, &models.BehaviorEvent{UserID: "u1", BehaviorType: models.BehaviorView}); err != nil {
		t.Fatalf("Track: %v", err)
	}
	f.mem.SetFailWrites(errors.New("connection reset"))
	if _, err := f.p.Flush(ctx); err == nil {
		t.Fatal("expected flush error")
	}
	if n, _ := dl.Len(); n != 1 {
		t.Fatalf("dead-letter Len = %d, want 1", n)
	}

	f.mem.SetFailWrites(nil)
	clock.Advance(time.Minute)
	stats, err := dl.Replay(ctx, f.mem)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if stats.Replayed != 1 || len(f.storedEvents(t)) != 1 {
		t.Errorf("replay stats %+v, stored %d", stats, len(f.storedEvents(t)))
	}
}

func TestRunFlushesAtBatchSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 3
	cfg.FlushInterval = time.Hour
	f := newFixture(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.p.Run(ctx) }()

	for i := 0; i < 3; i++ {
		if _, err := f.p.Track(ctx, &models.BehaviorEvent{UserID: "u1", BehaviorType: models.BehaviorHover}); err != nil {
			t.Fatalf("Track: %v", err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(f.storedEvents(t)) < 3 {
		if time.Now().After(deadline) {
			t.Fatal("batch threshold did not trigger a flush")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}
}

func TestRunFlushesOnShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FlushInterval = time.Hour
	f := newFixture(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.p.Run(ctx) }()

	for i := 0; i < 2; i++ {
		if _, err := f.p.Track(ctx, &models.BehaviorEvent{UserID: "u1", BehaviorType: models.BehaviorView}); err != nil {
			t.Fatalf("Track: %v", err)
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	if got := len(f.storedEvents(t)); got != 2 {
		t.Errorf("stored %d events after shutdown, want 2", got)
	}
}

func TestTrackBatchPartialSuccess(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	res := f.p.TrackBatch(context.Background(), []*models.BehaviorEvent{
		{UserID: "u1", BehaviorType: models.BehaviorView},
		{UserID: "", BehaviorType: models.BehaviorView},
		nil,
		{UserID: "u2", ItemID: "b1", BehaviorType: models.BehaviorBorrow},
	})

	if res.Processed != 2 || res.Failed != 2 || len(res.Results) != 4 {
		t.Fatalf("unexpected batch result %+v", res)
	}
	if res.Results[1].Accepted || !res.Results[3].Accepted {
		t.Errorf("results out of order: %+v", res.Results)
	}
}

func TestTrackSearch(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	ctx := context.Background()

	res, err := f.p.TrackSearch(ctx, "u1", "dragons", 12, map[string]interface{}{"device": "mobile"})
	if err != nil || !res.Queued {
		t.Fatalf("TrackSearch = %+v, %v", res, err)
	}
	if _, err := f.p.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	e := f.storedEvents(t)[0]
	if e.BehaviorType != models.BehaviorSearch || e.Intensity != 1.5 {
		t.Errorf("unexpected event %+v", e)
	}
	if e.Context[ContextQuery] != "dragons" || e.Context[ContextResultCount] != 12 || e.Context["device"] != "mobile" {
		t.Errorf("unexpected context %v", e.Context)
	}
}

func TestTrackReadingSession(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	ctx := context.Background()
	start := f.clock.Now().Add(-time.Hour)

	session := ReadingSession{
		StartTime:          start,
		EndTime:            start.Add(20 * time.Minute),
		PagesRead:          10,
		ProgressPercentage: 25,
		Interruptions:      3,
	}
	if _, err := f.p.TrackReadingSession(ctx, "u1", "b1", session, nil); err != nil {
		t.Fatalf("TrackReadingSession: %v", err)
	}
	if _, err := f.p.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	e := f.storedEvents(t)[0]
	// 20/10 + 10/20 + 25/25
	if !approx(e.Intensity, 3.5) {
		t.Errorf("Intensity = %v, want 3.5", e.Intensity)
	}
	if e.DurationSeconds != 1200 || e.BehaviorType != models.BehaviorRead {
		t.Errorf("unexpected event %+v", e)
	}
	if q, _ := e.Context[ContextSessionQuality].(float64); !approx(q, 0.7) {
		t.Errorf("sessionQuality = %v", e.Context[ContextSessionQuality])
	}
	// read: 0.6 * min(1, 3.5/5) * 0.7
	if !approx(e.ConfidenceScore, 0.6*0.7*0.7) {
		t.Errorf("ConfidenceScore = %v", e.ConfidenceScore)
	}
	if !e.Processed {
		t.Error("intensity above the learning threshold should be learned")
	}
}

func TestTrackReadingSessionInvalid(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	now := f.clock.Now()

	tests := []struct {
		name    string
		itemID  string
		session ReadingSession
		field   string
	}{
		{"end before start", "b1", ReadingSession{StartTime: now, EndTime: now.Add(-time.Minute)}, "endTime"},
		{"missing item", "", ReadingSession{StartTime: now, EndTime: now}, "itemId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.p.TrackReadingSession(context.Background(), "u1", tt.itemID, tt.session, nil)
			var invalid *models.InvalidEventError
			if !errors.As(err, &invalid) || invalid.Field != tt.field {
				t.Errorf("expected InvalidEventError on %s, got %v", tt.field, err)
			}
		})
	}
	if f.p.QueueLen() != 0 {
		t.Error("invalid session was queued")
	}
}

func TestReadingIntensityIsMonotonic(t *testing.T) {
	base := ReadingIntensity(10*time.Minute, 5, 10)
	tests := []struct {
		name string
		got  float64
	}{
		{"longer", ReadingIntensity(20*time.Minute, 5, 10)},
		{"more pages", ReadingIntensity(10*time.Minute, 15, 10)},
		{"more progress", ReadingIntensity(10*time.Minute, 5, 30)},
	}
	for _, tt := range tests {
		if tt.got <= base {
			t.Errorf("%s: %v not above %v", tt.name, tt.got, base)
		}
	}
	if got := ReadingIntensity(10*time.Hour, 500, 100); got != 5 {
		t.Errorf("intensity cap = %v, want 5", got)
	}
	if got := ReadingIntensity(0, 0, 0); got != 0 {
		t.Errorf("empty session intensity = %v, want 0", got)
	}
}

func TestSessionQuality(t *testing.T) {
	tests := []struct {
		interruptions int
		want          float64
	}{
		{0, 1},
		{2, 0.8},
		{7, 0.3},
		{20, 0.3},
	}
	for _, tt := range tests {
		if got := SessionQuality(tt.interruptions); !approx(got, tt.want) {
			t.Errorf("SessionQuality(%d) = %v, want %v", tt.interruptions, got, tt.want)
		}
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name      string
		typ       models.BehaviorType
		intensity float64
		context   map[string]interface{}
		want      float64
	}{
		{"borrow full intensity", models.BehaviorBorrow, 5, nil, 0.9},
		{"intensity capped", models.BehaviorBorrow, 50, nil, 0.9},
		{"scaled by intensity", models.BehaviorClick, 2.5, nil, 0.2},
		{"negative uses magnitude", models.BehaviorRecommendationDismiss, -5, nil, 0.4},
		{"numeric quality", models.BehaviorRead, 5, map[string]interface{}{ContextSessionQuality: 0.5}, 0.3},
		{"string quality", models.BehaviorRead, 5, map[string]interface{}{ContextSessionQuality: "0.5"}, 0.3},
		{"garbage quality", models.BehaviorRead, 5, map[string]interface{}{ContextSessionQuality: "high"}, 0.6},
		{"NaN intensity", models.BehaviorBorrow, math.NaN(), nil, 0},
		{"infinite intensity capped", models.BehaviorBorrow, math.Inf(1), nil, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(tt.typ, tt.intensity, sessionQuality(tt.context))
			if !approx(got, tt.want) {
				t.Errorf("Confidence = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHighPriorityPublishesNotification(t *testing.T) {
	bus := events.NewBus(16)
	defer bus.Close()
	f := newFixture(t, DefaultConfig(), func(d *Deps) { d.Bus = bus })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan events.HighPriorityBehavior, 64)
	go func() {
		_ = bus.ConsumeHighPriority(ctx, func(_ context.Context, evt events.HighPriorityBehavior) error {
			got <- evt
			return nil
		})
	}()

	// gochannel drops messages published before the subscription exists.
	deadline := time.Now().Add(5 * time.Second)
	for len(got) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no high-priority notification received")
		}
		if _, err := f.p.Track(ctx, &models.BehaviorEvent{UserID: "u1", ItemID: "b1", BehaviorType: models.BehaviorShare}); err != nil {
			t.Fatalf("Track: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if evt := <-got; evt.UserID != "u1" || evt.BehaviorType != models.BehaviorShare {
		t.Errorf("unexpected notification %+v", evt)
	}
}
