// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package ingest accepts user behavior events, persists them and feeds the
// preference learner.
//
// High-priority behaviors (borrow, rate, review, share) are written
// synchronously and learned from immediately at a doubled rate. Everything
// else is appended to an in-memory queue that Run drains on a timer or once
// the batch size is reached. Flushes are serialized by a mutex; threshold
// triggers coalesce into a single pending request so none is lost while a
// flush is running.
//
// A failed flush is logged and, when a DeadLetter is configured, recorded
// for replay on later ticks. Without one the batch is dropped: ingestion
// favors availability over durability.
package ingest

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/shelfwise/internal/breaker"
	"github.com/tomtom215/shelfwise/internal/config"
	"github.com/tomtom215/shelfwise/internal/events"
	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/metrics"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/preference"
	"github.com/tomtom215/shelfwise/internal/store"
)

// Context keys written by the tracking helpers.
const (
	ContextSessionQuality = "sessionQuality"
	ContextQuery          = "query"
	ContextResultCount    = "resultCount"
)

// searchIntensity is the fixed intensity of search events.
const searchIntensity = 1.5

// Config tunes the pipeline.
type Config struct {
	FlushInterval time.Duration
	BatchSize     int

	// SampleRate is the chance that a low-signal event still updates preferences.
	SampleRate float64

	// LearnIntensity is the absolute intensity at which any event is learned from.
	LearnIntensity float64

	AnomalyInterval    time.Duration
	AnomalyWindow      time.Duration
	FrequencyThreshold int
	TypeThresholds     map[models.BehaviorType]int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		FlushInterval:      5 * time.Second,
		BatchSize:          100,
		SampleRate:         0.1,
		LearnIntensity:     3.0,
		AnomalyInterval:    time.Minute,
		AnomalyWindow:      time.Hour,
		FrequencyThreshold: 10,
		TypeThresholds:     map[models.BehaviorType]int{models.BehaviorClick: 5},
	}
}

// ConfigFromSettings converts the loaded ingest settings.
func ConfigFromSettings(s *config.IngestConfig) Config {
	cfg := Config{
		FlushInterval:      s.FlushInterval,
		BatchSize:          s.BatchSize,
		SampleRate:         s.SampleRate,
		LearnIntensity:     s.LearnIntensity,
		AnomalyInterval:    s.AnomalyInterval,
		AnomalyWindow:      s.AnomalyWindow,
		FrequencyThreshold: s.FrequencyThreshold,
		TypeThresholds:     make(map[models.BehaviorType]int, len(s.TypeThresholds)),
	}
	for name, n := range s.TypeThresholds {
		cfg.TypeThresholds[models.BehaviorType(strings.ToLower(name))] = n
	}
	return cfg
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.LearnIntensity <= 0 {
		c.LearnIntensity = d.LearnIntensity
	}
	if c.AnomalyInterval <= 0 {
		c.AnomalyInterval = d.AnomalyInterval
	}
	if c.AnomalyWindow <= 0 {
		c.AnomalyWindow = d.AnomalyWindow
	}
	if c.FrequencyThreshold <= 0 {
		c.FrequencyThreshold = d.FrequencyThreshold
	}
	if c.TypeThresholds == nil {
		c.TypeThresholds = d.TypeThresholds
	}
}

// Deps are the pipeline's collaborators. Store is required; the rest are optional.
type Deps struct {
	Store      store.Store
	Catalog    store.Catalog
	Learner    *preference.Learner
	Bus        *events.Bus
	DeadLetter *DeadLetter

	// Clock defaults to time.Now.
	Clock func() time.Time

	// Random returns values in [0,1) for learning samples. Defaults to math/rand/v2.
	Random func() float64
}

// TrackResult reports the outcome for one event.
type TrackResult struct {
	Accepted bool   `json:"accepted"`
	EventID  string `json:"eventId,omitempty"`
	Queued   bool   `json:"queued"`
	Error    string `json:"error,omitempty"`
}

// BatchResult reports the outcome of TrackBatch.
type BatchResult struct {
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Results   []TrackResult `json:"results"`
}

// ReadingSession describes one continuous reading of an item.
type ReadingSession struct {
	StartTime          time.Time `json:"startTime"`
	EndTime            time.Time `json:"endTime"`
	PagesRead          int       `json:"pagesRead"`
	ProgressPercentage float64   `json:"progressPercentage"`
	Interruptions      int       `json:"interruptions"`
}

// Pipeline is the behavior ingestion pipeline.
type Pipeline struct {
	cfg        Config
	store      store.Store
	catalog    store.Catalog
	learner    *preference.Learner
	bus        *events.Bus
	deadLetter *DeadLetter
	clock      func() time.Time
	random     func() float64
	cb         *breaker.Breaker
	logger     zerolog.Logger

	mu    sync.Mutex
	queue []models.BehaviorEvent

	// flushMu serializes drains between the timer and threshold triggers.
	flushMu sync.Mutex

	// flushCh holds at most one pending threshold trigger.
	flushCh chan struct{}
}

// NewPipeline creates a pipeline. Call Run to start draining the queue.
func NewPipeline(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, errors.New("ingest pipeline requires a store")
	}
	cfg.applyDefaults()
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Random == nil {
		deps.Random = rand.Float64
	}
	return &Pipeline{
		cfg:        cfg,
		store:      deps.Store,
		catalog:    deps.Catalog,
		learner:    deps.Learner,
		bus:        deps.Bus,
		deadLetter: deps.DeadLetter,
		clock:      deps.Clock,
		random:     deps.Random,
		cb:         breaker.New(breaker.DefaultConfig("ingest-flush")),
		logger:     logging.WithComponent("ingest"),
		queue:      make([]models.BehaviorEvent, 0, cfg.BatchSize),
		flushCh:    make(chan struct{}, 1),
	}, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Track validates and records one event. Rejected events return an
// *models.InvalidEventError and leave no trace. High-priority events are
// persisted before Track returns; a persistence failure is returned as a
// *models.PersistenceError.
func (p *Pipeline) Track(ctx context.Context, event *models.BehaviorEvent) (TrackResult, error) {
	return p.track(ctx, event, true)
}

func (p *Pipeline) track(ctx context.Context, event *models.BehaviorEvent, defaultIntensity bool) (TrackResult, error) {
	if err := validateEvent(event); err != nil {
		var invalid *models.InvalidEventError
		if errors.As(err, &invalid) {
			metrics.EventsRejected.WithLabelValues(invalid.Field).Inc()
		}
		return TrackResult{Error: err.Error()}, err
	}

	e := *event
	e.Context = cloneContext(event.Context)
	p.enrich(&e, defaultIntensity)

	if e.BehaviorType.IsHighPriority() {
		return p.trackImmediate(ctx, &e)
	}

	e.Processed = p.shouldLearn(&e) && p.learn(ctx, &e, false)
	depth := p.enqueue(e)
	metrics.EventsTracked.WithLabelValues(string(e.BehaviorType), "queued").Inc()

	p.logger.Debug().
		Str("event_id", e.ID).
		Str("user_id", e.UserID).
		Str("behavior_type", string(e.BehaviorType)).
		Int("queue_depth", depth).
		Msg("Event queued")

	return TrackResult{Accepted: true, EventID: e.ID, Queued: true}, nil
}

func (p *Pipeline) trackImmediate(ctx context.Context, e *models.BehaviorEvent) (TrackResult, error) {
	if err := p.store.CreateEvent(ctx, e); err != nil {
		perr := &models.PersistenceError{Op: "create event", Err: err}
		p.logger.Error().Err(err).
			Str("event_id", e.ID).
			Str("user_id", e.UserID).
			Str("behavior_type", string(e.BehaviorType)).
			Msg("Failed to persist high-priority event")
		return TrackResult{EventID: e.ID, Error: perr.Error()}, perr
	}
	metrics.EventsTracked.WithLabelValues(string(e.BehaviorType), "immediate").Inc()

	if p.learn(ctx, e, true) {
		if err := p.store.MarkEventsProcessed(ctx, []string{e.ID}); err != nil {
			p.logger.Warn().Err(err).Str("event_id", e.ID).Msg("Failed to mark event processed")
		} else {
			e.Processed = true
		}
	}

	p.publishTracked(ctx, e)
	if p.bus != nil {
		if err := p.bus.PublishHighPriority(ctx, events.NewHighPriorityBehavior(e)); err != nil {
			p.logger.Warn().Err(err).Str("event_id", e.ID).Msg("Failed to publish high-priority notification")
		}
	}
	return TrackResult{Accepted: true, EventID: e.ID}, nil
}

// TrackBatch tracks each event independently. It never fails as a whole.
func (p *Pipeline) TrackBatch(ctx context.Context, batch []*models.BehaviorEvent) BatchResult {
	result := BatchResult{Results: make([]TrackResult, 0, len(batch))}
	for _, event := range batch {
		res, err := p.Track(ctx, event)
		if err != nil {
			result.Failed++
		} else {
			result.Processed++
		}
		result.Results = append(result.Results, res)
	}
	return result
}

// TrackSearch records a search with its query and result count.
func (p *Pipeline) TrackSearch(ctx context.Context, userID, query string, resultCount int, extra map[string]interface{}) (TrackResult, error) {
	c := cloneContext(extra)
	if c == nil {
		c = make(map[string]interface{}, 2)
	}
	c[ContextQuery] = query
	c[ContextResultCount] = resultCount
	return p.Track(ctx, &models.BehaviorEvent{
		UserID:       userID,
		BehaviorType: models.BehaviorSearch,
		Intensity:    searchIntensity,
		Context:      c,
	})
}

// TrackReadingSession records a read event whose intensity and session
// quality derive from the session.
func (p *Pipeline) TrackReadingSession(ctx context.Context, userID, itemID string, s ReadingSession, extra map[string]interface{}) (TrackResult, error) {
	if itemID == "" {
		err := &models.InvalidEventError{Field: "itemId", Reason: "is required"}
		metrics.EventsRejected.WithLabelValues(err.Field).Inc()
		return TrackResult{Error: err.Error()}, err
	}
	if s.EndTime.Before(s.StartTime) {
		err := &models.InvalidEventError{Field: "endTime", Reason: "is before startTime"}
		metrics.EventsRejected.WithLabelValues(err.Field).Inc()
		return TrackResult{Error: err.Error()}, err
	}

	duration := s.EndTime.Sub(s.StartTime)
	c := cloneContext(extra)
	if c == nil {
		c = make(map[string]interface{}, 4)
	}
	c[ContextSessionQuality] = SessionQuality(s.Interruptions)
	c["pagesRead"] = s.PagesRead
	c["progressPercentage"] = s.ProgressPercentage
	c["interruptions"] = s.Interruptions

	return p.track(ctx, &models.BehaviorEvent{
		UserID:          userID,
		ItemID:          itemID,
		BehaviorType:    models.BehaviorRead,
		Intensity:       ReadingIntensity(duration, s.PagesRead, s.ProgressPercentage),
		DurationSeconds: int(duration / time.Second),
		Context:         c,
	}, false)
}

// ReadingIntensity is min(5, minutes/10 + pages/20 + progress/25).
func ReadingIntensity(duration time.Duration, pages int, progress float64) float64 {
	minutes := math.Max(0, duration.Minutes())
	v := minutes/10 + math.Max(0, float64(pages))/20 + math.Max(0, progress)/25
	return math.Min(5, v)
}

// SessionQuality is 1 minus 0.1 per interruption, kept within [0.3, 1].
func SessionQuality(interruptions int) float64 {
	return clamp(1-0.1*float64(interruptions), 0.3, 1)
}

func validateEvent(e *models.BehaviorEvent) error {
	switch {
	case e == nil:
		return &models.InvalidEventError{Field: "event", Reason: "is required"}
	case strings.TrimSpace(e.UserID) == "":
		return &models.InvalidEventError{Field: "userId", Reason: "is required"}
	case e.BehaviorType == "":
		return &models.InvalidEventError{Field: "behaviorType", Reason: "is required"}
	case !e.BehaviorType.Valid():
		return &models.InvalidEventError{Field: "behaviorType", Reason: "is not a known type: " + string(e.BehaviorType)}
	case math.IsNaN(e.Intensity) || math.IsInf(e.Intensity, 0):
		return &models.InvalidEventError{Field: "intensity", Reason: "must be a finite number"}
	}
	return nil
}

// enrich fills ID, timestamps and derived fields.
func (p *Pipeline) enrich(e *models.BehaviorEvent, defaultIntensity bool) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = p.clock().UTC()
	}
	if defaultIntensity && e.Intensity == 0 {
		e.Intensity = 1.0
	}
	e.IsImplicit = e.BehaviorType.IsImplicit()
	e.IsAnomaly = false
	e.Processed = false
	e.ConfidenceScore = Confidence(e.BehaviorType, e.Intensity, sessionQuality(e.Context))
}

func (p *Pipeline) shouldLearn(e *models.BehaviorEvent) bool {
	if !e.HasItem() {
		return false
	}
	switch e.BehaviorType {
	case models.BehaviorBorrow, models.BehaviorRate, models.BehaviorReview, models.BehaviorBookmark:
		return true
	}
	if math.Abs(e.Intensity) >= p.cfg.LearnIntensity {
		return true
	}
	return p.random() < p.cfg.SampleRate
}

// learn applies the event to the user's preference. Failures are logged.
func (p *Pipeline) learn(ctx context.Context, e *models.BehaviorEvent, highPriority bool) bool {
	if p.learner == nil || p.catalog == nil || !e.HasItem() {
		return false
	}
	item, err := p.catalog.GetItem(ctx, e.ItemID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			p.logger.Warn().Err(err).Str("item_id", e.ItemID).Msg("Catalog lookup failed, skipping preference update")
		}
		return false
	}
	sig := preference.SignalForBehavior(e.BehaviorType, e.Intensity, highPriority)
	if _, err := p.learner.Apply(ctx, e.UserID, item, sig, "behavior"); err != nil {
		p.logger.Warn().Err(err).
			Str("user_id", e.UserID).
			Str("event_id", e.ID).
			Msg("Preference update failed")
		return false
	}
	return true
}

func (p *Pipeline) publishTracked(ctx context.Context, e *models.BehaviorEvent) {
	if p.bus == nil {
		return
	}
	if err := p.bus.PublishBehaviorTracked(ctx, events.NewBehaviorTracked(e)); err != nil {
		p.logger.Warn().Err(err).Str("event_id", e.ID).Msg("Failed to publish tracked notification")
	}
}

func cloneContext(c map[string]interface{}) map[string]interface{} {
	if c == nil {
		return nil
	}
	out := make(map[string]interface{}, len(c)+2)
	for k, v := range c {
		out[k] = v
	}
	return out
}

// clamp maps NaN to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
