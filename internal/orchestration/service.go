// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/shelfwise/internal/cache"
	"github.com/tomtom215/shelfwise/internal/events"
	"github.com/tomtom215/shelfwise/internal/ingest"
	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/metrics"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/preference"
	"github.com/tomtom215/shelfwise/internal/recommend"
	"github.com/tomtom215/shelfwise/internal/store"
)

// DefaultCacheTTL is how long a served list is reused.
const DefaultCacheTTL = 5 * time.Minute

// Recommender is the engine surface the service drives.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (*recommend.Result, error)
	Config() recommend.EngineConfig
}

// Tracker accepts behavior events. Satisfied by *ingest.Pipeline.
type Tracker interface {
	Track(ctx context.Context, event *models.BehaviorEvent) (ingest.TrackResult, error)
}

// Config tunes the service.
type Config struct {
	// CacheTTL is the lifetime of a cached list. Default: 5m
	CacheTTL time.Duration
}

// Deps are the service's collaborators. Engine, Store and Catalog are required.
type Deps struct {
	Engine  Recommender
	Store   store.Store
	Catalog store.Catalog
	Cache   cache.Cache
	Tracker Tracker
	Learner *preference.Learner
	Bus     *events.Bus

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Options shapes one GetUserRecommendations call.
type Options struct {
	Scenario     models.Scenario        `json:"scenario"`
	Algorithm    string                 `json:"algorithm,omitempty"`
	Limit        int                    `json:"limit,omitempty"`
	ForceRefresh bool                   `json:"force_refresh,omitempty"`
	Exclude      []string               `json:"exclude,omitempty"`
	Context      map[string]interface{} `json:"context,omitempty"`
}

// Service is the serving and feedback surface in front of the engine. It
// caches served lists, records displays and clicks, turns feedback into
// preference updates, and invalidates a user's cache when their behavior
// changes.
type Service struct {
	cfg     Config
	engine  Recommender
	store   store.Store
	catalog store.Catalog
	cache   cache.Cache
	tracker Tracker
	learner *preference.Learner
	bus     *events.Bus
	clock   func() time.Time
	logger  zerolog.Logger
}

// NewService creates the orchestration service.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if deps.Engine == nil || deps.Store == nil || deps.Catalog == nil {
		return nil, errors.New("orchestration service requires engine, store and catalog")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Service{
		cfg:     cfg,
		engine:  deps.Engine,
		store:   deps.Store,
		catalog: deps.Catalog,
		cache:   deps.Cache,
		tracker: deps.Tracker,
		learner: deps.Learner,
		bus:     deps.Bus,
		clock:   deps.Clock,
		logger:  logging.WithComponent("orchestration"),
	}, nil
}

// SetLogger replaces the component logger.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (s *Service) SetLogger(logger zerolog.Logger) {
	s.logger = logger.With().Str("component", "orchestration").Logger()
}

// GetUserRecommendations serves a personalised list. A cached list for the
// same user, scenario, algorithm and limit is reused unless ForceRefresh
// is set. Fresh lists are marked displayed before they are returned.
//
//nolint:gocritic // hugeParam: opts passed by value for immutability
func (s *Service) GetUserRecommendations(ctx context.Context, userID string, opts Options) (*recommend.Result, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrInvalidRequest)
	}
	if opts.Scenario == "" {
		opts.Scenario = models.ScenarioHomepage
	}
	opts.Limit = s.effectiveLimit(opts.Limit)

	// Exclusion lists are caller specific; such requests bypass the cache.
	cacheable := s.cache != nil && len(opts.Exclude) == 0
	key := cache.RecommendationKey(userID, string(opts.Scenario), opts.Algorithm, opts.Limit)

	if cacheable && !opts.ForceRefresh {
		if res, ok := s.lookup(ctx, key); ok {
			return res, nil
		}
	}

	res, err := s.engine.Recommend(ctx, recommend.Request{
		UserID:    userID,
		Scenario:  opts.Scenario,
		Algorithm: opts.Algorithm,
		Limit:     opts.Limit,
		Exclude:   opts.Exclude,
		Context:   opts.Context,
	})
	if err != nil {
		return nil, err
	}

	s.markDisplayed(ctx, res)

	// Degraded lists are not cached so the next request retries the
	// selected algorithm.
	if cacheable && !res.Degraded && len(res.Items) > 0 {
		s.remember(ctx, key, res)
	}
	return res, nil
}

// GetSimilarItems serves items similar to itemID using item-based
// collaborative filtering, falling back to content similarity. userID may
// be empty; anonymous lists are not persisted.
func (s *Service) GetSimilarItems(ctx context.Context, itemID, userID string, limit int) (*recommend.Result, error) {
	if itemID == "" {
		return nil, fmt.Errorf("%w: item id is required", models.ErrInvalidRequest)
	}
	if _, err := s.catalog.GetItem(ctx, itemID); err != nil {
		return nil, fmt.Errorf("similar items for %s: %w", itemID, err)
	}

	res, err := s.engine.Recommend(ctx, recommend.Request{
		UserID:     userID,
		Scenario:   models.ScenarioItemDetail,
		Algorithm:  string(models.AlgorithmItemCF),
		Limit:      s.effectiveLimit(limit),
		Exclude:    []string{itemID},
		SeedItemID: itemID,
	})
	if err != nil {
		return nil, err
	}
	s.markDisplayed(ctx, res)
	return res, nil
}

// GetTrendingRecommendations serves the items whose activity grew most
// over the last days days (the algorithm default when days <= 0).
func (s *Service) GetTrendingRecommendations(ctx context.Context, userID string, limit, days int) (*recommend.Result, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrInvalidRequest)
	}
	var reqCtx map[string]interface{}
	if days > 0 {
		reqCtx = map[string]interface{}{"days": days}
	}
	res, err := s.engine.Recommend(ctx, recommend.Request{
		UserID:    userID,
		Scenario:  models.ScenarioTrending,
		Algorithm: string(models.AlgorithmTrending),
		Limit:     s.effectiveLimit(limit),
		Context:   reqCtx,
	})
	if err != nil {
		return nil, err
	}
	s.markDisplayed(ctx, res)
	return res, nil
}

// GetNewItemsRecommendations serves items added to the catalog within the
// last days days (default 30), ordered by the scenario's algorithm.
func (s *Service) GetNewItemsRecommendations(ctx context.Context, userID string, limit, days int) (*recommend.Result, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrInvalidRequest)
	}
	if days <= 0 {
		days = 30
	}
	res, err := s.engine.Recommend(ctx, recommend.Request{
		UserID:       userID,
		Scenario:     models.ScenarioNewArrivals,
		Limit:        s.effectiveLimit(limit),
		CreatedAfter: s.clock().Add(-time.Duration(days) * 24 * time.Hour),
	})
	if err != nil {
		return nil, err
	}
	s.markDisplayed(ctx, res)
	return res, nil
}

// InvalidateUser drops every cached list for userID.
func (s *Service) InvalidateUser(ctx context.Context, userID string) (int, error) {
	if s.cache == nil || userID == "" {
		return 0, nil
	}
	n, err := s.cache.DeletePrefix(ctx, cache.UserPrefix(userID))
	if err != nil {
		return 0, fmt.Errorf("invalidate cache for %s: %w", userID, err)
	}
	metrics.CacheInvalidations.Inc()
	s.logger.Debug().Str("user_id", userID).Int("keys", n).Msg("user cache invalidated")
	return n, nil
}

func (s *Service) effectiveLimit(limit int) int {
	cfg := s.engine.Config()
	if limit <= 0 {
		return cfg.DefaultLimit
	}
	if cfg.MaxLimit > 0 && limit > cfg.MaxLimit {
		return cfg.MaxLimit
	}
	return limit
}

func (s *Service) lookup(ctx context.Context, key string) (*recommend.Result, bool) {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache lookup failed")
		ok = false
	}
	metrics.RecordCacheLookup(s.cache.Backend(), ok)
	if !ok {
		return nil, false
	}

	var res recommend.Result
	if err := json.Unmarshal(data, &res); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return nil, false
	}
	res.CacheHit = true
	return &res, true
}

func (s *Service) remember(ctx context.Context, key string, res *recommend.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode result for cache")
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cfg.CacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// markDisplayed records the display of a persisted list. Failures are
// logged; the caller still gets the list.
func (s *Service) markDisplayed(ctx context.Context, res *recommend.Result) {
	if !res.Metadata.Persisted {
		return
	}
	now := s.clock().UTC()
	for i := range res.Items {
		rec := &res.Items[i]
		rec.MarkDisplayed(now)
		if err := s.store.UpdateRecommendation(ctx, rec); err != nil {
			s.logger.Warn().Err(err).Str("recommendation_id", rec.ID).Msg("failed to record display")
		}
	}
}
