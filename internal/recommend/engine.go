// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/metrics"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/store"
)

// Selection reasons reported in ResultMetadata.SelectionReason.
const (
	SelectedRequested = "requested"
	SelectedColdStart = "cold_start"
	SelectedPriority  = "priority"
	SelectedDefault   = "default"
)

// silentFallbacks are tried in order when a generator lacks data.
var silentFallbacks = []models.AlgorithmType{
	models.AlgorithmContentBased,
	models.AlgorithmPopularity,
}

// defaultAlgorithm serves when the catalog has nothing applicable.
var defaultAlgorithm = models.AlgorithmConfig{
	ID:          "builtin-popularity",
	Name:        "popularity",
	Type:        models.AlgorithmPopularity,
	Enabled:     true,
	IsColdStart: true,
}

// Engine runs the recommendation pipeline. It is safe for concurrent use.
type Engine struct {
	cfg     EngineConfig
	store   store.Store
	catalog store.Catalog
	logger  zerolog.Logger
	clock   func() time.Time

	mu          sync.RWMutex
	generators  map[models.AlgorithmType]CandidateGenerator
	diversifier Diversifier
	assigner    Assigner
}

// NewEngine creates an engine with no generators registered.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg EngineConfig, st store.Store, catalog store.Catalog, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if st == nil || catalog == nil {
		return nil, errors.New("recommend: store and catalog are required")
	}

	return &Engine{
		cfg:        cfg,
		store:      st,
		catalog:    catalog,
		logger:     logger.With().Str("component", "recommend").Logger(),
		clock:      time.Now,
		generators: make(map[models.AlgorithmType]CandidateGenerator),
		assigner:   FirstAssigner{},
	}, nil
}

// SetClock replaces the time source.
func (e *Engine) SetClock(clock func() time.Time) {
	if clock != nil {
		e.clock = clock
	}
}

// RegisterGenerator adds or replaces the generator for g.Type().
func (e *Engine) RegisterGenerator(g CandidateGenerator) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.generators[g.Type()] = g
	e.logger.Debug().
		Str("algorithm", string(g.Type())).
		Msg("registered generator")
}

// SetDiversifier sets the reranker applied after ranking. Without one the
// ranked list is truncated.
func (e *Engine) SetDiversifier(d Diversifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.diversifier = d
}

// SetAssigner sets the A/B assigner used during selection.
func (e *Engine) SetAssigner(a Assigner) {
	if a == nil {
		a = FirstAssigner{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.assigner = a
}

// Generator returns the registered generator for t.
func (e *Engine) Generator(t models.AlgorithmType) (CandidateGenerator, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.generators[t]
	return g, ok
}

// Config returns the engine configuration.
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// Recommend runs the full pipeline for one request. It only returns an
// error for an invalid request; everything else degrades and is reported
// in Result.Metadata.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) Recommend(ctx context.Context, req Request) (*Result, error) {
	wallStart := time.Now()
	if err := validateRequest(&req); err != nil {
		return nil, err
	}
	req = e.prepareRequest(req)
	now := e.clock().UTC()
	logger := e.createRequestLogger(ctx, req)

	res := &Result{
		UserID:   req.UserID,
		Scenario: req.Scenario,
		BatchID:  uuid.New().String(),
		Metadata: ResultMetadata{
			RequestedAlgorithm: req.Algorithm,
			GeneratedAt:        now,
		},
	}

	pref := e.loadPreference(ctx, req.UserID, &res.Metadata, logger)
	algs := e.loadAlgorithms(ctx, &res.Metadata, logger)

	alg, reason, err := e.SelectAlgorithm(req.UserID, pref, req.Scenario, req.Algorithm, algs)
	res.Metadata.SelectionReason = reason
	if err != nil {
		res.Metadata.addError(err)
		logger.Debug().Err(err).Msg("requested algorithm unavailable")
	}

	in := e.buildInput(ctx, req, pref, &alg, now, &res.Metadata, logger)

	gen := e.generateCandidates(ctx, &alg, in, logger)
	res.Algorithm = gen.algorithm
	res.Type = gen.source
	res.Degraded = gen.degraded
	res.Metadata.Fallback = gen.fallback
	for _, genErr := range gen.errs {
		res.Metadata.addError(genErr)
	}
	res.Metadata.Candidates = len(gen.candidates)

	scored := e.filter(ctx, req, in, gen.candidates, logger)
	res.Metadata.Filtered = len(gen.candidates) - len(scored)

	ranked := e.rank(scored, personalizationStrength(pref))
	final := e.diversify(ctx, ranked, req.Limit)
	e.explain(final)

	modelID := ""
	if !gen.degraded && alg.Trainable() {
		modelID = alg.ID
	}
	res.Items = buildRecommendations(req, res, modelID, final, now)
	res.Metadata.Persisted = e.persist(ctx, res, logger)

	elapsed := time.Since(wallStart)
	res.Metadata.LatencyMS = elapsed.Milliseconds()
	metrics.RecordRecommendation(string(req.Scenario), res.Algorithm, res.Degraded, elapsed)

	logger.Debug().
		Str("algorithm", res.Algorithm).
		Str("reason", reason).
		Bool("degraded", res.Degraded).
		Int("candidates", res.Metadata.Candidates).
		Int("returned", len(res.Items)).
		Int64("latency_ms", res.Metadata.LatencyMS).
		Msg("recommendation complete")

	return res, nil
}

// validateRequest rejects requests the engine cannot serve.
func validateRequest(req *Request) error {
	if req.UserID == "" && req.SeedItemID == "" {
		return fmt.Errorf("user id or seed item is required: %w", models.ErrInvalidRequest)
	}
	if req.Scenario != "" && !req.Scenario.Valid() {
		return fmt.Errorf("unknown scenario %q: %w", req.Scenario, models.ErrInvalidRequest)
	}
	return nil
}

// prepareRequest applies defaults and limits.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) prepareRequest(req Request) Request {
	if req.Scenario == "" {
		req.Scenario = models.ScenarioHomepage
	}
	if req.Limit <= 0 {
		req.Limit = e.cfg.DefaultLimit
	}
	if req.Limit > e.cfg.MaxLimit {
		req.Limit = e.cfg.MaxLimit
	}
	return req
}

// createRequestLogger creates a logger with request context.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) createRequestLogger(ctx context.Context, req Request) zerolog.Logger {
	lc := e.logger.With().
		Str("user_id", req.UserID).
		Str("scenario", string(req.Scenario))
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		lc = lc.Str("correlation_id", id)
	}
	return lc.Logger()
}

// loadPreference returns the user's preference or nil for unknown users.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) loadPreference(ctx context.Context, userID string, meta *ResultMetadata, logger zerolog.Logger) *models.UserPreference {
	if userID == "" {
		return nil
	}
	pref, err := e.store.GetPreference(ctx, userID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			logger.Warn().Err(err).Msg("failed to load preference")
			meta.addError(fmt.Errorf("load preference: %w", err))
		}
		return nil
	}
	return pref
}

// loadAlgorithms reads the algorithm catalog, falling back to the built-in
// defaults when the store has none or cannot be read.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) loadAlgorithms(ctx context.Context, meta *ResultMetadata, logger zerolog.Logger) []models.AlgorithmConfig {
	algs, err := e.store.ListAlgorithms(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load algorithm catalog, using defaults")
		meta.addError(fmt.Errorf("load algorithms: %w", err))
		return models.DefaultAlgorithms()
	}
	if len(algs) == 0 {
		return models.DefaultAlgorithms()
	}
	return algs
}

// SelectAlgorithm picks the algorithm for a request. A requested algorithm
// that is unknown or disabled yields ErrAlgorithmNotFound alongside the
// default selection; the returned config is always usable.
func (e *Engine) SelectAlgorithm(userID string, pref *models.UserPreference, scenario models.Scenario, requested string, algs []models.AlgorithmConfig) (models.AlgorithmConfig, string, error) {
	sorted := sortByPriority(algs)

	var err error
	if requested != "" {
		if a, ok := findAlgorithm(sorted, requested); ok {
			return a, SelectedRequested, nil
		}
		err = fmt.Errorf("%w: %s", models.ErrAlgorithmNotFound, requested)
	}

	if pref == nil || pref.ConfidenceScore < e.cfg.ColdStartThreshold {
		return coldStartAlgorithm(sorted, scenario), SelectedColdStart, err
	}

	var enabled []models.AlgorithmConfig
	for i := range sorted {
		if sorted[i].Enabled && sorted[i].AppliesTo(scenario) {
			enabled = append(enabled, sorted[i])
		}
	}
	if len(enabled) == 0 {
		return coldStartAlgorithm(sorted, scenario), SelectedDefault, err
	}

	e.mu.RLock()
	assigner := e.assigner
	e.mu.RUnlock()
	return assigner.Assign(userID, scenario, enabled), SelectedPriority, err
}

// sortByPriority returns a copy ordered by priority desc, then name.
func sortByPriority(algs []models.AlgorithmConfig) []models.AlgorithmConfig {
	sorted := make([]models.AlgorithmConfig, len(algs))
	copy(sorted, algs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

// findAlgorithm matches an enabled algorithm by ID, name or type.
func findAlgorithm(algs []models.AlgorithmConfig, requested string) (models.AlgorithmConfig, bool) {
	for i := range algs {
		a := &algs[i]
		if !a.Enabled {
			continue
		}
		if a.ID == requested || a.Name == requested || string(a.Type) == requested {
			return *a, true
		}
	}
	return models.AlgorithmConfig{}, false
}

// coldStartAlgorithm returns the scenario's highest-priority cold-start
// algorithm, then any enabled popularity algorithm, then the built-in one.
func coldStartAlgorithm(sorted []models.AlgorithmConfig, scenario models.Scenario) models.AlgorithmConfig {
	for i := range sorted {
		a := &sorted[i]
		if a.Enabled && a.IsColdStart && a.AppliesTo(scenario) {
			return *a
		}
	}
	for i := range sorted {
		if sorted[i].Enabled && sorted[i].Type == models.AlgorithmPopularity {
			return sorted[i]
		}
	}
	return defaultAlgorithm
}

// buildInput loads the user's history, population interactions and the
// catalog snapshot. Load failures leave the corresponding field empty.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) buildInput(ctx context.Context, req Request, pref *models.UserPreference, alg *models.AlgorithmConfig, now time.Time, meta *ResultMetadata, logger zerolog.Logger) *Input {
	in := &Input{
		UserID:          req.UserID,
		Items:           make(map[string]*models.Item),
		Preference:      pref,
		Context:         req.Context,
		SeedItemID:      req.SeedItemID,
		Limit:           req.Limit,
		Now:             now,
		Hyperparameters: alg.Hyperparameters,
	}
	since := now.Add(-e.cfg.HistoryWindow)

	if req.UserID != "" {
		events, err := e.store.FindEvents(ctx, store.EventFilter{
			UserID: req.UserID,
			Since:  since,
			Limit:  e.cfg.InteractionLimit,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to load user history")
			meta.addError(fmt.Errorf("load history: %w", err))
		}
		in.History = toInteractions(events)
	}

	events, err := e.store.FindEvents(ctx, store.EventFilter{
		Since:     since,
		Anomalous: store.Bool(false),
		Limit:     e.cfg.InteractionLimit,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load interactions")
		meta.addError(fmt.Errorf("load interactions: %w", err))
	}
	in.Interactions = toInteractions(events)

	items, err := e.catalog.QueryItems(ctx, store.ItemFilter{
		CreatedAfter: req.CreatedAfter,
		Limit:        e.cfg.CandidatePool,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load catalog snapshot")
		meta.addError(fmt.Errorf("load catalog: %w", err))
	}
	for i := range items {
		in.Items[items[i].ID] = &items[i]
	}

	if req.SeedItemID != "" {
		if _, ok := in.Items[req.SeedItemID]; !ok {
			seed, err := e.catalog.GetItem(ctx, req.SeedItemID)
			if err != nil {
				meta.addError(fmt.Errorf("load seed item: %w", err))
			} else {
				in.Items[seed.ID] = seed
			}
		}
	}
	return in
}

func toInteractions(events []models.BehaviorEvent) []Interaction {
	out := make([]Interaction, 0, len(events))
	for i := range events {
		if it, ok := InteractionFromEvent(&events[i]); ok {
			out = append(out, it)
		}
	}
	return out
}

// generation is the outcome of GenerateCandidates.
type generation struct {
	candidates []Candidate
	algorithm  string
	source     models.AlgorithmType
	degraded   bool
	fallback   string
	errs       []error
}

// generateCandidates dispatches to the selected family and applies the
// fallback policy.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) generateCandidates(ctx context.Context, alg *models.AlgorithmConfig, in *Input, logger zerolog.Logger) generation {
	g := generation{algorithm: alg.Name, source: alg.Type}

	cands, err := e.runGenerator(ctx, alg.Type, in)
	if err == nil && len(cands) > 0 {
		g.candidates = cands
		return g
	}

	if errors.Is(err, models.ErrInsufficientData) {
		logger.Debug().Err(err).Msg("insufficient data, trying fallbacks")
		for _, t := range silentFallbacks {
			if t == alg.Type {
				continue
			}
			fb, fbErr := e.runGenerator(ctx, t, in)
			if fbErr == nil && len(fb) > 0 {
				g.candidates = fb
				g.source = t
				g.fallback = string(t)
				return g
			}
			if fbErr != nil {
				g.errs = append(g.errs, fbErr)
			}
		}
		g.algorithm = models.AlgorithmFallbackPopular
		g.source = models.AlgorithmPopularity
		g.degraded = true
		return g
	}

	if err != nil {
		g.errs = append(g.errs, err)
		logger.Warn().Err(err).Str("algorithm", alg.Name).Msg("candidate generation failed")
	} else {
		logger.Debug().Str("algorithm", alg.Name).Msg("generator returned no candidates")
	}
	return e.fallbackPopular(ctx, alg, in, g, logger)
}

// fallbackPopular serves popularity candidates and marks the result degraded.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) fallbackPopular(ctx context.Context, alg *models.AlgorithmConfig, in *Input, g generation, logger zerolog.Logger) generation {
	g.algorithm = models.AlgorithmFallbackPopular
	g.source = models.AlgorithmPopularity
	g.degraded = true
	g.fallback = string(models.AlgorithmPopularity)

	if alg.Type == models.AlgorithmPopularity {
		return g
	}
	cands, err := e.runGenerator(ctx, models.AlgorithmPopularity, in)
	if err != nil {
		g.errs = append(g.errs, err)
		logger.Error().Err(err).Msg("popularity fallback failed")
		return g
	}
	g.candidates = cands
	return g
}

// runGenerator calls one generator under the request deadline.
func (e *Engine) runGenerator(ctx context.Context, t models.AlgorithmType, in *Input) ([]Candidate, error) {
	gen, ok := e.Generator(t)
	if !ok {
		return nil, fmt.Errorf("%w: no generator for %s", models.ErrAlgorithmNotFound, t)
	}

	genCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	cands, err := gen.Generate(genCtx, in)
	if err != nil {
		if !errors.Is(err, models.ErrInsufficientData) {
			metrics.GeneratorErrors.WithLabelValues(string(t)).Inc()
		}
		return nil, fmt.Errorf("%s: %w", t, err)
	}
	for i := range cands {
		if cands[i].Source == "" {
			cands[i].Source = t
		}
	}
	return cands, nil
}

// filter drops excluded, seen, disliked and weak candidates and joins the
// survivors with their catalog records. Duplicate IDs keep the best score.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) filter(ctx context.Context, req Request, in *Input, cands []Candidate, logger zerolog.Logger) []ScoredItem {
	if len(cands) == 0 {
		return nil
	}

	exclude := make(map[string]struct{}, len(req.Exclude)+1)
	for _, id := range req.Exclude {
		exclude[id] = struct{}{}
	}
	if in.SeedItemID != "" {
		exclude[in.SeedItemID] = struct{}{}
	}
	seen := in.Seen()

	best := make(map[string]Candidate, len(cands))
	order := make([]string, 0, len(cands))
	for _, c := range cands {
		if _, ok := exclude[c.ItemID]; ok {
			continue
		}
		if _, ok := seen[c.ItemID]; ok {
			continue
		}
		if c.Score < e.cfg.MinScore {
			continue
		}
		prev, dup := best[c.ItemID]
		if !dup {
			order = append(order, c.ItemID)
		}
		if !dup || c.Score > prev.Score {
			best[c.ItemID] = c
		}
	}

	e.resolveItems(ctx, in, order, logger)

	out := make([]ScoredItem, 0, len(order))
	for _, id := range order {
		item := in.Items[id]
		if item == nil {
			continue
		}
		if !req.CreatedAfter.IsZero() && item.CreatedAt.Before(req.CreatedAfter) {
			continue
		}
		if isDisliked(in.Preference, item) {
			continue
		}
		c := best[id]
		out = append(out, ScoredItem{
			Item:     item,
			RawScore: c.Score,
			Reason:   c.Reason,
			Source:   c.Source,
		})
	}
	return out
}

// resolveItems loads catalog records for candidates outside the snapshot.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) resolveItems(ctx context.Context, in *Input, ids []string, logger zerolog.Logger) {
	var missing []string
	for _, id := range ids {
		if _, ok := in.Items[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return
	}
	items, err := e.catalog.QueryItems(ctx, store.ItemFilter{IDs: missing})
	if err != nil {
		logger.Warn().Err(err).Int("missing", len(missing)).Msg("failed to resolve candidate items")
		return
	}
	for i := range items {
		in.Items[items[i].ID] = &items[i]
	}
}

// isDisliked applies the user's negative preferences.
func isDisliked(pref *models.UserPreference, item *models.Item) bool {
	if pref == nil {
		return false
	}
	neg := &pref.Negative
	return neg.DislikesCategory(item.Category) ||
		neg.DislikesAuthor(item.Author) ||
		neg.MatchesKeyword(item.Title) ||
		neg.MatchesKeyword(item.Description)
}

// personalizationStrength returns the user's strength, or the default for
// users without a preference.
func personalizationStrength(pref *models.UserPreference) float64 {
	if pref == nil {
		return models.DefaultPersonalizationStrength
	}
	s := pref.PersonalizationStrength
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// rank blends each score toward the neutral score by (1-strength) and
// sorts descending. Ties are broken by item ID.
func (e *Engine) rank(items []ScoredItem, strength float64) []ScoredItem {
	for i := range items {
		s := items[i].RawScore
		items[i].Score = s*strength + s*e.cfg.NeutralScore*(1-strength)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Item.ID < items[j].Item.ID
	})
	return items
}

// diversify applies the configured diversifier and enforces the limit.
func (e *Engine) diversify(ctx context.Context, items []ScoredItem, limit int) []ScoredItem {
	e.mu.RLock()
	d := e.diversifier
	e.mu.RUnlock()

	if d != nil && len(items) > 1 {
		items = d.Diversify(ctx, items, limit)
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// explanations are the per-family reasons used when a candidate has none.
var explanations = map[models.AlgorithmType]string{
	models.AlgorithmUserCF:              "Readers with similar taste enjoyed this",
	models.AlgorithmItemCF:              "Similar to books you have read",
	models.AlgorithmContentBased:        "Matches the genres and authors you read",
	models.AlgorithmPopularity:          "Popular with readers right now",
	models.AlgorithmTrending:            "Trending in the library this week",
	models.AlgorithmHybrid:              "Picked from your reading activity and what is popular",
	models.AlgorithmContextual:          "Popular with readers at this time of day",
	models.AlgorithmSequential:          "Readers often pick this up next",
	models.AlgorithmDeepLearning:        "Picked for your reading profile",
	models.AlgorithmMatrixFactorization: "Picked for your reading profile",
}

// Explanation returns the template reason for an algorithm family.
func Explanation(t models.AlgorithmType) string {
	if s, ok := explanations[t]; ok {
		return s
	}
	return explanations[models.AlgorithmPopularity]
}

// explain fills in reasons for candidates that carry none.
func (e *Engine) explain(items []ScoredItem) {
	for i := range items {
		if items[i].Reason == "" {
			items[i].Reason = Explanation(items[i].Source)
		}
	}
}

// buildRecommendations turns the final list into generated recommendations
// sharing the result's batch ID.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func buildRecommendations(req Request, res *Result, modelID string, items []ScoredItem, now time.Time) []models.Recommendation {
	recs := make([]models.Recommendation, len(items))
	for i := range items {
		recs[i] = models.Recommendation{
			ID:          uuid.New().String(),
			UserID:      req.UserID,
			ItemID:      items[i].Item.ID,
			Algorithm:   res.Algorithm,
			ModelID:     modelID,
			Score:       items[i].Score,
			Rank:        i + 1,
			Scenario:    req.Scenario,
			Status:      models.StatusGenerated,
			Explanation: items[i].Reason,
			BatchID:     res.BatchID,
			CreatedAt:   now,
		}
	}
	return recs
}

// persist writes the batch. Anonymous requests are not persisted. A
// failure is logged and reported; the list is still served.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) persist(ctx context.Context, res *Result, logger zerolog.Logger) bool {
	if res.UserID == "" || len(res.Items) == 0 {
		return false
	}
	if err := e.store.CreateRecommendations(ctx, res.Items); err != nil {
		perr := &models.PersistenceError{Op: "create recommendations", Err: err}
		logger.Warn().Err(err).Str("batch_id", res.BatchID).Msg("failed to persist recommendations")
		res.Metadata.addError(perr)
		return false
	}
	return true
}
