// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package preference owns the per-user preference vectors: EMA learning
// from behavior and feedback signals, and half-life decay for users who
// stopped interacting.
//
// Every read-modify-write of one user's preference runs under a striped
// mutex keyed by the user ID, so concurrent updates for the same user are
// applied one after another and none is lost.
package preference

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/metrics"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/store"
)

const stripeCount = 64

// pruneBelow drops decayed weights that no longer carry signal.
const pruneBelow = 1e-3

// Learner applies learning signals to stored preferences.
type Learner struct {
	store  store.Store
	clock  func() time.Time
	logger zerolog.Logger
	locks  [stripeCount]sync.Mutex
}

// NewLearner creates a learner over st. A nil clock uses time.Now.
func NewLearner(st store.Store, clock func() time.Time) *Learner {
	if clock == nil {
		clock = time.Now
	}
	return &Learner{
		store:  st,
		clock:  clock,
		logger: logging.WithComponent("preference"),
	}
}

func (l *Learner) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &l.locks[h.Sum32()%stripeCount]
}

// Get returns the stored preference for userID, or nil when the user has none.
func (l *Learner) Get(ctx context.Context, userID string) (*models.UserPreference, error) {
	pref, err := l.store.GetPreference(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return pref, err
}

// Apply moves the user's category, author and tag weights for item toward
// sig.Target and saves the result. The preference is created on first use.
func (l *Learner) Apply(ctx context.Context, userID string, item *models.Item, sig Signal, source string) (*models.UserPreference, error) {
	if userID == "" || item == nil {
		return nil, fmt.Errorf("apply preference: %w", models.ErrInvalidRequest)
	}

	mu := l.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	now := l.clock()
	pref, err := l.store.GetPreference(ctx, userID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		pref = models.NewUserPreference(userID, now)
	case err != nil:
		return nil, fmt.Errorf("failed to load preference for %s: %w", userID, err)
	}
	pref.EnsureMaps()

	applySignal(pref, item, sig)
	pref.InteractionCount++
	pref.LastUpdated = now

	if err := l.store.SavePreference(ctx, pref); err != nil {
		return nil, &models.PersistenceError{Op: "save preference", Err: err}
	}
	metrics.PreferenceUpdates.WithLabelValues(source).Inc()
	l.logger.Debug().
		Str("user_id", userID).
		Str("item_id", item.ID).
		Float64("target", sig.Target).
		Float64("rate", sig.Rate).
		Float64("confidence", pref.ConfidenceScore).
		Msg("Preference updated")
	return pref, nil
}

func applySignal(pref *models.UserPreference, item *models.Item, sig Signal) {
	lr := clamp(sig.Rate, 0, 1)
	if item.Category != "" {
		pref.CategoryWeights[item.Category] = Blend(pref.CategoryWeights[item.Category], sig.Target, lr)
	}
	if item.Author != "" {
		pref.AuthorWeights[item.Author] = Blend(pref.AuthorWeights[item.Author], sig.Target, lr)
	}
	for _, tag := range item.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		pref.TagWeights[tag] = Blend(pref.TagWeights[tag], sig.Target, lr/2)
	}

	pref.ConfidenceScore = math.Min(1, pref.ConfidenceScore+lr*0.1)
	// An explicitly raised strength is kept until confidence catches up.
	pref.PersonalizationStrength = math.Max(pref.PersonalizationStrength, StrengthForConfidence(pref.ConfidenceScore))
}

// Decay fades every weight and the confidence by 0.5^(age/halfLife), where
// age is the time since the last update, and stamps the preference as
// updated at now. Weights that fall below a small floor are removed.
func Decay(pref *models.UserPreference, now time.Time, halfLife time.Duration) {
	if pref == nil || halfLife <= 0 {
		return
	}
	age := now.Sub(pref.LastUpdated)
	if age <= 0 {
		return
	}
	factor := math.Pow(0.5, float64(age)/float64(halfLife))

	pref.EnsureMaps()
	decayWeights(pref.CategoryWeights, factor)
	decayWeights(pref.AuthorWeights, factor)
	decayWeights(pref.TagWeights, factor)
	pref.ConfidenceScore *= factor
	pref.PersonalizationStrength = StrengthForConfidence(pref.ConfidenceScore)
	pref.LastUpdated = now
}

func decayWeights(weights map[string]float64, factor float64) {
	for k, w := range weights {
		w *= factor
		if math.Abs(w) < pruneBelow {
			delete(weights, k)
			continue
		}
		weights[k] = w
	}
}

// Refresh decays one user's stored preference under the user's lock.
// It reports false when the user has no preference or it was updated
// after staleBefore in the meantime.
func (l *Learner) Refresh(ctx context.Context, userID string, staleBefore time.Time, halfLife time.Duration) (bool, error) {
	mu := l.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	pref, err := l.store.GetPreference(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load preference for %s: %w", userID, err)
	}
	if !pref.LastUpdated.Before(staleBefore) {
		return false, nil
	}

	Decay(pref, l.clock(), halfLife)
	if err := l.store.SavePreference(ctx, pref); err != nil {
		return false, &models.PersistenceError{Op: "save preference", Err: err}
	}
	metrics.PreferenceUpdates.WithLabelValues("decay").Inc()
	return true, nil
}
