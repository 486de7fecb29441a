// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tomtom215/shelfwise/internal/models"
)

// Memory is an in-process Store and CatalogWriter. Results are ordered
// the same way as the DuckDB implementation: events, recommendations,
// feedback and anomalies newest first, preferences oldest update first,
// items newest first.
type Memory struct {
	mu              sync.RWMutex
	events          map[string]models.BehaviorEvent
	preferences     map[string]models.UserPreference
	recommendations map[string]models.Recommendation
	feedback        map[string]models.RecommendationFeedback
	algorithms      map[string]models.AlgorithmConfig
	anomalies       map[string]models.Anomaly
	items           map[string]models.Item

	// FailWrites makes every write return an error. Tests use it to
	// exercise persistence failure paths.
	FailWrites error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		events:          make(map[string]models.BehaviorEvent),
		preferences:     make(map[string]models.UserPreference),
		recommendations: make(map[string]models.Recommendation),
		feedback:        make(map[string]models.RecommendationFeedback),
		algorithms:      make(map[string]models.AlgorithmConfig),
		anomalies:       make(map[string]models.Anomaly),
		items:           make(map[string]models.Item),
	}
}

// SetFailWrites toggles write failures under the store lock.
func (m *Memory) SetFailWrites(err error) {
	m.mu.Lock()
	m.FailWrites = err
	m.mu.Unlock()
}

func (m *Memory) CreateEvent(_ context.Context, event *models.BehaviorEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.events[event.ID] = *event
	return nil
}

func (m *Memory) CreateEvents(_ context.Context, events []models.BehaviorEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	for i := range events {
		m.events[events[i].ID] = events[i]
	}
	return nil
}

func matchEvent(e *models.BehaviorEvent, f *EventFilter) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.ItemID != "" && e.ItemID != f.ItemID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.BehaviorType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.CreatedAt.Before(f.Until) {
		return false
	}
	if f.Processed != nil && e.Processed != *f.Processed {
		return false
	}
	if f.Anomalous != nil && e.IsAnomaly != *f.Anomalous {
		return false
	}
	return true
}

func (m *Memory) FindEvents(_ context.Context, filter EventFilter) ([]models.BehaviorEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.BehaviorEvent, 0)
	for id := range m.events {
		e := m.events[id]
		if matchEvent(&e, &filter) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Memory) CountEvents(ctx context.Context, filter EventFilter) (int, error) {
	filter.Limit = 0
	events, err := m.FindEvents(ctx, filter)
	return len(events), err
}

func (m *Memory) MarkEventsProcessed(_ context.Context, ids []string) error {
	return m.updateEvents(ids, func(e *models.BehaviorEvent) { e.Processed = true })
}

func (m *Memory) MarkEventsAnomalous(_ context.Context, ids []string) error {
	return m.updateEvents(ids, func(e *models.BehaviorEvent) { e.IsAnomaly = true })
}

func (m *Memory) updateEvents(ids []string, fn func(*models.BehaviorEvent)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	for _, id := range ids {
		if e, ok := m.events[id]; ok {
			fn(&e)
			m.events[id] = e
		}
	}
	return nil
}

func (m *Memory) GetPreference(_ context.Context, userID string) (*models.UserPreference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.preferences[userID]
	if !ok {
		return nil, fmt.Errorf("preference %s: %w", userID, models.ErrNotFound)
	}
	return p.Clone(), nil
}

func (m *Memory) SavePreference(_ context.Context, pref *models.UserPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.preferences[pref.UserID] = *pref.Clone()
	return nil
}

func (m *Memory) FindPreferences(_ context.Context, filter PreferenceFilter) ([]models.UserPreference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.UserPreference, 0)
	for _, p := range m.preferences {
		if !filter.UpdatedBefore.IsZero() && !p.LastUpdated.Before(filter.UpdatedBefore) {
			continue
		}
		out = append(out, *p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].LastUpdated.Before(out[j].LastUpdated)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Memory) CreateRecommendations(_ context.Context, recs []models.Recommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	for i := range recs {
		m.recommendations[recs[i].ID] = recs[i]
	}
	return nil
}

func (m *Memory) GetRecommendation(_ context.Context, id string) (*models.Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recommendations[id]
	if !ok {
		return nil, fmt.Errorf("recommendation %s: %w", id, models.ErrNotFound)
	}
	return &r, nil
}

func (m *Memory) UpdateRecommendation(_ context.Context, rec *models.Recommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	if _, ok := m.recommendations[rec.ID]; !ok {
		return fmt.Errorf("recommendation %s: %w", rec.ID, models.ErrNotFound)
	}
	m.recommendations[rec.ID] = *rec
	return nil
}

func matchRecommendation(r *models.Recommendation, f *RecommendationFilter) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.ItemID != "" && r.ItemID != f.ItemID {
		return false
	}
	if f.BatchID != "" && r.BatchID != f.BatchID {
		return false
	}
	if f.Algorithm != "" && r.Algorithm != f.Algorithm {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if r.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.CreatedAfter.IsZero() && r.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !r.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}

func (m *Memory) FindRecommendations(_ context.Context, filter RecommendationFilter) ([]models.Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Recommendation, 0)
	for id := range m.recommendations {
		r := m.recommendations[id]
		if matchRecommendation(&r, &filter) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			if out[i].BatchID == out[j].BatchID {
				return out[i].Rank < out[j].Rank
			}
			return out[i].BatchID < out[j].BatchID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Memory) CountRecommendations(ctx context.Context, filter RecommendationFilter) (int, error) {
	filter.Limit = 0
	recs, err := m.FindRecommendations(ctx, filter)
	return len(recs), err
}

func (m *Memory) DeleteRecommendations(_ context.Context, filter RecommendationFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return 0, m.FailWrites
	}
	deleted := 0
	for id := range m.recommendations {
		r := m.recommendations[id]
		if matchRecommendation(&r, &filter) {
			delete(m.recommendations, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *Memory) CreateFeedback(_ context.Context, fb *models.RecommendationFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.feedback[fb.ID] = *fb
	return nil
}

func (m *Memory) MarkFeedbackProcessed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	fb, ok := m.feedback[id]
	if !ok {
		return fmt.Errorf("feedback %s: %w", id, models.ErrNotFound)
	}
	fb.Processed = true
	m.feedback[id] = fb
	return nil
}

func (m *Memory) FindFeedback(_ context.Context, filter FeedbackFilter) ([]models.RecommendationFeedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.RecommendationFeedback, 0)
	for id := range m.feedback {
		fb := m.feedback[id]
		if filter.UserID != "" && fb.UserID != filter.UserID {
			continue
		}
		if filter.RecommendationID != "" && fb.RecommendationID != filter.RecommendationID {
			continue
		}
		if filter.Processed != nil && fb.Processed != *filter.Processed {
			continue
		}
		if !filter.Since.IsZero() && fb.CreatedAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && !fb.CreatedAt.Before(filter.Until) {
			continue
		}
		out = append(out, fb)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Memory) ListAlgorithms(_ context.Context) ([]models.AlgorithmConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.AlgorithmConfig, 0, len(m.algorithms))
	for _, a := range m.algorithms {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority == out[j].Priority {
			return out[i].ID < out[j].ID
		}
		return out[i].Priority > out[j].Priority
	})
	return out, nil
}

func (m *Memory) SaveAlgorithm(_ context.Context, cfg *models.AlgorithmConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.algorithms[cfg.ID] = *cfg
	return nil
}

func (m *Memory) SaveAnomalies(_ context.Context, anomalies []models.Anomaly) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return 0, m.FailWrites
	}
	inserted := 0
	for i := range anomalies {
		if _, exists := m.anomalies[anomalies[i].ID]; exists {
			continue
		}
		m.anomalies[anomalies[i].ID] = anomalies[i]
		inserted++
	}
	return inserted, nil
}

func (m *Memory) FindAnomalies(_ context.Context, filter AnomalyFilter) ([]models.Anomaly, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Anomaly, 0)
	for _, a := range m.anomalies {
		if filter.UserID != "" && a.UserID != filter.UserID {
			continue
		}
		if filter.Kind != "" && a.Kind != filter.Kind {
			continue
		}
		if !filter.Since.IsZero() && a.WindowEnd.Before(filter.Since) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].DetectedAt.After(out[j].DetectedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Memory) GetItem(_ context.Context, id string) (*models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	return &item, nil
}

func (m *Memory) QueryItems(_ context.Context, filter ItemFilter) ([]models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids map[string]bool
	if len(filter.IDs) > 0 {
		ids = make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}
	title := strings.ToLower(filter.TitleContains)

	out := make([]models.Item, 0)
	for id := range m.items {
		item := m.items[id]
		if ids != nil && !ids[item.ID] {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(item.Category, filter.Category) {
			continue
		}
		if filter.Author != "" && !strings.EqualFold(item.Author, filter.Author) {
			continue
		}
		if title != "" && !strings.Contains(strings.ToLower(item.Title), title) {
			continue
		}
		if !filter.CreatedAfter.IsZero() && item.CreatedAt.Before(filter.CreatedAfter) {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Memory) UpsertItems(_ context.Context, items []models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	for i := range items {
		m.items[items[i].ID] = items[i]
	}
	return nil
}

var (
	_ Store         = (*Memory)(nil)
	_ CatalogWriter = (*Memory)(nil)
)
