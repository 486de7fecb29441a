// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package algorithms

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

// EmbeddingSource provides learned user and item vectors. Implementations
// are fed by an external training job; a user without a vector returns
// models.ErrNotFound.
type EmbeddingSource interface {
	UserEmbedding(ctx context.Context, userID string) ([]float64, error)
	ItemEmbeddings(ctx context.Context, itemIDs []string) (map[string][]float64, error)
}

// StaticEmbeddings is an in-memory EmbeddingSource.
type StaticEmbeddings struct {
	mu    sync.RWMutex
	users map[string][]float64
	items map[string][]float64
}

// NewStaticEmbeddings creates an empty in-memory source.
func NewStaticEmbeddings() *StaticEmbeddings {
	return &StaticEmbeddings{
		users: make(map[string][]float64),
		items: make(map[string][]float64),
	}
}

// SetUser stores a user vector.
func (s *StaticEmbeddings) SetUser(userID string, vec []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = append([]float64(nil), vec...)
}

// SetItem stores an item vector.
func (s *StaticEmbeddings) SetItem(itemID string, vec []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[itemID] = append([]float64(nil), vec...)
}

// Replace swaps in a complete set of vectors, as loaded from a trained
// snapshot. The maps are owned by the source afterwards.
func (s *StaticEmbeddings) Replace(users, items map[string][]float64) {
	if users == nil {
		users = make(map[string][]float64)
	}
	if items == nil {
		items = make(map[string][]float64)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
	s.items = items
}

// UserEmbedding implements EmbeddingSource.
func (s *StaticEmbeddings) UserEmbedding(_ context.Context, userID string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vec, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("embedding for user %s: %w", userID, models.ErrNotFound)
	}
	return vec, nil
}

// ItemEmbeddings implements EmbeddingSource. Unknown items are omitted.
func (s *StaticEmbeddings) ItemEmbeddings(_ context.Context, itemIDs []string) (map[string][]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]float64, len(itemIDs))
	for _, id := range itemIDs {
		if vec, ok := s.items[id]; ok {
			out[id] = vec
		}
	}
	return out, nil
}

// Embedding scores items by cosine similarity between the user's vector
// and each item's vector. One instance serves one trainable family
// (deep_learning or matrix_factorization).
type Embedding struct {
	typ    models.AlgorithmType
	source EmbeddingSource
}

// NewEmbedding creates an embedding generator for a trainable family.
func NewEmbedding(typ models.AlgorithmType, source EmbeddingSource) (*Embedding, error) {
	if typ != models.AlgorithmDeepLearning && typ != models.AlgorithmMatrixFactorization {
		return nil, fmt.Errorf("embedding: %s is not a trainable family", typ)
	}
	if source == nil {
		return nil, errors.New("embedding: source is required")
	}
	return &Embedding{typ: typ, source: source}, nil
}

// Type implements recommend.CandidateGenerator.
func (e *Embedding) Type() models.AlgorithmType {
	return e.typ
}

// Generate implements recommend.CandidateGenerator.
func (e *Embedding) Generate(ctx context.Context, in *recommend.Input) ([]recommend.Candidate, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%s: no user: %w", e.typ, models.ErrInsufficientData)
	}
	userVec, err := e.source.UserEmbedding(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", e.typ, models.ErrInsufficientData)
		}
		return nil, fmt.Errorf("load user embedding: %w", err)
	}

	seen := in.Seen()
	ids := make([]string, 0, len(in.Items))
	for id := range in.Items {
		if _, ok := seen[id]; ok || id == in.SeedItemID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	itemVecs, err := e.source.ItemEmbeddings(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load item embeddings: %w", err)
	}

	scores := make(map[string]float64, len(itemVecs))
	for id, vec := range itemVecs {
		if sim := denseCosine(userVec, vec); sim > 0 {
			scores[id] = sim
		}
	}
	return toCandidates(scores, nil, e.typ, poolSize(in)), nil
}
