// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package algorithms

import (
	"context"
	"fmt"
	"sort"

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

// neighbor represents a similar user with their similarity score.
type neighbor struct {
	ID         string
	Similarity float64
}

// ========== User-Based Collaborative Filtering ==========

// UserCFConfig contains configuration for user-based CF.
type UserCFConfig struct {
	// Neighbors is the number of similar users to consider. The
	// "neighbors" hyperparameter overrides it per algorithm config.
	Neighbors int

	// MinInteractions is the history size below which the user is
	// reported as having insufficient data.
	MinInteractions int

	// MinSimilarity drops weakly similar users.
	MinSimilarity float64
}

// DefaultUserCFConfig returns default user-based CF configuration.
func DefaultUserCFConfig() UserCFConfig {
	return UserCFConfig{
		Neighbors:       20,
		MinInteractions: 5,
		MinSimilarity:   0.01,
	}
}

// UserCF implements user-based collaborative filtering.
// It recommends items that similar readers engaged with.
//
// For a target user u and candidate item i:
//
//	score(u, i) = sum_{v in N(u)} sim(u, v) * intensity(v, i)
//
// where N(u) is the set of k users most similar to u by cosine over their
// item intensities.
type UserCF struct {
	config UserCFConfig
}

// NewUserCF creates a new user-based CF generator.
func NewUserCF(cfg UserCFConfig) *UserCF {
	def := DefaultUserCFConfig()
	if cfg.Neighbors <= 0 {
		cfg.Neighbors = def.Neighbors
	}
	if cfg.MinInteractions <= 0 {
		cfg.MinInteractions = def.MinInteractions
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = def.MinSimilarity
	}
	return &UserCF{config: cfg}
}

// Type implements recommend.CandidateGenerator.
func (u *UserCF) Type() models.AlgorithmType {
	return models.AlgorithmUserCF
}

// Generate implements recommend.CandidateGenerator.
func (u *UserCF) Generate(ctx context.Context, in *recommend.Input) ([]recommend.Candidate, error) {
	minInteractions := int(in.Param("min_interactions", float64(u.config.MinInteractions)))
	if len(in.History) < minInteractions {
		return nil, fmt.Errorf("user_cf: %d interactions, need %d: %w",
			len(in.History), minInteractions, models.ErrInsufficientData)
	}

	target := make(vectors)
	for i := range in.History {
		target.add(in.UserID, in.History[i].ItemID, in.History[i].Intensity)
	}
	targetVec := target[in.UserID]
	if len(targetVec) == 0 {
		return nil, fmt.Errorf("user_cf: no positive interactions: %w", models.ErrInsufficientData)
	}

	users := userVectors(in.Interactions)
	delete(users, in.UserID)

	k := int(in.Param("neighbors", float64(u.config.Neighbors)))
	neighbors := u.nearest(targetVec, users, k)
	if len(neighbors) == 0 {
		return nil, fmt.Errorf("user_cf: no similar readers: %w", models.ErrInsufficientData)
	}

	if ContextCancelled(ctx) {
		return nil, ctx.Err()
	}

	seen := in.Seen()
	scores := make(map[string]float64)
	for _, n := range neighbors {
		for itemID, intensity := range users[n.ID] {
			if _, ok := seen[itemID]; ok {
				continue
			}
			scores[itemID] += intensity * n.Similarity
		}
	}

	return toCandidates(normalizeScores(scores), nil, models.AlgorithmUserCF, poolSize(in)), nil
}

// nearest returns the k users most similar to target.
func (u *UserCF) nearest(target map[string]float64, users vectors, k int) []neighbor {
	neighbors := make([]neighbor, 0, len(users))
	for id, vec := range users {
		sim := cosineSimilarity(target, vec)
		if sim >= u.config.MinSimilarity {
			neighbors = append(neighbors, neighbor{ID: id, Similarity: sim})
		}
	}

	// Sort by similarity (descending) and take top K
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Similarity != neighbors[j].Similarity {
			return neighbors[i].Similarity > neighbors[j].Similarity
		}
		return neighbors[i].ID < neighbors[j].ID
	})
	if k > 0 && len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}

// ========== Item-Based Collaborative Filtering ==========

// seedIntensity is the weight of an explicit seed item.
const seedIntensity = 5.0

// ItemCFConfig contains configuration for item-based CF.
type ItemCFConfig struct {
	// MinSourceIntensity is the history intensity an item needs to act as
	// a source.
	MinSourceIntensity float64

	// MaxSources caps the newest history items used as sources.
	MaxSources int
}

// DefaultItemCFConfig returns default item-based CF configuration.
func DefaultItemCFConfig() ItemCFConfig {
	return ItemCFConfig{
		MinSourceIntensity: 2.0,
		MaxSources:         20,
	}
}

// ItemCF implements item-based collaborative filtering.
// It recommends items co-read with the user's strongest items, or with a
// seed item for "similar to this" requests.
//
// For a candidate item j:
//
//	score(j) = sum_{s in sources} sim(s, j) * intensity(s)
//
// where sim is cosine over the users who interacted with each item.
type ItemCF struct {
	config ItemCFConfig
}

// NewItemCF creates a new item-based CF generator.
func NewItemCF(cfg ItemCFConfig) *ItemCF {
	def := DefaultItemCFConfig()
	if cfg.MinSourceIntensity <= 0 {
		cfg.MinSourceIntensity = def.MinSourceIntensity
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = def.MaxSources
	}
	return &ItemCF{config: cfg}
}

// Type implements recommend.CandidateGenerator.
func (c *ItemCF) Type() models.AlgorithmType {
	return models.AlgorithmItemCF
}

// Generate implements recommend.CandidateGenerator.
func (c *ItemCF) Generate(ctx context.Context, in *recommend.Input) ([]recommend.Candidate, error) {
	sources := c.sources(in)
	if len(sources) == 0 {
		return nil, fmt.Errorf("item_cf: no source items: %w", models.ErrInsufficientData)
	}

	items := itemVectors(in.Interactions)
	seen := in.Seen()

	scores := make(map[string]float64)
	best := make(map[string]float64)
	reasons := make(map[string]string)

	for sourceID, weight := range sources {
		if ContextCancelled(ctx) {
			return nil, ctx.Err()
		}
		sourceVec := items[sourceID]
		if len(sourceVec) == 0 {
			continue
		}
		for itemID, vec := range items {
			if _, ok := sources[itemID]; ok {
				continue
			}
			if _, ok := seen[itemID]; ok {
				continue
			}
			sim := cosineSimilarity(sourceVec, vec)
			if sim <= 0 {
				continue
			}
			contribution := sim * weight
			scores[itemID] += contribution
			if contribution > best[itemID] {
				best[itemID] = contribution
				reasons[itemID] = c.reason(in, sourceID)
			}
		}
	}

	if len(scores) == 0 {
		return nil, fmt.Errorf("item_cf: no co-read items: %w", models.ErrInsufficientData)
	}
	return toCandidates(normalizeScores(scores), reasons, models.AlgorithmItemCF, poolSize(in)), nil
}

// sources returns source item -> weight: strong history items plus the seed.
func (c *ItemCF) sources(in *recommend.Input) map[string]float64 {
	sources := make(map[string]float64)
	for i := range in.History {
		if len(sources) >= c.config.MaxSources {
			break
		}
		h := &in.History[i]
		if h.Intensity >= c.config.MinSourceIntensity && h.Intensity > sources[h.ItemID] {
			sources[h.ItemID] = h.Intensity
		}
	}
	if in.SeedItemID != "" {
		sources[in.SeedItemID] = seedIntensity
	}
	return sources
}

func (c *ItemCF) reason(in *recommend.Input, sourceID string) string {
	title := itemTitle(in, sourceID)
	if title == "" {
		return ""
	}
	if sourceID == in.SeedItemID {
		return "Readers of " + title + " also read this"
	}
	return "Because you read " + title
}
