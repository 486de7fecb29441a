// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package algorithms

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

// ContentConfig contains configuration for content-based filtering.
type ContentConfig struct {
	CategoryWeight float64
	AuthorWeight   float64
	TagWeight      float64
}

// DefaultContentConfig returns default content-based configuration.
func DefaultContentConfig() ContentConfig {
	return ContentConfig{
		CategoryWeight: 0.5,
		AuthorWeight:   0.3,
		TagWeight:      0.2,
	}
}

// Content implements content-based filtering using item metadata.
// It scores catalog items against the user's learned category, author and
// tag weights, and against the attributes of a seed item when one is given:
//
//	pref(i) = w_cat * cat_weight(i) + w_author * author_weight(i) + w_tag * avg(tag_weight(i))
//	seed(i) = w_cat * [same category] + w_author * [same author] + w_tag * jaccard(tags)
//
// Content-based filtering works for new items with no interactions, which
// makes it the first silent fallback for collaborative families.
type Content struct {
	config ContentConfig
}

// NewContent creates a new content-based generator.
func NewContent(cfg ContentConfig) *Content {
	if cfg.CategoryWeight == 0 && cfg.AuthorWeight == 0 && cfg.TagWeight == 0 {
		cfg = DefaultContentConfig()
	}
	return &Content{config: cfg}
}

// Type implements recommend.CandidateGenerator.
func (c *Content) Type() models.AlgorithmType {
	return models.AlgorithmContentBased
}

// Generate implements recommend.CandidateGenerator.
func (c *Content) Generate(ctx context.Context, in *recommend.Input) ([]recommend.Candidate, error) {
	pref := in.Preference
	hasPref := pref != nil &&
		(len(pref.CategoryWeights) > 0 || len(pref.AuthorWeights) > 0 || len(pref.TagWeights) > 0)

	var seed *models.Item
	if in.SeedItemID != "" {
		seed = in.Items[in.SeedItemID]
	}
	if !hasPref && seed == nil {
		return nil, fmt.Errorf("content: no preference or seed item: %w", models.ErrInsufficientData)
	}

	seen := in.Seen()
	scores := make(map[string]float64, len(in.Items))
	reasons := make(map[string]string, len(in.Items))

	for id, item := range in.Items {
		if ContextCancelled(ctx) {
			return nil, ctx.Err()
		}
		if id == in.SeedItemID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}

		var prefScore, seedScore float64
		var prefReason string
		if hasPref {
			prefScore, prefReason = c.preferenceScore(pref, item)
		}
		if seed != nil {
			seedScore = c.Similarity(seed, item)
		}

		score := prefScore + seedScore
		if score <= 0 {
			continue
		}
		scores[id] = score
		if seedScore > prefScore {
			reasons[id] = "Similar to " + seed.Title
		} else {
			reasons[id] = prefReason
		}
	}

	return toCandidates(scores, reasons, models.AlgorithmContentBased, poolSize(in)), nil
}

// preferenceScore scores an item against learned weights and names the
// attribute that contributed most.
func (c *Content) preferenceScore(pref *models.UserPreference, item *models.Item) (float64, string) {
	catPart := c.config.CategoryWeight * pref.CategoryWeights[item.Category]
	authorPart := c.config.AuthorWeight * pref.AuthorWeights[item.Author]

	var tagPart float64
	if len(item.Tags) > 0 {
		var sum float64
		for _, tag := range item.Tags {
			sum += pref.TagWeights[normalizeTag(tag)]
		}
		tagPart = c.config.TagWeight * sum / float64(len(item.Tags))
	}

	reason := ""
	switch {
	case catPart > 0 && catPart >= authorPart:
		reason = "Matches your interest in " + item.Category
	case authorPart > 0:
		reason = "Because you read books by " + item.Author
	}
	return catPart + authorPart + tagPart, reason
}

// normalizeTag matches the key form the preference learner stores tags under.
func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// Similarity returns the attribute similarity of two items in [0, 1] for
// the default weights.
func (c *Content) Similarity(a, b *models.Item) float64 {
	var sim float64
	if a.Category != "" && strings.EqualFold(a.Category, b.Category) {
		sim += c.config.CategoryWeight
	}
	if a.Author != "" && strings.EqualFold(a.Author, b.Author) {
		sim += c.config.AuthorWeight
	}
	sim += c.config.TagWeight * jaccardSimilarity(a.Tags, b.Tags)
	return sim
}
