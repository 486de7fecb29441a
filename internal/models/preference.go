// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package models

import (
	"strings"
	"time"
)

// NegativePreferences are explicit exclusions applied by the recommendation filter.
type NegativePreferences struct {
	DislikedCategories  []string `json:"disliked_categories,omitempty"`
	DislikedAuthors     []string `json:"disliked_authors,omitempty"`
	BlacklistedKeywords []string `json:"blacklisted_keywords,omitempty"`
}

// DislikesCategory reports whether category is excluded (case-insensitive).
func (n *NegativePreferences) DislikesCategory(category string) bool {
	return containsFold(n.DislikedCategories, category)
}

// DislikesAuthor reports whether author is excluded (case-insensitive).
func (n *NegativePreferences) DislikesAuthor(author string) bool {
	return containsFold(n.DislikedAuthors, author)
}

// MatchesKeyword reports whether any blacklisted keyword appears in text.
func (n *NegativePreferences) MatchesKeyword(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range n.BlacklistedKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func containsFold(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// UserPreference is the evolving per-user preference state. It is created
// lazily on the first learned behavior and only ever blended, never replaced.
type UserPreference struct {
	UserID                  string              `json:"user_id"`
	CategoryWeights         map[string]float64  `json:"category_weights"`
	AuthorWeights           map[string]float64  `json:"author_weights"`
	TagWeights              map[string]float64  `json:"tag_weights"`
	Negative                NegativePreferences `json:"negative_preferences"`
	ConfidenceScore         float64             `json:"confidence_score"`
	PersonalizationStrength float64             `json:"personalization_strength"`
	InteractionCount        int                 `json:"interaction_count"`
	LastUpdated             time.Time           `json:"last_updated"`
}

// DefaultPersonalizationStrength is the strength of a brand new preference.
const DefaultPersonalizationStrength = 0.3

// NewUserPreference returns an empty preference for userID.
func NewUserPreference(userID string, now time.Time) *UserPreference {
	return &UserPreference{
		UserID:                  userID,
		CategoryWeights:         make(map[string]float64),
		AuthorWeights:           make(map[string]float64),
		TagWeights:              make(map[string]float64),
		PersonalizationStrength: DefaultPersonalizationStrength,
		LastUpdated:             now,
	}
}

// EnsureMaps allocates nil weight maps. Stores call it after decoding.
func (p *UserPreference) EnsureMaps() {
	if p.CategoryWeights == nil {
		p.CategoryWeights = make(map[string]float64)
	}
	if p.AuthorWeights == nil {
		p.AuthorWeights = make(map[string]float64)
	}
	if p.TagWeights == nil {
		p.TagWeights = make(map[string]float64)
	}
}

// Clone returns a deep copy.
func (p *UserPreference) Clone() *UserPreference {
	if p == nil {
		return nil
	}
	c := *p
	c.CategoryWeights = cloneWeights(p.CategoryWeights)
	c.AuthorWeights = cloneWeights(p.AuthorWeights)
	c.TagWeights = cloneWeights(p.TagWeights)
	c.Negative = NegativePreferences{
		DislikedCategories:  append([]string(nil), p.Negative.DislikedCategories...),
		DislikedAuthors:     append([]string(nil), p.Negative.DislikedAuthors...),
		BlacklistedKeywords: append([]string(nil), p.Negative.BlacklistedKeywords...),
	}
	return &c
}

func cloneWeights(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
