// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package algorithms

import (
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

// SetConfig tunes the default generator set.
type SetConfig struct {
	Neighbors    int
	TrendingDays float64

	// Embeddings enables the deep_learning and matrix_factorization
	// families when set.
	Embeddings EmbeddingSource
}

// NewDefaultSet returns one generator per family, with the hybrid built
// from the same user CF, content and popularity instances.
func NewDefaultSet(cfg SetConfig) []recommend.CandidateGenerator {
	userCF := NewUserCF(UserCFConfig{Neighbors: cfg.Neighbors})
	content := NewContent(DefaultContentConfig())
	popularity := NewPopularity(PopularityConfig{})

	set := []recommend.CandidateGenerator{
		userCF,
		NewItemCF(DefaultItemCFConfig()),
		content,
		popularity,
		NewTrending(TrendingConfig{Days: cfg.TrendingDays}),
		NewDefaultHybrid(userCF, content, popularity),
		NewSequential(DefaultSequentialConfig()),
		NewContextual(),
	}

	if cfg.Embeddings != nil {
		for _, t := range []models.AlgorithmType{models.AlgorithmDeepLearning, models.AlgorithmMatrixFactorization} {
			if e, err := NewEmbedding(t, cfg.Embeddings); err == nil {
				set = append(set, e)
			}
		}
	}
	return set
}
