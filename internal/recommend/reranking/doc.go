// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package reranking implements the diversification stage of the
// recommendation engine.
//
// Rerankers run after ranking and trade ranking purity for variety in
// category and author:
//
//	Generators -> Filter -> Rank -> Diversify -> Explain
//	(relevance)                     (variety)
//
// # Available Rerankers
//
// Greedy (default):
//   - First slot is always the top candidate
//   - Each later slot, with probability diversityFactor, takes the next
//     candidate whose category or author has not appeared yet
//   - Otherwise takes the next highest-ranked candidate
//
// Maximal Marginal Relevance (MMR):
//   - Penalizes items similar to already-selected items
//   - Similarity is Jaccard over category, author and tags
//   - Lambda is 1 - diversityFactor
//
// Both implement recommend.Diversifier, never emit duplicate item IDs and
// never return more than limit items.
//
// # Usage Example
//
//	d, err := reranking.New(cfg.Recommend.DiversityStrategy, cfg.Recommend.DiversityFactor, cfg.Recommend.Seed)
//	if err != nil {
//	    return err
//	}
//	engine.SetDiversifier(d)
//
// # Thread Safety
//
// MMR is stateless. Greedy guards its random source with a mutex. The same
// instance can serve concurrent requests.
//
// # See Also
//
//   - internal/recommend: Engine that applies the diversifier
//   - Carbonell & Goldstein (1998): "The Use of MMR" SIGIR paper
package reranking
