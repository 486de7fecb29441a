// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package algorithms implements the candidate generators of the
// recommendation engine.
//
// Every generator implements recommend.CandidateGenerator and is stateless:
// it reads the per-request recommend.Input (user history, population
// interactions within the history window, the catalog snapshot and the
// user's preference) and returns scored candidates. Generators are safe
// for concurrent use.
//
// # Families
//
// Collaborative Filtering:
//   - UserCF: neighbors by cosine over item intensities
//   - ItemCF: items co-read with the user's strongest items or a seed item
//
// Content-Based Filtering:
//   - Content: learned category, author and tag weights, plus seed-item
//     attribute similarity
//
// Baselines:
//   - Popularity: interaction volume plus unique readers, catalog rating
//     when there are no interactions
//   - Trending: growth of the last N days over the N days before
//
// Blends and Context:
//   - Hybrid: concurrent weighted union of other generators
//   - Sequential: first-order transitions after the anchor item
//   - Contextual: popularity within the request's hour band and device
//   - Embedding: cosine between learned user and item vectors, serving
//     deep_learning and matrix_factorization
//
// # Insufficient Data
//
// A generator that cannot run for a user returns an error wrapping
// models.ErrInsufficientData. The engine treats that as a silent fallback
// rather than a failure.
//
// # Usage Example
//
//	for _, g := range algorithms.NewDefaultSet(algorithms.SetConfig{Neighbors: 20, TrendingDays: 7}) {
//	    engine.RegisterGenerator(g)
//	}
package algorithms
