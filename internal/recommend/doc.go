// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package recommend implements the recommendation engine.
//
// # Pipeline
//
// Every request runs the same stages:
//
//	SelectAlgorithm -> GenerateCandidates -> Filter -> Rank -> Diversify -> Explain -> Persist
//
// Only Persist has side effects. Selection reads the algorithm catalog from
// the store: a requested algorithm wins when it exists and is enabled; a
// user whose preference confidence is below the cold-start threshold gets
// the scenario's cold-start algorithm; everyone else gets the scenario's
// enabled algorithms by priority, split by the configured Assigner.
//
// # Generators
//
// Algorithm families are CandidateGenerator implementations registered
// with RegisterGenerator (see the algorithms subpackage). The engine never
// imports them. A generator that reports ErrInsufficientData falls back to
// content-based then popularity silently; any other failure, or an empty
// result, falls back to popularity and marks the result degraded.
//
// # Failure Model
//
// Recommend only fails on an invalid request. Store and generator errors
// are logged and reported in Result.Metadata so the caller always gets a
// ranked list when the catalog has items.
//
// # Usage
//
//	engine, err := recommend.NewEngine(recommend.DefaultEngineConfig(), st, catalog, logger)
//	engine.RegisterGenerator(algorithms.NewPopularity())
//	engine.SetDiversifier(reranking.NewGreedy(0.3, 0))
//
//	res, err := engine.Recommend(ctx, recommend.Request{
//	    UserID:   "u1",
//	    Scenario: models.ScenarioHomepage,
//	})
package recommend
