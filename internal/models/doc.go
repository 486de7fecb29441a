// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

/*
Package models defines the data shapes shared by every Shelfwise layer.

Key types:

  - BehaviorEvent: one recorded interaction (view, borrow, rate, ...)
  - UserPreference: evolving per-user category/author/tag weights
  - Recommendation: one served item with its forward-only status lifecycle
  - RecommendationFeedback: explicit or implicit feedback on a recommendation
  - AlgorithmConfig: a selectable candidate-generation algorithm
  - Item: the catalog record the core reads
  - Anomaly: suspicious activity reported by ingestion

The package also holds the error taxonomy (ErrInvalidEvent,
ErrInsufficientData, ErrAlgorithmNotFound, ErrPersistence, ...) and the HTTP
response envelope. It has no dependencies beyond the standard library.
*/
package models
