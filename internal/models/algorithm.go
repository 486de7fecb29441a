// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package models

import "time"

// AlgorithmType is a candidate-generation family.
type AlgorithmType string

const (
	AlgorithmUserCF              AlgorithmType = "collaborative_user"
	AlgorithmItemCF              AlgorithmType = "collaborative_item"
	AlgorithmContentBased        AlgorithmType = "content_based"
	AlgorithmPopularity          AlgorithmType = "popularity"
	AlgorithmTrending            AlgorithmType = "trending"
	AlgorithmHybrid              AlgorithmType = "hybrid"
	AlgorithmContextual          AlgorithmType = "contextual"
	AlgorithmSequential          AlgorithmType = "sequential"
	AlgorithmDeepLearning        AlgorithmType = "deep_learning"
	AlgorithmMatrixFactorization AlgorithmType = "matrix_factorization"
)

// AlgorithmFallbackPopular tags results produced by the degraded popularity path.
const AlgorithmFallbackPopular = "fallback_popular"

// TrainingStatus tracks the model state of trainable algorithms.
type TrainingStatus string

const (
	TrainingUntrained TrainingStatus = "untrained"
	TrainingRunning   TrainingStatus = "training"
	TrainingTrained   TrainingStatus = "trained"
	TrainingStale     TrainingStatus = "stale"
	TrainingFailed    TrainingStatus = "failed"
)

// AlgorithmConfig is a registered, selectable algorithm instance.
type AlgorithmConfig struct {
	ID                  string             `json:"id"`
	Name                string             `json:"name"`
	Type                AlgorithmType      `json:"type"`
	Hyperparameters     map[string]float64 `json:"hyperparameters,omitempty"`
	Enabled             bool               `json:"enabled"`
	Priority            int                `json:"priority"`
	ApplicableScenarios []Scenario         `json:"applicable_scenarios"`
	IsColdStart         bool               `json:"is_cold_start"`
	TrainingStatus      TrainingStatus     `json:"training_status"`
	LastTrainedAt       *time.Time         `json:"last_trained_at,omitempty"`
	TrainingStartedAt   *time.Time         `json:"training_started_at,omitempty"`
}

// AppliesTo reports whether the algorithm serves scenario. An empty
// scenario list means every scenario.
func (a *AlgorithmConfig) AppliesTo(scenario Scenario) bool {
	if len(a.ApplicableScenarios) == 0 {
		return true
	}
	for _, s := range a.ApplicableScenarios {
		if s == scenario {
			return true
		}
	}
	return false
}

// Param returns a hyperparameter or def when unset.
func (a *AlgorithmConfig) Param(name string, def float64) float64 {
	if v, ok := a.Hyperparameters[name]; ok {
		return v
	}
	return def
}

// Trainable reports whether the algorithm has a model that needs training.
func (a *AlgorithmConfig) Trainable() bool {
	return a.Type == AlgorithmDeepLearning || a.Type == AlgorithmMatrixFactorization
}

// DefaultAlgorithms is the catalog seeded into an empty store.
func DefaultAlgorithms() []AlgorithmConfig {
	return []AlgorithmConfig{
		{ID: "alg-hybrid", Name: "hybrid", Type: AlgorithmHybrid, Enabled: true, Priority: 100,
			ApplicableScenarios: []Scenario{ScenarioHomepage, ScenarioEmail, ScenarioCategory}},
		{ID: "alg-user-cf", Name: "user_cf", Type: AlgorithmUserCF, Enabled: true, Priority: 80,
			ApplicableScenarios: []Scenario{ScenarioHomepage, ScenarioEmail},
			Hyperparameters:     map[string]float64{"neighbors": 20}},
		{ID: "alg-item-cf", Name: "item_cf", Type: AlgorithmItemCF, Enabled: true, Priority: 90,
			ApplicableScenarios: []Scenario{ScenarioItemDetail}},
		{ID: "alg-content", Name: "content", Type: AlgorithmContentBased, Enabled: true, Priority: 70,
			ApplicableScenarios: []Scenario{ScenarioHomepage, ScenarioItemDetail, ScenarioCategory, ScenarioSearch, ScenarioNewArrivals}},
		{ID: "alg-popularity", Name: "popularity", Type: AlgorithmPopularity, Enabled: true, Priority: 10,
			IsColdStart: true},
		{ID: "alg-trending", Name: "trending", Type: AlgorithmTrending, Enabled: true, Priority: 60,
			ApplicableScenarios: []Scenario{ScenarioTrending}, IsColdStart: true,
			Hyperparameters: map[string]float64{"days": 7}},
		{ID: "alg-sequential", Name: "sequential", Type: AlgorithmSequential, Enabled: true, Priority: 50,
			ApplicableScenarios: []Scenario{ScenarioItemDetail, ScenarioHomepage}},
		{ID: "alg-contextual", Name: "contextual", Type: AlgorithmContextual, Enabled: true, Priority: 40,
			ApplicableScenarios: []Scenario{ScenarioSearch, ScenarioHomepage}},
		{ID: "alg-embedding", Name: "embedding", Type: AlgorithmDeepLearning, Enabled: false, Priority: 30,
			ApplicableScenarios: []Scenario{ScenarioHomepage}, TrainingStatus: TrainingUntrained},
	}
}
