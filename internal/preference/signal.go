// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package preference

import (
	"math"

	"github.com/tomtom215/shelfwise/internal/models"
)

// Signal is one learning observation: weights move toward Target at Rate.
type Signal struct {
	Target float64
	Rate   float64
}

// baseLearningRates maps behavior types to their EMA learning rate.
var baseLearningRates = map[models.BehaviorType]float64{
	models.BehaviorBorrow:                0.3,
	models.BehaviorRate:                  0.25,
	models.BehaviorReview:                0.25,
	models.BehaviorBookmark:              0.2,
	models.BehaviorShare:                 0.15,
	models.BehaviorDownload:              0.15,
	models.BehaviorRead:                  0.12,
	models.BehaviorReturn:                0.1,
	models.BehaviorRecommendationDismiss: 0.1,
	models.BehaviorRecommendationClick:   0.08,
	models.BehaviorClick:                 0.05,
	models.BehaviorSearch:                0.04,
	models.BehaviorHover:                 0.03,
	models.BehaviorScroll:                0.02,
	models.BehaviorView:                  0.02,
}

// BaseLearningRate returns the rate for a behavior type, 0.02 for unknown types.
func BaseLearningRate(t models.BehaviorType) float64 {
	if r, ok := baseLearningRates[t]; ok {
		return r
	}
	return 0.02
}

// SignalForBehavior derives the learning signal of a tracked event.
// High-priority events learn at twice the rate. Rates never exceed 1.
// A non-finite intensity yields a zero signal.
func SignalForBehavior(t models.BehaviorType, intensity float64, highPriority bool) Signal {
	if !finite(intensity) {
		return Signal{}
	}
	lr := BaseLearningRate(t) * math.Min(2, math.Abs(intensity)/3)
	if highPriority {
		lr *= 2
	}
	return Signal{
		Target: clamp(intensity/5, -1, 1),
		Rate:   math.Min(1, lr),
	}
}

// SignalForFeedback derives the learning signal of explicit feedback in
// [-1,1]. The target is the sign of the value, so positive feedback never
// lowers a weight and negative feedback never raises one.
func SignalForFeedback(value float64) Signal {
	if !finite(value) {
		return Signal{}
	}
	target := 0.0
	switch {
	case value > 0:
		target = 1
	case value < 0:
		target = -1
	}
	return Signal{
		Target: target,
		Rate:   math.Min(1, BaseLearningRate(models.BehaviorRate)*math.Abs(value)),
	}
}

// Blend is the EMA update old*(1-lr) + target*lr.
func Blend(old, target, lr float64) float64 {
	return old*(1-lr) + target*lr
}

// StrengthForConfidence maps preference confidence to personalization strength.
func StrengthForConfidence(confidence float64) float64 {
	return clamp(models.DefaultPersonalizationStrength+0.7*confidence, 0, 1)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// clamp maps NaN to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
