// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package ingest

import (
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/shelfwise/internal/models"
)

// baseConfidence is how much a single event of each type says about intent.
var baseConfidence = map[models.BehaviorType]float64{
	models.BehaviorBorrow:                0.9,
	models.BehaviorRate:                  0.8,
	models.BehaviorReview:                0.8,
	models.BehaviorBookmark:              0.7,
	models.BehaviorShare:                 0.7,
	models.BehaviorDownload:              0.65,
	models.BehaviorRead:                  0.6,
	models.BehaviorReturn:                0.5,
	models.BehaviorRecommendationClick:   0.5,
	models.BehaviorClick:                 0.4,
	models.BehaviorRecommendationDismiss: 0.4,
	models.BehaviorView:                  0.3,
	models.BehaviorHover:                 0.2,
	models.BehaviorScroll:                0.15,
	models.BehaviorSearch:                0.2,
}

// BaseConfidence returns the per-type confidence before intensity scaling.
func BaseConfidence(t models.BehaviorType) float64 {
	return baseConfidence[t]
}

// Confidence is base(type) * min(1, |intensity|/5) * quality, within [0,1].
func Confidence(t models.BehaviorType, intensity, quality float64) float64 {
	return clamp(BaseConfidence(t)*math.Min(1, math.Abs(intensity)/5)*quality, 0, 1)
}

// sessionQuality reads the sessionQuality context value. Missing or
// unparseable values count as 1.
func sessionQuality(c map[string]interface{}) float64 {
	raw, ok := c[ContextSessionQuality]
	if !ok {
		return 1
	}
	var q float64
	switch v := raw.(type) {
	case float64:
		q = v
	case float32:
		q = float64(v)
	case int:
		q = float64(v)
	case int64:
		q = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 1
		}
		q = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 1
		}
		q = f
	default:
		return 1
	}
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return 1
	}
	return clamp(q, 0, 1)
}
