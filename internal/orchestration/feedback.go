// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package orchestration

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/preference"
)

// clickIntensity is the intensity of the recommendation_click event a
// click emits.
const clickIntensity = 0.5

// FeedbackInput is a user's rating of one recommendation.
type FeedbackInput struct {
	Type       models.FeedbackType       `json:"feedback_type"`
	Value      float64                   `json:"feedback_value"`
	Dimensions models.FeedbackDimensions `json:"dimensions"`
	Comment    string                    `json:"comment,omitempty"`
	Context    map[string]interface{}    `json:"context,omitempty"`
}

// TrackClick records a click on a recommendation owned by userID and
// emits a recommendation_click behavior event through the pipeline.
func (s *Service) TrackClick(ctx context.Context, userID, recommendationID string, extra map[string]interface{}) (*models.Recommendation, error) {
	rec, err := s.ownedRecommendation(ctx, userID, recommendationID)
	if err != nil {
		return nil, err
	}

	rec.MarkClicked(s.clock().UTC())
	if err := s.store.UpdateRecommendation(ctx, rec); err != nil {
		return nil, &models.PersistenceError{Op: "update recommendation", Err: err}
	}

	if s.tracker != nil {
		event := &models.BehaviorEvent{
			UserID:           userID,
			ItemID:           rec.ItemID,
			BehaviorType:     models.BehaviorRecommendationClick,
			Intensity:        clickIntensity,
			RecommendationID: rec.ID,
			Context:          extra,
		}
		if _, err := s.tracker.Track(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("recommendation_id", rec.ID).Msg("failed to track recommendation click")
		}
	}
	return rec, nil
}

// RecordFeedback stores feedback on a recommendation owned by userID and
// feeds it to the preference learner. Negative feedback dismisses the
// recommendation when its status allows it.
//
//nolint:gocritic // hugeParam: in passed by value for immutability
func (s *Service) RecordFeedback(ctx context.Context, userID, recommendationID string, in FeedbackInput) (*models.RecommendationFeedback, error) {
	if err := validateFeedback(&in); err != nil {
		return nil, err
	}
	rec, err := s.ownedRecommendation(ctx, userID, recommendationID)
	if err != nil {
		return nil, err
	}

	if in.Type == "" {
		in.Type = models.FeedbackExplicit
	}
	fb := &models.RecommendationFeedback{
		ID:               uuid.New().String(),
		UserID:           userID,
		RecommendationID: rec.ID,
		ItemID:           rec.ItemID,
		FeedbackType:     in.Type,
		FeedbackValue:    in.Value,
		Dimensions:       in.Dimensions,
		Context:          in.Context,
		Comment:          in.Comment,
		CreatedAt:        s.clock().UTC(),
	}
	if err := s.store.CreateFeedback(ctx, fb); err != nil {
		return nil, &models.PersistenceError{Op: "create feedback", Err: err}
	}

	logger := s.logger.With().
		Str("user_id", userID).
		Str("recommendation_id", rec.ID).
		Logger()

	value := in.Value
	rec.FeedbackScore = &value
	if value < 0 && rec.Status.CanTransition(models.StatusDismissed) {
		rec.Status = models.StatusDismissed
	}
	if err := s.store.UpdateRecommendation(ctx, rec); err != nil {
		logger.Warn().Err(err).Msg("failed to record feedback score")
	}

	learned := value == 0 || s.learnFromFeedback(ctx, userID, rec.ItemID, value)
	if learned {
		if err := s.store.MarkFeedbackProcessed(ctx, fb.ID); err != nil {
			logger.Warn().Err(err).Msg("failed to mark feedback processed")
		} else {
			fb.Processed = true
		}
	}

	if _, err := s.InvalidateUser(ctx, userID); err != nil {
		logger.Warn().Err(err).Msg("cache invalidation after feedback failed")
	}
	return fb, nil
}

// learnFromFeedback reports whether the preference update ran.
func (s *Service) learnFromFeedback(ctx context.Context, userID, itemID string, value float64) bool {
	if s.learner == nil {
		return false
	}
	item, err := s.catalog.GetItem(ctx, itemID)
	if err != nil {
		s.logger.Warn().Err(err).Str("item_id", itemID).Msg("feedback item not in catalog")
		return false
	}
	if _, err := s.learner.Apply(ctx, userID, item, preference.SignalForFeedback(value), "feedback"); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("preference update from feedback failed")
		return false
	}
	return true
}

// ownedRecommendation loads a recommendation and hides other users'
// recommendations behind ErrNotFound.
func (s *Service) ownedRecommendation(ctx context.Context, userID, recommendationID string) (*models.Recommendation, error) {
	if userID == "" || recommendationID == "" {
		return nil, fmt.Errorf("%w: user id and recommendation id are required", models.ErrInvalidRequest)
	}
	rec, err := s.store.GetRecommendation(ctx, recommendationID)
	if err != nil {
		return nil, fmt.Errorf("recommendation %s: %w", recommendationID, err)
	}
	if rec.UserID != userID {
		return nil, fmt.Errorf("recommendation %s: %w", recommendationID, models.ErrNotFound)
	}
	return rec, nil
}

func validateFeedback(in *FeedbackInput) error {
	if !inUnitRange(in.Value) {
		return fmt.Errorf("%w: value %v outside [-1,1]", models.ErrInvalidFeedback, in.Value)
	}
	if in.Type != "" && in.Type != models.FeedbackExplicit && in.Type != models.FeedbackImplicit {
		return fmt.Errorf("%w: unknown feedback type %q", models.ErrInvalidFeedback, in.Type)
	}
	for name, v := range map[string]*float64{
		"relevance":    in.Dimensions.Relevance,
		"satisfaction": in.Dimensions.Satisfaction,
		"interest":     in.Dimensions.Interest,
		"quality":      in.Dimensions.Quality,
	} {
		if v != nil && !inUnitRange(*v) {
			return fmt.Errorf("%w: %s %v outside [-1,1]", models.ErrInvalidFeedback, name, *v)
		}
	}
	return nil
}

func inUnitRange(v float64) bool {
	return !math.IsNaN(v) && v >= -1 && v <= 1
}
