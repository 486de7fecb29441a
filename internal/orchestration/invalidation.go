// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package orchestration

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/shelfwise/internal/events"
	"github.com/tomtom215/shelfwise/internal/models"
)

// RunInvalidation consumes behavior notifications until ctx ends.
// High-priority behavior drops the user's cached lists; a borrow that
// carries a recommendation id marks that recommendation borrowed.
// Without a bus it blocks until ctx ends.
func (s *Service) RunInvalidation(ctx context.Context) error {
	if s.bus == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.bus.ConsumeHighPriority(gctx, s.handleHighPriority)
	})
	g.Go(func() error {
		return s.bus.ConsumeBehaviorTracked(gctx, s.handleTracked)
	})
	return g.Wait()
}

//nolint:gocritic // hugeParam: evt passed by value to match the bus handler signature
func (s *Service) handleHighPriority(ctx context.Context, evt events.HighPriorityBehavior) error {
	_, err := s.InvalidateUser(ctx, evt.UserID)
	return err
}

//nolint:gocritic // hugeParam: evt passed by value to match the bus handler signature
func (s *Service) handleTracked(ctx context.Context, evt events.BehaviorTracked) error {
	if evt.BehaviorType != models.BehaviorBorrow || evt.RecommendationID == "" {
		return nil
	}
	return s.MarkBorrowed(ctx, evt.UserID, evt.RecommendationID)
}

// MarkBorrowed moves a recommendation to borrowed when its status allows
// it. Unknown recommendations and disallowed transitions are ignored so
// the notification is not redelivered.
func (s *Service) MarkBorrowed(ctx context.Context, userID, recommendationID string) error {
	rec, err := s.ownedRecommendation(ctx, userID, recommendationID)
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrInvalidRequest) {
		s.logger.Debug().Str("recommendation_id", recommendationID).Msg("borrow references unknown recommendation")
		return nil
	}
	if err != nil {
		return err
	}

	if err := rec.Transition(models.StatusBorrowed); err != nil {
		s.logger.Debug().Err(err).Str("recommendation_id", rec.ID).Msg("borrow does not advance recommendation")
		return nil
	}
	if err := s.store.UpdateRecommendation(ctx, rec); err != nil {
		return &models.PersistenceError{Op: "update recommendation", Err: err}
	}
	return nil
}
