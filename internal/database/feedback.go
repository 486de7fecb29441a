// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/store"
)

const feedbackColumns = `id, user_id, recommendation_id, item_id, feedback_type, feedback_value,
	dimensions, context, comment, processed, created_at`

// CreateFeedback inserts a feedback row.
func (db *DB) CreateFeedback(ctx context.Context, fb *models.RecommendationFeedback) error {
	dims, err := toJSON(fb.Dimensions)
	if err != nil {
		return fmt.Errorf("failed to encode feedback dimensions: %w", err)
	}
	ctxJSON, err := toJSON(fb.Context)
	if err != nil {
		return fmt.Errorf("failed to encode feedback context: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, "INSERT INTO recommendation_feedback ("+feedbackColumns+
		") VALUES ("+placeholders(11)+")",
		fb.ID, fb.UserID, fb.RecommendationID, nullString(fb.ItemID), string(fb.FeedbackType),
		fb.FeedbackValue, dims, ctxJSON, nullString(fb.Comment), fb.Processed, fb.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// MarkFeedbackProcessed flags a feedback row as consumed by learning.
func (db *DB) MarkFeedbackProcessed(ctx context.Context, id string) error {
	return db.execWithRetry(ctx, func(ctx context.Context) error {
		res, err := db.conn.ExecContext(ctx, "UPDATE recommendation_feedback SET processed = true WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to mark feedback processed: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("feedback %s: %w", id, models.ErrNotFound)
		}
		return nil
	})
}

// FindFeedback returns matching feedback, newest first.
func (db *DB) FindFeedback(ctx context.Context, filter store.FeedbackFilter) ([]models.RecommendationFeedback, error) {
	w := &where{}
	if filter.UserID != "" {
		w.add("user_id = ?", filter.UserID)
	}
	if filter.RecommendationID != "" {
		w.add("recommendation_id = ?", filter.RecommendationID)
	}
	if filter.Processed != nil {
		w.add("processed = ?", *filter.Processed)
	}
	if !filter.Since.IsZero() {
		w.add("created_at >= ?", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		w.add("created_at < ?", filter.Until.UTC())
	}

	rows, err := db.conn.QueryContext(ctx, "SELECT "+feedbackColumns+" FROM recommendation_feedback"+
		w.String()+" ORDER BY created_at DESC, id"+limitClause(filter.Limit), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer closeWithLog(rows, "feedback rows")

	out := make([]models.RecommendationFeedback, 0)
	for rows.Next() {
		var (
			fb                            models.RecommendationFeedback
			itemID, dims, ctxRaw, comment sql.NullString
			fbType                        string
		)
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.RecommendationID, &itemID, &fbType, &fb.FeedbackValue,
			&dims, &ctxRaw, &comment, &fb.Processed, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		fb.ItemID = itemID.String
		fb.FeedbackType = models.FeedbackType(fbType)
		fb.Comment = comment.String
		fb.CreatedAt = fb.CreatedAt.UTC()
		if err := fromJSON(dims, &fb.Dimensions); err != nil {
			return nil, fmt.Errorf("failed to decode feedback dimensions: %w", err)
		}
		if err := fromJSON(ctxRaw, &fb.Context); err != nil {
			return nil, fmt.Errorf("failed to decode feedback context: %w", err)
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}
