// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/store"
)

const recommendationColumns = `id, user_id, item_id, algorithm, model_id, score, rank, scenario, status,
	explanation, batch_id, display_count, click_count, feedback_score, created_at,
	last_displayed_at, last_clicked_at`

func scanRecommendation(row rowScanner) (*models.Recommendation, error) {
	var (
		r                      models.Recommendation
		modelID, explanation   sql.NullString
		scenario, status       string
		feedback               sql.NullFloat64
		lastDisplay, lastClick sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.ItemID, &r.Algorithm, &modelID, &r.Score, &r.Rank,
		&scenario, &status, &explanation, &r.BatchID, &r.DisplayCount, &r.ClickCount, &feedback,
		&r.CreatedAt, &lastDisplay, &lastClick); err != nil {
		return nil, err
	}
	r.ModelID = modelID.String
	r.Explanation = explanation.String
	r.Scenario = models.Scenario(scenario)
	r.Status = models.RecommendationStatus(status)
	if feedback.Valid {
		v := feedback.Float64
		r.FeedbackScore = &v
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.LastDisplayedAt = timePtr(lastDisplay)
	r.LastClickedAt = timePtr(lastClick)
	return &r, nil
}

// CreateRecommendations inserts one engine batch atomically.
func (db *DB) CreateRecommendations(ctx context.Context, recs []models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	start := time.Now()
	return observe("insert_batch", "recommendations", start, db.createRecommendations(ctx, recs))
}

func (db *DB) createRecommendations(ctx context.Context, recs []models.Recommendation) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO recommendations ("+recommendationColumns+
		") VALUES ("+placeholders(17)+")")
	if err != nil {
		return fmt.Errorf("failed to prepare recommendation insert: %w", err)
	}
	defer closeWithLog(stmt, "recommendation insert statement")

	for i := range recs {
		r := &recs[i]
		if _, err := stmt.ExecContext(ctx, r.ID, r.UserID, r.ItemID, r.Algorithm, nullString(r.ModelID),
			r.Score, r.Rank, string(r.Scenario), string(r.Status), nullString(r.Explanation), r.BatchID,
			r.DisplayCount, r.ClickCount, nullFloat(r.FeedbackScore), r.CreatedAt.UTC(),
			nullTime(r.LastDisplayedAt), nullTime(r.LastClickedAt)); err != nil {
			return fmt.Errorf("failed to insert recommendation %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recommendation batch: %w", err)
	}
	committed = true
	return nil
}

// GetRecommendation loads one recommendation.
func (db *DB) GetRecommendation(ctx context.Context, id string) (*models.Recommendation, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+recommendationColumns+" FROM recommendations WHERE id = ?", id)
	r, err := scanRecommendation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recommendation %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendation: %w", err)
	}
	return r, nil
}

// UpdateRecommendation writes the mutable lifecycle columns.
func (db *DB) UpdateRecommendation(ctx context.Context, rec *models.Recommendation) error {
	return db.execWithRetry(ctx, func(ctx context.Context) error {
		res, err := db.conn.ExecContext(ctx, `UPDATE recommendations SET status = ?, display_count = ?,
			click_count = ?, feedback_score = ?, last_displayed_at = ?, last_clicked_at = ? WHERE id = ?`,
			string(rec.Status), rec.DisplayCount, rec.ClickCount, nullFloat(rec.FeedbackScore),
			nullTime(rec.LastDisplayedAt), nullTime(rec.LastClickedAt), rec.ID)
		if err != nil {
			return fmt.Errorf("failed to update recommendation: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("recommendation %s: %w", rec.ID, models.ErrNotFound)
		}
		return nil
	})
}

func recommendationWhere(f *store.RecommendationFilter) *where {
	w := &where{}
	if f.UserID != "" {
		w.add("user_id = ?", f.UserID)
	}
	if f.ItemID != "" {
		w.add("item_id = ?", f.ItemID)
	}
	if f.BatchID != "" {
		w.add("batch_id = ?", f.BatchID)
	}
	if f.Algorithm != "" {
		w.add("algorithm = ?", f.Algorithm)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		w.in("status", statuses)
	}
	if !f.CreatedAfter.IsZero() {
		w.add("created_at >= ?", f.CreatedAfter.UTC())
	}
	if !f.CreatedBefore.IsZero() {
		w.add("created_at < ?", f.CreatedBefore.UTC())
	}
	return w
}

// FindRecommendations returns matching rows, newest batch first and by rank within a batch.
func (db *DB) FindRecommendations(ctx context.Context, filter store.RecommendationFilter) ([]models.Recommendation, error) {
	w := recommendationWhere(&filter)
	query := "SELECT " + recommendationColumns + " FROM recommendations" + w.String() +
		" ORDER BY created_at DESC, batch_id, rank" + limitClause(filter.Limit)

	rows, err := db.conn.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer closeWithLog(rows, "recommendation rows")

	out := make([]models.Recommendation, 0)
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// CountRecommendations counts matching rows.
func (db *DB) CountRecommendations(ctx context.Context, filter store.RecommendationFilter) (int, error) {
	w := recommendationWhere(&filter)
	var n int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM recommendations"+w.String(), w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count recommendations: %w", err)
	}
	return n, nil
}

// DeleteRecommendations removes matching rows and reports how many went.
func (db *DB) DeleteRecommendations(ctx context.Context, filter store.RecommendationFilter) (int, error) {
	w := recommendationWhere(&filter)
	var deleted int
	err := db.execWithRetry(ctx, func(ctx context.Context) error {
		res, err := db.conn.ExecContext(ctx, "DELETE FROM recommendations"+w.String(), w.args...)
		if err != nil {
			return fmt.Errorf("failed to delete recommendations: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read deleted row count: %w", err)
		}
		deleted = int(n)
		return nil
	})
	return deleted, err
}
