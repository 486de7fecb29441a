// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/store"
)

const eventColumns = `id, user_id, item_id, behavior_type, intensity, duration_seconds, context,
	session_id, recommendation_id, confidence_score, is_implicit, is_anomaly, processed, created_at`

const insertEventSQL = `INSERT INTO behavior_events (` + eventColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func eventArgs(e *models.BehaviorEvent) ([]interface{}, error) {
	ctxJSON, err := toJSON(e.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to encode context for event %s: %w", e.ID, err)
	}
	return []interface{}{
		e.ID, e.UserID, nullString(e.ItemID), string(e.BehaviorType), e.Intensity,
		e.DurationSeconds, ctxJSON, nullString(e.SessionID), nullString(e.RecommendationID),
		e.ConfidenceScore, e.IsImplicit, e.IsAnomaly, e.Processed, e.CreatedAt.UTC(),
	}, nil
}

// CreateEvent inserts a single event.
func (db *DB) CreateEvent(ctx context.Context, event *models.BehaviorEvent) error {
	args, err := eventArgs(event)
	if err != nil {
		return err
	}
	if _, err := db.conn.ExecContext(ctx, insertEventSQL, args...); err != nil {
		return fmt.Errorf("failed to insert behavior event: %w", err)
	}
	return nil
}

// CreateEvents inserts a batch in one transaction; either every row is
// written or none is.
func (db *DB) CreateEvents(ctx context.Context, events []models.BehaviorEvent) error {
	if len(events) == 0 {
		return nil
	}
	start := time.Now()
	return observe("insert_batch", "behavior_events", start, db.createEvents(ctx, events))
}

func (db *DB) createEvents(ctx context.Context, events []models.BehaviorEvent) error {

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

	stmt, err := tx.PrepareContext(ctx, insertEventSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer closeWithLog(stmt, "event insert statement")

	for i := range events {
		args, err := eventArgs(&events[i])
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert event %s: %w", events[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event batch: %w", err)
	}
	committed = true
	return nil
}

func eventWhere(f *store.EventFilter) *where {
	w := &where{}
	if f.UserID != "" {
		w.add("user_id = ?", f.UserID)
	}
	if f.ItemID != "" {
		w.add("item_id = ?", f.ItemID)
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		w.in("behavior_type", types)
	}
	if !f.Since.IsZero() {
		w.add("created_at >= ?", f.Since.UTC())
	}
	if !f.Until.IsZero() {
		w.add("created_at < ?", f.Until.UTC())
	}
	if f.Processed != nil {
		w.add("processed = ?", *f.Processed)
	}
	if f.Anomalous != nil {
		w.add("is_anomaly = ?", *f.Anomalous)
	}
	return w
}

// FindEvents returns matching events, newest first.
func (db *DB) FindEvents(ctx context.Context, filter store.EventFilter) ([]models.BehaviorEvent, error) {
	w := eventWhere(&filter)
	query := "SELECT " + eventColumns + " FROM behavior_events" + w.String() +
		" ORDER BY created_at DESC, id DESC" + limitClause(filter.Limit)

	rows, err := db.conn.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query behavior events: %w", err)
	}
	defer closeWithLog(rows, "behavior event rows")

	out := make([]models.BehaviorEvent, 0)
	for rows.Next() {
		var (
			e                              models.BehaviorEvent
			itemID, session, recID, ctxRaw sql.NullString
			duration                       sql.NullInt64
			behavior                       string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &itemID, &behavior, &e.Intensity, &duration, &ctxRaw,
			&session, &recID, &e.ConfidenceScore, &e.IsImplicit, &e.IsAnomaly, &e.Processed, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan behavior event: %w", err)
		}
		e.ItemID = itemID.String
		e.BehaviorType = models.BehaviorType(behavior)
		e.DurationSeconds = int(duration.Int64)
		e.SessionID = session.String
		e.RecommendationID = recID.String
		e.CreatedAt = e.CreatedAt.UTC()
		if err := fromJSON(ctxRaw, &e.Context); err != nil {
			return nil, fmt.Errorf("failed to decode context for event %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountEvents counts matching events.
func (db *DB) CountEvents(ctx context.Context, filter store.EventFilter) (int, error) {
	w := eventWhere(&filter)
	var n int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM behavior_events"+w.String(), w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count behavior events: %w", err)
	}
	return n, nil
}

// MarkEventsProcessed sets processed=true on the given events.
func (db *DB) MarkEventsProcessed(ctx context.Context, ids []string) error {
	return db.setEventFlag(ctx, "processed", ids)
}

// MarkEventsAnomalous sets is_anomaly=true on the given events.
func (db *DB) MarkEventsAnomalous(ctx context.Context, ids []string) error {
	return db.setEventFlag(ctx, "is_anomaly", ids)
}

func (db *DB) setEventFlag(ctx context.Context, column string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	w := &where{}
	w.in("id", ids)
	query := "UPDATE behavior_events SET " + column + " = true" + w.String()
	return db.execWithRetry(ctx, func(ctx context.Context) error {
		if _, err := db.conn.ExecContext(ctx, query, w.args...); err != nil {
			return fmt.Errorf("failed to set %s on events: %w", column, err)
		}
		return nil
	})
}
