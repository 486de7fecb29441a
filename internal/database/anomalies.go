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

// SaveAnomalies inserts anomaly records. Records whose ID already exists
// are skipped, which keeps repeated scans of one window idempotent.
func (db *DB) SaveAnomalies(ctx context.Context, anomalies []models.Anomaly) (int, error) {
	inserted := 0
	for i := range anomalies {
		a := &anomalies[i]
		ids, err := toJSON(a.EventIDs)
		if err != nil {
			return inserted, fmt.Errorf("failed to encode anomaly event ids: %w", err)
		}
		res, err := db.conn.ExecContext(ctx, `INSERT INTO behavior_anomalies
			(id, user_id, kind, behavior_type, event_count, threshold, window_start, window_end, event_ids, detected_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
			a.ID, a.UserID, a.Kind, nullString(string(a.BehaviorType)), a.EventCount, a.Threshold,
			a.WindowStart.UTC(), a.WindowEnd.UTC(), ids, a.DetectedAt.UTC())
		if err != nil {
			return inserted, fmt.Errorf("failed to insert anomaly %s: %w", a.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, nil
}

// FindAnomalies returns anomaly records, newest detection first.
func (db *DB) FindAnomalies(ctx context.Context, filter store.AnomalyFilter) ([]models.Anomaly, error) {
	w := &where{}
	if filter.UserID != "" {
		w.add("user_id = ?", filter.UserID)
	}
	if filter.Kind != "" {
		w.add("kind = ?", filter.Kind)
	}
	if !filter.Since.IsZero() {
		w.add("window_end >= ?", filter.Since.UTC())
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT id, user_id, kind, behavior_type, event_count, threshold,
		window_start, window_end, event_ids, detected_at FROM behavior_anomalies`+w.String()+
		" ORDER BY detected_at DESC, id"+limitClause(filter.Limit), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomalies: %w", err)
	}
	defer closeWithLog(rows, "anomaly rows")

	out := make([]models.Anomaly, 0)
	for rows.Next() {
		var (
			a       models.Anomaly
			bt, ids sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Kind, &bt, &a.EventCount, &a.Threshold,
			&a.WindowStart, &a.WindowEnd, &ids, &a.DetectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", err)
		}
		a.BehaviorType = models.BehaviorType(bt.String)
		a.WindowStart = a.WindowStart.UTC()
		a.WindowEnd = a.WindowEnd.UTC()
		a.DetectedAt = a.DetectedAt.UTC()
		if err := fromJSON(ids, &a.EventIDs); err != nil {
			return nil, fmt.Errorf("failed to decode anomaly event ids: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
