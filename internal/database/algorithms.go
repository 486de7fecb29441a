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
)

// ListAlgorithms returns every algorithm config, highest priority first.
func (db *DB) ListAlgorithms(ctx context.Context) ([]models.AlgorithmConfig, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name, type, hyperparameters, enabled, priority,
		applicable_scenarios, is_cold_start, training_status, last_trained_at, training_started_at
		FROM algorithm_configs ORDER BY priority DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query algorithm configs: %w", err)
	}
	defer closeWithLog(rows, "algorithm rows")

	out := make([]models.AlgorithmConfig, 0)
	for rows.Next() {
		var (
			a                     models.AlgorithmConfig
			algType               string
			params, scenarios, ts sql.NullString
			trained, started      sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.Name, &algType, &params, &a.Enabled, &a.Priority,
			&scenarios, &a.IsColdStart, &ts, &trained, &started); err != nil {
			return nil, fmt.Errorf("failed to scan algorithm config: %w", err)
		}
		a.Type = models.AlgorithmType(algType)
		a.TrainingStatus = models.TrainingStatus(ts.String)
		a.LastTrainedAt = timePtr(trained)
		a.TrainingStartedAt = timePtr(started)
		if err := fromJSON(params, &a.Hyperparameters); err != nil {
			return nil, fmt.Errorf("failed to decode hyperparameters of %s: %w", a.ID, err)
		}
		if err := fromJSON(scenarios, &a.ApplicableScenarios); err != nil {
			return nil, fmt.Errorf("failed to decode scenarios of %s: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveAlgorithm upserts an algorithm config.
func (db *DB) SaveAlgorithm(ctx context.Context, cfg *models.AlgorithmConfig) error {
	params, err := toJSON(cfg.Hyperparameters)
	if err != nil {
		return fmt.Errorf("failed to encode hyperparameters: %w", err)
	}
	scenarios, err := toJSON(cfg.ApplicableScenarios)
	if err != nil {
		return fmt.Errorf("failed to encode scenarios: %w", err)
	}
	return db.execWithRetry(ctx, func(ctx context.Context) error {
		_, err := db.conn.ExecContext(ctx, `INSERT OR REPLACE INTO algorithm_configs
			(id, name, type, hyperparameters, enabled, priority, applicable_scenarios, is_cold_start,
			 training_status, last_trained_at, training_started_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			cfg.ID, cfg.Name, string(cfg.Type), params, cfg.Enabled, cfg.Priority, scenarios,
			cfg.IsColdStart, nullString(string(cfg.TrainingStatus)), nullTime(cfg.LastTrainedAt),
			nullTime(cfg.TrainingStartedAt))
		if err != nil {
			return fmt.Errorf("failed to save algorithm config: %w", err)
		}
		return nil
	})
}
