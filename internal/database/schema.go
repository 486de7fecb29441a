// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package database

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS behavior_events (
		id VARCHAR PRIMARY KEY,
		user_id VARCHAR NOT NULL,
		item_id VARCHAR,
		behavior_type VARCHAR NOT NULL,
		intensity DOUBLE NOT NULL,
		duration_seconds INTEGER,
		context VARCHAR,
		session_id VARCHAR,
		recommendation_id VARCHAR,
		confidence_score DOUBLE NOT NULL,
		is_implicit BOOLEAN NOT NULL,
		is_anomaly BOOLEAN NOT NULL DEFAULT false,
		processed BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_behavior_events_user_time ON behavior_events(user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_behavior_events_time ON behavior_events(created_at)`,

	`CREATE TABLE IF NOT EXISTS user_preferences (
		user_id VARCHAR PRIMARY KEY,
		category_weights VARCHAR NOT NULL,
		author_weights VARCHAR NOT NULL,
		tag_weights VARCHAR NOT NULL,
		negative_preferences VARCHAR NOT NULL,
		confidence_score DOUBLE NOT NULL,
		personalization_strength DOUBLE NOT NULL,
		interaction_count INTEGER NOT NULL,
		last_updated TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS recommendations (
		id VARCHAR PRIMARY KEY,
		user_id VARCHAR NOT NULL,
		item_id VARCHAR NOT NULL,
		algorithm VARCHAR NOT NULL,
		model_id VARCHAR,
		score DOUBLE NOT NULL,
		rank INTEGER NOT NULL,
		scenario VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		explanation VARCHAR,
		batch_id VARCHAR NOT NULL,
		display_count INTEGER NOT NULL DEFAULT 0,
		click_count INTEGER NOT NULL DEFAULT 0,
		feedback_score DOUBLE,
		created_at TIMESTAMP NOT NULL,
		last_displayed_at TIMESTAMP,
		last_clicked_at TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_recommendations_user ON recommendations(user_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS recommendation_feedback (
		id VARCHAR PRIMARY KEY,
		user_id VARCHAR NOT NULL,
		recommendation_id VARCHAR NOT NULL,
		item_id VARCHAR,
		feedback_type VARCHAR NOT NULL,
		feedback_value DOUBLE NOT NULL,
		dimensions VARCHAR,
		context VARCHAR,
		comment VARCHAR,
		processed BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS algorithm_configs (
		id VARCHAR PRIMARY KEY,
		name VARCHAR NOT NULL,
		type VARCHAR NOT NULL,
		hyperparameters VARCHAR,
		enabled BOOLEAN NOT NULL,
		priority INTEGER NOT NULL,
		applicable_scenarios VARCHAR,
		is_cold_start BOOLEAN NOT NULL DEFAULT false,
		training_status VARCHAR,
		last_trained_at TIMESTAMP,
		training_started_at TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS behavior_anomalies (
		id VARCHAR PRIMARY KEY,
		user_id VARCHAR NOT NULL,
		kind VARCHAR NOT NULL,
		behavior_type VARCHAR,
		event_count INTEGER NOT NULL,
		threshold INTEGER NOT NULL,
		window_start TIMESTAMP NOT NULL,
		window_end TIMESTAMP NOT NULL,
		event_ids VARCHAR,
		detected_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS catalog_items (
		id VARCHAR PRIMARY KEY,
		title VARCHAR NOT NULL,
		description VARCHAR,
		category VARCHAR,
		author VARCHAR,
		tags VARCHAR,
		rating DOUBLE,
		created_at TIMESTAMP NOT NULL
	)`,

	// Added after the first release; databases created earlier lack it.
	`ALTER TABLE algorithm_configs ADD COLUMN IF NOT EXISTS training_started_at TIMESTAMP`,
}

func (db *DB) createTables(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
