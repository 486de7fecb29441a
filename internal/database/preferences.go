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

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/store"
)

const preferenceColumns = `user_id, category_weights, author_weights, tag_weights, negative_preferences,
	confidence_score, personalization_strength, interaction_count, last_updated`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPreference(row rowScanner) (*models.UserPreference, error) {
	var (
		p                           models.UserPreference
		cats, authors, tags, negRaw sql.NullString
	)
	if err := row.Scan(&p.UserID, &cats, &authors, &tags, &negRaw,
		&p.ConfidenceScore, &p.PersonalizationStrength, &p.InteractionCount, &p.LastUpdated); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		raw sql.NullString
		dst interface{}
	}{
		{cats, &p.CategoryWeights},
		{authors, &p.AuthorWeights},
		{tags, &p.TagWeights},
		{negRaw, &p.Negative},
	} {
		if err := fromJSON(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("failed to decode preference %s: %w", p.UserID, err)
		}
	}
	p.EnsureMaps()
	p.LastUpdated = p.LastUpdated.UTC()
	return &p, nil
}

// GetPreference loads one user's preference.
func (db *DB) GetPreference(ctx context.Context, userID string) (*models.UserPreference, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+preferenceColumns+" FROM user_preferences WHERE user_id = ?", userID)
	p, err := scanPreference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("preference %s: %w", userID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preference: %w", err)
	}
	return p, nil
}

// SavePreference upserts a preference row.
func (db *DB) SavePreference(ctx context.Context, pref *models.UserPreference) error {
	encoded := make([]string, 0, 4)
	for _, v := range []interface{}{pref.CategoryWeights, pref.AuthorWeights, pref.TagWeights, pref.Negative} {
		s, err := toJSON(v)
		if err != nil {
			return fmt.Errorf("failed to encode preference %s: %w", pref.UserID, err)
		}
		encoded = append(encoded, s)
	}

	query := "INSERT OR REPLACE INTO user_preferences (" + preferenceColumns + ") VALUES (" + placeholders(9) + ")"
	return db.execWithRetry(ctx, func(ctx context.Context) error {
		_, err := db.conn.ExecContext(ctx, query,
			pref.UserID, encoded[0], encoded[1], encoded[2], encoded[3],
			pref.ConfidenceScore, pref.PersonalizationStrength, pref.InteractionCount, pref.LastUpdated.UTC())
		if err != nil {
			return fmt.Errorf("failed to save preference: %w", err)
		}
		return nil
	})
}

// FindPreferences returns preferences ordered by oldest update first.
func (db *DB) FindPreferences(ctx context.Context, filter store.PreferenceFilter) ([]models.UserPreference, error) {
	w := &where{}
	if !filter.UpdatedBefore.IsZero() {
		w.add("last_updated < ?", filter.UpdatedBefore.UTC())
	}
	query := "SELECT " + preferenceColumns + " FROM user_preferences" + w.String() +
		" ORDER BY last_updated ASC, user_id ASC" + limitClause(filter.Limit)

	rows, err := db.conn.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer closeWithLog(rows, "preference rows")

	out := make([]models.UserPreference, 0)
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
