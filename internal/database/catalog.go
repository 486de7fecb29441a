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
	"strings"

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/store"
)

const itemColumns = "id, title, description, category, author, tags, rating, created_at"

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		item                         models.Item
		desc, category, author, tags sql.NullString
		rating                       sql.NullFloat64
	)
	if err := row.Scan(&item.ID, &item.Title, &desc, &category, &author, &tags, &rating, &item.CreatedAt); err != nil {
		return nil, err
	}
	item.Description = desc.String
	item.Category = category.String
	item.Author = author.String
	item.Rating = rating.Float64
	item.CreatedAt = item.CreatedAt.UTC()
	if err := fromJSON(tags, &item.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags of %s: %w", item.ID, err)
	}
	return &item, nil
}

// GetItem loads one catalog item.
func (db *DB) GetItem(ctx context.Context, id string) (*models.Item, error) {
	item, err := scanItem(db.conn.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM catalog_items WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load item: %w", err)
	}
	return item, nil
}

// QueryItems returns matching items, newest first.
func (db *DB) QueryItems(ctx context.Context, filter store.ItemFilter) ([]models.Item, error) {
	w := &where{}
	w.in("id", filter.IDs)
	if filter.Category != "" {
		w.add("lower(category) = ?", strings.ToLower(filter.Category))
	}
	if filter.Author != "" {
		w.add("lower(author) = ?", strings.ToLower(filter.Author))
	}
	if filter.TitleContains != "" {
		w.add("contains(lower(title), ?)", strings.ToLower(filter.TitleContains))
	}
	if !filter.CreatedAfter.IsZero() {
		w.add("created_at >= ?", filter.CreatedAfter.UTC())
	}

	rows, err := db.conn.QueryContext(ctx, "SELECT "+itemColumns+" FROM catalog_items"+w.String()+
		" ORDER BY created_at DESC, id"+limitClause(filter.Limit), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer closeWithLog(rows, "item rows")

	out := make([]models.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

// UpsertItems inserts or replaces catalog items.
func (db *DB) UpsertItems(ctx context.Context, items []models.Item) error {
	for i := range items {
		it := &items[i]
		tags, err := toJSON(it.Tags)
		if err != nil {
			return fmt.Errorf("failed to encode tags of %s: %w", it.ID, err)
		}
		err = db.execWithRetry(ctx, func(ctx context.Context) error {
			_, err := db.conn.ExecContext(ctx, "INSERT OR REPLACE INTO catalog_items ("+itemColumns+
				") VALUES ("+placeholders(8)+")",
				it.ID, it.Title, nullString(it.Description), nullString(it.Category), nullString(it.Author),
				tags, it.Rating, it.CreatedAt.UTC())
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to upsert item %s: %w", it.ID, err)
		}
	}
	return nil
}
