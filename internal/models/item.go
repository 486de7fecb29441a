// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package models

import "time"

// Item is a catalog record as seen by the recommendation core.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category"`
	Author      string    `json:"author"`
	Tags        []string  `json:"tags,omitempty"`
	Rating      float64   `json:"rating"`
	CreatedAt   time.Time `json:"created_at"`
}
