// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package validation wraps go-playground/validator v10 for API request
// bodies.
//
// A single validator instance is built once and shared; it caches struct
// metadata and is safe for concurrent use. Field names in messages come
// from json tags. Domain tags are registered alongside the built-ins:
//
//	type trackRequest struct {
//	    UserID       string   `json:"user_id" validate:"required,max=128"`
//	    BehaviorType string   `json:"behavior_type" validate:"required,behavior_type"`
//	    Value        *float64 `json:"value" validate:"omitempty,signed_unit"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError() // code VALIDATION_ERROR
//	    ...
//	}
package validation
