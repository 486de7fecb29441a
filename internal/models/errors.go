// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEvent marks a behavior event rejected at the ingestion boundary.
	ErrInvalidEvent = errors.New("invalid behavior event")

	// ErrInsufficientData means an algorithm cannot run for this user yet.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrAlgorithmNotFound means the requested algorithm is unknown or disabled.
	ErrAlgorithmNotFound = errors.New("algorithm not found")

	// ErrPersistence wraps store write failures.
	ErrPersistence = errors.New("persistence failure")

	// ErrNotFound is returned by stores and single-record operations.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition rejects a backwards recommendation status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidFeedback rejects feedback values outside [-1,1].
	ErrInvalidFeedback = errors.New("invalid feedback")

	// ErrInvalidRequest rejects malformed serving requests.
	ErrInvalidRequest = errors.New("invalid request")
)

// InvalidEventError names the field that made an event invalid.
type InvalidEventError struct {
	Field  string
	Reason string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid behavior event: %s %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidEvent.
func (e *InvalidEventError) Unwrap() error {
	return ErrInvalidEvent
}

// PersistenceError wraps a store failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Is matches ErrPersistence in addition to the wrapped error.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
