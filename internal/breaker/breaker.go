// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package breaker builds gobreaker circuit breakers that report their
// state and outcomes to Prometheus and the log.
package breaker

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/metrics"
)

// Config configures a breaker.
type Config struct {
	Name string

	// MaxRequests allowed through while half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts; 0 never clears.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// FailureThreshold is the consecutive failure count that opens the breaker.
	FailureThreshold uint32

	// IsSuccessful classifies errors that should not count as failures,
	// such as a cache miss. Nil counts every non-nil error.
	IsSuccessful func(err error) bool
}

// DefaultConfig returns the settings used for store writes and cache calls.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Breaker is the breaker type used throughout the service.
type Breaker = gobreaker.CircuitBreaker[interface{}]

// New creates a circuit breaker from cfg.
func New(cfg Config) *Breaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	settings := gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		IsSuccessful: cfg.IsSuccessful,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}
	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)
	return gobreaker.NewCircuitBreaker[interface{}](settings)
}

// Do runs fn through cb and records the outcome.
func Do(cb *Breaker, fn func() error) error {
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	result := "success"
	switch {
	case IsOpen(err):
		result = "rejected"
	case err != nil:
		result = "failure"
	}
	metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), result).Inc()
	return err
}

// IsOpen reports whether err is a rejection by an open or saturated breaker.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
