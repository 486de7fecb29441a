// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RunFunc is a blocking loop that returns when ctx ends. Pipeline.Run,
// Pipeline.RunAnomalyDetection and Service.RunInvalidation all match.
type RunFunc func(ctx context.Context) error

// LoopService runs a RunFunc under supervision.
type LoopService struct {
	name   string
	run    RunFunc
	logger zerolog.Logger
}

// NewLoopService wraps run under the given service name.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewLoopService(name string, run RunFunc, logger zerolog.Logger) *LoopService {
	return &LoopService{
		name:   name,
		run:    run,
		logger: logger.With().Str("service", name).Logger(),
	}
}

// Serve implements suture.Service. Returning because ctx ended is a clean
// stop; any other return, including nil, is treated as a crash so the
// loop is restarted.
func (s *LoopService) Serve(ctx context.Context) error {
	start := time.Now()
	s.logger.Debug().Msg("loop starting")

	err := s.run(ctx)
	if ctx.Err() != nil {
		s.logger.Debug().Dur("uptime", time.Since(start)).Msg("loop stopped")
		return ctx.Err()
	}
	if err == nil {
		err = errors.New("returned before shutdown")
	}
	s.logger.Warn().Err(err).Dur("uptime", time.Since(start)).Msg("loop exited unexpectedly")
	return fmt.Errorf("%s: %w", s.name, err)
}

// String implements fmt.Stringer.
func (s *LoopService) String() string {
	return s.name
}
