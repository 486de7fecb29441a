// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package services

import (
	"context"
	"fmt"
)

// SchedulerManager is a component with a Start/Stop lifecycle. It is
// satisfied by *orchestration.Scheduler.
type SchedulerManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService adapts Start/Stop to suture's Serve:
//  1. Start(ctx)
//  2. wait for cancellation
//  3. Stop()
type SchedulerService struct {
	manager SchedulerManager
	name    string
}

// NewSchedulerService wraps the maintenance scheduler.
func NewSchedulerService(manager SchedulerManager) *SchedulerService {
	return &SchedulerService{
		manager: manager,
		name:    "maintenance-scheduler",
	}
}

// Serve implements suture.Service. A Start failure is returned so suture
// restarts the service under its backoff policy.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("maintenance scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("maintenance scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *SchedulerService) String() string {
	return s.name
}
