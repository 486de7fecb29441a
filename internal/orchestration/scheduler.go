// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Schedules are cron specs for the maintenance jobs. Descriptors such as
// "@daily" and "@every 6h" are accepted. An empty spec disables the job.
type Schedules struct {
	Purge   string
	Retrain string
	Refresh string
}

// Scheduler runs the maintenance jobs on their cron schedules. It follows
// the Start/Stop lifecycle wrapped by the supervisor.
type Scheduler struct {
	maintenance *Maintenance
	schedules   Schedules
	logger      zerolog.Logger

	mu     sync.Mutex
	engine *cron.Cron
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler for m. Specs are validated here so a
// bad schedule fails at startup rather than on first run.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewScheduler(m *Maintenance, schedules Schedules, logger zerolog.Logger) (*Scheduler, error) {
	if m == nil {
		return nil, errors.New("scheduler requires maintenance jobs")
	}
	for name, spec := range map[string]string{
		JobPurgeExpired:     schedules.Purge,
		JobCheckRetraining:  schedules.Retrain,
		JobRefreshStalePref: schedules.Refresh,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return nil, fmt.Errorf("invalid schedule for %s: %w", name, err)
		}
	}
	return &Scheduler{
		maintenance: m,
		schedules:   schedules,
		logger:      logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Start registers the jobs and starts the cron engine. Jobs run with a
// context derived from ctx that is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine != nil {
		return errors.New("scheduler already started")
	}

	jobCtx, cancel := context.WithCancel(ctx)
	log := cronLogger{logger: s.logger}
	engine := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) (int, error)
	}{
		{JobPurgeExpired, s.schedules.Purge, s.maintenance.PurgeExpired},
		{JobCheckRetraining, s.schedules.Retrain, s.maintenance.CheckRetraining},
		{JobRefreshStalePref, s.schedules.Refresh, s.maintenance.RefreshStalePreferences},
	}
	for _, job := range jobs {
		if job.spec == "" {
			s.logger.Info().Str("job", job.name).Msg("job disabled")
			continue
		}
		run := job.run
		if _, err := engine.AddFunc(job.spec, func() {
			// Errors are logged and counted by Maintenance.run.
			_, _ = run(jobCtx) //nolint:errcheck // already logged
		}); err != nil {
			cancel()
			return fmt.Errorf("register %s: %w", job.name, err)
		}
	}

	engine.Start()
	s.engine = engine
	s.cancel = cancel
	s.logger.Info().Int("jobs", len(engine.Entries())).Msg("maintenance scheduler started")
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil
	}
	s.cancel()
	<-s.engine.Stop().Done()
	s.engine = nil
	s.logger.Info().Msg("maintenance scheduler stopped")
	return nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

var _ cron.Logger = cronLogger{}
