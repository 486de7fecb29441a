// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/metrics"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/preference"
	"github.com/tomtom215/shelfwise/internal/recommend/algorithms"
	"github.com/tomtom215/shelfwise/internal/recommend/storage"
	"github.com/tomtom215/shelfwise/internal/store"
)

// Job names, used for metrics labels and logs.
const (
	JobPurgeExpired     = "purge_expired"
	JobCheckRetraining  = "check_retraining"
	JobRefreshStalePref = "refresh_stale_preferences"
)

// Trainer (re)trains the model behind one algorithm config.
type Trainer interface {
	Train(ctx context.Context, alg models.AlgorithmConfig) error
}

// LogTrainer only logs. Training happens outside this service.
type LogTrainer struct {
	logger zerolog.Logger
}

// NewLogTrainer creates the default trainer.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewLogTrainer(logger zerolog.Logger) *LogTrainer {
	return &LogTrainer{logger: logger.With().Str("component", "trainer").Logger()}
}

// Train implements Trainer.
//
//nolint:gocritic // hugeParam: alg passed by value for immutability
func (t *LogTrainer) Train(_ context.Context, alg models.AlgorithmConfig) error {
	t.logger.Info().
		Str("algorithm", alg.Name).
		Str("type", string(alg.Type)).
		Msg("retraining requested; no trainer configured")
	return nil
}

// SnapshotTrainer loads the newest published embedding snapshot for an
// algorithm into the live embedding source, then prunes old versions.
type SnapshotTrainer struct {
	snapshots *storage.Store
	target    *algorithms.StaticEmbeddings
	keep      int
	logger    zerolog.Logger
}

// NewSnapshotTrainer creates a trainer backed by a snapshot store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSnapshotTrainer(snapshots *storage.Store, target *algorithms.StaticEmbeddings, keep int, logger zerolog.Logger) *SnapshotTrainer {
	if keep < 1 {
		keep = 3
	}
	return &SnapshotTrainer{
		snapshots: snapshots,
		target:    target,
		keep:      keep,
		logger:    logger.With().Str("component", "trainer").Logger(),
	}
}

// Train implements Trainer.
//
//nolint:gocritic // hugeParam: alg passed by value for immutability
func (t *SnapshotTrainer) Train(ctx context.Context, alg models.AlgorithmConfig) error {
	snap, meta, err := t.snapshots.Load(ctx, alg.Name, 0)
	if err != nil {
		return fmt.Errorf("load snapshot for %s: %w", alg.Name, err)
	}
	t.target.Replace(snap.Users, snap.Items)

	removed, err := t.snapshots.Prune(ctx, alg.Name, t.keep)
	if err != nil {
		t.logger.Warn().Err(err).Str("algorithm", alg.Name).Msg("snapshot prune failed")
	}
	t.logger.Info().
		Str("algorithm", alg.Name).
		Int("version", meta.Version).
		Int("users", meta.UserCount).
		Int("items", meta.ItemCount).
		Int("pruned", removed).
		Msg("embedding snapshot loaded")
	return nil
}

// MaintenanceConfig tunes the maintenance jobs.
type MaintenanceConfig struct {
	// Retention is the age after which finished recommendations are purged.
	Retention time.Duration

	// RetrainAfter is the model age that triggers retraining.
	RetrainAfter time.Duration

	// StaleAfter is the preference age that triggers decay.
	StaleAfter time.Duration

	// DecayHalfLife is the preference decay half-life.
	DecayHalfLife time.Duration

	// JobTimeout bounds one job run.
	JobTimeout time.Duration
}

// DefaultMaintenanceConfig returns the production defaults.
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		Retention:     30 * 24 * time.Hour,
		RetrainAfter:  24 * time.Hour,
		StaleAfter:    7 * 24 * time.Hour,
		DecayHalfLife: 30 * 24 * time.Hour,
		JobTimeout:    5 * time.Minute,
	}
}

// purgeableStatuses are the terminal and never-interacted statuses.
// Clicked recommendations are kept for conversion attribution.
var purgeableStatuses = []models.RecommendationStatus{
	models.StatusGenerated,
	models.StatusDisplayed,
	models.StatusDismissed,
	models.StatusBorrowed,
}

// Maintenance runs the periodic housekeeping jobs. Each job is
// independent; a failure in one does not affect the others.
type Maintenance struct {
	cfg     MaintenanceConfig
	store   store.Store
	learner *preference.Learner
	trainer Trainer
	clock   func() time.Time
	logger  zerolog.Logger
}

// NewMaintenance creates the job runner. A nil trainer logs retraining
// requests only.
func NewMaintenance(cfg MaintenanceConfig, st store.Store, learner *preference.Learner, trainer Trainer, clock func() time.Time) (*Maintenance, error) {
	if st == nil || learner == nil {
		return nil, errors.New("maintenance requires a store and a learner")
	}
	d := DefaultMaintenanceConfig()
	if cfg.Retention <= 0 {
		cfg.Retention = d.Retention
	}
	if cfg.RetrainAfter <= 0 {
		cfg.RetrainAfter = d.RetrainAfter
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = d.StaleAfter
	}
	if cfg.DecayHalfLife <= 0 {
		cfg.DecayHalfLife = d.DecayHalfLife
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = d.JobTimeout
	}
	logger := logging.WithComponent("maintenance")
	if trainer == nil {
		trainer = NewLogTrainer(logger)
	}
	if clock == nil {
		clock = time.Now
	}
	return &Maintenance{
		cfg:     cfg,
		store:   st,
		learner: learner,
		trainer: trainer,
		clock:   clock,
		logger:  logger,
	}, nil
}

// PurgeExpired deletes finished or never-interacted recommendations older
// than the retention period.
func (m *Maintenance) PurgeExpired(ctx context.Context) (int, error) {
	return m.run(ctx, JobPurgeExpired, func(ctx context.Context) (int, error) {
		cutoff := m.clock().UTC().Add(-m.cfg.Retention)
		n, err := m.store.DeleteRecommendations(ctx, store.RecommendationFilter{
			CreatedBefore: cutoff,
			Statuses:      purgeableStatuses,
		})
		if err != nil {
			return 0, &models.PersistenceError{Op: "delete recommendations", Err: err}
		}
		return n, nil
	})
}

// CheckRetraining retrains trainable algorithms whose model is stale,
// failed, untrained, or older than RetrainAfter. A run marked training for
// longer than JobTimeout is taken as abandoned and restarted. It returns the
// number trained successfully.
func (m *Maintenance) CheckRetraining(ctx context.Context) (int, error) {
	return m.run(ctx, JobCheckRetraining, func(ctx context.Context) (int, error) {
		algs, err := m.store.ListAlgorithms(ctx)
		if err != nil {
			return 0, fmt.Errorf("list algorithms: %w", err)
		}

		now := m.clock().UTC()
		trained := 0
		var errs []error
		for i := range algs {
			alg := algs[i]
			if !alg.Trainable() || !m.needsTraining(&alg, now) {
				continue
			}
			if err := m.retrain(ctx, alg, now); err != nil {
				errs = append(errs, err)
				continue
			}
			trained++
		}
		return trained, errors.Join(errs...)
	})
}

func (m *Maintenance) needsTraining(alg *models.AlgorithmConfig, now time.Time) bool {
	switch alg.TrainingStatus {
	case models.TrainingRunning:
		if alg.TrainingStartedAt != nil && now.Sub(*alg.TrainingStartedAt) <= m.cfg.JobTimeout {
			return false
		}
		m.logger.Warn().Str("algorithm", alg.Name).Msg("abandoned training run, restarting")
		return true
	case models.TrainingTrained:
		return alg.LastTrainedAt == nil || now.Sub(*alg.LastTrainedAt) > m.cfg.RetrainAfter
	default:
		return true
	}
}

//nolint:gocritic // hugeParam: alg is a working copy
func (m *Maintenance) retrain(ctx context.Context, alg models.AlgorithmConfig, now time.Time) error {
	alg.TrainingStatus = models.TrainingRunning
	started := now
	alg.TrainingStartedAt = &started
	if err := m.store.SaveAlgorithm(ctx, &alg); err != nil {
		return fmt.Errorf("mark %s training: %w", alg.Name, err)
	}

	trainErr := m.trainer.Train(ctx, alg)
	if trainErr != nil {
		alg.TrainingStatus = models.TrainingFailed
		m.logger.Warn().Err(trainErr).Str("algorithm", alg.Name).Msg("retraining failed")
	} else {
		alg.TrainingStatus = models.TrainingTrained
		trainedAt := now
		alg.LastTrainedAt = &trainedAt
	}
	alg.TrainingStartedAt = nil
	if err := m.store.SaveAlgorithm(ctx, &alg); err != nil {
		return errors.Join(trainErr, fmt.Errorf("record %s training status: %w", alg.Name, err))
	}
	if trainErr != nil {
		return fmt.Errorf("train %s: %w", alg.Name, trainErr)
	}
	return nil
}

// RefreshStalePreferences decays preferences not updated within
// StaleAfter. Per-user failures are logged and skipped.
func (m *Maintenance) RefreshStalePreferences(ctx context.Context) (int, error) {
	return m.run(ctx, JobRefreshStalePref, func(ctx context.Context) (int, error) {
		staleBefore := m.clock().UTC().Add(-m.cfg.StaleAfter)
		prefs, err := m.store.FindPreferences(ctx, store.PreferenceFilter{UpdatedBefore: staleBefore})
		if err != nil {
			return 0, fmt.Errorf("find stale preferences: %w", err)
		}

		refreshed := 0
		for i := range prefs {
			if ctx.Err() != nil {
				return refreshed, ctx.Err()
			}
			ok, err := m.learner.Refresh(ctx, prefs[i].UserID, staleBefore, m.cfg.DecayHalfLife)
			if err != nil {
				m.logger.Warn().Err(err).Str("user_id", prefs[i].UserID).Msg("preference refresh failed")
				continue
			}
			if ok {
				refreshed++
			}
		}
		return refreshed, nil
	})
}

// run applies the job timeout and records metrics.
func (m *Maintenance) run(ctx context.Context, job string, fn func(context.Context) (int, error)) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	n, err := fn(ctx)
	elapsed := time.Since(start)
	metrics.RecordMaintenance(job, elapsed, err)

	event := m.logger.Info()
	if err != nil {
		event = m.logger.Warn().Err(err)
	}
	event.Str("job", job).Int("affected", n).Dur("duration", elapsed).Msg("maintenance job finished")
	return n, err
}
