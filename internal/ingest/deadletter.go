// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/shelfwise/internal/config"
	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/metrics"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/store"
)

const (
	deadLetterPrefix = "deadletter:"
	maxReplayBackoff = 5 * time.Minute
)

// deadLetterEntry is one failed batch awaiting replay.
type deadLetterEntry struct {
	ID            string                 `json:"id"`
	Events        []models.BehaviorEvent `json:"events"`
	Attempts      int                    `json:"attempts"`
	LastError     string                 `json:"last_error"`
	CreatedAt     time.Time              `json:"created_at"`
	NextAttemptAt time.Time              `json:"next_attempt_at"`
}

// ReplayStats summarizes one Replay pass.
type ReplayStats struct {
	Replayed  int
	Failed    int
	Discarded int
	Deferred  int
}

// DeadLetter keeps batches whose flush failed in BadgerDB and retries them
// with exponential backoff. A batch is discarded after MaxAttempts failures.
type DeadLetter struct {
	db          *badger.DB
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
	clock       func() time.Time
	logger      zerolog.Logger
}

// OpenDeadLetter opens (or creates) the dead-letter store described by cfg.
func OpenDeadLetter(cfg config.DeadLetterConfig, clock func() time.Time) (*DeadLetter, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("dead-letter path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = true
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open dead-letter store: %w", err)
	}

	if clock == nil {
		clock = time.Now
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	backoff := cfg.BaseBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	perSecond := cfg.ReplayPerSecond
	if perSecond <= 0 {
		perSecond = 2
	}
	burst := int(math.Max(1, math.Ceil(perSecond)))

	d := &DeadLetter{
		db:          db,
		limiter:     rate.NewLimiter(rate.Limit(perSecond), burst),
		maxAttempts: maxAttempts,
		baseBackoff: backoff,
		clock:       clock,
		logger:      logging.WithComponent("deadletter"),
	}
	if n, err := d.Len(); err == nil {
		metrics.DeadLetterEntries.Set(float64(n))
		if n > 0 {
			d.logger.Info().Int("pending", n).Msg("Dead-letter store has batches awaiting replay")
		}
	}
	return d, nil
}

// Add records a failed batch for later replay.
func (d *DeadLetter) Add(ctx context.Context, batch []models.BehaviorEvent, cause error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := d.clock().UTC()
	entry := deadLetterEntry{
		ID:            uuid.New().String(),
		Events:        batch,
		CreatedAt:     now,
		NextAttemptAt: now.Add(d.baseBackoff),
	}
	if cause != nil {
		entry.LastError = cause.Error()
	}
	if err := d.put(entryKey(entry), entry); err != nil {
		return err
	}
	metrics.DeadLetterEntries.Inc()
	return nil
}

// Len returns the number of batches awaiting replay.
func (d *DeadLetter) Len() (int, error) {
	n := 0
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(deadLetterPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Replay retries every due batch, oldest first, as far as the rate limit
// allows in this pass. Batches not yet due are counted as deferred.
func (d *DeadLetter) Replay(ctx context.Context, st store.Store) (ReplayStats, error) {
	var stats ReplayStats
	entries, err := d.pending()
	if err != nil {
		return stats, err
	}

	now := d.clock().UTC()
	for _, entry := range entries {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if now.Before(entry.NextAttemptAt) {
			stats.Deferred++
			continue
		}
		if !d.limiter.Allow() {
			stats.Deferred++
			continue
		}

		writeErr := st.CreateEvents(ctx, entry.Events)
		if writeErr == nil {
			if err := d.delete(entryKey(entry)); err != nil {
				return stats, err
			}
			stats.Replayed++
			metrics.DeadLetterReplays.WithLabelValues("success").Inc()
			metrics.DeadLetterEntries.Dec()
			continue
		}

		entry.LastError = writeErr.Error()
		entry.Attempts++
		if entry.Attempts >= d.maxAttempts {
			if err := d.delete(entryKey(entry)); err != nil {
				return stats, err
			}
			stats.Discarded++
			metrics.DeadLetterReplays.WithLabelValues("discarded").Inc()
			metrics.DeadLetterEntries.Dec()
			metrics.EventsDropped.Add(float64(len(entry.Events)))
			d.logger.Error().
				Str("entry_id", entry.ID).
				Int("events", len(entry.Events)).
				Int("attempts", entry.Attempts).
				Str("last_error", entry.LastError).
				Msg("Dead-letter batch discarded after max attempts")
			continue
		}

		entry.NextAttemptAt = now.Add(d.backoff(entry.Attempts))
		if err := d.put(entryKey(entry), entry); err != nil {
			return stats, err
		}
		stats.Failed++
		metrics.DeadLetterReplays.WithLabelValues("failure").Inc()
	}
	return stats, nil
}

// backoff is base * 2^attempts, capped at five minutes.
func (d *DeadLetter) backoff(attempts int) time.Duration {
	if attempts > 30 {
		return maxReplayBackoff
	}
	b := time.Duration(float64(d.baseBackoff) * math.Pow(2, float64(attempts)))
	if b <= 0 || b > maxReplayBackoff {
		return maxReplayBackoff
	}
	return b
}

// Close closes the underlying database.
func (d *DeadLetter) Close() error {
	return d.db.Close()
}

func (d *DeadLetter) pending() ([]deadLetterEntry, error) {
	var entries []deadLetterEntry
	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(deadLetterPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry deadLetterEntry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("decode dead-letter entry %s: %w", it.Item().Key(), err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read dead-letter entries: %w", err)
	}
	return entries, nil
}

func (d *DeadLetter) put(key []byte, entry deadLetterEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode dead-letter entry: %w", err)
	}
	err = d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("write dead-letter entry: %w", err)
	}
	return nil
}

func (d *DeadLetter) delete(key []byte) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("delete dead-letter entry: %w", err)
	}
	return nil
}

// entryKey orders entries by creation time.
func entryKey(e deadLetterEntry) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", deadLetterPrefix, e.CreatedAt.UnixNano(), e.ID))
}
