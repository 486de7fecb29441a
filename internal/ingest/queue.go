// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package ingest

import (
	"context"
	"time"

	"github.com/tomtom215/shelfwise/internal/breaker"
	"github.com/tomtom215/shelfwise/internal/metrics"
	"github.com/tomtom215/shelfwise/internal/models"
)

// finalFlushTimeout bounds the drain after Run's context ends.
const finalFlushTimeout = 30 * time.Second

// enqueue appends e and requests a drain once the batch size is reached.
func (p *Pipeline) enqueue(e models.BehaviorEvent) int {
	p.mu.Lock()
	p.queue = append(p.queue, e)
	depth := len(p.queue)
	p.mu.Unlock()

	metrics.IngestQueueDepth.Set(float64(depth))
	if depth >= p.cfg.BatchSize {
		p.requestFlush()
	}
	return depth
}

// requestFlush leaves a trigger for Run. A trigger already pending absorbs
// this one; the pending drain takes the whole queue anyway.
func (p *Pipeline) requestFlush() {
	select {
	case p.flushCh <- struct{}{}:
	default:
	}
}

// QueueLen returns the number of events waiting for a flush.
func (p *Pipeline) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Flush persists the whole queue in one batch write. An empty queue is a
// no-op. On failure the batch goes to the dead-letter store when one is
// configured and is dropped otherwise; the returned error is a
// *models.PersistenceError either way.
func (p *Pipeline) Flush(ctx context.Context) (int, error) {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	batch := p.queue
	if len(batch) == 0 {
		p.mu.Unlock()
		return 0, nil
	}
	p.queue = make([]models.BehaviorEvent, 0, p.cfg.BatchSize)
	p.mu.Unlock()
	metrics.IngestQueueDepth.Set(float64(p.QueueLen()))

	start := time.Now()
	err := breaker.Do(p.cb, func() error {
		return p.store.CreateEvents(ctx, batch)
	})
	metrics.RecordFlush(len(batch), time.Since(start), err)

	if err != nil {
		p.handleFailedBatch(ctx, batch, err)
		return 0, &models.PersistenceError{Op: "flush events", Err: err}
	}

	for i := range batch {
		p.publishTracked(ctx, &batch[i])
	}
	p.logger.Debug().
		Int("count", len(batch)).
		Dur("duration", time.Since(start)).
		Msg("Flushed behavior events")
	return len(batch), nil
}

func (p *Pipeline) handleFailedBatch(ctx context.Context, batch []models.BehaviorEvent, cause error) {
	if p.deadLetter != nil {
		err := p.deadLetter.Add(ctx, batch, cause)
		if err == nil {
			p.logger.Warn().Err(cause).
				Int("count", len(batch)).
				Msg("Flush failed, batch recorded for replay")
			return
		}
		p.logger.Error().Err(err).Msg("Dead-letter write failed")
	}
	metrics.EventsDropped.Add(float64(len(batch)))
	p.logger.Error().Err(cause).
		Int("count", len(batch)).
		Msg("Flush failed, batch dropped")
}

// Run drains the queue on every tick and whenever the batch size is
// reached, replays dead-lettered batches on ticks, and flushes what is
// left when ctx ends.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	p.logger.Info().
		Dur("flush_interval", p.cfg.FlushInterval).
		Int("batch_size", p.cfg.BatchSize).
		Msg("Ingest flush loop started")

	for {
		select {
		case <-ctx.Done():
			p.finalFlush()
			return ctx.Err()
		case <-p.flushCh:
			p.flushAndLog(ctx)
		case <-ticker.C:
			p.flushAndLog(ctx)
			p.replayDeadLetters(ctx)
		}
	}
}

func (p *Pipeline) flushAndLog(ctx context.Context) {
	// Errors are already logged and counted inside Flush.
	_, _ = p.Flush(ctx)
}

func (p *Pipeline) replayDeadLetters(ctx context.Context) {
	if p.deadLetter == nil {
		return
	}
	stats, err := p.deadLetter.Replay(ctx, p.store)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Dead-letter replay failed")
		return
	}
	if stats.Replayed > 0 || stats.Discarded > 0 {
		p.logger.Info().
			Int("replayed", stats.Replayed).
			Int("failed", stats.Failed).
			Int("discarded", stats.Discarded).
			Msg("Dead-letter replay finished")
	}
}

func (p *Pipeline) finalFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
	defer cancel()
	n, err := p.Flush(ctx)
	if err != nil {
		return
	}
	p.logger.Info().Int("count", n).Msg("Ingest flush loop stopped")
}
