// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/shelfwise/internal/metrics"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/store"
)

// anomalyNamespace seeds the deterministic anomaly IDs.
var anomalyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/tomtom215/shelfwise/anomaly"))

// DetectAnomalies scans events persisted within window and flags actors
// whose total count exceeds the frequency threshold (high_frequency) or
// whose count of one behavior type exceeds that type's threshold
// (type_burst). Involved events are marked anomalous and one record per
// actor, kind and type is stored per burst. A burst is identified by the
// window bucket of its earliest event, so rescans of a sliding window
// while the burst is still visible do not record it again. The result
// lists every anomaly found, including ones stored by earlier scans. An
// empty userID scans
// every actor. Failures for one actor are logged and the scan continues.
//
// Detection never blocks ingestion; it only reads persisted events.
func (p *Pipeline) DetectAnomalies(ctx context.Context, userID string, window time.Duration) ([]models.Anomaly, error) {
	if window <= 0 {
		window = p.cfg.AnomalyWindow
	}
	now := p.clock().UTC()
	since := now.Add(-window)

	recent, err := p.store.FindEvents(ctx, store.EventFilter{UserID: userID, Since: since})
	if err != nil {
		return nil, fmt.Errorf("failed to load events for anomaly scan: %w", err)
	}

	byUser := make(map[string][]models.BehaviorEvent)
	for _, e := range recent {
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}
	users := make([]string, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	sort.Strings(users)

	var found []models.Anomaly
	for _, u := range users {
		anomalies := p.classify(u, byUser[u], since, now, window)
		if len(anomalies) == 0 {
			continue
		}
		if err := p.recordAnomalies(ctx, anomalies); err != nil {
			p.logger.Warn().Err(err).Str("user_id", u).Msg("Failed to record anomalies")
			continue
		}
		found = append(found, anomalies...)
	}
	return found, nil
}

func (p *Pipeline) classify(userID string, evts []models.BehaviorEvent, since, now time.Time, window time.Duration) []models.Anomaly {
	var out []models.Anomaly

	if len(evts) > p.cfg.FrequencyThreshold {
		out = append(out, p.newAnomaly(userID, models.AnomalyHighFrequency, "", evts, p.cfg.FrequencyThreshold, since, now, window))
	}

	byType := make(map[models.BehaviorType][]models.BehaviorEvent)
	for _, e := range evts {
		byType[e.BehaviorType] = append(byType[e.BehaviorType], e)
	}
	types := make([]string, 0, len(p.cfg.TypeThresholds))
	for t := range p.cfg.TypeThresholds {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, name := range types {
		t := models.BehaviorType(name)
		threshold := p.cfg.TypeThresholds[t]
		if n := len(byType[t]); threshold > 0 && n > threshold {
			out = append(out, p.newAnomaly(userID, models.AnomalyTypeBurst, t, byType[t], threshold, since, now, window))
		}
	}
	return out
}

func (p *Pipeline) newAnomaly(userID, kind string, t models.BehaviorType, evts []models.BehaviorEvent, threshold int, since, now time.Time, window time.Duration) models.Anomaly {
	ids := make([]string, len(evts))
	first := now
	for i, e := range evts {
		ids[i] = e.ID
		if e.CreatedAt.Before(first) {
			first = e.CreatedAt
		}
	}
	return models.Anomaly{
		ID:           AnomalyID(userID, kind, t, first.UTC().Truncate(window)),
		UserID:       userID,
		Kind:         kind,
		BehaviorType: t,
		EventCount:   len(evts),
		Threshold:    threshold,
		WindowStart:  since,
		WindowEnd:    now,
		EventIDs:     ids,
		DetectedAt:   now,
	}
}

func (p *Pipeline) recordAnomalies(ctx context.Context, anomalies []models.Anomaly) error {
	seen := make(map[string]struct{})
	var ids []string
	for _, a := range anomalies {
		for _, id := range a.EventIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	if err := p.store.MarkEventsAnomalous(ctx, ids); err != nil {
		return fmt.Errorf("failed to mark events anomalous: %w", err)
	}

	for _, a := range anomalies {
		n, err := p.store.SaveAnomalies(ctx, []models.Anomaly{a})
		if err != nil {
			return fmt.Errorf("failed to save %s anomaly: %w", a.Kind, err)
		}
		if n > 0 {
			metrics.AnomaliesDetected.WithLabelValues(a.Kind).Inc()
			p.logger.Warn().
				Str("user_id", a.UserID).
				Str("kind", a.Kind).
				Str("behavior_type", string(a.BehaviorType)).
				Int("count", a.EventCount).
				Int("threshold", a.Threshold).
				Msg("Behavior anomaly detected")
		}
	}
	return nil
}

// AnomalyID derives the record ID for one actor, kind and type whose burst
// began in the window bucket starting at bucket.
func AnomalyID(userID, kind string, t models.BehaviorType, bucket time.Time) string {
	name := fmt.Sprintf("%s|%s|%s|%d", userID, kind, t, bucket.Unix())
	return uuid.NewSHA1(anomalyNamespace, []byte(name)).String()
}

// RunAnomalyDetection scans all actors every AnomalyInterval until ctx ends.
func (p *Pipeline) RunAnomalyDetection(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.AnomalyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			found, err := p.DetectAnomalies(ctx, "", p.cfg.AnomalyWindow)
			if err != nil {
				p.logger.Warn().Err(err).Msg("Anomaly scan failed")
				continue
			}
			if len(found) > 0 {
				p.logger.Debug().Int("count", len(found)).Msg("Anomaly scan finished")
			}
		}
	}
}
