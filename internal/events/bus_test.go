// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/models"
)

// publishUntil republishes until received reports true. gochannel drops
// messages published before the consumer has subscribed.
func publishUntil(t *testing.T, publish func() error, received func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !received() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for delivery")
		}
		if err := publish(); err != nil {
			t.Fatalf("publish: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBus_HighPriorityRoundTrip(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan HighPriorityBehavior, 64)
	go func() {
		_ = bus.ConsumeHighPriority(ctx, func(ctx context.Context, evt HighPriorityBehavior) error {
			got <- evt
			return nil
		})
	}()

	event := &models.BehaviorEvent{ID: "e1", UserID: "u1", ItemID: "b1", BehaviorType: models.BehaviorBorrow,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	publishUntil(t,
		func() error { return bus.PublishHighPriority(ctx, NewHighPriorityBehavior(event)) },
		func() bool { return len(got) > 0 })

	evt := <-got
	if evt.UserID != "u1" || evt.BehaviorType != models.BehaviorBorrow || evt.EventID != "e1" {
		t.Errorf("unexpected payload: %+v", evt)
	}
}

func TestBus_CorrelationIDPropagates(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ids := make(chan string, 64)
	go func() {
		_ = bus.ConsumeBehaviorTracked(ctx, func(ctx context.Context, _ BehaviorTracked) error {
			ids <- logging.CorrelationIDFromContext(ctx)
			return nil
		})
	}()

	pubCtx := logging.ContextWithCorrelationID(ctx, "corr-123")
	publishUntil(t,
		func() error { return bus.PublishBehaviorTracked(pubCtx, BehaviorTracked{EventID: "e1", UserID: "u1"}) },
		func() bool { return len(ids) > 0 })

	if id := <-ids; id != "corr-123" {
		t.Errorf("correlation id = %q", id)
	}
}

func TestBus_FailedHandlerIsRedelivered(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		_ = bus.ConsumeBehaviorTracked(ctx, func(context.Context, BehaviorTracked) error {
			if calls.Add(1) == 1 {
				return errors.New("transient")
			}
			select {
			case <-done:
			default:
				close(done)
			}
			return nil
		})
	}()

	publishUntil(t,
		func() error { return bus.PublishBehaviorTracked(ctx, BehaviorTracked{EventID: "e1"}) },
		func() bool { return calls.Load() > 0 })

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("message was not redelivered after nack")
	}
}

func TestBus_PublishAfterClose(t *testing.T) {
	bus := NewBus(1)
	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := bus.PublishBehaviorTracked(context.Background(), BehaviorTracked{}); err == nil {
		t.Error("expected error publishing on a closed bus")
	}
}

func TestNewNATSBusWithoutTag(t *testing.T) {
	if NATSAvailable {
		t.Skip("built with nats tag")
	}
	if _, err := NewNATSBus("nats://localhost:4222"); err == nil {
		t.Error("expected error without nats build tag")
	}
}
