// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package events carries typed behavior notifications between the
// ingestion pipeline and the orchestration layer over Watermill.
//
// The default transport is Watermill's in-process gochannel pub/sub. A
// NATS transport is available when built with -tags nats. Delivery is
// at-least-once and best effort: a publish with no live subscriber is
// dropped, and there is no ordering guarantee across users.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/metrics"
)

const metadataCorrelationID = "correlation_id"

// Bus publishes and consumes behavior notifications.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewBus creates an in-process bus. buffer is the per-subscriber output
// channel size.
func NewBus(buffer int) *Bus {
	logger := logging.NewWatermillAdapter(logging.WithComponent("events"))
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(buffer),
	}, logger)
	return &Bus{publisher: pubsub, subscriber: pubsub, logger: logger}
}

// NewBusWith wraps an existing Watermill publisher and subscriber.
func NewBusWith(pub message.Publisher, sub message.Subscriber, logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = logging.NewWatermillAdapter(logging.WithComponent("events"))
	}
	return &Bus{publisher: pub, subscriber: sub, logger: logger}
}

// PublishBehaviorTracked publishes a BehaviorTracked notification.
func (b *Bus) PublishBehaviorTracked(ctx context.Context, evt BehaviorTracked) error {
	return b.publish(ctx, TopicBehaviorTracked, evt)
}

// PublishHighPriority publishes a HighPriorityBehavior notification.
func (b *Bus) PublishHighPriority(ctx context.Context, evt HighPriorityBehavior) error {
	return b.publish(ctx, TopicHighPriority, evt)
}

func (b *Bus) publish(ctx context.Context, topic string, payload interface{}) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	msg := message.NewMessage(uuid.NewString(), data)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(metadataCorrelationID, id)
	}
	if err := b.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	metrics.BusPublished.WithLabelValues(topic).Inc()
	return nil
}

// ConsumeBehaviorTracked runs fn for each BehaviorTracked message until
// ctx ends. Messages whose handler fails are nacked and redelivered.
func (b *Bus) ConsumeBehaviorTracked(ctx context.Context, fn func(context.Context, BehaviorTracked) error) error {
	return b.consume(ctx, TopicBehaviorTracked, func(ctx context.Context, payload []byte) error {
		var evt BehaviorTracked
		if err := json.Unmarshal(payload, &evt); err != nil {
			return errMalformed{err}
		}
		return fn(ctx, evt)
	})
}

// ConsumeHighPriority runs fn for each HighPriorityBehavior message until ctx ends.
func (b *Bus) ConsumeHighPriority(ctx context.Context, fn func(context.Context, HighPriorityBehavior) error) error {
	return b.consume(ctx, TopicHighPriority, func(ctx context.Context, payload []byte) error {
		var evt HighPriorityBehavior
		if err := json.Unmarshal(payload, &evt); err != nil {
			return errMalformed{err}
		}
		return fn(ctx, evt)
	})
}

// errMalformed marks payloads that can never be processed; they are
// acked and dropped instead of redelivered.
type errMalformed struct{ err error }

func (e errMalformed) Error() string { return "malformed payload: " + e.err.Error() }

func (b *Bus) consume(ctx context.Context, topic string, handle func(context.Context, []byte) error) error {
	messages, err := b.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.process(ctx, topic, msg, handle)
		}
	}
}

func (b *Bus) process(ctx context.Context, topic string, msg *message.Message, handle func(context.Context, []byte) error) {
	msgCtx := ctx
	if id := msg.Metadata.Get(metadataCorrelationID); id != "" {
		msgCtx = logging.ContextWithCorrelationID(ctx, id)
	}

	err := handle(msgCtx, msg.Payload)
	switch err.(type) {
	case nil:
		msg.Ack()
		metrics.BusConsumed.WithLabelValues(topic).Inc()
	case errMalformed:
		b.logger.Error("Dropping malformed message", err, watermill.LogFields{"topic": topic, "message_uuid": msg.UUID})
		msg.Ack()
	default:
		b.logger.Error("Message processing failed", err, watermill.LogFields{"topic": topic, "message_uuid": msg.UUID})
		msg.Nack()
	}
}

// Close shuts down the publisher and subscriber. Consumers see their
// message channels closed and return.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	if err := b.publisher.Close(); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}
	// gochannel uses one value for both roles.
	if c, ok := b.subscriber.(message.Publisher); !ok || c != b.publisher {
		if err := b.subscriber.Close(); err != nil {
			return fmt.Errorf("close subscriber: %w", err)
		}
	}
	return nil
}
