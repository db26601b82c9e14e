package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/devsketch/apiserver/config"
	"github.com/devsketch/apiserver/types"
	"go.uber.org/zap"
)

const (
	attrEventType = "event_type"
	attrUserID    = "user_id"
)

// DefaultPublishTimeout bounds a single publish when the config leaves it unset.
const DefaultPublishTimeout = 5 * time.Second

// EventBus publishes security events as JSON on a single channel.
type EventBus struct {
	backend Backend
	channel string
	timeout time.Duration
	logger  *zap.Logger
}

func NewEventBus(backend Backend, cfg config.MQConfig, logger *zap.Logger) *EventBus {
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &EventBus{backend: backend, channel: cfg.Channel, timeout: timeout, logger: logger.Named("events")}
}

// Publish sends event. Delivery outlives ctx's cancellation but not the bus
// timeout. Failures are logged and otherwise ignored: the change the event
// describes has already been committed.
func (b *EventBus) Publish(ctx context.Context, event types.SecurityEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("encode security event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	attrs := map[string]string{
		attrContentType: "application/json",
		attrEventType:   string(event.Type),
		attrUserID:      strconv.FormatInt(event.UserID, 10),
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()
	id, err := b.backend.Publish(pubCtx, b.channel, data, attrs)
	if err != nil {
		b.logger.Warn("publish security event",
			zap.String("type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return
	}
	b.logger.Debug("security event published", zap.String("type", string(event.Type)), zap.String("message_id", id))
}

// Tail decodes every event on the channel and hands it to fn until ctx is
// done. Messages that do not decode are rejected.
func (b *EventBus) Tail(ctx context.Context, fn func(types.SecurityEvent) error) error {
	return b.backend.Subscribe(ctx, b.channel, func(ctx context.Context, msg Message) error {
		var event types.SecurityEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.logger.Warn("undecodable security event", zap.String("message_id", msg.ID), zap.Error(err))
			return fmt.Errorf("decode security event: %w", err)
		}
		return fn(event)
	})
}
