package services

import (
	"context"
	"time"

	"github.com/devsketch/apiserver/types"
	"github.com/google/uuid"
)

// EventPublisher receives security events once the change they describe has
// been stored. Implementations report their own delivery failures.
type EventPublisher interface {
	Publish(ctx context.Context, event types.SecurityEvent)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, types.SecurityEvent) {}

func newEvent(typ types.SecurityEventType, userID int64) types.SecurityEvent {
	return types.SecurityEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return NopPublisher{}
	}
	return p
}
