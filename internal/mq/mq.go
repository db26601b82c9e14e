// Package mq carries security events over a message broker. Backends are
// broker-agnostic; the provider is picked from configuration.
package mq

import (
	"context"
	"fmt"
	"strings"

	"github.com/devsketch/apiserver/config"
)

const (
	ProviderNone     = "none"
	ProviderRabbitMQ = "rabbitmq"
	ProviderPubSub   = "pubsub"
	ProviderMemory   = "memory"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Open connects to the configured broker. It returns a nil Backend for the
// "none" provider. The "memory" provider keeps events inside the process.
func Open(ctx context.Context, cfg config.MQConfig) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderNone:
		return nil, nil
	case ProviderMemory:
		return NewMemoryBackend(), nil
	case ProviderRabbitMQ:
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderPubSub:
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown mq provider %q", cfg.Provider)
	}
}
