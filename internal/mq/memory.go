package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const memoryBuffer = 64

// MemoryBackend delivers messages to subscribers in the same process. Messages
// published while nobody subscribes to a channel, or while a subscriber's
// buffer is full, are dropped.
type MemoryBackend struct {
	mu     sync.RWMutex
	subs   map[string][]chan Message
	closed bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{subs: make(map[string][]chan Message)}
}

func (m *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", errors.New("memory backend closed")
	}

	msg := Message{ID: uuid.NewString(), Data: data, Attributes: attrs}
	for _, ch := range m.subs[channel] {
		select {
		case ch <- msg:
		default:
		}
	}
	return msg.ID, nil
}

// Subscribe blocks until ctx is done or the backend is closed.
func (m *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}

	ch := make(chan Message, memoryBuffer)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("memory backend closed")
	}
	m.subs[channel] = append(m.subs[channel], ch)
	m.mu.Unlock()
	defer m.unsubscribe(channel, ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			_ = handler(ctx, msg)
		}
	}
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for _, subs := range m.subs {
		for _, ch := range subs {
			close(ch)
		}
	}
	m.subs = nil
	return nil
}

func (m *MemoryBackend) unsubscribe(channel string, ch chan Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	subs := m.subs[channel]
	for i, c := range subs {
		if c == ch {
			m.subs[channel] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Subscribers reports how many subscribers listen on channel.
func (m *MemoryBackend) Subscribers(channel string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[channel])
}
