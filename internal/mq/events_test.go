package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devsketch/apiserver/config"
	"github.com/devsketch/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEventBusRoundTrip(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()
	bus := NewEventBus(backend, config.MQConfig{Channel: "security-events"}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan types.SecurityEvent, 1)
	done := make(chan error, 1)
	go func() {
		done <- bus.Tail(ctx, func(e types.SecurityEvent) error {
			received <- e
			return nil
		})
	}()
	require.Eventually(t, func() bool { return backend.Subscribers("security-events") == 1 }, time.Second, time.Millisecond)

	event := types.SecurityEvent{ID: "evt-1", Type: types.EventLogIn, UserID: 42, OccurredAt: time.Now().UTC().Truncate(time.Second)}
	bus.Publish(ctx, event)

	select {
	case got := <-received:
		assert.Equal(t, event, got)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

type failingBackend struct {
	MemoryBackend
}

func (*failingBackend) Publish(context.Context, string, []byte, map[string]string) (string, error) {
	return "", errors.New("broker down")
}

func TestEventBusSwallowsPublishErrors(t *testing.T) {
	bus := NewEventBus(&failingBackend{}, config.MQConfig{Channel: "security-events"}, zap.NewNop())
	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), types.SecurityEvent{Type: types.EventLogOut, UserID: 1})
	})
}

// stalledBackend accepts a publish and never answers until ctx is done.
type stalledBackend struct {
	MemoryBackend
	ctxErr chan error
}

func (b *stalledBackend) Publish(ctx context.Context, _ string, _ []byte, _ map[string]string) (string, error) {
	<-ctx.Done()
	b.ctxErr <- ctx.Err()
	return "", ctx.Err()
}

func TestEventBusPublishTimesOutOnStalledBroker(t *testing.T) {
	backend := &stalledBackend{ctxErr: make(chan error, 1)}
	bus := NewEventBus(backend, config.MQConfig{Channel: "security-events", PublishTimeout: 50 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		bus.Publish(ctx, types.SecurityEvent{Type: types.EventTokenRotated, UserID: 1})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish still blocked after the bus timeout")
	}
	assert.ErrorIs(t, <-backend.ctxErr, context.DeadlineExceeded, "a cancelled caller must not cut delivery short")
}

func TestNewEventBusDefaultsPublishTimeout(t *testing.T) {
	bus := NewEventBus(NewMemoryBackend(), config.MQConfig{Channel: "security-events"}, zap.NewNop())
	assert.Equal(t, DefaultPublishTimeout, bus.timeout)
}

func TestMemoryBackendDropsWithoutSubscribers(t *testing.T) {
	backend := NewMemoryBackend()
	id, err := backend.Publish(context.Background(), "nobody", []byte("x"), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = backend.Publish(context.Background(), "", []byte("x"), nil)
	assert.Error(t, err)

	require.NoError(t, backend.Close())
	require.NoError(t, backend.Close())
	_, err = backend.Publish(context.Background(), "nobody", []byte("x"), nil)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	backend, err := Open(context.Background(), config.MQConfig{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, backend)

	backend, err = Open(context.Background(), config.MQConfig{Provider: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, backend)
	require.NoError(t, backend.Close())

	_, err = Open(context.Background(), config.MQConfig{Provider: "kafka"})
	assert.Error(t, err)

	_, err = Open(context.Background(), config.MQConfig{Provider: "rabbitmq"})
	assert.Error(t, err, "a url is required")

	_, err = Open(context.Background(), config.MQConfig{Provider: "pubsub"})
	assert.Error(t, err, "a project id is required")
}
