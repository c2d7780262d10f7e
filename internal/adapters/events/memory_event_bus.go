package events

import (
	"context"
	"errors"
	"sync"

	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/providers"
)

// MemoryEventBus is an in-process EventBus used when Redis is disabled
type MemoryEventBus struct {
	mu     sync.RWMutex
	fanout fanout
	closed bool
	done   chan struct{}
}

// NewMemoryEventBus creates a new in-process event bus
func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{fanout: newFanout(), done: make(chan struct{})}
}

var _ providers.EventBus = (*MemoryEventBus)(nil)

// Publish delivers the event to current subscribers of channel
func (b *MemoryEventBus) Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.New("event bus closed")
	}
	b.fanout.broadcast(channel, event)
	return nil
}

// Subscribe subscribes to events on a channel until ctx is done
func (b *MemoryEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errors.New("event bus closed")
	}
	eventChan, _ := b.fanout.add(channel)
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		}
		b.mu.Lock()
		b.fanout.remove(channel, eventChan)
		b.mu.Unlock()
	}()

	return eventChan, nil
}

// Unsubscribe drops every subscriber of a channel
func (b *MemoryEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fanout.closeChannel(channel)
	return nil
}

// Close drops every subscriber and rejects further use
func (b *MemoryEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	for _, channel := range b.fanout.channels() {
		b.fanout.closeChannel(channel)
	}
	return nil
}
