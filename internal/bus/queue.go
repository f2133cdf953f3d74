package bus

import (
	"context"
)

// EventBus is the single inbound queue feeding the engine loop. Channels
// publish platform callbacks onto it and the scheduler publishes deferred
// continuations; one consumer drains it, which is what serializes all
// conversation handling.
type EventBus struct {
	inbound chan Event
}

// NewEventBus creates an EventBus with the given buffer size.
// If bufSize is 0 or negative, defaults to 256.
func NewEventBus(bufSize int) *EventBus {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &EventBus{inbound: make(chan Event, bufSize)}
}

// Publish enqueues an event for the engine loop.
func (b *EventBus) Publish(ev Event) {
	b.inbound <- ev
}

// Consume blocks until an event is available or ctx is cancelled.
func (b *EventBus) Consume(ctx context.Context) (Event, error) {
	select {
	case ev, ok := <-b.inbound:
		if !ok {
			return Event{}, context.Canceled
		}
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Close closes the inbound queue.
func (b *EventBus) Close() {
	close(b.inbound)
}
