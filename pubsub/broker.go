package pubsub

import (
	"context"
	"sync"
)

const bufferSize = 64

// Broker is an in-memory publish/subscribe hub for events carrying a
// payload of type T.
type Broker[T any] struct {
	subs    map[chan Event[T]]struct{}
	mu      sync.RWMutex
	done    chan struct{}
	bufSize int
	dropped int
}

// NewBroker creates a broker with the default subscriber buffer.
func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithBuffer[T](bufferSize)
}

// NewBrokerWithBuffer creates a broker whose subscriber channels hold up to
// channelBufferSize undelivered events.
func NewBrokerWithBuffer[T any](channelBufferSize int) *Broker[T] {
	if channelBufferSize <= 0 {
		channelBufferSize = bufferSize
	}
	return &Broker[T]{
		subs:    make(map[chan Event[T]]struct{}),
		done:    make(chan struct{}),
		bufSize: channelBufferSize,
	}
}

// Shutdown stops the broker and closes every subscriber channel.
func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
		close(b.done)
	}

	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

// Subscribe registers a subscriber. The channel is closed when ctx is done
// or the broker shuts down.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan Event[T])
		close(ch)
		return ch
	default:
	}

	sub := make(chan Event[T], b.bufSize)
	b.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		if _, ok := b.subs[sub]; ok {
			delete(b.subs, sub)
			close(sub)
		}
	}()

	return sub
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (b *Broker[T]) Dropped() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Publish delivers an event to every subscriber without blocking. A
// subscriber whose buffer is full misses the event.
func (b *Broker[T]) Publish(t EventType, payload T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
	}

	event := Event[T]{Type: t, Payload: payload}
	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			b.dropped++
		}
	}
}
