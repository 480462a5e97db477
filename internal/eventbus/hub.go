// Package eventbus is an in-process fan-out hub with context-scoped
// subscriptions.
package eventbus

import (
	"context"
	"sync"
)

// DefaultBuffer is the subscription buffer used when none is given.
const DefaultBuffer = 16

// Hub fans published values out to subscribers. Publish never blocks: when a
// subscriber's buffer is full its oldest pending value is dropped so the
// newest one is delivered.
type Hub[T any] struct {
	mu   sync.RWMutex
	subs map[chan T]struct{}
}

// NewHub creates an empty hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[chan T]struct{})}
}

// Publish delivers v to every subscriber.
func (h *Hub[T]) Publish(v T) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- v:
			continue
		default:
		}
		// Slow consumer: make room by dropping the oldest value.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// Subscribe registers a subscriber that lives until ctx is done, after which
// the channel is closed.
func (h *Hub[T]) Subscribe(ctx context.Context, buffer int) <-chan T {
	return h.subscribe(ctx, buffer, nil)
}

// SubscribeWith is Subscribe with initial queued ahead of any later publish.
// Only the new subscriber receives initial.
func (h *Hub[T]) SubscribeWith(ctx context.Context, buffer int, initial T) <-chan T {
	return h.subscribe(ctx, buffer, &initial)
}

func (h *Hub[T]) subscribe(ctx context.Context, buffer int, initial *T) <-chan T {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan T, buffer)
	if initial != nil {
		ch <- *initial
	}

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Len returns the number of live subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
