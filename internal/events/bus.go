// Package events provides the channel pub/sub broker that decouples the
// simulation sessions from reporting and the live monitor socket.
package events

import "sync"

// Bus fans out payloads per topic. Publishing never blocks; a subscriber
// that falls behind loses events rather than stalling the simulation.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]chan any
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]chan any)}
}

// Subscribe registers a listener for a topic and returns the channel plus an
// unsubscribe function. The channel is closed on unsubscribe or bus Close.
func (b *Bus) Subscribe(t Topic, buffer int) (<-chan any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan any, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[t] = append(b.subs[t], ch)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[t]
		for i, c := range subs {
			if c == ch {
				close(c)
				b.subs[t] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return ch, unsub
}

// Publish delivers payload to every subscriber of t, dropping it for
// subscribers whose buffers are full.
func (b *Bus) Publish(t Topic, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[t] {
		select {
		case ch <- payload:
		default:
			// slow subscriber; keep the broker non-blocking
		}
	}
}

// Close shuts every subscriber channel and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for t, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, t)
	}
}
