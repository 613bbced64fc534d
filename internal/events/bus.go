// Package events fans application events out to subscribers.
package events

import (
	"sync"

	"github.com/google/uuid"
)

// Event is anything published on the bus. Concrete event types live with
// the components that emit them.
type Event any

// Bus is a non-blocking fan-out. A subscriber that falls behind loses
// events rather than stalling the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]chan Event
}

func NewBus() *Bus {
	return &Bus{subs: map[string]chan Event{}}
}

// Subscribe registers a subscriber and returns its channel plus a cancel
// function. Cancel closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan Event, 64)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
