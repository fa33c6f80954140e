package storage

import (
	"sync"

	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/models"
)

const subscriberBuffer = 8

// Broadcaster fans auth events out to subscribers. Gateways embed it.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan models.AuthEvent
}

// Subscribe registers a new subscriber. The returned cancel func is idempotent and closes the channel.
func (b *Broadcaster) Subscribe() (<-chan models.AuthEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[int]chan models.AuthEvent)
	}
	id := b.nextID
	b.nextID++
	ch := make(chan models.AuthEvent, subscriberBuffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers ev to every subscriber. A subscriber whose buffer is full misses the event.
func (b *Broadcaster) Publish(ev models.AuthEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logger.Warn("Dropping auth event for slow subscriber", "subscriber", id, "event", ev.Type)
		}
	}
}

// Close closes every subscriber channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
