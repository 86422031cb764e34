package events

import (
	"context"
	"sync"

	"sealtrack/internal/domain"
)

const subscriberBuffer = 16

// Broker is an in-process change feed. Slow subscribers lose events rather
// than stall publishers.
type Broker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
}

type subscription struct {
	documentID string
	ch         chan domain.DocumentEvent
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int]subscription)}
}

func (b *Broker) Publish(ctx context.Context, event domain.DocumentEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.documentID != "" && sub.documentID != event.DocumentID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of events for documentID, or for every
// document when documentID is empty. The channel closes when ctx ends.
func (b *Broker) Subscribe(ctx context.Context, documentID string) (<-chan domain.DocumentEvent, error) {
	ch := make(chan domain.DocumentEvent, subscriberBuffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{documentID: documentID, ch: ch}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}
