package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

const subscriberBuffer = 64

// Broadcaster fans session events out to in-process subscribers.
// It satisfies app.Publisher and is the sink for the Redis relay.
type Broadcaster struct {
	mu     sync.Mutex
	topics map[string]map[chan domain.Event]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{topics: make(map[string]map[chan domain.Event]struct{})}
}

// Subscribe returns a channel of events for a topic.
// The caller must invoke the returned cancel function to avoid leaks.
func (b *Broadcaster) Subscribe(topic string) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	b.mu.Lock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[chan domain.Event]struct{})
		b.topics[topic] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs, ok := b.topics[topic]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(b.topics, topic)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber of topic. A subscriber
// whose buffer is full loses its oldest pending event.
func (b *Broadcaster) Publish(_ context.Context, topic string, event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.topics[topic] {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

// Subscribers reports how many listeners a topic has.
func (b *Broadcaster) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}
