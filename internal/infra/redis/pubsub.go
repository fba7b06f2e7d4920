package redis

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
	"live-quiz-service/internal/domain"
)

const eventChannelPrefix = "quiz:events:"

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Publisher sends session events over Redis pub/sub so every instance can
// deliver them to its own websocket clients.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, topic string, event domain.Event) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		log.Printf("encode %s event for %s: %v", event.Type, topic, err)
		return
	}
	data, err := json.Marshal(envelope{Type: event.Type, Payload: payload})
	if err != nil {
		log.Printf("encode %s event for %s: %v", event.Type, topic, err)
		return
	}
	if err := p.client.Publish(ctx, eventChannelPrefix+topic, data).Err(); err != nil {
		log.Printf("publish %s event for %s: %v", event.Type, topic, err)
	}
}

// Sink receives relayed events, typically the in-process broadcaster.
type Sink interface {
	Publish(ctx context.Context, topic string, event domain.Event)
}

// Relay forwards events from Redis pub/sub into a local Sink.
// Payloads stay encoded as json.RawMessage.
type Relay struct {
	client *redis.Client
	sink   Sink
	pubsub *redis.PubSub
}

func NewRelay(client *redis.Client, sink Sink) *Relay {
	return &Relay{client: client, sink: sink}
}

// Start subscribes and waits for the subscription to be confirmed.
func (r *Relay) Start(ctx context.Context) error {
	ps := r.client.PSubscribe(ctx, eventChannelPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return err
	}
	r.pubsub = ps
	return nil
}

// Run forwards messages until ctx is cancelled. Start must have succeeded.
func (r *Relay) Run(ctx context.Context) error {
	defer r.pubsub.Close()
	messages := r.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("relay: drop malformed event on %s: %v", msg.Channel, err)
				continue
			}
			topic := strings.TrimPrefix(msg.Channel, eventChannelPrefix)
			r.sink.Publish(ctx, topic, domain.Event{Type: env.Type, Payload: env.Payload})
		}
	}
}
