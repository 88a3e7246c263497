package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geobubbles/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// ackHandler decodes a JSON payload into T and acks only when handler succeeds.
func ackHandler[T any](ctx context.Context, handler func(ctx context.Context, v *T) error) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			// poison message, do not redeliver
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &v); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}
}

func (s *Subscriber) subscribe(subject, durable string, cb nats.MsgHandler) error {
	sub, err := s.js.Subscribe(subject, cb,
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func (s *Subscriber) SubscribeMessageEvents(ctx context.Context, handler func(ctx context.Context, event *domain.MessageEvent) error) error {
	return s.subscribe(SubjectMessages, "message-processor", ackHandler(ctx, handler))
}

func (s *Subscriber) SubscribeLocationUpdates(ctx context.Context, handler func(ctx context.Context, update *domain.LocationUpdate) error) error {
	return s.subscribe(SubjectLocations, "location-processor", ackHandler(ctx, handler))
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
