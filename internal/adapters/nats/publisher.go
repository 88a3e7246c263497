package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geobubbles/internal/core/domain"
)

// Subjects and streams.
const (
	StreamMessages  = "BUBBLE_MESSAGES"
	StreamLocations = "BUBBLE_LOCATIONS"

	SubjectMessages  = "bubbles.messages.>"
	SubjectLocations = "bubbles.locations.>"
)

// MessageSubject is where events of the given kind are published.
func MessageSubject(kind string) string {
	return "bubbles.messages." + kind
}

// LocationSubject is where a user's location reports are published.
func LocationSubject(userID string) string {
	return "bubbles.locations." + userID
}

// StreamConfigs returns the JetStream streams the services rely on.
func StreamConfigs() []nats.StreamConfig {
	return []nats.StreamConfig{
		{
			Name:      StreamMessages,
			Subjects:  []string{SubjectMessages},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      StreamLocations,
			Subjects:  []string{SubjectLocations},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	streams := StreamConfigs()
	for i := range streams {
		cfg := &streams[i]
		if _, err := js.AddStream(cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishMessageEvent(ctx context.Context, event *domain.MessageEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(MessageSubject(event.Kind), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishLocationUpdate(ctx context.Context, update *domain.LocationUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(LocationSubject(update.UserID), data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for health checks and relays.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
