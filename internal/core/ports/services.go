package ports

import (
	"context"

	"github.com/samirrijal/geobubbles/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishMessageEvent(ctx context.Context, event *domain.MessageEvent) error
	PublishLocationUpdate(ctx context.Context, update *domain.LocationUpdate) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeMessageEvents(ctx context.Context, handler func(ctx context.Context, event *domain.MessageEvent) error) error
	SubscribeLocationUpdates(ctx context.Context, handler func(ctx context.Context, update *domain.LocationUpdate) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// PurgeScheduler hands account purges to a durable workflow engine.
type PurgeScheduler interface {
	SchedulePurge(ctx context.Context, userID string) (string, error)
}
