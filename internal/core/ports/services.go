package ports

import (
	"context"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishScan(ctx context.Context, scan *domain.ScanEvent) error
	PublishPassIssued(ctx context.Context, p *domain.Pass) error
	PublishPassRevoked(ctx context.Context, uid string) error
	PublishBroadcast(ctx context.Context, data []byte) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeScans(ctx context.Context, handler func(ctx context.Context, scan *domain.ScanEvent) error) error
	SubscribePassRevocations(ctx context.Context, handler func(ctx context.Context, uid string) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// NotificationService sends notifications (push, email, etc.).
type NotificationService interface {
	SendPush(ctx context.Context, userID, title, body string) error
}
