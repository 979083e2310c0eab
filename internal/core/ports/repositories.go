package ports

import (
	"context"
	"time"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
)

// OrganizationRepository persists organizations.
type OrganizationRepository interface {
	Upsert(ctx context.Context, org *domain.Organization) error
	GetBySlug(ctx context.Context, slug string) (*domain.Organization, error)
	List(ctx context.Context) ([]domain.Organization, error)
}

// VenueRepository persists venues.
type VenueRepository interface {
	Upsert(ctx context.Context, venue *domain.Venue) error
	UpsertBatch(ctx context.Context, venues []domain.Venue) error
	GetByID(ctx context.Context, id string) (*domain.Venue, error)
	ListByOrganization(ctx context.Context, orgID string) ([]domain.Venue, error)
}

// EventRepository persists events.
type EventRepository interface {
	Upsert(ctx context.Context, event *domain.Event) error
	UpsertBatch(ctx context.Context, events []domain.Event) error
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Event, error)
	FindInBounds(ctx context.Context, bounds domain.Bounds, limit int) ([]domain.Event, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Event, error)
}

// PassRepository persists issued passes, keyed by user id.
type PassRepository interface {
	Upsert(ctx context.Context, p *domain.Pass) error
	GetByUID(ctx context.Context, uid string) (*domain.Pass, error)
	MarkScanned(ctx context.Context, uid string, at time.Time) error
	Revoke(ctx context.Context, uid string, at time.Time) error
}

// ScanRepository persists scan events.
type ScanRepository interface {
	Insert(ctx context.Context, scan *domain.ScanEvent) error
	RecentByEvent(ctx context.Context, eventID string, limit int) ([]domain.ScanEvent, error)
}
