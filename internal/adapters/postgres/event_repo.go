package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
)

// EventRepo implements ports.EventRepository with pgx.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

const eventColumns = `
	id, organization_id, venue_id, title, COALESCE(description, ''),
	ST_Y(location::geometry) as lat,
	ST_X(location::geometry) as lon,
	starts_at, ends_at, capacity, published, COALESCE(metadata, '{}'), created_at`

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	err := row.Scan(
		&e.ID, &e.OrganizationID, &e.VenueID, &e.Title, &e.Description,
		&e.Location.Lat, &e.Location.Lon,
		&e.StartsAt, &e.EndsAt, &e.Capacity, &e.Published, &e.Metadata, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Upsert inserts or updates a single event.
func (r *EventRepo) Upsert(ctx context.Context, e *domain.Event) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO events (organization_id, venue_id, title, description, location,
		                    starts_at, ends_at, capacity, published, metadata)
		VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography,
		        $7, $8, $9, $10, $11)
		ON CONFLICT (organization_id, title, starts_at) DO UPDATE
		SET venue_id = EXCLUDED.venue_id, description = EXCLUDED.description,
		    location = EXCLUDED.location, ends_at = EXCLUDED.ends_at,
		    capacity = EXCLUDED.capacity, published = EXCLUDED.published,
		    metadata = EXCLUDED.metadata
	`, e.OrganizationID, e.VenueID, e.Title, e.Description,
		e.Location.Lon, e.Location.Lat,
		e.StartsAt, e.EndsAt, e.Capacity, e.Published, e.Metadata)
	return err
}

// UpsertBatch inserts many events using pgx.Batch.
func (r *EventRepo) UpsertBatch(ctx context.Context, events []domain.Event) error {
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO events (organization_id, venue_id, title, description, location,
			                    starts_at, ends_at, capacity, published, metadata)
			VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography,
			        $7, $8, $9, $10, $11)
			ON CONFLICT (organization_id, title, starts_at) DO UPDATE
			SET venue_id = EXCLUDED.venue_id, location = EXCLUDED.location,
			    published = EXCLUDED.published
		`, e.OrganizationID, e.VenueID, e.Title, e.Description,
			e.Location.Lon, e.Location.Lat,
			e.StartsAt, e.EndsAt, e.Capacity, e.Published, e.Metadata)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns an event by UUID.
func (r *EventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	return scanEvent(row)
}

// FindNearby returns published events within radiusMeters using PostGIS ST_DWithin.
func (r *EventRepo) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Event, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+eventColumns+`,
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) as distance
		FROM events
		WHERE published
		  AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance
		LIMIT $4
	`, lon, lat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var dist float64
		if err := rows.Scan(
			&e.ID, &e.OrganizationID, &e.VenueID, &e.Title, &e.Description,
			&e.Location.Lat, &e.Location.Lon,
			&e.StartsAt, &e.EndsAt, &e.Capacity, &e.Published, &e.Metadata, &e.CreatedAt,
			&dist,
		); err != nil {
			return nil, err
		}
		e.Distance = &dist
		events = append(events, e)
	}
	return events, rows.Err()
}

// FindInBounds returns published events inside a bounding box, newest first.
// Feeds the map layer, so the result order must be stable.
func (r *EventRepo) FindInBounds(ctx context.Context, bounds domain.Bounds, limit int) ([]domain.Event, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE published
		  AND location::geometry && ST_MakeEnvelope($1, $2, $3, $4, 4326)
		ORDER BY starts_at, id
		LIMIT $5
	`, bounds.MinLon, bounds.MinLat, bounds.MaxLon, bounds.MaxLat, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(
			&e.ID, &e.OrganizationID, &e.VenueID, &e.Title, &e.Description,
			&e.Location.Lat, &e.Location.Lon,
			&e.StartsAt, &e.EndsAt, &e.Capacity, &e.Published, &e.Metadata, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Search performs fuzzy + full-text search on event titles.
func (r *EventRepo) Search(ctx context.Context, query string, limit int) ([]domain.Event, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+eventColumns+`,
		       similarity(title, $1) as sim
		FROM events
		WHERE published
		  AND (title_vector @@ plainto_tsquery('simple', $1) OR title %> $1)
		ORDER BY sim DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var sim float64
		if err := rows.Scan(
			&e.ID, &e.OrganizationID, &e.VenueID, &e.Title, &e.Description,
			&e.Location.Lat, &e.Location.Lon,
			&e.StartsAt, &e.EndsAt, &e.Capacity, &e.Published, &e.Metadata, &e.CreatedAt,
			&sim,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
