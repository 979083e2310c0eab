package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
)

// VenueRepo implements ports.VenueRepository with pgx.
type VenueRepo struct {
	db *DB
}

// NewVenueRepo creates a new VenueRepo.
func NewVenueRepo(db *DB) *VenueRepo {
	return &VenueRepo{db: db}
}

// Upsert inserts or updates a single venue.
func (r *VenueRepo) Upsert(ctx context.Context, v *domain.Venue) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO venues (organization_id, name, location, address, capacity, metadata)
		VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5, $6, $7)
		ON CONFLICT (organization_id, name) DO UPDATE
		SET location = EXCLUDED.location, address = EXCLUDED.address,
		    capacity = EXCLUDED.capacity, metadata = EXCLUDED.metadata
	`, v.OrganizationID, v.Name, v.Location.Lon, v.Location.Lat,
		v.Address, v.Capacity, v.Metadata)
	return err
}

// UpsertBatch inserts many venues using pgx.Batch.
func (r *VenueRepo) UpsertBatch(ctx context.Context, venues []domain.Venue) error {
	batch := &pgx.Batch{}
	for _, v := range venues {
		batch.Queue(`
			INSERT INTO venues (organization_id, name, location, address, capacity, metadata)
			VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5, $6, $7)
			ON CONFLICT (organization_id, name) DO UPDATE
			SET location = EXCLUDED.location, address = EXCLUDED.address
		`, v.OrganizationID, v.Name, v.Location.Lon, v.Location.Lat,
			v.Address, v.Capacity, v.Metadata)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range venues {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a venue by UUID.
func (r *VenueRepo) GetByID(ctx context.Context, id string) (*domain.Venue, error) {
	var v domain.Venue
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, organization_id, name,
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       COALESCE(address, ''), capacity, COALESCE(metadata, '{}'), created_at
		FROM venues WHERE id = $1
	`, id).Scan(
		&v.ID, &v.OrganizationID, &v.Name,
		&v.Location.Lat, &v.Location.Lon,
		&v.Address, &v.Capacity, &v.Metadata, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListByOrganization returns all venues belonging to an organization.
func (r *VenueRepo) ListByOrganization(ctx context.Context, orgID string) ([]domain.Venue, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, organization_id, name,
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       COALESCE(address, ''), capacity, COALESCE(metadata, '{}'), created_at
		FROM venues WHERE organization_id = $1
		ORDER BY name
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var venues []domain.Venue
	for rows.Next() {
		var v domain.Venue
		if err := rows.Scan(
			&v.ID, &v.OrganizationID, &v.Name,
			&v.Location.Lat, &v.Location.Lon,
			&v.Address, &v.Capacity, &v.Metadata, &v.CreatedAt,
		); err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}
