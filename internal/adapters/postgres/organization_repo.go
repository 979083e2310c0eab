package postgres

import (
	"context"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
)

// OrganizationRepo implements ports.OrganizationRepository with pgx.
type OrganizationRepo struct {
	db *DB
}

// NewOrganizationRepo creates a new OrganizationRepo.
func NewOrganizationRepo(db *DB) *OrganizationRepo {
	return &OrganizationRepo{db: db}
}

// Upsert inserts or updates an organization by slug.
func (r *OrganizationRepo) Upsert(ctx context.Context, org *domain.Organization) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO organizations (slug, name, url, timezone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, url = EXCLUDED.url, timezone = EXCLUDED.timezone
	`, org.Slug, org.Name, org.URL, org.Timezone)
	return err
}

// GetBySlug returns an organization by slug.
func (r *OrganizationRepo) GetBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, slug, name, COALESCE(url, ''), timezone, created_at
		FROM organizations WHERE slug = $1
	`, slug).Scan(&org.ID, &org.Slug, &org.Name, &org.URL, &org.Timezone, &org.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// List returns all organizations ordered by name.
func (r *OrganizationRepo) List(ctx context.Context) ([]domain.Organization, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, slug, name, COALESCE(url, ''), timezone, created_at
		FROM organizations ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []domain.Organization
	for rows.Next() {
		var org domain.Organization
		if err := rows.Scan(&org.ID, &org.Slug, &org.Name, &org.URL, &org.Timezone, &org.CreatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}
