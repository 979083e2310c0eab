package usecases

import (
	"context"
	"fmt"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
	"github.com/onepass-ch/onepass-sub008/internal/core/ports"
)

// OrganizationService handles organizer-related business logic.
type OrganizationService struct {
	orgs   ports.OrganizationRepository
	venues ports.VenueRepository
}

// NewOrganizationService creates a new OrganizationService. venues may be
// nil when venue lookups are not needed.
func NewOrganizationService(orgs ports.OrganizationRepository, venues ports.VenueRepository) *OrganizationService {
	return &OrganizationService{orgs: orgs, venues: venues}
}

// List returns all organizations.
func (s *OrganizationService) List(ctx context.Context) ([]domain.Organization, error) {
	return s.orgs.List(ctx)
}

// GetBySlug returns an organization by slug.
func (s *OrganizationService) GetBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	return s.orgs.GetBySlug(ctx, slug)
}

// VenuesBySlug returns the venues an organization runs events at.
func (s *OrganizationService) VenuesBySlug(ctx context.Context, slug string) ([]domain.Venue, error) {
	org, err := s.orgs.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if s.venues == nil {
		return nil, fmt.Errorf("venue lookups not configured")
	}
	return s.venues.ListByOrganization(ctx, org.ID)
}
