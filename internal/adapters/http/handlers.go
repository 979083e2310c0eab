package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
)

// CatalogStats holds row counts for the event catalog.
type CatalogStats struct {
	Organizations int    `json:"organizations"`
	Venues        int    `json:"venues"`
	Events        int    `json:"events"`
	Passes        int    `json:"passes"`
	LastImport    string `json:"last_import,omitempty"`
}

// CatalogStatsHandler returns row counts from the catalog tables.
func CatalogStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.DB == nil {
			return errInternal(c, "database not available")
		}

		var stats CatalogStats
		row := deps.DB.Pool.QueryRow(c.Context(), `
			SELECT
				(SELECT count(*) FROM organizations),
				(SELECT count(*) FROM venues),
				(SELECT count(*) FROM events),
				(SELECT count(*) FROM passes),
				COALESCE((SELECT max(created_at)::text FROM events), '')
		`)
		if err := row.Scan(&stats.Organizations, &stats.Venues, &stats.Events,
			&stats.Passes, &stats.LastImport); err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stats)
	}
}

// ListOrganizationsHandler returns all organizations.
func ListOrganizationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		orgs, err := deps.Organizations.List(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}

		// Apply offset/limit pagination on the full list
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 100
		}

		total := len(orgs)
		if offset >= total {
			orgs = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			orgs = orgs[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: orgs, Pagination: pg})
	}
}

// GetOrganizationHandler returns an organization by slug.
func GetOrganizationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		slug := c.Params("slug")
		if slug == "" {
			return errBadRequest(c, "organization slug is required")
		}
		org, err := deps.Organizations.GetBySlug(c.Context(), slug)
		if err != nil {
			return errNotFound(c, "organization not found")
		}
		return c.JSON(org)
	}
}

// OrganizationVenuesHandler returns the venues of an organization.
func OrganizationVenuesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		slug := c.Params("slug")
		if slug == "" {
			return errBadRequest(c, "organization slug is required")
		}
		venues, err := deps.Organizations.VenuesBySlug(c.Context(), slug)
		if err != nil {
			return errNotFound(c, "organization not found")
		}
		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(venues)
	}
}

// NearbyEventsHandler returns published events within a radius of a point.
func NearbyEventsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		radius := c.QueryFloat("radius", 1000)
		limit := c.QueryInt("limit", 50)

		if lat == 0 || lon == 0 {
			return errBadRequest(c, "lat and lon are required")
		}
		if radius <= 0 || radius > 50000 {
			return errBadRequest(c, "radius must be between 1 and 50000 meters")
		}
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		events, err := deps.Events.FindNearby(c.Context(), lat, lon, radius, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=120")
		return c.JSON(events)
	}
}

// SearchEventsHandler performs fuzzy search on event titles.
func SearchEventsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := c.Query("q")
		if query == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(query) > 200 {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		limit := c.QueryInt("limit", 20)
		if limit <= 0 || limit > 100 {
			limit = 20
		}

		events, err := deps.Events.Search(c.Context(), query, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}

		return c.JSON(events)
	}
}

// GetEventHandler returns a single event by ID.
func GetEventHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "event id is required")
		}
		event, err := deps.Events.GetByID(c.Context(), id)
		if err != nil {
			return errNotFound(c, "event not found")
		}
		return c.JSON(event)
	}
}

// MapMarkersHandler returns clustered render items for a viewport.
// Query: min_lat, min_lon, max_lat, max_lon, zoom.
func MapMarkersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bounds := domain.Bounds{
			MinLat: c.QueryFloat("min_lat", 0),
			MinLon: c.QueryFloat("min_lon", 0),
			MaxLat: c.QueryFloat("max_lat", 0),
			MaxLon: c.QueryFloat("max_lon", 0),
		}
		zoom := c.QueryFloat("zoom", -1)

		if bounds.MinLat >= bounds.MaxLat || bounds.MinLon >= bounds.MaxLon {
			return errBadRequest(c, "min_lat/min_lon must be less than max_lat/max_lon")
		}
		if zoom < 0 || zoom > 22 {
			return errBadRequest(c, "zoom must be between 0 and 22")
		}

		items, err := deps.Map.Markers(c.Context(), bounds, zoom)
		if err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(fiber.Map{
			"items": items,
			"count": len(items),
		})
	}
}
