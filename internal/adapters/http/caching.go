package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != "GET" {
			return err
		}

		// Don't override if already set
		if existing := c.Get("Cache-Control"); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		// Default cache times by endpoint pattern
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10" // Very short for system checks

		case strings.HasPrefix(path, "/v1/orgs"):
			ttl = "public, max-age=3600" // 1 hour for stable data

		case path == "/metrics":
			ttl = "no-cache" // Metrics are real-time

		case path == "/graphql":
			ttl = "private, max-age=0" // GraphQL varies wildly

		case strings.HasPrefix(path, "/v1/map/markers"):
			ttl = "public, max-age=60" // Markers track the catalog closely

		case strings.HasPrefix(path, "/v1/events/nearby"):
			ttl = "public, max-age=120"

		case strings.HasPrefix(path, "/v1/events/search"):
			ttl = "public, max-age=120"

		case strings.HasPrefix(path, "/v1/events/"):
			ttl = "public, max-age=300" // 5 min for single event

		case strings.HasPrefix(path, "/v1/passes"):
			ttl = "private, no-store" // Passes are per-user secrets

		case strings.HasPrefix(path, "/v1/scans"):
			ttl = "private, max-age=0"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=300" // 5 min default for API endpoints
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
