package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/onepass-ch/onepass-sub008/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout — fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1 — 15s per-request timeout
	v1 := app.Group("/v1")
	v1.Get("/orgs", timeout.NewWithContext(ListOrganizationsHandler(deps), 15*time.Second))
	v1.Get("/orgs/:slug", timeout.NewWithContext(GetOrganizationHandler(deps), 15*time.Second))
	v1.Get("/orgs/:slug/venues", timeout.NewWithContext(OrganizationVenuesHandler(deps), 15*time.Second))
	v1.Get("/events/nearby", timeout.NewWithContext(NearbyEventsHandler(deps), 15*time.Second))
	v1.Get("/events/search", timeout.NewWithContext(SearchEventsHandler(deps), 15*time.Second))
	v1.Get("/events/:id", timeout.NewWithContext(GetEventHandler(deps), 15*time.Second))
	v1.Get("/map/markers", timeout.NewWithContext(MapMarkersHandler(deps), 15*time.Second))
	v1.Get("/catalog/stats", timeout.NewWithContext(CatalogStatsHandler(deps), 15*time.Second))

	// Pass endpoints. Decode and verify are open to scanning devices;
	// issue, revoke, scans, and lookup require an operator token.
	v1.Post("/passes/decode", timeout.NewWithContext(DecodePassHandler(deps), 15*time.Second))
	v1.Post("/passes/verify", timeout.NewWithContext(VerifyPassHandler(deps), 15*time.Second))

	operator := v1.Group("", RequireOperator(deps.JWTSecret))
	operator.Post("/passes", timeout.NewWithContext(IssuePassHandler(deps), 15*time.Second))
	operator.Get("/passes/:uid", timeout.NewWithContext(GetPassHandler(deps), 15*time.Second))
	operator.Post("/passes/:uid/revoke", timeout.NewWithContext(RevokePassHandler(deps), 15*time.Second))
	operator.Post("/scans", timeout.NewWithContext(RecordScanHandler(deps), 15*time.Second))
	operator.Get("/events/:id/scans", timeout.NewWithContext(EventScansHandler(deps), 15*time.Second))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
