package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/onepass-ch/onepass-sub008/internal/adapters/http"
	natsadapter "github.com/onepass-ch/onepass-sub008/internal/adapters/nats"
	"github.com/onepass-ch/onepass-sub008/internal/adapters/postgres"
	"github.com/onepass-ch/onepass-sub008/internal/adapters/valkey"
	"github.com/onepass-ch/onepass-sub008/internal/core/pass"
	"github.com/onepass-ch/onepass-sub008/internal/core/usecases"
	"github.com/onepass-ch/onepass-sub008/internal/pkg/config"
	"github.com/onepass-ch/onepass-sub008/internal/pkg/logging"
	"github.com/onepass-ch/onepass-sub008/internal/pkg/metrics"
	"github.com/onepass-ch/onepass-sub008/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("onepass-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
	}

	// NATS
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer nc.Close()
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Pass signing keys
	signer, verifier, err := buildKeys(cfg)
	if err != nil {
		log.Fatalf("signing keys: %v", err)
	}

	// Export pool gauges for the dashboard
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Repos
	orgRepo := postgres.NewOrganizationRepo(db)
	venueRepo := postgres.NewVenueRepo(db)
	eventRepo := postgres.NewEventRepo(db)
	passRepo := postgres.NewPassRepo(db)
	scanRepo := postgres.NewScanRepo(db)

	// Use cases
	orgSvc := usecases.NewOrganizationService(orgRepo, venueRepo)
	eventSvc := usecases.NewEventService(eventRepo, cache)
	mapSvc := usecases.NewMapService(eventRepo, cache)
	passSvc := usecases.NewPassService(passRepo, scanRepo, signer, verifier, nc, nil)

	deps := &http.Dependencies{
		Organizations: orgSvc,
		Events:        eventSvc,
		Map:           mapSvc,
		Passes:        passSvc,
		NATS:          natsConn,
		DB:            db,
		Cache:         cache,
		JWTSecret:     []byte(cfg.Auth.JWTSecret),
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "OnePass API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.onepass.ch",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// buildKeys creates the signer and verifier from configuration. Without a
// configured key a fresh dev key is generated; tokens then only survive one
// process lifetime.
func buildKeys(cfg *config.Config) (*pass.Signer, *pass.Verifier, error) {
	var signer *pass.Signer
	var err error

	if cfg.Signing.Key != "" {
		signer, err = pass.NewSigner(cfg.Signing.KID, cfg.Signing.Key)
	} else {
		slog.Warn("no signing key configured, generating ephemeral dev key", "kid", cfg.Signing.KID)
		signer, err = pass.GenerateSigner(cfg.Signing.KID)
	}
	if err != nil {
		return nil, nil, err
	}

	keys := cfg.Signing.PublicKeys
	if len(keys) == 0 {
		keys = map[string]string{signer.KID(): signer.PublicKey()}
	}
	verifier, err := pass.NewVerifier(keys)
	if err != nil {
		return nil, nil, err
	}
	return signer, verifier, nil
}
