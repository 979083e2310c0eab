package main

import (
	"context"
	"log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/onepass-ch/onepass-sub008/internal/adapters/nats"
	"github.com/onepass-ch/onepass-sub008/internal/adapters/postgres"
	"github.com/onepass-ch/onepass-sub008/internal/core/pass"
	"github.com/onepass-ch/onepass-sub008/internal/core/usecases"
	"github.com/onepass-ch/onepass-sub008/internal/pkg/config"
	"github.com/onepass-ch/onepass-sub008/internal/workflows"
)

func main() {
	cfg, err := config.Load("onepass-issuer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	signer, err := pass.NewSigner(cfg.Signing.KID, cfg.Signing.Key)
	if err != nil {
		log.Fatalf("signing key: %v", err)
	}
	verifier, err := pass.NewVerifier(cfg.Signing.PublicKeys)
	if err != nil {
		log.Fatalf("public keys: %v", err)
	}

	passSvc := usecases.NewPassService(
		postgres.NewPassRepo(db),
		postgres.NewScanRepo(db),
		signer, verifier, pub, nil,
	)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.IssuanceWorkflow)
	w.RegisterActivity(&workflows.IssuanceActivities{
		Passes: passSvc,
		// Notifier stays nil until the push gateway ships; delivery then
		// logs instead of pushing.
	})

	log.Println("issuer worker started")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
