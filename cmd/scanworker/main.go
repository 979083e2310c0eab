package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/onepass-ch/onepass-sub008/internal/adapters/nats"
	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
	"github.com/onepass-ch/onepass-sub008/internal/pkg/config"
	"github.com/onepass-ch/onepass-sub008/internal/pkg/logging"
)

// The scan worker consumes door scans from JetStream, keeps per-event
// attendance counters, and rebroadcasts compact updates for live dashboards.

func main() {
	cfg, err := config.Load("onepass-scanworker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup("info", "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	// Separate plain connection for broadcast fan-out
	bc, err := nats.Connect(cfg.NATS.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		log.Fatalf("nats broadcast conn: %v", err)
	}
	defer bc.Drain()

	err = sub.SubscribeScans(ctx, func(ctx context.Context, scan *domain.ScanEvent) error {
		if err := applyScan(ctx, pool, scan); err != nil {
			slog.Error("apply scan", "scan", scan.ID, "error", err)
			return err
		}

		update, _ := json.Marshal(map[string]any{
			"type":     "scan",
			"event_id": scan.EventID,
			"result":   scan.Result,
			"time":     scan.Time,
		})
		_ = bc.Publish(natsadapter.SubjectBroadcast, update)

		slog.Info("scan applied", "scan", scan.ID, "event", scan.EventID, "result", scan.Result)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe scans: %v", err)
	}

	err = sub.SubscribePassRevocations(ctx, func(ctx context.Context, uid string) error {
		update, _ := json.Marshal(map[string]any{
			"type": "revocation",
			"uid":  uid,
		})
		_ = bc.Publish(natsadapter.SubjectBroadcast, update)
		slog.Info("revocation broadcast", "uid", uid)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe revocations: %v", err)
	}

	slog.Info("scan worker running", "nats", cfg.NATS.URL)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down scan worker", "signal", sig.String())
	cancel()
	time.Sleep(2 * time.Second)
}

// applyScan bumps the attendance counters for the scan's event. Scans
// without an event id (ad-hoc verification) have nothing to count.
func applyScan(ctx context.Context, pool *pgxpool.Pool, scan *domain.ScanEvent) error {
	if scan.EventID == "" {
		return nil
	}

	accepted := 0
	rejected := 0
	if scan.Result == domain.ScanAccepted {
		accepted = 1
	} else {
		rejected = 1
	}

	_, err := pool.Exec(ctx, `
		INSERT INTO event_attendance (event_id, accepted, rejected, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (event_id) DO UPDATE SET
			accepted = event_attendance.accepted + EXCLUDED.accepted,
			rejected = event_attendance.rejected + EXCLUDED.rejected,
			updated_at = now()
	`, scan.EventID, accepted, rejected)
	return err
}
