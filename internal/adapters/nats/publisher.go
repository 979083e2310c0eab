package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
)

// Subjects and streams carrying pass traffic.
const (
	SubjectScanPrefix  = "onepass.scan." // + scan result
	SubjectPassIssued  = "onepass.pass.issued"
	SubjectPassRevoked = "onepass.pass.revoked"
	SubjectBroadcast   = "onepass.updates.broadcast"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "PASS_SCANS",
			Subjects:  []string{"onepass.scan.>"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "PASS_LIFECYCLE",
			Subjects:  []string{"onepass.pass.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist — try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishScan(ctx context.Context, scan *domain.ScanEvent) error {
	data, err := json.Marshal(scan)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectScanPrefix+string(scan.Result), data)
	return err
}

func (p *Publisher) PublishPassIssued(ctx context.Context, pass *domain.Pass) error {
	data, err := json.Marshal(pass)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectPassIssued, data)
	return err
}

func (p *Publisher) PublishPassRevoked(ctx context.Context, uid string) error {
	_, err := p.js.Publish(SubjectPassRevoked, []byte(uid))
	return err
}

func (p *Publisher) PublishBroadcast(ctx context.Context, data []byte) error {
	return p.conn.Publish(SubjectBroadcast, data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
