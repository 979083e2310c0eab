package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
	"github.com/onepass-ch/onepass-sub008/internal/core/pass"
	"github.com/onepass-ch/onepass-sub008/internal/core/ports"
	"github.com/onepass-ch/onepass-sub008/internal/pkg/metrics"
)

// passVersion is the current pass schema version stamped into new passes.
const passVersion = 1

var (
	// ErrPassRevoked is returned when a scanned pass has been revoked.
	ErrPassRevoked = errors.New("pass has been revoked")
	// ErrPassIncomplete is returned when a decoded pass fails domain validation.
	ErrPassIncomplete = errors.New("pass is incomplete")
)

// PassService issues, verifies, and scans entry passes.
type PassService struct {
	passes    ports.PassRepository
	scans     ports.ScanRepository
	signer    *pass.Signer
	verifier  *pass.Verifier
	publisher ports.EventPublisher
	now       func() time.Time
}

// NewPassService creates a new PassService. now may be nil, defaulting to
// time.Now; tests inject a fixed clock.
func NewPassService(
	passes ports.PassRepository,
	scans ports.ScanRepository,
	signer *pass.Signer,
	verifier *pass.Verifier,
	publisher ports.EventPublisher,
	now func() time.Time,
) *PassService {
	if now == nil {
		now = time.Now
	}
	return &PassService{
		passes:    passes,
		scans:     scans,
		signer:    signer,
		verifier:  verifier,
		publisher: publisher,
		now:       now,
	}
}

// Issue creates, signs, and persists a pass for a user. Re-issuing for the
// same uid replaces the stored pass (version stays at the schema version;
// iat moves forward).
func (s *PassService) Issue(ctx context.Context, uid string) (*domain.Pass, error) {
	if uid == "" {
		return nil, fmt.Errorf("uid must not be empty")
	}

	p := s.signer.Sign(domain.Pass{
		UID:      uid,
		IssuedAt: s.now().Unix(),
		Active:   true,
		Version:  passVersion,
	})

	if err := s.passes.Upsert(ctx, &p); err != nil {
		return nil, fmt.Errorf("store pass: %w", err)
	}

	metrics.PassesIssued.Inc()

	if s.publisher != nil {
		_ = s.publisher.PublishPassIssued(ctx, &p)
	}

	return &p, nil
}

// GetByUID returns the stored pass for a user.
func (s *PassService) GetByUID(ctx context.Context, uid string) (*domain.Pass, error) {
	return s.passes.GetByUID(ctx, uid)
}

// Token renders a stored pass as its QR token text.
func (s *PassService) Token(p *domain.Pass) string {
	return pass.Encode(*p)
}

// DecodeToken parses a scanned QR token. Format errors come back as the
// codec's sentinel errors; a shape-valid but domain-invalid pass comes back
// with ErrPassIncomplete alongside the decoded value so the caller can still
// inspect it.
func (s *PassService) DecodeToken(text string) (domain.Pass, error) {
	p, err := pass.Decode(text)
	if err != nil {
		metrics.DecodeFailures.WithLabelValues(decodeFailureReason(err)).Inc()
		return domain.Pass{}, err
	}
	if !pass.IsComplete(p) {
		metrics.DecodeFailures.WithLabelValues("incomplete").Inc()
		return p, ErrPassIncomplete
	}
	return p, nil
}

// VerifyToken decodes a scanned token and checks its signature and
// revocation state against the stored pass. This is the server-side check
// the scanning device delegates to.
func (s *PassService) VerifyToken(ctx context.Context, text string) (*domain.Pass, error) {
	decoded, err := s.DecodeToken(text)
	if err != nil {
		return nil, err
	}

	if err := s.verifier.Verify(decoded); err != nil {
		return nil, err
	}

	stored, err := s.passes.GetByUID(ctx, decoded.UID)
	if err != nil {
		return nil, fmt.Errorf("load pass %s: %w", decoded.UID, err)
	}
	if stored.Revoked() || !stored.Active {
		return stored, ErrPassRevoked
	}

	return stored, nil
}

// RecordScan verifies a token, stamps the pass's last-scan time, stores the
// scan event, and publishes it. The scan event is recorded for failed
// verifications too, with the matching result code.
func (s *PassService) RecordScan(ctx context.Context, token, eventID, deviceID string) (*domain.ScanEvent, error) {
	now := s.now()

	scan := &domain.ScanEvent{
		ID:       uuid.NewString(),
		Time:     now,
		EventID:  eventID,
		DeviceID: deviceID,
	}

	stored, err := s.VerifyToken(ctx, token)
	switch {
	case err == nil:
		scan.PassUID = stored.UID
		scan.Result = domain.ScanAccepted
	case errors.Is(err, ErrPassRevoked):
		scan.PassUID = stored.UID
		scan.Result = domain.ScanRevoked
	case errors.Is(err, pass.ErrBadSignature), errors.Is(err, pass.ErrUnknownKey):
		scan.Result = domain.ScanBadSig
	default:
		scan.Result = domain.ScanMalformed
	}

	if scan.Result == domain.ScanAccepted {
		if err := s.passes.MarkScanned(ctx, scan.PassUID, now); err != nil {
			return nil, fmt.Errorf("mark scanned: %w", err)
		}
	}

	if insertErr := s.scans.Insert(ctx, scan); insertErr != nil {
		return nil, fmt.Errorf("store scan: %w", insertErr)
	}

	metrics.ScansRecorded.WithLabelValues(string(scan.Result)).Inc()

	if s.publisher != nil {
		_ = s.publisher.PublishScan(ctx, scan)
	}

	if scan.Result != domain.ScanAccepted {
		return scan, err
	}
	return scan, nil
}

// RecentScans returns the most recent scan events for an event.
func (s *PassService) RecentScans(ctx context.Context, eventID string, limit int) ([]domain.ScanEvent, error) {
	return s.scans.RecentByEvent(ctx, eventID, limit)
}

// Revoke marks a pass as revoked and publishes the revocation.
func (s *PassService) Revoke(ctx context.Context, uid string) error {
	if err := s.passes.Revoke(ctx, uid, s.now()); err != nil {
		return fmt.Errorf("revoke pass %s: %w", uid, err)
	}
	if s.publisher != nil {
		_ = s.publisher.PublishPassRevoked(ctx, uid)
	}
	return nil
}

func decodeFailureReason(err error) string {
	switch {
	case errors.Is(err, pass.ErrBadPrefix):
		return "bad_prefix"
	case errors.Is(err, pass.ErrBadTokenFormat):
		return "bad_format"
	case errors.Is(err, pass.ErrEmptySignature):
		return "empty_signature"
	case errors.Is(err, pass.ErrBadSignatureFormat):
		return "bad_signature_format"
	case errors.Is(err, pass.ErrBadPayload):
		return "bad_payload"
	default:
		return "other"
	}
}
