package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
	"github.com/onepass-ch/onepass-sub008/internal/core/pass"
	"github.com/onepass-ch/onepass-sub008/internal/core/usecases"
)

// --- Mock PassRepository (stateful, map-backed) ---

type mockPassRepo struct {
	passes map[string]domain.Pass
}

func newMockPassRepo() *mockPassRepo {
	return &mockPassRepo{passes: make(map[string]domain.Pass)}
}

func (m *mockPassRepo) Upsert(ctx context.Context, p *domain.Pass) error {
	m.passes[p.UID] = *p
	return nil
}

func (m *mockPassRepo) GetByUID(ctx context.Context, uid string) (*domain.Pass, error) {
	p, ok := m.passes[uid]
	if !ok {
		return nil, fmt.Errorf("pass %s not found", uid)
	}
	return &p, nil
}

func (m *mockPassRepo) MarkScanned(ctx context.Context, uid string, at time.Time) error {
	p, ok := m.passes[uid]
	if !ok {
		return fmt.Errorf("pass %s not found", uid)
	}
	ts := at.Unix()
	p.LastScannedAt = &ts
	m.passes[uid] = p
	return nil
}

func (m *mockPassRepo) Revoke(ctx context.Context, uid string, at time.Time) error {
	p, ok := m.passes[uid]
	if !ok {
		return fmt.Errorf("pass %s not found", uid)
	}
	ts := at.Unix()
	p.RevokedAt = &ts
	p.Active = false
	m.passes[uid] = p
	return nil
}

type mockScanRepo struct {
	inserted []domain.ScanEvent
}

func (m *mockScanRepo) Insert(ctx context.Context, scan *domain.ScanEvent) error {
	m.inserted = append(m.inserted, *scan)
	return nil
}

func (m *mockScanRepo) RecentByEvent(ctx context.Context, eventID string, limit int) ([]domain.ScanEvent, error) {
	return m.inserted, nil
}

type mockPublisher struct {
	issued  []string
	revoked []string
	scans   []domain.ScanEvent
}

func (m *mockPublisher) PublishScan(ctx context.Context, scan *domain.ScanEvent) error {
	m.scans = append(m.scans, *scan)
	return nil
}

func (m *mockPublisher) PublishPassIssued(ctx context.Context, p *domain.Pass) error {
	m.issued = append(m.issued, p.UID)
	return nil
}

func (m *mockPublisher) PublishPassRevoked(ctx context.Context, uid string) error {
	m.revoked = append(m.revoked, uid)
	return nil
}

func (m *mockPublisher) PublishBroadcast(ctx context.Context, data []byte) error { return nil }

// --- Helpers ---

var fixedNow = time.Date(2025, 6, 15, 20, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*usecases.PassService, *mockPassRepo, *mockScanRepo, *mockPublisher) {
	t.Helper()
	signer, err := pass.GenerateSigner("k1")
	if err != nil {
		t.Fatal(err)
	}
	verifier, err := pass.NewVerifier(map[string]string{"k1": signer.PublicKey()})
	if err != nil {
		t.Fatal(err)
	}
	passes := newMockPassRepo()
	scans := &mockScanRepo{}
	pub := &mockPublisher{}
	svc := usecases.NewPassService(passes, scans, signer, verifier, pub, func() time.Time { return fixedNow })
	return svc, passes, scans, pub
}

// --- Tests ---

func TestPassService_Issue(t *testing.T) {
	svc, repo, _, pub := newTestService(t)

	p, err := svc.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.UID != "user-1" {
		t.Errorf("expected uid user-1, got %q", p.UID)
	}
	if p.KID != "k1" {
		t.Errorf("expected kid k1, got %q", p.KID)
	}
	if p.IssuedAt != fixedNow.Unix() {
		t.Errorf("expected issuedAt %d, got %d", fixedNow.Unix(), p.IssuedAt)
	}
	if !p.Active || p.Version != 1 {
		t.Errorf("expected active v1 pass, got active=%v version=%d", p.Active, p.Version)
	}
	if p.Signature == "" {
		t.Error("expected a signature")
	}

	if _, ok := repo.passes["user-1"]; !ok {
		t.Error("expected pass persisted")
	}
	if len(pub.issued) != 1 || pub.issued[0] != "user-1" {
		t.Errorf("expected issued event for user-1, got %v", pub.issued)
	}
}

func TestPassService_Issue_EmptyUID(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, err := svc.Issue(context.Background(), ""); err == nil {
		t.Error("expected error for empty uid")
	}
}

func TestPassService_TokenRoundTrip(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	p, err := svc.Issue(context.Background(), "user-2")
	if err != nil {
		t.Fatal(err)
	}

	token := svc.Token(p)
	if !strings.HasPrefix(token, "onepass:user:v1.") {
		t.Fatalf("token missing prefix: %q", token)
	}

	decoded, err := svc.DecodeToken(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.UID != "user-2" || decoded.KID != "k1" {
		t.Errorf("decoded wrong pass: %+v", decoded)
	}
}

func TestPassService_DecodeToken_Incomplete(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	// Shape-valid token with iat zero: decodes but fails completeness.
	token := pass.Encode(domain.Pass{UID: "u", KID: "k1", Signature: "c2ln"})

	decoded, err := svc.DecodeToken(token)
	if !errors.Is(err, usecases.ErrPassIncomplete) {
		t.Fatalf("expected ErrPassIncomplete, got %v", err)
	}
	if decoded.UID != "u" {
		t.Errorf("expected decoded value alongside the error, got %+v", decoded)
	}
}

func TestPassService_VerifyToken_Valid(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Issue(ctx, "user-3")
	if err != nil {
		t.Fatal(err)
	}

	stored, err := svc.VerifyToken(ctx, svc.Token(p))
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if stored.UID != "user-3" {
		t.Errorf("expected user-3, got %q", stored.UID)
	}
}

func TestPassService_VerifyToken_Tampered(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Issue(ctx, "user-4")
	if err != nil {
		t.Fatal(err)
	}

	// Re-encode with a different uid but the original signature.
	forged := *p
	forged.UID = "someone-else"
	if _, err := svc.VerifyToken(ctx, pass.Encode(forged)); !errors.Is(err, pass.ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestPassService_VerifyToken_Revoked(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Issue(ctx, "user-5")
	if err != nil {
		t.Fatal(err)
	}
	token := svc.Token(p)

	if err := svc.Revoke(ctx, "user-5"); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.VerifyToken(ctx, token); !errors.Is(err, usecases.ErrPassRevoked) {
		t.Fatalf("expected ErrPassRevoked, got %v", err)
	}
}

func TestPassService_RecordScan_Accepted(t *testing.T) {
	svc, repo, scans, pub := newTestService(t)
	ctx := context.Background()

	p, err := svc.Issue(ctx, "user-6")
	if err != nil {
		t.Fatal(err)
	}

	scan, err := svc.RecordScan(ctx, svc.Token(p), "event-1", "door-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scan.Result != domain.ScanAccepted {
		t.Fatalf("expected accepted, got %s", scan.Result)
	}
	if scan.PassUID != "user-6" || scan.EventID != "event-1" || scan.DeviceID != "door-2" {
		t.Errorf("scan fields wrong: %+v", scan)
	}
	if scan.ID == "" {
		t.Error("expected generated scan id")
	}

	stored := repo.passes["user-6"]
	if stored.LastScannedAt == nil || *stored.LastScannedAt != fixedNow.Unix() {
		t.Error("expected last_scanned_at stamped")
	}
	if len(scans.inserted) != 1 {
		t.Errorf("expected 1 stored scan, got %d", len(scans.inserted))
	}
	if len(pub.scans) != 1 {
		t.Errorf("expected 1 published scan, got %d", len(pub.scans))
	}
}

func TestPassService_RecordScan_Revoked(t *testing.T) {
	svc, repo, scans, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Issue(ctx, "user-7")
	if err != nil {
		t.Fatal(err)
	}
	token := svc.Token(p)
	if err := svc.Revoke(ctx, "user-7"); err != nil {
		t.Fatal(err)
	}

	scan, err := svc.RecordScan(ctx, token, "event-1", "door-2")
	if !errors.Is(err, usecases.ErrPassRevoked) {
		t.Fatalf("expected ErrPassRevoked alongside scan, got %v", err)
	}
	if scan.Result != domain.ScanRevoked {
		t.Errorf("expected revoked result, got %s", scan.Result)
	}
	if scan.PassUID != "user-7" {
		t.Errorf("expected uid on revoked scan, got %q", scan.PassUID)
	}

	// Revoked scans never stamp the pass.
	stored := repo.passes["user-7"]
	if stored.LastScannedAt != nil {
		t.Error("revoked scan must not stamp last_scanned_at")
	}
	if len(scans.inserted) != 1 {
		t.Errorf("expected failed scan recorded, got %d", len(scans.inserted))
	}
}

func TestPassService_RecordScan_Malformed(t *testing.T) {
	svc, _, scans, _ := newTestService(t)

	scan, err := svc.RecordScan(context.Background(), "not a token", "event-1", "door-2")
	if err == nil {
		t.Fatal("expected decode error alongside scan")
	}
	if scan.Result != domain.ScanMalformed {
		t.Errorf("expected malformed, got %s", scan.Result)
	}
	if scan.PassUID != "" {
		t.Errorf("malformed scan must not carry a uid, got %q", scan.PassUID)
	}
	if len(scans.inserted) != 1 {
		t.Errorf("expected malformed scan recorded, got %d", len(scans.inserted))
	}
}

func TestPassService_RecordScan_BadSignature(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Issue(ctx, "user-8")
	if err != nil {
		t.Fatal(err)
	}
	forged := *p
	forged.UID = "intruder"

	scan, err := svc.RecordScan(ctx, pass.Encode(forged), "event-1", "door-2")
	if !errors.Is(err, pass.ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
	if scan.Result != domain.ScanBadSig {
		t.Errorf("expected bad_signature, got %s", scan.Result)
	}
}

func TestPassService_Revoke_Publishes(t *testing.T) {
	svc, _, _, pub := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Issue(ctx, "user-9"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Revoke(ctx, "user-9"); err != nil {
		t.Fatal(err)
	}
	if len(pub.revoked) != 1 || pub.revoked[0] != "user-9" {
		t.Errorf("expected revocation published, got %v", pub.revoked)
	}
}
