package postgres

import (
	"context"
	"time"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
)

// PassRepo implements ports.PassRepository with pgx. One row per user;
// timestamps are stored as unix seconds to match the pass document contract.
type PassRepo struct {
	db *DB
}

// NewPassRepo creates a new PassRepo.
func NewPassRepo(db *DB) *PassRepo {
	return &PassRepo{db: db}
}

// Upsert stores a pass, replacing any previous pass for the same uid.
// Re-issuing clears revocation and scan state.
func (r *PassRepo) Upsert(ctx context.Context, p *domain.Pass) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO passes (uid, kid, issued_at, active, version, signature)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (uid) DO UPDATE
		SET kid = EXCLUDED.kid, issued_at = EXCLUDED.issued_at,
		    active = EXCLUDED.active, version = EXCLUDED.version,
		    signature = EXCLUDED.signature,
		    last_scanned_at = NULL, revoked_at = NULL
	`, p.UID, p.KID, p.IssuedAt, p.Active, p.Version, p.Signature)
	return err
}

// GetByUID returns the pass for a user.
func (r *PassRepo) GetByUID(ctx context.Context, uid string) (*domain.Pass, error) {
	var p domain.Pass
	err := r.db.Pool.QueryRow(ctx, `
		SELECT uid, kid, issued_at, last_scanned_at, active, version, revoked_at, signature
		FROM passes WHERE uid = $1
	`, uid).Scan(
		&p.UID, &p.KID, &p.IssuedAt, &p.LastScannedAt,
		&p.Active, &p.Version, &p.RevokedAt, &p.Signature,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkScanned stamps the pass's last scan time.
func (r *PassRepo) MarkScanned(ctx context.Context, uid string, at time.Time) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE passes SET last_scanned_at = $2 WHERE uid = $1
	`, uid, at.Unix())
	return err
}

// Revoke deactivates a pass and records when.
func (r *PassRepo) Revoke(ctx context.Context, uid string, at time.Time) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE passes SET active = false, revoked_at = $2 WHERE uid = $1
	`, uid, at.Unix())
	return err
}
