package postgres

import (
	"context"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
)

// ScanRepo implements ports.ScanRepository with pgx.
type ScanRepo struct {
	db *DB
}

// NewScanRepo creates a new ScanRepo.
func NewScanRepo(db *DB) *ScanRepo {
	return &ScanRepo{db: db}
}

// Insert stores a scan event.
func (r *ScanRepo) Insert(ctx context.Context, scan *domain.ScanEvent) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO scan_events (id, time, pass_uid, event_id, device_id, result, metadata)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, '')::uuid, NULLIF($5, ''), $6, $7)
	`, scan.ID, scan.Time, scan.PassUID, scan.EventID, scan.DeviceID, scan.Result, scan.Metadata)
	return err
}

// RecentByEvent returns the latest scans at an event, newest first.
func (r *ScanRepo) RecentByEvent(ctx context.Context, eventID string, limit int) ([]domain.ScanEvent, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, time, COALESCE(pass_uid, ''), COALESCE(event_id::text, ''),
		       COALESCE(device_id, ''), result, COALESCE(metadata, '{}')
		FROM scan_events
		WHERE event_id = $1
		ORDER BY time DESC
		LIMIT $2
	`, eventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scans []domain.ScanEvent
	for rows.Next() {
		var s domain.ScanEvent
		if err := rows.Scan(
			&s.ID, &s.Time, &s.PassUID, &s.EventID,
			&s.DeviceID, &s.Result, &s.Metadata,
		); err != nil {
			return nil, err
		}
		scans = append(scans, s)
	}
	return scans, rows.Err()
}
