package pass

import (
	"time"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
)

// Status values shown next to a pass.
const (
	StatusActive   = "Active"
	StatusRevoked  = "Revoked"
	StatusInactive = "Inactive"
)

// StatusText derives the display status from the pass's active/revoked state.
// Revocation wins over the active flag.
func StatusText(p domain.Pass) string {
	switch {
	case p.Revoked():
		return StatusRevoked
	case p.Active:
		return StatusActive
	default:
		return StatusInactive
	}
}

// FormatIssuedAt renders the issue time as a human-readable UTC date, or ""
// when the pass has no issue time.
func FormatIssuedAt(p domain.Pass) string {
	if p.IssuedAt <= 0 {
		return ""
	}
	return time.Unix(p.IssuedAt, 0).UTC().Format("Jan 2, 2006 15:04")
}

// FormatLastScanned renders the last scan time relative to now ("5m ago"),
// or "never" when the pass has not been scanned. The caller supplies now so
// output stays reproducible.
func FormatLastScanned(p domain.Pass, now time.Time) string {
	if p.LastScannedAt == nil || *p.LastScannedAt <= 0 {
		return "never"
	}
	d := now.Sub(time.Unix(*p.LastScannedAt, 0))
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return d.Truncate(time.Minute).String() + " ago"
	case d < 24*time.Hour:
		return d.Truncate(time.Hour).String() + " ago"
	default:
		return time.Unix(*p.LastScannedAt, 0).UTC().Format("Jan 2, 2006")
	}
}
