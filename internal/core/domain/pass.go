package domain

// Pass is a server-issued entry token held by a user and displayed as a QR
// code. Field names and seconds-based timestamps mirror the backend pass
// document and must not change; they are an external contract with clients.
type Pass struct {
	UID           string `json:"uid"`
	KID           string `json:"kid"`
	IssuedAt      int64  `json:"issuedAt"`
	LastScannedAt *int64 `json:"lastScannedAt,omitempty"`
	Active        bool   `json:"active"`
	Version       int    `json:"version"`
	RevokedAt     *int64 `json:"revokedAt,omitempty"`
	Signature     string `json:"signature"`
}

// Revoked reports whether the pass has been revoked.
func (p Pass) Revoked() bool {
	return p.RevokedAt != nil && *p.RevokedAt > 0
}
