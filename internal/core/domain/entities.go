package domain

import (
	"time"
)

// Organization represents an event organizer (club, society, promoter).
type Organization struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	URL       string    `json:"url,omitempty"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
}

// Venue is a physical location where events take place.
type Venue struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Name           string         `json:"name"`
	Location       GeoPoint       `json:"location"`
	Address        string         `json:"address,omitempty"`
	Capacity       int            `json:"capacity"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Event is a ticketed happening at a venue.
type Event struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	VenueID        string         `json:"venue_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Location       GeoPoint       `json:"location"`
	StartsAt       time.Time      `json:"starts_at"`
	EndsAt         time.Time      `json:"ends_at"`
	Capacity       int            `json:"capacity"`
	Published      bool           `json:"published"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Distance       *float64       `json:"distance,omitempty"` // computed field
	CreatedAt      time.Time      `json:"created_at"`
}

// ScanResult classifies the outcome of scanning a pass at the door.
type ScanResult string

const (
	ScanAccepted  ScanResult = "accepted"
	ScanRevoked   ScanResult = "revoked"
	ScanMalformed ScanResult = "malformed"
	ScanBadSig    ScanResult = "bad_signature"
)

// ScanEvent records one attempt to validate a pass at an event entrance.
type ScanEvent struct {
	ID       string         `json:"id"`
	Time     time.Time      `json:"time"`
	PassUID  string         `json:"pass_uid"`
	EventID  string         `json:"event_id,omitempty"`
	DeviceID string         `json:"device_id,omitempty"`
	Result   ScanResult     `json:"result"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
