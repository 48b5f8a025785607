package attendance

import (
	"errors"
	"time"
)

// Actions recorded on an attendance event.
const (
	ActionEntry = "ENTRY"
	ActionExit  = "EXIT"
)

// Failure reasons stored on unverified events.
const (
	ReasonRFIDNotRegistered   = "RFID_NOT_REGISTERED"
	ReasonFingerprintMismatch = "FINGERPRINT_MISMATCH"
)

var (
	// ErrRFIDNotRegistered means the presented tag resolves to no identity.
	ErrRFIDNotRegistered = errors.New("attendance: rfid card not registered")
	// ErrFingerprintMismatch means the presented fingerprint token does not
	// belong to the RFID card owner.
	ErrFingerprintMismatch = errors.New("attendance: fingerprint does not match rfid card owner")
)

// Event is one verification outcome, successful or not. Events are append
// only and never mutated. IdentityID is nil on rejected attempts: a
// mismatched fingerprint is never attributed to the cardholder.
type Event struct {
	ID            string    `json:"id"`
	IdentityID    *string   `json:"identityId"`
	RFIDTag       string    `json:"rfidTag"`
	Action        string    `json:"action"`
	Location      string    `json:"location"`
	DeviceID      string    `json:"deviceId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Verified      bool      `json:"verified"`
	FailureReason string    `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Device is a registered reader.
type Device struct {
	DeviceID   string     `json:"device_id"`
	DeviceType string     `json:"device_type,omitempty"`
	Location   string     `json:"location,omitempty"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// dayRange returns the half-open [start, end) interval of t's calendar day
// in t's location.
func dayRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
