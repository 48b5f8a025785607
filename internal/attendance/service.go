package attendance

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"campustrack/internal/identity"
)

var verifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "campustrack_verifications_total",
	Help: "Verification attempts by flow and outcome.",
}, []string{"flow", "outcome"})

// webClientDevice marks events originating from the browser dashboard flow.
const webClientDevice = "WEB_CLIENT"

// unknownDevice is the fallback location for readers that do not send one.
const unknownDevice = "Unknown Device"

// Service is the verification engine: it resolves presented credentials to a
// registered identity and records every outcome in the ledger.
type Service struct {
	identities identity.Store
	ledger     Ledger
	devices    DeviceStore
}

// NewService creates a verification service.
func NewService(identities identity.Store, ledger Ledger, devices DeviceStore) *Service {
	return &Service{identities: identities, ledger: ledger, devices: devices}
}

// DualRequest carries the browser dashboard verification inputs.
type DualRequest struct {
	RFIDTag          string
	FingerprintToken string
	Action           string
	Location         string
}

// Result summarizes an accepted or rejected verification.
type Result struct {
	Identity  identity.Summary
	Action    string
	Location  string
	Timestamp time.Time
	Event     Event
}

// VerifyDual checks an RFID tag together with a fingerprint token. Rejected
// attempts are still appended to the ledger, unverified and with no identity
// attribution: a mismatched fingerprint must not create an attendance record
// against the cardholder.
func (s *Service) VerifyDual(ctx context.Context, req DualRequest) (Result, error) {
	action := req.Action
	if action != ActionEntry && action != ActionExit {
		action = ActionEntry
	}
	location := req.Location
	if location == "" {
		location = "Unknown"
	}

	owner, err := s.identities.FindByRFID(ctx, req.RFIDTag)
	if err != nil {
		return Result{}, err
	}
	if owner == nil {
		evt, err := s.reject(ctx, req.RFIDTag, action, location, ReasonRFIDNotRegistered)
		if err != nil {
			return Result{}, err
		}
		verifications.WithLabelValues("dual", "rejected").Inc()
		return Result{Event: evt}, ErrRFIDNotRegistered
	}
	if owner.FingerprintToken != req.FingerprintToken {
		evt, err := s.reject(ctx, req.RFIDTag, action, location, ReasonFingerprintMismatch)
		if err != nil {
			return Result{}, err
		}
		verifications.WithLabelValues("dual", "rejected").Inc()
		return Result{Event: evt}, ErrFingerprintMismatch
	}

	evt, err := s.ledger.Append(ctx, Event{
		IdentityID: &owner.ID,
		RFIDTag:    req.RFIDTag,
		Action:     action,
		Location:   location,
		DeviceID:   webClientDevice,
		Verified:   true,
	})
	if err != nil {
		return Result{}, err
	}
	verifications.WithLabelValues("dual", "accepted").Inc()
	return Result{
		Identity:  identity.Summarize(*owner),
		Action:    action,
		Location:  location,
		Timestamp: evt.Timestamp,
		Event:     evt,
	}, nil
}

func (s *Service) reject(ctx context.Context, rfidTag, action, location, reason string) (Event, error) {
	return s.ledger.Append(ctx, Event{
		RFIDTag:       rfidTag,
		Action:        action,
		Location:      location,
		DeviceID:      webClientDevice,
		Verified:      false,
		FailureReason: reason,
	})
}

// LogFromDevice records an attendance event from an embedded reader. The
// reader performs its own local factor check before calling, so a resolved
// RFID tag is always accepted; do not add a fingerprint requirement here,
// the device has nothing to send.
func (s *Service) LogFromDevice(ctx context.Context, rfidTag, deviceID string, timestampMillis *int64) (Result, error) {
	owner, err := s.identities.FindByRFID(ctx, rfidTag)
	if err != nil {
		return Result{}, err
	}
	if owner == nil {
		verifications.WithLabelValues("device", "rejected").Inc()
		return Result{}, ErrRFIDNotRegistered
	}

	location := deviceID
	if location == "" {
		location = unknownDevice
	}
	var when time.Time
	if timestampMillis != nil {
		when = time.UnixMilli(*timestampMillis)
	}

	evt, err := s.ledger.Append(ctx, Event{
		IdentityID: &owner.ID,
		RFIDTag:    rfidTag,
		Action:     ActionEntry,
		Location:   location,
		DeviceID:   deviceID,
		Timestamp:  when,
		Verified:   true,
	})
	if err != nil {
		return Result{}, err
	}
	verifications.WithLabelValues("device", "accepted").Inc()
	return Result{
		Identity:  identity.Summarize(*owner),
		Action:    ActionEntry,
		Location:  location,
		Timestamp: evt.Timestamp,
		Event:     evt,
	}, nil
}

// LookupRFID resolves a tag for the reader pre-check endpoint. The response
// includes the stored fingerprint token so the reader can match locally.
func (s *Service) LookupRFID(ctx context.Context, rfidTag string) (identity.Identity, error) {
	owner, err := s.identities.FindByRFID(ctx, rfidTag)
	if err != nil {
		return identity.Identity{}, err
	}
	if owner == nil {
		return identity.Identity{}, ErrRFIDNotRegistered
	}
	return *owner, nil
}

// RegisterDevice upserts reader metadata.
func (s *Service) RegisterDevice(ctx context.Context, dev Device) error {
	return s.devices.Register(ctx, dev)
}
