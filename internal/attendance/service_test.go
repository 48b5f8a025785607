package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"campustrack/internal/identity"
)

func registerStudent(t *testing.T, store identity.Store) identity.Identity {
	t.Helper()
	registered, err := store.Register(context.Background(), identity.Identity{
		FullName:         "Alice Johnson",
		Email:            "a@u.edu",
		Role:             identity.RoleStudent,
		RFIDTag:          "R1",
		FingerprintToken: "F1",
		Student: &identity.StudentDetails{
			MatricNumber: "X1",
			Faculty:      "computing",
			Department:   "cs",
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return registered
}

func newTestService(t *testing.T) (*Service, identity.Store, *MemoryLedger) {
	t.Helper()
	store := identity.NewMemoryStore()
	ledger := NewMemoryLedger()
	return NewService(store, ledger, NewMemoryDevices()), store, ledger
}

func TestVerifyDualAccept(t *testing.T) {
	ctx := context.Background()
	svc, store, ledger := newTestService(t)
	registered := registerStudent(t, store)

	result, err := svc.VerifyDual(ctx, DualRequest{
		RFIDTag:          "R1",
		FingerprintToken: "F1",
		Action:           ActionEntry,
		Location:         "Computer Lab",
	})
	if err != nil {
		t.Fatalf("verify dual: %v", err)
	}
	if result.Identity.ID != registered.ID {
		t.Fatalf("expected identity %s, got %s", registered.ID, result.Identity.ID)
	}

	events, total, err := ledger.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 1 || len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d", total)
	}
	evt := events[0]
	if !evt.Verified {
		t.Fatalf("expected verified event")
	}
	if evt.IdentityID == nil || *evt.IdentityID != registered.ID {
		t.Fatalf("expected event attributed to %s, got %v", registered.ID, evt.IdentityID)
	}
	if evt.Action != ActionEntry || evt.Location != "Computer Lab" {
		t.Fatalf("unexpected event details: %+v", evt)
	}
}

func TestVerifyDualFingerprintMismatch(t *testing.T) {
	ctx := context.Background()
	svc, store, ledger := newTestService(t)
	registerStudent(t, store)

	_, err := svc.VerifyDual(ctx, DualRequest{
		RFIDTag:          "R1",
		FingerprintToken: "WRONG",
	})
	if !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected ErrFingerprintMismatch, got %v", err)
	}

	events, total, err := ledger.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected one audit event, got %d", total)
	}
	evt := events[0]
	if evt.Verified {
		t.Fatalf("mismatch event must be unverified")
	}
	if evt.IdentityID != nil {
		t.Fatalf("mismatch event must not be attributed to the cardholder, got %v", *evt.IdentityID)
	}
	if evt.FailureReason != ReasonFingerprintMismatch {
		t.Fatalf("expected reason %s, got %s", ReasonFingerprintMismatch, evt.FailureReason)
	}
}

func TestVerifyDualUnregisteredRFID(t *testing.T) {
	ctx := context.Background()
	svc, _, ledger := newTestService(t)

	_, err := svc.VerifyDual(ctx, DualRequest{RFIDTag: "GHOST", FingerprintToken: "F1"})
	if !errors.Is(err, ErrRFIDNotRegistered) {
		t.Fatalf("expected ErrRFIDNotRegistered, got %v", err)
	}

	events, _, err := ledger.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected audit event for unregistered rfid, got %d", len(events))
	}
	if events[0].IdentityID != nil || events[0].FailureReason != ReasonRFIDNotRegistered {
		t.Fatalf("unexpected audit event: %+v", events[0])
	}
}

func TestLogFromDeviceAlwaysAccepts(t *testing.T) {
	ctx := context.Background()
	svc, store, ledger := newTestService(t)
	registered := registerStudent(t, store)

	result, err := svc.LogFromDevice(ctx, "R1", "ESP32_001", nil)
	if err != nil {
		t.Fatalf("log from device: %v", err)
	}
	if result.Action != ActionEntry {
		t.Fatalf("device events are entries, got %s", result.Action)
	}
	if result.Location != "ESP32_001" {
		t.Fatalf("expected device id as location, got %s", result.Location)
	}

	events, _, err := ledger.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 || !events[0].Verified {
		t.Fatalf("expected one verified event, got %+v", events)
	}
	if events[0].IdentityID == nil || *events[0].IdentityID != registered.ID {
		t.Fatalf("expected attribution to %s", registered.ID)
	}
}

func TestLogFromDeviceExplicitTimestamp(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	registerStudent(t, store)

	when := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)
	millis := when.UnixMilli()
	result, err := svc.LogFromDevice(ctx, "R1", "", &millis)
	if err != nil {
		t.Fatalf("log from device: %v", err)
	}
	if !result.Timestamp.Equal(when) {
		t.Fatalf("expected caller timestamp %v, got %v", when, result.Timestamp)
	}
	if result.Location != "Unknown Device" {
		t.Fatalf("expected fallback location, got %s", result.Location)
	}
}

func TestLogFromDeviceUnknownRFID(t *testing.T) {
	ctx := context.Background()
	svc, _, ledger := newTestService(t)

	_, err := svc.LogFromDevice(ctx, "GHOST", "ESP32_001", nil)
	if !errors.Is(err, ErrRFIDNotRegistered) {
		t.Fatalf("expected ErrRFIDNotRegistered, got %v", err)
	}
	if _, total, _ := ledger.Query(ctx, Filter{}); total != 0 {
		t.Fatalf("device path appends nothing on unknown rfid, got %d events", total)
	}
}

func TestLookupRFID(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	registered := registerStudent(t, store)

	owner, err := svc.LookupRFID(ctx, "R1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if owner.ID != registered.ID || owner.FingerprintToken != "F1" {
		t.Fatalf("expected full identity with fingerprint token, got %+v", owner)
	}

	if _, err := svc.LookupRFID(ctx, "GHOST"); !errors.Is(err, ErrRFIDNotRegistered) {
		t.Fatalf("expected ErrRFIDNotRegistered, got %v", err)
	}
}
