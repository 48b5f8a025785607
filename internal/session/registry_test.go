package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"campustrack/internal/identity"
)

const testKey = "test-signing-secret"

func seededStore(t *testing.T) identity.Store {
	t.Helper()
	ctx := context.Background()
	store := identity.NewMemoryStore()
	if _, err := store.Register(ctx, identity.Identity{
		FullName:         "Prof Smith",
		Email:            "prof.smith@u.edu",
		Role:             identity.RoleTeacher,
		RFIDTag:          "RFID_TEACHER_001",
		FingerprintToken: "teacher_fingerprint_1",
		Teacher:          &identity.TeacherDetails{StaffID: "STF001", Designation: "Lecturer"},
	}); err != nil {
		t.Fatalf("register teacher: %v", err)
	}
	if _, err := store.Register(ctx, identity.Identity{
		FullName:         "Alice Johnson",
		Email:            "a@u.edu",
		Role:             identity.RoleStudent,
		RFIDTag:          "R1",
		FingerprintToken: "F1",
		Student:          &identity.StudentDetails{MatricNumber: "X1", Faculty: "computing", Department: "cs"},
	}); err != nil {
		t.Fatalf("register student: %v", err)
	}
	return store
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(seededStore(t), NewMemoryTokenSet(), "campustrack", testKey, time.Hour)

	token, teacher, err := registry.Login(ctx, "prof.smith@u.edu", "teacher_fingerprint_1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if teacher.Role != identity.RoleTeacher {
		t.Fatalf("expected teacher identity, got %s", teacher.Role)
	}

	claims, err := registry.Verify(ctx, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.IdentityID != teacher.ID || claims.Email != teacher.Email || claims.Role != identity.RoleTeacher {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestLoginRejectsStudentsRegardlessOfCredentials(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(seededStore(t), NewMemoryTokenSet(), "campustrack", testKey, time.Hour)

	// Correct email and fingerprint, wrong role.
	if _, _, err := registry.Login(ctx, "a@u.edu", "F1"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("student login: expected ErrUnauthenticated, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(seededStore(t), NewMemoryTokenSet(), "campustrack", testKey, time.Hour)

	if _, _, err := registry.Login(ctx, "prof.smith@u.edu", "wrong"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("wrong fingerprint: expected ErrUnauthenticated, got %v", err)
	}
	if _, _, err := registry.Login(ctx, "ghost@u.edu", "teacher_fingerprint_1"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("unknown email: expected ErrUnauthenticated, got %v", err)
	}
}

func TestRevokeTakesEffectBeforeExpiry(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(seededStore(t), NewMemoryTokenSet(), "campustrack", testKey, time.Hour)

	token, _, err := registry.Login(ctx, "prof.smith@u.edu", "teacher_fingerprint_1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := registry.Revoke(ctx, token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	// The signed expiry is an hour away, but the active set no longer holds it.
	if _, err := registry.Verify(ctx, token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("revoked token: expected ErrUnauthenticated, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	ctx := context.Background()
	tokens := NewMemoryTokenSet()
	registry := NewRegistry(seededStore(t), tokens, "campustrack", testKey, time.Hour)

	// Craft a token that is already past its signed expiry and force it into
	// the active set, as if the registry entry outlived the signature.
	expired, _, err := sign("id-1", "prof.smith@u.edu", identity.RoleTeacher, "campustrack", testKey, -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := tokens.Add(ctx, expired, time.Hour); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := registry.Verify(ctx, expired); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expired token: expected ErrUnauthenticated, got %v", err)
	}
	// Failed signature checks drop the token from the active set.
	active, err := tokens.Has(ctx, expired)
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if active {
		t.Fatalf("expired token should have been removed from the active set")
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	ctx := context.Background()
	tokens := NewMemoryTokenSet()
	registry := NewRegistry(seededStore(t), tokens, "campustrack", testKey, time.Hour)

	forged, _, err := sign("id-1", "prof.smith@u.edu", identity.RoleTeacher, "campustrack", "other-key", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := tokens.Add(ctx, forged, time.Hour); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := registry.Verify(ctx, forged); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("forged token: expected ErrUnauthenticated, got %v", err)
	}
}

func TestVerifyRejectsUnknownToken(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(seededStore(t), NewMemoryTokenSet(), "campustrack", testKey, time.Hour)

	// Well-signed but never issued through Login, so not in the active set.
	stray, _, err := sign("id-1", "prof.smith@u.edu", identity.RoleTeacher, "campustrack", testKey, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := registry.Verify(ctx, stray); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("stray token: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := registry.Verify(ctx, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("empty token: expected ErrUnauthenticated, got %v", err)
	}
}

func TestMemoryTokenSetExpiry(t *testing.T) {
	ctx := context.Background()
	tokens := NewMemoryTokenSet()

	if err := tokens.Add(ctx, "tok", time.Nanosecond); err != nil {
		t.Fatalf("add: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	active, err := tokens.Has(ctx, "tok")
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if active {
		t.Fatalf("expected passive expiry to drop the token")
	}
}
