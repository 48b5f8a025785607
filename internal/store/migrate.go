package store

import (
	"context"
	"database/sql"
)

// schema creates the tables and unique indexes the repositories rely on.
// The unique indexes on email, rfid_tag, and fingerprint_token are what make
// concurrent registrations racing on the same key resolve to exactly one
// success.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS identities (
		id                TEXT PRIMARY KEY,
		full_name         TEXT NOT NULL,
		email             TEXT NOT NULL,
		role              TEXT NOT NULL,
		rfid_tag          TEXT NOT NULL,
		fingerprint_token TEXT NOT NULL,
		matric_number     TEXT,
		faculty           TEXT,
		department        TEXT,
		staff_id          TEXT,
		designation       TEXT,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS identities_email_key ON identities (email)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS identities_rfid_tag_key ON identities (rfid_tag)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS identities_fingerprint_token_key ON identities (fingerprint_token)`,
	`CREATE TABLE IF NOT EXISTS attendance_events (
		id             TEXT PRIMARY KEY,
		identity_id    TEXT REFERENCES identities (id),
		rfid_tag       TEXT NOT NULL,
		action         TEXT NOT NULL,
		location       TEXT NOT NULL,
		device_id      TEXT,
		occurred_at    TIMESTAMPTZ NOT NULL,
		verified       BOOLEAN NOT NULL,
		failure_reason TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS attendance_events_occurred_at_idx ON attendance_events (occurred_at DESC)`,
	`CREATE TABLE IF NOT EXISTS devices (
		device_id    TEXT PRIMARY KEY,
		device_type  TEXT,
		location     TEXT,
		last_seen_at TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate applies the schema statements in order.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
