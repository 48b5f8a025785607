package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresLedger persists attendance events in Postgres.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger creates a ledger over an open connection pool.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const eventColumns = `id, identity_id, rfid_tag, action, location, device_id,
	occurred_at, verified, failure_reason, created_at`

// Append writes a new event.
func (l *PostgresLedger) Append(ctx context.Context, evt Event) (Event, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	var deviceID, reason *string
	if evt.DeviceID != "" {
		deviceID = &evt.DeviceID
	}
	if evt.FailureReason != "" {
		reason = &evt.FailureReason
	}
	row := l.db.QueryRowContext(ctx, `
		INSERT INTO attendance_events (id, identity_id, rfid_tag, action, location,
			device_id, occurred_at, verified, failure_reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at
	`, evt.ID, evt.IdentityID, evt.RFIDTag, evt.Action, evt.Location,
		deviceID, evt.Timestamp, evt.Verified, reason)
	if err := row.Scan(&evt.CreatedAt); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// GetEvent returns a single event by id.
func (l *PostgresLedger) GetEvent(ctx context.Context, id string) (Event, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM attendance_events WHERE id = $1`, id)
	return scanEvent(row)
}

// Query filters by calendar day when set, orders newest first, and paginates.
// The total reflects the filtered set before limit/offset are applied.
func (l *PostgresLedger) Query(ctx context.Context, f Filter) ([]Event, int, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where := ""
	args := []any{}
	if f.Date != nil {
		start, end := dayRange(*f.Date)
		where = " WHERE occurred_at >= $1 AND occurred_at < $2"
		args = append(args, start, end)
	}

	var total int
	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance_events`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + eventColumns + ` FROM attendance_events` + where +
		` ORDER BY occurred_at DESC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, evt)
	}
	return events, total, rows.Err()
}

// CountVerified counts all verified events.
func (l *PostgresLedger) CountVerified(ctx context.Context) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance_events WHERE verified`).Scan(&n)
	return n, err
}

// CountVerifiedOn counts verified events within day's calendar day.
func (l *PostgresLedger) CountVerifiedOn(ctx context.Context, day time.Time) (int, error) {
	start, end := dayRange(day)
	var n int
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_events
		WHERE verified AND occurred_at >= $1 AND occurred_at < $2
	`, start, end).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (Event, error) {
	var evt Event
	var deviceID, reason sql.NullString
	err := row.Scan(&evt.ID, &evt.IdentityID, &evt.RFIDTag, &evt.Action, &evt.Location,
		&deviceID, &evt.Timestamp, &evt.Verified, &reason, &evt.CreatedAt)
	if err != nil {
		return Event{}, err
	}
	evt.DeviceID = deviceID.String
	evt.FailureReason = reason.String
	return evt, nil
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

// PostgresDevices persists reader metadata.
type PostgresDevices struct {
	db *sql.DB
}

// NewPostgresDevices creates a device store.
func NewPostgresDevices(db *sql.DB) *PostgresDevices {
	return &PostgresDevices{db: db}
}

// Register upserts a device record, refreshing type and location.
func (d *PostgresDevices) Register(ctx context.Context, dev Device) error {
	if dev.DeviceID == "" {
		return errors.New("device id required")
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, device_type, location)
		VALUES ($1, $2, $3)
		ON CONFLICT (device_id) DO UPDATE SET
			device_type = COALESCE(NULLIF(EXCLUDED.device_type, ''), devices.device_type),
			location = COALESCE(NULLIF(EXCLUDED.location, ''), devices.location)
	`, dev.DeviceID, dev.DeviceType, dev.Location)
	return err
}

// Touch updates the device's last-seen time.
func (d *PostgresDevices) Touch(ctx context.Context, deviceID string, at time.Time) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE devices SET last_seen_at = $2 WHERE device_id = $1`, deviceID, at)
	return err
}
