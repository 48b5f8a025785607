package attendance

import (
	"context"
	"time"
)

// Filter narrows a ledger query. Date matches calendar-day equality on the
// event timestamp; Limit and Offset paginate the filtered set.
type Filter struct {
	Date   *time.Time
	Limit  int
	Offset int
}

// Ledger is the append-only history of verification attempts.
type Ledger interface {
	// Append stores an event, assigning an id and timestamp when absent.
	Append(ctx context.Context, evt Event) (Event, error)
	// GetEvent returns a single event by id.
	GetEvent(ctx context.Context, id string) (Event, error)
	// Query returns events ordered by timestamp descending, plus the total
	// size of the filtered set before pagination.
	Query(ctx context.Context, f Filter) ([]Event, int, error)
	// CountVerified counts all verified events ever appended.
	CountVerified(ctx context.Context) (int, error)
	// CountVerifiedOn counts verified events within day's calendar day.
	CountVerifiedOn(ctx context.Context, day time.Time) (int, error)
}

// DeviceStore tracks registered readers.
type DeviceStore interface {
	// Register upserts a device record.
	Register(ctx context.Context, dev Device) error
	// Touch updates the device's last-seen time.
	Touch(ctx context.Context, deviceID string, at time.Time) error
}
