package attendance

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger keeps events in process memory. Used for tests and for
// running the server without a database.
type MemoryLedger struct {
	mu     sync.Mutex
	events []Event
	byID   map[string]int
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{byID: make(map[string]int)}
}

// Append stores an event, assigning an id and timestamp when absent.
func (l *MemoryLedger) Append(_ context.Context, evt Event) (Event, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	evt.CreatedAt = time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.byID[evt.ID] = len(l.events)
	l.events = append(l.events, evt)
	return evt, nil
}

// GetEvent returns a single event by id.
func (l *MemoryLedger) GetEvent(_ context.Context, id string) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, ok := l.byID[id]
	if !ok {
		return Event{}, errors.New("attendance: event not found")
	}
	return l.events[idx], nil
}

// Query filters by calendar day when set, orders newest first, and paginates.
func (l *MemoryLedger) Query(_ context.Context, f Filter) ([]Event, int, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var filtered []Event
	for _, evt := range l.events {
		if f.Date != nil && !sameDay(evt.Timestamp, *f.Date) {
			continue
		}
		filtered = append(filtered, evt)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.After(filtered[j].Timestamp)
	})

	total := len(filtered)
	if f.Offset >= total {
		return nil, total, nil
	}
	filtered = filtered[f.Offset:]
	if len(filtered) > f.Limit {
		filtered = filtered[:f.Limit]
	}
	return filtered, total, nil
}

// CountVerified counts all verified events.
func (l *MemoryLedger) CountVerified(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, evt := range l.events {
		if evt.Verified {
			n++
		}
	}
	return n, nil
}

// CountVerifiedOn counts verified events within day's calendar day.
func (l *MemoryLedger) CountVerifiedOn(_ context.Context, day time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, evt := range l.events {
		if evt.Verified && sameDay(evt.Timestamp, day) {
			n++
		}
	}
	return n, nil
}

func sameDay(a, b time.Time) bool {
	start, end := dayRange(b)
	return !a.Before(start) && a.Before(end)
}

// MemoryDevices keeps reader metadata in process memory.
type MemoryDevices struct {
	mu      sync.Mutex
	devices map[string]Device
}

// NewMemoryDevices creates an empty device store.
func NewMemoryDevices() *MemoryDevices {
	return &MemoryDevices{devices: make(map[string]Device)}
}

// Register upserts a device record.
func (d *MemoryDevices) Register(_ context.Context, dev Device) error {
	if dev.DeviceID == "" {
		return errors.New("device id required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	existing, ok := d.devices[dev.DeviceID]
	if ok {
		if dev.DeviceType == "" {
			dev.DeviceType = existing.DeviceType
		}
		if dev.Location == "" {
			dev.Location = existing.Location
		}
		dev.LastSeenAt = existing.LastSeenAt
		dev.CreatedAt = existing.CreatedAt
	} else {
		dev.CreatedAt = time.Now()
	}
	d.devices[dev.DeviceID] = dev
	return nil
}

// Touch updates the device's last-seen time.
func (d *MemoryDevices) Touch(_ context.Context, deviceID string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, ok := d.devices[deviceID]
	if !ok {
		return nil
	}
	dev.LastSeenAt = &at
	d.devices[deviceID] = dev
	return nil
}
