package attendance

import (
	"context"
	"testing"
	"time"
)

func appendAt(t *testing.T, ledger *MemoryLedger, when time.Time, verified bool) Event {
	t.Helper()
	evt, err := ledger.Append(context.Background(), Event{
		RFIDTag:   "R1",
		Action:    ActionEntry,
		Location:  "Gate A",
		Timestamp: when,
		Verified:  verified,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return evt
}

func TestQueryOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	base := time.Date(2026, 5, 2, 8, 0, 0, 0, time.Local)

	appendAt(t, ledger, base, true)
	appendAt(t, ledger, base.Add(2*time.Hour), true)
	appendAt(t, ledger, base.Add(time.Hour), false)

	events, total, err := ledger.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.After(events[i-1].Timestamp) {
			t.Fatalf("events not ordered newest first: %v before %v", events[i-1].Timestamp, events[i].Timestamp)
		}
	}
}

func TestQueryPaginationKeepsTotal(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	base := time.Date(2026, 5, 2, 8, 0, 0, 0, time.Local)
	for i := 0; i < 5; i++ {
		appendAt(t, ledger, base.Add(time.Duration(i)*time.Minute), true)
	}

	events, total, err := ledger.Query(ctx, Filter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 5 {
		t.Fatalf("total must reflect the filtered set before pagination, got %d", total)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events on this page, got %d", len(events))
	}
	if !events[0].Timestamp.Equal(base.Add(3 * time.Minute)) {
		t.Fatalf("offset applied before limit: got %v", events[0].Timestamp)
	}

	past, total, err := ledger.Query(ctx, Filter{Limit: 2, Offset: 10})
	if err != nil {
		t.Fatalf("query past end: %v", err)
	}
	if total != 5 || len(past) != 0 {
		t.Fatalf("expected empty page with total 5, got %d events, total %d", len(past), total)
	}
}

func TestQueryDateFilter(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	day := time.Date(2026, 5, 2, 10, 0, 0, 0, time.Local)

	appendAt(t, ledger, day, true)
	appendAt(t, ledger, day.Add(6*time.Hour), true)
	appendAt(t, ledger, day.AddDate(0, 0, -1), true)

	events, total, err := ledger.Query(ctx, Filter{Date: &day})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 2 || len(events) != 2 {
		t.Fatalf("expected 2 events on the filtered day, got %d", total)
	}
}

func TestCountVerifiedOnCalendarDayBoundary(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	now := time.Date(2026, 5, 2, 0, 10, 0, 0, time.Local)
	lateYesterday := time.Date(2026, 5, 1, 23, 50, 0, 0, time.Local)

	appendAt(t, ledger, now, true)
	appendAt(t, ledger, lateYesterday, true)
	appendAt(t, ledger, now.Add(time.Minute), false)

	count, err := ledger.CountVerifiedOn(ctx, now)
	if err != nil {
		t.Fatalf("count verified on: %v", err)
	}
	// 23:50 yesterday is within the last 24h but outside the calendar day.
	if count != 1 {
		t.Fatalf("expected 1 verified event today, got %d", count)
	}

	total, err := ledger.CountVerified(ctx)
	if err != nil {
		t.Fatalf("count verified: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 verified events overall, got %d", total)
	}
}

func TestDeviceRegisterAndTouch(t *testing.T) {
	ctx := context.Background()
	devices := NewMemoryDevices()

	if err := devices.Register(ctx, Device{DeviceID: "ESP32_001", Location: "Gate A"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	// Re-registration without a location keeps the original one.
	if err := devices.Register(ctx, Device{DeviceID: "ESP32_001", DeviceType: "rfid-reader"}); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	dev := devices.devices["ESP32_001"]
	if dev.Location != "Gate A" || dev.DeviceType != "rfid-reader" {
		t.Fatalf("upsert merged fields incorrectly: %+v", dev)
	}

	at := time.Now()
	if err := devices.Touch(ctx, "ESP32_001", at); err != nil {
		t.Fatalf("touch: %v", err)
	}
	dev = devices.devices["ESP32_001"]
	if dev.LastSeenAt == nil || !dev.LastSeenAt.Equal(at) {
		t.Fatalf("expected last seen %v, got %v", at, dev.LastSeenAt)
	}
}
