package attendance

import (
	"context"
	"time"

	"campustrack/internal/identity"
)

// Stats is the dashboard summary. Today's count covers the current
// server-local calendar day, not a rolling 24 hours.
type Stats struct {
	TotalStudents   int    `json:"totalStudents"`
	TotalTeachers   int    `json:"totalTeachers"`
	TodayAttendance int    `json:"todayAttendance"`
	TotalAttendance int    `json:"totalAttendance"`
	SystemStatus    string `json:"systemStatus"`
}

// Aggregator computes dashboard statistics from the identity store and the
// ledger. Nothing is cached; every call recomputes against current data.
type Aggregator struct {
	identities identity.Store
	ledger     Ledger
	now        func() time.Time
}

// NewAggregator creates an aggregator.
func NewAggregator(identities identity.Store, ledger Ledger) *Aggregator {
	return &Aggregator{identities: identities, ledger: ledger, now: time.Now}
}

// Stats returns identity counts by role plus verified attendance totals.
func (a *Aggregator) Stats(ctx context.Context) (Stats, error) {
	counts, err := a.identities.CountByRole(ctx)
	if err != nil {
		return Stats{}, err
	}
	today, err := a.ledger.CountVerifiedOn(ctx, a.now())
	if err != nil {
		return Stats{}, err
	}
	total, err := a.ledger.CountVerified(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalStudents:   counts[identity.RoleStudent],
		TotalTeachers:   counts[identity.RoleTeacher],
		TodayAttendance: today,
		TotalAttendance: total,
		SystemStatus:    "online",
	}, nil
}
