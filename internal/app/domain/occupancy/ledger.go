package occupancy

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Ledger tracks which floors already consumed one of a user's daily
// distinct-floor reward slots. All operations are scoped to the
// caller-supplied now so day-boundary behavior is testable.
type Ledger struct {
	repo Repository
	loc  *time.Location
}

func NewLedger(repo Repository, loc *time.Location) *Ledger {
	return &Ledger{repo: repo, loc: loc}
}

// StartOfDay is the local day boundary used for all "today" queries. It sits
// one second past midnight so a reading stamped exactly at 00:00:00 never
// straddles two days.
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 1, 0, loc)
}

// HasActivityToday reports whether (user, floor) already holds a slot today.
func (l *Ledger) HasActivityToday(ctx context.Context, userID, floorID uuid.UUID, now time.Time) (bool, error) {
	return l.repo.HasActivityEntry(ctx, userID, floorID, StartOfDay(now, l.loc))
}

// RecordActivity stacks a slot for (user, floor) today. Recording twice for
// the same pair on the same day is a no-op.
func (l *Ledger) RecordActivity(ctx context.Context, userID, floorID uuid.UUID, now time.Time) error {
	exists, err := l.repo.HasActivityEntry(ctx, userID, floorID, StartOfDay(now, l.loc))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return l.repo.InsertActivityEntry(ctx, userID, floorID)
}

// CountDistinctFloorsToday counts how many floors consumed one of the user's
// slots today.
func (l *Ledger) CountDistinctFloorsToday(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	return l.repo.CountActivityEntries(ctx, userID, StartOfDay(now, l.loc))
}
