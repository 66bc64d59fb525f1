package occupancy

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOfDay(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	now := time.Date(2026, 3, 14, 23, 59, 30, 0, loc)
	start := StartOfDay(now, loc)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 1, 0, loc), start)

	// One second past midnight still belongs to the new day.
	now = time.Date(2026, 3, 15, 0, 0, 1, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 1, 0, loc), StartOfDay(now, loc))

	// Exactly midnight falls before the boundary and counts as the old day.
	now = time.Date(2026, 3, 15, 0, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 1, 0, loc), StartOfDay(now, loc))
}

func TestLedger_RecordActivityIdempotent(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	now := time.Date(2026, 3, 14, 13, 0, 0, 0, loc)
	repo := &MockOccupancyRepo{now: func() time.Time { return now }}
	ledger := NewLedger(repo, loc)

	userID := uuid.New()
	floorID := uuid.New()

	require.NoError(t, ledger.RecordActivity(context.Background(), userID, floorID, now))
	require.NoError(t, ledger.RecordActivity(context.Background(), userID, floorID, now))
	assert.Len(t, repo.entries, 1, "same floor must consume a single slot")

	has, err := ledger.HasActivityToday(context.Background(), userID, floorID, now)
	require.NoError(t, err)
	assert.True(t, has)

	count, err := ledger.CountDistinctFloorsToday(context.Background(), userID, now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLedger_EntriesExpireAtBoundary(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	yesterday := time.Date(2026, 3, 14, 22, 0, 0, 0, loc)
	repo := &MockOccupancyRepo{now: func() time.Time { return yesterday }}
	ledger := NewLedger(repo, loc)

	userID := uuid.New()
	floorID := uuid.New()
	require.NoError(t, ledger.RecordActivity(context.Background(), userID, floorID, yesterday))

	today := time.Date(2026, 3, 15, 9, 0, 0, 0, loc)
	has, err := ledger.HasActivityToday(context.Background(), userID, floorID, today)
	require.NoError(t, err)
	assert.False(t, has, "yesterday's slot must not carry over")

	count, err := ledger.CountDistinctFloorsToday(context.Background(), userID, today)
	require.NoError(t, err)
	assert.Zero(t, count)
}
