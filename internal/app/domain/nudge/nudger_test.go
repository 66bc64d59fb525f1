package nudge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/YongWoo-8933/Cafejari-Server/internal/app/models"
	"github.com/YongWoo-8933/Cafejari-Server/internal/pkg/config"
)

type MockNudgeRepo struct {
	pending  []PendingNudge
	notified map[uuid.UUID]bool

	gotOldest time.Time
	gotNewest time.Time
}

func (m *MockNudgeRepo) PendingNudges(ctx context.Context, oldest, newest time.Time) ([]PendingNudge, error) {
	m.gotOldest, m.gotNewest = oldest, newest
	var out []PendingNudge
	for _, p := range m.pending {
		if !m.notified[p.ReadingID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockNudgeRepo) MarkNotified(ctx context.Context, readingID uuid.UUID) error {
	m.notified[readingID] = true
	return nil
}

// MockReadingCounter satisfies occupancy.Repository; only the authored count
// matters to the nudger.
type MockReadingCounter struct {
	counts map[uuid.UUID]int
}

func (m *MockReadingCounter) InsertReading(ctx context.Context, reading *models.OccupancyReading) (*models.OccupancyReading, error) {
	return nil, errors.New("not used")
}

func (m *MockReadingCounter) ReadingsForUserFloorSince(ctx context.Context, userID, floorID uuid.UUID, since time.Time) ([]models.OccupancyReading, error) {
	return nil, errors.New("not used")
}

func (m *MockReadingCounter) CountAuthoredReadings(ctx context.Context, floorID uuid.UUID) (int, error) {
	return m.counts[floorID], nil
}

func (m *MockReadingCounter) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.OccupancyReading, error) {
	return nil, errors.New("not used")
}

func (m *MockReadingCounter) ListByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.OccupancyReading, error) {
	return nil, errors.New("not used")
}

func (m *MockReadingCounter) HasActivityEntry(ctx context.Context, userID, floorID uuid.UUID, since time.Time) (bool, error) {
	return false, errors.New("not used")
}

func (m *MockReadingCounter) InsertActivityEntry(ctx context.Context, userID, floorID uuid.UUID) error {
	return errors.New("not used")
}

func (m *MockReadingCounter) CountActivityEntries(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	return 0, errors.New("not used")
}

type MockSender struct {
	sent    []string
	failFor map[uuid.UUID]bool
}

func (m *MockSender) Send(ctx context.Context, userID uuid.UUID, title, body string) error {
	if m.failFor[userID] {
		return errors.New("gateway unavailable")
	}
	m.sent = append(m.sent, title+" / "+body)
	return nil
}

func newNudger(repo *MockNudgeRepo, counter *MockReadingCounter, sender *MockSender, now time.Time) *Nudger {
	occupancyCfg := config.OccupancyConfig{
		CooldownMinutes: 10, InsufficientThreshold: 10, EnoughThreshold: 50,
		NoDataPoint: 50, InsufficientDataPoint: 20, EnoughDataPoint: 10,
	}
	cfg := config.NudgeConfig{AfterMinutes: 10, BeforeMinutes: 20}
	n := NewNudger(repo, counter, sender, occupancyCfg, cfg, zap.NewNop())
	n.now = func() time.Time { return now }
	return n
}

func TestNudger_SendsAndMarksOnce(t *testing.T) {
	now := time.Date(2026, 3, 14, 13, 0, 0, 0, time.UTC)
	readingID := uuid.New()
	floorID := uuid.New()

	repo := &MockNudgeRepo{
		pending: []PendingNudge{{
			ReadingID: readingID, UserID: uuid.New(), FloorID: floorID,
			CafeName: "감성커피", FloorName: "1층",
		}},
		notified: map[uuid.UUID]bool{},
	}
	counter := &MockReadingCounter{counts: map[uuid.UUID]int{floorID: 12}}
	sender := &MockSender{}

	n := newNudger(repo, counter, sender, now)
	require.NoError(t, n.Run(context.Background()))

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "감성커피")
	assert.Contains(t, sender.sent[0], "20 포인트", "points are recomputed at nudge time")
	assert.True(t, repo.notified[readingID])

	assert.Equal(t, now.Add(-20*time.Minute), repo.gotOldest)
	assert.Equal(t, now.Add(-10*time.Minute), repo.gotNewest)

	// Second pass finds nothing pending.
	require.NoError(t, n.Run(context.Background()))
	assert.Len(t, sender.sent, 1)
}

func TestNudger_SendFailureLeavesReadingPending(t *testing.T) {
	now := time.Date(2026, 3, 14, 13, 0, 0, 0, time.UTC)
	readingID := uuid.New()
	userID := uuid.New()

	repo := &MockNudgeRepo{
		pending: []PendingNudge{{
			ReadingID: readingID, UserID: userID, FloorID: uuid.New(),
			CafeName: "감성커피", FloorName: "1층",
		}},
		notified: map[uuid.UUID]bool{},
	}
	counter := &MockReadingCounter{counts: map[uuid.UUID]int{}}
	sender := &MockSender{failFor: map[uuid.UUID]bool{userID: true}}

	n := newNudger(repo, counter, sender, now)
	require.NoError(t, n.Run(context.Background()), "one delivery failure never fails the pass")

	assert.Empty(t, sender.sent)
	assert.False(t, repo.notified[readingID], "failed sends stay pending for the next pass")
}
