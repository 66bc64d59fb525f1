package prediction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/YongWoo-8933/Cafejari-Server/internal/app/models"
	"github.com/YongWoo-8933/Cafejari-Server/internal/pkg/config"
)

type MockPredictionRepo struct {
	candidates []CandidateFloor
	readings   map[uuid.UUID][]WindowReading

	upserts    map[uuid.UUID]float64
	deleted    map[uuid.UUID]bool
	deletedAll bool
}

func newMockPredictionRepo() *MockPredictionRepo {
	return &MockPredictionRepo{
		readings: map[uuid.UUID][]WindowReading{},
		upserts:  map[uuid.UUID]float64{},
		deleted:  map[uuid.UUID]bool{},
	}
}

func (m *MockPredictionRepo) CandidateFloors(ctx context.Context) ([]CandidateFloor, error) {
	return m.candidates, nil
}

func (m *MockPredictionRepo) ReadingsInWindow(ctx context.Context, floorID uuid.UUID, w Window, weekend bool) ([]WindowReading, error) {
	var out []WindowReading
	for _, r := range m.readings[floorID] {
		if w.Contains(r.At) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockPredictionRepo) Upsert(ctx context.Context, floorID uuid.UUID, rate float64) error {
	m.upserts[floorID] = rate
	return nil
}

func (m *MockPredictionRepo) DeleteForFloor(ctx context.Context, floorID uuid.UUID) error {
	m.deleted[floorID] = true
	return nil
}

func (m *MockPredictionRepo) DeleteAll(ctx context.Context) (int64, error) {
	m.deletedAll = true
	return int64(len(m.upserts)), nil
}

type MockAreaCatalog struct {
	levels map[uuid.UUID][]models.CongestionLevel
}

func (m *MockAreaCatalog) GetFloor(ctx context.Context, floorID uuid.UUID) (*models.CafeFloor, error) {
	return nil, models.ErrFloorNotFound
}

func (m *MockAreaCatalog) CongestionLevelsForCafe(ctx context.Context, cafeID uuid.UUID) ([]models.CongestionLevel, error) {
	return m.levels[cafeID], nil
}

func (m *MockAreaCatalog) ListCongestionAreas(ctx context.Context) ([]models.CongestionArea, error) {
	return nil, nil
}

func (m *MockAreaCatalog) UpdateAreaCongestion(ctx context.Context, areaID uuid.UUID, level models.CongestionLevel) error {
	return nil
}

type engineFixture struct {
	engine  *Engine
	repo    *MockPredictionRepo
	catalog *MockAreaCatalog
	now     time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	f := &engineFixture{
		repo:    newMockPredictionRepo(),
		catalog: &MockAreaCatalog{levels: map[uuid.UUID][]models.CongestionLevel{}},
		// A Tuesday, well inside estimation hours.
		now: time.Date(2026, 3, 17, 13, 0, 0, 0, loc),
	}

	cfg := config.PredictionConfig{
		FromHour:        9,
		ToHour:          23,
		WindowMinutes:   80,
		JitterBound:     0.05,
		CongestionBlend: 0.05,
	}
	f.engine = NewEngine(f.repo, f.catalog, cfg, loc, zap.NewNop())
	f.engine.now = func() time.Time { return f.now }
	f.engine.jitter = func() float64 { return 0 }
	return f
}

func (f *engineFixture) addFloor(open bool) CandidateFloor {
	floor := CandidateFloor{FloorID: uuid.New(), CafeID: uuid.New(), CafeOpen: open}
	f.repo.candidates = append(f.repo.candidates, floor)
	return floor
}

func TestEngine_RisingTrendInterpolation(t *testing.T) {
	f := newEngineFixture(t)
	floor := f.addFloor(true)

	nowTod := TimeOfDayOf(f.now)
	f.repo.readings[floor.FloorID] = []WindowReading{
		{Rate: 0.2, At: nowTod.Add(-40 * time.Minute)},
		{Rate: 0.6, At: nowTod.Add(40 * time.Minute)},
	}

	require.NoError(t, f.engine.Run(context.Background()))

	// 0.2 + sqrt(0.4^2 * 0.5) rounds to 0.48.
	assert.InDelta(t, 0.48, f.repo.upserts[floor.FloorID], 1e-9)
}

func TestEngine_FallingTrendInterpolation(t *testing.T) {
	f := newEngineFixture(t)
	floor := f.addFloor(true)

	nowTod := TimeOfDayOf(f.now)
	f.repo.readings[floor.FloorID] = []WindowReading{
		{Rate: 0.6, At: nowTod.Add(-40 * time.Minute)},
		{Rate: 0.2, At: nowTod.Add(40 * time.Minute)},
	}

	require.NoError(t, f.engine.Run(context.Background()))

	// y1 + sqrt((y1-y0)^2 * (x1-x)/x1) = 0.2 + sqrt(0.16 * 0.5).
	assert.InDelta(t, 0.48, f.repo.upserts[floor.FloorID], 1e-9)
}

func TestEngine_SingleNeighborUsesItsRate(t *testing.T) {
	f := newEngineFixture(t)
	floor := f.addFloor(true)

	nowTod := TimeOfDayOf(f.now)
	f.repo.readings[floor.FloorID] = []WindowReading{
		{Rate: 0.35, At: nowTod.Add(-30 * time.Minute)},
	}

	require.NoError(t, f.engine.Run(context.Background()))
	assert.InDelta(t, 0.35, f.repo.upserts[floor.FloorID], 1e-9)
}

func TestEngine_NoNeighborsDeletesPrediction(t *testing.T) {
	f := newEngineFixture(t)
	floor := f.addFloor(true)
	f.repo.readings[floor.FloorID] = nil

	require.NoError(t, f.engine.Run(context.Background()))
	assert.True(t, f.repo.deleted[floor.FloorID])
	assert.Empty(t, f.repo.upserts)
}

func TestEngine_ClosedVenueDeletesPrediction(t *testing.T) {
	f := newEngineFixture(t)
	floor := f.addFloor(false)

	nowTod := TimeOfDayOf(f.now)
	f.repo.readings[floor.FloorID] = []WindowReading{
		{Rate: 0.5, At: nowTod},
	}

	require.NoError(t, f.engine.Run(context.Background()))
	assert.True(t, f.repo.deleted[floor.FloorID])
	assert.Empty(t, f.repo.upserts)
}

func TestEngine_OutsideEstimationHoursClearsAll(t *testing.T) {
	f := newEngineFixture(t)
	f.addFloor(true)

	loc := f.now.Location()
	f.now = time.Date(2026, 3, 17, 23, 30, 0, 0, loc)

	require.NoError(t, f.engine.Run(context.Background()))
	assert.True(t, f.repo.deletedAll)
	assert.Empty(t, f.repo.upserts)
}

func TestEngine_CongestionBlendShiftsEstimate(t *testing.T) {
	f := newEngineFixture(t)
	floor := f.addFloor(true)
	f.catalog.levels[floor.CafeID] = []models.CongestionLevel{models.CongestionVeryBusy}

	relaxed := models.CongestionRelaxed
	nowTod := TimeOfDayOf(f.now)
	f.repo.readings[floor.FloorID] = []WindowReading{
		// Closer to now, so it is the congestion source.
		{Rate: 0.2, Congestion: &relaxed, At: nowTod.Add(-10 * time.Minute)},
		{Rate: 0.6, At: nowTod.Add(40 * time.Minute)},
	}

	require.NoError(t, f.engine.Run(context.Background()))

	// Base interpolation at x/x1 = 0.2: 0.2 + sqrt(0.16*0.2) ≈ 0.3789,
	// plus 0.05 * (3 - 0) for the area being at the top of the scale.
	assert.InDelta(t, 0.53, f.repo.upserts[floor.FloorID], 1e-9)
}

func TestEngine_JitterStaysInsideClamp(t *testing.T) {
	f := newEngineFixture(t)
	floor := f.addFloor(true)
	f.engine.jitter = func() float64 { return 0.05 }

	nowTod := TimeOfDayOf(f.now)
	f.repo.readings[floor.FloorID] = []WindowReading{
		{Rate: 1.0, At: nowTod.Add(-5 * time.Minute)},
	}

	require.NoError(t, f.engine.Run(context.Background()))
	assert.InDelta(t, 1.0, f.repo.upserts[floor.FloorID], 1e-9, "estimates clamp to 1")
}
