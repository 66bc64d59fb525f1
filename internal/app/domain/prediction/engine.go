package prediction

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/YongWoo-8933/Cafejari-Server/internal/app/domain/catalog"
	"github.com/YongWoo-8933/Cafejari-Server/internal/app/models"
	"github.com/YongWoo-8933/Cafejari-Server/internal/app/observability/metrics"
	"github.com/YongWoo-8933/Cafejari-Server/internal/pkg/config"
)

const maxConcurrentFloors = 8

// Engine recomputes every floor's crowding estimate from the clock-face
// neighborhood of its past readings. It is the only writer of
// floor_prediction.
type Engine struct {
	logger  *zap.Logger
	repo    Repository
	catalog catalog.Repository
	cfg     config.PredictionConfig
	loc     *time.Location

	now    func() time.Time
	jitter func() float64
}

func NewEngine(repo Repository, catalogRepo catalog.Repository, cfg config.PredictionConfig,
	loc *time.Location, logger *zap.Logger) *Engine {
	return &Engine{
		logger:  logger,
		repo:    repo,
		catalog: catalogRepo,
		cfg:     cfg,
		loc:     loc,
		now:     time.Now,
		jitter: func() float64 {
			return (rand.Float64()*2 - 1) * cfg.JitterBound
		},
	}
}

// Name identifies the engine on the job scheduler.
func (e *Engine) Name() string { return "prediction_engine" }

// Run executes one batch pass. Outside estimation hours every estimate is
// deleted; inside them each candidate floor is recomputed independently, and
// a single floor's failure never aborts the pass.
func (e *Engine) Run(ctx context.Context) error {
	ctx, span := otel.Tracer("PredictionEngine").Start(ctx, "Run")
	defer span.End()

	now := e.now().In(e.loc)

	if now.Hour() < e.cfg.FromHour || now.Hour() >= e.cfg.ToHour {
		deleted, err := e.repo.DeleteAll(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to clear predictions")
			return err
		}
		if deleted > 0 {
			e.logger.Info("Cleared predictions outside estimation hours", zap.Int64("deleted", deleted))
			metrics.App().PredictionsDeletedTotal.Add(ctx, deleted)
		}
		span.SetStatus(codes.Ok, "Outside estimation hours")
		return nil
	}

	floors, err := e.repo.CandidateFloors(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list candidates")
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFloors)
	for _, floor := range floors {
		g.Go(func() error {
			if err := e.predictFloor(gctx, floor, now); err != nil {
				e.logger.Warn("Skipping floor after prediction failure",
					zap.String("floorID", floor.FloorID.String()), zap.Any("error", err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(attribute.Int("prediction.floors", len(floors)))
	span.SetStatus(codes.Ok, "Pass complete")
	return nil
}

func (e *Engine) predictFloor(ctx context.Context, floor CandidateFloor, now time.Time) error {
	if !floor.CafeOpen {
		if err := e.repo.DeleteForFloor(ctx, floor.FloorID); err != nil {
			return err
		}
		metrics.App().PredictionsDeletedTotal.Add(ctx, 1)
		return nil
	}

	nowTod := TimeOfDayOf(now)
	radius := time.Duration(e.cfg.WindowMinutes) * time.Minute
	window := WindowAround(nowTod, radius)
	weekend := isWeekend(now)

	readings, err := e.repo.ReadingsInWindow(ctx, floor.FloorID, window, weekend)
	if err != nil {
		return err
	}

	past, future, ok := nearestNeighbors(readings, nowTod, radius)
	if !ok {
		// Nothing informative near this clock position anymore.
		if err := e.repo.DeleteForFloor(ctx, floor.FloorID); err != nil {
			return err
		}
		metrics.App().PredictionsDeletedTotal.Add(ctx, 1)
		return nil
	}

	estimate, source := interpolate(past, future, nowTod)

	estimate += e.congestionAdjustment(ctx, floor, source)
	estimate += e.jitter()

	estimate = math.Round(clamp01(estimate)*100) / 100
	if err := e.repo.Upsert(ctx, floor.FloorID, estimate); err != nil {
		return err
	}
	metrics.App().PredictionsUpsertedTotal.Add(ctx, 1)
	return nil
}

// nearestNeighbors splits the window readings into the closest one before and
// after the current clock position. Either side may be nil; ok is false when
// both are.
func nearestNeighbors(readings []WindowReading, now TimeOfDay, radius time.Duration) (past, future *WindowReading, ok bool) {
	radiusSeconds := int(radius / time.Second)
	bestPast, bestFuture := radiusSeconds+1, radiusSeconds+1

	for i := range readings {
		r := &readings[i]
		if back := r.At.Until(now); back <= radiusSeconds {
			if back < bestPast {
				bestPast = back
				past = r
			}
			continue
		}
		if fwd := now.Until(r.At); fwd <= radiusSeconds && fwd < bestFuture {
			bestFuture = fwd
			future = r
		}
	}
	return past, future, past != nil || future != nil
}

// interpolate estimates the rate at the current clock position between the
// two neighbors and picks the temporally closer one as the congestion source.
// The square-root scaling mirrors the service this subsystem replaces.
func interpolate(past, future *WindowReading, now TimeOfDay) (float64, *WindowReading) {
	if past == nil {
		return future.Rate, future
	}
	if future == nil {
		return past.Rate, past
	}

	x := float64(past.At.Until(now))
	x1 := float64(past.At.Until(future.At))
	if x1 == 0 {
		return past.Rate, past
	}

	y0, y1 := past.Rate, future.Rate
	spread := (y1 - y0) * (y1 - y0)

	var estimate float64
	if y1 >= y0 {
		estimate = y0 + math.Sqrt(spread*x/x1)
	} else {
		estimate = y1 + math.Sqrt(spread*(x1-x)/x1)
	}

	source := past
	if x >= x1/2 {
		source = future
	}
	return estimate, source
}

// congestionAdjustment nudges the estimate toward the venue's current area
// congestion: positive when the area is busier now than when the source
// reading was taken.
func (e *Engine) congestionAdjustment(ctx context.Context, floor CandidateFloor, source *WindowReading) float64 {
	if source == nil || source.Congestion == nil {
		return 0
	}
	readingIdx := models.CongestionIndex(*source.Congestion)
	if readingIdx < 0 {
		return 0
	}

	levels, err := e.catalog.CongestionLevelsForCafe(ctx, floor.CafeID)
	if err != nil {
		e.logger.Warn("Congestion lookup failed during prediction",
			zap.String("cafeID", floor.CafeID.String()), zap.Any("error", err))
		return 0
	}
	if len(levels) == 0 {
		return 0
	}

	maxIdx := -1
	for _, level := range levels {
		if idx := models.CongestionIndex(level); idx > maxIdx {
			maxIdx = idx
		}
	}
	if maxIdx < 0 {
		return 0
	}
	return e.cfg.CongestionBlend * float64(maxIdx-readingIdx)
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
