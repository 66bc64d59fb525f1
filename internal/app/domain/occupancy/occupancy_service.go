package occupancy

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YongWoo-8933/Cafejari-Server/internal/app/domain/account"
	"github.com/YongWoo-8933/Cafejari-Server/internal/app/domain/catalog"
	"github.com/YongWoo-8933/Cafejari-Server/internal/app/models"
	"github.com/YongWoo-8933/Cafejari-Server/internal/app/observability/metrics"
	"github.com/YongWoo-8933/Cafejari-Server/internal/pkg/config"
)

// Ensure implementation satisfies the interface
var _ Service = (*ServiceImpl)(nil)

// Service is the ingestion gate for occupancy submissions.
type Service interface {
	SubmitReading(ctx context.Context, floorID uuid.UUID, rate float64, userID *uuid.UUID) (*models.OccupancyReading, error)
	MyReadings(ctx context.Context, userID uuid.UUID) ([]models.OccupancyReading, error)
	MyReadingsToday(ctx context.Context, userID uuid.UUID) ([]models.OccupancyReading, error)
}

type ServiceImpl struct {
	logger   *zap.Logger
	repo     Repository
	catalog  catalog.Repository
	accounts account.Repository
	ledger   *Ledger
	calc     *RewardCalculator
	cfg      config.OccupancyConfig
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo Repository, catalogRepo catalog.Repository, accounts account.Repository,
	cfg config.OccupancyConfig, loc *time.Location, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		repo:     repo,
		catalog:  catalogRepo,
		accounts: accounts,
		ledger:   NewLedger(repo, loc),
		calc:     NewRewardCalculator(cfg),
		cfg:      cfg,
		loc:      loc,
		now:      time.Now,
	}
}

// SubmitReading validates and persists one occupancy submission.
//
// Only a missing floor, a seatless floor, an out-of-range rate or an active
// cooldown reject the submission. Every throttle hit after that still stores
// the reading with a zero award so the crowding signal is never lost.
func (s *ServiceImpl) SubmitReading(ctx context.Context, floorID uuid.UUID, rate float64, userID *uuid.UUID) (*models.OccupancyReading, error) {
	ctx, span := otel.Tracer("OccupancyService").Start(ctx, "SubmitReading", trace.WithAttributes(
		attribute.String("floor.id", floorID.String()),
		attribute.Float64("occupancy.rate", rate),
		attribute.Bool("anonymous", userID == nil),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "SubmitReading"), zap.String("floorID", floorID.String()))

	if rate < 0 || rate > 1 {
		span.SetStatus(codes.Error, "Invalid occupancy rate")
		metrics.App().ReadingsRejectedTotal.Add(ctx, 1, rejectionAttr("invalid_rate"))
		return nil, models.ErrInvalidRate
	}
	rate = math.Round(rate*100) / 100

	floor, err := s.catalog.GetFloor(ctx, floorID)
	if err != nil {
		l.Warn("Floor lookup failed", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Floor lookup failed")
		metrics.App().ReadingsRejectedTotal.Add(ctx, 1, rejectionAttr("floor_not_found"))
		return nil, err
	}
	if !floor.HasSeat {
		span.SetStatus(codes.Error, "Floor has no seats")
		metrics.App().ReadingsRejectedTotal.Add(ctx, 1, rejectionAttr("no_seats"))
		return nil, models.ErrNoSeats
	}

	congestion := s.currentCongestion(ctx, floor.CafeID)

	// Guest path: accept immediately, never rewarded, never throttled.
	if userID == nil {
		saved, err := s.persist(ctx, floorID, rate, nil, congestion, 0)
		if err != nil {
			return nil, err
		}
		span.SetStatus(codes.Ok, "Guest reading accepted")
		return saved, nil
	}

	now := s.now().In(s.loc)
	startOfDay := StartOfDay(now, s.loc)

	todays, err := s.repo.ReadingsForUserFloorSince(ctx, *userID, floorID, startOfDay)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load today's readings")
		return nil, err
	}

	if len(todays) > 0 {
		// Repeat submission on the same floor today.
		if elapsed := now.Sub(todays[0].UpdatedAt); elapsed < s.cooldown() {
			span.SetStatus(codes.Error, "Cooldown active")
			metrics.App().ReadingsRejectedTotal.Add(ctx, 1, rejectionAttr("cooldown"))
			return nil, &models.CooldownError{Remaining: s.cooldown() - elapsed}
		}

		grade, err := s.accounts.GetGrade(ctx, *userID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Grade lookup failed")
			return nil, err
		}
		if len(todays) >= grade.SharingRestrictionPerFloor {
			saved, err := s.persist(ctx, floorID, rate, userID, congestion, 0)
			if err != nil {
				return nil, err
			}
			span.SetStatus(codes.Ok, "Accepted over per-floor cap, unrewarded")
			return saved, nil
		}

		// Repeats only pay out when the floor actually holds one of today's
		// ledger slots; otherwise the first reading was already over-cap.
		hasSlot, err := s.ledger.HasActivityToday(ctx, *userID, floorID, now)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Ledger check failed")
			return nil, err
		}
		if !hasSlot {
			saved, err := s.persist(ctx, floorID, rate, userID, congestion, 0)
			if err != nil {
				return nil, err
			}
			span.SetStatus(codes.Ok, "Accepted without ledger slot, unrewarded")
			return saved, nil
		}
	} else {
		// First submission on this floor today: claims a distinct-floor slot.
		grade, err := s.accounts.GetGrade(ctx, *userID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Grade lookup failed")
			return nil, err
		}

		used, err := s.ledger.CountDistinctFloorsToday(ctx, *userID, now)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Ledger count failed")
			return nil, err
		}
		if used >= grade.ActivityStackRestrictionPerDay {
			saved, err := s.persist(ctx, floorID, rate, userID, congestion, 0)
			if err != nil {
				return nil, err
			}
			span.SetStatus(codes.Ok, "Accepted over distinct-floor cap, unrewarded")
			return saved, nil
		}
		if err := s.ledger.RecordActivity(ctx, *userID, floorID, now); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Ledger record failed")
			return nil, err
		}
	}

	authored, err := s.repo.CountAuthoredReadings(ctx, floorID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Authored count failed")
		return nil, err
	}
	points := s.calc.Points(authored)

	saved, err := s.persist(ctx, floorID, rate, userID, congestion, points)
	if err != nil {
		return nil, err
	}

	if points > 0 {
		if err := s.accounts.AddPoints(ctx, *userID, points); err != nil {
			// The reading is already stored; losing the award beats losing
			// the signal. Surfaced by logs and the balance reconciliation.
			l.Error("Failed to credit points for accepted reading",
				zap.Any("error", err), zap.String("userID", userID.String()), zap.Int("points", points))
			span.RecordError(err)
		} else {
			metrics.App().PointsAwardedTotal.Add(ctx, int64(points))
		}
	}

	l.Info("Occupancy reading accepted", zap.Int("points", points), zap.Float64("rate", rate))
	span.SetAttributes(attribute.Int("occupancy.points", points))
	span.SetStatus(codes.Ok, "Reading accepted")
	return saved, nil
}

// MyReadings returns the caller's full submission history, newest first.
func (s *ServiceImpl) MyReadings(ctx context.Context, userID uuid.UUID) ([]models.OccupancyReading, error) {
	ctx, span := otel.Tracer("OccupancyService").Start(ctx, "MyReadings", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	readings, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch readings")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Readings fetched")
	return readings, nil
}

// MyReadingsToday returns the caller's submissions since local midnight.
func (s *ServiceImpl) MyReadingsToday(ctx context.Context, userID uuid.UUID) ([]models.OccupancyReading, error) {
	ctx, span := otel.Tracer("OccupancyService").Start(ctx, "MyReadingsToday", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	readings, err := s.repo.ListByUserSince(ctx, userID, StartOfDay(s.now(), s.loc))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch readings")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Readings fetched")
	return readings, nil
}

func (s *ServiceImpl) cooldown() time.Duration {
	return time.Duration(s.cfg.CooldownMinutes) * time.Minute
}

// currentCongestion captures the busiest linked area level at submission
// time. Best effort: a failed lookup just leaves the reading untagged.
func (s *ServiceImpl) currentCongestion(ctx context.Context, cafeID uuid.UUID) *models.CongestionLevel {
	levels, err := s.catalog.CongestionLevelsForCafe(ctx, cafeID)
	if err != nil {
		s.logger.Warn("Congestion lookup failed, storing reading untagged",
			zap.Any("error", err), zap.String("cafeID", cafeID.String()))
		return nil
	}
	if len(levels) == 0 {
		return nil
	}
	busiest := levels[0]
	for _, level := range levels[1:] {
		if models.CongestionIndex(level) > models.CongestionIndex(busiest) {
			busiest = level
		}
	}
	return &busiest
}

func (s *ServiceImpl) persist(ctx context.Context, floorID uuid.UUID, rate float64,
	userID *uuid.UUID, congestion *models.CongestionLevel, points int) (*models.OccupancyReading, error) {
	saved, err := s.repo.InsertReading(ctx, &models.OccupancyReading{
		FloorID:    floorID,
		UserID:     userID,
		Rate:       rate,
		Congestion: congestion,
		Point:      points,
	})
	if err != nil {
		s.logger.Error("Failed to persist occupancy reading", zap.Any("error", err),
			zap.String("floorID", floorID.String()))
		return nil, err
	}
	metrics.App().ReadingsIngestedTotal.Add(ctx, 1)
	return saved, nil
}

func rejectionAttr(reason string) metric.AddOption {
	return metric.WithAttributes(attribute.String("reason", reason))
}
