package prediction

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/YongWoo-8933/Cafejari-Server/internal/app/models"
)

var _ Repository = (*RepositoryImpl)(nil)

// CandidateFloor is a floor eligible for prediction, with the owning venue's
// open state so closed venues can be cleared.
type CandidateFloor struct {
	FloorID  uuid.UUID
	CafeID   uuid.UUID
	CafeOpen bool
}

// WindowReading is a reading projected onto the clock face for interpolation.
type WindowReading struct {
	Rate       float64
	Congestion *models.CongestionLevel
	At         TimeOfDay
}

// Repository is the prediction engine's data access: candidate discovery,
// clock-window reading queries, and exclusive ownership of floor_prediction.
type Repository interface {
	CandidateFloors(ctx context.Context) ([]CandidateFloor, error)
	ReadingsInWindow(ctx context.Context, floorID uuid.UUID, w Window, weekend bool) ([]WindowReading, error)
	Upsert(ctx context.Context, floorID uuid.UUID, rate float64) error
	DeleteForFloor(ctx context.Context, floorID uuid.UUID) error
	DeleteAll(ctx context.Context) (int64, error)
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool *pgxpool.Pool
	loc    *time.Location
	sb     squirrel.StatementBuilderType
}

func NewRepository(pgxpool *pgxpool.Pool, loc *time.Location, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgxpool,
		loc:    loc,
		sb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CandidateFloors lists seated floors with at least one reading on record.
func (r *RepositoryImpl) CandidateFloors(ctx context.Context) ([]CandidateFloor, error) {
	ctx, span := otel.Tracer("PredictionRepo").Start(ctx, "CandidateFloors")
	span.SetAttributes(semconv.DBSystemPostgreSQL, attribute.String("db.sql.table", "cafe_floor"))
	defer span.End()

	query, args, err := r.sb.
		Select("f.id", "f.cafe_id", "c.is_opened").
		From("cafe_floor f").
		Join("cafe c ON c.id = f.cafe_id").
		Where(squirrel.Eq{"f.has_seat": true}).
		Where("EXISTS (SELECT 1 FROM occupancy_reading o WHERE o.floor_id = f.id)").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building candidate floor query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error listing candidate floors: %w", err)
	}
	defer rows.Close()

	var floors []CandidateFloor
	for rows.Next() {
		var f CandidateFloor
		if err := rows.Scan(&f.FloorID, &f.CafeID, &f.CafeOpen); err != nil {
			return nil, fmt.Errorf("database error scanning candidate floor: %w", err)
		}
		floors = append(floors, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error reading candidate floors: %w", err)
	}

	span.SetAttributes(attribute.Int("db.candidates", len(floors)))
	span.SetStatus(codes.Ok, "Candidates listed")
	return floors, nil
}

// ReadingsInWindow returns a floor's readings whose local clock position falls
// inside the window and whose weekday class matches. Dates are ignored;
// yesterday's 13:00 reading informs today's 13:00 estimate.
func (r *RepositoryImpl) ReadingsInWindow(ctx context.Context, floorID uuid.UUID, w Window, weekend bool) ([]WindowReading, error) {
	ctx, span := otel.Tracer("PredictionRepo").Start(ctx, "ReadingsInWindow")
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "occupancy_reading"),
		attribute.String("floor.id", floorID.String()),
		attribute.String("window.start", w.Start.String()),
		attribute.String("window.end", w.End.String()),
	)
	defer span.End()

	const todExpr = "EXTRACT(EPOCH FROM (updated_at AT TIME ZONE ?)::time)::int"

	var windowCond squirrel.Sqlizer
	if w.Start <= w.End {
		windowCond = squirrel.Expr(todExpr+" BETWEEN ? AND ?", r.loc.String(), int(w.Start), int(w.End))
	} else {
		// Window crosses midnight.
		windowCond = squirrel.Or{
			squirrel.Expr(todExpr+" >= ?", r.loc.String(), int(w.Start)),
			squirrel.Expr(todExpr+" <= ?", r.loc.String(), int(w.End)),
		}
	}

	classCond := squirrel.Expr("EXTRACT(ISODOW FROM updated_at AT TIME ZONE ?) <= 5", r.loc.String())
	if weekend {
		classCond = squirrel.Expr("EXTRACT(ISODOW FROM updated_at AT TIME ZONE ?) >= 6", r.loc.String())
	}

	query, args, err := r.sb.
		Select("rate", "congestion", "EXTRACT(EPOCH FROM (updated_at AT TIME ZONE '"+r.loc.String()+"')::time)::int AS tod").
		From("occupancy_reading").
		Where(squirrel.Eq{"floor_id": floorID}).
		Where(windowCond).
		Where(classCond).
		OrderBy("tod").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building window query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching window readings: %w", err)
	}
	defer rows.Close()

	var readings []WindowReading
	for rows.Next() {
		var reading WindowReading
		var tod int
		if err := rows.Scan(&reading.Rate, &reading.Congestion, &tod); err != nil {
			return nil, fmt.Errorf("database error scanning window reading: %w", err)
		}
		reading.At = TimeOfDay(tod)
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error reading window rows: %w", err)
	}

	span.SetAttributes(attribute.Int("db.readings", len(readings)))
	span.SetStatus(codes.Ok, "Window readings fetched")
	return readings, nil
}

// Upsert writes the floor's current estimate, replacing any previous one.
func (r *RepositoryImpl) Upsert(ctx context.Context, floorID uuid.UUID, rate float64) error {
	ctx, span := otel.Tracer("PredictionRepo").Start(ctx, "Upsert")
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "floor_prediction"),
		attribute.String("floor.id", floorID.String()),
		attribute.Float64("prediction.rate", rate),
	)
	defer span.End()

	query, args, err := r.sb.
		Insert("floor_prediction").
		Columns("floor_id", "rate", "updated_at").
		Values(floorID, rate, squirrel.Expr("now()")).
		Suffix("ON CONFLICT (floor_id) DO UPDATE SET rate = EXCLUDED.rate, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building prediction upsert: %w", err)
	}

	if _, err := r.pgpool.Exec(ctx, query, args...); err != nil {
		r.logger.Error("Failed to upsert floor prediction", zap.Any("error", err),
			zap.String("floorID", floorID.String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPSERT failed")
		return fmt.Errorf("database error upserting prediction: %w", err)
	}

	span.SetStatus(codes.Ok, "Prediction upserted")
	return nil
}

// DeleteForFloor removes the floor's estimate if present.
func (r *RepositoryImpl) DeleteForFloor(ctx context.Context, floorID uuid.UUID) error {
	ctx, span := otel.Tracer("PredictionRepo").Start(ctx, "DeleteForFloor")
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "floor_prediction"),
		attribute.String("floor.id", floorID.String()),
	)
	defer span.End()

	query, args, err := r.sb.Delete("floor_prediction").Where(squirrel.Eq{"floor_id": floorID}).ToSql()
	if err != nil {
		return fmt.Errorf("building prediction delete: %w", err)
	}

	if _, err := r.pgpool.Exec(ctx, query, args...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("database error deleting prediction: %w", err)
	}

	span.SetStatus(codes.Ok, "Prediction deleted")
	return nil
}

// DeleteAll clears every estimate. Used outside estimation hours.
func (r *RepositoryImpl) DeleteAll(ctx context.Context) (int64, error) {
	ctx, span := otel.Tracer("PredictionRepo").Start(ctx, "DeleteAll")
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "floor_prediction"),
	)
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM floor_prediction`)
	if err != nil {
		r.logger.Error("Failed to clear floor predictions", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return 0, fmt.Errorf("database error clearing predictions: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.rows_deleted", tag.RowsAffected()))
	span.SetStatus(codes.Ok, "Predictions cleared")
	return tag.RowsAffected(), nil
}
