package occupancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YongWoo-8933/Cafejari-Server/internal/app/models"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository persists occupancy readings and the daily activity ledger.
type Repository interface {
	InsertReading(ctx context.Context, reading *models.OccupancyReading) (*models.OccupancyReading, error)
	ReadingsForUserFloorSince(ctx context.Context, userID, floorID uuid.UUID, since time.Time) ([]models.OccupancyReading, error)
	CountAuthoredReadings(ctx context.Context, floorID uuid.UUID) (int, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.OccupancyReading, error)
	ListByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.OccupancyReading, error)

	HasActivityEntry(ctx context.Context, userID, floorID uuid.UUID, since time.Time) (bool, error)
	InsertActivityEntry(ctx context.Context, userID, floorID uuid.UUID) error
	CountActivityEntries(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool *pgxpool.Pool
}

func NewRepository(pgxpool *pgxpool.Pool, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgxpool,
	}
}

const readingColumns = "id, floor_id, user_id, rate, congestion, point, notified, updated_at"

func scanReading(row pgx.Row) (*models.OccupancyReading, error) {
	var r models.OccupancyReading
	err := row.Scan(&r.ID, &r.FloorID, &r.UserID, &r.Rate, &r.Congestion, &r.Point, &r.Notified, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// InsertReading appends one reading. Readings are immutable after this point
// except for the notified flag.
func (r *RepositoryImpl) InsertReading(ctx context.Context, reading *models.OccupancyReading) (*models.OccupancyReading, error) {
	ctx, span := otel.Tracer("OccupancyRepo").Start(ctx, "InsertReading", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "occupancy_reading"),
		attribute.String("floor.id", reading.FloorID.String()),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "InsertReading"), zap.String("floorID", reading.FloorID.String()))
	l.Debug("Inserting occupancy reading")

	query := `
        INSERT INTO occupancy_reading (floor_id, user_id, rate, congestion, point, updated_at)
        VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
        RETURNING ` + readingColumns

	var updatedAt *time.Time
	if !reading.UpdatedAt.IsZero() {
		updatedAt = &reading.UpdatedAt
	}

	saved, err := scanReading(r.pgpool.QueryRow(ctx, query,
		reading.FloorID, reading.UserID, reading.Rate, reading.Congestion, reading.Point, updatedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // FK violation
			l.Warn("Reading references a missing floor or user", zap.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "FK violation")
			return nil, fmt.Errorf("reading references missing row: %w", models.ErrNotFound)
		}
		l.Error("Failed to insert occupancy reading", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error inserting reading: %w", err)
	}

	span.SetAttributes(attribute.String("db.reading.id", saved.ID.String()))
	span.SetStatus(codes.Ok, "Reading inserted")
	return saved, nil
}

// ReadingsForUserFloorSince returns the author's readings for one floor since
// the given instant, newest first.
func (r *RepositoryImpl) ReadingsForUserFloorSince(ctx context.Context, userID, floorID uuid.UUID, since time.Time) ([]models.OccupancyReading, error) {
	ctx, span := otel.Tracer("OccupancyRepo").Start(ctx, "ReadingsForUserFloorSince", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "occupancy_reading"),
		attribute.String("db.user.id", userID.String()),
		attribute.String("floor.id", floorID.String()),
	))
	defer span.End()

	query := `
        SELECT ` + readingColumns + `
        FROM occupancy_reading
        WHERE user_id = $1 AND floor_id = $2 AND updated_at >= $3
        ORDER BY updated_at DESC`

	rows, err := r.pgpool.Query(ctx, query, userID, floorID, since)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching readings: %w", err)
	}
	defer rows.Close()

	readings, err := collectReadings(rows)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetStatus(codes.Ok, "Readings fetched")
	return readings, nil
}

// CountAuthoredReadings counts every authored reading ever recorded for the
// floor; the reward tier derives from this.
func (r *RepositoryImpl) CountAuthoredReadings(ctx context.Context, floorID uuid.UUID) (int, error) {
	ctx, span := otel.Tracer("OccupancyRepo").Start(ctx, "CountAuthoredReadings", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "occupancy_reading"),
		attribute.String("floor.id", floorID.String()),
	))
	defer span.End()

	var count int
	query := `SELECT COUNT(*) FROM occupancy_reading WHERE floor_id = $1 AND user_id IS NOT NULL`
	if err := r.pgpool.QueryRow(ctx, query, floorID).Scan(&count); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return 0, fmt.Errorf("database error counting readings: %w", err)
	}

	span.SetStatus(codes.Ok, "Readings counted")
	return count, nil
}

// ListByUser returns all of one user's readings, newest first.
func (r *RepositoryImpl) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.OccupancyReading, error) {
	ctx, span := otel.Tracer("OccupancyRepo").Start(ctx, "ListByUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "occupancy_reading"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	query := `
        SELECT ` + readingColumns + `
        FROM occupancy_reading
        WHERE user_id = $1
        ORDER BY updated_at DESC`

	rows, err := r.pgpool.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching user readings: %w", err)
	}
	defer rows.Close()

	readings, err := collectReadings(rows)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetStatus(codes.Ok, "User readings fetched")
	return readings, nil
}

// ListByUserSince returns one user's readings since an instant, newest first.
func (r *RepositoryImpl) ListByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.OccupancyReading, error) {
	ctx, span := otel.Tracer("OccupancyRepo").Start(ctx, "ListByUserSince", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "occupancy_reading"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	query := `
        SELECT ` + readingColumns + `
        FROM occupancy_reading
        WHERE user_id = $1 AND updated_at >= $2
        ORDER BY updated_at DESC`

	rows, err := r.pgpool.Query(ctx, query, userID, since)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching user readings: %w", err)
	}
	defer rows.Close()

	readings, err := collectReadings(rows)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetStatus(codes.Ok, "User readings fetched")
	return readings, nil
}

// HasActivityEntry reports whether (user, floor) already holds a ledger slot
// created at or after the given instant.
func (r *RepositoryImpl) HasActivityEntry(ctx context.Context, userID, floorID uuid.UUID, since time.Time) (bool, error) {
	ctx, span := otel.Tracer("OccupancyRepo").Start(ctx, "HasActivityEntry", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "daily_activity_entry"),
		attribute.String("db.user.id", userID.String()),
		attribute.String("floor.id", floorID.String()),
	))
	defer span.End()

	var exists bool
	query := `
        SELECT EXISTS (
            SELECT 1 FROM daily_activity_entry
            WHERE user_id = $1 AND floor_id = $2 AND created_at >= $3
        )`
	if err := r.pgpool.QueryRow(ctx, query, userID, floorID, since).Scan(&exists); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return false, fmt.Errorf("database error checking activity entry: %w", err)
	}

	span.SetStatus(codes.Ok, "Activity entry checked")
	return exists, nil
}

// InsertActivityEntry stacks one daily activity slot for (user, floor).
func (r *RepositoryImpl) InsertActivityEntry(ctx context.Context, userID, floorID uuid.UUID) error {
	ctx, span := otel.Tracer("OccupancyRepo").Start(ctx, "InsertActivityEntry", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "daily_activity_entry"),
		attribute.String("db.user.id", userID.String()),
		attribute.String("floor.id", floorID.String()),
	))
	defer span.End()

	query := `INSERT INTO daily_activity_entry (user_id, floor_id) VALUES ($1, $2)`
	if _, err := r.pgpool.Exec(ctx, query, userID, floorID); err != nil {
		r.logger.Error("Failed to insert daily activity entry", zap.Any("error", err),
			zap.String("userID", userID.String()), zap.String("floorID", floorID.String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return fmt.Errorf("database error inserting activity entry: %w", err)
	}

	span.SetStatus(codes.Ok, "Activity entry inserted")
	return nil
}

// CountActivityEntries counts a user's ledger slots created at or after the
// given instant, one per distinct floor.
func (r *RepositoryImpl) CountActivityEntries(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	ctx, span := otel.Tracer("OccupancyRepo").Start(ctx, "CountActivityEntries", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "daily_activity_entry"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	var count int
	query := `SELECT COUNT(*) FROM daily_activity_entry WHERE user_id = $1 AND created_at >= $2`
	if err := r.pgpool.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return 0, fmt.Errorf("database error counting activity entries: %w", err)
	}

	span.SetStatus(codes.Ok, "Activity entries counted")
	return count, nil
}

func collectReadings(rows pgx.Rows) ([]models.OccupancyReading, error) {
	var readings []models.OccupancyReading
	for rows.Next() {
		var reading models.OccupancyReading
		err := rows.Scan(&reading.ID, &reading.FloorID, &reading.UserID, &reading.Rate,
			&reading.Congestion, &reading.Point, &reading.Notified, &reading.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("database error scanning reading: %w", err)
		}
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error reading rows: %w", err)
	}
	return readings, nil
}
