package nudge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

var _ Repository = (*RepositoryImpl)(nil)

// PendingNudge is an authored reading old enough for a follow-up reminder but
// not yet stale, with the venue names for the message.
type PendingNudge struct {
	ReadingID uuid.UUID
	UserID    uuid.UUID
	FloorID   uuid.UUID
	CafeName  string
	FloorName string
}

type Repository interface {
	PendingNudges(ctx context.Context, oldestUpdatedAt, newestUpdatedAt time.Time) ([]PendingNudge, error)
	MarkNotified(ctx context.Context, readingID uuid.UUID) error
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

// PendingNudges returns authored, un-notified readings whose updated_at lies
// in [oldestUpdatedAt, newestUpdatedAt].
func (r *RepositoryImpl) PendingNudges(ctx context.Context, oldestUpdatedAt, newestUpdatedAt time.Time) ([]PendingNudge, error) {
	ctx, span := otel.Tracer("NudgeRepo").Start(ctx, "PendingNudges")
	span.SetAttributes(semconv.DBSystemPostgreSQL, attribute.String("db.sql.table", "occupancy_reading"))
	defer span.End()

	query := `
        SELECT r.id, r.user_id, r.floor_id, c.name, f.name
        FROM occupancy_reading r
        JOIN cafe_floor f ON f.id = r.floor_id
        JOIN cafe c ON c.id = f.cafe_id
        WHERE r.notified = FALSE
          AND r.user_id IS NOT NULL
          AND r.updated_at BETWEEN $1 AND $2
        ORDER BY r.updated_at`

	rows, err := r.pgpool.Query(ctx, query, oldestUpdatedAt, newestUpdatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error listing pending nudges: %w", err)
	}
	defer rows.Close()

	var pending []PendingNudge
	for rows.Next() {
		var p PendingNudge
		if err := rows.Scan(&p.ReadingID, &p.UserID, &p.FloorID, &p.CafeName, &p.FloorName); err != nil {
			return nil, fmt.Errorf("database error scanning pending nudge: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error reading pending nudges: %w", err)
	}

	span.SetAttributes(attribute.Int("db.pending", len(pending)))
	span.SetStatus(codes.Ok, "Pending nudges listed")
	return pending, nil
}

// MarkNotified flips the reading's one-shot notified flag.
func (r *RepositoryImpl) MarkNotified(ctx context.Context, readingID uuid.UUID) error {
	ctx, span := otel.Tracer("NudgeRepo").Start(ctx, "MarkNotified")
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "occupancy_reading"),
		attribute.String("db.reading.id", readingID.String()),
	)
	defer span.End()

	query := `UPDATE occupancy_reading SET notified = TRUE WHERE id = $1`
	if _, err := r.pgpool.Exec(ctx, query, readingID); err != nil {
		r.logger.Error("Failed to mark reading notified", zap.Any("error", err),
			zap.String("readingID", readingID.String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error marking reading notified: %w", err)
	}

	span.SetStatus(codes.Ok, "Reading marked notified")
	return nil
}
