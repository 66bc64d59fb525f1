// Package account is the read/write slice of the user catalog this core
// touches: grade limits and the point balance.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YongWoo-8933/Cafejari-Server/internal/app/models"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository exposes the account lookups and the single balance mutation the
// occupancy core performs.
type Repository interface {
	GetGrade(ctx context.Context, userID uuid.UUID) (*models.Grade, error)
	AddPoints(ctx context.Context, userID uuid.UUID, amount int) error
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool *pgxpool.Pool
	cache  *gocache.Cache
}

func NewRepository(pgxpool *pgxpool.Pool, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgxpool,
		cache:  gocache.New(time.Minute, 5*time.Minute),
	}
}

// GetGrade returns the sharing limits of the user's grade.
func (r *RepositoryImpl) GetGrade(ctx context.Context, userID uuid.UUID) (*models.Grade, error) {
	if cached, ok := r.cache.Get("grade:" + userID.String()); ok {
		grade := cached.(models.Grade)
		return &grade, nil
	}

	ctx, span := otel.Tracer("AccountRepo").Start(ctx, "GetGrade", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "user_grade"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	var grade models.Grade
	query := `
        SELECT g.id, g.name, g.sharing_restriction_per_floor, g.activity_stack_restriction_per_day
        FROM user_grade g
        JOIN user_account u ON u.grade_id = g.id
        WHERE u.id = $1`
	err := r.pgpool.QueryRow(ctx, query, userID).Scan(
		&grade.ID, &grade.Name, &grade.SharingRestrictionPerFloor, &grade.ActivityStackRestrictionPerDay)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "User not found")
			return nil, fmt.Errorf("user %s: %w", userID.String(), models.ErrNotFound)
		}
		r.logger.Error("Failed to fetch user grade", zap.Any("error", err), zap.String("userID", userID.String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching grade: %w", err)
	}

	r.cache.Set("grade:"+userID.String(), grade, gocache.DefaultExpiration)
	span.SetStatus(codes.Ok, "Grade fetched")
	return &grade, nil
}

// AddPoints atomically increases the user's balance.
func (r *RepositoryImpl) AddPoints(ctx context.Context, userID uuid.UUID, amount int) error {
	ctx, span := otel.Tracer("AccountRepo").Start(ctx, "AddPoints", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "user_account"),
		attribute.String("db.user.id", userID.String()),
		attribute.Int("points", amount),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx,
		`UPDATE user_account SET point = point + $1 WHERE id = $2`, amount, userID)
	if err != nil {
		r.logger.Error("Failed to add points", zap.Any("error", err), zap.String("userID", userID.String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error adding points: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "User not found")
		return fmt.Errorf("user %s: %w", userID.String(), models.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Points added")
	return nil
}
