// Package catalog is the read side of the venue catalog: floors, cafes and
// the externally refreshed congestion areas. Everything except the area
// congestion level is owned by another service.
package catalog

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

// Repository exposes the catalog lookups the occupancy core needs.
type Repository interface {
	GetFloor(ctx context.Context, floorID uuid.UUID) (*models.CafeFloor, error)
	CongestionLevelsForCafe(ctx context.Context, cafeID uuid.UUID) ([]models.CongestionLevel, error)
	ListCongestionAreas(ctx context.Context) ([]models.CongestionArea, error)
	UpdateAreaCongestion(ctx context.Context, areaID uuid.UUID, level models.CongestionLevel) error
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool *pgxpool.Pool
	cache  *gocache.Cache
}

// Floor and congestion lookups sit on the ingestion hot path; a short TTL
// cache keeps repeated submissions from hammering the catalog tables.
const (
	cacheTTL     = 30 * time.Second
	cacheCleanup = 5 * time.Minute
)

func NewRepository(pgxpool *pgxpool.Pool, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgxpool,
		cache:  gocache.New(cacheTTL, cacheCleanup),
	}
}

// GetFloor fetches a floor joined with its cafe.
func (r *RepositoryImpl) GetFloor(ctx context.Context, floorID uuid.UUID) (*models.CafeFloor, error) {
	if cached, ok := r.cache.Get("floor:" + floorID.String()); ok {
		floor := cached.(models.CafeFloor)
		return &floor, nil
	}

	ctx, span := otel.Tracer("CatalogRepo").Start(ctx, "GetFloor", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "cafe_floor"),
		attribute.String("floor.id", floorID.String()),
	))
	defer span.End()

	var floor models.CafeFloor
	query := `
        SELECT f.id, f.cafe_id, f.name, f.has_seat, c.name
        FROM cafe_floor f
        JOIN cafe c ON c.id = f.cafe_id
        WHERE f.id = $1`
	err := r.pgpool.QueryRow(ctx, query, floorID).Scan(
		&floor.ID, &floor.CafeID, &floor.Name, &floor.HasSeat, &floor.CafeName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Floor not found")
			return nil, fmt.Errorf("floor %s: %w", floorID.String(), models.ErrFloorNotFound)
		}
		r.logger.Error("Failed to fetch cafe floor", zap.Any("error", err), zap.String("floorID", floorID.String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching floor: %w", err)
	}

	r.cache.Set("floor:"+floorID.String(), floor, gocache.DefaultExpiration)
	span.SetStatus(codes.Ok, "Floor fetched")
	return &floor, nil
}

// CongestionLevelsForCafe returns the current level of every congestion area
// linked to the cafe. Empty when the cafe has no linked areas.
func (r *RepositoryImpl) CongestionLevelsForCafe(ctx context.Context, cafeID uuid.UUID) ([]models.CongestionLevel, error) {
	if cached, ok := r.cache.Get("congestion:" + cafeID.String()); ok {
		return cached.([]models.CongestionLevel), nil
	}

	ctx, span := otel.Tracer("CatalogRepo").Start(ctx, "CongestionLevelsForCafe", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "cafe_congestion_area"),
		attribute.String("cafe.id", cafeID.String()),
	))
	defer span.End()

	query := `
        SELECT a.current_congestion
        FROM cafe_congestion_area a
        JOIN cafe_congestion_area_link l ON l.congestion_area_id = a.id
        WHERE l.cafe_id = $1`
	rows, err := r.pgpool.Query(ctx, query, cafeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching congestion levels: %w", err)
	}
	defer rows.Close()

	var levels []models.CongestionLevel
	for rows.Next() {
		var level models.CongestionLevel
		if err := rows.Scan(&level); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning congestion level: %w", err)
		}
		levels = append(levels, level)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading congestion levels: %w", err)
	}

	r.cache.Set("congestion:"+cafeID.String(), levels, gocache.DefaultExpiration)
	span.SetStatus(codes.Ok, "Congestion levels fetched")
	return levels, nil
}

// ListCongestionAreas returns every registered congestion area.
func (r *RepositoryImpl) ListCongestionAreas(ctx context.Context) ([]models.CongestionArea, error) {
	ctx, span := otel.Tracer("CatalogRepo").Start(ctx, "ListCongestionAreas", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "cafe_congestion_area"),
	))
	defer span.End()

	rows, err := r.pgpool.Query(ctx, `SELECT id, name, current_congestion FROM cafe_congestion_area ORDER BY name`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching congestion areas: %w", err)
	}
	defer rows.Close()

	var areas []models.CongestionArea
	for rows.Next() {
		var area models.CongestionArea
		if err := rows.Scan(&area.ID, &area.Name, &area.CurrentCongestion); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning congestion area: %w", err)
		}
		areas = append(areas, area)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading congestion areas: %w", err)
	}

	span.SetStatus(codes.Ok, "Congestion areas fetched")
	return areas, nil
}

// UpdateAreaCongestion stores a freshly polled level for one area.
func (r *RepositoryImpl) UpdateAreaCongestion(ctx context.Context, areaID uuid.UUID, level models.CongestionLevel) error {
	ctx, span := otel.Tracer("CatalogRepo").Start(ctx, "UpdateAreaCongestion", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "cafe_congestion_area"),
		attribute.String("area.id", areaID.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx,
		`UPDATE cafe_congestion_area SET current_congestion = $1 WHERE id = $2`, level, areaID)
	if err != nil {
		r.logger.Error("Failed to update area congestion", zap.Any("error", err), zap.String("areaID", areaID.String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error updating area congestion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Area not found")
		return fmt.Errorf("congestion area %s: %w", areaID.String(), models.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Area congestion updated")
	return nil
}
