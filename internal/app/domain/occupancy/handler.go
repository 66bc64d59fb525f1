package occupancy

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/YongWoo-8933/Cafejari-Server/internal/app/middleware"
	"github.com/YongWoo-8933/Cafejari-Server/internal/app/models"
)

type SubmitReadingRequest struct {
	FloorID uuid.UUID `json:"floor_id" binding:"required"`
	Rate    *float64  `json:"occupancy_rate" binding:"required"`
}

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// SubmitReading handles POST /api/v1/occupancy for authenticated users.
func (h *Handler) SubmitReading(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody("UNAUTHENTICATED", "sign in to share occupancy"))
		return
	}
	h.submit(c, &userID)
}

// SubmitGuestReading handles POST /api/v1/occupancy/guest. Guest readings
// feed the crowd signal but never earn points.
func (h *Handler) SubmitGuestReading(c *gin.Context) {
	h.submit(c, nil)
}

func (h *Handler) submit(c *gin.Context, userID *uuid.UUID) {
	var req SubmitReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Malformed occupancy submission", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorBody("BAD_REQUEST", "floor_id and occupancy_rate are required"))
		return
	}

	reading, err := h.service.SubmitReading(c.Request.Context(), req.FloorID, *req.Rate, userID)
	if err != nil {
		h.renderSubmitError(c, err)
		return
	}

	c.JSON(http.StatusCreated, reading)
}

// MyReadings handles GET /api/v1/occupancy/mine.
func (h *Handler) MyReadings(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody("UNAUTHENTICATED", "sign in to view your readings"))
		return
	}

	readings, err := h.service.MyReadings(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list user readings", zap.Error(err), zap.String("userID", userID.String()))
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", "could not load readings"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"readings": readings})
}

// MyReadingsToday handles GET /api/v1/occupancy/mine/today.
func (h *Handler) MyReadingsToday(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody("UNAUTHENTICATED", "sign in to view your readings"))
		return
	}

	readings, err := h.service.MyReadingsToday(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list today's readings", zap.Error(err), zap.String("userID", userID.String()))
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", "could not load readings"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"readings": readings})
}

func (h *Handler) renderSubmitError(c *gin.Context, err error) {
	var cooldownErr *models.CooldownError
	switch {
	case errors.Is(err, models.ErrInvalidRate):
		c.JSON(http.StatusBadRequest, errorBody("INVALID_RATE", "occupancy_rate must be between 0 and 1"))
	case errors.Is(err, models.ErrFloorNotFound):
		c.JSON(http.StatusNotFound, errorBody("FLOOR_NOT_FOUND", "no such cafe floor"))
	case errors.Is(err, models.ErrNoSeats):
		c.JSON(http.StatusBadRequest, errorBody("NO_SEATS_ON_FLOOR", "this floor has no seats to share"))
	case errors.As(err, &cooldownErr):
		c.JSON(http.StatusTooManyRequests, errorBody("COOLDOWN_ACTIVE", cooldownErr.Error()))
	default:
		h.logger.Error("Occupancy submission failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", "could not store reading"))
	}
}

func errorBody(code, message string) gin.H {
	return gin.H{"code": code, "message": message}
}
