package occupancy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/YongWoo-8933/Cafejari-Server/internal/app/models"
)

type MockOccupancyService struct {
	submitErr   error
	listErr     error
	lastRate    float64
	lastUserID  *uuid.UUID
	lastFloorID uuid.UUID
	readings    []models.OccupancyReading
}

func (m *MockOccupancyService) SubmitReading(_ context.Context, floorID uuid.UUID, rate float64, userID *uuid.UUID) (*models.OccupancyReading, error) {
	m.lastFloorID = floorID
	m.lastRate = rate
	m.lastUserID = userID
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &models.OccupancyReading{
		ID:      uuid.New(),
		FloorID: floorID,
		UserID:  userID,
		Rate:    rate,
		Point:   50,
	}, nil
}

func (m *MockOccupancyService) MyReadings(context.Context, uuid.UUID) ([]models.OccupancyReading, error) {
	return m.readings, m.listErr
}

func (m *MockOccupancyService) MyReadingsToday(context.Context, uuid.UUID) ([]models.OccupancyReading, error) {
	return m.readings, m.listErr
}

func handlerFixture(svc Service) (*Handler, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc, zap.NewNop())
	r := gin.New()
	return h, r
}

func submitBody(t *testing.T, floorID uuid.UUID, rate float64) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(gin.H{"floor_id": floorID, "occupancy_rate": rate})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestHandler_SubmitGuestReading(t *testing.T) {
	svc := &MockOccupancyService{}
	h, r := handlerFixture(svc)
	r.POST("/occupancy/guest", h.SubmitGuestReading)

	floorID := uuid.New()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/occupancy/guest", submitBody(t, floorID, 0.4))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, floorID, svc.lastFloorID)
	assert.Nil(t, svc.lastUserID)
}

func TestHandler_SubmitReading_UsesAuthenticatedUser(t *testing.T) {
	svc := &MockOccupancyService{}
	h, r := handlerFixture(svc)
	userID := uuid.New()
	r.POST("/occupancy", func(c *gin.Context) {
		c.Set("user_id", userID)
		h.SubmitReading(c)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/occupancy", submitBody(t, uuid.New(), 0.75))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.lastUserID)
	assert.Equal(t, userID, *svc.lastUserID)
}

func TestHandler_SubmitReading_Unauthenticated(t *testing.T) {
	svc := &MockOccupancyService{}
	h, r := handlerFixture(svc)
	r.POST("/occupancy", h.SubmitReading)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/occupancy", submitBody(t, uuid.New(), 0.5))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_Submit_MalformedBody(t *testing.T) {
	svc := &MockOccupancyService{}
	h, r := handlerFixture(svc)
	r.POST("/occupancy/guest", h.SubmitGuestReading)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/occupancy/guest", bytes.NewBufferString(`{"floor_id": "nope"}`))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Submit_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"invalid rate", models.ErrInvalidRate, http.StatusBadRequest, "INVALID_RATE"},
		{"unknown floor", models.ErrFloorNotFound, http.StatusNotFound, "FLOOR_NOT_FOUND"},
		{"no seats", models.ErrNoSeats, http.StatusBadRequest, "NO_SEATS_ON_FLOOR"},
		{"cooldown", &models.CooldownError{Remaining: 3 * time.Minute}, http.StatusTooManyRequests, "COOLDOWN_ACTIVE"},
		{"storage failure", fmt.Errorf("pool closed"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &MockOccupancyService{submitErr: tc.err}
			h, r := handlerFixture(svc)
			r.POST("/occupancy/guest", h.SubmitGuestReading)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/occupancy/guest", submitBody(t, uuid.New(), 0.5))
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.code, w.Code)
			assert.Contains(t, w.Body.String(), tc.body)
		})
	}
}

func TestHandler_MyReadings(t *testing.T) {
	svc := &MockOccupancyService{readings: []models.OccupancyReading{
		{ID: uuid.New(), Rate: 0.3, Point: 50},
		{ID: uuid.New(), Rate: 0.6, Point: 20},
	}}
	h, r := handlerFixture(svc)
	userID := uuid.New()
	r.GET("/occupancy/mine", func(c *gin.Context) {
		c.Set("user_id", userID)
		h.MyReadings(c)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/occupancy/mine", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Readings []models.OccupancyReading `json:"readings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Readings, 2)
}
