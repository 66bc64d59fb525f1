package models

import (
	"time"

	"github.com/google/uuid"
)

// CongestionLevel is one step of the area congestion scale published by the
// city data feed. The scale is ordered; comparisons go through CongestionIndex,
// never through the raw strings.
type CongestionLevel string

const (
	CongestionRelaxed  CongestionLevel = "여유"
	CongestionNormal   CongestionLevel = "보통"
	CongestionBusy     CongestionLevel = "약간 붐빔"
	CongestionVeryBusy CongestionLevel = "붐빔"
)

// CongestionLevels is the fixed ordering of the scale, least crowded first.
var CongestionLevels = []CongestionLevel{
	CongestionRelaxed,
	CongestionNormal,
	CongestionBusy,
	CongestionVeryBusy,
}

// CongestionIndex returns the position of a level on the scale, or -1 for an
// unknown value.
func CongestionIndex(level CongestionLevel) int {
	for i, l := range CongestionLevels {
		if l == level {
			return i
		}
	}
	return -1
}

// Cafe is a venue owned by the catalog; this core only reads it.
type Cafe struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IsOpened bool      `json:"is_opened"`
}

// CafeFloor is one seating level of a cafe.
type CafeFloor struct {
	ID       uuid.UUID `json:"id"`
	CafeID   uuid.UUID `json:"cafe_id"`
	Name     string    `json:"name"`
	HasSeat  bool      `json:"has_seat"`
	CafeName string    `json:"cafe_name"`
}

// CongestionArea is an externally maintained geographic zone with a
// periodically refreshed crowd level.
type CongestionArea struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	CurrentCongestion CongestionLevel `json:"current_congestion"`
}

// Grade carries the per-user sharing limits granted by the account catalog.
type Grade struct {
	ID                             uuid.UUID `json:"id"`
	Name                           string    `json:"name"`
	SharingRestrictionPerFloor     int       `json:"sharing_restriction_per_floor"`
	ActivityStackRestrictionPerDay int       `json:"activity_stack_restriction_per_day"`
}

// OccupancyReading is one crowd observation for a floor. Readings are
// append-only; only the Notified flag is ever flipped, once, by the nudge job.
type OccupancyReading struct {
	ID         uuid.UUID        `json:"id"`
	FloorID    uuid.UUID        `json:"floor_id"`
	UserID     *uuid.UUID       `json:"user_id,omitempty"`
	Rate       float64          `json:"occupancy_rate"`
	Congestion *CongestionLevel `json:"congestion,omitempty"`
	Point      int              `json:"point"`
	Notified   bool             `json:"-"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// DailyActivityEntry marks that a floor consumed one of the user's daily
// distinct-floor reward slots. Entries go stale naturally after midnight.
type DailyActivityEntry struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	FloorID   uuid.UUID `json:"floor_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FloorPrediction is the single current crowding estimate for a floor,
// written exclusively by the prediction engine.
type FloorPrediction struct {
	FloorID   uuid.UUID `json:"floor_id"`
	Rate      float64   `json:"occupancy_rate"`
	UpdatedAt time.Time `json:"updated_at"`
}
