package models

import (
	"errors"
	"fmt"
	"time"
)

// Domain specific errors for the occupancy core.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrValidation      = errors.New("validation failed")

	ErrFloorNotFound  = errors.New("cafe floor not found")
	ErrNoSeats        = errors.New("cafe floor has no seats")
	ErrInvalidRate    = errors.New("occupancy rate must be between 0.0 and 1.0")
	ErrCooldownActive = errors.New("occupancy update cooldown active")
)

// CooldownError reports how long the caller must wait before the next
// update on the same floor. It matches ErrCooldownActive under errors.Is
// so handlers can map it to a stable reason code.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	minutes := int(e.Remaining.Minutes())
	if e.Remaining > 0 && minutes == 0 {
		minutes = 1
	}
	return fmt.Sprintf("occupancy update cooldown active, retry in %d minutes", minutes)
}

func (e *CooldownError) Is(target error) bool { return target == ErrCooldownActive }
