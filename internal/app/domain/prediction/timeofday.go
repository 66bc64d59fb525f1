package prediction

import (
	"fmt"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// TimeOfDay is a clock position as seconds since local midnight, independent
// of the calendar date. Interpolation compares readings from different days
// purely by where they sit on the clock face.
type TimeOfDay int

func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// Add shifts the clock position, wrapping across midnight in either direction.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	s := (int(t) + int(d/time.Second)) % secondsPerDay
	if s < 0 {
		s += secondsPerDay
	}
	return TimeOfDay(s)
}

// Until returns the forward clock distance from t to other in seconds,
// always in [0, secondsPerDay).
func (t TimeOfDay) Until(other TimeOfDay) int {
	d := (int(other) - int(t)) % secondsPerDay
	if d < 0 {
		d += secondsPerDay
	}
	return d
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, int(t)/60%60, int(t)%60)
}

// Window is a clock-face interval. Start after End means the window crosses
// midnight, e.g. 23:20 to 00:40.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// WindowAround centers a window of ±radius on the given clock position.
func WindowAround(center TimeOfDay, radius time.Duration) Window {
	return Window{Start: center.Add(-radius), End: center.Add(radius)}
}

// Contains reports whether the clock position falls inside the window,
// boundaries included.
func (w Window) Contains(t TimeOfDay) bool {
	if w.Start <= w.End {
		return t >= w.Start && t <= w.End
	}
	return t >= w.Start || t <= w.End
}
