package prediction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeOfDayOf(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Seoul")
	tod := TimeOfDayOf(time.Date(2026, 3, 14, 13, 30, 15, 0, loc))
	assert.Equal(t, TimeOfDay(13*3600+30*60+15), tod)
	assert.Equal(t, "13:30:15", tod.String())
}

func TestTimeOfDay_AddWrapsAroundMidnight(t *testing.T) {
	late := TimeOfDay(23 * 3600) // 23:00:00
	assert.Equal(t, TimeOfDay(30*60), late.Add(90*time.Minute))

	early := TimeOfDay(30 * 60) // 00:30:00
	assert.Equal(t, TimeOfDay(23*3600), early.Add(-90*time.Minute))
}

func TestTimeOfDay_Until(t *testing.T) {
	a := TimeOfDay(10 * 3600)
	b := TimeOfDay(11 * 3600)
	assert.Equal(t, 3600, a.Until(b))

	// Forward distance across midnight.
	late := TimeOfDay(23*3600 + 30*60)
	early := TimeOfDay(30 * 60)
	assert.Equal(t, 3600, late.Until(early))
	assert.Equal(t, secondsPerDay-3600, early.Until(late))
}

func TestWindow_Contains(t *testing.T) {
	w := WindowAround(TimeOfDay(13*3600), 80*time.Minute)
	assert.True(t, w.Contains(TimeOfDay(13*3600)))
	assert.True(t, w.Contains(TimeOfDay(11*3600+40*60)))
	assert.True(t, w.Contains(TimeOfDay(14*3600+20*60)))
	assert.False(t, w.Contains(TimeOfDay(11*3600+39*60+59)))
	assert.False(t, w.Contains(TimeOfDay(14*3600+20*60+1)))
}

func TestWindow_ContainsAcrossMidnight(t *testing.T) {
	w := WindowAround(TimeOfDay(0), 80*time.Minute)
	assert.True(t, w.Contains(TimeOfDay(secondsPerDay-40*60)), "23:20 is inside")
	assert.True(t, w.Contains(TimeOfDay(40*60)), "00:40 is inside")
	assert.False(t, w.Contains(TimeOfDay(12*3600)), "noon is outside")
}
