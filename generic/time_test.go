package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-engine/generic"
)

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		in   string
		want generic.ClockTime
		ok   bool
	}{
		{"09:00", generic.NewClockTime(9, 0, 0), true},
		{"09:30:15", generic.NewClockTime(9, 30, 15), true},
		{"24:00", generic.EndOfDay, true},
		{"23:59:59", generic.EndOfDaySentinel, true},
		{"24:01", 0, false},
		{"9", 0, false},
		{"ab:cd", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := generic.ParseClockTime(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClockTime_EndOfDayRendersAsSentinel(t *testing.T) {
	assert.Equal(t, "23:59:59", generic.EndOfDay.String())
	assert.Equal(t, generic.EndOfDay, generic.EndOfDaySentinel.Normalize())
	assert.Equal(t, "9:00 AM", generic.NewClockTime(9, 0, 0).Display())
	assert.Equal(t, "12:30 PM", generic.NewClockTime(12, 30, 0).Display())
}

func TestDaysBetween(t *testing.T) {
	a := generic.MustParseDate("2024-01-04")
	b := generic.MustParseDate("2024-01-17")

	assert.Equal(t, 13, generic.DaysBetween(a, b))
	assert.Equal(t, -13, generic.DaysBetween(b, a))
	assert.Equal(t, 14, generic.Period{Start: a, End: b}.Length())
}

func TestDateOf_TruncatesToCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	tp := generic.DateOf(time.Date(2024, 3, 10, 23, 30, 0, 0, loc))

	assert.Equal(t, "2024-03-10", tp.String())
}

func TestMinutes_Hours(t *testing.T) {
	assert.Equal(t, 7.5, generic.Minutes(450).Hours().Float())
	assert.Equal(t, generic.Minutes(90), generic.MinutesFromDuration(90*time.Minute+20*time.Second))
}
