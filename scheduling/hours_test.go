package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-engine/generic"
)

func fortyOneHourWeek() []Shift {
	// Week 1 of a period starting 2024-01-04: 5 x 8h + 1h = 41h
	shifts := []Shift{
		shift("w1-1", "E", "C", "2024-01-04", "09:00", "17:00"),
		shift("w1-2", "E", "C", "2024-01-05", "09:00", "17:00"),
		shift("w1-3", "E", "C", "2024-01-06", "09:00", "17:00"),
		shift("w1-4", "E", "C", "2024-01-07", "09:00", "17:00"),
		shift("w1-5", "E", "C", "2024-01-08", "09:00", "17:00"),
		shift("w1-6", "E", "C", "2024-01-09", "09:00", "10:00"),
		// Week 2: 8h
		shift("w2-1", "E", "C", "2024-01-11", "09:00", "17:00"),
	}
	imported := shift("w2-2", "E", "C2", "2024-01-12", "18:00", "23:59:59")
	imported.IsImported = true
	return append(shifts, imported)
}

func TestSummarize_Week1BreachOnly(t *testing.T) {
	// GIVEN: HourLimit(E, C, 40) and 41h in week 1, 8h in week 2
	p := period(1, "2024-01-04")
	limits := []HourLimit{{ID: "l1", EmployeeID: "E", ChildID: "C", MaxHoursPerWeek: hours(40), Active: true}}

	// WHEN: Summarizing
	b := Summarize(p, fortyOneHourWeek(), limits)

	// THEN: Only week 1 is breached
	require.Len(t, b.Employees, 1)
	e := b.Employees[0]
	require.Len(t, e.Children, 2)

	pair := e.Children[0]
	assert.Equal(t, ChildID("C"), pair.ChildID)
	assert.Equal(t, 41.0, pair.Hours.Week1.Float())
	assert.Equal(t, 8.0, pair.Hours.Week2.Float())
	assert.True(t, pair.Week1Breach)
	assert.False(t, pair.Week2Breach)
	assert.NotNil(t, pair.Limit)

	assert.Len(t, b.Breaches(), 1)

	// The imported evening shift counts for the employee and C2
	assert.Equal(t, 55.0, e.Hours.Total.Float())
	assert.Equal(t, 6.0, e.Children[1].Hours.Week2.Float())
	assert.Equal(t, 8, b.TotalShifts)
	assert.Equal(t, 1, b.ImportedShifts)
	assert.Equal(t, 7, b.ManualShifts)
	assert.Equal(t, 55.0, b.TotalHours.Float())
}

func TestSummarize_AlertBelowLimit(t *testing.T) {
	p := period(1, "2024-01-04")
	limits := []HourLimit{{
		EmployeeID: "E", ChildID: "C",
		MaxHoursPerWeek: hours(45), AlertThreshold: hoursPtr(40), Active: true,
	}}

	b := Summarize(p, fortyOneHourWeek(), limits)

	pair := b.Employees[0].Children[0]
	assert.False(t, pair.Week1Breach)
	assert.True(t, pair.Week1Alert)
	assert.False(t, pair.Week2Alert)
	assert.Empty(t, b.Breaches())
}

func TestSummarize_MergesOverlapAndSkipsInactive(t *testing.T) {
	// GIVEN: Two overlapping shifts for the same pair and a cancelled one
	cancelled := shift("x", "E", "C", "2024-01-04", "18:00", "20:00")
	cancelled.Status = StatusCancelled
	shifts := []Shift{
		shift("a", "E", "C", "2024-01-04", "09:00", "12:00"),
		shift("b", "E", "C", "2024-01-04", "11:00", "13:00"),
		shift("out", "E", "C", "2024-01-30", "09:00", "12:00"),
		cancelled,
	}

	b := Summarize(period(1, "2024-01-04"), shifts, nil)

	// THEN: Overlapping time counts once; out-of-period and cancelled shifts are ignored
	assert.Equal(t, 4.0, b.TotalHours.Float())
	assert.Equal(t, 2, b.TotalShifts)
	require.Len(t, b.Children, 1)
	assert.Equal(t, 4.0, b.Children[0].Hours.Week1.Float())
}

func TestSummarize_OrderIndependent(t *testing.T) {
	p := period(1, "2024-01-04")
	shifts := fortyOneHourWeek()
	reversed := make([]Shift, len(shifts))
	for i, s := range shifts {
		reversed[len(shifts)-1-i] = s
	}

	first := Summarize(p, shifts, nil)
	second := Summarize(p, reversed, nil)
	again := Summarize(p, shifts, nil)

	assert.Equal(t, first, second)
	assert.Equal(t, first, again)
}

func TestWeekMinutes_ExcludesEditedShift(t *testing.T) {
	p := period(1, "2024-01-04")
	shifts := fortyOneHourWeek()

	all := WeekMinutes(shifts, "E", "C", p.Week1(), "")
	without := WeekMinutes(shifts, "E", "C", p.Week1(), "w1-6")

	assert.Equal(t, generic.Minutes(41*60), all)
	assert.Equal(t, generic.Minutes(40*60), without)
}

func TestWeekMinutes_CountsUnsavedShift(t *testing.T) {
	p := period(1, "2024-01-04")
	shifts := []Shift{
		shift("s1", "E", "C", "2024-01-04", "09:00", "17:00"),
		shift("", "E", "C", "2024-01-05", "09:00", "12:00"),
	}

	assert.Equal(t, generic.Minutes(11*60), WeekMinutes(shifts, "E", "C", p.Week1(), ""))
	assert.Equal(t, generic.Minutes(3*60), WeekMinutes(shifts, "E", "C", p.Week1(), "s1"))
}
