package scheduling

import (
	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func date(s string) generic.TimePoint { return generic.MustParseDate(s) }

func clock(s string) generic.ClockTime { return generic.MustParseClockTime(s) }

func clockPtr(s string) *generic.ClockTime {
	c := clock(s)
	return &c
}

func hours(v float64) generic.Amount { return generic.Hours(v) }

func hoursPtr(v float64) *generic.Amount {
	a := hours(v)
	return &a
}

func shift(id string, emp EmployeeID, child ChildID, day, start, end string) Shift {
	return Shift{
		ID:         ShiftID(id),
		EmployeeID: emp,
		ChildID:    child,
		Date:       date(day),
		Start:      clock(start),
		End:        clock(end),
		Status:     StatusConfirmed,
		Source:     SourceManual,
	}
}

func period(id PeriodID, start string) PayrollPeriod {
	s := date(start)
	return PayrollPeriod{ID: id, Start: s, End: s.AddDays(PeriodLength - 1)}
}

// amountEq compares an amount with v by decimal value, ignoring unit.
func amountEq(a generic.Amount, v float64) bool {
	return a.Value.Equal(generic.Hours(v).Value)
}

func iv(start, end string) generic.Interval {
	return generic.Interval{Start: clock(start), End: clock(end)}
}
