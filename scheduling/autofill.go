package scheduling

import (
	"time"

	"github.com/warp/shift-engine/generic"
)

// AutoFillOptions bounds the part of the day auto-fill may schedule.
type AutoFillOptions struct {
	Window generic.Interval
	// MinLength drops gaps too short to be worth a shift.
	MinLength time.Duration
}

func DefaultAutoFillOptions() AutoFillOptions {
	return AutoFillOptions{
		Window: generic.Interval{
			Start: generic.NewClockTime(6, 0, 0),
			End:   generic.NewClockTime(23, 45, 0),
		},
		MinLength: 15 * time.Minute,
	}
}

// AutoFill proposes shifts for employeeID covering the parts of the
// child's day that nobody covers yet. Existing child shifts and timed
// exclusions are busy time; a full-day exclusion that applies to the pair
// yields nothing. Time the employee already works elsewhere is left out.
// The returned shifts have no id and are marked auto-generated.
func AutoFill(
	childID ChildID,
	employeeID EmployeeID,
	date generic.TimePoint,
	childShifts []Shift,
	employeeShifts []Shift,
	exclusions []ExclusionPeriod,
	opts AutoFillOptions,
) []Shift {
	if opts.Window.Length() <= 0 {
		opts.Window = DefaultAutoFillOptions().Window
	}

	var busy []generic.Interval
	for _, view := range Resolve(date, exclusions, childID) {
		if !view.Applies(employeeID, childID) {
			continue
		}
		if view.FullDay() {
			return nil
		}
		busy = append(busy, view.Window())
	}
	busy = append(busy, dayIntervals(childShifts, date, func(s Shift) bool { return s.ChildID == childID })...)
	employeeBusy := dayIntervals(employeeShifts, date, func(s Shift) bool { return s.EmployeeID == employeeID })

	var out []Shift
	for _, gap := range generic.Gaps(opts.Window, busy) {
		for _, free := range generic.Gaps(gap, employeeBusy) {
			if free.Length() < opts.MinLength {
				continue
			}
			out = append(out, Shift{
				EmployeeID: employeeID,
				ChildID:    childID,
				Date:       date,
				Start:      free.Start,
				End:        free.End,
				Status:     StatusAutoGenerated,
				Source:     SourceAuto,
			})
		}
	}
	return out
}

func dayIntervals(shifts []Shift, date generic.TimePoint, keep func(Shift) bool) []generic.Interval {
	var out []generic.Interval
	for _, s := range shifts {
		if s.Active() && s.Date.Equal(date) && keep(s) && s.Validate() == nil {
			out = append(out, s.Interval())
		}
	}
	return out
}
