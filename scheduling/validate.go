package scheduling

import (
	"fmt"
	"strings"

	"github.com/warp/shift-engine/generic"
)

// ValidateOptions tunes ValidateShift.
type ValidateOptions struct {
	// AllowOverlaps downgrades double-booking from an error to a warning.
	AllowOverlaps bool
}

// ValidateShift checks a new or edited shift against the schedule around it.
// Hard failures come back as an error; soft problems come back as warnings
// the caller shows but does not block on.
//
// Checks, in order:
//  1. end after start (InvalidIntervalError)
//  2. exclusions on the date whose window overlaps the shift: an employee or
//     child exclusion for this shift's pair fails (ExclusionError), a
//     general one warns
//  3. overlap with another active shift for the same employee or child
//     (OverlapError, or a warning with AllowOverlaps)
//  4. the pair's weekly hour limit for the week-within-period the shift
//     falls in (warning)
func ValidateShift(
	candidate Shift,
	existing []Shift,
	exclusions []ExclusionPeriod,
	limit *HourLimit,
	periods []PayrollPeriod,
	opts ValidateOptions,
) ([]string, error) {
	var warnings []string

	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	for _, view := range Resolve(candidate.Date, exclusions, candidate.ChildID) {
		if !view.Applies(candidate.EmployeeID, candidate.ChildID) {
			continue
		}
		if !view.Blocks(candidate.Start, candidate.End) {
			continue
		}
		scope := view.Exclusion.Scope
		if scope.IsGeneral() {
			warnings = append(warnings, fmt.Sprintf("General exclusion period active: %s", view.Exclusion.Name))
			continue
		}
		return nil, &generic.ExclusionError{
			Kind:        string(scope.Kind),
			ExclusionID: view.Exclusion.ID,
			Name:        view.Exclusion.Name,
		}
	}

	employeeOverlaps, childOverlaps := FindOverlapping(candidate, existing)
	if len(employeeOverlaps) > 0 {
		err := overlapError("employee", "Employee "+string(candidate.EmployeeID), employeeOverlaps)
		if !opts.AllowOverlaps {
			return nil, err
		}
		warnings = append(warnings, err.Error())
	}
	if len(childOverlaps) > 0 {
		err := overlapError("child", "Child "+string(candidate.ChildID), childOverlaps)
		if !opts.AllowOverlaps {
			return nil, err
		}
		warnings = append(warnings, err.Error())
	}

	if w := checkWeeklyLimit(candidate, existing, limit, periods); w != "" {
		warnings = append(warnings, w)
	}
	return warnings, nil
}

func overlapError(kind, subject string, overlaps []Shift) *generic.OverlapError {
	sortShifts(overlaps)
	first := overlaps[0]
	return &generic.OverlapError{
		Kind:       kind,
		Subject:    subject,
		ExistingID: string(first.ID),
		Start:      first.Start,
		End:        first.End,
	}
}

func checkWeeklyLimit(candidate Shift, existing []Shift, limit *HourLimit, periods []PayrollPeriod) string {
	if limit == nil || !limit.Active {
		return ""
	}
	period, ok := PeriodFor(periods, candidate.Date)
	if !ok {
		return ""
	}
	week := period.WeekOf(candidate.Date)
	weekRange := period.Week1()
	if week == 2 {
		weekRange = period.Week2()
	}

	// The edited shift's stored version is replaced by the candidate.
	shifts := make([]Shift, 0, len(existing)+1)
	for _, s := range existing {
		if s.ID != candidate.ID || candidate.ID == "" {
			shifts = append(shifts, s)
		}
	}
	shifts = append(shifts, candidate)

	total := WeekMinutes(shifts, candidate.EmployeeID, candidate.ChildID, weekRange, "").Hours()
	switch {
	case total.GreaterThan(limit.MaxHoursPerWeek):
		return fmt.Sprintf("Week %d hours (%s) exceeds weekly limit (%s) for this employee/child pair",
			week, formatHours(total), formatHours(limit.MaxHoursPerWeek))
	case limit.AlertThreshold != nil && total.GreaterThan(*limit.AlertThreshold):
		return fmt.Sprintf("Week %d hours (%s) exceeds alert threshold (%s) for this employee/child pair",
			week, formatHours(total), formatHours(*limit.AlertThreshold))
	}
	return ""
}

func formatHours(a generic.Amount) string {
	return a.Value.StringFixed(1)
}

// HasLimitWarning reports whether any warning came from the weekly hour check.
func HasLimitWarning(warnings []string) bool {
	for _, w := range warnings {
		if strings.Contains(w, "exceeds weekly limit") {
			return true
		}
	}
	return false
}
