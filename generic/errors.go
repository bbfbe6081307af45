/*
errors.go - Centralized error types for the scheduling engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Every kind is recoverable by the caller: reconfigure the calendar,
  pick another period, or correct the input.

ERROR CATEGORIES:
  1. Calendar errors - No periods, navigation past either end
  2. Validation errors - Bad intervals, overlaps, exclusions, limits
  3. Store errors - Missing records, read-only records

MISSING BUDGET:
  "No budget overlaps this range" is not an error. Utilization reports it
  as a zero budget with HasBudget=false so callers can tell it apart from
  "budget exists, nothing used yet".

USAGE:
  if errors.Is(err, generic.ErrOutOfRange) {
      // already at the first/last period
  }

SEE ALSO:
  - scheduling/calendar.go: Returns ErrNotConfigured / ErrOutOfRange
  - scheduling/validate.go: Returns OverlapError / ExclusionError
  - api/handlers.go: Maps kinds to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotConfigured is returned when no payroll periods exist or none contains today.
	ErrNotConfigured = errors.New("payroll periods not configured")

	// ErrOutOfRange is returned when navigating past the first or last period.
	ErrOutOfRange = errors.New("period navigation out of range")

	// ErrInvalidDirection is returned when navigation direction is not +1 or -1.
	ErrInvalidDirection = errors.New("navigation direction must be +1 or -1")

	// ErrInvalidInterval is returned when end <= start after sentinel normalization.
	ErrInvalidInterval = errors.New("invalid interval: end must be after start")

	// ErrInvalidPeriod is returned when a date range is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrPeriodNotFound is returned when a referenced period doesn't exist.
	ErrPeriodNotFound = errors.New("period not found")

	// ErrShiftNotFound is returned when a referenced shift doesn't exist.
	ErrShiftNotFound = errors.New("shift not found")

	// ErrExclusionNotFound is returned when a referenced exclusion doesn't exist.
	ErrExclusionNotFound = errors.New("exclusion period not found")

	// ErrReadOnlyShift is returned when editing or deleting an imported shift.
	ErrReadOnlyShift = errors.New("imported shifts are read-only")

	// ErrShiftOverlap is returned when a shift would double-book an employee or child.
	ErrShiftOverlap = errors.New("overlapping shift")

	// ErrExcluded is returned when a shift falls inside a blocking exclusion period.
	ErrExcluded = errors.New("excluded during this period")

	// ErrDuplicateLimit is returned when an active hour limit already exists for the pair.
	ErrDuplicateLimit = errors.New("hour limit already exists for this employee/child pair")

	// ErrInvalidThreshold is returned when alert_threshold >= max_hours_per_week.
	ErrInvalidThreshold = errors.New("alert threshold must be less than max hours")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidIntervalError reports the offending bounds.
type InvalidIntervalError struct {
	Start ClockTime
	End   ClockTime
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid interval %s-%s: end must be after start", e.Start, e.End)
}

func (e *InvalidIntervalError) Unwrap() error {
	return ErrInvalidInterval
}

// OverlapError identifies which side was double-booked and by what.
type OverlapError struct {
	Kind       string // "employee" or "child"
	Subject    string // display name or id of the double-booked party
	ExistingID string
	Start      ClockTime
	End        ClockTime
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("%s already has an overlapping shift from %s to %s on this date",
		e.Subject, e.Start.Display(), e.End.Display())
}

func (e *OverlapError) Unwrap() error {
	return ErrShiftOverlap
}

// ExclusionError names the exclusion that blocks a shift.
type ExclusionError struct {
	Kind        string // "employee" or "child"
	ExclusionID string
	Name        string
}

func (e *ExclusionError) Error() string {
	who := "Employee"
	if e.Kind == "child" {
		who = "Child"
	}
	return fmt.Sprintf("%s is excluded during this period: %s", who, e.Name)
}

func (e *ExclusionError) Unwrap() error {
	return ErrExcluded
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidDirection) ||
		errors.Is(err, ErrInvalidThreshold)
}

// IsConflict returns true if the error is a scheduling conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrShiftOverlap) ||
		errors.Is(err, ErrExcluded) ||
		errors.Is(err, ErrDuplicateLimit)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotConfigured) ||
		errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrPeriodNotFound) ||
		errors.Is(err, ErrShiftNotFound) ||
		errors.Is(err, ErrExclusionNotFound)
}
