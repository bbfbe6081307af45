// Package scheduling implements caregiver shift scheduling on top of the
// generic engine: payroll periods, exclusions, conflicts, weekly hour
// limits, budget utilization and forecasting.
//
// Every calculation in this package is a pure function over records the
// caller has already fetched. The *Service types in service.go do the
// fetching through the store interfaces in store.go.
package scheduling

import (
	"time"

	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type ChildID string
type ShiftID string
type PeriodID int

// =============================================================================
// SHIFT
// =============================================================================

type ShiftStatus string

const (
	StatusNew           ShiftStatus = "new"
	StatusConfirmed     ShiftStatus = "confirmed"
	StatusAutoGenerated ShiftStatus = "auto-generated"
	StatusCancelled     ShiftStatus = "cancelled"
)

type ShiftSource string

const (
	SourceManual ShiftSource = "manual"
	SourceImport ShiftSource = "import"
	SourceAuto   ShiftSource = "auto"
)

// Shift is one caregiver working with one child on one date.
type Shift struct {
	ID          ShiftID
	EmployeeID  EmployeeID
	ChildID     ChildID
	Date        generic.TimePoint
	Start       generic.ClockTime
	End         generic.ClockTime
	ServiceCode *string
	Status      ShiftStatus
	IsImported  bool
	Source      ShiftSource
	CreatedAt   time.Time
}

// Active is false for cancelled shifts. Only active shifts count toward
// conflicts, hours and utilization.
func (s Shift) Active() bool { return s.Status != StatusCancelled }

// Interval returns the shift's same-day range, sentinel-normalized.
func (s Shift) Interval() generic.Interval {
	return generic.Interval{Start: s.Start.Normalize(), End: s.End.Normalize()}
}

// Duration is zero for invalid intervals.
func (s Shift) Duration() time.Duration { return s.Interval().Length() }

// Hours is the shift duration rounded to the minute, as decimal hours.
func (s Shift) Hours() generic.Amount {
	return generic.MinutesFromDuration(s.Duration()).Hours()
}

// Validate checks the start < end invariant.
func (s Shift) Validate() error {
	return generic.ValidateInterval(s.Start, s.End)
}

// ReadOnly reports whether the shift came from an import.
func (s Shift) ReadOnly() bool { return s.IsImported }

// =============================================================================
// PAYROLL PERIOD
// =============================================================================

// PeriodLength is the fixed length of a payroll period in days.
const PeriodLength = 14

// PayrollPeriod is one 14-day pay window, [Start, Start+13].
type PayrollPeriod struct {
	ID    PeriodID
	Start generic.TimePoint
	End   generic.TimePoint
}

func (p PayrollPeriod) Range() generic.Period {
	return generic.Period{Start: p.Start, End: p.End}
}

func (p PayrollPeriod) Contains(date generic.TimePoint) bool {
	return p.Range().Contains(date)
}

// Week1 is [Start, Start+6]. Weeks follow the period start, not the calendar week.
func (p PayrollPeriod) Week1() generic.Period {
	return generic.Period{Start: p.Start, End: p.Start.AddDays(6)}
}

// Week2 is [Start+7, End].
func (p PayrollPeriod) Week2() generic.Period {
	return generic.Period{Start: p.Start.AddDays(7), End: p.End}
}

// WeekOf returns 1 or 2 for dates inside the period, 0 otherwise.
func (p PayrollPeriod) WeekOf(date generic.TimePoint) int {
	switch {
	case p.Week1().Contains(date):
		return 1
	case p.Week2().Contains(date):
		return 2
	default:
		return 0
	}
}

// =============================================================================
// EXCLUSION PERIOD
// =============================================================================

type ScopeKind string

const (
	ScopeGeneral  ScopeKind = "general"
	ScopeEmployee ScopeKind = "employee"
	ScopeChild    ScopeKind = "child"
)

// Scope says who an exclusion applies to: everyone, one employee, or one child.
// Build it with GeneralScope, EmployeeScope or ChildScope.
type Scope struct {
	Kind ScopeKind
	ID   string
}

func GeneralScope() Scope                { return Scope{Kind: ScopeGeneral} }
func EmployeeScope(id EmployeeID) Scope  { return Scope{Kind: ScopeEmployee, ID: string(id)} }
func ChildScope(id ChildID) Scope        { return Scope{Kind: ScopeChild, ID: string(id)} }
func (s Scope) IsGeneral() bool          { return s.Kind == ScopeGeneral || s.Kind == "" }

func (s Scope) Employee() (EmployeeID, bool) {
	return EmployeeID(s.ID), s.Kind == ScopeEmployee
}

func (s Scope) Child() (ChildID, bool) {
	return ChildID(s.ID), s.Kind == ScopeChild
}

// ExclusionPeriod is a blackout window. StartTime/EndTime are nil when the
// bound extends to the edge of the day.
type ExclusionPeriod struct {
	ID        string
	Name      string
	Start     generic.TimePoint
	End       generic.TimePoint
	StartTime *generic.ClockTime
	EndTime   *generic.ClockTime
	Scope     Scope
	Reason    *string
	Active    bool
}

func (e ExclusionPeriod) Range() generic.Period {
	return generic.Period{Start: e.Start, End: e.End}
}

// =============================================================================
// HOUR LIMIT
// =============================================================================

// HourLimit caps the weekly hours of one (employee, child) pair.
type HourLimit struct {
	ID              string
	EmployeeID      EmployeeID
	ChildID         ChildID
	MaxHoursPerWeek generic.Amount
	AlertThreshold  *generic.Amount
	Active          bool
}

// Validate enforces alert_threshold < max_hours_per_week.
func (l HourLimit) Validate() error {
	if !l.MaxHoursPerWeek.IsPositive() {
		return generic.ErrInvalidThreshold
	}
	if l.AlertThreshold != nil && !l.AlertThreshold.LessThan(l.MaxHoursPerWeek) {
		return generic.ErrInvalidThreshold
	}
	return nil
}

type pairKey struct {
	EmployeeID EmployeeID
	ChildID    ChildID
}

// =============================================================================
// BUDGETS AND RATES
// =============================================================================

// ChildBudget is the funded amount for a child over a date range.
type ChildBudget struct {
	ID           string
	ChildID      ChildID
	PeriodStart  generic.TimePoint
	PeriodEnd    generic.TimePoint
	BudgetAmount generic.Amount
	BudgetHours  *generic.Amount
	Notes        string
}

func (b ChildBudget) Range() generic.Period {
	return generic.Period{Start: b.PeriodStart, End: b.PeriodEnd}
}

// EmployeeRate is an hourly rate effective from EffectiveDate through EndDate
// (open-ended when EndDate is nil).
type EmployeeRate struct {
	ID            string
	EmployeeID    EmployeeID
	HourlyRate    generic.Amount
	EffectiveDate generic.TimePoint
	EndDate       *generic.TimePoint
	Notes         string
}

// EffectiveOn reports whether the rate applies on date.
func (r EmployeeRate) EffectiveOn(date generic.TimePoint) bool {
	if date.Before(r.EffectiveDate) {
		return false
	}
	return r.EndDate == nil || date.BeforeOrEqual(*r.EndDate)
}

// BudgetAllocation plans how many hours an employee works with a child in a period.
type BudgetAllocation struct {
	ID             string
	ChildID        ChildID
	EmployeeID     EmployeeID
	PeriodID       PeriodID
	AllocatedHours generic.Amount
	Notes          string
}
