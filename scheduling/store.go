/*
store.go - Persistence interfaces consumed by the scheduling services

PURPOSE:
  Defines the boundary between scheduling logic and the database. The
  calculation functions never call these; the *Service types fetch records
  through them and hand plain values to the pure functions.

KEY INTERFACES:
  ShiftStore:     Shifts by date range / employee / child, import-with-supersede
  ExclusionStore: Exclusion periods by date range, deactivation
  LimitStore:     Weekly hour limits per (employee, child)
  BudgetStore:    Child budgets, employee rates, allocations
  PeriodStore:    The payroll period sequence and app settings

WHOLESALE REPLACEMENT:
  ReplacePeriods deletes the existing sequence and writes the new one in a
  single transaction. Shifts are never touched: everything resolves against
  periods by date range, not by foreign key.

NOT FOUND:
  Get* methods return (nil, nil) when the record doesn't exist. Mutations on
  missing records return the matching generic.Err*NotFound sentinel.

IMPLEMENTATIONS:
  - scheduling/store/memory.go: In-memory for tests and dev
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - service.go: Services built on these interfaces
*/
package scheduling

import (
	"context"

	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// SHIFTS
// =============================================================================

// ShiftFilter narrows a shift query. Zero values mean "no filter".
type ShiftFilter struct {
	From       *generic.TimePoint
	To         *generic.TimePoint
	EmployeeID EmployeeID
	ChildID    ChildID
}

// InRange builds a filter for [from, to].
func InRange(from, to generic.TimePoint) ShiftFilter {
	return ShiftFilter{From: &from, To: &to}
}

// Matches reports whether s passes the filter.
func (f ShiftFilter) Matches(s Shift) bool {
	if f.From != nil && s.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && s.Date.After(*f.To) {
		return false
	}
	if f.EmployeeID != "" && s.EmployeeID != f.EmployeeID {
		return false
	}
	if f.ChildID != "" && s.ChildID != f.ChildID {
		return false
	}
	return true
}

// ImportResult reports what an import changed.
type ImportResult struct {
	Imported   int
	Superseded int
	// Duplicates counts rows skipped because an identical imported shift exists.
	Duplicates int
}

type ShiftStore interface {
	ListShifts(ctx context.Context, filter ShiftFilter) ([]Shift, error)
	GetShift(ctx context.Context, id ShiftID) (*Shift, error)

	// SaveShift inserts or replaces a shift by id.
	SaveShift(ctx context.Context, s Shift) error

	DeleteShift(ctx context.Context, id ShiftID) error

	// ImportShifts atomically writes imported shifts, removing manual shifts
	// with the same (employee, child, date, start).
	ImportShifts(ctx context.Context, shifts []Shift) (ImportResult, error)
}

// =============================================================================
// EXCLUSIONS
// =============================================================================

type ExclusionFilter struct {
	From       *generic.TimePoint
	To         *generic.TimePoint
	ActiveOnly bool
}

type ExclusionStore interface {
	ListExclusions(ctx context.Context, filter ExclusionFilter) ([]ExclusionPeriod, error)
	SaveExclusion(ctx context.Context, e ExclusionPeriod) error
	DeactivateExclusion(ctx context.Context, id string) error
}

// =============================================================================
// HOUR LIMITS
// =============================================================================

type LimitStore interface {
	// GetHourLimit returns the active limit for the pair, or nil.
	GetHourLimit(ctx context.Context, employeeID EmployeeID, childID ChildID) (*HourLimit, error)
	ListHourLimits(ctx context.Context, activeOnly bool) ([]HourLimit, error)
	SaveHourLimit(ctx context.Context, l HourLimit) error
}

// =============================================================================
// BUDGETS, RATES, ALLOCATIONS
// =============================================================================

type BudgetStore interface {
	// ListBudgets returns budgets for a child (all children when childID is
	// empty), restricted to those overlapping window when it is non-nil.
	ListBudgets(ctx context.Context, childID ChildID, window *generic.Period) ([]ChildBudget, error)
	SaveBudget(ctx context.Context, b ChildBudget) error

	// ListRates returns rates for an employee (all employees when empty),
	// newest effective date first.
	ListRates(ctx context.Context, employeeID EmployeeID) ([]EmployeeRate, error)

	// AddRate inserts a rate, ending the employee's open-ended rate the day
	// before the new one takes effect.
	AddRate(ctx context.Context, r EmployeeRate) error

	ListAllocations(ctx context.Context, periodID PeriodID) ([]BudgetAllocation, error)

	// SaveAllocation upserts by (child, employee, period).
	SaveAllocation(ctx context.Context, a BudgetAllocation) error
}

// =============================================================================
// PERIODS AND SETTINGS
// =============================================================================

const (
	SettingPayrollAnchor = "payroll_anchor_date"
)

type PeriodStore interface {
	// ListPeriods returns the sequence ordered by start date.
	ListPeriods(ctx context.Context) ([]PayrollPeriod, error)

	// ReplacePeriods deletes every period and writes periods, atomically.
	ReplacePeriods(ctx context.Context, periods []PayrollPeriod) error

	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Store is everything the services need.
type Store interface {
	ShiftStore
	ExclusionStore
	LimitStore
	BudgetStore
	PeriodStore
}

// Resetter is implemented by stores that can be wiped, for demo data loading.
type Resetter interface {
	Reset(ctx context.Context) error
}
