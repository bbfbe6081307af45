// Package store provides in-memory implementations of the scheduling stores.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/scheduling"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	shifts      map[scheduling.ShiftID]scheduling.Shift
	exclusions  map[string]scheduling.ExclusionPeriod
	limits      map[string]scheduling.HourLimit
	budgets     map[string]scheduling.ChildBudget
	rates       map[string]scheduling.EmployeeRate
	allocations map[allocationKey]scheduling.BudgetAllocation
	periods     []scheduling.PayrollPeriod
	settings    map[string]string
}

type allocationKey struct {
	ChildID    scheduling.ChildID
	EmployeeID scheduling.EmployeeID
	PeriodID   scheduling.PeriodID
}

var (
	_ scheduling.Store    = (*Memory)(nil)
	_ scheduling.Resetter = (*Memory)(nil)
)

func NewMemory() *Memory {
	m := &Memory{}
	m.clear()
	return m
}

// Reset drops every record and setting.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
	return nil
}

func (m *Memory) clear() {
	m.shifts = make(map[scheduling.ShiftID]scheduling.Shift)
	m.exclusions = make(map[string]scheduling.ExclusionPeriod)
	m.limits = make(map[string]scheduling.HourLimit)
	m.budgets = make(map[string]scheduling.ChildBudget)
	m.rates = make(map[string]scheduling.EmployeeRate)
	m.allocations = make(map[allocationKey]scheduling.BudgetAllocation)
	m.periods = nil
	m.settings = make(map[string]string)
}

// =============================================================================
// SHIFTS
// =============================================================================

func (m *Memory) ListShifts(_ context.Context, filter scheduling.ShiftFilter) ([]scheduling.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []scheduling.Shift
	for _, s := range m.shifts {
		if filter.Matches(s) {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.ID < b.ID
	})
	return result, nil
}

func (m *Memory) GetShift(_ context.Context, id scheduling.ShiftID) (*scheduling.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.shifts[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) SaveShift(_ context.Context, s scheduling.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts[s.ID] = s
	return nil
}

func (m *Memory) DeleteShift(_ context.Context, id scheduling.ShiftID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.shifts[id]; !ok {
		return generic.ErrShiftNotFound
	}
	delete(m.shifts, id)
	return nil
}

// ImportShifts skips rows already imported with the same times and holds
// the write lock for the whole batch, so readers see
// either none or all of it.
func (m *Memory) ImportShifts(_ context.Context, shifts []scheduling.Shift) (scheduling.ImportResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result scheduling.ImportResult
	for _, in := range shifts {
		if m.hasImported(in) {
			result.Duplicates++
			continue
		}
		for id, existing := range m.shifts {
			if existing.IsImported || id == in.ID {
				continue
			}
			if existing.EmployeeID == in.EmployeeID && existing.ChildID == in.ChildID &&
				existing.Date.Equal(in.Date) && existing.Start.Normalize() == in.Start.Normalize() {
				delete(m.shifts, id)
				result.Superseded++
			}
		}
		m.shifts[in.ID] = in
		result.Imported++
	}
	return result, nil
}

// hasImported reports whether an imported shift with the same pair, date and
// times is already stored. Callers hold m.mu.
func (m *Memory) hasImported(in scheduling.Shift) bool {
	for _, existing := range m.shifts {
		if existing.IsImported && existing.ID != in.ID &&
			existing.EmployeeID == in.EmployeeID && existing.ChildID == in.ChildID &&
			existing.Date.Equal(in.Date) &&
			existing.Start.Normalize() == in.Start.Normalize() &&
			existing.End.Normalize() == in.End.Normalize() {
			return true
		}
	}
	return false
}

// =============================================================================
// EXCLUSIONS
// =============================================================================

func (m *Memory) ListExclusions(_ context.Context, filter scheduling.ExclusionFilter) ([]scheduling.ExclusionPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []scheduling.ExclusionPeriod
	for _, e := range m.exclusions {
		if filter.ActiveOnly && !e.Active {
			continue
		}
		if filter.To != nil && e.Start.After(*filter.To) {
			continue
		}
		if filter.From != nil && e.End.Before(*filter.From) {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Start.Equal(result[j].Start) {
			return result[i].Start.Before(result[j].Start)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) SaveExclusion(_ context.Context, e scheduling.ExclusionPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exclusions[e.ID] = e
	return nil
}

func (m *Memory) DeactivateExclusion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.exclusions[id]
	if !ok {
		return generic.ErrExclusionNotFound
	}
	e.Active = false
	m.exclusions[id] = e
	return nil
}

// =============================================================================
// HOUR LIMITS
// =============================================================================

func (m *Memory) GetHourLimit(_ context.Context, employeeID scheduling.EmployeeID, childID scheduling.ChildID) (*scheduling.HourLimit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, l := range m.limits {
		if l.Active && l.EmployeeID == employeeID && l.ChildID == childID {
			return &l, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListHourLimits(_ context.Context, activeOnly bool) ([]scheduling.HourLimit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []scheduling.HourLimit
	for _, l := range m.limits {
		if activeOnly && !l.Active {
			continue
		}
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].EmployeeID != result[j].EmployeeID {
			return result[i].EmployeeID < result[j].EmployeeID
		}
		return result[i].ChildID < result[j].ChildID
	})
	return result, nil
}

func (m *Memory) SaveHourLimit(_ context.Context, l scheduling.HourLimit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l.Active {
		for id, other := range m.limits {
			if id != l.ID && other.Active && other.EmployeeID == l.EmployeeID && other.ChildID == l.ChildID {
				return generic.ErrDuplicateLimit
			}
		}
	}
	m.limits[l.ID] = l
	return nil
}

// =============================================================================
// BUDGETS, RATES, ALLOCATIONS
// =============================================================================

func (m *Memory) ListBudgets(_ context.Context, childID scheduling.ChildID, window *generic.Period) ([]scheduling.ChildBudget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []scheduling.ChildBudget
	for _, b := range m.budgets {
		if childID != "" && b.ChildID != childID {
			continue
		}
		if window != nil && !b.Range().Overlaps(*window) {
			continue
		}
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ChildID != result[j].ChildID {
			return result[i].ChildID < result[j].ChildID
		}
		return result[i].PeriodStart.After(result[j].PeriodStart)
	})
	return result, nil
}

func (m *Memory) SaveBudget(_ context.Context, b scheduling.ChildBudget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budgets[b.ID] = b
	return nil
}

func (m *Memory) ListRates(_ context.Context, employeeID scheduling.EmployeeID) ([]scheduling.EmployeeRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRatesLocked(employeeID), nil
}

func (m *Memory) listRatesLocked(employeeID scheduling.EmployeeID) []scheduling.EmployeeRate {
	var result []scheduling.EmployeeRate
	for _, r := range m.rates {
		if employeeID == "" || r.EmployeeID == employeeID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].EffectiveDate.Equal(result[j].EffectiveDate) {
			return result[i].EffectiveDate.After(result[j].EffectiveDate)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (m *Memory) AddRate(_ context.Context, r scheduling.EmployeeRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if closed, ok := scheduling.CloseOpenRate(m.listRatesLocked(r.EmployeeID), r); ok {
		m.rates[closed.ID] = closed
	}
	m.rates[r.ID] = r
	return nil
}

func (m *Memory) ListAllocations(_ context.Context, periodID scheduling.PeriodID) ([]scheduling.BudgetAllocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []scheduling.BudgetAllocation
	for _, a := range m.allocations {
		if periodID == 0 || a.PeriodID == periodID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.ChildID != b.ChildID {
			return a.ChildID < b.ChildID
		}
		return a.EmployeeID < b.EmployeeID
	})
	return result, nil
}

func (m *Memory) SaveAllocation(_ context.Context, a scheduling.BudgetAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := allocationKey{ChildID: a.ChildID, EmployeeID: a.EmployeeID, PeriodID: a.PeriodID}
	if existing, ok := m.allocations[k]; ok {
		a.ID = existing.ID
	}
	m.allocations[k] = a
	return nil
}

// =============================================================================
// PERIODS AND SETTINGS
// =============================================================================

func (m *Memory) ListPeriods(_ context.Context) ([]scheduling.PayrollPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]scheduling.PayrollPeriod(nil), m.periods...), nil
}

func (m *Memory) ReplacePeriods(_ context.Context, periods []scheduling.PayrollPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := append([]scheduling.PayrollPeriod(nil), periods...)
	sort.Slice(next, func(i, j int) bool { return next[i].Start.Before(next[j].Start) })
	m.periods = next
	return nil
}

func (m *Memory) GetSetting(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.settings[key]
	return v, ok, nil
}

func (m *Memory) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}
