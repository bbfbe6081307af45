package scheduling

import (
	"sort"
	"time"

	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// CONFLICT DETECTION
// =============================================================================

type ConflictType string

const (
	ConflictEmployee ConflictType = "employee"
	ConflictChild    ConflictType = "child"
)

// Conflict is a pair of shifts that double-book an employee or a child.
// ShiftA sorts before ShiftB (date, start time, id).
type Conflict struct {
	Type    ConflictType
	ShiftA  Shift
	ShiftB  Shift
	Overlap time.Duration
}

// FindConflicts reports every overlapping pair of active shifts on the same
// date for one employee with different children, and for one child with
// different employees. It never modifies its input; resolving a conflict is
// the caller's job.
//
// The scan is O(n²) per (group, date). Per-period volumes are tens to low
// hundreds of shifts; callers scanning unbounded ranges should filter by
// date first.
func FindConflicts(shifts []Shift) []Conflict {
	active := make([]Shift, 0, len(shifts))
	for _, s := range shifts {
		if s.Active() {
			active = append(active, s)
		}
	}
	sortShifts(active)

	byEmployee := make(map[groupKey][]Shift)
	byChild := make(map[groupKey][]Shift)
	for _, s := range active {
		day := s.Date.String()
		ek := groupKey{id: string(s.EmployeeID), day: day}
		ck := groupKey{id: string(s.ChildID), day: day}
		byEmployee[ek] = append(byEmployee[ek], s)
		byChild[ck] = append(byChild[ck], s)
	}

	var conflicts []Conflict
	for _, group := range byEmployee {
		conflicts = appendPairs(conflicts, group, ConflictEmployee, func(a, b Shift) bool {
			return a.ChildID != b.ChildID
		})
	}
	for _, group := range byChild {
		conflicts = appendPairs(conflicts, group, ConflictChild, func(a, b Shift) bool {
			return a.EmployeeID != b.EmployeeID
		})
	}

	sort.Slice(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Type != b.Type {
			return a.Type == ConflictEmployee
		}
		if less, decided := compareShifts(a.ShiftA, b.ShiftA); decided {
			return less
		}
		less, _ := compareShifts(a.ShiftB, b.ShiftB)
		return less
	})
	return conflicts
}

type groupKey struct {
	id  string
	day string
}

func appendPairs(out []Conflict, group []Shift, kind ConflictType, differs func(a, b Shift) bool) []Conflict {
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			a, b := group[i], group[j]
			if !differs(a, b) {
				continue
			}
			d, ok := generic.Overlap(a.Start, a.End, b.Start, b.End)
			if !ok {
				continue
			}
			out = append(out, Conflict{Type: kind, ShiftA: a, ShiftB: b, Overlap: d})
		}
	}
	return out
}

// FindOverlapping returns the active shifts in existing that would overlap
// candidate for the same employee or the same child. The shift with
// candidate's id is skipped so an edit does not conflict with itself.
func FindOverlapping(candidate Shift, existing []Shift) (employee, child []Shift) {
	for _, s := range existing {
		if !s.Active() || s.ID == candidate.ID || !s.Date.Equal(candidate.Date) {
			continue
		}
		if _, ok := generic.Overlap(candidate.Start, candidate.End, s.Start, s.End); !ok {
			continue
		}
		if s.EmployeeID == candidate.EmployeeID {
			employee = append(employee, s)
		}
		if s.ChildID == candidate.ChildID {
			child = append(child, s)
		}
	}
	return employee, child
}

func sortShifts(shifts []Shift) {
	sort.Slice(shifts, func(i, j int) bool {
		less, _ := compareShifts(shifts[i], shifts[j])
		return less
	})
}

// compareShifts orders by date, start, end, id. decided is false for equal keys.
func compareShifts(a, b Shift) (less, decided bool) {
	switch {
	case !a.Date.Equal(b.Date):
		return a.Date.Before(b.Date), true
	case a.Start.Normalize() != b.Start.Normalize():
		return a.Start.Normalize() < b.Start.Normalize(), true
	case a.End.Normalize() != b.End.Normalize():
		return a.End.Normalize() < b.End.Normalize(), true
	case a.ID != b.ID:
		return a.ID < b.ID, true
	}
	return false, false
}
