/*
exclusion.go - Effective blackout window per day

PURPOSE:
  An exclusion period can span several days with a start time on its first
  day and an end time on its last. On any single day only part of that
  applies. Resolve computes the window that applies on one date.

TRUNCATION RULES (for a span [D1, Dn] with times [T1, T2]):
  single day (D1 == Dn):  [T1, T2]    both bounds as given
  first day  (D1):        [T1, end)   end bound dropped
  last day   (Dn):        [start, T2] start bound dropped
  middle days:            full day    both dropped

  A dropped (nil) bound extends to that edge of the day.

SCOPE FILTER:
  Child-scoped exclusions for a different child are dropped. General and
  employee-scoped exclusions always pass; the caller decides what an
  employee exclusion means for its view.

SEE ALSO:
  - validate.go: Uses Applies/Blocks to reject or warn on new shifts
  - autofill.go: Treats resolved windows as busy time
*/
package scheduling

import (
	"sort"

	"github.com/warp/shift-engine/generic"
)

// ExclusionView is an exclusion as it applies on one date.
type ExclusionView struct {
	Exclusion ExclusionPeriod
	Date      generic.TimePoint
	StartTime *generic.ClockTime
	EndTime   *generic.ClockTime
}

// FullDay is true when neither bound applies on this date.
func (v ExclusionView) FullDay() bool {
	return v.StartTime == nil && v.EndTime == nil
}

// Window resolves dropped bounds to 00:00 and 24:00.
func (v ExclusionView) Window() generic.Interval {
	iv := generic.Interval{Start: generic.Midnight, End: generic.EndOfDay}
	if v.StartTime != nil {
		iv.Start = v.StartTime.Normalize()
	}
	if v.EndTime != nil {
		iv.End = v.EndTime.Normalize()
	}
	return iv
}

// Applies reports whether the view constrains a shift for this employee and child.
func (v ExclusionView) Applies(employeeID EmployeeID, childID ChildID) bool {
	scope := v.Exclusion.Scope
	if id, ok := scope.Employee(); ok {
		return id == employeeID
	}
	if id, ok := scope.Child(); ok {
		return id == childID
	}
	return true
}

// Blocks reports whether [start, end) intersects the view's window.
func (v ExclusionView) Blocks(start, end generic.ClockTime) bool {
	w := v.Window()
	_, ok := generic.Overlap(start, end, w.Start, w.End)
	return ok
}

// Resolve returns the exclusions in effect on date, with their time bounds
// truncated for multi-day spans. scopeChildID filters child-scoped
// exclusions; empty keeps all of them.
func Resolve(date generic.TimePoint, exclusions []ExclusionPeriod, scopeChildID ChildID) []ExclusionView {
	var views []ExclusionView
	for _, e := range exclusions {
		if !e.Active || !e.Range().Contains(date) {
			continue
		}
		if id, ok := e.Scope.Child(); ok && scopeChildID != "" && id != scopeChildID {
			continue
		}
		views = append(views, resolveOne(date, e))
	}

	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i].Exclusion, views[j].Exclusion
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.ID < b.ID
	})
	return views
}

func resolveOne(date generic.TimePoint, e ExclusionPeriod) ExclusionView {
	view := ExclusionView{Exclusion: e, Date: date}
	first := date.Equal(e.Start)
	last := date.Equal(e.End)

	switch {
	case first && last:
		view.StartTime = e.StartTime
		view.EndTime = e.EndTime
	case first:
		view.StartTime = e.StartTime
	case last:
		view.EndTime = e.EndTime
	}
	return view
}
