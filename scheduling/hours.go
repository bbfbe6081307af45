/*
hours.go - Weekly hour aggregation within a payroll period

PURPOSE:
  Hour limits are weekly, but payroll weeks follow the period start date,
  not the calendar week. Summarize splits a period into
  week1 = [start, start+6] and week2 = [start+7, end] and totals each
  employee's time in both, overall and per child.

OVERLAP-FREE TOTALS:
  Intervals are merged per (party, date) before summing, so two shifts
  that double-book the same employee from 12:00-13:00 count that hour
  once. Totals are exact whole minutes, converted to decimal hours
  (minutes/60) once at the end.

LIMITS:
  For each (employee, child) pair with an active HourLimit:
    week hours >  MaxHoursPerWeek  -> breach
    week hours >  AlertThreshold   -> alert (only when not breached)

PROPERTIES:
  Deterministic and order-independent: same shift set in any order yields
  the same breakdown. Output slices are sorted by id.

SEE ALSO:
  - types.go: PayrollPeriod.Week1/Week2, HourLimit
  - validate.go: Uses WeekMinutes for the single-shift limit warning
*/
package scheduling

import (
	"sort"

	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// WeekHours holds decimal hour totals for both weeks of a period.
type WeekHours struct {
	Week1 generic.Amount
	Week2 generic.Amount
	Total generic.Amount
}

// PairHours is one employee's time with one child.
type PairHours struct {
	EmployeeID EmployeeID
	ChildID    ChildID
	Hours      WeekHours
	Limit      *HourLimit

	Week1Breach bool
	Week2Breach bool
	Week1Alert  bool
	Week2Alert  bool
}

// Breached is true if either week exceeds the limit.
func (p PairHours) Breached() bool { return p.Week1Breach || p.Week2Breach }

// EmployeeHours is one employee's time across all children.
type EmployeeHours struct {
	EmployeeID EmployeeID
	Hours      WeekHours
	Children   []PairHours
}

// ChildHours is one child's covered time across all employees.
type ChildHours struct {
	ChildID ChildID
	Hours   WeekHours
}

// PeriodBreakdown is the result of Summarize.
type PeriodBreakdown struct {
	Period         PayrollPeriod
	Employees      []EmployeeHours
	Children       []ChildHours
	TotalShifts    int
	ImportedShifts int
	ManualShifts   int
	TotalHours     generic.Amount
}

// Breaches returns every pair that exceeded its limit in either week.
func (b PeriodBreakdown) Breaches() []PairHours {
	var out []PairHours
	for _, e := range b.Employees {
		for _, p := range e.Children {
			if p.Breached() {
				out = append(out, p)
			}
		}
	}
	return out
}

// =============================================================================
// AGGREGATION
// =============================================================================

type weekMinutes [2]generic.Minutes

func (w weekMinutes) hours() WeekHours {
	return WeekHours{
		Week1: w[0].Hours(),
		Week2: w[1].Hours(),
		Total: (w[0] + w[1]).Hours(),
	}
}

type dayKey struct {
	employee EmployeeID
	child    ChildID
	date     string
}

// Summarize totals the period's active shifts per employee, per child, and
// per (employee, child) pair, and flags limit breaches.
func Summarize(period PayrollPeriod, shifts []Shift, limits []HourLimit) PeriodBreakdown {
	result := PeriodBreakdown{Period: period}

	// Intervals grouped per day at three granularities.
	perEmployee := make(map[dayKey][]generic.Interval)
	perPair := make(map[dayKey][]generic.Interval)
	perChild := make(map[dayKey][]generic.Interval)
	weekOf := make(map[string]int)

	for _, s := range shifts {
		week := period.WeekOf(s.Date)
		if !s.Active() || week == 0 || s.Validate() != nil {
			continue
		}
		result.TotalShifts++
		if s.IsImported {
			result.ImportedShifts++
		} else {
			result.ManualShifts++
		}

		day := s.Date.String()
		weekOf[day] = week
		iv := s.Interval()
		perEmployee[dayKey{employee: s.EmployeeID, date: day}] = append(perEmployee[dayKey{employee: s.EmployeeID, date: day}], iv)
		perPair[dayKey{employee: s.EmployeeID, child: s.ChildID, date: day}] = append(perPair[dayKey{employee: s.EmployeeID, child: s.ChildID, date: day}], iv)
		perChild[dayKey{child: s.ChildID, date: day}] = append(perChild[dayKey{child: s.ChildID, date: day}], iv)
	}

	employeeWeeks := make(map[EmployeeID]weekMinutes)
	for k, ivs := range perEmployee {
		w := employeeWeeks[k.employee]
		w[weekOf[k.date]-1] += generic.MinutesFromDuration(generic.TotalLength(ivs))
		employeeWeeks[k.employee] = w
	}

	pairWeeks := make(map[pairKey]weekMinutes)
	for k, ivs := range perPair {
		pk := pairKey{EmployeeID: k.employee, ChildID: k.child}
		w := pairWeeks[pk]
		w[weekOf[k.date]-1] += generic.MinutesFromDuration(generic.TotalLength(ivs))
		pairWeeks[pk] = w
	}

	childWeeks := make(map[ChildID]weekMinutes)
	for k, ivs := range perChild {
		w := childWeeks[k.child]
		w[weekOf[k.date]-1] += generic.MinutesFromDuration(generic.TotalLength(ivs))
		childWeeks[k.child] = w
	}

	limitFor := activeLimits(limits)

	// Employees, each with their per-child pairs.
	pairsByEmployee := make(map[EmployeeID][]PairHours)
	for pk, w := range pairWeeks {
		pair := PairHours{EmployeeID: pk.EmployeeID, ChildID: pk.ChildID, Hours: w.hours()}
		if l, ok := limitFor[pk]; ok {
			limit := l
			pair.Limit = &limit
			pair.Week1Breach, pair.Week1Alert = checkLimit(pair.Hours.Week1, limit)
			pair.Week2Breach, pair.Week2Alert = checkLimit(pair.Hours.Week2, limit)
		}
		pairsByEmployee[pk.EmployeeID] = append(pairsByEmployee[pk.EmployeeID], pair)
	}

	var total generic.Minutes
	for id, w := range employeeWeeks {
		pairs := pairsByEmployee[id]
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].ChildID < pairs[j].ChildID })
		result.Employees = append(result.Employees, EmployeeHours{EmployeeID: id, Hours: w.hours(), Children: pairs})
		total += w[0] + w[1]
	}
	sort.Slice(result.Employees, func(i, j int) bool {
		return result.Employees[i].EmployeeID < result.Employees[j].EmployeeID
	})

	for id, w := range childWeeks {
		result.Children = append(result.Children, ChildHours{ChildID: id, Hours: w.hours()})
	}
	sort.Slice(result.Children, func(i, j int) bool {
		return result.Children[i].ChildID < result.Children[j].ChildID
	})

	result.TotalHours = total.Hours()
	return result
}

func activeLimits(limits []HourLimit) map[pairKey]HourLimit {
	out := make(map[pairKey]HourLimit, len(limits))
	for _, l := range limits {
		if l.Active {
			out[pairKey{EmployeeID: l.EmployeeID, ChildID: l.ChildID}] = l
		}
	}
	return out
}

// checkLimit returns (breach, alert). Alert is only set when not breached.
func checkLimit(hours generic.Amount, limit HourLimit) (bool, bool) {
	if hours.GreaterThan(limit.MaxHoursPerWeek) {
		return true, false
	}
	if limit.AlertThreshold != nil && hours.GreaterThan(*limit.AlertThreshold) {
		return false, true
	}
	return false, false
}

// WeekMinutes returns the overlap-free minutes one (employee, child) pair
// works in the given date range, skipping the shift with id exclude.
func WeekMinutes(shifts []Shift, employeeID EmployeeID, childID ChildID, week generic.Period, exclude ShiftID) generic.Minutes {
	perDay := make(map[string][]generic.Interval)
	for _, s := range shifts {
		if !s.Active() || (exclude != "" && s.ID == exclude) || s.EmployeeID != employeeID || s.ChildID != childID {
			continue
		}
		if !week.Contains(s.Date) || s.Validate() != nil {
			continue
		}
		perDay[s.Date.String()] = append(perDay[s.Date.String()], s.Interval())
	}
	var total generic.Minutes
	for _, ivs := range perDay {
		total += generic.MinutesFromDuration(generic.TotalLength(ivs))
	}
	return total
}
