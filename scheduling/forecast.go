/*
forecast.go - Historical patterns, projections and budget risk

PURPOSE:
  Looks back over a child's shifts to find how many hours they usually
  need per week, projects that forward, and compares the projection with
  the child's budget.

PATTERNS:
  window        = [asOf - lookbackDays, asOf], both ends included
  weekly avg    = total hours * 7 / lookbackDays
                  The divisor is lookbackDays, not the lookbackDays + 1
                  calendar days the window spans. Shifts on asOf count.
  week buckets  = 7-day slices counted back from asOf; bucket 0 ends on asOf
  active weeks  = buckets with at least one shift

CONFIDENCE:
  low     no history, fewer than 4 active weeks, or CV > 0.5
  high    8 or more active weeks and CV <= 0.25
  medium  everything else

  CV is the coefficient of variation (population stddev / mean) of the
  active weeks' totals.

PROJECTION:
  projected = weekly avg * projectionDays / 7

  Linear on purpose: no seasonality, no trend.

RISK (per child, per window):
  unknown   no budget
  low       nothing projected
  otherwise v = (available - projected) / budget * 100
            v < -10 high, v < 0 medium, v < 20 low, else very_low

SEE ALSO:
  - utilization.go: AvailableHours feeds Summary
  - service.go: ForecastService fetches the inputs
*/
package scheduling

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// OPTIONS
// =============================================================================

const DefaultLookbackDays = 90

type ForecastOptions struct {
	LookbackDays      int
	DefaultHourlyRate generic.Amount
}

func DefaultForecastOptions() ForecastOptions {
	return ForecastOptions{LookbackDays: DefaultLookbackDays, DefaultHourlyRate: DefaultHourlyRate}
}

func (o ForecastOptions) withDefaults() ForecastOptions {
	if o.LookbackDays <= 0 {
		o.LookbackDays = DefaultLookbackDays
	}
	if o.DefaultHourlyRate.IsZero() {
		o.DefaultHourlyRate = DefaultHourlyRate
	}
	return o
}

// =============================================================================
// PATTERNS
// =============================================================================

// DayPattern summarizes one weekday over the lookback window.
type DayPattern struct {
	Weekday      time.Weekday
	ShiftCount   int
	TotalHours   generic.Amount
	AverageHours generic.Amount
}

// EmployeeShare is one employee's part of a child's hours.
type EmployeeShare struct {
	EmployeeID EmployeeID
	ShiftCount int
	TotalHours generic.Amount
	// Share is TotalHours / total hours analyzed, in [0, 1].
	Share decimal.Decimal
}

// WeeklyPattern is the result of Patterns.
type WeeklyPattern struct {
	ChildID      ChildID
	AsOf         generic.TimePoint
	LookbackDays int
	Window       generic.Period

	ByWeekday     []DayPattern
	ByEmployee    []EmployeeShare
	WeeklyAverage generic.Amount
	TotalHours    generic.Amount

	// WeeklyTotals is ordered oldest bucket first.
	WeeklyTotals []generic.Amount
	ActiveWeeks  int
}

// HasHistory is false when no shift fell in the window.
func (p WeeklyPattern) HasHistory() bool { return p.TotalHours.IsPositive() }

// Patterns aggregates childID's active shifts in [asOf - lookbackDays, asOf].
func Patterns(childID ChildID, shifts []Shift, asOf generic.TimePoint, lookbackDays int) WeeklyPattern {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	window := generic.Period{Start: asOf.AddDays(-lookbackDays), End: asOf}
	buckets := (lookbackDays + 1 + 6) / 7

	type dayAcc struct {
		count int
		total generic.Minutes
	}
	type empAcc struct {
		count int
		total generic.Minutes
	}
	var days [7]dayAcc
	emps := make(map[EmployeeID]*empAcc)
	weeks := make([]generic.Minutes, buckets)
	weekCounts := make([]int, buckets)
	var total generic.Minutes

	for _, s := range shifts {
		if s.ChildID != childID || !s.Active() || !window.Contains(s.Date) || s.Validate() != nil {
			continue
		}
		m := generic.MinutesFromDuration(s.Duration())
		total += m

		d := &days[s.Date.Weekday()]
		d.count++
		d.total += m

		e, ok := emps[s.EmployeeID]
		if !ok {
			e = &empAcc{}
			emps[s.EmployeeID] = e
		}
		e.count++
		e.total += m

		// bucket 0 is the most recent week; store oldest first
		back := generic.DaysBetween(s.Date, asOf) / 7
		idx := buckets - 1 - back
		weeks[idx] += m
		weekCounts[idx]++
	}

	p := WeeklyPattern{
		ChildID:       childID,
		AsOf:          asOf,
		LookbackDays:  lookbackDays,
		Window:        window,
		TotalHours:    total.Hours(),
		WeeklyAverage: total.Hours().Mul(decimal.NewFromInt(7)).Div(decimal.NewFromInt(int64(lookbackDays))).Round(2),
		WeeklyTotals:  make([]generic.Amount, buckets),
	}

	for i, m := range weeks {
		p.WeeklyTotals[i] = m.Hours()
		if weekCounts[i] > 0 {
			p.ActiveWeeks++
		}
	}

	for wd, d := range days {
		if d.count == 0 {
			continue
		}
		p.ByWeekday = append(p.ByWeekday, DayPattern{
			Weekday:      time.Weekday(wd),
			ShiftCount:   d.count,
			TotalHours:   d.total.Hours(),
			AverageHours: d.total.Hours().Div(decimal.NewFromInt(int64(d.count))).Round(2),
		})
	}

	for id, e := range emps {
		share := decimal.Zero
		if total > 0 {
			share = decimal.NewFromInt(int64(e.total)).Div(decimal.NewFromInt(int64(total)))
		}
		p.ByEmployee = append(p.ByEmployee, EmployeeShare{
			EmployeeID: id,
			ShiftCount: e.count,
			TotalHours: e.total.Hours(),
			Share:      share,
		})
	}
	sort.Slice(p.ByEmployee, func(i, j int) bool {
		a, b := p.ByEmployee[i], p.ByEmployee[j]
		if !a.TotalHours.Equal(b.TotalHours) {
			return a.TotalHours.GreaterThan(b.TotalHours)
		}
		return a.EmployeeID < b.EmployeeID
	})
	return p
}

// =============================================================================
// CONFIDENCE
// =============================================================================

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

const (
	minActiveWeeks  = 4
	highActiveWeeks = 8
	maxMediumCV     = 0.5
	maxHighCV       = 0.25
)

// ClassifyConfidence grades how far a projection built on p can be trusted.
func ClassifyConfidence(p WeeklyPattern) Confidence {
	if !p.HasHistory() || p.ActiveWeeks < minActiveWeeks {
		return ConfidenceLow
	}
	cv := VariationCoefficient(p.WeeklyTotals)
	switch {
	case cv > maxMediumCV:
		return ConfidenceLow
	case p.ActiveWeeks >= highActiveWeeks && cv <= maxHighCV:
		return ConfidenceHigh
	default:
		return ConfidenceMedium
	}
}

// VariationCoefficient returns stddev/mean over the non-zero totals.
// Returns 0 when there are none.
func VariationCoefficient(totals []generic.Amount) float64 {
	var xs []float64
	for _, t := range totals {
		if t.IsPositive() {
			f, _ := t.Value.Float64()
			xs = append(xs, f)
		}
	}
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return math.Sqrt(sq/float64(len(xs))) / mean
}

// =============================================================================
// PROJECTION
// =============================================================================

// BudgetComparison sets a projection against the budget covering it.
type BudgetComparison struct {
	CurrentBudget generic.Amount
	ProjectedNeed generic.Amount
	Variance      generic.Amount
	Sufficient    bool
}

// Projection is the result of Project.
type Projection struct {
	ChildID          ChildID
	AsOf             generic.TimePoint
	ProjectionDays   int
	ProjectedHours   generic.Amount
	WeeklyProjection generic.Amount
	Confidence       Confidence
	BasedOn          string
	Budget           *BudgetComparison
}

// Project scales the child's weekly average to projectionDays starting at asOf.
func Project(
	childID ChildID,
	shifts []Shift,
	budgets []ChildBudget,
	asOf generic.TimePoint,
	projectionDays int,
	opts ForecastOptions,
) Projection {
	opts = opts.withDefaults()
	if projectionDays <= 0 {
		projectionDays = 30
	}

	pattern := Patterns(childID, shifts, asOf, opts.LookbackDays)
	proj := Projection{
		ChildID:          childID,
		AsOf:             asOf,
		ProjectionDays:   projectionDays,
		ProjectedHours:   generic.Hours(0),
		WeeklyProjection: generic.Hours(0),
		Confidence:       ClassifyConfidence(pattern),
	}
	if !pattern.HasHistory() {
		proj.BasedOn = "No historical data"
		return proj
	}

	proj.WeeklyProjection = pattern.WeeklyAverage
	proj.ProjectedHours = pattern.WeeklyAverage.
		Mul(decimal.NewFromInt(int64(projectionDays))).
		Div(decimal.NewFromInt(7)).
		Round(2)
	proj.BasedOn = fmt.Sprintf("%d days of history", pattern.LookbackDays)

	horizon := generic.Period{Start: asOf, End: asOf.AddDays(projectionDays - 1)}
	if b, ok := SelectBudget(budgets, childID, horizon); ok {
		budgetHours := BudgetHoursOf(b, opts.DefaultHourlyRate)
		if budgetHours.IsPositive() {
			proj.Budget = &BudgetComparison{
				CurrentBudget: budgetHours,
				ProjectedNeed: proj.ProjectedHours,
				Variance:      budgetHours.Sub(proj.ProjectedHours),
				Sufficient:    !budgetHours.LessThan(proj.ProjectedHours),
			}
		}
	}
	return proj
}

// =============================================================================
// RECOMMENDATIONS
// =============================================================================

// Recommendation suggests how many hours an employee should work with a
// child in one payroll period.
type Recommendation struct {
	ChildID          ChildID
	EmployeeID       EmployeeID
	RecommendedHours generic.Amount
	SharePercent     decimal.Decimal
	BudgetHours      generic.Amount
}

// Recommend splits two weeks of each budgeted child's average across
// employees by their historical share. Children without a budget
// overlapping period, or without history, get nothing.
func Recommend(period PayrollPeriod, budgets []ChildBudget, patterns map[ChildID]WeeklyPattern, rate generic.Amount) []Recommendation {
	if rate.IsZero() {
		rate = DefaultHourlyRate
	}
	var out []Recommendation
	for _, childID := range budgetedChildren(budgets, period.Range()) {
		pattern, ok := patterns[childID]
		if !ok || !pattern.HasHistory() {
			continue
		}
		b, _ := SelectBudget(budgets, childID, period.Range())
		periodHours := pattern.WeeklyAverage.Mul(decimal.NewFromInt(2))
		for _, e := range pattern.ByEmployee {
			out = append(out, Recommendation{
				ChildID:          childID,
				EmployeeID:       e.EmployeeID,
				RecommendedHours: periodHours.Mul(e.Share).Round(2),
				SharePercent:     e.Share.Mul(hundred).Round(1),
				BudgetHours:      BudgetHoursOf(b, rate),
			})
		}
	}
	return out
}

// budgetedChildren returns the sorted ids of children with a budget overlapping window.
func budgetedChildren(budgets []ChildBudget, window generic.Period) []ChildID {
	seen := make(map[ChildID]bool)
	var ids []ChildID
	for _, b := range budgets {
		if b.Range().Overlaps(window) && !seen[b.ChildID] {
			seen[b.ChildID] = true
			ids = append(ids, b.ChildID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// =============================================================================
// SUMMARY AND RISK
// =============================================================================

type RiskLevel string

const (
	RiskUnknown RiskLevel = "unknown"
	RiskVeryLow RiskLevel = "very_low"
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
)

var (
	riskHighBelow = decimal.NewFromInt(-10)
	riskLowUpTo   = decimal.NewFromInt(20)
)

// AssessRisk grades a child's budget position for a window.
func AssessRisk(u Utilization, p Projection) RiskLevel {
	if !u.BudgetHours.IsPositive() {
		return RiskUnknown
	}
	if !p.ProjectedHours.IsPositive() {
		return RiskLow
	}
	v := u.AvailableHours.Sub(p.ProjectedHours).Value.Div(u.BudgetHours.Value).Mul(hundred)
	switch {
	case v.LessThan(riskHighBelow):
		return RiskHigh
	case v.IsNegative():
		return RiskMedium
	case v.LessThan(riskLowUpTo):
		return RiskLow
	default:
		return RiskVeryLow
	}
}

// ChildForecast is one row of a ForecastSummary.
type ChildForecast struct {
	ChildID            ChildID
	BudgetHours        generic.Amount
	UsedHours          generic.Amount
	AvailableHours     generic.Amount
	ProjectedNeed      generic.Amount
	Variance           generic.Amount
	UtilizationPercent decimal.Decimal
	Risk               RiskLevel
}

// ForecastTotals sums the rows of a ForecastSummary.
type ForecastTotals struct {
	BudgetHours    generic.Amount
	AvailableHours generic.Amount
	ProjectedHours generic.Amount
	Variance       generic.Amount
}

type ForecastSummary struct {
	Window   generic.Period
	Children []ChildForecast
	Totals   ForecastTotals
}

// Summary combines utilization and projections for every child with a
// positive budget. Children missing from projections are treated as having
// nothing projected.
func Summary(window generic.Period, utilizations []Utilization, projections map[ChildID]Projection) ForecastSummary {
	s := ForecastSummary{
		Window: window,
		Totals: ForecastTotals{
			BudgetHours:    generic.Hours(0),
			AvailableHours: generic.Hours(0),
			ProjectedHours: generic.Hours(0),
			Variance:       generic.Hours(0),
		},
	}
	for _, u := range utilizations {
		if !u.HasBudget || !u.BudgetHours.IsPositive() {
			continue
		}
		p, ok := projections[u.ChildID]
		if !ok {
			p = Projection{ChildID: u.ChildID, ProjectedHours: generic.Hours(0)}
		}
		s.Children = append(s.Children, ChildForecast{
			ChildID:            u.ChildID,
			BudgetHours:        u.BudgetHours,
			UsedHours:          u.UsedHours,
			AvailableHours:     u.AvailableHours,
			ProjectedNeed:      p.ProjectedHours,
			Variance:           u.AvailableHours.Sub(p.ProjectedHours),
			UtilizationPercent: u.UtilizationPercent,
			Risk:               AssessRisk(u, p),
		})
		s.Totals.BudgetHours = s.Totals.BudgetHours.Add(u.BudgetHours)
		s.Totals.AvailableHours = s.Totals.AvailableHours.Add(u.AvailableHours)
		s.Totals.ProjectedHours = s.Totals.ProjectedHours.Add(p.ProjectedHours)
	}
	s.Totals.Variance = s.Totals.AvailableHours.Sub(s.Totals.ProjectedHours)
	sort.Slice(s.Children, func(i, j int) bool { return s.Children[i].ChildID < s.Children[j].ChildID })
	return s
}
