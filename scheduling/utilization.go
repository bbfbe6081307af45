/*
utilization.go - Budget utilization for one child over a date range

PURPOSE:
  Answers "how many funded hours does this child have left, and how fast
  can we spend them?" for a payroll period or any other range.

FORMULAS:
  UsedHours       = sum of active shift durations in [start, end]
  AvailableHours  = BudgetHours - UsedHours          (negative when over)
  Utilization     = UsedHours / BudgetHours * 100    (0 when BudgetHours = 0)
  DaysRemaining   = max(0, end - max(asOf, start) + 1)
  AvgDaily        = AvailableHours / max(DaysRemaining, 1)
  WeeklyAvailable = AvgDaily * 7
  WeeklyRemaining = AvgDaily * min(7, DaysRemaining)

BUDGET SELECTION:
  A budget whose range exactly matches [start, end] wins. Otherwise the
  overlapping budget with the latest start is used. A budget with only a
  dollar amount is converted to hours at the default hourly rate. No budget
  is not an error: HasBudget is false and every budget figure is zero.

EXAMPLE:
  Budget 100h over a 14-day period, 25h used, asOf = day 6:
    Available 75h, 9 days remaining, AvgDaily 8.33h

SEE ALSO:
  - rates.go: RateFor prices each shift for CostUsed
  - forecast.go: Summary builds on AvailableHours
*/
package scheduling

import (
	"github.com/shopspring/decimal"

	"github.com/warp/shift-engine/generic"
)

// UtilizationOptions carries configurable defaults.
type UtilizationOptions struct {
	// DefaultHourlyRate prices shifts without an EmployeeRate and converts
	// dollar-only budgets to hours.
	DefaultHourlyRate generic.Amount
}

func DefaultUtilizationOptions() UtilizationOptions {
	return UtilizationOptions{DefaultHourlyRate: DefaultHourlyRate}
}

// Utilization is the result of AvailableHours.
type Utilization struct {
	ChildID     ChildID
	PeriodStart generic.TimePoint
	PeriodEnd   generic.TimePoint
	AsOf        generic.TimePoint

	HasBudget   bool
	BudgetHours generic.Amount
	UsedHours   generic.Amount
	ShiftCount  int

	AvailableHours        generic.Amount
	DaysRemaining         int
	AverageDailyAvailable generic.Amount
	WeeklyAvailable       generic.Amount
	WeeklyRemaining       generic.Amount
	UtilizationPercent    decimal.Decimal

	BudgetAmount    generic.Amount
	CostUsed        generic.Amount
	AmountRemaining generic.Amount
}

var hundred = decimal.NewFromInt(100)

// SelectBudget picks the child's budget for [start, end].
func SelectBudget(budgets []ChildBudget, childID ChildID, window generic.Period) (ChildBudget, bool) {
	var best ChildBudget
	found := false
	for _, b := range budgets {
		if b.ChildID != childID || !b.Range().Overlaps(window) {
			continue
		}
		if b.PeriodStart.Equal(window.Start) && b.PeriodEnd.Equal(window.End) {
			return b, true
		}
		if !found || b.PeriodStart.After(best.PeriodStart) {
			best = b
			found = true
		}
	}
	return best, found
}

// BudgetHoursOf returns the budget's hours, converting from dollars at rate
// when only an amount was recorded.
func BudgetHoursOf(b ChildBudget, rate generic.Amount) generic.Amount {
	if b.BudgetHours != nil {
		return *b.BudgetHours
	}
	return generic.Amount{Value: b.BudgetAmount.Value, Unit: generic.UnitHours}.SafeDiv(rate.Value).Round(2)
}

// AvailableHours computes utilization for childID over [periodStart, periodEnd] as seen on asOf.
func AvailableHours(
	childID ChildID,
	periodStart, periodEnd, asOf generic.TimePoint,
	shifts []Shift,
	budgets []ChildBudget,
	rates []EmployeeRate,
	opts UtilizationOptions,
) Utilization {
	if opts.DefaultHourlyRate.IsZero() {
		opts.DefaultHourlyRate = DefaultHourlyRate
	}
	window := generic.Period{Start: periodStart, End: periodEnd}

	u := Utilization{
		ChildID:         childID,
		PeriodStart:     periodStart,
		PeriodEnd:       periodEnd,
		AsOf:            asOf,
		BudgetHours:     generic.Hours(0),
		BudgetAmount:    generic.Dollars(0),
		CostUsed:        generic.Dollars(0),
		AmountRemaining: generic.Dollars(0),
	}

	var used generic.Minutes
	cost := generic.Dollars(0)
	for _, s := range shifts {
		if s.ChildID != childID || !s.Active() || !window.Contains(s.Date) || s.Validate() != nil {
			continue
		}
		m := generic.MinutesFromDuration(s.Duration())
		used += m
		u.ShiftCount++
		rate := HourlyRate(rates, s.EmployeeID, s.Date, opts.DefaultHourlyRate)
		cost = cost.Add(generic.Amount{Value: m.Hours().Value.Mul(rate.Value), Unit: generic.UnitDollars})
	}
	u.UsedHours = used.Hours()
	u.CostUsed = cost.Round(2)

	if b, ok := SelectBudget(budgets, childID, window); ok {
		u.HasBudget = true
		u.BudgetAmount = b.BudgetAmount
		u.BudgetHours = BudgetHoursOf(b, opts.DefaultHourlyRate)
		u.AmountRemaining = b.BudgetAmount.Sub(u.CostUsed)
	}

	// Over-budget children show negative availability.
	u.AvailableHours = u.BudgetHours.Sub(u.UsedHours)
	if u.BudgetHours.IsPositive() {
		u.UtilizationPercent = u.UsedHours.Value.Div(u.BudgetHours.Value).Mul(hundred).Round(2)
	}

	u.DaysRemaining = DaysRemaining(periodStart, periodEnd, asOf)
	divisor := u.DaysRemaining
	if divisor < 1 {
		divisor = 1
	}
	week := u.DaysRemaining
	if week > 7 {
		week = 7
	}
	avg := u.AvailableHours.Div(decimal.NewFromInt(int64(divisor)))
	u.AverageDailyAvailable = avg.Round(2)
	u.WeeklyAvailable = avg.Mul(decimal.NewFromInt(7)).Round(2)
	u.WeeklyRemaining = avg.Mul(decimal.NewFromInt(int64(week))).Round(2)
	return u
}

// DaysRemaining counts the days from max(asOf, start) through end inclusive.
func DaysRemaining(start, end, asOf generic.TimePoint) int {
	from := generic.MaxDate(asOf, start)
	n := generic.DaysBetween(from, end) + 1
	if n < 0 {
		return 0
	}
	return n
}
