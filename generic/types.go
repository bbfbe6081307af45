/*
Package generic provides the domain-agnostic primitives of the scheduling engine.

PURPOSE:
  This package contains the value types and arithmetic every scheduling
  component builds on. Nothing here knows about employees, children or
  budgets; it only knows about calendar dates, same-day clock times,
  intervals between them, and decimal quantities.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 7.5 hours, $412.50)
  - Minutes: Whole-minute durations used for exact hour aggregation

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so 20 + 40 minutes is exactly 1 hour
  2. Aggregate in minutes, convert once: sums never accumulate 1/60 drift
  3. Values, not pointers: every type here is safe to copy and compare

USAGE:
  worked := generic.HoursFromMinutes(450)      // 7.5 hours
  pay := worked.Mul(decimal.NewFromFloat(22))  // still "hours" unit, caller relabels
  budget := generic.NewAmount(100, generic.UnitHours)
  left := budget.Sub(worked)

SEE ALSO:
  - time.go: TimePoint (calendar dates) and ClockTime (same-day times)
  - interval.go: Overlap arithmetic
  - errors.go: Sentinel and structured errors
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitHours   Unit = "hours"
	UnitMinutes Unit = "minutes"
	UnitDollars Unit = "dollars"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

func Hours(value float64) Amount   { return NewAmount(value, UnitHours) }
func Dollars(value float64) Amount { return NewAmount(value, UnitDollars) }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) Div(s decimal.Decimal) Amount { return Amount{Value: a.Value.Div(s), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Round returns the amount rounded half-away-from-zero to places decimals.
func (a Amount) Round(places int32) Amount {
	return Amount{Value: a.Value.Round(places), Unit: a.Unit}
}

// Float returns the value rounded to two decimals, for JSON output.
func (a Amount) Float() float64 {
	f, _ := a.Value.Round(2).Float64()
	return f
}

// SafeDiv divides by s, returning zero instead of panicking when s is zero.
func (a Amount) SafeDiv(s decimal.Decimal) Amount {
	if s.IsZero() {
		return a.Zero()
	}
	return a.Div(s)
}

// =============================================================================
// MINUTES - Exact duration aggregation
// =============================================================================

// Minutes is a whole number of minutes. Hour totals are summed as Minutes
// and converted to decimal hours exactly once.
type Minutes int64

// MinutesFromDuration rounds d to the nearest minute.
func MinutesFromDuration(d time.Duration) Minutes {
	return Minutes(d.Round(time.Minute) / time.Minute)
}

// Hours converts minutes to decimal hours (minutes/60).
func (m Minutes) Hours() Amount { return HoursFromMinutes(m) }

func (m Minutes) Duration() time.Duration { return time.Duration(m) * time.Minute }

var sixty = decimal.NewFromInt(60)

// HoursFromMinutes converts a minute count to an hour Amount.
func HoursFromMinutes(m Minutes) Amount {
	return Amount{Value: decimal.NewFromInt(int64(m)).Div(sixty), Unit: UnitHours}
}

// MinutesFromHours converts an hour Amount to whole minutes, rounding to the nearest minute.
func MinutesFromHours(a Amount) Minutes {
	return Minutes(a.Value.Mul(sixty).Round(0).IntPart())
}
