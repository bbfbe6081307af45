package scheduling

import (
	"github.com/warp/shift-engine/generic"
)

// DefaultHourlyRate prices hours when no EmployeeRate applies and converts
// dollar-only budgets to hours.
var DefaultHourlyRate = generic.Dollars(25)

// RateFor returns the rate effective on date for the employee. When records
// overlap, the one with the latest effective date wins.
func RateFor(rates []EmployeeRate, employeeID EmployeeID, date generic.TimePoint) (EmployeeRate, bool) {
	var best EmployeeRate
	found := false
	for _, r := range rates {
		if r.EmployeeID != employeeID || !r.EffectiveOn(date) {
			continue
		}
		if !found || r.EffectiveDate.After(best.EffectiveDate) {
			best = r
			found = true
		}
	}
	return best, found
}

// HourlyRate is RateFor with the fallback applied.
func HourlyRate(rates []EmployeeRate, employeeID EmployeeID, date generic.TimePoint, fallback generic.Amount) generic.Amount {
	if r, ok := RateFor(rates, employeeID, date); ok {
		return r.HourlyRate
	}
	return fallback
}

// CloseOpenRate returns the employee's open-ended rate with its end date set
// to the day before next takes effect. ok is false when there is no open rate
// starting before next.
func CloseOpenRate(rates []EmployeeRate, next EmployeeRate) (EmployeeRate, bool) {
	for _, r := range rates {
		if r.EmployeeID != next.EmployeeID || r.EndDate != nil || r.ID == next.ID {
			continue
		}
		if !r.EffectiveDate.Before(next.EffectiveDate) {
			continue
		}
		end := next.EffectiveDate.AddDays(-1)
		r.EndDate = &end
		return r, true
	}
	return EmployeeRate{}, false
}
