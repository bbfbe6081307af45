/*
scenarios.go - Demo scenario loaders for development and demonstrations

PURPOSE:

	Wipes the store and seeds a caregiver schedule dated relative to today,
	so the period, exclusion and forecast endpoints have data to show.

AVAILABLE SCENARIOS:

	steady-care:  One child, two caregivers, twelve weeks of imported history
	over-budget:  History that outruns the current budget (high risk)
	holiday-week: steady-care plus a general holiday and a caregiver vacation

HOW SCENARIOS WORK:
 1. Reset the store (requires scheduling.Resetter)
 2. Configure payroll periods so the current one started three days ago
 3. Import history before the current period, create manual shifts in it
 4. Save budgets, rates, hour limits and exclusions through the services

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "steady-care"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - server.go: /api/scenarios routes
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/scheduling"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "steady-care",
		Name:        "Steady Care",
		Description: "Child C-100 with weekday mornings (E-1) and two afternoons (E-2), budget and hour limit",
	},
	{
		ID:          "over-budget",
		Name:        "Over Budget",
		Description: "Child C-200 averaging 45h/week against a $500 budget",
	},
	{
		ID:          "holiday-week",
		Name:        "Holiday Week",
		Description: "Steady Care plus a general holiday and a caregiver vacation this period",
	},
}

const historyDays = 84

type currentScenario struct {
	mu sync.RWMutex
	id string
}

func (c *currentScenario) get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

func (c *currentScenario) set(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the loaded scenario, or null.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	id := h.scenario.get()
	for _, s := range scenarios {
		if s.ID == id {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context, generic.TimePoint) error
	switch req.ScenarioID {
	case "steady-care":
		load = h.loadSteadyCareScenario
	case "over-budget":
		load = h.loadOverBudgetScenario
	case "holiday-week":
		load = h.loadHolidayWeekScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	resetter, ok := h.store.(scheduling.Resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not support reset", nil)
		return
	}

	ctx := r.Context()
	if err := resetter.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.scenario.set("")

	if err := load(ctx, h.today()); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.scenario.set(req.ScenarioID)

	h.Logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSteadyCareScenario(ctx context.Context, today generic.TimePoint) error {
	current, err := h.configureAround(ctx, today)
	if err != nil {
		return err
	}

	if err := h.seedHistory(ctx, current, today, steadyCareDay); err != nil {
		return err
	}

	if _, err := h.Records.SaveBudget(ctx, scheduling.ChildBudget{
		ChildID:      "C-100",
		PeriodStart:  current.Start,
		PeriodEnd:    current.End,
		BudgetAmount: generic.NewAmount(1500, generic.UnitDollars),
		BudgetHours:  demoHours(60),
		Notes:        "Monthly waiver hours",
	}); err != nil {
		return err
	}

	for emp, rate := range map[scheduling.EmployeeID]float64{"E-1": 24, "E-2": 28} {
		if _, err := h.Records.AddRate(ctx, scheduling.EmployeeRate{
			EmployeeID:    emp,
			HourlyRate:    generic.NewAmount(rate, generic.UnitDollars),
			EffectiveDate: today.AddDays(-historyDays - 14),
		}); err != nil {
			return err
		}
	}

	_, err = h.Records.SaveHourLimit(ctx, scheduling.HourLimit{
		EmployeeID:      "E-1",
		ChildID:         "C-100",
		MaxHoursPerWeek: generic.Hours(25),
		AlertThreshold:  demoHours(20),
	})
	return err
}

func (h *Handler) loadOverBudgetScenario(ctx context.Context, today generic.TimePoint) error {
	current, err := h.configureAround(ctx, today)
	if err != nil {
		return err
	}

	if err := h.seedHistory(ctx, current, today, overBudgetDay); err != nil {
		return err
	}

	// Dollar-only: hours derive from the default rate.
	_, err = h.Records.SaveBudget(ctx, scheduling.ChildBudget{
		ChildID:      "C-200",
		PeriodStart:  current.Start,
		PeriodEnd:    current.End,
		BudgetAmount: generic.NewAmount(500, generic.UnitDollars),
	})
	return err
}

func (h *Handler) loadHolidayWeekScenario(ctx context.Context, today generic.TimePoint) error {
	if err := h.loadSteadyCareScenario(ctx, today); err != nil {
		return err
	}

	holiday := today.AddDays(2)
	if _, err := h.Records.CreateExclusion(ctx, scheduling.ExclusionPeriod{
		Name:  "Holiday",
		Start: holiday,
		End:   holiday,
		Scope: scheduling.GeneralScope(),
	}); err != nil {
		return err
	}

	reason := "Vacation"
	_, err := h.Records.CreateExclusion(ctx, scheduling.ExclusionPeriod{
		Name:   "E-2 vacation",
		Start:  today.AddDays(4),
		End:    today.AddDays(6),
		Scope:  scheduling.EmployeeScope("E-2"),
		Reason: &reason,
	})
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

// configureAround anchors the calendar so the current period started three
// days before today, and returns it.
func (h *Handler) configureAround(ctx context.Context, today generic.TimePoint) (scheduling.PayrollPeriod, error) {
	if _, err := h.Calendar.Configure(ctx, today.AddDays(-3)); err != nil {
		return scheduling.PayrollPeriod{}, err
	}
	return h.Calendar.Current(ctx)
}

// dayPlan returns the shifts worked on one date.
type dayPlan func(date generic.TimePoint) []scheduling.Shift

// seedHistory imports historyDays of plan before the current period and
// creates manual shifts from the period start up to yesterday.
func (h *Handler) seedHistory(ctx context.Context, current scheduling.PayrollPeriod, today generic.TimePoint, plan dayPlan) error {
	var history []scheduling.Shift
	for d := current.Start.AddDays(-historyDays); d.Before(current.Start); d = d.AddDays(1) {
		history = append(history, plan(d)...)
	}
	if _, err := h.Shifts.Import(ctx, history); err != nil {
		return err
	}

	for d := current.Start; d.Before(today); d = d.AddDays(1) {
		for _, sh := range plan(d) {
			if _, _, err := h.Shifts.Create(ctx, sh, scheduling.ValidateOptions{}); err != nil {
				return fmt.Errorf("create shift on %s: %w", d, err)
			}
		}
	}
	return nil
}

func steadyCareDay(date generic.TimePoint) []scheduling.Shift {
	var out []scheduling.Shift
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return nil
	case time.Tuesday, time.Thursday:
		out = append(out, demoShift("E-2", "C-100", date, "13:00", "17:00"))
	}
	return append(out, demoShift("E-1", "C-100", date, "08:00", "12:00"))
}

func overBudgetDay(date generic.TimePoint) []scheduling.Shift {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return nil
	}
	return []scheduling.Shift{demoShift("E-3", "C-200", date, "08:00", "17:00")}
}

func demoShift(emp scheduling.EmployeeID, child scheduling.ChildID, date generic.TimePoint, start, end string) scheduling.Shift {
	return scheduling.Shift{
		EmployeeID: emp,
		ChildID:    child,
		Date:       date,
		Start:      generic.MustParseClockTime(start),
		End:        generic.MustParseClockTime(end),
	}
}

func demoHours(v float64) *generic.Amount {
	a := generic.Hours(v)
	return &a
}
