/*
handlers.go - HTTP API handlers for the shift scheduling engine

PURPOSE:
  Exposes the scheduling services via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the services.

ENDPOINTS:
  Periods:
    POST   /api/periods/configure          Regenerate the period sequence
    GET    /api/periods                    List periods
    GET    /api/periods/current            Period containing today
    GET    /api/periods/{id}/next          Following period
    GET    /api/periods/{id}/previous      Preceding period
    GET    /api/periods/{id}/summary       Week 1/2 hours and limit breaches
    GET    /api/periods/{id}/conflicts     Double-bookings in the period

  Shifts:
    GET    /api/shifts                     List (start_date, end_date, employee_id, child_id)
    POST   /api/shifts                     Validate and create
    PUT    /api/shifts/{id}                Validate and update
    DELETE /api/shifts/{id}                Delete (403 on imported)
    POST   /api/shifts/import              Import an external schedule
    POST   /api/shifts/auto-fill           Fill a child's free time on a date
    GET    /api/conflicts                  Double-bookings in a date range

  Records:
    GET    /api/exclusions                 Resolved views (date, child_id) or list
    POST   /api/exclusions                 Create
    DELETE /api/exclusions/{id}            Deactivate
    GET    /api/hour-limits                List active limits
    POST   /api/hour-limits                Create or update a limit
    GET    /api/budgets                    List (child_id)
    POST   /api/budgets                    Create
    GET    /api/rates                      List (employee_id)
    POST   /api/rates                      Add, closing the open rate
    GET    /api/allocations                List (period_id)
    POST   /api/allocations                Upsert

  Forecast:
    GET    /api/forecast/patterns          child_id, lookback_days
    GET    /api/forecast/projections       child_id, projection_days
    GET    /api/forecast/available-hours   child_id, period_start, period_end
    GET    /api/forecast/recommendations   period_id
    GET    /api/forecast/summary           period_start, period_end

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, invalid interval
  - 403: Imported shift is read-only
  - 404: Not found, periods not configured, navigation out of range
  - 409: Overlap, exclusion, duplicate hour limit
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/scheduling"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Calendar *scheduling.CalendarService
	Shifts   *scheduling.ShiftService
	Records  *scheduling.RecordService
	Forecast *scheduling.ForecastService
	Logger   *zap.Logger

	store    scheduling.Store
	clock    func() time.Time
	scenario currentScenario
}

// Options configures the services a Handler builds.
type Options struct {
	Calendar scheduling.CalendarOptions
	Forecast scheduling.ForecastOptions
}

// NewHandler wires every service over one store.
func NewHandler(store scheduling.Store, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Calendar: scheduling.NewCalendarService(store, opts.Calendar, logger.Named("calendar")),
		Shifts:   scheduling.NewShiftService(store, logger.Named("shifts")),
		Records:  scheduling.NewRecordService(store, logger.Named("records")),
		Forecast: scheduling.NewForecastService(store, opts.Forecast, logger.Named("forecast")),
		Logger:   logger,
		store:    store,
		clock:    time.Now,
	}
}

// SetClock replaces the clock of the handler and every service.
func (h *Handler) SetClock(clock func() time.Time) {
	h.clock = clock
	h.Calendar.Clock = clock
	h.Shifts.Clock = clock
	h.Forecast.Clock = clock
}

func (h *Handler) today() generic.TimePoint { return generic.DateOf(h.clock()) }

// Health reports liveness and whether periods are configured.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	state, err := h.Calendar.State(r.Context())
	if err != nil {
		writeServiceError(w, "Failed to read calendar state", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"calendar": state,
	})
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// ConfigurePeriods regenerates the whole sequence from an anchor date.
// POST /api/periods/configure
func (h *Handler) ConfigurePeriods(w http.ResponseWriter, r *http.Request) {
	var req ConfigurePeriodsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	anchor, err := generic.ParseDate(req.AnchorDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid anchor_date (use YYYY-MM-DD)", err)
		return
	}

	periods, err := h.Calendar.Configure(r.Context(), anchor)
	if err != nil {
		writeServiceError(w, "Failed to configure periods", err)
		return
	}

	writeJSON(w, http.StatusOK, ConfigurePeriodsResponse{
		AnchorDate: anchor.String(),
		Periods:    h.toPeriodDTOs(periods),
	})
}

// ListPeriods returns the stored sequence.
// GET /api/periods
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Calendar.Periods(r.Context())
	if err != nil {
		writeServiceError(w, "Failed to list periods", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toPeriodDTOs(periods))
}

// CurrentPeriod returns the period containing today.
// GET /api/periods/current
func (h *Handler) CurrentPeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Calendar.Current(r.Context())
	if err != nil {
		writeServiceError(w, "No current period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p, h.today()))
}

// NextPeriod returns the period after {id}.
// GET /api/periods/{id}/next
func (h *Handler) NextPeriod(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, 1)
}

// PreviousPeriod returns the period before {id}.
// GET /api/periods/{id}/previous
func (h *Handler) PreviousPeriod(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, -1)
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request, direction int) {
	id, err := periodIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period id", err)
		return
	}
	p, err := h.Calendar.Navigate(r.Context(), id, direction)
	if err != nil {
		writeServiceError(w, "Cannot navigate", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p, h.today()))
}

// PeriodSummary returns week 1 and week 2 hours per employee, child and pair.
// GET /api/periods/{id}/summary
func (h *Handler) PeriodSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := periodIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period id", err)
		return
	}
	p, err := h.Calendar.Period(ctx, id)
	if err != nil {
		writeServiceError(w, "Period not found", err)
		return
	}
	summary, err := h.Shifts.Summary(ctx, p)
	if err != nil {
		writeServiceError(w, "Failed to summarize period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodSummaryDTO(summary, h.today()))
}

// PeriodConflicts returns double-bookings inside the period.
// GET /api/periods/{id}/conflicts
func (h *Handler) PeriodConflicts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := periodIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period id", err)
		return
	}
	p, err := h.Calendar.Period(ctx, id)
	if err != nil {
		writeServiceError(w, "Period not found", err)
		return
	}
	conflicts, err := h.Shifts.Conflicts(ctx, p.Start, p.End)
	if err != nil {
		writeServiceError(w, "Failed to scan conflicts", err)
		return
	}
	writeJSON(w, http.StatusOK, toConflictDTOs(conflicts))
}

func (h *Handler) toPeriodDTOs(periods []scheduling.PayrollPeriod) []PeriodDTO {
	today := h.today()
	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPeriodDTO(p, today)
	}
	return dtos
}

// =============================================================================
// SHIFT HANDLERS
// =============================================================================

// ListShifts returns shifts matching the query filters.
// GET /api/shifts?start_date=&end_date=&employee_id=&child_id=
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := dateParam(r, "start_date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	to, err := dateParam(r, "end_date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
		return
	}

	shifts, err := h.Shifts.List(r.Context(), scheduling.ShiftFilter{
		From:       from,
		To:         to,
		EmployeeID: scheduling.EmployeeID(q.Get("employee_id")),
		ChildID:    scheduling.ChildID(q.Get("child_id")),
	})
	if err != nil {
		writeServiceError(w, "Failed to list shifts", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTOs(shifts))
}

// CreateShift validates and saves a manual shift.
// POST /api/shifts
func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	var req ShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	shift, err := parseShiftRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid shift", err)
		return
	}

	saved, warnings, err := h.Shifts.Create(r.Context(), shift, scheduling.ValidateOptions{AllowOverlaps: req.AllowOverlaps})
	if err != nil {
		writeServiceError(w, "Shift rejected", err)
		return
	}
	writeJSON(w, http.StatusCreated, ShiftResponse{Shift: toShiftDTO(saved), Warnings: nonNil(warnings)})
}

// UpdateShift validates and replaces a manual shift.
// PUT /api/shifts/{id}
func (h *Handler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	id := scheduling.ShiftID(chi.URLParam(r, "id"))

	var req ShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	shift, err := parseShiftRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid shift", err)
		return
	}

	saved, warnings, err := h.Shifts.Update(r.Context(), id, shift, scheduling.ValidateOptions{AllowOverlaps: req.AllowOverlaps})
	if err != nil {
		writeServiceError(w, "Shift rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, ShiftResponse{Shift: toShiftDTO(saved), Warnings: nonNil(warnings)})
}

// DeleteShift removes a manual shift.
// DELETE /api/shifts/{id}
func (h *Handler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	id := scheduling.ShiftID(chi.URLParam(r, "id"))
	if err := h.Shifts.Delete(r.Context(), id); err != nil {
		writeServiceError(w, "Failed to delete shift", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// ImportShifts writes an external schedule as read-only shifts.
// POST /api/shifts/import
func (h *Handler) ImportShifts(w http.ResponseWriter, r *http.Request) {
	var req ImportShiftsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Shifts) == 0 {
		writeError(w, http.StatusBadRequest, "No shifts to import", nil)
		return
	}

	shifts := make([]scheduling.Shift, 0, len(req.Shifts))
	for i, row := range req.Shifts {
		s, err := parseShiftRequest(row)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid shift at row %d", i+1), err)
			return
		}
		shifts = append(shifts, s)
	}

	result, err := h.Shifts.Import(r.Context(), shifts)
	if err != nil {
		writeServiceError(w, "Import failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportShiftsResponse{
		Imported:   result.Imported,
		Superseded: result.Superseded,
		Duplicates: result.Duplicates,
	})
}

// AutoFill creates shifts over a child's free time on one date.
// POST /api/shifts/auto-fill
func (h *Handler) AutoFill(w http.ResponseWriter, r *http.Request) {
	var req AutoFillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ChildID == "" || req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "child_id and employee_id are required", nil)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	created, err := h.Shifts.AutoFillDay(r.Context(), scheduling.ChildID(req.ChildID), scheduling.EmployeeID(req.EmployeeID), date)
	if err != nil {
		writeServiceError(w, "Auto-fill failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toShiftDTOs(created))
}

// ListConflicts returns double-bookings in a date range.
// GET /api/conflicts?start_date=&end_date=
func (h *Handler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	window, ok := h.windowParams(w, r, "start_date", "end_date")
	if !ok {
		return
	}
	conflicts, err := h.Shifts.Conflicts(r.Context(), window.Start, window.End)
	if err != nil {
		writeServiceError(w, "Failed to scan conflicts", err)
		return
	}
	writeJSON(w, http.StatusOK, toConflictDTOs(conflicts))
}

func parseShiftRequest(req ShiftRequest) (scheduling.Shift, error) {
	if req.EmployeeID == "" || req.ChildID == "" {
		return scheduling.Shift{}, errors.New("employee_id and child_id are required")
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		return scheduling.Shift{}, err
	}
	start, err := generic.ParseClockTime(req.StartTime)
	if err != nil {
		return scheduling.Shift{}, fmt.Errorf("start_time: %w", err)
	}
	end, err := generic.ParseClockTime(req.EndTime)
	if err != nil {
		return scheduling.Shift{}, fmt.Errorf("end_time: %w", err)
	}
	return scheduling.Shift{
		EmployeeID:  scheduling.EmployeeID(req.EmployeeID),
		ChildID:     scheduling.ChildID(req.ChildID),
		Date:        date,
		Start:       start,
		End:         end,
		ServiceCode: req.ServiceCode,
		Status:      scheduling.ShiftStatus(req.Status),
	}, nil
}

// =============================================================================
// EXCLUSION HANDLERS
// =============================================================================

// ListExclusions returns the views in effect on ?date (optionally narrowed
// to ?child_id), or every exclusion when no date is given.
// GET /api/exclusions
func (h *Handler) ListExclusions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	date, err := dateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	if date != nil {
		views, err := h.Records.ExclusionsOn(ctx, *date, scheduling.ChildID(q.Get("child_id")))
		if err != nil {
			writeServiceError(w, "Failed to resolve exclusions", err)
			return
		}
		dtos := make([]ExclusionViewDTO, len(views))
		for i, v := range views {
			dtos[i] = toExclusionViewDTO(v)
		}
		writeJSON(w, http.StatusOK, dtos)
		return
	}

	exclusions, err := h.Records.ListExclusions(ctx, q.Get("include_inactive") != "true")
	if err != nil {
		writeServiceError(w, "Failed to list exclusions", err)
		return
	}
	dtos := make([]ExclusionDTO, len(exclusions))
	for i, e := range exclusions {
		dtos[i] = toExclusionDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateExclusion stores a blackout window.
// POST /api/exclusions
func (h *Handler) CreateExclusion(w http.ResponseWriter, r *http.Request) {
	var req CreateExclusionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	e, err := parseExclusionRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid exclusion", err)
		return
	}

	saved, err := h.Records.CreateExclusion(r.Context(), e)
	if err != nil {
		writeServiceError(w, "Failed to create exclusion", err)
		return
	}
	writeJSON(w, http.StatusCreated, toExclusionDTO(saved))
}

// DeleteExclusion deactivates an exclusion; the record is kept.
// DELETE /api/exclusions/{id}
func (h *Handler) DeleteExclusion(w http.ResponseWriter, r *http.Request) {
	if err := h.Records.DeactivateExclusion(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, "Failed to deactivate exclusion", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deactivated"})
}

func parseExclusionRequest(req CreateExclusionRequest) (scheduling.ExclusionPeriod, error) {
	if req.Name == "" {
		return scheduling.ExclusionPeriod{}, errors.New("name is required")
	}
	start, err := generic.ParseDate(req.StartDate)
	if err != nil {
		return scheduling.ExclusionPeriod{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := generic.ParseDate(req.EndDate)
	if err != nil {
		return scheduling.ExclusionPeriod{}, fmt.Errorf("end_date: %w", err)
	}
	startTime, err := optionalClock(req.StartTime)
	if err != nil {
		return scheduling.ExclusionPeriod{}, fmt.Errorf("start_time: %w", err)
	}
	endTime, err := optionalClock(req.EndTime)
	if err != nil {
		return scheduling.ExclusionPeriod{}, fmt.Errorf("end_time: %w", err)
	}

	e := scheduling.ExclusionPeriod{
		Name:      req.Name,
		Start:     start,
		End:       end,
		StartTime: startTime,
		EndTime:   endTime,
		Scope:     scheduling.GeneralScope(),
		Reason:    req.Reason,
	}
	switch {
	case req.EmployeeID != "" && req.ChildID != "":
		return scheduling.ExclusionPeriod{}, errors.New("an exclusion applies to an employee or a child, not both")
	case req.EmployeeID != "":
		e.Scope = scheduling.EmployeeScope(scheduling.EmployeeID(req.EmployeeID))
	case req.ChildID != "":
		e.Scope = scheduling.ChildScope(scheduling.ChildID(req.ChildID))
	}
	return e, nil
}

// =============================================================================
// HOUR LIMIT HANDLERS
// =============================================================================

// ListHourLimits returns active weekly limits.
// GET /api/hour-limits
func (h *Handler) ListHourLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := h.Records.ListHourLimits(r.Context())
	if err != nil {
		writeServiceError(w, "Failed to list hour limits", err)
		return
	}
	dtos := make([]HourLimitDTO, len(limits))
	for i, l := range limits {
		dtos[i] = toHourLimitDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveHourLimit creates a limit, or updates it when the body carries its id.
// POST /api/hour-limits
func (h *Handler) SaveHourLimit(w http.ResponseWriter, r *http.Request) {
	var req HourLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" || req.ChildID == "" {
		writeError(w, http.StatusBadRequest, "employee_id and child_id are required", nil)
		return
	}

	saved, err := h.Records.SaveHourLimit(r.Context(), scheduling.HourLimit{
		ID:              req.ID,
		EmployeeID:      scheduling.EmployeeID(req.EmployeeID),
		ChildID:         scheduling.ChildID(req.ChildID),
		MaxHoursPerWeek: generic.Hours(req.MaxHoursPerWeek),
		AlertThreshold:  hoursPtr(req.AlertThreshold),
	})
	if err != nil {
		writeServiceError(w, "Failed to save hour limit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHourLimitDTO(saved))
}

// =============================================================================
// BUDGET, RATE, ALLOCATION HANDLERS
// =============================================================================

// ListBudgets returns budgets, optionally for one child.
// GET /api/budgets?child_id=
func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.Records.ListBudgets(r.Context(), scheduling.ChildID(r.URL.Query().Get("child_id")))
	if err != nil {
		writeServiceError(w, "Failed to list budgets", err)
		return
	}
	dtos := make([]BudgetDTO, len(budgets))
	for i, b := range budgets {
		dtos[i] = toBudgetDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBudget stores a child budget.
// POST /api/budgets
func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	var req BudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ChildID == "" {
		writeError(w, http.StatusBadRequest, "child_id is required", nil)
		return
	}
	start, err := generic.ParseDate(req.PeriodStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_start (use YYYY-MM-DD)", err)
		return
	}
	end, err := generic.ParseDate(req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_end (use YYYY-MM-DD)", err)
		return
	}

	saved, err := h.Records.SaveBudget(r.Context(), scheduling.ChildBudget{
		ChildID:      scheduling.ChildID(req.ChildID),
		PeriodStart:  start,
		PeriodEnd:    end,
		BudgetAmount: generic.Dollars(req.BudgetAmount),
		BudgetHours:  hoursPtr(req.BudgetHours),
		Notes:        req.Notes,
	})
	if err != nil {
		writeServiceError(w, "Failed to save budget", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetDTO(saved))
}

// ListRates returns rates, optionally for one employee, newest first.
// GET /api/rates?employee_id=
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Records.ListRates(r.Context(), scheduling.EmployeeID(r.URL.Query().Get("employee_id")))
	if err != nil {
		writeServiceError(w, "Failed to list rates", err)
		return
	}
	dtos := make([]RateDTO, len(rates))
	for i, rate := range rates {
		dtos[i] = toRateDTO(rate)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddRate records a new hourly rate.
// POST /api/rates
func (h *Handler) AddRate(w http.ResponseWriter, r *http.Request) {
	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required", nil)
		return
	}
	effective, err := generic.ParseDate(req.EffectiveDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_date (use YYYY-MM-DD)", err)
		return
	}

	saved, err := h.Records.AddRate(r.Context(), scheduling.EmployeeRate{
		EmployeeID:    scheduling.EmployeeID(req.EmployeeID),
		HourlyRate:    generic.Dollars(req.HourlyRate),
		EffectiveDate: effective,
		Notes:         req.Notes,
	})
	if err != nil {
		writeServiceError(w, "Failed to add rate", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRateDTO(saved))
}

// ListAllocations returns planned hours, optionally for one period.
// GET /api/allocations?period_id=
func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	var periodID scheduling.PeriodID
	if raw := r.URL.Query().Get("period_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period_id", err)
			return
		}
		periodID = scheduling.PeriodID(id)
	}

	allocations, err := h.Records.ListAllocations(r.Context(), periodID)
	if err != nil {
		writeServiceError(w, "Failed to list allocations", err)
		return
	}
	dtos := make([]AllocationDTO, len(allocations))
	for i, a := range allocations {
		dtos[i] = toAllocationDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveAllocation upserts planned hours for a (child, employee, period).
// POST /api/allocations
func (h *Handler) SaveAllocation(w http.ResponseWriter, r *http.Request) {
	var req AllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ChildID == "" || req.EmployeeID == "" || req.PeriodID == 0 {
		writeError(w, http.StatusBadRequest, "child_id, employee_id and period_id are required", nil)
		return
	}

	saved, err := h.Records.SaveAllocation(r.Context(), scheduling.BudgetAllocation{
		ChildID:        scheduling.ChildID(req.ChildID),
		EmployeeID:     scheduling.EmployeeID(req.EmployeeID),
		PeriodID:       scheduling.PeriodID(req.PeriodID),
		AllocatedHours: generic.Hours(req.AllocatedHours),
		Notes:          req.Notes,
	})
	if err != nil {
		writeServiceError(w, "Failed to save allocation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAllocationDTO(saved))
}

// =============================================================================
// FORECAST HANDLERS
// =============================================================================

// Patterns returns a child's historical weekday and employee distribution.
// GET /api/forecast/patterns?child_id=&lookback_days=
func (h *Handler) Patterns(w http.ResponseWriter, r *http.Request) {
	childID, ok := requireChild(w, r)
	if !ok {
		return
	}
	lookback, err := intParam(r, "lookback_days")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid lookback_days", err)
		return
	}

	p, err := h.Forecast.Patterns(r.Context(), childID, lookback)
	if err != nil {
		writeServiceError(w, "Failed to analyze patterns", err)
		return
	}
	writeJSON(w, http.StatusOK, toPatternDTO(p))
}

// Projections forecasts a child's hours from today.
// GET /api/forecast/projections?child_id=&projection_days=
func (h *Handler) Projections(w http.ResponseWriter, r *http.Request) {
	childID, ok := requireChild(w, r)
	if !ok {
		return
	}
	days, err := intParam(r, "projection_days")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid projection_days", err)
		return
	}

	p, err := h.Forecast.Project(r.Context(), childID, days)
	if err != nil {
		writeServiceError(w, "Failed to project hours", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectionDTO(p))
}

// AvailableHours returns budget utilization for a child. The window
// defaults to the current period.
// GET /api/forecast/available-hours?child_id=&period_start=&period_end=
func (h *Handler) AvailableHours(w http.ResponseWriter, r *http.Request) {
	childID, ok := requireChild(w, r)
	if !ok {
		return
	}
	window, ok := h.windowParams(w, r, "period_start", "period_end")
	if !ok {
		return
	}

	u, err := h.Forecast.AvailableHours(r.Context(), childID, window.Start, window.End)
	if err != nil {
		writeServiceError(w, "Failed to compute available hours", err)
		return
	}
	writeJSON(w, http.StatusOK, toUtilizationDTO(u))
}

// Recommendations suggests per-employee hours for a period, the current
// one when period_id is omitted.
// GET /api/forecast/recommendations?period_id=
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var periodID scheduling.PeriodID
	if raw := r.URL.Query().Get("period_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period_id", err)
			return
		}
		periodID = scheduling.PeriodID(id)
	} else {
		current, err := h.Calendar.Current(ctx)
		if err != nil {
			writeServiceError(w, "No current period", err)
			return
		}
		periodID = current.ID
	}

	period, recs, err := h.Forecast.Recommendations(ctx, periodID)
	if err != nil {
		writeServiceError(w, "Failed to build recommendations", err)
		return
	}

	resp := RecommendationsResponse{
		PeriodID:        int(period.ID),
		PeriodStart:     period.Start.String(),
		PeriodEnd:       period.End.String(),
		Recommendations: make([]RecommendationDTO, 0, len(recs)),
	}
	for _, rec := range recs {
		pct, _ := rec.SharePercent.Round(1).Float64()
		resp.Recommendations = append(resp.Recommendations, RecommendationDTO{
			ChildID:          string(rec.ChildID),
			EmployeeID:       string(rec.EmployeeID),
			RecommendedHours: rec.RecommendedHours.Float(),
			BasedOnPercent:   pct,
			BudgetHours:      rec.BudgetHours.Float(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ForecastSummary grades every budgeted child over a window, the current
// period by default.
// GET /api/forecast/summary?period_start=&period_end=
func (h *Handler) ForecastSummary(w http.ResponseWriter, r *http.Request) {
	window, ok := h.windowParams(w, r, "period_start", "period_end")
	if !ok {
		return
	}
	summary, err := h.Forecast.Summary(r.Context(), window.Start, window.End)
	if err != nil {
		writeServiceError(w, "Failed to build forecast summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toForecastSummaryDTO(summary))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError picks the status from the error kind.
func writeServiceError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrReadOnlyShift):
		return http.StatusForbidden
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func periodIDParam(r *http.Request) (scheduling.PeriodID, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, err
	}
	return scheduling.PeriodID(id), nil
}

// dateParam returns nil when the query parameter is absent.
func dateParam(r *http.Request, name string) (*generic.TimePoint, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := generic.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// intParam returns 0 when the query parameter is absent.
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func requireChild(w http.ResponseWriter, r *http.Request) (scheduling.ChildID, bool) {
	id := r.URL.Query().Get("child_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "child_id is required", nil)
		return "", false
	}
	return scheduling.ChildID(id), true
}

// windowParams reads a [start, end] pair from the query. With neither
// given it falls back to the current period. It writes the error response
// itself and reports false on failure.
func (h *Handler) windowParams(w http.ResponseWriter, r *http.Request, startName, endName string) (generic.Period, bool) {
	start, err := dateParam(r, startName)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s (use YYYY-MM-DD)", startName), err)
		return generic.Period{}, false
	}
	end, err := dateParam(r, endName)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s (use YYYY-MM-DD)", endName), err)
		return generic.Period{}, false
	}

	switch {
	case start != nil && end != nil:
		p, err := generic.NewPeriod(*start, *end)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date range", err)
			return generic.Period{}, false
		}
		return p, true
	case start == nil && end == nil:
		current, err := h.Calendar.Current(r.Context())
		if err != nil {
			writeServiceError(w, "No current period", err)
			return generic.Period{}, false
		}
		return current.Range(), true
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s and %s must be given together", startName, endName), nil)
		return generic.Period{}, false
	}
}

func optionalClock(raw *string) (*generic.ClockTime, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	c, err := generic.ParseClockTime(*raw)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
