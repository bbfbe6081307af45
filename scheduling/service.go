/*
service.go - Store-backed services over the pure scheduling functions

PURPOSE:
  The calculation files take plain slices. These services fetch those
  slices through the store interfaces, call the calculations, and persist
  the results. The HTTP layer talks only to services.

SERVICES:
  ShiftService:    Create/Update/Delete/Import/AutoFill, period summaries,
                   conflict scans
  RecordService:   Exclusions, hour limits, budgets, rates, allocations
  ForecastService: Patterns, projections, availability, recommendations,
                   forecast summary

WRITE SERIALIZATION:
  ShiftService validates against the current schedule and then saves.
  A mutex spans both steps so two concurrent creates cannot each pass the
  overlap check against a schedule that lacks the other.

READ-ONLY IMPORTS:
  Imported shifts mirror an external payroll export. Update and Delete
  refuse them with generic.ErrReadOnlyShift; a later import replaces them.

SEE ALSO:
  - store.go: The interfaces used here
  - calendar.go: CalendarService, the period sequence owner
*/
package scheduling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/shift-engine/generic"
)

// dateFrom returns today's date from clock, or from the wall clock when nil.
func dateFrom(clock func() time.Time) generic.TimePoint {
	if clock == nil {
		return generic.Today()
	}
	return generic.DateOf(clock())
}

func newID() string { return uuid.NewString() }

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// =============================================================================
// SHIFT SERVICE
// =============================================================================

type ShiftService struct {
	Store  Store
	Fill   AutoFillOptions
	Clock  func() time.Time
	Logger *zap.Logger

	mu sync.Mutex
}

func NewShiftService(store Store, logger *zap.Logger) *ShiftService {
	return &ShiftService{
		Store:  store,
		Fill:   DefaultAutoFillOptions(),
		Clock:  time.Now,
		Logger: nopIfNil(logger),
	}
}

func (s *ShiftService) List(ctx context.Context, filter ShiftFilter) ([]Shift, error) {
	return s.Store.ListShifts(ctx, filter)
}

func (s *ShiftService) Get(ctx context.Context, id ShiftID) (Shift, error) {
	shift, err := s.Store.GetShift(ctx, id)
	if err != nil {
		return Shift{}, err
	}
	if shift == nil {
		return Shift{}, fmt.Errorf("shift %s: %w", id, generic.ErrShiftNotFound)
	}
	return *shift, nil
}

// Create validates and saves a manual shift. Warnings are returned with the
// saved shift; hard failures save nothing.
func (s *ShiftService) Create(ctx context.Context, shift Shift, opts ValidateOptions) (Shift, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if shift.ID == "" {
		shift.ID = ShiftID(newID())
	}
	if shift.Status == "" {
		shift.Status = StatusNew
	}
	if shift.Source == "" {
		shift.Source = SourceManual
	}
	shift.IsImported = false
	shift.CreatedAt = s.now()

	warnings, err := s.validate(ctx, shift, opts)
	if err != nil {
		return Shift{}, nil, err
	}
	if err := s.Store.SaveShift(ctx, shift); err != nil {
		return Shift{}, nil, fmt.Errorf("failed to save shift: %w", err)
	}

	s.Logger.Info("shift created",
		zap.String("shift_id", string(shift.ID)),
		zap.String("employee_id", string(shift.EmployeeID)),
		zap.String("child_id", string(shift.ChildID)),
		zap.String("date", shift.Date.String()),
		zap.Int("warnings", len(warnings)),
	)
	if HasLimitWarning(warnings) {
		s.Logger.Warn("weekly hour limit exceeded",
			zap.String("employee_id", string(shift.EmployeeID)),
			zap.String("child_id", string(shift.ChildID)),
		)
	}
	return shift, warnings, nil
}

// Update replaces an existing manual shift.
func (s *ShiftService) Update(ctx context.Context, id ShiftID, shift Shift, opts ValidateOptions) (Shift, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Store.GetShift(ctx, id)
	if err != nil {
		return Shift{}, nil, err
	}
	if current == nil {
		return Shift{}, nil, fmt.Errorf("shift %s: %w", id, generic.ErrShiftNotFound)
	}
	if current.ReadOnly() {
		return Shift{}, nil, generic.ErrReadOnlyShift
	}

	shift.ID = id
	shift.CreatedAt = current.CreatedAt
	shift.IsImported = false
	if shift.Source == "" {
		shift.Source = current.Source
	}
	if shift.Status == "" {
		shift.Status = current.Status
	}

	warnings, err := s.validate(ctx, shift, opts)
	if err != nil {
		return Shift{}, nil, err
	}
	if err := s.Store.SaveShift(ctx, shift); err != nil {
		return Shift{}, nil, fmt.Errorf("failed to save shift: %w", err)
	}
	s.Logger.Info("shift updated", zap.String("shift_id", string(id)))
	return shift, warnings, nil
}

// Delete removes a manual shift.
func (s *ShiftService) Delete(ctx context.Context, id ShiftID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Store.GetShift(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("shift %s: %w", id, generic.ErrShiftNotFound)
	}
	if current.ReadOnly() {
		return generic.ErrReadOnlyShift
	}
	if err := s.Store.DeleteShift(ctx, id); err != nil {
		return err
	}
	s.Logger.Info("shift deleted", zap.String("shift_id", string(id)))
	return nil
}

// Import writes shifts from an external schedule as read-only records.
// Manual shifts with the same (employee, child, date, start) are replaced.
// Imported shifts skip overlap and exclusion checks: the external system is
// the source of truth for them.
func (s *ShiftService) Import(ctx context.Context, shifts []Shift) (ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	batch := make([]Shift, 0, len(shifts))
	for i, sh := range shifts {
		if err := sh.Validate(); err != nil {
			return ImportResult{}, fmt.Errorf("row %d: %w", i+1, err)
		}
		if sh.ID == "" {
			sh.ID = ShiftID(newID())
		}
		if sh.Status == "" {
			sh.Status = StatusConfirmed
		}
		sh.IsImported = true
		sh.Source = SourceImport
		sh.CreatedAt = now
		batch = append(batch, sh)
	}

	result, err := s.Store.ImportShifts(ctx, batch)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to import shifts: %w", err)
	}
	s.Logger.Info("shifts imported",
		zap.Int("imported", result.Imported),
		zap.Int("superseded", result.Superseded),
		zap.Int("duplicates", result.Duplicates),
	)
	return result, nil
}

// AutoFillDay saves generated shifts covering the child's free time on date.
func (s *ShiftService) AutoFillDay(ctx context.Context, childID ChildID, employeeID EmployeeID, date generic.TimePoint) ([]Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, err := s.Store.ListShifts(ctx, InRange(date, date))
	if err != nil {
		return nil, err
	}
	exclusions, err := s.Store.ListExclusions(ctx, ExclusionFilter{From: &date, To: &date, ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	generated := AutoFill(childID, employeeID, date, day, day, exclusions, s.Fill)
	now := s.now()
	for i := range generated {
		generated[i].ID = ShiftID(newID())
		generated[i].CreatedAt = now
		if err := s.Store.SaveShift(ctx, generated[i]); err != nil {
			return nil, fmt.Errorf("failed to save generated shift: %w", err)
		}
	}
	s.Logger.Info("auto-fill complete",
		zap.String("child_id", string(childID)),
		zap.String("employee_id", string(employeeID)),
		zap.String("date", date.String()),
		zap.Int("created", len(generated)),
	)
	return generated, nil
}

// Conflicts scans [from, to] for double-bookings.
func (s *ShiftService) Conflicts(ctx context.Context, from, to generic.TimePoint) ([]Conflict, error) {
	shifts, err := s.Store.ListShifts(ctx, InRange(from, to))
	if err != nil {
		return nil, err
	}
	return FindConflicts(shifts), nil
}

// Summary aggregates hours for one payroll period.
func (s *ShiftService) Summary(ctx context.Context, period PayrollPeriod) (PeriodBreakdown, error) {
	shifts, err := s.Store.ListShifts(ctx, InRange(period.Start, period.End))
	if err != nil {
		return PeriodBreakdown{}, err
	}
	limits, err := s.Store.ListHourLimits(ctx, true)
	if err != nil {
		return PeriodBreakdown{}, err
	}
	return Summarize(period, shifts, limits), nil
}

// validate loads the schedule around shift and runs ValidateShift. The
// shift window is the payroll period containing the date, so the weekly
// limit check sees the whole week.
func (s *ShiftService) validate(ctx context.Context, shift Shift, opts ValidateOptions) ([]string, error) {
	if err := shift.Validate(); err != nil {
		return nil, err
	}

	periods, err := s.Store.ListPeriods(ctx)
	if err != nil {
		return nil, err
	}
	window := generic.Period{Start: shift.Date, End: shift.Date}
	if p, ok := PeriodFor(periods, shift.Date); ok {
		window = p.Range()
	}

	existing, err := s.Store.ListShifts(ctx, InRange(window.Start, window.End))
	if err != nil {
		return nil, err
	}
	exclusions, err := s.Store.ListExclusions(ctx, ExclusionFilter{From: &shift.Date, To: &shift.Date, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	limit, err := s.Store.GetHourLimit(ctx, shift.EmployeeID, shift.ChildID)
	if err != nil {
		return nil, err
	}
	return ValidateShift(shift, existing, exclusions, limit, periods, opts)
}

func (s *ShiftService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

// =============================================================================
// RECORD SERVICE - Exclusions, limits, budgets, rates, allocations
// =============================================================================

type RecordService struct {
	Store  Store
	Logger *zap.Logger
}

func NewRecordService(store Store, logger *zap.Logger) *RecordService {
	return &RecordService{Store: store, Logger: nopIfNil(logger)}
}

// ExclusionsOn returns the exclusions in effect on date, truncated per day.
func (s *RecordService) ExclusionsOn(ctx context.Context, date generic.TimePoint, childID ChildID) ([]ExclusionView, error) {
	exclusions, err := s.Store.ListExclusions(ctx, ExclusionFilter{From: &date, To: &date, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	return Resolve(date, exclusions, childID), nil
}

func (s *RecordService) ListExclusions(ctx context.Context, activeOnly bool) ([]ExclusionPeriod, error) {
	return s.Store.ListExclusions(ctx, ExclusionFilter{ActiveOnly: activeOnly})
}

func (s *RecordService) CreateExclusion(ctx context.Context, e ExclusionPeriod) (ExclusionPeriod, error) {
	if e.End.Before(e.Start) {
		return ExclusionPeriod{}, generic.ErrInvalidPeriod
	}
	if e.Start.Equal(e.End) && e.StartTime != nil && e.EndTime != nil {
		if err := generic.ValidateInterval(*e.StartTime, *e.EndTime); err != nil {
			return ExclusionPeriod{}, err
		}
	}
	if e.ID == "" {
		e.ID = newID()
	}
	if e.Scope.Kind == "" {
		e.Scope = GeneralScope()
	}
	e.Active = true
	if err := s.Store.SaveExclusion(ctx, e); err != nil {
		return ExclusionPeriod{}, fmt.Errorf("failed to save exclusion: %w", err)
	}
	s.Logger.Info("exclusion created",
		zap.String("exclusion_id", e.ID),
		zap.String("scope", string(e.Scope.Kind)),
		zap.String("range", e.Range().String()),
	)
	return e, nil
}

func (s *RecordService) DeactivateExclusion(ctx context.Context, id string) error {
	if err := s.Store.DeactivateExclusion(ctx, id); err != nil {
		return err
	}
	s.Logger.Info("exclusion deactivated", zap.String("exclusion_id", id))
	return nil
}

func (s *RecordService) ListHourLimits(ctx context.Context) ([]HourLimit, error) {
	return s.Store.ListHourLimits(ctx, true)
}

// SaveHourLimit creates a limit, or updates the pair's existing one when
// l.ID matches it. A second active limit for a pair is ErrDuplicateLimit.
func (s *RecordService) SaveHourLimit(ctx context.Context, l HourLimit) (HourLimit, error) {
	if err := l.Validate(); err != nil {
		return HourLimit{}, err
	}
	existing, err := s.Store.GetHourLimit(ctx, l.EmployeeID, l.ChildID)
	if err != nil {
		return HourLimit{}, err
	}
	if existing != nil && existing.ID != l.ID {
		return HourLimit{}, generic.ErrDuplicateLimit
	}
	if l.ID == "" {
		l.ID = newID()
	}
	l.Active = true
	if err := s.Store.SaveHourLimit(ctx, l); err != nil {
		return HourLimit{}, fmt.Errorf("failed to save hour limit: %w", err)
	}
	return l, nil
}

func (s *RecordService) ListBudgets(ctx context.Context, childID ChildID) ([]ChildBudget, error) {
	return s.Store.ListBudgets(ctx, childID, nil)
}

func (s *RecordService) SaveBudget(ctx context.Context, b ChildBudget) (ChildBudget, error) {
	if b.PeriodEnd.Before(b.PeriodStart) {
		return ChildBudget{}, generic.ErrInvalidPeriod
	}
	if b.ID == "" {
		b.ID = newID()
	}
	if err := s.Store.SaveBudget(ctx, b); err != nil {
		return ChildBudget{}, fmt.Errorf("failed to save budget: %w", err)
	}
	return b, nil
}

func (s *RecordService) ListRates(ctx context.Context, employeeID EmployeeID) ([]EmployeeRate, error) {
	return s.Store.ListRates(ctx, employeeID)
}

// AddRate records a new rate; the store closes the previous open one.
func (s *RecordService) AddRate(ctx context.Context, r EmployeeRate) (EmployeeRate, error) {
	if !r.HourlyRate.IsPositive() {
		return EmployeeRate{}, fmt.Errorf("hourly rate must be positive: %w", generic.ErrInvalidThreshold)
	}
	if r.ID == "" {
		r.ID = newID()
	}
	r.EndDate = nil
	if err := s.Store.AddRate(ctx, r); err != nil {
		return EmployeeRate{}, fmt.Errorf("failed to add rate: %w", err)
	}
	s.Logger.Info("employee rate added",
		zap.String("employee_id", string(r.EmployeeID)),
		zap.String("effective", r.EffectiveDate.String()),
	)
	return r, nil
}

func (s *RecordService) ListAllocations(ctx context.Context, periodID PeriodID) ([]BudgetAllocation, error) {
	return s.Store.ListAllocations(ctx, periodID)
}

func (s *RecordService) SaveAllocation(ctx context.Context, a BudgetAllocation) (BudgetAllocation, error) {
	if a.AllocatedHours.IsNegative() {
		return BudgetAllocation{}, fmt.Errorf("allocated hours must not be negative: %w", generic.ErrInvalidThreshold)
	}
	if a.ID == "" {
		a.ID = newID()
	}
	if err := s.Store.SaveAllocation(ctx, a); err != nil {
		return BudgetAllocation{}, fmt.Errorf("failed to save allocation: %w", err)
	}

	// The store keeps the first id for a (child, employee, period)
	stored, err := s.Store.ListAllocations(ctx, a.PeriodID)
	if err != nil {
		return BudgetAllocation{}, fmt.Errorf("failed to read back allocation: %w", err)
	}
	for _, existing := range stored {
		if existing.ChildID == a.ChildID && existing.EmployeeID == a.EmployeeID {
			return existing, nil
		}
	}
	return a, nil
}

// =============================================================================
// FORECAST SERVICE
// =============================================================================

type ForecastService struct {
	Store   Store
	Options ForecastOptions
	Clock   func() time.Time
	Logger  *zap.Logger
}

func NewForecastService(store Store, opts ForecastOptions, logger *zap.Logger) *ForecastService {
	return &ForecastService{Store: store, Options: opts.withDefaults(), Clock: time.Now, Logger: nopIfNil(logger)}
}

func (s *ForecastService) today() generic.TimePoint { return dateFrom(s.Clock) }

func (s *ForecastService) lookback(days int) int {
	if days > 0 {
		return days
	}
	return s.Options.withDefaults().LookbackDays
}

func (s *ForecastService) history(ctx context.Context, childID ChildID, asOf generic.TimePoint, lookbackDays int) ([]Shift, error) {
	filter := InRange(asOf.AddDays(-lookbackDays), asOf)
	filter.ChildID = childID
	return s.Store.ListShifts(ctx, filter)
}

// Patterns analyzes childID's history up to today.
func (s *ForecastService) Patterns(ctx context.Context, childID ChildID, lookbackDays int) (WeeklyPattern, error) {
	asOf := s.today()
	lookbackDays = s.lookback(lookbackDays)
	shifts, err := s.history(ctx, childID, asOf, lookbackDays)
	if err != nil {
		return WeeklyPattern{}, err
	}
	return Patterns(childID, shifts, asOf, lookbackDays), nil
}

// Project forecasts childID's need for projectionDays from today.
func (s *ForecastService) Project(ctx context.Context, childID ChildID, projectionDays int) (Projection, error) {
	return s.projectAt(ctx, childID, s.today(), projectionDays)
}

func (s *ForecastService) projectAt(ctx context.Context, childID ChildID, asOf generic.TimePoint, projectionDays int) (Projection, error) {
	opts := s.Options.withDefaults()
	shifts, err := s.history(ctx, childID, asOf, opts.LookbackDays)
	if err != nil {
		return Projection{}, err
	}
	if projectionDays <= 0 {
		projectionDays = 30
	}
	horizon := generic.Period{Start: asOf, End: asOf.AddDays(projectionDays - 1)}
	budgets, err := s.Store.ListBudgets(ctx, childID, &horizon)
	if err != nil {
		return Projection{}, err
	}
	return Project(childID, shifts, budgets, asOf, projectionDays, opts), nil
}

// AvailableHours computes utilization for childID over [start, end] as of today.
func (s *ForecastService) AvailableHours(ctx context.Context, childID ChildID, start, end generic.TimePoint) (Utilization, error) {
	if end.Before(start) {
		return Utilization{}, generic.ErrInvalidPeriod
	}
	window := generic.Period{Start: start, End: end}
	filter := InRange(start, end)
	filter.ChildID = childID
	shifts, err := s.Store.ListShifts(ctx, filter)
	if err != nil {
		return Utilization{}, err
	}
	budgets, err := s.Store.ListBudgets(ctx, childID, &window)
	if err != nil {
		return Utilization{}, err
	}
	rates, err := s.Store.ListRates(ctx, "")
	if err != nil {
		return Utilization{}, err
	}
	opts := UtilizationOptions{DefaultHourlyRate: s.Options.withDefaults().DefaultHourlyRate}
	return AvailableHours(childID, start, end, s.today(), shifts, budgets, rates, opts), nil
}

// Recommendations suggests per-employee hours for every budgeted child in a period.
func (s *ForecastService) Recommendations(ctx context.Context, periodID PeriodID) (PayrollPeriod, []Recommendation, error) {
	periods, err := s.Store.ListPeriods(ctx)
	if err != nil {
		return PayrollPeriod{}, nil, err
	}
	period, err := FindPeriod(periods, periodID)
	if err != nil {
		return PayrollPeriod{}, nil, err
	}
	window := period.Range()
	budgets, err := s.Store.ListBudgets(ctx, "", &window)
	if err != nil {
		return PayrollPeriod{}, nil, err
	}

	asOf := s.today()
	lookback := s.lookback(0)
	patterns := make(map[ChildID]WeeklyPattern)
	for _, childID := range budgetedChildren(budgets, window) {
		shifts, err := s.history(ctx, childID, asOf, lookback)
		if err != nil {
			return PayrollPeriod{}, nil, err
		}
		patterns[childID] = Patterns(childID, shifts, asOf, lookback)
	}
	return period, Recommend(period, budgets, patterns, s.Options.withDefaults().DefaultHourlyRate), nil
}

// Summary forecasts every child with a budget overlapping [start, end].
func (s *ForecastService) Summary(ctx context.Context, start, end generic.TimePoint) (ForecastSummary, error) {
	if end.Before(start) {
		return ForecastSummary{}, generic.ErrInvalidPeriod
	}
	window := generic.Period{Start: start, End: end}
	budgets, err := s.Store.ListBudgets(ctx, "", &window)
	if err != nil {
		return ForecastSummary{}, err
	}

	asOf := s.today()
	var utilizations []Utilization
	projections := make(map[ChildID]Projection)
	for _, childID := range budgetedChildren(budgets, window) {
		u, err := s.AvailableHours(ctx, childID, start, end)
		if err != nil {
			return ForecastSummary{}, err
		}
		p, err := s.projectAt(ctx, childID, asOf, window.Length())
		if err != nil {
			return ForecastSummary{}, err
		}
		utilizations = append(utilizations, u)
		projections[childID] = p
	}

	summary := Summary(window, utilizations, projections)
	s.Logger.Debug("forecast summary built",
		zap.String("window", window.String()),
		zap.Int("children", len(summary.Children)),
	)
	return summary, nil
}
