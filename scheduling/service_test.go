package scheduling_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/scheduling"
	"github.com/warp/shift-engine/scheduling/store"
)

// =============================================================================
// FIXTURES
// =============================================================================

type fixture struct {
	ctx      context.Context
	store    *store.Memory
	calendar *scheduling.CalendarService
	shifts   *scheduling.ShiftService
	records  *scheduling.RecordService
	forecast *scheduling.ForecastService
}

// newFixture wires services over a memory store with periods anchored on
// 2024-01-04 and "today" fixed at 2024-01-09.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()
	clock := func() time.Time { return time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC) }

	f := &fixture{
		ctx:      ctx,
		store:    s,
		calendar: scheduling.NewCalendarService(s, scheduling.CalendarOptions{HistoryPeriods: 7, FuturePeriods: 4}, nil),
		shifts:   scheduling.NewShiftService(s, nil),
		records:  scheduling.NewRecordService(s, nil),
		forecast: scheduling.NewForecastService(s, scheduling.DefaultForecastOptions(), nil),
	}
	f.calendar.Clock = clock
	f.shifts.Clock = clock
	f.forecast.Clock = clock

	_, err := f.calendar.Configure(ctx, generic.MustParseDate("2024-01-04"))
	require.NoError(t, err)
	return f
}

func newShift(emp scheduling.EmployeeID, child scheduling.ChildID, day, start, end string) scheduling.Shift {
	return scheduling.Shift{
		EmployeeID: emp,
		ChildID:    child,
		Date:       generic.MustParseDate(day),
		Start:      generic.MustParseClockTime(start),
		End:        generic.MustParseClockTime(end),
	}
}

func (f *fixture) create(t *testing.T, s scheduling.Shift) scheduling.Shift {
	t.Helper()
	saved, _, err := f.shifts.Create(f.ctx, s, scheduling.ValidateOptions{})
	require.NoError(t, err)
	return saved
}

// =============================================================================
// SHIFT SERVICE
// =============================================================================

func TestShiftService_Create(t *testing.T) {
	f := newFixture(t)

	saved, warnings, err := f.shifts.Create(f.ctx, newShift("E", "C", "2024-01-05", "09:00", "13:00"), scheduling.ValidateOptions{})

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, scheduling.StatusNew, saved.Status)
	assert.Equal(t, scheduling.SourceManual, saved.Source)
	assert.False(t, saved.IsImported)

	got, err := f.shifts.Get(f.ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
}

func TestShiftService_CreateRejectsOverlap(t *testing.T) {
	// GIVEN: E works 09:00-13:00 with C1
	f := newFixture(t)
	f.create(t, newShift("E", "C1", "2024-01-05", "09:00", "13:00"))

	// WHEN: Booking E with C2 at 12:00-15:00
	_, _, err := f.shifts.Create(f.ctx, newShift("E", "C2", "2024-01-05", "12:00", "15:00"), scheduling.ValidateOptions{})

	// THEN: Rejected, nothing saved
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrShiftOverlap))
	assert.True(t, generic.IsConflict(err))

	all, err := f.shifts.List(f.ctx, scheduling.ShiftFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestShiftService_CreateRejectsExclusion(t *testing.T) {
	f := newFixture(t)
	day := generic.MustParseDate("2024-01-05")
	_, err := f.records.CreateExclusion(f.ctx, scheduling.ExclusionPeriod{
		Name: "Vacation", Start: day, End: day, Scope: scheduling.EmployeeScope("E"),
	})
	require.NoError(t, err)

	_, _, err = f.shifts.Create(f.ctx, newShift("E", "C", "2024-01-05", "09:00", "13:00"), scheduling.ValidateOptions{})

	assert.True(t, errors.Is(err, generic.ErrExcluded))
}

func TestShiftService_WeeklyLimitWarning(t *testing.T) {
	f := newFixture(t)
	_, err := f.records.SaveHourLimit(f.ctx, scheduling.HourLimit{
		EmployeeID: "E", ChildID: "C", MaxHoursPerWeek: generic.Hours(10),
	})
	require.NoError(t, err)
	f.create(t, newShift("E", "C", "2024-01-04", "09:00", "17:00"))

	saved, warnings, err := f.shifts.Create(f.ctx, newShift("E", "C", "2024-01-05", "09:00", "12:00"), scheduling.ValidateOptions{})

	require.NoError(t, err, "the limit warns but does not block")
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, []string{"Week 1 hours (11.0) exceeds weekly limit (10.0) for this employee/child pair"}, warnings)
}

func TestShiftService_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	saved := f.create(t, newShift("E", "C", "2024-01-05", "09:00", "13:00"))

	moved := newShift("E", "C", "2024-01-05", "10:00", "14:00")
	updated, _, err := f.shifts.Update(f.ctx, saved.ID, moved, scheduling.ValidateOptions{})
	require.NoError(t, err)
	assert.Equal(t, saved.ID, updated.ID)
	assert.Equal(t, generic.MustParseClockTime("10:00"), updated.Start)

	require.NoError(t, f.shifts.Delete(f.ctx, saved.ID))

	_, err = f.shifts.Get(f.ctx, saved.ID)
	assert.True(t, generic.IsNotFound(err))

	err = f.shifts.Delete(f.ctx, saved.ID)
	assert.True(t, errors.Is(err, generic.ErrShiftNotFound))
}

func TestShiftService_ImportedShiftsAreReadOnly(t *testing.T) {
	f := newFixture(t)

	result, err := f.shifts.Import(f.ctx, []scheduling.Shift{newShift("E", "C", "2024-01-05", "18:00", "23:59:59")})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	all, err := f.shifts.List(f.ctx, scheduling.ShiftFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	imported := all[0]
	assert.True(t, imported.IsImported)
	assert.Equal(t, scheduling.SourceImport, imported.Source)

	_, _, err = f.shifts.Update(f.ctx, imported.ID, newShift("E", "C", "2024-01-05", "18:00", "22:00"), scheduling.ValidateOptions{})
	assert.ErrorIs(t, err, generic.ErrReadOnlyShift)

	err = f.shifts.Delete(f.ctx, imported.ID)
	assert.ErrorIs(t, err, generic.ErrReadOnlyShift)
}

func TestShiftService_ImportSupersedesManual(t *testing.T) {
	// GIVEN: A manual shift E/C on Jan 5 at 09:00
	f := newFixture(t)
	manual := f.create(t, newShift("E", "C", "2024-01-05", "09:00", "13:00"))

	// WHEN: Importing a shift for the same pair, date and start
	result, err := f.shifts.Import(f.ctx, []scheduling.Shift{
		newShift("E", "C", "2024-01-05", "09:00", "12:00"),
		newShift("E", "C", "2024-01-06", "09:00", "12:00"),
	})

	// THEN: The manual shift is replaced
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Superseded)

	_, err = f.shifts.Get(f.ctx, manual.ID)
	assert.True(t, generic.IsNotFound(err))
}

func TestShiftService_ReimportSkipsDuplicates(t *testing.T) {
	// GIVEN: An imported 4h shift
	f := newFixture(t)
	row := newShift("E1", "C1", "2024-01-08", "09:00", "13:00")
	_, err := f.shifts.Import(f.ctx, []scheduling.Shift{row})
	require.NoError(t, err)

	// WHEN: The same export is imported again, plus a new day
	result, err := f.shifts.Import(f.ctx, []scheduling.Shift{
		row,
		newShift("E1", "C1", "2024-01-09", "09:00", "14:00"),
	})

	// THEN: Only the new row is written
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 0, result.Superseded)

	stored, err := f.shifts.List(f.ctx, scheduling.ShiftFilter{ChildID: "C1", EmployeeID: "E1"})
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	u, err := f.forecast.AvailableHours(f.ctx, "C1",
		generic.MustParseDate("2024-01-08"), generic.MustParseDate("2024-01-08"))
	require.NoError(t, err)
	assert.Equal(t, 4.0, u.UsedHours.Float(), "the duplicate adds no hours")
}

func TestShiftService_ImportRejectsInvalidRow(t *testing.T) {
	f := newFixture(t)

	_, err := f.shifts.Import(f.ctx, []scheduling.Shift{
		newShift("E", "C", "2024-01-05", "09:00", "12:00"),
		newShift("E", "C", "2024-01-06", "12:00", "09:00"),
	})

	assert.ErrorIs(t, err, generic.ErrInvalidInterval)
	all, _ := f.shifts.List(f.ctx, scheduling.ShiftFilter{})
	assert.Empty(t, all, "a bad row aborts the whole batch")
}

func TestShiftService_AutoFillDay(t *testing.T) {
	f := newFixture(t)
	f.create(t, newShift("E2", "C", "2024-01-05", "09:00", "12:00"))

	generated, err := f.shifts.AutoFillDay(f.ctx, "C", "E", generic.MustParseDate("2024-01-05"))

	require.NoError(t, err)
	require.Len(t, generated, 2)
	for _, s := range generated {
		assert.NotEmpty(t, s.ID)
		assert.Equal(t, scheduling.StatusAutoGenerated, s.Status)
	}

	all, err := f.shifts.List(f.ctx, scheduling.ShiftFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	conflicts, err := f.shifts.Conflicts(f.ctx, generic.MustParseDate("2024-01-05"), generic.MustParseDate("2024-01-05"))
	require.NoError(t, err)
	assert.Empty(t, conflicts, "generated shifts never double-book the child")
}

func TestShiftService_ConflictsFindsAllowedOverlap(t *testing.T) {
	f := newFixture(t)
	f.create(t, newShift("E", "C1", "2024-01-05", "09:00", "13:00"))
	_, warnings, err := f.shifts.Create(f.ctx, newShift("E", "C2", "2024-01-05", "12:00", "15:00"),
		scheduling.ValidateOptions{AllowOverlaps: true})
	require.NoError(t, err)
	require.Len(t, warnings, 1)

	conflicts, err := f.shifts.Conflicts(f.ctx, generic.MustParseDate("2024-01-01"), generic.MustParseDate("2024-01-31"))

	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, scheduling.ConflictEmployee, conflicts[0].Type)
}

func TestShiftService_Summary(t *testing.T) {
	f := newFixture(t)
	_, err := f.records.SaveHourLimit(f.ctx, scheduling.HourLimit{EmployeeID: "E", ChildID: "C", MaxHoursPerWeek: generic.Hours(5)})
	require.NoError(t, err)
	f.create(t, newShift("E", "C", "2024-01-04", "09:00", "17:00"))
	f.create(t, newShift("E", "C", "2024-01-12", "09:00", "12:00"))

	current, err := f.calendar.Current(f.ctx)
	require.NoError(t, err)
	b, err := f.shifts.Summary(f.ctx, current)

	require.NoError(t, err)
	require.Len(t, b.Employees, 1)
	pair := b.Employees[0].Children[0]
	assert.Equal(t, 8.0, pair.Hours.Week1.Float())
	assert.Equal(t, 3.0, pair.Hours.Week2.Float())
	assert.True(t, pair.Week1Breach)
	assert.False(t, pair.Week2Breach)
}

// =============================================================================
// RECORD SERVICE
// =============================================================================

func TestRecordService_DuplicateLimit(t *testing.T) {
	f := newFixture(t)
	first, err := f.records.SaveHourLimit(f.ctx, scheduling.HourLimit{EmployeeID: "E", ChildID: "C", MaxHoursPerWeek: generic.Hours(40)})
	require.NoError(t, err)

	_, err = f.records.SaveHourLimit(f.ctx, scheduling.HourLimit{EmployeeID: "E", ChildID: "C", MaxHoursPerWeek: generic.Hours(30)})
	assert.ErrorIs(t, err, generic.ErrDuplicateLimit)

	// Updating the existing one by id is fine
	first.MaxHoursPerWeek = generic.Hours(30)
	_, err = f.records.SaveHourLimit(f.ctx, first)
	require.NoError(t, err)

	limits, err := f.records.ListHourLimits(f.ctx)
	require.NoError(t, err)
	require.Len(t, limits, 1)
	assert.Equal(t, 30.0, limits[0].MaxHoursPerWeek.Float())
}

func TestRecordService_SaveAllocationKeepsFirstId(t *testing.T) {
	f := newFixture(t)

	// GIVEN: Planned hours for C1 and E1 in period 3
	first, err := f.records.SaveAllocation(f.ctx, scheduling.BudgetAllocation{
		ChildID: "C1", EmployeeID: "E1", PeriodID: 3, AllocatedHours: generic.Hours(20),
	})
	require.NoError(t, err)

	// WHEN: Saving the same pair again without an id
	second, err := f.records.SaveAllocation(f.ctx, scheduling.BudgetAllocation{
		ChildID: "C1", EmployeeID: "E1", PeriodID: 3, AllocatedHours: generic.Hours(30),
	})
	require.NoError(t, err)

	// THEN: The returned id is the stored one and the row was updated in place
	assert.Equal(t, first.ID, second.ID)
	stored, err := f.records.ListAllocations(f.ctx, 3)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, first.ID, stored[0].ID)
	assert.Equal(t, 30.0, stored[0].AllocatedHours.Float())
}

func TestRecordService_InvalidThreshold(t *testing.T) {
	f := newFixture(t)
	alert := generic.Hours(40)

	_, err := f.records.SaveHourLimit(f.ctx, scheduling.HourLimit{
		EmployeeID: "E", ChildID: "C", MaxHoursPerWeek: generic.Hours(40), AlertThreshold: &alert,
	})

	assert.ErrorIs(t, err, generic.ErrInvalidThreshold)
	assert.True(t, generic.IsClientError(err))
}

func TestRecordService_AddRateClosesPrevious(t *testing.T) {
	f := newFixture(t)
	_, err := f.records.AddRate(f.ctx, scheduling.EmployeeRate{EmployeeID: "E", HourlyRate: generic.Dollars(20), EffectiveDate: generic.MustParseDate("2024-01-01")})
	require.NoError(t, err)
	_, err = f.records.AddRate(f.ctx, scheduling.EmployeeRate{EmployeeID: "E", HourlyRate: generic.Dollars(22), EffectiveDate: generic.MustParseDate("2024-03-01")})
	require.NoError(t, err)

	rates, err := f.records.ListRates(f.ctx, "E")
	require.NoError(t, err)
	require.Len(t, rates, 2)

	var open int
	for _, r := range rates {
		if r.EndDate == nil {
			open++
			assert.Equal(t, 22.0, r.HourlyRate.Float())
		} else {
			assert.Equal(t, "2024-02-29", r.EndDate.String())
		}
	}
	assert.Equal(t, 1, open)

	_, err = f.records.AddRate(f.ctx, scheduling.EmployeeRate{EmployeeID: "E", HourlyRate: generic.Dollars(0), EffectiveDate: generic.MustParseDate("2024-04-01")})
	assert.True(t, generic.IsClientError(err))
}

func TestRecordService_ExclusionLifecycle(t *testing.T) {
	f := newFixture(t)
	start, end := generic.MustParseDate("2024-01-05"), generic.MustParseDate("2024-01-07")
	from := generic.MustParseClockTime("14:00")

	e, err := f.records.CreateExclusion(f.ctx, scheduling.ExclusionPeriod{Name: "Trip", Start: start, End: end, StartTime: &from})
	require.NoError(t, err)
	assert.Equal(t, scheduling.ScopeGeneral, e.Scope.Kind)

	views, err := f.records.ExclusionsOn(f.ctx, generic.MustParseDate("2024-01-06"), "")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].FullDay(), "a middle day is fully excluded")

	require.NoError(t, f.records.DeactivateExclusion(f.ctx, e.ID))

	active, err := f.records.ListExclusions(f.ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := f.records.ListExclusions(f.ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRecordService_CreateExclusionRejectsBackwardsRange(t *testing.T) {
	f := newFixture(t)

	_, err := f.records.CreateExclusion(f.ctx, scheduling.ExclusionPeriod{
		Name: "x", Start: generic.MustParseDate("2024-01-07"), End: generic.MustParseDate("2024-01-05"),
	})

	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

// =============================================================================
// FORECAST SERVICE
// =============================================================================

func TestForecastService_AvailableHours(t *testing.T) {
	f := newFixture(t)
	_, err := f.records.SaveBudget(f.ctx, scheduling.ChildBudget{
		ChildID: "C", PeriodStart: generic.MustParseDate("2024-01-04"), PeriodEnd: generic.MustParseDate("2024-01-17"),
		BudgetAmount: generic.Dollars(2500),
	})
	require.NoError(t, err)
	f.create(t, newShift("E", "C", "2024-01-04", "08:00", "18:00"))
	f.create(t, newShift("E", "C", "2024-01-05", "08:00", "18:00"))
	f.create(t, newShift("E", "C", "2024-01-08", "09:00", "14:00"))

	u, err := f.forecast.AvailableHours(f.ctx, "C", generic.MustParseDate("2024-01-04"), generic.MustParseDate("2024-01-17"))

	require.NoError(t, err)
	assert.Equal(t, 100.0, u.BudgetHours.Float(), "2500 dollars at the default 25/h")
	assert.Equal(t, 75.0, u.AvailableHours.Float())
	assert.Equal(t, 9, u.DaysRemaining)
	assert.Equal(t, 8.33, u.AverageDailyAvailable.Float())

	_, err = f.forecast.AvailableHours(f.ctx, "C", generic.MustParseDate("2024-01-17"), generic.MustParseDate("2024-01-04"))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestForecastService_RecommendationsAndSummary(t *testing.T) {
	// GIVEN: C has a budget for the current period and history with two employees
	f := newFixture(t)
	current, err := f.calendar.Current(f.ctx)
	require.NoError(t, err)
	_, err = f.records.SaveBudget(f.ctx, scheduling.ChildBudget{
		ChildID: "C", PeriodStart: current.Start, PeriodEnd: current.End, BudgetHours: ptr(generic.Hours(100)),
	})
	require.NoError(t, err)
	_, err = f.shifts.Import(f.ctx, []scheduling.Shift{
		newShift("E1", "C", "2023-12-20", "08:00", "14:00"),
		newShift("E1", "C", "2023-12-27", "08:00", "14:00"),
		newShift("E1", "C", "2024-01-03", "08:00", "14:00"),
		newShift("E2", "C", "2024-01-02", "08:00", "14:00"),
	})
	require.NoError(t, err)

	// WHEN: Asking for recommendations in the current period
	period, recs, err := f.forecast.Recommendations(f.ctx, current.ID)

	// THEN: E1 gets three quarters of the recommended hours
	require.NoError(t, err)
	assert.Equal(t, current.ID, period.ID)
	require.Len(t, recs, 2)
	assert.Equal(t, scheduling.EmployeeID("E1"), recs[0].EmployeeID)
	assert.True(t, recs[0].RecommendedHours.GreaterThan(recs[1].RecommendedHours))

	// AND: The summary lists C with a risk level
	summary, err := f.forecast.Summary(f.ctx, current.Start, current.End)
	require.NoError(t, err)
	require.Len(t, summary.Children, 1)
	assert.Equal(t, scheduling.ChildID("C"), summary.Children[0].ChildID)
	assert.NotEqual(t, scheduling.RiskUnknown, summary.Children[0].Risk)

	_, _, err = f.forecast.Recommendations(f.ctx, 999)
	assert.True(t, generic.IsNotFound(err))
}

func TestForecastService_PatternsUseClock(t *testing.T) {
	f := newFixture(t)
	f.create(t, newShift("E", "C", "2024-01-08", "09:00", "17:00"))
	f.create(t, newShift("E", "C", "2024-01-20", "09:00", "17:00"))

	p, err := f.forecast.Patterns(f.ctx, "C", 30)

	require.NoError(t, err)
	assert.Equal(t, 8.0, p.TotalHours.Float(), "shifts after today are not history")
	assert.True(t, p.AsOf.Equal(generic.MustParseDate("2024-01-09")))
}

func ptr[T any](v T) *T { return &v }
