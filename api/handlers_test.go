/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Period configuration and navigation
- Shift create/update/delete with error status mapping
- Read-only imported shifts
- Exclusion and hour-limit records
- Forecast endpoints
- Rate limiting middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/scheduling"
	"github.com/warp/shift-engine/scheduling/store"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

type testServer struct {
	t      *testing.T
	router http.Handler
}

// newTestServer serves a fresh memory store with "today" fixed at 2024-01-09.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	h := NewHandler(store.NewMemory(), Options{
		Calendar: scheduling.CalendarOptions{HistoryPeriods: 7, FuturePeriods: 4},
		Forecast: scheduling.DefaultForecastOptions(),
	}, nil)
	h.SetClock(func() time.Time { return time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC) })
	return &testServer{t: t, router: NewRouter(h, RouterOptions{AllowOrigins: []string{"*"}})}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func f64(v float64) *float64 { return &v }

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) configure() []PeriodDTO {
	rec := s.do(http.MethodPost, "/api/periods/configure", ConfigurePeriodsRequest{AnchorDate: "2024-01-04"})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[ConfigurePeriodsResponse](s.t, rec).Periods
}

func (s *testServer) createShift(req ShiftRequest) ShiftResponse {
	rec := s.do(http.MethodPost, "/api/shifts", req)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[ShiftResponse](s.t, rec)
}

// =============================================================================
// PERIODS
// =============================================================================

func TestPeriods_ConfigureAndNavigate(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: No periods yet
	rec := s.do(http.MethodGet, "/api/periods/current", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// WHEN: Configuring with anchor 2024-01-04
	periods := s.configure()

	// THEN: Today's period runs 2024-01-04 to 2024-01-17
	assert.Len(t, periods, 12)
	rec = s.do(http.MethodGet, "/api/periods/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	current := decode[PeriodDTO](t, rec)
	assert.Equal(t, "2024-01-04", current.StartDate)
	assert.Equal(t, "2024-01-17", current.EndDate)
	assert.Equal(t, "2024-01-10", current.Week1End)
	assert.Equal(t, "2024-01-11", current.Week2Start)
	assert.True(t, current.IsCurrent)

	// AND: Navigation moves 14 days at a time
	rec = s.do(http.MethodGet, fmt.Sprintf("/api/periods/%d/next", current.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-01-18", decode[PeriodDTO](t, rec).StartDate)

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/periods/%d/previous", current.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2023-12-21", decode[PeriodDTO](t, rec).StartDate)

	// AND: Walking past the first period is a 404
	rec = s.do(http.MethodGet, fmt.Sprintf("/api/periods/%d/previous", periods[0].ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPeriods_ConfigureRejectsBadAnchor(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/periods/configure", ConfigurePeriodsRequest{AnchorDate: "01/04/2024"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid anchor_date (use YYYY-MM-DD)", decode[ErrorResponse](t, rec).Error)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, string(scheduling.StateUnconfigured), body["calendar"])
}

// =============================================================================
// SHIFTS
// =============================================================================

func TestShifts_CreateOverlapIsConflict(t *testing.T) {
	s := newTestServer(t)
	s.configure()

	s.createShift(ShiftRequest{EmployeeID: "E", ChildID: "C1", Date: "2024-01-05", StartTime: "09:00", EndTime: "13:00"})

	rec := s.do(http.MethodPost, "/api/shifts", ShiftRequest{
		EmployeeID: "E", ChildID: "C2", Date: "2024-01-05", StartTime: "12:00", EndTime: "15:00",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// With allow_overlaps the shift is saved with a warning
	resp := s.createShift(ShiftRequest{
		EmployeeID: "E", ChildID: "C2", Date: "2024-01-05", StartTime: "12:00", EndTime: "15:00", AllowOverlaps: true,
	})
	assert.Len(t, resp.Warnings, 1)

	rec = s.do(http.MethodGet, "/api/conflicts?start_date=2024-01-01&end_date=2024-01-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	conflicts := decode[[]ConflictDTO](t, rec)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "employee", conflicts[0].Type)
	assert.Equal(t, int64(60), conflicts[0].OverlapMinutes)
}

func TestShifts_InvalidIntervalIsBadRequest(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/shifts", ShiftRequest{
		EmployeeID: "E", ChildID: "C", Date: "2024-01-05", StartTime: "22:00", EndTime: "02:00",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShifts_UpdateAndDelete(t *testing.T) {
	s := newTestServer(t)
	created := s.createShift(ShiftRequest{EmployeeID: "E", ChildID: "C", Date: "2024-01-05", StartTime: "09:00", EndTime: "13:00"})
	assert.Equal(t, 4.0, created.Shift.Hours)

	rec := s.do(http.MethodPut, "/api/shifts/"+created.Shift.ID, ShiftRequest{
		EmployeeID: "E", ChildID: "C", Date: "2024-01-05", StartTime: "09:00", EndTime: "23:59:59",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[ShiftResponse](t, rec).Shift
	assert.Equal(t, "23:59:59", updated.EndTime)
	assert.Equal(t, 15.0, updated.Hours)

	rec = s.do(http.MethodDelete, "/api/shifts/"+created.Shift.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodDelete, "/api/shifts/"+created.Shift.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShifts_ImportedAreReadOnly(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/shifts/import", ImportShiftsRequest{Shifts: []ShiftRequest{
		{EmployeeID: "E", ChildID: "C", Date: "2024-01-05", StartTime: "18:00", EndTime: "23:59:59"},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[ImportShiftsResponse](t, rec).Imported)

	rec = s.do(http.MethodGet, "/api/shifts?start_date=2024-01-05&end_date=2024-01-05", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	shifts := decode[[]ShiftDTO](t, rec)
	require.Len(t, shifts, 1)
	assert.True(t, shifts[0].IsImported)

	rec = s.do(http.MethodDelete, "/api/shifts/"+shifts[0].ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPut, "/api/shifts/"+shifts[0].ID, ShiftRequest{
		EmployeeID: "E", ChildID: "C", Date: "2024-01-05", StartTime: "18:00", EndTime: "20:00",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestShifts_ImportRequiresRows(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/shifts/import", ImportShiftsRequest{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShifts_AutoFill(t *testing.T) {
	s := newTestServer(t)
	s.createShift(ShiftRequest{EmployeeID: "E2", ChildID: "C", Date: "2024-01-05", StartTime: "09:00", EndTime: "12:00"})

	rec := s.do(http.MethodPost, "/api/shifts/auto-fill", AutoFillRequest{ChildID: "C", EmployeeID: "E", Date: "2024-01-05"})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[[]ShiftDTO](t, rec)
	require.Len(t, created, 2)
	assert.Equal(t, "06:00:00", created[0].StartTime)
	assert.Equal(t, "09:00:00", created[0].EndTime)
	assert.Equal(t, string(scheduling.StatusAutoGenerated), created[0].Status)

	rec = s.do(http.MethodPost, "/api/shifts/auto-fill", AutoFillRequest{ChildID: "C", Date: "2024-01-05"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPeriodSummary_FlagsBreach(t *testing.T) {
	s := newTestServer(t)
	s.configure()

	rec := s.do(http.MethodPost, "/api/hour-limits", HourLimitRequest{EmployeeID: "E", ChildID: "C", MaxHoursPerWeek: 10})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	s.createShift(ShiftRequest{EmployeeID: "E", ChildID: "C", Date: "2024-01-04", StartTime: "09:00", EndTime: "17:00"})
	resp := s.createShift(ShiftRequest{EmployeeID: "E", ChildID: "C", Date: "2024-01-05", StartTime: "09:00", EndTime: "12:00"})
	assert.Equal(t, []string{"Week 1 hours (11.0) exceeds weekly limit (10.0) for this employee/child pair"}, resp.Warnings)

	rec = s.do(http.MethodGet, "/api/periods/current", nil)
	current := decode[PeriodDTO](t, rec)

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/periods/%d/summary", current.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[PeriodSummaryDTO](t, rec)
	assert.Equal(t, 2, summary.TotalShifts)
	assert.Equal(t, 11.0, summary.TotalHours)
	assert.Equal(t, 1, summary.Breaches)

	// A second limit for the same pair conflicts
	rec = s.do(http.MethodPost, "/api/hour-limits", HourLimitRequest{EmployeeID: "E", ChildID: "C", MaxHoursPerWeek: 20})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// EXCLUSIONS
// =============================================================================

func TestExclusions_BlockShiftsAndResolveByDate(t *testing.T) {
	s := newTestServer(t)
	from := "14:00"

	rec := s.do(http.MethodPost, "/api/exclusions", CreateExclusionRequest{
		Name: "Doctor", StartDate: "2024-01-05", EndDate: "2024-01-05", StartTime: &from, EmployeeID: "E",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[ExclusionDTO](t, rec)
	assert.Equal(t, "employee", created.Scope)

	// Morning is fine, afternoon is blocked
	s.createShift(ShiftRequest{EmployeeID: "E", ChildID: "C", Date: "2024-01-05", StartTime: "08:00", EndTime: "12:00"})
	rec = s.do(http.MethodPost, "/api/shifts", ShiftRequest{
		EmployeeID: "E", ChildID: "C", Date: "2024-01-05", StartTime: "15:00", EndTime: "18:00",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, "/api/exclusions?date=2024-01-05", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	views := decode[[]ExclusionViewDTO](t, rec)
	require.Len(t, views, 1)
	assert.False(t, views[0].FullDay)
	require.NotNil(t, views[0].EffectiveStartTime)

	rec = s.do(http.MethodDelete, "/api/exclusions/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/exclusions", nil)
	assert.Empty(t, decode[[]ExclusionDTO](t, rec))
	rec = s.do(http.MethodGet, "/api/exclusions?include_inactive=true", nil)
	assert.Len(t, decode[[]ExclusionDTO](t, rec), 1)
}

func TestExclusions_RejectsTwoScopes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/exclusions", CreateExclusionRequest{
		Name: "x", StartDate: "2024-01-05", EndDate: "2024-01-05", EmployeeID: "E", ChildID: "C",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// FORECAST
// =============================================================================

func TestForecast_AvailableHoursDefaultsToCurrentPeriod(t *testing.T) {
	s := newTestServer(t)
	s.configure()

	rec := s.do(http.MethodPost, "/api/budgets", BudgetRequest{
		ChildID: "C", PeriodStart: "2024-01-04", PeriodEnd: "2024-01-17", BudgetAmount: 2500, BudgetHours: f64(100),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	s.createShift(ShiftRequest{EmployeeID: "E", ChildID: "C", Date: "2024-01-04", StartTime: "08:00", EndTime: "18:00"})
	s.createShift(ShiftRequest{EmployeeID: "E", ChildID: "C", Date: "2024-01-05", StartTime: "08:00", EndTime: "18:00"})
	s.createShift(ShiftRequest{EmployeeID: "E", ChildID: "C", Date: "2024-01-08", StartTime: "09:00", EndTime: "14:00"})

	rec = s.do(http.MethodGet, "/api/forecast/available-hours?child_id=C", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	u := decode[UtilizationDTO](t, rec)
	assert.Equal(t, "2024-01-04", u.PeriodStart)
	assert.Equal(t, 75.0, u.AvailableHours)
	assert.Equal(t, 9, u.DaysRemaining)
	assert.Equal(t, 8.33, u.AverageDailyAvailable)
	assert.Equal(t, 58.33, u.WeeklyAvailable)
	assert.Equal(t, 25.0, u.UtilizationPercent)

	// Missing child_id and a half-open window are client errors
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/forecast/available-hours", nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		s.do(http.MethodGet, "/api/forecast/available-hours?child_id=C&period_start=2024-01-04", nil).Code)
}

func TestForecast_ProjectionWithoutHistory(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/forecast/projections?child_id=C&projection_days=30", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[ProjectionDTO](t, rec)
	assert.Equal(t, "low", p.Confidence)
	assert.Equal(t, 0.0, p.ProjectedHours)
	assert.Equal(t, "No historical data", p.BasedOn)
}

func TestForecast_SummaryAndRecommendations(t *testing.T) {
	s := newTestServer(t)
	s.configure()

	rec := s.do(http.MethodPost, "/api/budgets", BudgetRequest{ChildID: "C", PeriodStart: "2024-01-04", PeriodEnd: "2024-01-17", BudgetAmount: 1000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = s.do(http.MethodPost, "/api/shifts/import", ImportShiftsRequest{Shifts: []ShiftRequest{
		{EmployeeID: "E1", ChildID: "C", Date: "2023-12-20", StartTime: "08:00", EndTime: "14:00"},
		{EmployeeID: "E1", ChildID: "C", Date: "2023-12-27", StartTime: "08:00", EndTime: "14:00"},
		{EmployeeID: "E2", ChildID: "C", Date: "2024-01-03", StartTime: "08:00", EndTime: "14:00"},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/forecast/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[ForecastSummaryDTO](t, rec)
	require.Len(t, summary.Children, 1)
	assert.Equal(t, 40.0, summary.Children[0].BudgetHours, "1000 dollars at 25/h")
	assert.NotEqual(t, string(scheduling.RiskUnknown), summary.Children[0].RiskLevel)

	rec = s.do(http.MethodGet, "/api/forecast/recommendations", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	recs := decode[RecommendationsResponse](t, rec)
	assert.Equal(t, "2024-01-04", recs.PeriodStart)
	require.Len(t, recs.Recommendations, 2)
	assert.Equal(t, "E1", recs.Recommendations[0].EmployeeID)

	rec = s.do(http.MethodGet, "/api/forecast/recommendations?period_id=999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// STATUS MAPPING AND MIDDLEWARE
// =============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{generic.ErrReadOnlyShift, http.StatusForbidden},
		{fmt.Errorf("shift x: %w", generic.ErrShiftNotFound), http.StatusNotFound},
		{generic.ErrNotConfigured, http.StatusNotFound},
		{&generic.InvalidIntervalError{}, http.StatusBadRequest},
		{generic.ErrInvalidThreshold, http.StatusBadRequest},
		{&generic.OverlapError{Kind: "child"}, http.StatusConflict},
		{&generic.ExclusionError{Kind: "employee"}, http.StatusConflict},
		{generic.ErrDuplicateLimit, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestRateLimit(t *testing.T) {
	h := NewHandler(store.NewMemory(), Options{}, nil)
	router := NewRouter(h, RouterOptions{RateLimitRPS: 1, RateBurst: 2})

	var codes []int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterStore_EvictsIdleClients(t *testing.T) {
	s := newRateLimiterStore(1, 1)
	t0 := time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC)

	// GIVEN: One client that went quiet and one that keeps calling
	s.get("10.0.0.1", t0)
	s.get("10.0.0.2", t0)
	s.get("10.0.0.2", t0.Add(limiterIdleTTL/2))

	// WHEN: A request arrives after the first client has been idle past the ttl
	s.get("10.0.0.3", t0.Add(limiterIdleTTL+time.Minute))

	// THEN: Only the idle client's bucket is gone
	assert.Len(t, s.limiters, 2)
	assert.NotContains(t, s.limiters, "10.0.0.1")
	assert.Contains(t, s.limiters, "10.0.0.2")
	assert.Contains(t, s.limiters, "10.0.0.3")
}

func TestRateLimiterStore_ReturnsSameBucketWhileActive(t *testing.T) {
	s := newRateLimiterStore(1, 1)
	t0 := time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC)

	first := s.get("10.0.0.1", t0)
	assert.True(t, first.AllowN(t0, 1))

	// Still within the ttl, so the drained bucket is kept
	again := s.get("10.0.0.1", t0.Add(limiterIdleTTL-time.Second))
	assert.Same(t, first, again)
}
