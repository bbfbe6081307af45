/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the scheduling model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

WIRE FORMATS:
  Dates are "2006-01-02". Times are "HH:MM:SS"; "23:59:59" closes the day.
  Hours and dollars are JSON numbers rounded to two decimals.

VALIDATION:
  Validation is done in handlers and services, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/scheduling"
)

// =============================================================================
// PERIODS
// =============================================================================

type PeriodDTO struct {
	ID         int    `json:"id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Week1End   string `json:"week1_end"`
	Week2Start string `json:"week2_start"`
	IsCurrent  bool   `json:"is_current"`
}

type ConfigurePeriodsRequest struct {
	AnchorDate string `json:"anchor_date"`
}

type ConfigurePeriodsResponse struct {
	AnchorDate string      `json:"anchor_date"`
	Periods    []PeriodDTO `json:"periods"`
}

func toPeriodDTO(p scheduling.PayrollPeriod, today generic.TimePoint) PeriodDTO {
	return PeriodDTO{
		ID:         int(p.ID),
		StartDate:  p.Start.String(),
		EndDate:    p.End.String(),
		Week1End:   p.Week1().End.String(),
		Week2Start: p.Week2().Start.String(),
		IsCurrent:  p.Contains(today),
	}
}

// =============================================================================
// SHIFTS
// =============================================================================

type ShiftDTO struct {
	ID          string  `json:"id"`
	EmployeeID  string  `json:"employee_id"`
	ChildID     string  `json:"child_id"`
	Date        string  `json:"date"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	ServiceCode *string `json:"service_code,omitempty"`
	Status      string  `json:"status"`
	IsImported  bool    `json:"is_imported"`
	Source      string  `json:"source"`
	Hours       float64 `json:"hours"`
}

type ShiftRequest struct {
	EmployeeID    string  `json:"employee_id"`
	ChildID       string  `json:"child_id"`
	Date          string  `json:"date"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	ServiceCode   *string `json:"service_code,omitempty"`
	Status        string  `json:"status,omitempty"`
	AllowOverlaps bool    `json:"allow_overlaps,omitempty"`
}

type ShiftResponse struct {
	Shift    ShiftDTO `json:"shift"`
	Warnings []string `json:"warnings"`
}

type ImportShiftsRequest struct {
	Shifts []ShiftRequest `json:"shifts"`
}

type ImportShiftsResponse struct {
	Imported   int `json:"imported"`
	Superseded int `json:"superseded"`
	Duplicates int `json:"duplicates"`
}

type AutoFillRequest struct {
	ChildID    string `json:"child_id"`
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
}

type ConflictDTO struct {
	Type           string   `json:"type"`
	ShiftA         ShiftDTO `json:"shift_a"`
	ShiftB         ShiftDTO `json:"shift_b"`
	OverlapMinutes int64    `json:"overlap_minutes"`
	OverlapHours   float64  `json:"overlap_hours"`
}

func toShiftDTO(s scheduling.Shift) ShiftDTO {
	return ShiftDTO{
		ID:          string(s.ID),
		EmployeeID:  string(s.EmployeeID),
		ChildID:     string(s.ChildID),
		Date:        s.Date.String(),
		StartTime:   s.Start.String(),
		EndTime:     s.End.String(),
		ServiceCode: s.ServiceCode,
		Status:      string(s.Status),
		IsImported:  s.IsImported,
		Source:      string(s.Source),
		Hours:       s.Hours().Float(),
	}
}

func toShiftDTOs(shifts []scheduling.Shift) []ShiftDTO {
	dtos := make([]ShiftDTO, len(shifts))
	for i, s := range shifts {
		dtos[i] = toShiftDTO(s)
	}
	return dtos
}

func toConflictDTOs(conflicts []scheduling.Conflict) []ConflictDTO {
	dtos := make([]ConflictDTO, len(conflicts))
	for i, c := range conflicts {
		m := generic.MinutesFromDuration(c.Overlap)
		dtos[i] = ConflictDTO{
			Type:           string(c.Type),
			ShiftA:         toShiftDTO(c.ShiftA),
			ShiftB:         toShiftDTO(c.ShiftB),
			OverlapMinutes: int64(m),
			OverlapHours:   m.Hours().Float(),
		}
	}
	return dtos
}

// =============================================================================
// EXCLUSIONS
// =============================================================================

type ExclusionDTO struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	StartTime  *string `json:"start_time"`
	EndTime    *string `json:"end_time"`
	Scope      string  `json:"scope"`
	EmployeeID string  `json:"employee_id,omitempty"`
	ChildID    string  `json:"child_id,omitempty"`
	Reason     *string `json:"reason,omitempty"`
	Active     bool    `json:"active"`
}

// ExclusionViewDTO is an exclusion as it applies on one date.
type ExclusionViewDTO struct {
	ExclusionDTO
	Date               string  `json:"date"`
	EffectiveStartTime *string `json:"effective_start_time"`
	EffectiveEndTime   *string `json:"effective_end_time"`
	FullDay            bool    `json:"full_day"`
}

type CreateExclusionRequest struct {
	Name       string  `json:"name"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	StartTime  *string `json:"start_time"`
	EndTime    *string `json:"end_time"`
	EmployeeID string  `json:"employee_id"`
	ChildID    string  `json:"child_id"`
	Reason     *string `json:"reason"`
}

func clockPtr(c *generic.ClockTime) *string {
	if c == nil {
		return nil
	}
	s := c.String()
	return &s
}

func toExclusionDTO(e scheduling.ExclusionPeriod) ExclusionDTO {
	dto := ExclusionDTO{
		ID:        e.ID,
		Name:      e.Name,
		StartDate: e.Start.String(),
		EndDate:   e.End.String(),
		StartTime: clockPtr(e.StartTime),
		EndTime:   clockPtr(e.EndTime),
		Scope:     string(e.Scope.Kind),
		Reason:    e.Reason,
		Active:    e.Active,
	}
	if id, ok := e.Scope.Employee(); ok {
		dto.EmployeeID = string(id)
	}
	if id, ok := e.Scope.Child(); ok {
		dto.ChildID = string(id)
	}
	return dto
}

func toExclusionViewDTO(v scheduling.ExclusionView) ExclusionViewDTO {
	return ExclusionViewDTO{
		ExclusionDTO:       toExclusionDTO(v.Exclusion),
		Date:               v.Date.String(),
		EffectiveStartTime: clockPtr(v.StartTime),
		EffectiveEndTime:   clockPtr(v.EndTime),
		FullDay:            v.FullDay(),
	}
}

// =============================================================================
// HOUR LIMITS, BUDGETS, RATES, ALLOCATIONS
// =============================================================================

type HourLimitDTO struct {
	ID              string   `json:"id"`
	EmployeeID      string   `json:"employee_id"`
	ChildID         string   `json:"child_id"`
	MaxHoursPerWeek float64  `json:"max_hours_per_week"`
	AlertThreshold  *float64 `json:"alert_threshold"`
	Active          bool     `json:"active"`
}

type HourLimitRequest struct {
	ID              string   `json:"id,omitempty"`
	EmployeeID      string   `json:"employee_id"`
	ChildID         string   `json:"child_id"`
	MaxHoursPerWeek float64  `json:"max_hours_per_week"`
	AlertThreshold  *float64 `json:"alert_threshold"`
}

type BudgetDTO struct {
	ID           string   `json:"id"`
	ChildID      string   `json:"child_id"`
	PeriodStart  string   `json:"period_start"`
	PeriodEnd    string   `json:"period_end"`
	BudgetAmount float64  `json:"budget_amount"`
	BudgetHours  *float64 `json:"budget_hours"`
	Notes        string   `json:"notes,omitempty"`
}

type BudgetRequest struct {
	ChildID      string   `json:"child_id"`
	PeriodStart  string   `json:"period_start"`
	PeriodEnd    string   `json:"period_end"`
	BudgetAmount float64  `json:"budget_amount"`
	BudgetHours  *float64 `json:"budget_hours"`
	Notes        string   `json:"notes"`
}

type RateDTO struct {
	ID            string  `json:"id"`
	EmployeeID    string  `json:"employee_id"`
	HourlyRate    float64 `json:"hourly_rate"`
	EffectiveDate string  `json:"effective_date"`
	EndDate       *string `json:"end_date"`
	Notes         string  `json:"notes,omitempty"`
}

type RateRequest struct {
	EmployeeID    string  `json:"employee_id"`
	HourlyRate    float64 `json:"hourly_rate"`
	EffectiveDate string  `json:"effective_date"`
	Notes         string  `json:"notes"`
}

type AllocationDTO struct {
	ID             string  `json:"id"`
	ChildID        string  `json:"child_id"`
	EmployeeID     string  `json:"employee_id"`
	PeriodID       int     `json:"period_id"`
	AllocatedHours float64 `json:"allocated_hours"`
	Notes          string  `json:"notes,omitempty"`
}

type AllocationRequest struct {
	ChildID        string  `json:"child_id"`
	EmployeeID     string  `json:"employee_id"`
	PeriodID       int     `json:"period_id"`
	AllocatedHours float64 `json:"allocated_hours"`
	Notes          string  `json:"notes"`
}

func floatPtr(a *generic.Amount) *float64 {
	if a == nil {
		return nil
	}
	f := a.Float()
	return &f
}

func hoursPtr(f *float64) *generic.Amount {
	if f == nil {
		return nil
	}
	a := generic.Hours(*f)
	return &a
}

func toHourLimitDTO(l scheduling.HourLimit) HourLimitDTO {
	return HourLimitDTO{
		ID:              l.ID,
		EmployeeID:      string(l.EmployeeID),
		ChildID:         string(l.ChildID),
		MaxHoursPerWeek: l.MaxHoursPerWeek.Float(),
		AlertThreshold:  floatPtr(l.AlertThreshold),
		Active:          l.Active,
	}
}

func toBudgetDTO(b scheduling.ChildBudget) BudgetDTO {
	return BudgetDTO{
		ID:           b.ID,
		ChildID:      string(b.ChildID),
		PeriodStart:  b.PeriodStart.String(),
		PeriodEnd:    b.PeriodEnd.String(),
		BudgetAmount: b.BudgetAmount.Float(),
		BudgetHours:  floatPtr(b.BudgetHours),
		Notes:        b.Notes,
	}
}

func toRateDTO(r scheduling.EmployeeRate) RateDTO {
	dto := RateDTO{
		ID:            r.ID,
		EmployeeID:    string(r.EmployeeID),
		HourlyRate:    r.HourlyRate.Float(),
		EffectiveDate: r.EffectiveDate.String(),
		Notes:         r.Notes,
	}
	if r.EndDate != nil {
		end := r.EndDate.String()
		dto.EndDate = &end
	}
	return dto
}

func toAllocationDTO(a scheduling.BudgetAllocation) AllocationDTO {
	return AllocationDTO{
		ID:             a.ID,
		ChildID:        string(a.ChildID),
		EmployeeID:     string(a.EmployeeID),
		PeriodID:       int(a.PeriodID),
		AllocatedHours: a.AllocatedHours.Float(),
		Notes:          a.Notes,
	}
}

// =============================================================================
// PERIOD SUMMARY
// =============================================================================

type WeekHoursDTO struct {
	Week1 float64 `json:"week1"`
	Week2 float64 `json:"week2"`
	Total float64 `json:"total"`
}

type PairHoursDTO struct {
	ChildID         string       `json:"child_id"`
	Hours           WeekHoursDTO `json:"hours"`
	MaxHoursPerWeek *float64     `json:"max_hours_per_week,omitempty"`
	AlertThreshold  *float64     `json:"alert_threshold,omitempty"`
	Week1Breach     bool         `json:"week1_breach"`
	Week2Breach     bool         `json:"week2_breach"`
	Week1Alert      bool         `json:"week1_alert"`
	Week2Alert      bool         `json:"week2_alert"`
}

type EmployeeHoursDTO struct {
	EmployeeID string         `json:"employee_id"`
	Hours      WeekHoursDTO   `json:"hours"`
	Children   []PairHoursDTO `json:"children"`
}

type ChildHoursDTO struct {
	ChildID string       `json:"child_id"`
	Hours   WeekHoursDTO `json:"hours"`
}

type PeriodSummaryDTO struct {
	Period         PeriodDTO          `json:"period"`
	Employees      []EmployeeHoursDTO `json:"employees"`
	Children       []ChildHoursDTO    `json:"children"`
	TotalShifts    int                `json:"total_shifts"`
	ImportedShifts int                `json:"imported_shifts"`
	ManualShifts   int                `json:"manual_shifts"`
	TotalHours     float64            `json:"total_hours"`
	Breaches       int                `json:"breaches"`
}

func toWeekHoursDTO(w scheduling.WeekHours) WeekHoursDTO {
	return WeekHoursDTO{Week1: w.Week1.Float(), Week2: w.Week2.Float(), Total: w.Total.Float()}
}

func toPeriodSummaryDTO(b scheduling.PeriodBreakdown, today generic.TimePoint) PeriodSummaryDTO {
	dto := PeriodSummaryDTO{
		Period:         toPeriodDTO(b.Period, today),
		Employees:      make([]EmployeeHoursDTO, 0, len(b.Employees)),
		Children:       make([]ChildHoursDTO, 0, len(b.Children)),
		TotalShifts:    b.TotalShifts,
		ImportedShifts: b.ImportedShifts,
		ManualShifts:   b.ManualShifts,
		TotalHours:     b.TotalHours.Float(),
		Breaches:       len(b.Breaches()),
	}
	for _, e := range b.Employees {
		ed := EmployeeHoursDTO{
			EmployeeID: string(e.EmployeeID),
			Hours:      toWeekHoursDTO(e.Hours),
			Children:   make([]PairHoursDTO, 0, len(e.Children)),
		}
		for _, p := range e.Children {
			pd := PairHoursDTO{
				ChildID:     string(p.ChildID),
				Hours:       toWeekHoursDTO(p.Hours),
				Week1Breach: p.Week1Breach,
				Week2Breach: p.Week2Breach,
				Week1Alert:  p.Week1Alert,
				Week2Alert:  p.Week2Alert,
			}
			if p.Limit != nil {
				max := p.Limit.MaxHoursPerWeek.Float()
				pd.MaxHoursPerWeek = &max
				pd.AlertThreshold = floatPtr(p.Limit.AlertThreshold)
			}
			ed.Children = append(ed.Children, pd)
		}
		dto.Employees = append(dto.Employees, ed)
	}
	for _, c := range b.Children {
		dto.Children = append(dto.Children, ChildHoursDTO{ChildID: string(c.ChildID), Hours: toWeekHoursDTO(c.Hours)})
	}
	return dto
}

// =============================================================================
// FORECAST
// =============================================================================

var hundred = decimal.NewFromInt(100)

type DayPatternDTO struct {
	DayOfWeek    string  `json:"day_of_week"`
	DayNum       int     `json:"day_num"`
	ShiftCount   int     `json:"shift_count"`
	AverageHours float64 `json:"avg_hours"`
}

type EmployeeShareDTO struct {
	EmployeeID   string  `json:"employee_id"`
	ShiftCount   int     `json:"shift_count"`
	TotalHours   float64 `json:"total_hours"`
	SharePercent float64 `json:"share_percent"`
}

type PatternDTO struct {
	ChildID              string             `json:"child_id"`
	AnalysisPeriod       int                `json:"analysis_period"`
	WeeklyPatterns       []DayPatternDTO    `json:"weekly_patterns"`
	EmployeeDistribution []EmployeeShareDTO `json:"employee_distribution"`
	WeeklyAverageHours   float64            `json:"weekly_average_hours"`
	TotalHoursAnalyzed   float64            `json:"total_hours_analyzed"`
	ActiveWeeks          int                `json:"active_weeks"`
	WeeklyTotals         []float64          `json:"weekly_totals"`
}

type BudgetComparisonDTO struct {
	CurrentBudget float64 `json:"current_budget"`
	ProjectedNeed float64 `json:"projected_need"`
	Variance      float64 `json:"variance"`
	Sufficient    bool    `json:"sufficient"`
}

type ProjectionDTO struct {
	ChildID          string               `json:"child_id"`
	ProjectionDays   int                  `json:"projection_days"`
	ProjectedHours   float64              `json:"projected_hours"`
	WeeklyProjection float64              `json:"weekly_projection"`
	Confidence       string               `json:"confidence"`
	BasedOn          string               `json:"based_on"`
	BudgetComparison *BudgetComparisonDTO `json:"budget_comparison"`
}

type UtilizationDTO struct {
	ChildID               string  `json:"child_id"`
	PeriodStart           string  `json:"period_start"`
	PeriodEnd             string  `json:"period_end"`
	HasBudget             bool    `json:"has_budget"`
	BudgetHours           float64 `json:"budget_hours"`
	UsedHours             float64 `json:"used_hours"`
	AvailableHours        float64 `json:"available_hours"`
	DaysRemaining         int     `json:"days_remaining"`
	AverageDailyAvailable float64 `json:"average_daily_available"`
	WeeklyAvailable       float64 `json:"weekly_available"`
	WeeklyRemaining       float64 `json:"weekly_remaining"`
	UtilizationPercent    float64 `json:"utilization_percent"`
	BudgetAmount          float64 `json:"budget_amount"`
	CostUsed              float64 `json:"cost_used"`
	AmountRemaining       float64 `json:"amount_remaining"`
}

type RecommendationDTO struct {
	ChildID          string  `json:"child_id"`
	EmployeeID       string  `json:"employee_id"`
	RecommendedHours float64 `json:"recommended_hours"`
	BasedOnPercent   float64 `json:"based_on_percent"`
	BudgetHours      float64 `json:"budget_hours"`
}

type RecommendationsResponse struct {
	PeriodID        int                 `json:"period_id"`
	PeriodStart     string              `json:"period_start"`
	PeriodEnd       string              `json:"period_end"`
	Recommendations []RecommendationDTO `json:"recommendations"`
}

type ChildForecastDTO struct {
	ChildID            string  `json:"child_id"`
	BudgetHours        float64 `json:"budget_hours"`
	UsedHours          float64 `json:"used_hours"`
	AvailableHours     float64 `json:"available_hours"`
	ProjectedNeed      float64 `json:"projected_need"`
	Variance           float64 `json:"variance"`
	UtilizationPercent float64 `json:"utilization_percent"`
	RiskLevel          string  `json:"risk_level"`
}

type ForecastTotalsDTO struct {
	BudgetHours    float64 `json:"budget_hours"`
	AvailableHours float64 `json:"available_hours"`
	ProjectedHours float64 `json:"projected_hours"`
	Variance       float64 `json:"variance"`
}

type ForecastSummaryDTO struct {
	PeriodStart string             `json:"period_start"`
	PeriodEnd   string             `json:"period_end"`
	Children    []ChildForecastDTO `json:"children"`
	Totals      ForecastTotalsDTO  `json:"totals"`
}

func toPatternDTO(p scheduling.WeeklyPattern) PatternDTO {
	dto := PatternDTO{
		ChildID:              string(p.ChildID),
		AnalysisPeriod:       p.LookbackDays,
		WeeklyPatterns:       make([]DayPatternDTO, 0, len(p.ByWeekday)),
		EmployeeDistribution: make([]EmployeeShareDTO, 0, len(p.ByEmployee)),
		WeeklyAverageHours:   p.WeeklyAverage.Float(),
		TotalHoursAnalyzed:   p.TotalHours.Float(),
		ActiveWeeks:          p.ActiveWeeks,
		WeeklyTotals:         make([]float64, len(p.WeeklyTotals)),
	}
	for _, d := range p.ByWeekday {
		dto.WeeklyPatterns = append(dto.WeeklyPatterns, DayPatternDTO{
			DayOfWeek:    d.Weekday.String(),
			DayNum:       int(d.Weekday),
			ShiftCount:   d.ShiftCount,
			AverageHours: d.AverageHours.Float(),
		})
	}
	for _, e := range p.ByEmployee {
		share, _ := e.Share.Mul(hundred).Round(1).Float64()
		dto.EmployeeDistribution = append(dto.EmployeeDistribution, EmployeeShareDTO{
			EmployeeID:   string(e.EmployeeID),
			ShiftCount:   e.ShiftCount,
			TotalHours:   e.TotalHours.Float(),
			SharePercent: share,
		})
	}
	for i, t := range p.WeeklyTotals {
		dto.WeeklyTotals[i] = t.Float()
	}
	return dto
}

func toProjectionDTO(p scheduling.Projection) ProjectionDTO {
	dto := ProjectionDTO{
		ChildID:          string(p.ChildID),
		ProjectionDays:   p.ProjectionDays,
		ProjectedHours:   p.ProjectedHours.Float(),
		WeeklyProjection: p.WeeklyProjection.Float(),
		Confidence:       string(p.Confidence),
		BasedOn:          p.BasedOn,
	}
	if p.Budget != nil {
		dto.BudgetComparison = &BudgetComparisonDTO{
			CurrentBudget: p.Budget.CurrentBudget.Float(),
			ProjectedNeed: p.Budget.ProjectedNeed.Float(),
			Variance:      p.Budget.Variance.Float(),
			Sufficient:    p.Budget.Sufficient,
		}
	}
	return dto
}

func toUtilizationDTO(u scheduling.Utilization) UtilizationDTO {
	pct, _ := u.UtilizationPercent.Round(2).Float64()
	return UtilizationDTO{
		ChildID:               string(u.ChildID),
		PeriodStart:           u.PeriodStart.String(),
		PeriodEnd:             u.PeriodEnd.String(),
		HasBudget:             u.HasBudget,
		BudgetHours:           u.BudgetHours.Float(),
		UsedHours:             u.UsedHours.Float(),
		AvailableHours:        u.AvailableHours.Float(),
		DaysRemaining:         u.DaysRemaining,
		AverageDailyAvailable: u.AverageDailyAvailable.Float(),
		WeeklyAvailable:       u.WeeklyAvailable.Float(),
		WeeklyRemaining:       u.WeeklyRemaining.Float(),
		UtilizationPercent:    pct,
		BudgetAmount:          u.BudgetAmount.Float(),
		CostUsed:              u.CostUsed.Float(),
		AmountRemaining:       u.AmountRemaining.Float(),
	}
}

func toForecastSummaryDTO(s scheduling.ForecastSummary) ForecastSummaryDTO {
	dto := ForecastSummaryDTO{
		PeriodStart: s.Window.Start.String(),
		PeriodEnd:   s.Window.End.String(),
		Children:    make([]ChildForecastDTO, 0, len(s.Children)),
		Totals: ForecastTotalsDTO{
			BudgetHours:    s.Totals.BudgetHours.Float(),
			AvailableHours: s.Totals.AvailableHours.Float(),
			ProjectedHours: s.Totals.ProjectedHours.Float(),
			Variance:       s.Totals.Variance.Float(),
		},
	}
	for _, c := range s.Children {
		pct, _ := c.UtilizationPercent.Round(2).Float64()
		dto.Children = append(dto.Children, ChildForecastDTO{
			ChildID:            string(c.ChildID),
			BudgetHours:        c.BudgetHours.Float(),
			UsedHours:          c.UsedHours.Float(),
			AvailableHours:     c.AvailableHours.Float(),
			ProjectedNeed:      c.ProjectedNeed.Float(),
			Variance:           c.Variance.Float(),
			UtilizationPercent: pct,
			RiskLevel:          string(c.Risk),
		})
	}
	return dto
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// SCENARIO DTOs
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}
