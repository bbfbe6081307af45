/*
calendar.go - Payroll period generation and navigation

PURPOSE:
  Payroll runs on fixed 14-day periods aligned to an anchor date (usually a
  Thursday). This file generates that sequence and walks it.

STATES:
  Unconfigured: no periods stored
  Configured:   a gapless sequence exists

  Configure(anchor) moves either state to Configured by deleting the
  sequence and regenerating it. It is destructive, so CalendarService
  serializes it: a singleflight group collapses duplicate requests for the
  same anchor, and a mutex orders requests for different anchors.

GENERATION:
  aligned   = anchor + 14k, the latest such date <= today
  first     = aligned - 14 * HistoryPeriods
  count     = HistoryPeriods + 1 + FuturePeriods
  period i  = [first + 14i, first + 14i + 13]

  Period ids are 1..count in ascending start order.

EXTENSION:
  The horizon scheduler appends periods after the last stored one (Extend)
  instead of regenerating, so existing ids keep their date ranges. Only an
  explicit Configure renumbers the sequence.

EXAMPLE:
  anchor 2024-01-04 (Thursday), today 2024-01-10, no history:
    #1 [2024-01-04, 2024-01-17]
    #2 [2024-01-18, 2024-01-31]
    ...
  Navigate(#1, -1) -> ErrOutOfRange

SEE ALSO:
  - hours.go: Uses Week1/Week2 of a period
  - api/scheduler.go: Calls EnsureHorizon as time passes
*/
package scheduling

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// GENERATION (pure)
// =============================================================================

// CalendarOptions bounds the generated horizon.
type CalendarOptions struct {
	// HistoryPeriods is how many periods to generate before the current one.
	HistoryPeriods int
	// FuturePeriods is how many periods to generate after the current one.
	FuturePeriods int
}

func DefaultCalendarOptions() CalendarOptions {
	return CalendarOptions{HistoryPeriods: 0, FuturePeriods: 26}
}

// AlignedStart returns the latest date <= today that is a whole number of
// periods away from anchor. Works for anchors before or after today.
func AlignedStart(anchor, today generic.TimePoint) generic.TimePoint {
	diff := generic.DaysBetween(anchor, today)
	k := diff / PeriodLength
	if diff%PeriodLength != 0 && diff < 0 {
		k--
	}
	return anchor.AddDays(k * PeriodLength)
}

// Generate builds the period sequence for anchor as seen from today.
func Generate(anchor, today generic.TimePoint, opts CalendarOptions) []PayrollPeriod {
	if opts.HistoryPeriods < 0 {
		opts.HistoryPeriods = 0
	}
	if opts.FuturePeriods < 0 {
		opts.FuturePeriods = 0
	}

	start := AlignedStart(anchor, today).AddDays(-PeriodLength * opts.HistoryPeriods)
	count := opts.HistoryPeriods + 1 + opts.FuturePeriods

	periods := make([]PayrollPeriod, count)
	for i := range periods {
		periods[i] = PayrollPeriod{
			ID:    PeriodID(i + 1),
			Start: start,
			End:   start.AddDays(PeriodLength - 1),
		}
		start = start.AddDays(PeriodLength)
	}
	return periods
}

// =============================================================================
// LOOKUP AND NAVIGATION (pure)
// =============================================================================

func sortedPeriods(periods []PayrollPeriod) []PayrollPeriod {
	out := append([]PayrollPeriod(nil), periods...)
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Current returns the period containing today.
func Current(periods []PayrollPeriod, today generic.TimePoint) (PayrollPeriod, error) {
	if len(periods) == 0 {
		return PayrollPeriod{}, generic.ErrNotConfigured
	}
	if p, ok := PeriodFor(periods, today); ok {
		return p, nil
	}
	return PayrollPeriod{}, fmt.Errorf("no period contains %s: %w", today, generic.ErrNotConfigured)
}

// PeriodFor returns the period containing date.
func PeriodFor(periods []PayrollPeriod, date generic.TimePoint) (PayrollPeriod, bool) {
	for _, p := range periods {
		if p.Contains(date) {
			return p, true
		}
	}
	return PayrollPeriod{}, false
}

// FindPeriod returns the period with the given id.
func FindPeriod(periods []PayrollPeriod, id PeriodID) (PayrollPeriod, error) {
	for _, p := range periods {
		if p.ID == id {
			return p, nil
		}
	}
	return PayrollPeriod{}, fmt.Errorf("period %d: %w", id, generic.ErrPeriodNotFound)
}

// Navigate returns the period adjacent to id in start-date order.
// direction is +1 (next) or -1 (previous). There is no wraparound.
func Navigate(periods []PayrollPeriod, id PeriodID, direction int) (PayrollPeriod, error) {
	if direction != 1 && direction != -1 {
		return PayrollPeriod{}, generic.ErrInvalidDirection
	}
	ordered := sortedPeriods(periods)
	for i, p := range ordered {
		if p.ID != id {
			continue
		}
		j := i + direction
		if j < 0 || j >= len(ordered) {
			return PayrollPeriod{}, fmt.Errorf("period %d has no neighbour in direction %+d: %w",
				id, direction, generic.ErrOutOfRange)
		}
		return ordered[j], nil
	}
	return PayrollPeriod{}, fmt.Errorf("period %d: %w", id, generic.ErrPeriodNotFound)
}

// CheckSequence verifies every period is 14 days long and each one starts
// the day after the previous one ends.
func CheckSequence(periods []PayrollPeriod) error {
	ordered := sortedPeriods(periods)
	for i, p := range ordered {
		if generic.DaysBetween(p.Start, p.End) != PeriodLength-1 {
			return fmt.Errorf("period %d %s is not %d days", p.ID, p.Range(), PeriodLength)
		}
		if i == 0 {
			continue
		}
		prev := ordered[i-1]
		if !p.Start.Equal(prev.End.AddDays(1)) {
			return fmt.Errorf("periods %d and %d are not contiguous", prev.ID, p.ID)
		}
	}
	return nil
}

// NeedsExtension reports whether fewer than minAhead periods remain after
// the one containing today, or today is outside the sequence altogether.
func NeedsExtension(periods []PayrollPeriod, today generic.TimePoint, minAhead int) bool {
	ordered := sortedPeriods(periods)
	for i, p := range ordered {
		if p.Contains(today) {
			return len(ordered)-1-i < minAhead
		}
	}
	return true
}

// Extend appends periods after the last one until at least
// opts.FuturePeriods follow the period containing today. Existing periods
// keep their ids and ranges; new ids continue from the highest one.
func Extend(periods []PayrollPeriod, today generic.TimePoint, opts CalendarOptions) []PayrollPeriod {
	ordered := sortedPeriods(periods)
	if len(ordered) == 0 {
		return ordered
	}

	var nextID PeriodID
	for _, p := range ordered {
		if p.ID > nextID {
			nextID = p.ID
		}
	}
	last := ordered[len(ordered)-1]
	horizon := AlignedStart(last.Start, today).AddDays(PeriodLength * max(opts.FuturePeriods, 0))
	for last.Start.Before(horizon) {
		nextID++
		start := last.End.AddDays(1)
		last = PayrollPeriod{ID: nextID, Start: start, End: start.AddDays(PeriodLength - 1)}
		ordered = append(ordered, last)
	}
	return ordered
}

// =============================================================================
// CALENDAR SERVICE - Stored sequence, serialized regeneration
// =============================================================================

type CalendarState string

const (
	StateUnconfigured CalendarState = "unconfigured"
	StateConfigured   CalendarState = "configured"
)

// CalendarService owns the stored period sequence.
type CalendarService struct {
	Store   PeriodStore
	Options CalendarOptions
	Clock   func() time.Time
	Logger  *zap.Logger

	group singleflight.Group
	mu    sync.Mutex
}

func NewCalendarService(store PeriodStore, opts CalendarOptions, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{Store: store, Options: opts, Clock: time.Now, Logger: logger}
}

func (s *CalendarService) today() generic.TimePoint { return dateFrom(s.Clock) }

// Configure regenerates the whole sequence from anchor.
func (s *CalendarService) Configure(ctx context.Context, anchor generic.TimePoint) ([]PayrollPeriod, error) {
	v, err, shared := s.group.Do("configure:"+anchor.String(), func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		periods := Generate(anchor, s.today(), s.Options)
		if err := s.Store.ReplacePeriods(ctx, periods); err != nil {
			return nil, fmt.Errorf("failed to replace periods: %w", err)
		}
		if err := s.Store.SetSetting(ctx, SettingPayrollAnchor, anchor.String()); err != nil {
			return nil, fmt.Errorf("failed to save anchor: %w", err)
		}

		s.Logger.Info("payroll periods configured",
			zap.String("anchor", anchor.String()),
			zap.Int("periods", len(periods)),
			zap.String("first", periods[0].Start.String()),
			zap.String("last", periods[len(periods)-1].End.String()),
		)
		return periods, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.Logger.Debug("configure request shared with in-flight call", zap.String("anchor", anchor.String()))
	}
	return append([]PayrollPeriod(nil), v.([]PayrollPeriod)...), nil
}

// State reports whether a sequence exists.
func (s *CalendarService) State(ctx context.Context) (CalendarState, error) {
	periods, err := s.Store.ListPeriods(ctx)
	if err != nil {
		return "", err
	}
	if len(periods) == 0 {
		return StateUnconfigured, nil
	}
	return StateConfigured, nil
}

// Anchor returns the configured anchor date, if any.
func (s *CalendarService) Anchor(ctx context.Context) (generic.TimePoint, bool, error) {
	raw, ok, err := s.Store.GetSetting(ctx, SettingPayrollAnchor)
	if err != nil || !ok {
		return generic.TimePoint{}, false, err
	}
	anchor, err := generic.ParseDate(raw)
	if err != nil {
		return generic.TimePoint{}, false, fmt.Errorf("stored anchor: %w", err)
	}
	return anchor, true, nil
}

func (s *CalendarService) Periods(ctx context.Context) ([]PayrollPeriod, error) {
	return s.Store.ListPeriods(ctx)
}

func (s *CalendarService) Period(ctx context.Context, id PeriodID) (PayrollPeriod, error) {
	periods, err := s.Store.ListPeriods(ctx)
	if err != nil {
		return PayrollPeriod{}, err
	}
	return FindPeriod(periods, id)
}

func (s *CalendarService) Current(ctx context.Context) (PayrollPeriod, error) {
	periods, err := s.Store.ListPeriods(ctx)
	if err != nil {
		return PayrollPeriod{}, err
	}
	return Current(periods, s.today())
}

func (s *CalendarService) Navigate(ctx context.Context, id PeriodID, direction int) (PayrollPeriod, error) {
	periods, err := s.Store.ListPeriods(ctx)
	if err != nil {
		return PayrollPeriod{}, err
	}
	return Navigate(periods, id, direction)
}

// EnsureHorizon appends periods when fewer than minAhead remain after
// today's. Stored periods are never renumbered, so allocations keyed by
// period id keep their date ranges. Returns true if it added periods.
func (s *CalendarService) EnsureHorizon(ctx context.Context, minAhead int) (bool, error) {
	if _, ok, err := s.Anchor(ctx); err != nil || !ok {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	periods, err := s.Store.ListPeriods(ctx)
	if err != nil {
		return false, err
	}
	today := s.today()
	if !NeedsExtension(periods, today, minAhead) {
		return false, nil
	}

	opts := s.Options
	opts.FuturePeriods = max(opts.FuturePeriods, minAhead)
	extended := Extend(periods, today, opts)
	if len(extended) == len(periods) {
		return false, nil
	}
	if err := s.Store.ReplacePeriods(ctx, extended); err != nil {
		return false, fmt.Errorf("failed to extend periods: %w", err)
	}

	s.Logger.Info("payroll period horizon extended",
		zap.Int("added", len(extended)-len(periods)),
		zap.String("last", extended[len(extended)-1].End.String()),
	)
	return true, nil
}
