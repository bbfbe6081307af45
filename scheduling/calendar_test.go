package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// GENERATION
// =============================================================================

func TestGenerate_AnchorInsideFirstPeriod(t *testing.T) {
	// GIVEN: Anchor 2024-01-04 and today inside the first period
	// WHEN: Generating with no history
	// THEN: The first period is [2024-01-04, 2024-01-17]
	periods := Generate(date("2024-01-04"), date("2024-01-10"), DefaultCalendarOptions())

	require.Len(t, periods, 27)
	assert.Equal(t, PeriodID(1), periods[0].ID)
	assert.Equal(t, "2024-01-04", periods[0].Start.String())
	assert.Equal(t, "2024-01-17", periods[0].End.String())
	assert.Equal(t, "2024-01-18", periods[1].Start.String())
	assert.NoError(t, CheckSequence(periods))

	_, err := Navigate(periods, periods[0].ID, -1)
	assert.True(t, errors.Is(err, generic.ErrOutOfRange))
}

func TestGenerate_AlignsToAnchorFromLaterToday(t *testing.T) {
	// GIVEN: Anchor three and a half periods before today
	anchor := date("2024-01-04")
	today := anchor.AddDays(3*PeriodLength + 5)

	// WHEN: Generating with one history period
	periods := Generate(anchor, today, CalendarOptions{HistoryPeriods: 1, FuturePeriods: 2})

	// THEN: Boundaries stay on the anchor's 14-day grid
	require.Len(t, periods, 4)
	assert.True(t, periods[0].Start.Equal(anchor.AddDays(2*PeriodLength)))
	current, err := Current(periods, today)
	require.NoError(t, err)
	assert.Equal(t, PeriodID(2), current.ID)
}

func TestAlignedStart_AnchorAfterToday(t *testing.T) {
	anchor := date("2024-03-01")
	today := date("2024-02-20")

	start := AlignedStart(anchor, today)

	assert.Equal(t, "2024-02-16", start.String())
	assert.True(t, PayrollPeriod{Start: start, End: start.AddDays(13)}.Contains(today))
}

func TestNavigate_VisitsEveryPeriodOnce(t *testing.T) {
	periods := Generate(date("2024-01-04"), date("2024-01-04"), CalendarOptions{FuturePeriods: 5})

	seen := []PeriodID{periods[0].ID}
	p := periods[0]
	for {
		next, err := Navigate(periods, p.ID, 1)
		if errors.Is(err, generic.ErrOutOfRange) {
			break
		}
		require.NoError(t, err)
		assert.True(t, next.Start.Equal(p.End.AddDays(1)), "no gap between %s and %s", p.Range(), next.Range())
		seen = append(seen, next.ID)
		p = next
	}

	assert.Equal(t, []PeriodID{1, 2, 3, 4, 5, 6}, seen)
}

func TestNavigate_Errors(t *testing.T) {
	periods := Generate(date("2024-01-04"), date("2024-01-04"), CalendarOptions{FuturePeriods: 1})

	_, err := Navigate(periods, 1, 2)
	assert.True(t, errors.Is(err, generic.ErrInvalidDirection))

	_, err = Navigate(periods, 99, 1)
	assert.True(t, errors.Is(err, generic.ErrPeriodNotFound))

	_, err = Current(nil, date("2024-01-04"))
	assert.True(t, errors.Is(err, generic.ErrNotConfigured))
}

func TestPayrollPeriod_Weeks(t *testing.T) {
	p := PayrollPeriod{ID: 1, Start: date("2024-01-04"), End: date("2024-01-17")}

	assert.Equal(t, "2024-01-10", p.Week1().End.String())
	assert.Equal(t, "2024-01-11", p.Week2().Start.String())
	assert.Equal(t, 1, p.WeekOf(date("2024-01-10")))
	assert.Equal(t, 2, p.WeekOf(date("2024-01-11")))
	assert.Equal(t, 0, p.WeekOf(date("2024-01-18")))
}

func TestNeedsExtension(t *testing.T) {
	periods := Generate(date("2024-01-04"), date("2024-01-04"), CalendarOptions{FuturePeriods: 3})

	assert.False(t, NeedsExtension(periods, date("2024-01-04"), 2))
	assert.True(t, NeedsExtension(periods, periods[2].Start, 2))
	assert.True(t, NeedsExtension(periods, date("2025-01-01"), 2))
}

// =============================================================================
// CALENDAR SERVICE
// =============================================================================

// periodStore is the smallest PeriodStore for calendar tests.
type periodStore struct {
	mu       sync.Mutex
	periods  []PayrollPeriod
	settings map[string]string
	replaced int
}

func (s *periodStore) ListPeriods(context.Context) ([]PayrollPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PayrollPeriod(nil), s.periods...), nil
}

func (s *periodStore) ReplacePeriods(_ context.Context, periods []PayrollPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods = append([]PayrollPeriod(nil), periods...)
	s.replaced++
	return nil
}

func (s *periodStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *periodStore) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func fixedClock(d string) func() time.Time {
	t := date(d).Time.Add(10 * time.Hour)
	return func() time.Time { return t }
}

func TestCalendarService_ConfigureReplacesSequence(t *testing.T) {
	// GIVEN: An unconfigured calendar
	store := &periodStore{settings: map[string]string{}}
	svc := NewCalendarService(store, CalendarOptions{FuturePeriods: 4}, nil)
	svc.Clock = fixedClock("2024-01-10")
	ctx := context.Background()

	state, err := svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateUnconfigured, state)

	_, err = svc.Current(ctx)
	assert.True(t, errors.Is(err, generic.ErrNotConfigured))

	// WHEN: Configuring twice with different anchors
	_, err = svc.Configure(ctx, date("2024-01-04"))
	require.NoError(t, err)
	periods, err := svc.Configure(ctx, date("2024-01-08"))
	require.NoError(t, err)

	// THEN: Only the second sequence remains and the anchor is stored
	stored, err := svc.Periods(ctx)
	require.NoError(t, err)
	assert.Equal(t, periods, stored)
	assert.Equal(t, "2024-01-08", stored[0].Start.String())

	anchor, ok, err := svc.Anchor(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2024-01-08", anchor.String())

	current, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, PeriodID(1), current.ID)
}

func TestCalendarService_EnsureHorizon(t *testing.T) {
	// GIVEN: A sequence with one period after the current one
	store := &periodStore{settings: map[string]string{}}
	svc := NewCalendarService(store, CalendarOptions{FuturePeriods: 1}, nil)
	svc.Clock = fixedClock("2024-01-04")
	ctx := context.Background()

	extended, err := svc.EnsureHorizon(ctx, 2)
	require.NoError(t, err)
	assert.False(t, extended, "nothing to extend before an anchor exists")

	_, err = svc.Configure(ctx, date("2024-01-04"))
	require.NoError(t, err)

	// WHEN: Time moves into the last generated period
	svc.Clock = fixedClock("2024-01-20")
	extended, err = svc.EnsureHorizon(ctx, 1)

	// THEN: A period is appended after the last one
	require.NoError(t, err)
	assert.True(t, extended)
	current, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-18", current.Start.String())
	assert.Equal(t, 2, store.replaced)
}

func TestExtend_KeepsIdsAndRanges(t *testing.T) {
	periods := Generate(date("2024-01-04"), date("2024-01-04"), CalendarOptions{FuturePeriods: 1})

	extended := Extend(periods, date("2024-02-20"), CalendarOptions{FuturePeriods: 2})

	require.Len(t, extended, 6)
	assert.Equal(t, periods, extended[:2])
	require.NoError(t, CheckSequence(extended))
	for i, p := range extended {
		assert.Equal(t, PeriodID(i+1), p.ID)
	}
	// 2024-02-20 is in #4 [02-15, 02-28]; two more follow
	assert.Equal(t, "2024-02-15", extended[3].Start.String())
	assert.Equal(t, "2024-03-27", extended[5].End.String())

	assert.Equal(t, periods, Extend(periods, date("2024-01-04"), CalendarOptions{FuturePeriods: 1}),
		"nothing to add while the horizon is sufficient")
	assert.Empty(t, Extend(nil, date("2024-01-04"), CalendarOptions{FuturePeriods: 1}))
}

func TestCalendarService_EnsureHorizonKeepsPeriodIds(t *testing.T) {
	// GIVEN: Three periods ahead, configured on 2024-01-09
	store := &periodStore{settings: map[string]string{}}
	svc := NewCalendarService(store, CalendarOptions{FuturePeriods: 3}, nil)
	svc.Clock = fixedClock("2024-01-09")
	ctx := context.Background()
	before, err := svc.Configure(ctx, date("2024-01-04"))
	require.NoError(t, err)

	// WHEN: Four weeks pass and the horizon is extended
	svc.Clock = fixedClock("2024-02-06")
	extended, err := svc.EnsureHorizon(ctx, 2)
	require.NoError(t, err)
	require.True(t, extended)

	// THEN: Every existing id still names the same fortnight
	after, err := svc.Periods(ctx)
	require.NoError(t, err)
	require.Greater(t, len(after), len(before))
	for _, p := range before {
		got, err := svc.Period(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, got.Start.Equal(p.Start), "period %d moved", p.ID)
		assert.True(t, got.End.Equal(p.End), "period %d moved", p.ID)
	}
	current, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, PeriodID(3), current.ID)
}
