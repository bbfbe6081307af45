package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_TruncatesMultiDaySpan(t *testing.T) {
	// GIVEN: An exclusion from Mar 1 10:00 to Mar 3 14:00
	e := ExclusionPeriod{
		ID:        "ex-1",
		Name:      "Training",
		Start:     date("2024-03-01"),
		End:       date("2024-03-03"),
		StartTime: clockPtr("10:00"),
		EndTime:   clockPtr("14:00"),
		Scope:     GeneralScope(),
		Active:    true,
	}
	exclusions := []ExclusionPeriod{e}

	// WHEN/THEN: First day keeps only the start bound
	first := Resolve(date("2024-03-01"), exclusions, "")
	require.Len(t, first, 1)
	assert.Equal(t, clock("10:00"), *first[0].StartTime)
	assert.Nil(t, first[0].EndTime)
	assert.Equal(t, iv("10:00", "24:00"), first[0].Window())

	// Middle day is blocked all day
	middle := Resolve(date("2024-03-02"), exclusions, "")
	require.Len(t, middle, 1)
	assert.True(t, middle[0].FullDay())

	// Last day keeps only the end bound
	last := Resolve(date("2024-03-03"), exclusions, "")
	require.Len(t, last, 1)
	assert.Nil(t, last[0].StartTime)
	assert.Equal(t, clock("14:00"), *last[0].EndTime)

	// Outside the span nothing applies
	assert.Empty(t, Resolve(date("2024-03-04"), exclusions, ""))
}

func TestResolve_SingleDayKeepsBothBounds(t *testing.T) {
	e := ExclusionPeriod{
		ID:        "ex-1",
		Start:     date("2024-03-01"),
		End:       date("2024-03-01"),
		StartTime: clockPtr("12:00"),
		EndTime:   clockPtr("13:00"),
		Active:    true,
	}

	views := Resolve(date("2024-03-01"), []ExclusionPeriod{e}, "")

	require.Len(t, views, 1)
	assert.Equal(t, iv("12:00", "13:00"), views[0].Window())
	assert.True(t, views[0].Blocks(clock("11:00"), clock("12:30")))
	assert.False(t, views[0].Blocks(clock("13:00"), clock("15:00")), "touching the end is not blocked")
}

func TestResolve_ScopeAndActiveFilters(t *testing.T) {
	day := date("2024-03-01")
	exclusions := []ExclusionPeriod{
		{ID: "a", Start: day, End: day, Scope: ChildScope("C1"), Active: true},
		{ID: "b", Start: day, End: day, Scope: ChildScope("C2"), Active: true},
		{ID: "c", Start: day, End: day, Scope: EmployeeScope("E1"), Active: true},
		{ID: "d", Start: day, End: day, Scope: GeneralScope(), Active: false},
	}

	views := Resolve(day, exclusions, "C1")

	ids := make([]string, len(views))
	for i, v := range views {
		ids[i] = v.Exclusion.ID
	}
	assert.Equal(t, []string{"a", "c"}, ids)

	assert.True(t, views[1].Applies("E1", "C9"))
	assert.False(t, views[1].Applies("E2", "C1"))
	assert.Len(t, Resolve(day, exclusions, ""), 3, "no child filter keeps every child exclusion")
}
