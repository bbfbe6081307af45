/*
interval.go - Same-day interval arithmetic

PURPOSE:
  Overlap detection between two time ranges on the same date. This is the
  leaf every other scheduling calculation builds on: conflicts, exclusion
  checks, hour totals and gap filling all reduce to "do these two ranges
  share any time, and how much?"

RULES:
  - Ranges are half-open: [start, end). Touching boundaries do not overlap.
    09:00-12:00 and 12:00-15:00 share no time.
  - The end-of-day sentinel 23:59:59 is normalized to 24:00:00 before
    comparison, so a shift that "closes the day" compares correctly with a
    shift that starts at 23:59:59 (there is none) or ends at 24:00.
  - end <= start after normalization is an invalid interval. Cross-midnight
    shifts are not supported.

SEE ALSO:
  - time.go: ClockTime and the sentinel
  - scheduling/conflict.go: Pairwise overlap detection
*/
package generic

import (
	"sort"
	"time"
)

// Interval is a same-day [Start, End) range.
type Interval struct {
	Start ClockTime
	End   ClockTime
}

// NewInterval returns the normalized interval, or an InvalidIntervalError.
func NewInterval(start, end ClockTime) (Interval, error) {
	if err := ValidateInterval(start, end); err != nil {
		return Interval{}, err
	}
	return Interval{Start: start.Normalize(), End: end.Normalize()}, nil
}

// ValidateInterval rejects end <= start after sentinel normalization.
func ValidateInterval(start, end ClockTime) error {
	s, e := start.Normalize(), end.Normalize()
	if s < 0 || e > EndOfDay || e <= s {
		return &InvalidIntervalError{Start: start, End: end}
	}
	return nil
}

// Length returns the duration of the interval (zero for an empty interval).
func (iv Interval) Length() time.Duration {
	s, e := iv.Start.Normalize(), iv.End.Normalize()
	if e <= s {
		return 0
	}
	return (e - s).Duration()
}

// Overlaps reports whether the two intervals share any time.
func (iv Interval) Overlaps(other Interval) bool {
	_, ok := Overlap(iv.Start, iv.End, other.Start, other.End)
	return ok
}

// Overlap returns how long [aStart, aEnd) and [bStart, bEnd) share.
// ok is false when they don't overlap, including when they only touch.
func Overlap(aStart, aEnd, bStart, bEnd ClockTime) (time.Duration, bool) {
	aStart, aEnd = aStart.Normalize(), aEnd.Normalize()
	bStart, bEnd = bStart.Normalize(), bEnd.Normalize()

	lo := aStart
	if bStart > lo {
		lo = bStart
	}
	hi := aEnd
	if bEnd < hi {
		hi = bEnd
	}
	if lo >= hi {
		return 0, false
	}
	return (hi - lo).Duration(), true
}

// MergeIntervals returns the union of the given intervals as a sorted,
// non-overlapping list. Touching intervals are joined. Empty intervals are dropped.
func MergeIntervals(in []Interval) []Interval {
	items := make([]Interval, 0, len(in))
	for _, iv := range in {
		iv = Interval{Start: iv.Start.Normalize(), End: iv.End.Normalize()}
		if iv.End > iv.Start {
			items = append(items, iv)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Start != items[j].Start {
			return items[i].Start < items[j].Start
		}
		return items[i].End < items[j].End
	})

	var out []Interval
	for _, iv := range items {
		if n := len(out); n > 0 && iv.Start <= out[n-1].End {
			if iv.End > out[n-1].End {
				out[n-1].End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// TotalLength sums the lengths of the union of the intervals.
func TotalLength(in []Interval) time.Duration {
	var total time.Duration
	for _, iv := range MergeIntervals(in) {
		total += iv.Length()
	}
	return total
}

// Gaps returns the parts of window not covered by busy.
func Gaps(window Interval, busy []Interval) []Interval {
	window = Interval{Start: window.Start.Normalize(), End: window.End.Normalize()}
	var out []Interval
	cursor := window.Start
	for _, b := range MergeIntervals(busy) {
		if b.End <= cursor {
			continue
		}
		if b.Start >= window.End {
			break
		}
		if b.Start > cursor {
			out = append(out, Interval{Start: cursor, End: b.Start})
		}
		cursor = b.End
	}
	if cursor < window.End {
		out = append(out, Interval{Start: cursor, End: window.End})
	}
	return out
}
