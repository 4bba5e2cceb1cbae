package diario

import (
	"fmt"
	"time"
)

// Range is an inclusive span of calendar days.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange builds a range from two calendar days, inclusive on both ends.
func NewRange(start, end time.Time) (Range, error) {
	s := midnight(start)
	e := midnight(end)
	if e.Before(s) {
		return Range{}, fmt.Errorf("range end %s precedes start %s",
			e.Format("2006-01-02"), s.Format("2006-01-02"))
	}
	return Range{Start: s, End: e}, nil
}

// YearsBack builds the range from January 1st of (current year - n) through
// today.
func YearsBack(n int, now time.Time) Range {
	start := time.Date(now.Year()-n, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Range{Start: start, End: midnight(now)}
}

// Days reports how many calendar days the range spans.
func (r Range) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Contains reports whether the calendar day of t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	d := midnight(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Editions returns a lazy ascending enumerator over the range, one Edition
// per calendar day. The enumerator is not safe for concurrent use.
func (r Range) Editions() *Enumerator {
	return &Enumerator{next: r.Start, end: r.End}
}

// Enumerator yields the editions of a Range in ascending date order without
// materializing them.
type Enumerator struct {
	next time.Time
	end  time.Time
}

// Next returns the next Edition in the range; ok is false once the range is
// exhausted.
func (e *Enumerator) Next() (Edition, bool) {
	if e.next.After(e.end) {
		return Edition{}, false
	}
	ed := EditionOn(e.next)
	e.next = e.next.AddDate(0, 0, 1)
	return ed, true
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
