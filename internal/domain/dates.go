package domain

import (
	"fmt"
	"strings"
	"time"
)

// Date layouts accepted from clients.
const (
	DateLayout        = "2006-01-02"
	DisplayDateLayout = "02/01/2006"
	localDateTime     = "2006-01-02T15:04:05"
)

// StartOfDay returns local midnight of the calendar day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseDate parses a calendar day. It accepts YYYY-MM-DD, dd/mm/yyyy and
// RFC3339 date-times; a date-time is reduced to its calendar day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := ParseTimestamp(s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return StartOfDay(t, loc), nil
}

// ParseTimestamp parses a business date, keeping the time of day when given.
// Bare dates are local midnight.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range []string{DateLayout, DisplayDateLayout, localDateTime} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// DateRange is an inclusive range of calendar days. A nil bound is open.
type DateRange struct {
	Start *time.Time
	End   *time.Time
	loc   *time.Location
}

// NewDateRange builds a range from optional client strings. When only one
// bound is given the range covers that single day.
func NewDateRange(start, end string, loc *time.Location) (DateRange, error) {
	r := DateRange{loc: loc}

	if start != "" {
		t, err := ParseDate(start, loc)
		if err != nil {
			return DateRange{}, err
		}
		r.Start = &t
	}
	if end != "" {
		t, err := ParseDate(end, loc)
		if err != nil {
			return DateRange{}, err
		}
		r.End = &t
	}

	switch {
	case r.Start != nil && r.End == nil:
		r.End = r.Start
	case r.Start == nil && r.End != nil:
		r.Start = r.End
	case r.Start != nil && r.Start.After(*r.End):
		return DateRange{}, fmt.Errorf("%w: %s > %s", ErrInvalidDateRange,
			r.Start.Format(DateLayout), r.End.Format(DateLayout))
	}

	return r, nil
}

// SingleDay is the range covering the calendar day of t.
func SingleDay(t time.Time, loc *time.Location) DateRange {
	day := StartOfDay(t, loc)
	return DateRange{Start: &day, End: &day, loc: loc}
}

// IsZero reports whether the range is unbounded.
func (r DateRange) IsZero() bool {
	return r.Start == nil && r.End == nil
}

// Bounds returns the half-open instant interval [from, to) covered by the
// range. Either result is nil when that side is open.
func (r DateRange) Bounds() (from, to *time.Time) {
	if r.Start != nil {
		f := *r.Start
		from = &f
	}
	if r.End != nil {
		t := r.End.AddDate(0, 0, 1)
		to = &t
	}
	return from, to
}

// Contains reports whether t falls on one of the range's days.
func (r DateRange) Contains(t time.Time) bool {
	from, to := r.Bounds()
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && !t.Before(*to) {
		return false
	}
	return true
}

// Location returns the zone the range was built in.
func (r DateRange) Location() *time.Location {
	if r.loc == nil {
		return time.Local
	}
	return r.loc
}
