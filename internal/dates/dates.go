// Package dates normalizes the date strings found in delivery exports into
// calendar days (00:00 UTC).
package dates

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// KeyLayout is the canonical layout for date keys and labels.
const KeyLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// Parser turns a raw date string into a calendar day.
type Parser func(raw string) (time.Time, error)

// layouts are tried in order before the best-effort fallback. US slash forms
// come before anything day-first so "3/4/2024" is March 4th.
var layouts = []string{
	KeyLayout,
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"2006/01/02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"2-Jan-2006",
}

// Parse accepts ISO (YYYY-MM-DD), US slash (M/D/YYYY) and whatever else
// dateparse can make sense of. The result is truncated to the day.
func Parse(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return Day(t), nil
		}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return Day(t), nil
}

// Day drops the clock part, keeping the calendar date the value was written in.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Key formats a day as YYYY-MM-DD.
func Key(t time.Time) string { return t.Format(KeyLayout) }

const secondsPerDay = 24 * 60 * 60

// DaysBetween counts whole days from a to b (negative when b is before a).
func DaysBetween(a, b time.Time) int {
	return int((Day(b).Unix() - Day(a).Unix()) / secondsPerDay)
}

// WeekStart returns the Sunday on or before t.
func WeekStart(t time.Time) time.Time {
	d := Day(t)
	return d.AddDate(0, 0, -int(d.Weekday()))
}
