package leaderboard

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidRange = errors.New("invalid range")

type RangeKey string

const (
	RangeDay    RangeKey = "day"
	RangeWeek   RangeKey = "week"
	RangeMonth  RangeKey = "month"
	RangeTotal  RangeKey = "total"
	RangeCustom RangeKey = "custom"
)

const dateLayout = "2006-01-02"

func (k RangeKey) Valid() bool {
	switch k {
	case RangeDay, RangeWeek, RangeMonth, RangeTotal, RangeCustom:
		return true
	}
	return false
}

// Window is an inclusive time interval. A nil bound is unbounded.
type Window struct {
	From *time.Time
	To   *time.Time
}

func (w Window) Contains(t time.Time) bool {
	if w.From != nil && t.Before(*w.From) {
		return false
	}
	if w.To != nil && t.After(*w.To) {
		return false
	}
	return true
}

// ResolveRange converts a range key into a window relative to now. Custom
// bounds are calendar dates (YYYY-MM-DD) in now's location: from starts at
// midnight and to ends at the last millisecond of its day.
func ResolveRange(key RangeKey, customFrom, customTo string, now time.Time) (Window, error) {
	loc := now.Location()
	y, m, d := now.Date()

	switch key {
	case RangeTotal, "":
		return Window{}, nil
	case RangeDay:
		from := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return bounded(from, now), nil
	case RangeWeek:
		sinceMonday := (int(now.Weekday()) + 6) % 7
		from := time.Date(y, m, d-sinceMonday, 0, 0, 0, 0, loc)
		return bounded(from, now), nil
	case RangeMonth:
		from := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return bounded(from, now), nil
	case RangeCustom:
		return CustomWindow(customFrom, customTo, loc)
	}
	return Window{}, fmt.Errorf("%w: unknown range %q", ErrInvalidRange, key)
}

// CustomWindow expands two optional calendar dates into day bounds.
func CustomWindow(from, to string, loc *time.Location) (Window, error) {
	var w Window
	if s := strings.TrimSpace(from); s != "" {
		day, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return Window{}, fmt.Errorf("%w: from %q", ErrInvalidRange, s)
		}
		w.From = &day
	}
	if s := strings.TrimSpace(to); s != "" {
		day, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return Window{}, fmt.Errorf("%w: to %q", ErrInvalidRange, s)
		}
		end := day.AddDate(0, 0, 1).Add(-time.Millisecond)
		w.To = &end
	}
	return w, nil
}

// Label is the short human description of a range.
func Label(key RangeKey, customFrom, customTo string) string {
	switch key {
	case RangeDay:
		return "Today"
	case RangeWeek:
		return "Week"
	case RangeMonth:
		return "Month"
	case RangeTotal, "":
		return "Total"
	}
	from, to := displayDate(customFrom), displayDate(customTo)
	if from == "" && to == "" {
		return "Custom"
	}
	if from == "" {
		from = "…"
	}
	if to == "" {
		to = "…"
	}
	return from + " — " + to
}

func displayDate(s string) string {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return strings.TrimSpace(s)
	}
	return parts[2] + "/" + parts[1] + "/" + parts[0]
}

func bounded(from, to time.Time) Window {
	return Window{From: &from, To: &to}
}
