// Package window computes the current and next scheduling weeks used by the
// dashboard. A week is bounded by a configurable start and end weekday and may
// wrap past Saturday (e.g. Friday through Monday).
package window

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultWeekStart = time.Monday
	DefaultWeekEnd   = time.Friday

	labelLayout = "Jan 2"
)

// DateWindow is an inclusive [Start, End] range. End is always the last
// millisecond of its day.
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window, bounds included.
func (w DateWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Label renders the window for display, e.g. "Jun 2 - Jun 6".
func (w DateWindow) Label() string {
	return fmt.Sprintf("%s - %s", w.Start.Format(labelLayout), w.End.Format(labelLayout))
}

// Days returns the midnight of every calendar day covered by the window.
func (w DateWindow) Days() []time.Time {
	var days []time.Time
	for d := startOfDay(w.Start); !d.After(w.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

type Windows struct {
	CurrentWeek DateWindow `json:"currentWeek"`
	NextWeek    DateWindow `json:"nextWeek"`
}

// Calculate returns the scheduling week containing anchor and the week after it.
// A zero anchor means now.
func Calculate(weekStart, weekEnd time.Weekday, anchor time.Time) Windows {
	if anchor.IsZero() {
		anchor = time.Now()
	}

	offset := (int(anchor.Weekday()) - int(weekStart) + 7) % 7
	start := startOfDay(anchor).AddDate(0, 0, -offset)

	span := int(weekEnd) - int(weekStart)
	if weekEnd < weekStart {
		span = 7 - int(weekStart) + int(weekEnd)
	}
	end := endOfDay(start.AddDate(0, 0, span))

	current := DateWindow{Start: start, End: end}
	return Windows{
		CurrentWeek: current,
		NextWeek: DateWindow{
			Start: current.Start.AddDate(0, 0, 7),
			End:   current.End.AddDate(0, 0, 7),
		},
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekday accepts English day names (any case, full or abbreviated) and the
// numbers 0 (Sunday) through 6 (Saturday).
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if d, ok := weekdayNames[s]; ok {
		return d, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n), nil
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

// ParseWeekdayOr parses s, returning def when s is empty.
func ParseWeekdayOr(s string, def time.Weekday) (time.Weekday, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return ParseWeekday(s)
}
