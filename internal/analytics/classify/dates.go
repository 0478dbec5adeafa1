package classify

import (
	"strings"
	"time"

	"fieldops-workers/internal/models"
)

// Layouts accepted for scraped date strings, tried in order. Layouts without a
// zone are interpreted in the caller's location.
var Layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 3:04 PM",
	"1/2/2006 3:04 PM",
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"01/02/2006",
	"1/2/2006",
	"Mon, Jan 2, 2006",
	"Monday, January 2, 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDate parses a scraped date string. It never returns an error: an empty or
// unrecognized value simply reports ok=false.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range Layouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		if t.Year() < 1900 {
			return time.Time{}, false
		}
		return t.In(loc), true
	}
	return time.Time{}, false
}

// EffectiveDate resolves the one date an order is scheduled on:
// scheduledDate, then visits.nextVisit.date, then createdDate.
func EffectiveDate(order models.WorkOrder, loc *time.Location) (time.Time, bool) {
	for _, candidate := range []string{order.ScheduledDate, order.NextVisitDate(), order.CreatedDate} {
		if t, ok := ParseDate(candidate, loc); ok {
			return t, true
		}
	}
	return time.Time{}, false
}
