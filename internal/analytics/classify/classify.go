// Package classify assigns work orders to scheduling buckets and store chains.
// All functions are pure; bad input degrades to "unscheduled" or "other".
package classify

import (
	"time"

	"fieldops-workers/internal/analytics/window"
	"fieldops-workers/internal/models"
)

type TimeBucket string

const (
	ThisWeek    TimeBucket = "thisWeek"
	NextWeek    TimeBucket = "nextWeek"
	Future      TimeBucket = "future"
	Unscheduled TimeBucket = "unscheduled"
	// Excluded orders are dated before the current week, or in a gap between the
	// two windows when the week does not span all seven days. They belong to none
	// of the CategoryCounts buckets.
	Excluded TimeBucket = "excluded"
)

// CategoryCounts partitions the order set. Total counts every order; excluded
// orders are the only ones not reflected in the other four fields.
type CategoryCounts struct {
	Total       int `json:"total"`
	ThisWeek    int `json:"thisWeek"`
	NextWeek    int `json:"nextWeek"`
	Future      int `json:"future"`
	Unscheduled int `json:"unscheduled"`
}

// Classification is the per-order result of Classify.
type Classification struct {
	OrderID string     `json:"orderId"`
	Bucket  TimeBucket `json:"bucket"`
	Chain   Chain      `json:"chain"`
	Date    *time.Time `json:"date,omitempty"`
}

// Bucket places a resolved date into a time bucket.
func Bucket(date time.Time, ok bool, w window.Windows) TimeBucket {
	switch {
	case !ok:
		return Unscheduled
	case w.CurrentWeek.Contains(date):
		return ThisWeek
	case w.NextWeek.Contains(date):
		return NextWeek
	case date.After(w.NextWeek.End):
		return Future
	default:
		return Excluded
	}
}

func Classify(order models.WorkOrder, w window.Windows, loc *time.Location) Classification {
	date, ok := EffectiveDate(order, loc)
	c := Classification{
		OrderID: order.ID,
		Bucket:  Bucket(date, ok, w),
		Chain:   ChainOf(order.CustomerName),
	}
	if ok {
		c.Date = &date
	}
	return c
}

// ClassifyAll classifies every order, in input order.
func ClassifyAll(orders []models.WorkOrder, w window.Windows, loc *time.Location) []Classification {
	out := make([]Classification, len(orders))
	for i, o := range orders {
		out[i] = Classify(o, w, loc)
	}
	return out
}

// Count builds CategoryCounts and also returns how many orders were excluded.
func Count(orders []models.WorkOrder, w window.Windows, loc *time.Location) (CategoryCounts, int) {
	return Tally(ClassifyAll(orders, w, loc))
}

// Tally folds classifications into CategoryCounts plus the excluded count.
func Tally(cs []Classification) (CategoryCounts, int) {
	counts := CategoryCounts{Total: len(cs)}
	excluded := 0
	for _, c := range cs {
		switch c.Bucket {
		case ThisWeek:
			counts.ThisWeek++
		case NextWeek:
			counts.NextWeek++
		case Future:
			counts.Future++
		case Unscheduled:
			counts.Unscheduled++
		case Excluded:
			excluded++
		}
	}
	return counts, excluded
}
