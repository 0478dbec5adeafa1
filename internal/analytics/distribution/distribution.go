// Package distribution groups work orders by the scheduling window they fall in,
// for the dashboard's chart and drill-down tables.
package distribution

import (
	"time"

	"fieldops-workers/internal/analytics/classify"
	"fieldops-workers/internal/analytics/window"
	"fieldops-workers/internal/models"
)

// DayBucket is the number of orders on one calendar day of an active window.
type DayBucket struct {
	Date    string `json:"date"`
	Weekday string `json:"weekday"`
	Window  string `json:"window"`
	Count   int    `json:"count"`
}

// DayDistribution keeps the full orders (not just counts) so the dashboard can
// drill into a window without another query. Each window map has exactly one key,
// the window's label. Order lists keep input order.
type DayDistribution struct {
	ThisWeek       map[string][]models.WorkOrder `json:"thisWeek"`
	NextWeek       map[string][]models.WorkOrder `json:"nextWeek"`
	Daily          []DayBucket                   `json:"daily"`
	Skipped        int                           `json:"skipped"`
	OutsideWindows int                           `json:"outsideWindows"`
}

func Aggregate(orders []models.WorkOrder, w window.Windows, loc *time.Location) DayDistribution {
	thisLabel, nextLabel := w.CurrentWeek.Label(), w.NextWeek.Label()
	dist := DayDistribution{
		ThisWeek: map[string][]models.WorkOrder{thisLabel: {}},
		NextWeek: map[string][]models.WorkOrder{nextLabel: {}},
	}

	perDay := make(map[string]int)
	for _, o := range orders {
		date, ok := classify.EffectiveDate(o, loc)
		if !ok {
			dist.Skipped++
			continue
		}
		switch {
		case w.CurrentWeek.Contains(date):
			dist.ThisWeek[thisLabel] = append(dist.ThisWeek[thisLabel], o)
		case w.NextWeek.Contains(date):
			dist.NextWeek[nextLabel] = append(dist.NextWeek[nextLabel], o)
		default:
			dist.OutsideWindows++
			continue
		}
		perDay[dayKey(date)]++
	}

	for _, win := range []window.DateWindow{w.CurrentWeek, w.NextWeek} {
		label := win.Label()
		for _, day := range win.Days() {
			key := dayKey(day)
			dist.Daily = append(dist.Daily, DayBucket{
				Date:    key,
				Weekday: day.Weekday().String(),
				Window:  label,
				Count:   perDay[key],
			})
		}
	}
	return dist
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
