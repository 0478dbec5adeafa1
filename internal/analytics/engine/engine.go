// Package engine composes the analytics packages into one dashboard run. A run
// has two independent views over the same snapshot: the time and store view
// (classify, distribution) and the filter view (filters, warnings).
package engine

import (
	"context"
	"time"

	"fieldops-workers/internal/analytics/classify"
	"fieldops-workers/internal/analytics/distribution"
	"fieldops-workers/internal/analytics/filters"
	"fieldops-workers/internal/analytics/warnings"
	"fieldops-workers/internal/analytics/window"
	"fieldops-workers/internal/common/logger"
	"fieldops-workers/internal/models"

	"github.com/google/uuid"
)

type Request struct {
	Orders     []models.WorkOrder       `json:"orders"`
	Dispensers models.DispenserSnapshot `json:"dispensers,omitempty"`
	WeekStart  time.Weekday             `json:"weekStart"`
	WeekEnd    time.Weekday             `json:"weekEnd"`
	// Anchor picks the current week. Zero means the engine clock's now.
	Anchor time.Time `json:"anchor"`
	// Location is used to read dates that carry no zone. Nil means the
	// anchor's location.
	Location *time.Location `json:"-"`
}

// NewRequest returns a request for the default Monday to Friday week.
func NewRequest(orders []models.WorkOrder, dispensers models.DispenserSnapshot) Request {
	return Request{
		Orders:     orders,
		Dispensers: dispensers,
		WeekStart:  window.DefaultWeekStart,
		WeekEnd:    window.DefaultWeekEnd,
	}
}

type Diagnostics struct {
	// Excluded orders are dated before the current week or between windows.
	Excluded       int `json:"excluded"`
	Unscheduled    int `json:"unscheduled"`
	OutsideWindows int `json:"outsideWindows"`
	FallbackOrders int `json:"fallbackOrders"`
}

type Dashboard struct {
	RunID          string                       `json:"runId"`
	GeneratedAt    time.Time                    `json:"generatedAt"`
	Windows        window.Windows               `json:"windows"`
	Categories     classify.CategoryCounts      `json:"categories"`
	Orders         []classify.Classification    `json:"orders"`
	Stores         classify.StoreDistribution   `json:"stores"`
	Days           distribution.DayDistribution `json:"days"`
	FilterNeeds    []filters.FilterNeed         `json:"filterNeeds"`
	FilterTotals   filters.Totals               `json:"filterTotals"`
	Warnings       []warnings.FilterWarning     `json:"warnings"`
	WarningSummary warnings.Summary             `json:"warningSummary"`
	Diagnostics    Diagnostics                  `json:"diagnostics"`
	// Stale is set by the memo layer when a previous result was reused.
	Stale bool `json:"stale"`
}

type Engine struct {
	calc         filters.Calculator
	parallelism  int
	fallbackPart string
	now          func() time.Time
	logger       logger.Logger
}

type Option func(*Engine)

func WithParallelism(n int) Option {
	return func(e *Engine) { e.parallelism = n }
}

func WithFallbackPart(pn string) Option {
	return func(e *Engine) { e.fallbackPart = pn }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(calc filters.Calculator, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		calc:        calc,
		parallelism: 1,
		now:         time.Now,
		logger:      logger.OrNop(log).WithFields(map[string]interface{}{"component": "analytics-engine"}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run computes a dashboard. It only fails when ctx is already done; per-order
// problems end up in the result as warnings or diagnostics.
func (e *Engine) Run(ctx context.Context, req Request) (*Dashboard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	anchor := req.Anchor
	if anchor.IsZero() {
		anchor = e.now()
	}
	loc := req.Location
	if loc == nil {
		loc = anchor.Location()
	}
	windows := window.Calculate(req.WeekStart, req.WeekEnd, anchor.In(loc))

	classified := classify.ClassifyAll(req.Orders, windows, loc)
	counts, excluded := classify.Tally(classified)
	days := distribution.Aggregate(req.Orders, windows, loc)

	agg := filters.NewAggregator(e.calc,
		filters.WithParallelism(e.parallelism),
		filters.WithFallbackPart(e.fallbackPart),
	)
	outcome := agg.Run(ctx, req.Orders)
	ws := warnings.Generate(outcome.Orders, req.Dispensers)

	d := &Dashboard{
		RunID:          uuid.NewString(),
		GeneratedAt:    e.now().UTC(),
		Windows:        windows,
		Categories:     counts,
		Orders:         classified,
		Stores:         classify.Stores(req.Orders),
		Days:           days,
		FilterNeeds:    outcome.Needs,
		FilterTotals:   outcome.Totals(),
		Warnings:       ws,
		WarningSummary: warnings.Summarize(ws),
		Diagnostics: Diagnostics{
			Excluded:       excluded,
			Unscheduled:    counts.Unscheduled,
			OutsideWindows: days.OutsideWindows,
			FallbackOrders: outcome.FallbackCount(),
		},
	}
	if d.FilterNeeds == nil {
		d.FilterNeeds = []filters.FilterNeed{}
	}

	fields := map[string]interface{}{
		"runId":       d.RunID,
		"orders":      len(req.Orders),
		"thisWeek":    counts.ThisWeek,
		"nextWeek":    counts.NextWeek,
		"excluded":    excluded,
		"filterNeeds": len(d.FilterNeeds),
		"warnings":    len(ws),
	}
	e.logger.Debug("dashboard computed", fields)
	if n := d.Diagnostics.FallbackOrders; n > 0 {
		for _, r := range outcome.Orders {
			if r.Fallback {
				e.logger.Debug("filter calculation fell back", map[string]interface{}{
					"orderId": r.Order.ID,
					"error":   r.Err,
				})
			}
		}
		e.logger.Warn("filter calculator failed for some orders", map[string]interface{}{
			"runId":          d.RunID,
			"fallbackOrders": n,
		})
	}
	return d, nil
}
