package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"fieldops-workers/internal/analytics/classify"
	"fieldops-workers/internal/analytics/filters"
	"fieldops-workers/internal/common/logger"
	"fieldops-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var anchor = time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC) // Wednesday

func fixedClock() time.Time { return anchor }

func emptyCalculator() filters.Calculator {
	return filters.CalculatorFunc(func(ctx context.Context, o models.WorkOrder) (*filters.Result, error) {
		return &filters.Result{}, nil
	})
}

func TestEngine_MissingDispenserDataScenario(t *testing.T) {
	e := New(emptyCalculator(), logger.NewTestLogger(t), WithClock(fixedClock))
	req := NewRequest([]models.WorkOrder{
		{ID: "W-1", CustomerName: "Wawa", StoreNumber: "8120", ScheduledDate: "2024-03-05"},
	}, nil)

	d, err := e.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, d.Categories.ThisWeek)
	require.Len(t, d.Warnings, 1)
	assert.True(t, d.Warnings[0].MissingDispenserData)
	assert.Equal(t, "medium", string(d.Warnings[0].Severity))
	assert.Equal(t, 1, d.WarningSummary.Medium)
	assert.Empty(t, d.FilterNeeds)
	assert.NotNil(t, d.FilterNeeds)
}

func TestEngine_FullRun(t *testing.T) {
	calc := filters.CalculatorFunc(func(ctx context.Context, o models.WorkOrder) (*filters.Result, error) {
		if o.ID == "4" {
			return nil, errors.New("calculator timeout")
		}
		return &filters.Result{Warnings: []filters.CalcWarning{
			{PartNumber: "PCP-2-1", Severity: 2},
			{PartNumber: "PCP-2-1", Severity: 2},
		}}, nil
	})
	orders := []models.WorkOrder{
		{ID: "1", CustomerName: "7-Eleven", StoreNumber: "1001", ScheduledDate: "03/04/2024", Dispensers: []models.Dispenser{{}}},
		{ID: "2", CustomerName: "7-Eleven", StoreNumber: "1001", Visits: &models.Visits{NextVisit: &models.Visit{Date: "2024-03-12"}}},
		{ID: "3", CustomerName: "Circle K", CreatedDate: "2024-05-01T09:00:00Z"},
		{ID: "4", CustomerName: "Wawa", ScheduledDate: "2024-02-01"},
		{ID: "5", CustomerName: "Speedway", ScheduledDate: "not a date"},
	}

	e := New(calc, logger.NewTestLogger(t), WithClock(fixedClock), WithParallelism(3))
	d, err := e.Run(context.Background(), NewRequest(orders, nil))
	require.NoError(t, err)

	assert.NotEmpty(t, d.RunID)
	assert.Equal(t, anchor, d.GeneratedAt)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), d.Windows.CurrentWeek.Start)
	assert.Equal(t, 5, d.Categories.Total)
	assert.Equal(t, 1, d.Categories.ThisWeek)
	assert.Equal(t, 1, d.Categories.NextWeek)
	assert.Equal(t, 1, d.Categories.Future)
	assert.Equal(t, 1, d.Categories.Unscheduled)
	assert.Equal(t, Diagnostics{Excluded: 1, Unscheduled: 1, OutsideWindows: 2, FallbackOrders: 1}, d.Diagnostics)

	require.Len(t, d.Orders, 5)
	buckets := make([]classify.TimeBucket, len(d.Orders))
	for i, c := range d.Orders {
		buckets[i] = c.Bucket
	}
	assert.Equal(t, []classify.TimeBucket{
		classify.ThisWeek, classify.NextWeek, classify.Future, classify.Excluded, classify.Unscheduled,
	}, buckets)
	assert.Equal(t, "3", d.Orders[2].OrderID)
	assert.Nil(t, d.Orders[4].Date)

	assert.Equal(t, 2, d.Stores.Chains["7-eleven"])
	assert.Equal(t, 1, d.Stores.Chains["other"])
	assert.Len(t, d.Days.ThisWeek["Mar 4 - Mar 8"], 1)
	assert.Len(t, d.Days.NextWeek["Mar 11 - Mar 15"], 1)

	require.Len(t, d.FilterNeeds, 1)
	need := d.FilterNeeds[0]
	assert.Equal(t, "PCP-2-1", need.PartNumber)
	assert.Equal(t, 9, need.Quantity)
	assert.Equal(t, []string{"7-Eleven #1001", "Circle K", "Wawa", "Speedway"}, need.Stores)
	assert.Equal(t, 2, need.BoxesNeeded)

	assert.Equal(t, "medium", string(d.Warnings[0].Severity))
	assert.Equal(t, "4", d.Warnings[0].OrderID)
	assert.Equal(t, 1, d.WarningSummary.Medium)
	assert.Equal(t, 8, d.WarningSummary.Low)
	assert.False(t, d.Stale)
}

func TestEngine_FilterTotalsFromCalculatorCounts(t *testing.T) {
	calc := filters.CalculatorFunc(func(ctx context.Context, o models.WorkOrder) (*filters.Result, error) {
		return &filters.Result{
			GasFilters: 4,
			Warnings:   []filters.CalcWarning{{PartNumber: "PCP-2-1", Severity: 5}},
		}, nil
	})
	orders := []models.WorkOrder{
		{ID: "1", CustomerName: "Wawa", ScheduledDate: "2024-03-05"},
		{ID: "2", CustomerName: "Wawa", ScheduledDate: "2024-03-07"},
	}

	e := New(calc, logger.NewTestLogger(t), WithClock(fixedClock))
	d, err := e.Run(context.Background(), NewRequest(orders, nil))
	require.NoError(t, err)

	require.Len(t, d.FilterNeeds, 1)
	assert.Equal(t, 8, d.FilterNeeds[0].Quantity)
	assert.Equal(t, 2, d.FilterNeeds[0].BoxesNeeded)
	assert.Equal(t, filters.Totals{GasFilters: 8}, d.FilterTotals)
}

func TestEngine_WrappedWeek(t *testing.T) {
	e := New(emptyCalculator(), logger.NewNoOpLogger(), WithClock(fixedClock))
	req := Request{WeekStart: time.Friday, WeekEnd: time.Monday}

	d, err := e.Run(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, d.Windows.CurrentWeek.End.After(d.Windows.CurrentWeek.Start))
	assert.Equal(t, time.Friday, d.Windows.CurrentWeek.Start.Weekday())
	assert.Equal(t, time.Monday, d.Windows.CurrentWeek.End.Weekday())
}

func TestEngine_Location(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	e := New(emptyCalculator(), nil, WithClock(fixedClock))
	req := NewRequest([]models.WorkOrder{{ID: "1", ScheduledDate: "2024-03-04", Dispensers: []models.Dispenser{{}}}}, nil)
	req.Location = ny

	d, err := e.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, ny, d.Windows.CurrentWeek.Start.Location())
	assert.Equal(t, 1, d.Categories.ThisWeek)
}

func TestEngine_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(emptyCalculator(), nil).Run(ctx, NewRequest(nil, nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_Idempotent(t *testing.T) {
	orders := []models.WorkOrder{
		{ID: "1", CustomerName: "Wawa", ScheduledDate: "2024-03-05"},
		{ID: "2", CustomerName: "Wawa", ScheduledDate: "2024-03-13"},
	}
	e := New(emptyCalculator(), nil, WithClock(fixedClock))

	a, err := e.Run(context.Background(), NewRequest(orders, nil))
	require.NoError(t, err)
	b, err := e.Run(context.Background(), NewRequest(orders, nil))
	require.NoError(t, err)

	a.RunID, b.RunID = "", ""
	assert.Equal(t, a, b)
}
