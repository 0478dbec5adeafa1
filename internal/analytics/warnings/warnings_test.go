package warnings

import (
	"context"
	"errors"
	"testing"

	"fieldops-workers/internal/analytics/filters"
	"fieldops-workers/internal/analytics/fueltype"
	"fieldops-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityFrom(t *testing.T) {
	assert.Equal(t, Low, SeverityFrom(0))
	assert.Equal(t, Low, SeverityFrom(3))
	assert.Equal(t, Medium, SeverityFrom(3.5))
	assert.Equal(t, Medium, SeverityFrom(7))
	assert.Equal(t, High, SeverityFrom(7.1))
	assert.Equal(t, High, SeverityFrom(10))
}

func TestGenerate_MissingDispenserData(t *testing.T) {
	order := models.WorkOrder{ID: "W-1", CustomerName: "7-Eleven", StoreNumber: "1234", ScheduledDate: "2024-03-05"}
	results := []filters.OrderResult{{Order: order}}

	ws := Generate(results, nil)

	require.Len(t, ws, 1)
	assert.True(t, ws[0].MissingDispenserData)
	assert.Equal(t, Medium, ws[0].Severity)
	assert.Equal(t, MissingDispenserMessage, ws[0].Message)
	assert.Equal(t, "W-1", ws[0].OrderID)
	assert.Equal(t, "7-Eleven #1234", ws[0].StoreName)
}

func TestGenerate_SnapshotSuppressesMissingData(t *testing.T) {
	order := models.WorkOrder{ID: "W-1", CustomerName: "Wawa"}
	snapshot := models.DispenserSnapshot{"W-1": {{Make: "Gilbarco"}}}

	ws := Generate([]filters.OrderResult{{Order: order}}, snapshot)

	assert.Empty(t, ws)
}

func TestGenerate_EmptySnapshotRecordDoesNotSuppress(t *testing.T) {
	order := models.WorkOrder{ID: "W-1", CustomerName: "Wawa"}
	snapshot := models.DispenserSnapshot{"W-1": {}}

	ws := Generate([]filters.OrderResult{{Order: order}}, snapshot)

	require.Len(t, ws, 1)
	assert.True(t, ws[0].MissingDispenserData)
}

func TestGenerate_OrderWithDispensersButNoWarnings(t *testing.T) {
	order := models.WorkOrder{ID: "W-1", Dispensers: []models.Dispenser{{Make: "Wayne"}}}

	ws := Generate([]filters.OrderResult{{Order: order}}, nil)

	assert.Empty(t, ws)
}

func TestGenerate_MapsCalculatorWarnings(t *testing.T) {
	results := []filters.OrderResult{
		{
			Order: models.WorkOrder{ID: "1", CustomerName: "A"},
			Fuel:  fuelDEF(),
			Result: filters.Result{Warnings: []filters.CalcWarning{
				{PartNumber: "PCP-2-1", Severity: 2},
				{PartNumber: "800-DEF-10", Severity: 9, Message: "DEF filter overdue"},
			}},
		},
		{
			Order:  models.WorkOrder{ID: "2", CustomerName: "B"},
			Result: filters.Result{Warnings: []filters.CalcWarning{{PartNumber: "PCN-2-1U", Severity: 5}}},
		},
	}

	ws := Generate(results, nil)

	require.Len(t, ws, 3)
	assert.Equal(t, High, ws[0].Severity)
	assert.Equal(t, filters.DEF, ws[0].FilterType)
	assert.Equal(t, "DEF filter overdue", ws[0].Message)

	assert.Equal(t, Medium, ws[1].Severity)
	assert.Equal(t, "PCN-2-1U filters required", ws[1].Message)
	assert.Equal(t, filters.PhaseCoalescer, ws[1].FilterType)

	assert.Equal(t, Low, ws[2].Severity)
	assert.Equal(t, filters.PremierPlus, ws[2].FilterType)
	assert.False(t, ws[2].MissingDispenserData)
}

func TestGenerate_WarningWithoutPartNumber(t *testing.T) {
	results := []filters.OrderResult{{
		Order:  models.WorkOrder{ID: "1", Dispensers: []models.Dispenser{{}}},
		Result: filters.Result{Warnings: []filters.CalcWarning{{Severity: 6}}},
	}}

	ws := Generate(results, nil)

	require.Len(t, ws, 1)
	assert.Equal(t, "Filters required", ws[0].Message)
	assert.Empty(t, ws[0].PartNumber)
	assert.Empty(t, ws[0].FilterType)
	assert.Equal(t, Medium, ws[0].Severity)
}

func TestGenerate_StableWithinSeverity(t *testing.T) {
	var results []filters.OrderResult
	for _, id := range []string{"a", "b", "c", "d"} {
		sev := 5.0
		if id == "c" {
			sev = 8
		}
		results = append(results, filters.OrderResult{
			Order:  models.WorkOrder{ID: id, Dispensers: []models.Dispenser{{}}},
			Result: filters.Result{Warnings: []filters.CalcWarning{{PartNumber: "PCP-2-1", Severity: sev}}},
		})
	}

	ws := Generate(results, nil)

	var ids []string
	for _, w := range ws {
		ids = append(ids, w.OrderID)
	}
	assert.Equal(t, []string{"c", "a", "b", "d"}, ids)
}

func TestGenerate_FallbackOrderProducesOneWarning(t *testing.T) {
	calc := filters.CalculatorFunc(func(ctx context.Context, o models.WorkOrder) (*filters.Result, error) {
		if o.ID == "bad" {
			return nil, errors.New("boom")
		}
		return &filters.Result{}, nil
	})
	orders := []models.WorkOrder{
		{ID: "ok", Dispensers: []models.Dispenser{{}}},
		{ID: "bad"},
	}
	out := filters.NewAggregator(calc).Run(context.Background(), orders)

	ws := Generate(out.Orders, nil)

	require.Len(t, ws, 1)
	assert.Equal(t, "bad", ws[0].OrderID)
	assert.Equal(t, filters.FallbackMessage, ws[0].Message)
	assert.Equal(t, Medium, ws[0].Severity)
	assert.Equal(t, filters.DefaultPartNumber, ws[0].PartNumber)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]FilterWarning{{Severity: High}, {Severity: Medium}, {Severity: Medium}, {Severity: Low}})
	assert.Equal(t, Summary{High: 1, Medium: 2, Low: 1}, s)
}

func fuelDEF() fueltype.FuelTypes {
	return fueltype.FuelTypes{HasDEF: true}
}
