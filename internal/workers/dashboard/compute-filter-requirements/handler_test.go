package computefilterrequirements

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fieldops-workers/internal/analytics/filters"
	"fieldops-workers/internal/common/config"
	apperrors "fieldops-workers/internal/common/errors"
	"fieldops-workers/internal/common/logger"
	"fieldops-workers/internal/models"
)

func createTestConfig() *Config {
	return &Config{
		Timeout:      5 * time.Second,
		Parallelism:  2,
		FallbackPart: filters.DefaultPartNumber,
	}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

// defCalculator asks for one DEF filter and one particulate filter per order.
func defCalculator() filters.Calculator {
	return filters.CalculatorFunc(func(ctx context.Context, o models.WorkOrder) (*filters.Result, error) {
		if o.ID == "broken" {
			return nil, errors.New("calculator unavailable")
		}
		return &filters.Result{
			DieselFilters: 2,
			Warnings: []filters.CalcWarning{
				{PartNumber: "DEF-10", Severity: 9, Quantity: 4},
				{PartNumber: "800-HF", Severity: 2},
			},
		}, nil
	})
}

func TestHandler_Execute_DEFAndParticulate(t *testing.T) {
	h := NewHandler(createTestConfig(), defCalculator(), createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		Orders: json.RawMessage(`[
			{"id":"1","customerName":"Love's","storeNumber":"301","dispensers":[{"fields":{"Grade":"DEF"}}]},
			{"id":"2","customerName":"Pilot","storeNumber":"77","instructions":"diesel only"}
		]`),
	})
	require.NoError(t, err)

	needs := map[filters.FilterType]filters.FilterNeed{}
	for _, n := range out.FilterNeeds {
		needs[n.FilterType] = n
	}

	require.Contains(t, needs, filters.DEF)
	assert.Equal(t, 4, needs[filters.DEF].Quantity)
	assert.Equal(t, []string{"Love's #301"}, needs[filters.DEF].Stores)

	// Order 2 has no DEF evidence, so its DEF part is counted as particulate.
	particulate := 0
	for _, n := range out.FilterNeeds {
		if n.FilterType == filters.Particulate {
			particulate += n.Quantity
		}
	}
	assert.Equal(t, 6, particulate)

	assert.Equal(t, 2, out.WarningSummary.High)
	assert.Equal(t, 2, out.WarningSummary.Low)
	assert.Equal(t, "high", string(out.Warnings[0].Severity))
	assert.Equal(t, 0, out.FallbackOrders)
	assert.Equal(t, filters.Totals{DieselFilters: 4}, out.FilterTotals)

	boxes := 0
	for _, n := range out.FilterNeeds {
		boxes += n.Boxes()
	}
	assert.Equal(t, boxes, out.TotalBoxes)
}

func TestHandler_Execute_FallbackOrder(t *testing.T) {
	h := NewHandler(createTestConfig(), defCalculator(), createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		Orders:     json.RawMessage(`[{"id":"broken","customerName":"Store 7"}]`),
		Dispensers: json.RawMessage(`{"broken":[{"make":"Wayne"}]}`),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, out.FallbackOrders)
	require.Len(t, out.FilterNeeds, 1)
	assert.Equal(t, filters.DefaultPartNumber, out.FilterNeeds[0].PartNumber)
	assert.Equal(t, 1, out.FilterNeeds[0].Quantity)
	assert.Equal(t, 1, out.TotalBoxes)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, filters.FallbackMessage, out.Warnings[0].Message)
	assert.Equal(t, "medium", string(out.Warnings[0].Severity))
}

func TestHandler_Execute_EmptySnapshot(t *testing.T) {
	h := NewHandler(createTestConfig(), defCalculator(), createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Orders: json.RawMessage(`[]`)})
	require.NoError(t, err)
	assert.NotNil(t, out.FilterNeeds)
	assert.Empty(t, out.FilterNeeds)
	assert.Empty(t, out.Warnings)
	assert.Equal(t, 0, out.TotalBoxes)
}

func TestHandler_Execute_InvalidSnapshot(t *testing.T) {
	h := NewHandler(createTestConfig(), defCalculator(), createTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{Orders: json.RawMessage(`"orders"`)})
	require.Error(t, err)

	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeSnapshotInvalid, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(&config.Config{
		Analytics: config.AnalyticsConfig{CalculatorParallelism: 8, FallbackPartNumber: "PCP-10"},
	})
	assert.Equal(t, 8, cfg.Parallelism)
	assert.Equal(t, "PCP-10", cfg.FallbackPart)
	assert.Equal(t, 30*time.Second, cfg.Timeout)

	defaults := LoadConfig(nil)
	assert.Equal(t, filters.DefaultPartNumber, defaults.FallbackPart)
}
