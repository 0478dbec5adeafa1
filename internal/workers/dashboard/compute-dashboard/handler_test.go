package computedashboard

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"fieldops-workers/internal/analytics/engine"
	"fieldops-workers/internal/analytics/filters"
	"fieldops-workers/internal/analytics/memo"
	"fieldops-workers/internal/common/config"
	apperrors "fieldops-workers/internal/common/errors"
	"fieldops-workers/internal/common/logger"
	"fieldops-workers/internal/common/observability"
	"fieldops-workers/internal/models"
)

const testOrders = `[
	{"id":"1","customerName":"7-Eleven","storeNumber":"1001","scheduledDate":"2024-03-05"},
	{"id":"2","customerName":"Circle K","storeNumber":2741,"visits":{"nextVisit":{"date":"2024-03-13"}}},
	{"id":"3","customerName":"Wawa","createdDate":"2024-04-20"},
	{"id":"4","customerName":"Speedway","scheduledDate":"TBD"}
]`

const testDispensers = `{
	"1": [{"make":"Gilbarco","fields":{"Grade":"DEF"}}],
	"2": [{"make":"Wayne"}]
}`

func createTestConfig() *Config {
	return &Config{
		Timeout:   5 * time.Second,
		WeekStart: time.Monday,
		WeekEnd:   time.Friday,
		Location:  time.UTC,
	}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

// standardCalculator only knows the equipment of orders 1 and 2.
func standardCalculator() filters.Calculator {
	return filters.CalculatorFunc(func(ctx context.Context, o models.WorkOrder) (*filters.Result, error) {
		if o.ID != "1" && o.ID != "2" {
			return &filters.Result{}, nil
		}
		return &filters.Result{Warnings: []filters.CalcWarning{{PartNumber: "PCP-2-1", Severity: 8, Quantity: 2}}}, nil
	})
}

func createTestHandler(t *testing.T, obs *observability.Observability) *Handler {
	log := createTestLogger(t)
	eng := engine.New(standardCalculator(), log)
	m := memo.New(eng, nil, memo.Config{LocalEntries: 4}, log)
	return NewHandler(createTestConfig(), m, obs, log)
}

func TestHandler_Execute_Success(t *testing.T) {
	h := createTestHandler(t, nil)

	out, err := h.Execute(context.Background(), &Input{
		Orders:     json.RawMessage(testOrders),
		Dispensers: json.RawMessage(testDispensers),
		Anchor:     "2024-03-06",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Dashboard)

	d := out.Dashboard
	assert.Equal(t, "computed", out.DashboardSource)
	assert.NotEmpty(t, out.DashboardSignature)
	assert.Equal(t, 4, d.Categories.Total)
	assert.Equal(t, 1, d.Categories.ThisWeek)
	assert.Equal(t, 1, d.Categories.NextWeek)
	assert.Equal(t, 1, d.Categories.Future)
	assert.Equal(t, 1, d.Categories.Unscheduled)
	assert.Equal(t, "Mar 4 - Mar 8", d.Windows.CurrentWeek.Label())

	require.Len(t, d.FilterNeeds, 1)
	assert.Equal(t, 4, d.FilterNeeds[0].Quantity)
	assert.Equal(t, 1, d.FilterNeeds[0].BoxesNeeded)
	assert.Equal(t, []string{"7-Eleven #1001", "Circle K #2741"}, d.FilterNeeds[0].Stores)

	// Orders 3 and 4 have neither a dispenser scrape nor calculator output.
	missing := 0
	for _, w := range d.Warnings {
		if w.MissingDispenserData {
			missing++
		}
	}
	assert.Equal(t, 2, missing)
}

func TestHandler_Execute_MemoizedSecondCall(t *testing.T) {
	h := createTestHandler(t, nil)
	input := &Input{Orders: json.RawMessage(testOrders), Anchor: "2024-03-06"}

	first, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	second, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "local", second.DashboardSource)
	assert.Equal(t, first.DashboardSignature, second.DashboardSignature)
	assert.Equal(t, first.Dashboard.RunID, second.Dashboard.RunID)
}

func TestHandler_Execute_WeekOverride(t *testing.T) {
	h := createTestHandler(t, nil)

	out, err := h.Execute(context.Background(), &Input{
		Orders:    json.RawMessage(`[]`),
		WeekStart: "sun",
		WeekEnd:   "6",
		Anchor:    "2024-03-06",
		Timezone:  "America/Chicago",
	})
	require.NoError(t, err)

	start := out.Dashboard.Windows.CurrentWeek.Start
	assert.Equal(t, time.Sunday, start.Weekday())
	assert.Equal(t, 3, start.Day())
	assert.Equal(t, "America/Chicago", start.Location().String())
}

func TestHandler_Execute_InputErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		wantCode apperrors.ErrorCode
	}{
		{"orders not an array", &Input{Orders: json.RawMessage(`{"id":"1"}`)}, apperrors.ErrCodeSnapshotInvalid},
		{"order not an object", &Input{Orders: json.RawMessage(`[1,2]`)}, apperrors.ErrCodeSnapshotInvalid},
		{"dispensers malformed", &Input{Orders: json.RawMessage(`[]`), Dispensers: json.RawMessage(`[1]`)}, apperrors.ErrCodeSnapshotInvalid},
		{"bad week start", &Input{Orders: json.RawMessage(`[]`), WeekStart: "someday"}, apperrors.ErrCodeInvalidInput},
		{"bad timezone", &Input{Orders: json.RawMessage(`[]`), Timezone: "Mars/Olympus"}, apperrors.ErrCodeInvalidInput},
		{"bad anchor", &Input{Orders: json.RawMessage(`[]`), Anchor: "next tuesday"}, apperrors.ErrCodeInvalidInput},
	}

	h := createTestHandler(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)

			stdErr, ok := apperrors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.False(t, stdErr.Retryable)
		})
	}
}

type failingComputer struct{}

func (failingComputer) Compute(ctx context.Context, req engine.Request) (*memo.Result, error) {
	return nil, errors.New("engine exploded")
}

func TestHandler_Execute_ComputeFailure(t *testing.T) {
	h := NewHandler(createTestConfig(), failingComputer{}, nil, createTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{Orders: json.RawMessage(`[]`)})
	require.Error(t, err)

	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeDashboardComputeFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestHandler_Execute_RecordsSpan(t *testing.T) {
	spans := tracetest.NewInMemoryExporter()
	obs := observability.New("compute-dashboard-test", createTestLogger(t),
		observability.WithRegisterer(promclient.NewRegistry()),
		observability.WithSpanExporter(spans),
		observability.WithoutGlobal(),
	)
	h := createTestHandler(t, obs)

	_, err := h.Execute(context.Background(), &Input{Orders: json.RawMessage(testOrders), Anchor: "2024-03-06"})
	require.NoError(t, err)

	require.NoError(t, obs.ForceFlush(context.Background()))
	got := spans.GetSpans()
	require.Len(t, got, 1)
	assert.Equal(t, "dashboard.compute", got[0].Name)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(&config.Config{
		Analytics: config.AnalyticsConfig{WeekStart: "tuesday", WeekEnd: "saturday", Timezone: "America/New_York"},
		Workers:   map[string]config.WorkerConfig{TaskType: {Timeout: 15000}},
	})
	require.NoError(t, err)
	assert.Equal(t, time.Tuesday, cfg.WeekStart)
	assert.Equal(t, time.Saturday, cfg.WeekEnd)
	assert.Equal(t, "America/New_York", cfg.Location.String())
	assert.Equal(t, 15*time.Second, cfg.Timeout)

	_, err = LoadConfig(&config.Config{Analytics: config.AnalyticsConfig{WeekStart: "funday"}})
	assert.Error(t, err)
}
