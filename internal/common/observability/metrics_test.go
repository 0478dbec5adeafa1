package observability

import (
	"context"
	"strings"
	"testing"
	"time"

	"fieldops-workers/internal/common/logger"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestObservability_MetricsAndSpans(t *testing.T) {
	reg := promclient.NewRegistry()
	spans := tracetest.NewInMemoryExporter()
	o := New("fieldops-test", logger.NewTestLogger(t), WithRegisterer(reg), WithSpanExporter(spans), WithoutGlobal())
	ctx := context.Background()

	spanCtx, span := o.StartSpan(ctx, "compute-dashboard", attribute.Int("orders", 3))
	assert.True(t, span.SpanContext().IsValid())
	o.RecordJobProcessed(spanCtx, "compute-dashboard", "completed")
	o.RecordJobDuration(spanCtx, "compute-dashboard", 120*time.Millisecond, "completed")
	o.RecordDashboard(spanCtx, 3, "computed")
	span.End()

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "jobs_processed")
	assert.Contains(t, joined, "dashboard_orders")

	require.NoError(t, o.ForceFlush(ctx))
	got := spans.GetSpans()
	require.Len(t, got, 1)
	assert.Equal(t, "compute-dashboard", got[0].Name)

	require.NoError(t, o.Shutdown(ctx))
}

func TestObservability_NilSafe(t *testing.T) {
	var o *Observability
	ctx, span := o.StartSpan(context.Background(), "noop")
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
	o.RecordJobProcessed(ctx, "x", "failed")
	assert.NoError(t, o.Shutdown(ctx))
}
