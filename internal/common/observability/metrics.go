package observability

import (
	"context"
	"time"

	"fieldops-workers/internal/common/logger"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer

	jobCounter      otelmetric.Int64Counter
	jobDuration     otelmetric.Float64Histogram
	dashboardOrders otelmetric.Int64Histogram
}

type Option func(*options)

type options struct {
	registerer promclient.Registerer
	exporter   sdktrace.SpanExporter
	global     bool
}

// WithRegisterer sends OTel metrics to reg instead of the default registry.
func WithRegisterer(reg promclient.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithSpanExporter batches finished spans to exp. Without one, spans are
// created and sampled but not exported.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.exporter = exp }
}

// WithoutGlobal keeps the providers out of the otel globals.
func WithoutGlobal() Option {
	return func(o *options) { o.global = false }
}

// New sets up OTel metrics (exported through Prometheus) and tracing. If the
// exporter cannot be created, metrics are disabled and tracing still works.
func New(serviceName string, log logger.Logger, opts ...Option) *Observability {
	cfg := options{global: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	log = logger.OrNop(log)

	tpOpts := []sdktrace.TracerProviderOption{}
	if cfg.exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.exporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	o := &Observability{
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
	}
	if cfg.global {
		otel.SetTracerProvider(tp)
	}

	var promOpts []prometheus.Option
	if cfg.registerer != nil {
		promOpts = append(promOpts, prometheus.WithRegisterer(cfg.registerer))
	}
	exporter, err := prometheus.New(promOpts...)
	if err != nil {
		log.Warn("otel prometheus exporter unavailable", map[string]interface{}{"error": err.Error()})
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	if cfg.global {
		otel.SetMeterProvider(provider)
	}
	meter := provider.Meter(serviceName)

	o.meterProvider = provider
	o.meter = meter
	o.jobCounter, _ = meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	o.jobDuration, _ = meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	o.dashboardOrders, _ = meter.Int64Histogram(
		"dashboard.orders",
		otelmetric.WithDescription("Work orders per dashboard run"),
	)
	return o
}

// StartSpan starts a span named name as a child of any span in ctx.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o != nil && o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("task_type", taskType),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string) {
	if o != nil && o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("task_type", taskType),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordDashboard(ctx context.Context, orders int, source string) {
	if o != nil && o.dashboardOrders != nil {
		o.dashboardOrders.Record(ctx, int64(orders), otelmetric.WithAttributes(
			attribute.String("source", source),
		))
	}
}

// ForceFlush exports finished spans that are still buffered.
func (o *Observability) ForceFlush(ctx context.Context) error {
	if o == nil || o.tracerProvider == nil {
		return nil
	}
	return o.tracerProvider.ForceFlush(ctx)
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	var firstErr error
	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
