// internal/workers/dashboard/compute-dashboard/handler.go
package computedashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"

	"fieldops-workers/internal/analytics/classify"
	"fieldops-workers/internal/analytics/engine"
	"fieldops-workers/internal/analytics/memo"
	"fieldops-workers/internal/analytics/window"
	"fieldops-workers/internal/common/errors"
	"fieldops-workers/internal/common/logger"
	"fieldops-workers/internal/common/metrics"
	"fieldops-workers/internal/common/observability"
	"fieldops-workers/internal/common/validation"
	"fieldops-workers/pkg/registry"
)

const (
	TaskType = "compute-dashboard"
)

// Computer produces dashboards. *memo.Memoizer implements it.
type Computer interface {
	Compute(ctx context.Context, req engine.Request) (*memo.Result, error)
}

type Handler struct {
	config    *Config
	computer  Computer
	obs       *observability.Observability
	validator *validation.Schema
	errors    *errors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, computer Computer, obs *observability.Observability, log logger.Logger) *Handler {
	log = logger.OrNop(log).WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		computer:  computer,
		obs:       obs,
		validator: registry.MustInputValidator(TaskType),
		errors:    errors.NewErrorHandler(log),
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	if res := h.validator.ValidateJSON([]byte(job.Variables)); !res.Valid {
		h.fail(client, job, errors.NewInvalidInputError(res.Error()), started)
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(client, job, errors.NewInvalidInputError(err.Error()), started)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(client, job, err, started)
		return
	}

	h.completeJob(client, job, output)
	metrics.ObserveJob(TaskType, "", started)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("input cannot be nil")
	}

	req, err := h.buildRequest(input)
	if err != nil {
		return nil, err
	}

	ctx, span := h.obs.StartSpan(ctx, "dashboard.compute", attribute.Int("orders", len(req.Orders)))
	defer span.End()

	start := time.Now()
	res, err := h.computer.Compute(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, errors.NewDashboardComputeFailedError(err)
	}

	source := string(res.Source)
	span.SetAttributes(attribute.String("dashboard.source", source))
	h.observe(ctx, res, len(req.Orders), time.Since(start))

	h.logger.Info("dashboard ready", map[string]interface{}{
		"runId":     res.Dashboard.RunID,
		"source":    source,
		"orders":    len(req.Orders),
		"thisWeek":  res.Dashboard.Categories.ThisWeek,
		"nextWeek":  res.Dashboard.Categories.NextWeek,
		"warnings":  len(res.Dashboard.Warnings),
		"signature": res.Signature,
	})

	return &Output{
		Dashboard:          res.Dashboard,
		DashboardSource:    source,
		DashboardSignature: res.Signature,
	}, nil
}

func (h *Handler) buildRequest(input *Input) (engine.Request, error) {
	orders, err := engine.ParseSnapshot(input.Orders)
	if err != nil {
		return engine.Request{}, errors.NewSnapshotInvalidError(err.Error(), err)
	}
	dispensers, err := engine.ParseDispenserSnapshot(input.Dispensers)
	if err != nil {
		return engine.Request{}, errors.NewSnapshotInvalidError(err.Error(), err).
			WithMetadata("snapshot", "dispensers")
	}

	req := engine.NewRequest(orders, dispensers)
	if req.WeekStart, err = window.ParseWeekdayOr(string(input.WeekStart), h.config.WeekStart); err != nil {
		return engine.Request{}, errors.NewInvalidInputError("weekStart: " + err.Error())
	}
	if req.WeekEnd, err = window.ParseWeekdayOr(string(input.WeekEnd), h.config.WeekEnd); err != nil {
		return engine.Request{}, errors.NewInvalidInputError("weekEnd: " + err.Error())
	}

	req.Location = h.config.Location
	if input.Timezone != "" {
		loc, err := time.LoadLocation(input.Timezone)
		if err != nil {
			return engine.Request{}, errors.NewInvalidInputError(fmt.Sprintf("timezone: %v", err))
		}
		req.Location = loc
	}

	if input.Anchor != "" {
		anchor, ok := classify.ParseDate(input.Anchor, req.Location)
		if !ok {
			return engine.Request{}, errors.NewInvalidInputError(fmt.Sprintf("anchor: unrecognized date %q", input.Anchor))
		}
		req.Anchor = anchor
	}
	return req, nil
}

func (h *Handler) observe(ctx context.Context, res *memo.Result, orders int, took time.Duration) {
	metrics.DashboardResults.WithLabelValues(string(res.Source)).Inc()
	h.obs.RecordDashboard(ctx, orders, string(res.Source))

	if res.Source != memo.SourceComputed {
		return
	}
	metrics.DashboardComputeDuration.Observe(took.Seconds())
	metrics.DashboardOrders.Observe(float64(orders))
	metrics.FilterFallbacks.Add(float64(res.Dashboard.Diagnostics.FallbackOrders))
	for _, w := range res.Dashboard.Warnings {
		metrics.FilterWarnings.WithLabelValues(string(w.Severity)).Inc()
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) fail(client worker.JobClient, job entities.Job, err error, started time.Time) {
	code := string(errors.ErrCodeInternal)
	if stdErr, ok := errors.AsStandardError(err); ok {
		code = string(stdErr.Code)
	}
	metrics.ObserveJob(TaskType, code, started)
	h.errors.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
