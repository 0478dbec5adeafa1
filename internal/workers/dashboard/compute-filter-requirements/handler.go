// internal/workers/dashboard/compute-filter-requirements/handler.go
package computefilterrequirements

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"fieldops-workers/internal/analytics/engine"
	"fieldops-workers/internal/analytics/filters"
	"fieldops-workers/internal/analytics/warnings"
	"fieldops-workers/internal/common/errors"
	"fieldops-workers/internal/common/logger"
	"fieldops-workers/internal/common/metrics"
	"fieldops-workers/internal/common/validation"
	"fieldops-workers/pkg/registry"
)

const (
	TaskType = "compute-filter-requirements"
)

// Handler runs only the filter view: per-order calculation, aggregation into
// needs, and verification warnings.
type Handler struct {
	config     *Config
	aggregator *filters.Aggregator
	validator  *validation.Schema
	errors     *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, calc filters.Calculator, log logger.Logger) *Handler {
	log = logger.OrNop(log).WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		aggregator: filters.NewAggregator(calc,
			filters.WithParallelism(config.Parallelism),
			filters.WithFallbackPart(config.FallbackPart),
		),
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

	orders, err := engine.ParseSnapshot(input.Orders)
	if err != nil {
		return nil, errors.NewSnapshotInvalidError(err.Error(), err)
	}
	dispensers, err := engine.ParseDispenserSnapshot(input.Dispensers)
	if err != nil {
		return nil, errors.NewSnapshotInvalidError(err.Error(), err).WithMetadata("snapshot", "dispensers")
	}

	outcome := h.aggregator.Run(ctx, orders)
	ws := warnings.Generate(outcome.Orders, dispensers)

	output := &Output{
		FilterNeeds:    outcome.Needs,
		Warnings:       ws,
		WarningSummary: warnings.Summarize(ws),
		FilterTotals:   outcome.Totals(),
		FallbackOrders: outcome.FallbackCount(),
	}
	if output.FilterNeeds == nil {
		output.FilterNeeds = []filters.FilterNeed{}
	}
	for _, need := range output.FilterNeeds {
		output.TotalBoxes += need.BoxesNeeded
	}

	metrics.FilterFallbacks.Add(float64(output.FallbackOrders))
	for _, w := range ws {
		metrics.FilterWarnings.WithLabelValues(string(w.Severity)).Inc()
	}
	if output.FallbackOrders > 0 {
		h.logger.Warn("filter calculator failed for some orders", map[string]interface{}{
			"fallbackOrders": output.FallbackOrders,
			"orders":         len(orders),
		})
	}
	h.logger.Info("filter requirements computed", map[string]interface{}{
		"orders":      len(orders),
		"filterNeeds": len(output.FilterNeeds),
		"totalBoxes":  output.TotalBoxes,
		"warnings":    len(ws),
	})
	return output, nil
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
