// internal/workers/data-access/load-dispenser-snapshot/handler.go
package loaddispensersnapshot

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"fieldops-workers/internal/analytics/engine"
	"fieldops-workers/internal/common/database"
	"fieldops-workers/internal/common/errors"
	"fieldops-workers/internal/common/logger"
	"fieldops-workers/internal/common/metrics"
	"fieldops-workers/internal/common/validation"
	"fieldops-workers/internal/models"
	"fieldops-workers/internal/workers/data-access/load-dispenser-snapshot/queries"
	"fieldops-workers/pkg/registry"
)

const (
	TaskType = "load-dispenser-snapshot"
)

type Handler struct {
	config    *Config
	client    *database.ElasticsearchClient
	validator *validation.Schema
	errors    *errors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, client *database.ElasticsearchClient, log logger.Logger) *Handler {
	log = logger.OrNop(log).WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		client:    client,
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

	ids, err := orderIDs(input)
	if err != nil {
		return nil, err
	}

	output := &Output{
		Dispensers:      models.DispenserSnapshot{},
		RequestedOrders: len(ids),
	}
	if len(ids) == 0 {
		return output, nil
	}

	start := time.Now()
	for _, batch := range queries.Chunk(ids, h.config.BatchSize) {
		if err := h.searchBatch(ctx, batch, output.Dispensers); err != nil {
			return nil, err
		}
	}
	output.Took = time.Since(start).Milliseconds()
	output.MatchedOrders = len(output.Dispensers)
	metrics.SnapshotLoads.WithLabelValues("dispensers", "search").Inc()

	h.logger.Info("dispenser snapshot loaded", map[string]interface{}{
		"requested": output.RequestedOrders,
		"matched":   output.MatchedOrders,
		"took":      output.Took,
	})
	return output, nil
}

func (h *Handler) searchBatch(ctx context.Context, ids []string, into models.DispenserSnapshot) error {
	body, err := queries.DispenserQuery(ids)
	if err != nil {
		return errors.NewInvalidInputError(err.Error())
	}

	result, err := h.client.Search(ctx, h.config.Index, body)
	if err != nil {
		return h.mapSearchError(ctx, err)
	}

	for _, hit := range result.Hits {
		orderID, dispensers, err := queries.DecodeHit(hit.Source)
		if err != nil {
			h.logger.Warn("skipping dispenser scrape", map[string]interface{}{
				"docId": hit.ID,
				"error": err,
			})
			continue
		}
		// Hits are collapsed per order and sorted newest first.
		if _, seen := into[orderID]; !seen {
			into[orderID] = dispensers
		}
	}
	return nil
}

func (h *Handler) mapSearchError(ctx context.Context, err error) error {
	var opErr *net.OpError
	switch {
	case stderrors.Is(err, database.ErrIndexNotFound):
		return errors.NewIndexNotFoundError(h.config.Index)
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.NewSearchTimeoutError(h.config.Index)
	case stderrors.As(err, &opErr):
		return errors.NewElasticsearchConnectionFailedError(err)
	default:
		return errors.NewDispenserSearchFailedError(err)
	}
}

// orderIDs returns the distinct requested ids in input order. Explicit ids
// win over ids read from an order snapshot.
func orderIDs(input *Input) ([]string, error) {
	var raw []string
	if len(input.OrderIDs) > 0 {
		for _, id := range input.OrderIDs {
			raw = append(raw, string(id))
		}
	} else if len(input.Orders) > 0 && !bytes.Equal(bytes.TrimSpace(input.Orders), []byte("null")) {
		orders, err := engine.ParseSnapshot(input.Orders)
		if err != nil {
			return nil, errors.NewSnapshotInvalidError(err.Error(), err)
		}
		for _, o := range orders {
			raw = append(raw, o.ID)
		}
	}

	seen := make(map[string]bool, len(raw))
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
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
