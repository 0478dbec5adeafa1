// internal/workers/data-access/load-work-orders/handler.go
package loadworkorders

import (
	"context"
	"database/sql"
	"database/sql/driver"
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
	"fieldops-workers/internal/workers/data-access/load-work-orders/queries"
	"fieldops-workers/pkg/registry"
)

const (
	TaskType = "load-work-orders"

	cacheKeyPrefix = "snapshot:work-orders:"
)

type Handler struct {
	config    *Config
	db        *sql.DB
	cache     *database.RedisClient
	validator *validation.Schema
	errors    *errors.ErrorHandler
	logger    logger.Logger
}

// NewHandler builds the handler. cache may be nil.
func NewHandler(config *Config, db *sql.DB, cache *database.RedisClient, log logger.Logger) *Handler {
	log = logger.OrNop(log).WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		db:        db,
		cache:     cache,
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

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if res := h.validator.ValidateJSON([]byte(job.Variables)); !res.Valid {
		h.fail(client, job, errors.NewInvalidInputError(res.Error()), started)
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(client, job, errors.NewInvalidInputError(err.Error()), started)
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(client, job, err, started)
		return
	}

	h.completeJob(client, job, output)
	metrics.ObserveJob(TaskType, "", started)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	params := queries.Params{SnapshotID: input.SnapshotID, Source: input.Source}
	if params.Source == "" {
		params.Source = h.config.Source
	}

	key := cacheKey(params)
	if out, ok := h.fromCache(ctx, key); ok {
		return out, nil
	}

	snap, execTime, err := queries.Execute(ctx, h.db, h.config.Table, params)
	if err != nil {
		return nil, h.mapQueryError(ctx, err, params)
	}

	orders, err := engine.ParseSnapshot(snap.Payload)
	if err != nil {
		return nil, errors.NewSnapshotInvalidError(err.Error(), err).WithMetadata("snapshotId", snap.ID)
	}
	metrics.SnapshotLoads.WithLabelValues("work_orders", "database").Inc()

	h.logger.Info("snapshot loaded", map[string]interface{}{
		"snapshotId":         snap.ID,
		"source":             snap.Source,
		"orders":             len(orders),
		"queryExecutionTime": execTime,
	})

	output := &Output{
		Orders:     snap.Payload,
		SnapshotID: snap.ID,
		Source:     snap.Source,
		CapturedAt: snap.CapturedAt.UTC(),
		OrderCount: len(orders),
	}
	h.toCache(ctx, key, output)
	return output, nil
}

func (h *Handler) mapQueryError(ctx context.Context, err error, params queries.Params) error {
	switch {
	case stderrors.Is(err, queries.ErrSnapshotNotFound):
		return errors.NewSnapshotNotFoundError(params.SnapshotID)
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.NewQueryTimeoutError("work_order_snapshot")
	case isConnectionError(err):
		return errors.NewDatabaseConnectionFailedError(err)
	default:
		return errors.NewSnapshotLoadFailedError(err)
	}
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	return stderrors.Is(err, driver.ErrBadConn) || stderrors.As(err, &opErr)
}

func cacheKey(p queries.Params) string {
	if p.Mode() == queries.ModeByID {
		return cacheKeyPrefix + "id:" + p.SnapshotID
	}
	return cacheKeyPrefix + "latest:" + p.Source
}

func (h *Handler) fromCache(ctx context.Context, key string) (*Output, bool) {
	if h.cache == nil || h.config.CacheTTL <= 0 {
		return nil, false
	}
	var out Output
	err := h.cache.GetJSON(ctx, key, &out)
	if err != nil {
		if !stderrors.Is(err, database.ErrCacheMiss) {
			h.logger.Warn("snapshot cache read failed", map[string]interface{}{"key": key, "error": err})
		}
		return nil, false
	}
	metrics.SnapshotLoads.WithLabelValues("work_orders", "cache").Inc()
	out.FromCache = true
	return &out, true
}

func (h *Handler) toCache(ctx context.Context, key string, out *Output) {
	if h.cache == nil || h.config.CacheTTL <= 0 {
		return
	}
	if err := h.cache.SetJSON(ctx, key, out, h.config.CacheTTL); err != nil {
		h.logger.Warn("snapshot cache write failed", map[string]interface{}{"key": key, "error": err})
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
