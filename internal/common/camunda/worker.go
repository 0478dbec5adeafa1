// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"fieldops-workers/internal/common/config"
	"fieldops-workers/internal/common/errors"
	"fieldops-workers/internal/common/logger"
	"fieldops-workers/internal/common/metrics"
	"fieldops-workers/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// JobHandler completes or fails the job itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type HandlerFunc func(client worker.JobClient, job entities.Job)

func (f HandlerFunc) Handle(client worker.JobClient, job entities.Job) { f(client, job) }

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker for taskType. The handler is wrapped so that
// active jobs are tracked and a panic fails the job instead of the process.
func NewWorker(
	client zbc.Client,
	taskType string,
	cfg config.WorkerConfig,
	handler JobHandler,
	obs *observability.Observability,
	log logger.Logger,
) *CamundaWorker {
	log = logger.OrNop(log).WithFields(map[string]interface{}{"taskType": taskType})
	errHandler := errors.NewErrorHandler(log)

	onPanic := func(jc worker.JobClient, job entities.Job, err error) {
		errHandler.HandleJobError(context.Background(), jc, job, err)
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(instrument(taskType, handler, obs, onPanic)).
		MaxJobsActive(cfg.MaxJobsActive).
		Timeout(time.Duration(cfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started", map[string]interface{}{
		"maxJobsActive": cfg.MaxJobsActive,
		"timeout_ms":    cfg.Timeout,
	})

	return &CamundaWorker{
		worker:   jobWorker,
		logger:   log,
		taskType: taskType,
	}
}

func instrument(
	taskType string,
	handler JobHandler,
	obs *observability.Observability,
	onPanic func(worker.JobClient, entities.Job, error),
) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		active := metrics.WorkerJobsActive.WithLabelValues(taskType)
		active.Inc()
		defer active.Dec()

		ctx, span := obs.StartSpan(context.Background(), "job "+taskType,
			attribute.Int64("job.key", job.GetKey()),
			attribute.Int64("process.instance_key", job.GetProcessInstanceKey()),
		)
		started := time.Now()
		status := "handled"

		defer func() {
			if r := recover(); r != nil {
				status = "panicked"
				err := fmt.Errorf("handler for %s panicked: %v", taskType, r)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				onPanic(client, job, err)
			}
			obs.RecordJobProcessed(ctx, taskType, status)
			obs.RecordJobDuration(ctx, taskType, time.Since(started), status)
			span.End()
		}()

		handler.Handle(client, job)
	}
}

func (w *CamundaWorker) TaskType() string { return w.taskType }

// Stop closes the worker and waits for in-flight jobs.
func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
