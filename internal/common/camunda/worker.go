// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel/attribute"

	"itinerary-workers/internal/common/config"
	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/common/observability"
)

// VariableValidator checks job variables before a handler sees them.
type VariableValidator interface {
	Validate(taskType string, variables string) error
}

// Registration is everything needed to open one job worker.
type Registration struct {
	TaskType  string
	Config    config.WorkerConfig
	Handler   worker.JobHandler
	Validator VariableValidator
	Obs       *observability.Observability
}

// Register opens a job worker for reg.TaskType. A disabled worker returns nil.
func Register(client zbc.Client, reg Registration, log logger.Logger) worker.JobWorker {
	l := log.WithFields(map[string]interface{}{"taskType": reg.TaskType})
	if !reg.Config.Enabled {
		l.Info("worker disabled", nil)
		return nil
	}

	handler := Wrap(reg.TaskType, reg.Handler, reg.Validator, reg.Obs, l)

	jobWorker := client.NewJobWorker().
		JobType(reg.TaskType).
		Handler(handler).
		MaxJobsActive(reg.Config.MaxJobsActive).
		Timeout(config.GetDuration(reg.Config.Timeout)).
		Open()

	l.Info("worker started", map[string]interface{}{
		"maxJobsActive": reg.Config.MaxJobsActive,
		"timeout_ms":    reg.Config.Timeout,
	})
	return jobWorker
}

// Wrap puts schema validation and tracing in front of next. Jobs whose
// variables fail validation are rejected as INVALID_INPUT without reaching next.
func Wrap(taskType string, next worker.JobHandler, validator VariableValidator, obs *observability.Observability, log logger.Logger) worker.JobHandler {
	errHandler := apperrors.NewErrorHandler(log)

	return func(client worker.JobClient, job entities.Job) {
		started := time.Now()
		ctx, end := obs.StartSpan(context.Background(), "job "+taskType,
			attribute.String("task_type", taskType),
			attribute.Int64("job_key", job.Key),
		)
		defer end()

		status := "handled"
		defer func() {
			obs.RecordJobProcessed(ctx, taskType, status)
			obs.RecordJobDuration(ctx, taskType, time.Since(started), status)
		}()

		if validator != nil {
			if err := validator.Validate(taskType, job.Variables); err != nil {
				status = "rejected"
				errHandler.HandleJobError(ctx, client, job, apperrors.NewInvalidInputError(err.Error()))
				return
			}
		}

		next(client, job)
	}
}
