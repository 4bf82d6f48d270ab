// internal/workers/itinerary/export-itinerary/handler.go
package exportitinerary

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/common/metrics"
	"itinerary-workers/internal/models"
	"itinerary-workers/internal/pipeline/export"
	"itinerary-workers/internal/store"
)

const (
	TaskType = "export-itinerary"
)

type Exporter interface {
	Export(it *models.Itinerary, format string) (string, error)
}

type ItineraryLoader interface {
	Load(ctx context.Context, id string) (*store.Record, error)
}

type Handler struct {
	config     *Config
	exporter   Exporter
	archive    ItineraryLoader
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, exporter Exporter, archive ItineraryLoader, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		exporter:   exporter,
		archive:    archive,
		errHandler: apperrors.NewErrorHandler(l),
		logger:     l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(client, job, apperrors.NewParseError(err), started)
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
	metrics.JobCompleted(TaskType, started)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInvalidInputError("input cannot be nil")
	}

	name := input.Format
	if name == "" {
		name = h.config.DefaultFormat
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		return nil, err
	}

	it := input.Itinerary
	id := input.ItineraryID
	if it == nil {
		if id == "" {
			return nil, apperrors.NewInvalidInputError("itineraryId or itinerary is required")
		}
		rec, err := h.archive.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		it = rec.Itinerary
	} else if id == "" {
		id = it.ID
	}

	content, err := h.exporter.Export(it, string(format))
	if err != nil {
		return nil, err
	}

	h.logger.Info("itinerary exported", map[string]interface{}{
		"itineraryId": id,
		"format":      format,
		"size":        len(content),
	})

	return &Output{
		ItineraryID: id,
		Format:      string(format),
		ContentType: export.ContentType(format),
		Content:     content,
		Size:        len(content),
	}, nil
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
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) fail(client worker.JobClient, job entities.Job, err error, started time.Time) {
	metrics.JobFailed(TaskType, string(apperrors.CodeOf(err)), started)
	h.errHandler.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
