// internal/workers/itinerary/generate-itinerary/handler.go
package generateitinerary

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/common/metrics"
	"itinerary-workers/internal/models"
	"itinerary-workers/internal/pipeline/workflow"
	"itinerary-workers/internal/store"
)

const (
	TaskType = "generate-itinerary"
)

type Generator interface {
	Generate(ctx context.Context, input string) (*workflow.Result, error)
}

type ItineraryArchive interface {
	Save(ctx context.Context, rec *store.Record) error
}

type VenueIndexer interface {
	IndexVenues(ctx context.Context, itineraryID, city string, venues []models.Venue) (int, error)
}

type Handler struct {
	config     *Config
	generator  Generator
	archive    ItineraryArchive
	venues     VenueIndexer
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

// NewHandler builds the handler. venues may be nil when no index is configured.
func NewHandler(config *Config, generator Generator, archive ItineraryArchive, venues VenueIndexer, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		generator:  generator,
		archive:    archive,
		venues:     venues,
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

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(client, job, apperrors.NewParseError(err), started)
		return
	}

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
	text := strings.TrimSpace(input.UserInput)
	if text == "" {
		return nil, apperrors.NewInvalidInputError("userInput is required")
	}
	if h.config.MaxInputSize > 0 && len(text) > h.config.MaxInputSize {
		return nil, apperrors.NewInvalidInputError("userInput is too long")
	}

	result, err := h.generator.Generate(ctx, text)
	if err != nil {
		return nil, err
	}
	it := result.Itinerary

	if err := h.archive.Save(ctx, &store.Record{
		ID:          it.ID,
		Itinerary:   it,
		Research:    result.Research,
		Request:     result.Request,
		DataQuality: result.DataQuality,
	}); err != nil {
		return nil, err
	}

	indexed := 0
	if h.config.IndexVenues && h.venues != nil && result.Research != nil {
		n, err := h.venues.IndexVenues(ctx, it.ID, it.Location, result.Research.Research.Venues)
		if err != nil {
			h.logger.Warn("venue indexing failed", map[string]interface{}{
				"error":       err,
				"itineraryId": it.ID,
			})
		}
		indexed = n
	}

	h.logger.Info("itinerary generated", map[string]interface{}{
		"itineraryId":  it.ID,
		"requestId":    input.RequestID,
		"days":         len(it.Days),
		"overallScore": result.DataQuality.OverallScore,
	})

	return &Output{
		ItineraryID:   it.ID,
		Itinerary:     it,
		DataQuality:   result.DataQuality,
		QualityStatus: result.Assessment.Overall.Status,
		Issues:        result.Issues,
		Suggestions:   result.Suggestions,
		IndexedVenues: indexed,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
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
