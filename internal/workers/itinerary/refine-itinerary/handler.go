// internal/workers/itinerary/refine-itinerary/handler.go
package refineitinerary

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
	TaskType = "refine-itinerary"
)

type Refiner interface {
	Refine(ctx context.Context, it *models.Itinerary, prompt string, scope models.RefinementScope, research *models.ResearchSummary) (*workflow.Result, error)
}

type ItineraryArchive interface {
	Load(ctx context.Context, id string) (*store.Record, error)
	UpdateItinerary(ctx context.Context, id string, it *models.Itinerary, quality models.DataQuality, refinementType string) error
}

type VenueSearcher interface {
	SearchVenues(ctx context.Context, city, query string, size int) ([]models.Venue, error)
}

type Handler struct {
	config     *Config
	refiner    Refiner
	archive    ItineraryArchive
	venues     VenueSearcher
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

// NewHandler builds the handler. venues may be nil when no index is configured.
func NewHandler(config *Config, refiner Refiner, archive ItineraryArchive, venues VenueSearcher, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		refiner:    refiner,
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
	if input.ItineraryID == "" {
		return nil, apperrors.NewInvalidInputError("itineraryId is required")
	}
	prompt := strings.TrimSpace(input.Prompt)
	if prompt == "" {
		return nil, apperrors.NewInvalidInputError("prompt is required")
	}
	if err := input.Scope.Validate(); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	rec, err := h.archive.Load(ctx, input.ItineraryID)
	if err != nil {
		return nil, err
	}

	research, source := h.research(ctx, rec, prompt)

	result, err := h.refiner.Refine(ctx, rec.Itinerary, prompt, input.Scope, research)
	if err != nil {
		return nil, err
	}

	if err := h.archive.UpdateItinerary(ctx, input.ItineraryID, result.Itinerary, result.DataQuality, result.RefinementType); err != nil {
		return nil, err
	}

	h.logger.Info("itinerary refined", map[string]interface{}{
		"itineraryId":    input.ItineraryID,
		"refinementType": result.RefinementType,
		"researchSource": source,
		"scope":          input.Scope.Type,
	})

	return &Output{
		ItineraryID:     input.ItineraryID,
		Itinerary:       result.Itinerary,
		RefinementType:  result.RefinementType,
		ResearchSource:  source,
		DataQuality:     result.DataQuality,
		RefinementCount: len(result.Itinerary.RefinementHistory),
	}, nil
}

// research picks the research a refinement works against: the archived
// summary first, then venues indexed for the same city.
func (h *Handler) research(ctx context.Context, rec *store.Record, prompt string) (*models.ResearchSummary, string) {
	if rec.Research != nil {
		return rec.Research, ResearchArchived
	}
	if !h.config.IndexedResearch || h.venues == nil || rec.Itinerary.Location == "" {
		return nil, ResearchNone
	}

	venues, err := h.venues.SearchVenues(ctx, rec.Itinerary.Location, prompt, h.config.IndexedVenues)
	if err != nil {
		h.logger.Warn("indexed venue lookup failed", map[string]interface{}{
			"error":       err,
			"itineraryId": rec.ID,
		})
		return nil, ResearchNone
	}
	if len(venues) == 0 {
		return nil, ResearchNone
	}
	return &models.ResearchSummary{
		Research: models.ConsolidatedResearch{Venues: venues},
	}, ResearchIndexed
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
