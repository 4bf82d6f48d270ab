// internal/pipeline/workflow/stages.go
package workflow

import (
	"context"

	"itinerary-workers/internal/common/config"
	"itinerary-workers/internal/common/genai"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/common/websearch"
	"itinerary-workers/internal/models"
	"itinerary-workers/internal/pipeline/extract"
	"itinerary-workers/internal/pipeline/finalize"
	"itinerary-workers/internal/pipeline/parser"
	"itinerary-workers/internal/pipeline/planner"
	"itinerary-workers/internal/pipeline/search"
	"itinerary-workers/internal/pipeline/structure"
	"itinerary-workers/internal/pipeline/suggest"
	"itinerary-workers/internal/pipeline/summarize"
)

type RequestParser interface {
	Parse(ctx context.Context, input string) (*models.ParsedRequest, error)
}

type ActivitySuggestor interface {
	Suggest(ctx context.Context, req *models.ParsedRequest) (*models.ActivitySuggestions, bool)
}

type Searcher interface {
	Run(ctx context.Context, req *models.ParsedRequest) []models.QueryOutcome
}

type SourceExtractor interface {
	Run(ctx context.Context, outcomes []models.QueryOutcome, req *models.ParsedRequest) *extract.Result
	Recover(ctx context.Context, r *extract.Result) *extract.Result
}

type FindingExtractor interface {
	Run(ctx context.Context, docs []models.ExtractedDocument, req *models.ParsedRequest) []models.StructuredFinding
}

type ResearchSummarizer interface {
	Run(ctx context.Context, findings []models.StructuredFinding, sourceCount int, req *models.ParsedRequest) *models.ResearchSummary
}

type ItineraryPlanner interface {
	Plan(ctx context.Context, req *models.ParsedRequest, suggestions *models.ActivitySuggestions, summary *models.ResearchSummary) (*models.Itinerary, error)
}

type ItineraryFinalizer interface {
	Finalize(ctx context.Context, it *models.Itinerary, summary *models.ResearchSummary, req *models.ParsedRequest) *models.Itinerary
	Refine(ctx context.Context, it *models.Itinerary, r finalize.Refinement) (*models.Itinerary, error)
}

// Stages are the services the controller invokes on entering each state.
type Stages struct {
	Parser     RequestParser
	Suggestor  ActivitySuggestor
	Searcher   Searcher
	Extractor  SourceExtractor
	Structurer FindingExtractor
	Summarizer ResearchSummarizer
	Planner    ItineraryPlanner
	Finalizer  ItineraryFinalizer
}

// NewStages builds the production stages over one completion service and
// one discovery service.
func NewStages(completer genai.Completer, discovery websearch.Discovery, settings config.Settings, log logger.Logger) Stages {
	return Stages{
		Parser:     parser.New(completer, log),
		Suggestor:  suggest.New(completer, log),
		Searcher:   search.New(discovery, settings, log),
		Extractor:  extract.New(discovery, settings, log),
		Structurer: structure.New(completer, settings, log),
		Summarizer: summarize.New(completer, log),
		Planner:    planner.New(completer, settings, log),
		Finalizer:  finalize.New(completer, log),
	}
}
