package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinerary-workers/internal/common/config"
	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/models"
	"itinerary-workers/internal/pipeline/extract"
	"itinerary-workers/internal/pipeline/finalize"
)

// ==========================
// Stage fakes
// ==========================

type fakeStages struct {
	calls      []string
	parseErr   error
	planErr    error
	refineErr  error
	refinement finalize.Refinement
	recovered  bool
}

func (f *fakeStages) Parse(ctx context.Context, input string) (*models.ParsedRequest, error) {
	f.calls = append(f.calls, "parse")
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return &models.ParsedRequest{Type: models.RequestTravel, Location: "Goa", Participants: 4, Duration: 2, Budget: 80000, Currency: "INR", RawInput: input}, nil
}

func (f *fakeStages) Suggest(ctx context.Context, req *models.ParsedRequest) (*models.ActivitySuggestions, bool) {
	f.calls = append(f.calls, "suggest")
	return &models.ActivitySuggestions{}, false
}

func (f *fakeStages) Run(ctx context.Context, req *models.ParsedRequest) []models.QueryOutcome {
	f.calls = append(f.calls, "search")
	return []models.QueryOutcome{
		{Results: []models.SearchResult{{URL: "https://a"}}},
		{Error: "timeout"},
	}
}

type fakeExtractor struct{ f *fakeStages }

func (x fakeExtractor) Run(ctx context.Context, outcomes []models.QueryOutcome, req *models.ParsedRequest) *extract.Result {
	x.f.calls = append(x.f.calls, "extract")
	return &extract.Result{
		Filtered: []models.ExtractedDocument{{URL: "https://a"}},
		Summary:  models.ExtractionSummary{TotalURLs: 4, Successful: 3},
	}
}

func (x fakeExtractor) Recover(ctx context.Context, r *extract.Result) *extract.Result {
	x.f.recovered = true
	return r
}

type fakeStructurer struct{ f *fakeStages }

func (s fakeStructurer) Run(ctx context.Context, docs []models.ExtractedDocument, req *models.ParsedRequest) []models.StructuredFinding {
	s.f.calls = append(s.f.calls, "structure")
	return []models.StructuredFinding{{Venues: []models.Venue{{Name: "Britto's"}}}}
}

type fakeSummarizer struct{ f *fakeStages }

func (s fakeSummarizer) Run(ctx context.Context, findings []models.StructuredFinding, sourceCount int, req *models.ParsedRequest) *models.ResearchSummary {
	s.f.calls = append(s.f.calls, "summarize")
	return &models.ResearchSummary{Research: models.ConsolidatedResearch{Venues: findings[0].Venues, SourceCount: sourceCount}}
}

func (f *fakeStages) Plan(ctx context.Context, req *models.ParsedRequest, suggestions *models.ActivitySuggestions, summary *models.ResearchSummary) (*models.Itinerary, error) {
	f.calls = append(f.calls, "plan")
	if f.planErr != nil {
		return nil, f.planErr
	}
	return &models.Itinerary{
		ID:       "itin-1",
		Title:    "Goa",
		Days:     []models.Day{{Day: 1}},
		Metadata: models.ItineraryMetadata{DataIntegrationScore: 30},
	}, nil
}

func (f *fakeStages) Finalize(ctx context.Context, it *models.Itinerary, summary *models.ResearchSummary, req *models.ParsedRequest) *models.Itinerary {
	f.calls = append(f.calls, "finalize")
	out := it.Clone()
	out.CompletionStatus = models.StatusCompleted
	return out
}

func (f *fakeStages) Refine(ctx context.Context, it *models.Itinerary, r finalize.Refinement) (*models.Itinerary, error) {
	f.calls = append(f.calls, "refine")
	f.refinement = r
	if f.refineErr != nil {
		return nil, f.refineErr
	}
	out := it.Clone()
	out.Metadata.DataIntegrationScore = 90
	return out, nil
}

func newService(t *testing.T, f *fakeStages, settings config.Settings, opts ...Option) *Service {
	stages := Stages{
		Parser:     f,
		Suggestor:  f,
		Searcher:   f,
		Extractor:  fakeExtractor{f},
		Structurer: fakeStructurer{f},
		Summarizer: fakeSummarizer{f},
		Planner:    f,
		Finalizer:  f,
	}
	return NewService(stages, settings, logger.NewTestLogger(t), opts...)
}

// ==========================
// Generate
// ==========================

func TestGenerate_RunsStagesInOrder(t *testing.T) {
	f := &fakeStages{}
	var seen []Transition
	svc := newService(t, f, config.Settings{}, WithObserver(func(tr Transition) { seen = append(seen, tr) }))

	result, err := svc.Generate(context.Background(), "4 friends, Goa, 2 days")
	require.NoError(t, err)

	assert.Equal(t, []string{"parse", "suggest", "search", "extract", "structure", "summarize", "plan", "finalize"}, f.calls)
	assert.False(t, f.recovered)

	assert.Equal(t, models.StatusCompleted, result.Itinerary.CompletionStatus)
	assert.Equal(t, "Goa", result.Request.Location)
	assert.Equal(t, 1, result.Research.Research.SourceCount)
	assert.Equal(t, models.DataQuality{SearchQuality: 50, ExtractionQuality: 75, IntegrationScore: 30, OverallScore: 54}, result.DataQuality)
	assert.Equal(t, StatusFair, result.Assessment.Overall.Status)
	assert.Len(t, result.Issues, 1)
	assert.Equal(t, StateCompleted, result.States[len(result.States)-1])

	require.NotEmpty(t, seen)
	assert.Equal(t, StateParsingInput, seen[0].To)
	assert.Equal(t, 10, seen[0].Progress)
	assert.Equal(t, 100, seen[len(seen)-1].Progress)
}

func TestGenerate_RetriesExtractionsWhenEnabled(t *testing.T) {
	f := &fakeStages{}
	svc := newService(t, f, config.Settings{RetryFailedExtractions: true})

	_, err := svc.Generate(context.Background(), "trip")
	require.NoError(t, err)
	assert.True(t, f.recovered)
}

func TestGenerate_ParseFailureStopsRun(t *testing.T) {
	f := &fakeStages{parseErr: apperrors.NewParseError(assert.AnError)}
	svc := newService(t, f, config.Settings{})

	result, err := svc.Generate(context.Background(), "???")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, apperrors.ErrCodeParse, apperrors.CodeOf(err))
	assert.Equal(t, []string{"parse"}, f.calls)
}

func TestGenerate_PlanningFailureIsFatal(t *testing.T) {
	f := &fakeStages{planErr: apperrors.NewPlanningFailedError(assert.AnError)}
	svc := newService(t, f, config.Settings{})

	m := svc.NewMachine()
	require.NoError(t, m.Send(context.Background(), Event{Type: EventGenerate, Input: "trip"}))
	assert.Equal(t, StateError, m.State())
	assert.Equal(t, apperrors.ErrCodePlanningFailed, apperrors.CodeOf(m.Context().Err))
	assert.NotContains(t, f.calls, "finalize")

	require.NoError(t, m.Send(context.Background(), Event{Type: EventRetry}))
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, "trip", m.Context().UserInput)
	assert.Nil(t, m.Context().Request)
}

func TestGenerate_CancelledContext(t *testing.T) {
	f := &fakeStages{}
	svc := newService(t, f, config.Settings{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Generate(ctx, "trip")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeTimeout, apperrors.CodeOf(err))
	assert.Empty(t, f.calls)
}

func TestMachine_RejectsEventsOutOfOrder(t *testing.T) {
	svc := newService(t, &fakeStages{}, config.Settings{})
	m := svc.NewMachine()

	err := m.Send(context.Background(), Event{Type: EventRetry})
	assert.Equal(t, apperrors.ErrCodeInvalidState, apperrors.CodeOf(err))
	assert.Equal(t, StateIdle, m.State())
}

// ==========================
// Refine
// ==========================

func TestRefine_ChoosesPathByResearch(t *testing.T) {
	it := &models.Itinerary{ID: "itin-1", Location: "Goa", Participants: 4, TotalBudget: 80000, Days: []models.Day{{Day: 1}, {Day: 2}}}
	scope := models.RefinementScope{Type: models.ScopeDay, DayNumber: 2}

	f := &fakeStages{}
	svc := newService(t, f, config.Settings{})

	basic, err := svc.Refine(context.Background(), it, "slower day 2", scope, nil)
	require.NoError(t, err)
	assert.Equal(t, finalize.RefinementBasic, basic.RefinementType)
	assert.Nil(t, f.refinement.Research)
	assert.Equal(t, scope, f.refinement.Scope)
	assert.Equal(t, 2, f.refinement.Request.Duration)
	assert.Equal(t, models.RequestTravel, f.refinement.Request.Type)
	assert.Equal(t, 90.0, basic.DataQuality.IntegrationScore)

	research := &models.ResearchSummary{}
	aware, err := svc.Refine(context.Background(), it, "slower day 2", scope, research)
	require.NoError(t, err)
	assert.Equal(t, finalize.RefinementResearch, aware.RefinementType)
	assert.Same(t, research, f.refinement.Research)
	assert.Contains(t, aware.States, StateRefiningWithResearch)
}

func TestRefine_FailureSurfaces(t *testing.T) {
	f := &fakeStages{refineErr: apperrors.NewRefinementFailedError(assert.AnError)}
	svc := newService(t, f, config.Settings{})

	_, err := svc.Refine(context.Background(), &models.Itinerary{Days: []models.Day{{}}}, "x", models.RefinementScope{}, nil)
	assert.Equal(t, apperrors.ErrCodeRefinementFailed, apperrors.CodeOf(err))

	_, err = svc.Refine(context.Background(), nil, "x", models.RefinementScope{}, nil)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))
}

func TestExport_Delegates(t *testing.T) {
	svc := newService(t, &fakeStages{}, config.Settings{})
	out, err := svc.Export(&models.Itinerary{Title: "Goa"}, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Goa\n===")
}
