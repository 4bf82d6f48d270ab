package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinerary-workers/internal/common/backoff"
	"itinerary-workers/internal/common/config"
	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/common/genai"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/models"
)

type scriptedCompleter struct {
	responses []string
	errs      []error
	requests  []genai.Request
}

func (s *scriptedCompleter) Complete(ctx context.Context, req genai.Request) (string, error) {
	i := len(s.requests)
	s.requests = append(s.requests, req)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], err
	}
	return "", err
}

var fixedNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func newPlanner(t *testing.T, c genai.Completer, recorder *backoff.Recorder) *Planner {
	return New(c, config.DefaultPipeline().Settings(), logger.NewTestLogger(t),
		WithSleeper(recorder.Sleep),
		WithClock(func() time.Time { return fixedNow }),
		WithIDs(func() string { return "itin-1" }))
}

func corporateRequest() *models.ParsedRequest {
	return &models.ParsedRequest{
		Type:         models.RequestCorporate,
		Location:     "Bangalore",
		Participants: 50,
		Duration:     2,
		Budget:       150000,
		Currency:     "INR",
		EventType:    "training",
	}
}

func researchSummary() *models.ResearchSummary {
	return &models.ResearchSummary{
		Research: models.ConsolidatedResearch{
			Venues: []models.Venue{
				{Name: "Taj West End", Type: "hotel"},
				{Name: "Lakeside Conference Centre", Type: "venue"},
				{Name: "Karavalli", Type: "restaurant"},
				{Name: "Nandi Hills Sunrise Point", Type: "attraction"},
			},
			Activities: []models.Activity{
				{Name: "Drum circle", Type: "team_building", Location: "Whitefield"},
				{Name: "Palace tour", Type: "cultural", Location: "Bangalore Palace", Requirements: models.FlexList{"ID proof"}},
			},
		},
		Logistics: models.LogisticsSummary{LocalFactors: models.LocalFactors{Weather: "Pleasant"}},
	}
}

const generated = `{
  "id": "model-chosen",
  "title": "Bangalore Leadership Training",
  "totalBudget": "1,45,000",
  "days": [
    {"day": 1, "theme": "Kickoff", "activities": [
      {"timeSlot": "9:00 AM - 12:00 PM", "title": "Workshop", "venue": {"name": "Lakeside Conference Centre"}, "cost": 60000},
      {"timeSlot": "7:00 PM - 9:00 PM", "title": "Dinner", "venue": {"name": "Taj"}, "cost": 30000}
    ]},
    {"day": 2, "theme": "Outdoors", "activities": [
      {"timeSlot": "6:00 AM - 9:00 AM", "title": "Hike", "venue": {"name": "Skandagiri"}, "cost": 20000},
      {"timeSlot": "2:00 PM - 4:00 PM", "title": "Debrief", "cost": 0}
    ]}
  ],
  "metadata": {"isFallback": true}
}`

// ==========================
// Generation
// ==========================

func TestPlan_EnrichesGeneratedItinerary(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{"Here you go:\n" + generated}}
	p := newPlanner(t, completer, &backoff.Recorder{})

	it, err := p.Plan(context.Background(), corporateRequest(), &models.ActivitySuggestions{}, researchSummary())
	require.NoError(t, err)

	assert.Equal(t, "itin-1", it.ID)
	assert.Equal(t, models.RequestCorporate, it.Type)
	assert.Equal(t, "Bangalore", it.Location)
	assert.Equal(t, 50, it.Participants)
	assert.Equal(t, "INR", it.Currency)
	assert.Equal(t, 145000.0, it.TotalBudget.Float())
	assert.Equal(t, "2025-03-01T08:00:00Z", it.GeneratedAt)

	assert.False(t, it.Metadata.IsFallback)
	assert.Equal(t, Version, it.Metadata.Version)
	// Lakeside exact, Taj by containment; Skandagiri and the venue-less debrief miss.
	assert.Equal(t, 50, it.Metadata.DataIntegrationScore)
	assert.Equal(t, &models.ResearchUsage{Venues: 4, Activities: 2, HasLocalInsights: true}, it.Metadata.ResearchDataUsed)
	require.Len(t, it.Metadata.IntegrationWarnings, 1)
	assert.Contains(t, it.Metadata.IntegrationWarnings[0], `"Taj"`)

	assert.Equal(t, "day1_activity1", it.Days[0].Activities[0].ID)
	assert.Equal(t, "day2_activity2", it.Days[1].Activities[1].ID)
	assert.Equal(t, models.DataSourceResearch, it.Days[0].Activities[1].DataSource)
	assert.Equal(t, models.DataSourceGenerated, it.Days[1].Activities[0].DataSource)

	require.Len(t, completer.requests, 1)
	assert.Equal(t, corporateSystemPrompt, completer.requests[0].SystemPrompt)
	assert.Contains(t, completer.requests[0].Prompt, "Lakeside Conference Centre")
}

func TestPlan_RetriesTransportFailures(t *testing.T) {
	completer := &scriptedCompleter{
		responses: []string{"", "", generated},
		errs:      []error{errors.New("502 bad gateway"), errors.New("timeout")},
	}
	recorder := &backoff.Recorder{}
	p := newPlanner(t, completer, recorder)

	it, err := p.Plan(context.Background(), corporateRequest(), nil, researchSummary())
	require.NoError(t, err)
	assert.False(t, it.Metadata.IsFallback)
	assert.Len(t, completer.requests, 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, recorder.Pauses())
}

func TestPlan_UnparseableCompletionFallsBackWithoutRetry(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{"I cannot plan this trip."}}
	recorder := &backoff.Recorder{}
	p := newPlanner(t, completer, recorder)

	it, err := p.Plan(context.Background(), corporateRequest(), nil, researchSummary())
	require.NoError(t, err)
	assert.True(t, it.Metadata.IsFallback)
	assert.Len(t, completer.requests, 1)
	assert.Empty(t, recorder.Pauses())
}

func TestPlan_NoResearchStillProducesFallback(t *testing.T) {
	completer := &scriptedCompleter{errs: []error{errors.New("down"), errors.New("down"), errors.New("down")}}
	p := newPlanner(t, completer, &backoff.Recorder{})
	req := &models.ParsedRequest{Type: models.RequestTravel, Location: "Goa", Participants: 4, Duration: 3, Budget: 80000, Currency: "INR"}

	it, err := p.Plan(context.Background(), req, nil, &models.ResearchSummary{})
	require.NoError(t, err)

	assert.True(t, it.Metadata.IsFallback)
	assert.Len(t, it.Days, req.Duration)
	assert.Equal(t, 0, it.Metadata.DataIntegrationScore)
	assert.Equal(t, "itin-1", it.ID)
	for _, d := range it.Days {
		assert.Empty(t, d.Activities)
		assert.Equal(t, 26667.0, d.TotalCost.Float())
	}
}

func TestPlan_ZeroDurationIsFatal(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{"nope"}}
	p := newPlanner(t, completer, &backoff.Recorder{})
	req := &models.ParsedRequest{Type: models.RequestTravel, Location: "Goa", Participants: 2}

	_, err := p.Plan(context.Background(), req, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPlanning)
	assert.Equal(t, apperrors.ErrCodePlanningFailed, apperrors.CodeOf(err))
}

// ==========================
// Fallback and integration
// ==========================

func TestFallback_Template(t *testing.T) {
	research := FormatResearch(researchSummary())
	req := corporateRequest()
	req.Duration = 3

	it, err := Fallback(req, research)
	require.NoError(t, err)

	assert.Equal(t, "Corporate Itinerary for Bangalore", it.Title)
	assert.Equal(t, "A 3-day itinerary for 50 participants", it.Summary)
	require.Len(t, it.Days, 3)

	// days 1..3 take pool[1], pool[0], pool[1]
	assert.Equal(t, "Palace tour", it.Days[0].Activities[0].Title)
	assert.Equal(t, "Bangalore Palace", it.Days[0].Activities[0].VenueName())
	assert.Equal(t, models.FlexList{"ID proof"}, it.Days[0].Activities[0].Requirements)
	assert.Equal(t, "Drum circle", it.Days[1].Activities[0].Title)
	assert.Equal(t, "Palace tour", it.Days[2].Activities[0].Title)

	day := it.Days[0]
	assert.Equal(t, "TBD", day.Date)
	assert.Equal(t, "Day 1 Activities", day.Theme)
	assert.Equal(t, 50000.0, day.TotalCost.Float())
	assert.Equal(t, 500.0, day.Meals.Breakfast.Cost.Float())
	assert.Equal(t, 800.0, day.Meals.Lunch.Cost.Float())
	assert.Equal(t, 1200.0, day.Meals.Dinner.Cost.Float())
	assert.Equal(t, "10:00 AM - 12:00 PM", day.Activities[0].TimeSlot)
	assert.Equal(t, 2000.0, day.Activities[0].Cost.Float())

	assert.Equal(t, models.CostBreakdown{
		"accommodation":  60000,
		"activities":     45000,
		"meals":          30000,
		"transportation": 12000,
		"miscellaneous":  3000,
	}, it.BudgetBreakdown)
	assert.True(t, it.Metadata.IsFallback)
}

func TestIntegrationScore(t *testing.T) {
	venues := []models.Venue{{Name: "Taj West End"}, {Name: "Karavalli"}}
	it := &models.Itinerary{Days: []models.Day{{Activities: []models.ItineraryActivity{
		{Venue: &models.ActivityVenue{Name: "taj west end"}},
		{Venue: &models.ActivityVenue{Name: "west"}},
		{Venue: &models.ActivityVenue{Name: "Toit"}},
	}}}}

	assert.Equal(t, 67, IntegrationScore(it, venues))
	assert.Equal(t, 0, IntegrationScore(&models.Itinerary{}, venues))

	_, ok := MatchVenue("", venues)
	assert.False(t, ok)
}

func TestValidateIntegration(t *testing.T) {
	venues := []models.Venue{{Name: "Karavalli"}}
	it := &models.Itinerary{
		Days: []models.Day{
			{Activities: []models.ItineraryActivity{{Venue: &models.ActivityVenue{Name: "Karavalli"}}, {Title: "Walk"}}},
			{Activities: []models.ItineraryActivity{{Venue: &models.ActivityVenue{Name: "Toit"}}}},
		},
		Metadata: models.ItineraryMetadata{DataIntegrationScore: 33},
	}

	v := ValidateIntegration(it, venues)
	assert.True(t, v.IsValid)
	assert.Equal(t, []string{`Day 2, Activity 1: Venue "Toit" not found in research data`}, v.Warnings)
	assert.Len(t, v.Suggestions, 1)
	assert.Equal(t, 33, v.DataIntegrationScore)
}

func TestFormatResearch_Nil(t *testing.T) {
	r := FormatResearch(nil)
	assert.Empty(t, r.Venues())
	assert.Empty(t, r.Activities())
}
