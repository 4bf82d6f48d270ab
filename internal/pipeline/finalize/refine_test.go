package finalize

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/models"
)

func goaResearch() *models.ResearchSummary {
	return &models.ResearchSummary{
		Research: models.ConsolidatedResearch{
			Venues: []models.Venue{
				{Name: "Baga Beach Shacks", Type: "attraction"},
				{Name: "Britto's", Type: "restaurant"},
			},
		},
	}
}

const refinedDays = `{
  "title": "Relaxed Goa",
  "days": [
    {"day": 1, "theme": "Slow beaches", "activities": [
      {"id": "x", "timeSlot": "10:00 AM - 12:00 PM", "title": "Beach walk", "venue": {"name": "Calangute Beach"}},
      {"id": "y", "timeSlot": "8:00 PM - 10:00 PM", "title": "Late dinner", "venue": {"name": "Fisherman's Wharf"}}
    ]},
    {"day": 2, "theme": "Spice farm", "activities": [
      {"id": "z", "timeSlot": "9:00 AM - 12:00 PM", "title": "Spice plantation", "venue": {"name": "Sahakari"}, "dataSource": "research_data"}
    ]}
  ]
}`

// ==========================
// Input validation
// ==========================

func TestRefine_RejectsBadInput(t *testing.T) {
	f := newFinalizer(t, &scriptedCompleter{})
	it := plannedItinerary()

	tests := []struct {
		name string
		r    Refinement
	}{
		{"empty prompt", Refinement{Prompt: "  "}},
		{"unknown scope", Refinement{Prompt: "x", Scope: models.RefinementScope{Type: "week"}}},
		{"day without number", Refinement{Prompt: "x", Scope: models.RefinementScope{Type: models.ScopeDay}}},
		{"day out of range", Refinement{Prompt: "x", Scope: models.RefinementScope{Type: models.ScopeDay, DayNumber: 5}}},
		{"unknown activity", Refinement{Prompt: "x", Scope: models.RefinementScope{Type: models.ScopeActivity, ActivityID: "day9_activity1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Refine(context.Background(), it, tt.r)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))
		})
	}
}

// ==========================
// Research-aware refinement
// ==========================

func TestRefine_ResearchAwareKeepsResearchVenues(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		`{"refinedItinerary": ` + refinedDays + `, "changesLog": ["slower mornings"], "dataIntegrityMaintained": true}`,
	}}
	f := newFinalizer(t, completer)
	it := plannedItinerary()
	it.Days[0].Activities[0].Venue.Name = "Baga Beach"

	out, err := f.Refine(context.Background(), it, Refinement{
		Prompt:   "Make the mornings more relaxed",
		Request:  travelRequest(),
		Research: goaResearch(),
	})
	require.NoError(t, err)

	assert.Equal(t, "Relaxed Goa", out.Title)
	first := out.Days[0].Activities[0]
	assert.Equal(t, "day1_activity1", first.ID)
	assert.Equal(t, "10:00 AM - 12:00 PM", first.TimeSlot)
	assert.Equal(t, "Baga Beach", first.VenueName(), "research venue not named in the prompt survives")
	assert.Equal(t, "Britto's", out.Days[0].Activities[1].VenueName())
	assert.Equal(t, "Sahakari", out.Days[1].Activities[0].VenueName(), "original venue was not from research")

	assert.Equal(t, models.DataSourceResearch, first.DataSource)
	assert.Equal(t, models.DataSourceGenerated, out.Days[1].Activities[0].DataSource)
	assert.Equal(t, 67, out.Metadata.DataIntegrationScore)

	require.Len(t, out.RefinementHistory, 1)
	entry := out.RefinementHistory[0]
	assert.Equal(t, RefinementResearch, entry.Type)
	assert.Equal(t, "entire", entry.Scope)
	assert.Equal(t, "2025-03-02T09:30:00Z", entry.Timestamp)
	assert.Equal(t, entry.Timestamp, out.RefinedAt)

	assert.Equal(t, "Goa Getaway", it.Title)
	assert.Empty(t, it.RefinementHistory)
	assert.Contains(t, completer.requests[0].Prompt, "Make the mornings more relaxed")
	assert.Equal(t, researchRefineSystemPrompt, completer.requests[0].SystemPrompt)
}

func TestRefine_PromptNamingVenueAllowsChange(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{`{"refinedItinerary": ` + refinedDays + `}`}}
	f := newFinalizer(t, completer)

	out, err := f.Refine(context.Background(), plannedItinerary(), Refinement{
		Prompt:   "Swap Britto's for somewhere quieter",
		Research: goaResearch(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Fisherman's Wharf", out.Days[0].Activities[1].VenueName())
}

func TestRefine_ResearchAwareFollowsReorderedActivities(t *testing.T) {
	reordered := `{"refinedItinerary": {"days": [
	  {"day": 1, "activities": [
	    {"timeSlot": "7:00 PM - 9:00 PM", "title": "Seafood dinner", "venue": {"name": "Fisherman's Wharf", "address": "Cavelossim"}},
	    {"timeSlot": "9:00 AM - 11:00 AM", "title": "Beach walk", "venue": {"name": "Calangute Beach"}}
	  ]},
	  {"day": 2, "activities": [
	    {"timeSlot": "10:00 AM - 1:00 PM", "title": "Old Goa churches", "venue": {"name": "Basilica of Bom Jesus"}}
	  ]}
	]}}`
	f := newFinalizer(t, &scriptedCompleter{responses: []string{reordered}})
	it := plannedItinerary()
	it.Days[0].Activities[1].Venue.Address = "Calangute"

	out, err := f.Refine(context.Background(), it, Refinement{Prompt: "Start with dinner", Research: goaResearch()})
	require.NoError(t, err)

	dinner := out.Days[0].Activities[0]
	assert.Equal(t, "day1_activity1", dinner.ID)
	assert.Equal(t, "Seafood dinner", dinner.Title)
	assert.Equal(t, *it.Days[0].Activities[1].Venue, *dinner.Venue)

	walk := out.Days[0].Activities[1]
	assert.Equal(t, "Beach walk", walk.Title)
	assert.Equal(t, *it.Days[0].Activities[0].Venue, *walk.Venue)
}

func TestRefine_ResearchAwareActivityScopeKeepsRefinedVenue(t *testing.T) {
	refined := `{"refinedItinerary": {"days": [
	  {"day": 1, "activities": [
	    {"id": "day1_activity1", "timeSlot": "9:00 AM - 11:00 AM", "title": "Beach walk", "venue": {"name": "Baga Beach"}},
	    {"id": "day1_activity2", "timeSlot": "7:00 PM - 9:00 PM", "title": "Quiet dinner", "venue": {"name": "Fisherman's Wharf", "address": "Cavelossim"}}
	  ]}
	]}}`
	f := newFinalizer(t, &scriptedCompleter{responses: []string{refined}})
	it := plannedItinerary()

	out, err := f.Refine(context.Background(), it, Refinement{
		Prompt:   "Replace this dinner with somewhere quieter",
		Scope:    models.RefinementScope{Type: models.ScopeActivity, ActivityID: "day1_activity2"},
		Research: goaResearch(),
	})
	require.NoError(t, err)

	got := out.Days[0].Activities[1]
	assert.Equal(t, "Quiet dinner", got.Title)
	require.NotNil(t, got.Venue)
	assert.Equal(t, "Fisherman's Wharf", got.Venue.Name)
	assert.Equal(t, models.FlexString("Cavelossim"), got.Venue.Address)
	assert.Equal(t, models.DataSourceGenerated, got.DataSource)

	assert.Equal(t, "Baga Beach", out.Days[0].Activities[0].VenueName())
	assert.Equal(t, "Basilica of Bom Jesus", out.Days[1].Activities[0].VenueName())
}

func TestRefine_ResearchAwareDayScopeKeepsRefinedDay(t *testing.T) {
	refined := `{"refinedItinerary": {"days": [
	  {"day": 1, "theme": "River day", "activities": [
	    {"timeSlot": "9:00 AM - 11:00 AM", "title": "Beach walk", "venue": {"name": "Calangute Beach"}},
	    {"timeSlot": "6:00 PM - 8:00 PM", "title": "Sunset cruise", "venue": {"name": "Mandovi Cruise", "address": "Panaji"}}
	  ]}
	]}}`
	f := newFinalizer(t, &scriptedCompleter{responses: []string{refined}})
	it := plannedItinerary()

	out, err := f.Refine(context.Background(), it, Refinement{
		Prompt:   "Redo day 1 around the river",
		Scope:    models.RefinementScope{Type: models.ScopeDay, DayNumber: 1},
		Research: goaResearch(),
	})
	require.NoError(t, err)

	day := out.Days[0]
	assert.Equal(t, "River day", day.Theme)
	require.Len(t, day.Activities, 2)
	assert.Equal(t, "Calangute Beach", day.Activities[0].VenueName())
	assert.Equal(t, "Mandovi Cruise", day.Activities[1].VenueName())
	assert.Equal(t, models.FlexString("Panaji"), day.Activities[1].Venue.Address)
	assert.Equal(t, "day1_activity2", day.Activities[1].ID)

	assert.Equal(t, "Basilica of Bom Jesus", out.Days[1].Activities[0].VenueName())
	assert.Equal(t, 0, out.Metadata.DataIntegrationScore)
}

func TestRefine_HistoryAppends(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{refinedDays, refinedDays}}
	f := newFinalizer(t, completer)

	once, err := f.Refine(context.Background(), plannedItinerary(), Refinement{Prompt: "first"})
	require.NoError(t, err)
	twice, err := f.Refine(context.Background(), once, Refinement{Prompt: "second"})
	require.NoError(t, err)

	require.Len(t, twice.RefinementHistory, 2)
	assert.Equal(t, "first", twice.RefinementHistory[0].Prompt)
	assert.Equal(t, "second", twice.RefinementHistory[1].Prompt)
	assert.Len(t, once.RefinementHistory, 1)
}

// ==========================
// Basic refinement and scopes
// ==========================

func TestRefine_BasicScoresFromDataSources(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{"Refined:\n" + refinedDays}}
	f := newFinalizer(t, completer)

	out, err := f.Refine(context.Background(), plannedItinerary(), Refinement{Prompt: "Less walking"})
	require.NoError(t, err)

	assert.Equal(t, basicRefineSystemPrompt, completer.requests[0].SystemPrompt)
	assert.Equal(t, RefinementBasic, out.RefinementHistory[0].Type)
	assert.Equal(t, "Calangute Beach", out.Days[0].Activities[0].VenueName())
	// only the spice farm claims research data
	assert.Equal(t, 33, out.Metadata.DataIntegrationScore)
	assert.Equal(t, "day2_activity1", out.Days[1].Activities[0].ID)
}

func TestRefine_DayScopeReplacesOnlyThatDay(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{refinedDays}}
	f := newFinalizer(t, completer)
	it := plannedItinerary()

	out, err := f.Refine(context.Background(), it, Refinement{
		Prompt: "Change day 2",
		Scope:  models.RefinementScope{Type: models.ScopeDay, DayNumber: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, it.Days[0], out.Days[0])
	assert.Equal(t, "Spice farm", out.Days[1].Theme)
	assert.Equal(t, "day2_activity1", out.Days[1].Activities[0].ID)
	assert.Equal(t, "Goa Getaway", out.Title)

	entry := out.RefinementHistory[0]
	assert.Equal(t, "day", entry.Scope)
	assert.Equal(t, 2, entry.DayNumber)
	assert.Contains(t, completer.requests[0].Prompt, "Only change day 2.")
}

func TestRefine_ActivityScopeReplacesOneActivity(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{refinedDays}}
	f := newFinalizer(t, completer)
	it := plannedItinerary()

	out, err := f.Refine(context.Background(), it, Refinement{
		Prompt: "Later dinner",
		Scope:  models.RefinementScope{Type: models.ScopeActivity, ActivityID: "day1_activity2"},
	})
	require.NoError(t, err)

	got := out.Days[0].Activities[1]
	assert.Equal(t, "day1_activity2", got.ID)
	assert.Equal(t, "Late dinner", got.Title)
	assert.Equal(t, it.Days[0].Activities[0], out.Days[0].Activities[0])
	assert.Equal(t, it.Days[1], out.Days[1])
	assert.Equal(t, "day1_activity2", out.RefinementHistory[0].ActivityID)
}

func TestRefine_FailureKeepsOriginal(t *testing.T) {
	f := newFinalizer(t, &scriptedCompleter{errs: []error{errors.New("rate limited")}})
	it := plannedItinerary()

	out, err := f.Refine(context.Background(), it, Refinement{Prompt: "More beaches", Research: goaResearch()})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, apperrors.ErrCodeRefinementFailed, apperrors.CodeOf(err))
	assert.Empty(t, it.RefinementHistory)
}

func TestRefine_MissingRefinedItineraryFails(t *testing.T) {
	f := newFinalizer(t, &scriptedCompleter{responses: []string{`{"changesLog": []}`}})

	_, err := f.Refine(context.Background(), plannedItinerary(), Refinement{Prompt: "x", Research: goaResearch()})
	assert.Equal(t, apperrors.ErrCodeRefinementFailed, apperrors.CodeOf(err))
}
