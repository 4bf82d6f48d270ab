package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeGenerated_IgnoresOwnedFields(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "from-model",
		"title": "Goa Getaway",
		"totalBudget": "50000",
		"metadata": {"dataIntegrationScore": "very high"},
		"days": [{
			"day": 1,
			"theme": "Beaches",
			"activities": [{"title": "Baga Beach", "venue": {"name": "Baga Beach"}, "cost": 0}],
			"meals": {"breakfast": "Hotel buffet", "lunch": {"venue": "Britto's", "cost": "900"}, "dinner": 1200}
		}]
	}`)

	it, err := DecodeGenerated(raw)
	require.NoError(t, err)

	assert.Empty(t, it.ID)
	assert.Equal(t, "Goa Getaway", it.Title)
	assert.InDelta(t, 50000, it.TotalBudget.Float(), 0.1)
	assert.Equal(t, 0, it.Metadata.DataIntegrationScore)
	require.Len(t, it.Days, 1)
	assert.Equal(t, "Baga Beach", it.Days[0].Activities[0].VenueName())
	assert.Equal(t, "Hotel buffet", it.Days[0].Meals.Breakfast.Venue.String())
	assert.InDelta(t, 900, it.Days[0].Meals.Lunch.Cost.Float(), 0.1)
	assert.InDelta(t, 1200, it.Days[0].Meals.Dinner.Cost.Float(), 0.1)
}

func TestDecodeGenerated_RequiresDays(t *testing.T) {
	_, err := DecodeGenerated(json.RawMessage(`{"title":"empty"}`))
	assert.Error(t, err)
}

func TestItinerary_FindAndClone(t *testing.T) {
	it := &Itinerary{
		Title: "Plan",
		Days: []Day{
			{Day: 1, Activities: []ItineraryActivity{{ID: "day1_activity1"}}},
			{Day: 2, Activities: []ItineraryActivity{{ID: "day2_activity1"}, {ID: "day2_activity2"}}},
		},
	}

	di, ai, ok := it.FindActivity("day2_activity2")
	assert.True(t, ok)
	assert.Equal(t, 1, di)
	assert.Equal(t, 1, ai)
	assert.Equal(t, 3, it.ActivityCount())

	clone := it.Clone()
	clone.Days[0].Activities[0].Title = "changed"
	assert.Empty(t, it.Days[0].Activities[0].Title)
}

func TestRefinementScope_Validate(t *testing.T) {
	assert.NoError(t, RefinementScope{}.Validate())
	assert.NoError(t, RefinementScope{Type: ScopeDay, DayNumber: 2}.Validate())
	assert.Error(t, RefinementScope{Type: ScopeDay}.Validate())
	assert.Error(t, RefinementScope{Type: ScopeActivity}.Validate())
	assert.Error(t, RefinementScope{Type: "week"}.Validate())
}

func TestConsolidatedResearch_Filters(t *testing.T) {
	research := &ConsolidatedResearch{
		Venues:     []Venue{{Name: "Taj", Type: "hotel"}, {Name: "NIMHANS Hall", Type: "Venue"}},
		Activities: []Activity{{Name: "Kayaking", Type: "adventure"}},
	}

	assert.Len(t, research.VenuesOfType("hotel"), 1)
	assert.Len(t, research.VenuesOfType("venue"), 1)
	assert.Len(t, research.ActivitiesOfType("cultural", "adventure"), 1)
	assert.False(t, research.IsEmpty())

	var missing *ConsolidatedResearch
	assert.True(t, missing.IsEmpty())
	assert.Nil(t, missing.VenuesOfType("hotel"))
}
