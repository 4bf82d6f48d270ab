// internal/pipeline/planner/integration.go
package planner

import (
	"fmt"
	"math"
	"strings"

	"itinerary-workers/internal/models"
)

// Research is the research data grouped the way the planning prompts use it.
type Research struct {
	Accommodations []models.Venue          `json:"accommodations"`
	MeetingVenues  []models.Venue          `json:"meetingVenues"`
	Restaurants    []models.Venue          `json:"restaurants"`
	Attractions    []models.Venue          `json:"attractions"`
	TeamBuilding   []models.Activity       `json:"teamBuilding"`
	Cultural       []models.Activity       `json:"cultural"`
	Adventure      []models.Activity       `json:"adventure"`
	Budget         models.BudgetAnalysis   `json:"budget"`
	Logistics      models.LogisticsSummary `json:"logistics"`
	Practical      models.PracticalInfo    `json:"practicalInfo"`
	all            []models.Venue
}

// FormatResearch groups a summary's consolidated research by type. A nil
// summary yields empty groups.
func FormatResearch(summary *models.ResearchSummary) *Research {
	if summary == nil {
		return &Research{}
	}
	c := &summary.Research
	return &Research{
		Accommodations: c.VenuesOfType("hotel"),
		MeetingVenues:  c.VenuesOfType("venue"),
		Restaurants:    c.VenuesOfType("restaurant"),
		Attractions:    c.VenuesOfType("attraction"),
		TeamBuilding:   c.ActivitiesOfType("team_building"),
		Cultural:       c.ActivitiesOfType("cultural"),
		Adventure:      c.ActivitiesOfType("adventure"),
		Budget:         summary.Budget,
		Logistics:      summary.Logistics,
		Practical:      c.PracticalInfo,
		all:            c.Venues,
	}
}

// Venues returns every research venue, typed or not.
func (r *Research) Venues() []models.Venue {
	return r.all
}

// Activities returns the typed research activities in group order.
func (r *Research) Activities() []models.Activity {
	var out []models.Activity
	out = append(out, r.TeamBuilding...)
	out = append(out, r.Cultural...)
	out = append(out, r.Adventure...)
	return out
}

func (r *Research) usage() *models.ResearchUsage {
	venues := len(r.Accommodations) + len(r.MeetingVenues) + len(r.Restaurants) + len(r.Attractions)
	local := r.Logistics.LocalFactors
	return &models.ResearchUsage{
		Venues:           venues,
		Activities:       len(r.Activities()),
		HasLocalInsights: local.Weather != "" || local.CulturalConsiderations != "" || local.SafetyNotes != "" || local.EmergencyInfo != "",
	}
}

// MatchVenue reports the research venue whose name contains name,
// case-insensitively. Partial containment counts as a match, so short names
// can match unrelated venues.
func MatchVenue(name string, venues []models.Venue) (models.Venue, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return models.Venue{}, false
	}
	for _, v := range venues {
		if v.Name != "" && strings.Contains(strings.ToLower(v.Name), needle) {
			return v, true
		}
	}
	return models.Venue{}, false
}

// IntegrationScore is the rounded percentage of activities whose venue
// matches a research venue. An itinerary without activities scores 0.
func IntegrationScore(it *models.Itinerary, venues []models.Venue) int {
	total, matched := 0, 0
	for _, d := range it.Days {
		for _, a := range d.Activities {
			total++
			if _, ok := MatchVenue(a.VenueName(), venues); ok {
				matched++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(matched) / float64(total) * 100))
}

// partialMatches lists activities that only matched by containment.
func partialMatches(it *models.Itinerary, venues []models.Venue) []string {
	var out []string
	for _, d := range it.Days {
		for _, a := range d.Activities {
			v, ok := MatchVenue(a.VenueName(), venues)
			if ok && !strings.EqualFold(strings.TrimSpace(v.Name), strings.TrimSpace(a.VenueName())) {
				out = append(out, fmt.Sprintf("Venue %q matched research venue %q by partial name", a.VenueName(), v.Name))
			}
		}
	}
	return out
}

// ValidateIntegration warns about venues absent from research and suggests
// improvement when the integration score is below 50.
func ValidateIntegration(it *models.Itinerary, venues []models.Venue) models.IntegrationReport {
	v := models.IntegrationReport{
		IsValid:              true,
		Warnings:             []string{},
		Suggestions:          []string{},
		DataIntegrationScore: it.Metadata.DataIntegrationScore,
	}
	for di, d := range it.Days {
		for ai, a := range d.Activities {
			if a.Venue == nil {
				continue
			}
			if _, ok := MatchVenue(a.Venue.Name, venues); !ok {
				v.Warnings = append(v.Warnings,
					fmt.Sprintf("Day %d, Activity %d: Venue %q not found in research data", di+1, ai+1, a.Venue.Name))
			}
		}
	}
	if v.DataIntegrationScore < 50 {
		v.Suggestions = append(v.Suggestions, "Consider improving integration with research data for more authentic local experiences")
	}
	return v
}

// DataSource labels an activity by where its venue came from.
func DataSource(a models.ItineraryActivity, venues []models.Venue) string {
	if a.Venue != nil {
		if _, ok := MatchVenue(a.Venue.Name, venues); ok {
			return models.DataSourceResearch
		}
	}
	return models.DataSourceGenerated
}
