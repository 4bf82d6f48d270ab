// internal/pipeline/summarize/summarize.go
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"itinerary-workers/internal/common/genai"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/common/metrics"
	"itinerary-workers/internal/models"
)

const Stage = "summarizing"

const (
	categoriesSystemPrompt = `You are creating comprehensive category summaries for itinerary planning.
Organize and summarize the information so it is directly useful for day-by-day itineraries.

Group similar items, highlight standout options, give cost ranges and booking notes,
note group suitability and capacity constraints, and separate must-visit from optional items.`

	recommendationsSystemPrompt = `Generate specific, actionable recommendations for itinerary planning.
Recommendations must be directly usable in day-by-day planning with specific venues, activities and logistics.`

	budgetSystemPrompt = `Analyze budget implications and create detailed budget breakdowns for itinerary planning.
Provide realistic cost estimates and budget allocation recommendations.`

	logisticsSystemPrompt = `Create a comprehensive logistics summary for itinerary planning.
Focus on practical implementation details needed for day-by-day planning.`
)

var (
	categoriesSchema = map[string]interface{}{
		"accommodationSummary": map[string]interface{}{
			"overview":        "string",
			"topOptions":      "array of venue objects",
			"budgetInsights":  "string",
			"recommendations": "string",
		},
		"venuesSummary": map[string]interface{}{
			"overview":         "string",
			"conferenceVenues": "array of venue objects",
			"diningOptions":    "array of venue objects",
			"attractionVenues": "array of venue objects",
			"recommendations":  "string",
		},
		"activitiesSummary": map[string]interface{}{
			"overview":               "string",
			"teamBuildingActivities": "array of activity objects",
			"culturalActivities":     "array of activity objects",
			"adventureActivities":    "array of activity objects",
			"recommendations":        "string",
		},
		"practicalSummary": map[string]string{
			"transportation":       "string",
			"budgetConsiderations": "string",
			"seasonalFactors":      "string",
			"localInsights":        "string",
		},
	}

	recommendationsSchema = map[string]interface{}{
		"mustHaveItems": []map[string]string{{
			"item":          "string",
			"type":          "venue | activity | service",
			"reasoning":     "string",
			"cost":          "string",
			"bookingAdvice": "string",
		}},
		"dayStructureRecommendations": []map[string]string{{
			"dayType":               "string (e.g., 'arrival day', 'main activity day')",
			"structure":             "string",
			"recommendedActivities": "array of strings",
			"budgetAllocation":      "string",
		}},
		"logisticalRecommendations": []map[string]string{{
			"category":       "string (e.g., 'transportation', 'meals')",
			"recommendation": "string",
			"cost":           "string",
			"implementation": "string",
		}},
		"budgetOptimizationTips": "array of strings",
		"riskMitigation":         "array of strings",
	}

	budgetSchema = map[string]interface{}{
		"totalBudgetAnalysis": map[string]string{
			"availableBudget":       "number",
			"perPersonBudget":       "number",
			"perDayBudget":          "number",
			"feasibilityAssessment": "string",
		},
		"costBreakdown": map[string]interface{}{
			"<category>": map[string]string{
				"estimatedCost": "number",
				"percentage":    "number",
				"options":       "array of cost options",
			},
		},
		"budgetScenarios": []map[string]string{{
			"scenario":    "budget | standard | premium",
			"totalCost":   "number",
			"description": "string",
			"tradeoffs":   "string",
		}},
		"costOptimizationTips": "array of strings",
	}

	logisticsSchema = map[string]interface{}{
		"transportationPlan": map[string]interface{}{
			"overview": "string",
			"options": []map[string]string{{
				"method":      "string",
				"cost":        "string",
				"suitability": "string",
				"bookingInfo": "string",
			}},
			"recommendations": "string",
		},
		"timingConsiderations": map[string]string{
			"peakSeasons":      "string",
			"operatingHours":   "string",
			"bookingLeadTimes": "string",
			"groupScheduling":  "string",
		},
		"groupLogistics": map[string]string{
			"coordinationNeeds":   "string",
			"communicationPlan":   "string",
			"contingencyPlanning": "string",
		},
		"localFactors": map[string]string{
			"weather":                "string",
			"culturalConsiderations": "string",
			"safetyNotes":            "string",
			"emergencyInfo":          "string",
		},
	}
)

// Summarizer derives the four research artifacts. Each one is produced
// independently and falls back to deterministic content on its own.
type Summarizer struct {
	completer genai.Completer
	now       func() time.Time
	logger    logger.Logger
}

func New(completer genai.Completer, log logger.Logger) *Summarizer {
	return &Summarizer{
		completer: completer,
		now:       time.Now,
		logger: log.With(map[string]interface{}{
			"stage": Stage,
		}),
	}
}

// Run consolidates findings and summarizes them. It never fails.
func (s *Summarizer) Run(ctx context.Context, findings []models.StructuredFinding, sourceCount int, req *models.ParsedRequest) *models.ResearchSummary {
	research := Consolidate(findings, sourceCount)
	return s.Summarize(ctx, &research, req)
}

// Summarize produces the artifacts for already consolidated research.
func (s *Summarizer) Summarize(ctx context.Context, research *models.ConsolidatedResearch, req *models.ParsedRequest) *models.ResearchSummary {
	defer metrics.ObserveStage(Stage, time.Now())

	out := &models.ResearchSummary{Research: *research}

	out.Categories, out.Fallbacks.Categories = produce(ctx, s, "categories", genai.Request{
		Prompt:       categoriesPrompt(research, req),
		SystemPrompt: categoriesSystemPrompt,
		Schema:       categoriesSchema,
	}, func() models.CategorySummaries { return FallbackCategories(research, req) })

	out.Recommendations, out.Fallbacks.Recommendations = produce(ctx, s, "recommendations", genai.Request{
		Prompt:       recommendationsPrompt(research, req),
		SystemPrompt: recommendationsSystemPrompt,
		Schema:       recommendationsSchema,
	}, func() models.Recommendations { return FallbackRecommendations(research, req) })

	out.Budget, out.Fallbacks.Budget = produce(ctx, s, "budget", genai.Request{
		Prompt:       budgetPrompt(research, req),
		SystemPrompt: budgetSystemPrompt,
		Schema:       budgetSchema,
	}, func() models.BudgetAnalysis { return FallbackBudget(req) })

	out.Logistics, out.Fallbacks.Logistics = produce(ctx, s, "logistics", genai.Request{
		Prompt:       logisticsPrompt(research, req),
		SystemPrompt: logisticsSystemPrompt,
		Schema:       logisticsSchema,
	}, func() models.LogisticsSummary { return FallbackLogistics(req) })

	out.QualityWarnings = ValidateQuality(out)
	out.SummarizedAt = s.now().UTC().Format(time.RFC3339)

	s.logger.Info("research summarized", map[string]interface{}{
		"venues":     len(research.Venues),
		"activities": len(research.Activities),
		"sources":    research.SourceCount,
		"fallbacks":  out.Fallbacks,
		"warnings":   len(out.QualityWarnings),
	})
	return out
}

func produce[T any](ctx context.Context, s *Summarizer, artifact string, req genai.Request, fallback func() T) (T, bool) {
	req.Temperature = genai.Temperature(0.1)
	req.MaxTokens = 4000

	return genai.WithFallback(ctx,
		func(ctx context.Context) (T, error) {
			var out T
			err := genai.CompleteJSON(ctx, s.completer, req, &out)
			return out, err
		},
		fallback,
		func(err error) {
			metrics.Fallback(artifact)
			s.logger.Warn("summary artifact fell back", map[string]interface{}{
				"artifact": artifact,
				"error":    err.Error(),
			})
		},
	)
}

// ValidateQuality lists what a planner would miss in the summary.
func ValidateQuality(summary *models.ResearchSummary) []string {
	var warnings []string
	if n := len(summary.Research.Venues); n < 3 {
		warnings = append(warnings, fmt.Sprintf("Only %d venues found. Consider broader search.", n))
	}
	if n := len(summary.Research.Activities); n < 3 {
		warnings = append(warnings, fmt.Sprintf("Only %d activities found. Consider expanding search criteria.", n))
	}
	if line, ok := summary.Budget.CostBreakdown["accommodation"]; !ok || line.EstimatedCost.Float() <= 0 {
		warnings = append(warnings, "Accommodation cost estimates missing.")
	}
	if len(summary.Logistics.TransportationPlan.Options) == 0 {
		warnings = append(warnings, "Transportation options not identified.")
	}
	return warnings
}

func categoriesPrompt(research *models.ConsolidatedResearch, req *models.ParsedRequest) string {
	return fmt.Sprintf(`Create comprehensive category summaries for %s itinerary in %s:

Context:
- Location: %s
- Type: %s
- Participants: %d
- Duration: %d days
- Budget: %s %.0f

Available Data:
- Venues: %s
- Activities: %s
- Practical Info: %s

Create detailed summaries that will help generate specific, actionable itinerary recommendations.`,
		req.Type, req.Location, req.Location, req.Type, req.Participants, req.Duration, req.Currency, req.Budget,
		indent(firstVenues(research.Venues, 10)), indent(firstActivities(research.Activities, 10)), indent(research.PracticalInfo))
}

func recommendationsPrompt(research *models.ConsolidatedResearch, req *models.ParsedRequest) string {
	return fmt.Sprintf(`Generate actionable recommendations for %s itinerary planning:

Context: %s

Available Options:
Top Venues: %s
Top Activities: %s

Provide specific, implementable recommendations that can guide detailed itinerary creation.`,
		req.Type, indent(req), indent(firstVenues(research.Venues, 5)), indent(firstActivities(research.Activities, 5)))
}

type costEntry struct {
	Name string            `json:"name"`
	Type string            `json:"type"`
	Cost models.FlexString `json:"cost"`
	Size models.FlexString `json:"capacity,omitempty"`
}

func budgetPrompt(research *models.ConsolidatedResearch, req *models.ParsedRequest) string {
	costs := struct {
		Venues       []costEntry        `json:"venues"`
		Activities   []costEntry        `json:"activities"`
		Distribution map[string]float64 `json:"suggestedDistribution"`
	}{Venues: []costEntry{}, Activities: []costEntry{}, Distribution: BudgetDistribution(req)}

	for _, v := range research.Venues {
		if v.Cost != "" {
			costs.Venues = append(costs.Venues, costEntry{Name: v.Name, Type: v.Type, Cost: v.Cost, Size: v.Capacity})
		}
	}
	for _, a := range research.Activities {
		if a.Cost != "" {
			costs.Activities = append(costs.Activities, costEntry{Name: a.Name, Type: a.Type, Cost: a.Cost, Size: a.GroupSize})
		}
	}

	return fmt.Sprintf(`Analyze budget implications for %s itinerary:

Context:
- Total Budget: %s %.0f
- Participants: %d
- Duration: %d days
- Location: %s

Available Cost Data:
%s

Provide detailed budget analysis and allocation recommendations.`,
		req.Type, req.Currency, req.Budget, req.Participants, req.Duration, req.Location, indent(costs))
}

func logisticsPrompt(research *models.ConsolidatedResearch, req *models.ParsedRequest) string {
	return fmt.Sprintf(`Create logistics summary for %s itinerary:

Context:
- Location: %s
- Participants: %d
- Duration: %d days
- Type: %s

Practical Information:
%s

Venues and Locations:
%s

Create practical logistics guidance for group coordination and implementation.`,
		req.Type, req.Location, req.Participants, req.Duration, req.Type,
		indent(research.PracticalInfo), indent(venueLocations(firstVenues(research.Venues, 10))))
}

type venueLocation struct {
	Name           string `json:"name"`
	Location       string `json:"location"`
	Address        string `json:"address,omitempty"`
	OperatingHours string `json:"operatingHours,omitempty"`
}

func venueLocations(venues []models.Venue) []venueLocation {
	out := make([]venueLocation, len(venues))
	for i, v := range venues {
		out[i] = venueLocation{Name: v.Name, Location: v.Location, Address: v.Address, OperatingHours: v.OperatingHours}
	}
	return out
}

func indent(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
