// internal/pipeline/workflow/quality.go
package workflow

import (
	"math"

	"itinerary-workers/internal/models"
)

const (
	searchWeight      = 0.3
	extractionWeight  = 0.4
	integrationWeight = 0.3
)

const (
	StatusExcellent = "excellent"
	StatusGood      = "good"
	StatusFair      = "fair"
	StatusPoor      = "poor"
)

// OverallScore weights search 30%, extraction 40% and integration 30%.
func OverallScore(q models.DataQuality) float64 {
	return math.Round(q.SearchQuality*searchWeight + q.ExtractionQuality*extractionWeight + q.IntegrationScore*integrationWeight)
}

func QualityStatus(score float64) string {
	switch {
	case score >= 80:
		return StatusExcellent
	case score >= 65:
		return StatusGood
	case score >= 45:
		return StatusFair
	default:
		return StatusPoor
	}
}

type PhaseAssessment struct {
	Score  float64 `json:"score"`
	Status string  `json:"status"`
}

type Assessment struct {
	Search      PhaseAssessment `json:"searchPhase"`
	Extraction  PhaseAssessment `json:"extractionPhase"`
	Integration PhaseAssessment `json:"integrationPhase"`
	Overall     PhaseAssessment `json:"overall"`
}

func Assess(q models.DataQuality) Assessment {
	phase := func(score float64) PhaseAssessment {
		return PhaseAssessment{Score: score, Status: QualityStatus(score)}
	}
	return Assessment{
		Search:      phase(q.SearchQuality),
		Extraction:  phase(q.ExtractionQuality),
		Integration: phase(q.IntegrationScore),
		Overall:     phase(OverallScore(q)),
	}
}

type Issue struct {
	Phase      string `json:"phase"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

// Diagnose lists the phases whose quality is below their threshold:
// search 50, extraction 60, integration 40.
func Diagnose(q models.DataQuality) []Issue {
	issues := []Issue{}
	if q.SearchQuality < 50 {
		issues = append(issues, Issue{
			Phase:      "search",
			Severity:   "high",
			Message:    "Low search quality detected. Consider broadening search terms or checking API connectivity.",
			Suggestion: "Review search queries and ensure location and preferences are specific enough.",
		})
	}
	if q.ExtractionQuality < 60 {
		issues = append(issues, Issue{
			Phase:      "extraction",
			Severity:   "high",
			Message:    "Content extraction quality is low. Many URLs may be failing.",
			Suggestion: "Check URL accessibility and consider retrying failed extractions.",
		})
	}
	if q.IntegrationScore < 40 {
		issues = append(issues, Issue{
			Phase:      "integration",
			Severity:   "medium",
			Message:    "Low research data integration. Itinerary may lack specific venue details.",
			Suggestion: "Improve content summarization or enhance data extraction specificity.",
		})
	}
	return issues
}

type Optimization struct {
	Category   string `json:"category"`
	Suggestion string `json:"suggestion"`
	Impact     string `json:"impact"`
}

func OptimizationSuggestions(q models.DataQuality) []Optimization {
	out := []Optimization{}
	if q.SearchQuality < 70 {
		out = append(out, Optimization{Category: "search", Suggestion: "Add more specific search terms related to the location", Impact: "medium"})
	}
	if q.ExtractionQuality < 70 {
		out = append(out, Optimization{Category: "extraction", Suggestion: "Implement retry mechanism for failed URL extractions", Impact: "high"})
	}
	if q.IntegrationScore < 50 {
		out = append(out, Optimization{Category: "integration", Suggestion: "Enhance structured data extraction from content", Impact: "high"})
	}
	return out
}
