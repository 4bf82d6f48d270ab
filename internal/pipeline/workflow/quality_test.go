package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"itinerary-workers/internal/models"
)

func TestOverallScoreAndStatus(t *testing.T) {
	q := models.DataQuality{SearchQuality: 100, ExtractionQuality: 80, IntegrationScore: 50}
	assert.Equal(t, 77.0, OverallScore(q))

	tests := []struct {
		score float64
		want  string
	}{
		{100, StatusExcellent},
		{80, StatusExcellent},
		{79.9, StatusGood},
		{65, StatusGood},
		{45, StatusFair},
		{44, StatusPoor},
		{0, StatusPoor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QualityStatus(tt.score), tt.score)
	}
}

func TestAssess(t *testing.T) {
	a := Assess(models.DataQuality{SearchQuality: 90, ExtractionQuality: 60, IntegrationScore: 30})
	assert.Equal(t, StatusExcellent, a.Search.Status)
	assert.Equal(t, StatusFair, a.Extraction.Status)
	assert.Equal(t, StatusPoor, a.Integration.Status)
	assert.Equal(t, 60.0, a.Overall.Score)
	assert.Equal(t, StatusFair, a.Overall.Status)
}

func TestDiagnose(t *testing.T) {
	issues := Diagnose(models.DataQuality{SearchQuality: 49, ExtractionQuality: 60, IntegrationScore: 39})
	if assert.Len(t, issues, 2) {
		assert.Equal(t, "search", issues[0].Phase)
		assert.Equal(t, "high", issues[0].Severity)
		assert.Equal(t, "integration", issues[1].Phase)
		assert.Equal(t, "medium", issues[1].Severity)
	}

	assert.Empty(t, Diagnose(models.DataQuality{SearchQuality: 50, ExtractionQuality: 60, IntegrationScore: 40}))
}

func TestOptimizationSuggestions(t *testing.T) {
	got := OptimizationSuggestions(models.DataQuality{SearchQuality: 70, ExtractionQuality: 69, IntegrationScore: 49})
	if assert.Len(t, got, 2) {
		assert.Equal(t, Optimization{Category: "extraction", Suggestion: "Implement retry mechanism for failed URL extractions", Impact: "high"}, got[0])
		assert.Equal(t, "integration", got[1].Category)
	}
}
