// internal/workers/itinerary/generate-itinerary/models.go
package generateitinerary

import (
	"itinerary-workers/internal/models"
	"itinerary-workers/internal/pipeline/workflow"
)

type Input struct {
	UserInput string `json:"userInput"`
	RequestID string `json:"requestId,omitempty"`
}

type Output struct {
	ItineraryID   string                  `json:"itineraryId"`
	Itinerary     *models.Itinerary       `json:"itinerary"`
	DataQuality   models.DataQuality      `json:"dataQuality"`
	QualityStatus string                  `json:"qualityStatus"`
	Issues        []workflow.Issue        `json:"issues"`
	Suggestions   []workflow.Optimization `json:"suggestions"`
	IndexedVenues int                     `json:"indexedVenues"`
	GeneratedAt   string                  `json:"generatedAt"` // ISO 8601
}
