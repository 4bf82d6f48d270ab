// internal/workers/itinerary/refine-itinerary/models.go
package refineitinerary

import "itinerary-workers/internal/models"

type Input struct {
	ItineraryID string                 `json:"itineraryId"`
	Prompt      string                 `json:"prompt"`
	Scope       models.RefinementScope `json:"scope"`
}

type Output struct {
	ItineraryID     string             `json:"itineraryId"`
	Itinerary       *models.Itinerary  `json:"itinerary"`
	RefinementType  string             `json:"refinementType"`
	ResearchSource  string             `json:"researchSource"`
	DataQuality     models.DataQuality `json:"dataQuality"`
	RefinementCount int                `json:"refinementCount"`
}

// Research sources
const (
	ResearchArchived = "archived"
	ResearchIndexed  = "indexed"
	ResearchNone     = "none"
)
