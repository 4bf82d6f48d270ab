// internal/workers/itinerary/export-itinerary/models.go
package exportitinerary

import "itinerary-workers/internal/models"

// Input names an archived itinerary or carries one inline. An inline
// itinerary wins when both are set.
type Input struct {
	ItineraryID string            `json:"itineraryId,omitempty"`
	Itinerary   *models.Itinerary `json:"itinerary,omitempty"`
	Format      string            `json:"format,omitempty"` // json, markdown, text, ics
}

type Output struct {
	ItineraryID string `json:"itineraryId,omitempty"`
	Format      string `json:"format"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
	Size        int    `json:"size"`
}
