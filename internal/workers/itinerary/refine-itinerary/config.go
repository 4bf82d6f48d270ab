// internal/workers/itinerary/refine-itinerary/config.go
package refineitinerary

import "time"

type Config struct {
	Timeout time.Duration
	// IndexedResearch lets refinement fall back to venues from the venue
	// index when the archived record carries no research.
	IndexedResearch bool
	IndexedVenues   int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         3 * time.Minute,
		IndexedResearch: true,
		IndexedVenues:   10,
	}
}
