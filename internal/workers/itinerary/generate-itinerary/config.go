// internal/workers/itinerary/generate-itinerary/config.go
package generateitinerary

import "time"

type Config struct {
	Timeout      time.Duration
	IndexVenues  bool
	MaxInputSize int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      10 * time.Minute,
		IndexVenues:  true,
		MaxInputSize: 4000,
	}
}
