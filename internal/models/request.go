// internal/models/request.go
package models

// RequestType selects the corporate or travel templates downstream.
type RequestType string

const (
	RequestTravel    RequestType = "TRAVEL"
	RequestCorporate RequestType = "CORPORATE"
)

// FlexibleDate marks a request without a usable start date.
const FlexibleDate = "flexible"

// ParsedRequest is the normalized form of the user's free-text request.
type ParsedRequest struct {
	Type            RequestType `json:"type"`
	Location        string      `json:"location"`
	Participants    int         `json:"participants"`
	Duration        int         `json:"duration"`
	Budget          float64     `json:"budget"`
	Currency        string      `json:"currency"`
	Date            string      `json:"date"`
	Preferences     []string    `json:"preferences"`
	Dietary         []string    `json:"dietary"`
	EventType       string      `json:"eventType,omitempty"`
	Focus           string      `json:"focus,omitempty"`
	SpecialRequests string      `json:"specialRequests,omitempty"`
	RawInput        string      `json:"rawInput,omitempty"`
}

func (r ParsedRequest) IsCorporate() bool {
	return r.Type == RequestCorporate
}
