// internal/models/suggestion.go
package models

// SuggestedActivity is a candidate activity proposed before any research.
type SuggestedActivity struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	Duration      FlexString `json:"duration"`
	EstimatedCost FlexNumber `json:"estimatedCost"`
	Participants  FlexString `json:"participants,omitempty"`
	Location      string     `json:"location,omitempty"`
	Requirements  FlexList   `json:"requirements"`
	TimeSlot      string     `json:"timeSlot,omitempty"`
	Alternatives  FlexList   `json:"alternatives"`
}

type ActivitySuggestions struct {
	Activities         []SuggestedActivity `json:"activities"`
	TotalEstimatedCost FlexNumber          `json:"totalEstimatedCost"`
	Notes              FlexString          `json:"notes"`
}

// Categories returns the distinct suggestion categories in first-seen order.
func (s ActivitySuggestions) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range s.Activities {
		if a.Category == "" || seen[a.Category] {
			continue
		}
		seen[a.Category] = true
		out = append(out, a.Category)
	}
	return out
}
