// internal/models/itinerary.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	DataSourceResearch  = "research_data"
	DataSourceGenerated = "llm_generated"

	StatusCompleted = "completed"
)

// Itinerary is the day-by-day costed plan. It is created by the planner and
// changed only by finalization and refinement.
type Itinerary struct {
	ID                string              `json:"id"`
	Title             string              `json:"title"`
	Summary           string              `json:"summary"`
	Type              RequestType         `json:"type,omitempty"`
	TotalBudget       FlexNumber          `json:"totalBudget"`
	Currency          string              `json:"currency"`
	Location          string              `json:"location"`
	Participants      int                 `json:"participants"`
	Days              []Day               `json:"days"`
	BudgetBreakdown   CostBreakdown       `json:"budgetBreakdown,omitempty"`
	PracticalInfo     *ItineraryPractical `json:"practicalInfo,omitempty"`
	FinalNotes        *FinalNotes         `json:"finalNotes,omitempty"`
	BookingTimeline   FlexList            `json:"bookingTimeline,omitempty"`
	RequirementsList  FlexList            `json:"requirementsList,omitempty"`
	OptimizationNotes string              `json:"optimizationNotes,omitempty"`
	BudgetOptimized   bool                `json:"budgetOptimized,omitempty"`
	QualityScore      FlexNumber          `json:"qualityScore,omitempty"`
	Metadata          ItineraryMetadata   `json:"metadata"`
	RefinementHistory []RefinementEntry   `json:"refinementHistory,omitempty"`
	GeneratedAt       string              `json:"generatedAt,omitempty"`
	OptimizedAt       string              `json:"optimizedAt,omitempty"`
	FinalizedAt       string              `json:"finalizedAt,omitempty"`
	RefinedAt         string              `json:"refinedAt,omitempty"`
	Version           string              `json:"version,omitempty"`
	CompletionStatus  string              `json:"completionStatus,omitempty"`
}

type Day struct {
	Day            int                 `json:"day"`
	Date           string              `json:"date"`
	Theme          string              `json:"theme"`
	Activities     []ItineraryActivity `json:"activities"`
	TotalCost      FlexNumber          `json:"totalCost"`
	Meals          Meals               `json:"meals"`
	Transportation FlexString          `json:"transportation,omitempty"`
	Logistics      FlexString          `json:"logistics,omitempty"`
	Notes          FlexString          `json:"notes,omitempty"`
}

type Meals struct {
	Breakfast *Meal `json:"breakfast,omitempty"`
	Lunch     *Meal `json:"lunch,omitempty"`
	Dinner    *Meal `json:"dinner,omitempty"`
}

type Meal struct {
	Venue FlexString `json:"venue"`
	Cost  FlexNumber `json:"cost"`
}

// UnmarshalJSON accepts a bare description or cost in place of the object.
func (m *Meal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*m = Meal{}
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '{':
		type plain Meal
		var p plain
		if err := json.Unmarshal(b, &p); err != nil {
			return nil
		}
		*m = Meal(p)
	case '"':
		return m.Venue.UnmarshalJSON(b)
	default:
		return m.Cost.UnmarshalJSON(b)
	}
	return nil
}

type ActivityVenue struct {
	Name        string     `json:"name"`
	Address     FlexString `json:"address,omitempty"`
	Contact     FlexString `json:"contact,omitempty"`
	Capacity    FlexString `json:"capacity,omitempty"`
	BookingInfo FlexString `json:"bookingInfo,omitempty"`
	Highlights  FlexList   `json:"highlights,omitempty"`
}

type ItineraryActivity struct {
	ID                  string         `json:"id"`
	TimeSlot            string         `json:"timeSlot"`
	Title               string         `json:"title"`
	Description         FlexString     `json:"description"`
	Category            string         `json:"category"`
	Cost                FlexNumber     `json:"cost"`
	Duration            FlexString     `json:"duration,omitempty"`
	Venue               *ActivityVenue `json:"venue,omitempty"`
	Location            FlexString     `json:"location,omitempty"`
	Address             FlexString     `json:"address,omitempty"`
	Contact             FlexString     `json:"contact,omitempty"`
	Requirements        FlexList       `json:"requirements,omitempty"`
	Alternatives        FlexList       `json:"alternatives,omitempty"`
	BookingTips         FlexList       `json:"bookingTips,omitempty"`
	BookingInstructions FlexString     `json:"bookingInstructions,omitempty"`
	ResearchNotes       FlexString     `json:"researchNotes,omitempty"`
	DataSource          string         `json:"dataSource,omitempty"`
}

// VenueName is the activity's venue name, or "" when it has none.
func (a ItineraryActivity) VenueName() string {
	if a.Venue == nil {
		return ""
	}
	return a.Venue.Name
}

type ItineraryPractical struct {
	Transportation    FlexString `json:"transportation,omitempty"`
	Accommodation     FlexString `json:"accommodation,omitempty"`
	EmergencyContacts FlexString `json:"emergencyContacts,omitempty"`
	LocalTips         FlexList   `json:"localTips,omitempty"`
}

type FinalNotes struct {
	WeatherInfo          FlexString            `json:"weatherInfo"`
	PackingList          FlexList              `json:"packingList"`
	CulturalTips         FlexList              `json:"culturalTips"`
	EmergencyInfo        map[string]FlexString `json:"emergencyInfo"`
	PreparationChecklist FlexList              `json:"preparationChecklist"`
	PaymentTips          FlexString            `json:"paymentTips"`
}

type ResearchUsage struct {
	Venues           int  `json:"venuesCount"`
	Activities       int  `json:"activitiesCount"`
	HasLocalInsights bool `json:"hasLocalInsights"`
}

type ItineraryMetadata struct {
	Version              string         `json:"version,omitempty"`
	Generator            string         `json:"generator,omitempty"`
	DataIntegrationScore int            `json:"dataIntegrationScore"`
	IsFallback           bool           `json:"isFallback"`
	ResearchDataUsed     *ResearchUsage `json:"researchDataUsed,omitempty"`
	IntegrationWarnings  []string       `json:"integrationWarnings,omitempty"`
}

// RefinementEntry is one applied refinement. History is append-only.
type RefinementEntry struct {
	Prompt     string `json:"prompt"`
	Type       string `json:"type"`
	Scope      string `json:"scope"`
	DayNumber  int    `json:"dayNumber,omitempty"`
	ActivityID string `json:"activityId,omitempty"`
	Timestamp  string `json:"timestamp"`
}

type ScopeType string

const (
	ScopeEntire   ScopeType = "entire"
	ScopeDay      ScopeType = "day"
	ScopeActivity ScopeType = "activity"
)

// RefinementScope narrows a refinement to one day or one activity.
type RefinementScope struct {
	Type       ScopeType `json:"type"`
	DayNumber  int       `json:"dayNumber,omitempty"`
	ActivityID string    `json:"activityId,omitempty"`
}

// Validate checks that the target fields required by the scope type are set.
func (s RefinementScope) Validate() error {
	switch s.Type {
	case "", ScopeEntire:
		return nil
	case ScopeDay:
		if s.DayNumber < 1 {
			return fmt.Errorf("day scope requires dayNumber >= 1")
		}
	case ScopeActivity:
		if s.ActivityID == "" {
			return fmt.Errorf("activity scope requires activityId")
		}
	default:
		return fmt.Errorf("unknown scope type %q", s.Type)
	}
	return nil
}

// ActivityCount returns the number of activities across all days.
func (it *Itinerary) ActivityCount() int {
	n := 0
	for _, d := range it.Days {
		n += len(d.Activities)
	}
	return n
}

// FindActivity returns the day index and activity index for id.
func (it *Itinerary) FindActivity(id string) (int, int, bool) {
	for di, d := range it.Days {
		for ai, a := range d.Activities {
			if a.ID == id {
				return di, ai, true
			}
		}
	}
	return -1, -1, false
}

// Clone returns a deep copy through JSON.
func (it *Itinerary) Clone() *Itinerary {
	data, err := json.Marshal(it)
	if err != nil {
		return nil
	}
	var out Itinerary
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return &out
}

// DecodeGenerated decodes a completion-produced itinerary. Fields the service
// owns (id, metadata, history, timestamps) are ignored in the payload.
func DecodeGenerated(raw json.RawMessage) (*Itinerary, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for _, owned := range []string{"id", "metadata", "refinementHistory", "generatedAt", "refinedAt", "finalizedAt", "optimizedAt"} {
		delete(fields, owned)
	}
	cleaned, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	var it Itinerary
	if err := json.Unmarshal(cleaned, &it); err != nil {
		return nil, err
	}
	if len(it.Days) == 0 {
		return nil, fmt.Errorf("itinerary has no days")
	}
	return &it, nil
}
