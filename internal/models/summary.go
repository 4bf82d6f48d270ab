// internal/models/summary.go
package models

// ==========================
// Category summaries
// ==========================

type CategorySummaries struct {
	Accommodation AccommodationSummary `json:"accommodationSummary"`
	Venues        VenuesSummary        `json:"venuesSummary"`
	Activities    ActivitiesSummary    `json:"activitiesSummary"`
	Practical     PracticalSummary     `json:"practicalSummary"`
}

type AccommodationSummary struct {
	Overview        FlexString `json:"overview"`
	TopOptions      []Venue    `json:"topOptions"`
	BudgetInsights  FlexString `json:"budgetInsights"`
	Recommendations FlexString `json:"recommendations"`
}

type VenuesSummary struct {
	Overview         FlexString `json:"overview"`
	ConferenceVenues []Venue    `json:"conferenceVenues"`
	DiningOptions    []Venue    `json:"diningOptions"`
	AttractionVenues []Venue    `json:"attractionVenues"`
	Recommendations  FlexString `json:"recommendations"`
}

type ActivitiesSummary struct {
	Overview        FlexString `json:"overview"`
	TeamBuilding    []Activity `json:"teamBuildingActivities"`
	Cultural        []Activity `json:"culturalActivities"`
	Adventure       []Activity `json:"adventureActivities"`
	Recommendations FlexString `json:"recommendations"`
}

type PracticalSummary struct {
	Transportation       FlexString `json:"transportation"`
	BudgetConsiderations FlexString `json:"budgetConsiderations"`
	SeasonalFactors      FlexString `json:"seasonalFactors"`
	LocalInsights        FlexString `json:"localInsights"`
}

// ==========================
// Recommendations
// ==========================

type Recommendations struct {
	MustHaveItems          []MustHaveItem             `json:"mustHaveItems"`
	DayStructures          []DayStructure             `json:"dayStructureRecommendations"`
	Logistical             []LogisticalRecommendation `json:"logisticalRecommendations"`
	BudgetOptimizationTips FlexList                   `json:"budgetOptimizationTips"`
	RiskMitigation         FlexList                   `json:"riskMitigation"`
}

type MustHaveItem struct {
	Item          string     `json:"item"`
	Type          string     `json:"type"`
	Reasoning     FlexString `json:"reasoning"`
	Cost          FlexString `json:"cost"`
	BookingAdvice FlexString `json:"bookingAdvice"`
}

type DayStructure struct {
	DayType               string     `json:"dayType"`
	Structure             FlexString `json:"structure"`
	RecommendedActivities FlexList   `json:"recommendedActivities"`
	BudgetAllocation      FlexString `json:"budgetAllocation"`
}

type LogisticalRecommendation struct {
	Category       string     `json:"category"`
	Recommendation FlexString `json:"recommendation"`
	Cost           FlexString `json:"cost"`
	Implementation FlexString `json:"implementation"`
}

// ==========================
// Budget analysis
// ==========================

type BudgetAnalysis struct {
	Totals               BudgetTotals        `json:"totalBudgetAnalysis"`
	CostBreakdown        map[string]CostLine `json:"costBreakdown"`
	Scenarios            []BudgetScenario    `json:"budgetScenarios"`
	CostOptimizationTips FlexList            `json:"costOptimizationTips"`
	RiskMitigation       FlexList            `json:"riskMitigation,omitempty"`
}

type BudgetTotals struct {
	AvailableBudget       FlexNumber `json:"availableBudget"`
	PerPersonBudget       FlexNumber `json:"perPersonBudget"`
	PerDayBudget          FlexNumber `json:"perDayBudget"`
	FeasibilityAssessment FlexString `json:"feasibilityAssessment"`
}

type CostLine struct {
	EstimatedCost FlexNumber `json:"estimatedCost"`
	Percentage    FlexNumber `json:"percentage"`
	Options       FlexList   `json:"options,omitempty"`
	Description   FlexString `json:"description,omitempty"`
}

type BudgetScenario struct {
	Scenario    string     `json:"scenario"`
	TotalCost   FlexNumber `json:"totalCost"`
	Description FlexString `json:"description"`
	Tradeoffs   FlexString `json:"tradeoffs"`
}

// ==========================
// Logistics
// ==========================

type LogisticsSummary struct {
	TransportationPlan TransportationPlan `json:"transportationPlan"`
	Timing             TimingPlan         `json:"timingConsiderations"`
	GroupLogistics     GroupLogistics     `json:"groupLogistics"`
	LocalFactors       LocalFactors       `json:"localFactors"`
}

type TransportationPlan struct {
	Overview        FlexString        `json:"overview"`
	Options         []TransportOption `json:"options"`
	Recommendations FlexString        `json:"recommendations"`
}

type TransportOption struct {
	Method      string     `json:"method"`
	Cost        FlexString `json:"cost"`
	Suitability FlexString `json:"suitability"`
	BookingInfo FlexString `json:"bookingInfo"`
}

type TimingPlan struct {
	PeakSeasons      FlexString `json:"peakSeasons"`
	OperatingHours   FlexString `json:"operatingHours"`
	BookingLeadTimes FlexString `json:"bookingLeadTimes"`
	GroupScheduling  FlexString `json:"groupScheduling"`
}

type GroupLogistics struct {
	CoordinationNeeds   FlexString `json:"coordinationNeeds"`
	CommunicationPlan   FlexString `json:"communicationPlan"`
	ContingencyPlanning FlexString `json:"contingencyPlanning"`
}

type LocalFactors struct {
	Weather                FlexString `json:"weather"`
	CulturalConsiderations FlexString `json:"culturalConsiderations"`
	SafetyNotes            FlexString `json:"safetyNotes"`
	EmergencyInfo          FlexString `json:"emergencyInfo"`
}

// ==========================
// Bundle
// ==========================

// FallbackFlags records which artifacts were produced deterministically.
type FallbackFlags struct {
	Categories      bool `json:"categories"`
	Recommendations bool `json:"recommendations"`
	Budget          bool `json:"budget"`
	Logistics       bool `json:"logistics"`
}

func (f FallbackFlags) Any() bool {
	return f.Categories || f.Recommendations || f.Budget || f.Logistics
}

// ResearchSummary bundles the consolidated research with its derived views.
type ResearchSummary struct {
	Categories      CategorySummaries    `json:"categorySummaries"`
	Recommendations Recommendations      `json:"recommendations"`
	Budget          BudgetAnalysis       `json:"budgetAnalysis"`
	Logistics       LogisticsSummary     `json:"logisticsSummary"`
	Research        ConsolidatedResearch `json:"consolidatedContent"`
	Fallbacks       FallbackFlags        `json:"fallbacks"`
	QualityWarnings []string             `json:"qualityWarnings,omitempty"`
	SummarizedAt    string               `json:"summarizedAt"`
}
