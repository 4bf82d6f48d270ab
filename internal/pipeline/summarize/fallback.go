// internal/pipeline/summarize/fallback.go
package summarize

import (
	"fmt"
	"math"
	"strings"

	"itinerary-workers/internal/models"
)

// The fallbacks below are pure functions of the research and the request.

var (
	optimizationTips = models.FlexList{
		"Book accommodations early for group discounts",
		"Consider off-season timing",
		"Look for group discounts",
		"Bundle activities for savings",
	}
	riskMitigations = models.FlexList{
		"Have backup indoor activities for weather",
		"Confirm all bookings 48 hours before",
		"Keep emergency contact list",
	}
)

// Share is one slice of a fixed budget split.
type Share struct {
	Category string
	Percent  float64
	Options  models.FlexList
	Note     string
}

// fallbackBreakdown is the split used when budget analysis falls back.
var fallbackBreakdown = []Share{
	{Category: "accommodation", Percent: 40, Options: models.FlexList{"Budget hotels", "Mid-range hotels", "Premium resorts"}},
	{Category: "activities", Percent: 30, Options: models.FlexList{"Group activities", "Individual experiences", "Premium tours"}},
	{Category: "meals", Percent: 20, Options: models.FlexList{"Local restaurants", "Hotel dining", "Catered meals"}},
	{Category: "transportation", Percent: 8, Options: models.FlexList{"Public transport", "Private bus", "Individual taxis"}},
	{Category: "miscellaneous", Percent: 2, Note: "Tips, emergency fund, miscellaneous expenses"},
}

var (
	corporateDistribution = []Share{
		{Category: "venue", Percent: 35},
		{Category: "catering", Percent: 30},
		{Category: "activities", Percent: 20},
		{Category: "materials", Percent: 10},
		{Category: "miscellaneous", Percent: 5},
	}
	travelDistribution = []Share{
		{Category: "accommodation", Percent: 35},
		{Category: "dining", Percent: 25},
		{Category: "activities", Percent: 25},
		{Category: "transport", Percent: 10},
		{Category: "miscellaneous", Percent: 5},
	}
)

// BudgetDistribution splits the request budget by event type. The result maps
// category to its rounded amount.
func BudgetDistribution(req *models.ParsedRequest) map[string]float64 {
	shares := travelDistribution
	if req.IsCorporate() {
		shares = corporateDistribution
	}
	out := make(map[string]float64, len(shares))
	for _, s := range shares {
		out[s.Category] = math.Round(req.Budget * s.Percent / 100)
	}
	return out
}

// FallbackCategories summarizes research by counting and taking first-three
// subsets of each venue and activity type.
func FallbackCategories(research *models.ConsolidatedResearch, req *models.ParsedRequest) models.CategorySummaries {
	hotels := research.VenuesOfType("hotel")
	info := research.PracticalInfo

	return models.CategorySummaries{
		Accommodation: models.AccommodationSummary{
			Overview:        models.FlexString(fmt.Sprintf("Found %d accommodation options in %s", len(hotels), req.Location)),
			TopOptions:      firstVenues(hotels, 3),
			BudgetInsights:  "Cost analysis unavailable",
			Recommendations: "Manual review of accommodation options recommended",
		},
		Venues: models.VenuesSummary{
			Overview:         models.FlexString(fmt.Sprintf("Available venues in %s", req.Location)),
			ConferenceVenues: firstVenues(research.VenuesOfType("venue"), 3),
			DiningOptions:    firstVenues(research.VenuesOfType("restaurant"), 3),
			AttractionVenues: firstVenues(research.VenuesOfType("attraction"), 3),
			Recommendations:  "Review individual venue options",
		},
		Activities: models.ActivitiesSummary{
			Overview:        models.FlexString(fmt.Sprintf("Found %d activities", len(research.Activities))),
			TeamBuilding:    firstActivities(research.ActivitiesOfType("team_building"), 3),
			Cultural:        firstActivities(research.ActivitiesOfType("cultural"), 3),
			Adventure:       firstActivities(research.ActivitiesOfType("adventure"), 3),
			Recommendations: "Manual activity selection recommended",
		},
		Practical: models.PracticalSummary{
			Transportation:       joinOr(info.Transportation, "Transportation info not available"),
			BudgetConsiderations: joinOr(info.BudgetInsights, "Budget analysis pending"),
			SeasonalFactors:      joinOr(info.SeasonalTips, "Seasonal info not available"),
			LocalInsights:        joinOr(info.LocalTips, "Local insights not available"),
		},
	}
}

// FallbackRecommendations promotes the three most relevant venues to
// must-haves and proposes a standard day.
func FallbackRecommendations(research *models.ConsolidatedResearch, req *models.ParsedRequest) models.Recommendations {
	mustHave := make([]models.MustHaveItem, 0, 3)
	for _, v := range firstVenues(research.Venues, 3) {
		mustHave = append(mustHave, models.MustHaveItem{
			Item:          v.Name,
			Type:          v.Type,
			Reasoning:     models.FlexString(fmt.Sprintf("High-rated %s in %s", v.Type, req.Location)),
			Cost:          orDefault(v.Cost, "Cost TBD"),
			BookingAdvice: orDefault(models.FlexString(v.BookingInfo), "Contact venue directly"),
		})
	}

	names := models.FlexList{}
	for _, a := range firstActivities(research.Activities, 3) {
		names = append(names, a.Name)
	}

	return models.Recommendations{
		MustHaveItems: mustHave,
		DayStructures: []models.DayStructure{{
			DayType:               "Standard day",
			Structure:             "Morning activity, lunch, afternoon activity, dinner",
			RecommendedActivities: names,
			BudgetAllocation:      models.FlexString(fmt.Sprintf("%.0f per day", perUnit(req.Budget, req.Duration))),
		}},
		Logistical: []models.LogisticalRecommendation{{
			Category:       "transportation",
			Recommendation: "Arrange group transportation",
			Cost:           "TBD",
			Implementation: "Book in advance",
		}},
		BudgetOptimizationTips: append(models.FlexList{}, optimizationTips...),
		RiskMitigation:         append(models.FlexList{}, riskMitigations...),
	}
}

// FallbackBudget derives per-person and per-day figures, a fixed percentage
// breakdown and the budget/standard/premium scenarios.
func FallbackBudget(req *models.ParsedRequest) models.BudgetAnalysis {
	breakdown := make(map[string]models.CostLine, len(fallbackBreakdown))
	for _, s := range fallbackBreakdown {
		breakdown[s.Category] = models.CostLine{
			EstimatedCost: models.FlexNumber(math.Round(req.Budget * s.Percent / 100)),
			Percentage:    models.FlexNumber(s.Percent),
			Options:       s.Options,
			Description:   models.FlexString(s.Note),
		}
	}

	return models.BudgetAnalysis{
		Totals: models.BudgetTotals{
			AvailableBudget: models.FlexNumber(req.Budget),
			PerPersonBudget: models.FlexNumber(perUnit(req.Budget, req.Participants)),
			PerDayBudget:    models.FlexNumber(perUnit(req.Budget, req.Duration)),
			FeasibilityAssessment: models.FlexString(fmt.Sprintf("Budget of %s %.0f for %d people over %d days",
				req.Currency, req.Budget, req.Participants, req.Duration)),
		},
		CostBreakdown: breakdown,
		Scenarios: []models.BudgetScenario{
			{
				Scenario:    "budget",
				TotalCost:   models.FlexNumber(math.Round(req.Budget * 0.8)),
				Description: "Basic accommodations and activities",
				Tradeoffs:   "Limited premium experiences",
			},
			{
				Scenario:    "standard",
				TotalCost:   models.FlexNumber(req.Budget),
				Description: "Balanced mix of experiences",
				Tradeoffs:   "Good value for money",
			},
			{
				Scenario:    "premium",
				TotalCost:   models.FlexNumber(math.Round(req.Budget * 1.2)),
				Description: "High-end accommodations and unique experiences",
				Tradeoffs:   "Exceeds initial budget",
			},
		},
		CostOptimizationTips: append(models.FlexList{}, optimizationTips...),
		RiskMitigation:       append(models.FlexList{}, riskMitigations...),
	}
}

// FallbackLogistics is the generic group transportation and timing plan.
func FallbackLogistics(req *models.ParsedRequest) models.LogisticsSummary {
	return models.LogisticsSummary{
		TransportationPlan: models.TransportationPlan{
			Overview: models.FlexString(fmt.Sprintf("Transportation planning for %d people in %s", req.Participants, req.Location)),
			Options: []models.TransportOption{
				{
					Method:      "Private bus/coach",
					Cost:        "TBD - depends on distance and duration",
					Suitability: "Best for large groups",
					BookingInfo: "Book 2-3 weeks in advance",
				},
				{
					Method:      "Multiple taxis/cabs",
					Cost:        "Higher cost but more flexible",
					Suitability: "Good for smaller groups or split activities",
					BookingInfo: "Can be arranged day-of",
				},
			},
			Recommendations: "Private bus recommended for group cohesion and cost efficiency",
		},
		Timing: models.TimingPlan{
			PeakSeasons:      "Check local peak tourist seasons",
			OperatingHours:   "Verify venue and attraction operating hours",
			BookingLeadTimes: "Book accommodations and major activities 2-4 weeks ahead",
			GroupScheduling:  "Allow buffer time between activities for group movement",
		},
		GroupLogistics: models.GroupLogistics{
			CoordinationNeeds:   "Designate group leaders and point persons",
			CommunicationPlan:   "Establish WhatsApp group or similar for coordination",
			ContingencyPlanning: "Have backup indoor activities and flexible scheduling",
		},
		LocalFactors: models.LocalFactors{
			Weather:                models.FlexString(fmt.Sprintf("Check %s weather patterns for travel dates", req.Location)),
			CulturalConsiderations: "Research local customs and dress codes",
			SafetyNotes:            "Keep emergency contacts and first aid readily available",
			EmergencyInfo:          "Identify nearest hospitals and police stations",
		},
	}
}

func firstVenues(venues []models.Venue, n int) []models.Venue {
	if len(venues) > n {
		venues = venues[:n]
	}
	return append([]models.Venue{}, venues...)
}

func firstActivities(activities []models.Activity, n int) []models.Activity {
	if len(activities) > n {
		activities = activities[:n]
	}
	return append([]models.Activity{}, activities...)
}

func joinOr(items models.FlexList, fallback string) models.FlexString {
	if len(items) == 0 {
		return models.FlexString(fallback)
	}
	return models.FlexString(strings.Join(items, ", "))
}

func orDefault(s models.FlexString, fallback string) models.FlexString {
	if strings.TrimSpace(s.String()) == "" {
		return models.FlexString(fallback)
	}
	return s
}

func perUnit(budget float64, n int) float64 {
	if n < 1 {
		n = 1
	}
	return math.Round(budget / float64(n))
}
