// internal/pipeline/planner/planner.go
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"itinerary-workers/internal/common/backoff"
	"itinerary-workers/internal/common/config"
	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/common/genai"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/common/metrics"
	"itinerary-workers/internal/models"
)

const (
	Stage     = "planning"
	Version   = "2.0-enhanced"
	Generator = "itinerary-planner"
)

var ErrPlanning = errors.New("itinerary planning failed")

const corporateSystemPrompt = `You are an expert corporate event planner creating detailed itineraries.
Use the provided research data to create specific, actionable day-by-day schedules with real venues and activities.

CRITICAL INSTRUCTIONS:
1. Use ONLY the venues and activities from the research data
2. Include specific venue names, addresses, and contact information when available
3. Provide realistic timing and costs based on research data
4. Create logical flow between activities considering location and logistics
5. Ensure activities match the corporate event objectives
6. Include buffer time for transitions and meals
7. Provide detailed booking instructions and requirements`

const travelSystemPrompt = `You are an expert travel planner creating detailed itineraries.
Use the provided research data to create specific, actionable day-by-day travel schedules with real venues and activities.

CRITICAL INSTRUCTIONS:
1. Use ONLY the venues and activities from the research data
2. Include specific venue names, addresses, and practical information
3. Create logical geographical flow to minimize travel time
4. Balance different types of activities for an engaging experience
5. Include cultural immersion opportunities using researched venues
6. Provide realistic timing and costs based on research data
7. Include practical tips from research (local insights, transportation, etc.)`

var itinerarySchema = map[string]interface{}{
	"title":       "string",
	"summary":     "string",
	"totalBudget": "number",
	"currency":    "string",
	"days": []map[string]interface{}{{
		"day":   "number",
		"date":  "string",
		"theme": "string",
		"activities": []map[string]interface{}{{
			"timeSlot":    "string (e.g., '9:00 AM - 10:30 AM')",
			"title":       "string",
			"description": "string",
			"category":    "string",
			"venue": map[string]string{
				"name":     "string",
				"address":  "string",
				"contact":  "string",
				"capacity": "string",
			},
			"cost":                "number",
			"duration":            "string",
			"requirements":        "array of strings",
			"alternatives":        "array of backup options",
			"bookingInstructions": "string",
		}},
		"totalCost": "number",
		"meals": map[string]string{
			"breakfast": "object with venue and cost",
			"lunch":     "object with venue and cost",
			"dinner":    "object with venue and cost",
		},
		"transportation": "string",
		"notes":          "string",
	}},
	"budgetBreakdown": map[string]string{
		"accommodation":  "number",
		"activities":     "number",
		"meals":          "number",
		"transportation": "number",
		"miscellaneous":  "number",
	},
	"bookingTimeline":  "array of booking deadlines and instructions",
	"requirementsList": "array of items needed for successful execution",
}

// Planner turns the request, suggestions and research into a costed
// itinerary.
type Planner struct {
	completer genai.Completer
	settings  config.Settings
	sleep     backoff.Sleeper
	now       func() time.Time
	newID     func() string
	logger    logger.Logger
}

type Option func(*Planner)

// WithSleeper replaces the pause between completion attempts.
func WithSleeper(s backoff.Sleeper) Option {
	return func(p *Planner) {
		p.sleep = s
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Planner) {
		p.now = now
	}
}

// WithIDs replaces the itinerary id generator.
func WithIDs(newID func() string) Option {
	return func(p *Planner) {
		p.newID = newID
	}
}

func New(completer genai.Completer, settings config.Settings, log logger.Logger, opts ...Option) *Planner {
	p := &Planner{
		completer: completer,
		settings:  settings,
		sleep:     backoff.Sleep,
		now:       time.Now,
		newID:     uuid.NewString,
		logger: log.With(map[string]interface{}{
			"stage": Stage,
		}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan generates an itinerary grounded in the research summary. When
// generation fails a templated fallback is returned with
// metadata.isFallback set. The only error is a fallback that cannot be
// built.
func (p *Planner) Plan(ctx context.Context, req *models.ParsedRequest, suggestions *models.ActivitySuggestions, summary *models.ResearchSummary) (*models.Itinerary, error) {
	defer metrics.ObserveStage(Stage, time.Now())

	research := FormatResearch(summary)

	it, err := p.generate(ctx, req, suggestions, research)
	if err != nil {
		metrics.Fallback("itinerary")
		p.logger.Warn("itinerary generation failed, using template", map[string]interface{}{
			"error": err.Error(),
			"type":  req.Type,
		})
		it, err = Fallback(req, research)
		if err != nil {
			return nil, apperrors.NewPlanningFailedError(err)
		}
	}

	p.Enrich(it, req, research)

	p.logger.Info("itinerary planned", map[string]interface{}{
		"days":                 len(it.Days),
		"activities":           it.ActivityCount(),
		"dataIntegrationScore": it.Metadata.DataIntegrationScore,
		"isFallback":           it.Metadata.IsFallback,
	})
	return it, nil
}

// generate retries transport failures. An unparseable completion is not
// retried.
func (p *Planner) generate(ctx context.Context, req *models.ParsedRequest, suggestions *models.ActivitySuggestions, research *Research) (*models.Itinerary, error) {
	system := travelSystemPrompt
	if req.IsCorporate() {
		system = corporateSystemPrompt
	}
	request := genai.Request{
		Prompt:       Prompt(req, suggestions, research),
		SystemPrompt: system,
		Schema:       itinerarySchema,
	}

	var (
		it       *models.Itinerary
		parseErr error
	)
	err := backoff.Retry(ctx, p.settings.CompletionRetries, p.settings.CompletionRetryBackoff, p.sleep, func(attempt int) error {
		var raw json.RawMessage
		err := genai.CompleteJSON(ctx, p.completer, request, &raw)
		var cpe *genai.CompletionParseError
		if errors.As(err, &cpe) {
			parseErr = err
			return nil
		}
		if err != nil {
			p.logger.Debug("itinerary completion attempt failed", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			return err
		}
		decoded, decodeErr := models.DecodeGenerated(raw)
		if decodeErr != nil {
			parseErr = apperrors.NewCompletionParseError(Stage, decodeErr)
			return nil
		}
		it = decoded
		return nil
	})
	if err != nil {
		return nil, apperrors.NewCompletionFailedError(Stage, err)
	}
	if parseErr != nil {
		return nil, parseErr
	}
	return it, nil
}

// Enrich stamps service-owned fields, assigns activity ids and data
// sources, and scores research integration.
func (p *Planner) Enrich(it *models.Itinerary, req *models.ParsedRequest, research *Research) {
	it.ID = p.newID()
	it.Type = req.Type
	it.Location = req.Location
	it.Participants = req.Participants
	it.GeneratedAt = p.now().UTC().Format(time.RFC3339)
	if it.Currency == "" {
		it.Currency = req.Currency
	}
	if it.TotalBudget == 0 {
		it.TotalBudget = models.FlexNumber(req.Budget)
	}

	venues := research.Venues()
	for di := range it.Days {
		day := &it.Days[di]
		if day.Day == 0 {
			day.Day = di + 1
		}
		for ai := range day.Activities {
			a := &day.Activities[ai]
			a.ID = ActivityID(di+1, ai+1)
			a.DataSource = DataSource(*a, venues)
		}
	}

	it.Metadata.Version = Version
	it.Metadata.Generator = Generator
	it.Metadata.ResearchDataUsed = research.usage()
	it.Metadata.DataIntegrationScore = IntegrationScore(it, venues)
	it.Metadata.IntegrationWarnings = partialMatches(it, venues)
}

// ActivityID is the stable id of the a-th activity on day d, both 1-based.
func ActivityID(d, a int) string {
	return fmt.Sprintf("day%d_activity%d", d, a)
}

// Fallback builds the templated itinerary: one day per requested day, the
// budget split evenly across days, and one research activity per day taken
// round-robin.
func Fallback(req *models.ParsedRequest, research *Research) (*models.Itinerary, error) {
	if req.Duration < 1 {
		return nil, fmt.Errorf("%w: duration %d leaves no days to plan", ErrPlanning, req.Duration)
	}

	pool := research.Activities()
	perDay := models.FlexNumber(math.Round(req.Budget / float64(req.Duration)))
	days := make([]models.Day, 0, req.Duration)

	for i := 1; i <= req.Duration; i++ {
		day := models.Day{
			Day:        i,
			Date:       "TBD",
			Theme:      fmt.Sprintf("Day %d Activities", i),
			Activities: []models.ItineraryActivity{},
			TotalCost:  perDay,
			Meals: models.Meals{
				Breakfast: &models.Meal{Venue: "Hotel/Local restaurant", Cost: 500},
				Lunch:     &models.Meal{Venue: "Local restaurant", Cost: 800},
				Dinner:    &models.Meal{Venue: "Local restaurant", Cost: 1200},
			},
			Transportation: "Local transport",
			Notes:          "Detailed planning required",
		}

		if len(pool) > 0 {
			picked := pool[i%len(pool)]
			day.Activities = append(day.Activities, models.ItineraryActivity{
				TimeSlot:    "10:00 AM - 12:00 PM",
				Title:       nonEmpty(picked.Name, fmt.Sprintf("Activity %d", i)),
				Description: models.FlexString(nonEmpty(picked.Description, "Activity details to be confirmed")),
				Category:    nonEmpty(picked.Type, "general"),
				Venue: &models.ActivityVenue{
					Name:    nonEmpty(picked.Location, "TBD"),
					Address: "To be confirmed",
					Contact: "TBD",
				},
				Cost:                2000,
				Requirements:        append(models.FlexList{}, picked.Requirements...),
				BookingInstructions: "Book in advance",
			})
		}
		days = append(days, day)
	}

	return &models.Itinerary{
		Title:       fmt.Sprintf("%s Itinerary for %s", typeLabel(req.Type), req.Location),
		Summary:     fmt.Sprintf("A %d-day itinerary for %d participants", req.Duration, req.Participants),
		TotalBudget: models.FlexNumber(req.Budget),
		Currency:    req.Currency,
		Days:        days,
		BudgetBreakdown: models.CostBreakdown{
			"accommodation":  models.FlexNumber(math.Round(req.Budget * 0.4)),
			"activities":     models.FlexNumber(math.Round(req.Budget * 0.3)),
			"meals":          models.FlexNumber(math.Round(req.Budget * 0.2)),
			"transportation": models.FlexNumber(math.Round(req.Budget * 0.08)),
			"miscellaneous":  models.FlexNumber(math.Round(req.Budget * 0.02)),
		},
		BookingTimeline:  models.FlexList{"Book accommodation 2 weeks prior", "Confirm activities 1 week prior"},
		RequirementsList: models.FlexList{"Transportation", "Meal arrangements", "Activity bookings"},
		Metadata:         models.ItineraryMetadata{IsFallback: true},
	}, nil
}

// Prompt renders the planning request with every research group inline.
func Prompt(req *models.ParsedRequest, suggestions *models.ActivitySuggestions, research *Research) string {
	if req.IsCorporate() {
		return fmt.Sprintf(`Generate a comprehensive corporate itinerary for %s in %s:

EVENT CONTEXT:
- Type: %s
- Location: %s
- Participants: %d
- Duration: %d days
- Budget: %s %.0f
- Focus: %s
- Dietary Requirements: %s
- Special Requests: %s

SUGGESTED ACTIVITIES (integrate these with research data):
%s

RESEARCH DATA TO USE:
Available Venues:
- Meeting Venues: %s
- Accommodations: %s
- Restaurants: %s
- Attractions: %s

Available Activities:
- Team Building: %s
- Cultural: %s
- Adventure: %s

Budget Guidelines:
%s

Logistics Information:
%s

REQUIREMENTS:
1. Use ONLY venues and activities from the research data above
2. Include specific venue names, addresses, contacts from research
3. Create realistic timing based on venue operating hours
4. Provide exact costs when available from research
5. Ensure logical geographical flow between activities
6. Include detailed booking and logistics instructions
7. Create contingency plans for weather/availability issues

Generate a detailed, implementable itinerary that maximizes the use of researched information.`,
			req.EventType, req.Location, req.EventType, req.Location, req.Participants, req.Duration,
			req.Currency, req.Budget, nonEmpty(req.Focus, "General"), joinOr(req.Dietary, "None specified"),
			nonEmpty(req.SpecialRequests, "None"), indent(suggestions),
			indent(research.MeetingVenues), indent(research.Accommodations), indent(research.Restaurants),
			indent(research.Attractions), indent(research.TeamBuilding), indent(research.Cultural),
			indent(research.Adventure), indent(research.Budget), indent(research.Logistics))
	}

	return fmt.Sprintf(`Generate a comprehensive travel itinerary for %s:

TRAVEL CONTEXT:
- Destination: %s
- Travelers: %d
- Duration: %d days
- Budget: %s %.0f
- Preferences: %s
- Dietary Requirements: %s

SUGGESTED ACTIVITIES (integrate with research):
%s

RESEARCH DATA TO USE:
Available Venues:
- Accommodations: %s
- Restaurants: %s
- Attractions: %s

Available Activities:
- Cultural: %s
- Adventure: %s

Budget Guidelines:
%s

Local Information:
%s

REQUIREMENTS:
1. Use ONLY venues and activities from the research data
2. Include specific venue names and addresses from research
3. Create logical geographical flow between activities
4. Balance activity types for an engaging experience
5. Include local cultural experiences using researched venues
6. Provide realistic costs and timing from research
7. Include practical local tips and insights from research

Generate a detailed, authentic itinerary using the researched venues and activities.`,
		req.Location, req.Location, req.Participants, req.Duration, req.Currency, req.Budget,
		joinOr(req.Preferences, "General tourism"), joinOr(req.Dietary, "None specified"), indent(suggestions),
		indent(research.Accommodations), indent(research.Restaurants), indent(research.Attractions),
		indent(research.Cultural), indent(research.Adventure), indent(research.Budget), indent(research.Logistics))
}

func typeLabel(t models.RequestType) string {
	if t == models.RequestCorporate {
		return "Corporate"
	}
	return "Travel"
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}

func indent(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "null"
	}
	return string(b)
}
