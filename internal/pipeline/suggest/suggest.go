// internal/pipeline/suggest/suggest.go
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"itinerary-workers/internal/common/genai"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/common/metrics"
	"itinerary-workers/internal/models"
)

const Stage = "suggesting"

// FallbackNote is attached to the empty list returned when no suggestions
// could be produced.
const FallbackNote = "Activity suggestions unavailable; the itinerary will rely on research findings."

const corporateSystemPrompt = `You are an expert corporate event planner. Generate engaging, practical activities
for corporate events based on team size, budget, duration and event focus.

Consider participant engagement and interaction, budget fit, time management and flow,
a professional yet engaging atmosphere, and measurable outcomes where applicable.

Give each activity a duration, estimated cost and requirements.`

const travelSystemPrompt = `You are an expert travel guide and activity planner. Suggest diverse activities
for tourists based on location, group size, duration and preferences.

Mix cultural, adventure, leisure and dining activities, respect the budget, and give
realistic timing and costs.`

const refineSystemPrompt = `You are refining activity suggestions based on user feedback.
Modify the existing activities according to the refinement request while keeping the list
coherent and within budget.`

var corporateSchema = map[string]interface{}{
	"activities": []map[string]string{{
		"title":         "string",
		"description":   "string",
		"category":      "networking | presentation | team_building | break | dining",
		"duration":      "string (e.g., '2 hours')",
		"estimatedCost": "number",
		"participants":  "number",
		"requirements":  "array of strings",
		"timeSlot":      "string (e.g., '9:00 AM - 11:00 AM')",
		"alternatives":  "array of alternative options",
	}},
	"totalEstimatedCost": "number",
	"notes":              "string",
}

var travelSchema = map[string]interface{}{
	"activities": []map[string]string{{
		"title":         "string",
		"description":   "string",
		"category":      "cultural | adventure | leisure | dining | shopping",
		"duration":      "string",
		"estimatedCost": "number",
		"participants":  "number",
		"location":      "string",
		"timeSlot":      "string",
		"requirements":  "array of strings",
		"alternatives":  "array of strings",
	}},
	"totalEstimatedCost": "number",
	"notes":              "string",
}

// Suggestor proposes candidate activities from the parsed request alone.
type Suggestor struct {
	completer genai.Completer
	logger    logger.Logger
}

func New(completer genai.Completer, log logger.Logger) *Suggestor {
	return &Suggestor{
		completer: completer,
		logger: log.With(map[string]interface{}{
			"stage": Stage,
		}),
	}
}

// Suggest never fails: a completion error yields an empty list carrying
// FallbackNote, and the bool reports that substitution.
func (s *Suggestor) Suggest(ctx context.Context, req *models.ParsedRequest) (*models.ActivitySuggestions, bool) {
	defer metrics.ObserveStage(Stage, time.Now())

	prompt, system, schema := travelPrompt(req), travelSystemPrompt, travelSchema
	if req.IsCorporate() {
		prompt, system, schema = corporatePrompt(req), corporateSystemPrompt, corporateSchema
	}

	suggestions, fellBack := genai.WithFallback(ctx,
		func(ctx context.Context) (*models.ActivitySuggestions, error) {
			var out models.ActivitySuggestions
			err := genai.CompleteJSON(ctx, s.completer, genai.Request{
				Prompt:       prompt,
				SystemPrompt: system,
				Schema:       schema,
			}, &out)
			if err != nil {
				return nil, err
			}
			return &out, nil
		},
		Fallback,
		func(err error) {
			metrics.Fallback("suggestions")
			s.logger.Warn("activity suggestion failed, continuing without suggestions", map[string]interface{}{
				"error": err.Error(),
				"type":  req.Type,
			})
		},
	)

	if !fellBack {
		s.logger.Info("activities suggested", map[string]interface{}{
			"count":      len(suggestions.Activities),
			"categories": suggestions.Categories(),
		})
	}
	return suggestions, fellBack
}

// Refine adjusts an existing suggestion list. On failure the original list is
// returned unchanged.
func (s *Suggestor) Refine(ctx context.Context, original *models.ActivitySuggestions, prompt string, req *models.ParsedRequest) (*models.ActivitySuggestions, bool) {
	activities, _ := json.MarshalIndent(original, "", "  ")
	request, _ := json.MarshalIndent(req, "", "  ")

	return genai.WithFallback(ctx,
		func(ctx context.Context) (*models.ActivitySuggestions, error) {
			var out models.ActivitySuggestions
			err := genai.CompleteJSON(ctx, s.completer, genai.Request{
				Prompt: fmt.Sprintf("Original activities: %s\n\nRefinement request: %q\n\nContext: %s\n\nRefine the activities according to the request:",
					activities, prompt, request),
				SystemPrompt: refineSystemPrompt,
				Schema: map[string]string{
					"activities":         "array of activity objects",
					"totalEstimatedCost": "number",
					"notes":              "string",
				},
			}, &out)
			if err != nil {
				return nil, err
			}
			return &out, nil
		},
		func() *models.ActivitySuggestions { return original },
		func(err error) {
			s.logger.Warn("activity refinement failed, keeping original suggestions", map[string]interface{}{
				"error": err.Error(),
			})
		},
	)
}

// Fallback is the empty suggestion list used when the completion fails.
func Fallback() *models.ActivitySuggestions {
	return &models.ActivitySuggestions{
		Activities: []models.SuggestedActivity{},
		Notes:      FallbackNote,
	}
}

func corporatePrompt(req *models.ParsedRequest) string {
	return fmt.Sprintf(`Generate corporate activities for:
- Event Type: %s
- Location: %s
- Participants: %d
- Duration: %d days
- Budget: %s %.0f
- Focus: %s
- Dietary Requirements: %s
- Special Requests: %s

Suggest 8-12 activities that would work well for this corporate event.`,
		req.EventType, req.Location, req.Participants, req.Duration, req.Currency, req.Budget,
		req.Focus, strings.Join(req.Dietary, ", "), req.SpecialRequests)
}

func travelPrompt(req *models.ParsedRequest) string {
	return fmt.Sprintf(`Generate travel activities for:
- Destination: %s
- Participants: %d
- Duration: %d days
- Budget: %s %.0f
- Preferences: %s
- Dietary Requirements: %s
- Special Requests: %s

Suggest 10-15 diverse activities covering at least three categories and different time slots.`,
		req.Location, req.Participants, req.Duration, req.Currency, req.Budget,
		strings.Join(req.Preferences, ", "), strings.Join(req.Dietary, ", "), req.SpecialRequests)
}
