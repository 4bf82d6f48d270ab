// internal/pipeline/parser/parser.go
package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/common/genai"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/common/metrics"
	"itinerary-workers/internal/models"
)

const Stage = "parsing"

var ErrParse = errors.New("PARSE_ERROR")

const systemPrompt = `You are an input parser for an itinerary generation system.
Extract structured information from requests for either travel or corporate event itineraries.

1. Decide whether this is a TRAVEL or CORPORATE request
2. Extract location, participants, duration, budget, dates and preferences
3. For corporate events identify the event type (training, conference, team_building, offsite, seminar)
4. Report budgets as written, including lakh/crore/k multipliers
5. Extract dietary restrictions and special requests`

const refineSystemPrompt = `You are refining an existing itinerary request based on additional user input.
Take the original parsed input and the refinement request and output the updated structured data.
Keep all original details unless the refinement explicitly changes them.`

var payloadSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"location"},
	"properties": map[string]interface{}{
		"location": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
	},
}

var promptSchema = map[string]string{
	"type":            "travel | corporate",
	"location":        "string",
	"participants":    "number",
	"duration":        "number (in days)",
	"budget":          "number or amount as written",
	"currency":        "INR | USD | EUR",
	"date":            "YYYY-MM-DD or 'flexible'",
	"preferences":     "array of strings",
	"dietary":         "array of dietary restrictions",
	"eventType":       "training | conference | team_building | offsite | seminar (corporate only)",
	"focus":           "main theme or focus",
	"specialRequests": "any special requirements",
}

// Parser turns free text into a ParsedRequest.
type Parser struct {
	completer genai.Completer
	logger    logger.Logger
}

func New(completer genai.Completer, log logger.Logger) *Parser {
	return &Parser{
		completer: completer,
		logger: log.With(map[string]interface{}{
			"stage": Stage,
		}),
	}
}

// Parse classifies and normalizes a raw request. It fails with PARSE_ERROR
// when the completion carries no usable payload or no location.
func (p *Parser) Parse(ctx context.Context, input string) (*models.ParsedRequest, error) {
	defer metrics.ObserveStage(Stage, time.Now())

	input = strings.TrimSpace(input)
	if input == "" {
		return nil, apperrors.NewParseError(fmt.Errorf("%w: empty input", ErrParse))
	}

	req, err := p.complete(ctx, genai.Request{
		Prompt:       fmt.Sprintf("Parse this itinerary request: %q", input),
		SystemPrompt: systemPrompt,
		Temperature:  genai.Temperature(0.1),
		Schema:       promptSchema,
	}, input)
	if err != nil {
		p.logger.Error("input parsing failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	p.logger.Info("input parsed", map[string]interface{}{
		"type":         req.Type,
		"location":     req.Location,
		"participants": req.Participants,
		"duration":     req.Duration,
		"budget":       req.Budget,
	})
	return req, nil
}

// Reparse applies a refinement prompt to an earlier request. Details not
// mentioned by the prompt are expected to carry over.
func (p *Parser) Reparse(ctx context.Context, original *models.ParsedRequest, prompt string) (*models.ParsedRequest, error) {
	if original == nil {
		return p.Parse(ctx, prompt)
	}

	encoded, err := json.MarshalIndent(original, "", "  ")
	if err != nil {
		return nil, apperrors.NewParseError(err)
	}

	raw := strings.TrimSpace(original.RawInput + "\n" + prompt)
	req, err := p.complete(ctx, genai.Request{
		Prompt:       fmt.Sprintf("Original input: %s\n\nRefinement request: %q\n\nProvide the updated input incorporating the refinement:", encoded, prompt),
		SystemPrompt: refineSystemPrompt,
		Temperature:  genai.Temperature(0.1),
		Schema:       promptSchema,
	}, raw)
	if err != nil {
		p.logger.Error("input refinement failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}
	return req, nil
}

func (p *Parser) complete(ctx context.Context, req genai.Request, rawInput string) (*models.ParsedRequest, error) {
	text, err := p.completer.Complete(ctx, req)
	if err != nil {
		return nil, apperrors.NewParseError(fmt.Errorf("%w: %v", ErrParse, err))
	}

	var payload map[string]interface{}
	if err := genai.ExtractJSON(text, &payload); err != nil {
		return nil, apperrors.NewParseError(fmt.Errorf("%w: %v", ErrParse, err))
	}
	if err := validatePayload(payload); err != nil {
		return nil, apperrors.NewParseError(fmt.Errorf("%w: %v", ErrParse, err))
	}

	return Normalize(payload, rawInput), nil
}

func validatePayload(payload map[string]interface{}) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(payloadSchema),
		gojsonschema.NewGoLoader(payload),
	)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("payload validation failed: %v", errs)
	}
	if strings.TrimSpace(payload["location"].(string)) == "" {
		return errors.New("payload validation failed: location is blank")
	}
	return nil
}

// Normalize maps a decoded completion payload onto a ParsedRequest.
func Normalize(payload map[string]interface{}, rawInput string) *models.ParsedRequest {
	req := &models.ParsedRequest{
		Type:            Classify(asString(payload["type"]), rawInput),
		Location:        strings.TrimSpace(asString(payload["location"])),
		Participants:    positiveInt(payload["participants"]),
		Duration:        positiveInt(payload["duration"]),
		Budget:          budgetOf(payload["budget"]),
		Currency:        strings.ToUpper(strings.TrimSpace(asString(payload["currency"]))),
		Date:            ParseDate(asString(payload["date"])),
		Preferences:     asList(payload["preferences"]),
		Dietary:         asList(payload["dietary"]),
		Focus:           asString(payload["focus"]),
		SpecialRequests: asString(payload["specialRequests"]),
		RawInput:        rawInput,
	}
	if req.Currency == "" {
		req.Currency = "INR"
	}
	if req.IsCorporate() {
		req.EventType = EventType(asString(payload["eventType"]))
	}
	return req
}

var corporateKeywords = []string{"corporate", "business", "training", "conference", "seminar", "offsite"}

var travelKeywords = []string{"travel", "trip", "vacation", "holiday", "leisure", "tour"}

// Classify maps the completion's type label to a request type. When the
// label is missing or names neither type, the raw input decides.
func Classify(label, rawInput string) models.RequestType {
	lower := strings.ToLower(label)
	if containsAny(lower, corporateKeywords) {
		return models.RequestCorporate
	}
	if containsAny(lower, travelKeywords) {
		return models.RequestTravel
	}
	if containsAny(strings.ToLower(rawInput), corporateKeywords) {
		return models.RequestCorporate
	}
	return models.RequestTravel
}

var eventTypes = map[string]string{
	"training":      "training",
	"conference":    "conference",
	"team_building": "team_building",
	"team building": "team_building",
	"teambuilding":  "team_building",
	"offsite":       "offsite",
	"seminar":       "seminar",
}

// EventType normalizes a corporate event label, defaulting to training.
func EventType(label string) string {
	if et, ok := eventTypes[strings.ToLower(strings.TrimSpace(label))]; ok {
		return et
	}
	return "training"
}

var (
	numberRe   = regexp.MustCompile(`\d[\d,]*(\.\d+)?|\.\d+`)
	lakhRe     = regexp.MustCompile(`lakh|\blacs?\b`)
	croreRe    = regexp.MustCompile(`crore|\d\s*cr\b|\bcr\b`)
	thousandRe = regexp.MustCompile(`\d\s*k\b`)
)

// ParseBudget reads a colloquial amount: "1.5 lakhs", "2 crore", "50k",
// "₹2,00,000". Unreadable input is zero.
func ParseBudget(s string) float64 {
	lower := strings.ToLower(strings.TrimSpace(s))
	match := numberRe.FindString(lower)
	if match == "" {
		return 0
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0
	}

	switch {
	case lakhRe.MatchString(lower):
		amount *= 100000
	case croreRe.MatchString(lower):
		amount *= 10000000
	case thousandRe.MatchString(lower):
		amount *= 1000
	}
	return math.Round(amount)
}

func budgetOf(v interface{}) float64 {
	switch b := v.(type) {
	case float64:
		if b < 0 {
			return 0
		}
		return b
	case string:
		return ParseBudget(b)
	default:
		return 0
	}
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02 Jan 2006",
	"01/02/2006",
}

// ParseDate returns YYYY-MM-DD, or "flexible" for empty, open-ended or
// unreadable dates.
func ParseDate(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if s == "" || strings.Contains(lower, "flexible") || strings.Contains(lower, "any") {
		return models.FlexibleDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return models.FlexibleDate
}

var minimumBudgets = map[string]float64{
	"INR": 1000,
	"USD": 50,
	"EUR": 45,
}

// Validate reports the request limits a planner can work within. An empty
// result means the request is usable as is.
func Validate(req *models.ParsedRequest) []string {
	var problems []string
	if req == nil {
		return []string{"request is missing"}
	}
	if strings.TrimSpace(req.Location) == "" {
		problems = append(problems, "location is required")
	}
	if req.Participants < 1 {
		problems = append(problems, "participants must be a positive integer")
	} else if req.Participants > 1000 {
		problems = append(problems, "maximum 1000 participants supported")
	}
	if req.Duration < 1 {
		problems = append(problems, "duration must be at least 1 day")
	} else if req.Duration > 30 {
		problems = append(problems, "maximum 30 days supported")
	}

	if req.Budget <= 0 {
		problems = append(problems, "budget must be a positive number")
	} else {
		currency := req.Currency
		minimum, ok := minimumBudgets[currency]
		if !ok {
			currency, minimum = "INR", minimumBudgets["INR"]
		}
		if req.Budget < minimum {
			problems = append(problems, fmt.Sprintf("budget too low: minimum %s %.0f required", currency, minimum))
		}
	}
	return problems
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case []interface{}:
		return strings.Join(asList(s), ", ")
	default:
		b, _ := json.Marshal(s)
		return string(b)
	}
}

func asList(v interface{}) []string {
	out := []string{}
	switch items := v.(type) {
	case []interface{}:
		for _, item := range items {
			if s := strings.TrimSpace(asString(item)); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range strings.Split(items, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

var leadingIntRe = regexp.MustCompile(`^\s*(\d+)`)

// positiveInt coerces a count to an integer of at least 1.
func positiveInt(v interface{}) int {
	n := 0
	switch x := v.(type) {
	case float64:
		n = int(x)
	case string:
		if m := leadingIntRe.FindStringSubmatch(x); m != nil {
			n, _ = strconv.Atoi(m[1])
		}
	}
	if n < 1 {
		return 1
	}
	return n
}
