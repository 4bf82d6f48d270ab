// internal/pipeline/structure/structure.go
package structure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"itinerary-workers/internal/common/backoff"
	"itinerary-workers/internal/common/config"
	"itinerary-workers/internal/common/genai"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/common/metrics"
	"itinerary-workers/internal/models"
)

const Stage = "structuring"

const systemPrompt = `You are an information extractor for travel and event planning.
Extract specific, actionable information from web content for itinerary planning:
venue and attraction names, costs, addresses and contacts, operating hours, highlights,
booking requirements, group capacity, and activity details.

Be specific and factual. Avoid generic descriptions.`

var findingSchema = map[string]interface{}{
	"venues": []map[string]string{{
		"name":           "string",
		"type":           "hotel | restaurant | attraction | venue | activity",
		"description":    "string",
		"location":       "string",
		"address":        "string",
		"contact":        "string",
		"cost":           "string",
		"capacity":       "string",
		"operatingHours": "string",
		"highlights":     "array of strings",
		"requirements":   "array of strings",
		"bookingInfo":    "string",
		"sourceUrl":      "string",
	}},
	"activities": []map[string]string{{
		"name":         "string",
		"type":         "adventure | cultural | leisure | team_building | dining",
		"description":  "string",
		"duration":     "string",
		"cost":         "string",
		"groupSize":    "string",
		"location":     "string",
		"requirements": "array of strings",
		"highlights":   "array of strings",
		"sourceUrl":    "string",
	}},
	"practicalInfo": map[string]string{
		"transportation": "array of strings",
		"budgetInsights": "array of strings",
		"seasonalTips":   "array of strings",
		"localTips":      "array of strings",
	},
}

var itemTerms = []string{"corporate", "conference", "meeting", "team"}

// Extractor turns cleaned documents into typed findings, a few documents
// per completion call.
type Extractor struct {
	completer genai.Completer
	settings  config.Settings
	sleep     backoff.Sleeper
	now       func() time.Time
	logger    logger.Logger
}

type Option func(*Extractor)

// WithSleeper replaces the pause taken after each chunk.
func WithSleeper(s backoff.Sleeper) Option {
	return func(x *Extractor) {
		x.sleep = s
	}
}

// WithClock replaces the clock used for extractedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(x *Extractor) {
		x.now = now
	}
}

func New(completer genai.Completer, settings config.Settings, log logger.Logger, opts ...Option) *Extractor {
	x := &Extractor{
		completer: completer,
		settings:  settings,
		sleep:     backoff.Sleep,
		now:       time.Now,
		logger: log.With(map[string]interface{}{
			"stage": Stage,
		}),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Run extracts findings chunk by chunk. A failed chunk is logged and
// skipped; findings from the other chunks are kept.
func (x *Extractor) Run(ctx context.Context, docs []models.ExtractedDocument, req *models.ParsedRequest) []models.StructuredFinding {
	defer metrics.ObserveStage(Stage, time.Now())

	chunks := Chunks(docs, x.settings.ChunkSize)
	findings := make([]models.StructuredFinding, 0, len(chunks))

	for i, chunk := range chunks {
		finding, err := x.extractChunk(ctx, chunk, req)
		if err != nil {
			x.logger.Warn("chunk extraction failed", map[string]interface{}{
				"chunk": i + 1,
				"of":    len(chunks),
				"error": err.Error(),
			})
		} else {
			findings = append(findings, *finding)
		}

		if err := x.sleep(ctx, x.settings.ChunkDelay); err != nil {
			x.logger.Warn("structured extraction interrupted", map[string]interface{}{
				"completedChunks": i + 1,
				"error":           err.Error(),
			})
			break
		}
	}

	venues, activities := 0, 0
	for _, f := range findings {
		venues += len(f.Venues)
		activities += len(f.Activities)
	}
	x.logger.Info("structured extraction completed", map[string]interface{}{
		"chunks":     len(chunks),
		"findings":   len(findings),
		"venues":     venues,
		"activities": activities,
	})
	return findings
}

func (x *Extractor) extractChunk(ctx context.Context, chunk []models.ExtractedDocument, req *models.ParsedRequest) (*models.StructuredFinding, error) {
	var finding models.StructuredFinding
	err := genai.CompleteJSON(ctx, x.completer, genai.Request{
		Prompt:      Prompt(chunk, req, x.settings.ChunkContentLimit),
		Temperature: genai.Temperature(0.1),
		MaxTokens:   4000,
		Schema:      findingSchema,
	}, &finding)
	if err != nil {
		return nil, err
	}

	stamp := x.now().UTC().Format(time.RFC3339)
	for i := range finding.Venues {
		v := &finding.Venues[i]
		v.ExtractedAt = stamp
		v.RelevanceScore = ItemRelevance(v.Name, v.Description, req)
	}
	for i := range finding.Activities {
		a := &finding.Activities[i]
		a.ExtractedAt = stamp
		a.RelevanceScore = ItemRelevance(a.Name, a.Description, req)
	}
	return &finding, nil
}

// Prompt renders one chunk. Each document contributes at most limit
// characters of content.
func Prompt(chunk []models.ExtractedDocument, req *models.ParsedRequest, limit int) string {
	sources := make([]string, len(chunk))
	for i, d := range chunk {
		sources[i] = fmt.Sprintf("Source: %s (%s)\nContent: %s...", d.Title, d.URL, truncate(d.Content, limit))
	}

	prefs := strings.Join(req.Preferences, ", ")
	if prefs == "" {
		prefs = "None"
	}

	return fmt.Sprintf(`%s

Extract structured information for %s itinerary planning in %s:

Context:
- Location: %s
- Type: %s
- Participants: %d
- Duration: %d days
- Budget: %s %.0f
- Preferences: %s

Content to extract from:
%s

Extract specific venues, activities, and practical information relevant to the context.`,
		systemPrompt, strings.ToLower(string(req.Type)), req.Location,
		req.Location, req.Type, req.Participants, req.Duration, req.Currency, req.Budget, prefs,
		strings.Join(sources, "\n\n---\n\n"))
}

// ItemRelevance scores a finding: base 1, +2 for the location, +1.5 for
// corporate terms on corporate requests, +1 per matching preference.
func ItemRelevance(name, description string, req *models.ParsedRequest) float64 {
	score := 1.0
	text := strings.ToLower(name + " " + description)

	if loc := strings.ToLower(strings.TrimSpace(req.Location)); loc != "" && strings.Contains(text, loc) {
		score += 2
	}
	if req.IsCorporate() {
		for _, term := range itemTerms {
			if strings.Contains(text, term) {
				score += 1.5
				break
			}
		}
	}
	for _, pref := range req.Preferences {
		if p := strings.ToLower(strings.TrimSpace(pref)); p != "" && strings.Contains(text, p) {
			score++
		}
	}
	return score
}

// Chunks splits docs into consecutive groups of at most size.
func Chunks(docs []models.ExtractedDocument, size int) [][]models.ExtractedDocument {
	if size < 1 {
		size = 1
	}
	var out [][]models.ExtractedDocument
	for start := 0; start < len(docs); start += size {
		end := start + size
		if end > len(docs) {
			end = len(docs)
		}
		out = append(out, docs[start:end])
	}
	return out
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
