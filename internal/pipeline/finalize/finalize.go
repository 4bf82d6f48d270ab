// internal/pipeline/finalize/finalize.go
package finalize

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

const (
	Stage        = "finalizing"
	FinalVersion = "1.0-final"
)

const (
	enhanceSystemPrompt = `You are enhancing an itinerary with detailed research insights.
Add specific venue recommendations, contact details, booking tips, and practical information
from the research summaries to make the itinerary actionable and detailed.
Keep every activity id unchanged.`

	optimizeSystemPrompt = `Optimize an itinerary for budget efficiency, time management, and logistics.
Ensure activities flow logically, travel times are realistic, and the budget is well-distributed.`

	finalTouchesSystemPrompt = `Add final professional touches to an itinerary: emergency information and contacts,
weather considerations and packing suggestions, cultural etiquette and local customs,
payment tips, and a last-minute preparation checklist.`
)

var enhanceSchema = map[string]interface{}{
	"title":       "string",
	"summary":     "string",
	"totalBudget": "number",
	"days": []map[string]interface{}{{
		"day":   "number",
		"date":  "string",
		"theme": "string",
		"activities": []map[string]string{{
			"id":            "string",
			"timeSlot":      "string",
			"title":         "string",
			"description":   "string",
			"category":      "string",
			"cost":          "number",
			"location":      "string",
			"address":       "string",
			"contact":       "string",
			"bookingTips":   "array of strings",
			"duration":      "string",
			"requirements":  "array of strings",
			"alternatives":  "array of strings",
			"researchNotes": "string",
		}},
		"totalCost": "number",
		"logistics": "string",
		"notes":     "string",
	}},
	"practicalInfo": map[string]string{
		"transportation":    "string",
		"accommodation":     "string",
		"emergencyContacts": "string",
		"localTips":         "array of strings",
	},
	"budgetBreakdown": "object",
}

var finalTouchesSchema = map[string]interface{}{
	"finalNotes": map[string]string{
		"weatherInfo":          "string",
		"packingList":          "array of strings",
		"culturalTips":         "array of strings",
		"emergencyInfo":        "object",
		"preparationChecklist": "array of strings",
		"paymentTips":          "string",
	},
	"qualityScore":     "number (1-10)",
	"completionStatus": "string",
}

// Finalizer enhances, optimizes and completes planned itineraries, and
// applies refinements to finished ones.
type Finalizer struct {
	completer genai.Completer
	now       func() time.Time
	logger    logger.Logger
}

type Option func(*Finalizer)

func WithClock(now func() time.Time) Option {
	return func(f *Finalizer) {
		f.now = now
	}
}

func New(completer genai.Completer, log logger.Logger, opts ...Option) *Finalizer {
	f := &Finalizer{
		completer: completer,
		now:       time.Now,
		logger: log.With(map[string]interface{}{
			"stage": Stage,
		}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Finalize runs enhance, optimize and final touches in order. Each step
// keeps its input when its completion fails, so Finalize never fails. The
// input itinerary is not modified.
func (f *Finalizer) Finalize(ctx context.Context, it *models.Itinerary, summary *models.ResearchSummary, req *models.ParsedRequest) *models.Itinerary {
	defer metrics.ObserveStage(Stage, time.Now())

	enhanced := f.Enhance(ctx, it, summary, req)
	optimized := f.Optimize(ctx, enhanced, req)
	final := f.FinalTouches(ctx, optimized, req)

	report := Validate(final)
	final.QualityScore = models.FlexNumber(report.Score)

	f.logger.Info("itinerary finalized", map[string]interface{}{
		"itineraryId":     final.ID,
		"days":            len(final.Days),
		"budgetOptimized": final.BudgetOptimized,
		"qualityScore":    report.Score,
		"errors":          len(report.Errors),
		"warnings":        len(report.Warnings),
	})
	return final
}

// Enhance asks for research detail to be woven into the itinerary. Fields
// the service owns are restored afterwards, and activities that came back
// without a venue get their original venue again.
func (f *Finalizer) Enhance(ctx context.Context, it *models.Itinerary, summary *models.ResearchSummary, req *models.ParsedRequest) *models.Itinerary {
	enhanced, _ := genai.WithFallback(ctx,
		func(ctx context.Context) (*models.Itinerary, error) {
			var raw json.RawMessage
			err := genai.CompleteJSON(ctx, f.completer, genai.Request{
				Prompt: fmt.Sprintf("Enhance this itinerary with detailed research information:\n\nBase Itinerary: %s\n\nResearch Summaries: %s\n\nContext: %s\n\nAdd specific venues, contacts, addresses, booking information, and practical details from the research.",
					indent(it), indent(summary), indent(req)),
				SystemPrompt: enhanceSystemPrompt,
				Schema:       enhanceSchema,
			}, &raw)
			if err != nil {
				return nil, err
			}
			out, err := models.DecodeGenerated(raw)
			if err != nil {
				return nil, err
			}
			restoreOwned(out, it)
			return out, nil
		},
		func() *models.Itinerary { return it.Clone() },
		func(err error) {
			metrics.Fallback("enhancement")
			f.logger.Warn("itinerary enhancement failed, keeping original", map[string]interface{}{
				"itineraryId": it.ID,
				"error":       err.Error(),
			})
		},
	)
	return enhanced
}

// Optimize caps the total budget at the requested budget and records the
// completion's optimization advice. The cap applies even when the advice
// cannot be fetched.
func (f *Finalizer) Optimize(ctx context.Context, it *models.Itinerary, req *models.ParsedRequest) *models.Itinerary {
	out := it.Clone()

	if req.Budget > 0 && out.TotalBudget.Float() > req.Budget {
		out.TotalBudget = models.FlexNumber(req.Budget)
		out.BudgetOptimized = true
	}

	notes, err := f.completer.Complete(ctx, genai.Request{
		Prompt: fmt.Sprintf(`Optimize this itinerary for:

%s

Optimization goals:
1. Budget efficiency - stay within %s %.0f
2. Logical flow and minimal travel time
3. Balanced activity distribution
4. Buffer time for meals and rest
5. Contingency planning

Provide the optimized version with explanations for major changes.`, indent(it), req.Currency, req.Budget),
		SystemPrompt: optimizeSystemPrompt,
	})
	if err != nil {
		f.logger.Warn("itinerary optimization advice unavailable", map[string]interface{}{
			"itineraryId": it.ID,
			"error":       err.Error(),
		})
	} else {
		out.OptimizationNotes = strings.TrimSpace(notes)
	}

	out.OptimizedAt = f.now().UTC().Format(time.RFC3339)
	return out
}

type finalTouches struct {
	FinalNotes       *models.FinalNotes `json:"finalNotes"`
	QualityScore     models.FlexNumber  `json:"qualityScore"`
	CompletionStatus string             `json:"completionStatus"`
}

// FinalTouches attaches weather, packing, etiquette, emergency and payment
// notes, then stamps the itinerary as final.
func (f *Finalizer) FinalTouches(ctx context.Context, it *models.Itinerary, req *models.ParsedRequest) *models.Itinerary {
	out := it.Clone()

	touches, _ := genai.WithFallback(ctx,
		func(ctx context.Context) (finalTouches, error) {
			var t finalTouches
			err := genai.CompleteJSON(ctx, f.completer, genai.Request{
				Prompt: fmt.Sprintf("Add final touches to this itinerary:\n\n%s\n\nContext: %s\n\nAdd comprehensive final information for a complete, professional itinerary.",
					indent(it), indent(req)),
				SystemPrompt: finalTouchesSystemPrompt,
				Schema:       finalTouchesSchema,
			}, &t)
			if err == nil && t.FinalNotes == nil {
				err = fmt.Errorf("final touches carried no finalNotes")
			}
			return t, err
		},
		func() finalTouches {
			return finalTouches{FinalNotes: FallbackNotes(req)}
		},
		func(err error) {
			metrics.Fallback("final_touches")
			f.logger.Warn("final touches failed, using standard notes", map[string]interface{}{
				"itineraryId": it.ID,
				"error":       err.Error(),
			})
		},
	)

	out.FinalNotes = touches.FinalNotes
	out.FinalizedAt = f.now().UTC().Format(time.RFC3339)
	out.Version = FinalVersion
	out.CompletionStatus = models.StatusCompleted
	return out
}

// FallbackNotes is the standard final-notes block for a destination.
func FallbackNotes(req *models.ParsedRequest) *models.FinalNotes {
	packing := models.FlexList{"Comfortable walking shoes", "Weather-appropriate clothing", "Reusable water bottle", "Personal medication", "Phone charger and power bank"}
	checklist := models.FlexList{"Confirm all bookings 48 hours before", "Share the final itinerary with all participants", "Collect emergency contacts for the group", "Arrange transport from arrival point"}
	if req.IsCorporate() {
		packing = append(packing, "Business attire", "Laptop and presentation materials")
		checklist = append(checklist, "Confirm AV and meeting room setup", "Print name badges and agendas")
	}

	return &models.FinalNotes{
		WeatherInfo:  models.FlexString(fmt.Sprintf("Check the %s forecast a few days before departure", req.Location)),
		PackingList:  packing,
		CulturalTips: models.FlexList{"Research local customs and dress codes", "Learn a few greetings in the local language", "Ask before photographing people or religious sites"},
		EmergencyInfo: map[string]models.FlexString{
			"hospitals": models.FlexString(fmt.Sprintf("Identify the nearest hospitals in %s", req.Location)),
			"police":    "Note the nearest police station and local emergency number",
			"contacts":  "Keep a shared list of organizer and venue contacts",
		},
		PreparationChecklist: checklist,
		PaymentTips:          models.FlexString(fmt.Sprintf("Carry some cash in %s for small vendors and confirm card acceptance at venues", req.Currency)),
	}
}

// Validate checks the fields a finished itinerary needs. The score starts at
// 10 and loses 2 per error and 0.5 per warning, floored at 0.
func Validate(it *models.Itinerary) models.ValidationReport {
	report := models.ValidationReport{Errors: []string{}, Warnings: []string{}}

	if strings.TrimSpace(it.Title) == "" {
		report.Errors = append(report.Errors, "Missing title")
	}
	if len(it.Days) == 0 {
		report.Errors = append(report.Errors, "No days defined")
	}
	if it.TotalBudget.Float() == 0 {
		report.Errors = append(report.Errors, "Missing budget")
	}

	for di, d := range it.Days {
		if len(d.Activities) == 0 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("Day %d has no activities", di+1))
		}
		for ai, a := range d.Activities {
			if strings.TrimSpace(a.Title) == "" {
				report.Errors = append(report.Errors, fmt.Sprintf("Day %d, Activity %d: Missing title", di+1, ai+1))
			}
			if strings.TrimSpace(a.TimeSlot) == "" {
				report.Warnings = append(report.Warnings, fmt.Sprintf("Day %d, Activity %d: Missing time slot", di+1, ai+1))
			}
		}
	}

	score := 10 - 2*float64(len(report.Errors)) - 0.5*float64(len(report.Warnings))
	if score < 0 {
		score = 0
	}
	report.Score = score
	report.IsValid = len(report.Errors) == 0
	return report
}

// restoreOwned copies service-owned fields from src onto a regenerated
// itinerary and gives back venues the regeneration dropped.
func restoreOwned(dst, src *models.Itinerary) {
	dst.ID = src.ID
	dst.Type = src.Type
	dst.Location = src.Location
	dst.Participants = src.Participants
	dst.Metadata = src.Metadata
	dst.RefinementHistory = append([]models.RefinementEntry(nil), src.RefinementHistory...)
	dst.GeneratedAt = src.GeneratedAt
	dst.OptimizedAt = src.OptimizedAt
	dst.FinalizedAt = src.FinalizedAt
	dst.RefinedAt = src.RefinedAt
	if dst.Currency == "" {
		dst.Currency = src.Currency
	}
	if dst.TotalBudget == 0 {
		dst.TotalBudget = src.TotalBudget
	}

	for di := range dst.Days {
		for ai := range dst.Days[di].Activities {
			a := &dst.Days[di].Activities[ai]
			sd, sa, ok := src.FindActivity(a.ID)
			if !ok {
				continue
			}
			orig := src.Days[sd].Activities[sa]
			if a.Venue == nil && orig.Venue != nil {
				v := *orig.Venue
				a.Venue = &v
			}
			if a.DataSource == "" {
				a.DataSource = orig.DataSource
			}
		}
	}
}

func indent(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "null"
	}
	return string(b)
}
