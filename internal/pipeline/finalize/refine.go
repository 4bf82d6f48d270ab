// internal/pipeline/finalize/refine.go
package finalize

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/common/genai"
	"itinerary-workers/internal/models"
	"itinerary-workers/internal/pipeline/planner"
)

const (
	RefinementResearch = "research_aware"
	RefinementBasic    = "basic"
)

const (
	researchRefineSystemPrompt = `You are refining an existing itinerary while maintaining integration with research data.
Keep all specific venue names and details from research unless explicitly asked to change them.
When making changes, prioritize using venues and activities from the available research data.`

	basicRefineSystemPrompt = `You are refining an existing itinerary based on user feedback.
Apply the requested changes and return the complete itinerary with the same structure.`
)

var researchRefineSchema = map[string]string{
	"refinedItinerary":        "complete itinerary object with all original structure",
	"changesLog":              "array of strings describing what was modified",
	"dataIntegrityMaintained": "boolean indicating if research data integration was preserved",
}

// Refinement is one refinement request against a finished itinerary.
type Refinement struct {
	Prompt  string
	Scope   models.RefinementScope
	Request *models.ParsedRequest
	// Research selects the research-aware path when set.
	Research *models.ResearchSummary
}

type researchRefined struct {
	RefinedItinerary json.RawMessage `json:"refinedItinerary"`
	ChangesLog       models.FlexList `json:"changesLog"`
}

// Refine applies r to it and returns a new itinerary; it is never modified.
// With research present, venues from research survive unless the prompt
// names them. Day and activity scopes replace only their target.
func (f *Finalizer) Refine(ctx context.Context, it *models.Itinerary, r Refinement) (*models.Itinerary, error) {
	if strings.TrimSpace(r.Prompt) == "" {
		return nil, apperrors.NewInvalidInputError("refinement prompt is required")
	}
	if err := r.Scope.Validate(); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if r.Scope.Type == models.ScopeDay && r.Scope.DayNumber > len(it.Days) {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("day %d is outside a %d-day itinerary", r.Scope.DayNumber, len(it.Days)))
	}
	if r.Scope.Type == models.ScopeActivity {
		if _, _, ok := it.FindActivity(r.Scope.ActivityID); !ok {
			return nil, apperrors.NewInvalidInputError(fmt.Sprintf("activity %s not found", r.Scope.ActivityID))
		}
	}

	kind := RefinementBasic
	if r.Research != nil {
		kind = RefinementResearch
	}

	refined, err := f.regenerate(ctx, it, r, kind)
	if err != nil {
		f.logger.Warn("itinerary refinement failed, original kept", map[string]interface{}{
			"itineraryId": it.ID,
			"type":        kind,
			"error":       err.Error(),
		})
		return nil, apperrors.NewRefinementFailedError(err)
	}

	out := Merge(it, refined, r.Scope)

	var venues []models.Venue
	if kind == RefinementResearch {
		venues = r.Research.Research.Venues
		PreserveResearchVenues(out, it, r.Scope, r.Prompt, venues)
		for di := range out.Days {
			for ai := range out.Days[di].Activities {
				a := &out.Days[di].Activities[ai]
				a.DataSource = planner.DataSource(*a, venues)
			}
		}
		out.Metadata.DataIntegrationScore = planner.IntegrationScore(out, venues)
	} else {
		out.Metadata.DataIntegrationScore = sourcedScore(out)
	}

	stamp := f.now().UTC().Format(time.RFC3339)
	scope := r.Scope.Type
	if scope == "" {
		scope = models.ScopeEntire
	}
	out.RefinementHistory = append(out.RefinementHistory, models.RefinementEntry{
		Prompt:     r.Prompt,
		Type:       kind,
		Scope:      string(scope),
		DayNumber:  r.Scope.DayNumber,
		ActivityID: r.Scope.ActivityID,
		Timestamp:  stamp,
	})
	out.RefinedAt = stamp

	f.logger.Info("itinerary refined", map[string]interface{}{
		"itineraryId":          out.ID,
		"type":                 kind,
		"scope":                scope,
		"dataIntegrationScore": out.Metadata.DataIntegrationScore,
		"refinements":          len(out.RefinementHistory),
	})
	return out, nil
}

func (f *Finalizer) regenerate(ctx context.Context, it *models.Itinerary, r Refinement, kind string) (*models.Itinerary, error) {
	target := describeScope(r.Scope)

	if kind == RefinementResearch {
		var payload researchRefined
		err := genai.CompleteJSON(ctx, f.completer, genai.Request{
			Prompt: fmt.Sprintf(`Refine this itinerary based on the request while maintaining research data integration:

Original Itinerary: %s

Refinement Request: %q
%s
Available Research Data: %s

Context: %s

Modify the itinerary according to the request but keep specific venue names and details from the research data. When adding new elements, use the available research data.`,
				indent(it), r.Prompt, target, indent(r.Research.Research), indent(r.Request)),
			SystemPrompt: researchRefineSystemPrompt,
			Schema:       researchRefineSchema,
		}, &payload)
		if err != nil {
			return nil, err
		}
		if len(payload.RefinedItinerary) == 0 {
			return nil, fmt.Errorf("refinement carried no refinedItinerary")
		}
		if len(payload.ChangesLog) > 0 {
			f.logger.Debug("refinement changes", map[string]interface{}{
				"changes": []string(payload.ChangesLog),
			})
		}
		return models.DecodeGenerated(payload.RefinedItinerary)
	}

	var raw json.RawMessage
	err := genai.CompleteJSON(ctx, f.completer, genai.Request{
		Prompt: fmt.Sprintf("Original Itinerary: %s\n\nRefinement Request: %q\n%s\nContext: %s\n\nReturn the complete refined itinerary:",
			indent(it), r.Prompt, target, indent(r.Request)),
		SystemPrompt: basicRefineSystemPrompt,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return models.DecodeGenerated(raw)
}

func describeScope(s models.RefinementScope) string {
	switch s.Type {
	case models.ScopeDay:
		return fmt.Sprintf("\nOnly change day %d.\n", s.DayNumber)
	case models.ScopeActivity:
		return fmt.Sprintf("\nOnly change the activity with id %s.\n", s.ActivityID)
	}
	return ""
}

// Merge builds the refined itinerary from the original and a regenerated
// one. The entire scope takes the regenerated days and headline fields;
// day and activity scopes replace only their target and copy everything
// else from the original.
func Merge(original, refined *models.Itinerary, scope models.RefinementScope) *models.Itinerary {
	out := original.Clone()

	switch scope.Type {
	case models.ScopeDay:
		idx := scope.DayNumber - 1
		day, ok := findDay(refined, scope.DayNumber)
		if !ok {
			return out
		}
		day.Day = scope.DayNumber
		assignIDs(&day, scope.DayNumber)
		out.Days[idx] = day

	case models.ScopeActivity:
		di, ai, _ := original.FindActivity(scope.ActivityID)
		replacement, ok := findActivity(refined, scope.ActivityID, di, ai)
		if !ok {
			return out
		}
		replacement.ID = scope.ActivityID
		out.Days[di].Activities[ai] = replacement

	default:
		out.Days = refined.Days
		for di := range out.Days {
			out.Days[di].Day = di + 1
			assignIDs(&out.Days[di], di+1)
		}
		if refined.Title != "" {
			out.Title = refined.Title
		}
		if refined.Summary != "" {
			out.Summary = refined.Summary
		}
		if refined.TotalBudget > 0 {
			out.TotalBudget = refined.TotalBudget
		}
		if len(refined.BudgetBreakdown) > 0 {
			out.BudgetBreakdown = refined.BudgetBreakdown
		}
	}
	return out
}

// PreserveResearchVenues puts back research-sourced venues the prompt does
// not name. The scoped target keeps whatever the refinement produced.
// Elsewhere each original activity is paired with a refined one by venue
// name, then by title, then by an overlapping time slot on the same day,
// and the paired activity gets the whole original venue.
func PreserveResearchVenues(out, original *models.Itinerary, scope models.RefinementScope, prompt string, venues []models.Venue) {
	lowered := strings.ToLower(prompt)

	var pending []venueOwner
	for di, d := range original.Days {
		for _, a := range d.Activities {
			name := a.VenueName()
			if name == "" || targeted(scope, di+1, a.ID) {
				continue
			}
			if strings.Contains(lowered, strings.ToLower(name)) {
				continue
			}
			if _, ok := planner.MatchVenue(name, venues); !ok {
				continue
			}
			pending = append(pending, venueOwner{day: di, activity: a})
		}
	}

	taken := make(map[string]bool)
	pair := func(match func(o venueOwner, di int, a *models.ItineraryActivity) bool) {
		var rest []venueOwner
		for _, o := range pending {
			a := claim(out, scope, taken, func(di int, a *models.ItineraryActivity) bool { return match(o, di, a) })
			if a == nil {
				rest = append(rest, o)
				continue
			}
			v := *o.activity.Venue
			a.Venue = &v
		}
		pending = rest
	}

	pair(func(o venueOwner, _ int, a *models.ItineraryActivity) bool {
		return strings.EqualFold(strings.TrimSpace(a.VenueName()), strings.TrimSpace(o.activity.VenueName()))
	})
	pair(func(o venueOwner, _ int, a *models.ItineraryActivity) bool {
		return o.activity.Title != "" && strings.EqualFold(strings.TrimSpace(a.Title), strings.TrimSpace(o.activity.Title))
	})
	pair(func(o venueOwner, di int, a *models.ItineraryActivity) bool {
		if di != o.day {
			return false
		}
		if _, ok := planner.MatchVenue(a.VenueName(), venues); ok {
			return false
		}
		return overlaps(o.activity.TimeSlot, a.TimeSlot)
	})
}

type venueOwner struct {
	day      int
	activity models.ItineraryActivity
}

// claim returns the first untargeted, unclaimed activity in out accepted by
// match and marks it claimed.
func claim(out *models.Itinerary, scope models.RefinementScope, taken map[string]bool, match func(di int, a *models.ItineraryActivity) bool) *models.ItineraryActivity {
	for di := range out.Days {
		for ai := range out.Days[di].Activities {
			a := &out.Days[di].Activities[ai]
			key := fmt.Sprintf("%d/%d", di, ai)
			if taken[key] || targeted(scope, di+1, a.ID) {
				continue
			}
			if match(di, a) {
				taken[key] = true
				return a
			}
		}
	}
	return nil
}

func targeted(scope models.RefinementScope, day int, activityID string) bool {
	switch scope.Type {
	case models.ScopeDay:
		return day == scope.DayNumber
	case models.ScopeActivity:
		return activityID == scope.ActivityID
	}
	return false
}

func overlaps(a, b string) bool {
	x, okX := ParseTimeSlot(a)
	y, okY := ParseTimeSlot(b)
	return okX && okY && x.StartMinutes < y.EndMinutes && y.StartMinutes < x.EndMinutes
}

func findDay(it *models.Itinerary, number int) (models.Day, bool) {
	for _, d := range it.Days {
		if d.Day == number {
			return d, true
		}
	}
	if number >= 1 && number <= len(it.Days) {
		return it.Days[number-1], true
	}
	return models.Day{}, false
}

func findActivity(it *models.Itinerary, id string, di, ai int) (models.ItineraryActivity, bool) {
	if d, a, ok := it.FindActivity(id); ok {
		return it.Days[d].Activities[a], true
	}
	if di < len(it.Days) && ai < len(it.Days[di].Activities) {
		return it.Days[di].Activities[ai], true
	}
	return models.ItineraryActivity{}, false
}

func assignIDs(day *models.Day, number int) {
	for ai := range day.Activities {
		day.Activities[ai].ID = planner.ActivityID(number, ai+1)
	}
}

// sourcedScore recomputes the integration score from recorded data
// sources when no research is at hand.
func sourcedScore(it *models.Itinerary) int {
	total, sourced := 0, 0
	for _, d := range it.Days {
		for _, a := range d.Activities {
			total++
			if a.DataSource == models.DataSourceResearch {
				sourced++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(sourced) / float64(total) * 100))
}
