// internal/pipeline/workflow/context.go
package workflow

import (
	"fmt"

	"itinerary-workers/internal/models"
	"itinerary-workers/internal/pipeline/extract"
	"itinerary-workers/internal/pipeline/search"
)

// Refinement is the payload of a REFINE event.
type Refinement struct {
	Prompt string                 `json:"prompt"`
	Scope  models.RefinementScope `json:"scope"`
}

// Context is the data a run carries between stages. Only the controller
// writes it, through Reduce.
type Context struct {
	UserInput      string                      `json:"userInput"`
	Request        *models.ParsedRequest       `json:"parsedRequest,omitempty"`
	Suggestions    *models.ActivitySuggestions `json:"suggestions,omitempty"`
	SearchOutcomes []models.QueryOutcome       `json:"searchOutcomes,omitempty"`
	SearchSummary  *models.SearchSummary       `json:"searchSummary,omitempty"`
	Extraction     *extract.Result             `json:"extraction,omitempty"`
	Findings       []models.StructuredFinding  `json:"findings,omitempty"`
	Summary        *models.ResearchSummary     `json:"summary,omitempty"`
	Itinerary      *models.Itinerary           `json:"itinerary,omitempty"`
	FinalItinerary *models.Itinerary           `json:"finalItinerary,omitempty"`
	Refinement     *Refinement                 `json:"refinement,omitempty"`
	DataQuality    models.DataQuality          `json:"dataQuality"`
	ProcessingStep string                      `json:"processingStep"`
	Err            error                       `json:"-"`
}

// Event drives a transition. Stage results travel on DONE events; only the
// fields of the finishing stage are set.
type Event struct {
	Type EventType

	Input      string
	Refinement *Refinement
	// Itinerary seeds a REFINE event and carries planner, finalizer and
	// refinement results on DONE.
	Itinerary *models.Itinerary
	Research  *models.ResearchSummary

	Request     *models.ParsedRequest
	Suggestions *models.ActivitySuggestions
	Outcomes    []models.QueryOutcome
	Extraction  *extract.Result
	Findings    []models.StructuredFinding
	Summary     *models.ResearchSummary

	Err error
}

// Reduce returns the context after ev is accepted in state s. It never
// modifies c.
func Reduce(s State, c Context, ev Event) Context {
	switch ev.Type {
	case EventGenerate:
		if s == StateCompleted {
			c = reset(c)
		}
		c.UserInput = ev.Input
		c.ProcessingStep = "Parsing user input..."

	case EventRefine:
		c.Refinement = ev.Refinement
		if ev.Itinerary != nil {
			c.FinalItinerary = ev.Itinerary
		}
		if ev.Research != nil {
			c.Summary = ev.Research
		}
		if ev.Request != nil {
			c.Request = ev.Request
		}
		c.ProcessingStep = "Refining itinerary..."

	case EventReset, EventRetry:
		c = reset(c)

	case EventFailed:
		c.Err = ev.Err
		c.ProcessingStep = fmt.Sprintf("Error: %v", ev.Err)

	case EventDone:
		c = reduceDone(s, c, ev)
	}

	c.DataQuality.OverallScore = OverallScore(c.DataQuality)
	return c
}

func reduceDone(s State, c Context, ev Event) Context {
	switch s {
	case StateParsingInput:
		c.Request = ev.Request
		c.ProcessingStep = "Input parsed, suggesting activities..."

	case StateSuggestingActivities:
		c.Suggestions = ev.Suggestions
		c.ProcessingStep = "Activities suggested, searching..."

	case StateSearching:
		c.SearchOutcomes = ev.Outcomes
		summary := search.Summarize(ev.Outcomes)
		c.SearchSummary = &summary
		c.DataQuality.SearchQuality = search.Quality(summary)
		c.ProcessingStep = "Search completed, extracting content..."

	case StateExtracting:
		c.Extraction = ev.Extraction
		c.Findings = ev.Findings
		if ev.Extraction != nil {
			c.DataQuality.ExtractionQuality = extract.Quality(ev.Extraction.Summary)
		}
		c.ProcessingStep = "Content extracted and structured, creating summaries..."

	case StateSummarizing:
		c.Summary = ev.Summary
		c.ProcessingStep = "Research summarized, generating itinerary..."

	case StatePlanning:
		c.Itinerary = ev.Itinerary
		if ev.Itinerary != nil {
			c.DataQuality.IntegrationScore = float64(ev.Itinerary.Metadata.DataIntegrationScore)
		}
		c.ProcessingStep = "Itinerary generated, finalizing..."

	case StateFinalizing:
		c.FinalItinerary = ev.Itinerary
		c.ProcessingStep = "Completed successfully"

	case StateRefiningWithResearch, StateBasicRefinement:
		c.FinalItinerary = ev.Itinerary
		if ev.Itinerary != nil {
			c.DataQuality.IntegrationScore = float64(ev.Itinerary.Metadata.DataIntegrationScore)
		}
		c.ProcessingStep = "Refinement completed"
	}
	return c
}

// reset keeps only the user input.
func reset(c Context) Context {
	return Context{UserInput: c.UserInput}
}
