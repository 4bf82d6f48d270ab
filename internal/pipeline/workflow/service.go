// internal/pipeline/workflow/service.go
package workflow

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"itinerary-workers/internal/common/config"
	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/common/observability"
	"itinerary-workers/internal/models"
	"itinerary-workers/internal/pipeline/export"
	"itinerary-workers/internal/pipeline/finalize"
)

// Transition is reported to observers after every state change.
type Transition struct {
	From     State
	To       State
	Event    EventType
	Progress int
	Step     string
}

// Service runs the pipeline. Every Generate or Refine call gets its own
// Machine, so runs share nothing but the stages.
type Service struct {
	stages    Stages
	settings  config.Settings
	logger    logger.Logger
	obs       *observability.Observability
	observers []func(Transition)
}

type Option func(*Service)

func WithObservability(o *observability.Observability) Option {
	return func(s *Service) {
		s.obs = o
	}
}

// WithObserver registers fn for every transition of every run.
func WithObserver(fn func(Transition)) Option {
	return func(s *Service) {
		s.observers = append(s.observers, fn)
	}
}

func NewService(stages Stages, settings config.Settings, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		stages:   stages,
		settings: settings,
		logger: log.With(map[string]interface{}{
			"component": "workflow",
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is what a finished run hands back to its caller.
type Result struct {
	Itinerary      *models.Itinerary       `json:"itinerary"`
	Request        *models.ParsedRequest   `json:"parsedRequest,omitempty"`
	Research       *models.ResearchSummary `json:"research,omitempty"`
	DataQuality    models.DataQuality      `json:"dataQuality"`
	Assessment     Assessment              `json:"assessment"`
	Issues         []Issue                 `json:"issues"`
	Suggestions    []Optimization          `json:"suggestions"`
	RefinementType string                  `json:"refinementType,omitempty"`
	States         []State                 `json:"states"`
}

// Generate runs every stage for a free-text request.
func (s *Service) Generate(ctx context.Context, input string) (*Result, error) {
	m := s.NewMachine()
	if err := m.Send(ctx, Event{Type: EventGenerate, Input: input}); err != nil {
		return nil, err
	}
	return m.result()
}

// Refine applies a refinement prompt to a finished itinerary. Passing
// research selects the research-aware path.
func (s *Service) Refine(ctx context.Context, it *models.Itinerary, prompt string, scope models.RefinementScope, research *models.ResearchSummary) (*Result, error) {
	if it == nil {
		return nil, apperrors.NewInvalidInputError("itinerary is required")
	}
	m := s.NewMachine()
	err := m.Send(ctx, Event{
		Type:       EventRefine,
		Refinement: &Refinement{Prompt: prompt, Scope: scope},
		Itinerary:  it,
		Research:   research,
		Request:    RequestFromItinerary(it),
	})
	if err != nil {
		return nil, err
	}
	return m.result()
}

func (s *Service) Export(it *models.Itinerary, format string) (string, error) {
	return export.Export(it, format)
}

// RequestFromItinerary rebuilds the request context a refinement prompt
// needs from a finished itinerary.
func RequestFromItinerary(it *models.Itinerary) *models.ParsedRequest {
	typ := it.Type
	if typ == "" {
		typ = models.RequestTravel
	}
	return &models.ParsedRequest{
		Type:         typ,
		Location:     it.Location,
		Participants: it.Participants,
		Duration:     len(it.Days),
		Budget:       it.TotalBudget.Float(),
		Currency:     it.Currency,
		Date:         models.FlexibleDate,
	}
}

// Machine is a single run of the state machine.
type Machine struct {
	svc     *Service
	state   State
	ctx     Context
	started time.Time
	states  []State
}

func (s *Service) NewMachine() *Machine {
	return &Machine{svc: s, state: StateIdle, states: []State{StateIdle}}
}

func (m *Machine) State() State {
	return m.state
}

func (m *Machine) Context() Context {
	return m.ctx
}

// Send delivers ev and then runs the entry service of every state reached
// until the machine rests in idle, completed or error. Stages run strictly
// one after another. Guards see the context with ev already applied.
func (m *Machine) Send(ctx context.Context, ev Event) error {
	if err := m.step(ev); err != nil {
		return err
	}
	if ev.Type == EventGenerate || ev.Type == EventRefine {
		m.started = time.Now()
	}

	for m.state.Running() {
		if err := m.step(m.svc.invoke(ctx, m.state, m.ctx)); err != nil {
			return err
		}
	}

	if m.state == StateCompleted || m.state == StateError {
		m.svc.obs.RecordRun(ctx, string(m.state), m.ctx.DataQuality.OverallScore)
		m.svc.logger.Info("workflow finished", map[string]interface{}{
			"state":        m.state,
			"overallScore": m.ctx.DataQuality.OverallScore,
			"duration":     time.Since(m.started).String(),
		})
	}
	return nil
}

func (m *Machine) step(ev Event) error {
	from := m.state
	reduced := Reduce(from, m.ctx, ev)
	next, err := Next(from, reduced, ev.Type)
	if err != nil {
		return err
	}
	m.ctx = reduced
	m.state = next
	m.states = append(m.states, next)

	t := Transition{From: from, To: next, Event: ev.Type, Progress: Progress(next), Step: m.ctx.ProcessingStep}
	m.svc.logger.Debug("workflow transition", map[string]interface{}{
		"from":     from,
		"to":       next,
		"event":    ev.Type,
		"progress": t.Progress,
	})
	for _, fn := range m.svc.observers {
		fn(t)
	}
	return nil
}

func (m *Machine) result() (*Result, error) {
	if m.state == StateError {
		return nil, m.ctx.Err
	}
	r := &Result{
		Itinerary:   m.ctx.FinalItinerary,
		Request:     m.ctx.Request,
		Research:    m.ctx.Summary,
		DataQuality: m.ctx.DataQuality,
		Assessment:  Assess(m.ctx.DataQuality),
		Issues:      Diagnose(m.ctx.DataQuality),
		Suggestions: OptimizationSuggestions(m.ctx.DataQuality),
		States:      append([]State(nil), m.states...),
	}
	for _, st := range m.states {
		switch st {
		case StateRefiningWithResearch:
			r.RefinementType = finalize.RefinementResearch
		case StateBasicRefinement:
			r.RefinementType = finalize.RefinementBasic
		}
	}
	return r, nil
}

// invoke runs the service of state st and turns its outcome into a DONE or
// FAILED event.
func (s *Service) invoke(ctx context.Context, st State, c Context) Event {
	if err := ctx.Err(); err != nil {
		return Event{Type: EventFailed, Err: apperrors.NewTimeoutError("workflow", err)}
	}

	ctx, end := s.obs.StartSpan(ctx, "workflow."+string(st), attribute.String("state", string(st)))
	defer end()
	started := time.Now()
	defer func() { s.obs.RecordStage(ctx, string(st), time.Since(started)) }()

	switch st {
	case StateParsingInput:
		req, err := s.stages.Parser.Parse(ctx, c.UserInput)
		if err != nil {
			return failed(err)
		}
		return Event{Type: EventDone, Request: req}

	case StateSuggestingActivities:
		suggestions, _ := s.stages.Suggestor.Suggest(ctx, c.Request)
		return Event{Type: EventDone, Suggestions: suggestions}

	case StateSearching:
		return Event{Type: EventDone, Outcomes: s.stages.Searcher.Run(ctx, c.Request)}

	case StateExtracting:
		result := s.stages.Extractor.Run(ctx, c.SearchOutcomes, c.Request)
		if s.settings.RetryFailedExtractions {
			result = s.stages.Extractor.Recover(ctx, result)
		}
		findings := s.stages.Structurer.Run(ctx, result.Filtered, c.Request)
		return Event{Type: EventDone, Extraction: result, Findings: findings}

	case StateSummarizing:
		sources := 0
		if c.Extraction != nil {
			sources = len(c.Extraction.Filtered)
		}
		return Event{Type: EventDone, Summary: s.stages.Summarizer.Run(ctx, c.Findings, sources, c.Request)}

	case StatePlanning:
		it, err := s.stages.Planner.Plan(ctx, c.Request, c.Suggestions, c.Summary)
		if err != nil {
			return failed(err)
		}
		return Event{Type: EventDone, Itinerary: it}

	case StateFinalizing:
		return Event{Type: EventDone, Itinerary: s.stages.Finalizer.Finalize(ctx, c.Itinerary, c.Summary, c.Request)}

	case StateRefiningWithResearch, StateBasicRefinement:
		if c.FinalItinerary == nil || c.Refinement == nil {
			return failed(apperrors.NewInvalidInputError("nothing to refine"))
		}
		r := finalize.Refinement{
			Prompt:  c.Refinement.Prompt,
			Scope:   c.Refinement.Scope,
			Request: c.Request,
		}
		if st == StateRefiningWithResearch {
			r.Research = c.Summary
		}
		it, err := s.stages.Finalizer.Refine(ctx, c.FinalItinerary, r)
		if err != nil {
			return failed(err)
		}
		return Event{Type: EventDone, Itinerary: it}
	}
	return failed(apperrors.NewInvalidStateError(string(st), string(EventDone)))
}

func failed(err error) Event {
	return Event{Type: EventFailed, Err: err}
}
