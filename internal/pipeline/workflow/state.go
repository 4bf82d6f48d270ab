// internal/pipeline/workflow/state.go
package workflow

import (
	apperrors "itinerary-workers/internal/common/errors"
)

type State string

const (
	StateIdle                 State = "idle"
	StateParsingInput         State = "parsingInput"
	StateSuggestingActivities State = "suggestingActivities"
	StateSearching            State = "searching"
	StateExtracting           State = "extracting"
	StateSummarizing          State = "summarizing"
	StatePlanning             State = "planning"
	StateFinalizing           State = "finalizing"
	StateRefiningWithResearch State = "refiningWithResearch"
	StateBasicRefinement      State = "basicRefinement"
	StateCompleted            State = "completed"
	StateError                State = "error"
)

// stateRefining is resolved to one of the two refinement states by the
// hasResearchData guard.
const stateRefining State = "refining"

type EventType string

const (
	EventGenerate EventType = "GENERATE"
	EventRefine   EventType = "REFINE"
	EventReset    EventType = "RESET"
	EventRetry    EventType = "RETRY"
	// EventDone and EventFailed are raised by the controller when the
	// service of the current state returns.
	EventDone   EventType = "DONE"
	EventFailed EventType = "FAILED"
)

var transitions = map[State]map[EventType]State{
	StateIdle: {
		EventGenerate: StateParsingInput,
		EventRefine:   stateRefining,
	},
	StateParsingInput:         stageEdges(StateSuggestingActivities),
	StateSuggestingActivities: stageEdges(StateSearching),
	StateSearching:            stageEdges(StateExtracting),
	StateExtracting:           stageEdges(StateSummarizing),
	StateSummarizing:          stageEdges(StatePlanning),
	StatePlanning:             stageEdges(StateFinalizing),
	StateFinalizing:           stageEdges(StateCompleted),
	StateRefiningWithResearch: stageEdges(StateCompleted),
	StateBasicRefinement:      stageEdges(StateCompleted),
	StateCompleted: {
		EventGenerate: StateParsingInput,
		EventRefine:   stateRefining,
		EventReset:    StateIdle,
	},
	StateError: {
		EventRetry: StateIdle,
		EventReset: StateIdle,
	},
}

func stageEdges(next State) map[EventType]State {
	return map[EventType]State{
		EventDone:   next,
		EventFailed: StateError,
	}
}

// Next looks up the target of ev in state s. Events a state does not accept
// fail with INVALID_STATE.
func Next(s State, c Context, ev EventType) (State, error) {
	target, ok := transitions[s][ev]
	if !ok {
		return s, apperrors.NewInvalidStateError(string(s), string(ev))
	}
	if target == stateRefining {
		if hasResearchData(c) {
			return StateRefiningWithResearch, nil
		}
		return StateBasicRefinement, nil
	}
	return target, nil
}

func hasResearchData(c Context) bool {
	return c.Summary != nil
}

// Running reports whether s has a stage service that runs on entry.
func (s State) Running() bool {
	switch s {
	case StateIdle, StateCompleted, StateError:
		return false
	}
	return true
}

var progress = map[State]int{
	StateIdle:                 0,
	StateParsingInput:         10,
	StateSuggestingActivities: 20,
	StateSearching:            35,
	StateExtracting:           55,
	StateSummarizing:          75,
	StatePlanning:             90,
	StateFinalizing:           95,
	StateCompleted:            100,
	StateRefiningWithResearch: 85,
	StateBasicRefinement:      85,
	StateError:                0,
}

// Progress is the percentage shown for a state.
func Progress(s State) int {
	return progress[s]
}
