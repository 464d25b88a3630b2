package engine

import (
	"squiggle/logger"
)

// String returns a human-readable name for the state
func (s state) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateComputing:
		return "Computing"
	default:
		return "Unknown"
	}
}

// Transition represents a valid state transition in the engine's state machine
type Transition struct {
	From   state
	Event  EventType
	Action func(*Engine, Event)
}

// transitions defines all valid state transitions in the engine.
//
// State Machine Overview:
//
//	stateIdle
//	├─[TextChanged/BufferEnter]──► stateComputing
//	│                                │
//	│                                ├─[DiagnosticsReady/Error, latest]──► stateIdle (surface updated)
//	│                                │
//	│                                ├─[TextChanged/BufferEnter]──► cancel, new snapshot, stateComputing
//	│                                │
//	│                                └─[Clear]──► cancel, hide, stateIdle
//	│
//	└─[Clear]──► hide, stateIdle
//
// Results for superseded snapshots are dropped in every state.
var transitions = []Transition{
	// From stateIdle
	{stateIdle, EventTextChanged, (*Engine).doRecompute},
	{stateIdle, EventBufferEnter, (*Engine).doRecompute},
	{stateIdle, EventClear, (*Engine).doClear},

	// From stateComputing
	{stateComputing, EventTextChanged, (*Engine).doRecompute},
	{stateComputing, EventBufferEnter, (*Engine).doRecompute},
	{stateComputing, EventClear, (*Engine).doClear},
}

// transitionMap provides O(1) lookup for transitions by (state, event) pair
var transitionMap map[transitionKey]*Transition

type transitionKey struct {
	from  state
	event EventType
}

func init() {
	transitionMap = make(map[transitionKey]*Transition)
	for i := range transitions {
		t := &transitions[i]
		key := transitionKey{from: t.From, event: t.Event}
		transitionMap[key] = t
	}
}

// findTransition looks up a valid transition for the given state and event.
// Returns nil if no valid transition exists.
func findTransition(from state, event EventType) *Transition {
	return transitionMap[transitionKey{from: from, event: event}]
}

// dispatch finds and executes the appropriate transition for an event.
// Returns true if a transition was found and executed, false otherwise.
func (e *Engine) dispatch(event Event) bool {
	t := findTransition(e.state, event.Type)
	if t == nil {
		logger.Debug("no handler: state=%s event=%s", e.state, event.Type)
		return false
	}
	if t.Action != nil {
		t.Action(e, event)
	}
	return true
}

func (e *Engine) doRecompute(event Event) {
	e.recompute()
	// Note: recompute sets state = stateComputing
}

func (e *Engine) doClear(event Event) {
	e.clear()
}
