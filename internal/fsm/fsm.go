// Package fsm defines the listening lifecycle state machine.
package fsm

import "fmt"

// State is one lifecycle phase.
type State string

// Event drives a transition.
type Event string

const (
	StateIdle         State = "idle"
	StateListening    State = "listening"
	StateTranscribing State = "transcribing"
	StateError        State = "error"
)

const (
	EventStart       Event = "start"
	EventStop        Event = "stop"
	EventCancel      Event = "cancel"
	EventTranscribed Event = "transcribed"
	EventFail        Event = "fail"
	EventReset       Event = "reset"
)

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventStart: StateListening,
	},
	StateListening: {
		EventStop:   StateTranscribing,
		EventCancel: StateIdle,
	},
	StateTranscribing: {
		EventTranscribed: StateIdle,
	},
	StateError: {
		EventReset: StateIdle,
	},
}

// Transition returns the state reached from current on event. EventFail is
// accepted from every known state.
func Transition(current State, event Event) (State, error) {
	edges, known := transitions[current]
	if !known {
		return current, fmt.Errorf("unknown state %q", current)
	}
	if event == EventFail {
		return StateError, nil
	}
	next, ok := edges[event]
	if !ok {
		return current, &InvalidTransitionError{State: current, Event: event}
	}
	return next, nil
}

// Active reports whether state holds capture or recognition resources.
func Active(state State) bool {
	return state == StateListening || state == StateTranscribing
}

// InvalidTransitionError reports an event the current state does not accept.
type InvalidTransitionError struct {
	State State
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s --(%s)--> ?", e.State, e.Event)
}
