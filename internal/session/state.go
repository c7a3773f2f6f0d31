package session

import "fmt"

// State is one node of the session controller's top-level state
// machine (spec.md §4.13).
type State int

const (
	StateInitializing State = iota
	StateReady
	StateActive
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// validTransitions enumerates the edges of the state machine. Ready
// has two inbound edges (from Initializing, and back from a failed
// Active per the diagram's "fail" loop) but the same outbound set.
var validTransitions = map[State]map[State]bool{
	StateInitializing: {StateReady: true, StateDraining: true},
	StateReady:         {StateActive: true, StateDraining: true},
	StateActive:        {StateDraining: true, StateReady: true},
	StateDraining:      {StateTerminated: true},
	StateTerminated:    {},
}

// errInvalidTransition reports an attempted transition the state
// machine does not allow.
type errInvalidTransition struct {
	from, to State
}

func (e *errInvalidTransition) Error() string {
	return fmt.Sprintf("session: invalid state transition %s -> %s", e.from, e.to)
}

func canTransition(from, to State) bool {
	edges, ok := validTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}
