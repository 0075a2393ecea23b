package procedure

import "fmt"

// State is a Task's position in its lifecycle. Values are ordered; a Task's
// state is non-decreasing except for the lawful shortcut StateStarted ->
// StateFinishing (see tryAdvance).
type State int

const (
	StateInitialized State = iota
	StateWillEnqueue
	StatePending
	StateStarted
	StateExecuting
	StateFinishing
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateWillEnqueue:
		return "will-enqueue"
	case StatePending:
		return "pending"
	case StateStarted:
		return "started"
	case StateExecuting:
		return "executing"
	case StateFinishing:
		return "finishing"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// advanceResult reports the outcome of a transition attempt.
type advanceResult int

const (
	advanced advanceResult = iota
	alreadyPast
	illegal
)

// legalEdges lists every state transition the machine accepts, beyond the
// default "target is the very next state" rule. StateStarted -> StateFinishing
// is the one documented shortcut: a Task whose WillExecute observers have
// already fired may discover a cancellation before execute runs, and there is
// no reason to visit StateExecuting just to leave it immediately.
var legalEdges = map[State]map[State]bool{
	StateStarted: {
		StateExecuting: true,
		StateFinishing: true,
	},
}

// tryAdvance moves the state machine toward target, returning whether the
// move actually happened, was a no-op because the Task already progressed
// past target, or is illegal. Illegal transitions are a programming error:
// callers must route them through assertLegal (debug_on.go, debug_off.go) rather than
// silently ignoring them.
//
// Callers must hold the Task's mutex.
func tryAdvance(current *State, target State) advanceResult {
	if *current == target {
		return alreadyPast
	}
	if *current > target {
		if edges, ok := legalEdges[*current]; ok && edges[target] {
			*current = target
			return advanced
		}
		return alreadyPast
	}
	if target == *current+1 {
		*current = target
		return advanced
	}
	if edges, ok := legalEdges[*current]; ok && edges[target] {
		*current = target
		return advanced
	}
	return illegal
}
