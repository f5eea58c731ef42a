package pipeline

import "projectarchitect/internal/prompt"

// State is the lifecycle position of a run. Transitions only move forward.
type State string

const (
	StateInit         State = "INIT"
	StateAnalyzing    State = "ANALYZING"
	StateArchitecting State = "ARCHITECTING"
	StateStructuring  State = "STRUCTURING"
	StateCoding       State = "CODING"
	StateResolving    State = "RESOLVING_DEPENDENCIES"
	StateCompleted    State = "COMPLETED"
	StateFailed       State = "FAILED"
	StateCancelled    State = "CANCELLED"
)

// order ranks the non-failure states along the happy path.
var order = map[State]int{
	StateInit:         0,
	StateAnalyzing:    1,
	StateArchitecting: 2,
	StateStructuring:  3,
	StateCoding:       4,
	StateResolving:    5,
	StateCompleted:    6,
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// CanTransition reports whether a run in s may move to next: one step along
// the happy path, or to FAILED/CANCELLED from any non-terminal state.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed || next == StateCancelled {
		return true
	}
	cur, ok1 := order[s]
	nxt, ok2 := order[next]
	return ok1 && ok2 && nxt == cur+1
}

// stageStates pairs every prompt stage with the state a run is in while
// that stage executes.
var stageStates = []struct {
	stage prompt.Stage
	state State
}{
	{prompt.StageAnalyze, StateAnalyzing},
	{prompt.StageArchitect, StateArchitecting},
	{prompt.StageStructure, StateStructuring},
	{prompt.StageCode, StateCoding},
	{prompt.StageDependencies, StateResolving},
}

// StateOf returns the state a run is in while stage executes.
func StateOf(stage prompt.Stage) State {
	for _, s := range stageStates {
		if s.stage == stage {
			return s.state
		}
	}
	return ""
}
