package api

// StateTransitions maps states to their valid next states
type StateTransitions[T comparable] map[T][]T

// PhaseTransitions admits only forward movement through the pipeline, one
// phase at a time. The complete phase is terminal
var PhaseTransitions = StateTransitions[Phase]{
	PhaseDiscovery:     {PhaseConfiguration},
	PhaseConfiguration: {PhaseBuilding},
	PhaseBuilding:      {PhaseValidation},
	PhaseValidation:    {PhaseDocumentation},
	PhaseDocumentation: {PhaseComplete},
	PhaseComplete:      {},
}

// CanTransition returns whether transition from one state to another is valid
func (t StateTransitions[T]) CanTransition(from, to T) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal returns whether a state has no valid next states
func (t StateTransitions[T]) IsTerminal(state T) bool {
	next, ok := t[state]
	return ok && len(next) == 0
}
