package builder

import (
	"github.com/weftlabs/weft/internal/util"
	"github.com/weftlabs/weft/pkg/api"
)

type (
	// Operation is one pending state transition produced by a phase runner.
	// Operations are folded into the persisted session state when the
	// session manager flushes
	Operation struct {
		Type api.EventType
		Data any
	}

	// Result is what a phase runner returns: the operations to append plus
	// whether the phase finished and should advance
	Result struct {
		Operations []Operation
		Done       bool
	}
)

// phaseTransitionTypes flush immediately because pollers key off the phase
var phaseTransitionTypes = util.SetOf(
	api.EventTypePhaseSet,
	api.EventTypePhaseCompleted,
)

// criticalTypes flush immediately because losing them on restart would
// force a phase to redo externally visible work
var criticalTypes = util.SetOf(
	api.EventTypeSessionCreated,
	api.EventTypeClarificationRequested,
	api.EventTypeClarificationAnswered,
	api.EventTypeNodeConfigured,
	api.EventTypeNodeSelected,
	api.EventTypeWorkflowSet,
	api.EventTypeErrorRecorded,
	api.EventTypeSessionImported,
)

// IsPhaseTransition returns true for operations that move the session
// between phases
func (op Operation) IsPhaseTransition() bool {
	return phaseTransitionTypes.Contains(op.Type)
}

// IsCritical returns true for operations that must not sit in the pending
// queue
func (op Operation) IsCritical() bool {
	return op.IsPhaseTransition() || criticalTypes.Contains(op.Type)
}

// Op constructs a single operation
func Op(eventType api.EventType, data any) Operation {
	return Operation{Type: eventType, Data: data}
}

func (r *Result) append(ops ...Operation) {
	r.Operations = append(r.Operations, ops...)
}
