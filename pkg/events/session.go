package events

import (
	"github.com/kode4food/timebox"

	"github.com/weftlabs/weft/pkg/api"
)

const SessionPrefix = "session"

// SessionAppliers contains the operation applier functions that fold a
// session's history into its derived state. The fold is pure: replaying the
// same history always reproduces the same state
var SessionAppliers = makeSessionAppliers()

// NewSessionState creates an empty session state positioned at the first
// pipeline phase
func NewSessionState() *api.SessionState {
	return &api.SessionState{
		Phase:      api.PhaseDiscovery,
		Configured: map[api.NodeID]*api.NodeConfig{},
		Validated:  map[api.NodeID]*api.NodeValidation{},
	}
}

// SessionKey returns the aggregate ID for a session
func SessionKey[T ~string](id T) timebox.AggregateID {
	return timebox.NewAggregateID(SessionPrefix, timebox.ID(id))
}

// IsSessionEvent returns true if the event belongs to a session aggregate
func IsSessionEvent(ev *timebox.Event) bool {
	return len(ev.AggregateID) >= 2 && ev.AggregateID[0] == SessionPrefix
}

func makeSessionAppliers() timebox.Appliers[*api.SessionState] {
	return MakeAppliers(
		map[api.EventType]timebox.Applier[*api.SessionState]{
			api.EventTypeSessionCreated: timebox.MakeApplier(sessionCreated),
			api.EventTypeNodeDiscovered: timebox.MakeApplier(nodeDiscovered),
			api.EventTypeNodeSelected:   timebox.MakeApplier(nodeSelected),
			api.EventTypeNodeConfigured: timebox.MakeApplier(nodeConfigured),
			api.EventTypeNodeValidated:  timebox.MakeApplier(nodeValidated),
			api.EventTypePhaseSet:       timebox.MakeApplier(phaseSet),
			api.EventTypePhaseCompleted: timebox.MakeApplier(phaseCompleted),
			api.EventTypeClarificationRequested: timebox.MakeApplier(
				clarificationRequested,
			),
			api.EventTypeClarificationAnswered: timebox.MakeApplier(
				clarificationAnswered,
			),
			api.EventTypePromptRewritten: timebox.MakeApplier(promptRewritten),
			api.EventTypeWorkflowSet:     timebox.MakeApplier(workflowSet),
			api.EventTypeBuildPhasesSet:  timebox.MakeApplier(buildPhasesSet),
			api.EventTypeConfigAnalysisSet: timebox.MakeApplier(
				configAnalysisSet,
			),
			api.EventTypeErrorRecorded:   timebox.MakeApplier(errorRecorded),
			api.EventTypeUsageRecorded:   timebox.MakeApplier(usageRecorded),
			api.EventTypeSessionImported: timebox.MakeApplier(sessionImported),
		},
	)
}

func sessionCreated(
	_ *api.SessionState, ev *timebox.Event, data api.SessionCreatedEvent,
) *api.SessionState {
	st := NewSessionState()
	st.ID = data.SessionID
	st.Prompt = data.Prompt
	st.Owner = data.Owner
	st.CreatedAt = ev.Timestamp
	return st.CountOperation(ev.Timestamp)
}

func nodeDiscovered(
	st *api.SessionState, ev *timebox.Event, data api.NodeDiscoveredEvent,
) *api.SessionState {
	return st.
		AddDiscovered(data.Node).
		CountOperation(ev.Timestamp)
}

func nodeSelected(
	st *api.SessionState, ev *timebox.Event, data api.NodeSelectedEvent,
) *api.SessionState {
	return st.
		AddSelected(data.NodeType).
		CountOperation(ev.Timestamp)
}

// nodeConfigured ignores configurations for node types that were never
// selected, preserving the configured-subset-of-selected invariant
func nodeConfigured(
	st *api.SessionState, ev *timebox.Event, data api.NodeConfiguredEvent,
) *api.SessionState {
	if !st.IsSelected(data.NodeType) {
		return st.CountOperation(ev.Timestamp)
	}
	return st.
		SetConfigured(data.NodeType, data.Config).
		CountOperation(ev.Timestamp)
}

func nodeValidated(
	st *api.SessionState, ev *timebox.Event, data api.NodeValidatedEvent,
) *api.SessionState {
	return st.
		SetValidated(data.NodeType, data.Result).
		CountOperation(ev.Timestamp)
}

// phaseSet ignores moves the transition table forbids. Setting the current
// phase again is the clarification re-entry case and always applies
func phaseSet(
	st *api.SessionState, ev *timebox.Event, data api.PhaseSetEvent,
) *api.SessionState {
	if data.Phase != st.Phase &&
		!api.PhaseTransitions.CanTransition(st.Phase, data.Phase) {
		return st.CountOperation(ev.Timestamp)
	}
	return st.
		SetPhase(data.Phase).
		CountOperation(ev.Timestamp)
}

func phaseCompleted(
	st *api.SessionState, ev *timebox.Event, _ api.PhaseCompletedEvent,
) *api.SessionState {
	return st.
		SetPhase(api.NextPhase(st.Phase)).
		CountOperation(ev.Timestamp)
}

func clarificationRequested(
	st *api.SessionState, ev *timebox.Event,
	data api.ClarificationRequestedEvent,
) *api.SessionState {
	return st.
		AddPending(&api.Clarification{
			QuestionID: data.QuestionID,
			Question:   data.Question,
			Phase:      data.Phase,
			AskedAt:    ev.Timestamp,
		}).
		CountOperation(ev.Timestamp)
}

func clarificationAnswered(
	st *api.SessionState, ev *timebox.Event,
	data api.ClarificationAnsweredEvent,
) *api.SessionState {
	return st.
		ResolvePending(data.QuestionID, data.Answer, ev.Timestamp).
		CountOperation(ev.Timestamp)
}

func promptRewritten(
	st *api.SessionState, ev *timebox.Event, data api.PromptRewrittenEvent,
) *api.SessionState {
	return st.
		SetPrompt(data.Prompt).
		CountOperation(ev.Timestamp)
}

func workflowSet(
	st *api.SessionState, ev *timebox.Event, data api.WorkflowSetEvent,
) *api.SessionState {
	return st.
		SetWorkflow(data.Workflow).
		CountOperation(ev.Timestamp)
}

func buildPhasesSet(
	st *api.SessionState, ev *timebox.Event, data api.BuildPhasesSetEvent,
) *api.SessionState {
	return st.
		SetBuildPhases(data.Phases).
		CountOperation(ev.Timestamp)
}

func configAnalysisSet(
	st *api.SessionState, ev *timebox.Event, data api.ConfigAnalysisSetEvent,
) *api.SessionState {
	return st.
		SetAnalysis(data.Analysis).
		CountOperation(ev.Timestamp)
}

func errorRecorded(
	st *api.SessionState, ev *timebox.Event, data api.ErrorRecordedEvent,
) *api.SessionState {
	return st.
		SetError(data.Phase, data.Error).
		CountOperation(ev.Timestamp)
}

func usageRecorded(
	st *api.SessionState, ev *timebox.Event, data api.UsageRecordedEvent,
) *api.SessionState {
	return st.
		AddUsage(data.PromptTokens, data.CompletionTokens).
		CountOperation(ev.Timestamp)
}

// sessionImported replaces the derived state wholesale while the underlying
// history keeps every prior operation
func sessionImported(
	st *api.SessionState, ev *timebox.Event, data api.SessionImportedEvent,
) *api.SessionState {
	if data.State == nil {
		return st.CountOperation(ev.Timestamp)
	}
	res := *data.State
	if res.Configured == nil {
		res.Configured = map[api.NodeID]*api.NodeConfig{}
	}
	if res.Validated == nil {
		res.Validated = map[api.NodeID]*api.NodeValidation{}
	}
	return res.CountOperation(ev.Timestamp)
}
