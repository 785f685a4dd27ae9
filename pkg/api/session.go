package api

import (
	"maps"
	"time"
)

type (
	// Phase is one of the five pipeline stages plus the terminal state
	Phase string

	// SessionState is the derived state of one workflow-build session. It is
	// a pure projection of the session's operation history; the history
	// itself lives in the session store and is never mutated
	SessionState struct {
		ID          SessionID                   `json:"id"`
		Owner       string                      `json:"owner,omitempty"`
		Prompt      string                      `json:"prompt"`
		Phase       Phase                       `json:"phase"`
		Discovered  []*DiscoveredNode           `json:"discovered,omitempty"`
		Selected    []NodeID                    `json:"selected,omitempty"`
		Configured  map[NodeID]*NodeConfig      `json:"configured,omitempty"`
		Validated   map[NodeID]*NodeValidation  `json:"validated,omitempty"`
		Workflow    *Workflow                   `json:"workflow,omitempty"`
		BuildPhases []*BuildPhase               `json:"build_phases,omitempty"`
		Analysis    *ConfigAnalysis             `json:"config_analysis,omitempty"`
		Pending     []*Clarification            `json:"pending_clarifications,omitempty"`
		Answered    []*Clarification            `json:"clarification_history,omitempty"`
		Metadata    SessionMetadata             `json:"metadata"`
		CreatedAt   time.Time                   `json:"created_at"`
		LastUpdated time.Time                   `json:"last_updated"`
	}

	// DiscoveredNode is one capability candidate found during discovery
	DiscoveredNode struct {
		NodeType    NodeID `json:"node_type"`
		DisplayName string `json:"display_name"`
		Purpose     string `json:"purpose,omitempty"`
		Category    string `json:"category,omitempty"`
	}

	// NodeConfig holds the parameters produced for one selected node
	NodeConfig struct {
		NodeType   NodeID         `json:"node_type"`
		Category   string         `json:"category,omitempty"`
		Parameters map[string]any `json:"parameters"`
	}

	// NodeValidation is the latest validation verdict for one node
	NodeValidation struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors,omitempty"`
	}

	// Clarification is a pipeline-suspending question and, once answered,
	// its caller-supplied answer
	Clarification struct {
		QuestionID QuestionID `json:"question_id"`
		Question   string     `json:"question"`
		Phase      Phase      `json:"phase"`
		AskedAt    time.Time  `json:"asked_at"`
		Answer     string     `json:"answer,omitempty"`
		AnsweredAt time.Time  `json:"answered_at,omitempty"`
	}

	// SessionMetadata carries operation counters, token usage, and the last
	// recorded error
	SessionMetadata struct {
		Operations       int    `json:"operations"`
		PromptTokens     int64  `json:"prompt_tokens,omitempty"`
		CompletionTokens int64  `json:"completion_tokens,omitempty"`
		LastError        string `json:"last_error,omitempty"`
		ErrorPhase       Phase  `json:"error_phase,omitempty"`
	}

	// SessionStatus is the stable projection exposed to external pollers
	SessionStatus struct {
		SessionID     SessionID        `json:"session_id"`
		Phase         Phase            `json:"phase"`
		Complete      bool             `json:"complete"`
		Prompt        string           `json:"prompt"`
		SelectedNodes []NodeID         `json:"selected_nodes"`
		Clarification *Clarification   `json:"pending_clarification,omitempty"`
		Workflow      *WorkflowSummary `json:"workflow,omitempty"`
	}
)

const (
	PhaseDiscovery     Phase = "discovery"
	PhaseConfiguration Phase = "configuration"
	PhaseBuilding      Phase = "building"
	PhaseValidation    Phase = "validation"
	PhaseDocumentation Phase = "documentation"
	PhaseComplete      Phase = "complete"
)

// PhaseOrder is the fixed forward sequence of session phases
var PhaseOrder = []Phase{
	PhaseDiscovery,
	PhaseConfiguration,
	PhaseBuilding,
	PhaseValidation,
	PhaseDocumentation,
	PhaseComplete,
}

// NextPhase returns the phase following the given one in the fixed order.
// The terminal phase maps to itself
func NextPhase(p Phase) Phase {
	for i, cur := range PhaseOrder {
		if cur == p && i+1 < len(PhaseOrder) {
			return PhaseOrder[i+1]
		}
	}
	return PhaseComplete
}

// IsTerminal returns true once a session has reached the complete phase
func (st *SessionState) IsTerminal() bool {
	return st.Phase == PhaseComplete
}

// IsSelected returns true if the node type was selected during discovery
func (st *SessionState) IsSelected(id NodeID) bool {
	for _, sel := range st.Selected {
		if sel == id {
			return true
		}
	}
	return false
}

// PendingClarification returns the oldest unanswered clarification, or nil
func (st *SessionState) PendingClarification() *Clarification {
	if len(st.Pending) == 0 {
		return nil
	}
	return st.Pending[0]
}

// Status projects the session state for external pollers
func (st *SessionState) Status() *SessionStatus {
	return &SessionStatus{
		SessionID:     st.ID,
		Phase:         st.Phase,
		Complete:      st.IsTerminal(),
		Prompt:        st.Prompt,
		SelectedNodes: append([]NodeID(nil), st.Selected...),
		Clarification: st.PendingClarification(),
		Workflow:      st.Workflow.Summary(),
	}
}

// SetPhase returns a new SessionState with the phase set
func (st *SessionState) SetPhase(p Phase) *SessionState {
	res := *st
	res.Phase = p
	return &res
}

// SetPrompt returns a new SessionState with the user prompt replaced
func (st *SessionState) SetPrompt(prompt string) *SessionState {
	res := *st
	res.Prompt = prompt
	return &res
}

// AddDiscovered returns a new SessionState with a capability candidate
// appended to the discovery results. Re-discovering a node type, as happens
// when discovery re-runs after a clarification, is a no-op
func (st *SessionState) AddDiscovered(n *DiscoveredNode) *SessionState {
	for _, d := range st.Discovered {
		if d.NodeType == n.NodeType {
			return st
		}
	}
	res := *st
	res.Discovered = append(
		append([]*DiscoveredNode(nil), st.Discovered...), n,
	)
	return &res
}

// AddSelected returns a new SessionState with the node type selected.
// Selection is idempotent; re-selecting an ID is a no-op
func (st *SessionState) AddSelected(id NodeID) *SessionState {
	if st.IsSelected(id) {
		return st
	}
	res := *st
	res.Selected = append(append([]NodeID(nil), st.Selected...), id)
	return &res
}

// SetConfigured returns a new SessionState with a node's configuration set
func (st *SessionState) SetConfigured(
	id NodeID, cfg *NodeConfig,
) *SessionState {
	res := *st
	res.Configured = maps.Clone(st.Configured)
	if res.Configured == nil {
		res.Configured = map[NodeID]*NodeConfig{}
	}
	res.Configured[id] = cfg
	return &res
}

// SetValidated returns a new SessionState with a node's validation verdict
func (st *SessionState) SetValidated(
	id NodeID, v *NodeValidation,
) *SessionState {
	res := *st
	res.Validated = maps.Clone(st.Validated)
	if res.Validated == nil {
		res.Validated = map[NodeID]*NodeValidation{}
	}
	res.Validated[id] = v
	return &res
}

// SetWorkflow returns a new SessionState with the workflow graph replaced
func (st *SessionState) SetWorkflow(w *Workflow) *SessionState {
	res := *st
	res.Workflow = w
	return &res
}

// SetBuildPhases returns a new SessionState with the layout groups set
func (st *SessionState) SetBuildPhases(phases []*BuildPhase) *SessionState {
	res := *st
	res.BuildPhases = phases
	return &res
}

// SetAnalysis returns a new SessionState with the config analysis set
func (st *SessionState) SetAnalysis(a *ConfigAnalysis) *SessionState {
	res := *st
	res.Analysis = a
	return &res
}

// AddPending returns a new SessionState with an open clarification appended
func (st *SessionState) AddPending(c *Clarification) *SessionState {
	res := *st
	res.Pending = append(append([]*Clarification(nil), st.Pending...), c)
	return &res
}

// ResolvePending returns a new SessionState with the identified clarification
// moved from the pending list to the answered history. Unknown question IDs
// leave the state unchanged
func (st *SessionState) ResolvePending(
	id QuestionID, answer string, at time.Time,
) *SessionState {
	for i, c := range st.Pending {
		if c.QuestionID != id {
			continue
		}
		res := *st
		answered := *c
		answered.Answer = answer
		answered.AnsweredAt = at
		res.Pending = append(
			append([]*Clarification(nil), st.Pending[:i]...),
			st.Pending[i+1:]...,
		)
		res.Answered = append(
			append([]*Clarification(nil), st.Answered...), &answered,
		)
		return &res
	}
	return st
}

// SetError returns a new SessionState with the last error recorded
func (st *SessionState) SetError(phase Phase, msg string) *SessionState {
	res := *st
	res.Metadata.LastError = msg
	res.Metadata.ErrorPhase = phase
	return &res
}

// AddUsage returns a new SessionState with token usage accumulated
func (st *SessionState) AddUsage(prompt, completion int64) *SessionState {
	res := *st
	res.Metadata.PromptTokens += prompt
	res.Metadata.CompletionTokens += completion
	return &res
}

// CountOperation returns a new SessionState with the operation counter and
// last-updated timestamp advanced
func (st *SessionState) CountOperation(at time.Time) *SessionState {
	res := *st
	res.Metadata.Operations++
	res.LastUpdated = at
	return &res
}
