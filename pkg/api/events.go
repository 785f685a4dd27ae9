package api

type (
	// EventType names one kind of session operation. Operations are the only
	// way session state changes; the derived state is always the fold of the
	// session's operation history over the initial state
	EventType string

	// SessionCreatedEvent is the first operation of every session
	SessionCreatedEvent struct {
		SessionID SessionID `json:"session_id"`
		Prompt    string    `json:"prompt"`
		Owner     string    `json:"owner,omitempty"`
	}

	// NodeDiscoveredEvent records one capability candidate found during
	// discovery
	NodeDiscoveredEvent struct {
		Node *DiscoveredNode `json:"node"`
	}

	// NodeSelectedEvent marks a discovered capability as structurally
	// necessary for the workflow
	NodeSelectedEvent struct {
		NodeType NodeID `json:"node_type"`
	}

	// NodeConfiguredEvent records the parameters produced for one node
	NodeConfiguredEvent struct {
		NodeType NodeID      `json:"node_type"`
		Config   *NodeConfig `json:"config"`
	}

	// NodeValidatedEvent records a validation verdict for one node
	NodeValidatedEvent struct {
		NodeType NodeID          `json:"node_type"`
		Result   *NodeValidation `json:"result"`
	}

	// PhaseSetEvent forces the session phase to a specific value
	PhaseSetEvent struct {
		Phase Phase `json:"phase"`
	}

	// PhaseCompletedEvent advances the session to the next phase in the
	// fixed order
	PhaseCompletedEvent struct {
		Phase Phase `json:"phase"`
	}

	// ClarificationRequestedEvent suspends the current phase on an open
	// question
	ClarificationRequestedEvent struct {
		QuestionID QuestionID `json:"question_id"`
		Question   string     `json:"question"`
		Phase      Phase      `json:"phase"`
	}

	// ClarificationAnsweredEvent resolves an open question so the suspended
	// phase can resume
	ClarificationAnsweredEvent struct {
		QuestionID QuestionID `json:"question_id"`
		Answer     string     `json:"answer"`
	}

	// PromptRewrittenEvent replaces the user prompt after a clarification
	// answer has been folded into it
	PromptRewrittenEvent struct {
		Prompt string `json:"prompt"`
	}

	// WorkflowSetEvent replaces the session's workflow graph
	WorkflowSetEvent struct {
		Workflow *Workflow `json:"workflow"`
	}

	// BuildPhasesSetEvent records the visual-layout grouping used by the
	// documentation phase
	BuildPhasesSetEvent struct {
		Phases []*BuildPhase `json:"phases"`
	}

	// ConfigAnalysisSetEvent records the configuration status analysis of
	// the assembled workflow
	ConfigAnalysisSetEvent struct {
		Analysis *ConfigAnalysis `json:"analysis"`
	}

	// ErrorRecordedEvent captures a runner failure against the session
	ErrorRecordedEvent struct {
		Phase Phase  `json:"phase"`
		Error string `json:"error"`
	}

	// UsageRecordedEvent accumulates model token usage for the session
	UsageRecordedEvent struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	}

	// SessionImportedEvent replaces the derived state wholesale. It exists
	// so full-document replacement at the persistence boundary stays inside
	// the append-only history rather than rewriting it
	SessionImportedEvent struct {
		State *SessionState `json:"state"`
	}
)

const (
	EventTypeSessionCreated         EventType = "session_created"
	EventTypeNodeDiscovered         EventType = "node_discovered"
	EventTypeNodeSelected           EventType = "node_selected"
	EventTypeNodeConfigured         EventType = "node_configured"
	EventTypeNodeValidated          EventType = "node_validated"
	EventTypePhaseSet               EventType = "phase_set"
	EventTypePhaseCompleted         EventType = "phase_completed"
	EventTypeClarificationRequested EventType = "clarification_requested"
	EventTypeClarificationAnswered  EventType = "clarification_answered"
	EventTypePromptRewritten        EventType = "prompt_rewritten"
	EventTypeWorkflowSet            EventType = "workflow_set"
	EventTypeBuildPhasesSet         EventType = "build_phases_set"
	EventTypeConfigAnalysisSet      EventType = "config_analysis_set"
	EventTypeErrorRecorded          EventType = "error_recorded"
	EventTypeUsageRecorded          EventType = "usage_recorded"
	EventTypeSessionImported        EventType = "session_imported"
)
