package api

type (
	// CreateSessionRequest contains parameters for starting a build session
	CreateSessionRequest struct {
		ID     SessionID `json:"id,omitempty"`
		Prompt string    `json:"prompt"`
		Owner  string    `json:"owner,omitempty"`
	}

	// ClarificationRequest carries a caller's answer to an open question
	ClarificationRequest struct {
		QuestionID QuestionID `json:"question_id"`
		Answer     string     `json:"answer"`
	}

	// SessionListResponse contains summaries of known sessions
	SessionListResponse struct {
		Sessions []*SessionStatus `json:"sessions"`
		Count    int              `json:"count"`
	}

	// WorkflowExportResponse wraps an exported workflow graph together with
	// its configuration status analysis
	WorkflowExportResponse struct {
		SessionID SessionID       `json:"session_id"`
		Phase     Phase           `json:"phase"`
		Workflow  *Workflow       `json:"workflow"`
		Analysis  *ConfigAnalysis `json:"config_analysis,omitempty"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Service  string `json:"service"`
		Status   string `json:"status"`
		Registry string `json:"registry,omitempty"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Error     string `json:"error"`
		Status    int    `json:"status"`
		Retryable bool   `json:"retryable,omitempty"`
	}
)
