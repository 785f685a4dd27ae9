package api

type (
	// NodeStatus classifies a node's remaining configuration needs
	NodeStatus string

	// ConfigAnalysis reports which credentials and decisions are still
	// outstanding before an assembled workflow is usable
	ConfigAnalysis struct {
		Nodes      map[string]*NodeAnalysis `json:"nodes"`
		IsComplete bool                     `json:"is_complete"`
	}

	// NodeAnalysis is the per-node configuration status breakdown
	NodeAnalysis struct {
		Purpose     string     `json:"purpose,omitempty"`
		Status      NodeStatus `json:"status"`
		Credentials []string   `json:"credentials,omitempty"`
		Decisions   []string   `json:"decisions,omitempty"`
	}
)

const (
	NodeConfigured       NodeStatus = "configured"
	NodeNeedsCredentials NodeStatus = "needs_credentials"
	NodeNeedsDecisions   NodeStatus = "needs_decisions"
	NodePartial          NodeStatus = "partial"
)
