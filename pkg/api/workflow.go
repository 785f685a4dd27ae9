package api

type (
	// Workflow is the evolving graph a session assembles. It is empty until
	// the building phase succeeds
	Workflow struct {
		Name        string         `json:"name"`
		Nodes       []*Node        `json:"nodes"`
		Connections Connections    `json:"connections"`
		Settings    map[string]any `json:"settings,omitempty"`
	}

	// Node is one placed capability instance in a workflow graph
	Node struct {
		Name       string         `json:"name"`
		Type       NodeID         `json:"type"`
		Category   string         `json:"category,omitempty"`
		Position   Position       `json:"position"`
		Parameters map[string]any `json:"parameters"`
	}

	// Position is a node's visual placement on the canvas
	Position struct {
		X int `json:"x"`
		Y int `json:"y"`
	}

	// Connections maps a source node name to the node names it feeds
	Connections map[string][]string

	// BuildPhase is a visual-layout grouping of node names, used only by the
	// documentation phase when placing annotations
	BuildPhase struct {
		Name  string   `json:"name"`
		Nodes []string `json:"nodes"`
	}

	// WorkflowSummary is the reduced view of a workflow exposed in the
	// session status projection
	WorkflowSummary struct {
		Name        string `json:"name"`
		NodeCount   int    `json:"node_count"`
		Connections int    `json:"connections"`
	}
)

// AnnotationNodeType is the node type used for documentation annotations
const AnnotationNodeType = NodeID("nodes-base.stickyNote")

// Summary reduces a workflow to the projection exposed to pollers
func (w *Workflow) Summary() *WorkflowSummary {
	if w == nil {
		return nil
	}
	conns := 0
	for _, targets := range w.Connections {
		conns += len(targets)
	}
	return &WorkflowSummary{
		Name:        w.Name,
		NodeCount:   len(w.Nodes),
		Connections: conns,
	}
}

// GetNode returns the node with the given name, or nil if absent
func (w *Workflow) GetNode(name string) *Node {
	for _, n := range w.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// IsAnnotation returns true for documentation annotation nodes
func (n *Node) IsAnnotation() bool {
	return n.Type == AnnotationNodeType
}

// Clone returns a deep-enough copy of the workflow for in-place repair. Node
// parameter maps are copied one level deep; values are shared
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	res := *w
	res.Nodes = make([]*Node, len(w.Nodes))
	for i, n := range w.Nodes {
		cp := *n
		cp.Parameters = make(map[string]any, len(n.Parameters))
		for k, v := range n.Parameters {
			cp.Parameters[k] = v
		}
		res.Nodes[i] = &cp
	}
	res.Connections = make(Connections, len(w.Connections))
	for src, targets := range w.Connections {
		res.Connections[src] = append([]string(nil), targets...)
	}
	return &res
}
