package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/weftlabs/weft/internal/analyzer"
	"github.com/weftlabs/weft/pkg/api"
)

// documentationRunner annotates the validated graph. It is fully
// deterministic: no model call, no registry call. Each layout group gets
// one annotation above it describing the nodes in the group, and every
// annotation shares the height of the tallest group so the canvas reads
// as aligned columns
type documentationRunner struct {
	o *Orchestrator
}

const (
	annotationWidth     = 240
	annotationBase      = 120
	annotationPerNode   = 40
	annotationGapAboveY = 40
)

func newDocumentationRunner(o *Orchestrator) *documentationRunner {
	return &documentationRunner{o: o}
}

func (r *documentationRunner) Run(
	ctx context.Context, st *api.SessionState,
) (*Result, error) {
	if st.Workflow == nil {
		return nil, validationError(fmt.Errorf("%w: %s",
			ErrNoWorkflow, st.ID))
	}

	res := &Result{}
	wf := annotate(st.Workflow)
	res.append(Op(api.EventTypeWorkflowSet,
		api.WorkflowSetEvent{Workflow: wf}))

	res.Done = true
	return res, nil
}

// annotate returns a copy of the workflow with one annotation node per
// non-empty layout group. Existing annotations are dropped first so the
// pass is idempotent
func annotate(wf *api.Workflow) *api.Workflow {
	res := wf.Clone()
	res.Nodes = withoutAnnotations(res.Nodes)

	groups := groupByVisualPhase(res)
	if len(groups) == 0 {
		return res
	}

	height := annotationBase
	for _, group := range groups {
		if h := annotationBase + annotationPerNode*len(group.Nodes); h > height {
			height = h
		}
	}

	for _, group := range groups {
		res.Nodes = append(res.Nodes, annotationNode(res, group, height))
	}
	return res
}

func withoutAnnotations(nodes []*api.Node) []*api.Node {
	res := nodes[:0]
	for _, n := range nodes {
		if !n.IsAnnotation() {
			res = append(res, n)
		}
	}
	return res
}

// annotationNode places one sticky note above its group, anchored to the
// leftmost and topmost member
func annotationNode(
	wf *api.Workflow, group *api.BuildPhase, height int,
) *api.Node {
	minX, minY := 0, 0
	for i, name := range group.Nodes {
		node := wf.GetNode(name)
		if node == nil {
			continue
		}
		if i == 0 || node.Position.X < minX {
			minX = node.Position.X
		}
		if i == 0 || node.Position.Y < minY {
			minY = node.Position.Y
		}
	}

	return &api.Node{
		Name: fmt.Sprintf("Note: %s", titleCase(group.Name)),
		Type: api.AnnotationNodeType,
		Position: api.Position{
			X: minX,
			Y: minY - height - annotationGapAboveY,
		},
		Parameters: map[string]any{
			"content": annotationContent(wf, group),
			"width":   annotationWidth,
			"height":  height,
		},
	}
}

func annotationContent(wf *api.Workflow, group *api.BuildPhase) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n", titleCase(group.Name))
	for _, name := range group.Nodes {
		node := wf.GetNode(name)
		if node == nil {
			continue
		}
		if purpose := analyzer.PurposeOf(node.Type); purpose != "" {
			fmt.Fprintf(&sb, "- **%s**: %s\n", name, purpose)
			continue
		}
		fmt.Fprintf(&sb, "- **%s**\n", name)
	}
	return sb.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
