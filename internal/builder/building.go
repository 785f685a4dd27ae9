package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/weftlabs/weft/internal/analyzer"
	"github.com/weftlabs/weft/internal/llm"
	"github.com/weftlabs/weft/internal/registry"
	"github.com/weftlabs/weft/pkg/api"
)

// buildingRunner assembles the configured nodes into a workflow graph.
// Node placement is deterministic; only the graph name and the connection
// topology come from the model
type buildingRunner struct {
	o *Orchestrator
}

const buildingSystemPrompt = `You connect workflow nodes into a graph. ` +
	`Respond with a single JSON object:
{
  "name": "short workflow name",
  "connections": {"Source Node": ["Target Node"]},
  "settings": {}
}
Use only the node names provided. Every non-trigger node must be ` +
	`reachable from a trigger.`

// Canvas layout constants. Columns follow the visual phase order; rows
// stack nodes within a column
const (
	layoutOriginX  = 240
	layoutOriginY  = 200
	layoutColWidth = 280
	layoutRowPitch = 160
)

func newBuildingRunner(o *Orchestrator) *buildingRunner {
	return &buildingRunner{o: o}
}

func (r *buildingRunner) Run(
	ctx context.Context, st *api.SessionState,
) (*Result, error) {
	if len(st.Configured) == 0 {
		return nil, validationError(fmt.Errorf("%w: %s",
			ErrNoConfiguredNodes, st.ID))
	}

	usable := usableConfigs(st)
	if len(usable) == 0 {
		return nil, validationError(fmt.Errorf("%w: %s",
			ErrNoValidatedNodes, st.ID))
	}

	nodes := placeNodes(usable)

	resp, err := r.o.model.Complete(ctx, &llm.Request{
		System: buildingSystemPrompt,
		Prompt: buildingPrompt(st, nodes),
	})
	if err != nil {
		return nil, externalError(err)
	}

	res := &Result{}
	res.append(usageOp(resp.Usage))

	parsed, err := llm.ExtractJSON(resp.Text)
	if err != nil {
		return nil, externalError(err)
	}

	wf := &api.Workflow{
		Name:        workflowName(parsed, st),
		Nodes:       nodes,
		Connections: parseConnections(parsed, nodes),
		Settings:    parseSettings(parsed),
	}

	res.append(Op(api.EventTypeWorkflowSet,
		api.WorkflowSetEvent{Workflow: wf}))
	res.append(Op(api.EventTypeConfigAnalysisSet,
		api.ConfigAnalysisSetEvent{Analysis: analyzer.Analyze(wf)}))
	res.append(Op(api.EventTypeBuildPhasesSet,
		api.BuildPhasesSetEvent{Phases: groupByVisualPhase(wf)}))

	res.Done = true
	return res, nil
}

// usableConfigs drops configs for nodes the registry has already rejected.
// Selection order is preserved so layout and naming stay stable across runs
func usableConfigs(st *api.SessionState) []*api.NodeConfig {
	var res []*api.NodeConfig
	for _, id := range st.Selected {
		cfg, ok := st.Configured[id]
		if !ok {
			continue
		}
		if v, ok := st.Validated[id]; ok && !v.Valid {
			continue
		}
		res = append(res, cfg)
	}
	return res
}

// placeNodes assigns display names and deterministic grid positions.
// Columns follow the visual phase order; rows stack within a column
func placeNodes(configs []*api.NodeConfig) []*api.Node {
	cols := map[analyzer.VisualPhase]int{}
	for i, phase := range analyzer.VisualPhaseOrder {
		cols[phase] = i
	}

	rows := map[int]int{}
	res := make([]*api.Node, len(configs))
	for i, cfg := range configs {
		col := cols[analyzer.ClassifyVisualPhase(cfg.NodeType)]
		row := rows[col]
		rows[col] = row + 1
		res[i] = &api.Node{
			Name:     displayName(cfg.NodeType),
			Type:     cfg.NodeType,
			Category: cfg.Category,
			Position: api.Position{
				X: layoutOriginX + col*layoutColWidth,
				Y: layoutOriginY + row*layoutRowPitch,
			},
			Parameters: cfg.Parameters,
		}
	}
	return res
}

// displayName renders the node type's tail segment as title-cased words
func displayName(id api.NodeID) string {
	tail := string(id)
	if idx := strings.LastIndex(tail, "."); idx >= 0 {
		tail = tail[idx+1:]
	}
	words := registry.SplitWords(tail)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func buildingPrompt(st *api.SessionState, nodes []*api.Node) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Workflow request: %s\n\nNodes:\n", st.Prompt)
	for _, n := range nodes {
		fmt.Fprintf(&sb, "  %s (type %s, %s)\n", n.Name, n.Type,
			analyzer.ClassifyVisualPhase(n.Type))
	}
	return sb.String()
}

func workflowName(parsed gjson.Result, st *api.SessionState) string {
	if name := strings.TrimSpace(parsed.Get("name").String()); name != "" {
		return name
	}
	name := st.Prompt
	if len(name) > 60 {
		name = name[:60]
	}
	return name
}

// parseConnections keeps only edges whose endpoints are real nodes; the
// model cannot introduce nodes through the topology
func parseConnections(
	parsed gjson.Result, nodes []*api.Node,
) api.Connections {
	known := map[string]bool{}
	for _, n := range nodes {
		known[n.Name] = true
	}

	res := api.Connections{}
	parsed.Get("connections").ForEach(func(k, v gjson.Result) bool {
		src := k.String()
		if !known[src] {
			return true
		}
		for _, t := range v.Array() {
			if target := t.String(); known[target] && target != src {
				res[src] = append(res[src], target)
			}
		}
		return true
	})
	return res
}

func parseSettings(parsed gjson.Result) map[string]any {
	settings := parsed.Get("settings")
	if !settings.IsObject() {
		return nil
	}
	res := map[string]any{}
	settings.ForEach(func(k, v gjson.Result) bool {
		res[k.String()] = v.Value()
		return true
	})
	if len(res) == 0 {
		return nil
	}
	return res
}

// groupByVisualPhase buckets non-annotation node names by their layout
// group, preserving the fixed group order
func groupByVisualPhase(wf *api.Workflow) []*api.BuildPhase {
	groups := map[analyzer.VisualPhase][]string{}
	for _, n := range wf.Nodes {
		if n.IsAnnotation() {
			continue
		}
		phase := analyzer.ClassifyVisualPhase(n.Type)
		groups[phase] = append(groups[phase], n.Name)
	}

	var res []*api.BuildPhase
	for _, phase := range analyzer.VisualPhaseOrder {
		if names := groups[phase]; len(names) > 0 {
			res = append(res, &api.BuildPhase{
				Name:  string(phase),
				Nodes: names,
			})
		}
	}
	return res
}
