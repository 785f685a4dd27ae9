package builder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/weftlabs/weft/internal/llm"
	"github.com/weftlabs/weft/internal/registry"
	"github.com/weftlabs/weft/pkg/api"
	"github.com/weftlabs/weft/pkg/log"
)

// validationRunner checks the assembled graph against the registry and
// auto-repairs it within a bounded number of attempts. Machine-supplied
// fix values are applied directly; the model is consulted only for issues
// the registry could not fix itself. The phase always completes, keeping
// the best-effort graph and per-node verdicts even when issues remain
type validationRunner struct {
	o *Orchestrator
}

const validationSystemPrompt = `You repair workflow node parameters. ` +
	`Respond with a single JSON object:
{"fixes": [{"node": "Node Name", "parameter": "name", "value": "fixed"}]}
Only fix the reported problems; change nothing else.`

func newValidationRunner(o *Orchestrator) *validationRunner {
	return &validationRunner{o: o}
}

func (r *validationRunner) Run(
	ctx context.Context, st *api.SessionState,
) (*Result, error) {
	if st.Workflow == nil {
		return nil, validationError(fmt.Errorf("%w: %s",
			ErrNoWorkflow, st.ID))
	}

	res := &Result{}
	wf := st.Workflow.Clone()
	maxAttempts := r.o.cfg.Build.MaxFixAttempts

	var verdict *registry.WorkflowValidation
	for attempt := 0; ; attempt++ {
		v, err := r.o.registry.ValidateWorkflow(ctx, wf)
		if err != nil {
			return nil, externalError(err)
		}
		verdict = v
		if v.Valid || attempt >= maxAttempts {
			break
		}

		slog.Info("Repairing workflow",
			log.SessionID(st.ID),
			log.Attempt(attempt+1),
			slog.Int("issues", len(v.Errors)))

		remaining := applyMachineFixes(wf, v.Errors)
		if len(remaining) == 0 {
			continue
		}
		usage, err := r.applyModelFixes(ctx, wf, remaining)
		if err != nil {
			return nil, err
		}
		res.append(usageOp(usage))
	}

	res.append(Op(api.EventTypeWorkflowSet,
		api.WorkflowSetEvent{Workflow: wf}))
	for _, op := range nodeVerdictOps(wf, verdict) {
		res.append(op)
	}

	res.Done = true
	return res, nil
}

// applyMachineFixes writes registry-supplied fix values straight into the
// graph and returns the issues that had none
func applyMachineFixes(
	wf *api.Workflow, issues []*registry.ValidationIssue,
) []*registry.ValidationIssue {
	var remaining []*registry.ValidationIssue
	for _, issue := range issues {
		node := wf.GetNode(issue.Node)
		if node == nil || issue.Field == "" || issue.Fix == nil {
			remaining = append(remaining, issue)
			continue
		}
		node.Parameters[issue.Field] = issue.Fix
	}
	return remaining
}

func (r *validationRunner) applyModelFixes(
	ctx context.Context, wf *api.Workflow,
	issues []*registry.ValidationIssue,
) (llm.Usage, error) {
	resp, err := r.o.model.Complete(ctx, &llm.Request{
		System: validationSystemPrompt,
		Prompt: repairPrompt(wf, issues),
	})
	if err != nil {
		return llm.Usage{}, externalError(err)
	}

	parsed, err := llm.ExtractJSON(resp.Text)
	if err != nil {
		return resp.Usage, externalError(err)
	}

	for _, fix := range parsed.Get("fixes").Array() {
		node := wf.GetNode(fix.Get("node").String())
		if node == nil {
			continue
		}
		if param := fix.Get("parameter").String(); param != "" {
			node.Parameters[param] = fix.Get("value").Value()
		}
	}
	return resp.Usage, nil
}

func repairPrompt(
	wf *api.Workflow, issues []*registry.ValidationIssue,
) string {
	var sb strings.Builder
	sb.WriteString("Problems:\n")
	for _, issue := range issues {
		fmt.Fprintf(&sb, "  node %q, parameter %q: %s\n",
			issue.Node, issue.Field, issue.Message)
	}
	sb.WriteString("\nCurrent node parameters:\n")
	for _, issue := range issues {
		node := wf.GetNode(issue.Node)
		if node == nil {
			continue
		}
		fmt.Fprintf(&sb, "  %s: %v\n", node.Name, node.Parameters)
	}
	return sb.String()
}

// nodeVerdictOps folds the final validation verdict into per-node
// operations. Nodes with no reported issues are recorded as valid
func nodeVerdictOps(
	wf *api.Workflow, verdict *registry.WorkflowValidation,
) []Operation {
	failures := map[string][]string{}
	if verdict != nil {
		for _, issue := range verdict.Errors {
			failures[issue.Node] = append(
				failures[issue.Node], issueText(issue),
			)
		}
	}

	var res []Operation
	for _, node := range wf.Nodes {
		if node.IsAnnotation() {
			continue
		}
		errs := failures[node.Name]
		res = append(res, Op(api.EventTypeNodeValidated,
			api.NodeValidatedEvent{
				NodeType: node.Type,
				Result: &api.NodeValidation{
					Valid:  len(errs) == 0,
					Errors: errs,
				},
			}))
	}
	return res
}

func issueText(issue *registry.ValidationIssue) string {
	if issue.Field == "" {
		return issue.Message
	}
	return fmt.Sprintf("%s: %s", issue.Field, issue.Message)
}
