package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/weftlabs/weft/internal/llm"
	"github.com/weftlabs/weft/internal/registry"
	"github.com/weftlabs/weft/pkg/api"
)

// configurationRunner produces parameters for every selected node. Each
// node is configured against its registry essentials, plus its registry
// documentation when available, so the model fills in real properties
// instead of invented ones. Already-configured nodes are skipped, so an
// interrupted run resumes where it stopped
type configurationRunner struct {
	o *Orchestrator
}

const configurationSystemPrompt = `You configure one workflow node. ` +
	`Respond with a single JSON object mapping parameter names to values. ` +
	`Use only the parameter names provided; never invent new ones. Use ` +
	`expression syntax like {{$credentials.name}} for secrets rather than ` +
	`literal values. Leave a value empty if the request does not determine it.`

func newConfigurationRunner(o *Orchestrator) *configurationRunner {
	return &configurationRunner{o: o}
}

func (r *configurationRunner) Run(
	ctx context.Context, st *api.SessionState,
) (*Result, error) {
	res := &Result{}

	for _, id := range st.Selected {
		if _, ok := st.Configured[id]; ok {
			continue
		}

		ess, err := r.o.registry.GetEssentials(ctx, string(id))
		if err != nil {
			if errors.Is(err, registry.ErrNodeNotFound) {
				res.append(Op(api.EventTypeNodeValidated,
					api.NodeValidatedEvent{
						NodeType: id,
						Result: &api.NodeValidation{
							Valid:  false,
							Errors: []string{err.Error()},
						},
					}))
				continue
			}
			return nil, externalError(err)
		}

		doc := r.nodeDocumentation(ctx, id)
		params, usage, err := r.configureNode(ctx, st, id, ess, doc)
		if err != nil {
			return nil, err
		}
		res.append(usageOp(usage))
		res.append(Op(api.EventTypeNodeConfigured,
			api.NodeConfiguredEvent{
				NodeType: id,
				Config: &api.NodeConfig{
					NodeType:   id,
					Category:   nodeCategory(st, ess),
					Parameters: params,
				},
			}))
	}

	res.Done = true
	return res, nil
}

// nodeDocumentation is best-effort; a node the registry has no
// documentation for still configures from its essentials
func (r *configurationRunner) nodeDocumentation(
	ctx context.Context, id api.NodeID,
) string {
	doc, err := r.o.registry.GetDocumentation(ctx, string(id))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc)
}

func (r *configurationRunner) configureNode(
	ctx context.Context, st *api.SessionState, id api.NodeID,
	ess *registry.NodeEssentials, doc string,
) (map[string]any, llm.Usage, error) {
	resp, err := r.o.model.Complete(ctx, &llm.Request{
		System: configurationSystemPrompt,
		Prompt: configurationPrompt(st, id, ess, doc),
	})
	if err != nil {
		return nil, llm.Usage{}, externalError(err)
	}

	parsed, err := llm.ExtractJSON(resp.Text)
	if err != nil {
		return nil, resp.Usage, externalError(err)
	}

	params := map[string]any{}
	allowed := allowedParameters(ess)
	parsed.ForEach(func(k, v gjson.Result) bool {
		name := k.String()
		if allowed != nil && !allowed[name] {
			return true
		}
		params[name] = v.Value()
		return true
	})
	return params, resp.Usage, nil
}

// configurationPrompt is template-first: when the registry supplies a
// working example, the model adjusts its values; otherwise it fills the
// declared property shape
func configurationPrompt(
	st *api.SessionState, id api.NodeID, ess *registry.NodeEssentials,
	doc string,
) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Workflow request: %s\n\n", st.Prompt)
	fmt.Fprintf(&sb, "Node type: %s (%s)\n", id, ess.DisplayName)
	if purpose := nodePurpose(st, id); purpose != "" {
		fmt.Fprintf(&sb, "Purpose in this workflow: %s\n", purpose)
	}
	if doc != "" {
		fmt.Fprintf(&sb, "\nNode documentation:\n%s\n", docExcerpt(doc))
	}

	if len(ess.Template) > 0 {
		sb.WriteString("\nWorking example parameters; adjust the values " +
			"for this request, keep the names:\n")
		for name, value := range ess.Template {
			fmt.Fprintf(&sb, "  %s: %v\n", name, value)
		}
	}
	writeProperties(&sb, "Required parameters", ess.Required)
	writeProperties(&sb, "Common parameters", ess.Common)
	return sb.String()
}

// docExcerpt bounds the prompt when registry documentation runs long
func docExcerpt(doc string) string {
	const maxDocChars = 1200
	if len(doc) <= maxDocChars {
		return doc
	}
	return doc[:maxDocChars]
}

func writeProperties(
	sb *strings.Builder, label string, props []*registry.Property,
) {
	if len(props) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n", label)
	for _, p := range props {
		fmt.Fprintf(sb, "  %s (%s): %s\n", p.Name, p.Type, p.Description)
	}
}

// allowedParameters returns the set of parameter names the registry
// declares, or nil when the registry declared none and anything goes
func allowedParameters(ess *registry.NodeEssentials) map[string]bool {
	res := map[string]bool{}
	for name := range ess.Template {
		res[name] = true
	}
	for _, p := range ess.Required {
		res[p.Name] = true
	}
	for _, p := range ess.Common {
		res[p.Name] = true
	}
	if len(res) == 0 {
		return nil
	}
	return res
}

func nodePurpose(st *api.SessionState, id api.NodeID) string {
	for _, d := range st.Discovered {
		if d.NodeType == id {
			return d.Purpose
		}
	}
	return ""
}

func nodeCategory(
	st *api.SessionState, ess *registry.NodeEssentials,
) string {
	if ess.Category != "" {
		return ess.Category
	}
	for _, d := range st.Discovered {
		if d.NodeType == ess.NodeType {
			return d.Category
		}
	}
	return ""
}
