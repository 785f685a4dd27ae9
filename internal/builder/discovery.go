package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/weftlabs/weft/internal/llm"
	"github.com/weftlabs/weft/internal/registry"
	"github.com/weftlabs/weft/pkg/api"
)

type (
	// discoveryRunner turns the user prompt into selected registry nodes.
	// The model extracts intent; the registry grounds each extracted
	// capability in real node types. Ambiguity below the clarify threshold
	// suspends the phase on a question instead of guessing
	discoveryRunner struct {
		o *Orchestrator
	}

	// capability is one extracted requirement from the prompt
	capability struct {
		Name     string
		Purpose  string
		Required bool
	}

	// intent is the model's reading of the prompt
	intent struct {
		Confidence   float64
		Question     string
		Capabilities []capability
	}
)

const discoverySystemPrompt = `You extract automation requirements from a ` +
	`user request. Respond with a single JSON object:
{
  "confidence": 0.0-1.0,
  "question": "one clarifying question, or empty if none needed",
  "capabilities": [
    {"name": "service or action", "purpose": "what it does here",
     "required": true}
  ]
}
List every trigger, data source, transformation, and destination the ` +
	`request implies. Mark a capability required only if the workflow ` +
	`cannot function without it.`

func newDiscoveryRunner(o *Orchestrator) *discoveryRunner {
	return &discoveryRunner{o: o}
}

func (r *discoveryRunner) Run(
	ctx context.Context, st *api.SessionState,
) (*Result, error) {
	resp, err := r.o.model.Complete(ctx, &llm.Request{
		System: discoverySystemPrompt,
		Prompt: st.Prompt,
	})
	if err != nil {
		return nil, externalError(err)
	}

	res := &Result{}
	res.append(usageOp(resp.Usage))

	in, err := parseIntent(resp.Text)
	if err != nil {
		return nil, externalError(err)
	}

	if in.Question != "" || in.Confidence < r.o.cfg.Build.ClarifyThreshold {
		res.append(clarificationOp(st.Phase, clarifyQuestion(in)))
		return res, nil
	}

	names := make([]string, len(in.Capabilities))
	for i, c := range in.Capabilities {
		names[i] = c.Name
	}
	gaps := registry.FindGaps(ctx, r.o.registry, names)

	for i, gap := range gaps {
		c := in.Capabilities[i]
		if len(gap.Options) == 0 {
			if c.Required {
				res.append(clarificationOp(st.Phase, fmt.Sprintf(
					"No integration was found for %q. "+
						"Which service should handle it?", c.Name)))
				return res, nil
			}
			continue
		}
		for _, opt := range gap.Options {
			res.append(Op(api.EventTypeNodeDiscovered,
				api.NodeDiscoveredEvent{
					Node: &api.DiscoveredNode{
						NodeType:    opt.NodeType,
						DisplayName: opt.DisplayName,
						Purpose:     c.Purpose,
						Category:    opt.Category,
					},
				}))
		}
		if c.Required {
			res.append(Op(api.EventTypeNodeSelected,
				api.NodeSelectedEvent{
					NodeType: gap.Options[0].NodeType,
				}))
		}
	}

	res.Done = true
	return res, nil
}

func parseIntent(text string) (*intent, error) {
	parsed, err := llm.ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	res := &intent{
		Confidence: parsed.Get("confidence").Float(),
		Question:   strings.TrimSpace(parsed.Get("question").String()),
	}
	parsed.Get("capabilities").ForEach(func(_, v gjson.Result) bool {
		name := strings.TrimSpace(v.Get("name").String())
		if name == "" {
			return true
		}
		res.Capabilities = append(res.Capabilities, capability{
			Name:     name,
			Purpose:  v.Get("purpose").String(),
			Required: v.Get("required").Bool(),
		})
		return true
	})
	return res, nil
}

func clarifyQuestion(in *intent) string {
	if in.Question != "" {
		return in.Question
	}
	return "Could you describe in more detail what the workflow should do?"
}

func clarificationOp(phase api.Phase, question string) Operation {
	return Op(api.EventTypeClarificationRequested,
		api.ClarificationRequestedEvent{
			QuestionID: api.QuestionID(uuid.NewString()),
			Question:   question,
			Phase:      phase,
		})
}

func usageOp(u llm.Usage) Operation {
	return Op(api.EventTypeUsageRecorded, api.UsageRecordedEvent{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
	})
}
