package analyzer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/analyzer"
	"github.com/weftlabs/weft/pkg/api"
)

func TestAnalyzeConfiguredNode(t *testing.T) {
	wf := &api.Workflow{
		Nodes: []*api.Node{{
			Name: "Fetch",
			Type: "nodes-base.httpRequest",
			Parameters: map[string]any{
				"url":    "https://api.internal.corp/v1/items",
				"method": "GET",
			},
		}},
	}

	res := analyzer.Analyze(wf)
	require.Contains(t, res.Nodes, "Fetch")
	assert.Equal(t, api.NodeConfigured, res.Nodes["Fetch"].Status)
	assert.True(t, res.IsComplete)
}

func TestAnalyzePlaceholderNeedsDecision(t *testing.T) {
	wf := &api.Workflow{
		Nodes: []*api.Node{{
			Name: "Fetch",
			Type: "nodes-base.httpRequest",
			Parameters: map[string]any{
				"url": "https://api.example.com/endpoint",
			},
		}},
	}

	res := analyzer.Analyze(wf)
	na := res.Nodes["Fetch"]
	assert.Equal(t, api.NodeNeedsDecisions, na.Status)
	assert.NotEmpty(t, na.Decisions)
	assert.False(t, res.IsComplete)
}

func TestAnalyzeCredentialExpression(t *testing.T) {
	wf := &api.Workflow{
		Nodes: []*api.Node{{
			Name: "Notify",
			Type: "nodes-base.slack",
			Parameters: map[string]any{
				"token":   "{{$credentials.slackApi}}",
				"channel": "#alerts",
				"text":    "deploy finished",
			},
		}},
	}

	res := analyzer.Analyze(wf)
	na := res.Nodes["Notify"]
	assert.Equal(t, api.NodeNeedsCredentials, na.Status)
	assert.Contains(t, na.Credentials, "token")
}

func TestAnalyzeStaticAuthRequirement(t *testing.T) {
	// Slack needs credentials even when no parameter references any
	wf := &api.Workflow{
		Nodes: []*api.Node{{
			Name: "Notify",
			Type: "nodes-base.slack",
			Parameters: map[string]any{
				"channel": "#alerts",
				"text":    "hello",
			},
		}},
	}

	res := analyzer.Analyze(wf)
	na := res.Nodes["Notify"]
	assert.Equal(t, api.NodeNeedsCredentials, na.Status)
	assert.Contains(t, na.Credentials, "slackApi or slackOAuth2Api")
}

func TestAnalyzeRequiredFieldMissing(t *testing.T) {
	wf := &api.Workflow{
		Nodes: []*api.Node{{
			Name:       "Webhook",
			Type:       "nodes-base.webhook",
			Parameters: map[string]any{"httpMethod": "POST"},
		}},
	}

	res := analyzer.Analyze(wf)
	na := res.Nodes["Webhook"]
	assert.Equal(t, api.NodeNeedsDecisions, na.Status)
	assert.Contains(t, na.Decisions, "path is required")
}

func TestAnalyzePartial(t *testing.T) {
	wf := &api.Workflow{
		Nodes: []*api.Node{{
			Name: "Notify",
			Type: "nodes-base.slack",
			Parameters: map[string]any{
				"channel": "your-channel-here",
				"text":    "hello",
			},
		}},
	}

	res := analyzer.Analyze(wf)
	assert.Equal(t, api.NodePartial, res.Nodes["Notify"].Status)
}

func TestAnalyzeSkipsAnnotations(t *testing.T) {
	wf := &api.Workflow{
		Nodes: []*api.Node{{
			Name:       "Note: Trigger",
			Type:       api.AnnotationNodeType,
			Parameters: map[string]any{"content": "## Trigger"},
		}},
	}

	res := analyzer.Analyze(wf)
	assert.Empty(t, res.Nodes)
	assert.True(t, res.IsComplete)
}

func TestAnalyzeNilWorkflow(t *testing.T) {
	res := analyzer.Analyze(nil)
	assert.True(t, res.IsComplete)
	assert.Empty(t, res.Nodes)
}

func TestClassifyVisualPhase(t *testing.T) {
	assert.Equal(t, analyzer.PhaseTrigger,
		analyzer.ClassifyVisualPhase("nodes-base.webhook"))
	assert.Equal(t, analyzer.PhaseOutput,
		analyzer.ClassifyVisualPhase("nodes-base.slack"))
	assert.Equal(t, analyzer.PhaseInput,
		analyzer.ClassifyVisualPhase("nodes-base.postgres"))
	assert.Equal(t, analyzer.PhaseTransform,
		analyzer.ClassifyVisualPhase("nodes-base.set"))
	assert.Equal(t, analyzer.PhaseTransform,
		analyzer.ClassifyVisualPhase("nodes-custom.unknown"))
}
