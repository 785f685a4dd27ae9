package builder_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/assert/helpers"
	"github.com/weftlabs/weft/internal/builder"
	"github.com/weftlabs/weft/internal/registry"
	"github.com/weftlabs/weft/pkg/api"
)

// seedSession drops a session into the store at the given phase without
// running any earlier runners
func seedSession(
	t *testing.T, env *helpers.TestEnv, id api.SessionID,
	target api.Phase, wf *api.Workflow,
) {
	t.Helper()
	ctx := context.Background()
	m := env.Orchestrator.Manager()

	_, err := m.Create(ctx, id, "seeded session", "")
	require.NoError(t, err)

	if wf != nil {
		require.NoError(t, m.Append(ctx, id,
			builder.Op(api.EventTypeWorkflowSet,
				api.WorkflowSetEvent{Workflow: wf}),
		))
	}
	for _, phase := range api.PhaseOrder {
		if phase == target {
			break
		}
		require.NoError(t, m.Append(ctx, id,
			builder.Op(api.EventTypePhaseCompleted,
				api.PhaseCompletedEvent{Phase: phase}),
		))
	}
}

func deployWorkflow() *api.Workflow {
	return &api.Workflow{
		Name: "Deploy Alerts",
		Nodes: []*api.Node{
			{
				Name:       "Webhook",
				Type:       "nodes-base.webhook",
				Position:   api.Position{X: 240, Y: 200},
				Parameters: map[string]any{"path": "/deploy"},
			},
			{
				Name:     "Slack",
				Type:     "nodes-base.slack",
				Position: api.Position{X: 1080, Y: 200},
				Parameters: map[string]any{
					"channel": "",
					"text":    "Deployed",
				},
			},
		},
		Connections: api.Connections{"Webhook": {"Slack"}},
	}
}

func TestValidationCleanFirstPass(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		ctx := context.Background()
		seedSession(t, env, "sess-1", api.PhaseValidation, deployWorkflow())

		status, err := env.Orchestrator.Advance(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, api.PhaseDocumentation, status.Phase)

		assert.Equal(t, 1, env.Registry.Calls("validate_workflow"))
		assert.Equal(t, 0, env.Model.RequestCount())

		st, err := env.Orchestrator.State(ctx, "sess-1")
		require.NoError(t, err)
		assert.True(t, st.Validated["nodes-base.webhook"].Valid)
		assert.True(t, st.Validated["nodes-base.slack"].Valid)
	})
}

func TestValidationMachineFixSkipsModel(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		ctx := context.Background()
		seedSession(t, env, "sess-1", api.PhaseValidation, deployWorkflow())

		env.Registry.ValidateResults(
			&registry.WorkflowValidation{
				Valid: false,
				Errors: []*registry.ValidationIssue{{
					Node:    "Slack",
					Field:   "channel",
					Message: "channel is required",
					Fix:     "#ops",
				}},
			},
			&registry.WorkflowValidation{Valid: true},
		)

		status, err := env.Orchestrator.Advance(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, api.PhaseDocumentation, status.Phase)

		// The registry-supplied value was applied without a model call
		assert.Equal(t, 2, env.Registry.Calls("validate_workflow"))
		assert.Equal(t, 0, env.Model.RequestCount())

		st, err := env.Orchestrator.State(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, "#ops",
			st.Workflow.GetNode("Slack").Parameters["channel"])
		assert.True(t, st.Validated["nodes-base.slack"].Valid)
	})
}

func TestValidationModelFix(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		ctx := context.Background()
		seedSession(t, env, "sess-1", api.PhaseValidation, deployWorkflow())

		env.Registry.ValidateResults(
			&registry.WorkflowValidation{
				Valid: false,
				Errors: []*registry.ValidationIssue{{
					Node:    "Slack",
					Field:   "channel",
					Message: "channel is required",
				}},
			},
			&registry.WorkflowValidation{Valid: true},
		)
		env.Model.Respond(`{"fixes": [
			{"node": "Slack", "parameter": "channel", "value": "#deploys"}
		]}`)

		status, err := env.Orchestrator.Advance(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, api.PhaseDocumentation, status.Phase)
		assert.Equal(t, 1, env.Model.RequestCount())

		st, err := env.Orchestrator.State(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, "#deploys",
			st.Workflow.GetNode("Slack").Parameters["channel"])
	})
}

func TestValidationRepairLoopBounded(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		ctx := context.Background()
		seedSession(t, env, "sess-1", api.PhaseValidation, deployWorkflow())

		// The verdict never improves; the last scripted result repeats
		env.Registry.ValidateResults(&registry.WorkflowValidation{
			Valid: false,
			Errors: []*registry.ValidationIssue{{
				Node:    "Slack",
				Field:   "channel",
				Message: "channel is required",
			}},
		})
		env.Model.Respond(`{"fixes": []}`)

		status, err := env.Orchestrator.Advance(ctx, "sess-1")
		require.NoError(t, err)

		// Bounded repair: initial check plus one per attempt, then give up
		maxAttempts := env.Config.Build.MaxFixAttempts
		assert.Equal(t,
			maxAttempts+1, env.Registry.Calls("validate_workflow"))
		assert.Equal(t, maxAttempts, env.Model.RequestCount())

		// The phase still completes with the best-effort graph
		assert.Equal(t, api.PhaseDocumentation, status.Phase)

		st, err := env.Orchestrator.State(ctx, "sess-1")
		require.NoError(t, err)
		verdict := st.Validated["nodes-base.slack"]
		require.NotNil(t, verdict)
		assert.False(t, verdict.Valid)
		assert.Contains(t, verdict.Errors, "channel: channel is required")
		assert.True(t, st.Validated["nodes-base.webhook"].Valid)
	})
}

func TestValidationWithoutWorkflow(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		ctx := context.Background()
		seedSession(t, env, "sess-1", api.PhaseValidation, nil)

		_, err := env.Orchestrator.Advance(ctx, "sess-1")
		assert.ErrorIs(t, err, builder.ErrNoWorkflow)
	})
}

func TestBuildingWithoutConfiguredNodes(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		ctx := context.Background()
		seedSession(t, env, "sess-1", api.PhaseBuilding, nil)

		_, err := env.Orchestrator.Advance(ctx, "sess-1")
		assert.ErrorIs(t, err, builder.ErrNoConfiguredNodes)
	})
}
