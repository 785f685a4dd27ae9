package builder_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/assert/helpers"
	"github.com/weftlabs/weft/pkg/api"
)

func annotations(wf *api.Workflow) []*api.Node {
	var res []*api.Node
	for _, n := range wf.Nodes {
		if n.IsAnnotation() {
			res = append(res, n)
		}
	}
	return res
}

func TestDocumentationAnnotatesGroups(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		ctx := context.Background()
		seedSession(
			t, env, "sess-1", api.PhaseDocumentation, deployWorkflow(),
		)

		status, err := env.Orchestrator.Advance(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, api.PhaseComplete, status.Phase)
		assert.True(t, status.Complete)

		st, err := env.Orchestrator.State(ctx, "sess-1")
		require.NoError(t, err)

		// One annotation per layout group: trigger and output
		notes := annotations(st.Workflow)
		require.Len(t, notes, 2)

		var trigger, output *api.Node
		for _, n := range notes {
			switch n.Name {
			case "Note: Trigger":
				trigger = n
			case "Note: Output":
				output = n
			}
		}
		require.NotNil(t, trigger)
		require.NotNil(t, output)

		assert.Contains(t, trigger.Parameters["content"], "## Trigger")
		assert.Contains(t, trigger.Parameters["content"], "**Webhook**")
		assert.Contains(t, output.Parameters["content"], "**Slack**")

		// All notes share the height of the tallest group and sit above
		// their anchor node
		assert.Equal(t,
			trigger.Parameters["height"], output.Parameters["height"])
		assert.Less(t, trigger.Position.Y, 200)

		// No model or registry involvement
		assert.Equal(t, 0, env.Model.RequestCount())
		assert.Equal(t, 0, env.Registry.Calls("validate_workflow"))
	})
}

func TestDocumentationIdempotent(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		ctx := context.Background()

		// The seeded graph already carries a stale annotation
		wf := deployWorkflow()
		wf.Nodes = append(wf.Nodes, &api.Node{
			Name: "Note: Stale",
			Type: api.AnnotationNodeType,
			Parameters: map[string]any{
				"content": "## Stale",
			},
		})
		seedSession(t, env, "sess-1", api.PhaseDocumentation, wf)

		_, err := env.Orchestrator.Advance(ctx, "sess-1")
		require.NoError(t, err)

		st, err := env.Orchestrator.State(ctx, "sess-1")
		require.NoError(t, err)

		notes := annotations(st.Workflow)
		require.Len(t, notes, 2)
		for _, n := range notes {
			assert.NotEqual(t, "Note: Stale", n.Name)
		}
	})
}

func TestDocumentationEmptyWorkflow(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		ctx := context.Background()
		seedSession(
			t, env, "sess-1", api.PhaseDocumentation,
			&api.Workflow{Name: "Empty"},
		)

		status, err := env.Orchestrator.Advance(ctx, "sess-1")
		require.NoError(t, err)
		assert.True(t, status.Complete)

		st, err := env.Orchestrator.State(ctx, "sess-1")
		require.NoError(t, err)
		assert.Empty(t, st.Workflow.Nodes)
	})
}
