package events_test

import (
	"testing"

	"github.com/kode4food/timebox"
	"github.com/stretchr/testify/assert"

	"github.com/weftlabs/weft/pkg/api"
	"github.com/weftlabs/weft/pkg/events"
)

func TestSessionKey(t *testing.T) {
	key := events.SessionKey(api.SessionID("sess-1"))
	assert.Equal(t, timebox.AggregateID{"session", "sess-1"}, key)
}

func TestIsSessionEvent(t *testing.T) {
	assert.True(t, events.IsSessionEvent(&timebox.Event{
		AggregateID: events.SessionKey(api.SessionID("sess-1")),
	}))
	assert.False(t, events.IsSessionEvent(&timebox.Event{
		AggregateID: timebox.NewAggregateID("other", "sess-1"),
	}))
	assert.False(t, events.IsSessionEvent(&timebox.Event{
		AggregateID: timebox.NewAggregateID("session"),
	}))
}

func TestNewSessionState(t *testing.T) {
	st := events.NewSessionState()
	assert.Equal(t, api.PhaseDiscovery, st.Phase)
	assert.NotNil(t, st.Configured)
	assert.NotNil(t, st.Validated)
	assert.Empty(t, st.ID)
}

func TestSessionAppliersCoverAllTypes(t *testing.T) {
	types := []api.EventType{
		api.EventTypeSessionCreated,
		api.EventTypeNodeDiscovered,
		api.EventTypeNodeSelected,
		api.EventTypeNodeConfigured,
		api.EventTypeNodeValidated,
		api.EventTypePhaseSet,
		api.EventTypePhaseCompleted,
		api.EventTypeClarificationRequested,
		api.EventTypeClarificationAnswered,
		api.EventTypePromptRewritten,
		api.EventTypeWorkflowSet,
		api.EventTypeBuildPhasesSet,
		api.EventTypeConfigAnalysisSet,
		api.EventTypeErrorRecorded,
		api.EventTypeUsageRecorded,
		api.EventTypeSessionImported,
	}
	for _, et := range types {
		_, ok := events.SessionAppliers[timebox.EventType(et)]
		assert.True(t, ok, string(et))
	}
}
