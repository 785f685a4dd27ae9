package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/registry"
	"github.com/weftlabs/weft/pkg/api"
)

// stubService scripts only the search path; everything else is unused by
// gap resolution
type stubService struct {
	registry.Service
	queries []string
	results map[string][]*registry.NodeOption
	err     error
}

func (s *stubService) Search(
	_ context.Context, query string, _ int,
) ([]*registry.NodeOption, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.results[query], nil
}

func TestExpandTerms(t *testing.T) {
	terms := registry.ExpandTerms("send a Slack notification")
	require.NotEmpty(t, terms)
	assert.Equal(t, "send a Slack notification", terms[0])
	assert.Contains(t, terms, "send Slack notification")
	assert.Contains(t, terms, "send")
}

func TestExpandTermsCamelCase(t *testing.T) {
	terms := registry.ExpandTerms("httpRequest")
	assert.Equal(t, "httpRequest", terms[0])
	assert.Contains(t, terms, "http Request")
}

func TestExpandTermsEmpty(t *testing.T) {
	assert.Nil(t, registry.ExpandTerms("   "))
}

func TestSplitWords(t *testing.T) {
	assert.Equal(t, []string{"google", "Sheets", "append"},
		registry.SplitWords("googleSheets_append"))
	assert.Equal(t, []string{"http", "Request"},
		registry.SplitWords("httpRequest"))
	assert.Equal(t, []string{"slack"}, registry.SplitWords("slack"))
}

func TestFindGapsWidensTerms(t *testing.T) {
	svc := &stubService{
		results: map[string][]*registry.NodeOption{
			"slack": {
				{
					NodeType:    api.NodeID("nodes-base.slack"),
					DisplayName: "Slack",
				},
			},
		},
	}

	res := registry.FindGaps(
		context.Background(), svc, []string{"slack notification service"},
	)
	require.Len(t, res, 1)
	require.Len(t, res[0].Options, 1)
	assert.Equal(t,
		api.NodeID("nodes-base.slack"), res[0].Options[0].NodeType)
	// The full phrase was tried before widening
	assert.Equal(t, "slack notification service", svc.queries[0])
}

func TestFindGapsNoMatch(t *testing.T) {
	svc := &stubService{results: map[string][]*registry.NodeOption{}}
	res := registry.FindGaps(
		context.Background(), svc, []string{"teleporter"},
	)
	require.Len(t, res, 1)
	assert.Equal(t, "teleporter", res[0].Capability)
	assert.Empty(t, res[0].Options)
}

func TestFindGapsSearchErrorSkipsTerm(t *testing.T) {
	svc := &stubService{err: errors.New("registry offline")}
	res := registry.FindGaps(
		context.Background(), svc, []string{"slack"},
	)
	require.Len(t, res, 1)
	assert.Empty(t, res[0].Options)
}

func TestFindGapsRanking(t *testing.T) {
	options := []*registry.NodeOption{
		{NodeType: "nodes-base.emailSend", DisplayName: "Email"},
		{NodeType: "nodes-base.slack", DisplayName: "Slack"},
	}
	svc := &stubService{
		results: map[string][]*registry.NodeOption{"slack": options},
	}

	res := registry.FindGaps(context.Background(), svc, []string{"slack"})
	require.Len(t, res, 1)
	require.Len(t, res[0].Options, 2)
	assert.Equal(t,
		api.NodeID("nodes-base.slack"), res[0].Options[0].NodeType)
}
