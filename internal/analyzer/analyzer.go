// Package analyzer classifies the configuration status of an assembled
// workflow without calling any external service. The analysis is a pure
// function of the graph, so downstream consumers can tell a caller which
// credentials and decisions remain outstanding without re-deriving it.
package analyzer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/weftlabs/weft/pkg/api"
)

// Analyze inspects every non-annotation node's parameters and classifies
// each as configured, needing credentials, needing decisions, or partial.
// The workflow is complete only when every node is configured
func Analyze(wf *api.Workflow) *api.ConfigAnalysis {
	res := &api.ConfigAnalysis{
		Nodes:      map[string]*api.NodeAnalysis{},
		IsComplete: true,
	}
	if wf == nil {
		return res
	}

	for _, node := range wf.Nodes {
		if node.IsAnnotation() {
			continue
		}
		na := analyzeNode(node)
		res.Nodes[node.Name] = na
		if na.Status != api.NodeConfigured {
			res.IsComplete = false
		}
	}
	return res
}

func analyzeNode(node *api.Node) *api.NodeAnalysis {
	res := &api.NodeAnalysis{
		Purpose: nodePurpose(node),
	}

	credentials := map[string]bool{}
	decisions := map[string]bool{}
	filled := 0

	for name, value := range node.Parameters {
		str, ok := value.(string)
		if !ok {
			if value != nil {
				filled++
			}
			continue
		}
		if str == "" {
			continue
		}
		filled++

		switch {
		case isCredentialExpression(str):
			credentials[name] = true
		case isPlaceholder(str):
			decisions[name] = true
		}
	}

	// Static auth table: a node needing credentials counts as outstanding
	// unless a credential expression already references one
	if kinds := CredentialsFor(node.Type); len(kinds) > 0 {
		if len(credentials) == 0 {
			credentials[strings.Join(kinds, " or ")] = true
		}
	}

	for _, field := range RequiredFieldsFor(node.Type) {
		if isEmptyParameter(node.Parameters[field]) {
			decisions[fmt.Sprintf("%s is required", field)] = true
		}
	}

	res.Credentials = sortedKeys(credentials)
	res.Decisions = sortedKeys(decisions)
	res.Status = classify(len(credentials), len(decisions), filled)
	return res
}

func classify(credentials, decisions, filled int) api.NodeStatus {
	switch {
	case credentials == 0 && decisions == 0 && filled > 0:
		return api.NodeConfigured
	case credentials > 0 && decisions > 0:
		return api.NodePartial
	case credentials > 0:
		return api.NodeNeedsCredentials
	case decisions > 0:
		return api.NodeNeedsDecisions
	default:
		return api.NodePartial
	}
}

func nodePurpose(node *api.Node) string {
	if p, ok := node.Parameters["purpose"].(string); ok && p != "" {
		return p
	}
	return PurposeOf(node.Type)
}

// isCredentialExpression detects templated-expression syntax referencing
// credentials, variables, or the environment
func isCredentialExpression(value string) bool {
	if !strings.Contains(value, "{{") {
		return false
	}
	return strings.Contains(value, "$credentials") ||
		strings.Contains(value, "$env") ||
		strings.Contains(value, "$vars")
}

// isPlaceholder detects literal values left as templates for the user
func isPlaceholder(value string) bool {
	lower := strings.ToLower(value)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isEmptyParameter(value any) bool {
	if value == nil {
		return true
	}
	if str, ok := value.(string); ok {
		return strings.TrimSpace(str) == ""
	}
	return false
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	res := make([]string, 0, len(set))
	for k := range set {
		res = append(res, k)
	}
	slices.Sort(res)
	return res
}
