package registry

import (
	"context"
	"errors"

	"github.com/weftlabs/weft/pkg/api"
)

type (
	// Service queries the external capability registry. All node-addressed
	// operations resolve the raw identifier through the ordered candidate
	// list before giving up
	Service interface {
		Connect(context.Context) error
		HealthCheck(context.Context) error
		Search(context.Context, string, int) ([]*NodeOption, error)
		GetInfo(context.Context, string) (*NodeInfo, error)
		GetEssentials(context.Context, string) (*NodeEssentials, error)
		GetDocumentation(context.Context, string) (string, error)
		ValidateNode(
			context.Context, string, map[string]any,
		) (*api.NodeValidation, error)
		ValidateWorkflow(
			context.Context, *api.Workflow,
		) (*WorkflowValidation, error)
		Close() error
	}

	// NodeOption is one ranked search result for a capability query
	NodeOption struct {
		NodeType    api.NodeID `json:"node_type"`
		DisplayName string     `json:"display_name"`
		Description string     `json:"description,omitempty"`
		Category    string     `json:"category,omitempty"`
	}

	// NodeInfo is the registry's full description of one capability
	NodeInfo struct {
		NodeType    api.NodeID `json:"node_type"`
		DisplayName string     `json:"display_name"`
		Description string     `json:"description,omitempty"`
		Category    string     `json:"category,omitempty"`
		Raw         string     `json:"raw,omitempty"`
	}

	// NodeEssentials is the reduced schema used to configure a node:
	// required and commonly-used properties plus an optional working
	// template of example parameters
	NodeEssentials struct {
		NodeType    api.NodeID     `json:"node_type"`
		DisplayName string         `json:"display_name"`
		Category    string         `json:"category,omitempty"`
		Required    []*Property    `json:"required,omitempty"`
		Common      []*Property    `json:"common,omitempty"`
		Template    map[string]any `json:"template,omitempty"`
		Raw         string         `json:"raw,omitempty"`
	}

	// Property describes one configurable node parameter
	Property struct {
		Name        string `json:"name"`
		Type        string `json:"type,omitempty"`
		Description string `json:"description,omitempty"`
		Default     any    `json:"default,omitempty"`
	}

	// WorkflowValidation is the registry's verdict on a whole graph
	WorkflowValidation struct {
		Valid  bool               `json:"valid"`
		Errors []*ValidationIssue `json:"errors,omitempty"`
	}

	// ValidationIssue is one reported problem. Fix, when present, is a
	// machine-supplied autofix value preferred over model invention
	ValidationIssue struct {
		Node    string `json:"node,omitempty"`
		Field   string `json:"field,omitempty"`
		Message string `json:"message"`
		Fix     any    `json:"fix,omitempty"`
	}
)

// ErrNodeNotFound is returned when every candidate identifier for a raw
// capability name was rejected by the registry
var ErrNodeNotFound = errors.New("node type not found in registry")
