package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"

	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/pkg/api"
	"github.com/weftlabs/weft/pkg/log"
)

// MCPService queries a capability registry exposed as an MCP tool server.
// The client is constructed lazily on first use; Connect and HealthCheck are
// exposed so the process can establish and probe the connection explicitly
// instead of relying on implicit first-use behavior
type MCPService struct {
	cfg    config.RegistryConfig
	mu     sync.Mutex
	client *mcpclient.Client
}

const (
	toolSearchNodes      = "search_nodes"
	toolGetInfo          = "get_node_info"
	toolGetEssentials    = "get_node_essentials"
	toolGetDocumentation = "get_node_documentation"
	toolValidateNode     = "validate_node_operation"
	toolValidateWorkflow = "validate_workflow"

	defaultSearchLimit = 10
)

var (
	ErrToolCallFailed = errors.New("registry tool call failed")
	ErrEmptyResult    = errors.New("registry returned empty result")
)

var _ Service = (*MCPService)(nil)

// NewMCPService creates a registry service for the configured MCP endpoint
func NewMCPService(cfg config.RegistryConfig) *MCPService {
	return &MCPService{cfg: cfg}
}

// Connect establishes and initializes the MCP session if needed
func (s *MCPService) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

func (s *MCPService) connectLocked(ctx context.Context) error {
	if s.client != nil {
		return nil
	}

	var opts []transport.StreamableHTTPCOption
	if s.cfg.APIKey != "" {
		opts = append(opts, transport.WithHTTPHeaders(map[string]string{
			"Authorization": "Bearer " + s.cfg.APIKey,
		}))
	}

	client, err := mcpclient.NewStreamableHttpClient(s.cfg.URL, opts...)
	if err != nil {
		return err
	}
	if err := client.Start(ctx); err != nil {
		return err
	}

	_, err = client.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    "weft-engine",
				Version: "1.0",
			},
		},
	})
	if err != nil {
		_ = client.Close()
		return err
	}

	slog.Info("Registry connected",
		slog.String("url", s.cfg.URL))
	s.client = client
	return nil
}

// HealthCheck verifies the registry session is alive, connecting first if
// necessary
func (s *MCPService) HealthCheck(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.connectLocked(ctx); err != nil {
		return err
	}
	return s.client.Ping(ctx)
}

// Close shuts down the MCP session
func (s *MCPService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// Search queries the registry for capabilities matching the query
func (s *MCPService) Search(
	ctx context.Context, query string, limit int,
) ([]*NodeOption, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	text, err := s.callTool(ctx, toolSearchNodes, map[string]any{
		"query": query,
		"limit": limit,
	})
	if err != nil {
		return nil, err
	}
	if isNotFound(text) {
		return nil, nil
	}
	return parseOptions(text), nil
}

// GetInfo retrieves the registry's full description of one capability,
// resolving the raw identifier through the candidate list
func (s *MCPService) GetInfo(
	ctx context.Context, raw string,
) (*NodeInfo, error) {
	candidate, text, err := s.resolve(ctx, toolGetInfo, raw)
	if err != nil {
		return nil, err
	}

	info := &NodeInfo{NodeType: api.NodeID(candidate), Raw: text}
	parsed, ok := parseObject(text)
	if !ok {
		return info, nil
	}
	if v := parsed.Get("displayName"); v.Exists() {
		info.DisplayName = v.String()
	}
	if v := parsed.Get("description"); v.Exists() {
		info.Description = v.String()
	}
	if v := parsed.Get("category"); v.Exists() {
		info.Category = v.String()
	}
	return info, nil
}

// GetEssentials retrieves the reduced configuration schema for one
// capability, resolving the raw identifier through the candidate list
func (s *MCPService) GetEssentials(
	ctx context.Context, raw string,
) (*NodeEssentials, error) {
	candidate, text, err := s.resolve(ctx, toolGetEssentials, raw)
	if err != nil {
		return nil, err
	}

	ess := &NodeEssentials{NodeType: api.NodeID(candidate), Raw: text}
	parsed, ok := parseObject(text)
	if !ok {
		return ess, nil
	}
	if v := parsed.Get("displayName"); v.Exists() {
		ess.DisplayName = v.String()
	}
	if v := parsed.Get("category"); v.Exists() {
		ess.Category = v.String()
	}
	ess.Required = parseProperties(parsed.Get("requiredProperties"))
	ess.Common = parseProperties(parsed.Get("commonProperties"))
	if tmpl := parsed.Get("examples.minimal"); tmpl.IsObject() {
		ess.Template = decodeMap(tmpl)
	}
	return ess, nil
}

// GetDocumentation retrieves human-readable documentation for a capability
func (s *MCPService) GetDocumentation(
	ctx context.Context, raw string,
) (string, error) {
	_, text, err := s.resolve(ctx, toolGetDocumentation, raw)
	if err != nil {
		return "", err
	}
	return text, nil
}

// ValidateNode checks one node's parameters against the registry schema
func (s *MCPService) ValidateNode(
	ctx context.Context, raw string, params map[string]any,
) (*api.NodeValidation, error) {
	candidates := Candidates(raw)
	for _, candidate := range candidates {
		text, err := s.callTool(ctx, toolValidateNode, map[string]any{
			"nodeType": candidate,
			"config":   params,
		})
		if err != nil {
			return nil, err
		}
		if isNotFound(text) {
			continue
		}
		return parseNodeValidation(text), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, raw)
}

// ValidateWorkflow checks a whole assembled graph
func (s *MCPService) ValidateWorkflow(
	ctx context.Context, wf *api.Workflow,
) (*WorkflowValidation, error) {
	encoded, err := json.Marshal(wf)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return nil, err
	}

	text, err := s.callTool(ctx, toolValidateWorkflow, map[string]any{
		"workflow": doc,
	})
	if err != nil {
		return nil, err
	}
	return ParseWorkflowValidation(text), nil
}

// resolve tries each candidate identifier in order against the named tool
// and returns the first response that is not a "not found" rejection
func (s *MCPService) resolve(
	ctx context.Context, tool, raw string,
) (string, string, error) {
	candidates := Candidates(raw)
	for _, candidate := range candidates {
		text, err := s.callTool(ctx, tool, map[string]any{
			"nodeType": candidate,
		})
		if err != nil {
			return "", "", err
		}
		if isNotFound(text) {
			slog.Debug("Candidate rejected",
				slog.String("tool", tool),
				log.NodeType(candidate))
			continue
		}
		return candidate, text, nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrNodeNotFound, raw)
}

func (s *MCPService) callTool(
	ctx context.Context, name string, args map[string]any,
) (string, error) {
	s.mu.Lock()
	if err := s.connectLocked(ctx); err != nil {
		s.mu.Unlock()
		return "", err
	}
	client := s.client
	s.mu.Unlock()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	res, err := client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrToolCallFailed, name, err)
	}

	text := textContent(res)
	if res.IsError && !isNotFound(text) {
		return "", fmt.Errorf("%w: %s: %s", ErrToolCallFailed, name, text)
	}
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyResult, name)
	}
	return text, nil
}

func textContent(res *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, content := range res.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

// isNotFound recognizes the registry's textual rejection responses. The
// registry reports unknown identifiers as tool text, not protocol errors
func isNotFound(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "not found") ||
		strings.Contains(lower, "error executing tool")
}

func parseObject(text string) (gjson.Result, bool) {
	if !gjson.Valid(text) {
		return gjson.Result{}, false
	}
	parsed := gjson.Parse(text)
	return parsed, parsed.IsObject()
}

func parseOptions(text string) []*NodeOption {
	if !gjson.Valid(text) {
		return nil
	}
	parsed := gjson.Parse(text)
	list := parsed
	if parsed.IsObject() {
		list = parsed.Get("results")
	}
	if !list.IsArray() {
		return nil
	}

	var res []*NodeOption
	list.ForEach(func(_, item gjson.Result) bool {
		nodeType := item.Get("nodeType").String()
		if nodeType == "" {
			return true
		}
		res = append(res, &NodeOption{
			NodeType:    api.NodeID(nodeType),
			DisplayName: item.Get("displayName").String(),
			Description: item.Get("description").String(),
			Category:    item.Get("category").String(),
		})
		return true
	})
	return res
}

func parseProperties(list gjson.Result) []*Property {
	if !list.IsArray() {
		return nil
	}
	var res []*Property
	list.ForEach(func(_, item gjson.Result) bool {
		name := item.Get("name").String()
		if name == "" {
			return true
		}
		prop := &Property{
			Name:        name,
			Type:        item.Get("type").String(),
			Description: item.Get("description").String(),
		}
		if def := item.Get("default"); def.Exists() {
			prop.Default = def.Value()
		}
		res = append(res, prop)
		return true
	})
	return res
}

func parseNodeValidation(text string) *api.NodeValidation {
	parsed, ok := parseObject(text)
	if !ok {
		return &api.NodeValidation{Valid: !isNotFound(text)}
	}
	res := &api.NodeValidation{
		Valid: parsed.Get("valid").Bool(),
	}
	parsed.Get("errors").ForEach(func(_, item gjson.Result) bool {
		if msg := issueMessage(item); msg != "" {
			res.Errors = append(res.Errors, msg)
		}
		return true
	})
	return res
}

// ParseWorkflowValidation interprets the registry's whole-graph verdict,
// falling back to a single opaque issue when the response is not structured
func ParseWorkflowValidation(text string) *WorkflowValidation {
	parsed, ok := parseObject(text)
	if !ok {
		return &WorkflowValidation{
			Valid:  false,
			Errors: []*ValidationIssue{{Message: text}},
		}
	}

	res := &WorkflowValidation{
		Valid: parsed.Get("valid").Bool(),
	}
	parsed.Get("errors").ForEach(func(_, item gjson.Result) bool {
		issue := &ValidationIssue{
			Node:    item.Get("node").String(),
			Field:   item.Get("field").String(),
			Message: issueMessage(item),
		}
		if fix := item.Get("fix"); fix.Exists() {
			issue.Fix = fix.Value()
		}
		res.Errors = append(res.Errors, issue)
		return true
	})
	return res
}

func issueMessage(item gjson.Result) string {
	if item.Type == gjson.String {
		return item.String()
	}
	return item.Get("message").String()
}

func decodeMap(obj gjson.Result) map[string]any {
	res := map[string]any{}
	obj.ForEach(func(key, value gjson.Result) bool {
		res[key.String()] = value.Value()
		return true
	})
	return res
}
