package helpers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/weftlabs/weft/internal/registry"
	"github.com/weftlabs/weft/pkg/api"
)

// MockRegistry is a scripted registry.Service. Nodes registered through
// AddNode answer search, essentials, and validation calls; anything else
// resolves to not found. Individual behaviors can be overridden through
// the function fields
type MockRegistry struct {
	mu         sync.Mutex
	nodes      map[api.NodeID]*MockNode
	validate   []*registry.WorkflowValidation
	calls      map[string]int
	SearchFunc func(
		context.Context, string, int,
	) ([]*registry.NodeOption, error)
}

// MockNode is one scripted registry capability
type MockNode struct {
	Option     *registry.NodeOption
	Essentials *registry.NodeEssentials
	Keywords   []string
}

var _ registry.Service = (*MockRegistry)(nil)

func NewMockRegistry() *MockRegistry {
	return &MockRegistry{
		nodes: map[api.NodeID]*MockNode{},
		calls: map[string]int{},
	}
}

// AddNode registers a capability that search and essentials can find
func (m *MockRegistry) AddNode(node *MockNode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[node.Option.NodeType] = node
}

// ValidateResults queues whole-graph validation verdicts in FIFO order;
// the last one repeats once the queue empties
func (m *MockRegistry) ValidateResults(vs ...*registry.WorkflowValidation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validate = append(m.validate, vs...)
}

// Calls reports how many times the named operation ran
func (m *MockRegistry) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *MockRegistry) Connect(context.Context) error {
	return nil
}

func (m *MockRegistry) HealthCheck(context.Context) error {
	m.count("health")
	return nil
}

func (m *MockRegistry) Close() error {
	return nil
}

func (m *MockRegistry) Search(
	ctx context.Context, query string, limit int,
) ([]*registry.NodeOption, error) {
	m.count("search")
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var res []*registry.NodeOption
	for _, node := range m.nodes {
		if matchesQuery(node, query) {
			res = append(res, node.Option)
		}
		if len(res) >= limit {
			break
		}
	}
	return res, nil
}

func (m *MockRegistry) GetInfo(
	_ context.Context, raw string,
) (*registry.NodeInfo, error) {
	m.count("info")
	node, err := m.lookup(raw)
	if err != nil {
		return nil, err
	}
	return &registry.NodeInfo{
		NodeType:    node.Option.NodeType,
		DisplayName: node.Option.DisplayName,
		Description: node.Option.Description,
		Category:    node.Option.Category,
	}, nil
}

func (m *MockRegistry) GetEssentials(
	_ context.Context, raw string,
) (*registry.NodeEssentials, error) {
	m.count("essentials")
	node, err := m.lookup(raw)
	if err != nil {
		return nil, err
	}
	if node.Essentials != nil {
		return node.Essentials, nil
	}
	return &registry.NodeEssentials{
		NodeType:    node.Option.NodeType,
		DisplayName: node.Option.DisplayName,
		Category:    node.Option.Category,
	}, nil
}

func (m *MockRegistry) GetDocumentation(
	_ context.Context, raw string,
) (string, error) {
	m.count("documentation")
	node, err := m.lookup(raw)
	if err != nil {
		return "", err
	}
	return node.Option.Description, nil
}

func (m *MockRegistry) ValidateNode(
	_ context.Context, raw string, _ map[string]any,
) (*api.NodeValidation, error) {
	m.count("validate_node")
	if _, err := m.lookup(raw); err != nil {
		return nil, err
	}
	return &api.NodeValidation{Valid: true}, nil
}

func (m *MockRegistry) ValidateWorkflow(
	context.Context, *api.Workflow,
) (*registry.WorkflowValidation, error) {
	m.count("validate_workflow")

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.validate) == 0 {
		return &registry.WorkflowValidation{Valid: true}, nil
	}
	res := m.validate[0]
	if len(m.validate) > 1 {
		m.validate = m.validate[1:]
	}
	return res, nil
}

func (m *MockRegistry) lookup(raw string) (*MockNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, candidate := range registry.Candidates(raw) {
		if node, ok := m.nodes[api.NodeID(candidate)]; ok {
			return node, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", registry.ErrNodeNotFound, raw)
}

func (m *MockRegistry) count(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
}

func matchesQuery(node *MockNode, query string) bool {
	for _, kw := range node.Keywords {
		if strings.EqualFold(kw, query) {
			return true
		}
	}
	return false
}
