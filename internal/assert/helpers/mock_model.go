package helpers

import (
	"context"
	"errors"
	"sync"

	"github.com/weftlabs/weft/internal/llm"
)

// MockModel is a scripted llm.Client. Responses queue in FIFO order; when
// the queue empties the last response repeats. Every request is recorded
// for assertion
type MockModel struct {
	mu        sync.Mutex
	responses []string
	last      string
	err       error
	Requests  []*llm.Request
}

// ErrNoResponse is returned when the mock has nothing scripted
var ErrNoResponse = errors.New("no scripted response")

var _ llm.Client = (*MockModel)(nil)

func NewMockModel() *MockModel {
	return &MockModel{}
}

// Respond queues one or more completion responses
func (m *MockModel) Respond(texts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, texts...)
}

// Fail makes every subsequent completion return err
func (m *MockModel) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockModel) Complete(
	_ context.Context, req *llm.Request,
) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.err != nil {
		return nil, m.err
	}

	text := m.last
	if len(m.responses) > 0 {
		text = m.responses[0]
		m.responses = m.responses[1:]
		m.last = text
	}
	if text == "" {
		return nil, ErrNoResponse
	}

	return &llm.Response{
		Text: text,
		Usage: llm.Usage{
			PromptTokens:     10,
			CompletionTokens: 20,
		},
	}, nil
}

// RequestCount reports how many completions were attempted
func (m *MockModel) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
