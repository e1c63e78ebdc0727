package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient replays scripted responses. It is safe for concurrent use and
// records every request it receives.
type MockClient struct {
	mu           sync.Mutex
	responses    []*Response
	currentCall  int
	requests     []*GenerateRequest
	GenerateFunc func(ctx context.Context, req *GenerateRequest) (*Response, error)
	Model        string
}

// NewMockClient returns a MockClient that answers with responses in order
func NewMockClient(responses ...*Response) *MockClient {
	return &MockClient{
		responses: responses,
		Model:     "mock-model",
	}
}

// Enqueue appends scripted responses
func (m *MockClient) Enqueue(responses ...*Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, responses...)
}

func (m *MockClient) Generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, cloneRequest(req))
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentCall >= len(m.responses) {
		return nil, fmt.Errorf("no more mock responses")
	}
	resp := m.responses[m.currentCall]
	m.currentCall++
	return resp, nil
}

func (m *MockClient) ModelName() string {
	return m.Model
}

// Requests returns the requests received so far
func (m *MockClient) Requests() []*GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*GenerateRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Generate calls
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func cloneRequest(req *GenerateRequest) *GenerateRequest {
	if req == nil {
		return nil
	}
	c := *req
	c.Messages = append([]Message(nil), req.Messages...)
	c.Tools = append([]ToolDefinition(nil), req.Tools...)
	return &c
}

// TextResponse is a convenience constructor for a plain assistant reply
func TextResponse(text string) *Response {
	return &Response{Content: text, StopReason: "end_turn"}
}

// ToolCallResponse is a convenience constructor for a reply requesting tool calls
func ToolCallResponse(text string, calls ...ToolCall) *Response {
	return &Response{Content: text, ToolCalls: calls, StopReason: "tool_use"}
}
