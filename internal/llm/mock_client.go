package llm

import (
	"context"
	"sync"
)

// MockLLMClient implements LLMClient for testing.
type MockLLMClient struct {
	// Injectable behavior
	ChatStreamFunc func(ctx context.Context, req Request) <-chan StreamChunk
	ListModelsFunc func(ctx context.Context) ([]string, error)

	// State
	model string
	mu    sync.Mutex

	// Call recording
	ChatStreamCalls []Request
}

// NewMockLLMClient creates a mock client with sensible defaults.
func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{
		model: "mock-model",
	}
}

// MockStream returns a closed channel holding chunks, in order.
func MockStream(chunks ...StreamChunk) <-chan StreamChunk {
	ch := make(chan StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

// Name returns "Mock".
func (m *MockLLMClient) Name() string { return "Mock" }

// ChatStream calls the injected ChatStreamFunc or returns a default stream.
func (m *MockLLMClient) ChatStream(ctx context.Context, req Request) <-chan StreamChunk {
	m.mu.Lock()
	m.ChatStreamCalls = append(m.ChatStreamCalls, req)
	m.mu.Unlock()

	if m.ChatStreamFunc != nil {
		return m.ChatStreamFunc(ctx, req)
	}
	return MockStream(
		StreamChunk{Type: ChunkText, Text: "mock response"},
		StreamChunk{Type: ChunkDone},
	)
}

// ListModels calls the injected ListModelsFunc or returns the current model.
func (m *MockLLMClient) ListModels(ctx context.Context) ([]string, error) {
	if m.ListModelsFunc != nil {
		return m.ListModelsFunc(ctx)
	}
	return []string{m.GetModel()}, nil
}

// UsageStatus renders a fixed-format line for assertions.
func (m *MockLLMClient) UsageStatus(u Usage, _ SessionStats) string {
	return "Tokens: " + formatCount(u.InputTokens) + " in, " + formatCount(u.OutputTokens) + " out."
}

// SetModel sets the model name.
func (m *MockLLMClient) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
}

// GetModel returns the current model name.
func (m *MockLLMClient) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// Calls returns a copy of the recorded ChatStream requests.
func (m *MockLLMClient) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.ChatStreamCalls...)
}
