package llm

import (
	"context"
	"sync"
)

// MockProvider returns scripted responses for tests and simulation runs. Each
// call consumes the next scripted step; when the script is exhausted the last
// step repeats.
type MockProvider struct {
	mu    sync.Mutex
	steps []MockStep
	calls int

	// LastPrompt records the most recent prompt for assertions.
	LastPrompt string
}

// MockStep is one scripted exchange: a canned response or an error.
type MockStep struct {
	Response string
	Err      error
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider scripts a provider from the given steps.
func NewMockProvider(steps ...MockStep) *MockProvider {
	return &MockProvider{steps: steps}
}

func (m *MockProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", classify(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastPrompt = prompt
	idx := m.calls
	if idx >= len(m.steps) {
		idx = len(m.steps) - 1
	}
	m.calls++

	if idx < 0 {
		return "{}", nil
	}
	step := m.steps[idx]
	if step.Err != nil {
		return "", step.Err
	}
	return step.Response, nil
}

// Calls returns how many times the provider was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
