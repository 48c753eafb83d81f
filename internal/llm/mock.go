package llm

import (
	"context"
	"strings"
	"sync"
)

// MockRule answers prompts containing Contains (case-insensitive) with Response.
type MockRule struct {
	Contains string
	Response string
}

// MockClient is a scripted Client for tests and offline runs.
// Queued responses are consumed first, then rules, then Default.
type MockClient struct {
	mu      sync.Mutex
	queue   []string
	rules   []MockRule
	Default string
	Err     error
	calls   []string
}

// NewMockClient returns a mock that always acts.
func NewMockClient() *MockClient {
	return &MockClient{Default: "Act: done"}
}

// Enqueue appends scripted responses.
func (m *MockClient) Enqueue(responses ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, responses...)
	return m
}

// On adds a rule.
func (m *MockClient) On(contains, response string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, MockRule{Contains: strings.ToLower(contains), Response: response})
	return m
}

// Generate implements Client.
func (m *MockClient) Generate(ctx context.Context, prompt string, _ GenerationParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", capabilityErr("mock", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, prompt)
	if m.Err != nil {
		return "", capabilityErr("mock", m.Err)
	}
	if len(m.queue) > 0 {
		out := m.queue[0]
		m.queue = m.queue[1:]
		return out, nil
	}
	lower := strings.ToLower(prompt)
	for _, r := range m.rules {
		if strings.Contains(lower, r.Contains) {
			return r.Response, nil
		}
	}
	return m.Default, nil
}

// Calls returns every prompt seen so far.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}
