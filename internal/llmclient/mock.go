package llmclient

import (
	"context"
	"sync"
	"time"

	"github.com/vasicdigital/debateforge/internal/debate"
)

// MockClient is a deterministic, thread-safe test double, grounded on the
// teacher's debateMockLLMProvider pattern (internal/services/debate_service_test.go).
type MockClient struct {
	mu           sync.Mutex
	CompleteFunc func(ctx context.Context, modelID, prompt string) (*Completion, error)
	Response     *Completion
	Err          error
	Delay        time.Duration
	CallCount    int
	Calls        []string // modelIDs invoked, in order
}

// NewMockClient returns a MockClient that always succeeds with response.
func NewMockClient(response *Completion) *MockClient {
	return &MockClient{Response: response}
}

// Invoke implements Client.
func (m *MockClient) Invoke(ctx context.Context, modelID, prompt string) (*Completion, error) {
	m.mu.Lock()
	m.CallCount++
	m.Calls = append(m.Calls, modelID)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, debate.NewClassifiedError(debate.FailureTimeout, modelID, ctx.Err())
		}
	}

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, modelID, prompt)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Response != nil {
		resp := *m.Response
		return &resp, nil
	}
	return &Completion{Text: "mock response", FinishReason: "stop"}, nil
}

// Count returns the number of times Invoke has been called so far.
func (m *MockClient) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// FailNTimes returns a CompleteFunc that fails with kind for the first n
// invocations, then succeeds with response.
func FailNTimes(n int, kind debate.FailureKind, response *Completion) func(ctx context.Context, modelID, prompt string) (*Completion, error) {
	var calls int
	var mu sync.Mutex
	return func(ctx context.Context, modelID, prompt string) (*Completion, error) {
		mu.Lock()
		calls++
		attempt := calls
		mu.Unlock()
		if attempt <= n {
			return nil, debate.NewClassifiedError(kind, modelID, errTransientProbe)
		}
		resp := *response
		return &resp, nil
	}
}

type mockError string

func (e mockError) Error() string { return string(e) }

const errTransientProbe = mockError("simulated failure")
