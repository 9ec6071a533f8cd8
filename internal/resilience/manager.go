package resilience

import (
	"context"
	"time"

	"github.com/vasicdigital/debateforge/internal/debate"
	"github.com/vasicdigital/debateforge/internal/llmclient"
)

// Manager composes the circuit breaker table, retry policy, and secondary
// providers into the single entry point the orchestrator calls: "invoke
// this role's model, resiliently."
type Manager struct {
	Breakers  *Table
	RetryCfg  RetryConfig
	Client    llmclient.Client
	Fallbacks map[string]string // modelID -> fallback modelID
}

// NewManager builds a Manager over client with the given breaker and retry
// configuration.
func NewManager(client llmclient.Client, breakerCfg BreakerConfig, retryCfg RetryConfig) *Manager {
	return &Manager{
		Breakers:  NewTable(breakerCfg),
		RetryCfg:  retryCfg,
		Client:    client,
		Fallbacks: make(map[string]string),
	}
}

// SetFallback configures secondaryModelID as the fallback for
// primaryModelID: if a model call ultimately fails, the manager invokes the
// secondary provider for the same logical model identity, if one is
// configured.
func (m *Manager) SetFallback(primaryModelID, secondaryModelID string) {
	m.Fallbacks[primaryModelID] = secondaryModelID
}

// Invoke resiliently calls modelID for logical role/family family, honoring
// the session's retry budget, using ctx's deadline as the per-call
// timeout.
func (m *Manager) Invoke(ctx context.Context, modelID, family, prompt string, budget *Budget) (*llmclient.Completion, error) {
	breaker := m.Breakers.Get(BreakerKey{ModelID: modelID, Family: family})

	call := func(ctx context.Context) (Result, error) {
		resp, err := m.Client.Invoke(ctx, modelID, prompt)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Text:         resp.Text,
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
			Latency:      resp.Latency,
			FinishReason: resp.FinishReason,
		}, nil
	}

	var fallback Invoker
	if secondary, ok := m.Fallbacks[modelID]; ok && secondary != "" {
		fallbackBreaker := m.Breakers.Get(BreakerKey{ModelID: secondary, Family: family})
		fallback = func(ctx context.Context) (Result, error) {
			allowed, kind := fallbackBreaker.Allow()
			if !allowed {
				return Result{}, debate.NewClassifiedError(kind, secondary, errBreakerOpen)
			}
			resp, err := m.Client.Invoke(ctx, secondary, prompt)
			fallbackBreaker.RecordResult(err == nil)
			if err != nil {
				return Result{}, err
			}
			return Result{
				Text:         resp.Text,
				InputTokens:  resp.InputTokens,
				OutputTokens: resp.OutputTokens,
				Latency:      resp.Latency,
				FinishReason: resp.FinishReason,
			}, nil
		}
	}

	result, err := Execute(ctx, breaker, m.RetryCfg, budget, call, fallback)
	if err != nil {
		return nil, err
	}
	return &llmclient.Completion{
		Text:         result.Text,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		Latency:      result.Latency,
		FinishReason: result.FinishReason,
	}, nil
}

// IsOpenForRole reports whether the breaker for modelID under the given
// logical role/family is currently open. The orchestrator consults this
// at phase boundaries to decide whether to request an emergency rotation.
func (m *Manager) IsOpenForRole(modelID, family string) bool {
	return m.Breakers.IsOpen(BreakerKey{ModelID: modelID, Family: family})
}

// WithDeadline is a small helper so callers get a consistent per-turn
// timeout derived from the configured turn deadline.
func WithDeadline(parent context.Context, deadline time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, deadline)
}
