// Package llmclient provides the single abstraction for sending a prompt to
// a named model, getting a completion, and recording latency/tokens/errors.
// It carries no retry or queueing logic — that lives in internal/resilience.
package llmclient

import (
	"context"
	"time"

	"github.com/vasicdigital/debateforge/internal/debate"
)

// Completion is the successful result of an Invoke call.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
	FinishReason string
}

// Client is the contract every model provider must satisfy.
type Client interface {
	// Invoke sends prompt to modelID and blocks until a completion,
	// classified failure, or ctx cancellation. Every call must carry a
	// deadline via ctx; Invoke does not impose one itself.
	Invoke(ctx context.Context, modelID, prompt string) (*Completion, error)
}

// MetricsSink receives one record per Invoke call, win or lose. The core
// does not care how metrics are transported; no implementation ships in
// this module outside its tests (internal/observer does not implement it).
type MetricsSink interface {
	RecordInvocation(modelID string, latency time.Duration, tokens int, costEstimate float64, err error)
}

// InstrumentedClient wraps a Client and reports every call to a
// MetricsSink, matching §4.1's "side effects: emits a metric record per
// call" requirement without coupling Client implementations to any
// particular metrics backend.
type InstrumentedClient struct {
	Inner Client
	Sink  MetricsSink
	// CostPerToken estimates USD cost per combined input+output token; 0
	// disables cost estimation.
	CostPerToken float64
}

// Invoke delegates to Inner and records the outcome on Sink.
func (c *InstrumentedClient) Invoke(ctx context.Context, modelID, prompt string) (*Completion, error) {
	start := time.Now()
	resp, err := c.Inner.Invoke(ctx, modelID, prompt)
	latency := time.Since(start)

	tokens := 0
	if resp != nil {
		tokens = resp.InputTokens + resp.OutputTokens
	}
	cost := float64(tokens) * c.CostPerToken

	if c.Sink != nil {
		c.Sink.RecordInvocation(modelID, latency, tokens, cost, err)
	}
	return resp, err
}

// ClassifyHTTPStatus maps an HTTP-style status code to a debate.FailureKind,
// used by concrete REST-backed Client implementations.
func ClassifyHTTPStatus(status int) debate.FailureKind {
	switch {
	case status == 401 || status == 403:
		return debate.FailureAuth
	case status == 429:
		return debate.FailureRateLimited
	case status == 400 || status == 422:
		return debate.FailureInvalidRequest
	case status == 402:
		return debate.FailureBudgetExhausted
	case status == 408 || status == 504:
		return debate.FailureTimeout
	case status >= 500:
		return debate.FailureUnavailable
	default:
		return debate.FailureTransient
	}
}
