package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/vasicdigital/debateforge/internal/debate"
)

// RetryConfig configures the exponential-backoff-with-full-jitter schedule:
// base 500ms, factor 2, cap 8s, max 4 attempts per logical call.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	CapDelay    time.Duration
}

// DefaultRetryConfig returns the built-in backoff schedule defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 4, BaseDelay: 500 * time.Millisecond, CapDelay: 8 * time.Second}
}

// Backoff returns the full-jitter delay before the given attempt (1-indexed:
// attempt 1 is the first retry, i.e. the delay after the initial failure).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	raw := float64(c.BaseDelay) * math.Pow(2, float64(attempt-1))
	if raw > float64(c.CapDelay) {
		raw = float64(c.CapDelay)
	}
	return time.Duration(rand.Float64() * raw) // #nosec G404 -- jitter, not security sensitive
}

// Budget is the per-session cumulative retry-count ledger, guarded by a
// short critical section so readers observe a consistent snapshot.
// Exhausting it escalates the next failure to fatal without further
// retries.
type Budget struct {
	mu        sync.Mutex
	remaining int
}

// NewBudget constructs a ledger with the given total retry allowance.
func NewBudget(total int) *Budget {
	return &Budget{remaining: total}
}

// TryConsume attempts to spend one retry from the budget; reports whether
// it succeeded.
func (b *Budget) TryConsume() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Remaining reports the current balance.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// Invoker is the function signature the resilience layer wraps: a single
// attempt at calling a model, returning a debate.ClassifiedError on
// failure.
type Invoker func(ctx context.Context) (Result, error)

// Result is the payload returned by a successful invocation, kept generic
// so resilience does not depend on llmclient's concrete Completion type.
type Result struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
	FinishReason string
}

// Execute runs fn under the retry policy and breaker, falling back to
// fallbackFn (if non-nil) whenever the loop ends without success: retries
// exhausted, a non-retryable failure, a breaker denial, or an exhausted
// budget. It consumes budget for every retry attempted. It never retries AUTH or
// INVALID_REQUEST failures.
func Execute(ctx context.Context, breaker *Breaker, retryCfg RetryConfig, budget *Budget, fn Invoker, fallbackFn Invoker) (Result, error) {
	var lastErr error

	for attempt := 1; attempt <= retryCfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		allowed, denyKind := breaker.Allow()
		if !allowed {
			lastErr = debate.NewClassifiedError(denyKind, "", errBreakerOpen)
			break
		}

		result, err := fn(ctx)
		if err == nil {
			breaker.RecordResult(true)
			return result, nil
		}

		breaker.RecordResult(false)
		lastErr = err

		kind := classify(err)
		if !kind.Retryable() {
			break
		}
		if attempt >= retryCfg.MaxAttempts {
			break
		}
		if budget != nil && !budget.TryConsume() {
			// Retry budget exhausted: escalate immediately, no further
			// retries.
			break
		}

		delay := retryCfg.Backoff(attempt)
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	if fallbackFn != nil {
		if result, err := fallbackFn(ctx); err == nil {
			return result, nil
		}
	}

	return Result{}, lastErr
}

func classify(err error) debate.FailureKind {
	var ce *debate.ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return debate.FailureTransient
}

type retryError string

func (e retryError) Error() string { return string(e) }

const errBreakerOpen = retryError("circuit breaker open")
