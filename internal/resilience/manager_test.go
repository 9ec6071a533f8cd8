package resilience

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasicdigital/debateforge/internal/llmclient"
)

func TestManagerInvokeSucceedsOnFirstAttempt(t *testing.T) {
	mock := llmclient.NewMockClient(&llmclient.Completion{Text: "answer"})
	mgr := NewManager(mock, DefaultBreakerConfig(), DefaultRetryConfig())

	resp, err := mgr.Invoke(context.Background(), "model-a", "debater_A", "prompt", NewBudget(4))
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.Text)
	assert.Equal(t, 1, mock.Count())
}

func TestManagerFallsBackToSecondaryAfterExhaustion(t *testing.T) {
	primary := llmclient.NewMockClient(nil)
	primary.Err = assertError("primary down")

	mgr := NewManager(primary, DefaultBreakerConfig(), RetryConfig{
		MaxAttempts: 1,
		BaseDelay:   0,
		CapDelay:    0,
	})

	// The manager's single Client serves both primary and fallback calls in
	// this simplified harness: it dispatches by model ID so the fallback
	// branch (a distinct breaker) is exercised end to end.
	secondary := llmclient.NewMockClient(&llmclient.Completion{Text: "fallback-answer"})
	mgr.Client = &routingClient{primary: primary, secondaryID: "model-b", secondary: secondary}
	mgr.SetFallback("model-a", "model-b")

	resp, err := mgr.Invoke(context.Background(), "model-a", "debater_A", "prompt", NewBudget(0))
	require.NoError(t, err)
	assert.Equal(t, "fallback-answer", resp.Text)
}

func TestManagerIsOpenForRoleReflectsBreakerTable(t *testing.T) {
	mock := llmclient.NewMockClient(&llmclient.Completion{Text: "x"})
	mgr := NewManager(mock, DefaultBreakerConfig(), DefaultRetryConfig())
	assert.False(t, mgr.IsOpenForRole("model-a", "debater_A"))

	breaker := mgr.Breakers.Get(BreakerKey{ModelID: "model-a", Family: "debater_A"})
	for i := 0; i < DefaultBreakerConfig().Window; i++ {
		breaker.Allow()
		breaker.RecordResult(false)
	}
	assert.True(t, mgr.IsOpenForRole("model-a", "debater_A"))
}

// routingClient dispatches to primary or secondary by modelID, letting a
// single Manager exercise a real fallback path in tests without a second
// Manager instance.
type routingClient struct {
	primary     llmclient.Client
	secondaryID string
	secondary   llmclient.Client
}

func (r *routingClient) Invoke(ctx context.Context, modelID, prompt string) (*llmclient.Completion, error) {
	if modelID == r.secondaryID {
		return r.secondary.Invoke(ctx, modelID, prompt)
	}
	return r.primary.Invoke(ctx, modelID, prompt)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func assertError(msg string) error { return assertErr(msg) }
