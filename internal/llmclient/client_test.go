package llmclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasicdigital/debateforge/internal/debate"
)

type recordingSink struct {
	calls []struct {
		modelID string
		err     error
	}
}

func (r *recordingSink) RecordInvocation(modelID string, latency time.Duration, tokens int, cost float64, err error) {
	r.calls = append(r.calls, struct {
		modelID string
		err     error
	}{modelID, err})
}

func TestInstrumentedClientRecordsSuccessAndFailure(t *testing.T) {
	mock := NewMockClient(&Completion{Text: "hi", InputTokens: 10, OutputTokens: 5})
	sink := &recordingSink{}
	client := &InstrumentedClient{Inner: mock, Sink: sink, CostPerToken: 0.001}

	resp, err := client.Invoke(context.Background(), "model-a", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Text)
	require.Len(t, sink.calls, 1)
	assert.Equal(t, "model-a", sink.calls[0].modelID)
	assert.NoError(t, sink.calls[0].err)

	mock.Err = errors.New("boom")
	_, err = client.Invoke(context.Background(), "model-a", "prompt")
	assert.Error(t, err)
	require.Len(t, sink.calls, 2)
	assert.Error(t, sink.calls[1].err)
}

func TestFailNTimesThenSucceeds(t *testing.T) {
	fn := FailNTimes(2, debate.FailureTimeout, &Completion{Text: "ok"})
	_, err := fn(context.Background(), "m", "p")
	assert.Error(t, err)
	_, err = fn(context.Background(), "m", "p")
	assert.Error(t, err)
	resp, err := fn(context.Background(), "m", "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
}

func TestClassifyHTTPStatus(t *testing.T) {
	assert.Equal(t, debate.FailureAuth, ClassifyHTTPStatus(401))
	assert.Equal(t, debate.FailureRateLimited, ClassifyHTTPStatus(429))
	assert.Equal(t, debate.FailureUnavailable, ClassifyHTTPStatus(503))
	assert.Equal(t, debate.FailureInvalidRequest, ClassifyHTTPStatus(400))
}

func TestMockClientRespectsContextCancellation(t *testing.T) {
	mock := &MockClient{Delay: 50 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := mock.Invoke(ctx, "m", "p")
	assert.Error(t, err)
}
