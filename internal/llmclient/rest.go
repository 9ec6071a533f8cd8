package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vasicdigital/debateforge/internal/debate"
)

// RESTClient is a generic JSON-over-HTTP Client implementation for wiring a
// real provider behind a simple {prompt, model} -> {text, tokens} contract.
// It intentionally uses net/http directly, matching the teacher's own
// RetryableHTTPClient (internal/llm/retry.go), rather than a provider SDK:
// the point of this type is to stay provider-agnostic at the wire level, a
// concern no single vendor SDK can serve.
type RESTClient struct {
	HTTPClient *http.Client
	Endpoint   string
	APIKey     string
}

// NewRESTClient builds a RESTClient with a sane default HTTP timeout.
func NewRESTClient(endpoint, apiKey string) *RESTClient {
	return &RESTClient{
		HTTPClient: &http.Client{Timeout: 90 * time.Second},
		Endpoint:   endpoint,
		APIKey:     apiKey,
	}
}

type restRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type restResponse struct {
	Text         string `json:"text"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	FinishReason string `json:"finish_reason"`
}

// Invoke implements Client.
func (c *RESTClient) Invoke(ctx context.Context, modelID, prompt string) (*Completion, error) {
	body, err := json.Marshal(restRequest{Model: modelID, Prompt: prompt})
	if err != nil {
		return nil, debate.NewClassifiedError(debate.FailureInvalidRequest, modelID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, debate.NewClassifiedError(debate.FailureInvalidRequest, modelID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, debate.NewClassifiedError(debate.FailureTimeout, modelID, err)
		}
		return nil, debate.NewClassifiedError(debate.FailureUnavailable, modelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		kind := ClassifyHTTPStatus(resp.StatusCode)
		return nil, debate.NewClassifiedError(kind, modelID, fmt.Errorf("http status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, debate.NewClassifiedError(debate.FailureTransient, modelID, err)
	}

	var parsed restResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, debate.NewClassifiedError(debate.FailureInvalidRequest, modelID, err)
	}

	return &Completion{
		Text:         parsed.Text,
		InputTokens:  parsed.InputTokens,
		OutputTokens: parsed.OutputTokens,
		Latency:      time.Since(start),
		FinishReason: parsed.FinishReason,
	}, nil
}
