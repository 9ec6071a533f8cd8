package llmclient

import (
	"context"
	"fmt"
)

// RoutingClient dispatches Invoke to a distinct underlying Client per model
// ID, letting a single resilience.Manager span a pool whose models live
// behind different provider endpoints. Grounded on the routingClient test
// double in internal/resilience/manager_test.go, promoted to a real
// production type since wiring the model pool to multiple providers needs
// exactly this dispatch.
type RoutingClient struct {
	byModel map[string]Client
}

// NewRoutingClient builds an empty RoutingClient; register per-model clients
// with Register.
func NewRoutingClient() *RoutingClient {
	return &RoutingClient{byModel: make(map[string]Client)}
}

// Register associates modelID with client, used for all future Invoke calls
// naming that model.
func (r *RoutingClient) Register(modelID string, client Client) {
	r.byModel[modelID] = client
}

// Invoke implements Client by dispatching to the registered client for
// modelID.
func (r *RoutingClient) Invoke(ctx context.Context, modelID, prompt string) (*Completion, error) {
	client, ok := r.byModel[modelID]
	if !ok {
		return nil, fmt.Errorf("no client registered for model %q", modelID)
	}
	return client.Invoke(ctx, modelID, prompt)
}
