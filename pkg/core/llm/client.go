package llm

import (
	"context"
	"errors"
	"fmt"

	"agentic_signals/pkg/core/utils"
)

// Client is the structured-output inference client: it prompts a provider in
// JSON mode and parses the answer into the caller's schema. Parse failure is a
// schema mismatch and is never retried.
type Client struct {
	manager   *Manager
	component string
}

// NewClient binds a client to one engine component so per-component provider
// overrides apply.
func NewClient(manager *Manager, component string) *Client {
	return &Client{manager: manager, component: component}
}

// Complete sends the prompt and unmarshals the structured answer into out.
// Failures carry a FailureKind: transient kinds may be retried by the caller,
// schema mismatches must not be.
func (c *Client) Complete(ctx context.Context, prompt, systemPrompt string, out interface{}) error {
	provider := c.manager.ProviderFor(c.component)

	options := map[string]interface{}{OptJSONMode: true}
	if cc, ok := c.manager.config.Components[c.component]; ok && cc.Model != "" {
		options[OptModel] = cc.Model
	}

	raw, err := provider.GenerateResponse(ctx, prompt, systemPrompt, options)
	if err != nil {
		var ie *InferenceError
		if errors.As(err, &ie) {
			return ie
		}
		return classify(err)
	}

	if err := utils.SmartParse(raw, out); err != nil {
		return &InferenceError{Kind: KindSchemaMismatch, Err: fmt.Errorf("model output did not match schema: %w", err)}
	}
	return nil
}

// CompleteText sends the prompt and returns the raw text answer. Used where
// no schema applies (market context, report prose).
func (c *Client) CompleteText(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
	provider := c.manager.ProviderFor(c.component)
	raw, err := provider.GenerateResponse(ctx, prompt, systemPrompt, options)
	if err != nil {
		var ie *InferenceError
		if errors.As(err, &ie) {
			return "", ie
		}
		return "", classify(err)
	}
	return raw, nil
}
