// Package llm wraps the language-model backends behind a small Provider
// interface and a structured-output Client. Everything downstream (scheduler
// workers, debate rounds, optimizer scoring) talks to models through here.
package llm

import (
	"context"
)

// Provider is the interface for all LLM backends.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
}

// Option keys recognized by providers. Unknown keys are ignored.
const (
	OptModel        = "model"         // string: override the configured model
	OptJSONMode     = "json_mode"     // bool: request application/json output
	OptGoogleSearch = "google_search" // bool: enable search grounding (Gemini only)
)
