// Package analysis executes one persona analysis end to end: persona lookup,
// snapshot resolution, prompt composition, inference, and result shaping.
package analysis

import (
	"context"
	"fmt"
	"time"

	"agentic_signals/pkg/core/compose"
	"agentic_signals/pkg/core/data"
	"agentic_signals/pkg/core/llm"
	"agentic_signals/pkg/core/persona"
	"agentic_signals/pkg/core/utils"
	"agentic_signals/pkg/models"
)

const systemPrompt = `You are a financial analyst agent. Analyze the provided company data strictly through the lens of the investment strategy you are given. Respond with JSON only, using this schema:
{"signal": "bullish" | "bearish" | "neutral", "confidence": <number between 0 and 1>, "reasoning": "<your reasoning in plain markdown>"}`

// agentOutput is the schema every persona analysis must come back in.
type agentOutput struct {
	Signal     string  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Engine runs single analyses. The Batch Scheduler fans out over it; the
// Debate Coordinator uses it for opening stances.
type Engine struct {
	personas  *persona.Store
	client    *llm.Client
	snapshots data.SnapshotProvider
}

// NewEngine wires an engine. snapshots may be nil when every request carries
// its snapshot inline.
func NewEngine(personas *persona.Store, client *llm.Client, snapshots data.SnapshotProvider) *Engine {
	return &Engine{personas: personas, client: client, snapshots: snapshots}
}

// Fingerprint resolves the cache key for a request: the request's identity
// fields plus the current content hash of its persona. Callers must resolve
// the snapshot first (ResolveRequest); a version-less request would otherwise
// collide with every other version of the same ticker.
func (e *Engine) Fingerprint(req models.AnalysisRequest) (string, error) {
	p, err := e.personas.Get(req.PersonaID)
	if err != nil {
		return "", err
	}
	return compose.Fingerprint(req, p.ContentHash), nil
}

// ResolveRequest completes a request's snapshot fields: a missing payload is
// fetched from the provider and an empty version is filled from the payload.
// After resolution the request's identity is stable, so fingerprints computed
// from it agree with the results the analysis produces.
func (e *Engine) ResolveRequest(ctx context.Context, req models.AnalysisRequest) (models.AnalysisRequest, error) {
	if req.Snapshot == nil && e.snapshots != nil {
		snapshot, err := e.snapshots.GetSnapshot(ctx, req.Ticker, time.Now())
		if err != nil {
			return req, fmt.Errorf("snapshot for %s: %w", req.Ticker, err)
		}
		req.Snapshot = snapshot
	}
	if req.Snapshot != nil && req.SnapshotVersion == "" {
		req.SnapshotVersion = req.Snapshot.Version
	}
	return req, nil
}

// Analyze runs one request through composition and inference. Errors carry an
// llm failure kind where inference is at fault; persona and data errors pass
// through typed for errors.Is checks.
func (e *Engine) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	p, err := e.personas.Get(req.PersonaID)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("persona %s: %w", req.PersonaID, err)
	}

	req, err = e.ResolveRequest(ctx, req)
	if err != nil {
		return models.AnalysisResult{}, err
	}

	prompt := compose.RenderRequest(p, req)

	var out agentOutput
	if err := e.client.Complete(ctx, prompt, systemPrompt, &out); err != nil {
		return models.AnalysisResult{}, err
	}

	signal := models.Signal(out.Signal)
	if !models.ValidSignal(signal) {
		return models.AnalysisResult{}, &llm.InferenceError{
			Kind: llm.KindSchemaMismatch,
			Err:  fmt.Errorf("model returned unknown signal %q", out.Signal),
		}
	}

	return models.AnalysisResult{
		RequestFingerprint: compose.Fingerprint(req, p.ContentHash),
		Signal:             signal,
		Confidence:         models.ClampConfidence(out.Confidence),
		Reasoning:          utils.CleanReasoning(out.Reasoning),
		ComputedAt:         time.Now(),
	}, nil
}
