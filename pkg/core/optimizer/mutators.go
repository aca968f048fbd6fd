package optimizer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"agentic_signals/pkg/core/llm"
	"agentic_signals/pkg/core/persona"
)

// Mutator derives one candidate strategy prompt from a base persona. The base
// is never modified; mutators return new prompt text.
type Mutator interface {
	Name() string
	Mutate(ctx context.Context, base *persona.Persona) (string, error)
}

// RiskEmphasisMutator sharpens the prompt's risk framing around the persona's
// declared tolerance.
type RiskEmphasisMutator struct{}

func (RiskEmphasisMutator) Name() string { return "risk_emphasis" }

func (RiskEmphasisMutator) Mutate(ctx context.Context, base *persona.Persona) (string, error) {
	var emphasis string
	switch base.RiskTolerance {
	case persona.RiskVeryConservative, persona.RiskConservative:
		emphasis = "Weigh downside scenarios first: before any bullish conclusion, state what would have to go wrong and how likely that is."
	case persona.RiskHigh:
		emphasis = "Do not let short-term volatility dilute conviction: if the thesis holds, say so with full confidence."
	default:
		emphasis = "Balance upside and downside explicitly: state the single strongest argument against your own conclusion."
	}
	return base.StrategyPrompt + "\n\n" + emphasis, nil
}

// SectorContextMutator adds sector-relative framing.
type SectorContextMutator struct {
	Sector string
}

func (SectorContextMutator) Name() string { return "sector_context" }

func (m SectorContextMutator) Mutate(ctx context.Context, base *persona.Persona) (string, error) {
	sector := m.Sector
	if sector == "" {
		sector = "its sector peers"
	}
	line := fmt.Sprintf("Judge every metric relative to %s rather than in isolation; a ratio that looks weak in absolute terms may be best-in-class for the industry.", sector)
	return base.StrategyPrompt + "\n\n" + line, nil
}

// TimingContextMutator adds an explicit investment-horizon frame.
type TimingContextMutator struct {
	Horizon string
}

func (TimingContextMutator) Name() string { return "timing_context" }

func (m TimingContextMutator) Mutate(ctx context.Context, base *persona.Persona) (string, error) {
	horizon := m.Horizon
	if horizon == "" {
		horizon = "a 12-month holding period"
	}
	line := fmt.Sprintf("Anchor the conclusion to %s: a thesis that only works over a decade or only for a week is a neutral, not a signal.", horizon)
	return base.StrategyPrompt + "\n\n" + line, nil
}

// RewriteMutator asks a model to rewrite the prompt wholesale. The rewrite
// must preserve every placeholder the base prompt uses; a rewrite that drops
// one is rejected rather than silently breaking composition.
type RewriteMutator struct {
	Client *llm.Client
}

func (RewriteMutator) Name() string { return "llm_rewrite" }

const rewriteSystemPrompt = `You are a prompt engineer improving an investment-analysis prompt. Rewrite it to be clearer and more decisive while preserving the investment philosophy. Keep every {{placeholder}} token exactly as written. Return only the rewritten prompt text, no commentary.`

var placeholderTokens = regexp.MustCompile(`\{\{\s*[a-z_]+\s*\}\}`)

func (m RewriteMutator) Mutate(ctx context.Context, base *persona.Persona) (string, error) {
	rewritten, err := m.Client.CompleteText(ctx, base.StrategyPrompt, rewriteSystemPrompt, nil)
	if err != nil {
		return "", fmt.Errorf("rewrite failed: %w", err)
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return "", fmt.Errorf("rewrite produced empty prompt")
	}

	for _, token := range placeholderTokens.FindAllString(base.StrategyPrompt, -1) {
		if !strings.Contains(rewritten, token) {
			return "", fmt.Errorf("rewrite dropped placeholder %s", token)
		}
	}
	return rewritten, nil
}

// DefaultMutators is the deterministic roster; callers append a RewriteMutator
// when an inference client is available.
func DefaultMutators() []Mutator {
	return []Mutator{
		RiskEmphasisMutator{},
		SectorContextMutator{},
		TimingContextMutator{},
	}
}
