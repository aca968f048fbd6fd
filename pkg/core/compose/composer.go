// Package compose renders final prompt text from a persona and request inputs,
// and computes the content-addressed fingerprint used as the cache key. Both
// operations are pure: identical inputs always produce identical output.
package compose

import (
	"encoding/json"
	"regexp"
	"strings"

	"agentic_signals/pkg/core/persona"
	"agentic_signals/pkg/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-z_]+)\s*\}\}`)

// Render substitutes the persona's declared placeholders into its strategy
// prompt. Unknown or missing placeholders render as empty string, never as an
// error — composition is total. The serialized analysis uses stable key
// ordering so identical content always renders identical text; the cache
// fingerprint depends on that.
func Render(p *persona.Persona, baseAnalysis map[string]interface{}, userPrompt, marketContext string) string {
	values := map[string]string{
		"risk_tolerance": string(p.RiskTolerance),
		"analysis_focus": strings.Join(p.AnalysisFocus, ", "),
		"user_prompt":    userPrompt,
		"market_context": marketContext,
		"base_analysis":  SerializeAnalysis(baseAnalysis),
	}

	return placeholderPattern.ReplaceAllStringFunc(p.StrategyPrompt, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		return values[key]
	})
}

// RenderRequest renders the prompt for an analysis request, deriving the base
// analysis mapping from the request's snapshot.
func RenderRequest(p *persona.Persona, req models.AnalysisRequest) string {
	return Render(p, SnapshotAnalysis(req.Snapshot), req.UserPrompt, req.MarketContext)
}

// SerializeAnalysis produces the deterministic text form of a base analysis
// mapping. encoding/json sorts map keys, which is exactly the stability we
// need; nested maps sort too.
func SerializeAnalysis(baseAnalysis map[string]interface{}) string {
	if len(baseAnalysis) == 0 {
		return ""
	}
	data, err := json.MarshalIndent(baseAnalysis, "", "  ")
	if err != nil {
		// Only unserializable values (channels, funcs) can land here; base
		// analyses are plain data, so treat it as absent rather than failing
		// composition.
		return ""
	}
	return string(data)
}

// SnapshotAnalysis flattens a financial snapshot into the base-analysis
// mapping the composer serializes into prompts.
func SnapshotAnalysis(s *models.FinancialSnapshot) map[string]interface{} {
	if s == nil {
		return nil
	}
	out := map[string]interface{}{
		"ticker":           s.Ticker,
		"snapshot_version": s.Version,
		"market_cap":       s.MarketCap,
	}
	if len(s.Metrics) > 0 {
		metrics := make(map[string]interface{}, len(s.Metrics))
		for k, v := range s.Metrics {
			metrics[k] = v
		}
		out["metrics"] = metrics
	}
	if len(s.LineItems) > 0 {
		items := make(map[string]interface{}, len(s.LineItems))
		for k, v := range s.LineItems {
			items[k] = v
		}
		out["line_items"] = items
	}
	return out
}
