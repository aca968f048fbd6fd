// Package models holds the shared value types exchanged between the engine's
// core packages: signals, financial snapshots, analysis requests and results.
package models

import (
	"time"
)

// Signal is the closed set of directional conclusions an agent can produce.
type Signal string

const (
	SignalBullish Signal = "bullish"
	SignalBearish Signal = "bearish"
	SignalNeutral Signal = "neutral"
)

// ValidSignal reports whether s is one of the recognized signal values.
func ValidSignal(s Signal) bool {
	switch s {
	case SignalBullish, SignalBearish, SignalNeutral:
		return true
	}
	return false
}

// Direction maps a signal onto the numeric axis used for disagreement and
// consensus math: bullish=+1, neutral=0, bearish=-1.
func (s Signal) Direction() float64 {
	switch s {
	case SignalBullish:
		return 1
	case SignalBearish:
		return -1
	default:
		return 0
	}
}

// FinancialSnapshot is the externally supplied structured data for one ticker
// as of a given time. The engine treats it as immutable input; only Version
// participates in request identity.
type FinancialSnapshot struct {
	Ticker    string             `json:"ticker"`
	Version   string             `json:"version"` // e.g. "2024-Q4-v1" or an accession-style id
	AsOf      time.Time          `json:"as_of"`
	Metrics   map[string]float64 `json:"metrics"`    // return_on_equity, debt_to_equity, revenue_growth, earnings_growth, ...
	LineItems map[string]float64 `json:"line_items"` // revenue, net_income, total_assets, total_debt, free_cash_flow, ...
	MarketCap float64            `json:"market_cap"`
}

// AnalysisRequest identifies one unit of analysis work. Two requests with
// identical fields are interchangeable for caching purposes.
type AnalysisRequest struct {
	Ticker          string `json:"ticker"`
	PersonaID       string `json:"persona_id"`
	SnapshotVersion string `json:"snapshot_version"`
	UserPrompt      string `json:"user_prompt"`
	MarketContext   string `json:"market_context"`

	// Snapshot carries the payload the composer renders into the prompt.
	// It is not part of request identity; SnapshotVersion is.
	Snapshot *FinancialSnapshot `json:"-"`
}

// AnalysisResult is the structured outcome of one analysis.
type AnalysisResult struct {
	RequestFingerprint string    `json:"request_fingerprint"`
	Signal             Signal    `json:"signal"`
	Confidence         float64   `json:"confidence"` // [0,1]
	Reasoning          string    `json:"reasoning"`
	ComputedAt         time.Time `json:"computed_at"`
}

// ClampConfidence normalizes a model-reported confidence into [0,1].
// Models occasionally answer on a 0-100 scale despite instructions.
func ClampConfidence(c float64) float64 {
	if c > 1 {
		c = c / 100
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
