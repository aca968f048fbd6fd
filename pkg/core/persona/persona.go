// Package persona defines agent personas: named, versioned configurations
// describing an analysis strategy's prompt, focus and risk posture. Personas
// are data, not code — one engine runs any number of them.
package persona

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// RiskTolerance is the recognized risk posture scale, ordered from most to
// least conservative.
type RiskTolerance string

const (
	RiskVeryConservative RiskTolerance = "very_conservative"
	RiskConservative     RiskTolerance = "conservative"
	RiskModerate         RiskTolerance = "moderate"
	RiskModerateGrowth   RiskTolerance = "moderate_growth"
	RiskHigh             RiskTolerance = "high"
)

// ValidRiskTolerance reports whether r is a recognized value.
func ValidRiskTolerance(r RiskTolerance) bool {
	switch r {
	case RiskVeryConservative, RiskConservative, RiskModerate, RiskModerateGrowth, RiskHigh:
		return true
	}
	return false
}

// Persona is an immutable versioned agent configuration. Updating the strategy
// text mints a new version with a fresh content hash rather than mutating in
// place, so cached results stay valid for the version they were computed
// against.
type Persona struct {
	ID             string        `json:"id" yaml:"id"`
	Name           string        `json:"name" yaml:"name"`
	BaseStrategy   string        `json:"base_strategy" yaml:"base_strategy"`
	StrategyPrompt string        `json:"strategy_prompt" yaml:"strategy_prompt"`
	AnalysisFocus  []string      `json:"analysis_focus" yaml:"analysis_focus"`
	RiskTolerance  RiskTolerance `json:"risk_tolerance" yaml:"risk_tolerance"`
	Version        int           `json:"version" yaml:"-"`
	ContentHash    string        `json:"content_hash" yaml:"-"`
	Archived       bool          `json:"archived" yaml:"-"`
}

// ValidationError reports a rejected persona registration or update.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("persona validation failed: %s: %s", e.Field, e.Reason)
}

// Validate checks the fields the store refuses to accept.
func (p *Persona) Validate() error {
	if strings.TrimSpace(p.StrategyPrompt) == "" {
		return &ValidationError{Field: "strategy_prompt", Reason: "must not be empty"}
	}
	if !ValidRiskTolerance(p.RiskTolerance) {
		return &ValidationError{Field: "risk_tolerance", Reason: fmt.Sprintf("unrecognized value %q", p.RiskTolerance)}
	}
	return nil
}

// Hash computes the content hash over every field that affects prompt
// composition. The hash feeds the request fingerprint, so any semantic change
// to a persona changes the fingerprints of analyses made with it.
func (p *Persona) Hash() string {
	h := sha256.New()
	writeField(h, p.ID)
	writeField(h, p.Name)
	writeField(h, p.BaseStrategy)
	writeField(h, p.StrategyPrompt)
	writeField(h, string(p.RiskTolerance))
	writeField(h, fmt.Sprintf("%d", p.Version))
	for _, focus := range p.AnalysisFocus {
		writeField(h, focus)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// writeField length-prefixes each field so adjacent fields cannot collide
// ("ab","c" vs "a","bc").
func writeField(h interface{ Write([]byte) (int, error) }, s string) {
	fmt.Fprintf(h, "%d:", len(s))
	h.Write([]byte(s))
}

// clone returns a deep copy so callers can never mutate stored state.
func (p *Persona) clone() *Persona {
	cp := *p
	cp.AnalysisFocus = append([]string(nil), p.AnalysisFocus...)
	return &cp
}
