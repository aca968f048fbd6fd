// Package debate reconciles disagreeing persona analyses through a bounded
// structured debate: opening stances, rebuttal rounds, and a synthesized
// verdict with a deterministic fallback.
package debate

import (
	"time"

	"agentic_signals/pkg/models"
)

// State is the debate session lifecycle. Transitions run strictly forward;
// sessions that agree up front skip straight from DisagreementCheck to
// Concluded.
type State string

const (
	StateCollecting        State = "collecting"
	StateDisagreementCheck State = "disagreement_check"
	StateDebating          State = "debating"
	StateSynthesizing      State = "synthesizing"
	StateConcluded         State = "concluded"
	StateFailed            State = "failed"
)

// Stance is one persona's current position in the debate.
type Stance struct {
	PersonaID  string        `json:"persona_id"`
	Signal     models.Signal `json:"signal"`
	Confidence float64       `json:"confidence"`
	Reasoning  string        `json:"reasoning"`
}

// Rebuttal is one persona's structured response to the previous round.
type Rebuttal struct {
	PersonaID  string        `json:"persona_id"`
	Signal     models.Signal `json:"signal"`
	Confidence float64       `json:"confidence"`
	Text       string        `json:"text"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Round groups the rebuttals of one debate iteration.
type Round struct {
	Index     int        `json:"index"`
	Rebuttals []Rebuttal `json:"rebuttals"`
}

// VerdictMethod records how the verdict was produced.
type VerdictMethod string

const (
	// MethodSynthesis means the synthesizer call succeeded.
	MethodSynthesis VerdictMethod = "synthesis"
	// MethodWeightedMajority means synthesis failed and the verdict fell
	// back to the pre-debate confidence-weighted majority.
	MethodWeightedMajority VerdictMethod = "weighted_majority"
)

// Verdict is the session's final reconciled conclusion.
type Verdict struct {
	Signal      models.Signal `json:"signal"`
	Confidence  float64       `json:"confidence"`
	Rationale   string        `json:"rationale"`
	Method      VerdictMethod `json:"method"`
	ConcludedAt time.Time     `json:"concluded_at"`
}

// Message is one entry in the streamed debate transcript.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Round     int       `json:"round"`
	PersonaID string    `json:"persona_id"` // "moderator" for state transitions
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Config bounds a debate session.
type Config struct {
	// DisagreementThreshold is compared against the confidence-weighted
	// spread of stance directions; above it the session debates.
	DisagreementThreshold float64 `yaml:"disagreement_threshold"`
	// MaxRounds caps rebuttal rounds regardless of convergence.
	MaxRounds int `yaml:"max_rounds"`
}

// DefaultConfig mirrors the values config/models.yaml ships with.
func DefaultConfig() Config {
	return Config{DisagreementThreshold: 0.6, MaxRounds: 3}
}

// disagreementScore is the confidence-weighted spread of stance directions:
// the distance between the most bullish and most bearish weighted positions.
// Opposed high-conviction stances approach 2; unanimous neutral scores 0.
func disagreementScore(stances []Stance) float64 {
	if len(stances) < 2 {
		return 0
	}
	min, max := 0.0, 0.0
	for i, s := range stances {
		w := s.Signal.Direction() * s.Confidence
		if i == 0 {
			min, max = w, w
			continue
		}
		if w < min {
			min = w
		}
		if w > max {
			max = w
		}
	}
	return max - min
}

// weightedMajority is the deterministic fallback verdict: sum confidence per
// signal, highest total wins. An exact bullish/bearish tie collapses to
// neutral so the fallback never invents conviction.
func weightedMajority(stances []Stance) (models.Signal, float64) {
	totals := map[models.Signal]float64{}
	var sum float64
	for _, s := range stances {
		totals[s.Signal] += s.Confidence
		sum += s.Confidence
	}
	if sum == 0 {
		return models.SignalNeutral, 0
	}

	bull := totals[models.SignalBullish]
	bear := totals[models.SignalBearish]
	neut := totals[models.SignalNeutral]

	best, bestTotal := models.SignalNeutral, neut
	if bear > bestTotal {
		best, bestTotal = models.SignalBearish, bear
	}
	if bull > bestTotal {
		best, bestTotal = models.SignalBullish, bull
	}
	if bull == bear && best != models.SignalNeutral {
		return models.SignalNeutral, neut / sum
	}
	return best, bestTotal / sum
}
