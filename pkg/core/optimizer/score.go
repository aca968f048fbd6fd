package optimizer

import (
	"math"

	"agentic_signals/pkg/models"
)

// LabeledExample is one historical request with its known outcome.
type LabeledExample struct {
	Request models.AnalysisRequest `json:"request"`
	Actual  models.Signal          `json:"actual"`
}

// Sample pairs a labeled example with the result a candidate prompt produced
// for it. Only successful analyses become samples.
type Sample struct {
	Example LabeledExample
	Result  models.AnalysisResult
}

// Scorer maps a candidate's samples to a single comparable score in [0,1].
type Scorer interface {
	Score(samples []Sample) float64
}

// HitRateScorer is the default: the fraction of samples whose signal matched
// the labeled outcome.
type HitRateScorer struct{}

func (HitRateScorer) Score(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	hits := 0
	for _, s := range samples {
		if s.Result.Signal == s.Example.Actual {
			hits++
		}
	}
	return float64(hits) / float64(len(samples))
}

// BlendScorer mixes accuracy with confidence calibration: a correct call
// scores its confidence, a wrong call scores the confidence it withheld.
// Rewards prompts that are both right and sure of it.
type BlendScorer struct {
	AccuracyWeight    float64
	CalibrationWeight float64
}

func (s BlendScorer) Score(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	wa, wc := s.AccuracyWeight, s.CalibrationWeight
	if wa+wc == 0 {
		wa, wc = 0.7, 0.3
	}

	var hits, calibration float64
	for _, sm := range samples {
		if sm.Result.Signal == sm.Example.Actual {
			hits++
			calibration += sm.Result.Confidence
		} else {
			calibration += 1 - sm.Result.Confidence
		}
	}
	n := float64(len(samples))
	score := (wa*(hits/n) + wc*(calibration/n)) / (wa + wc)
	return math.Min(1, math.Max(0, score))
}
