// Package optimizer searches for a better strategy prompt for one persona:
// bounded variant generation, scoring against historical labeled requests
// through the batch scheduler, and strictly-better promotion via a new
// persona version.
package optimizer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"agentic_signals/pkg/core/batch"
	"agentic_signals/pkg/core/persona"
	"agentic_signals/pkg/models"
)

// VariantReport records how one candidate prompt performed.
type VariantReport struct {
	Mutator     string  `json:"mutator"` // "base" for the incumbent
	CandidateID string  `json:"candidate_id,omitempty"`
	Prompt      string  `json:"prompt"`
	Score       float64 `json:"score"`
	Scored      int     `json:"scored"` // examples that produced a usable sample
	Failed      int     `json:"failed"`
	Distance    int     `json:"distance"` // edit distance from the base prompt
	Discarded   bool    `json:"discarded"`
}

// Report is the full outcome of one optimization run.
type Report struct {
	PersonaID  string          `json:"persona_id"`
	Base       VariantReport   `json:"base"`
	Variants   []VariantReport `json:"variants"`
	Winner     *VariantReport  `json:"winner,omitempty"`
	NewVersion int             `json:"new_version,omitempty"` // 0 when the base was retained
}

// Optimizer evaluates candidate prompts with the same scheduler the engine
// uses in production, so scoring inherits caching, retries, and failure
// isolation.
type Optimizer struct {
	personas    *persona.Store
	scheduler   *batch.Scheduler
	mutators    []Mutator
	scorer      Scorer
	concurrency int
}

// New wires an optimizer. A nil scorer defaults to hit rate; empty mutators
// default to the deterministic roster.
func New(personas *persona.Store, scheduler *batch.Scheduler, mutators []Mutator, scorer Scorer, concurrency int) *Optimizer {
	if scorer == nil {
		scorer = HitRateScorer{}
	}
	if len(mutators) == 0 {
		mutators = DefaultMutators()
	}
	if concurrency <= 0 {
		concurrency = batch.DefaultConcurrency
	}
	return &Optimizer{
		personas:    personas,
		scheduler:   scheduler,
		mutators:    mutators,
		scorer:      scorer,
		concurrency: concurrency,
	}
}

// Optimize scores the base prompt and every mutator's variant against the
// labeled examples. A variant wins only by scoring strictly higher than the
// base and every rival; score ties between variants break toward the smaller
// edit distance from the base. Winning emits a new persona version; the base
// prompt itself is never mutated.
func (o *Optimizer) Optimize(ctx context.Context, personaID string, examples []LabeledExample) (*Report, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("optimization needs labeled examples")
	}
	base, err := o.personas.Get(personaID)
	if err != nil {
		return nil, fmt.Errorf("persona %s: %w", personaID, err)
	}

	report := &Report{PersonaID: personaID}

	baseEval, err := o.evaluate(ctx, base.ID, examples)
	if err != nil {
		return nil, fmt.Errorf("scoring base prompt: %w", err)
	}
	baseEval.Mutator = "base"
	baseEval.Prompt = base.StrategyPrompt
	report.Base = baseEval

	for i, m := range o.mutators {
		prompt, err := m.Mutate(ctx, base)
		if err != nil {
			fmt.Printf("[WARNING] Mutator %s failed: %v\n", m.Name(), err)
			continue
		}
		if prompt == base.StrategyPrompt {
			continue
		}

		candidateID, err := o.registerCandidate(base, i, prompt)
		if err != nil {
			fmt.Printf("[WARNING] Could not register candidate for %s: %v\n", m.Name(), err)
			continue
		}

		eval, err := o.evaluate(ctx, candidateID, examples)
		if archiveErr := o.personas.Archive(candidateID); archiveErr != nil {
			fmt.Printf("[WARNING] Failed to archive candidate %s: %v\n", candidateID, archiveErr)
		}
		if err != nil {
			fmt.Printf("[WARNING] Scoring variant %s failed: %v\n", m.Name(), err)
			continue
		}

		eval.Mutator = m.Name()
		eval.CandidateID = candidateID
		eval.Prompt = prompt
		eval.Distance = levenshtein(prompt, base.StrategyPrompt)
		eval.Discarded = eval.Scored == 0
		report.Variants = append(report.Variants, eval)
	}

	winner := pickWinner(report.Base, report.Variants)
	if winner == nil {
		return report, nil
	}
	report.Winner = winner

	updated, err := o.personas.UpdatePrompt(base.ID, winner.Prompt)
	if err != nil {
		return nil, fmt.Errorf("promoting winning prompt: %w", err)
	}
	report.NewVersion = updated.Version
	return report, nil
}

// registerCandidate places a temporary persona in the store so the scheduler
// can resolve it. Candidates are archived as soon as scoring finishes; the id
// carries a random suffix because archived candidates stay registered, and a
// later run against the same persona must not collide with them.
func (o *Optimizer) registerCandidate(base *persona.Persona, index int, prompt string) (string, error) {
	candidate := &persona.Persona{
		ID:             fmt.Sprintf("%s__candidate_%d_%s", base.ID, index, uuid.NewString()[:8]),
		Name:           base.Name + " (candidate)",
		BaseStrategy:   base.BaseStrategy,
		StrategyPrompt: prompt,
		AnalysisFocus:  append([]string(nil), base.AnalysisFocus...),
		RiskTolerance:  base.RiskTolerance,
	}
	return o.personas.Register(candidate)
}

// evaluate runs the examples through the scheduler under the given persona id
// and scores the successful subset. Partial failure is tolerated; only a
// fully failed run yields a zero-sample (discarded) evaluation.
func (o *Optimizer) evaluate(ctx context.Context, personaID string, examples []LabeledExample) (VariantReport, error) {
	reqs := make([]models.AnalysisRequest, len(examples))
	for i, ex := range examples {
		req := ex.Request
		req.PersonaID = personaID
		reqs[i] = req
	}

	job, err := o.scheduler.Submit(ctx, reqs, o.concurrency)
	if err != nil {
		return VariantReport{}, err
	}
	outcomes, err := o.scheduler.Await(ctx, job)
	if err != nil {
		return VariantReport{}, err
	}

	var samples []Sample
	failed := 0
	for i, outcome := range outcomes {
		if outcome.Status != batch.StatusDone || outcome.Result == nil {
			failed++
			continue
		}
		samples = append(samples, Sample{Example: examples[i], Result: *outcome.Result})
	}

	return VariantReport{
		Score:  o.scorer.Score(samples),
		Scored: len(samples),
		Failed: failed,
	}, nil
}

// pickWinner applies the promotion rule.
func pickWinner(base VariantReport, variants []VariantReport) *VariantReport {
	var best *VariantReport
	for i := range variants {
		v := &variants[i]
		if v.Discarded {
			continue
		}
		if v.Score <= base.Score {
			continue
		}
		switch {
		case best == nil:
			best = v
		case v.Score > best.Score:
			best = v
		case v.Score == best.Score && v.Distance < best.Distance:
			best = v
		}
	}
	return best
}
