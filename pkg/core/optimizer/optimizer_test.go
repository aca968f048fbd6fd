package optimizer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"agentic_signals/pkg/core/analysis"
	"agentic_signals/pkg/core/batch"
	"agentic_signals/pkg/core/cache"
	"agentic_signals/pkg/core/llm"
	"agentic_signals/pkg/core/persona"
	"agentic_signals/pkg/models"
)

// promptFunc answers based on the rendered prompt content, which keeps the
// scripted behavior deterministic under any scheduling order.
type promptFunc func(prompt string) (string, error)

func (f promptFunc) GenerateResponse(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
	return f(prompt)
}

type namedMutator struct {
	name   string
	suffix string
}

func (m namedMutator) Name() string { return m.name }
func (m namedMutator) Mutate(ctx context.Context, base *persona.Persona) (string, error) {
	return base.StrategyPrompt + "\n\n" + m.suffix, nil
}

func fixture(t *testing.T, provider llm.Provider, mutators []Mutator, scorer Scorer) (*Optimizer, *persona.Store) {
	t.Helper()
	store := persona.NewStore()
	if err := persona.RegisterBuiltin(store); err != nil {
		t.Fatalf("Failed to register builtin personas: %v", err)
	}
	manager := llm.NewManager(llm.Config{ActiveProvider: "mock"})
	manager.RegisterProvider("mock", provider)
	engine := analysis.NewEngine(store, llm.NewClient(manager, "scheduler"), nil)
	scheduler := batch.NewScheduler(engine, cache.New(nil), time.Hour)
	return New(store, scheduler, mutators, scorer, 1), store
}

func labeled(ticker string, actual models.Signal) LabeledExample {
	return LabeledExample{
		Request: models.AnalysisRequest{
			Ticker:          ticker,
			SnapshotVersion: "2023-FY-v1",
			Snapshot: &models.FinancialSnapshot{
				Ticker:  ticker,
				Version: "2023-FY-v1",
				Metrics: map[string]float64{"revenue_growth": 0.1},
			},
		},
		Actual: actual,
	}
}

const bearishAnswer = `{"signal":"bearish","confidence":0.8,"reasoning":"Labeled outcome."}`
const bullishAnswer = `{"signal":"bullish","confidence":0.8,"reasoning":"Default answer."}`

func TestOptimizePromotesStrictlyBetterVariant(t *testing.T) {
	provider := promptFunc(func(prompt string) (string, error) {
		if strings.Contains(prompt, "MARKER_IMPROVED") {
			return bearishAnswer, nil
		}
		return bullishAnswer, nil
	})
	opt, store := fixture(t, provider, []Mutator{
		namedMutator{name: "improver", suffix: "MARKER_IMPROVED"},
	}, nil)

	examples := []LabeledExample{
		labeled("AAA", models.SignalBearish),
		labeled("BBB", models.SignalBearish),
	}

	report, err := opt.Optimize(context.Background(), "deep-value", examples)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if report.Base.Score != 0 {
		t.Errorf("Base should score 0, got %.2f", report.Base.Score)
	}
	if report.Winner == nil {
		t.Fatal("Expected a winning variant")
	}
	if report.Winner.Mutator != "improver" || report.Winner.Score != 1 {
		t.Errorf("Unexpected winner: %+v", report.Winner)
	}
	if report.NewVersion != 2 {
		t.Errorf("Winner should emit persona version 2, got %d", report.NewVersion)
	}

	// The store's current persona carries the winning prompt; the candidate
	// scaffolding is archived away.
	p, err := store.Get("deep-value")
	if err != nil {
		t.Fatalf("Get after promotion failed: %v", err)
	}
	if !strings.Contains(p.StrategyPrompt, "MARKER_IMPROVED") {
		t.Error("Promoted persona should carry the winning prompt")
	}
	if report.Winner.CandidateID == "" {
		t.Fatal("Winner should record its candidate id")
	}
	candidate, err := store.Get(report.Winner.CandidateID)
	if err != nil {
		t.Fatalf("Candidate should stay resolvable for cache validity: %v", err)
	}
	if !candidate.Archived {
		t.Error("Candidate persona should be archived after scoring")
	}
}

func TestOptimizeCanRunRepeatedly(t *testing.T) {
	provider := promptFunc(func(prompt string) (string, error) {
		if strings.Contains(prompt, "MARKER_IMPROVED") {
			return bearishAnswer, nil
		}
		return bullishAnswer, nil
	})
	opt, store := fixture(t, provider, []Mutator{
		namedMutator{name: "improver", suffix: "MARKER_IMPROVED"},
	}, nil)

	examples := []LabeledExample{labeled("AAA", models.SignalBearish)}

	first, err := opt.Optimize(context.Background(), "deep-value", examples)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if first.Winner == nil {
		t.Fatal("First run should promote the improved variant")
	}

	// Archived candidates from the first run stay registered; a second run
	// must still be able to place its own candidates.
	second, err := opt.Optimize(context.Background(), "deep-value", examples)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if len(second.Variants) != 1 {
		t.Fatalf("Second run should evaluate its variant, got %d", len(second.Variants))
	}
	if second.Variants[0].CandidateID == first.Winner.CandidateID {
		t.Error("Runs must not reuse candidate ids")
	}
	// The promoted prompt already carries the marker, so the second run's
	// variant ties the base and must not promote again.
	if second.Winner != nil {
		t.Errorf("Tie with the improved base must not promote, got %+v", second.Winner)
	}

	p, _ := store.Get("deep-value")
	if p.Version != 2 {
		t.Errorf("Persona should remain at version 2 after the no-op run, got %d", p.Version)
	}
}

func TestOptimizeKeepsBaseWhenNoVariantIsStrictlyBetter(t *testing.T) {
	// Everyone answers bearish, so every candidate ties the base at 1.0.
	provider := promptFunc(func(prompt string) (string, error) {
		return bearishAnswer, nil
	})
	opt, store := fixture(t, provider, []Mutator{
		namedMutator{name: "noop-ish", suffix: "MARKER_TIE"},
	}, nil)

	report, err := opt.Optimize(context.Background(), "deep-value", []LabeledExample{
		labeled("AAA", models.SignalBearish),
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if report.Winner != nil {
		t.Errorf("A tie with the base must not promote, got winner %+v", report.Winner)
	}
	if report.NewVersion != 0 {
		t.Errorf("No promotion should mean no new version, got %d", report.NewVersion)
	}

	p, _ := store.Get("deep-value")
	if p.Version != 1 {
		t.Errorf("Base persona should remain at version 1, got %d", p.Version)
	}
}

func TestOptimizeTieBreaksOnEditDistance(t *testing.T) {
	provider := promptFunc(func(prompt string) (string, error) {
		if strings.Contains(prompt, "MARKER") {
			return bearishAnswer, nil
		}
		return bullishAnswer, nil
	})
	opt, _ := fixture(t, provider, []Mutator{
		namedMutator{name: "verbose", suffix: "MARKER plus a long tail of additional instruction text"},
		namedMutator{name: "minimal", suffix: "MARKER"},
	}, nil)

	report, err := opt.Optimize(context.Background(), "deep-value", []LabeledExample{
		labeled("AAA", models.SignalBearish),
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if report.Winner == nil {
		t.Fatal("Expected a winner")
	}
	if report.Winner.Mutator != "minimal" {
		t.Errorf("Score tie should break to the smaller edit distance, got %s", report.Winner.Mutator)
	}
}

func TestOptimizeToleratesPartialScoringFailure(t *testing.T) {
	provider := promptFunc(func(prompt string) (string, error) {
		if strings.Contains(prompt, "FAILTICKER") {
			return "", &llm.InferenceError{Kind: llm.KindUnavailable, Err: fmt.Errorf("backend down")}
		}
		if strings.Contains(prompt, "MARKER") {
			return bearishAnswer, nil
		}
		return bullishAnswer, nil
	})
	opt, _ := fixture(t, provider, []Mutator{
		namedMutator{name: "improver", suffix: "MARKER"},
	}, nil)

	examples := []LabeledExample{
		labeled("AAA", models.SignalBearish),
		labeled("FAILTICKER", models.SignalBearish),
		labeled("CCC", models.SignalBearish),
	}

	report, err := opt.Optimize(context.Background(), "deep-value", examples)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if report.Winner == nil {
		t.Fatal("Variant should still win on the successful subset")
	}
	if report.Winner.Scored != 2 || report.Winner.Failed != 1 {
		t.Errorf("Expected 2 scored / 1 failed, got %d / %d", report.Winner.Scored, report.Winner.Failed)
	}
}

func TestOptimizeDiscardsFullyFailedVariant(t *testing.T) {
	provider := promptFunc(func(prompt string) (string, error) {
		if strings.Contains(prompt, "MARKER_BROKEN") {
			return "", &llm.InferenceError{Kind: llm.KindUnavailable, Err: fmt.Errorf("backend down")}
		}
		return bearishAnswer, nil
	})
	opt, _ := fixture(t, provider, []Mutator{
		namedMutator{name: "broken", suffix: "MARKER_BROKEN"},
	}, nil)

	report, err := opt.Optimize(context.Background(), "deep-value", []LabeledExample{
		labeled("AAA", models.SignalBearish),
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if len(report.Variants) != 1 || !report.Variants[0].Discarded {
		t.Errorf("Fully failed variant should be discarded: %+v", report.Variants)
	}
	if report.Winner != nil {
		t.Error("A discarded variant must not win")
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"prompt", "prompt", 0},
		{"flaw", "lawn", 2},
	}
	for _, c := range cases {
		if got := levenshtein(c.a, c.b); got != c.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestScorers(t *testing.T) {
	samples := []Sample{
		{Example: LabeledExample{Actual: models.SignalBullish}, Result: models.AnalysisResult{Signal: models.SignalBullish, Confidence: 0.9}},
		{Example: LabeledExample{Actual: models.SignalBearish}, Result: models.AnalysisResult{Signal: models.SignalBullish, Confidence: 0.8}},
	}

	if got := (HitRateScorer{}).Score(samples); got != 0.5 {
		t.Errorf("HitRateScorer = %.2f, want 0.50", got)
	}
	if got := (HitRateScorer{}).Score(nil); got != 0 {
		t.Errorf("Empty samples should score 0, got %.2f", got)
	}

	blend := BlendScorer{AccuracyWeight: 0.7, CalibrationWeight: 0.3}
	// accuracy 0.5, calibration (0.9 + 0.2)/2 = 0.55 → 0.7*0.5 + 0.3*0.55 = 0.515
	got := blend.Score(samples)
	if got < 0.514 || got > 0.516 {
		t.Errorf("BlendScorer = %.4f, want ~0.515", got)
	}
}
