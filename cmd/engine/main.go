// The engine command runs a batch of persona analyses from the terminal,
// optionally followed by a debate over the divergent results. With -simulate
// it uses a scripted provider and touches no external backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"agentic_signals/pkg/core/analysis"
	"agentic_signals/pkg/core/batch"
	"agentic_signals/pkg/core/cache"
	"agentic_signals/pkg/core/data"
	coredebate "agentic_signals/pkg/core/debate"
	"agentic_signals/pkg/core/llm"
	"agentic_signals/pkg/core/persona"
	"agentic_signals/pkg/models"
)

func main() {
	tickers := flag.String("tickers", "", "comma-separated tickers to analyze (required)")
	personaIDs := flag.String("personas", "", "comma-separated persona ids (default: all registered)")
	userPrompt := flag.String("prompt", "", "optional user prompt appended to every request")
	fixtures := flag.String("fixtures", "fixtures", "directory of snapshot fixture files")
	concurrency := flag.Int("concurrency", batch.DefaultConcurrency, "max concurrent analyses")
	runDebate := flag.Bool("debate", false, "debate the results after the batch")
	simulate := flag.Bool("simulate", false, "use the scripted provider instead of a live backend")
	flag.Parse()

	if *tickers == "" {
		fmt.Println("Usage: engine -tickers AAPL,MSFT [-personas deep-value,contrarian] [-debate] [-simulate]")
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil && !*simulate {
		fmt.Println("[WARNING] .env file not found, assuming environment variables are set.")
	}

	manager := llm.NewManager(llm.Config{})
	if *simulate {
		manager.RegisterProvider("mock", llm.NewMockProvider(
			llm.MockStep{Response: `{"signal":"bullish","confidence":0.7,"reasoning":"Simulated analysis."}`},
		))
		if err := manager.SetActiveProvider("mock"); err != nil {
			fmt.Printf("[FATAL] %v\n", err)
			os.Exit(1)
		}
	}

	personas := persona.NewStore()
	if err := persona.RegisterBuiltin(personas); err != nil {
		fmt.Printf("[FATAL] Failed to register personas: %v\n", err)
		os.Exit(1)
	}

	ids := splitList(*personaIDs)
	if len(ids) == 0 {
		for _, p := range personas.List() {
			ids = append(ids, p.ID)
		}
	}

	var snapshots data.SnapshotProvider = data.NewFixtureProvider(*fixtures)
	if *simulate {
		snapshots = simulatedSnapshots(splitList(*tickers))
	}

	engine := analysis.NewEngine(personas, llm.NewClient(manager, "scheduler"), snapshots)
	scheduler := batch.NewScheduler(engine, cache.New(nil), time.Hour)

	var reqs []models.AnalysisRequest
	for _, ticker := range splitList(*tickers) {
		for _, id := range ids {
			reqs = append(reqs, models.AnalysisRequest{
				Ticker:     strings.ToUpper(ticker),
				PersonaID:  id,
				UserPrompt: *userPrompt,
			})
		}
	}

	ctx := context.Background()
	job, err := scheduler.Submit(ctx, reqs, *concurrency)
	if err != nil {
		fmt.Printf("[FATAL] Submit failed: %v\n", err)
		os.Exit(1)
	}
	outcomes, err := scheduler.Await(ctx, job)
	if err != nil {
		fmt.Printf("[FATAL] Await failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nBatch %s finished: %d requests\n", job.ID, len(outcomes))
	for _, o := range outcomes {
		if o.Status == batch.StatusDone {
			fmt.Printf("  %-6s %-18s %s (%.0f%%)\n", o.Request.Ticker, o.Request.PersonaID, o.Result.Signal, o.Result.Confidence*100)
		} else {
			fmt.Printf("  %-6s %-18s %s: %s\n", o.Request.Ticker, o.Request.PersonaID, o.Status, o.Error)
		}
	}

	if *runDebate {
		debateResults(ctx, engine, llm.NewClient(manager, "debate"), outcomes)
	}
}

// debateResults runs one debate per ticker whose personas disagree.
func debateResults(ctx context.Context, engine *analysis.Engine, client *llm.Client, outcomes []batch.Outcome) {
	byTicker := map[string][]models.AnalysisRequest{}
	for _, o := range outcomes {
		if o.Status == batch.StatusDone {
			byTicker[o.Request.Ticker] = append(byTicker[o.Request.Ticker], o.Request)
		}
	}

	for ticker, reqs := range byTicker {
		if len(reqs) < 2 {
			continue
		}
		c := coredebate.NewCoordinator(fmt.Sprintf("cli-%s", ticker), ticker, reqs, engine, client, nil, coredebate.DefaultConfig())
		verdict, err := c.Run(ctx)
		if err != nil {
			fmt.Printf("[WARNING] Debate for %s failed: %v\n", ticker, err)
			continue
		}
		fmt.Printf("\nVerdict for %s: %s (%.0f%%, %s)\n  %s\n", ticker, verdict.Signal, verdict.Confidence*100, verdict.Method, verdict.Rationale)
	}
}

// simulatedSnapshots fabricates a plausible snapshot per ticker so -simulate
// needs no fixture files.
func simulatedSnapshots(tickers []string) data.SnapshotProvider {
	snapshots := make(map[string]*models.FinancialSnapshot, len(tickers))
	for _, ticker := range tickers {
		upper := strings.ToUpper(ticker)
		snapshots[upper] = &models.FinancialSnapshot{
			Ticker:  upper,
			Version: "sim-v1",
			AsOf:    time.Now(),
			Metrics: map[string]float64{
				"return_on_equity": 0.21,
				"debt_to_equity":   0.9,
				"revenue_growth":   0.08,
				"earnings_growth":  0.11,
			},
			LineItems: map[string]float64{
				"revenue":        1_000_000_000,
				"net_income":     120_000_000,
				"total_assets":   2_400_000_000,
				"total_debt":     600_000_000,
				"free_cash_flow": 150_000_000,
			},
			MarketCap: 3_000_000_000,
		}
	}
	return &data.StaticProvider{Snapshots: snapshots}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
