package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"agentic_signals/pkg/api/analyze"
	apiconfig "agentic_signals/pkg/api/config"
	apidebate "agentic_signals/pkg/api/debate"
	apipersona "agentic_signals/pkg/api/persona"
	"agentic_signals/pkg/core/analysis"
	"agentic_signals/pkg/core/batch"
	"agentic_signals/pkg/core/cache"
	"agentic_signals/pkg/core/data"
	coredebate "agentic_signals/pkg/core/debate"
	"agentic_signals/pkg/core/llm"
	"agentic_signals/pkg/core/persona"
	"agentic_signals/pkg/core/store"
)

// engineConfig is the config/models.yaml layout: provider selection plus
// engine tuning knobs.
type engineConfig struct {
	LLM    llm.Config        `yaml:"llm"`
	Debate coredebate.Config `yaml:"debate"`
	Cache  struct {
		TTLHours int    `yaml:"ttl_hours"`
		FileDir  string `yaml:"file_dir"`
	} `yaml:"cache"`
}

func main() {
	godotenv.Load()

	cfg := loadConfig("config/models.yaml")

	manager := llm.NewManager(cfg.LLM)

	// Persona roster: builtins plus config/personas.yaml overrides.
	personas := persona.NewStore()
	if err := persona.RegisterBuiltin(personas); err != nil {
		fmt.Printf("[FATAL] Failed to register builtin personas: %v\n", err)
		os.Exit(1)
	}
	if _, err := persona.LoadFromFile(personas, "config/personas.yaml"); err != nil {
		fmt.Printf("[WARNING] Failed to load persona templates: %v\n", err)
		fmt.Println("  Continuing with builtin personas only")
	}
	fmt.Printf("[PERSONA] %d personas registered\n", personas.Count())

	// Hybrid cache: Postgres when DATABASE_URL is set, file fallback otherwise.
	var backing cache.BackingStore
	ctx := context.Background()
	if err := store.InitDB(ctx); err != nil {
		fmt.Printf("[WARNING] Database unavailable (%v), using file cache\n", err)
		backing = cache.NewFileStore(cfg.Cache.FileDir)
	} else {
		pg := cache.NewPostgresStore(store.GetPool())
		if err := pg.EnsureSchema(ctx); err != nil {
			fmt.Printf("[WARNING] Cache schema check failed: %v\n", err)
		}
		backing = pg
	}
	ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	analysisCache := cache.New(backing)

	snapshots := data.NewFixtureProvider("fixtures")
	engine := analysis.NewEngine(personas, llm.NewClient(manager, "scheduler"), snapshots)
	scheduler := batch.NewScheduler(engine, analysisCache, ttl)

	// Debate manager, persisted when the database is up.
	var repo *coredebate.Repo
	if store.GetPool() != nil {
		repo = coredebate.NewRepo(store.GetPool())
		if err := repo.EnsureSchema(ctx); err != nil {
			fmt.Printf("[WARNING] Debate schema check failed: %v\n", err)
		}
	}
	debates := coredebate.NewManager(engine, llm.NewClient(manager, "debate"), repo, cfg.Debate)

	// Config endpoints
	configHandler := apiconfig.NewHandler(manager)
	http.HandleFunc("/api/config", configHandler.HandleConfig)
	http.HandleFunc("/api/config/switch", configHandler.HandleSwitch)

	// Persona endpoints
	personaHandler := apipersona.NewHandler(personas)
	http.HandleFunc("/api/personas", personaHandler.HandleList)
	http.HandleFunc("/api/personas/register", personaHandler.HandleRegister)
	http.HandleFunc("/api/personas/get", personaHandler.HandleGet)

	// Batch analysis endpoints
	analyzeHandler := analyze.NewHandler(scheduler)
	http.HandleFunc("/api/analyze/submit", analyzeHandler.HandleSubmit)
	http.HandleFunc("/api/analyze/poll", analyzeHandler.HandlePoll)
	http.HandleFunc("/api/analyze/cancel", analyzeHandler.HandleCancel)

	// Debate endpoints
	debateHandler := apidebate.NewHandler(debates)
	http.HandleFunc("/api/debate/start", debateHandler.HandleStart)
	http.HandleFunc("/api/debate/status", debateHandler.HandleStatus)
	http.HandleFunc("/api/debate/active", debateHandler.HandleActive)
	http.HandleFunc("/api/debate/stream", debateHandler.HandleStream)
	http.HandleFunc("/api/debate/transcript", debateHandler.HandleTranscript)

	fmt.Println("API server starting on :8080...")
	fmt.Println("  - GET  /api/config")
	fmt.Println("  - POST /api/config/switch")
	fmt.Println("  - GET  /api/personas")
	fmt.Println("  - POST /api/personas/register")
	fmt.Println("  - POST /api/analyze/submit")
	fmt.Println("  - GET  /api/analyze/poll")
	fmt.Println("  - POST /api/analyze/cancel")
	fmt.Println("  - POST /api/debate/start")
	fmt.Println("  - GET  /api/debate/status")
	fmt.Println("  - GET  /api/debate/stream  (SSE streaming)")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		fmt.Printf("[FATAL] Server failed to start: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) engineConfig {
	var cfg engineConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("[WARNING] Could not read %s: %v (using defaults)\n", path, err)
		cfg.Debate = coredebate.DefaultConfig()
		return cfg
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		fmt.Printf("[WARNING] Could not parse %s: %v (using defaults)\n", path, err)
		cfg.Debate = coredebate.DefaultConfig()
	}
	if cfg.Debate.MaxRounds == 0 {
		cfg.Debate = coredebate.DefaultConfig()
	}
	return cfg
}
