package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agentic_signals/pkg/core/analysis"
	"agentic_signals/pkg/core/batch"
	"agentic_signals/pkg/core/cache"
	"agentic_signals/pkg/core/llm"
	"agentic_signals/pkg/core/persona"
	"agentic_signals/pkg/models"
)

// gatedProvider blocks every call until released, so a test can hold a batch
// in flight past the lifetime of the HTTP request that submitted it.
type gatedProvider struct {
	release <-chan struct{}
}

func (p *gatedProvider) GenerateResponse(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
	select {
	case <-p.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return `{"signal":"bullish","confidence":0.8,"reasoning":"ok"}`, nil
}

func testHandler(t *testing.T, provider llm.Provider) (*Handler, *batch.Scheduler) {
	t.Helper()
	store := persona.NewStore()
	if err := persona.RegisterBuiltin(store); err != nil {
		t.Fatalf("Failed to register builtin personas: %v", err)
	}
	manager := llm.NewManager(llm.Config{ActiveProvider: "mock"})
	manager.RegisterProvider("mock", provider)
	engine := analysis.NewEngine(store, llm.NewClient(manager, "scheduler"), nil)
	scheduler := batch.NewScheduler(engine, cache.New(nil), time.Hour)
	return NewHandler(scheduler), scheduler
}

func TestSubmitDetachesFromRequestContext(t *testing.T) {
	release := make(chan struct{})
	h, scheduler := testHandler(t, &gatedProvider{release: release})

	body := SubmitRequest{Requests: []models.AnalysisRequest{{
		Ticker:          "AAPL",
		PersonaID:       "deep-value",
		SnapshotVersion: "2024-Q4-v1",
		Snapshot: &models.FinancialSnapshot{
			Ticker:  "AAPL",
			Version: "2024-Q4-v1",
			Metrics: map[string]float64{"return_on_equity": 0.3},
		},
	}}}
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/submit", bytes.NewReader(payload)).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.HandleSubmit(rec, req)
	// The server cancels the request context the moment the handler returns.
	cancel()

	if rec.Code != http.StatusOK {
		t.Fatalf("Submit returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp SubmitResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	job, ok := scheduler.JobByID(resp.JobID)
	if !ok {
		t.Fatal("Submitted job should resolve by id")
	}

	close(release)
	outcomes, err := scheduler.Await(context.Background(), job)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if outcomes[0].Status != batch.StatusDone {
		t.Fatalf("Batch must outlive the submitting request, got %+v", outcomes[0])
	}
}

func TestSubmitRejectsEmptyBatch(t *testing.T) {
	h, _ := testHandler(t, &gatedProvider{release: make(chan struct{})})

	req := httptest.NewRequest(http.MethodPost, "/api/analyze/submit", bytes.NewReader([]byte(`{"requests":[]}`)))
	rec := httptest.NewRecorder()
	h.HandleSubmit(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Empty batch should be rejected, got %d", rec.Code)
	}
}
