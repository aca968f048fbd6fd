// Package analyze exposes batch submission and polling over HTTP.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"agentic_signals/pkg/core/batch"
	"agentic_signals/pkg/models"
)

// SubmitRequest is the batch submission body.
type SubmitRequest struct {
	Requests       []models.AnalysisRequest    `json:"requests"`
	Snapshots      []*models.FinancialSnapshot `json:"snapshots,omitempty"`
	MaxConcurrency int                         `json:"max_concurrency"`
}

// SubmitResponse returns the job handle.
type SubmitResponse struct {
	JobID string `json:"job_id"`
}

// PollResponse is a snapshot of a running or finished batch.
type PollResponse struct {
	JobID    string          `json:"job_id"`
	Finished bool            `json:"finished"`
	Outcomes []batch.Outcome `json:"outcomes"`
}

// Handler holds dependencies for analysis endpoints.
type Handler struct {
	Scheduler *batch.Scheduler
}

// NewHandler creates an analyze handler.
func NewHandler(scheduler *batch.Scheduler) *Handler {
	return &Handler{Scheduler: scheduler}
}

// HandleSubmit starts a batch in the background and returns its job id.
// Inline snapshots are matched to requests by ticker.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if len(req.Requests) == 0 {
		http.Error(w, "requests must not be empty", http.StatusBadRequest)
		return
	}

	byTicker := make(map[string]*models.FinancialSnapshot, len(req.Snapshots))
	for _, s := range req.Snapshots {
		byTicker[s.Ticker] = s
	}
	for i := range req.Requests {
		if req.Requests[i].Snapshot == nil {
			if s, ok := byTicker[req.Requests[i].Ticker]; ok {
				req.Requests[i].Snapshot = s
				if req.Requests[i].SnapshotVersion == "" {
					req.Requests[i].SnapshotVersion = s.Version
				}
			}
		}
	}

	// The batch outlives this request and is polled by job id, so it must not
	// inherit r.Context(): net/http cancels that the moment this handler
	// returns, which would cancel every request still waiting on a worker.
	job, err := h.Scheduler.Submit(context.Background(), req.Requests, req.MaxConcurrency)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to submit batch: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SubmitResponse{JobID: job.ID})
}

// HandlePoll returns the current outcome snapshot for ?job_id=.
func (h *Handler) HandlePoll(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		http.Error(w, "job_id is required", http.StatusBadRequest)
		return
	}
	job, ok := h.Scheduler.JobByID(jobID)
	if !ok {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PollResponse{
		JobID:    job.ID,
		Finished: job.Finished(),
		Outcomes: h.Scheduler.Poll(job),
	})
}

// HandleCancel stops dispatching new work for the job named in the body.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.JobID == "" {
		http.Error(w, "job_id is required", http.StatusBadRequest)
		return
	}

	job, ok := h.Scheduler.JobByID(body.JobID)
	if !ok {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	h.Scheduler.Cancel(job)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelling"})
}
