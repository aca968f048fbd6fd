// Package debate exposes debate sessions over HTTP, including an SSE
// transcript stream.
package debate

import (
	"encoding/json"
	"fmt"
	"net/http"

	coredebate "agentic_signals/pkg/core/debate"
	"agentic_signals/pkg/models"
)

// StartRequest launches a debate over one ticker with the named personas.
type StartRequest struct {
	Ticker        string                    `json:"ticker"`
	PersonaIDs    []string                  `json:"persona_ids"`
	UserPrompt    string                    `json:"user_prompt"`
	MarketContext string                    `json:"market_context"`
	Snapshot      *models.FinancialSnapshot `json:"snapshot,omitempty"`
}

// StartResponse returns the session handle.
type StartResponse struct {
	SessionID string `json:"session_id"`
}

// StatusResponse is a point-in-time view of a session.
type StatusResponse struct {
	SessionID string              `json:"session_id"`
	State     coredebate.State    `json:"state"`
	Rounds    []coredebate.Round  `json:"rounds"`
	Stances   []coredebate.Stance `json:"stances"`
	Verdict   *coredebate.Verdict `json:"verdict,omitempty"`
}

// Handler holds dependencies for debate endpoints.
type Handler struct {
	Manager *coredebate.Manager
}

// NewHandler creates a debate handler.
func NewHandler(manager *coredebate.Manager) *Handler {
	return &Handler{Manager: manager}
}

// HandleStart launches a background debate session.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
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

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Ticker == "" || len(req.PersonaIDs) < 2 {
		http.Error(w, "ticker and at least 2 persona_ids are required", http.StatusBadRequest)
		return
	}

	reqs := make([]models.AnalysisRequest, len(req.PersonaIDs))
	for i, id := range req.PersonaIDs {
		reqs[i] = models.AnalysisRequest{
			Ticker:        req.Ticker,
			PersonaID:     id,
			UserPrompt:    req.UserPrompt,
			MarketContext: req.MarketContext,
			Snapshot:      req.Snapshot,
		}
		if req.Snapshot != nil {
			reqs[i].SnapshotVersion = req.Snapshot.Version
		}
	}

	id, err := h.Manager.Start(req.Ticker, reqs)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to start debate: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StartResponse{SessionID: id})
}

// HandleStatus reports the state, stances, rounds and verdict for ?id=.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	session, ok := h.Manager.Get(id)
	if !ok {
		http.Error(w, "Debate not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatusResponse{
		SessionID: session.ID,
		State:     session.State(),
		Rounds:    session.Rounds(),
		Stances:   session.Stances(),
		Verdict:   session.Verdict(),
	})
}

// HandleActive lists sessions that have not concluded.
func (h *Handler) HandleActive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"active": h.Manager.Active()})
}

// HandleStream streams the session transcript as SSE events for ?id=.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	id := r.URL.Query().Get("id")
	session, exists := h.Manager.Get(id)
	if !exists {
		http.Error(w, "Debate not found", http.StatusNotFound)
		return
	}

	ch, history := session.Subscribe()
	defer session.Unsubscribe(ch)

	sendEvent := func(msg coredebate.Message) {
		data, _ := json.Marshal(msg)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	concluded := fmt.Sprintf("state: %s", coredebate.StateConcluded)

	// Replay first: a client connecting mid-debate (or after conclusion)
	// sees the whole transcript. Subscribe snapshots the history and
	// registers the channel under one lock, so nothing is missed or doubled.
	for _, msg := range history {
		sendEvent(msg)
		if msg.Content == concluded {
			return
		}
	}

	for {
		select {
		case msg, open := <-ch:
			if !open {
				return
			}
			sendEvent(msg)
			if msg.Content == concluded {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// HandleTranscript returns the full message history for ?id=, falling back to
// the persisted transcript for sessions that have already aged out of memory.
func (h *Handler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	transcript, err := h.Manager.Transcript(r.Context(), id)
	if err != nil {
		http.Error(w, "Debate not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"session_id": id, "messages": transcript})
}
