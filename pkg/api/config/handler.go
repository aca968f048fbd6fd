// Package config exposes runtime provider configuration over HTTP.
package config

import (
	"encoding/json"
	"fmt"
	"net/http"

	"agentic_signals/pkg/core/llm"
)

// Response reports the current provider selection.
type Response struct {
	ActiveProvider string   `json:"active_provider"`
	Available      []string `json:"available"`
}

// SwitchRequest changes the global active provider.
type SwitchRequest struct {
	Provider string `json:"provider"`
}

// Handler holds dependencies for config endpoints.
type Handler struct {
	Manager *llm.Manager
}

// NewHandler creates a config handler.
func NewHandler(manager *llm.Manager) *Handler {
	return &Handler{Manager: manager}
}

// HandleConfig reports the active provider and the registered roster.
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	resp := Response{
		ActiveProvider: h.Manager.ActiveProvider(),
		Available:      []string{"gemini", "gemini-grounded", "deepseek"},
	}
	json.NewEncoder(w).Encode(resp)
}

// HandleSwitch changes the active provider at runtime.
func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req SwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Manager.SetActiveProvider(req.Provider); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fmt.Fprintf(w, "Success: Switched to %s", req.Provider)
}
