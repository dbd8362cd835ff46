package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/xela07ax/agentflow-prototype/internal/console/service"

	"github.com/go-chi/chi/v5"
)

type AgentHandler struct {
	service *service.AgentService
}

func NewAgentHandler(s *service.AgentService) *AgentHandler {
	return &AgentHandler{service: s}
}

// Suspend мгновенно блокирует агента (Kill-switch)
// POST /v1/agents/{id}/suspend
func (h *AgentHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	if agentID == "" {
		http.Error(w, "agent id is required", http.StatusBadRequest)
		return
	}

	// Ждем завершения и БД, и Redis, чтобы гарантировать безопасность
	if err := h.service.SuspendAgent(r.Context(), agentID); err != nil {
		log.Printf("failed to suspend agent %s: %v", agentID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Resume возвращает агента в работу
// POST /v1/agents/{id}/resume
func (h *AgentHandler) Resume(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	if agentID == "" {
		http.Error(w, "agent id is required", http.StatusBadRequest)
		return
	}

	if err := h.service.ResumeAgent(r.Context(), agentID); err != nil {
		log.Printf("failed to resume agent %s: %v", agentID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetSandbox переводит агента в режим песочницы и обратно
// POST /v1/agents/{id}/sandbox {"enabled": true}
func (h *AgentHandler) SetSandbox(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	if agentID == "" {
		http.Error(w, "agent id is required", http.StatusBadRequest)
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := h.service.SetSandboxMode(r.Context(), agentID, req.Enabled); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
