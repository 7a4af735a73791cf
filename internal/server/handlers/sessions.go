package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/faisalx96/saqal/internal/application/services"
	"github.com/faisalx96/saqal/internal/domain/models"
)

type SessionHandler struct {
	sessionSvc *services.SessionService
}

func NewSessionHandler(sessionSvc *services.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var params services.CreateSessionParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, version, err := h.sessionSvc.CreateSession(r.Context(), params)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, map[string]any{
		"session": session,
		"version": version,
	}, http.StatusCreated)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	sessions, err := h.sessionSvc.ListSessions(r.Context(), status, limit, offset)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}

	respondJSON(w, map[string]any{"sessions": sessions}, http.StatusOK)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionSvc.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, session, http.StatusOK)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionSvc.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionSvc.ArchiveSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) AddInput(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req struct {
		Content     string   `json:"content"`
		GroundTruth string   `json:"ground_truth"`
		Metadata    string   `json:"metadata"`
		Contents    []string `json:"contents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// bulk form
	if len(req.Contents) > 0 {
		inputs, err := h.sessionSvc.AddInputs(r.Context(), sessionID, req.Contents)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, map[string]any{"inputs": inputs}, http.StatusCreated)
		return
	}

	input, err := h.sessionSvc.AddInput(r.Context(), sessionID, req.Content, req.GroundTruth, req.Metadata)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, input, http.StatusCreated)
}

func (h *SessionHandler) ListInputs(w http.ResponseWriter, r *http.Request) {
	inputs, err := h.sessionSvc.GetInputs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if inputs == nil {
		inputs = []*models.Input{}
	}
	respondJSON(w, map[string]any{"inputs": inputs}, http.StatusOK)
}

func (h *SessionHandler) DeleteInput(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionSvc.DeleteInput(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
