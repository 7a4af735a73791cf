package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/faisalx96/saqal/internal/application/services"
	"github.com/faisalx96/saqal/internal/domain/models"
	"github.com/faisalx96/saqal/internal/refine"
)

type LineageHandler struct {
	lineageSvc *services.LineageService
	runSvc     *services.RunService
}

func NewLineageHandler(lineageSvc *services.LineageService, runSvc *services.RunService) *LineageHandler {
	return &LineageHandler{lineageSvc: lineageSvc, runSvc: runSvc}
}

func (h *LineageHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.lineageSvc.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if history == nil {
		history = []*models.PromptVersion{}
	}
	respondJSON(w, map[string]any{"versions": history}, http.StatusOK)
}

func (h *LineageHandler) Current(w http.ResponseWriter, r *http.Request) {
	version, err := h.lineageSvc.Current(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, version, http.StatusOK)
}

func (h *LineageHandler) Children(w http.ResponseWriter, r *http.Request) {
	children, err := h.lineageSvc.Children(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if children == nil {
		children = []*models.PromptVersion{}
	}
	respondJSON(w, map[string]any{"versions": children}, http.StatusOK)
}

func (h *LineageHandler) Frontier(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	if r.URL.Query().Get("history") != "" {
		limit := parseIntQuery(r, "limit", 100)
		entries, err := h.lineageSvc.FrontierHistory(r.Context(), sessionID, limit)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, map[string]any{"entries": entries}, http.StatusOK)
		return
	}

	entries, err := h.lineageSvc.Frontier(r.Context(), sessionID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []*models.FrontierEntry{}
	}
	respondJSON(w, map[string]any{"entries": entries}, http.StatusOK)
}

func (h *LineageHandler) AppendFrontier(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ranks []services.VersionRank `json:"ranks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.lineageSvc.AppendFrontier(r.Context(), chi.URLParam(r, "id"), req.Ranks); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LineageHandler) VersionResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.runSvc.ResultsForVersion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if results == nil {
		results = []*models.RunResult{}
	}
	respondJSON(w, map[string]any{"results": results}, http.StatusOK)
}

// FeedbackSummary reports the judgment counts for one version's batch.
func (h *LineageHandler) FeedbackSummary(w http.ResponseWriter, r *http.Request) {
	versionID := chi.URLParam(r, "id")

	results, err := h.runSvc.ResultsForVersion(r.Context(), versionID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	items, err := h.runSvc.FeedbackItems(r.Context(), versionID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	summary := refine.SummarizeFeedback(items)
	pending := 0
	failed := 0
	for _, res := range results {
		if res.Failed {
			failed++
			continue
		}
		if !res.Judged() {
			pending++
		}
	}

	respondJSON(w, map[string]any{
		"good":    summary.Good,
		"bad":     summary.Bad,
		"issues":  summary.Issues,
		"pending": pending,
		"failed":  failed,
		"total":   len(results),
	}, http.StatusOK)
}
