package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/faisalx96/saqal/internal/application/services"
	"github.com/faisalx96/saqal/internal/domain/models"
	"github.com/faisalx96/saqal/internal/refine"
)

type WorkflowHandler struct {
	workflowSvc *services.WorkflowService
	runSvc      *services.RunService
}

func NewWorkflowHandler(workflowSvc *services.WorkflowService, runSvc *services.RunService) *WorkflowHandler {
	return &WorkflowHandler{workflowSvc: workflowSvc, runSvc: runSvc}
}

func (h *WorkflowHandler) BeginReview(w http.ResponseWriter, r *http.Request) {
	results, err := h.workflowSvc.BeginReview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, map[string]any{"results": results}, http.StatusOK)
}

func (h *WorkflowHandler) BeginAdapt(w http.ResponseWriter, r *http.Request) {
	proposal, err := h.workflowSvc.BeginAdapt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, proposal, http.StatusOK)
}

func (h *WorkflowHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	proposal, err := h.workflowSvc.PendingProposal(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, proposal, http.StatusOK)
}

func (h *WorkflowHandler) GetProposalDiff(w http.ResponseWriter, r *http.Request) {
	lines, err := h.workflowSvc.ProposalDiff(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, map[string]any{
		"lines":   lines,
		"stats":   refine.Stats(lines),
		"unified": refine.RenderUnified(lines),
	}, http.StatusOK)
}

func (h *WorkflowHandler) Accept(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req struct {
		EditedPrompt string `json:"edited_prompt"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	var (
		version *models.PromptVersion
		run     *services.ComparisonRun
		err     error
	)
	if req.EditedPrompt != "" {
		version, run, err = h.workflowSvc.AcceptEdited(r.Context(), sessionID, req.EditedPrompt)
	} else {
		version, run, err = h.workflowSvc.Accept(r.Context(), sessionID)
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, map[string]any{
		"version":    version,
		"comparison": run,
	}, http.StatusOK)
}

func (h *WorkflowHandler) Reject(w http.ResponseWriter, r *http.Request) {
	version, err := h.workflowSvc.Reject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, version, http.StatusOK)
}

func (h *WorkflowHandler) KeepNew(w http.ResponseWriter, r *http.Request) {
	results, err := h.workflowSvc.KeepNew(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, map[string]any{"results": results}, http.StatusOK)
}

func (h *WorkflowHandler) Revert(w http.ResponseWriter, r *http.Request) {
	version, results, err := h.workflowSvc.Revert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, map[string]any{
		"version": version,
		"results": results,
	}, http.StatusOK)
}

func (h *WorkflowHandler) Finish(w http.ResponseWriter, r *http.Request) {
	if err := h.workflowSvc.Finish(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WorkflowHandler) SetFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Verdict    string `json:"verdict"`
		Reason     string `json:"reason"`
		Correction string `json:"correction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.runSvc.SetFeedback(r.Context(), chi.URLParam(r, "id"), req.Verdict, req.Reason, req.Correction)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, result, http.StatusOK)
}

func (h *WorkflowHandler) SetComparison(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Outcome string `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.runSvc.SetComparison(r.Context(), chi.URLParam(r, "id"), req.Outcome)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, result, http.StatusOK)
}
