package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/faisalx96/saqal/internal/application/services"
)

type ExportHandler struct {
	exportSvc *services.ExportService
}

func NewExportHandler(exportSvc *services.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// Markdown handles GET /sessions/{id}/export/markdown?version=sv_xxx.
// Without a version parameter the current version is exported.
func (h *ExportHandler) Markdown(w http.ResponseWriter, r *http.Request) {
	md, err := h.exportSvc.ExportMarkdown(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("version"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(md))
}

func (h *ExportHandler) JSON(w http.ResponseWriter, r *http.Request) {
	raw, err := h.exportSvc.ExportJSON(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}
