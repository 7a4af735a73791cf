package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/faisalx96/saqal/internal/domain"
)

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}

// respondDomainError maps domain error kinds onto HTTP statuses. Guard
// failures and pending-work conflicts are 409 so the client can retry
// after resolving the precondition; provider failures surface as 502
// with the kind preserved in the body.
func respondDomainError(w http.ResponseWriter, err error) {
	var compErr *domain.CompletionError
	if errors.As(err, &compErr) {
		respondJSON(w, map[string]string{
			"error": compErr.Error(),
			"kind":  string(compErr.Kind),
		}, http.StatusBadGateway)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrVersionNotFound),
		errors.Is(err, domain.ErrInputNotFound),
		errors.Is(err, domain.ErrResultNotFound),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, pgx.ErrNoRows):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrProposalPending),
		errors.Is(err, domain.ErrNoProposalPending),
		errors.Is(err, domain.ErrBatchInFlight),
		errors.Is(err, domain.ErrEmptyFeedback),
		errors.Is(err, domain.ErrFeedbackAlreadySet),
		errors.Is(err, domain.ErrSessionDone),
		errors.Is(err, domain.ErrSessionArchived),
		errors.Is(err, domain.ErrVersionNotAccepted):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrInvalidFeedback),
		errors.Is(err, domain.ErrInvalidComparison),
		errors.Is(err, domain.ErrCrossSessionLineage),
		errors.Is(err, domain.ErrParentNotOlder):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		slog.Error("internal error", "error", err)
		respondError(w, "internal server error", status)
		return
	}
	respondError(w, err.Error(), status)
}

func parseIntQuery(r *http.Request, name string, defaultValue int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}
