package models

import "time"

// PromptVersion status values
const (
	VersionStatusProposed = "proposed"
	VersionStatusAccepted = "accepted"
	VersionStatusRejected = "rejected"
)

// PromptVersion is one node in a session's append-only version tree.
// Version numbers are strictly increasing per session starting at 1.
// ParentVersionID is nil only for version 1 and must otherwise reference a
// version in the same session with a strictly smaller version number: each
// version has at most one parent, so the structure is a tree, never a
// general graph. A version is created once and never edited in place;
// editing a proposal before acceptance produces a sibling sharing the same
// parent, since the edit supersedes the proposal rather than extending it.
type PromptVersion struct {
	ID                  string    `json:"id"`
	SessionID           string    `json:"session_id"`
	VersionNumber       int       `json:"version_number"`
	PromptText          string    `json:"prompt_text"`
	ParentVersionID     *string   `json:"parent_version_id,omitempty"`
	MutationExplanation string    `json:"mutation_explanation,omitempty"`
	Status              string    `json:"status"`
	ParetoRank          *int      `json:"pareto_rank,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

func NewPromptVersion(id, sessionID string, versionNumber int, promptText string, parentVersionID *string, explanation, status string) *PromptVersion {
	if status == "" {
		status = VersionStatusProposed
	}
	return &PromptVersion{
		ID:                  id,
		SessionID:           sessionID,
		VersionNumber:       versionNumber,
		PromptText:          promptText,
		ParentVersionID:     parentVersionID,
		MutationExplanation: explanation,
		Status:              status,
		CreatedAt:           time.Now().UTC(),
	}
}

// FrontierEntry records a version's position in the Pareto frontier exposed
// by the optimization collaborator. The frontier is an append-only log:
// ranks may be superseded by later entries for the same version, but an
// entry, once written, is never removed or rewritten.
type FrontierEntry struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	VersionID  string    `json:"version_id"`
	Rank       int       `json:"rank"`
	RecordedAt time.Time `json:"recorded_at"`
}

func NewFrontierEntry(id, sessionID, versionID string, rank int) *FrontierEntry {
	return &FrontierEntry{
		ID:         id,
		SessionID:  sessionID,
		VersionID:  versionID,
		Rank:       rank,
		RecordedAt: time.Now().UTC(),
	}
}
