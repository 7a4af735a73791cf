package models

import "time"

// Input is a single immutable test case belonging to a session. Inputs are
// never edited after creation and are deleted only together with their
// owning session.
type Input struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Content     string    `json:"content"`
	GroundTruth string    `json:"ground_truth,omitempty"`
	Metadata    string    `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewInput(id, sessionID, content, groundTruth, metadata string) *Input {
	return &Input{
		ID:          id,
		SessionID:   sessionID,
		Content:     content,
		GroundTruth: groundTruth,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
}
