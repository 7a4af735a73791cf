package models

import "time"

// Session status values
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusArchived  = "archived"
)

// Workflow stages a session moves through. Stage transitions are guarded by
// the workflow service; the value here is only the persisted position.
const (
	StageSetup     = "setup"
	StageReviewing = "reviewing"
	StageAdapting  = "adapting"
	StageComparing = "comparing"
	StageDone      = "done"
)

// Session represents one prompt refinement project: a set of test inputs, a
// version history of the prompt under refinement, and the run results
// collected along the way. Exactly one PromptVersion per session is current
// at any time (the latest accepted one, or version 1 before any acceptance).
type Session struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	TaskDescription   string    `json:"task_description"`
	OutputDescription string    `json:"output_description,omitempty"`
	ModelProvider     string    `json:"model_provider"`
	ModelName         string    `json:"model_name"`
	ModelTemperature  float64   `json:"model_temperature"`
	BatchSize         int       `json:"batch_size"`
	Status            string    `json:"status"`
	Stage             string    `json:"stage"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func NewSession(id, name, taskDescription, outputDescription, provider, model string, temperature float64, batchSize int) *Session {
	now := time.Now().UTC()
	if temperature == 0 {
		temperature = 0.7
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Session{
		ID:                id,
		Name:              name,
		TaskDescription:   taskDescription,
		OutputDescription: outputDescription,
		ModelProvider:     provider,
		ModelName:         model,
		ModelTemperature:  temperature,
		BatchSize:         batchSize,
		Status:            SessionStatusActive,
		Stage:             StageSetup,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (s *Session) MarkCompleted() {
	s.Status = SessionStatusCompleted
	s.Stage = StageDone
	s.UpdatedAt = time.Now().UTC()
}

func (s *Session) MarkArchived() {
	s.Status = SessionStatusArchived
	s.UpdatedAt = time.Now().UTC()
}

// IsTerminal reports whether the workflow can no longer advance.
func (s *Session) IsTerminal() bool {
	return s.Stage == StageDone
}
