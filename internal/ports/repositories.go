package ports

import (
	"context"

	"github.com/faisalx96/saqal/internal/domain/models"
)

// SessionRepository defines operations for session persistence
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	// UpdateStage persists a workflow stage change without touching other fields
	UpdateStage(ctx context.Context, id, stage string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*models.Session, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*models.Session, error)
}

// InputRepository defines operations for test input persistence
type InputRepository interface {
	Create(ctx context.Context, input *models.Input) error
	GetByID(ctx context.Context, id string) (*models.Input, error)
	Update(ctx context.Context, input *models.Input) error
	Delete(ctx context.Context, id string) error
	GetBySession(ctx context.Context, sessionID string) ([]*models.Input, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	// DeleteBySession removes every input of a session
	DeleteBySession(ctx context.Context, sessionID string) error
}

// PromptVersionRepository defines operations for prompt version persistence
type PromptVersionRepository interface {
	Create(ctx context.Context, version *models.PromptVersion) error
	GetByID(ctx context.Context, id string) (*models.PromptVersion, error)
	Update(ctx context.Context, version *models.PromptVersion) error
	GetBySession(ctx context.Context, sessionID string) ([]*models.PromptVersion, error)
	// GetChildren returns versions whose parent is the given version ID
	GetChildren(ctx context.Context, parentVersionID string) ([]*models.PromptVersion, error)
	GetNextVersionNumber(ctx context.Context, sessionID string) (int, error)
	// DeleteBySession removes every version of a session
	DeleteBySession(ctx context.Context, sessionID string) error
}

// RunResultRepository defines operations for run result persistence
type RunResultRepository interface {
	Create(ctx context.Context, result *models.RunResult) error
	GetByID(ctx context.Context, id string) (*models.RunResult, error)
	Update(ctx context.Context, result *models.RunResult) error
	GetByVersion(ctx context.Context, versionID string) ([]*models.RunResult, error)
	GetByInputAndVersion(ctx context.Context, inputID, versionID string) (*models.RunResult, error)
	// CountJudgedByVersion returns how many results for a version carry a human verdict
	CountJudgedByVersion(ctx context.Context, versionID string) (int, error)
	// DeleteBySession removes every result recorded under a session's versions
	DeleteBySession(ctx context.Context, sessionID string) error
}

// FrontierRepository defines operations for the Pareto frontier log.
// Entries are append-only; a frontier snapshot is the set of entries
// recorded at the latest recompute for a session.
type FrontierRepository interface {
	Append(ctx context.Context, entries []*models.FrontierEntry) error
	GetLatestBySession(ctx context.Context, sessionID string) ([]*models.FrontierEntry, error)
	GetHistoryBySession(ctx context.Context, sessionID string, limit int) ([]*models.FrontierEntry, error)
	// DeleteBySession removes a session's frontier log
	DeleteBySession(ctx context.Context, sessionID string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	// WithTransaction executes a function within a database transaction
	// If the function returns an error, the transaction is rolled back
	// Otherwise, the transaction is committed
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// IDGenerator generates unique IDs for entities
type IDGenerator interface {
	// GenerateSessionID generates a new session ID (ss_xxx)
	GenerateSessionID() string

	// GenerateInputID generates a new input ID (si_xxx)
	GenerateInputID() string

	// GenerateVersionID generates a new prompt version ID (sv_xxx)
	GenerateVersionID() string

	// GenerateResultID generates a new run result ID (sr_xxx)
	GenerateResultID() string

	// GenerateFrontierEntryID generates a new frontier entry ID (sf_xxx)
	GenerateFrontierEntryID() string
}
