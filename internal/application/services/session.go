package services

import (
	"context"

	"github.com/faisalx96/saqal/internal/adapters/metrics"
	"github.com/faisalx96/saqal/internal/domain"
	"github.com/faisalx96/saqal/internal/domain/models"
	"github.com/faisalx96/saqal/internal/ports"
)

// CreateSessionParams carries everything needed to set up a refinement
// session, including the initial prompt that becomes version 1.
type CreateSessionParams struct {
	Name              string  `json:"name"`
	TaskDescription   string  `json:"task_description"`
	OutputDescription string  `json:"output_description,omitempty"`
	ModelProvider     string  `json:"model_provider"`
	ModelName         string  `json:"model_name"`
	ModelTemperature  float64 `json:"model_temperature,omitempty"`
	BatchSize         int     `json:"batch_size,omitempty"`
	InitialPrompt     string  `json:"initial_prompt"`
}

// SessionService manages sessions and their test inputs. A session owns
// its inputs, versions, results and frontier log; deletion cascades over
// all of them.
type SessionService struct {
	sessions  ports.SessionRepository
	inputs    ports.InputRepository
	versions  ports.PromptVersionRepository
	results   ports.RunResultRepository
	frontier  ports.FrontierRepository
	lineage   *LineageService
	idGen     ports.IDGenerator
	txManager ports.TransactionManager
}

func NewSessionService(
	sessions ports.SessionRepository,
	inputs ports.InputRepository,
	versions ports.PromptVersionRepository,
	results ports.RunResultRepository,
	frontier ports.FrontierRepository,
	lineage *LineageService,
	idGen ports.IDGenerator,
	txManager ports.TransactionManager,
) *SessionService {
	return &SessionService{
		sessions:  sessions,
		inputs:    inputs,
		versions:  versions,
		results:   results,
		frontier:  frontier,
		lineage:   lineage,
		idGen:     idGen,
		txManager: txManager,
	}
}

// CreateSession creates a session with its version 1 in one transaction.
// The initial prompt is committed as accepted: it is the user's own
// baseline, so it is current until a mutation supersedes it.
func (s *SessionService) CreateSession(ctx context.Context, params CreateSessionParams) (*models.Session, *models.PromptVersion, error) {
	if err := ValidateRequired(params.Name, "name"); err != nil {
		return nil, nil, err
	}
	if err := ValidateRequired(params.TaskDescription, "task description"); err != nil {
		return nil, nil, err
	}
	if err := ValidateRequired(params.ModelName, "model name"); err != nil {
		return nil, nil, err
	}
	if err := ValidateRequired(params.InitialPrompt, "initial prompt"); err != nil {
		return nil, nil, err
	}

	session := models.NewSession(
		s.idGen.GenerateSessionID(),
		params.Name,
		params.TaskDescription,
		params.OutputDescription,
		params.ModelProvider,
		params.ModelName,
		params.ModelTemperature,
		params.BatchSize,
	)

	var version *models.PromptVersion
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.sessions.Create(ctx, session); err != nil {
			return domain.NewDomainError(err, "failed to create session")
		}
		var err error
		version, err = s.lineage.Commit(ctx, session.ID, nil, params.InitialPrompt, "", models.VersionStatusAccepted)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.SessionsActive.Inc()
	return session, version, nil
}

func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if err := ValidateID(sessionID, "session"); err != nil {
		return nil, err
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrSessionNotFound, "session "+sessionID)
	}
	return session, nil
}

// ListSessions returns sessions ordered by recency, optionally filtered
// by status.
func (s *SessionService) ListSessions(ctx context.Context, status string, limit, offset int) ([]*models.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		sessions []*models.Session
		err      error
	)
	if status != "" {
		sessions, err = s.sessions.ListByStatus(ctx, status, limit, offset)
	} else {
		sessions, err = s.sessions.List(ctx, limit, offset)
	}
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to list sessions")
	}
	return sessions, nil
}

func (s *SessionService) ArchiveSession(ctx context.Context, sessionID string) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status == models.SessionStatusArchived {
		return nil
	}
	wasActive := session.Status == models.SessionStatusActive
	session.MarkArchived()
	if err := s.sessions.Update(ctx, session); err != nil {
		return domain.NewDomainError(err, "failed to archive session")
	}
	if wasActive {
		metrics.SessionsActive.Dec()
	}
	return nil
}

// DeleteSession removes a session and everything it owns in one
// transaction: results first, then the frontier log, versions, inputs,
// and finally the session row.
func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.results.DeleteBySession(ctx, sessionID); err != nil {
			return err
		}
		if err := s.frontier.DeleteBySession(ctx, sessionID); err != nil {
			return err
		}
		if err := s.versions.DeleteBySession(ctx, sessionID); err != nil {
			return err
		}
		if err := s.inputs.DeleteBySession(ctx, sessionID); err != nil {
			return err
		}
		return s.sessions.Delete(ctx, sessionID)
	})
	if err != nil {
		return domain.NewDomainError(err, "failed to delete session")
	}

	if session.Status == models.SessionStatusActive {
		metrics.SessionsActive.Dec()
	}
	return nil
}

// AddInput attaches a test case to a session. Inputs are immutable once
// created and cannot be added to a finished session.
func (s *SessionService) AddInput(ctx context.Context, sessionID, content, groundTruth, metadata string) (*models.Input, error) {
	if err := ValidateRequired(content, "input content"); err != nil {
		return nil, err
	}
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsTerminal() {
		return nil, domain.NewDomainError(domain.ErrSessionDone, "cannot add inputs to a finished session")
	}

	input := models.NewInput(s.idGen.GenerateInputID(), sessionID, content, groundTruth, metadata)
	if err := s.inputs.Create(ctx, input); err != nil {
		return nil, domain.NewDomainError(err, "failed to create input")
	}
	return input, nil
}

// AddInputs attaches a batch of test cases atomically.
func (s *SessionService) AddInputs(ctx context.Context, sessionID string, contents []string) ([]*models.Input, error) {
	if len(contents) == 0 {
		return nil, domain.NewDomainError(domain.ErrInvalidInput, "at least one input is required")
	}

	created := make([]*models.Input, 0, len(contents))
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		for _, content := range contents {
			input, err := s.AddInput(ctx, sessionID, content, "", "")
			if err != nil {
				return err
			}
			created = append(created, input)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *SessionService) GetInputs(ctx context.Context, sessionID string) ([]*models.Input, error) {
	if err := ValidateID(sessionID, "session"); err != nil {
		return nil, err
	}
	inputs, err := s.inputs.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to load inputs")
	}
	return inputs, nil
}

// DeleteInput removes a test case. Allowed only while the session is
// still in setup; once reviewing starts, inputs are part of the record.
func (s *SessionService) DeleteInput(ctx context.Context, inputID string) error {
	if err := ValidateID(inputID, "input"); err != nil {
		return err
	}
	input, err := s.inputs.GetByID(ctx, inputID)
	if err != nil {
		return domain.NewDomainError(domain.ErrInputNotFound, "input "+inputID)
	}
	session, err := s.GetSession(ctx, input.SessionID)
	if err != nil {
		return err
	}
	if session.Stage != models.StageSetup {
		return domain.NewDomainError(domain.ErrInvalidTransition, "inputs can only be removed during setup")
	}
	if err := s.inputs.Delete(ctx, inputID); err != nil {
		return domain.NewDomainError(err, "failed to delete input")
	}
	return nil
}
