package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/faisalx96/saqal/internal/adapters/metrics"
	"github.com/faisalx96/saqal/internal/domain"
	"github.com/faisalx96/saqal/internal/domain/models"
	"github.com/faisalx96/saqal/internal/ports"
	"github.com/faisalx96/saqal/internal/refine"
)

// Proposer produces a mutation proposal from aggregated feedback.
// Implemented by refine.Mutator.
type Proposer interface {
	Propose(ctx context.Context, taskDescription, currentPrompt, feedbackCorpus string) (*models.MutationProposal, error)
}

// BatchRunner executes prompt versions over inputs. Implemented by
// RunService.
type BatchRunner interface {
	ExecuteBatch(ctx context.Context, versionID string, inputIDs []string) ([]*models.RunResult, error)
	ExecuteComparison(ctx context.Context, oldVersionID, newVersionID string, inputIDs []string) (*ComparisonRun, error)
	FeedbackItems(ctx context.Context, versionID string) ([]refine.FeedbackItem, error)
}

type pendingProposal struct {
	proposal      *models.MutationProposal
	baseVersionID string
}

type comparisonState struct {
	oldVersionID string
	newVersionID string
}

// WorkflowService drives a session through
// Setup -> Reviewing -> Adapting -> Comparing -> (Reviewing | Done).
// Every transition checks its guard against persisted state and fails
// with the missing precondition named; nothing silently no-ops.
//
// The in-flight proposal and comparison pair are held in memory: the
// system is single-user and a proposal that has not been resolved is not
// part of the record yet. A proposal only reaches the database when it is
// committed, accepted or rejected alike.
type WorkflowService struct {
	sessions ports.SessionRepository
	inputs   ports.InputRepository
	results  ports.RunResultRepository
	lineage  *LineageService
	runner   BatchRunner
	proposer Proposer
	logger   *slog.Logger

	mu            sync.Mutex
	pending       map[string]*pendingProposal
	comparing     map[string]*comparisonState
	batchInFlight map[string]bool
}

func NewWorkflowService(
	sessions ports.SessionRepository,
	inputs ports.InputRepository,
	results ports.RunResultRepository,
	lineage *LineageService,
	runner BatchRunner,
	proposer Proposer,
	logger *slog.Logger,
) *WorkflowService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowService{
		sessions:      sessions,
		inputs:        inputs,
		results:       results,
		lineage:       lineage,
		runner:        runner,
		proposer:      proposer,
		logger:        logger,
		pending:       make(map[string]*pendingProposal),
		comparing:     make(map[string]*comparisonState),
		batchInFlight: make(map[string]bool),
	}
}

func invalidTransition(format string, args ...any) error {
	return domain.NewDomainError(domain.ErrInvalidTransition, fmt.Sprintf(format, args...))
}

func (s *WorkflowService) loadSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if err := ValidateID(sessionID, "session"); err != nil {
		return nil, err
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrSessionNotFound, "session "+sessionID)
	}
	if session.Status == models.SessionStatusArchived {
		return nil, domain.NewDomainError(domain.ErrSessionArchived, "session "+sessionID)
	}
	return session, nil
}

func (s *WorkflowService) requireStage(session *models.Session, stage string) error {
	if session.Stage == models.StageDone {
		return domain.NewDomainError(domain.ErrSessionDone, "session "+session.ID)
	}
	if session.Stage != stage {
		return invalidTransition("session is in stage %q, expected %q", session.Stage, stage)
	}
	return nil
}

func (s *WorkflowService) markBatchInFlight(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchInFlight[sessionID] {
		return domain.NewDomainError(domain.ErrBatchInFlight, "session "+sessionID)
	}
	s.batchInFlight[sessionID] = true
	return nil
}

func (s *WorkflowService) clearBatchInFlight(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.batchInFlight, sessionID)
}

// unreviewedInputs returns up to limit inputs that have no result yet for
// the given version, in creation order.
func (s *WorkflowService) unreviewedInputs(ctx context.Context, sessionID, versionID string, limit int) ([]string, error) {
	inputs, err := s.inputs.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to load inputs")
	}

	var ids []string
	for _, input := range inputs {
		if limit > 0 && len(ids) >= limit {
			break
		}
		_, err := s.results.GetByInputAndVersion(ctx, input.ID, versionID)
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewDomainError(err, "failed to check input "+input.ID)
		}
		ids = append(ids, input.ID)
	}
	return ids, nil
}

// reviewedInputs returns the inputs that produced a completed result for
// the given version. These are the inputs a comparison batch replays.
func (s *WorkflowService) reviewedInputs(ctx context.Context, versionID string) ([]string, error) {
	results, err := s.results.GetByVersion(ctx, versionID)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to load results")
	}
	var ids []string
	for _, r := range results {
		if !r.Failed {
			ids = append(ids, r.InputID)
		}
	}
	return ids, nil
}

// BeginReview moves Setup -> Reviewing and runs version 1 over the first
// batch of inputs. The session stays in Setup when the batch aborts.
func (s *WorkflowService) BeginReview(ctx context.Context, sessionID string) ([]*models.RunResult, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireStage(session, models.StageSetup); err != nil {
		return nil, err
	}

	count, err := s.inputs.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to count inputs")
	}
	if count == 0 {
		return nil, invalidTransition("review requires at least one input")
	}

	current, err := s.lineage.Current(ctx, sessionID)
	if err != nil {
		return nil, invalidTransition("review requires an initial prompt version")
	}

	results, err := s.runBatch(ctx, session, current.ID)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.UpdateStage(ctx, sessionID, models.StageReviewing); err != nil {
		return nil, domain.NewDomainError(err, "failed to advance to reviewing")
	}
	return results, nil
}

func (s *WorkflowService) runBatch(ctx context.Context, session *models.Session, versionID string) ([]*models.RunResult, error) {
	inputIDs, err := s.unreviewedInputs(ctx, session.ID, versionID, session.BatchSize)
	if err != nil {
		return nil, err
	}
	// Every input may already carry a result for this version, for
	// example after a comparison that replayed the whole input set. The
	// stage still advances; the next batch starts once inputs are added.
	if len(inputIDs) == 0 {
		return []*models.RunResult{}, nil
	}

	if err := s.markBatchInFlight(session.ID); err != nil {
		return nil, err
	}
	defer s.clearBatchInFlight(session.ID)

	return s.runner.ExecuteBatch(ctx, versionID, inputIDs)
}

// BeginAdapt moves Reviewing -> Adapting: aggregates the judged results of
// the current version into a feedback corpus and requests one mutation
// proposal. The proposal is held pending until accepted or rejected;
// starting another adapt cycle meanwhile fails.
func (s *WorkflowService) BeginAdapt(ctx context.Context, sessionID string) (*models.MutationProposal, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// The pending check runs before the stage guard: once a proposal is
	// parked the persisted stage is already adapting, and a second call
	// must name the proposal, not the stage, as the obstacle.
	s.mu.Lock()
	if _, exists := s.pending[sessionID]; exists {
		s.mu.Unlock()
		return nil, domain.NewDomainError(domain.ErrProposalPending, "session "+sessionID)
	}
	if s.batchInFlight[sessionID] {
		s.mu.Unlock()
		return nil, domain.NewDomainError(domain.ErrBatchInFlight, "session "+sessionID)
	}
	s.mu.Unlock()

	if err := s.requireStage(session, models.StageReviewing); err != nil {
		return nil, err
	}

	current, err := s.lineage.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	judged, err := s.results.CountJudgedByVersion(ctx, current.ID)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to count judged results")
	}
	if judged == 0 {
		return nil, domain.NewDomainError(domain.ErrEmptyFeedback, "adapt requires at least one judged result")
	}

	items, err := s.runner.FeedbackItems(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	corpus, err := refine.AggregateFeedback(items)
	if err != nil {
		return nil, domain.NewDomainError(err, "adapt requires at least one judged result")
	}

	proposal, err := s.proposer.Propose(ctx, session.TaskDescription, current.PromptText, corpus)
	if err != nil {
		return nil, err
	}
	if proposal.ParseFailed {
		metrics.ReflectionParseFailuresTotal.Inc()
		s.logger.Warn("reflection reply not parseable, proposing unchanged prompt",
			"session_id", sessionID, "version_id", current.ID)
	}

	s.mu.Lock()
	s.pending[sessionID] = &pendingProposal{proposal: proposal, baseVersionID: current.ID}
	s.mu.Unlock()

	if err := s.sessions.UpdateStage(ctx, sessionID, models.StageAdapting); err != nil {
		s.mu.Lock()
		delete(s.pending, sessionID)
		s.mu.Unlock()
		return nil, domain.NewDomainError(err, "failed to advance to adapting")
	}
	return proposal, nil
}

// PendingProposal returns the unresolved proposal for a session.
func (s *WorkflowService) PendingProposal(sessionID string) (*models.MutationProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[sessionID]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrNoProposalPending, "session "+sessionID)
	}
	return p.proposal, nil
}

// ProposalDiff renders the pending proposal as a line diff against the
// prompt it would replace.
func (s *WorkflowService) ProposalDiff(ctx context.Context, sessionID string) ([]refine.DiffLine, error) {
	s.mu.Lock()
	p, ok := s.pending[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, domain.NewDomainError(domain.ErrNoProposalPending, "session "+sessionID)
	}
	base, err := s.lineage.GetVersion(ctx, p.baseVersionID)
	if err != nil {
		return nil, err
	}
	return refine.DiffLines(base.PromptText, p.proposal.NewPrompt), nil
}

// Accept moves Adapting -> Comparing: commits the pending proposal as an
// accepted version and replays the reviewed inputs against both the old
// and the new version.
func (s *WorkflowService) Accept(ctx context.Context, sessionID string) (*models.PromptVersion, *ComparisonRun, error) {
	return s.accept(ctx, sessionID, "")
}

// AcceptEdited is Accept with the proposal text replaced by the user's
// edit. The edited version supersedes the proposal and shares its parent.
func (s *WorkflowService) AcceptEdited(ctx context.Context, sessionID, editedPrompt string) (*models.PromptVersion, *ComparisonRun, error) {
	if err := ValidateRequired(editedPrompt, "edited prompt"); err != nil {
		return nil, nil, err
	}
	return s.accept(ctx, sessionID, editedPrompt)
}

func (s *WorkflowService) accept(ctx context.Context, sessionID, editedPrompt string) (*models.PromptVersion, *ComparisonRun, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.requireStage(session, models.StageAdapting); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	p, ok := s.pending[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, nil, domain.NewDomainError(domain.ErrNoProposalPending, "session "+sessionID)
	}

	promptText := p.proposal.NewPrompt
	if editedPrompt != "" {
		promptText = editedPrompt
	}

	version, err := s.lineage.Commit(ctx, sessionID, &p.baseVersionID, promptText, p.proposal.Explanation, models.VersionStatusAccepted)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	delete(s.pending, sessionID)
	s.comparing[sessionID] = &comparisonState{oldVersionID: p.baseVersionID, newVersionID: version.ID}
	s.mu.Unlock()

	if err := s.sessions.UpdateStage(ctx, sessionID, models.StageComparing); err != nil {
		return nil, nil, domain.NewDomainError(err, "failed to advance to comparing")
	}

	inputIDs, err := s.reviewedInputs(ctx, p.baseVersionID)
	if err != nil {
		return version, nil, err
	}
	if err := s.markBatchInFlight(sessionID); err != nil {
		return version, nil, err
	}
	defer s.clearBatchInFlight(sessionID)

	run, err := s.runner.ExecuteComparison(ctx, p.baseVersionID, version.ID, inputIDs)
	if err != nil {
		return version, nil, err
	}
	return version, run, nil
}

// Reject moves Adapting -> Reviewing: the proposal is committed with
// status rejected so the lineage shows it was considered, and the prior
// current version stays current.
func (s *WorkflowService) Reject(ctx context.Context, sessionID string) (*models.PromptVersion, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireStage(session, models.StageAdapting); err != nil {
		return nil, err
	}

	s.mu.Lock()
	p, ok := s.pending[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, domain.NewDomainError(domain.ErrNoProposalPending, "session "+sessionID)
	}

	version, err := s.lineage.Commit(ctx, sessionID, &p.baseVersionID, p.proposal.NewPrompt, p.proposal.Explanation, models.VersionStatusRejected)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.pending, sessionID)
	s.mu.Unlock()

	if err := s.sessions.UpdateStage(ctx, sessionID, models.StageReviewing); err != nil {
		return nil, domain.NewDomainError(err, "failed to return to reviewing")
	}
	return version, nil
}

// KeepNew moves Comparing -> Reviewing with the new version staying
// current, and runs it over a fresh unreviewed batch.
func (s *WorkflowService) KeepNew(ctx context.Context, sessionID string) ([]*models.RunResult, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireStage(session, models.StageComparing); err != nil {
		return nil, err
	}

	s.mu.Lock()
	c, ok := s.comparing[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, invalidTransition("no comparison is in progress")
	}

	results, err := s.runBatch(ctx, session, c.newVersionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.comparing, sessionID)
	s.mu.Unlock()

	if err := s.sessions.UpdateStage(ctx, sessionID, models.StageReviewing); err != nil {
		return nil, domain.NewDomainError(err, "failed to return to reviewing")
	}
	return results, nil
}

// Revert moves Comparing -> Reviewing with the old version restored as
// current. Restoration commits a pass-through accepted version; the
// version that lost the comparison stays in the lineage.
func (s *WorkflowService) Revert(ctx context.Context, sessionID string) (*models.PromptVersion, []*models.RunResult, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.requireStage(session, models.StageComparing); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	c, ok := s.comparing[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, nil, invalidTransition("no comparison is in progress")
	}

	restored, err := s.lineage.SetCurrent(ctx, c.oldVersionID)
	if err != nil {
		return nil, nil, err
	}

	results, err := s.runBatch(ctx, session, restored.ID)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	delete(s.comparing, sessionID)
	s.mu.Unlock()

	if err := s.sessions.UpdateStage(ctx, sessionID, models.StageReviewing); err != nil {
		return nil, nil, domain.NewDomainError(err, "failed to return to reviewing")
	}
	return restored, results, nil
}

// Finish moves any stage to Done. Terminal: the session keeps its data
// but accepts no further transitions.
func (s *WorkflowService) Finish(ctx context.Context, sessionID string) error {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.IsTerminal() {
		return domain.NewDomainError(domain.ErrSessionDone, "session "+sessionID)
	}

	session.MarkCompleted()
	if err := s.sessions.Update(ctx, session); err != nil {
		return domain.NewDomainError(err, "failed to finish session")
	}

	s.mu.Lock()
	delete(s.pending, sessionID)
	delete(s.comparing, sessionID)
	s.mu.Unlock()

	metrics.SessionsActive.Dec()
	return nil
}
