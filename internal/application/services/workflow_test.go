package services

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/faisalx96/saqal/internal/domain"
	"github.com/faisalx96/saqal/internal/domain/models"
	"github.com/faisalx96/saqal/internal/refine"
)

// MockBatchRunner is a mock implementation of BatchRunner
type MockBatchRunner struct {
	mock.Mock
}

func (m *MockBatchRunner) ExecuteBatch(ctx context.Context, versionID string, inputIDs []string) ([]*models.RunResult, error) {
	args := m.Called(ctx, versionID, inputIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RunResult), args.Error(1)
}

func (m *MockBatchRunner) ExecuteComparison(ctx context.Context, oldVersionID, newVersionID string, inputIDs []string) (*ComparisonRun, error) {
	args := m.Called(ctx, oldVersionID, newVersionID, inputIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ComparisonRun), args.Error(1)
}

func (m *MockBatchRunner) FeedbackItems(ctx context.Context, versionID string) ([]refine.FeedbackItem, error) {
	args := m.Called(ctx, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]refine.FeedbackItem), args.Error(1)
}

// MockProposer is a mock implementation of Proposer
type MockProposer struct {
	mock.Mock
}

func (m *MockProposer) Propose(ctx context.Context, taskDescription, currentPrompt, feedbackCorpus string) (*models.MutationProposal, error) {
	args := m.Called(ctx, taskDescription, currentPrompt, feedbackCorpus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MutationProposal), args.Error(1)
}

type workflowFixture struct {
	sessions *MockSessionRepository
	inputs   *MockInputRepository
	versions *MockPromptVersionRepository
	results  *MockRunResultRepository
	runner   *MockBatchRunner
	proposer *MockProposer
	service  *WorkflowService
}

func newWorkflowFixture() *workflowFixture {
	f := &workflowFixture{
		sessions: new(MockSessionRepository),
		inputs:   new(MockInputRepository),
		versions: new(MockPromptVersionRepository),
		results:  new(MockRunResultRepository),
		runner:   new(MockBatchRunner),
		proposer: new(MockProposer),
	}
	lineage := NewLineageService(f.versions, new(MockFrontierRepository), &mockIDGenerator{}, &mockTransactionManager{})
	f.service = NewWorkflowService(f.sessions, f.inputs, f.results, lineage, f.runner, f.proposer, nil)
	return f
}

func (f *workflowFixture) stubSession(stage string) *models.Session {
	session := models.NewSession("ss_1", "s", "Summarize emails", "", "openai", "gpt-4o-mini", 0, 2)
	session.Stage = stage
	f.sessions.On("GetByID", mock.Anything, "ss_1").Return(session, nil)
	return session
}

func (f *workflowFixture) stubInputs(ids ...string) {
	inputs := make([]*models.Input, 0, len(ids))
	for _, id := range ids {
		inputs = append(inputs, models.NewInput(id, "ss_1", "content "+id, "", ""))
	}
	f.inputs.On("GetBySession", mock.Anything, "ss_1").Return(inputs, nil)
	f.inputs.On("CountBySession", mock.Anything, "ss_1").Return(len(ids), nil)
}

func TestWorkflowService_BeginReview_RequiresInputs(t *testing.T) {
	f := newWorkflowFixture()
	f.stubSession(models.StageSetup)
	f.inputs.On("CountBySession", mock.Anything, "ss_1").Return(0, nil)

	_, err := f.service.BeginReview(context.Background(), "ss_1")

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "at least one input")
}

func TestWorkflowService_BeginReview_WrongStage(t *testing.T) {
	f := newWorkflowFixture()
	f.stubSession(models.StageReviewing)

	_, err := f.service.BeginReview(context.Background(), "ss_1")

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestWorkflowService_BeginReview_RunsFirstBatchAndAdvances(t *testing.T) {
	f := newWorkflowFixture()
	f.stubSession(models.StageSetup)
	f.stubInputs("si_1", "si_2", "si_3")
	ctx := context.Background()

	v1 := models.NewPromptVersion("sv_1", "ss_1", 1, "Summarize: {input}", nil, "", models.VersionStatusAccepted)
	f.versions.On("GetBySession", mock.Anything, "ss_1").Return([]*models.PromptVersion{v1}, nil)
	f.results.On("GetByInputAndVersion", mock.Anything, mock.Anything, "sv_1").Return(nil, pgx.ErrNoRows)

	// batch size is 2, so only the first two inputs run
	batch := []*models.RunResult{
		models.NewRunResult("sr_1", "si_1", "sv_1", "out", 10, 5),
		models.NewRunResult("sr_2", "si_2", "sv_1", "out", 10, 5),
	}
	f.runner.On("ExecuteBatch", mock.Anything, "sv_1", []string{"si_1", "si_2"}).Return(batch, nil)
	f.sessions.On("UpdateStage", mock.Anything, "ss_1", models.StageReviewing).Return(nil)

	results, err := f.service.BeginReview(ctx, "ss_1")

	assert.NoError(t, err)
	assert.Len(t, results, 2)
	f.runner.AssertExpectations(t)
	f.sessions.AssertExpectations(t)
}

func TestWorkflowService_BeginReview_StaysInSetupWhenBatchAborts(t *testing.T) {
	f := newWorkflowFixture()
	f.stubSession(models.StageSetup)
	f.stubInputs("si_1")
	ctx := context.Background()

	v1 := models.NewPromptVersion("sv_1", "ss_1", 1, "p", nil, "", models.VersionStatusAccepted)
	f.versions.On("GetBySession", mock.Anything, "ss_1").Return([]*models.PromptVersion{v1}, nil)
	f.results.On("GetByInputAndVersion", mock.Anything, "si_1", "sv_1").Return(nil, pgx.ErrNoRows)
	f.runner.On("ExecuteBatch", mock.Anything, "sv_1", []string{"si_1"}).Return(nil, assert.AnError)

	_, err := f.service.BeginReview(ctx, "ss_1")

	assert.Error(t, err)
	f.sessions.AssertNotCalled(t, "UpdateStage", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorkflowService_BeginAdapt_RequiresJudgedResults(t *testing.T) {
	f := newWorkflowFixture()
	f.stubSession(models.StageReviewing)
	ctx := context.Background()

	v1 := models.NewPromptVersion("sv_1", "ss_1", 1, "p", nil, "", models.VersionStatusAccepted)
	f.versions.On("GetBySession", mock.Anything, "ss_1").Return([]*models.PromptVersion{v1}, nil)
	f.results.On("CountJudgedByVersion", mock.Anything, "sv_1").Return(0, nil)

	_, err := f.service.BeginAdapt(ctx, "ss_1")

	assert.ErrorIs(t, err, domain.ErrEmptyFeedback)
	f.runner.AssertNotCalled(t, "FeedbackItems", mock.Anything, mock.Anything)
	f.proposer.AssertNotCalled(t, "Propose", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWorkflowService_BeginAdapt_ProposesAndParksProposal(t *testing.T) {
	f := newWorkflowFixture()
	f.stubSession(models.StageReviewing)
	ctx := context.Background()

	v1 := models.NewPromptVersion("sv_1", "ss_1", 1, "Summarize: {input}", nil, "", models.VersionStatusAccepted)
	f.versions.On("GetBySession", mock.Anything, "ss_1").Return([]*models.PromptVersion{v1}, nil)
	f.results.On("CountJudgedByVersion", mock.Anything, "sv_1").Return(1, nil)
	f.runner.On("FeedbackItems", mock.Anything, "sv_1").Return([]refine.FeedbackItem{
		{InputContent: "in", Output: "out", IsGood: false, Reason: "too long"},
	}, nil)

	proposal := &models.MutationProposal{
		NewPrompt:   "Summarize briefly: {input}",
		Explanation: "Shortened the instruction",
	}
	f.proposer.On("Propose", mock.Anything, "Summarize emails", "Summarize: {input}", mock.MatchedBy(func(corpus string) bool {
		return corpus != ""
	})).Return(proposal, nil)
	f.sessions.On("UpdateStage", mock.Anything, "ss_1", models.StageAdapting).Return(nil)

	got, err := f.service.BeginAdapt(ctx, "ss_1")

	assert.NoError(t, err)
	assert.Equal(t, proposal, got)

	parked, err := f.service.PendingProposal("ss_1")
	assert.NoError(t, err)
	assert.Equal(t, proposal, parked)
}

func TestWorkflowService_BeginAdapt_SecondCallFailsWhilePending(t *testing.T) {
	f := newWorkflowFixture()
	f.stubSession(models.StageReviewing)

	f.service.pending["ss_1"] = &pendingProposal{
		proposal:      &models.MutationProposal{NewPrompt: "p"},
		baseVersionID: "sv_1",
	}

	_, err := f.service.BeginAdapt(context.Background(), "ss_1")

	assert.ErrorIs(t, err, domain.ErrProposalPending)
}

func TestWorkflowService_BeginAdapt_SecondCallAfterStagePersisted(t *testing.T) {
	f := newWorkflowFixture()
	session := f.stubSession(models.StageReviewing)
	ctx := context.Background()

	v1 := models.NewPromptVersion("sv_1", "ss_1", 1, "Summarize: {input}", nil, "", models.VersionStatusAccepted)
	f.versions.On("GetBySession", mock.Anything, "ss_1").Return([]*models.PromptVersion{v1}, nil)
	f.results.On("CountJudgedByVersion", mock.Anything, "sv_1").Return(1, nil)
	f.runner.On("FeedbackItems", mock.Anything, "sv_1").Return([]refine.FeedbackItem{
		{InputContent: "in", Output: "out", IsGood: false, Reason: "too long"},
	}, nil)
	f.proposer.On("Propose", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&models.MutationProposal{NewPrompt: "p2", Explanation: "why"}, nil)
	// the stage actually persists, as it would against a real database
	f.sessions.On("UpdateStage", mock.Anything, "ss_1", models.StageAdapting).
		Run(func(args mock.Arguments) { session.Stage = models.StageAdapting }).
		Return(nil)

	_, err := f.service.BeginAdapt(ctx, "ss_1")
	assert.NoError(t, err)

	_, err = f.service.BeginAdapt(ctx, "ss_1")

	assert.ErrorIs(t, err, domain.ErrProposalPending)
}

func TestWorkflowService_BeginAdapt_FailsWhileBatchInFlight(t *testing.T) {
	f := newWorkflowFixture()
	f.stubSession(models.StageReviewing)

	f.service.batchInFlight["ss_1"] = true

	_, err := f.service.BeginAdapt(context.Background(), "ss_1")

	assert.ErrorIs(t, err, domain.ErrBatchInFlight)
}

func TestWorkflowService_Accept_CommitsAndStartsComparison(t *testing.T) {
	f := newWorkflowFixture()
	f.stubSession(models.StageAdapting)
	ctx := context.Background()

	v1 := models.NewPromptVersion("sv_1", "ss_1", 1, "old prompt", nil, "", models.VersionStatusAccepted)
	f.service.pending["ss_1"] = &pendingProposal{
		proposal:      &models.MutationProposal{NewPrompt: "new prompt", Explanation: "why"},
		baseVersionID: "sv_1",
	}

	f.versions.On("GetByID", mock.Anything, "sv_1").Return(v1, nil)
	f.versions.On("GetNextVersionNumber", mock.Anything, "ss_1").Return(2, nil)
	f.versions.On("Create", mock.Anything, mock.MatchedBy(func(v *models.PromptVersion) bool {
		return v.VersionNumber == 2 &&
			v.PromptText == "new prompt" &&
			v.Status == models.VersionStatusAccepted &&
			v.ParentVersionID != nil && *v.ParentVersionID == "sv_1" &&
			v.MutationExplanation == "why"
	})).Return(nil)
	f.sessions.On("UpdateStage", mock.Anything, "ss_1", models.StageComparing).Return(nil)

	// the comparison replays only inputs that completed under the old version
	failed := models.NewFailedRunResult("sr_2", "si_2", "sv_1", 10)
	completed := models.NewRunResult("sr_1", "si_1", "sv_1", "out", 10, 5)
	f.results.On("GetByVersion", mock.Anything, "sv_1").Return([]*models.RunResult{completed, failed}, nil)

	run := &ComparisonRun{}
	f.runner.On("ExecuteComparison", mock.Anything, "sv_1", mock.Anything, []string{"si_1"}).Return(run, nil)

	version, got, err := f.service.Accept(ctx, "ss_1")

	assert.NoError(t, err)
	assert.Equal(t, 2, version.VersionNumber)
	assert.Equal(t, run, got)
	assert.Empty(t, f.service.pending)
	f.versions.AssertExpectations(t)
	f.runner.AssertExpectations(t)
}

func TestWorkflowService_AcceptEdited_SupersedesProposalText(t *testing.T) {
	f := newWorkflowFixture()
	f.stubSession(models.StageAdapting)
	ctx := context.Background()

	v1 := models.NewPromptVersion("sv_1", "ss_1", 1, "old prompt", nil, "", models.VersionStatusAccepted)
	f.service.pending["ss_1"] = &pendingProposal{
		proposal:      &models.MutationProposal{NewPrompt: "proposed text", Explanation: "why"},
		baseVersionID: "sv_1",
	}

	f.versions.On("GetByID", mock.Anything, "sv_1").Return(v1, nil)
	f.versions.On("GetNextVersionNumber", mock.Anything, "ss_1").Return(2, nil)
	f.versions.On("Create", mock.Anything, mock.MatchedBy(func(v *models.PromptVersion) bool {
		return v.PromptText == "hand-tuned text" &&
			v.ParentVersionID != nil && *v.ParentVersionID == "sv_1"
	})).Return(nil)
	f.sessions.On("UpdateStage", mock.Anything, "ss_1", models.StageComparing).Return(nil)
	f.results.On("GetByVersion", mock.Anything, "sv_1").Return([]*models.RunResult{
		models.NewRunResult("sr_1", "si_1", "sv_1", "out", 10, 5),
	}, nil)
	f.runner.On("ExecuteComparison", mock.Anything, "sv_1", mock.Anything, []string{"si_1"}).Return(&ComparisonRun{}, nil)

	version, _, err := f.service.AcceptEdited(ctx, "ss_1", "hand-tuned text")

	assert.NoError(t, err)
	assert.Equal(t, "hand-tuned text", version.PromptText)
}

func TestWorkflowService_Accept_NoPendingProposal(t *testing.T) {
	f := newWorkflowFixture()
	f.stubSession(models.StageAdapting)

	_, _, err := f.service.Accept(context.Background(), "ss_1")

	assert.ErrorIs(t, err, domain.ErrNoProposalPending)
}

func TestWorkflowService_Reject_CommitsRejectedAndReturnsToReviewing(t *testing.T) {
	f := newWorkflowFixture()
	f.stubSession(models.StageAdapting)
	ctx := context.Background()

	v1 := models.NewPromptVersion("sv_1", "ss_1", 1, "old prompt", nil, "", models.VersionStatusAccepted)
	f.service.pending["ss_1"] = &pendingProposal{
		proposal:      &models.MutationProposal{NewPrompt: "rejected text", Explanation: "why"},
		baseVersionID: "sv_1",
	}

	f.versions.On("GetByID", mock.Anything, "sv_1").Return(v1, nil)
	f.versions.On("GetNextVersionNumber", mock.Anything, "ss_1").Return(2, nil)
	f.versions.On("Create", mock.Anything, mock.MatchedBy(func(v *models.PromptVersion) bool {
		return v.Status == models.VersionStatusRejected && v.PromptText == "rejected text"
	})).Return(nil)
	f.sessions.On("UpdateStage", mock.Anything, "ss_1", models.StageReviewing).Return(nil)

	version, err := f.service.Reject(ctx, "ss_1")

	assert.NoError(t, err)
	assert.Equal(t, models.VersionStatusRejected, version.Status)
	assert.Empty(t, f.service.pending)
	f.versions.AssertExpectations(t)
	f.sessions.AssertExpectations(t)
}

func TestWorkflowService_KeepNew_SelectsFreshBatch(t *testing.T) {
	f := newWorkflowFixture()
	f.stubSession(models.StageComparing)
	f.stubInputs("si_1", "si_2", "si_3")
	ctx := context.Background()

	f.service.comparing["ss_1"] = &comparisonState{oldVersionID: "sv_1", newVersionID: "sv_2"}

	// si_1 was already run under the new version during comparison
	existing := models.NewRunResult("sr_1", "si_1", "sv_2", "out", 10, 5)
	f.results.On("GetByInputAndVersion", mock.Anything, "si_1", "sv_2").Return(existing, nil)
	f.results.On("GetByInputAndVersion", mock.Anything, "si_2", "sv_2").Return(nil, pgx.ErrNoRows)
	f.results.On("GetByInputAndVersion", mock.Anything, "si_3", "sv_2").Return(nil, pgx.ErrNoRows)

	batch := []*models.RunResult{
		models.NewRunResult("sr_2", "si_2", "sv_2", "out", 10, 5),
		models.NewRunResult("sr_3", "si_3", "sv_2", "out", 10, 5),
	}
	f.runner.On("ExecuteBatch", mock.Anything, "sv_2", []string{"si_2", "si_3"}).Return(batch, nil)
	f.sessions.On("UpdateStage", mock.Anything, "ss_1", models.StageReviewing).Return(nil)

	results, err := f.service.KeepNew(ctx, "ss_1")

	assert.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Empty(t, f.service.comparing)
	f.runner.AssertExpectations(t)
}

func TestWorkflowService_KeepNew_AllInputsAlreadyReviewed(t *testing.T) {
	f := newWorkflowFixture()
	f.stubSession(models.StageComparing)
	f.stubInputs("si_1", "si_2")
	ctx := context.Background()

	f.service.comparing["ss_1"] = &comparisonState{oldVersionID: "sv_1", newVersionID: "sv_2"}

	// the comparison already ran every input under the new version
	f.results.On("GetByInputAndVersion", mock.Anything, "si_1", "sv_2").
		Return(models.NewRunResult("sr_1", "si_1", "sv_2", "out", 10, 5), nil)
	f.results.On("GetByInputAndVersion", mock.Anything, "si_2", "sv_2").
		Return(models.NewRunResult("sr_2", "si_2", "sv_2", "out", 10, 5), nil)
	f.sessions.On("UpdateStage", mock.Anything, "ss_1", models.StageReviewing).Return(nil)

	results, err := f.service.KeepNew(ctx, "ss_1")

	assert.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, f.service.comparing)
	f.runner.AssertNotCalled(t, "ExecuteBatch", mock.Anything, mock.Anything, mock.Anything)
	f.sessions.AssertExpectations(t)
}

func TestWorkflowService_KeepNew_NoComparisonInProgress(t *testing.T) {
	f := newWorkflowFixture()
	f.stubSession(models.StageComparing)

	_, err := f.service.KeepNew(context.Background(), "ss_1")

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestWorkflowService_Revert_RestoresOldVersionViaPassThrough(t *testing.T) {
	f := newWorkflowFixture()
	f.stubSession(models.StageComparing)
	f.stubInputs("si_1")
	ctx := context.Background()

	v1 := models.NewPromptVersion("sv_1", "ss_1", 1, "old prompt", nil, "", models.VersionStatusAccepted)
	v2 := models.NewPromptVersion("sv_2", "ss_1", 2, "new prompt", strPtr("sv_1"), "", models.VersionStatusAccepted)
	f.service.comparing["ss_1"] = &comparisonState{oldVersionID: "sv_1", newVersionID: "sv_2"}

	f.versions.On("GetByID", mock.Anything, "sv_1").Return(v1, nil)
	f.versions.On("GetBySession", mock.Anything, "ss_1").Return([]*models.PromptVersion{v1, v2}, nil)
	f.versions.On("GetNextVersionNumber", mock.Anything, "ss_1").Return(3, nil)
	f.versions.On("Create", mock.Anything, mock.MatchedBy(func(v *models.PromptVersion) bool {
		return v.VersionNumber == 3 &&
			v.PromptText == "old prompt" &&
			v.Status == models.VersionStatusAccepted &&
			v.ParentVersionID != nil && *v.ParentVersionID == "sv_1"
	})).Return(nil)

	f.results.On("GetByInputAndVersion", mock.Anything, "si_1", mock.Anything).Return(nil, pgx.ErrNoRows)
	f.runner.On("ExecuteBatch", mock.Anything, mock.Anything, []string{"si_1"}).Return([]*models.RunResult{
		models.NewRunResult("sr_1", "si_1", "sv_3", "out", 10, 5),
	}, nil)
	f.sessions.On("UpdateStage", mock.Anything, "ss_1", models.StageReviewing).Return(nil)

	restored, results, err := f.service.Revert(ctx, "ss_1")

	assert.NoError(t, err)
	assert.Equal(t, "old prompt", restored.PromptText)
	assert.Equal(t, 3, restored.VersionNumber)
	assert.Len(t, results, 1)
	assert.Empty(t, f.service.comparing)
	f.versions.AssertExpectations(t)
}

func TestWorkflowService_Finish_IsTerminal(t *testing.T) {
	f := newWorkflowFixture()
	session := f.stubSession(models.StageReviewing)
	ctx := context.Background()

	f.service.pending["ss_1"] = &pendingProposal{proposal: &models.MutationProposal{}, baseVersionID: "sv_1"}
	f.sessions.On("Update", mock.Anything, mock.MatchedBy(func(s *models.Session) bool {
		return s.Stage == models.StageDone && s.Status == models.SessionStatusCompleted
	})).Return(nil)

	err := f.service.Finish(ctx, "ss_1")

	assert.NoError(t, err)
	assert.True(t, session.IsTerminal())
	assert.Empty(t, f.service.pending)

	// no transition is allowed out of Done
	err = f.service.Finish(ctx, "ss_1")
	assert.ErrorIs(t, err, domain.ErrSessionDone)

	_, berr := f.service.BeginAdapt(ctx, "ss_1")
	assert.ErrorIs(t, berr, domain.ErrSessionDone)
}

func TestWorkflowService_ProposalDiff_RendersAgainstBaseVersion(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	v1 := models.NewPromptVersion("sv_1", "ss_1", 1, "line one\nline two", nil, "", models.VersionStatusAccepted)
	f.versions.On("GetByID", mock.Anything, "sv_1").Return(v1, nil)
	f.service.pending["ss_1"] = &pendingProposal{
		proposal:      &models.MutationProposal{NewPrompt: "line one\nline two changed"},
		baseVersionID: "sv_1",
	}

	lines, err := f.service.ProposalDiff(ctx, "ss_1")

	assert.NoError(t, err)
	assert.Equal(t, "line one\nline two changed", refine.ReconstructNew(lines))
	assert.Equal(t, "line one\nline two", refine.ReconstructOld(lines))
}
