package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/faisalx96/saqal/internal/adapters/metrics"
	"github.com/faisalx96/saqal/internal/adapters/retry"
	"github.com/faisalx96/saqal/internal/domain"
	"github.com/faisalx96/saqal/internal/domain/models"
	"github.com/faisalx96/saqal/internal/ports"
	"github.com/faisalx96/saqal/internal/refine"
)

// DefaultBatchWorkers bounds completion call parallelism within a batch.
const DefaultBatchWorkers = 4

// RunService executes prompt versions against test inputs and records the
// human judgments on the outputs. A batch tolerates individual completion
// failures: the failing input gets a Failed result and the rest proceed.
// Authentication errors are the exception; they would fail every remaining
// call the same way, so they abort the batch immediately.
type RunService struct {
	sessions    ports.SessionRepository
	inputs      ports.InputRepository
	versions    ports.PromptVersionRepository
	results     ports.RunResultRepository
	completions ports.CompletionService
	idGen       ports.IDGenerator
	backoff     retry.BackoffConfig
	workers     int
	logger      *slog.Logger
}

func NewRunService(
	sessions ports.SessionRepository,
	inputs ports.InputRepository,
	versions ports.PromptVersionRepository,
	results ports.RunResultRepository,
	completions ports.CompletionService,
	idGen ports.IDGenerator,
	logger *slog.Logger,
) *RunService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunService{
		sessions:    sessions,
		inputs:      inputs,
		versions:    versions,
		results:     results,
		completions: completions,
		idGen:       idGen,
		backoff:     retry.DefaultConfig(),
		workers:     DefaultBatchWorkers,
		logger:      logger,
	}
}

// SetWorkers overrides the number of parallel completion calls per batch.
func (s *RunService) SetWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// ExecuteBatch runs one prompt version over the given inputs with bounded
// parallelism and persists one result per input. Inputs that already have
// a result for this version are returned as-is rather than re-executed.
func (s *RunService) ExecuteBatch(ctx context.Context, versionID string, inputIDs []string) ([]*models.RunResult, error) {
	if err := ValidateID(versionID, "version"); err != nil {
		return nil, err
	}
	if len(inputIDs) == 0 {
		return nil, domain.NewDomainError(domain.ErrNoInputs, "batch requires at least one input")
	}

	version, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrVersionNotFound, "version "+versionID)
	}
	session, err := s.sessions.GetByID(ctx, version.SessionID)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrSessionNotFound, "session "+version.SessionID)
	}

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		results  = make([]*models.RunResult, len(inputIDs))
		fatalErr error
		sem      = make(chan struct{}, s.workers)
	)

	for i, inputID := range inputIDs {
		wg.Add(1)
		go func(i int, inputID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if batchCtx.Err() != nil {
				return
			}

			result, err := s.runOne(batchCtx, session, version, inputID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if fatalErr == nil {
					fatalErr = err
				}
				cancel()
				return
			}
			results[i] = result
		}(i, inputID)
	}
	wg.Wait()

	if fatalErr != nil {
		metrics.BatchRunsTotal.WithLabelValues("aborted").Inc()
		return nil, fatalErr
	}

	completed := make([]*models.RunResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			completed = append(completed, r)
		}
	}
	metrics.BatchRunsTotal.WithLabelValues("completed").Inc()
	return completed, nil
}

// runOne executes a single input against one version. Retryable provider
// failures are retried with bounded backoff here; after retries are
// exhausted a Failed result is recorded instead of failing the batch.
// Only auth errors propagate as errors.
func (s *RunService) runOne(ctx context.Context, session *models.Session, version *models.PromptVersion, inputID string) (*models.RunResult, error) {
	input, err := s.inputs.GetByID(ctx, inputID)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrInputNotFound, "input "+inputID)
	}
	if input.SessionID != session.ID {
		return nil, domain.NewDomainError(domain.ErrInvalidInput, "input "+inputID+" belongs to another session")
	}

	if existing, err := s.results.GetByInputAndVersion(ctx, inputID, version.ID); err == nil && existing != nil {
		return existing, nil
	}

	prompt := refine.RenderPrompt(version.PromptText, input.Content)
	started := time.Now()

	var completion *ports.CompletionResult
	err = retry.WithBackoff(ctx, s.backoff, func() error {
		var callErr error
		completion, callErr = s.completions.Complete(ctx, ports.CompletionRequest{
			Prompt:      prompt,
			Temperature: session.ModelTemperature,
		})
		return callErr
	})
	if err != nil {
		var compErr *domain.CompletionError
		if errors.As(err, &compErr) && compErr.Kind == domain.CompletionErrorAuth {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		s.logger.Warn("completion failed, recording failed result",
			"input_id", inputID, "version_id", version.ID, "error", err)
		failed := models.NewFailedRunResult(s.idGen.GenerateResultID(), inputID, version.ID, time.Since(started).Milliseconds())
		if createErr := s.results.Create(ctx, failed); createErr != nil {
			return nil, domain.NewDomainError(createErr, "failed to record failed result")
		}
		metrics.RunResultsTotal.Inc()
		return failed, nil
	}

	result := models.NewRunResult(
		s.idGen.GenerateResultID(),
		inputID,
		version.ID,
		completion.Text,
		completion.LatencyMs,
		completion.TokensUsed,
	)
	if err := s.results.Create(ctx, result); err != nil {
		return nil, domain.NewDomainError(err, "failed to record result")
	}
	metrics.RunResultsTotal.Inc()
	return result, nil
}

// ComparisonRun holds the paired outputs of an old and a new version over
// the same inputs.
type ComparisonRun struct {
	OldResults []*models.RunResult `json:"old_results"`
	NewResults []*models.RunResult `json:"new_results"`
}

// ExecuteComparison runs two versions over the same inputs so the outputs
// can be judged side by side.
func (s *RunService) ExecuteComparison(ctx context.Context, oldVersionID, newVersionID string, inputIDs []string) (*ComparisonRun, error) {
	oldResults, err := s.ExecuteBatch(ctx, oldVersionID, inputIDs)
	if err != nil {
		return nil, err
	}
	newResults, err := s.ExecuteBatch(ctx, newVersionID, inputIDs)
	if err != nil {
		return nil, err
	}
	return &ComparisonRun{OldResults: oldResults, NewResults: newResults}, nil
}

// SetFeedback records the human verdict on a result, exactly once. Reason
// and correction are only meaningful for bad verdicts; they feed the next
// feedback corpus.
func (s *RunService) SetFeedback(ctx context.Context, resultID, verdict, reason, correction string) (*models.RunResult, error) {
	if err := ValidateID(resultID, "result"); err != nil {
		return nil, err
	}
	if !models.ValidFeedback(verdict) {
		return nil, domain.NewDomainError(domain.ErrInvalidFeedback, "verdict must be good or bad, got "+verdict)
	}

	result, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrResultNotFound, "result "+resultID)
	}
	if result.Judged() {
		return nil, domain.NewDomainError(domain.ErrFeedbackAlreadySet, "result "+resultID)
	}
	if result.Failed {
		return nil, domain.NewDomainError(domain.ErrInvalidFeedback, "failed results cannot be judged")
	}

	result.HumanFeedback = verdict
	if verdict == models.FeedbackBad {
		result.FeedbackReason = reason
		result.HumanCorrection = correction
	}
	if err := s.results.Update(ctx, result); err != nil {
		return nil, domain.NewDomainError(err, "failed to record feedback")
	}
	return result, nil
}

// SetComparison records the side-by-side outcome on a new-version result,
// exactly once, same as SetFeedback.
func (s *RunService) SetComparison(ctx context.Context, resultID, outcome string) (*models.RunResult, error) {
	if err := ValidateID(resultID, "result"); err != nil {
		return nil, err
	}
	if !models.ValidComparison(outcome) {
		return nil, domain.NewDomainError(domain.ErrInvalidComparison, "outcome must be better, worse or same, got "+outcome)
	}

	result, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrResultNotFound, "result "+resultID)
	}
	if result.ComparisonResult != "" {
		return nil, domain.NewDomainError(domain.ErrFeedbackAlreadySet, "comparison already recorded for result "+resultID)
	}
	if result.Failed {
		return nil, domain.NewDomainError(domain.ErrInvalidComparison, "failed results cannot be compared")
	}
	result.ComparisonResult = outcome
	if err := s.results.Update(ctx, result); err != nil {
		return nil, domain.NewDomainError(err, "failed to record comparison")
	}
	return result, nil
}

// ResultsForVersion returns all recorded results for one version.
func (s *RunService) ResultsForVersion(ctx context.Context, versionID string) ([]*models.RunResult, error) {
	if err := ValidateID(versionID, "version"); err != nil {
		return nil, err
	}
	results, err := s.results.GetByVersion(ctx, versionID)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to load results")
	}
	return results, nil
}

// FeedbackItems pairs a version's judged results with their input content
// for aggregation into a reflection corpus. Order follows the stored
// result order, never the order judgments arrived in.
func (s *RunService) FeedbackItems(ctx context.Context, versionID string) ([]refine.FeedbackItem, error) {
	results, err := s.ResultsForVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}

	items := make([]refine.FeedbackItem, 0, len(results))
	for _, result := range results {
		if !result.Judged() {
			continue
		}
		input, err := s.inputs.GetByID(ctx, result.InputID)
		if err != nil {
			return nil, domain.NewDomainError(domain.ErrInputNotFound, "input "+result.InputID)
		}
		if item, ok := refine.FeedbackItemFromResult(result, input.Content); ok {
			items = append(items, item)
		}
	}
	return items, nil
}
