package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/faisalx96/saqal/internal/domain/models"
)

type RunResultRepository struct {
	BaseRepository
}

func NewRunResultRepository(pool *pgxpool.Pool) *RunResultRepository {
	return &RunResultRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *RunResultRepository) Create(ctx context.Context, result *models.RunResult) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO saqal_run_results (
			id, input_id, prompt_version_id, output, latency_ms, tokens_used,
			human_feedback, feedback_reason, human_correction,
			comparison_result, failed, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	_, err := r.conn(ctx).Exec(ctx, query,
		result.ID,
		result.InputID,
		result.PromptVersionID,
		result.Output,
		result.LatencyMs,
		result.TokensUsed,
		nullString(result.HumanFeedback),
		nullString(result.FeedbackReason),
		nullString(result.HumanCorrection),
		nullString(result.ComparisonResult),
		result.Failed,
		result.CreatedAt,
	)

	return err
}

func (r *RunResultRepository) GetByID(ctx context.Context, id string) (*models.RunResult, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, input_id, prompt_version_id, output, latency_ms, tokens_used,
		       human_feedback, feedback_reason, human_correction,
		       comparison_result, failed, created_at
		FROM saqal_run_results
		WHERE id = $1`

	return r.scanResult(r.conn(ctx).QueryRow(ctx, query, id))
}

// Update persists the human judgment fields. Output and usage figures are
// written once at creation and never change.
func (r *RunResultRepository) Update(ctx context.Context, result *models.RunResult) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE saqal_run_results
		SET human_feedback = $1, feedback_reason = $2, human_correction = $3,
		    comparison_result = $4
		WHERE id = $5`

	tag, err := r.conn(ctx).Exec(ctx, query,
		nullString(result.HumanFeedback),
		nullString(result.FeedbackReason),
		nullString(result.HumanCorrection),
		nullString(result.ComparisonResult),
		result.ID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

func (r *RunResultRepository) GetByVersion(ctx context.Context, versionID string) ([]*models.RunResult, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, input_id, prompt_version_id, output, latency_ms, tokens_used,
		       human_feedback, feedback_reason, human_correction,
		       comparison_result, failed, created_at
		FROM saqal_run_results
		WHERE prompt_version_id = $1
		ORDER BY created_at ASC`

	rows, err := r.conn(ctx).Query(ctx, query, versionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanResults(rows)
}

func (r *RunResultRepository) GetByInputAndVersion(ctx context.Context, inputID, versionID string) (*models.RunResult, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, input_id, prompt_version_id, output, latency_ms, tokens_used,
		       human_feedback, feedback_reason, human_correction,
		       comparison_result, failed, created_at
		FROM saqal_run_results
		WHERE input_id = $1 AND prompt_version_id = $2`

	return r.scanResult(r.conn(ctx).QueryRow(ctx, query, inputID, versionID))
}

func (r *RunResultRepository) CountJudgedByVersion(ctx context.Context, versionID string) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM saqal_run_results
		WHERE prompt_version_id = $1 AND human_feedback IS NOT NULL`

	var count int
	err := r.conn(ctx).QueryRow(ctx, query, versionID).Scan(&count)
	return count, err
}

func (r *RunResultRepository) scanResult(row pgx.Row) (*models.RunResult, error) {
	var result models.RunResult
	var feedback, reason, correction, comparison sql.NullString

	err := row.Scan(
		&result.ID,
		&result.InputID,
		&result.PromptVersionID,
		&result.Output,
		&result.LatencyMs,
		&result.TokensUsed,
		&feedback,
		&reason,
		&correction,
		&comparison,
		&result.Failed,
		&result.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}

	result.HumanFeedback = getString(feedback)
	result.FeedbackReason = getString(reason)
	result.HumanCorrection = getString(correction)
	result.ComparisonResult = getString(comparison)
	return &result, nil
}

func (r *RunResultRepository) scanResults(rows pgx.Rows) ([]*models.RunResult, error) {
	var results []*models.RunResult

	for rows.Next() {
		var result models.RunResult
		var feedback, reason, correction, comparison sql.NullString

		err := rows.Scan(
			&result.ID,
			&result.InputID,
			&result.PromptVersionID,
			&result.Output,
			&result.LatencyMs,
			&result.TokensUsed,
			&feedback,
			&reason,
			&correction,
			&comparison,
			&result.Failed,
			&result.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		result.HumanFeedback = getString(feedback)
		result.FeedbackReason = getString(reason)
		result.HumanCorrection = getString(correction)
		result.ComparisonResult = getString(comparison)
		results = append(results, &result)
	}

	return results, rows.Err()
}

func (r *RunResultRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		DELETE FROM saqal_run_results
		WHERE prompt_version_id IN (
			SELECT id FROM saqal_prompt_versions WHERE session_id = $1
		)`

	_, err := r.conn(ctx).Exec(ctx, query, sessionID)
	return err
}
