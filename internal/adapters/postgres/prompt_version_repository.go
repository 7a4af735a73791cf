package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/faisalx96/saqal/internal/domain/models"
)

type PromptVersionRepository struct {
	BaseRepository
}

func NewPromptVersionRepository(pool *pgxpool.Pool) *PromptVersionRepository {
	return &PromptVersionRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *PromptVersionRepository) Create(ctx context.Context, version *models.PromptVersion) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO saqal_prompt_versions (
			id, session_id, version_number, prompt_text, parent_version_id,
			mutation_explanation, status, pareto_rank, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := r.conn(ctx).Exec(ctx, query,
		version.ID,
		version.SessionID,
		version.VersionNumber,
		version.PromptText,
		nullStringPtr(version.ParentVersionID),
		nullString(version.MutationExplanation),
		version.Status,
		nullIntPtr(version.ParetoRank),
		version.CreatedAt,
	)

	return err
}

func (r *PromptVersionRepository) GetByID(ctx context.Context, id string) (*models.PromptVersion, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, session_id, version_number, prompt_text, parent_version_id,
		       mutation_explanation, status, pareto_rank, created_at
		FROM saqal_prompt_versions
		WHERE id = $1`

	return r.scanVersion(r.conn(ctx).QueryRow(ctx, query, id))
}

// Update persists status and rank changes. Prompt text, parentage and the
// version number are immutable once committed and deliberately excluded.
func (r *PromptVersionRepository) Update(ctx context.Context, version *models.PromptVersion) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE saqal_prompt_versions
		SET status = $1, pareto_rank = $2, mutation_explanation = $3
		WHERE id = $4`

	result, err := r.conn(ctx).Exec(ctx, query,
		version.Status,
		nullIntPtr(version.ParetoRank),
		nullString(version.MutationExplanation),
		version.ID,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

func (r *PromptVersionRepository) GetBySession(ctx context.Context, sessionID string) ([]*models.PromptVersion, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, session_id, version_number, prompt_text, parent_version_id,
		       mutation_explanation, status, pareto_rank, created_at
		FROM saqal_prompt_versions
		WHERE session_id = $1
		ORDER BY version_number ASC`

	rows, err := r.conn(ctx).Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanVersions(rows)
}

func (r *PromptVersionRepository) GetChildren(ctx context.Context, parentVersionID string) ([]*models.PromptVersion, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, session_id, version_number, prompt_text, parent_version_id,
		       mutation_explanation, status, pareto_rank, created_at
		FROM saqal_prompt_versions
		WHERE parent_version_id = $1
		ORDER BY version_number ASC`

	rows, err := r.conn(ctx).Query(ctx, query, parentVersionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanVersions(rows)
}

func (r *PromptVersionRepository) GetNextVersionNumber(ctx context.Context, sessionID string) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT COALESCE(MAX(version_number), 0) + 1
		FROM saqal_prompt_versions
		WHERE session_id = $1`

	var next int
	err := r.conn(ctx).QueryRow(ctx, query, sessionID).Scan(&next)
	return next, err
}

func (r *PromptVersionRepository) scanVersion(row pgx.Row) (*models.PromptVersion, error) {
	var version models.PromptVersion
	var parentID, explanation sql.NullString
	var rank sql.NullInt32

	err := row.Scan(
		&version.ID,
		&version.SessionID,
		&version.VersionNumber,
		&version.PromptText,
		&parentID,
		&explanation,
		&version.Status,
		&rank,
		&version.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}

	version.ParentVersionID = getStringPtr(parentID)
	version.MutationExplanation = getString(explanation)
	version.ParetoRank = getIntPtr(rank)
	return &version, nil
}

func (r *PromptVersionRepository) scanVersions(rows pgx.Rows) ([]*models.PromptVersion, error) {
	var versions []*models.PromptVersion

	for rows.Next() {
		var version models.PromptVersion
		var parentID, explanation sql.NullString
		var rank sql.NullInt32

		err := rows.Scan(
			&version.ID,
			&version.SessionID,
			&version.VersionNumber,
			&version.PromptText,
			&parentID,
			&explanation,
			&version.Status,
			&rank,
			&version.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		version.ParentVersionID = getStringPtr(parentID)
		version.MutationExplanation = getString(explanation)
		version.ParetoRank = getIntPtr(rank)
		versions = append(versions, &version)
	}

	return versions, rows.Err()
}

func (r *PromptVersionRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `DELETE FROM saqal_prompt_versions WHERE session_id = $1`

	_, err := r.conn(ctx).Exec(ctx, query, sessionID)
	return err
}
