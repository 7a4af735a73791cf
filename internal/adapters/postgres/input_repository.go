package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/faisalx96/saqal/internal/domain/models"
)

type InputRepository struct {
	BaseRepository
}

func NewInputRepository(pool *pgxpool.Pool) *InputRepository {
	return &InputRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *InputRepository) Create(ctx context.Context, input *models.Input) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO saqal_inputs (
			id, session_id, content, ground_truth, metadata, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)`

	_, err := r.conn(ctx).Exec(ctx, query,
		input.ID,
		input.SessionID,
		input.Content,
		nullString(input.GroundTruth),
		nullString(input.Metadata),
		input.CreatedAt,
	)

	return err
}

func (r *InputRepository) GetByID(ctx context.Context, id string) (*models.Input, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, session_id, content, ground_truth, metadata, created_at
		FROM saqal_inputs
		WHERE id = $1 AND deleted_at IS NULL`

	return r.scanInput(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *InputRepository) Update(ctx context.Context, input *models.Input) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE saqal_inputs
		SET content = $1, ground_truth = $2, metadata = $3
		WHERE id = $4 AND deleted_at IS NULL`

	result, err := r.conn(ctx).Exec(ctx, query,
		input.Content,
		nullString(input.GroundTruth),
		nullString(input.Metadata),
		input.ID,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

func (r *InputRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE saqal_inputs
		SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	_, err := r.conn(ctx).Exec(ctx, query, id)
	return err
}

func (r *InputRepository) GetBySession(ctx context.Context, sessionID string) ([]*models.Input, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, session_id, content, ground_truth, metadata, created_at
		FROM saqal_inputs
		WHERE session_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC`

	rows, err := r.conn(ctx).Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanInputs(rows)
}

func (r *InputRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM saqal_inputs
		WHERE session_id = $1 AND deleted_at IS NULL`

	var count int
	err := r.conn(ctx).QueryRow(ctx, query, sessionID).Scan(&count)
	return count, err
}

func (r *InputRepository) scanInput(row pgx.Row) (*models.Input, error) {
	var input models.Input
	var groundTruth, metadata sql.NullString

	err := row.Scan(
		&input.ID,
		&input.SessionID,
		&input.Content,
		&groundTruth,
		&metadata,
		&input.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}

	input.GroundTruth = getString(groundTruth)
	input.Metadata = getString(metadata)
	return &input, nil
}

func (r *InputRepository) scanInputs(rows pgx.Rows) ([]*models.Input, error) {
	var inputs []*models.Input

	for rows.Next() {
		var input models.Input
		var groundTruth, metadata sql.NullString

		err := rows.Scan(
			&input.ID,
			&input.SessionID,
			&input.Content,
			&groundTruth,
			&metadata,
			&input.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		input.GroundTruth = getString(groundTruth)
		input.Metadata = getString(metadata)
		inputs = append(inputs, &input)
	}

	return inputs, rows.Err()
}

func (r *InputRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `DELETE FROM saqal_inputs WHERE session_id = $1`

	_, err := r.conn(ctx).Exec(ctx, query, sessionID)
	return err
}
