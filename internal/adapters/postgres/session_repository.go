package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/faisalx96/saqal/internal/domain/models"
)

type SessionRepository struct {
	BaseRepository
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO saqal_sessions (
			id, name, task_description, output_description,
			model_provider, model_name, model_temperature, batch_size,
			status, stage, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	_, err := r.conn(ctx).Exec(ctx, query,
		session.ID,
		session.Name,
		session.TaskDescription,
		nullString(session.OutputDescription),
		session.ModelProvider,
		session.ModelName,
		session.ModelTemperature,
		session.BatchSize,
		session.Status,
		session.Stage,
		session.CreatedAt,
		session.UpdatedAt,
	)

	return err
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, task_description, output_description,
		       model_provider, model_name, model_temperature, batch_size,
		       status, stage, created_at, updated_at
		FROM saqal_sessions
		WHERE id = $1 AND deleted_at IS NULL`

	return r.scanSession(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE saqal_sessions
		SET name = $1, task_description = $2, output_description = $3,
		    model_provider = $4, model_name = $5, model_temperature = $6,
		    batch_size = $7, status = $8, stage = $9, updated_at = NOW()
		WHERE id = $10 AND deleted_at IS NULL`

	result, err := r.conn(ctx).Exec(ctx, query,
		session.Name,
		session.TaskDescription,
		nullString(session.OutputDescription),
		session.ModelProvider,
		session.ModelName,
		session.ModelTemperature,
		session.BatchSize,
		session.Status,
		session.Stage,
		session.ID,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

func (r *SessionRepository) UpdateStage(ctx context.Context, id, stage string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE saqal_sessions
		SET stage = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL`

	result, err := r.conn(ctx).Exec(ctx, query, stage, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `DELETE FROM saqal_sessions WHERE id = $1`

	_, err := r.conn(ctx).Exec(ctx, query, id)
	return err
}

func (r *SessionRepository) List(ctx context.Context, limit, offset int) ([]*models.Session, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, task_description, output_description,
		       model_provider, model_name, model_temperature, batch_size,
		       status, stage, created_at, updated_at
		FROM saqal_sessions
		WHERE deleted_at IS NULL
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.conn(ctx).Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanSessions(rows)
}

func (r *SessionRepository) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*models.Session, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, task_description, output_description,
		       model_provider, model_name, model_temperature, batch_size,
		       status, stage, created_at, updated_at
		FROM saqal_sessions
		WHERE status = $1 AND deleted_at IS NULL
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.conn(ctx).Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanSessions(rows)
}

func (r *SessionRepository) scanSession(row pgx.Row) (*models.Session, error) {
	var session models.Session
	var outputDescription sql.NullString

	err := row.Scan(
		&session.ID,
		&session.Name,
		&session.TaskDescription,
		&outputDescription,
		&session.ModelProvider,
		&session.ModelName,
		&session.ModelTemperature,
		&session.BatchSize,
		&session.Status,
		&session.Stage,
		&session.CreatedAt,
		&session.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}

	session.OutputDescription = getString(outputDescription)
	return &session, nil
}

func (r *SessionRepository) scanSessions(rows pgx.Rows) ([]*models.Session, error) {
	var sessions []*models.Session

	for rows.Next() {
		var session models.Session
		var outputDescription sql.NullString

		err := rows.Scan(
			&session.ID,
			&session.Name,
			&session.TaskDescription,
			&outputDescription,
			&session.ModelProvider,
			&session.ModelName,
			&session.ModelTemperature,
			&session.BatchSize,
			&session.Status,
			&session.Stage,
			&session.CreatedAt,
			&session.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		session.OutputDescription = getString(outputDescription)
		sessions = append(sessions, &session)
	}

	return sessions, rows.Err()
}
