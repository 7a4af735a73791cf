package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/faisalx96/saqal/internal/domain/models"
)

// FrontierRepository stores the append-only Pareto frontier log. Rows are
// only ever inserted; a frontier snapshot is the batch of rows sharing the
// most recent recorded_at for a session.
type FrontierRepository struct {
	BaseRepository
}

func NewFrontierRepository(pool *pgxpool.Pool) *FrontierRepository {
	return &FrontierRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *FrontierRepository) Append(ctx context.Context, entries []*models.FrontierEntry) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO saqal_frontier_entries (
			id, session_id, version_id, rank, recorded_at
		) VALUES (
			$1, $2, $3, $4, $5
		)`

	for _, entry := range entries {
		_, err := r.conn(ctx).Exec(ctx, query,
			entry.ID,
			entry.SessionID,
			entry.VersionID,
			entry.Rank,
			entry.RecordedAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *FrontierRepository) GetLatestBySession(ctx context.Context, sessionID string) ([]*models.FrontierEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, session_id, version_id, rank, recorded_at
		FROM saqal_frontier_entries
		WHERE session_id = $1
		  AND recorded_at = (
			SELECT MAX(recorded_at)
			FROM saqal_frontier_entries
			WHERE session_id = $1
		  )
		ORDER BY rank ASC`

	rows, err := r.conn(ctx).Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanEntries(rows)
}

func (r *FrontierRepository) GetHistoryBySession(ctx context.Context, sessionID string, limit int) ([]*models.FrontierEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, session_id, version_id, rank, recorded_at
		FROM saqal_frontier_entries
		WHERE session_id = $1
		ORDER BY recorded_at DESC, rank ASC
		LIMIT $2`

	rows, err := r.conn(ctx).Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanEntries(rows)
}

func (r *FrontierRepository) scanEntries(rows pgx.Rows) ([]*models.FrontierEntry, error) {
	var entries []*models.FrontierEntry

	for rows.Next() {
		var entry models.FrontierEntry

		err := rows.Scan(
			&entry.ID,
			&entry.SessionID,
			&entry.VersionID,
			&entry.Rank,
			&entry.RecordedAt,
		)
		if err != nil {
			return nil, err
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

func (r *FrontierRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `DELETE FROM saqal_frontier_entries WHERE session_id = $1`

	_, err := r.conn(ctx).Exec(ctx, query, sessionID)
	return err
}
