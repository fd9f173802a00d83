package transcripts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, row *TranscriptRow) error
	GetByID(ctx context.Context, id uuid.UUID) (*TranscriptRow, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*TranscriptRow, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, row *TranscriptRow) error {
	query := `
		INSERT INTO transcripts (id, owner_user_id, title, channel, agent_name, content, source, duration_seconds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		row.ID, row.OwnerUserID, row.Title, row.Channel,
		row.AgentName, row.Content, row.Source,
		row.DurationSeconds, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting transcript: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*TranscriptRow, error) {
	query := `
		SELECT id, owner_user_id, title, channel, agent_name, content, source, duration_seconds, created_at, updated_at, deleted_at
		FROM transcripts
		WHERE id = $1 AND deleted_at IS NULL`

	row := &TranscriptRow{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&row.ID, &row.OwnerUserID, &row.Title, &row.Channel,
		&row.AgentName, &row.Content, &row.Source,
		&row.DurationSeconds, &row.CreatedAt, &row.UpdatedAt, &row.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying transcript by id: %w", err)
	}
	return row, nil
}

func (r *postgresRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*TranscriptRow, error) {
	query := `
		SELECT id, owner_user_id, title, channel, agent_name, content, source, duration_seconds, created_at, updated_at, deleted_at
		FROM transcripts
		WHERE owner_user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing transcripts: %w", err)
	}
	defer rows.Close()

	var out []*TranscriptRow
	for rows.Next() {
		row := &TranscriptRow{}
		err := rows.Scan(
			&row.ID, &row.OwnerUserID, &row.Title, &row.Channel,
			&row.AgentName, &row.Content, &row.Source,
			&row.DurationSeconds, &row.CreatedAt, &row.UpdatedAt, &row.DeletedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning transcript row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *postgresRepository) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM transcripts WHERE owner_user_id = $1 AND deleted_at IS NULL`

	var count int64
	err := r.pool.QueryRow(ctx, query, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting transcripts: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE transcripts SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("soft deleting transcript: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("transcript not found or already deleted")
	}
	return nil
}
