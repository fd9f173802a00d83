package rubrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, row *RubricRow) error
	GetByID(ctx context.Context, id uuid.UUID) (*RubricRow, error)
	List(ctx context.Context) ([]*RubricRow, error)
	Update(ctx context.Context, row *RubricRow) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, row *RubricRow) error {
	query := `
		INSERT INTO rubrics (id, name, description, criteria, is_default, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		row.ID, row.Name, row.Description, row.Criteria,
		row.IsDefault, row.CreatedBy, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting rubric: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*RubricRow, error) {
	query := `
		SELECT id, name, description, criteria, is_default, created_by, created_at, updated_at
		FROM rubrics
		WHERE id = $1`

	row := &RubricRow{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&row.ID, &row.Name, &row.Description, &row.Criteria,
		&row.IsDefault, &row.CreatedBy, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying rubric by id: %w", err)
	}
	return row, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]*RubricRow, error) {
	query := `
		SELECT id, name, description, criteria, is_default, created_by, created_at, updated_at
		FROM rubrics
		ORDER BY is_default DESC, created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing rubrics: %w", err)
	}
	defer rows.Close()

	var out []*RubricRow
	for rows.Next() {
		row := &RubricRow{}
		err := rows.Scan(
			&row.ID, &row.Name, &row.Description, &row.Criteria,
			&row.IsDefault, &row.CreatedBy, &row.CreatedAt, &row.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning rubric row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *postgresRepository) Update(ctx context.Context, row *RubricRow) error {
	query := `
		UPDATE rubrics
		SET name = $2, description = $3, criteria = $4, updated_at = $5
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		row.ID, row.Name, row.Description, row.Criteria, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating rubric: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("rubric not found")
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// The seeded default rubric is protected at the service layer.
	query := `DELETE FROM rubrics WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting rubric: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("rubric not found")
	}
	return nil
}
