package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, row *AnalysisRow) error
	GetByID(ctx context.Context, id uuid.UUID) (*AnalysisRow, error)
	ListByTranscript(ctx context.Context, transcriptID uuid.UUID) ([]*AnalysisRow, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, row *AnalysisRow) error {
	query := `
		INSERT INTO analyses (id, transcript_id, rubric_id, owner_user_id, overall_score, criterion_scores, summary, coaching_notes, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		row.ID, row.TranscriptID, row.RubricID, row.OwnerUserID,
		row.OverallScore, row.CriterionScores, row.Summary,
		row.CoachingNotes, row.Model, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting analysis: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*AnalysisRow, error) {
	query := `
		SELECT id, transcript_id, rubric_id, owner_user_id, overall_score, criterion_scores, summary, coaching_notes, model, created_at
		FROM analyses
		WHERE id = $1`

	row := &AnalysisRow{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&row.ID, &row.TranscriptID, &row.RubricID, &row.OwnerUserID,
		&row.OverallScore, &row.CriterionScores, &row.Summary,
		&row.CoachingNotes, &row.Model, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying analysis by id: %w", err)
	}
	return row, nil
}

func (r *postgresRepository) ListByTranscript(ctx context.Context, transcriptID uuid.UUID) ([]*AnalysisRow, error) {
	query := `
		SELECT id, transcript_id, rubric_id, owner_user_id, overall_score, criterion_scores, summary, coaching_notes, model, created_at
		FROM analyses
		WHERE transcript_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, transcriptID)
	if err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	defer rows.Close()

	var out []*AnalysisRow
	for rows.Next() {
		row := &AnalysisRow{}
		err := rows.Scan(
			&row.ID, &row.TranscriptID, &row.RubricID, &row.OwnerUserID,
			&row.OverallScore, &row.CriterionScores, &row.Summary,
			&row.CoachingNotes, &row.Model, &row.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning analysis row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
