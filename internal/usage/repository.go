package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the ledger's view of the store: point read by user, full-row
// upsert, and an elevated multi-row read for the admin console.
type Repository interface {
	Get(ctx context.Context, userID uuid.UUID) (*UsageRecord, error)
	Upsert(ctx context.Context, rec *UsageRecord) error
	List(ctx context.Context, limit, offset int) ([]*UsageRecord, int64, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

// undefinedTable is the PostgreSQL error code for a missing relation.
const undefinedTable = "42P01"

func classify(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%s: %w", op, ErrSchemaMissing)
	}
	return fmt.Errorf("%s: %v: %w", op, err, ErrStoreUnavailable)
}

func (r *postgresRepository) Get(ctx context.Context, userID uuid.UUID) (*UsageRecord, error) {
	rec := &UsageRecord{}
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, credits_used, monthly_limit, analyses_count,
		        transcriptions_count, chat_messages_count, reset_date, suspended, updated_at
		 FROM usage_records WHERE user_id = $1`, userID,
	).Scan(&rec.UserID, &rec.CreditsUsed, &rec.MonthlyLimit, &rec.AnalysesCount,
		&rec.TranscriptionsCount, &rec.ChatMessagesCount, &rec.ResetDate, &rec.Suspended, &rec.UpdatedAt)
	if err != nil {
		return nil, classify("fetching usage record", err)
	}
	return rec, nil
}

// Upsert writes the complete record. Every column is carried on the conflict
// branch: the store replaces the whole row, so a partial update would zero
// the fields it omitted.
func (r *postgresRepository) Upsert(ctx context.Context, rec *UsageRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO usage_records
		   (user_id, credits_used, monthly_limit, analyses_count,
		    transcriptions_count, chat_messages_count, reset_date, suspended, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
		   credits_used = EXCLUDED.credits_used,
		   monthly_limit = EXCLUDED.monthly_limit,
		   analyses_count = EXCLUDED.analyses_count,
		   transcriptions_count = EXCLUDED.transcriptions_count,
		   chat_messages_count = EXCLUDED.chat_messages_count,
		   reset_date = EXCLUDED.reset_date,
		   suspended = EXCLUDED.suspended,
		   updated_at = NOW()`,
		rec.UserID, rec.CreditsUsed, rec.MonthlyLimit, rec.AnalysesCount,
		rec.TranscriptionsCount, rec.ChatMessagesCount, rec.ResetDate, rec.Suspended)
	if err != nil {
		return classify("upserting usage record", err)
	}
	return nil
}

func (r *postgresRepository) List(ctx context.Context, limit, offset int) ([]*UsageRecord, int64, error) {
	var totalCount int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM usage_records`).Scan(&totalCount); err != nil {
		return nil, 0, classify("counting usage records", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT user_id, credits_used, monthly_limit, analyses_count,
		        transcriptions_count, chat_messages_count, reset_date, suspended, updated_at
		 FROM usage_records ORDER BY credits_used DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, classify("listing usage records", err)
	}
	defer rows.Close()

	var records []*UsageRecord
	for rows.Next() {
		rec := &UsageRecord{}
		if err := rows.Scan(&rec.UserID, &rec.CreditsUsed, &rec.MonthlyLimit, &rec.AnalysesCount,
			&rec.TranscriptionsCount, &rec.ChatMessagesCount, &rec.ResetDate, &rec.Suspended, &rec.UpdatedAt); err != nil {
			return nil, 0, classify("scanning usage record", err)
		}
		records = append(records, rec)
	}

	return records, totalCount, nil
}
