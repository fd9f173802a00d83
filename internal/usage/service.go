package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/supportiq-platform/supportiq/internal/config"
	"github.com/supportiq-platform/supportiq/internal/events"
	"github.com/supportiq-platform/supportiq/internal/metrics"
)

// Service is the credit ledger. It answers "may this user spend now", records
// spend after completed paid work, and keeps the billing cycle current.
//
// The pre-check and the increment are two separate store round trips with no
// reservation in between: two concurrent operations can both pass the check
// and jointly overshoot the limit. The row is last-write-wins.
type Service struct {
	repo  Repository
	cfg   config.UsageConfig
	costs Costs

	// audit publishes denial events when the event bus is configured.
	audit *events.Publisher

	// now is time.Now outside of tests.
	now func() time.Time
}

// SetAuditPublisher enables denial events on the audit stream. With a nil
// publisher denials stay log-and-metrics only.
func (s *Service) SetAuditPublisher(p *events.Publisher) {
	s.audit = p
}

func NewService(repo Repository, cfg config.UsageConfig) *Service {
	return &Service{
		repo: repo,
		cfg:  cfg,
		costs: Costs{
			Analysis:      cfg.AnalysisCost,
			Transcription: cfg.TranscriptionCost,
			ChatMessage:   cfg.ChatMessageCost,
		},
		now: time.Now,
	}
}

// Costs returns the immutable per-operation price list.
func (s *Service) Costs() Costs {
	return s.costs
}

// defaultRecord synthesizes the record a user has before their first spend.
// It is not persisted; the first increment writes it.
func (s *Service) defaultRecord(userID uuid.UUID) *UsageRecord {
	return &UsageRecord{
		UserID:       userID,
		MonthlyLimit: s.cfg.DefaultMonthlyLimit,
		ResetDate:    s.now().AddDate(0, 1, 0),
	}
}

// Get returns the user's current usage, rolling the billing cycle forward
// first if it has expired. Store read failures are returned as errors, never
// silently replaced with a fresh default record.
//
// If rollover is due but persisting it fails, the pre-rollover record is
// returned together with ErrRolloverFailed so callers keep billing against
// real numbers instead of a client-side zero.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*UsageRecord, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	rec, err := s.repo.Get(readCtx, userID)
	cancel()

	switch {
	case errors.Is(err, ErrNotFound):
		return s.defaultRecord(userID), nil
	case err != nil:
		return nil, err
	}

	now := s.now()
	if rec.ResetDate.After(now) {
		return rec, nil
	}

	// Cycle expired. Advance one calendar month at a time until the reset
	// date is in the future again. A single one-month jump could still land
	// in the past after multi-month inactivity.
	pre := *rec
	for !rec.ResetDate.After(now) {
		rec.ResetDate = rec.ResetDate.AddDate(0, 1, 0)
	}
	rec.CreditsUsed = 0
	rec.AnalysesCount = 0
	rec.TranscriptionsCount = 0
	rec.ChatMessagesCount = 0

	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	err = s.repo.Upsert(writeCtx, rec)
	cancel()
	if err != nil {
		return &pre, fmt.Errorf("%w: %v", ErrRolloverFailed, err)
	}

	return rec, nil
}

// CheckLimit reports whether the user may spend cost credits right now.
// Advisory only: it reserves nothing.
//
// Fail open on store trouble: an unreachable ledger must not take the whole
// product down. A record that was read (even pre-rollover) is honored.
func (s *Service) CheckLimit(ctx context.Context, userID uuid.UUID, cost int) (bool, DenyReason) {
	rec, err := s.Get(ctx, userID)
	if err != nil && rec == nil {
		slog.Warn("usage: limit check degraded, allowing operation", "user_id", userID, "error", err)
		return true, ReasonAllowed
	}
	if err != nil {
		slog.Warn("usage: checking limit against pre-rollover record", "user_id", userID, "error", err)
	}

	if rec.Suspended {
		metrics.UsageDeniedTotal.WithLabelValues(string(ReasonSuspended)).Inc()
		s.publishDenial(userID, ReasonSuspended)
		return false, ReasonSuspended
	}
	if rec.CreditsUsed+cost > rec.MonthlyLimit {
		metrics.UsageDeniedTotal.WithLabelValues(string(ReasonLimitExceeded)).Inc()
		s.publishDenial(userID, ReasonLimitExceeded)
		return false, ReasonLimitExceeded
	}
	return true, ReasonAllowed
}

// publishDenial emits a usage_denied audit event off the request path. A
// denial is already answered by the time this runs, so failures only log.
func (s *Service) publishDenial(userID uuid.UUID, reason DenyReason) {
	if s.audit == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ev := events.AuditEvent{
			ActorUserID:  userID,
			TargetUserID: userID,
			EventType:    events.EventUsageDenied,
			Severity:     "warn",
			ResourceType: "usage_record",
			ResourceID:   userID.String(),
			Details:      string(reason),
			Timestamp:    time.Now(),
		}
		if err := s.audit.PublishAuditEvent(ctx, ev); err != nil {
			slog.Warn("usage: publishing denial event", "user_id", userID, "error", err)
		}
	}()
}

// Increment records a completed spend: cost is added to credits_used and the
// matching per-operation counter goes up by one. The whole record is written
// back, so unrelated fields survive the upsert.
//
// Metering is best-effort by contract. The paid operation already happened
// by the time this runs, so every failure here is logged and swallowed.
func (s *Service) Increment(ctx context.Context, userID uuid.UUID, op Operation) {
	cost := s.costs.For(op)

	rec, err := s.Get(ctx, userID)
	if rec == nil {
		slog.Warn("usage: cannot read record, spend not recorded",
			"user_id", userID, "operation", op, "error", err)
		metrics.UsageWriteFailuresTotal.Inc()
		return
	}

	rec.CreditsUsed += cost
	switch op {
	case OpAnalysis:
		rec.AnalysesCount++
	case OpTranscription:
		rec.TranscriptionsCount++
	case OpChat:
		rec.ChatMessagesCount++
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	err = s.repo.Upsert(writeCtx, rec)
	cancel()
	if err != nil {
		if errors.Is(err, ErrSchemaMissing) {
			slog.Warn("usage: table missing, spend not recorded", "user_id", userID, "operation", op)
		} else {
			slog.Error("usage: persisting spend failed", "user_id", userID, "operation", op, "error", err)
		}
		metrics.UsageWriteFailuresTotal.Inc()
		return
	}

	metrics.CreditsSpentTotal.WithLabelValues(string(op)).Add(float64(cost))
}

// SetLimit changes the user's monthly ceiling. Read-merge-write keeps every
// sibling field intact.
func (s *Service) SetLimit(ctx context.Context, userID uuid.UUID, newLimit int) (*UsageRecord, error) {
	if newLimit < 1 {
		return nil, fmt.Errorf("monthly limit must be positive, got %d", newLimit)
	}

	rec, err := s.Get(ctx, userID)
	if err != nil && rec == nil {
		return nil, err
	}
	rec.MonthlyLimit = newLimit

	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	if err := s.repo.Upsert(writeCtx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ResetCycle zeroes all counters and starts a fresh 30-day cycle.
// Suspension is a separate administrative axis and survives the reset.
func (s *Service) ResetCycle(ctx context.Context, userID uuid.UUID) (*UsageRecord, error) {
	rec, err := s.Get(ctx, userID)
	if err != nil && rec == nil {
		return nil, err
	}

	rec.CreditsUsed = 0
	rec.AnalysesCount = 0
	rec.TranscriptionsCount = 0
	rec.ChatMessagesCount = 0
	rec.ResetDate = s.now().Add(30 * 24 * time.Hour)

	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	if err := s.repo.Upsert(writeCtx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ToggleSuspend flips the hard consumption block for a user.
func (s *Service) ToggleSuspend(ctx context.Context, userID uuid.UUID) (*UsageRecord, error) {
	rec, err := s.Get(ctx, userID)
	if err != nil && rec == nil {
		return nil, err
	}

	rec.Suspended = !rec.Suspended

	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	if err := s.repo.Upsert(writeCtx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns usage records across all users for the admin console.
func (s *Service) List(ctx context.Context, params ListParams) ([]*UsageRecord, int64, error) {
	offset := (params.Page - 1) * params.PageSize

	readCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.repo.List(readCtx, params.PageSize, offset)
}
