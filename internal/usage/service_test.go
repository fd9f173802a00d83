package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportiq-platform/supportiq/internal/config"
)

// fakeRepo is an in-memory Repository with fault injection.
type fakeRepo struct {
	records map[uuid.UUID]*UsageRecord
	getErr  error
	putErr  error
	puts    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[uuid.UUID]*UsageRecord)}
}

func (f *fakeRepo) Get(_ context.Context, userID uuid.UUID) (*UsageRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRepo) Upsert(_ context.Context, rec *UsageRecord) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts++
	cp := *rec
	f.records[rec.UserID] = &cp
	return nil
}

func (f *fakeRepo) List(_ context.Context, limit, offset int) ([]*UsageRecord, int64, error) {
	if f.getErr != nil {
		return nil, 0, f.getErr
	}
	var out []*UsageRecord
	for _, rec := range f.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out, int64(len(f.records)), nil
}

func testConfig() config.UsageConfig {
	return config.UsageConfig{
		DefaultMonthlyLimit: 1000,
		AnalysisCost:        10,
		TranscriptionCost:   5,
		ChatMessageCost:     1,
		StoreTimeout:        time.Second,
	}
}

func newTestService(repo Repository, now time.Time) *Service {
	svc := NewService(repo, testConfig())
	svc.now = func() time.Time { return now }
	return svc
}

func TestGet_AbsentRecordSynthesizesDefault(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)
	userID := uuid.New()

	rec, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.CreditsUsed)
	assert.Equal(t, 1000, rec.MonthlyLimit)
	assert.Equal(t, now.AddDate(0, 1, 0), rec.ResetDate)
	assert.False(t, rec.Suspended)

	// The default is in-memory only: no write until the first increment.
	assert.Equal(t, 0, repo.puts)
}

func TestGet_RolloverIdempotent(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)
	userID := uuid.New()

	repo.records[userID] = &UsageRecord{
		UserID:       userID,
		CreditsUsed:  250,
		MonthlyLimit: 1000,
		ResetDate:    now.AddDate(0, 0, 10),
	}

	first, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	second, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, first.CreditsUsed, second.CreditsUsed)
	assert.Equal(t, first.ResetDate, second.ResetDate)
	assert.Equal(t, 250, second.CreditsUsed)
}

func TestGet_RolloverAfterMultiMonthInactivity(t *testing.T) {
	repo := newFakeRepo()
	resetDate := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	now := resetDate.Add(95 * 24 * time.Hour) // ~3 cycles late
	svc := newTestService(repo, now)
	userID := uuid.New()

	repo.records[userID] = &UsageRecord{
		UserID:              userID,
		CreditsUsed:         990,
		MonthlyLimit:        1000,
		AnalysesCount:       42,
		TranscriptionsCount: 7,
		ChatMessagesCount:   130,
		ResetDate:           resetDate,
	}

	rec, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, rec.ResetDate.After(now), "rolled-over reset date must be in the future")
	assert.Equal(t, 0, rec.CreditsUsed)
	assert.Equal(t, 0, rec.AnalysesCount)
	assert.Equal(t, 0, rec.TranscriptionsCount)
	assert.Equal(t, 0, rec.ChatMessagesCount)
	// One month past 95 days at most: the loop must not over-advance.
	assert.True(t, rec.ResetDate.Before(now.AddDate(0, 1, 1)))

	// Rolled-over record was persisted, monthly limit preserved.
	assert.Equal(t, 1, repo.puts)
	assert.Equal(t, 1000, repo.records[userID].MonthlyLimit)
}

func TestGet_RolloverPersistFailureReturnsPreRolloverRecord(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)
	userID := uuid.New()

	repo.records[userID] = &UsageRecord{
		UserID:       userID,
		CreditsUsed:  800,
		MonthlyLimit: 1000,
		ResetDate:    now.AddDate(0, -2, 0),
	}
	repo.putErr = ErrStoreUnavailable

	rec, err := svc.Get(context.Background(), userID)
	require.ErrorIs(t, err, ErrRolloverFailed)
	require.NotNil(t, rec)
	// The caller sees real pre-rollover numbers, not a free-usage illusion.
	assert.Equal(t, 800, rec.CreditsUsed)
	assert.False(t, rec.ResetDate.After(now))
}

func TestGet_StoreErrorIsNotMistakenForNewUser(t *testing.T) {
	repo := newFakeRepo()
	repo.getErr = ErrStoreUnavailable
	svc := newTestService(repo, time.Now())

	rec, err := svc.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Nil(t, rec)
}

func TestCheckLimit(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()

	tests := []struct {
		name       string
		rec        *UsageRecord
		cost       int
		wantOK     bool
		wantReason DenyReason
	}{
		{
			name:   "well under limit",
			rec:    &UsageRecord{UserID: userID, CreditsUsed: 0, MonthlyLimit: 1000},
			cost:   10,
			wantOK: true,
		},
		{
			name:   "exactly reaches limit",
			rec:    &UsageRecord{UserID: userID, CreditsUsed: 990, MonthlyLimit: 1000},
			cost:   10,
			wantOK: true,
		},
		{
			name:       "one over limit",
			rec:        &UsageRecord{UserID: userID, CreditsUsed: 991, MonthlyLimit: 1000},
			cost:       10,
			wantOK:     false,
			wantReason: ReasonLimitExceeded,
		},
		{
			name:       "suspended denies despite full balance",
			rec:        &UsageRecord{UserID: userID, CreditsUsed: 0, MonthlyLimit: 1000, Suspended: true},
			cost:       1,
			wantOK:     false,
			wantReason: ReasonSuspended,
		},
		{
			name:       "suspended wins over limit as the reported reason",
			rec:        &UsageRecord{UserID: userID, CreditsUsed: 5000, MonthlyLimit: 1000, Suspended: true},
			cost:       10,
			wantOK:     false,
			wantReason: ReasonSuspended,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			tt.rec.ResetDate = now.AddDate(0, 0, 10)
			repo.records[userID] = tt.rec
			svc := newTestService(repo, now)

			ok, reason := svc.CheckLimit(context.Background(), userID, tt.cost)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestCheckLimit_NewUserAllowed(t *testing.T) {
	svc := newTestService(newFakeRepo(), time.Now())

	ok, reason := svc.CheckLimit(context.Background(), uuid.New(), 10)
	assert.True(t, ok)
	assert.Equal(t, ReasonAllowed, reason)
}

func TestCheckLimit_FailsOpenOnStoreError(t *testing.T) {
	repo := newFakeRepo()
	repo.getErr = ErrStoreUnavailable
	svc := newTestService(repo, time.Now())

	ok, reason := svc.CheckLimit(context.Background(), uuid.New(), 10)
	assert.True(t, ok)
	assert.Equal(t, ReasonAllowed, reason)
}

func TestIncrement_Monotonic(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)
	userID := uuid.New()

	repo.records[userID] = &UsageRecord{
		UserID:              userID,
		CreditsUsed:         100,
		MonthlyLimit:        1000,
		AnalysesCount:       3,
		TranscriptionsCount: 2,
		ChatMessagesCount:   50,
		ResetDate:           now.AddDate(0, 0, 20),
	}

	svc.Increment(context.Background(), userID, OpAnalysis)

	rec, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 110, rec.CreditsUsed)
	assert.Equal(t, 4, rec.AnalysesCount)
	assert.Equal(t, 2, rec.TranscriptionsCount, "sibling counters untouched")
	assert.Equal(t, 50, rec.ChatMessagesCount, "sibling counters untouched")
}

func TestIncrement_FirstSpendPersistsFullDefaultRecord(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)
	userID := uuid.New()

	svc.Increment(context.Background(), userID, OpTranscription)

	// Re-read: the upsert must have carried limit and reset date, not just
	// the changed counters.
	rec, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.CreditsUsed)
	assert.Equal(t, 1, rec.TranscriptionsCount)
	assert.Equal(t, 1000, rec.MonthlyLimit)
	assert.True(t, rec.ResetDate.After(now))
}

func TestIncrement_SwallowsWriteFailures(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)
	userID := uuid.New()

	repo.records[userID] = &UsageRecord{
		UserID: userID, CreditsUsed: 10, MonthlyLimit: 1000,
		ResetDate: now.AddDate(0, 0, 20),
	}

	for _, injected := range []error{ErrSchemaMissing, ErrStoreUnavailable, errors.New("boom")} {
		repo.putErr = injected
		// Must not panic or surface an error to the (already paid) caller.
		svc.Increment(context.Background(), userID, OpChat)
	}
	repo.putErr = nil

	rec, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 10, rec.CreditsUsed, "failed writes recorded nothing")
}

func TestScenario_CheckSpendCheck(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)
	userID := uuid.New()

	repo.records[userID] = &UsageRecord{
		UserID: userID, CreditsUsed: 990, MonthlyLimit: 1000,
		ResetDate: now.AddDate(0, 0, 20),
	}

	ok, _ := svc.CheckLimit(context.Background(), userID, 10)
	require.True(t, ok)

	svc.Increment(context.Background(), userID, OpAnalysis)

	ok, reason := svc.CheckLimit(context.Background(), userID, 1)
	assert.False(t, ok)
	assert.Equal(t, ReasonLimitExceeded, reason)
}

func TestResetCycle_PreservesSuspension(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)
	userID := uuid.New()

	repo.records[userID] = &UsageRecord{
		UserID:       userID,
		CreditsUsed:  5000,
		MonthlyLimit: 1000,
		Suspended:    true,
		ResetDate:    now.AddDate(0, 0, 5),
	}

	rec, err := svc.ResetCycle(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.CreditsUsed)
	assert.Equal(t, now.Add(30*24*time.Hour), rec.ResetDate)
	assert.True(t, rec.Suspended, "suspension survives an admin cycle reset")
}

func TestSetLimit(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)
	userID := uuid.New()

	repo.records[userID] = &UsageRecord{
		UserID: userID, CreditsUsed: 100, MonthlyLimit: 1000,
		ResetDate: now.AddDate(0, 0, 5),
	}

	rec, err := svc.SetLimit(context.Background(), userID, 5000)
	require.NoError(t, err)
	assert.Equal(t, 5000, rec.MonthlyLimit)
	assert.Equal(t, 100, rec.CreditsUsed, "credits untouched by a limit change")

	_, err = svc.SetLimit(context.Background(), userID, 0)
	assert.Error(t, err)
}

func TestToggleSuspend(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)
	userID := uuid.New()

	// Works against a lazily-defaulted record too.
	rec, err := svc.ToggleSuspend(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, rec.Suspended)

	ok, reason := svc.CheckLimit(context.Background(), userID, 1)
	assert.False(t, ok)
	assert.Equal(t, ReasonSuspended, reason)

	rec, err = svc.ToggleSuspend(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, rec.Suspended)
}

func TestCosts_For(t *testing.T) {
	costs := Costs{Analysis: 10, Transcription: 5, ChatMessage: 1}
	assert.Equal(t, 10, costs.For(OpAnalysis))
	assert.Equal(t, 5, costs.For(OpTranscription))
	assert.Equal(t, 1, costs.For(OpChat))
	assert.Equal(t, 0, costs.For(Operation("unknown")))
}
