package chat

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportiq-platform/supportiq/internal/config"
	"github.com/supportiq-platform/supportiq/internal/llm"
	"github.com/supportiq-platform/supportiq/internal/usage"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
	seen  []llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, messages []llm.Message) (string, error) {
	f.calls++
	f.seen = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeUsageRepo struct {
	records map[uuid.UUID]*usage.UsageRecord
}

func (f *fakeUsageRepo) Get(_ context.Context, userID uuid.UUID) (*usage.UsageRecord, error) {
	rec, ok := f.records[userID]
	if !ok {
		return nil, usage.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeUsageRepo) Upsert(_ context.Context, rec *usage.UsageRecord) error {
	cp := *rec
	f.records[rec.UserID] = &cp
	return nil
}

func (f *fakeUsageRepo) List(_ context.Context, _, _ int) ([]*usage.UsageRecord, int64, error) {
	return nil, 0, nil
}

func newTestService(t *testing.T, fake *fakeCompleter) (*Service, *usage.Service, *fakeUsageRepo) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	usageRepo := &fakeUsageRepo{records: make(map[uuid.UUID]*usage.UsageRecord)}
	usageSvc := usage.NewService(usageRepo, config.UsageConfig{
		DefaultMonthlyLimit: 1000,
		ChatMessageCost:     1,
		StoreTimeout:        time.Second,
	})

	store := NewSessionStore(client, time.Hour, 40)
	return NewService(store, fake, usageSvc), usageSvc, usageRepo
}

func TestSend_RepliesAndRecordsHistory(t *testing.T) {
	fake := &fakeCompleter{reply: "Well it's about time someone answered!"}
	svc, usageSvc, _ := newTestService(t, fake)
	ownerID := uuid.New()

	session, err := svc.Start(context.Background(), ownerID, &StartSessionRequest{
		Scenario:        "Customer's order is two weeks late",
		CustomerPersona: "Impatient, sarcastic",
	})
	require.NoError(t, err)

	reply, err := svc.Send(context.Background(), ownerID, session.ID, "Hi, thanks for waiting. How can I help?")
	require.NoError(t, err)
	assert.Equal(t, fake.reply, reply.Message)

	// Prompt carried the scenario and the trainee's message.
	require.NotEmpty(t, fake.seen)
	assert.Equal(t, llm.RoleSystem, fake.seen[0].Role)
	assert.Contains(t, fake.seen[0].Content, "two weeks late")
	assert.Equal(t, "Hi, thanks for waiting. How can I help?", fake.seen[len(fake.seen)-1].Content)

	view, err := svc.Get(context.Background(), ownerID, session.ID)
	require.NoError(t, err)
	require.Len(t, view.History, 2)
	assert.Equal(t, llm.RoleUser, view.History[0].Role)
	assert.Equal(t, llm.RoleAssistant, view.History[1].Role)

	rec, err := usageSvc.Get(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CreditsUsed)
	assert.Equal(t, 1, rec.ChatMessagesCount)
}

func TestSend_PriorTurnsIncludedInPrompt(t *testing.T) {
	fake := &fakeCompleter{reply: "Fine, I suppose."}
	svc, _, _ := newTestService(t, fake)
	ownerID := uuid.New()

	session, err := svc.Start(context.Background(), ownerID, &StartSessionRequest{Scenario: "Refund request"})
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), ownerID, session.ID, "first message")
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), ownerID, session.ID, "second message")
	require.NoError(t, err)

	// system + 2 prior turns + new message
	assert.Len(t, fake.seen, 4)
	assert.Equal(t, "first message", fake.seen[1].Content)
}

func TestSend_DeniedWhenOverLimit(t *testing.T) {
	fake := &fakeCompleter{reply: "never sent"}
	svc, _, usageRepo := newTestService(t, fake)
	ownerID := uuid.New()

	usageRepo.records[ownerID] = &usage.UsageRecord{
		UserID:       ownerID,
		CreditsUsed:  1000,
		MonthlyLimit: 1000,
		ResetDate:    time.Now().AddDate(0, 0, 10),
	}

	session, err := svc.Start(context.Background(), ownerID, &StartSessionRequest{Scenario: "test"})
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), ownerID, session.ID, "hello?")
	assert.ErrorIs(t, err, usage.ErrLimitExceeded)
	assert.Zero(t, fake.calls)

	view, err := svc.Get(context.Background(), ownerID, session.ID)
	require.NoError(t, err)
	assert.Empty(t, view.History, "denied messages leave no trace")
}

func TestSend_OwnershipEnforced(t *testing.T) {
	fake := &fakeCompleter{reply: "hi"}
	svc, _, _ := newTestService(t, fake)
	ownerID := uuid.New()

	session, err := svc.Start(context.Background(), ownerID, &StartSessionRequest{Scenario: "test"})
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), uuid.New(), session.ID, "let me in")
	assert.ErrorIs(t, err, ErrNotSessionOwner)
}

func TestSend_UnknownSession(t *testing.T) {
	fake := &fakeCompleter{reply: "hi"}
	svc, _, _ := newTestService(t, fake)

	_, err := svc.Send(context.Background(), uuid.New(), uuid.New(), "hello")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
