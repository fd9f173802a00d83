package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/supportiq-platform/supportiq/internal/llm"
	"github.com/supportiq-platform/supportiq/internal/usage"
)

var (
	// ErrSessionNotFound covers expired sessions too.
	ErrSessionNotFound = errors.New("chat session not found")
	// ErrNotSessionOwner means the requester did not start the session.
	ErrNotSessionOwner = errors.New("not the session owner")
)

// completer is the LLM surface this service needs.
type completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

type Service struct {
	store *SessionStore
	llm   completer
	usage *usage.Service
}

func NewService(store *SessionStore, llmClient completer, usageSvc *usage.Service) *Service {
	return &Service{
		store: store,
		llm:   llmClient,
		usage: usageSvc,
	}
}

// Start opens a new roleplay session. Starting is free, only messages
// cost credits.
func (s *Service) Start(ctx context.Context, ownerID uuid.UUID, req *StartSessionRequest) (*Session, error) {
	session := &Session{
		ID:              uuid.New(),
		OwnerUserID:     ownerID,
		Scenario:        req.Scenario,
		CustomerPersona: req.CustomerPersona,
		CreatedAt:       time.Now(),
	}

	if err := s.store.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Send delivers a trainee message and returns the simulated customer's
// reply. One chat credit is spent per successful exchange.
func (s *Service) Send(ctx context.Context, ownerID, sessionID uuid.UUID, message string) (*Reply, error) {
	session, err := s.loadOwned(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}

	cost := s.usage.Costs().ChatMessage
	if ok, reason := s.usage.CheckLimit(ctx, ownerID, cost); !ok {
		return nil, reason.Denied()
	}

	history, err := s.store.History(ctx, sessionID, s.store.maxHistory)
	if err != nil {
		return nil, err
	}

	reply, err := s.llm.Complete(ctx, buildRoleplayPrompt(session, history, message))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.store.AppendEntry(ctx, sessionID, Entry{Role: llm.RoleUser, Content: message, Timestamp: now}); err != nil {
		return nil, err
	}
	if err := s.store.AppendEntry(ctx, sessionID, Entry{Role: llm.RoleAssistant, Content: reply, Timestamp: now}); err != nil {
		return nil, err
	}

	s.usage.Increment(ctx, ownerID, usage.OpChat)

	return &Reply{SessionID: sessionID, Message: reply}, nil
}

// Get returns the session with its full retained history.
func (s *Service) Get(ctx context.Context, ownerID, sessionID uuid.UUID) (*SessionView, error) {
	session, err := s.loadOwned(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}

	history, err := s.store.History(ctx, sessionID, s.store.maxHistory)
	if err != nil {
		return nil, err
	}

	return &SessionView{Session: session, History: history}, nil
}

func (s *Service) loadOwned(ctx context.Context, ownerID, sessionID uuid.UUID) (*Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.OwnerUserID != ownerID {
		return nil, ErrNotSessionOwner
	}
	return session, nil
}

func buildRoleplayPrompt(session *Session, history []Entry, message string) []llm.Message {
	system := fmt.Sprintf(`You are roleplaying as a customer contacting support. Stay in character for the whole conversation and never reveal you are an AI.
Scenario: %s`, session.Scenario)
	if session.CustomerPersona != "" {
		system += fmt.Sprintf("\nCustomer persona: %s", session.CustomerPersona)
	}
	system += "\nThe person you are talking to is a support agent in training. React realistically to how well they handle you."

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, entry := range history {
		// Trainee turns go in as "user", the simulated customer's as
		// "assistant", matching how they were produced.
		messages = append(messages, llm.Message{Role: entry.Role, Content: entry.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})
	return messages
}
