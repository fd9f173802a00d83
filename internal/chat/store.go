package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Sessions are ephemeral training artifacts, so they live entirely in
// Redis: a JSON value for the session itself and a list for its history,
// both under the same TTL.
type SessionStore struct {
	client     *redis.Client
	ttl        time.Duration
	maxHistory int
}

func NewSessionStore(client *redis.Client, ttl time.Duration, maxHistory int) *SessionStore {
	return &SessionStore{
		client:     client,
		ttl:        ttl,
		maxHistory: maxHistory,
	}
}

func sessionKey(id uuid.UUID) string {
	return fmt.Sprintf("chat:session:%s", id.String())
}

func historyKey(id uuid.UUID) string {
	return fmt.Sprintf("chat:history:%s", id.String())
}

func (s *SessionStore) SaveSession(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.ID), string(data), s.ttl).Err(); err != nil {
		return fmt.Errorf("storing session %s: %w", session.ID, err)
	}
	return nil
}

// GetSession returns nil when the session does not exist or has expired.
func (s *SessionStore) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching session %s: %w", id, err)
	}

	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("unmarshaling session %s: %w", id, err)
	}
	return &session, nil
}

// AppendEntry adds a turn to the history list, trims to maxHistory and
// refreshes the TTL on both keys so an active session never expires
// mid-conversation.
func (s *SessionStore) AppendEntry(ctx context.Context, id uuid.UUID, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}

	key := historyKey(id)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, string(data))
	pipe.LTrim(ctx, key, int64(-s.maxHistory), -1)
	pipe.Expire(ctx, key, s.ttl)
	pipe.Expire(ctx, sessionKey(id), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipeline exec for %s: %w", key, err)
	}
	return nil
}

// History returns the last `limit` turns, oldest first.
func (s *SessionStore) History(ctx context.Context, id uuid.UUID, limit int) ([]Entry, error) {
	key := historyKey(id)

	vals, err := s.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}

	entries := make([]Entry, 0, len(vals))
	for _, v := range vals {
		var entry Entry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			continue // skip malformed entries
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
