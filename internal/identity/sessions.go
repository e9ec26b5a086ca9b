package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionBackend tracks live sessions so that sign-out revokes tokens
// before they expire.
type SessionBackend interface {
	Create(ctx context.Context, userID uuid.UUID) (string, error)
	Lookup(ctx context.Context, id string) (uuid.UUID, error)
	Touch(ctx context.Context, id string) error
	Revoke(ctx context.Context, id string) error
}

// RedisSessions stores session records in Redis with a sliding TTL.
type RedisSessions struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

type sessionRecord struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRedisSessions constructs a Redis-backed session store.
func NewRedisSessions(client *redis.Client, ttl time.Duration) *RedisSessions {
	return &RedisSessions{client: client, ttl: ttl, prefix: "auth_session:"}
}

// Create opens a session for the user and returns its id.
func (s *RedisSessions) Create(ctx context.Context, userID uuid.UUID) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("identity: session id: %w", err)
	}
	data, err := json.Marshal(sessionRecord{UserID: userID.String(), CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.key(id.String()), data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("identity: store session: %w", err)
	}
	return id.String(), nil
}

// Lookup returns the user owning a live session.
func (s *RedisSessions) Lookup(ctx context.Context, id string) (uuid.UUID, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, ErrSessionNotFound
		}
		return uuid.Nil, fmt.Errorf("identity: load session: %w", err)
	}
	var rec sessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return uuid.Nil, fmt.Errorf("identity: decode session: %w", err)
	}
	userID, err := uuid.Parse(rec.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("identity: decode session: %w", err)
	}
	return userID, nil
}

// Touch extends a live session by the configured TTL.
func (s *RedisSessions) Touch(ctx context.Context, id string) error {
	ok, err := s.client.Expire(ctx, s.key(id), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("identity: touch session: %w", err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// Revoke deletes a session. Revoking an unknown session is not an error.
func (s *RedisSessions) Revoke(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("identity: revoke session: %w", err)
	}
	return nil
}

// TTL exposes the configured session lifetime.
func (s *RedisSessions) TTL() time.Duration {
	return s.ttl
}

func (s *RedisSessions) key(id string) string {
	return s.prefix + id
}

var _ SessionBackend = (*RedisSessions)(nil)
