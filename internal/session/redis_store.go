// Package session keeps refresh sessions in Redis so token rotation
// survives API restarts without touching Postgres on the hot path.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"assettrack/api/internal/store"
)

const keyPrefix = "refresh:"

// ErrSessionNotFound is returned when a refresh token hash has no live
// session, either because it was revoked or because its TTL expired.
var ErrSessionNotFound = errors.New("refresh session not found")

// sessionRecord is the JSON value stored under each refresh token hash.
// The principal snapshot travels with the session so a refresh can mint
// a new access token without a user lookup.
type sessionRecord struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	IsAdmin     bool      `json:"isAdmin"`
	IssuedAt    time.Time `json:"issuedAt"`
}

// RedisStore stores refresh sessions keyed by token hash, with the TTL
// enforcing refresh expiry server-side.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore dials redisURL and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// SaveRefreshSession stores the session under tokenHash until expiresAt.
func (s *RedisStore) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	rec, err := json.Marshal(sessionRecord{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		IsAdmin:     user.IsAdmin,
		IssuedAt:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal refresh session: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh session already expired at %s", expiresAt)
	}
	if err := s.client.Set(ctx, keyPrefix+tokenHash, rec, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

// LookupRefreshSession resolves tokenHash back to its principal.
func (s *RedisStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	raw, err := s.client.Get(ctx, keyPrefix+tokenHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.User{}, ErrSessionNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup refresh session: %w", err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return store.User{}, fmt.Errorf("unmarshal refresh session: %w", err)
	}
	return store.User{
		ID:          rec.UserID,
		DisplayName: rec.DisplayName,
		Email:       rec.Email,
		IsAdmin:     rec.IsAdmin,
	}, nil
}

// RevokeRefreshSession drops the session for tokenHash. Revoking an
// unknown hash is not an error so rotation and logout stay idempotent.
func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, keyPrefix+tokenHash).Err(); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
