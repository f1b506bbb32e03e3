package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mitra/models"

	"github.com/go-redis/redis/v8"
)

const (
	AuthSessionPrefix = "mitra:auth:"
	// AuthSessionTTL applies to opaque tokens whose expiry is unknown.
	AuthSessionTTL = 24 * time.Hour
)

// AuthSession is the partner API sign-in kept across restarts.
type AuthSession struct {
	Token     string       `json:"token"`
	User      *models.User `json:"user,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// AuthSessionStore saves the sign-in in Redis until the token expires.
type AuthSessionStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

func NewAuthSessionStore(client *redis.Client, sessionID string) *AuthSessionStore {
	return &AuthSessionStore{client: client, key: AuthSessionPrefix + sessionID, now: time.Now}
}

// Save stores token and user. A token that is already expired is not stored.
func (s *AuthSessionStore) Save(ctx context.Context, token string, user *models.User) error {
	ttl := AuthSessionTTL
	if claims, err := InspectToken(token); err == nil && !claims.ExpiresAt.IsZero() {
		ttl = claims.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return nil
		}
	}
	data, err := json.Marshal(AuthSession{Token: token, User: user, CreatedAt: s.now()})
	if err != nil {
		return fmt.Errorf("failed to marshal auth session: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save auth session: %w", err)
	}
	return nil
}

// Load returns the stored sign-in, or nil when there is none.
func (s *AuthSessionStore) Load(ctx context.Context) (*AuthSession, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session AuthSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal auth session: %w", err)
	}
	return &session, nil
}

func (s *AuthSessionStore) Delete(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
