// File: mitra/services/inventory/store.go
package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mitra/utils"

	"github.com/go-redis/redis/v8"
)

// SelectionStore persists the pending (not yet booked) selection so it
// survives a restart of the client process.
type SelectionStore interface {
	Save(ctx context.Context, sel Selection) error
	Load(ctx context.Context) (*Selection, error)
	Clear(ctx context.Context) error
}

// RedisSelectionStore keeps one selection per session key with a TTL.
type RedisSelectionStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisSelectionStore(client *redis.Client, sessionKey string, ttl time.Duration) *RedisSelectionStore {
	if sessionKey == "" {
		sessionKey = "default"
	}
	return &RedisSelectionStore{client: client, key: utils.SelectionCachePrefix + sessionKey, ttl: ttl}
}

// Save stores the selection in Redis with a TTL.
func (s *RedisSelectionStore) Save(ctx context.Context, sel Selection) error {
	data, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("failed to marshal selection: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save selection: %w", err)
	}
	return nil
}

// Load returns nil without error when nothing is stored or the entry expired.
func (s *RedisSelectionStore) Load(ctx context.Context) (*Selection, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load selection: %w", err)
	}
	var sel Selection
	if err := json.Unmarshal(data, &sel); err != nil {
		return nil, fmt.Errorf("failed to unmarshal selection: %w", err)
	}
	return &sel, nil
}

func (s *RedisSelectionStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
