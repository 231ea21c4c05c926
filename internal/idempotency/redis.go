package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis SETNX + TTL.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore builds a RedisStore with the given mark TTL (default
// one week).
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) MarkIfFirstSeen(ctx context.Context, stream, eventID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, key(stream, eventID), "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency: setnx %s/%s: %w", stream, eventID, err)
	}
	return ok, nil
}

func (s *RedisStore) Clear(ctx context.Context, stream, eventID string) error {
	if err := s.client.Del(ctx, key(stream, eventID)).Err(); err != nil {
		return fmt.Errorf("idempotency: del %s/%s: %w", stream, eventID, err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
