package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptCounterStore is the external, authoritative delivery-attempt
// counter: keyed by (stream, group, messageID),
// persisted separately from the event bus's own (hint-only) delivery
// count, with a TTL set on first increment.
type AttemptCounterStore interface {
	// Get returns the current attempt count, 0 if unset.
	Get(ctx context.Context, stream, group, messageID string) (int, error)
	// Increment increments the counter, setting ttl on first increment,
	// and returns the new value.
	Increment(ctx context.Context, stream, group, messageID string, ttl time.Duration) (int, error)
	// Delete removes the counter, called on successful handling.
	Delete(ctx context.Context, stream, group, messageID string) error
}

func counterKey(stream, group, messageID string) string {
	return fmt.Sprintf("retry:%s:%s:%s", stream, group, messageID)
}

// RedisAttemptCounterStore implements AttemptCounterStore against Redis.
type RedisAttemptCounterStore struct {
	client redis.UniversalClient
}

// NewRedisAttemptCounterStore builds a RedisAttemptCounterStore.
func NewRedisAttemptCounterStore(client redis.UniversalClient) *RedisAttemptCounterStore {
	return &RedisAttemptCounterStore{client: client}
}

func (s *RedisAttemptCounterStore) Get(ctx context.Context, stream, group, messageID string) (int, error) {
	v, err := s.client.Get(ctx, counterKey(stream, group, messageID)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("worker: get attempt counter: %w", err)
	}
	return v, nil
}

func (s *RedisAttemptCounterStore) Increment(ctx context.Context, stream, group, messageID string, ttl time.Duration) (int, error) {
	k := counterKey(stream, group, messageID)
	n, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("worker: incr attempt counter: %w", err)
	}
	if n == 1 && ttl > 0 {
		if err := s.client.Expire(ctx, k, ttl).Err(); err != nil {
			return 0, fmt.Errorf("worker: expire attempt counter: %w", err)
		}
	}
	return int(n), nil
}

func (s *RedisAttemptCounterStore) Delete(ctx context.Context, stream, group, messageID string) error {
	if err := s.client.Del(ctx, counterKey(stream, group, messageID)).Err(); err != nil {
		return fmt.Errorf("worker: delete attempt counter: %w", err)
	}
	return nil
}

var _ AttemptCounterStore = (*RedisAttemptCounterStore)(nil)

// MemoryAttemptCounterStore is an in-process AttemptCounterStore for
// tests; it ignores ttl (tests never run long enough to exercise
// expiry).
type MemoryAttemptCounterStore struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryAttemptCounterStore builds an empty MemoryAttemptCounterStore.
func NewMemoryAttemptCounterStore() *MemoryAttemptCounterStore {
	return &MemoryAttemptCounterStore{counts: make(map[string]int)}
}

func (s *MemoryAttemptCounterStore) Get(ctx context.Context, stream, group, messageID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[counterKey(stream, group, messageID)], nil
}

func (s *MemoryAttemptCounterStore) Increment(ctx context.Context, stream, group, messageID string, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := counterKey(stream, group, messageID)
	s.counts[k]++
	return s.counts[k], nil
}

func (s *MemoryAttemptCounterStore) Delete(ctx context.Context, stream, group, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, counterKey(stream, group, messageID))
	return nil
}

var _ AttemptCounterStore = (*MemoryAttemptCounterStore)(nil)
