package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests, honoring the same
// TTL contract as RedisStore without a live Redis instance.
type MemoryStore struct {
	mu    sync.Mutex
	marks map[string]time.Time
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore builds a MemoryStore with the given mark TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{marks: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (s *MemoryStore) MarkIfFirstSeen(ctx context.Context, stream, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(stream, eventID)
	now := s.now()
	if expiresAt, ok := s.marks[k]; ok && now.Before(expiresAt) {
		return false, nil
	}
	s.marks[k] = now.Add(s.ttl)
	return true, nil
}

func (s *MemoryStore) Clear(ctx context.Context, stream, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.marks, key(stream, eventID))
	return nil
}

var _ Store = (*MemoryStore)(nil)
