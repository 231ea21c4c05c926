package connector_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/riskstream/internal/connector"
)

func TestLeaseManagerMutualExclusion(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	m := connector.NewRedisLeaseManager(client)
	ctx := context.Background()

	winner, err := m.TryAcquire(ctx, "c1", "instance-a", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, winner)

	loser, err := m.TryAcquire(ctx, "c1", "instance-b", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, loser)

	require.NoError(t, m.Release(ctx, "c1", "instance-a"))

	retried, err := m.TryAcquire(ctx, "c1", "instance-b", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, retried)
}

func TestLeaseManagerReleaseByNonOwnerIsNoop(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	m := connector.NewRedisLeaseManager(client)
	ctx := context.Background()

	require.NoError(t, m.Release(ctx, "c1", "nobody"))

	winner, err := m.TryAcquire(ctx, "c1", "instance-a", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, winner)

	require.NoError(t, m.Release(ctx, "c1", "instance-b"))

	still, err := m.TryAcquire(ctx, "c1", "instance-a", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, still, "instance-a's own lease must still be treated as held since the owner's value was never removed")
}
