package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreMarkIfFirstSeenOncePerKey(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	first, err := s.MarkIfFirstSeen(ctx, "external-signals", "e1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.MarkIfFirstSeen(ctx, "external-signals", "e1")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestMemoryStoreClearAllowsRemark(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	_, err := s.MarkIfFirstSeen(ctx, "s", "e1")
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx, "s", "e1"))

	again, err := s.MarkIfFirstSeen(ctx, "s", "e1")
	require.NoError(t, err)
	assert.True(t, again)
}

func TestRedisStoreMarkIfFirstSeenOncePerKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	first, err := s.MarkIfFirstSeen(ctx, "external-signals", "e1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.MarkIfFirstSeen(ctx, "external-signals", "e1")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestRedisStoreClearAllowsRemark(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	_, err := s.MarkIfFirstSeen(ctx, "s", "e1")
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx, "s", "e1"))

	again, err := s.MarkIfFirstSeen(ctx, "s", "e1")
	require.NoError(t, err)
	assert.True(t, again)
}
