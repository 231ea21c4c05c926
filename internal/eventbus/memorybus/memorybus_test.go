package memorybus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/riskstream/internal/eventbus"
)

func TestPublishThenReadRecentIncludesID(t *testing.T) {
	b := New()
	ctx := context.Background()

	rec, err := b.Publish(ctx, "s1", []byte("hello"), eventbus.PublishOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)

	got, err := b.ReadRecent(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.ID, got[0].ID)
}

func TestReadRecentZeroLimitNoop(t *testing.T) {
	b := New()
	got, err := b.ReadRecent(context.Background(), "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEnsureGroupIdempotent(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.EnsureGroup(ctx, "s1", "g1", eventbus.StartHead))
	require.NoError(t, b.EnsureGroup(ctx, "s1", "g1", eventbus.StartHead))
}

func TestAckEmptyIsNoop(t *testing.T) {
	b := New()
	n, err := b.Ack(context.Background(), "s1", "g1", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func encoded(t *testing.T, message any) []byte {
	t.Helper()
	payload, err := eventbus.Encode(message, time.Now())
	require.NoError(t, err)
	return payload
}

func TestPendingRedeliveredBeforeNew(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.EnsureGroup(ctx, "s1", "g1", eventbus.StartHead))

	_, err := b.Publish(ctx, "s1", encoded(t, map[string]string{"n": "m1"}), eventbus.PublishOptions{})
	require.NoError(t, err)

	msgs, err := b.ConsumeGroup(ctx, eventbus.ConsumeOptions{Stream: "s1", Group: "g1", Consumer: "c1", Count: 10})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	firstID := msgs[0].ID

	// publish a second message without acking the first
	_, err = b.Publish(ctx, "s1", encoded(t, map[string]string{"n": "m2"}), eventbus.PublishOptions{})
	require.NoError(t, err)

	msgs2, err := b.ConsumeGroup(ctx, eventbus.ConsumeOptions{Stream: "s1", Group: "g1", Consumer: "c1", Count: 10})
	require.NoError(t, err)
	require.Len(t, msgs2, 1)
	assert.Equal(t, firstID, msgs2[0].ID, "pending message must be redelivered before the new one")

	n, err := b.Ack(ctx, "s1", "g1", []string{firstID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	msgs3, err := b.ConsumeGroup(ctx, eventbus.ConsumeOptions{Stream: "s1", Group: "g1", Consumer: "c1", Count: 10})
	require.NoError(t, err)
	require.Len(t, msgs3, 1)
	assert.NotEqual(t, firstID, msgs3[0].ID)
}

func TestConsumeGroupRespectsCount(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.EnsureGroup(ctx, "s1", "g1", eventbus.StartHead))
	for i := 0; i < 5; i++ {
		_, err := b.Publish(ctx, "s1", encoded(t, map[string]int{"n": i}), eventbus.PublishOptions{})
		require.NoError(t, err)
	}
	msgs, err := b.ConsumeGroup(ctx, eventbus.ConsumeOptions{Stream: "s1", Group: "g1", Consumer: "c1", Count: 2})
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestConsumeGroupRoutesMalformedPayloadToDLQ(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.EnsureGroup(ctx, "s1", "g1", eventbus.StartHead))

	_, err := b.Publish(ctx, "s1", []byte("not an envelope"), eventbus.PublishOptions{})
	require.NoError(t, err)

	got, err := b.ConsumeGroup(ctx, eventbus.ConsumeOptions{Stream: "s1", Group: "g1", Consumer: "c1", Count: 10})
	require.NoError(t, err)
	assert.Empty(t, got, "malformed payload must never reach the caller")

	dlq, err := b.ReadRecent(ctx, eventbus.DLQStream("s1"), 10)
	require.NoError(t, err)
	require.Len(t, dlq, 1)

	decoded, err := eventbus.Decode(dlq[0].Payload)
	require.NoError(t, err)
	var entry eventbus.DLQEntry
	require.NoError(t, json.Unmarshal(decoded.Message, &entry))
	assert.Equal(t, eventbus.ReasonMalformedPayload, entry.Reason)
	assert.Equal(t, []byte("not an envelope"), entry.Payload)

	// the malformed entry was acked: nothing pending, nothing new
	again, err := b.ConsumeGroup(ctx, eventbus.ConsumeOptions{Stream: "s1", Group: "g1", Consumer: "c1", Count: 10})
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestMoveToDLQPreservesPayload(t *testing.T) {
	b := New()
	ctx := context.Background()
	entry := eventbus.DLQEntry{
		SourceStream:    "s1",
		SourceMessageID: "123-0",
		Reason:          eventbus.ReasonMaxDeliveriesExceed,
		Payload:         []byte(`{"a":1}`),
	}
	id, err := b.MoveToDLQ(ctx, entry)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	recs, err := b.ReadRecent(ctx, eventbus.DLQStream("s1"), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	decoded, err := eventbus.Decode(recs[0].Payload)
	require.NoError(t, err)
	var got eventbus.DLQEntry
	require.NoError(t, json.Unmarshal(decoded.Message, &got))
	assert.Equal(t, entry.Payload, got.Payload)
}

func TestPublishFailureBudget(t *testing.T) {
	b := New().WithFailureBudget(2)
	ctx := context.Background()

	_, err := b.Publish(ctx, "s1", []byte("m"), eventbus.PublishOptions{})
	assert.Error(t, err)
	_, err = b.Publish(ctx, "s1", []byte("m"), eventbus.PublishOptions{})
	assert.Error(t, err)
	_, err = b.Publish(ctx, "s1", []byte("m"), eventbus.PublishOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 3, b.PublishCalls())
}
