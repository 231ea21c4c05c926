package ingestion

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/riskstream/internal/eventbus"
	"github.com/arc-self/riskstream/internal/eventbus/memorybus"
)

const testRawStream = "raw-input-signals"

func TestBusSourcePollDecodesAndAcksMessages(t *testing.T) {
	bus := memorybus.New()
	ctx := context.Background()

	src := NewBusSource(bus, testRawStream, "ingestion-workers", "consumer-1", 10, 0, nil)
	require.NoError(t, src.Init(ctx))

	raw := rawSignal("e1")
	payload, err := eventbus.Encode(raw, time.Now())
	require.NoError(t, err)
	_, err = bus.Publish(ctx, testRawStream, payload, eventbus.PublishOptions{})
	require.NoError(t, err)

	out, err := src.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "e1", out[0]["event_id"])

	// A second poll finds nothing pending and nothing new: the message
	// was acked, not left for redelivery.
	again, err := src.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestBusSourcePollSkipsMalformedMessages(t *testing.T) {
	bus := memorybus.New()
	ctx := context.Background()

	src := NewBusSource(bus, testRawStream, "ingestion-workers", "consumer-1", 10, 0, nil)
	require.NoError(t, src.Init(ctx))

	badPayload, err := eventbus.Encode(json.RawMessage(`"not an object"`), time.Now())
	require.NoError(t, err)
	_, err = bus.Publish(ctx, testRawStream, badPayload, eventbus.PublishOptions{})
	require.NoError(t, err)

	goodPayload, err := eventbus.Encode(rawSignal("e2"), time.Now())
	require.NoError(t, err)
	_, err = bus.Publish(ctx, testRawStream, goodPayload, eventbus.PublishOptions{})
	require.NoError(t, err)

	out, err := src.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1, "malformed message is skipped, not returned")
	assert.Equal(t, "e2", out[0]["event_id"])
}

func TestBusSourceName(t *testing.T) {
	bus := memorybus.New()
	src := NewBusSource(bus, testRawStream, "g", "c", 1, 0, nil)
	assert.Equal(t, testRawStream, src.Name())
}
