package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/riskstream/internal/eventbus/memorybus"
	"github.com/arc-self/riskstream/internal/idempotency"
)

func rawSignal(eventID string) RawSignal {
	return RawSignal{
		"event_id":          eventID,
		"source_type":       "NEWS",
		"raw_content":       "x",
		"source_reference":  "r",
		"geographic_scope":  "US-TX",
		"timestamp_utc":     "2026-02-23T10:00:00Z",
		"signal_confidence": 0.8,
	}
}

func TestIngestSignalsDedupesWithinWindow(t *testing.T) {
	bus := memorybus.New()
	idem := idempotency.NewMemoryStore(time.Hour)
	svc := New(nil, bus, idem, Config{}, nil)
	ctx := context.Background()

	first, err := svc.IngestSignals(ctx, []RawSignal{rawSignal("e1")})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Published)
	assert.Equal(t, 0, first.SkippedDeduplicated)

	second, err := svc.IngestSignals(ctx, []RawSignal{rawSignal("e1")})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Published)
	assert.Equal(t, 1, second.SkippedDeduplicated)

	recs, err := bus.ReadRecent(ctx, ExternalSignalsStream, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1, "exactly one record on external-signals")
}

func TestIngestSignalsRetriesThenSucceeds(t *testing.T) {
	bus := memorybus.New().WithFailureBudget(2)
	idem := idempotency.NewMemoryStore(time.Hour)
	svc := New(nil, bus, idem, Config{MaxPublishAttempts: 4, RetryDelayMs: 1}, nil)
	ctx := context.Background()

	summary, err := svc.IngestSignals(ctx, []RawSignal{rawSignal("e1")})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Published)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 0, summary.Pending)
	assert.Equal(t, 3, bus.PublishCalls())
}

func TestIngestSignalsKeepsTerminalFailuresPending(t *testing.T) {
	bus := memorybus.New().WithFailureBudget(100)
	idem := idempotency.NewMemoryStore(time.Hour)
	svc := New(nil, bus, idem, Config{MaxPublishAttempts: 2, RetryDelayMs: 1}, nil)
	ctx := context.Background()

	summary, err := svc.IngestSignals(ctx, []RawSignal{rawSignal("e1")})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Pending)

	// idempotency mark must have been cleared so a later retry can proceed
	first, err := idem.MarkIfFirstSeen(ctx, ExternalSignalsStream, "e1")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestIngestSignalsDoesNotDoubleQueueSameEventIDAcrossCycles(t *testing.T) {
	bus := memorybus.New().WithFailureBudget(100)
	idem := idempotency.NewMemoryStore(time.Hour)
	svc := New(nil, bus, idem, Config{MaxPublishAttempts: 1, RetryDelayMs: 1}, nil)
	ctx := context.Background()

	s1, err := svc.IngestSignals(ctx, []RawSignal{rawSignal("e1")})
	require.NoError(t, err)
	assert.Equal(t, 1, s1.Queued)
	assert.Equal(t, 1, s1.Pending)

	s2, err := svc.IngestSignals(ctx, []RawSignal{rawSignal("e1")})
	require.NoError(t, err)
	assert.Equal(t, 0, s2.Queued, "already-pending event_id must not be re-queued")
}
