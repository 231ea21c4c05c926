package gateway_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/riskstream/internal/gateway"
)

func TestGatewayRunsImmediatelyWhenSlotFree(t *testing.T) {
	g := gateway.New(gateway.Config{MaxConcurrency: 1, MaxQueueSize: 1})
	ran := false
	err := g.Do(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, int64(1), g.Metrics.RequestsTotal.Load())
	assert.Equal(t, int64(0), g.Metrics.RequestsFailed.Load())
}

// TestGatewayQueueOverflowRejectsThirdRequest: with MaxConcurrency=1
// and MaxQueueSize=1, a third concurrent request is
// rejected with ErrQueueFull while the first occupies the only slot and
// the second occupies the only queue position; once the first completes,
// the second is admitted and succeeds.
func TestGatewayQueueOverflowRejectsThirdRequest(t *testing.T) {
	g := gateway.New(gateway.Config{MaxConcurrency: 1, MaxQueueSize: 1})

	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		firstErr = g.Do(context.Background(), func(ctx context.Context) error {
			close(firstStarted)
			<-releaseFirst
			return nil
		})
	}()

	<-firstStarted

	wg.Add(1)
	var secondErr error
	go func() {
		defer wg.Done()
		secondErr = g.Do(context.Background(), func(ctx context.Context) error {
			return nil
		})
	}()

	// Poll until the queue has accepted the second request.
	deadline := time.After(2 * time.Second)
	for g.Metrics.QueueDepth.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("second request never reached the queue")
		case <-time.After(time.Millisecond):
		}
	}

	thirdErr := g.Do(context.Background(), func(ctx context.Context) error {
		t.Fatal("third request must not run")
		return nil
	})
	assert.ErrorIs(t, thirdErr, gateway.ErrQueueFull)
	assert.Equal(t, int64(1), g.Metrics.QueueOverflowRejections.Load())

	close(releaseFirst)
	wg.Wait()

	assert.NoError(t, firstErr)
	assert.NoError(t, secondErr)
}

func TestGatewayDoReturnsContextErrorWhenCancelledInQueue(t *testing.T) {
	g := gateway.New(gateway.Config{MaxConcurrency: 1, MaxQueueSize: 1})

	block := make(chan struct{})
	go func() {
		_ = g.Do(context.Background(), func(ctx context.Context) error {
			<-block
			return nil
		})
	}()

	// Wait for the first to occupy the slot.
	deadline := time.After(2 * time.Second)
	for g.Metrics.RequestsInFlight.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("first request never started")
		case <-time.After(time.Millisecond):
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := g.Do(ctx, func(ctx context.Context) error {
		t.Fatal("queued request must not run once context is cancelled")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	close(block)
}
