// Package gateway implements the bounded-concurrency, queue-backpressure
// admission pattern shared by the ingestion HTTP gateway and the
// classification LLM adapter. A buffered channel serves as the
// concurrency semaphore.
package gateway

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrQueueFull is returned when admission is refused because both the
// concurrency slots and the queue are exhausted (surfaced as HTTP 503).
var ErrQueueFull = errors.New("gateway: queue full")

// Config bounds concurrency and backlog.
type Config struct {
	MaxConcurrency int
	MaxQueueSize   int
}

// Metrics exposes the gateway's admission counters.
type Metrics struct {
	RequestsTotal           atomic.Int64
	RequestsFailed          atomic.Int64
	RequestsInFlight        atomic.Int64
	QueueDepth              atomic.Int64
	QueueOverflowRejections atomic.Int64
}

// Gateway admits work under a bounded-concurrency + queue discipline:
// execute immediately if a slot is free; else enqueue if the queue has
// room; else reject with ErrQueueFull.
type Gateway struct {
	slots chan struct{}
	queue chan struct{}
	cfg   Config

	Metrics Metrics
}

// New builds a Gateway. A non-positive MaxConcurrency falls back to 1; a
// negative MaxQueueSize is treated as 0, and with a queue size of 0 every
// request that finds no free slot is rejected.
func New(cfg Config) *Gateway {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.MaxQueueSize < 0 {
		cfg.MaxQueueSize = 0
	}
	return &Gateway{
		slots: make(chan struct{}, cfg.MaxConcurrency),
		queue: make(chan struct{}, cfg.MaxQueueSize),
		cfg:   cfg,
	}
}

// Do admits fn for execution under the bounded-concurrency discipline.
// It returns ErrQueueFull immediately (without running fn) when both
// the concurrency slots and the queue are exhausted.
func (g *Gateway) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	g.Metrics.RequestsTotal.Add(1)

	select {
	case g.slots <- struct{}{}:
		return g.run(ctx, fn)
	default:
	}

	select {
	case g.queue <- struct{}{}:
		g.Metrics.QueueDepth.Add(1)
		dequeue := func() {
			<-g.queue
			g.Metrics.QueueDepth.Add(-1)
		}
		select {
		case g.slots <- struct{}{}:
			dequeue()
			return g.run(ctx, fn)
		case <-ctx.Done():
			dequeue()
			g.Metrics.RequestsFailed.Add(1)
			return ctx.Err()
		}
	default:
		g.Metrics.QueueOverflowRejections.Add(1)
		g.Metrics.RequestsFailed.Add(1)
		return ErrQueueFull
	}
}

func (g *Gateway) run(ctx context.Context, fn func(ctx context.Context) error) error {
	g.Metrics.RequestsInFlight.Add(1)
	defer func() {
		<-g.slots
		g.Metrics.RequestsInFlight.Add(-1)
	}()

	err := fn(ctx)
	if err != nil {
		g.Metrics.RequestsFailed.Add(1)
	}
	return err
}
