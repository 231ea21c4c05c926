// Package worker implements the generic consumer-group worker loop:
// pending-first delivery, an externally authoritative attempt counter,
// retry-with-backoff, and deterministic DLQ promotion at maxDeliveries.
package worker

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/eventbus"
	"github.com/arc-self/riskstream/internal/logging"
)

// maxRetryBackoff bounds the linear per-attempt redelivery sleep.
const maxRetryBackoff = 5 * time.Second

// Handler processes one decoded message. A returned error is governed by
// the retry/DLQ policy; a handler that panics is not recovered
// here — callers needing that should wrap Handler themselves.
type Handler func(ctx context.Context, msg eventbus.ConsumerMessage) error

// State is a worker's lifecycle state.
type State int32

const (
	Initialized State = iota
	Running
	Stopping
	Stopped
)

// Config configures a Worker. Zero-value fields fall back to the
// documented defaults.
type Config struct {
	Stream         string
	Group          string
	Consumer       string // default "<role>-<host>-<pid>"
	Role           string // used only to build the default Consumer name
	BatchSize      int64
	BlockMs        int64
	MaxDeliveries  int
	RetryKeyTTL    time.Duration
	RetryBackoffMs int64
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.BlockMs <= 0 {
		c.BlockMs = 5_000
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = 5
	}
	if c.RetryBackoffMs <= 0 {
		c.RetryBackoffMs = 50
	}
	if c.Consumer == "" {
		host, _ := os.Hostname()
		c.Consumer = fmt.Sprintf("%s-%s-%d", c.Role, host, os.Getpid())
	}
	return c
}

// Worker is a single consumer-group worker instance. Parallelism across
// workers is achieved by running multiple instances with distinct
// consumer names in the same group; a single instance
// processes messages sequentially.
type Worker struct {
	bus     eventbus.EventConsumer
	cfg     Config
	handler Handler
	counter AttemptCounterStore
	logger  *zap.Logger

	state atomic.Int32
	stop  chan struct{}
}

// New builds a Worker. cfg is defaulted via Config.withDefaults.
func New(bus eventbus.EventConsumer, cfg Config, handler Handler, counter AttemptCounterStore, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{
		bus:     bus,
		cfg:     cfg.withDefaults(),
		handler: handler,
		counter: counter,
		logger:  logger,
		stop:    make(chan struct{}),
	}
	w.state.Store(int32(Initialized))
	return w
}

// Init ensures the consumer group exists, starting from head position so
// no record published before the worker's first run is skipped.
func (w *Worker) Init(ctx context.Context) error {
	return w.bus.EnsureGroup(ctx, w.cfg.Stream, w.cfg.Group, eventbus.StartHead)
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Start runs the consume loop until Stop is called or ctx is cancelled.
// It blocks until the loop exits.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Init(ctx); err != nil {
		return fmt.Errorf("worker: init %s/%s: %w", w.cfg.Stream, w.cfg.Group, err)
	}
	w.state.Store(int32(Running))

	for {
		select {
		case <-ctx.Done():
			w.state.Store(int32(Stopped))
			return ctx.Err()
		case <-w.stop:
			w.state.Store(int32(Stopped))
			return nil
		default:
		}

		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("worker iteration failed",
				zap.String("stream", w.cfg.Stream), zap.String("group", w.cfg.Group), zap.Error(err))
		}

		if w.State() == Stopping {
			w.state.Store(int32(Stopped))
			return nil
		}
	}
}

// Stop signals the loop to exit after the in-flight message resolves.
// Idempotent.
func (w *Worker) Stop() {
	if w.state.CompareAndSwap(int32(Running), int32(Stopping)) {
		close(w.stop)
	}
}

// RunOnce performs one consumeGroup call and processes the returned
// batch sequentially. It is the single-iteration form tests use
// directly.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	msgs, err := w.bus.ConsumeGroup(ctx, eventbus.ConsumeOptions{
		Stream:   w.cfg.Stream,
		Group:    w.cfg.Group,
		Consumer: w.cfg.Consumer,
		Count:    w.cfg.BatchSize,
		BlockMs:  w.cfg.BlockMs,
	})
	if err != nil {
		return 0, fmt.Errorf("worker: consume %s/%s: %w", w.cfg.Stream, w.cfg.Group, err)
	}

	for i, msg := range msgs {
		if err := w.processOne(ctx, msg); err != nil {
			return len(msgs), err
		}
		if w.State() == Stopping {
			return i + 1, nil
		}
	}
	return len(msgs), nil
}

func (w *Worker) processOne(ctx context.Context, msg eventbus.ConsumerMessage) error {
	// The external counter is authoritative; msg.DeliveryCount from the
	// backing store is a hint only and never consulted here.
	prior, err := w.counter.Get(ctx, w.cfg.Stream, w.cfg.Group, msg.ID)
	if err != nil {
		return fmt.Errorf("worker: read attempt counter %s: %w", msg.ID, err)
	}
	if prior > 0 {
		w.logger.Debug("redelivering message",
			zap.String("stream", w.cfg.Stream), zap.String("group", w.cfg.Group),
			zap.String("message_id", msg.ID), zap.Int("prior_attempts", prior))
	}

	handlerErr := w.handler(ctx, msg)

	if handlerErr == nil {
		if _, err := w.bus.Ack(ctx, w.cfg.Stream, w.cfg.Group, []string{msg.ID}); err != nil {
			return fmt.Errorf("worker: ack %s: %w", msg.ID, err)
		}
		if err := w.counter.Delete(ctx, w.cfg.Stream, w.cfg.Group, msg.ID); err != nil {
			return fmt.Errorf("worker: delete attempt counter %s: %w", msg.ID, err)
		}
		return nil
	}

	attempt, err := w.counter.Increment(ctx, w.cfg.Stream, w.cfg.Group, msg.ID, w.cfg.RetryKeyTTL)
	if err != nil {
		return fmt.Errorf("worker: increment attempt counter %s: %w", msg.ID, err)
	}

	if attempt >= w.cfg.MaxDeliveries {
		if _, err := w.bus.MoveToDLQ(ctx, eventbus.DLQEntry{
			SourceStream:    w.cfg.Stream,
			SourceMessageID: msg.ID,
			Reason:          eventbus.ReasonMaxDeliveriesExceed,
			Payload:         msg.Payload,
			Metadata: map[string]string{
				"group":     w.cfg.Group,
				"consumer":  w.cfg.Consumer,
				"lastError": handlerErr.Error(),
			},
		}); err != nil {
			return fmt.Errorf("worker: dlq route %s: %w", msg.ID, err)
		}
		if _, err := w.bus.Ack(ctx, w.cfg.Stream, w.cfg.Group, []string{msg.ID}); err != nil {
			return fmt.Errorf("worker: ack after dlq %s: %w", msg.ID, err)
		}
		if err := w.counter.Delete(ctx, w.cfg.Stream, w.cfg.Group, msg.ID); err != nil {
			return fmt.Errorf("worker: delete attempt counter after dlq %s: %w", msg.ID, err)
		}
		return nil
	}

	delay := time.Duration(w.cfg.RetryBackoffMs*int64(attempt)) * time.Millisecond
	if delay > maxRetryBackoff {
		delay = maxRetryBackoff
	}
	w.logger.Warn("handler failed, will redeliver",
		append(logging.Fields(w.cfg.Stream, w.cfg.Group, msg.ID, attempt, delay.Milliseconds()), zap.Error(handlerErr))...)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
	}
	return nil
}
