package connector

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner repeats a connector's Poll every PollIntervalMs until stopped,
// coordinating lease acquisition and metrics recording.
type Runner struct {
	spec       Spec
	poller     Poller
	leases     LeaseManager
	metrics    MetricsCollector
	instanceID string
	logger     *zap.Logger
	now        func() time.Time

	stop chan struct{}
}

// NewRunner builds a Runner for one connector instance.
func NewRunner(spec Spec, poller Poller, leases LeaseManager, metrics MetricsCollector, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		spec:       spec,
		poller:     poller,
		leases:     leases,
		metrics:    metrics,
		instanceID: uuid.NewString(),
		logger:     logger,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
}

// Stop signals the runner's loop to exit: a sleep in progress is cut
// short, and a poll in progress finishes before the loop returns.
func (r *Runner) Stop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
}

// Run blocks, polling every spec.PollIntervalMs until Stop is called,
// ctx is cancelled, or SIGHUP requests a registry reload that disables
// or removes this connector (handled by the caller via reloadFn).
func (r *Runner) Run(ctx context.Context, reloadFn func() (Spec, bool)) {
	interval := time.Duration(r.spec.PollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Minute
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		r.tick(ctx)

		if !r.sleepUntilNext(ctx, interval) {
			return
		}

		select {
		case <-hup:
			if reloadFn == nil {
				continue
			}
			spec, ok := reloadFn()
			if !ok || !spec.Enabled {
				r.logger.Info("connector disabled or removed on reload, shutting down",
					zap.String("connector", r.spec.Name))
				return
			}
			r.spec = spec
			interval = time.Duration(spec.PollIntervalMs) * time.Millisecond
			if interval <= 0 {
				interval = time.Minute
			}
		default:
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	ttl := time.Duration(r.spec.LeaseTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Second // never hand out an unexpiring lease
	}
	acquired, err := r.leases.TryAcquire(ctx, r.spec.Name, r.instanceID, ttl)
	if err != nil {
		r.logger.Error("lease acquisition error", zap.String("connector", r.spec.Name), zap.Error(err))
		return
	}
	if !acquired {
		return // routine, not an error: another instance holds the lease
	}
	defer func() {
		if err := r.leases.Release(ctx, r.spec.Name, r.instanceID); err != nil {
			r.logger.Error("lease release error", zap.String("connector", r.spec.Name), zap.Error(err))
		}
	}()

	start := r.now()
	summary, err := r.poller.Poll(ctx)
	latencyMs := r.now().Sub(start).Milliseconds()
	if err != nil {
		r.logger.Error("poll failed", zap.String("connector", r.spec.Name), zap.Error(err))
	}

	if r.metrics != nil {
		if err := r.metrics.Record(ctx, r.spec.Name, summary, latencyMs); err != nil {
			r.logger.Error("metrics record failed", zap.String("connector", r.spec.Name), zap.Error(err))
		}
	}
}

// sleepUntilNext waits up to interval, checking the stop flag and ctx
// cancellation at least every 500ms, returning false when
// the runner should exit.
func (r *Runner) sleepUntilNext(ctx context.Context, interval time.Duration) bool {
	const checkEvery = 500 * time.Millisecond
	remaining := interval
	for remaining > 0 {
		step := checkEvery
		if remaining < step {
			step = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-r.stop:
			return false
		case <-time.After(step):
			remaining -= step
		}
	}
	return true
}
