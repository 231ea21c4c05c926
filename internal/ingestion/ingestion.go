// Package ingestion implements the ingestion service: normalization,
// content-hash dedup, at-least-once publish with retry, and in-memory
// pending-event recovery. A cycle polls a list of Source collaborators
// and feeds everything collected through normalize/dedup/publish.
package ingestion

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/domain"
	"github.com/arc-self/riskstream/internal/eventbus"
	"github.com/arc-self/riskstream/internal/idempotency"
	"github.com/arc-self/riskstream/internal/retry"
)

// ExternalSignalsStream is the wire constant ingestion publishes to.
const ExternalSignalsStream = "external-signals"

// RawSignal is the pre-normalization input a Source yields.
type RawSignal = map[string]any

// Source polls an external origin for raw, not-yet-normalized signals.
// Each poll() failure is isolated: the other sources in the same cycle
// still run.
type Source interface {
	Name() string
	Poll(ctx context.Context) ([]RawSignal, error)
}

// Config holds the ingestion service's retry parameters.
type Config struct {
	MaxPublishAttempts int
	RetryDelayMs       int64
}

func (c Config) withDefaults() Config {
	if c.MaxPublishAttempts <= 0 {
		c.MaxPublishAttempts = 4
	}
	if c.RetryDelayMs <= 0 {
		c.RetryDelayMs = 50
	}
	return c
}

// Summary reports the outcome of one ingestSignals call.
type Summary struct {
	Polled              int
	Queued              int
	SkippedDeduplicated int
	Published           int
	Failed              int
	Pending             int
}

// Service runs the ingestion pipeline.
type Service struct {
	sources     []Source
	publisher   eventbus.EventPublisher
	idempotency idempotency.Store
	cfg         Config
	logger      *zap.Logger

	pending []domain.Signal
	now     func() time.Time
}

// New builds a Service. Zero cfg fields fall back to defaults.
func New(sources []Source, publisher eventbus.EventPublisher, idem idempotency.Store, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sources:     sources,
		publisher:   publisher,
		idempotency: idem,
		cfg:         cfg.withDefaults(),
		logger:      logger,
		now:         time.Now,
	}
}

// Pending returns a snapshot of the currently pending (failed-publish)
// signals, for tests and observability.
func (s *Service) Pending() []domain.Signal {
	out := make([]domain.Signal, len(s.pending))
	copy(out, s.pending)
	return out
}

// RunCycle polls every source sequentially — a source's poll() error is
// logged and skipped, isolating it from the other sources — then runs
// IngestSignals over everything collected.
func (s *Service) RunCycle(ctx context.Context) (Summary, error) {
	var raw []RawSignal
	for _, src := range s.sources {
		items, err := src.Poll(ctx)
		if err != nil {
			s.logger.Error("source poll failed", zap.String("source", src.Name()), zap.Error(err))
			continue
		}
		raw = append(raw, items...)
	}
	return s.IngestSignals(ctx, raw)
}

// IngestSignals runs the normalize/dedup/publish protocol over
// rawEvents, merging them into the process-local
// pending queue alongside any signals left over from a prior cycle.
func (s *Service) IngestSignals(ctx context.Context, rawEvents []RawSignal) (Summary, error) {
	summary := Summary{Polled: len(rawEvents)}

	pendingIDs := make(map[string]bool, len(s.pending))
	for _, p := range s.pending {
		pendingIDs[p.EventID] = true
	}

	for _, raw := range rawEvents {
		sig, err := domain.NormalizeSignal(raw, s.now())
		if err != nil {
			s.logger.Warn("failed to normalize raw signal", zap.Error(err))
			continue
		}
		if pendingIDs[sig.EventID] {
			continue
		}
		pendingIDs[sig.EventID] = true
		s.pending = append(s.pending, sig)
		summary.Queued++
	}

	remaining := s.pending[:0:0]
	for _, sig := range s.pending {
		first, err := s.idempotency.MarkIfFirstSeen(ctx, ExternalSignalsStream, sig.EventID)
		if err != nil {
			s.logger.Error("idempotency check failed", zap.String("event_id", sig.EventID), zap.Error(err))
			remaining = append(remaining, sig)
			continue
		}
		if !first {
			summary.SkippedDeduplicated++
			continue
		}

		publishErr := retry.Do(ctx, retry.Options{
			Attempts:    s.cfg.MaxPublishAttempts,
			BaseDelayMs: s.cfg.RetryDelayMs,
			OnRetry: func(e retry.Event) {
				s.logger.Warn("retrying publish",
					zap.String("event_id", sig.EventID), zap.Int("attempt", e.Attempt),
					zap.Int("attempts", e.Attempts), zap.Int64("delay_ms", e.DelayMs), zap.Error(e.Err))
			},
		}, func(ctx context.Context) error {
			payload, err := eventbus.Encode(sig, s.now())
			if err != nil {
				return err
			}
			_, err = s.publisher.Publish(ctx, ExternalSignalsStream, payload, eventbus.PublishOptions{})
			return err
		})

		if publishErr != nil {
			if err := s.idempotency.Clear(ctx, ExternalSignalsStream, sig.EventID); err != nil {
				s.logger.Error("failed to clear idempotency mark after terminal publish failure",
					zap.String("event_id", sig.EventID), zap.Error(err))
			}
			summary.Failed++
			remaining = append(remaining, sig)
			continue
		}

		summary.Published++
	}

	s.pending = remaining
	summary.Pending = len(s.pending)
	return summary, nil
}
