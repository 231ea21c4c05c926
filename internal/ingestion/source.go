package ingestion

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/eventbus"
)

// BusSource adapts a raw-input-signals consumer group into a Source,
// letting the ingestion worker consume the raw stream alongside any
// in-process Source list.
//
// Messages are acknowledged as soon as they are decoded into this
// cycle's batch, before normalize/dedup/publish runs: the Service's
// in-memory pending queue (not stream redelivery) is the recovery path for
// a publish that fails after this point, and raw-input-signals itself
// is append-only history a connector or gateway can always replay from
// if the whole process is lost.
type BusSource struct {
	bus     eventbus.EventConsumer
	stream  string
	group   string
	consume eventbus.ConsumeOptions
	logger  *zap.Logger
}

// NewBusSource builds a BusSource consuming stream in the given
// consumer group.
func NewBusSource(bus eventbus.EventConsumer, stream, group, consumer string, batchSize, blockMs int64, logger *zap.Logger) *BusSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BusSource{
		bus:    bus,
		stream: stream,
		group:  group,
		consume: eventbus.ConsumeOptions{
			Stream:   stream,
			Group:    group,
			Consumer: consumer,
			Count:    batchSize,
			BlockMs:  blockMs,
		},
		logger: logger,
	}
}

func (s *BusSource) Name() string { return s.stream }

// Init ensures the consumer group exists, starting from head so no
// record published before the worker's first run is skipped.
func (s *BusSource) Init(ctx context.Context) error {
	return s.bus.EnsureGroup(ctx, s.stream, s.group, eventbus.StartHead)
}

func (s *BusSource) Poll(ctx context.Context) ([]RawSignal, error) {
	msgs, err := s.bus.ConsumeGroup(ctx, s.consume)
	if err != nil {
		return nil, fmt.Errorf("ingestion: consume %s/%s: %w", s.stream, s.group, err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(msgs))
	out := make([]RawSignal, 0, len(msgs))
	for _, msg := range msgs {
		decoded, err := eventbus.Decode(msg.Payload)
		if err != nil {
			s.logger.Warn("dropping malformed raw-input-signals message",
				zap.String("message_id", msg.ID), zap.Error(err))
			ids = append(ids, msg.ID)
			continue
		}
		var raw RawSignal
		if err := json.Unmarshal(decoded.Message, &raw); err != nil {
			s.logger.Warn("dropping non-object raw-input-signals message",
				zap.String("message_id", msg.ID), zap.Error(err))
			ids = append(ids, msg.ID)
			continue
		}
		out = append(out, raw)
		ids = append(ids, msg.ID)
	}

	if _, err := s.bus.Ack(ctx, s.stream, s.group, ids); err != nil {
		return nil, fmt.Errorf("ingestion: ack %s/%s: %w", s.stream, s.group, err)
	}
	return out, nil
}

var _ Source = (*BusSource)(nil)
