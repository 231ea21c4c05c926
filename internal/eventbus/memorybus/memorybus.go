// Package memorybus is an in-process EventBus for tests, with a
// configurable failure budget for simulating transient publish errors.
package memorybus

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arc-self/riskstream/internal/eventbus"
)

type group struct {
	lastDelivered string
	// pending maps message id -> the consumer it was last delivered to.
	pending map[string]string
	// order preserves the original publish order of ids with an entry in
	// pending, so pending-first reads redeliver in original append order.
	order []string
}

type stream struct {
	records []eventbus.Record
	groups  map[string]*group
	seq     int64
}

// Bus is a goroutine-safe, single-process EventBus backed by plain slices
// and maps. It honors the same ordering and pending-first contract as the
// Redis driver so unit tests can exercise worker logic without a live
// Redis instance.
type Bus struct {
	mu      sync.Mutex
	streams map[string]*stream
	now     func() time.Time

	// failureBudget is the number of Publish calls (across all streams)
	// that return a transient transport error before publishes start
	// succeeding again. Used by ingestion retry tests.
	failureBudget int
	publishCalls  int
}

// New creates an empty in-memory bus.
func New() *Bus {
	return &Bus{
		streams: make(map[string]*stream),
		now:     time.Now,
	}
}

// WithFailureBudget configures the number of upcoming Publish calls that
// fail with a transient error before succeeding. It is not safe to call
// concurrently with Publish.
func (b *Bus) WithFailureBudget(n int) *Bus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureBudget = n
	return b
}

// PublishCalls returns the total number of Publish invocations observed
// so far, including ones that failed the failure budget — used by tests
// asserting retry counts.
func (b *Bus) PublishCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.publishCalls
}

func (b *Bus) streamFor(name string) *stream {
	s, ok := b.streams[name]
	if !ok {
		s = &stream{groups: make(map[string]*group)}
		b.streams[name] = s
	}
	return s
}

// nextID assigns a monotonic, lexicographically comparable id —
// "<millis>-<seq>" zero-padded so string comparison equals insertion
// order, mirroring Redis Streams' "<ms>-<seq>" id shape.
func (s *stream) nextID(now time.Time) string {
	s.seq++
	return fmt.Sprintf("%020d-%010d", now.UnixMilli(), s.seq)
}

func (b *Bus) Publish(ctx context.Context, streamName string, message []byte, opts eventbus.PublishOptions) (eventbus.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.publishCalls++
	if b.failureBudget > 0 {
		b.failureBudget--
		return eventbus.Record{}, fmt.Errorf("memorybus: simulated transport error")
	}

	s := b.streamFor(streamName)
	now := b.now()
	rec := eventbus.Record{
		Stream:      streamName,
		ID:          s.nextID(now),
		Payload:     append([]byte(nil), message...),
		PublishedAt: now,
	}
	s.records = append(s.records, rec)

	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = eventbus.DefaultMaxLen
	}
	if int64(len(s.records)) > maxLen {
		overflow := int64(len(s.records)) - maxLen
		s.records = s.records[overflow:]
	}

	return rec, nil
}

func (b *Bus) ReadRecent(ctx context.Context, streamName string, limit int64) ([]eventbus.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if limit <= 0 {
		return nil, nil
	}
	s, ok := b.streams[streamName]
	if !ok {
		return nil, nil
	}
	start := 0
	if int64(len(s.records)) > limit {
		start = len(s.records) - int(limit)
	}
	out := make([]eventbus.Record, len(s.records)-start)
	copy(out, s.records[start:])
	return out, nil
}

func (b *Bus) EnsureGroup(ctx context.Context, streamName, groupName string, start eventbus.StartPosition) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.streamFor(streamName)
	if _, ok := s.groups[groupName]; ok {
		return nil // idempotent: already-exists is swallowed
	}

	g := &group{pending: make(map[string]string)}
	switch start {
	case eventbus.StartHead:
		// lastDelivered stays "" so the next read walks from the beginning.
	case eventbus.StartTail, "":
		if len(s.records) > 0 {
			g.lastDelivered = s.records[len(s.records)-1].ID
		}
	default:
		g.lastDelivered = string(start) // literal record id
	}
	s.groups[groupName] = g
	return nil
}

func (b *Bus) ConsumeGroup(ctx context.Context, opts eventbus.ConsumeOptions) ([]eventbus.ConsumerMessage, error) {
	if opts.Count <= 0 {
		return nil, nil
	}

	b.mu.Lock()
	s, ok := b.streams[opts.Stream]
	if !ok {
		b.mu.Unlock()
		return nil, nil
	}
	g, ok := s.groups[opts.Group]
	if !ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("memorybus: unknown group %q on stream %q", opts.Group, opts.Stream)
	}

	// Pending-first: redeliver this consumer's own unacked ids, oldest
	// first, non-blocking.
	var out []eventbus.ConsumerMessage
	byID := make(map[string]eventbus.Record, len(s.records))
	for _, r := range s.records {
		byID[r.ID] = r
	}
	for _, id := range g.order {
		if int64(len(out)) >= opts.Count {
			break
		}
		owner, stillPending := g.pending[id]
		if !stillPending || owner != opts.Consumer {
			continue
		}
		rec, ok := byID[id]
		if !ok {
			continue // trimmed off the stream but still pending; skip silently
		}
		out = append(out, eventbus.ConsumerMessage{Record: rec, Group: opts.Group, Consumer: opts.Consumer})
	}
	if len(out) > 0 {
		b.mu.Unlock()
		return b.decodeOrDLQ(ctx, opts, out)
	}

	// Nothing pending for this consumer: read new messages past the
	// group cursor. The in-memory store has no real blocking I/O, so
	// BlockMs only bounds an optional short wait for new arrivals.
	remaining := opts.Count
	deadline := time.Time{}
	if opts.BlockMs > 0 {
		deadline = b.now().Add(time.Duration(opts.BlockMs) * time.Millisecond)
	}

	for {
		var fresh []eventbus.Record
		for _, r := range s.records {
			if r.ID > g.lastDelivered {
				fresh = append(fresh, r)
			}
		}
		sort.Slice(fresh, func(i, j int) bool { return fresh[i].ID < fresh[j].ID })

		for _, r := range fresh {
			if int64(len(out)) >= remaining {
				break
			}
			g.lastDelivered = r.ID
			g.pending[r.ID] = opts.Consumer
			g.order = append(g.order, r.ID)
			out = append(out, eventbus.ConsumerMessage{Record: r, Group: opts.Group, Consumer: opts.Consumer})
		}

		if len(out) > 0 || deadline.IsZero() || b.now().After(deadline) {
			break
		}
		b.mu.Unlock()
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(time.Millisecond):
		}
		b.mu.Lock()
	}

	b.mu.Unlock()
	return b.decodeOrDLQ(ctx, opts, out)
}

// decodeOrDLQ honors the same contract as the Redis driver: an entry
// whose envelope fails to decode is routed to the stream's DLQ and
// acked, so the caller never sees it. Called without b.mu held.
func (b *Bus) decodeOrDLQ(ctx context.Context, opts eventbus.ConsumeOptions, msgs []eventbus.ConsumerMessage) ([]eventbus.ConsumerMessage, error) {
	out := make([]eventbus.ConsumerMessage, 0, len(msgs))
	for _, m := range msgs {
		if _, err := eventbus.Decode(m.Payload); err != nil {
			if _, dlqErr := b.MoveToDLQ(ctx, eventbus.DLQEntry{
				SourceStream:    opts.Stream,
				SourceMessageID: m.ID,
				Reason:          eventbus.ReasonMalformedPayload,
				Payload:         m.Payload,
			}); dlqErr != nil {
				return nil, fmt.Errorf("memorybus: dlq route malformed entry %s: %w", m.ID, dlqErr)
			}
			if _, ackErr := b.Ack(ctx, opts.Stream, opts.Group, []string{m.ID}); ackErr != nil {
				return nil, fmt.Errorf("memorybus: ack malformed entry %s: %w", m.ID, ackErr)
			}
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (b *Bus) Ack(ctx context.Context, streamName, groupName string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.streams[streamName]
	if !ok {
		return 0, nil
	}
	g, ok := s.groups[groupName]
	if !ok {
		return 0, nil
	}

	var count int64
	for _, id := range ids {
		if _, ok := g.pending[id]; ok {
			delete(g.pending, id)
			count++
		}
	}
	return count, nil
}

func (b *Bus) MoveToDLQ(ctx context.Context, entry eventbus.DLQEntry) (string, error) {
	raw, err := eventbus.Encode(entry, b.now())
	if err != nil {
		return "", err
	}
	rec, err := b.Publish(ctx, eventbus.DLQStream(entry.SourceStream), raw, eventbus.PublishOptions{})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (b *Bus) Close() error { return nil }

var _ eventbus.EventBus = (*Bus)(nil)
