// Package redisbus implements eventbus.EventBus on top of Redis Streams:
// XADD with approximate MAXLEN trimming for publish, XGROUP CREATE with
// BUSYGROUP swallowed, "0" for pending-first re-reads, ">" for new
// messages, and XACK after successful processing.
package redisbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arc-self/riskstream/internal/eventbus"
)

// payloadField is the single field each Redis Streams entry carries; the
// JSON envelope (eventbus.Encode output) is stored verbatim as its value.
const payloadField = "data"

// Bus is a Redis-Streams-backed eventbus.EventBus.
type Bus struct {
	client        redis.UniversalClient
	ownsCli       bool
	defaultMaxLen int64
}

// New wraps an existing redis client. The caller retains ownership —
// Close() is a no-op in this case.
func New(client redis.UniversalClient) *Bus {
	return &Bus{client: client}
}

// WithDefaultMaxLen sets the approximate length cap applied to every
// publish that does not specify its own, replacing the package default.
func (b *Bus) WithDefaultMaxLen(n int64) *Bus {
	b.defaultMaxLen = n
	return b
}

// Dial connects to addr and returns a Bus that owns the connection —
// Close() will close it.
func Dial(addr string) (*Bus, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("redisbus: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redisbus: ping: %w", err)
	}
	return &Bus{client: client, ownsCli: true}, nil
}

func (b *Bus) Publish(ctx context.Context, stream string, message []byte, opts eventbus.PublishOptions) (eventbus.Record, error) {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = b.defaultMaxLen
	}
	if maxLen <= 0 {
		maxLen = eventbus.DefaultMaxLen
	}

	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true, // newest-bounded approximate trimming
		Values: map[string]any{payloadField: message},
	}).Result()
	if err != nil {
		return eventbus.Record{}, fmt.Errorf("redisbus: xadd %s: %w", stream, err)
	}

	return eventbus.Record{
		Stream:      stream,
		ID:          id,
		Payload:     message,
		PublishedAt: time.Now().UTC(),
	}, nil
}

func (b *Bus) ReadRecent(ctx context.Context, stream string, limit int64) ([]eventbus.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	msgs, err := b.client.XRevRangeN(ctx, stream, "+", "-", limit).Result()
	if err != nil {
		return nil, fmt.Errorf("redisbus: xrevrange %s: %w", stream, err)
	}

	out := make([]eventbus.Record, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- { // reverse back to chronological order
		rec, ok := toRecord(stream, msgs[i])
		if !ok {
			continue // malformed entries are silently skipped on tailing reads
		}
		out = append(out, rec)
	}
	return out, nil
}

func toRecord(stream string, msg redis.XMessage) (eventbus.Record, bool) {
	raw, ok := msg.Values[payloadField]
	if !ok {
		return eventbus.Record{}, false
	}
	var payload []byte
	switch v := raw.(type) {
	case string:
		payload = []byte(v)
	case []byte:
		payload = v
	default:
		return eventbus.Record{}, false
	}
	return eventbus.Record{Stream: stream, ID: msg.ID, Payload: payload, PublishedAt: time.Now().UTC()}, true
}

func (b *Bus) EnsureGroup(ctx context.Context, stream, group string, start eventbus.StartPosition) error {
	var startID string
	switch start {
	case eventbus.StartHead:
		startID = "0"
	case eventbus.StartTail, "":
		startID = "$"
	default:
		startID = string(start) // literal record id
	}
	err := b.client.XGroupCreateMkStream(ctx, stream, group, startID).Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil // already exists — EnsureGroup is idempotent
	}
	return fmt.Errorf("redisbus: xgroup create %s/%s: %w", stream, group, err)
}

func (b *Bus) ConsumeGroup(ctx context.Context, opts eventbus.ConsumeOptions) ([]eventbus.ConsumerMessage, error) {
	if opts.Count <= 0 {
		return nil, nil
	}

	// Pending-first: our own previously-delivered, not-yet-acked messages,
	// non-blocking, cursor "0".
	pending, err := b.readGroup(ctx, opts, "0", 0)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		return b.decodeOrDLQ(ctx, opts, pending)
	}

	// New messages past the group cursor, blocking up to BlockMs, cursor ">".
	fresh, err := b.readGroup(ctx, opts, ">", opts.BlockMs)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return b.decodeOrDLQ(ctx, opts, fresh)
}

func (b *Bus) readGroup(ctx context.Context, opts eventbus.ConsumeOptions, cursor string, blockMs int64) ([]redis.XMessage, error) {
	args := &redis.XReadGroupArgs{
		Group:    opts.Group,
		Consumer: opts.Consumer,
		Streams:  []string{opts.Stream, cursor},
		Count:    opts.Count,
	}
	if blockMs > 0 {
		args.Block = time.Duration(blockMs) * time.Millisecond
	} else {
		// go-redis sends BLOCK whenever Block >= 0, and BLOCK 0 means
		// "wait forever"; a negative value omits it for a non-blocking read.
		args.Block = -1
	}

	res, err := b.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redisbus: xreadgroup %s/%s: %w", opts.Stream, opts.Group, err)
	}
	for _, s := range res {
		if s.Stream == opts.Stream {
			return s.Messages, nil
		}
	}
	return nil, nil
}

// decodeOrDLQ turns raw XMessages into ConsumerMessages, immediately
// routing any entry whose envelope fails to decode to the stream's DLQ
// and acking it — the caller never sees a malformed payload.
func (b *Bus) decodeOrDLQ(ctx context.Context, opts eventbus.ConsumeOptions, msgs []redis.XMessage) ([]eventbus.ConsumerMessage, error) {
	out := make([]eventbus.ConsumerMessage, 0, len(msgs))
	for _, m := range msgs {
		rec, ok := toRecord(opts.Stream, m)
		if !ok {
			if _, err := b.MoveToDLQ(ctx, eventbus.DLQEntry{
				SourceStream:    opts.Stream,
				SourceMessageID: m.ID,
				Reason:          eventbus.ReasonMalformedPayload,
				Payload:         nil,
			}); err != nil {
				return nil, fmt.Errorf("redisbus: dlq route malformed entry %s: %w", m.ID, err)
			}
			if _, err := b.Ack(ctx, opts.Stream, opts.Group, []string{m.ID}); err != nil {
				return nil, fmt.Errorf("redisbus: ack malformed entry %s: %w", m.ID, err)
			}
			continue
		}
		if _, err := eventbus.Decode(rec.Payload); err != nil {
			if _, dlqErr := b.MoveToDLQ(ctx, eventbus.DLQEntry{
				SourceStream:    opts.Stream,
				SourceMessageID: m.ID,
				Reason:          eventbus.ReasonMalformedPayload,
				Payload:         rec.Payload,
			}); dlqErr != nil {
				return nil, fmt.Errorf("redisbus: dlq route malformed entry %s: %w", m.ID, dlqErr)
			}
			if _, ackErr := b.Ack(ctx, opts.Stream, opts.Group, []string{m.ID}); ackErr != nil {
				return nil, fmt.Errorf("redisbus: ack malformed entry %s: %w", m.ID, ackErr)
			}
			continue
		}
		out = append(out, eventbus.ConsumerMessage{
			Record:   rec,
			Group:    opts.Group,
			Consumer: opts.Consumer,
		})
	}
	return out, nil
}

func (b *Bus) Ack(ctx context.Context, stream, group string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := b.client.XAck(ctx, stream, group, ids...).Result()
	if err != nil {
		return 0, fmt.Errorf("redisbus: xack %s/%s: %w", stream, group, err)
	}
	return n, nil
}

func (b *Bus) MoveToDLQ(ctx context.Context, entry eventbus.DLQEntry) (string, error) {
	raw, err := eventbus.Encode(entry, time.Now())
	if err != nil {
		return "", fmt.Errorf("redisbus: encode dlq entry: %w", err)
	}
	rec, err := b.Publish(ctx, eventbus.DLQStream(entry.SourceStream), raw, eventbus.PublishOptions{})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (b *Bus) Close() error {
	if !b.ownsCli {
		return nil
	}
	if closer, ok := b.client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

var _ eventbus.EventBus = (*Bus)(nil)
