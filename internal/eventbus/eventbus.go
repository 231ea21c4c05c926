// Package eventbus defines the log-structured event-bus abstraction that
// ties the risk pipeline together: publish, tailing reads, consumer
// groups, acknowledgement, and dead-letter routing over an opaque
// message payload.
//
// The bus is generic over the backing log store. A faithful Redis
// Streams mapping lives in eventbus/redisbus; an in-memory store for
// tests lives in eventbus/memorybus. Both satisfy EventBus.
package eventbus

import (
	"context"
	"errors"
	"time"
)

// DLQSuffix is appended to a stream name to obtain its dead-letter stream.
const DLQSuffix = ".dlq"

// DLQStream returns the dead-letter stream name for stream.
func DLQStream(stream string) string {
	return stream + DLQSuffix
}

// StartPosition selects where a newly created consumer group begins
// reading: StartTail, StartHead, or a literal record id to start after.
type StartPosition string

const (
	// StartTail delivers only records published after the group is created.
	StartTail StartPosition = "tail"
	// StartHead delivers every record currently retained by the stream.
	StartHead StartPosition = "head"
)

// Record is the unit of log content returned by a read. ID is assigned by
// the store and is lexicographically comparable: ID ordering equals
// insertion order within a stream.
type Record struct {
	Stream      string
	ID          string
	Payload     []byte
	PublishedAt time.Time
}

// ConsumerMessage wraps a Record with the delivery metadata a consumer
// group needs to ack or redeliver it.
type ConsumerMessage struct {
	Record
	Group    string
	Consumer string
	// DeliveryCount is a slot for the backing store's own redelivery
	// counter. Neither redisbus nor memorybus fills it, so it is always
	// zero; the worker's external attempt-counter store is authoritative
	// (spec open question: the two are never reconciled).
	DeliveryCount int64
}

// PublishOptions controls an individual publish call.
type PublishOptions struct {
	// MaxLen approximately caps the stream length after this publish. Zero
	// selects the driver's default.
	MaxLen int64
}

// DLQEntry is the structured payload moved into a "<stream>.dlq" stream.
type DLQEntry struct {
	SourceStream    string            `json:"source_stream"`
	SourceMessageID string            `json:"source_message_id"`
	Reason          string            `json:"reason"`
	Payload         []byte            `json:"payload"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// DLQ promotion reasons.
const (
	ReasonMalformedPayload    = "MALFORMED_PAYLOAD"
	ReasonMaxDeliveriesExceed = "MAX_DELIVERIES_EXCEEDED"
)

// ConsumeOptions parameterizes a single consumeGroup call.
type ConsumeOptions struct {
	Stream   string
	Group    string
	Consumer string
	Count    int64
	// BlockMs bounds how long to wait for new (non-pending) messages. Zero
	// means "don't block" — return whatever is immediately available.
	BlockMs int64
}

// ErrGroupExists is swallowed internally by EnsureGroup implementations;
// it is exported so tests can assert on ensureGroup's idempotence without
// depending on a specific store's wire error text.
var ErrGroupExists = errors.New("eventbus: consumer group already exists")

// EventPublisher appends records to a stream.
type EventPublisher interface {
	Publish(ctx context.Context, stream string, message []byte, opts PublishOptions) (Record, error)
}

// EventStreamReader performs unordered-by-group tailing reads.
type EventStreamReader interface {
	ReadRecent(ctx context.Context, stream string, limit int64) ([]Record, error)
}

// EventConsumer is the consumer-group surface: group lifecycle, delivery,
// acknowledgement, and DLQ routing.
type EventConsumer interface {
	EnsureGroup(ctx context.Context, stream, group string, start StartPosition) error
	ConsumeGroup(ctx context.Context, opts ConsumeOptions) ([]ConsumerMessage, error)
	Ack(ctx context.Context, stream, group string, ids []string) (int64, error)
	MoveToDLQ(ctx context.Context, entry DLQEntry) (string, error)
}

// EventBus composes the full bus contract consumed by the rest of the
// pipeline. Classifiers, workers, and gateways depend on this interface,
// never on a concrete driver — the backing store is swapped by
// constructing a different implementation (redisbus vs memorybus).
type EventBus interface {
	EventPublisher
	EventStreamReader
	EventConsumer
	Close() error
}

// DefaultMaxLen is the approximate stream length cap applied when a
// publish does not specify one.
const DefaultMaxLen = 100_000
