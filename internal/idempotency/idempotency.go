// Package idempotency implements the dedup store: a conditional-create
// marker keyed by (stream, event_id) with a TTL.
package idempotency

import "context"

// Store is the idempotency-key contract.
type Store interface {
	// MarkIfFirstSeen atomically creates the key for (stream, eventID) with
	// the configured TTL. It returns true exactly when the key did not
	// already exist.
	MarkIfFirstSeen(ctx context.Context, stream, eventID string) (bool, error)
	// Clear unconditionally deletes the key, used when a publish that
	// followed a successful mark later fails terminally.
	Clear(ctx context.Context, stream, eventID string) error
}

func key(stream, eventID string) string {
	return "dedup:" + stream + ":" + eventID
}
