package deliverylog

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists delivery log entries to Postgres via a pgx pool.
// The pool passed in is expected to already carry an
// otelpgx.NewTracer() on its ConnConfig.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an already-connected pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const insertDeliveryLogSQL = `
INSERT INTO delivery_logs (notification_event_id, channel, recipient, status, error_message, delivered_at_utc)
VALUES ($1, $2, $3, $4, $5, $6)`

func (s *PGStore) Insert(ctx context.Context, e Entry) error {
	_, err := s.pool.Exec(ctx, insertDeliveryLogSQL,
		e.NotificationEventID, e.Channel, e.Recipient, e.Status, e.ErrorMessage, e.DeliveredAtUTC)
	return err
}

// EnsureSchema creates the delivery_logs table if absent. Called once at
// notification-worker startup; schema ownership stays simple for this
// single table.
const createDeliveryLogsTableSQL = `
CREATE TABLE IF NOT EXISTS delivery_logs (
	id BIGSERIAL PRIMARY KEY,
	notification_event_id TEXT NOT NULL,
	channel TEXT NOT NULL,
	recipient TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	delivered_at_utc TIMESTAMPTZ NOT NULL
)`

func (s *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, createDeliveryLogsTableSQL)
	return err
}
