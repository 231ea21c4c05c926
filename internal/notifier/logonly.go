package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/deliverylog"
	"github.com/arc-self/riskstream/internal/domain"
)

// LogOnly records a notification via structured logging and the
// delivery log, without dispatching anywhere. Used when no webhook
// endpoint is configured.
type LogOnly struct {
	logs   deliverylog.Store
	logger *zap.Logger
}

// NewLogOnly builds a LogOnly notifier.
func NewLogOnly(logs deliverylog.Store, logger *zap.Logger) *LogOnly {
	return &LogOnly{logs: logs, logger: logger}
}

func (l *LogOnly) Notify(ctx context.Context, plan domain.MitigationPlan) (domain.Notification, error) {
	n := domain.Notification{
		EventID:   plan.EventID,
		Channel:   "log",
		Message:   messageFor(plan),
		SentAtUTC: nowUTC(),
	}
	l.logger.Info("notification", zap.String("event_id", n.EventID), zap.String("message", n.Message))

	if err := l.logs.Insert(ctx, deliverylog.Entry{
		NotificationEventID: n.EventID,
		Channel:             n.Channel,
		Recipient:           "log",
		Status:              "success",
		DeliveredAtUTC:      nowTime(),
	}); err != nil {
		l.logger.Error("failed to record delivery log", zap.Error(err))
	}
	return n, nil
}
