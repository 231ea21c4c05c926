// Package notifier turns a mitigation plan into a notification and
// dispatches it. Routing/content logic is deliberately shallow; the
// Notifier interface is the contract the notification worker depends
// on. Webhook dispatch signs payloads with HMAC-SHA256 and records
// outcomes to the delivery log.
package notifier

import (
	"context"
	"time"

	"github.com/arc-self/riskstream/internal/domain"
)

// Notifier turns a mitigation plan into a notification and delivers it.
type Notifier interface {
	Notify(ctx context.Context, plan domain.MitigationPlan) (domain.Notification, error)
}

func messageFor(plan domain.MitigationPlan) string {
	if len(plan.Actions) == 0 {
		return "mitigation plan created for event " + plan.EventID
	}
	return "mitigation plan for event " + plan.EventID + ": " + plan.Actions[0]
}

func nowUTC() string { return nowTime().Format(time.RFC3339) }

func nowTime() time.Time { return time.Now().UTC() }
