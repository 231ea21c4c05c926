package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/deliverylog"
	"github.com/arc-self/riskstream/internal/domain"
)

// Webhook dispatches a signed JSON payload to a configured endpoint and
// records the outcome to the delivery log.
type Webhook struct {
	url    string
	secret string
	client *http.Client
	logs   deliverylog.Store
	logger *zap.Logger
}

// NewWebhook builds a Webhook notifier with a 10s default timeout.
func NewWebhook(url, secret string, logs deliverylog.Store, logger *zap.Logger) *Webhook {
	return &Webhook{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		logs:   logs,
		logger: logger,
	}
}

func (w *Webhook) Notify(ctx context.Context, plan domain.MitigationPlan) (domain.Notification, error) {
	n := domain.Notification{
		EventID:   plan.EventID,
		Channel:   "webhook",
		Message:   messageFor(plan),
		SentAtUTC: nowUTC(),
	}

	body, err := json.Marshal(n)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("notifier: marshal payload: %w", err)
	}

	sig := computeHMAC(w.secret, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return domain.Notification{}, fmt.Errorf("notifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Arc-Signature", sig)

	resp, doErr := w.client.Do(req)

	status := "success"
	errMsg := ""
	if doErr != nil {
		status = "failed"
		errMsg = doErr.Error()
		w.logger.Warn("webhook delivery failed", zap.String("url", w.url), zap.Error(doErr))
	} else {
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			status = "failed"
			errMsg = fmt.Sprintf("HTTP %d", resp.StatusCode)
			w.logger.Warn("webhook non-2xx response", zap.String("url", w.url), zap.Int("status", resp.StatusCode))
		}
	}

	if logErr := w.logs.Insert(ctx, deliverylog.Entry{
		NotificationEventID: n.EventID,
		Channel:             n.Channel,
		Recipient:           w.url,
		Status:              status,
		ErrorMessage:        errMsg,
		DeliveredAtUTC:      time.Now().UTC(),
	}); logErr != nil {
		w.logger.Error("failed to record delivery log", zap.Error(logErr))
	}

	if status == "failed" {
		return n, fmt.Errorf("notifier: webhook delivery to %s failed: %s", w.url, errMsg)
	}
	return n, nil
}

func computeHMAC(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
