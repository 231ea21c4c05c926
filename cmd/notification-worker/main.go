// Command notification-worker consumes mitigation-plans, dispatches a
// notification through the configured channel (webhook or log-only),
// and publishes the outcome to notifications.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/bootstrap"
	"github.com/arc-self/riskstream/internal/config"
	"github.com/arc-self/riskstream/internal/deliverylog"
	"github.com/arc-self/riskstream/internal/domain"
	"github.com/arc-self/riskstream/internal/eventbus"
	"github.com/arc-self/riskstream/internal/eventbus/redisbus"
	"github.com/arc-self/riskstream/internal/notifier"
	"github.com/arc-self/riskstream/internal/worker"
)

const (
	inputStream  = "mitigation-plans"
	outputStream = "notifications"
)

func main() {
	logger, _ := bootstrap.Logger()
	defer logger.Sync()

	secrets, _ := bootstrap.Secrets(logger, "VAULT_SECRET_PATH", "secret/data/arc/notification-worker")
	transport := config.LoadTransport()
	redisURL := config.StringSecret(secrets, "REDIS_URL", transport.URL)
	wCfg := config.LoadWorkerConfig("NOTIFICATION")
	notifCfg := config.LoadNotifierConfig()
	webhookSecret := config.StringSecret(secrets, "NOTIFIER_WEBHOOK_SECRET", notifCfg.WebhookSecret)

	ctx, stop := bootstrap.ShutdownContext()
	defer stop()

	redisClient, err := bootstrap.RedisClient(ctx, redisURL)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	logs, closePG := buildDeliveryLog(ctx, notifCfg.PGURL, logger)
	defer closePG()

	notif := buildNotifier(notifCfg, webhookSecret, logs, logger)

	bus := redisbus.New(redisClient).WithDefaultMaxLen(transport.StreamMaxLen)
	counter := worker.NewRedisAttemptCounterStore(redisClient)

	handler := func(ctx context.Context, msg eventbus.ConsumerMessage) error {
		decoded, err := eventbus.Decode(msg.Payload)
		if err != nil {
			return fmt.Errorf("notification-worker: decode mitigation plan: %w", err)
		}
		var plan domain.MitigationPlan
		if err := json.Unmarshal(decoded.Message, &plan); err != nil {
			return fmt.Errorf("notification-worker: unmarshal mitigation plan: %w", err)
		}

		n, err := notif.Notify(ctx, plan)
		if err != nil {
			return fmt.Errorf("notification-worker: notify %s: %w", plan.EventID, err)
		}

		payload, err := eventbus.Encode(n, time.Now())
		if err != nil {
			return fmt.Errorf("notification-worker: encode notification: %w", err)
		}
		if _, err := bus.Publish(ctx, outputStream, payload, eventbus.PublishOptions{}); err != nil {
			return fmt.Errorf("notification-worker: publish notification: %w", err)
		}
		return nil
	}

	w := worker.New(bus, worker.Config{
		Stream:         inputStream,
		Group:          wCfg.Group,
		Consumer:       wCfg.ConsumerName,
		Role:           "notification-worker",
		BatchSize:      transport.ConsumerBatch,
		BlockMs:        transport.ConsumerBlockMs,
		MaxDeliveries:  transport.MaxDeliveries,
		RetryKeyTTL:    time.Duration(transport.RetryKeyTTLSeconds) * time.Second,
		RetryBackoffMs: 50,
	}, handler, counter, logger)

	logger.Info("notification-worker started", zap.String("channel", notifCfg.Channel), zap.String("group", wCfg.Group))
	if err := w.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Error("notification-worker exited with error", zap.Error(err))
	}
	logger.Info("notification-worker shut down cleanly")
}

// buildDeliveryLog connects to Postgres when a PG URL is configured,
// or falls back to an in-memory store when delivery persistence isn't
// configured for this deployment.
func buildDeliveryLog(ctx context.Context, pgURL string, logger *zap.Logger) (deliverylog.Store, func()) {
	if pgURL == "" {
		logger.Warn("RISKSTREAM_DELIVERY_LOG_PG_URL unset, delivery log is in-memory only")
		return deliverylog.NewMemoryStore(), func() {}
	}

	poolCfg, err := pgxpool.ParseConfig(pgURL)
	if err != nil {
		logger.Error("parse delivery log pg url failed, falling back to in-memory store", zap.Error(err))
		return deliverylog.NewMemoryStore(), func() {}
	}
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Error("connect delivery log pg pool failed, falling back to in-memory store", zap.Error(err))
		return deliverylog.NewMemoryStore(), func() {}
	}

	store := deliverylog.NewPGStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("ensure delivery_logs schema failed, falling back to in-memory store", zap.Error(err))
		pool.Close()
		return deliverylog.NewMemoryStore(), func() {}
	}
	return store, pool.Close
}

func buildNotifier(cfg config.NotifierConfig, webhookSecret string, logs deliverylog.Store, logger *zap.Logger) notifier.Notifier {
	if cfg.Channel == "WEBHOOK" {
		return notifier.NewWebhook(cfg.WebhookURL, webhookSecret, logs, logger)
	}
	return notifier.NewLogOnly(logs, logger)
}
