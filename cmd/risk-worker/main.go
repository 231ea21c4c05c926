// Command risk-worker consumes classified-events, scores each
// structured-risk draft into a numeric risk evaluation, and publishes to
// risk-evaluations.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/bootstrap"
	"github.com/arc-self/riskstream/internal/config"
	"github.com/arc-self/riskstream/internal/domain"
	"github.com/arc-self/riskstream/internal/eventbus"
	"github.com/arc-self/riskstream/internal/eventbus/redisbus"
	"github.com/arc-self/riskstream/internal/scorer"
	"github.com/arc-self/riskstream/internal/worker"
)

const (
	inputStream  = "classified-events"
	outputStream = "risk-evaluations"
)

func main() {
	logger, _ := bootstrap.Logger()
	defer logger.Sync()

	secrets, _ := bootstrap.Secrets(logger, "VAULT_SECRET_PATH", "secret/data/arc/risk-worker")
	transport := config.LoadTransport()
	redisURL := config.StringSecret(secrets, "REDIS_URL", transport.URL)
	wCfg := config.LoadWorkerConfig("RISK")

	ctx, stop := bootstrap.ShutdownContext()
	defer stop()

	redisClient, err := bootstrap.RedisClient(ctx, redisURL)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	bus := redisbus.New(redisClient).WithDefaultMaxLen(transport.StreamMaxLen)
	counter := worker.NewRedisAttemptCounterStore(redisClient)
	sc := scorer.New()

	handler := func(ctx context.Context, msg eventbus.ConsumerMessage) error {
		decoded, err := eventbus.Decode(msg.Payload)
		if err != nil {
			return fmt.Errorf("risk-worker: decode classified event: %w", err)
		}
		var evt domain.ClassifiedEvent
		if err := json.Unmarshal(decoded.Message, &evt); err != nil {
			return fmt.Errorf("risk-worker: unmarshal classified event: %w", err)
		}

		eval, err := sc.Evaluate(ctx, evt.EventID, evt.StructuredRisk)
		if err != nil {
			return fmt.Errorf("risk-worker: evaluate %s: %w", evt.EventID, err)
		}

		payload, err := eventbus.Encode(eval, time.Now())
		if err != nil {
			return fmt.Errorf("risk-worker: encode risk evaluation: %w", err)
		}
		if _, err := bus.Publish(ctx, outputStream, payload, eventbus.PublishOptions{}); err != nil {
			return fmt.Errorf("risk-worker: publish risk evaluation: %w", err)
		}
		return nil
	}

	w := worker.New(bus, worker.Config{
		Stream:         inputStream,
		Group:          wCfg.Group,
		Consumer:       wCfg.ConsumerName,
		Role:           "risk-worker",
		BatchSize:      transport.ConsumerBatch,
		BlockMs:        transport.ConsumerBlockMs,
		MaxDeliveries:  transport.MaxDeliveries,
		RetryKeyTTL:    time.Duration(transport.RetryKeyTTLSeconds) * time.Second,
		RetryBackoffMs: 50,
	}, handler, counter, logger)

	logger.Info("risk-worker started", zap.String("group", wCfg.Group))
	if err := w.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Error("risk-worker exited with error", zap.Error(err))
	}
	logger.Info("risk-worker shut down cleanly")
}
