// Command mitigation-worker consumes risk-evaluations, drafts a
// mitigation plan for each, and publishes to mitigation-plans.
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
	"github.com/arc-self/riskstream/internal/planner"
	"github.com/arc-self/riskstream/internal/worker"
)

const (
	inputStream  = "risk-evaluations"
	outputStream = "mitigation-plans"
)

func main() {
	logger, _ := bootstrap.Logger()
	defer logger.Sync()

	secrets, _ := bootstrap.Secrets(logger, "VAULT_SECRET_PATH", "secret/data/arc/mitigation-worker")
	transport := config.LoadTransport()
	redisURL := config.StringSecret(secrets, "REDIS_URL", transport.URL)
	wCfg := config.LoadWorkerConfig("MITIGATION")

	ctx, stop := bootstrap.ShutdownContext()
	defer stop()

	redisClient, err := bootstrap.RedisClient(ctx, redisURL)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	bus := redisbus.New(redisClient).WithDefaultMaxLen(transport.StreamMaxLen)
	counter := worker.NewRedisAttemptCounterStore(redisClient)
	pl := planner.New()

	handler := func(ctx context.Context, msg eventbus.ConsumerMessage) error {
		decoded, err := eventbus.Decode(msg.Payload)
		if err != nil {
			return fmt.Errorf("mitigation-worker: decode risk evaluation: %w", err)
		}
		var eval domain.RiskEvaluation
		if err := json.Unmarshal(decoded.Message, &eval); err != nil {
			return fmt.Errorf("mitigation-worker: unmarshal risk evaluation: %w", err)
		}

		plan, err := pl.CreatePlan(ctx, eval)
		if err != nil {
			return fmt.Errorf("mitigation-worker: create plan %s: %w", eval.EventID, err)
		}

		payload, err := eventbus.Encode(plan, time.Now())
		if err != nil {
			return fmt.Errorf("mitigation-worker: encode mitigation plan: %w", err)
		}
		if _, err := bus.Publish(ctx, outputStream, payload, eventbus.PublishOptions{}); err != nil {
			return fmt.Errorf("mitigation-worker: publish mitigation plan: %w", err)
		}
		return nil
	}

	w := worker.New(bus, worker.Config{
		Stream:         inputStream,
		Group:          wCfg.Group,
		Consumer:       wCfg.ConsumerName,
		Role:           "mitigation-worker",
		BatchSize:      transport.ConsumerBatch,
		BlockMs:        transport.ConsumerBlockMs,
		MaxDeliveries:  transport.MaxDeliveries,
		RetryKeyTTL:    time.Duration(transport.RetryKeyTTLSeconds) * time.Second,
		RetryBackoffMs: 50,
	}, handler, counter, logger)

	logger.Info("mitigation-worker started", zap.String("group", wCfg.Group))
	if err := w.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Error("mitigation-worker exited with error", zap.Error(err))
	}
	logger.Info("mitigation-worker shut down cleanly")
}
