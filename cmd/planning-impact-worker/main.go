// Command planning-impact-worker consumes mitigation-plans, joins each
// against persisted shipment/inventory state, and publishes
// at-risk-shipments and inventory-exposures.
package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/bootstrap"
	"github.com/arc-self/riskstream/internal/config"
	"github.com/arc-self/riskstream/internal/eventbus/redisbus"
	"github.com/arc-self/riskstream/internal/planningjoin"
	"github.com/arc-self/riskstream/internal/worker"
)

const inputStream = "mitigation-plans"

func main() {
	logger, _ := bootstrap.Logger()
	defer logger.Sync()

	secrets, _ := bootstrap.Secrets(logger, "VAULT_SECRET_PATH", "secret/data/arc/planning-impact-worker")
	transport := config.LoadTransport()
	redisURL := config.StringSecret(secrets, "REDIS_URL", transport.URL)
	wCfg := config.LoadWorkerConfig("PLANNING_IMPACT")

	ctx, stop := bootstrap.ShutdownContext()
	defer stop()

	redisClient, err := bootstrap.RedisClient(ctx, redisURL)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	bus := redisbus.New(redisClient).WithDefaultMaxLen(transport.StreamMaxLen)
	counter := worker.NewRedisAttemptCounterStore(redisClient)
	store := planningjoin.NewRedisStore(redisClient)
	joiner := planningjoin.New(store)
	handler := planningjoin.NewImpactHandler(joiner, bus, logger)

	w := worker.New(bus, worker.Config{
		Stream:         inputStream,
		Group:          wCfg.Group,
		Consumer:       wCfg.ConsumerName,
		Role:           "planning-impact-worker",
		BatchSize:      transport.ConsumerBatch,
		BlockMs:        transport.ConsumerBlockMs,
		MaxDeliveries:  transport.MaxDeliveries,
		RetryKeyTTL:    time.Duration(transport.RetryKeyTTLSeconds) * time.Second,
		RetryBackoffMs: 50,
	}, handler.Handle, counter, logger)

	logger.Info("planning-impact-worker started", zap.String("group", wCfg.Group))
	if err := w.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Error("planning-impact-worker exited with error", zap.Error(err))
	}
	logger.Info("planning-impact-worker shut down cleanly")
}
