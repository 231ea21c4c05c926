// Command ingestion-worker runs the ingestion service: it consumes
// raw-input-signals (alongside any configured in-process sources),
// normalizes, dedups, and publishes to external-signals, retrying
// terminal failures into a process-local pending queue.
package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/bootstrap"
	"github.com/arc-self/riskstream/internal/config"
	"github.com/arc-self/riskstream/internal/eventbus/redisbus"
	"github.com/arc-self/riskstream/internal/idempotency"
	"github.com/arc-self/riskstream/internal/ingestion"
)

func main() {
	logger, _ := bootstrap.Logger()
	defer logger.Sync()

	secrets, _ := bootstrap.Secrets(logger, "VAULT_SECRET_PATH", "secret/data/arc/ingestion-worker")
	transport := config.LoadTransport()
	redisURL := config.StringSecret(secrets, "REDIS_URL", transport.URL)
	wCfg := config.LoadWorkerConfig("INGESTION")

	ctx, stop := bootstrap.ShutdownContext()
	defer stop()

	redisClient, err := bootstrap.RedisClient(ctx, redisURL)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	bus := redisbus.New(redisClient).WithDefaultMaxLen(transport.StreamMaxLen)
	idem := idempotency.NewRedisStore(redisClient, time.Duration(transport.DedupTTLSeconds)*time.Second)

	consumer := wCfg.ConsumerName
	if consumer == "" {
		consumer = "ingestion-worker"
	}
	source := ingestion.NewBusSource(bus, "raw-input-signals", wCfg.Group, consumer,
		transport.ConsumerBatch, transport.ConsumerBlockMs, logger)
	if err := source.Init(ctx); err != nil {
		logger.Fatal("failed to initialize raw-input-signals consumer group", zap.Error(err))
	}

	svc := ingestion.New([]ingestion.Source{source}, bus, idem, ingestion.Config{}, logger)

	cycleMs := transport.ConsumerBlockMs // reuse consumer block as the default cycle cadence floor
	if cycleMs <= 0 {
		cycleMs = 2_000
	}
	ticker := time.NewTicker(time.Duration(cycleMs) * time.Millisecond)
	defer ticker.Stop()

	logger.Info("ingestion-worker started", zap.String("group", wCfg.Group), zap.String("consumer", consumer))

	for {
		select {
		case <-ctx.Done():
			logger.Info("ingestion-worker shutting down")
			return
		case <-ticker.C:
			summary, err := svc.RunCycle(ctx)
			if err != nil {
				logger.Error("ingestion cycle failed", zap.Error(err))
				continue
			}
			logger.Debug("ingestion cycle complete",
				zap.Int("polled", summary.Polled), zap.Int("queued", summary.Queued),
				zap.Int("skipped_deduplicated", summary.SkippedDeduplicated),
				zap.Int("published", summary.Published), zap.Int("failed", summary.Failed),
				zap.Int("pending", summary.Pending))
		}
	}
}
