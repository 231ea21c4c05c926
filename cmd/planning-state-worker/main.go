// Command planning-state-worker persists shipment-plans and
// inventory-snapshots into the planning state store the planning-impact
// worker joins against. It runs two independent consumer-group loops,
// one per stream, in a single process rather than splitting into two
// binaries for two small handlers.
package main

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/bootstrap"
	"github.com/arc-self/riskstream/internal/config"
	"github.com/arc-self/riskstream/internal/eventbus/redisbus"
	"github.com/arc-self/riskstream/internal/httpapi"
	"github.com/arc-self/riskstream/internal/planningjoin"
	"github.com/arc-self/riskstream/internal/worker"
)

func main() {
	logger, _ := bootstrap.Logger()
	defer logger.Sync()

	secrets, _ := bootstrap.Secrets(logger, "VAULT_SECRET_PATH", "secret/data/arc/planning-state-worker")
	transport := config.LoadTransport()
	redisURL := config.StringSecret(secrets, "REDIS_URL", transport.URL)
	wCfg := config.LoadWorkerConfig("PLANNING_STATE")

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
	handler := planningjoin.NewStateHandler(store, logger)

	shipmentWorker := worker.New(bus, worker.Config{
		Stream:         httpapi.ShipmentPlansStream,
		Group:          wCfg.Group,
		Consumer:       consumerName(wCfg.ConsumerName, "shipments"),
		Role:           "planning-state-worker-shipments",
		BatchSize:      transport.ConsumerBatch,
		BlockMs:        transport.ConsumerBlockMs,
		MaxDeliveries:  transport.MaxDeliveries,
		RetryKeyTTL:    time.Duration(transport.RetryKeyTTLSeconds) * time.Second,
		RetryBackoffMs: 50,
	}, handler.HandleShipment, counter, logger)

	inventoryWorker := worker.New(bus, worker.Config{
		Stream:         httpapi.InventorySnapshotsStream,
		Group:          wCfg.Group,
		Consumer:       consumerName(wCfg.ConsumerName, "inventory"),
		Role:           "planning-state-worker-inventory",
		BatchSize:      transport.ConsumerBatch,
		BlockMs:        transport.ConsumerBlockMs,
		MaxDeliveries:  transport.MaxDeliveries,
		RetryKeyTTL:    time.Duration(transport.RetryKeyTTLSeconds) * time.Second,
		RetryBackoffMs: 50,
	}, handler.HandleInventory, counter, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go runLoop(ctx, &wg, "shipments", shipmentWorker, logger)
	go runLoop(ctx, &wg, "inventory", inventoryWorker, logger)

	logger.Info("planning-state-worker started", zap.String("group", wCfg.Group))
	wg.Wait()
	logger.Info("planning-state-worker shut down cleanly")
}

func runLoop(ctx context.Context, wg *sync.WaitGroup, name string, w *worker.Worker, logger *zap.Logger) {
	defer wg.Done()
	if err := w.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Error("planning-state-worker loop exited with error", zap.String("loop", name), zap.Error(err))
	}
}

func consumerName(base, suffix string) string {
	if base == "" {
		return ""
	}
	return base + "-" + suffix
}
