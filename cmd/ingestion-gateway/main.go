// Command ingestion-gateway serves the ingestion HTTP entry point:
// POST /signals publishes raw, pre-normalization signals onto
// raw-input-signals for the ingestion worker to consume.
package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/bootstrap"
	"github.com/arc-self/riskstream/internal/config"
	"github.com/arc-self/riskstream/internal/eventbus/redisbus"
	"github.com/arc-self/riskstream/internal/gateway"
	"github.com/arc-self/riskstream/internal/httpapi"
)

func main() {
	logger, _ := bootstrap.Logger()
	defer logger.Sync()

	secrets, _ := bootstrap.Secrets(logger, "VAULT_SECRET_PATH", "secret/data/arc/ingestion-gateway")
	transport := config.LoadTransport()
	redisURL := config.StringSecret(secrets, "REDIS_URL", transport.URL)
	gwCfg := config.LoadGatewayConfig("INGESTION")

	ctx, stop := bootstrap.ShutdownContext()
	defer stop()

	telemetryShutdown := bootstrap.Telemetry(ctx, "ingestion-gateway", logger)
	defer telemetryShutdown(context.Background())

	redisClient, err := bootstrap.RedisClient(ctx, redisURL)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	bus := redisbus.New(redisClient).WithDefaultMaxLen(transport.StreamMaxLen)
	gw := gateway.New(gateway.Config{MaxConcurrency: gwCfg.MaxConcurrency, MaxQueueSize: gwCfg.MaxQueueSize})

	e := httpapi.NewEcho("ingestion-gateway", logger)
	e.Use(httpapi.BodyLimit(gwCfg.MaxRequestBytes))
	httpapi.NewIngestionGateway(bus, gw, gwCfg.BearerToken, logger).RegisterRoutes(e)

	go func() {
		logger.Info("ingestion-gateway listening", zap.String("port", gwCfg.Port))
		if err := e.Start(":" + gwCfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failure", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown error", zap.Error(err))
	}
	logger.Info("ingestion-gateway shut down cleanly")
}
