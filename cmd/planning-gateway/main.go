// Command planning-gateway serves the planning HTTP entry point:
// POST /shipments and POST /inventory publish
// shipment/inventory records for the planning-state worker to persist.
package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/bootstrap"
	"github.com/arc-self/riskstream/internal/config"
	"github.com/arc-self/riskstream/internal/eventbus/redisbus"
	"github.com/arc-self/riskstream/internal/httpapi"
)

func main() {
	logger, _ := bootstrap.Logger()
	defer logger.Sync()

	secrets, _ := bootstrap.Secrets(logger, "VAULT_SECRET_PATH", "secret/data/arc/planning-gateway")
	transport := config.LoadTransport()
	redisURL := config.StringSecret(secrets, "REDIS_URL", transport.URL)
	gwCfg := config.LoadGatewayConfig("PLANNING")

	ctx, stop := bootstrap.ShutdownContext()
	defer stop()

	telemetryShutdown := bootstrap.Telemetry(ctx, "planning-gateway", logger)
	defer telemetryShutdown(context.Background())

	redisClient, err := bootstrap.RedisClient(ctx, redisURL)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	bus := redisbus.New(redisClient).WithDefaultMaxLen(transport.StreamMaxLen)

	e := httpapi.NewEcho("planning-gateway", logger)
	e.Use(httpapi.BodyLimit(gwCfg.MaxRequestBytes))
	httpapi.NewPlanningGateway(bus, logger).RegisterRoutes(e)

	go func() {
		logger.Info("planning-gateway listening", zap.String("port", gwCfg.Port))
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
	logger.Info("planning-gateway shut down cleanly")
}
