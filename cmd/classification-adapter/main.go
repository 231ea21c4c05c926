// Command classification-adapter serves the LLM classification HTTP
// endpoint, admitted through the same bounded-concurrency request
// gateway as the ingestion gateway.
package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/bootstrap"
	"github.com/arc-self/riskstream/internal/classifier"
	"github.com/arc-self/riskstream/internal/config"
	"github.com/arc-self/riskstream/internal/httpapi"
)

func main() {
	logger, _ := bootstrap.Logger()
	defer logger.Sync()

	secrets, _ := bootstrap.Secrets(logger, "VAULT_SECRET_PATH", "secret/data/arc/classification-adapter")
	clsCfg := config.LoadClassifierConfig()
	apiKey := config.StringSecret(secrets, "CLASSIFIER_API_KEY", clsCfg.APIKey)
	gwCfg := config.LoadGatewayConfig("CLASSIFICATION_ADAPTER")

	if clsCfg.LLMEndpoint == "" {
		logger.Fatal("RISKSTREAM_CLASSIFIER_LLM_ENDPOINT is required for the classification adapter")
	}

	ctx, stop := bootstrap.ShutdownContext()
	defer stop()

	telemetryShutdown := bootstrap.Telemetry(ctx, "classification-adapter", logger)
	defer telemetryShutdown(context.Background())

	llm := classifier.New(classifier.Config{
		UpstreamBaseURL:  clsCfg.LLMEndpoint,
		APIKey:           apiKey,
		Model:            clsCfg.Model,
		Timeout:          time.Duration(clsCfg.TimeoutMs) * time.Millisecond,
		MaxConcurrency:   clsCfg.MaxConcurrency,
		MaxQueueSize:     clsCfg.MaxQueueSize,
		MaxRetries:       clsCfg.MaxRetries,
		RetryBaseDelayMs: clsCfg.RetryBaseDelayMs,
	}, logger)

	e := httpapi.NewEcho("classification-adapter", logger)
	e.Use(httpapi.BodyLimit(gwCfg.MaxRequestBytes))
	httpapi.NewClassificationAdapter(llm, clsCfg.LLMEndpoint, logger).RegisterRoutes(e)

	go func() {
		logger.Info("classification-adapter listening", zap.String("port", gwCfg.Port))
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
	logger.Info("classification-adapter shut down cleanly")
}
