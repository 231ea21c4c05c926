// Package bootstrap factors the startup sequence every cmd/*/main.go in
// this repository repeats: structured logger construction, optional OTel
// tracer/meter init, optional Vault-backed secret loading with plain
// env-var fallback, a pinged Redis client, and a signal-driven shutdown
// context.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/config"
	"github.com/arc-self/riskstream/internal/logging"
	"github.com/arc-self/riskstream/internal/telemetry"
)

// Logger builds a production zap logger unless RISKSTREAM_LOG_DEV=true.
func Logger() (*zap.Logger, error) {
	return logging.New(os.Getenv("RISKSTREAM_LOG_DEV") == "true")
}

// Telemetry initializes the OTel tracer and meter providers when
// OTEL_EXPORTER_OTLP_ENDPOINT is set, returning a shutdown function to
// defer. When the endpoint is unset it is a no-op, exactly as in
// deployments without a collector.
func Telemetry(ctx context.Context, serviceName string, logger *zap.Logger) func(context.Context) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return func(context.Context) {}
	}

	tp, err := telemetry.InitTracer(ctx, serviceName, endpoint)
	if err != nil {
		logger.Warn("tracer init failed, continuing without tracing", zap.Error(err))
		tp = nil
	}
	mp, err := telemetry.InitMeterProvider(ctx, serviceName, endpoint)
	if err != nil {
		logger.Warn("meter init failed, continuing without metrics", zap.Error(err))
		mp = nil
	}

	return func(ctx context.Context) {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if tp != nil {
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn("tracer shutdown error", zap.Error(err))
			}
		}
		if mp != nil {
			if err := mp.Shutdown(shutdownCtx); err != nil {
				logger.Warn("meter shutdown error", zap.Error(err))
			}
		}
	}
}

// Secrets optionally loads a KV2 secret map from Vault, returning ok=false
// (and a nil map) when VAULT_ADDR is unset — configuration then falls
// back entirely to plain environment variables.
func Secrets(logger *zap.Logger, secretPathEnv, defaultPath string) (map[string]interface{}, bool) {
	vaultAddr := os.Getenv("VAULT_ADDR")
	if vaultAddr == "" {
		return nil, false
	}
	vaultToken := os.Getenv("VAULT_TOKEN")
	if vaultToken == "" {
		vaultToken = "root"
	}
	secretPath := os.Getenv(secretPathEnv)
	if secretPath == "" {
		secretPath = defaultPath
	}

	mgr, err := config.NewSecretManager(vaultAddr, vaultToken)
	if err != nil {
		logger.Warn("vault client init failed, falling back to env vars", zap.Error(err))
		return nil, false
	}
	secrets, err := mgr.GetKV2(secretPath)
	if err != nil {
		logger.Warn("vault secret load failed, falling back to env vars", zap.String("path", secretPath), zap.Error(err))
		return nil, false
	}
	return secrets, true
}

// RedisClient parses url and returns a pinged go-redis client.
func RedisClient(ctx context.Context, url string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("bootstrap: redis ping: %w", err)
	}
	return client, nil
}

// ShutdownContext returns a context cancelled on SIGINT/SIGTERM.
func ShutdownContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
