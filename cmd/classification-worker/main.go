// Command classification-worker consumes external-signals, classifies
// each signal into a structured-risk draft (rule-based or LLM-backed
// per RISKSTREAM_CLASSIFIER_MODE), and publishes to classified-events.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/bootstrap"
	"github.com/arc-self/riskstream/internal/classifier"
	"github.com/arc-self/riskstream/internal/config"
	"github.com/arc-self/riskstream/internal/domain"
	"github.com/arc-self/riskstream/internal/eventbus"
	"github.com/arc-self/riskstream/internal/eventbus/redisbus"
	"github.com/arc-self/riskstream/internal/worker"
)

const (
	inputStream  = "external-signals"
	outputStream = "classified-events"
)

func main() {
	logger, _ := bootstrap.Logger()
	defer logger.Sync()

	secrets, _ := bootstrap.Secrets(logger, "VAULT_SECRET_PATH", "secret/data/arc/classification-worker")
	transport := config.LoadTransport()
	redisURL := config.StringSecret(secrets, "REDIS_URL", transport.URL)
	wCfg := config.LoadWorkerConfig("CLASSIFICATION")
	clsCfg := config.LoadClassifierConfig()
	apiKey := config.StringSecret(secrets, "CLASSIFIER_API_KEY", clsCfg.APIKey)

	if clsCfg.Mode == "LLM" && clsCfg.LLMEndpoint == "" {
		logger.Fatal("RISKSTREAM_CLASSIFIER_LLM_ENDPOINT is required when RISKSTREAM_CLASSIFIER_MODE=LLM")
	}

	ctx, stop := bootstrap.ShutdownContext()
	defer stop()

	redisClient, err := bootstrap.RedisClient(ctx, redisURL)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	bus := redisbus.New(redisClient).WithDefaultMaxLen(transport.StreamMaxLen)
	counter := worker.NewRedisAttemptCounterStore(redisClient)

	cls := buildClassifier(clsCfg, apiKey, logger)

	handler := func(ctx context.Context, msg eventbus.ConsumerMessage) error {
		decoded, err := eventbus.Decode(msg.Payload)
		if err != nil {
			return fmt.Errorf("classification-worker: decode signal: %w", err)
		}
		var signal domain.Signal
		if err := json.Unmarshal(decoded.Message, &signal); err != nil {
			return fmt.Errorf("classification-worker: unmarshal signal: %w", err)
		}

		sr, err := cls.Classify(ctx, signal)
		if err != nil {
			return fmt.Errorf("classification-worker: classify %s: %w", signal.EventID, err)
		}
		if sr.ClassificationConfidence < clsCfg.ConfidenceThreshold {
			logger.Debug("dropping classification below confidence threshold",
				zap.String("event_id", signal.EventID),
				zap.Float64("confidence", sr.ClassificationConfidence),
				zap.Float64("threshold", clsCfg.ConfidenceThreshold))
			return nil
		}

		payload, err := eventbus.Encode(domain.ClassifiedEvent{EventID: signal.EventID, StructuredRisk: sr}, time.Now())
		if err != nil {
			return fmt.Errorf("classification-worker: encode classified event: %w", err)
		}
		if _, err := bus.Publish(ctx, outputStream, payload, eventbus.PublishOptions{}); err != nil {
			return fmt.Errorf("classification-worker: publish classified event: %w", err)
		}
		return nil
	}

	w := worker.New(bus, worker.Config{
		Stream:         inputStream,
		Group:          wCfg.Group,
		Consumer:       wCfg.ConsumerName,
		Role:           "classification-worker",
		BatchSize:      transport.ConsumerBatch,
		BlockMs:        transport.ConsumerBlockMs,
		MaxDeliveries:  transport.MaxDeliveries,
		RetryKeyTTL:    time.Duration(transport.RetryKeyTTLSeconds) * time.Second,
		RetryBackoffMs: 50,
	}, handler, counter, logger)

	logger.Info("classification-worker started", zap.String("mode", clsCfg.Mode), zap.String("group", wCfg.Group))
	if err := w.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Error("classification-worker exited with error", zap.Error(err))
	}
	logger.Info("classification-worker shut down cleanly")
}

func buildClassifier(cfg config.ClassifierConfig, apiKey string, logger *zap.Logger) classifier.Classifier {
	if cfg.Mode == "LLM" {
		return classifier.New(classifier.Config{
			UpstreamBaseURL:  cfg.LLMEndpoint,
			APIKey:           apiKey,
			Model:            cfg.Model,
			Timeout:          time.Duration(cfg.TimeoutMs) * time.Millisecond,
			MaxConcurrency:   cfg.MaxConcurrency,
			MaxQueueSize:     cfg.MaxQueueSize,
			MaxRetries:       cfg.MaxRetries,
			RetryBaseDelayMs: cfg.RetryBaseDelayMs,
		}, logger)
	}
	return classifier.NewRuleBased(cfg.ModelVersion)
}
