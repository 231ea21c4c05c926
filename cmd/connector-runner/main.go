// Command connector-runner hosts the polling connector framework: it
// loads connector instance specs, builds a poller per
// instance from the registered factory, and runs each under a
// distributed lease with metrics recording. SIGHUP reloads specs
// per-connector; a cron tick periodically logs a reconciliation summary
// of which connectors are healthy.
package main

import (
	"context"
	"os"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/bootstrap"
	"github.com/arc-self/riskstream/internal/config"
	"github.com/arc-self/riskstream/internal/connector"
	"github.com/arc-self/riskstream/internal/connector/httpjsonprovider"
	"github.com/arc-self/riskstream/internal/connector/redisstore"
	"github.com/arc-self/riskstream/internal/eventbus/redisbus"
)

func main() {
	logger, _ := bootstrap.Logger()
	defer logger.Sync()

	secrets, _ := bootstrap.Secrets(logger, "VAULT_SECRET_PATH", "secret/data/arc/connector-runner")
	transport := config.LoadTransport()
	redisURL := config.StringSecret(secrets, "REDIS_URL", transport.URL)

	ctx, stop := bootstrap.ShutdownContext()
	defer stop()

	redisClient, err := bootstrap.RedisClient(ctx, redisURL)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	bus := redisbus.New(redisClient).WithDefaultMaxLen(transport.StreamMaxLen)
	states := redisstore.New(redisClient)
	leases := connector.NewRedisLeaseManager(redisClient)
	metrics := connector.NewRedisMetricsCollector(redisClient)

	registry := connector.NewRegistry()
	registry.Register(httpjsonprovider.TypeName(), httpjsonprovider.NewFactory(bus, states, logger))

	specs := loadSpecs()
	if len(specs) == 0 {
		logger.Warn("no connector specs configured, idling",
			zap.Strings("registered_types", registry.List()))
	}

	var wg sync.WaitGroup
	for _, spec := range specs {
		if !spec.Enabled {
			continue
		}
		poller, err := registry.Build(spec)
		if err != nil {
			logger.Error("failed to build connector", zap.String("connector", spec.Name), zap.Error(err))
			continue
		}
		runner := connector.NewRunner(spec, poller, leases, metrics, logger)

		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			runner.Run(ctx, func() (connector.Spec, bool) {
				for _, s := range loadSpecs() {
					if s.Name == name {
						return s, true
					}
				}
				return connector.Spec{}, false
			})
		}(spec.Name)
	}

	reconcile := cron.New(cron.WithSeconds())
	reconcile.AddFunc("@every 1m", func() {
		for _, spec := range specs {
			healthy, err := metrics.IsHealthy(context.Background(), spec.Name, 3*spec.PollIntervalMs/1000+60)
			if err != nil {
				logger.Warn("reconciliation health check failed", zap.String("connector", spec.Name), zap.Error(err))
				continue
			}
			logger.Info("connector reconciliation tick", zap.String("connector", spec.Name), zap.Bool("healthy", healthy))
		}
	})
	reconcile.Start()

	<-ctx.Done()
	logger.Info("initiating graceful shutdown")
	reconcile.Stop()
	wg.Wait()
	logger.Info("connector-runner shut down cleanly")
}

func loadSpecs() []connector.Spec {
	if path := configSpecFilePath(); path != "" {
		specs, err := connector.LoadSpecsFromFile(path)
		if err == nil {
			return specs
		}
	}
	return connector.LoadSpecsFromEnv()
}

func configSpecFilePath() string {
	return config.ExpandEnv(os.Getenv("RISKSTREAM_CONNECTOR_SPEC_FILE"))
}
