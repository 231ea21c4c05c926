package connector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/eventbus"
)

// StateStore persists a connector's opaque cursor/state blob under
// "connector:state:<name>".
type StateStore interface {
	Load(ctx context.Context, name string) (State, error)
	Save(ctx context.Context, name string, state State) error
}

// Config parameterizes a GenericConnector.
type Config[Provider any, Item any, Out any] struct {
	Name           string
	Provider       Provider
	OutputStream   string
	Fetcher        Fetcher[Provider, Item]
	ChangeDetector ChangeDetector[Item] // optional
	Transformer    Transformer[Item, Out]
	ItemKey        ItemKeyer[Item] // optional, defaults to DefaultItemKey
}

// GenericConnector implements the fetch/detect/transform/publish poll
// protocol, parameterized over a provider type, a raw item type, and an
// output signal type.
type GenericConnector[Provider any, Item any, Out any] struct {
	cfg       Config[Provider, Item, Out]
	publisher eventbus.EventPublisher
	states    StateStore
	logger    *zap.Logger
}

// New builds a GenericConnector.
func New[Provider any, Item any, Out any](cfg Config[Provider, Item, Out], publisher eventbus.EventPublisher, states StateStore, logger *zap.Logger) *GenericConnector[Provider, Item, Out] {
	if cfg.ItemKey == nil {
		cfg.ItemKey = DefaultItemKey[Item]
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenericConnector[Provider, Item, Out]{cfg: cfg, publisher: publisher, states: states, logger: logger}
}

// Poll runs one fetch/detect/transform/publish cycle.
func (c *GenericConnector[Provider, Item, Out]) Poll(ctx context.Context) (PollSummary, error) {
	state, err := c.states.Load(ctx, c.cfg.Name)
	if err != nil {
		return PollSummary{}, fmt.Errorf("connector %s: load state: %w", c.cfg.Name, err)
	}
	if state.ItemVersions == nil {
		state.ItemVersions = make(map[string]string)
	}

	result, err := c.cfg.Fetcher(ctx, c.cfg.Provider)
	if err != nil {
		return PollSummary{}, fmt.Errorf("connector %s: fetch: %w", c.cfg.Name, err)
	}

	summary := PollSummary{Fetched: len(result.Items)}

	for _, item := range result.Items {
		key, err := c.cfg.ItemKey(item)
		if err != nil {
			summary.Failed++
			c.logger.Error("connector item key failed", zap.String("connector", c.cfg.Name), zap.Error(err))
			continue
		}

		if c.cfg.ChangeDetector != nil {
			version, err := c.cfg.ChangeDetector(item)
			if err != nil {
				summary.Failed++
				c.logger.Error("connector change detector failed", zap.String("connector", c.cfg.Name), zap.Error(err))
				continue
			}
			if prev, ok := state.ItemVersions[key]; ok && prev == version {
				summary.SkippedUnchanged++
				continue
			}
			state.ItemVersions[key] = version
		}

		out, err := c.cfg.Transformer(item)
		if err != nil {
			summary.Failed++
			c.logger.Error("connector transform failed", zap.String("connector", c.cfg.Name), zap.Error(err))
			continue
		}

		payload, err := eventbus.Encode(out, time.Now())
		if err != nil {
			summary.Failed++
			c.logger.Error("connector encode failed", zap.String("connector", c.cfg.Name), zap.Error(err))
			continue
		}
		if _, err := c.publisher.Publish(ctx, c.cfg.OutputStream, payload, eventbus.PublishOptions{}); err != nil {
			summary.Failed++
			c.logger.Error("connector publish failed", zap.String("connector", c.cfg.Name), zap.Error(err))
			continue
		}
		summary.Published++
	}

	if err := c.states.Save(ctx, c.cfg.Name, state); err != nil {
		c.logger.Error("connector state save failed", zap.String("connector", c.cfg.Name), zap.Error(err))
	}

	return summary, nil
}
