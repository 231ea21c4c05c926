package planningjoin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/domain"
	"github.com/arc-self/riskstream/internal/eventbus"
)

// Output streams for the planning-impact worker.
const (
	AtRiskShipmentsStream    = "at-risk-shipments"
	InventoryExposuresStream = "inventory-exposures"
)

// StateHandler builds worker.Handler-compatible functions that persist
// shipment and inventory records into Store, driven by the
// planning-state worker's two consumer-group loops (one per stream).
type StateHandler struct {
	store  Store
	logger *zap.Logger
}

// NewStateHandler builds a StateHandler.
func NewStateHandler(store Store, logger *zap.Logger) *StateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateHandler{store: store, logger: logger}
}

// HandleShipment decodes one shipment-plans message and persists it.
func (h *StateHandler) HandleShipment(ctx context.Context, msg eventbus.ConsumerMessage) error {
	decoded, err := eventbus.Decode(msg.Payload)
	if err != nil {
		return fmt.Errorf("planningjoin: decode shipment envelope: %w", err)
	}
	var shipment domain.ShipmentPlan
	if err := json.Unmarshal(decoded.Message, &shipment); err != nil {
		return fmt.Errorf("planningjoin: unmarshal shipment: %w", err)
	}
	return h.store.SaveShipment(ctx, shipment)
}

// HandleInventory decodes one inventory-snapshots message and persists it.
func (h *StateHandler) HandleInventory(ctx context.Context, msg eventbus.ConsumerMessage) error {
	decoded, err := eventbus.Decode(msg.Payload)
	if err != nil {
		return fmt.Errorf("planningjoin: decode inventory envelope: %w", err)
	}
	var snapshot domain.InventorySnapshot
	if err := json.Unmarshal(decoded.Message, &snapshot); err != nil {
		return fmt.Errorf("planningjoin: unmarshal inventory: %w", err)
	}
	return h.store.SaveInventory(ctx, snapshot)
}

// ImpactHandler builds the worker.Handler that consumes mitigation-plans
// and publishes the joined at-risk-shipments/inventory-exposures.
type ImpactHandler struct {
	joiner    *Joiner
	publisher eventbus.EventPublisher
	logger    *zap.Logger
}

// NewImpactHandler builds an ImpactHandler.
func NewImpactHandler(joiner *Joiner, publisher eventbus.EventPublisher, logger *zap.Logger) *ImpactHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImpactHandler{joiner: joiner, publisher: publisher, logger: logger}
}

// Handle decodes one mitigation-plans message, joins it against
// persisted shipment/inventory state, and publishes the results.
func (h *ImpactHandler) Handle(ctx context.Context, msg eventbus.ConsumerMessage) error {
	decoded, err := eventbus.Decode(msg.Payload)
	if err != nil {
		return fmt.Errorf("planningjoin: decode mitigation plan envelope: %w", err)
	}
	var plan domain.MitigationPlan
	if err := json.Unmarshal(decoded.Message, &plan); err != nil {
		return fmt.Errorf("planningjoin: unmarshal mitigation plan: %w", err)
	}

	atRisk, exposures, err := h.joiner.Join(ctx, plan)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, shipment := range atRisk {
		payload, err := eventbus.Encode(shipment, now)
		if err != nil {
			return fmt.Errorf("planningjoin: encode at-risk shipment: %w", err)
		}
		if _, err := h.publisher.Publish(ctx, AtRiskShipmentsStream, payload, eventbus.PublishOptions{}); err != nil {
			return fmt.Errorf("planningjoin: publish at-risk shipment: %w", err)
		}
	}
	for _, exposure := range exposures {
		payload, err := eventbus.Encode(exposure, now)
		if err != nil {
			return fmt.Errorf("planningjoin: encode inventory exposure: %w", err)
		}
		if _, err := h.publisher.Publish(ctx, InventoryExposuresStream, payload, eventbus.PublishOptions{}); err != nil {
			return fmt.Errorf("planningjoin: publish inventory exposure: %w", err)
		}
	}

	h.logger.Debug("planning impact join complete",
		zap.String("event_id", plan.EventID), zap.Int("at_risk_shipments", len(atRisk)), zap.Int("inventory_exposures", len(exposures)))
	return nil
}
