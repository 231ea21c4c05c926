// Package planningjoin implements the parallel planning-impact worker:
// it joins mitigation-plans against persisted
// shipment/inventory state to emit at-risk-shipments and
// inventory-exposures. Like the other domain plug-ins, this join is
// deliberately shallow — region-string equality, not a
// geospatial or routing model — the point is exercising the persisted
// planning state store, not a sophisticated logistics model.
package planningjoin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/arc-self/riskstream/internal/domain"
)

// Store persists shipment and inventory state and answers lane-scoped
// lookups for the impact join (keys planning:shipments,
// planning:inventory, planning:lane:<laneId>).
type Store interface {
	SaveShipment(ctx context.Context, shipment domain.ShipmentPlan) error
	SaveInventory(ctx context.Context, snapshot domain.InventorySnapshot) error
	ShipmentsByLane(ctx context.Context, laneID string) ([]domain.ShipmentPlan, error)
	InventoryByLane(ctx context.Context, laneID string) ([]domain.InventorySnapshot, error)
}

// RedisStore implements Store against three Redis structures: a hash of
// shipments keyed by shipment id, a hash of
// inventory snapshots keyed by sku, and a per-lane set of shipment ids
// used to avoid a full hash scan on every join.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore builds a RedisStore.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

const (
	shipmentsHashKey = "planning:shipments"
	inventoryHashKey = "planning:inventory"
)

func laneSetKey(laneID string) string { return "planning:lane:" + laneID }

func (s *RedisStore) SaveShipment(ctx context.Context, shipment domain.ShipmentPlan) error {
	raw, err := json.Marshal(shipment)
	if err != nil {
		return fmt.Errorf("planningjoin: marshal shipment %s: %w", shipment.ShipmentID, err)
	}
	if err := s.client.HSet(ctx, shipmentsHashKey, shipment.ShipmentID, raw).Err(); err != nil {
		return fmt.Errorf("planningjoin: save shipment %s: %w", shipment.ShipmentID, err)
	}
	if err := s.client.SAdd(ctx, laneSetKey(shipment.LaneID), shipment.ShipmentID).Err(); err != nil {
		return fmt.Errorf("planningjoin: index shipment %s by lane: %w", shipment.ShipmentID, err)
	}
	return nil
}

func (s *RedisStore) SaveInventory(ctx context.Context, snapshot domain.InventorySnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("planningjoin: marshal inventory %s: %w", snapshot.SKU, err)
	}
	if err := s.client.HSet(ctx, inventoryHashKey, snapshot.SKU, raw).Err(); err != nil {
		return fmt.Errorf("planningjoin: save inventory %s: %w", snapshot.SKU, err)
	}
	return nil
}

func (s *RedisStore) ShipmentsByLane(ctx context.Context, laneID string) ([]domain.ShipmentPlan, error) {
	ids, err := s.client.SMembers(ctx, laneSetKey(laneID)).Result()
	if err != nil {
		return nil, fmt.Errorf("planningjoin: lane members %s: %w", laneID, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raws, err := s.client.HMGet(ctx, shipmentsHashKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("planningjoin: shipment lookup %s: %w", laneID, err)
	}
	out := make([]domain.ShipmentPlan, 0, len(raws))
	for _, r := range raws {
		str, ok := r.(string)
		if !ok || str == "" {
			continue
		}
		var shipment domain.ShipmentPlan
		if err := json.Unmarshal([]byte(str), &shipment); err != nil {
			continue
		}
		out = append(out, shipment)
	}
	return out, nil
}

// InventoryByLane scans the inventory hash for snapshots whose lane
// matches — a full HGETALL, acceptable given this join's deliberately
// shallow scope and the modest size of an inventory table
// in this domain.
func (s *RedisStore) InventoryByLane(ctx context.Context, laneID string) ([]domain.InventorySnapshot, error) {
	vals, err := s.client.HGetAll(ctx, inventoryHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("planningjoin: inventory scan %s: %w", laneID, err)
	}
	var out []domain.InventorySnapshot
	for _, raw := range vals {
		var snapshot domain.InventorySnapshot
		if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
			continue
		}
		if snapshot.LaneID == laneID {
			out = append(out, snapshot)
		}
	}
	return out, nil
}

var _ Store = (*RedisStore)(nil)

// Joiner turns one mitigation plan into the at-risk-shipments and
// inventory-exposures it implies, by looking up shipments/inventory
// sharing the plan's impact region as their lane id.
type Joiner struct {
	store Store
}

// New builds a Joiner.
func New(store Store) *Joiner {
	return &Joiner{store: store}
}

// Join resolves a mitigation plan against persisted shipment/inventory
// state.
func (j *Joiner) Join(ctx context.Context, plan domain.MitigationPlan) ([]domain.AtRiskShipment, []domain.InventoryExposure, error) {
	shipments, err := j.store.ShipmentsByLane(ctx, plan.ImpactRegion)
	if err != nil {
		return nil, nil, fmt.Errorf("planningjoin: join shipments for %s: %w", plan.EventID, err)
	}
	inventory, err := j.store.InventoryByLane(ctx, plan.ImpactRegion)
	if err != nil {
		return nil, nil, fmt.Errorf("planningjoin: join inventory for %s: %w", plan.EventID, err)
	}

	atRisk := make([]domain.AtRiskShipment, 0, len(shipments))
	for _, s := range shipments {
		atRisk = append(atRisk, domain.AtRiskShipment{
			ShipmentID: s.ShipmentID,
			EventID:    plan.EventID,
			Reason:     fmt.Sprintf("lane %s exposed to mitigation event %s (risk_score=%.2f)", plan.ImpactRegion, plan.EventID, plan.RiskScore),
		})
	}

	exposures := make([]domain.InventoryExposure, 0, len(inventory))
	for _, inv := range inventory {
		exposures = append(exposures, domain.InventoryExposure{
			SKU:        inv.SKU,
			EventID:    plan.EventID,
			ExposedQty: inv.Quantity * plan.RiskScore,
		})
	}

	return atRisk, exposures, nil
}
