package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/domain"
	"github.com/arc-self/riskstream/internal/eventbus"
)

// Planning wire streams.
const (
	ShipmentPlansStream      = "shipment-plans"
	InventorySnapshotsStream = "inventory-snapshots"
)

// PlanningGateway serves the planning HTTP endpoints:
// accept shipment and inventory records, validate, and publish them onto
// their respective streams for the planning-state worker to persist.
type PlanningGateway struct {
	bus    eventbus.EventPublisher
	logger *zap.Logger
}

// NewPlanningGateway builds a PlanningGateway.
func NewPlanningGateway(bus eventbus.EventPublisher, logger *zap.Logger) *PlanningGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanningGateway{bus: bus, logger: logger}
}

// RegisterRoutes mounts the planning gateway's routes on e.
func (h *PlanningGateway) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.POST("/shipments", h.PostShipment)
	e.POST("/v1/shipments", h.PostShipment)
	e.POST("/inventory", h.PostInventory)
	e.POST("/v1/inventory", h.PostInventory)
}

func (h *PlanningGateway) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": "planning-gateway"})
}

func (h *PlanningGateway) PostShipment(c echo.Context) error {
	var shipment domain.ShipmentPlan
	if err := c.Bind(&shipment); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if shipment.ShipmentID == "" || shipment.LaneID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "shipment_id and lane_id are required"})
	}
	return h.publish(c, ShipmentPlansStream, shipment)
}

func (h *PlanningGateway) PostInventory(c echo.Context) error {
	var snapshot domain.InventorySnapshot
	if err := c.Bind(&snapshot); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if snapshot.SKU == "" || snapshot.LaneID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "sku and lane_id are required"})
	}
	return h.publish(c, InventorySnapshotsStream, snapshot)
}

func (h *PlanningGateway) publish(c echo.Context, stream string, message any) error {
	payload, err := eventbus.Encode(message, time.Now())
	if err != nil {
		h.logger.Error("encode failed", zap.String("stream", stream), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
	if _, err := h.bus.Publish(c.Request().Context(), stream, payload, eventbus.PublishOptions{}); err != nil {
		h.logger.Error("publish failed", zap.String("stream", stream), zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "publish failed"})
	}
	return c.JSON(http.StatusAccepted, map[string]any{"accepted": true, "stream": stream})
}
