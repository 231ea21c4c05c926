package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/riskstream/internal/eventbus/memorybus"
)

func newPlanningTestServer() (*echo.Echo, *memorybus.Bus) {
	bus := memorybus.New()
	h := NewPlanningGateway(bus, nil)
	e := echo.New()
	h.RegisterRoutes(e)
	return e, bus
}

func TestPostShipmentPublishesToShipmentPlansStream(t *testing.T) {
	e, bus := newPlanningTestServer()

	body := `{"shipment_id":"sh-1","lane_id":"US-TX"}`
	req := httptest.NewRequest(http.MethodPost, "/shipments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	recs, err := bus.ReadRecent(req.Context(), ShipmentPlansStream, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestPostShipmentRejectsMissingFields(t *testing.T) {
	e, _ := newPlanningTestServer()

	req := httptest.NewRequest(http.MethodPost, "/shipments", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostInventoryPublishesToInventorySnapshotsStream(t *testing.T) {
	e, bus := newPlanningTestServer()

	body := `{"sku":"sku-1","lane_id":"US-TX","quantity":10}`
	req := httptest.NewRequest(http.MethodPost, "/inventory", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	recs, err := bus.ReadRecent(req.Context(), InventorySnapshotsStream, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
