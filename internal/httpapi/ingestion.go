// Package httpapi implements the HTTP surface: the ingestion gateway,
// the classification LLM adapter, and the planning gateway. Route
// registration is kept in a dedicated RegisterRoutes function per
// handler, out of main.go.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/eventbus"
	"github.com/arc-self/riskstream/internal/gateway"
)

// RawInputStream is the wire constant connectors and the ingestion
// gateway both publish to.
const RawInputStream = "raw-input-signals"

// maxSignalsPerRequest bounds the accepted batch size on POST /signals.
const maxSignalsPerRequest = 1000

// IngestionGateway serves the ingestion HTTP endpoints.
// Admission is bounded by a request gateway, shared in
// kind (not instance) with the classification adapter.
type IngestionGateway struct {
	bus         eventbus.EventPublisher
	gw          *gateway.Gateway
	bearerToken string
	logger      *zap.Logger
}

// NewIngestionGateway builds an IngestionGateway. bearerToken is the
// configured `Authorization: Bearer <token>` value; empty disables auth.
func NewIngestionGateway(bus eventbus.EventPublisher, gw *gateway.Gateway, bearerToken string, logger *zap.Logger) *IngestionGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestionGateway{bus: bus, gw: gw, bearerToken: bearerToken, logger: logger}
}

// Gateway exposes the bounded-concurrency admission gate for metrics
// reporting on GET /health.
func (h *IngestionGateway) Gateway() *gateway.Gateway { return h.gw }

// RegisterRoutes mounts the ingestion gateway's routes on e.
func (h *IngestionGateway) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.POST("/signals", h.PostSignals)
	e.POST("/v1/signals", h.PostSignals)
}

func (h *IngestionGateway) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":           "ok",
		"service":          "ingestion-gateway",
		"raw_input_stream": RawInputStream,
		"metrics":          gatewayMetricsJSON(h.gw),
	})
}

func gatewayMetricsJSON(gw *gateway.Gateway) map[string]int64 {
	return map[string]int64{
		"requests_total":            gw.Metrics.RequestsTotal.Load(),
		"requests_failed":           gw.Metrics.RequestsFailed.Load(),
		"requests_in_flight":        gw.Metrics.RequestsInFlight.Load(),
		"queue_depth":               gw.Metrics.QueueDepth.Load(),
		"queue_overflow_rejections": gw.Metrics.QueueOverflowRejections.Load(),
	}
}

// signalsEnvelope accepts the three body shapes the endpoint takes: a
// single object, a bare array, or {"signals": [...]} / {"signal": {...}}.
type signalsEnvelope struct {
	Signals []json.RawMessage `json:"signals"`
	Signal  json.RawMessage   `json:"signal"`
}

func (h *IngestionGateway) PostSignals(c echo.Context) error {
	if !h.authorized(c) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	raws, err := parseSignalsBody(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_REQUEST_BODY"})
	}
	if len(raws) == 0 || len(raws) > maxSignalsPerRequest {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "SIGNAL_COUNT_OUT_OF_BOUNDS"})
	}

	ids := make([]string, 0, len(raws))
	err = h.gw.Do(c.Request().Context(), func(ctx context.Context) error {
		for _, raw := range raws {
			var probe map[string]any
			if err := json.Unmarshal(raw, &probe); err != nil || len(probe) == 0 {
				return errInvalidSignal
			}
			// Published as-is: normalization is the ingestion worker's
			// job, not the gateway's. This stream carries raw,
			// pre-normalization signals exactly like the polling connectors.
			payload, err := eventbus.Encode(json.RawMessage(raw), time.Now())
			if err != nil {
				return err
			}
			rec, err := h.bus.Publish(ctx, RawInputStream, payload, eventbus.PublishOptions{})
			if err != nil {
				return err
			}
			ids = append(ids, rec.ID)
		}
		return nil
	})

	if errors.Is(err, gateway.ErrQueueFull) {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "QUEUE_FULL"})
	}
	if errors.Is(err, errInvalidSignal) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_REQUEST_BODY"})
	}
	if err != nil {
		h.logger.Error("publish to raw-input-signals failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "PUBLISH_FAILED"})
	}

	return c.JSON(http.StatusAccepted, map[string]any{
		"accepted":         len(ids),
		"ids":              ids,
		"raw_input_stream": RawInputStream,
	})
}

var errInvalidSignal = errors.New("httpapi: invalid signal body")

func (h *IngestionGateway) authorized(c echo.Context) bool {
	if h.bearerToken == "" {
		return true
	}
	return c.Request().Header.Get("Authorization") == "Bearer "+h.bearerToken
}

func parseSignalsBody(c echo.Context) ([]json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.Bind(&raw); err != nil {
		return nil, err
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, nil
	}

	var env signalsEnvelope
	if err := json.Unmarshal(raw, &env); err == nil {
		if len(env.Signals) > 0 {
			return env.Signals, nil
		}
		if len(env.Signal) > 0 {
			return []json.RawMessage{env.Signal}, nil
		}
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	if len(obj) == 0 {
		return nil, errInvalidSignal
	}
	return []json.RawMessage{raw}, nil
}
