package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/classifier"
	"github.com/arc-self/riskstream/internal/domain"
	"github.com/arc-self/riskstream/internal/gateway"
)

// ClassificationAdapter serves the LLM classification HTTP endpoints.
// It wraps a *classifier.LLM directly (rather than the narrower
// classifier.Classifier interface) because the HTTP surface needs the
// LLM's own request gateway for admission/overflow metrics.
type ClassificationAdapter struct {
	llm             *classifier.LLM
	upstreamBaseURL string
	logger          *zap.Logger
}

// NewClassificationAdapter builds a ClassificationAdapter.
func NewClassificationAdapter(llm *classifier.LLM, upstreamBaseURL string, logger *zap.Logger) *ClassificationAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassificationAdapter{llm: llm, upstreamBaseURL: upstreamBaseURL, logger: logger}
}

// RegisterRoutes mounts the classification adapter's routes on e.
func (h *ClassificationAdapter) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.POST("/classify", h.Classify)
}

func (h *ClassificationAdapter) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":            "ok",
		"service":           "classification-adapter",
		"upstream_base_url": h.upstreamBaseURL,
		"metrics":           gatewayMetricsJSON(h.llm.Gateway()),
	})
}

type classifyRequest struct {
	Signal       domain.Signal `json:"signal"`
	Model        string        `json:"model"`
	Instructions string        `json:"instructions"`
}

func (h *ClassificationAdapter) Classify(c echo.Context) error {
	var req classifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Signal.EventID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "signal.event_id is required"})
	}

	sr, err := h.llm.Classify(c.Request().Context(), req.Signal)
	if errors.Is(err, gateway.ErrQueueFull) {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "QUEUE_FULL"})
	}
	if err != nil {
		h.logger.Warn("upstream classification failed", zap.String("event_id", req.Signal.EventID), zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "UPSTREAM_CLASSIFICATION_FAILED"})
	}

	return c.JSON(http.StatusOK, map[string]any{"structured_risk": sr})
}
