package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveStructuredRiskResolvesAliases(t *testing.T) {
	raw := map[string]any{
		"riskType":         "SUPPLIER_DISRUPTION",
		"severity":         "HIGH",
		"geographic_scope": "US-TX",
		"durationHours":    float64(12),
		"probability":      float64(87),
		"model":            "gpt-4o-mini",
	}
	sr := ResolveStructuredRisk(raw)
	assert.Equal(t, "SUPPLIER_DISRUPTION", sr.EventType)
	assert.Equal(t, "HIGH", sr.SeverityLevel)
	assert.Equal(t, "US-TX", sr.ImpactRegion)
	assert.Equal(t, float64(12), sr.ExpectedDurationHours)
	assert.InDelta(t, 0.87, sr.ClassificationConfidence, 0.0001, "probability >1 must scale by 0.01")
	assert.Equal(t, "gpt-4o-mini", sr.ModelVersion)
}

func TestResolveStructuredRiskConfidenceNotScaledWhenAlreadyFraction(t *testing.T) {
	raw := map[string]any{"confidence": float64(0.9)}
	sr := ResolveStructuredRisk(raw)
	assert.Equal(t, 0.9, sr.ClassificationConfidence)
}

func TestValidateStructuredRiskCandidateRejectsPartialObject(t *testing.T) {
	assert.False(t, ValidateStructuredRiskCandidate(map[string]any{"event_type": "X"}))
	assert.True(t, ValidateStructuredRiskCandidate(map[string]any{
		"event_type":     "X",
		"severity_level": "HIGH",
		"impact_region":  "US-TX",
	}))
}
