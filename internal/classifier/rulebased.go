package classifier

import (
	"context"
	"strings"

	"github.com/arc-self/riskstream/internal/domain"
)

// keywordRule maps a substring found in a signal's raw content to an
// event type and a default expected duration.
type keywordRule struct {
	keyword       string
	eventType     string
	durationHours float64
}

var keywordRules = []keywordRule{
	{"hurricane", "WEATHER_DISRUPTION", 72},
	{"flood", "WEATHER_DISRUPTION", 48},
	{"storm", "WEATHER_DISRUPTION", 24},
	{"strike", "LABOR_DISRUPTION", 96},
	{"protest", "LABOR_DISRUPTION", 24},
	{"accident", "TRAFFIC_DISRUPTION", 6},
	{"closure", "TRAFFIC_DISRUPTION", 12},
	{"congestion", "TRAFFIC_DISRUPTION", 4},
	{"breach", "SECURITY_INCIDENT", 48},
	{"cyberattack", "SECURITY_INCIDENT", 48},
}

const defaultEventType = "GENERAL_DISRUPTION"
const defaultDurationHours = 12

// RuleBased is the default classifier (mode RULE_BASED):
// deterministic keyword matching against the signal's raw content, with
// severity derived from the signal's own confidence score. It never
// fails and never calls out to any upstream.
type RuleBased struct {
	ModelVersion string
}

// NewRuleBased builds a RuleBased classifier tagged with modelVersion.
func NewRuleBased(modelVersion string) *RuleBased {
	if modelVersion == "" {
		modelVersion = "rule-based-v1"
	}
	return &RuleBased{ModelVersion: modelVersion}
}

func (r *RuleBased) Classify(ctx context.Context, signal domain.Signal) (domain.StructuredRisk, error) {
	content := strings.ToLower(signal.RawContent)

	eventType := defaultEventType
	duration := float64(defaultDurationHours)
	for _, rule := range keywordRules {
		if strings.Contains(content, rule.keyword) {
			eventType = rule.eventType
			duration = rule.durationHours
			break
		}
	}

	return domain.StructuredRisk{
		EventType:                eventType,
		SeverityLevel:            severityFromConfidence(signal.SignalConfidence),
		ImpactRegion:             signal.GeographicScope,
		ExpectedDurationHours:    duration,
		ClassificationConfidence: signal.SignalConfidence,
		ModelVersion:             r.ModelVersion,
	}, nil
}

func severityFromConfidence(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return "HIGH"
	case confidence >= 0.5:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
