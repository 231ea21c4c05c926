// Package scorer turns a classified structured-risk draft into a numeric
// risk evaluation. The formula is deliberately shallow; the
// Scorer interface is the contract the risk-engine worker depends on.
package scorer

import (
	"context"
	"fmt"
	"time"

	"github.com/arc-self/riskstream/internal/domain"
)

// Scorer evaluates a structured-risk draft for a given event.
type Scorer interface {
	Evaluate(ctx context.Context, eventID string, sr domain.StructuredRisk) (domain.RiskEvaluation, error)
}

var severityWeight = map[string]float64{
	"LOW":    0.25,
	"MEDIUM": 0.55,
	"HIGH":   0.85,
}

const defaultSeverityWeight = 0.4

// Formula computes `risk_score = severityWeight(severity_level) *
// classification_confidence`, clamped to [0,1], with a rationale string
// describing the inputs.
type Formula struct {
	now func() time.Time
}

// New builds a Formula scorer using wall-clock time for EvaluatedAtUTC.
func New() *Formula {
	return &Formula{now: time.Now}
}

func (f *Formula) Evaluate(ctx context.Context, eventID string, sr domain.StructuredRisk) (domain.RiskEvaluation, error) {
	weight, ok := severityWeight[sr.SeverityLevel]
	if !ok {
		weight = defaultSeverityWeight
	}

	score := weight * sr.ClassificationConfidence
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return domain.RiskEvaluation{
		EventID:       eventID,
		ImpactRegion:  sr.ImpactRegion,
		RiskScore:     score,
		SeverityLevel: sr.SeverityLevel,
		Rationale: fmt.Sprintf("severity=%s weight=%.2f confidence=%.2f event_type=%s",
			sr.SeverityLevel, weight, sr.ClassificationConfidence, sr.EventType),
		EvaluatedAtUTC: f.now().UTC().Format(time.RFC3339),
	}, nil
}
