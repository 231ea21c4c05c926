package domain

import "strings"

// StructuredRisk is the classifier's output. The bus
// treats downstream records as opaque JSON; this type exists for the
// classifier/gateway boundary, where alias resolution against an LLM's
// free-form JSON draft is required.
type StructuredRisk struct {
	EventType                string  `json:"event_type"`
	SeverityLevel            string  `json:"severity_level"`
	ImpactRegion             string  `json:"impact_region"`
	ExpectedDurationHours    float64 `json:"expected_duration_hours"`
	ClassificationConfidence float64 `json:"classification_confidence"`
	ModelVersion             string  `json:"model_version"`
}

// ClassifiedEvent is the classification worker's output record: the
// originating signal's event_id carried alongside the classifier's
// structured-risk draft, since StructuredRisk itself has no event
// identity — event_id is the one field every downstream stage needs
// explicitly.
type ClassifiedEvent struct {
	EventID        string         `json:"event_id"`
	StructuredRisk StructuredRisk `json:"structured_risk"`
}

// structuredRiskAliases maps canonical structured-risk fields to their
// accepted synonyms.
var structuredRiskAliases = map[string][]string{
	"event_type":                {"eventType", "risk_event_type", "riskType", "risk_type", "riskEventType"},
	"severity_level":            {"severityLevel", "risk_level", "severity"},
	"impact_region":             {"impactRegion", "geographic_scope", "region"},
	"expected_duration_hours":   {"expectedDurationHours", "duration_hours", "durationHours"},
	"classification_confidence": {"classificationConfidence", "confidence", "probability"},
	"model_version":             {"modelVersion", "model_name", "model"},
}

// StructuredRiskRequiredFields lists the canonical keys a recovered JSON
// candidate must resolve (directly or via alias) to be accepted as a
// structured-risk draft — used to validate the "largest {...} span"
// recovery heuristic.
var StructuredRiskRequiredFields = []string{"event_type", "severity_level", "impact_region"}

// ResolveStructuredRisk builds a StructuredRisk from a raw, alias-
// ambiguous JSON object via the alias table. classification_confidence
// resolved via the "probability" synonym is scaled by 0.01 when its raw
// value is greater than 1, per the table's documented special case.
func ResolveStructuredRisk(raw map[string]any) StructuredRisk {
	var sr StructuredRisk
	if v, ok := resolveAlias(raw, "event_type"); ok {
		sr.EventType, _ = v.(string)
	}
	if v, ok := resolveAlias(raw, "severity_level"); ok {
		sr.SeverityLevel, _ = v.(string)
	}
	if v, ok := resolveAlias(raw, "impact_region"); ok {
		sr.ImpactRegion, _ = v.(string)
	}
	if v, ok := resolveAlias(raw, "expected_duration_hours"); ok {
		if f, ok := toFloat(v); ok {
			sr.ExpectedDurationHours = f
		}
	}
	if v, usedKey, ok := resolveAliasKey(raw, "classification_confidence"); ok {
		if f, ok := toFloat(v); ok {
			if usedKey == "probability" && f > 1 {
				f *= 0.01
			}
			sr.ClassificationConfidence = f
		}
	}
	if v, ok := resolveAlias(raw, "model_version"); ok {
		sr.ModelVersion, _ = v.(string)
	}
	return sr
}

func resolveAlias(raw map[string]any, canonical string) (any, bool) {
	v, _, ok := resolveAliasKey(raw, canonical)
	return v, ok
}

// resolveAliasKey resolves canonical (or one of its synonyms) against
// raw and also reports which literal key matched, needed for the
// probability-scaling special case.
func resolveAliasKey(raw map[string]any, canonical string) (any, string, bool) {
	if v, ok := raw[canonical]; ok {
		return v, canonical, true
	}
	for _, alias := range structuredRiskAliases[canonical] {
		if v, ok := raw[alias]; ok {
			return v, alias, true
		}
	}
	return nil, "", false
}

// ValidateStructuredRiskCandidate reports whether raw plausibly
// represents a structured-risk draft: every required canonical field
// must resolve to a non-empty string via the alias table. This guards
// against the "largest {...} span" recovery heuristic coincidentally
// parsing an unrelated JSON substring.
func ValidateStructuredRiskCandidate(raw map[string]any) bool {
	for _, field := range StructuredRiskRequiredFields {
		v, ok := resolveAlias(raw, field)
		if !ok {
			return false
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}

// RiskEvaluation is the risk-engine worker's output. Opaque to the core
// beyond envelope invariants.
type RiskEvaluation struct {
	EventID        string  `json:"event_id"`
	ImpactRegion   string  `json:"impact_region"`
	RiskScore      float64 `json:"risk_score"`
	SeverityLevel  string  `json:"severity_level"`
	Rationale      string  `json:"rationale"`
	EvaluatedAtUTC string  `json:"evaluated_at_utc"`
}

// MitigationPlan is the mitigation worker's output. ImpactRegion is
// carried through from the originating RiskEvaluation so the planning-
// impact worker can join against persisted shipment/inventory state
// without re-deriving it.
type MitigationPlan struct {
	EventID      string   `json:"event_id"`
	ImpactRegion string   `json:"impact_region"`
	RiskScore    float64  `json:"risk_score"`
	Actions      []string `json:"actions"`
	CreatedAtUTC string   `json:"created_at_utc"`
}

// Notification is the notification worker's output.
type Notification struct {
	EventID   string `json:"event_id"`
	Channel   string `json:"channel"`
	Message   string `json:"message"`
	SentAtUTC string `json:"sent_at_utc"`
}
