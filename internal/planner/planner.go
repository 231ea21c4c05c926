// Package planner turns a risk evaluation into a mitigation plan. Plan
// content is template-driven and deliberately shallow; the
// Planner interface is the contract the mitigation worker depends on.
package planner

import (
	"context"
	"time"

	"github.com/arc-self/riskstream/internal/domain"
)

// Planner creates a mitigation plan from a risk evaluation.
type Planner interface {
	CreatePlan(ctx context.Context, eval domain.RiskEvaluation) (domain.MitigationPlan, error)
}

// actionTemplates maps severity to the default action checklist.
var actionTemplates = map[string][]string{
	"HIGH":   {"notify_regional_ops", "reroute_affected_lanes", "activate_backup_suppliers"},
	"MEDIUM": {"notify_regional_ops", "monitor_affected_lanes"},
	"LOW":    {"log_for_review"},
}

// Templated is the default Planner: a static action checklist keyed by
// severity level.
type Templated struct {
	now func() time.Time
}

// New builds a Templated planner using wall-clock time for CreatedAtUTC.
func New() *Templated {
	return &Templated{now: time.Now}
}

func (t *Templated) CreatePlan(ctx context.Context, eval domain.RiskEvaluation) (domain.MitigationPlan, error) {
	actions, ok := actionTemplates[eval.SeverityLevel]
	if !ok {
		actions = actionTemplates["LOW"]
	}

	return domain.MitigationPlan{
		EventID:      eval.EventID,
		ImpactRegion: eval.ImpactRegion,
		RiskScore:    eval.RiskScore,
		Actions:      actions,
		CreatedAtUTC: t.now().UTC().Format(time.RFC3339),
	}, nil
}
