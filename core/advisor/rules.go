package advisor

import (
	"fmt"
	"time"

	"github.com/ogatech4real/smart-energy-optimiser/core/model"
)

// Decision is the outcome of a rule for one appliance.
type Decision struct {
	Action     model.Action
	Confidence model.ConfidenceTag
	Reason     string
}

// RuleContext carries everything a rule predicate may inspect for one
// appliance in the evaluation bucket.
type RuleContext struct {
	Appliance model.ApplianceProfile
	Now       time.Time
	// HeadroomW is the power still available to flexible loads in the
	// evaluation bucket, before this appliance is scheduled.
	HeadroomW float64
	// ActiveNow is true when the appliance may run in the evaluation bucket.
	ActiveNow bool
	// FitsNow is true when the appliance draw fits inside HeadroomW.
	FitsNow bool
	// DeferTarget is the earliest later bucket inside the appliance's
	// window whose projected surplus covers its draw; nil when none exists.
	DeferTarget *time.Time
}

// Rule pairs a predicate with a decision. Rules are evaluated in order and
// the first applicable one wins, so the ladder stays extensible without a
// monolithic conditional.
type Rule struct {
	Name    string
	Applies func(RuleContext) bool
	Decide  func(RuleContext) Decision
}

// DefaultRules returns the standard advisory ladder.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "critical-load",
			Applies: func(c RuleContext) bool { return c.Appliance.Priority == model.PriorityCritical },
			Decide: func(c RuleContext) Decision {
				tag := model.TagSurplus
				if c.HeadroomW < 0 {
					tag = model.TagDeficit
				}
				return Decision{Action: model.ActionRunNow, Confidence: tag, Reason: "critical load"}
			},
		},
		{
			Name:    "surplus-available",
			Applies: func(c RuleContext) bool { return c.ActiveNow && c.FitsNow },
			Decide: func(c RuleContext) Decision {
				return Decision{
					Action:     model.ActionRunNow,
					Confidence: model.TagSurplus,
					Reason:     fmt.Sprintf("surplus available (%.0f W remaining)", c.HeadroomW-c.Appliance.PowerWatts),
				}
			},
		},
		{
			Name:    "defer-to-surplus",
			Applies: func(c RuleContext) bool { return c.DeferTarget != nil },
			Decide: func(c RuleContext) Decision {
				return Decision{
					Action:     model.ActionDefer,
					Confidence: model.TagMarginal,
					Reason:     fmt.Sprintf("insufficient surplus now, defer to %s", c.DeferTarget.Format("15:04 MST")),
				}
			},
		},
		{
			Name:    "reduce-no-window",
			Applies: func(c RuleContext) bool { return c.Appliance.Priority == model.PriorityDeferrable },
			Decide: func(RuleContext) Decision {
				return Decision{
					Action:     model.ActionReduce,
					Confidence: model.TagDeficit,
					Reason:     "insufficient surplus, no deferral window",
				}
			},
		},
		{
			// Normal-priority loads are never reduced; without a window they
			// fall back to a marginal deferral.
			Name:    "defer-marginal",
			Applies: func(RuleContext) bool { return true },
			Decide: func(RuleContext) Decision {
				return Decision{
					Action:     model.ActionDefer,
					Confidence: model.TagMarginal,
					Reason:     "insufficient surplus, no deferral window",
				}
			},
		},
	}
}
