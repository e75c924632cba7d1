package advisor

import (
	"fmt"
	"sort"
	"time"

	"github.com/ogatech4real/smart-energy-optimiser/core/battery"
	"github.com/ogatech4real/smart-energy-optimiser/core/logger"
	"github.com/ogatech4real/smart-energy-optimiser/core/model"
)

const fitEpsilon = 1e-9

// Engine turns forecasted generation, battery state and aggregated demand
// into ranked load-shifting recommendations. Decisions come from the ordered
// rule ladder; the engine only does the surplus bookkeeping. No lookahead
// beyond the provided horizon.
type Engine struct {
	Battery battery.Model
	Rules   []Rule
	log     logger.Logger
}

// NewEngine builds an Engine with the default rule ladder.
func NewEngine(batt battery.Model, log logger.Logger) *Engine {
	return &Engine{Battery: batt, Rules: DefaultRules(), log: log}
}

// Evaluate produces one recommendation per appliance for the first horizon
// bucket. Later buckets serve as deferral targets only. The returned batch
// is ordered by scheduling priority: critical first, then normal, then
// deferrable, smaller draws first within a class.
func (e *Engine) Evaluate(gen []model.GenerationEstimate, batt model.BatteryState, demand model.DemandCurve, profiles []model.ApplianceProfile) ([]model.Recommendation, error) {
	if len(gen) == 0 || demand.Len() == 0 {
		return nil, fmt.Errorf("empty horizon: %w", model.ErrInvalidHorizon)
	}
	n := len(gen)
	if demand.Len() < n {
		n = demand.Len()
	}
	hours := demand.Step.Hours()

	// Battery contribution, expressed as power over one bucket. Credited to
	// each bucket independently: a single-horizon projection, not a
	// multi-bucket drawdown plan.
	availW := e.Battery.AvailableDischargeWh(batt) / hours

	surplus := make([]float64, n)
	for i := 0; i < n; i++ {
		surplus[i] = gen[i].Watts + availW - demand.Buckets[i].TotalWatts
	}

	now := demand.Buckets[0].Start
	nowEnd := now.Add(demand.Step)

	// Flexible loads compete for the headroom left once committed demand is
	// netted out; their own draws are added back so scheduling one consumes
	// exactly its power.
	headroom := surplus[0]
	for _, p := range profiles {
		if p.Priority != model.PriorityCritical && activeIn(p, now, nowEnd) {
			headroom += p.PowerWatts
		}
	}

	order := make([]model.ApplianceProfile, len(profiles))
	copy(order, profiles)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].Priority != order[j].Priority {
			return order[i].Priority < order[j].Priority
		}
		return order[i].PowerWatts < order[j].PowerWatts
	})

	recs := make([]model.Recommendation, 0, len(order))
	draws := make([]float64, 0, len(order))
	var criticalIdx []int
	for _, p := range order {
		ctx := RuleContext{
			Appliance: p,
			Now:       now,
			HeadroomW: headroom,
			ActiveNow: activeIn(p, now, nowEnd),
		}
		if p.Priority != model.PriorityCritical {
			ctx.FitsNow = ctx.ActiveNow && p.PowerWatts <= headroom+fitEpsilon
			ctx.DeferTarget = e.deferTarget(p, demand, surplus, n)
		}

		dec := e.decide(ctx)
		if dec.Action == model.ActionRunNow && p.Priority != model.PriorityCritical {
			headroom -= p.PowerWatts
		}
		if p.Priority == model.PriorityCritical {
			criticalIdx = append(criticalIdx, len(recs))
		}
		recs = append(recs, model.Recommendation{
			Appliance:  p.Name,
			Action:     dec.Action,
			Reason:     dec.Reason,
			Confidence: dec.Confidence,
		})
		draws = append(draws, p.PowerWatts)
	}

	// Negative headroom after scheduling means the committed (critical)
	// demand exceeds generation plus usable battery: flag the shortfall on
	// the critical recommendations, pro-rated by draw.
	if headroom < 0 && len(criticalIdx) > 0 {
		shortfallWh := -headroom * hours
		var criticalW float64
		for _, i := range criticalIdx {
			criticalW += draws[i]
		}
		for _, i := range criticalIdx {
			share := 1.0 / float64(len(criticalIdx))
			if criticalW > 0 {
				share = draws[i] / criticalW
			}
			recs[i].DeficitWh = shortfallWh * share
			recs[i].Confidence = model.TagDeficit
		}
		if e.log != nil {
			e.log.Warnf("energy deficit: %.0f Wh of critical load unserved", shortfallWh)
		}
	}
	return recs, nil
}

func (e *Engine) decide(ctx RuleContext) Decision {
	rules := e.Rules
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	for _, r := range rules {
		if r.Applies(ctx) {
			dec := r.Decide(ctx)
			if e.log != nil {
				e.log.Debugw("rule matched", map[string]any{
					"rule":      r.Name,
					"appliance": ctx.Appliance.Name,
					"action":    dec.Action.String(),
				})
			}
			return dec
		}
	}
	// The default ladder ends with a catch-all; a custom ladder may not.
	return Decision{Action: model.ActionDefer, Confidence: model.TagMarginal, Reason: "no rule matched"}
}

// deferTarget finds the earliest later bucket inside the appliance's window
// with non-negative projected surplus. The aggregated demand already books
// the draw into every bucket the window overlaps, so the surplus there is
// net of this appliance; requiring it to also exceed the draw would count
// the load twice.
func (e *Engine) deferTarget(p model.ApplianceProfile, demand model.DemandCurve, surplus []float64, n int) *time.Time {
	if p.Window == nil {
		return nil
	}
	for i := 1; i < n; i++ {
		start := demand.Buckets[i].Start
		end := start.Add(demand.Step)
		if p.Window.Overlaps(start, end) && surplus[i] >= 0 {
			t := start
			return &t
		}
	}
	return nil
}

func activeIn(p model.ApplianceProfile, start, end time.Time) bool {
	return p.Window == nil || p.Window.Overlaps(start, end)
}
