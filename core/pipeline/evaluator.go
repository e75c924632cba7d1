package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ogatech4real/smart-energy-optimiser/core/advisor"
	"github.com/ogatech4real/smart-energy-optimiser/core/battery"
	"github.com/ogatech4real/smart-energy-optimiser/core/forecast"
	"github.com/ogatech4real/smart-energy-optimiser/core/load"
	"github.com/ogatech4real/smart-energy-optimiser/core/logger"
	"github.com/ogatech4real/smart-energy-optimiser/core/metrics"
	"github.com/ogatech4real/smart-energy-optimiser/core/model"
	"github.com/ogatech4real/smart-energy-optimiser/internal/eventbus"
)

// Request carries the session inputs for one evaluation.
type Request struct {
	Profiles []model.ApplianceProfile
	Horizon  load.Horizon
	Battery  model.BatteryState
}

// Summary condenses the horizon-wide energy balance.
type Summary struct {
	TotalGenerationWh float64 `json:"total_generation_wh"`
	TotalDemandWh     float64 `json:"total_demand_wh"`
	SurplusWh         float64 `json:"surplus_wh"`
	MeanCloudCoverPct float64 `json:"mean_cloud_cover_pct"`
	EndSoCPct         float64 `json:"end_soc_pct"`
}

// Result is the full output surface of one evaluation: the recommendation
// batch plus the intermediate forecast, generation and battery trails, ready
// for any presentation layer.
type Result struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Samples         []model.ForecastSample     `json:"samples"`
	Generation      []model.GenerationEstimate `json:"generation"`
	BatteryTrail    []model.BatteryState       `json:"battery_trail"`
	Demand          model.DemandCurve          `json:"demand"`
	Recommendations []model.Recommendation     `json:"recommendations"`

	// StaleForecast flags that at least one sample was served past its TTL
	// so downstream consumers can warn the user.
	StaleForecast bool `json:"stale_forecast"`
	// CloudAnomaly flags a sharp cloud-cover swing across the horizon.
	CloudAnomaly bool `json:"cloud_anomaly"`

	Summary Summary `json:"summary"`
}

// Evaluator runs the forecast → irradiance → battery → aggregation →
// advisory pipeline for one session. Stages run sequentially; only the
// forecast stage can block, bounded by the cache's fetch timeout.
type Evaluator struct {
	Cache    *forecast.Cache
	Solar    SolarModel
	Battery  battery.Model
	Advisor  *advisor.Engine
	Location forecast.Location

	// Bus receives an EvaluationEvent per run; nil disables publication.
	Bus eventbus.EventBus
	// AnomalyThresholdPct is the cloud-cover swing that raises CloudAnomaly.
	AnomalyThresholdPct float64

	Clock forecast.Clock
	Log   logger.Logger
}

// SolarModel is the irradiance stage contract.
type SolarModel interface {
	Estimate(s model.ForecastSample) model.GenerationEstimate
}

// Run performs one full evaluation. Inputs are validated before any stage
// executes; a cancelled context discards in-flight results with nothing to
// roll back.
func (e *Evaluator) Run(ctx context.Context, req Request) (*Result, error) {
	for _, p := range req.Profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	if err := req.Horizon.Validate(); err != nil {
		return nil, err
	}
	if err := req.Battery.Validate(); err != nil {
		return nil, err
	}

	started := e.now()
	res := &Result{RunID: uuid.NewString(), GeneratedAt: started}

	n := req.Horizon.Buckets()
	res.Samples = make([]model.ForecastSample, 0, n)
	for i := 0; i < n; i++ {
		sample, err := e.Cache.Get(ctx, e.Location, req.Horizon.BucketStart(i))
		if err != nil {
			return nil, fmt.Errorf("bucket %d: %w", i, err)
		}
		sample.Time = req.Horizon.BucketStart(i)
		if sample.Stale {
			res.StaleForecast = true
		}
		res.Samples = append(res.Samples, sample)
	}

	res.Generation = make([]model.GenerationEstimate, n)
	for i, s := range res.Samples {
		res.Generation[i] = e.Solar.Estimate(s)
	}

	demand, err := load.Aggregate(req.Profiles, req.Horizon)
	if err != nil {
		return nil, err
	}
	res.Demand = demand

	// Project the battery across the horizon. The session owns the current
	// state; the trail holds one post-step snapshot per bucket.
	state := req.Battery
	res.BatteryTrail = make([]model.BatteryState, n)
	for i := 0; i < n; i++ {
		net := res.Generation[i].Watts - demand.Buckets[i].TotalWatts
		state, _ = e.Battery.Step(state, net, req.Horizon.Step)
		res.BatteryTrail[i] = state
	}

	recs, err := e.Advisor.Evaluate(res.Generation, req.Battery, demand, req.Profiles)
	if err != nil {
		return nil, err
	}
	res.Recommendations = recs

	e.summarize(res, req)
	res.CloudAnomaly = e.cloudAnomaly(res.Samples)

	e.publish(res, req, e.now().Sub(started))
	return res, nil
}

func (e *Evaluator) summarize(res *Result, req Request) {
	hours := req.Horizon.Step.Hours()
	genWh := make([]float64, len(res.Generation))
	clouds := make([]float64, len(res.Samples))
	for i, g := range res.Generation {
		genWh[i] = g.Watts * hours
	}
	for i, s := range res.Samples {
		clouds[i] = s.CloudCoverPct
	}
	res.Summary = Summary{
		TotalGenerationWh: floats.Sum(genWh),
		TotalDemandWh:     res.Demand.TotalWh(),
		MeanCloudCoverPct: stat.Mean(clouds, nil),
	}
	res.Summary.SurplusWh = res.Summary.TotalGenerationWh - res.Summary.TotalDemandWh
	if len(res.BatteryTrail) > 0 {
		res.Summary.EndSoCPct = res.BatteryTrail[len(res.BatteryTrail)-1].SoCPct
	}
}

// cloudAnomaly compares mean cloud cover between the two horizon halves; a
// swing at or above the threshold signals sharply changing solar conditions.
func (e *Evaluator) cloudAnomaly(samples []model.ForecastSample) bool {
	threshold := e.AnomalyThresholdPct
	if threshold <= 0 {
		threshold = 50
	}
	if len(samples) < 2 {
		return false
	}
	half := len(samples) / 2
	first := make([]float64, 0, half)
	second := make([]float64, 0, len(samples)-half)
	for i, s := range samples {
		if i < half {
			first = append(first, s.CloudCoverPct)
		} else {
			second = append(second, s.CloudCoverPct)
		}
	}
	diff := stat.Mean(second, nil) - stat.Mean(first, nil)
	if diff < 0 {
		diff = -diff
	}
	return diff >= threshold
}

func (e *Evaluator) publish(res *Result, req Request, took time.Duration) {
	if e.Bus == nil {
		return
	}
	ev := metrics.EvaluationEvent{
		RunID:             res.RunID,
		Time:              res.GeneratedAt,
		LocationKey:       e.Location.Key,
		StaleForecast:     res.StaleForecast,
		CloudAnomaly:      res.CloudAnomaly,
		TotalGenerationWh: res.Summary.TotalGenerationWh,
		TotalDemandWh:     res.Summary.TotalDemandWh,
		SurplusWh:         res.Summary.SurplusWh,
		MeanCloudCoverPct: res.Summary.MeanCloudCoverPct,
		EndSoCPct:         res.Summary.EndSoCPct,
		Duration:          took,
	}
	byName := make(map[string]float64, len(req.Profiles))
	for _, p := range req.Profiles {
		byName[p.Name] = p.PowerWatts
	}
	for _, r := range res.Recommendations {
		ev.Recommendations = append(ev.Recommendations, metrics.RecommendationEvent{
			Appliance:  r.Appliance,
			Action:     r.Action.String(),
			Confidence: r.Confidence.String(),
			PowerWatts: byName[r.Appliance],
			DeficitWh:  r.DeficitWh,
		})
	}
	e.Bus.Publish(ev)
	for _, s := range res.BatteryTrail {
		e.Bus.Publish(metrics.BatteryStateEvent{RunID: res.RunID, State: s, Time: s.Time})
	}
}

func (e *Evaluator) now() time.Time {
	if e.Clock != nil {
		return e.Clock.Now()
	}
	return time.Now()
}
