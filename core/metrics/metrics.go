package metrics

import (
	"time"

	"github.com/ogatech4real/smart-energy-optimiser/core/model"
)

// RecommendationEvent is the telemetry projection of one recommendation.
type RecommendationEvent struct {
	Appliance  string  `json:"appliance"`
	Action     string  `json:"action"`
	Confidence string  `json:"confidence"`
	PowerWatts float64 `json:"power_watts"`
	DeficitWh  float64 `json:"deficit_wh,omitempty"`
}

// EvaluationEvent is the per-run telemetry record emitted by the pipeline:
// run identity, input summary and the recommendation batch. Recording is
// fire-and-forget from the engine's perspective.
type EvaluationEvent struct {
	RunID       string    `json:"run_id"`
	Time        time.Time `json:"time"`
	LocationKey string    `json:"location_key"`

	StaleForecast bool `json:"stale_forecast"`
	CloudAnomaly  bool `json:"cloud_anomaly"`

	TotalGenerationWh float64       `json:"total_generation_wh"`
	TotalDemandWh     float64       `json:"total_demand_wh"`
	SurplusWh         float64       `json:"surplus_wh"`
	MeanCloudCoverPct float64       `json:"mean_cloud_cover_pct"`
	EndSoCPct         float64       `json:"end_soc_pct"`
	Duration          time.Duration `json:"-"`

	Recommendations []RecommendationEvent `json:"recommendations"`
}

// MetricsSink records evaluation runs for observability purposes.
type MetricsSink interface {
	RecordEvaluation(ev EvaluationEvent) error
}

// ForecastFetchEvent captures one cache-mediated provider lookup.
type ForecastFetchEvent struct {
	LocationKey string
	Result      string // "hit", "fetch", "stale" or "error"
	Time        time.Time
}

// ForecastRecorder records forecast fetch outcomes.
type ForecastRecorder interface {
	RecordForecastFetch(ev ForecastFetchEvent) error
}

// BatteryStateEvent is a snapshot of the battery along the projection trail.
type BatteryStateEvent struct {
	RunID string
	State model.BatteryState
	Time  time.Time
}

// BatteryStateRecorder records battery snapshots.
type BatteryStateRecorder interface {
	RecordBatteryState(ev BatteryStateEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordEvaluation(EvaluationEvent) error       { return nil }
func (NopSink) RecordForecastFetch(ForecastFetchEvent) error { return nil }
func (NopSink) RecordBatteryState(BatteryStateEvent) error   { return nil }
