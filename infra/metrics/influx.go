package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/ogatech4real/smart-energy-optimiser/core/metrics"
	"github.com/ogatech4real/smart-energy-optimiser/infra/logger"
)

// InfluxSink persists evaluation telemetry to an InfluxDB instance using the
// official client. It is the storage collaborator for decision records: the
// engine never depends on a write succeeding.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns
// a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordEvaluation writes the run summary and one point per recommendation.
func (s *InfluxSink) RecordEvaluation(ev coremetrics.EvaluationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("evaluation_run").
		AddTag("run_id", ev.RunID).
		AddTag("location", ev.LocationKey).
		AddTag("stale_forecast", strconv.FormatBool(ev.StaleForecast)).
		AddTag("cloud_anomaly", strconv.FormatBool(ev.CloudAnomaly)).
		AddField("generation_wh", round3(ev.TotalGenerationWh)).
		AddField("demand_wh", round3(ev.TotalDemandWh)).
		AddField("surplus_wh", round3(ev.SurplusWh)).
		AddField("mean_cloud_cover_pct", round3(ev.MeanCloudCoverPct)).
		AddField("end_soc_pct", round3(ev.EndSoCPct)).
		SetTime(ev.Time)
	if err := s.writeAPI.WritePoint(ctx, p); err != nil {
		return err
	}
	for _, r := range ev.Recommendations {
		rp := write.NewPointWithMeasurement("recommendation").
			AddTag("run_id", ev.RunID).
			AddTag("appliance", r.Appliance).
			AddTag("action", r.Action).
			AddTag("confidence", r.Confidence).
			AddField("power_watts", round3(r.PowerWatts)).
			AddField("deficit_wh", round3(r.DeficitWh)).
			SetTime(ev.Time)
		if err := s.writeAPI.WritePoint(ctx, rp); err != nil {
			return err
		}
	}
	return nil
}

// RecordForecastFetch persists a forecast lookup outcome.
func (s *InfluxSink) RecordForecastFetch(ev coremetrics.ForecastFetchEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("forecast_fetch").
		AddTag("location", ev.LocationKey).
		AddTag("result", ev.Result).
		AddField("count", 1).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordBatteryState writes a projected battery snapshot.
func (s *InfluxSink) RecordBatteryState(ev coremetrics.BatteryStateEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("battery_state").
		AddTag("run_id", ev.RunID).
		AddField("soc_pct", round3(ev.State.SoCPct)).
		AddField("capacity_wh", round3(ev.State.CapacityWh)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
