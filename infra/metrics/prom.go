package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/ogatech4real/smart-energy-optimiser/core/metrics"
)

// PromSink records evaluation runs in Prometheus metrics.
type PromSink struct {
	evaluations     *prometheus.CounterVec
	recommendations *prometheus.CounterVec
	fetches         *prometheus.CounterVec
	duration        prometheus.Histogram
	soc             prometheus.Gauge
	surplus         prometheus.Gauge
}

// NewPromSink registers evaluation metrics on the default Prometheus
// registerer. The Prometheus server should be started separately using the
// configured address.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	evaluations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "advisory_evaluations_total",
		Help: "Total number of advisory evaluations",
	}, []string{"location", "stale_forecast", "cloud_anomaly"})
	recommendations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "advisory_recommendations_total",
		Help: "Total number of recommendations by action and confidence",
	}, []string{"action", "confidence"})
	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_fetches_total",
		Help: "Forecast lookups by result",
	}, []string{"location", "result"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "advisory_evaluation_duration_seconds",
		Help:    "Time taken by one full evaluation",
		Buckets: prometheus.DefBuckets,
	})
	soc := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "battery_projected_soc_pct",
		Help: "Projected battery state of charge at the end of the horizon",
	})
	surplus := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "horizon_surplus_wh",
		Help: "Forecast generation minus demand over the evaluation horizon",
	})

	for _, c := range []prometheus.Collector{evaluations, recommendations, fetches, duration, soc, surplus} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}

	return &PromSink{
		evaluations:     evaluations,
		recommendations: recommendations,
		fetches:         fetches,
		duration:        duration,
		soc:             soc,
		surplus:         surplus,
	}, nil
}

// RecordEvaluation increments the run counters and updates the gauges.
func (s *PromSink) RecordEvaluation(ev coremetrics.EvaluationEvent) error {
	s.evaluations.WithLabelValues(ev.LocationKey,
		strconv.FormatBool(ev.StaleForecast), strconv.FormatBool(ev.CloudAnomaly)).Inc()
	for _, r := range ev.Recommendations {
		s.recommendations.WithLabelValues(r.Action, r.Confidence).Inc()
	}
	s.duration.Observe(ev.Duration.Seconds())
	s.soc.Set(ev.EndSoCPct)
	s.surplus.Set(ev.SurplusWh)
	return nil
}

// RecordForecastFetch counts a forecast lookup by result.
func (s *PromSink) RecordForecastFetch(ev coremetrics.ForecastFetchEvent) error {
	s.fetches.WithLabelValues(ev.LocationKey, ev.Result).Inc()
	return nil
}
