package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ogatech4real/smart-energy-optimiser/config"
	"github.com/ogatech4real/smart-energy-optimiser/core/advisor"
	"github.com/ogatech4real/smart-energy-optimiser/core/forecast"
	"github.com/ogatech4real/smart-energy-optimiser/core/load"
	coremetrics "github.com/ogatech4real/smart-energy-optimiser/core/metrics"
	"github.com/ogatech4real/smart-energy-optimiser/core/model"
	"github.com/ogatech4real/smart-energy-optimiser/core/pipeline"
	"github.com/ogatech4real/smart-energy-optimiser/infra/logger"
	"github.com/ogatech4real/smart-energy-optimiser/infra/metrics"
	"github.com/ogatech4real/smart-energy-optimiser/infra/mqtt"
	"github.com/ogatech4real/smart-energy-optimiser/infra/weather"
	"github.com/ogatech4real/smart-energy-optimiser/internal/eventbus"
)

// Service owns one advisory session: the evaluation pipeline, the battery
// state it carries between runs and the telemetry fan-out.
type Service struct {
	cfg       *config.Config
	evaluator *pipeline.Evaluator
	bus       eventbus.EventBus
	sink      coremetrics.MetricsSink
	publisher *mqtt.AdvisoryPublisher
	battery   model.BatteryState
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	logg := logger.New("service")

	bus := eventbus.New()
	provider := weather.NewClient(cfg.Weather)
	cache := forecast.NewCache(provider, forecast.SystemClock(), cfg.Forecast.CacheConfig(), bus, logger.New("forecast-cache"))

	battModel := cfg.Battery.Model()
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	evaluator := &pipeline.Evaluator{
		Cache:   cache,
		Solar:   cfg.Solar.Model(cfg.Location),
		Battery: battModel,
		Advisor: advisor.NewEngine(battModel, logger.New("advisor")),
		Location: forecast.Location{
			Key:          cfg.Location.Key,
			LatitudeDeg:  cfg.Location.LatitudeDeg,
			LongitudeDeg: cfg.Location.LongitudeDeg,
		},
		Bus:                 bus,
		AnomalyThresholdPct: cfg.Advisory.AnomalyThresholdPct,
		Log:                 logger.New("pipeline"),
	}

	var publisher *mqtt.AdvisoryPublisher
	if cfg.MQTT.Enabled {
		publisher, err = mqtt.NewAdvisoryPublisher(cfg.MQTT.Config)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
	}

	state, err := cfg.Battery.InitialState(time.Now())
	if err != nil {
		return nil, fmt.Errorf("battery: %w", err)
	}

	return &Service{
		cfg:       cfg,
		evaluator: evaluator,
		bus:       bus,
		sink:      sink,
		publisher: publisher,
		battery:   state,
		log:       logg,
	}, nil
}

// Evaluate runs the pipeline once against the session's current battery
// state and returns the full result.
func (s *Service) Evaluate(ctx context.Context) (*pipeline.Result, error) {
	start := time.Now().Truncate(s.cfg.Advisory.Step())
	profiles, err := config.Profiles(s.cfg.Appliances, start)
	if err != nil {
		return nil, err
	}
	s.battery.Time = start
	return s.evaluator.Run(ctx, pipeline.Request{
		Profiles: profiles,
		Horizon: load.Horizon{
			Start:    start,
			Duration: s.cfg.Advisory.Horizon(),
			Step:     s.cfg.Advisory.Step(),
		},
		Battery: s.battery,
	})
}

// Run evaluates immediately, then on every advisory interval until the
// context is canceled. Telemetry collection and the optional Prometheus
// endpoint run for the lifetime of the loop.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.cfg.Metrics.PrometheusAddr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr); err != nil {
				s.log.Errorf("prometheus server: %v", err)
			}
		}()
	}
	if s.publisher != nil {
		s.startPublishLoop(ctx)
	}

	ticker := time.NewTicker(s.cfg.Advisory.Interval())
	defer ticker.Stop()
	for {
		if err := s.step(ctx); err != nil {
			s.log.Errorf("evaluation failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// step runs one evaluation and rolls the session battery forward to the next
// interval along the projected net power curve.
func (s *Service) step(ctx context.Context) error {
	res, err := s.Evaluate(ctx)
	if err != nil {
		return err
	}
	s.log.Infof("run %s: %d recommendations, surplus %.0f Wh, end SoC %.1f%%",
		res.RunID, len(res.Recommendations), res.Summary.SurplusWh, res.Summary.EndSoCPct)
	s.rollForward(res)
	return nil
}

// rollForward advances the session battery by one advisory interval. Each
// bucket's net power only holds for that bucket's width, so the interval is
// walked bucket by bucket instead of stretching the first bucket over it.
func (s *Service) rollForward(res *pipeline.Result) {
	remaining := s.cfg.Advisory.Interval()
	step := s.cfg.Advisory.Step()
	n := len(res.Generation)
	if len(res.Demand.Buckets) < n {
		n = len(res.Demand.Buckets)
	}
	for i := 0; i < n && remaining > 0; i++ {
		dt := step
		if dt > remaining {
			dt = remaining
		}
		net := res.Generation[i].Watts - res.Demand.Buckets[i].TotalWatts
		s.battery, _ = s.evaluator.Battery.Step(s.battery, net, dt)
		remaining -= dt
	}
}

// startPublishLoop forwards evaluation events from the bus to the MQTT
// broker without blocking the pipeline.
func (s *Service) startPublishLoop(ctx context.Context) {
	sub := s.bus.Subscribe()
	go func() {
		defer s.bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, ok := ev.(coremetrics.EvaluationEvent); ok {
					if err := s.publisher.PublishEvaluation(e); err != nil {
						s.log.Errorf("publish run %s: %v", e.RunID, err)
					}
				}
			}
		}
	}()
}

// Close releases external connections.
func (s *Service) Close() {
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	s.bus.Close()
}
