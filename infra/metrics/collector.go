package metrics

import (
	"context"

	coremetrics "github.com/ogatech4real/smart-energy-optimiser/core/metrics"
	"github.com/ogatech4real/smart-energy-optimiser/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records evaluation
// events on the sink. It stops when the context is canceled. Running the
// sink behind the bus keeps telemetry fire-and-forget for the pipeline.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case coremetrics.EvaluationEvent:
					_ = sink.RecordEvaluation(e)
				case coremetrics.ForecastFetchEvent:
					if r, ok := sink.(coremetrics.ForecastRecorder); ok {
						_ = r.RecordForecastFetch(e)
					}
				case coremetrics.BatteryStateEvent:
					if r, ok := sink.(coremetrics.BatteryStateRecorder); ok {
						_ = r.RecordBatteryState(e)
					}
				}
			}
		}
	}()
}
