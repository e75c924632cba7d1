package metrics

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordEvaluation forwards the record to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordEvaluation(ev EvaluationEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordEvaluation(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordForecastFetch forwards fetch outcomes to sinks that support them.
func (m *MultiSink) RecordForecastFetch(ev ForecastFetchEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ForecastRecorder); ok {
			if err := rec.RecordForecastFetch(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordBatteryState forwards battery snapshots to sinks that support them.
func (m *MultiSink) RecordBatteryState(ev BatteryStateEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(BatteryStateRecorder); ok {
			if err := rec.RecordBatteryState(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
