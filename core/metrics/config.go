package metrics

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []SinkConfig `json:"sinks"`
	// PrometheusAddr enables the /metrics HTTP server when non-empty.
	PrometheusAddr string `json:"prometheus_addr"`
}
