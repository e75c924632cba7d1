package metrics

import (
	"fmt"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// SinkConfig names a sink type and carries its raw configuration block.
type SinkConfig struct {
	Type string         `json:"type"`
	Conf map[string]any `json:"conf"`
}

// SinkFactory builds a MetricsSink from a raw configuration block.
type SinkFactory func(map[string]any) (MetricsSink, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]SinkFactory)
)

// RegisterMetricsSink adds a sink factory under the given type name.
// Registration happens from infra init functions; duplicates are a
// programming error.
func RegisterMetricsSink(name string, f SinkFactory) error {
	if f == nil {
		return fmt.Errorf("nil factory for sink %s", name)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		return fmt.Errorf("sink %s already registered", name)
	}
	registry[name] = f
	return nil
}

// NewMetricsSink builds the configured sink set: a NopSink for an empty
// list, the sink itself for one entry, a MultiSink fan-out otherwise.
func NewMetricsSink(cfgs []SinkConfig) (MetricsSink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	sinks := make([]MetricsSink, len(cfgs))
	for i, c := range cfgs {
		registryMu.RLock()
		f, ok := registry[c.Type]
		registryMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("unknown metrics sink type %s", c.Type)
		}
		s, err := f(c.Conf)
		if err != nil {
			return nil, fmt.Errorf("sink %s: %w", c.Type, err)
		}
		sinks[i] = s
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}

// DecodeSinkConf fills a sink's typed config struct from its raw block,
// matching fields by json tag.
func DecodeSinkConf(conf map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: out})
	if err != nil {
		return err
	}
	return dec.Decode(conf)
}
