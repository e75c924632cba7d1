package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ogatech4real/smart-energy-optimiser/core/metrics"
	"github.com/ogatech4real/smart-energy-optimiser/infra/mqtt"
	"github.com/ogatech4real/smart-energy-optimiser/infra/weather"
)

type Config struct {
	Location   LocationConfig    `json:"location"`
	Weather    weather.Config    `json:"weather"`
	Forecast   ForecastConfig    `json:"forecast"`
	Solar      SolarConfig       `json:"solar"`
	Battery    BatteryConfig     `json:"battery"`
	Appliances []ApplianceConfig `json:"appliances"`
	Advisory   AdvisoryConfig    `json:"advisory"`
	Metrics    metrics.Config    `json:"metrics"`
	MQTT       MQTTConfig        `json:"mqtt"`
	Logging    LoggingConfig     `json:"logging"`
}

// MQTTConfig gates the optional advisory publisher.
type MQTTConfig struct {
	Enabled     bool `json:"enabled"`
	mqtt.Config `json:",squash"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("SEO_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "seo_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Weather.SetDefaults()
	cfg.Forecast.SetDefaults()
	cfg.Solar.SetDefaults()
	cfg.Battery.SetDefaults()
	cfg.Advisory.SetDefaults()
	cfg.Logging.SetDefaults()
	if err := cfg.Location.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Weather.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Solar.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Battery.Validate(); err != nil {
		return nil, err
	}
	for _, a := range cfg.Appliances {
		if err := a.Validate(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Advisory.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LocationConfig identifies the household site.
type LocationConfig struct {
	Key          string  `json:"key"`
	LatitudeDeg  float64 `json:"latitude_deg"`
	LongitudeDeg float64 `json:"longitude_deg"`
}

// Validate checks mandatory fields.
func (c LocationConfig) Validate() error {
	if c.Key == "" {
		return fmt.Errorf("location key is required")
	}
	if c.LatitudeDeg < -90 || c.LatitudeDeg > 90 {
		return fmt.Errorf("latitude out of range: %v", c.LatitudeDeg)
	}
	if c.LongitudeDeg < -180 || c.LongitudeDeg > 180 {
		return fmt.Errorf("longitude out of range: %v", c.LongitudeDeg)
	}
	return nil
}
