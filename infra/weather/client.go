package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ogatech4real/smart-energy-optimiser/core/forecast"
	"github.com/ogatech4real/smart-energy-optimiser/core/model"
	"github.com/ogatech4real/smart-energy-optimiser/infra/logger"
)

// Config defines the connection parameters for the weather API client.
type Config struct {
	APIURL         string `json:"api_url"`
	APIKey         string `json:"api_key"`
	Units          string `json:"units"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.APIURL == "" {
		c.APIURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	if c.Units == "" {
		c.Units = "metric"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("weather api_key is required")
	}
	return nil
}

// Client fetches current conditions from an OpenWeatherMap-compatible API.
// It implements forecast.Provider.
type Client struct {
	cfg    Config
	client *http.Client
	log    logger.Logger
}

// NewClient creates a weather API client.
func NewClient(cfg Config) *Client {
	cfg.SetDefaults()
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:    logger.New("weather-client"),
	}
}

type owmResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	DT int64 `json:"dt"`
}

// Fetch requests conditions for the location. The sample timestamp is the
// requested bucket time, not the provider's observation time, so cache keys
// and sample times stay aligned.
func (c *Client) Fetch(ctx context.Context, loc forecast.Location, at time.Time) (model.ForecastSample, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.4f", loc.LatitudeDeg))
	q.Set("lon", fmt.Sprintf("%.4f", loc.LongitudeDeg))
	q.Set("appid", c.cfg.APIKey)
	q.Set("units", c.cfg.Units)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+"?"+q.Encode(), nil)
	if err != nil {
		return model.ForecastSample{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return model.ForecastSample{}, fmt.Errorf("weather request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return model.ForecastSample{}, fmt.Errorf("weather api status %d", resp.StatusCode)
	}

	var body owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.ForecastSample{}, fmt.Errorf("weather decode: %w", err)
	}
	c.log.Debugw("weather fetched", map[string]any{
		"location": loc.Key,
		"clouds":   body.Clouds.All,
		"temp":     body.Main.Temp,
	})
	return model.ForecastSample{
		Time:          at,
		LocationKey:   loc.Key,
		CloudCoverPct: body.Clouds.All,
		TemperatureC:  body.Main.Temp,
		HumidityPct:   body.Main.Humidity,
	}, nil
}
