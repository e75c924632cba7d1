package config

import (
	"fmt"
	"time"

	"github.com/ogatech4real/smart-energy-optimiser/core/battery"
	"github.com/ogatech4real/smart-energy-optimiser/core/forecast"
	"github.com/ogatech4real/smart-energy-optimiser/core/model"
	"github.com/ogatech4real/smart-energy-optimiser/core/solar"
)

// ForecastConfig tunes the forecast cache.
type ForecastConfig struct {
	TTLMinutes          int `json:"ttl_minutes"`
	BucketMinutes       int `json:"bucket_minutes"`
	FetchTimeoutSeconds int `json:"fetch_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *ForecastConfig) SetDefaults() {
	if c.TTLMinutes <= 0 {
		c.TTLMinutes = 30
	}
	if c.BucketMinutes <= 0 {
		c.BucketMinutes = 60
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = 10
	}
}

// CacheConfig converts the section to the cache's own config type.
func (c ForecastConfig) CacheConfig() forecast.Config {
	return forecast.Config{
		TTL:          time.Duration(c.TTLMinutes) * time.Minute,
		Bucket:       time.Duration(c.BucketMinutes) * time.Minute,
		FetchTimeout: time.Duration(c.FetchTimeoutSeconds) * time.Second,
	}
}

// SolarConfig describes the panel array.
type SolarConfig struct {
	PanelCapacityW     float64 `json:"panel_capacity_w"`
	PanelEfficiencyPct float64 `json:"panel_efficiency_pct"`
	DiffuseFloor       float64 `json:"diffuse_floor"`
	AttenuationExp     float64 `json:"attenuation_exp"`
}

// SetDefaults applies sane defaults.
func (c *SolarConfig) SetDefaults() {
	if c.PanelEfficiencyPct <= 0 {
		c.PanelEfficiencyPct = 18
	}
}

// Validate checks mandatory fields.
func (c SolarConfig) Validate() error {
	if c.PanelCapacityW <= 0 {
		return fmt.Errorf("solar panel_capacity_w must be positive")
	}
	return nil
}

// Model builds the irradiance model for the configured site.
func (c SolarConfig) Model(loc LocationConfig) solar.Model {
	m := solar.NewModel(c.PanelCapacityW, c.PanelEfficiencyPct, solar.GeoParams{
		LatitudeDeg:  loc.LatitudeDeg,
		LongitudeDeg: loc.LongitudeDeg,
	})
	if c.DiffuseFloor > 0 {
		m.DiffuseFloor = c.DiffuseFloor
	}
	if c.AttenuationExp > 0 {
		m.AttenuationExp = c.AttenuationExp
	}
	return m
}

// BatteryConfig describes the home storage pack.
type BatteryConfig struct {
	CapacityWh        float64 `json:"capacity_wh"`
	InitialSoCPct     float64 `json:"initial_soc_pct"`
	ChargeEff         float64 `json:"charge_eff"`
	DischargeEff      float64 `json:"discharge_eff"`
	DischargeFloorPct float64 `json:"discharge_floor_pct"`
}

// SetDefaults applies sane defaults.
func (c *BatteryConfig) SetDefaults() {
	if c.ChargeEff <= 0 {
		c.ChargeEff = 0.95
	}
	if c.DischargeEff <= 0 {
		c.DischargeEff = 0.95
	}
	if c.DischargeFloorPct <= 0 {
		c.DischargeFloorPct = 10
	}
}

// Validate checks mandatory fields.
func (c BatteryConfig) Validate() error {
	if c.CapacityWh <= 0 {
		return fmt.Errorf("battery capacity_wh must be positive")
	}
	if c.ChargeEff > 1 || c.DischargeEff > 1 {
		return fmt.Errorf("battery efficiencies must be in (0, 1]")
	}
	return nil
}

// Model builds the state-of-charge model.
func (c BatteryConfig) Model() battery.Model {
	m := battery.NewModel()
	m.DischargeFloorPct = c.DischargeFloorPct
	return m
}

// InitialState builds the session's starting battery state at the given time.
func (c BatteryConfig) InitialState(at time.Time) (model.BatteryState, error) {
	return model.NewBatteryState(at, c.InitialSoCPct, c.CapacityWh, c.ChargeEff, c.DischargeEff)
}

// ApplianceConfig describes one household load. Flexible appliances carry a
// daily window in local clock hours; the window is resolved against the
// horizon start each evaluation.
type ApplianceConfig struct {
	Name       string  `json:"name"`
	PowerWatts float64 `json:"power_watts"`
	Priority   string  `json:"priority"`
	// WindowStartHour and WindowEndHour bound the flexible window, 0-24.
	// Leaving both at zero means the appliance is always on.
	WindowStartHour *int `json:"window_start_hour"`
	WindowEndHour   *int `json:"window_end_hour"`
}

// Validate checks the section without building a profile.
func (c ApplianceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("appliance name is required")
	}
	if _, err := model.ParsePriority(c.Priority); err != nil {
		return fmt.Errorf("appliance %s: %w", c.Name, err)
	}
	if (c.WindowStartHour == nil) != (c.WindowEndHour == nil) {
		return fmt.Errorf("appliance %s: window hours must be set together", c.Name)
	}
	if c.WindowStartHour != nil {
		if *c.WindowStartHour < 0 || *c.WindowStartHour > 24 || *c.WindowEndHour < 0 || *c.WindowEndHour > 24 {
			return fmt.Errorf("appliance %s: window hours out of range", c.Name)
		}
	}
	return nil
}

// Profile resolves the section into an appliance profile anchored to the
// given horizon start. A daily window whose end already passed is shifted to
// the next day.
func (c ApplianceConfig) Profile(horizonStart time.Time) (model.ApplianceProfile, error) {
	prio, err := model.ParsePriority(c.Priority)
	if err != nil {
		return model.ApplianceProfile{}, err
	}
	p := model.ApplianceProfile{Name: c.Name, PowerWatts: c.PowerWatts, Priority: prio}
	if c.WindowStartHour != nil && c.WindowEndHour != nil {
		day := time.Date(horizonStart.Year(), horizonStart.Month(), horizonStart.Day(), 0, 0, 0, 0, horizonStart.Location())
		start := day.Add(time.Duration(*c.WindowStartHour) * time.Hour)
		end := day.Add(time.Duration(*c.WindowEndHour) * time.Hour)
		if !end.After(start) {
			end = end.Add(24 * time.Hour)
		}
		if !end.After(horizonStart) {
			start = start.Add(24 * time.Hour)
			end = end.Add(24 * time.Hour)
		}
		p.Window = &model.FlexWindow{Start: start, End: end}
	}
	return p, nil
}

// Profiles resolves every appliance section for one evaluation.
func Profiles(appliances []ApplianceConfig, horizonStart time.Time) ([]model.ApplianceProfile, error) {
	profiles := make([]model.ApplianceProfile, 0, len(appliances))
	for _, a := range appliances {
		p, err := a.Profile(horizonStart)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// AdvisoryConfig tunes the evaluation loop.
type AdvisoryConfig struct {
	HorizonHours        int     `json:"horizon_hours"`
	StepMinutes         int     `json:"step_minutes"`
	IntervalMinutes     int     `json:"interval_minutes"`
	AnomalyThresholdPct float64 `json:"anomaly_threshold_pct"`
}

// SetDefaults applies sane defaults.
func (c *AdvisoryConfig) SetDefaults() {
	if c.HorizonHours <= 0 {
		c.HorizonHours = 24
	}
	if c.StepMinutes <= 0 {
		c.StepMinutes = 60
	}
	if c.IntervalMinutes <= 0 {
		c.IntervalMinutes = 30
	}
	if c.AnomalyThresholdPct <= 0 {
		c.AnomalyThresholdPct = 50
	}
}

// Validate checks the section is internally consistent.
func (c AdvisoryConfig) Validate() error {
	if c.StepMinutes > c.HorizonHours*60 {
		return fmt.Errorf("advisory step exceeds horizon")
	}
	return nil
}

// Horizon returns the evaluation horizon duration.
func (c AdvisoryConfig) Horizon() time.Duration {
	return time.Duration(c.HorizonHours) * time.Hour
}

// Step returns the bucket width.
func (c AdvisoryConfig) Step() time.Duration {
	return time.Duration(c.StepMinutes) * time.Minute
}

// Interval returns the evaluation loop period.
func (c AdvisoryConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}
