package model

import (
	"fmt"
	"time"
)

// ForecastSample holds the weather attributes for one time bucket at one
// location. Samples are immutable once fetched; the Stale flag is the only
// field set after the fact, by the cache when it serves an expired entry.
type ForecastSample struct {
	Time          time.Time
	LocationKey   string
	CloudCoverPct float64 // [0,100]
	TemperatureC  float64
	HumidityPct   float64
	Stale         bool
}

// Validate checks that the sample attributes are within range.
func (s ForecastSample) Validate() error {
	if s.CloudCoverPct < 0 || s.CloudCoverPct > 100 {
		return fmt.Errorf("cloud cover %.1f%% out of range", s.CloudCoverPct)
	}
	if s.Time.IsZero() {
		return fmt.Errorf("sample timestamp missing")
	}
	return nil
}

// GenerationEstimate is the solar output derived from one ForecastSample.
// Watts is never negative.
type GenerationEstimate struct {
	Time  time.Time
	Watts float64
}
