package model

import (
	"fmt"
	"time"
)

// BatteryState is an immutable snapshot of a battery bank. New states are
// produced only by the SoC model's Step; the owning session holds the
// current reference.
type BatteryState struct {
	Time         time.Time
	SoCPct       float64 // [0,100]
	CapacityWh   float64 // > 0
	ChargeEff    float64 // (0,1]
	DischargeEff float64 // (0,1]
}

// NewBatteryState builds a validated snapshot with the SoC clamped to [0,100].
func NewBatteryState(at time.Time, socPct, capacityWh, chargeEff, dischargeEff float64) (BatteryState, error) {
	s := BatteryState{
		Time:         at,
		SoCPct:       ClampPct(socPct),
		CapacityWh:   capacityWh,
		ChargeEff:    chargeEff,
		DischargeEff: dischargeEff,
	}
	if err := s.Validate(); err != nil {
		return BatteryState{}, err
	}
	return s, nil
}

// Validate checks the physical parameters.
func (s BatteryState) Validate() error {
	if s.CapacityWh <= 0 {
		return fmt.Errorf("battery capacity must be positive, got %.1f", s.CapacityWh)
	}
	if s.ChargeEff <= 0 || s.ChargeEff > 1 {
		return fmt.Errorf("charge efficiency %.2f out of (0,1]", s.ChargeEff)
	}
	if s.DischargeEff <= 0 || s.DischargeEff > 1 {
		return fmt.Errorf("discharge efficiency %.2f out of (0,1]", s.DischargeEff)
	}
	return nil
}

// StoredWh returns the energy currently held by the pack.
func (s BatteryState) StoredWh() float64 {
	return s.SoCPct / 100 * s.CapacityWh
}

// ClampPct bounds a percentage to [0,100].
func ClampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
