package battery

import (
	"math"
	"time"

	"github.com/ogatech4real/smart-energy-optimiser/core/model"
)

// Model holds the simulation parameters shared by every step. The state
// itself lives in model.BatteryState snapshots owned by the session; the
// model never keeps mutable state, so concurrent sessions with their own
// snapshots are safe.
type Model struct {
	// DischargeFloorPct is the SoC below which stored energy is not usable.
	DischargeFloorPct float64
}

// NewModel returns a Model with the default 10% discharge floor.
func NewModel() Model {
	return Model{DischargeFloorPct: 10}
}

// StepResult reports the energy accounting of one step.
type StepResult struct {
	// EnergyStoredWh is the energy added to the pack, after charge losses.
	EnergyStoredWh float64
	// EnergyDrawnWh is the energy delivered to the load.
	EnergyDrawnWh float64
	// EnergyUnservedWh is demand the pack could not cover. The reported
	// discharge is truncated along with the physical one, so dependent
	// calculations never see energy that was not actually available.
	EnergyUnservedWh float64
}

// Step advances the battery by one interval. Positive net power charges the
// pack at ChargeEff; negative net power discharges it at DischargeEff. The
// resulting SoC is always clamped to [0,100] and never drops below the
// usable discharge floor through discharge alone.
func (m Model) Step(prev model.BatteryState, netPowerW float64, duration time.Duration) (model.BatteryState, StepResult) {
	next := prev
	next.Time = prev.Time.Add(duration)

	hours := duration.Hours()
	if hours <= 0 || netPowerW == 0 || !isFinite(netPowerW) || !isFinite(hours) {
		return next, StepResult{}
	}

	var res StepResult
	if netPowerW > 0 {
		deltaWh := netPowerW * hours * prev.ChargeEff
		headroomWh := (100 - prev.SoCPct) / 100 * prev.CapacityWh
		if deltaWh > headroomWh {
			deltaWh = headroomWh
		}
		res.EnergyStoredWh = deltaWh
		next.SoCPct = model.ClampPct(prev.SoCPct + deltaWh/prev.CapacityWh*100)
		return next, res
	}

	demandWh := -netPowerW * hours
	usableWh := m.AvailableDischargeWh(prev)
	deliveredWh := demandWh
	if deliveredWh > usableWh {
		deliveredWh = usableWh
	}
	res.EnergyDrawnWh = deliveredWh
	res.EnergyUnservedWh = demandWh - deliveredWh
	removedWh := deliveredWh / prev.DischargeEff
	next.SoCPct = model.ClampPct(prev.SoCPct - removedWh/prev.CapacityWh*100)
	return next, res
}

// AvailableDischargeWh returns the energy the pack can still deliver to a
// load, honouring the discharge floor and the discharge efficiency.
func (m Model) AvailableDischargeWh(s model.BatteryState) float64 {
	usablePct := s.SoCPct - m.DischargeFloorPct
	if usablePct <= 0 {
		return 0
	}
	return usablePct / 100 * s.CapacityWh * s.DischargeEff
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
