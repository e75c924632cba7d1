package load

import (
	"fmt"
	"time"

	"github.com/ogatech4real/smart-energy-optimiser/core/model"
)

// Horizon describes the planning window to aggregate over.
type Horizon struct {
	Start    time.Time
	Duration time.Duration
	Step     time.Duration
}

// Validate rejects degenerate horizons before any stage runs.
func (h Horizon) Validate() error {
	if h.Duration <= 0 {
		return fmt.Errorf("duration %v: %w", h.Duration, model.ErrInvalidHorizon)
	}
	if h.Step <= 0 {
		return fmt.Errorf("step %v: %w", h.Step, model.ErrInvalidHorizon)
	}
	return nil
}

// Buckets returns the number of steps covering the horizon, rounding up so
// the curve always spans the full requested window.
func (h Horizon) Buckets() int {
	n := int(h.Duration / h.Step)
	if time.Duration(n)*h.Step < h.Duration {
		n++
	}
	return n
}

// BucketStart returns the start instant of bucket i.
func (h Horizon) BucketStart(i int) time.Time {
	return h.Start.Add(time.Duration(i) * h.Step)
}

// Aggregate merges appliance profiles into a contiguous demand curve over
// the horizon. Profiles without a window count as always-on; windowed
// profiles contribute to every bucket their window overlaps. Deterministic,
// rebuilt fresh per evaluation.
func Aggregate(profiles []model.ApplianceProfile, h Horizon) (model.DemandCurve, error) {
	if err := h.Validate(); err != nil {
		return model.DemandCurve{}, err
	}
	seen := make(map[string]struct{}, len(profiles))
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return model.DemandCurve{}, err
		}
		if _, ok := seen[p.Name]; ok {
			return model.DemandCurve{}, fmt.Errorf("duplicate appliance %s: %w", p.Name, model.ErrInvalidProfile)
		}
		seen[p.Name] = struct{}{}
	}

	n := h.Buckets()
	curve := model.DemandCurve{Step: h.Step, Buckets: make([]model.DemandBucket, n)}
	for i := 0; i < n; i++ {
		start := h.BucketStart(i)
		end := start.Add(h.Step)
		var watts float64
		for _, p := range profiles {
			if p.Window == nil || p.Window.Overlaps(start, end) {
				watts += p.PowerWatts
			}
		}
		curve.Buckets[i] = model.DemandBucket{Start: start, TotalWatts: watts}
	}
	return curve, nil
}
