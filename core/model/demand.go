package model

import "time"

// DemandBucket is one fixed-width slice of the aggregated load curve.
type DemandBucket struct {
	Start      time.Time
	TotalWatts float64
}

// DemandCurve is the time-bucketed household demand over a planning horizon.
// Buckets are contiguous, non-overlapping and cover the full horizon. The
// curve is rebuilt for every evaluation and never cached across appliance
// changes.
type DemandCurve struct {
	Step    time.Duration
	Buckets []DemandBucket
}

// Len returns the number of buckets.
func (c DemandCurve) Len() int { return len(c.Buckets) }

// End returns the instant just past the last bucket.
func (c DemandCurve) End() time.Time {
	if len(c.Buckets) == 0 {
		return time.Time{}
	}
	return c.Buckets[len(c.Buckets)-1].Start.Add(c.Step)
}

// TotalWh returns the energy demanded over the whole curve.
func (c DemandCurve) TotalWh() float64 {
	var wh float64
	for _, b := range c.Buckets {
		wh += b.TotalWatts * c.Step.Hours()
	}
	return wh
}
