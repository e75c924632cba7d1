package solar

import (
	"math"
	"time"

	"github.com/ogatech4real/smart-energy-optimiser/core/model"
)

// GeoParams locates the panel array for solar geometry.
type GeoParams struct {
	LatitudeDeg  float64
	LongitudeDeg float64
}

// Model converts forecast samples into hourly generation estimates. It is a
// pure value: deterministic given its inputs, safe to copy and share.
type Model struct {
	// PanelCapacityW is the rated array output.
	PanelCapacityW float64
	// PanelEfficiencyPct derates the rated capacity.
	PanelEfficiencyPct float64
	// DiffuseFloor is the fraction of clear-sky output still produced under
	// full overcast.
	DiffuseFloor float64
	// AttenuationExp shapes the cloud attenuation curve.
	AttenuationExp float64
	Geo            GeoParams
}

// NewModel returns a Model with the default attenuation parameters.
func NewModel(capacityW, efficiencyPct float64, geo GeoParams) Model {
	m := Model{
		PanelCapacityW:     capacityW,
		PanelEfficiencyPct: efficiencyPct,
		Geo:                geo,
	}
	m.setDefaults()
	return m
}

func (m *Model) setDefaults() {
	if m.PanelEfficiencyPct <= 0 {
		m.PanelEfficiencyPct = 18
	}
	if m.DiffuseFloor <= 0 {
		m.DiffuseFloor = 0.15
	}
	if m.AttenuationExp <= 0 {
		m.AttenuationExp = 1.5
	}
}

// Estimate derives the generation estimate for one forecast sample. Output
// is clamped to [0, PanelCapacityW].
func (m Model) Estimate(s model.ForecastSample) model.GenerationEstimate {
	m.setDefaults()
	watts := m.clearSky(s.Time) * m.attenuation(s.CloudCoverPct)
	if watts < 0 {
		watts = 0
	}
	if watts > m.PanelCapacityW {
		watts = m.PanelCapacityW
	}
	return model.GenerationEstimate{Time: s.Time, Watts: watts}
}

// EstimateSeries maps Estimate over a sample series, one estimate per sample.
func (m Model) EstimateSeries(samples []model.ForecastSample) []model.GenerationEstimate {
	out := make([]model.GenerationEstimate, len(samples))
	for i, s := range samples {
		out[i] = m.Estimate(s)
	}
	return out
}

// clearSky returns the cloudless output at t from solar elevation geometry.
func (m Model) clearSky(t time.Time) float64 {
	sinElev := solarElevationSin(m.Geo.LatitudeDeg, m.Geo.LongitudeDeg, t)
	if sinElev <= 0 {
		return 0
	}
	return m.PanelCapacityW * (m.PanelEfficiencyPct / 100) * sinElev
}

// attenuation maps cloud cover to an output fraction. Monotonically
// non-increasing: 0% cloud keeps the clear-sky baseline, 100% cloud leaves
// the diffuse floor rather than zero.
func (m Model) attenuation(cloudCoverPct float64) float64 {
	cc := model.ClampPct(cloudCoverPct) / 100
	return m.DiffuseFloor + (1-m.DiffuseFloor)*math.Pow(1-cc, m.AttenuationExp)
}

// solarElevationSin computes sin(solar elevation) for the given coordinates
// and instant using the standard declination / hour-angle formulation.
func solarElevationSin(latDeg, lonDeg float64, t time.Time) float64 {
	u := t.UTC()
	day := float64(u.YearDay())
	decl := 23.44 * math.Pi / 180 * math.Sin(2*math.Pi*(284+day)/365)

	solarHour := float64(u.Hour()) + float64(u.Minute())/60 + lonDeg/15
	hourAngle := (solarHour - 12) * 15 * math.Pi / 180

	lat := latDeg * math.Pi / 180
	return math.Sin(lat)*math.Sin(decl) + math.Cos(lat)*math.Cos(decl)*math.Cos(hourAngle)
}
