package forecast

import (
	"context"
	"time"

	"github.com/ogatech4real/smart-energy-optimiser/core/model"
)

// Location identifies a forecast site. Key is used for cache lookups and
// telemetry tags; coordinates are passed through to the provider.
type Location struct {
	Key          string
	LatitudeDeg  float64
	LongitudeDeg float64
}

// Provider fetches weather attributes for a location at a point in time.
// Implementations must honour context cancellation; the cache bounds every
// call with its fetch timeout.
type Provider interface {
	Fetch(ctx context.Context, loc Location, at time.Time) (model.ForecastSample, error)
}

// Clock abstracts time for TTL decisions so the cache can be tested with
// fake time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }
