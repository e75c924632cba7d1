package forecast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ogatech4real/smart-energy-optimiser/core/logger"
	"github.com/ogatech4real/smart-energy-optimiser/core/metrics"
	"github.com/ogatech4real/smart-energy-optimiser/core/model"
	"github.com/ogatech4real/smart-energy-optimiser/internal/eventbus"
)

// Config defines cache behaviour.
type Config struct {
	// TTL is how long a fetched sample stays fresh.
	TTL time.Duration
	// Bucket is the provider refresh granularity; lookups are keyed by the
	// request time truncated to this width.
	Bucket time.Duration
	// FetchTimeout bounds each upstream call.
	FetchTimeout time.Duration
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TTL <= 0 {
		c.TTL = 30 * time.Minute
	}
	if c.Bucket <= 0 {
		c.Bucket = time.Hour
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
}

type entry struct {
	sample   model.ForecastSample
	hasValue bool
	expires  time.Time
	fetching chan struct{} // non-nil while an upstream fetch is in flight
}

// Cache memoizes provider responses by (location, time bucket). Entries live
// for the process lifetime and expire only by TTL; concurrent lookups of the
// same key collapse into a single upstream fetch.
type Cache struct {
	provider Provider
	clock    Clock
	cfg      Config
	bus      eventbus.EventBus
	log      logger.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// NewCache builds a cache around the given provider and clock. A non-nil bus
// receives a ForecastFetchEvent per lookup outcome.
func NewCache(provider Provider, clock Clock, cfg Config, bus eventbus.EventBus, log logger.Logger) *Cache {
	cfg.SetDefaults()
	if clock == nil {
		clock = SystemClock()
	}
	return &Cache{
		provider: provider,
		clock:    clock,
		cfg:      cfg,
		bus:      bus,
		log:      log,
		entries:  make(map[string]*entry),
	}
}

func (c *Cache) emit(loc Location, result string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(metrics.ForecastFetchEvent{
		LocationKey: loc.Key,
		Result:      result,
		Time:        c.clock.Now(),
	})
}

func (c *Cache) key(loc Location, at time.Time) string {
	return fmt.Sprintf("%s@%d", loc.Key, at.UTC().Truncate(c.cfg.Bucket).Unix())
}

// Get returns the forecast sample for the location and time bucket. On a
// fresh cache hit the stored sample is returned as-is. On provider failure a
// stale entry, if present, is returned with Stale set; otherwise the call
// fails with model.ErrUpstreamUnavailable.
func (c *Cache) Get(ctx context.Context, loc Location, at time.Time) (model.ForecastSample, error) {
	key := c.key(loc, at)
	for {
		c.mu.Lock()
		e := c.entries[key]
		if e != nil && e.fetching == nil && e.hasValue && c.clock.Now().Before(e.expires) {
			s := e.sample
			c.mu.Unlock()
			c.emit(loc, "hit")
			return s, nil
		}
		if e != nil && e.fetching != nil {
			// Another session is already fetching this key; wait and retry.
			ch := e.fetching
			c.mu.Unlock()
			select {
			case <-ch:
				continue
			case <-ctx.Done():
				return model.ForecastSample{}, ctx.Err()
			}
		}
		if e == nil {
			e = &entry{}
			c.entries[key] = e
		}
		ch := make(chan struct{})
		e.fetching = ch
		stale := e.sample
		hasStale := e.hasValue
		c.mu.Unlock()

		sample, err := c.fetch(ctx, loc, at)

		c.mu.Lock()
		e.fetching = nil
		close(ch)
		if err == nil {
			e.sample = sample
			e.hasValue = true
			e.expires = c.clock.Now().Add(c.cfg.TTL)
			c.mu.Unlock()
			c.emit(loc, "fetch")
			return sample, nil
		}
		c.mu.Unlock()

		if hasStale {
			stale.Stale = true
			c.log.Warnf("forecast fetch for %s failed, serving stale sample: %v", key, err)
			c.emit(loc, "stale")
			return stale, nil
		}
		c.emit(loc, "error")
		return model.ForecastSample{}, fmt.Errorf("fetch %s: %v: %w", key, err, model.ErrUpstreamUnavailable)
	}
}

func (c *Cache) fetch(ctx context.Context, loc Location, at time.Time) (model.ForecastSample, error) {
	fctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()
	sample, err := c.provider.Fetch(fctx, loc, at.UTC().Truncate(c.cfg.Bucket))
	if err != nil {
		return model.ForecastSample{}, err
	}
	if sample.LocationKey == "" {
		sample.LocationKey = loc.Key
	}
	// Range faults from the provider are clamped, not surfaced: samples are
	// immutable once stored and must always satisfy the model invariants.
	sample.CloudCoverPct = model.ClampPct(sample.CloudCoverPct)
	if err := sample.Validate(); err != nil {
		return model.ForecastSample{}, err
	}
	return sample, nil
}
