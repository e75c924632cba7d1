package forecast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ogatech4real/smart-energy-optimiser/core/metrics"
	"github.com/ogatech4real/smart-energy-optimiser/core/model"
	"github.com/ogatech4real/smart-energy-optimiser/infra/logger"
	"github.com/ogatech4real/smart-energy-optimiser/internal/eventbus"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeProvider struct {
	mu    sync.Mutex
	calls int32
	fail  bool
	cloud float64
	delay time.Duration
}

func (p *fakeProvider) Fetch(ctx context.Context, loc Location, at time.Time) (model.ForecastSample, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return model.ForecastSample{}, ctx.Err()
		}
	}
	p.mu.Lock()
	fail, cloud := p.fail, p.cloud
	p.mu.Unlock()
	if fail {
		return model.ForecastSample{}, errors.New("upstream down")
	}
	return model.ForecastSample{Time: at, LocationKey: loc.Key, CloudCoverPct: cloud}, nil
}

func (p *fakeProvider) setFail(fail bool) {
	p.mu.Lock()
	p.fail = fail
	p.mu.Unlock()
}

func (p *fakeProvider) callCount() int32 { return atomic.LoadInt32(&p.calls) }

var testLoc = Location{Key: "home", LatitudeDeg: 48.85, LongitudeDeg: 2.35}

func newTestCache(p Provider, clk Clock) *Cache {
	return NewCache(p, clk, Config{TTL: 30 * time.Minute, Bucket: time.Hour}, nil, logger.NopLogger{})
}

func TestCache_FreshHitSkipsProvider(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	p := &fakeProvider{cloud: 40}
	c := newTestCache(p, clk)

	at := clk.Now()
	first, err := c.Get(context.Background(), testLoc, at)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// Same hour bucket, still within TTL.
	second, err := c.Get(context.Background(), testLoc, at.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.callCount() != 1 {
		t.Fatalf("provider called %d times, want 1", p.callCount())
	}
	if first.CloudCoverPct != second.CloudCoverPct {
		t.Fatalf("samples differ: %v vs %v", first, second)
	}
	if second.Stale {
		t.Fatal("fresh sample flagged stale")
	}
}

func TestCache_ExpiryTriggersRefetch(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	p := &fakeProvider{}
	c := newTestCache(p, clk)

	at := clk.Now()
	if _, err := c.Get(context.Background(), testLoc, at); err != nil {
		t.Fatalf("get: %v", err)
	}
	clk.Advance(31 * time.Minute)
	if _, err := c.Get(context.Background(), testLoc, at); err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.callCount() != 2 {
		t.Fatalf("provider called %d times, want 2", p.callCount())
	}
}

func TestCache_StaleFallbackOnProviderFailure(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	p := &fakeProvider{cloud: 25}
	c := newTestCache(p, clk)

	at := clk.Now()
	if _, err := c.Get(context.Background(), testLoc, at); err != nil {
		t.Fatalf("get: %v", err)
	}
	clk.Advance(31 * time.Minute)
	p.setFail(true)

	s, err := c.Get(context.Background(), testLoc, at)
	if err != nil {
		t.Fatalf("expected stale fallback, got error %v", err)
	}
	if !s.Stale {
		t.Fatal("fallback sample not flagged stale")
	}
	if s.CloudCoverPct != 25 {
		t.Fatalf("stale sample cloud %v want 25", s.CloudCoverPct)
	}
}

func TestCache_NoStaleEntryFailsWithUpstreamUnavailable(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	p := &fakeProvider{fail: true}
	c := newTestCache(p, clk)

	_, err := c.Get(context.Background(), testLoc, clk.Now())
	if !errors.Is(err, model.ErrUpstreamUnavailable) {
		t.Fatalf("error %v want ErrUpstreamUnavailable", err)
	}
}

func TestCache_ConcurrentLookupsCollapseIntoOneFetch(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	p := &fakeProvider{delay: 50 * time.Millisecond}
	c := newTestCache(p, clk)

	at := clk.Now()
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), testLoc, at)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if p.callCount() != 1 {
		t.Fatalf("provider called %d times, want 1", p.callCount())
	}
}

func TestCache_DistinctBucketsFetchSeparately(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	p := &fakeProvider{}
	c := newTestCache(p, clk)

	at := clk.Now()
	if _, err := c.Get(context.Background(), testLoc, at); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := c.Get(context.Background(), testLoc, at.Add(time.Hour)); err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.callCount() != 2 {
		t.Fatalf("provider called %d times, want 2", p.callCount())
	}
}

func TestCache_PublishesFetchOutcomes(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	p := &fakeProvider{cloud: 30}
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()
	c := NewCache(p, clk, Config{TTL: 30 * time.Minute, Bucket: time.Hour}, bus, logger.NopLogger{})

	at := clk.Now()
	if _, err := c.Get(context.Background(), testLoc, at); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := c.Get(context.Background(), testLoc, at); err != nil {
		t.Fatalf("get: %v", err)
	}
	clk.Advance(31 * time.Minute)
	p.setFail(true)
	if _, err := c.Get(context.Background(), testLoc, at); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := c.Get(context.Background(), testLoc, at.Add(time.Hour)); err == nil {
		t.Fatal("expected error on cold key")
	}

	want := []string{"fetch", "hit", "stale", "error"}
	for i, result := range want {
		select {
		case ev := <-sub:
			fe, ok := ev.(metrics.ForecastFetchEvent)
			if !ok {
				t.Fatalf("event %d: unexpected type %T", i, ev)
			}
			if fe.Result != result || fe.LocationKey != testLoc.Key {
				t.Fatalf("event %d: %+v want result %s", i, fe, result)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing %s event", result)
		}
	}
}

func TestCache_ContextCancellation(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	p := &fakeProvider{delay: time.Second}
	c := newTestCache(p, clk)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Get(ctx, testLoc, clk.Now()); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}
