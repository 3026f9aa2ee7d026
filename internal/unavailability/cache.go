package unavailability

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/example/class-booking/internal/application"
)

// DefaultLoadTimeout bounds one upstream read when none is configured.
const DefaultLoadTimeout = 5 * time.Second

// Cached keeps the last snapshot of a slower feed for ttl. Concurrent misses
// share one upstream read, which runs detached from any single caller's
// cancellation and is bounded by loadTimeout instead.
type Cached struct {
	source      application.UnavailabilityFeed
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time
	group       singleflight.Group

	mu        sync.RWMutex
	dates     []string
	expiresAt time.Time
	version   uint64
}

// NewCached wraps source. A non-positive ttl defaults to 30 seconds and a
// non-positive loadTimeout to DefaultLoadTimeout.
func NewCached(source application.UnavailabilityFeed, ttl, loadTimeout time.Duration, now func() time.Time) *Cached {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if loadTimeout <= 0 {
		loadTimeout = DefaultLoadTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &Cached{source: source, ttl: ttl, loadTimeout: loadTimeout, now: now}
}

// ListAll serves the cached snapshot or refreshes it from the source.
func (c *Cached) ListAll(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	dates, fresh, version := c.dates, c.now().Before(c.expiresAt), c.version
	c.mu.RUnlock()
	if fresh {
		return slices.Clone(dates), nil
	}

	ch := c.group.DoChan("dates", func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		loaded, err := c.source.ListAll(loadCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.version == version {
			c.dates = slices.Clone(loaded)
			c.expiresAt = c.now().Add(c.ttl)
		}
		c.mu.Unlock()
		return loaded, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]string)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the snapshot so the next read goes to the source.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.dates = nil
	c.expiresAt = time.Time{}
	c.version++
	c.mu.Unlock()
	c.group.Forget("dates")
}
