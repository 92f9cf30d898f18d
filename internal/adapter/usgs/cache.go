package usgs

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-query-service/internal/domain"
	"github.com/couchcryptid/quake-query-service/internal/observability"
)

// CachedSource wraps an EventSource with an LRU of feed snapshots that expire
// after ttl. Snapshots are shared between callers and must not be mutated.
type CachedSource struct {
	inner   domain.EventSource
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
	cache   *lru.Cache[string, snapshot]
}

type snapshot struct {
	events    []domain.Event
	fetchedAt time.Time
}

// NewCachedSource creates a cache decorator holding up to size snapshots.
func NewCachedSource(inner domain.EventSource, size int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) (*CachedSource, error) {
	cache, err := lru.New[string, snapshot](size)
	if err != nil {
		return nil, fmt.Errorf("create feed cache: %w", err)
	}
	return &CachedSource{
		inner:   inner,
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
		cache:   cache,
	}, nil
}

// FetchRecentEvents serves a fresh snapshot for the window's feed from the
// cache, fetching from the inner source on a miss. Errors are not cached.
func (c *CachedSource) FetchRecentEvents(ctx context.Context, window time.Duration) ([]domain.Event, error) {
	key := FeedFor(window)
	now := c.clock.Now()

	if snap, ok := c.cache.Get(key); ok && now.Sub(snap.fetchedAt) < c.ttl {
		c.metrics.FeedCache.WithLabelValues("hit").Inc()
		return snap.events, nil
	}
	c.metrics.FeedCache.WithLabelValues("miss").Inc()

	events, err := c.inner.FetchRecentEvents(ctx, window)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, snapshot{events: events, fetchedAt: now})
	return events, nil
}
