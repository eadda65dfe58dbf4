package ipfilter

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL = time.Hour

	refreshKey     = "hooks"
	refreshTimeout = 30 * time.Second
)

// RangeFetcher retrieves the current list of webhook source CIDRs.
type RangeFetcher interface {
	FetchRanges(ctx context.Context) ([]string, error)
}

// RangeCache holds the published webhook source ranges.
// Create one per process; the snapshot is refreshed lazily once the TTL has passed.
type RangeCache struct {
	fetcher RangeFetcher
	ttl     time.Duration
	now     func() time.Time

	group singleflight.Group

	mu         sync.Mutex
	ranges     []string
	fetchedAt  time.Time
	generation uint64
}

func NewRangeCache(fetcher RangeFetcher, ttl time.Duration) *RangeCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RangeCache{
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Ranges returns the cached ranges, refreshing them when they are missing or expired.
// Concurrent callers share a single refresh. When the refresh fails, previously fetched
// ranges are returned even if stale; only without any previous data is the error returned.
func (c *RangeCache) Ranges(ctx context.Context) ([]string, error) {
	if ranges, ok := c.fresh(); ok {
		return ranges, nil
	}

	// The refresh is shared, so it must not be aborted when the first caller goes away.
	refreshCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(refreshKey, func() (any, error) {
		return c.refresh(refreshCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]string)), nil
	}
}

// Invalidate drops the snapshot and any refresh marker, forcing the next call to fetch again.
func (c *RangeCache) Invalidate() {
	c.mu.Lock()
	c.ranges = nil
	c.fetchedAt = time.Time{}
	c.generation++
	c.mu.Unlock()

	c.group.Forget(refreshKey)
}

func (c *RangeCache) fresh() ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.ranges) == 0 || c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return slices.Clone(c.ranges), true
}

func (c *RangeCache) refresh(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	generation := c.generation
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	ranges, err := c.fetcher.FetchRanges(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if len(c.ranges) > 0 {
			slog.Warn("Failed to refresh webhook source ranges, using cached ranges",
				slog.String("err", err.Error()),
				slog.Time("fetchedAt", c.fetchedAt),
			)
			return c.ranges, nil
		}
		return nil, fmt.Errorf("failed to fetch webhook source ranges: %w", err)
	}

	// Invalidated while fetching, don't resurrect the dropped snapshot.
	if generation == c.generation {
		c.ranges = ranges
		c.fetchedAt = c.now()
	}
	slog.Debug("Refreshed webhook source ranges", slog.Int("count", len(ranges)))
	return ranges, nil
}
