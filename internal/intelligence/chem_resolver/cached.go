package chem_resolver

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
)

// Lookuper is a resolver that reports service failures separately from misses.
type Lookuper interface {
	Lookup(ctx context.Context, name string) (reaction.Resolution, error)
}

// Cache stores resolutions by compound name. A cached NotFound is a hit.
type Cache interface {
	Get(ctx context.Context, name string) (reaction.Resolution, bool, error)
	Set(ctx context.Context, name string, res reaction.Resolution) error
}

// CachedResolver puts a Cache in front of a Lookuper. Concurrent lookups of
// the same name share one upstream call. A failed lookup is never cached.
// With WithFailureMemory the name is also answered with NotFound until the
// next Forget, so one pass never asks the service for it twice.
type CachedResolver struct {
	next    Lookuper
	cache   Cache
	metrics Metrics
	logger  logging.Logger
	group   singleflight.Group

	rememberFailures bool
	mu               sync.Mutex
	failed           map[string]struct{}
}

// CachedOption configures a CachedResolver.
type CachedOption func(*CachedResolver)

// WithFailureMemory makes failed names resolve to NotFound without another
// upstream call until Forget is called. Batch passes call Forget at start.
func WithFailureMemory() CachedOption {
	return func(r *CachedResolver) { r.rememberFailures = true }
}

func NewCachedResolver(next Lookuper, cache Cache, metrics Metrics, logger logging.Logger, opts ...CachedOption) *CachedResolver {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	r := &CachedResolver{
		next:    next,
		cache:   cache,
		metrics: metrics,
		logger:  logger.Named("resolver_cache"),
		failed:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *CachedResolver) Resolve(ctx context.Context, name string) reaction.Resolution {
	res, err := r.Lookup(ctx, name)
	if err != nil {
		r.logger.Warn("annotator lookup failed, leaving compound unresolved", logging.Compound(name), logging.Err(err))
		return reaction.NotFound()
	}
	return res
}

func (r *CachedResolver) Lookup(ctx context.Context, name string) (reaction.Resolution, error) {
	key := strings.TrimSpace(name)
	if key == "" {
		return reaction.NotFound(), nil
	}
	if r.hasFailed(key) {
		return reaction.NotFound(), nil
	}

	if r.cache != nil {
		res, ok, err := r.cache.Get(ctx, key)
		switch {
		case err != nil:
			r.logger.Warn("resolution cache read failed", logging.Compound(key), logging.Err(err))
		case ok:
			r.metrics.CacheAccess(true)
			return res, nil
		default:
			r.metrics.CacheAccess(false)
		}
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		res, err := r.next.Lookup(ctx, key)
		if err != nil {
			r.markFailed(key)
			return res, err
		}
		if r.cache != nil {
			if cerr := r.cache.Set(ctx, key, res); cerr != nil {
				r.logger.Warn("resolution cache write failed", logging.Compound(key), logging.Err(cerr))
			}
		}
		return res, nil
	})
	res, _ := v.(reaction.Resolution)
	return res, err
}

// Forget clears the failure memory so the next pass retries those names.
func (r *CachedResolver) Forget() {
	r.mu.Lock()
	r.failed = make(map[string]struct{})
	r.mu.Unlock()
}

func (r *CachedResolver) hasFailed(key string) bool {
	if !r.rememberFailures {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.failed[key]
	return ok
}

func (r *CachedResolver) markFailed(key string) {
	if !r.rememberFailures {
		return
	}
	r.mu.Lock()
	r.failed[key] = struct{}{}
	r.mu.Unlock()
}

// MemoryCache is a process-local Cache used when Redis is not configured.
// NotFound entries expire after nullTTL so long-lived processes ask again;
// found IDs are kept.
type MemoryCache struct {
	mu      sync.RWMutex
	m       map[string]memoryEntry
	nullTTL time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	res     reaction.Resolution
	expires time.Time
}

// NewMemoryCache keeps NotFound entries for nullTTL; zero keeps them for the
// life of the cache.
func NewMemoryCache(nullTTL time.Duration) *MemoryCache {
	return &MemoryCache{m: make(map[string]memoryEntry), nullTTL: nullTTL, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, name string) (reaction.Resolution, bool, error) {
	c.mu.RLock()
	e, ok := c.m[name]
	c.mu.RUnlock()
	if !ok {
		return reaction.NotFound(), false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.mu.Lock()
		if cur, ok := c.m[name]; ok && cur.expires.Equal(e.expires) {
			delete(c.m, name)
		}
		c.mu.Unlock()
		return reaction.NotFound(), false, nil
	}
	return e.res, true, nil
}

func (c *MemoryCache) Set(_ context.Context, name string, res reaction.Resolution) error {
	e := memoryEntry{res: res}
	if !res.IsFound() && c.nullTTL > 0 {
		e.expires = c.now().Add(c.nullTTL)
	}
	c.mu.Lock()
	c.m[name] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
