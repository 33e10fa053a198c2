package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// nullMarker is stored for names the annotator could not resolve.
const nullMarker = "\x00"

const resolveNamespace = "resolve"

// ResolutionCache stores compound name → ChEBI id. Unresolved names are kept
// under a shorter TTL so a later run asks the annotator again.
type ResolutionCache struct {
	client  *Client
	ttl     time.Duration
	nullTTL time.Duration
	logger  logging.Logger
}

type CacheOption func(*ResolutionCache)

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *ResolutionCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithNullCacheTTL(ttl time.Duration) CacheOption {
	return func(c *ResolutionCache) {
		if ttl > 0 {
			c.nullTTL = ttl
		}
	}
}

func NewResolutionCache(client *Client, log logging.Logger, opts ...CacheOption) *ResolutionCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &ResolutionCache{
		client:  client,
		ttl:     30 * 24 * time.Hour,
		nullTTL: 24 * time.Hour,
		logger:  log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ResolutionCache) key(name string) string {
	return c.client.Key(resolveNamespace, name)
}

// Get reports whether name is cached; a cached NotFound is a hit.
func (c *ResolutionCache) Get(ctx context.Context, name string) (reaction.Resolution, bool, error) {
	if c.client.isClosed() {
		return reaction.NotFound(), false, ErrClientClosed
	}
	val, err := c.client.rdb.Get(ctx, c.key(name)).Result()
	if err == redis.Nil {
		return reaction.NotFound(), false, nil
	}
	if err != nil {
		return reaction.NotFound(), false, errors.Wrap(err, errors.ErrCodeCacheError, "read resolution cache")
	}
	if val == nullMarker {
		return reaction.NotFound(), true, nil
	}
	return reaction.Found(val), true, nil
}

func (c *ResolutionCache) Set(ctx context.Context, name string, res reaction.Resolution) error {
	if c.client.isClosed() {
		return ErrClientClosed
	}
	val, ttl := nullMarker, c.nullTTL
	if id, ok := res.Get(); ok {
		val, ttl = id, c.ttl
	}
	if err := c.client.rdb.Set(ctx, c.key(name), val, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "write resolution cache")
	}
	return nil
}

// Invalidate drops the cached entries for names.
func (c *ResolutionCache) Invalidate(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = c.key(n)
	}
	if err := c.client.rdb.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "invalidate resolution cache")
	}
	return nil
}

// Purge removes every cached resolution and returns the number deleted.
func (c *ResolutionCache) Purge(ctx context.Context) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	match := c.key("*")
	for {
		keys, next, err := c.client.rdb.Scan(ctx, cursor, match, 500).Result()
		if err != nil {
			return deleted, errors.Wrap(err, errors.ErrCodeCacheError, "scan resolution cache")
		}
		if len(keys) > 0 {
			n, err := c.client.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, errors.Wrap(err, errors.ErrCodeCacheError, "purge resolution cache")
			}
			deleted += n
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	c.logger.Info("resolution cache purged", logging.Int64("deleted", deleted))
	return deleted, nil
}
