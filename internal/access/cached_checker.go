package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/directfanz/interact-service/pkg/log"
)

const (
	decisionAllow = "allow"
	decisionDeny  = "deny"
)

// CachedChecker wraps a Checker with a Redis decision cache and collapses
// concurrent checks for the same viewer into one upstream call. The cache
// client may be nil, which leaves only the singleflight layer.
type CachedChecker struct {
	inner  Checker
	cache  *redis.Client
	ttl    time.Duration
	prefix string
	sf     singleflight.Group
}

func NewCachedChecker(inner Checker, cache *redis.Client, ttl time.Duration) *CachedChecker {
	return &CachedChecker{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		prefix: "interact:access",
	}
}

func (c *CachedChecker) CheckAccess(ctx context.Context, streamID, userID, role string) error {
	key := fmt.Sprintf("%s:%s:%s", c.prefix, streamID, userID)

	_, err, _ := c.sf.Do(key, func() (interface{}, error) {
		return nil, c.checkWithCache(ctx, key, streamID, userID, role)
	})
	return err
}

func (c *CachedChecker) checkWithCache(ctx context.Context, key, streamID, userID, role string) error {
	if c.cache != nil {
		val, err := c.cache.Get(ctx, key).Result()
		if err == nil {
			if val == decisionAllow {
				return nil
			}
			return ErrDenied
		}
		if !errors.Is(err, redis.Nil) {
			log.Ctx(ctx).Warn().Err(err).Msg("access cache get error")
		}
	}

	err := c.inner.CheckAccess(ctx, streamID, userID, role)
	switch {
	case err == nil:
		c.storeDecision(ctx, key, decisionAllow)
		return nil
	case errors.Is(err, ErrDenied):
		c.storeDecision(ctx, key, decisionDeny)
		return err
	default:
		// An unavailable upstream is not a decision; nothing to cache.
		return err
	}
}

func (c *CachedChecker) storeDecision(ctx context.Context, key, decision string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, decision, c.ttl).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("access cache set error")
	}
}
