package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/billingd/pkg/cache"
	"github.com/dmitrymomot/billingd/pkg/logger"
	"github.com/dmitrymomot/billingd/pkg/redis"
)

// CustomerCache remembers Stripe customer ids by selector key. Misses and
// cache failures are equivalent: the gateway falls through to the ledger.
type CustomerCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, customerID string)
}

// LRUCustomerCache is a bounded in-process cache with expiry.
type LRUCustomerCache struct {
	c *cache.Cache[string, string]
}

// NewLRUCustomerCache holds up to size ids for ttl each.
func NewLRUCustomerCache(size int, ttl time.Duration) *LRUCustomerCache {
	return &LRUCustomerCache{c: cache.New[string, string](max(size, 1), ttl)}
}

func (l *LRUCustomerCache) Get(_ context.Context, key string) (string, bool) {
	return l.c.Get(key)
}

func (l *LRUCustomerCache) Set(_ context.Context, key, id string) {
	l.c.Set(key, id)
}

// RedisCustomerCache shares customer ids between billingd instances.
type RedisCustomerCache struct {
	store *redis.Store
	ttl   time.Duration
	log   *slog.Logger
}

// NewRedisCustomerCache stores ids under "stripe:customer:<selector>".
func NewRedisCustomerCache(client goredis.UniversalClient, ttl time.Duration, log *slog.Logger) *RedisCustomerCache {
	if log == nil {
		log = logger.Discard()
	}
	return &RedisCustomerCache{
		store: redis.NewStore(client, "stripe:customer:"),
		ttl:   ttl,
		log:   log,
	}
}

func (r *RedisCustomerCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.ErrKeyNotFound) {
			r.log.WarnContext(ctx, "customer cache read failed", logger.Error(err))
		}
		return "", false
	}
	return string(val), true
}

func (r *RedisCustomerCache) Set(ctx context.Context, key, id string) {
	if err := r.store.Set(ctx, key, []byte(id), r.ttl); err != nil {
		r.log.WarnContext(ctx, "customer cache write failed", logger.Error(err))
	}
}
