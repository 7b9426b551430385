// Package redis connects billingd to Redis through go-redis/v9.
//
// Connect retries the initial ping until the server answers, Healthcheck
// exposes a readiness probe, and Store is a small prefixed key-value wrapper
// with TTLs that backs the shared Stripe customer id cache:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	store := redis.NewStore(client, "stripe:customer:")
//	_ = store.Set(ctx, "user-1", []byte("cus_123"), time.Hour)
//
// Missing keys are reported as ErrKeyNotFound.
package redis
