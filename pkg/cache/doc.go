// Package cache provides a bounded, thread-safe LRU cache whose entries
// expire after a fixed time-to-live.
//
// billingd uses it as the in-process Stripe customer id cache when Redis is
// not configured:
//
//	c := cache.New[string, string](1024, time.Hour)
//	c.Set("user:42", "cus_123")
//	if id, ok := c.Get("user:42"); ok {
//	    // ...
//	}
//
// Expired entries are dropped lazily on access. A ttl of zero disables
// expiry and leaves a plain LRU.
package cache
