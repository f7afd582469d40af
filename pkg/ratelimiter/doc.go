// Package ratelimiter implements a token bucket limiter with in-memory and
// Redis stores.
//
// The two-factor service takes one token per verification attempt keyed by
// user, so a stolen password cannot be paired with unlimited code guesses.
// The HTTP middleware applies the same bucket per client IP.
//
//	b, _ := ratelimiter.NewBucket(ratelimiter.NewRedisStore(rdb), ratelimiter.Config{
//	    Capacity: 5, RefillRate: 1, RefillInterval: time.Minute,
//	})
//	res, err := b.Allow(ctx, "twofactor:"+userID.String())
//	if err == nil && !res.Allowed() { ... }
package ratelimiter
