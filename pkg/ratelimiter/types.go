package ratelimiter

import "time"

// Result contains the result of a rate limit check.
type Result struct {
	Limit     int       // Bucket capacity
	Remaining int       // Tokens left; negative when the request was denied
	ResetAt   time.Time // When the next refill happens
}

// Allowed reports whether the request fit into the bucket.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long to wait before retrying, or 0 if allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return max(0, time.Until(r.ResetAt))
}

// Config defines the token bucket. Defaults allow a burst of five attempts
// and one more per minute, which is what two-factor endpoints use.
type Config struct {
	Capacity       int           `env:"LIMITER_CAPACITY" envDefault:"5"`
	RefillRate     int           `env:"LIMITER_REFILL_RATE" envDefault:"1"`
	RefillInterval time.Duration `env:"LIMITER_REFILL_INTERVAL" envDefault:"1m"`
}
