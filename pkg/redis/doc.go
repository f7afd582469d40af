// Package redis connects the shared Redis client used by the distributed
// rate limiter.
package redis
