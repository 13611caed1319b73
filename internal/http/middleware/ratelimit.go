package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per client IP with a token bucket. Buckets
// are kept in a TTL cache so idle clients expire instead of accumulating.
type RateLimiter struct {
	limiters *ttlcache.Cache[string, *rate.Limiter]
	rps      rate.Limit
	burst    int
	skip     map[string]struct{}
}

// NewRateLimiter builds a limiter allowing rps sustained requests per second
// with the given burst per client. Paths in skip (health and metrics probes)
// are never throttled. clientTTL bounds how long an idle client's bucket
// survives.
func NewRateLimiter(rps float64, burst int, clientTTL time.Duration, skip []string) *RateLimiter {
	cache := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](clientTTL),
	)
	go cache.Start()

	skipSet := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipSet[p] = struct{}{}
	}

	return &RateLimiter{
		limiters: cache,
		rps:      rate.Limit(rps),
		burst:    burst,
		skip:     skipSet,
	}
}

// Stop halts the cache's expiry loop.
func (r *RateLimiter) Stop() {
	r.limiters.Stop()
}

// Handler returns the fiber middleware handler. Throttled requests get a 429.
func (r *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := r.skip[c.Path()]; ok {
			return c.Next()
		}

		item, _ := r.limiters.GetOrSet(c.IP(), rate.NewLimiter(r.rps, r.burst))
		if !item.Value().Allow() {
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		}

		return c.Next()
	}
}
