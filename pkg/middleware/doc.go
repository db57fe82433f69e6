// Package middleware provides HTTP rate limiting for the search API.
//
// Two Limiter implementations are available: LocalLimiter, a token bucket
// per key held in process memory, and DistributedRateLimiter, a fixed
// window counter in redis shared by all instances.
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, &middleware.RateLimitConfig{
//	    RequestsPerWindow: 600,
//	    WindowDuration:    time.Minute,
//	}, "")
//	ips, _ := middleware.NewClientIPResolver([]string{"10.0.0.0/8"})
//	handler := middleware.RateLimit(limiter, ips, logger)(router)
//
// Requests are keyed by client IP. X-Forwarded-For and X-Real-IP are only
// read when the connection comes from a trusted proxy. Responses carry X-RateLimit-Limit,
// X-RateLimit-Remaining and X-RateLimit-Reset; rejected requests get 429
// with Retry-After.
package middleware
