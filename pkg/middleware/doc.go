// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// # Middleware Components
//
// AuthMiddleware resolves "Authorization: Bearer <token>" through an
// identity.Resolver and stores the actor in the request context:
//
//	auth := middleware.NewAuthMiddleware(resolver, true, logger)
//	router.Use(auth.Handler)
//
// In optional mode requests without credentials continue as the anonymous
// actor. A token that is present but invalid is rejected either way.
// RequireAuthenticated guards routes that make no sense anonymously.
//
// RateLimitMiddleware keys authenticated callers by user id and anonymous
// callers by client IP. RateLimiter is an in-process token bucket;
// DistributedRateLimiter shares a fixed window across instances in Redis.
// Rejections carry Retry-After: the time for one token to refill for the
// bucket, the window length for Redis.
//
//	limits := middleware.NewRateLimitMiddleware(
//		middleware.NewDistributedRateLimiter(redisClient, middleware.PerUserRateLimitConfig(), "chefhub:ratelimit:user"),
//		middleware.NewDistributedRateLimiter(redisClient, middleware.DefaultRateLimitConfig(), "chefhub:ratelimit:anon"),
//		logger,
//	)
//	router.Use(limits.Handler)
//
// # Rate Limiting
//
// Default (Anonymous): 100 req/min, 10 burst
// Per-User: 1000 req/min, 50 burst
//
// # Related Packages
//
//   - pkg/identity: Token resolution
//   - pkg/contextkeys: Actor context key
package middleware
