// Package middleware provides production-ready HTTP middleware for the securevm server.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing with configurable origins
//   - RateLimit: Per-IP token bucket rate limiting
//   - RequestID: req_* ULID per request, echoed in X-Request-ID
//   - BodyLimit: Request body size cap
//   - Logger: Request logging through zap
//
// CORS:
//   - Origins come from CORS_ORIGINS; "*" admits any origin
//   - Unlisted origins are refused with 403, which also gates the REPL upgrade
//   - Trace and request ID headers are accepted and exposed
//   - No credentials
//
// Rate Limiting:
//   - Per-IP tracking with cleanup of idle clients
//   - Token bucket algorithm
//   - Configurable RPS and burst capacity
//   - Global rate limiting option
//
// Example Usage:
//
//	router.Use(middleware.RequestID())
//	cors, err := middleware.CORS(cfg.Server.AllowedOrigins)
//	if err != nil {
//		return err
//	}
//	router.Use(cors)
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
