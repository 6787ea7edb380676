// Package config provides 12-factor configuration management for the securevm server.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Sandbox: Realm whitelist, pool size, session limits and timer budget
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - SANDBOX_WHITELIST_FILE, SANDBOX_POOL_SIZE, SANDBOX_MAX_SESSIONS,
//     SANDBOX_SESSION_TTL, SANDBOX_TIMEOUT, SANDBOX_TIMER_BUDGET,
//     SANDBOX_CONSOLE, SANDBOX_LOCATION
package config
