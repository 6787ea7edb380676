// Package server provides HTTP server setup and initialization for securevm.
//
// This package orchestrates all components:
//   - HTTP routing with Gin framework
//   - Middleware stack (request IDs, logging, tracing, metrics, CORS, rate limiting, body limits)
//   - Sandbox pool and session manager construction
//   - Optional whitelist file loading
//   - gzip response compression
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger (production or development)
//  3. Load the whitelist file, if configured
//  4. Pre-build the sandbox pool
//  5. Setup HTTP routes and middleware
//  6. Start HTTP server and the session sweeper
//  7. Graceful shutdown on signal
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
