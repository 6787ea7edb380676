// Package main is the entry point for the securevm server.
//
// The server evaluates untrusted JavaScript in sanitized goja realms and
// exposes them over HTTP and WebSocket.
//
// The server provides:
//   - One-shot evaluation on pre-built contexts
//   - Long-lived sessions with a WebSocket REPL
//   - Prometheus metrics at /metrics
//   - Rate limiting and request size limits
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -whitelist whitelist.yaml
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
