/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the securevm
server, tracking HTTP requests, sandbox evaluations, membrane crossings,
sessions and WebSocket connections. Every Metrics value owns a private
registry.

# Features

- HTTP request metrics (latency, throughput, size)
- Sandbox metrics (contexts created, sanitization warnings, evaluations by status)
- Membrane metrics (wrappers created, cache hits, un-bridged values per direction)
- Session and WebSocket metrics
- Go runtime and process collectors, uptime

Metrics implements both sandbox.Observer and membrane.Observer, so it can be
passed straight to sandbox.WithObserver and sandbox.WithMembraneObserver.

# Usage

	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics, "/metrics"))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	ctx, err := sandbox.New(cfg, nil,
		sandbox.WithObserver(metrics),
		sandbox.WithMembraneObserver(metrics))

	timer := monitoring.NewTimer(metrics, "session_manager", "create")
	err := create()
	timer.Stop(status(err))
*/
package monitoring
