/*
Package tracing provides lightweight request tracing for debugging production issues.

# Overview

Each HTTP request gets a span; sandbox evaluations run in child spans so a
slow or failing evaluation can be tied back to the request that caused it.
Completed spans are logged through zap by a background collector.

# Features

- Trace context propagation via HTTP headers
- Span creation and management with parent-child relationships
- Automatic ULID trace and span IDs
- Gin middleware for automatic instrumentation
- Buffered span collection (1000 spans); spans are dropped when the buffer is full

# Usage

	tracer := tracing.New("securevm", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	err := tracing.Trace(ctx, tracer, "sandbox.eval", func(ctx context.Context) error {
		_, err := sandboxCtx.Execute(ctx, code)
		return err
	})

# Trace Format

Traces use standard HTTP headers for propagation:
- X-Trace-ID: Unique identifier for entire request flow
- X-Span-ID: Identifier for current operation
*/
package tracing
