package http

import (
	"errors"

	"github.com/GriffinCanCode/securevm/internal/domain/session"
	"github.com/GriffinCanCode/securevm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/securevm/internal/sandbox"
)

// HandlerMetrics wraps handlers with metrics tracking
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper. A nil metrics disables tracking.
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// TrackPoolOperation tracks one-shot evaluations on the context pool
func (hm *HandlerMetrics) TrackPoolOperation(operation string) func(error) {
	return hm.track("sandbox_pool", operation)
}

// TrackSessionOperation tracks session operations
func (hm *HandlerMetrics) TrackSessionOperation(operation string) func(error) {
	return hm.track("session_manager", operation)
}

func (hm *HandlerMetrics) track(service, operation string) func(error) {
	timer := monitoring.NewTimer(hm.metrics, service, operation)
	return func(err error) {
		status := "success"
		if err != nil && !errors.Is(err, sandbox.ErrEvaluation) {
			status = "error"
			if hm.metrics != nil {
				hm.metrics.RecordServiceError(service, operation, errorType(err))
			}
		}
		timer.Stop(status)
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, session.ErrTooManySessions):
		return "limit"
	case errors.Is(err, sandbox.ErrPoolClosed), errors.Is(err, session.ErrManagerClosed):
		return "closed"
	case errors.Is(err, sandbox.ErrTimeout):
		return "timeout"
	default:
		return "internal"
	}
}
