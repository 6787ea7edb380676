package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/securevm/internal/domain/session"
	"github.com/GriffinCanCode/securevm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/securevm/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/securevm/internal/sandbox"
	"github.com/GriffinCanCode/securevm/internal/shared/id"
	"github.com/GriffinCanCode/securevm/internal/shared/utils"
)

// Version is reported by the root endpoint.
const Version = "0.1.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	pool     *sandbox.Pool
	sessions *session.Manager
	metrics  *monitoring.Metrics
	tracked  *HandlerMetrics
	tracer   *tracing.Tracer
	logger   *zap.Logger
}

// NewHandlers creates a new handler set. metrics, tracer and logger may be nil.
func NewHandlers(
	pool *sandbox.Pool,
	sessions *session.Manager,
	metrics *monitoring.Metrics,
	tracer *tracing.Tracer,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		pool:     pool,
		sessions: sessions,
		metrics:  metrics,
		tracked:  NewHandlerMetrics(metrics),
		tracer:   tracer,
		logger:   logger,
	}
}

// EvalRequest is the body of an evaluation request.
type EvalRequest struct {
	Code     string                 `json:"code"`
	Bindings map[string]interface{} `json:"bindings,omitempty"`
}

// CreateSessionRequest is the body of a session creation request.
type CreateSessionRequest struct {
	Bindings map[string]interface{} `json:"bindings,omitempty"`
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"status":  "online",
		"service": "securevm",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"status":   "healthy",
		"pool":     h.pool.Stats(),
		"sessions": h.sessions.Stats(),
	})
}

// Metrics returns a JSON summary of the server's metrics
func (h *Handlers) Metrics(c *gin.Context) {
	if h.metrics == nil {
		respond(c, http.StatusNotFound, gin.H{"error": "metrics disabled"})
		return
	}
	respond(c, http.StatusOK, h.metrics.Snapshot())
}

// Eval runs code once on a pooled context
func (h *Handlers) Eval(c *gin.Context) {
	var req EvalRequest
	if err := decode(c, &req); err != nil {
		fail(c, err)
		return
	}
	if err := utils.ValidateCode(req.Code); err != nil {
		fail(c, invalid(err))
		return
	}
	if err := utils.ValidateBindings(req.Bindings); err != nil {
		fail(c, invalid(err))
		return
	}

	done := h.tracked.TrackPoolOperation("eval")
	var result *sandbox.Result
	var traceID tracing.TraceID
	err := tracing.Trace(c.Request.Context(), h.tracer, "sandbox.eval", func(ctx context.Context) error {
		traceID = tracing.GetTraceID(ctx)
		var err error
		result, err = h.pool.Execute(ctx, req.Code, req.Bindings)
		return err
	})
	done(err)

	if err != nil && !evaluated(result, err) {
		fail(c, err)
		return
	}
	resp := NewEvalResponse(result)
	resp.TraceID = string(traceID)
	respond(c, http.StatusOK, resp)
}

// CreateSession creates a long-lived sandbox session
func (h *Handlers) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := decode(c, &req); err != nil {
		fail(c, err)
		return
	}
	if err := utils.ValidateBindings(req.Bindings); err != nil {
		fail(c, invalid(err))
		return
	}

	done := h.tracked.TrackSessionOperation("create")
	info, err := h.sessions.Create(req.Bindings)
	done(err)
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusCreated, gin.H{
		"success": true,
		"session": info,
	})
}

// ListSessions lists all live sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	done := h.tracked.TrackSessionOperation("list")
	sessions := h.sessions.List()
	done(nil)

	respond(c, http.StatusOK, gin.H{
		"sessions": sessions,
		"stats":    h.sessions.Stats(),
	})
}

// GetSession describes a session
func (h *Handlers) GetSession(c *gin.Context) {
	sid, err := id.ParseSessionID(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	done := h.tracked.TrackSessionOperation("get")
	info, err := h.sessions.Get(sid)
	done(err)
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"session": info})
}

// EvalSession runs code in a session's realm
func (h *Handlers) EvalSession(c *gin.Context) {
	sid, err := id.ParseSessionID(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	var req EvalRequest
	if err := decode(c, &req); err != nil {
		fail(c, err)
		return
	}
	if err := utils.ValidateCode(req.Code); err != nil {
		fail(c, invalid(err))
		return
	}
	if len(req.Bindings) > 0 {
		fail(c, invalid(errBindingsOnCreate))
		return
	}

	done := h.tracked.TrackSessionOperation("eval")
	var result *sandbox.Result
	var traceID tracing.TraceID
	err = tracing.Trace(c.Request.Context(), h.tracer, "session.eval", func(ctx context.Context) error {
		traceID = tracing.GetTraceID(ctx)
		var err error
		result, err = h.sessions.Eval(ctx, sid, req.Code)
		return err
	})
	done(err)

	if err != nil && !evaluated(result, err) {
		fail(c, err)
		return
	}
	resp := NewEvalResponse(result)
	resp.TraceID = string(traceID)
	respond(c, http.StatusOK, resp)
}

// DeleteSession closes a session
func (h *Handlers) DeleteSession(c *gin.Context) {
	sid, err := id.ParseSessionID(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	done := h.tracked.TrackSessionOperation("delete")
	err = h.sessions.Delete(sid)
	done(err)
	if err != nil {
		fail(c, err)
		return
	}

	h.logger.Debug("session deleted over HTTP", zap.String("session_id", sid.String()))
	respond(c, http.StatusOK, gin.H{"success": true})
}
